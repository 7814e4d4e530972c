package remote

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/client"
	"github.com/aws/aws-sdk-go/service/ssm"
	"github.com/aws/aws-sdk-go/service/ssm/ssmiface"
	"github.com/chunga-ict/vpnctl/kernel/fault"
	"github.com/michaelquigley/pfxlog"
	"github.com/sirupsen/logrus"
)

const (
	runShellScriptDocument = "AWS-RunShellScript"
	scriptTerminator       = "VPNCTL_SCRIPT"
	minCommandTimeout      = 30 * time.Second
)

// SSMExecutor dispatches scripts through Systems Manager Run Command and polls the
// invocation until it settles.
type SSMExecutor struct {
	api        ssmiface.SSMAPI
	instanceId string
	interval   time.Duration
}

func NewSSMExecutor(p client.ConfigProvider, instanceId string, interval time.Duration) *SSMExecutor {
	return NewSSMExecutorWithAPI(ssm.New(p), instanceId, interval)
}

func NewSSMExecutorWithAPI(api ssmiface.SSMAPI, instanceId string, interval time.Duration) *SSMExecutor {
	return &SSMExecutor{api: api, instanceId: instanceId, interval: interval}
}

func (e *SSMExecutor) Run(ctx context.Context, script string, timeout time.Duration) (*Result, error) {
	log := pfxlog.ContextLogger(e.instanceId)

	commandTimeout := timeout
	if commandTimeout < minCommandTimeout {
		commandTimeout = minCommandTimeout
	}
	sent, err := e.api.SendCommandWithContext(ctx, &ssm.SendCommandInput{
		InstanceIds:  aws.StringSlice([]string{e.instanceId}),
		DocumentName: aws.String(runShellScriptDocument),
		Parameters: map[string][]*string{
			"commands": aws.StringSlice([]string{WrapBash(script)}),
		},
		TimeoutSeconds: aws.Int64(int64(commandTimeout / time.Second)),
	})
	if err != nil {
		return nil, fault.Wrap(fault.UpstreamError, err, "send command to %s", e.instanceId)
	}
	if sent.Command == nil || sent.Command.CommandId == nil {
		return nil, fault.New(fault.UpstreamError, "send command to %s returned no command id", e.instanceId)
	}
	commandId := aws.StringValue(sent.Command.CommandId)
	log.WithField("commandId", commandId).Info("remote command dispatched")

	var result *Result
	err = Poll(ctx, e.interval, timeout, func(ctx context.Context) (bool, error) {
		inv, err := e.api.GetCommandInvocationWithContext(ctx, &ssm.GetCommandInvocationInput{
			CommandId:  aws.String(commandId),
			InstanceId: aws.String(e.instanceId),
		})
		if err != nil {
			// the invocation is eventually consistent right after SendCommand
			if aerr, ok := err.(awserr.Error); ok && aerr.Code() == ssm.ErrCodeInvocationDoesNotExist {
				log.WithField("commandId", commandId).Debug("invocation not visible yet")
				return false, nil
			}
			return false, fault.Wrap(fault.UpstreamError, err, "get command invocation %s", commandId)
		}

		status := aws.StringValue(inv.Status)
		switch status {
		case ssm.CommandInvocationStatusPending, ssm.CommandInvocationStatusInProgress, ssm.CommandInvocationStatusDelayed:
			return false, nil
		}
		result = &Result{
			Status: status,
			Stdout: aws.StringValue(inv.StandardOutputContent),
			Stderr: aws.StringValue(inv.StandardErrorContent),
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{"commandId": commandId, "status": result.Status}).Info("remote command finished")
	return result, nil
}

// WrapBash feeds script to bash through a quoted heredoc so the run document's shell
// performs no expansion on it.
func WrapBash(script string) string {
	return fmt.Sprintf("/bin/bash <<'%s'\n%s\n%s", scriptTerminator, script, scriptTerminator)
}
