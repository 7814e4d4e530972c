package remote

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chunga-ict/vpnctl/kernel/config"
	"github.com/chunga-ict/vpnctl/kernel/fault"
	"github.com/michaelquigley/pfxlog"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

const defaultSSHPort = "22"

// SSHExecutor runs scripts over a direct SSH session, feeding the script to bash on stdin.
type SSHExecutor struct {
	addr   string
	config *ssh.ClientConfig
}

// LoadSSHExecutor reads the private key and known_hosts file named by cfg. When no
// known_hosts path is configured, ~/.ssh/known_hosts is used.
func LoadSSHExecutor(cfg config.SSHConfig) (*SSHExecutor, error) {
	pem, err := os.ReadFile(cfg.KeyPath)
	if err != nil {
		return nil, errors.Wrapf(err, "read ssh key '%s'", cfg.KeyPath)
	}
	signer, err := ssh.ParsePrivateKey(pem)
	if err != nil {
		return nil, errors.Wrapf(err, "parse ssh key '%s'", cfg.KeyPath)
	}

	knownHostsPath := cfg.KnownHostsPath
	if knownHostsPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, errors.Wrap(err, "locate home directory for known_hosts")
		}
		knownHostsPath = filepath.Join(home, ".ssh", "known_hosts")
	}
	hostKeys, err := knownhosts.New(knownHostsPath)
	if err != nil {
		return nil, errors.Wrapf(err, "load known_hosts '%s'", knownHostsPath)
	}

	return NewSSHExecutor(cfg.Host, cfg.User, signer, hostKeys), nil
}

func NewSSHExecutor(host, user string, signer ssh.Signer, hostKeys ssh.HostKeyCallback) *SSHExecutor {
	addr := host
	if _, _, err := net.SplitHostPort(host); err != nil {
		addr = net.JoinHostPort(host, defaultSSHPort)
	}
	return &SSHExecutor{
		addr: addr,
		config: &ssh.ClientConfig{
			User:            user,
			Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
			HostKeyCallback: hostKeys,
		},
	}
}

func (e *SSHExecutor) Addr() string {
	return e.addr
}

func (e *SSHExecutor) Run(ctx context.Context, script string, timeout time.Duration) (*Result, error) {
	log := pfxlog.ContextLogger(e.addr)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := e.dial(ctx)
	if err != nil {
		return nil, e.classify(ctx, err, "connect to %s", e.addr)
	}
	defer func() { _ = client.Close() }()

	session, err := client.NewSession()
	if err != nil {
		return nil, fault.Wrap(fault.UpstreamError, err, "open session on %s", e.addr)
	}
	defer func() { _ = session.Close() }()

	var stdout, stderr bytes.Buffer
	session.Stdin = strings.NewReader(script)
	session.Stdout = &stdout
	session.Stderr = &stderr

	if err := session.Start("/bin/bash -s"); err != nil {
		return nil, fault.Wrap(fault.UpstreamError, err, "start remote shell on %s", e.addr)
	}
	log.Info("remote command dispatched")

	done := make(chan error, 1)
	go func() { done <- session.Wait() }()

	select {
	case err = <-done:
	case <-ctx.Done():
		_ = client.Close()
		return nil, e.classify(ctx, ctx.Err(), "run script on %s", e.addr)
	}

	result := &Result{Status: StatusSuccess, Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		var exitErr *ssh.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fault.Wrap(fault.UpstreamError, err, "run script on %s", e.addr)
		}
		result.Status = StatusFailed
		log.WithField("exitStatus", exitErr.ExitStatus()).Warn("remote command failed")
	}

	log.WithFields(logrus.Fields{"status": result.Status, "stdoutBytes": stdout.Len()}).Info("remote command finished")
	return result, nil
}

func (e *SSHExecutor) dial(ctx context.Context) (*ssh.Client, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", e.addr)
	if err != nil {
		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, e.addr, e.config)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	// the handshake deadline must not cut the running script short
	_ = conn.SetDeadline(time.Time{})
	return ssh.NewClient(c, chans, reqs), nil
}

func (e *SSHExecutor) classify(ctx context.Context, err error, format string, args ...interface{}) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fault.Wrap(fault.Timeout, err, format, args...)
	}
	return fault.Wrap(fault.UpstreamError, err, format, args...)
}
