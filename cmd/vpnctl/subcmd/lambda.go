/*
	(c) Copyright NetFoundry Inc. Inc.

	Licensed under the Apache License, Version 2.0 (the "License");
	you may not use this file except in compliance with the License.
	You may obtain a copy of the License at

	https://www.apache.org/licenses/LICENSE-2.0

	Unless required by applicable law or agreed to in writing, software
	distributed under the License is distributed on an "AS IS" BASIS,
	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
	See the License for the specific language governing permissions and
	limitations under the License.
*/

package subcmd

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/chunga-ict/vpnctl/kernel/handler"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func init() {
	RootCmd.AddCommand(NewLambdaCommand())
}

func NewLambdaCommand() *cobra.Command {
	lambdaCmd := &LambdaCommand{}

	cmd := &cobra.Command{
		Use:   "lambda",
		Short: "Run one operation inside the AWS Lambda runtime",
		Long: `Run inside the AWS Lambda runtime, serving one operation per function.
The operation is taken from --handler, else from VPNCTL_HANDLER.`,
		Args: cobra.NoArgs,
		RunE: lambdaCmd.run,
	}

	cmd.Flags().StringVar(&lambdaCmd.Handler, "handler", "", "operation to serve (status, start, stop, monitor, register)")

	return cmd
}

type LambdaCommand struct {
	Handler string
}

func (l *LambdaCommand) run(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	name := l.Handler
	if name == "" {
		name = cfg.Handler
	}
	if name == "" {
		return errors.New("no handler selected; set --handler or VPNCTL_HANDLER")
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.registry.Get(name); err != nil {
		return err
	}

	logrus.Infof("serving '%s' in the lambda runtime", name)
	lambda.Start(lambdaHandler(a.registry, name))
	return nil
}

// lambdaHandler adapts a registered operation to the Lambda payload contract.
func lambdaHandler(registry *handler.Registry, name string) func(context.Context, json.RawMessage) (*handler.Response, error) {
	return func(ctx context.Context, payload json.RawMessage) (*handler.Response, error) {
		event, err := handler.ParseEvent(payload)
		if err != nil {
			return handler.JSON(400, handler.Payload{"message": "Invalid event.", "error": err.Error()}), nil
		}
		return registry.Dispatch(ctx, name, event)
	}
}
