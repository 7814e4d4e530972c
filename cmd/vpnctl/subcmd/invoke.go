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
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/chunga-ict/vpnctl/kernel/handler"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func init() {
	RootCmd.AddCommand(NewInvokeCommand())
}

func NewInvokeCommand() *cobra.Command {
	invokeCmd := &InvokeCommand{}

	cmd := &cobra.Command{
		Use:   "invoke <operation>",
		Short: "Run one operation locally and print its response",
		Example: `  vpnctl invoke status
  vpnctl invoke register --body '{"publicKey":"..."}'`,
		Args: cobra.ExactArgs(1),
		RunE: invokeCmd.invoke,
	}

	cmd.Flags().StringVar(&invokeCmd.Method, "method", "POST", "request method presented to the operation")
	cmd.Flags().StringVar(&invokeCmd.Body, "body", "", "request body presented to the operation")
	cmd.Flags().StringVar(&invokeCmd.Trigger, "trigger", "cli", "trigger label recorded by stop and monitor")
	cmd.Flags().BoolVar(&invokeCmd.JSON, "json", false, "print the raw response body even on a terminal")

	return cmd
}

type InvokeCommand struct {
	Method  string
	Body    string
	Trigger string
	JSON    bool
}

func (i *InvokeCommand) invoke(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	event := handler.NewEvent(i.Method, i.Body, handler.MetaOf("", "vpnctl-cli", ""))
	event.Trigger = i.Trigger

	resp, err := a.registry.Dispatch(cmd.Context(), args[0], event)
	if err != nil {
		return err
	}

	pretty := !i.JSON && isTerminal(os.Stdout)
	if err := renderResponse(cmd.OutOrStdout(), resp, pretty); err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return errors.Errorf("%s returned status %d", args[0], resp.StatusCode)
	}
	return nil
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// renderResponse prints the body as a field/value table, or verbatim when pretty is off.
func renderResponse(w io.Writer, resp *handler.Response, pretty bool) error {
	if !pretty {
		_, err := fmt.Fprintln(w, resp.Body)
		return err
	}

	payload, err := resp.Decode()
	if err != nil {
		_, err = fmt.Fprintln(w, resp.Body)
		return err
	}

	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(fmt.Sprintf("status %d", resp.StatusCode))
	t.AppendHeader(table.Row{"Field", "Value"})
	for _, k := range keys {
		t.AppendRow(table.Row{k, formatValue(payload[k])})
	}
	t.Render()
	return nil
}

func formatValue(v interface{}) string {
	switch value := v.(type) {
	case nil:
		return "-"
	case string:
		return value
	case map[string]interface{}, []interface{}:
		data, err := json.Marshal(value)
		if err != nil {
			return fmt.Sprint(value)
		}
		return string(data)
	default:
		return fmt.Sprint(value)
	}
}
