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

	"github.com/chunga-ict/vpnctl/kernel/store"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func init() {
	RootCmd.AddCommand(NewHistoryCommand())
}

func NewHistoryCommand() *cobra.Command {
	historyCmd := &HistoryCommand{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List traffic evaluations recorded in the local history file",
		Args:  cobra.NoArgs,
		RunE:  historyCmd.run,
	}

	cmd.Flags().StringVar(&historyCmd.Path, "file", "", "history file (overrides history_path / VPNCTL_HISTORY_FILE)")
	cmd.Flags().BoolVar(&historyCmd.JSON, "json", false, "print records as JSON")

	return cmd
}

type HistoryCommand struct {
	Path string
	JSON bool
}

func (h *HistoryCommand) run(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	path := h.Path
	if path == "" {
		path = cfg.HistoryPath
	}
	if path == "" {
		return errors.New("no history file configured")
	}

	records, err := store.NewFileStore(path).List(cfg.InstanceId)
	if err != nil {
		return err
	}
	if h.JSON || !isTerminal(os.Stdout) {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}
	renderHistory(cmd.OutOrStdout(), cfg.InstanceId, records)
	return nil
}

func renderHistory(w io.Writer, instanceId string, records []*store.Record) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(instanceId)
	t.AppendHeader(table.Row{"Timestamp", "Buckets", "Latest MB/h", "Threshold", "Should Stop", "Stop Issued"})
	for _, r := range records {
		t.AppendRow(table.Row{
			r.Timestamp.Format("2006-01-02 15:04:05 MST"),
			fmt.Sprintf("%d/%d", len(r.Points), r.RequiredPoints),
			fmt.Sprintf("%.3f", r.LatestMbPerHour()),
			fmt.Sprintf("%.3f", r.ThresholdMb),
			r.ShouldStop,
			r.StopIssued,
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", "total", len(records)})
	t.Render()
}
