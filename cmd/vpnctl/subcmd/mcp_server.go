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
	"github.com/chunga-ict/vpnctl/kernel/mcp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func init() {
	RootCmd.AddCommand(NewMCPServerCommand())
}

func NewMCPServerCommand() *cobra.Command {
	mcpCmd := &MCPServerCommand{}

	cmd := &cobra.Command{
		Use:   "mcp-server",
		Short: "Start MCP server for AI-driven VPN control",
		Long: `Start an MCP (Model Context Protocol) server that exposes the VPN
operations to AI assistants.

The server provides tools for:
  - vpn_status: Report the instance state and public IP
  - vpn_start: Start the instance within the weekday window
  - vpn_stop: Stop the instance
  - vpn_monitor: Evaluate traffic and stop an idle instance
  - register_peer: Register a WireGuard client public key
  - traffic_history: List recorded traffic evaluations

And resources:
  - vpnctl://status: Current state of the instance`,
		Args: cobra.NoArgs,
		RunE: mcpCmd.run,
	}

	return cmd
}

type MCPServerCommand struct{}

func (m *MCPServerCommand) run(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	logrus.Info("starting MCP server on stdio...")
	server := mcp.NewVpnMCPServer(a.registry, a.history, cfg.InstanceId)
	return server.ServeStdio()
}
