package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chunga-ict/vpnctl/kernel/handler"
	"github.com/chunga-ict/vpnctl/kernel/store"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	statusURI = "vpnctl://status"
	trigger   = "mcp"
	userAgent = "vpnctl-mcp"
)

type VpnMCPServer struct {
	server     *server.MCPServer
	registry   *handler.Registry
	history    store.History
	instanceId string
}

// NewVpnMCPServer exposes the registered operations as tools. history may be nil, in which
// case the traffic_history tool reports that nothing is recorded.
func NewVpnMCPServer(registry *handler.Registry, history store.History, instanceId string) *VpnMCPServer {
	srv := server.NewMCPServer(
		"VPN Control",
		"v1.0.0",
		server.WithResourceCapabilities(true, true),
		server.WithToolCapabilities(true),
	)

	vs := &VpnMCPServer{
		server:     srv,
		registry:   registry,
		history:    history,
		instanceId: instanceId,
	}

	vs.registerTools()
	vs.registerResources()

	return vs
}

func (vs *VpnMCPServer) ServeStdio() error {
	return server.ServeStdio(vs.server)
}

func (vs *VpnMCPServer) registerTools() {
	vs.server.AddTool(mcp.NewTool("vpn_status",
		mcp.WithDescription("Report the VPN instance state and public IP address"),
	), vs.operationHandler(handler.NameStatus))

	vs.server.AddTool(mcp.NewTool("vpn_start",
		mcp.WithDescription("Start the VPN instance, subject to the weekday start window"),
	), vs.operationHandler(handler.NameStart))

	vs.server.AddTool(mcp.NewTool("vpn_stop",
		mcp.WithDescription("Stop the VPN instance"),
	), vs.operationHandler(handler.NameStop))

	vs.server.AddTool(mcp.NewTool("vpn_monitor",
		mcp.WithDescription("Evaluate recent traffic and stop the instance when it has been idle"),
	), vs.operationHandler(handler.NameMonitor))

	vs.server.AddTool(mcp.NewTool("register_peer",
		mcp.WithDescription("Register a WireGuard client public key and return its configuration values"),
		mcp.WithString("public_key",
			mcp.Description("Base64 WireGuard public key of the client"),
			mcp.Required(),
		),
	), vs.registerPeerHandler)

	vs.server.AddTool(mcp.NewTool("traffic_history",
		mcp.WithDescription("List recorded traffic evaluations for the VPN instance"),
	), vs.trafficHistoryHandler)
}

func (vs *VpnMCPServer) registerResources() {
	resource := mcp.NewResource(statusURI, "VPN Status",
		mcp.WithResourceDescription("Current state of the VPN instance"),
		mcp.WithMIMEType("application/json"),
	)
	vs.server.AddResource(resource, vs.statusResourceHandler)
}

func (vs *VpnMCPServer) dispatch(ctx context.Context, name, body string) (*handler.Response, error) {
	event := handler.NewEvent("POST", body, handler.MetaOf("", userAgent, ""))
	event.Trigger = trigger
	return vs.registry.Dispatch(ctx, name, event)
}

func (vs *VpnMCPServer) operationHandler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return vs.toolResult(vs.dispatch(ctx, name, ""))
	}
}

func (vs *VpnMCPServer) registerPeerHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	publicKey, err := request.RequireString("public_key")
	if err != nil {
		return mcp.NewToolResultError("public_key argument is required"), nil
	}
	body, err := json.Marshal(map[string]string{"publicKey": publicKey})
	if err != nil {
		return nil, err
	}
	return vs.toolResult(vs.dispatch(ctx, handler.NameRegister, string(body)))
}

func (vs *VpnMCPServer) trafficHistoryHandler(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if vs.history == nil {
		return mcp.NewToolResultError("traffic history is not recorded"), nil
	}
	records, err := vs.history.List(vs.instanceId)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list history: %v", err)), nil
	}
	data, err := json.Marshal(map[string]interface{}{
		"instanceId": vs.instanceId,
		"count":      len(records),
		"records":    records,
	})
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (vs *VpnMCPServer) toolResult(resp *handler.Response, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if resp.StatusCode >= 400 {
		return mcp.NewToolResultError(resp.Body), nil
	}
	return mcp.NewToolResultText(resp.Body), nil
}

func (vs *VpnMCPServer) statusResourceHandler(ctx context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	resp, err := vs.dispatch(ctx, handler.NameStatus, "")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("status failed: %s", resp.Body)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      statusURI,
			MIMEType: "application/json",
			Text:     resp.Body,
		},
	}, nil
}
