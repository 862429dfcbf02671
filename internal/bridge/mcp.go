// Package bridge connects the dashboard to the bot backend. Requests are MCP
// tool calls; push events arrive as MCP notifications or over a plain
// WebSocket.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/jaakkos/titandash/internal/dispatch"
	"github.com/jaakkos/titandash/internal/domain"
	"github.com/jaakkos/titandash/internal/panel"
)

// ErrToolFailed is returned when the backend reports a tool error.
var ErrToolFailed = errors.New("backend tool failed")

// Backend tools.
const (
	ToolInstancesAvailable       = "base_instances_available"
	ToolInstanceInformation      = "dashboard_instance_information"
	ToolActionsInformation       = "dashboard_actions_information"
	ToolSettingsInformation      = "dashboard_settings_information"
	ToolQueueFunctionInformation = "dashboard_queue_function_information"
	ToolActionsSignal            = "dashboard_actions_signal"
	ToolActionsKill              = "dashboard_actions_kill"
	ToolQueueFunction            = "dashboard_queue_function"
	ToolQueueFunctionFlush       = "dashboard_queue_function_flush"
	ToolAddInstance              = "dashboard_add_instance"
	ToolRemoveInstance           = "dashboard_remove_instance"
	ToolSaveInstanceName         = "dashboard_save_instance_name"
)

// Options configure Dial.
type Options struct {
	URL           string
	Transport     string // "sse" or streamable HTTP otherwise
	Headers       map[string]string
	Timeout       time.Duration // per call; 0 means no limit
	ClientName    string
	ClientVersion string
	Logger        *log.Logger
}

var _ panel.Backend = (*MCPBackend)(nil)

// MCPBackend implements panel.Backend on top of an MCP client.
type MCPBackend struct {
	client  *client.Client
	logger  *log.Logger
	timeout time.Duration
	name    string
	version string
}

// Dial creates a client for opts.URL, starts it and runs the MCP handshake.
func Dial(ctx context.Context, opts Options) (*MCPBackend, error) {
	var c *client.Client
	var err error
	if opts.Transport == "sse" {
		c, err = client.NewSSEMCPClient(opts.URL, transport.WithHeaders(opts.Headers))
	} else {
		c, err = client.NewStreamableHttpClient(opts.URL,
			transport.WithHTTPHeaders(opts.Headers),
			transport.WithContinuousListening(),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("mcp client: %w", err)
	}
	b := NewMCPBackend(c, opts.Logger, opts.Timeout)
	if opts.ClientName != "" {
		b.name = opts.ClientName
	}
	if opts.ClientVersion != "" {
		b.version = opts.ClientVersion
	}
	if err := b.Connect(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	return b, nil
}

// NewMCPBackend wraps an existing client. Call Connect before use.
func NewMCPBackend(c *client.Client, logger *log.Logger, timeout time.Duration) *MCPBackend {
	return &MCPBackend{client: c, logger: logger, timeout: timeout, name: "titandash-dashboard", version: "dev"}
}

// Connect starts the transport and initializes the session.
func (b *MCPBackend) Connect(ctx context.Context) error {
	if err := b.client.Start(ctx); err != nil {
		return fmt.Errorf("mcp start: %w", err)
	}
	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcp.Implementation{Name: b.name, Version: b.version}
	res, err := b.client.Initialize(ctx, req)
	if err != nil {
		return fmt.Errorf("mcp initialize: %w", err)
	}
	b.logger.Printf("bridge: connected to %s %s", res.ServerInfo.Name, res.ServerInfo.Version)
	return nil
}

// OnEvent delivers every dashboard push notification to fn. Other
// notifications are ignored.
func (b *MCPBackend) OnEvent(fn func(dispatch.Event)) {
	b.client.OnNotification(func(n mcp.JSONRPCNotification) {
		b.handleNotification(n, fn)
	})
}

func (b *MCPBackend) handleNotification(n mcp.JSONRPCNotification, fn func(dispatch.Event)) {
	params, err := json.Marshal(&n.Params)
	if err != nil {
		b.logger.Printf("bridge: notification %s: %v", n.Method, err)
		return
	}
	ev, err := DecodeNotification(n.Method, params)
	if errors.Is(err, ErrUnknownEvent) {
		return
	}
	if err != nil {
		b.logger.Printf("bridge: %v", err)
		return
	}
	fn(ev)
}

// Close shuts the client down.
func (b *MCPBackend) Close() error {
	return b.client.Close()
}

// call invokes tool and decodes its JSON text result into out.
func (b *MCPBackend) call(ctx context.Context, tool string, args map[string]any, out any) error {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}
	req := mcp.CallToolRequest{}
	req.Params.Name = tool
	req.Params.Arguments = args
	res, err := b.client.CallTool(ctx, req)
	if err != nil {
		return fmt.Errorf("%s: %w", tool, err)
	}
	text := resultText(res)
	if res.IsError {
		return fmt.Errorf("%s: %w: %s", tool, ErrToolFailed, text)
	}
	if out == nil || strings.TrimSpace(text) == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(text), out); err != nil {
		return fmt.Errorf("%s: decode result: %w", tool, err)
	}
	return nil
}

func resultText(res *mcp.CallToolResult) string {
	var sb strings.Builder
	for _, c := range res.Content {
		switch tc := c.(type) {
		case mcp.TextContent:
			sb.WriteString(tc.Text)
		case *mcp.TextContent:
			sb.WriteString(tc.Text)
		}
	}
	return sb.String()
}

func instanceArgs(pk domain.PK) map[string]any {
	return map[string]any{"selected_instance": string(pk)}
}

func (b *MCPBackend) InstancesAvailable(ctx context.Context) ([]domain.Instance, error) {
	var list []domain.Instance
	if err := b.call(ctx, ToolInstancesAvailable, nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (b *MCPBackend) InstanceInformation(ctx context.Context, pk domain.PK) (*domain.InstanceInformation, error) {
	var info *domain.InstanceInformation
	if err := b.call(ctx, ToolInstanceInformation, instanceArgs(pk), &info); err != nil {
		return nil, err
	}
	return info, nil
}

func (b *MCPBackend) ActionsInformation(ctx context.Context, pk domain.PK) (*domain.ActionsInformation, error) {
	var info *domain.ActionsInformation
	if err := b.call(ctx, ToolActionsInformation, instanceArgs(pk), &info); err != nil {
		return nil, err
	}
	return info, nil
}

func (b *MCPBackend) SettingsInformation(ctx context.Context, pk domain.PK) (*domain.SettingsInformation, error) {
	var info *domain.SettingsInformation
	if err := b.call(ctx, ToolSettingsInformation, instanceArgs(pk), &info); err != nil {
		return nil, err
	}
	return info, nil
}

func (b *MCPBackend) QueueFunctionInformation(ctx context.Context, pk domain.PK) (*domain.QueueFunctionInformation, error) {
	var info *domain.QueueFunctionInformation
	if err := b.call(ctx, ToolQueueFunctionInformation, instanceArgs(pk), &info); err != nil {
		return nil, err
	}
	return info, nil
}

func (b *MCPBackend) Signal(ctx context.Context, req domain.SignalRequest) error {
	return b.call(ctx, ToolActionsSignal, map[string]any{
		"selected_instance": string(req.Instance),
		"configuration":     req.Configuration,
		"window":            req.Window,
		"shortcuts":         req.Shortcuts,
		"action":            string(req.Action),
	}, nil)
}

func (b *MCPBackend) Kill(ctx context.Context, pk domain.PK) (*domain.KillResponse, error) {
	var resp domain.KillResponse
	if err := b.call(ctx, ToolActionsKill, instanceArgs(pk), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (b *MCPBackend) QueueFunction(ctx context.Context, pk domain.PK, function string, duration int, durationType string) error {
	return b.call(ctx, ToolQueueFunction, map[string]any{
		"selected_instance": string(pk),
		"function":          function,
		"duration":          duration,
		"duration_type":     durationType,
	}, nil)
}

func (b *MCPBackend) FlushQueue(ctx context.Context, pk domain.PK) error {
	return b.call(ctx, ToolQueueFunctionFlush, instanceArgs(pk), nil)
}

func (b *MCPBackend) AddInstance(ctx context.Context) (*domain.Instance, error) {
	var inst domain.Instance
	if err := b.call(ctx, ToolAddInstance, nil, &inst); err != nil {
		return nil, err
	}
	return &inst, nil
}

func (b *MCPBackend) RemoveInstance(ctx context.Context, pk domain.PK) error {
	return b.call(ctx, ToolRemoveInstance, map[string]any{"pk": string(pk)}, nil)
}

func (b *MCPBackend) RenameInstance(ctx context.Context, pk domain.PK, name string) error {
	return b.call(ctx, ToolSaveInstanceName, map[string]any{"pk": string(pk), "name": name}, nil)
}
