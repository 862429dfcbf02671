package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jaakkos/titandash/internal/dispatch"
	"github.com/jaakkos/titandash/internal/domain"
)

var discard = log.New(io.Discard, "", 0)

type recordedCalls struct {
	mu   sync.Mutex
	args map[string]map[string]any
}

func (r *recordedCalls) record(tool string, args map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.args[tool] = args
}

func (r *recordedCalls) get(tool string) map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.args[tool]
}

// testBackend serves a fake bot backend in process.
func testBackend(t *testing.T) (*MCPBackend, *recordedCalls) {
	t.Helper()
	calls := &recordedCalls{args: make(map[string]map[string]any)}
	srv := server.NewMCPServer("titandash-test", "1.0.0")

	text := func(tool, body string) {
		srv.AddTool(mcp.NewTool(tool), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			calls.record(tool, req.GetArguments())
			return mcp.NewToolResultText(body), nil
		})
	}
	text(ToolInstancesAvailable, `[{"pk": 1, "name": "Main", "state": "running"}, {"pk": 2, "name": "Alt", "state": "stopped"}]`)
	text(ToolActionsKill, `{"status": "success"}`)
	text(ToolActionsSignal, ``)
	text(ToolAddInstance, `{"pk": 3, "name": "Bot Instance 3", "state": "stopped"}`)
	text(ToolQueueFunctionInformation, `null`)

	srv.AddTool(mcp.NewTool(ToolInstanceInformation, mcp.WithString("selected_instance", mcp.Required())),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			calls.record(ToolInstanceInformation, req.GetArguments())
			pk, _ := req.GetArguments()["selected_instance"].(string)
			return mcp.NewToolResultText(fmt.Sprintf(
				`{"pk": %q, "name": "Main", "state": "running", "current_stage": {"stage": 120, "diff": 3, "percent": "4%%"}, "started": "bogus"}`, pk)), nil
		})
	srv.AddTool(mcp.NewTool(ToolActionsInformation), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultError("instance does not exist"), nil
	})

	c, err := client.NewInProcessClient(srv)
	if err != nil {
		t.Fatalf("NewInProcessClient: %v", err)
	}
	b := NewMCPBackend(c, discard, 5*time.Second)
	if err := b.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b, calls
}

func TestMCPBackendReads(t *testing.T) {
	b, calls := testBackend(t)
	ctx := context.Background()

	list, err := b.InstancesAvailable(ctx)
	if err != nil {
		t.Fatalf("InstancesAvailable: %v", err)
	}
	if len(list) != 2 || list[0].PK != "1" || list[1].State != domain.StateStopped {
		t.Errorf("instances = %+v", list)
	}

	info, err := b.InstanceInformation(ctx, "1")
	if err != nil {
		t.Fatalf("InstanceInformation: %v", err)
	}
	if info == nil || info.Name != "Main" || info.CurrentStage == nil || info.CurrentStage.Stage != "120" {
		t.Errorf("info = %+v", info)
	}
	if info != nil && info.Started != nil {
		t.Errorf("malformed started should be dropped, got %+v", info.Started)
	}
	if got := calls.get(ToolInstanceInformation)["selected_instance"]; got != "1" {
		t.Errorf("selected_instance argument = %v", got)
	}

	q, err := b.QueueFunctionInformation(ctx, "1")
	if err != nil || q != nil {
		t.Errorf("QueueFunctionInformation(null) = %+v, %v", q, err)
	}
}

func TestMCPBackendToolError(t *testing.T) {
	b, _ := testBackend(t)
	_, err := b.ActionsInformation(context.Background(), "1")
	if !errors.Is(err, ErrToolFailed) {
		t.Errorf("ActionsInformation error = %v, want ErrToolFailed", err)
	}
}

func TestMCPBackendCommands(t *testing.T) {
	b, calls := testBackend(t)
	ctx := context.Background()

	err := b.Signal(ctx, domain.SignalRequest{Instance: "1", Configuration: "5", Window: "66", Shortcuts: true, Action: domain.ActionPlay})
	if err != nil {
		t.Fatalf("Signal: %v", err)
	}
	args := calls.get(ToolActionsSignal)
	if args["action"] != "play" || args["configuration"] != "5" || args["shortcuts"] != true {
		t.Errorf("signal args = %v", args)
	}

	resp, err := b.Kill(ctx, "1")
	if err != nil || resp.Status != "success" {
		t.Errorf("Kill = %+v, %v", resp, err)
	}

	inst, err := b.AddInstance(ctx)
	if err != nil || inst.PK != "3" {
		t.Errorf("AddInstance = %+v, %v", inst, err)
	}

	if err := b.FlushQueue(ctx, "1"); err == nil {
		t.Error("FlushQueue against a backend without the tool should fail")
	}
}

func TestMCPBackendNotifications(t *testing.T) {
	b := &MCPBackend{logger: discard}
	var got []dispatch.Event
	collect := func(ev dispatch.Event) { got = append(got, ev) }

	b.handleNotification(mcp.JSONRPCNotification{
		JSONRPC: mcp.JSONRPC_VERSION,
		Notification: mcp.Notification{
			Method: "notifications/base_instance_started",
			Params: mcp.NotificationParams{AdditionalFields: map[string]any{"args": []any{"3"}}},
		},
	}, collect)
	b.handleNotification(mcp.JSONRPCNotification{
		JSONRPC:      mcp.JSONRPC_VERSION,
		Notification: mcp.Notification{Method: "notifications/tools/list_changed"},
	}, collect)

	if len(got) != 1 {
		t.Fatalf("events = %+v, want one", got)
	}
	if got[0].Kind != dispatch.KindInstanceStarted || got[0].InstanceID != "3" {
		t.Errorf("event = %+v", got[0])
	}
}
