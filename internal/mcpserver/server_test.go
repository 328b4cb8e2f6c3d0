package mcpserver

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/muninn/internal/extract"
	"github.com/starford/muninn/internal/scan"
	"github.com/starford/muninn/internal/testutil"
)

type nullGateway struct{}

func (nullGateway) Send(context.Context, string) error { return nil }

func testServer(t *testing.T) (*Server, string) {
	t.Helper()

	vaultDir, store := testutil.TestVault(t)
	hist := testutil.TestHistory(t)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	loc := time.FixedZone("UTC+3", 3*3600)
	presets := []extract.Preset{{Name: "finance", Offsets: []string{"-7d", "0m"}}}
	cfg := scan.Config{
		Rules: extract.Rules{
			ReviewKey:      "review_date",
			BaseDateKey:    "due_date",
			PresetKey:      "reminder_preset",
			ReviewTemplate: "Review {filename}",
			PresetTemplate: "{filename} ({offset})",
			InlineTemplate: "Task: {task}",
			Presets:        presets,
			Location:       loc,
		},
		StartHour: 0,
		EndHour:   24,
		Location:  loc,
	}
	scanner := scan.New(store, hist, nullGateway{}, cfg, log)

	srv := New(scanner, store, hist, presets)
	return srv, vaultDir
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go doesn't expose a direct "call tool" test helper, so we call
	// the handler functions directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "list_upcoming":
		result, err = srv.listUpcoming(ctx, req)
	case "list_presets":
		result, err = srv.listPresets(ctx, req)
	case "trigger_scan":
		result, err = srv.triggerScan(ctx, req)
	case "read_note":
		result, err = srv.readNote(ctx, req)
	case "list_notes":
		result, err = srv.listNotes(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestListUpcoming(t *testing.T) {
	srv, vaultDir := testServer(t)
	testutil.WriteNote(t, vaultDir, "taxes.md",
		"---\ndue_date: 2099-12-25\nreminder_preset: finance\n---\n")

	r := callTool(t, srv, "list_upcoming", nil)
	text := resultText(r)
	if !strings.Contains(text, "preset:finance:-7d") {
		t.Errorf("result = %q", text)
	}
}

func TestListUpcomingEmpty(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "list_upcoming", nil)
	if resultText(r) != "no reminders found" {
		t.Errorf("result = %q", resultText(r))
	}
}

func TestListPresets(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "list_presets", nil)
	if !strings.Contains(resultText(r), "finance") {
		t.Errorf("result = %q", resultText(r))
	}
}

func TestTriggerScan(t *testing.T) {
	srv, vaultDir := testServer(t)
	testutil.WriteNote(t, vaultDir, "acme.md", "---\nreview_date: 2020-01-01\n---\n")

	r := callTool(t, srv, "trigger_scan", nil)
	text := resultText(r)
	if !strings.Contains(text, `"delivered": 1`) {
		t.Errorf("result = %q", text)
	}
}

func TestReadNote(t *testing.T) {
	srv, vaultDir := testServer(t)
	testutil.WriteNote(t, vaultDir, "test.md", "# Test\nHello")

	r := callTool(t, srv, "read_note", map[string]interface{}{"path": "test.md"})
	if resultText(r) != "# Test\nHello" {
		t.Errorf("read result = %q", resultText(r))
	}
}

func TestReadNoteMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "read_note", map[string]interface{}{"path": "nope.md"})
	if !r.IsError {
		t.Error("expected error for missing note")
	}
}

func TestListNotes(t *testing.T) {
	srv, vaultDir := testServer(t)
	testutil.WriteNote(t, vaultDir, "a.md", "a")
	testutil.WriteNote(t, vaultDir, "b.md", "b")

	r := callTool(t, srv, "list_notes", map[string]interface{}{})
	text := resultText(r)
	if !strings.Contains(text, "a.md") || !strings.Contains(text, "b.md") {
		t.Errorf("list = %q", text)
	}
}
