// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Muninn's reminder tools for LLM integration via stdio
// transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/muninn/internal/apperr"
	"github.com/starford/muninn/internal/extract"
	"github.com/starford/muninn/internal/history"
	"github.com/starford/muninn/internal/scan"
	"github.com/starford/muninn/internal/storage"
)

// Server wraps the MCP server with Muninn tools.
type Server struct {
	mcp     *server.MCPServer
	scanner *scan.Scanner
	store   storage.Provider
	hist    history.Store
	presets []extract.Preset
}

// New creates a new MCP server with all Muninn tools registered.
func New(scanner *scan.Scanner, store storage.Provider, hist history.Store, presets []extract.Preset) *Server {
	s := &Server{scanner: scanner, store: store, hist: hist, presets: presets}

	s.mcp = server.NewMCPServer(
		"Muninn",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_upcoming",
		mcp.WithDescription("List every reminder candidate in the vault, sorted by trigger instant, "+
			"with its due and already-delivered state."),
	), s.listUpcoming)

	s.mcp.AddTool(mcp.NewTool("list_presets",
		mcp.WithDescription("List the configured reminder presets with their offset tokens."),
	), s.listPresets)

	s.mcp.AddTool(mcp.NewTool("trigger_scan",
		mcp.WithDescription("Run one reminder scan pass now and return its summary. "+
			"Respects the active-hour window and never delivers a reminder twice."),
	), s.triggerScan)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read the full content of a Markdown note from the vault."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the note (e.g. folder/note.md)")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List all notes or notes in a specific folder."),
		mcp.WithString("folder", mcp.Description("Optional folder to list (empty for all)")),
	), s.listNotes)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) listUpcoming(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ups, err := s.scanner.Upcoming(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(ups) == 0 {
		return mcp.NewToolResultText("no reminders found"), nil
	}
	out, _ := json.MarshalIndent(ups, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listPresets(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if len(s.presets) == 0 {
		return mcp.NewToolResultText("no presets configured"), nil
	}
	out, _ := json.MarshalIndent(s.presets, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) triggerScan(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.scanner.Scan(ctx)
	if err != nil {
		if errors.Is(err, apperr.ErrScanInProgress) {
			return mcp.NewToolResultError("scan already in progress"), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(res, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := s.store.Read(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	folder := ""
	if f, err := req.RequireString("folder"); err == nil {
		folder = f
	}

	metas, err := s.store.List(folder)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var paths []string
	for _, m := range metas {
		paths = append(paths, m.Path)
	}
	if len(paths) == 0 {
		return mcp.NewToolResultText("no notes found"), nil
	}
	return mcp.NewToolResultText(strings.Join(paths, "\n")), nil
}
