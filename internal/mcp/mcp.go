// Package mcp provides the siphon MCP server, registering all tools
// and publishing model instructions.
package mcp

import (
	"context"
	_ "embed"
	"net/url"
	"time"

	"github.com/deixis/siphon"
	"github.com/deixis/siphon/internal/config"
	"github.com/deixis/siphon/internal/history"
	"github.com/deixis/siphon/internal/proc"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

//go:embed instructions.md
var Instructions string

// handler holds shared dependencies for all tool handlers.
type handler struct {
	runner  *proc.Runner
	store   history.Store
	cfg     *config.Config
	workdir string // default working directory for runs
}

// NewServer creates an MCP server with all siphon tools registered.
func NewServer(cfg *config.Config, r *proc.Runner, store history.Store, workdir string) *mcp.Server {
	h := &handler{
		runner:  r,
		store:   store,
		cfg:     cfg,
		workdir: workdir,
	}

	mcpOpts := &mcp.ServerOptions{
		Instructions: Instructions,
		Capabilities: &mcp.ServerCapabilities{
			Tools: &mcp.ToolCapabilities{ListChanged: false},
		},
		InitializedHandler: func(ctx context.Context, req *mcp.InitializedRequest) {
			h.updateWorkdirFromRoots(ctx, req.Session)
		},
	}
	s := mcp.NewServer(&mcp.Implementation{Name: "siphon", Version: siphon.Version}, mcpOpts)

	mcp.AddTool(s, &mcp.Tool{
		Name: "sip_run",
		Description: `Run a command and capture stdout, stderr, and their interleaving.

The command runs to completion; the exit code is reported, never treated as a tool error.
Each run is stored and can be re-read later with sip_inspect, so there is no need to re-run
a command just to see more of its output.`,
	}, h.runHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "sip_inspect",
		Description: `Retrieve the full captured output of a past run.

Use the run_id from a sip_run or sip_history result. Choose the stdout, stderr, or
combined stream (combined preserves arrival order across both).`,
	}, h.inspectHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "sip_history",
		Description: `List recent runs: run_id, command line, exit code, and timing.

Use this to find the run_id of an earlier command for sip_inspect.`,
	}, h.historyHandler)

	return s
}

// updateWorkdirFromRoots queries the client for MCP roots and adopts the
// first file root as the default working directory, reloading config from
// it. Called during session initialization, before any tool calls.
func (h *handler) updateWorkdirFromRoots(ctx context.Context, session *mcp.ServerSession) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	roots, err := session.ListRoots(ctx, &mcp.ListRootsParams{})
	if err != nil {
		return
	}
	if len(roots.Roots) == 0 {
		return
	}

	u, err := url.Parse(roots.Roots[0].URI)
	if err != nil || u.Scheme != "file" {
		return
	}
	workdir := u.Path

	loaded, err := config.Load(workdir)
	if err != nil {
		return
	}

	h.workdir = workdir
	h.cfg = loaded.Config
}

// textResult is a helper to build a text-only tool result.
func textResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil, nil
}

// errorResult is a helper to build an error tool result.
func errorResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}, nil, nil
}
