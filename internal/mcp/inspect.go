package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/deixis/siphon/internal/history"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type inspectParams struct {
	RunID  string `json:"run_id" jsonschema:"the run ID from a sip_run or sip_history result"`
	Stream string `json:"stream,omitempty" jsonschema:"which captured stream to return: stdout, stderr, or combined (default)"`
}

func (h *handler) inspectHandler(ctx context.Context, req *mcp.CallToolRequest, params inspectParams) (*mcp.CallToolResult, any, error) {
	if params.RunID == "" {
		return errorResult("run_id is required")
	}
	switch params.Stream {
	case "", "stdout", "stderr", "combined":
	default:
		return errorResult(fmt.Sprintf("unknown stream %q: use stdout, stderr, or combined", params.Stream))
	}

	record, err := h.store.Load(params.RunID)
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to load run %s: %v", params.RunID, err))
	}

	stream := params.Stream
	if stream == "" {
		stream = "combined"
	}
	return textResult(formatInspect(record, stream))
}

func formatInspect(record *history.Record, stream string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Run: %s\n", record.ID)
	fmt.Fprintf(&b, "Command: %s\n", strings.Join(record.Argv, " "))
	fmt.Fprintf(&b, "Dir: %s\n", record.Dir)
	fmt.Fprintf(&b, "Exit: %d\n", record.ExitCode)
	fmt.Fprintln(&b)

	text := record.Stream(stream)
	if text == "" {
		fmt.Fprintf(&b, "%s: (empty)\n", stream)
	} else {
		fmt.Fprintf(&b, "%s:\n%s", stream, text)
		if !strings.HasSuffix(text, "\n") {
			fmt.Fprintln(&b)
		}
	}
	return b.String()
}

type historyParams struct{}

func (h *handler) historyHandler(ctx context.Context, req *mcp.CallToolRequest, _ historyParams) (*mcp.CallToolResult, any, error) {
	records, err := h.store.List()
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to list runs: %v", err))
	}
	if len(records) == 0 {
		return textResult("No runs recorded yet.")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Runs (%d, newest first):\n", len(records))
	for _, r := range records {
		fmt.Fprintf(&b, "  %s  exit %d  %s  %s\n",
			r.ID, r.ExitCode, r.StartedAt.Format(time.RFC3339), strings.Join(r.Argv, " "))
	}
	fmt.Fprintf(&b, "\nInspect a run with sip_inspect(run_id=\"<id>\").\n")
	return textResult(b.String())
}
