package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/deixis/siphon/internal/history"
	"github.com/deixis/siphon/internal/proc"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// previewLimit caps how much of each stream is inlined in a sip_run
// response. Capture itself is never truncated; sip_inspect returns the rest.
const previewLimit = 4096

type runParams struct {
	Argv       []string          `json:"argv" jsonschema:"the command line: binary (resolved via PATH) followed by its arguments"`
	Dir        string            `json:"dir,omitempty" jsonschema:"working directory for the command. Defaults to the session workspace."`
	Env        map[string]string `json:"env,omitempty" jsonschema:"environment overrides (merged over the configured environment)"`
	InheritEnv *bool             `json:"inherit_env,omitempty" jsonschema:"merge the server's environment into the command's (default true); false passes only the overrides"`
	Stdin      string            `json:"stdin,omitempty" jsonschema:"text fed to the command's standard input; the input is closed after the last byte"`
}

func (h *handler) runHandler(ctx context.Context, req *mcp.CallToolRequest, params runParams) (*mcp.CallToolResult, any, error) {
	if len(params.Argv) == 0 {
		return errorResult("argv is required")
	}

	dir := params.Dir
	if dir == "" {
		dir = h.workdir
	}

	// Configured overrides apply first, per-call overrides win.
	env := make(map[string]string, len(h.cfg.Env)+len(params.Env))
	for k, v := range h.cfg.Env {
		env[k] = v
	}
	for k, v := range params.Env {
		env[k] = v
	}

	inherit := h.cfg.InheritEnv()
	if params.InheritEnv != nil {
		inherit = *params.InheritEnv
	}

	// Never tee here: the server's own stdout carries the MCP protocol.
	cfg := proc.Config{
		Argv:       params.Argv,
		Dir:        dir,
		Env:        env,
		InheritEnv: &inherit,
		// The tool reports the exit code instead of failing the call.
		FailOK: true,
	}
	if params.Stdin != "" {
		cfg.Stdin = strings.NewReader(params.Stdin)
	}

	started := time.Now()
	res, err := h.runner.Run(ctx, cfg)
	if err != nil {
		return errorResult(fmt.Sprintf("run failed: %v", err))
	}

	// Save for sip_inspect / sip_history.
	_ = h.store.Save(history.FromResult(res, cfg, dir, started))

	return textResult(formatRun(res))
}

func formatRun(res *proc.Result) string {
	var b strings.Builder

	if res.ExitCode == 0 {
		fmt.Fprintln(&b, "Status: PASS")
	} else {
		fmt.Fprintf(&b, "Status: FAIL (exit code %d)\n", res.ExitCode)
	}
	fmt.Fprintf(&b, "Run: %s\n", res.RunID)
	fmt.Fprintf(&b, "Duration: %s\n", res.Duration.Round(time.Millisecond))
	fmt.Fprintln(&b)

	writeStream(&b, "Stdout", res.StdoutText(), res.RunID)
	writeStream(&b, "Stderr", res.StderrText(), res.RunID)

	return b.String()
}

func writeStream(b *strings.Builder, name, text, runID string) {
	if text == "" {
		fmt.Fprintf(b, "%s: (empty)\n", name)
		return
	}
	fmt.Fprintf(b, "%s:\n", name)
	if len(text) > previewLimit {
		// Back off to a rune boundary so the preview never ends
		// mid-character.
		cut := previewLimit
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		fmt.Fprintln(b, text[:cut])
		fmt.Fprintf(b, "... %d more bytes; read them with sip_inspect(run_id=%q, stream=%q).\n",
			len(text)-cut, runID, strings.ToLower(name))
	} else {
		fmt.Fprintln(b, strings.TrimRight(text, "\n"))
	}
}
