// Command siphon runs external commands and captures their output.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/deixis/siphon"
	"github.com/deixis/siphon/internal/config"
	"github.com/deixis/siphon/internal/history"
	sipmcp "github.com/deixis/siphon/internal/mcp"
	"github.com/deixis/siphon/internal/proc"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("siphon: ")

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "run":
		err = runMain(args)
	case "mcp":
		err = mcpMain(args)
	case "version":
		fmt.Println(siphon.Version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "siphon: unknown command %q\n", cmd)
		usage()
		os.Exit(2)
	}

	if err != nil {
		var exitErr *proc.ExitError
		if errors.As(err, &exitErr) {
			// Child failed; mirror its exit code without extra noise.
			os.Exit(exitErr.Result.ExitCode)
		}
		log.Fatal(err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: siphon <command> [flags] [args]

Commands:
  run         Run a command, capturing and (by default) teeing its output
  mcp         Start the MCP server
  version     Print the version
  help        Show this help

Use "siphon <command> -h" for command-specific flags.`)
}

// --- run ---

// envFlag collects repeated -env KEY=VALUE flags.
type envFlag map[string]string

func (e envFlag) String() string { return fmt.Sprintf("%v", map[string]string(e)) }

func (e envFlag) Set(v string) error {
	k, val, ok := strings.Cut(v, "=")
	if !ok || k == "" {
		return fmt.Errorf("expected KEY=VALUE, got %q", v)
	}
	e[k] = val
	return nil
}

func runMain(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	dirFlag := fs.String("dir", "", "working directory (default: current directory)")
	noInherit := fs.Bool("no-inherit-env", false, "pass only -env overrides, not the parent environment")
	stdinFlag := fs.Bool("stdin", false, "feed siphon's standard input to the command")
	failOK := fs.Bool("fail-ok", false, "exit 0 even when the command exits non-zero")
	quiet := fs.Bool("quiet", false, "capture only, do not tee output")
	jsonFlag := fs.Bool("json", false, "print the captured result as JSON (implies -quiet)")
	env := envFlag{}
	fs.Var(env, "env", "environment override KEY=VALUE (repeatable)")
	_ = fs.Parse(args)

	argv := fs.Args()
	if len(argv) == 0 {
		return fmt.Errorf("run: no command given")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("determining working directory: %w", err)
	}
	loaded, err := config.Load(cwd)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg := loaded.Config

	dir := *dirFlag
	if dir == "" {
		dir = cfg.Workdir
	}

	// Configured overrides first, command-line overrides win.
	merged := make(map[string]string, len(cfg.Env)+len(env))
	for k, v := range cfg.Env {
		merged[k] = v
	}
	for k, v := range env {
		merged[k] = v
	}

	inherit := cfg.InheritEnv() && !*noInherit
	runCfg := proc.Config{
		Argv:       argv,
		Dir:        dir,
		Env:        merged,
		InheritEnv: &inherit,
		Tee:        teeEnabled(cfg, *quiet, *jsonFlag),
		FailOK:     *failOK,
	}
	if *stdinFlag {
		runCfg.Stdin = os.Stdin
	}

	var r proc.Runner
	res, err := r.Run(ctx, runCfg)
	if err != nil {
		var exitErr *proc.ExitError
		if errors.As(err, &exitErr) && *jsonFlag {
			// Still print the captured result before mirroring the exit code.
			if printErr := printJSON(exitErr.Result); printErr != nil {
				return printErr
			}
		}
		return err
	}

	if *jsonFlag {
		return printJSON(res)
	}
	return nil
}

// teeEnabled decides whether a CLI run forwards output live. The .siphon
// tee setting provides the default; -quiet disables it, and -json keeps
// stdout clean for the JSON document.
func teeEnabled(cfg *config.Config, quiet, jsonOut bool) bool {
	return cfg.Tee() && !quiet && !jsonOut
}

func printJSON(res *proc.Result) error {
	out := struct {
		RunID    string `json:"run_id"`
		ExitCode int    `json:"exit_code"`
		Stdout   string `json:"stdout"`
		Stderr   string `json:"stderr"`
		Combined string `json:"combined"`
		Duration string `json:"duration"`
	}{
		RunID:    res.RunID,
		ExitCode: res.ExitCode,
		Stdout:   res.StdoutText(),
		Stderr:   res.StderrText(),
		Combined: res.CombinedText(),
		Duration: res.Duration.Round(time.Millisecond).String(),
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// --- mcp ---

func mcpMain(args []string) error {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	instructions := fs.Bool("instructions", false, "print model instructions and exit")
	httpAddr := fs.String("http", "", "start HTTP server on address (e.g. :9090)")
	_ = fs.Parse(args)

	if *instructions {
		fmt.Print(sipmcp.Instructions)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return serve(ctx, *httpAddr)
}

func serve(ctx context.Context, httpAddr string) error {
	workdir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("determining working directory: %w", err)
	}

	loaded, err := config.Load(workdir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg := loaded.Config

	if cfg.Workdir != "" {
		workdir = cfg.Workdir
	}

	disk := history.NewDiskStore()
	store := history.NewLRUStore(cfg.HistorySize(), disk)

	server := sipmcp.NewServer(cfg, &proc.Runner{}, store, workdir)

	if httpAddr != "" {
		return serveHTTP(ctx, server, httpAddr)
	}
	return server.Run(ctx, &mcpsdk.StdioTransport{})
}

func serveHTTP(ctx context.Context, server *mcpsdk.Server, addr string) error {
	handler := mcpsdk.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcpsdk.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	go func() {
		<-ctx.Done()
		_ = httpServer.Close()
	}()

	log.Printf("listening on %s", addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}
