package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/dusk-indust/upg/internal/config"
)

// CLI flags parsed from command line.
type cliFlags struct {
	ConfigDir string
	OutputDir string
	Store     string
	Verbose   bool
	ServeMCP  bool
	HTTPAddr  string
	Version   bool
}

// version is set by goreleaser at build time.
var version = "dev"

const usage = `usage: upg [flags] <command> [crate-dir]

commands:
  analyze   analyze a crate and write caller, adt and navi records (default)
  diagram   print the call graph as a Mermaid diagram
  export    print the call graph and unsafe exposure as JSON

flags:
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var flags cliFlags

	fs := flag.NewFlagSet("upg", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}
	fs.StringVar(&flags.ConfigDir, "config-dir", ".", "directory holding upg.yml and .env")
	fs.StringVar(&flags.OutputDir, "output-dir", "", "base directory for records (overrides UPG_DIR)")
	fs.StringVar(&flags.Store, "store", "", "graph backend: memory or kuzu (overrides UPG_STORE)")
	fs.BoolVar(&flags.Verbose, "verbose", false, "enable debug logging")
	fs.BoolVar(&flags.ServeMCP, "serve-mcp", false, "run as MCP server on stdio")
	fs.StringVar(&flags.HTTPAddr, "http", "", "with -serve-mcp, listen on this address instead of stdio")
	fs.BoolVar(&flags.Version, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if flags.Version {
		fmt.Fprintln(stdout, version)
		return nil
	}

	cfg, err := config.Load(flags.ConfigDir)
	if err != nil {
		return err
	}
	if flags.OutputDir != "" {
		cfg.OutputDir = flags.OutputDir
	}
	if flags.Store != "" {
		cfg.Store = flags.Store
	}
	if flags.Verbose {
		cfg.Verbose = true
	}

	log := newLogger(stderr, cfg.Verbose)
	slog.SetDefault(log)

	if flags.ServeMCP {
		return runServe(ctx, cfg, log, flags.HTTPAddr)
	}

	cmd, crate := "analyze", "."
	rest := fs.Args()
	if len(rest) > 0 {
		cmd, rest = rest[0], rest[1:]
	}
	if len(rest) > 0 {
		crate = rest[0]
	}

	switch cmd {
	case "analyze":
		return runAnalyze(ctx, cfg, log, crate, stdout, stderr)
	case "diagram":
		return runDiagram(ctx, cfg, log, crate, stdout)
	case "export":
		return runExport(ctx, cfg, log, crate, stdout)
	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// newLogger installs a text handler on w; verbose lowers the level to Debug.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
