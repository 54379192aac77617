package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"

	"github.com/dusk-indust/upg/internal/config"
	"github.com/dusk-indust/upg/internal/driver"
	"github.com/dusk-indust/upg/internal/frontend"
	"github.com/dusk-indust/upg/internal/ir"
	"github.com/dusk-indust/upg/internal/output"
	"github.com/dusk-indust/upg/internal/safety"
	"github.com/dusk-indust/upg/internal/store"
)

// sinkMode selects where records go when no directory or bucket is set.
type sinkMode int

const (
	sinkStdout sinkMode = iota // print records
	sinkNone                   // drop records
)

// pipeline is one analysis loaded into a graph store.
type pipeline struct {
	res   *driver.Result
	flow  driver.ControlFlow
	store store.Store
}

func (p *pipeline) Close() error { return p.store.Close() }

// driverOptions builds the run options shared by the CLI and the MCP server.
func driverOptions(cfg *config.ProjectConfig, log *slog.Logger) (driver.Options, error) {
	spec, err := safety.LoadSpec(cfg.SafetySpec)
	if err != nil {
		return driver.Options{}, err
	}
	return driver.Options{
		Tool:      cfg.Tool,
		Spec:      spec,
		Continue:  cfg.Continue,
		CacheSize: cfg.CacheSize,
		Logger:    log,
	}, nil
}

// openStore returns a function opening an empty graph store of the
// configured backend. A file-backed kuzu graph is removed first so each
// analysis starts clean.
func openStore(cfg *config.ProjectConfig) func() (store.Store, error) {
	return func() (store.Store, error) {
		if cfg.Store == config.StoreKuzu && cfg.KuzuPath != "" {
			if err := os.RemoveAll(cfg.KuzuPath); err != nil {
				return nil, fmt.Errorf("remove stale graph: %w", err)
			}
		}
		return store.Open(cfg.Store, cfg.KuzuPath)
	}
}

// newSink picks the record destination: the S3 bucket when configured,
// then the output directory, then mode. Printed records go to stdout.
func newSink(cfg *config.ProjectConfig, unit string, mode sinkMode, stdout io.Writer) (output.Sink, error) {
	switch {
	case cfg.S3.Enabled():
		return output.NewS3Sink(output.S3Config{
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Bucket:    cfg.S3.Bucket,
			UseSSL:    cfg.S3.UseSSL,
		}, unit)
	case cfg.OutputDir != "":
		return output.NewDirSink(cfg.OutputDir, unit)
	case mode == sinkStdout:
		return output.NewStreamSink(stdout), nil
	default:
		return nil, nil
	}
}

// analyze loads the crate at dir, runs the analysis, writes the records and
// loads the result into a graph store. The caller closes the pipeline.
func analyze(ctx context.Context, cfg *config.ProjectConfig, log *slog.Logger, dir string, mode sinkMode, stdout io.Writer) (*pipeline, error) {
	opts, err := driverOptions(cfg, log)
	if err != nil {
		return nil, err
	}

	src := &frontend.Crate{Dir: dir, Concurrency: cfg.Concurrency, Logger: log}
	unit, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load crate: %w", err)
	}
	if opts.Sink, err = newSink(cfg, unit.Name, mode, stdout); err != nil {
		return nil, err
	}

	res, flow, err := driver.Analyze(ctx, unit, opts)
	if err != nil {
		return nil, err
	}

	st, err := openStore(cfg)()
	if err != nil {
		return nil, err
	}
	if err := store.Load(ctx, st, res); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("load graph: %w", err)
	}
	return &pipeline{res: res, flow: flow, store: st}, nil
}

func runAnalyze(ctx context.Context, cfg *config.ProjectConfig, log *slog.Logger, dir string, stdout, stderr io.Writer) error {
	p, err := analyze(ctx, cfg, log, dir, sinkStdout, stdout)
	if err != nil {
		return err
	}
	defer p.Close()

	stats, err := p.store.Stats(ctx)
	if err != nil {
		return err
	}
	printSummary(stderr, p, stats)
	return nil
}

// printSummary writes a short colored report of one run.
func printSummary(w io.Writer, p *pipeline, stats *store.GraphStats) {
	bold := color.New(color.Bold)
	warn := color.New(color.FgYellow)
	bad := color.New(color.FgRed, color.Bold)
	good := color.New(color.FgGreen)

	bold.Fprintf(w, "%s\n", p.res.Unit.Name)
	fmt.Fprintf(w, "  functions   %d analyzed, %d in graph\n", p.res.Fns.Len(), stats.FunctionCount)

	unsafeFns := 0
	for _, fn := range p.res.Unit.Fns {
		if !fn.Safe() {
			unsafeFns++
		}
	}
	fmt.Fprint(w, "  unsafe      ")
	if stats.UnsafeCount > 0 {
		bad.Fprintf(w, "%d", stats.UnsafeCount)
	} else {
		good.Fprint(w, "0")
	}
	fmt.Fprintf(w, " (%d defined here)\n", unsafeFns)

	fmt.Fprintf(w, "  types       %d (%d local)\n", stats.AdtCount, localAdts(p.res.Unit))
	fmt.Fprintf(w, "  edges       %d calls, %d accesses\n", stats.CallCount, stats.AccessCount)
	if p.res.BadAttrs > 0 {
		warn.Fprintf(w, "  skipped     %d malformed annotations\n", p.res.BadAttrs)
	}
	if p.res.Manifest != nil {
		fmt.Fprintf(w, "  records     %d\n", len(p.res.Manifest.Entries()))
	}
	fmt.Fprintf(w, "  control     %s\n", p.flow)
}

func localAdts(unit *ir.Unit) int {
	n := 0
	for _, def := range unit.Adts {
		if def.Local {
			n++
		}
	}
	return n
}
