// Package driver runs the analysis of one unit end to end: it parses the
// safety annotations, summarizes every function, aggregates the ADTs,
// resolves privileges, builds the navigation tree and writes the records.
package driver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dusk-indust/upg/internal/analysis"
	"github.com/dusk-indust/upg/internal/ir"
	"github.com/dusk-indust/upg/internal/navi"
	"github.com/dusk-indust/upg/internal/output"
	"github.com/dusk-indust/upg/internal/safety"
)

// ControlFlow tells the host whether to keep compiling after a unit.
type ControlFlow int

const (
	// Stop means the unit is self-contained.
	Stop ControlFlow = iota
	// Continue means dependent units must still be compiled.
	Continue
)

func (c ControlFlow) String() string {
	if c == Continue {
		return "Continue"
	}
	return "Stop"
}

// Options configures one run.
type Options struct {
	// Tool is the attribute namespace, "rapx" when empty.
	Tool string
	// Spec is the property table. Nil loads the built-in table.
	Spec safety.Spec
	// Sink receives the records. Nil skips writing.
	Sink      output.Sink
	Continue  bool
	CacheSize int
	Logger    *slog.Logger
}

func (o *Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// Result is everything one run produced.
type Result struct {
	Unit       *ir.Unit
	Fns        *analysis.OrderedMap[*ir.FnDef, *analysis.FnInfo]
	Adts       *analysis.OrderedMap[*ir.AdtDef, *analysis.AdtInfo]
	Privileges *analysis.Privileges
	Navi       *navi.Navigation
	Spec       safety.Spec
	// Props holds the parsed annotations of every function that has any,
	// callees without a body included.
	Props map[*ir.FnDef][]safety.Properties
	// BadAttrs counts annotations dropped as malformed.
	BadAttrs int

	Callers  []*output.Caller
	Records  []*output.Adt
	Manifest *output.Manifest
}

// Tags returns the parsed annotations of fn.
func (r *Result) Tags(fn *ir.FnDef) []safety.Properties { return r.Props[fn] }

// Run loads a unit from src and analyzes it.
func Run(ctx context.Context, src ir.Source, opts Options) (*Result, ControlFlow, error) {
	unit, err := src.Load(ctx)
	if err != nil {
		return nil, Stop, fmt.Errorf("load unit: %w", err)
	}
	return Analyze(ctx, unit, opts)
}

// Analyze runs every stage over unit. Malformed annotations are logged and
// skipped; an empty property table or an unknown property aborts.
func Analyze(ctx context.Context, unit *ir.Unit, opts Options) (*Result, ControlFlow, error) {
	log := opts.logger().With("unit", unit.Name)
	start := time.Now()

	spec := opts.Spec
	if spec == nil {
		var err error
		if spec, err = safety.LoadSpec(""); err != nil {
			return nil, Stop, err
		}
	}
	tool := opts.Tool
	if tool == "" {
		tool = "rapx"
	}
	parser, err := safety.NewParser(tool, spec)
	if err != nil {
		return nil, Stop, err
	}

	res := &Result{Unit: unit, Spec: spec, Props: map[*ir.FnDef][]safety.Properties{}}
	if err := res.parseAnnotations(parser, log); err != nil {
		return nil, Stop, err
	}

	res.Fns = analysis.AnalyzeFns(unit.Fns, res.Tags)
	log.Info("driver.fns", "analyzed", res.Fns.Len(), "total", len(unit.Fns))

	cache := analysis.NewAdtCache(opts.CacheSize)
	agg := &analysis.Aggregator{Cache: cache, Logger: log}
	res.Adts = agg.Aggregate(res.Fns)
	res.Privileges = analysis.ResolvePrivileges(res.Adts, res.Fns)
	res.Navi = navi.Build(unit, log)
	log.Info("driver.adts", "adts", res.Adts.Len(), "navi_nodes", res.Navi.Tree.Len())

	asm := &output.Assembler{
		Unit:  unit.Name,
		Navi:  res.Navi,
		Spec:  spec,
		Tags:  res.Tags,
		Cache: cache,
	}
	res.Fns.Each(func(_ *ir.FnDef, info *analysis.FnInfo) {
		res.Callers = append(res.Callers, asm.Caller(info, res.Privileges))
	})
	res.Adts.Each(func(_ *ir.AdtDef, info *analysis.AdtInfo) {
		res.Records = append(res.Records, asm.Adt(info))
	})

	if opts.Sink != nil {
		if err := res.write(ctx, opts.Sink, log); err != nil {
			return nil, Stop, err
		}
	}

	flow := Stop
	if opts.Continue {
		flow = Continue
	}
	log.Info("driver.done", "callers", len(res.Callers), "adt_records", len(res.Records),
		"bad_attrs", res.BadAttrs, "flow", flow.String(), "elapsed", time.Since(start).String())
	return res, flow, nil
}

// parseAnnotations parses the attributes of every function and of every
// callee reached from a body.
func (r *Result) parseAnnotations(p *safety.Parser, log *slog.Logger) error {
	seen := map[*ir.FnDef]bool{}
	parse := func(fn *ir.FnDef) error {
		if seen[fn] {
			return nil
		}
		seen[fn] = true
		if len(fn.Attrs) == 0 {
			return nil
		}
		props, bad, err := p.ParseAll(fn.Attrs)
		if err != nil {
			return fmt.Errorf("%s: %w", fn.Name, err)
		}
		for _, e := range bad {
			log.Warn("safety.parse_error", "fn", fn.Name, "span", fn.Span, "err", e)
		}
		r.BadAttrs += len(bad)
		if len(props) > 0 {
			r.Props[fn] = props
		}
		return nil
	}

	for _, fn := range r.Unit.Fns {
		if err := parse(fn); err != nil {
			return err
		}
		if fn.Body == nil {
			continue
		}
		for _, callee := range fn.Body.Callees {
			if err := parse(callee); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Result) write(ctx context.Context, sink output.Sink, log *slog.Logger) error {
	w := output.NewWriter(sink, log)
	for _, rec := range r.Callers {
		if err := w.Caller(ctx, rec); err != nil {
			return err
		}
	}
	for _, rec := range r.Records {
		if err := w.Adt(ctx, rec); err != nil {
			return err
		}
	}
	if err := w.Navi(ctx, r.Navi); err != nil {
		return err
	}
	r.Manifest = w.Manifest
	return nil
}
