package mcptools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dusk-indust/upg/internal/driver"
	"github.com/dusk-indust/upg/internal/frontend"
	"github.com/dusk-indust/upg/internal/output"
	"github.com/dusk-indust/upg/internal/store"
)

var errNoGraph = errors.New("no crate analyzed yet; call analyze_crate first")

// OpenFunc returns an empty store for a fresh analysis.
type OpenFunc func() (store.Store, error)

// UPGService holds the propagation graph queried by the MCP tool handlers.
// Each analyze_crate call replaces the graph.
type UPGService struct {
	open OpenFunc
	opts driver.Options

	mu    sync.RWMutex
	store store.Store
	unit  string
}

// NewUPGService creates a UPGService. open is called once per analysis;
// opts supplies the property table, tool namespace and logger.
func NewUPGService(open OpenFunc, opts driver.Options) *UPGService {
	if open == nil {
		open = func() (store.Store, error) { return store.NewMemStore(), nil }
	}
	return &UPGService{open: open, opts: opts}
}

// Close releases the current graph.
func (s *UPGService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store == nil {
		return nil
	}
	err := s.store.Close()
	s.store = nil
	return err
}

func (s *UPGService) logger() *slog.Logger {
	if s.opts.Logger != nil {
		return s.opts.Logger
	}
	return slog.Default()
}

func (s *UPGService) current() (store.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.store == nil {
		return nil, errNoGraph
	}
	return s.store, nil
}

// AnalyzeCrate runs the analysis over a crate and loads the result into a
// fresh graph. Returns graph statistics.
func (s *UPGService) AnalyzeCrate(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AnalyzeCrateInput,
) (*mcp.CallToolResult, AnalyzeCrateOutput, error) {
	if input.CratePath == "" {
		return nil, AnalyzeCrateOutput{}, fmt.Errorf("cratePath is required")
	}
	info, err := os.Stat(input.CratePath)
	if err != nil {
		return nil, AnalyzeCrateOutput{}, fmt.Errorf("cannot access cratePath: %w", err)
	}
	if !info.IsDir() {
		return nil, AnalyzeCrateOutput{}, fmt.Errorf("cratePath is not a directory: %s", input.CratePath)
	}

	src := &frontend.Crate{Dir: input.CratePath, Name: input.Name, Logger: s.opts.Logger}
	unit, err := src.Load(ctx)
	if err != nil {
		return nil, AnalyzeCrateOutput{}, fmt.Errorf("load crate: %w", err)
	}

	opts := s.opts
	opts.Sink = nil
	if input.OutputDir != "" {
		sink, err := output.NewDirSink(input.OutputDir, unit.Name)
		if err != nil {
			return nil, AnalyzeCrateOutput{}, err
		}
		opts.Sink = sink
	}
	res, flow, err := driver.Analyze(ctx, unit, opts)
	if err != nil {
		return nil, AnalyzeCrateOutput{}, fmt.Errorf("analyze: %w", err)
	}

	next, err := s.open()
	if err != nil {
		return nil, AnalyzeCrateOutput{}, fmt.Errorf("open store: %w", err)
	}
	if err := store.Load(ctx, next, res); err != nil {
		_ = next.Close()
		return nil, AnalyzeCrateOutput{}, fmt.Errorf("load graph: %w", err)
	}
	stats, err := next.Stats(ctx)
	if err != nil {
		_ = next.Close()
		return nil, AnalyzeCrateOutput{}, fmt.Errorf("stats: %w", err)
	}

	s.mu.Lock()
	prev := s.store
	s.store, s.unit = next, unit.Name
	s.mu.Unlock()
	if prev != nil {
		if err := prev.Close(); err != nil {
			s.logger().Warn("mcp.close_previous", "err", err)
		}
	}
	s.logger().Info("mcp.analyzed", "unit", unit.Name, "functions", stats.FunctionCount)

	return nil, AnalyzeCrateOutput{
		Unit:     unit.Name,
		Control:  flow.String(),
		BadAttrs: res.BadAttrs,
		Stats:    *stats,
	}, nil
}

// QueryFunctions searches functions by path substring.
func (s *UPGService) QueryFunctions(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input QueryFunctionsInput,
) (*mcp.CallToolResult, QueryFunctionsOutput, error) {
	st, err := s.current()
	if err != nil {
		return nil, QueryFunctionsOutput{}, err
	}
	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}

	fns, err := st.QueryFunctions(ctx, store.FunctionQuery{
		Substring:  input.Query,
		UnsafeOnly: input.UnsafeOnly,
		Limit:      limit,
	})
	if err != nil {
		return nil, QueryFunctionsOutput{}, fmt.Errorf("query functions: %w", err)
	}
	if fns == nil {
		fns = []store.FunctionNode{}
	}
	return nil, QueryFunctionsOutput{Functions: fns, Total: len(fns)}, nil
}

// GetFunction returns one function with its direct callees and callers.
func (s *UPGService) GetFunction(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input GetFunctionInput,
) (*mcp.CallToolResult, GetFunctionOutput, error) {
	if input.Name == "" {
		return nil, GetFunctionOutput{}, fmt.Errorf("name is required")
	}
	st, err := s.current()
	if err != nil {
		return nil, GetFunctionOutput{}, err
	}

	fn, err := st.GetFunction(ctx, input.Name)
	if err != nil {
		return nil, GetFunctionOutput{}, fmt.Errorf("get function: %w", err)
	}
	if fn == nil {
		return nil, GetFunctionOutput{}, fmt.Errorf("function %q not found", input.Name)
	}

	out := GetFunctionOutput{Function: *fn}
	if out.Callees, err = neighbors(ctx, st, input.Name, store.DirectionCallees); err != nil {
		return nil, GetFunctionOutput{}, err
	}
	if out.Callers, err = neighbors(ctx, st, input.Name, store.DirectionCallers); err != nil {
		return nil, GetFunctionOutput{}, err
	}
	return nil, out, nil
}

func neighbors(ctx context.Context, st store.Store, name string, dir store.Direction) ([]string, error) {
	chains, err := st.GetPropagation(ctx, name, dir, 1)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", dir, err)
	}
	out := make([]string, 0, len(chains))
	for _, c := range chains {
		out = append(out, c.Nodes[len(c.Nodes)-1])
	}
	return out, nil
}

// GetPropagation traverses the call graph from a function. Callers shows
// who is exposed to an unsafe function; callees shows what unsafe code a
// function reaches.
func (s *UPGService) GetPropagation(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input GetPropagationInput,
) (*mcp.CallToolResult, GetPropagationOutput, error) {
	if input.Name == "" {
		return nil, GetPropagationOutput{}, fmt.Errorf("name is required")
	}
	st, err := s.current()
	if err != nil {
		return nil, GetPropagationOutput{}, err
	}

	direction := store.DirectionCallers
	switch strings.ToLower(input.Direction) {
	case "", string(store.DirectionCallers):
	case string(store.DirectionCallees):
		direction = store.DirectionCallees
	default:
		return nil, GetPropagationOutput{}, fmt.Errorf("direction must be callers or callees, got %q", input.Direction)
	}

	maxDepth := input.MaxDepth
	if maxDepth <= 0 {
		maxDepth = store.DefaultDepth
	}

	chains, err := st.GetPropagation(ctx, input.Name, direction, maxDepth)
	if err != nil {
		return nil, GetPropagationOutput{}, fmt.Errorf("get propagation: %w", err)
	}
	out := GetPropagationOutput{Chains: chains}
	if out.Chains == nil {
		out.Chains = []store.PropagationChain{}
	}
	for _, c := range chains {
		if c.Unsafe {
			out.Unsafe++
		}
	}
	return nil, out, nil
}

// GetAdtAccessors lists every function touching an ADT and how.
func (s *UPGService) GetAdtAccessors(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input GetAdtAccessorsInput,
) (*mcp.CallToolResult, GetAdtAccessorsOutput, error) {
	if input.Adt == "" {
		return nil, GetAdtAccessorsOutput{}, fmt.Errorf("adt is required")
	}
	st, err := s.current()
	if err != nil {
		return nil, GetAdtAccessorsOutput{}, err
	}

	acc, err := st.GetAccessors(ctx, input.Adt)
	if err != nil {
		return nil, GetAdtAccessorsOutput{}, fmt.Errorf("get accessors: %w", err)
	}
	if acc == nil {
		acc = []store.AccessEdge{}
	}
	return nil, GetAdtAccessorsOutput{Adt: input.Adt, Accessors: acc}, nil
}

// GraphStats returns node and edge counts of the current graph.
func (s *UPGService) GraphStats(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ GraphStatsInput,
) (*mcp.CallToolResult, GraphStatsOutput, error) {
	st, err := s.current()
	if err != nil {
		return nil, GraphStatsOutput{}, err
	}
	stats, err := st.Stats(ctx)
	if err != nil {
		return nil, GraphStatsOutput{}, fmt.Errorf("stats: %w", err)
	}
	return nil, GraphStatsOutput{Stats: *stats}, nil
}
