package export

import (
	"context"
	"fmt"
	"time"

	"github.com/dusk-indust/upg/internal/store"
)

// GraphExport is the top-level JSON export structure.
type GraphExport struct {
	Unit       string               `json:"unit"`
	ExportedAt string               `json:"exportedAt"`
	Stats      store.GraphStats     `json:"stats"`
	Functions  []store.FunctionNode `json:"functions"`
	Calls      []store.CallEdge     `json:"calls"`
	Exposure   []UnsafeExposure     `json:"exposure,omitempty"`
}

// UnsafeExposure lists the functions that transitively call one unsafe
// function.
type UnsafeExposure struct {
	Unsafe  string   `json:"unsafe"`
	Callers []string `json:"callers"`
}

// ExportGraph builds a GraphExport from a graph store. Every unsafe function
// gets an exposure entry holding its transitive callers up to maxDepth.
func ExportGraph(ctx context.Context, st store.Store, unit string, maxDepth int) (*GraphExport, error) {
	stats, err := st.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	fns, err := st.QueryFunctions(ctx, store.FunctionQuery{})
	if err != nil {
		return nil, fmt.Errorf("query functions: %w", err)
	}
	calls, err := st.GetAllCalls(ctx)
	if err != nil {
		return nil, fmt.Errorf("get calls: %w", err)
	}

	export := &GraphExport{
		Unit:       unit,
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Stats:      *stats,
		Functions:  fns,
		Calls:      calls,
	}

	for _, fn := range fns {
		if fn.Safe {
			continue
		}
		chains, err := st.GetPropagation(ctx, fn.Name, store.DirectionCallers, maxDepth)
		if err != nil {
			return nil, fmt.Errorf("propagation of %s: %w", fn.Name, err)
		}
		if len(chains) == 0 {
			continue
		}
		exp := UnsafeExposure{Unsafe: fn.Name}
		for _, c := range chains {
			exp.Callers = append(exp.Callers, c.Nodes[len(c.Nodes)-1])
		}
		export.Exposure = append(export.Exposure, exp)
	}

	return export, nil
}
