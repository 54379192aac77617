package store

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"
)

// Compile-time assertion: *MemStore satisfies Store.
var _ Store = (*MemStore)(nil)

// MemStore implements Store using Go maps. Thread-safe via sync.RWMutex.
type MemStore struct {
	mu       sync.RWMutex
	fns      map[string]FunctionNode
	adts     map[string]AdtNode
	calls    []CallEdge
	accesses []AccessEdge
	navi     map[int]NaviNode
}

// NewMemStore returns an initialized MemStore ready for use.
func NewMemStore() *MemStore {
	return &MemStore{
		fns:  make(map[string]FunctionNode),
		adts: make(map[string]AdtNode),
		navi: make(map[int]NaviNode),
	}
}

// InitSchema is a no-op for the in-memory store.
func (m *MemStore) InitSchema(_ context.Context) error {
	return nil
}

// AddFunction stores a function keyed by name. A later add replaces an
// earlier one, so analyzed records win over callee stubs when added last.
func (m *MemStore) AddFunction(_ context.Context, node FunctionNode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fns[node.Name] = node
	return nil
}

// AddAdt stores an ADT keyed by name.
func (m *MemStore) AddAdt(_ context.Context, node AdtNode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.adts[node.Name] = node
	return nil
}

// AddCall appends a call edge. Both functions must exist.
func (m *MemStore) AddCall(_ context.Context, edge CallEdge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.fns[edge.Caller]; !ok {
		return fmt.Errorf("memstore: call from unknown function %q", edge.Caller)
	}
	if _, ok := m.fns[edge.Callee]; !ok {
		return fmt.Errorf("memstore: call to unknown function %q", edge.Callee)
	}
	edge.Ranks = maps.Clone(edge.Ranks)
	m.calls = append(m.calls, edge)
	return nil
}

// AddAccess appends an access edge. The function and the ADT must exist.
func (m *MemStore) AddAccess(_ context.Context, edge AccessEdge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.fns[edge.Fn]; !ok {
		return fmt.Errorf("memstore: access from unknown function %q", edge.Fn)
	}
	if _, ok := m.adts[edge.Adt]; !ok {
		return fmt.Errorf("memstore: access to unknown adt %q", edge.Adt)
	}
	m.accesses = append(m.accesses, edge)
	return nil
}

// AddNaviNode stores a navigation node keyed by id.
func (m *MemStore) AddNaviNode(_ context.Context, node NaviNode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.navi[node.ID] = node
	return nil
}

// GetFunction returns the function with the given name, or nil if not found.
func (m *MemStore) GetFunction(_ context.Context, name string) (*FunctionNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fn, ok := m.fns[name]
	if !ok {
		return nil, nil
	}
	return &fn, nil
}

// QueryFunctions returns functions matching q sorted by name.
func (m *MemStore) QueryFunctions(_ context.Context, q FunctionQuery) ([]FunctionNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lowerQuery := strings.ToLower(q.Substring)
	var results []FunctionNode
	for _, fn := range m.fns {
		if q.UnsafeOnly && fn.Safe {
			continue
		}
		if strings.Contains(strings.ToLower(fn.Name), lowerQuery) {
			results = append(results, fn)
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })
	if q.Limit > 0 && len(results) > q.Limit {
		results = results[:q.Limit]
	}
	return results, nil
}

// GetPropagation performs a BFS over call edges from name in the given
// direction, up to maxDepth hops. It returns one chain per reachable
// function.
func (m *MemStore) GetPropagation(_ context.Context, name string, direction Direction, maxDepth int) ([]PropagationChain, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if maxDepth <= 0 {
		maxDepth = DefaultDepth
	}

	// BFS state: each entry tracks the path from name to the current node.
	type bfsEntry struct {
		id   string
		path []string
	}

	visited := map[string]bool{name: true}
	queue := []bfsEntry{{id: name, path: []string{name}}}
	var chains []PropagationChain

	for depth := 0; depth < maxDepth && len(queue) > 0; depth++ {
		var nextQueue []bfsEntry
		for _, entry := range queue {
			for _, nb := range m.neighbors(entry.id, direction) {
				if visited[nb] {
					continue
				}
				visited[nb] = true
				newPath := make([]string, len(entry.path), len(entry.path)+1)
				copy(newPath, entry.path)
				newPath = append(newPath, nb)
				chains = append(chains, PropagationChain{
					Nodes:  newPath,
					Depth:  len(newPath) - 1,
					Unsafe: !m.fns[nb].Safe,
				})
				nextQueue = append(nextQueue, bfsEntry{id: nb, path: newPath})
			}
		}
		queue = nextQueue
	}

	return chains, nil
}

// neighbors returns functions reachable from name in one hop.
func (m *MemStore) neighbors(name string, direction Direction) []string {
	var result []string
	for _, e := range m.calls {
		switch direction {
		case DirectionCallees:
			if e.Caller == name {
				result = append(result, e.Callee)
			}
		case DirectionCallers:
			if e.Callee == name {
				result = append(result, e.Caller)
			}
		}
	}
	return result
}

// GetAccessors returns the access edges into adt sorted by function name
// and access.
func (m *MemStore) GetAccessors(_ context.Context, adt string) ([]AccessEdge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []AccessEdge
	for _, e := range m.accesses {
		if e.Adt == adt {
			out = append(out, e)
		}
	}
	sortAccesses(out)
	return out, nil
}

// GetAllCalls returns a copy of all call edges in insertion order.
func (m *MemStore) GetAllCalls(_ context.Context) ([]CallEdge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]CallEdge, len(m.calls))
	for i, e := range m.calls {
		e.Ranks = maps.Clone(e.Ranks)
		out[i] = e
	}
	return out, nil
}

// Stats returns counts of all node and edge types in the graph.
func (m *MemStore) Stats(_ context.Context) (*GraphStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	unsafe := 0
	for _, fn := range m.fns {
		if !fn.Safe {
			unsafe++
		}
	}
	return &GraphStats{
		FunctionCount: len(m.fns),
		UnsafeCount:   unsafe,
		AdtCount:      len(m.adts),
		CallCount:     len(m.calls),
		AccessCount:   len(m.accesses),
		NaviNodeCount: len(m.navi),
	}, nil
}

// Close is a no-op for the in-memory store.
func (m *MemStore) Close() error {
	return nil
}

func sortAccesses(out []AccessEdge) {
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Fn != out[j].Fn {
			return out[i].Fn < out[j].Fn
		}
		return out[i].Access < out[j].Access
	})
}
