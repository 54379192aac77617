//go:build cgo

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	kuzu "github.com/kuzudb/go-kuzu"
)

// KuzuStore implements the Store interface using KuzuDB as the graph backend.
// It requires CGO because the go-kuzu driver wraps KuzuDB's C library.
type KuzuStore struct {
	db   *kuzu.Database
	conn *kuzu.Connection
}

// Compile-time check that KuzuStore satisfies Store.
var _ Store = (*KuzuStore)(nil)

// NewKuzuStore creates a KuzuStore backed by an in-memory KuzuDB instance.
func NewKuzuStore() (*KuzuStore, error) {
	return openKuzu(":memory:")
}

// NewKuzuFileStore creates a KuzuStore backed by a file-based KuzuDB at the
// given path, so a propagation graph survives across sessions. KuzuDB
// creates the leaf itself.
func NewKuzuFileStore(dbPath string) (*KuzuStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("kuzu: create parent directory: %w", err)
	}
	return openKuzu(dbPath)
}

func openKuzu(path string) (*KuzuStore, error) {
	cfg := kuzu.DefaultSystemConfig()
	db, err := kuzu.OpenDatabase(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("kuzu: open database: %w", err)
	}
	conn, err := kuzu.OpenConnection(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("kuzu: open connection: %w", err)
	}
	return &KuzuStore{db: db, conn: conn}, nil
}

// Close releases the KuzuDB connection and database.
func (s *KuzuStore) Close() error {
	if s.conn != nil {
		s.conn.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
	return nil
}

// ---------- Schema setup ----------

// ddlStatements defines the Cypher DDL executed by InitSchema.
// Order matters: node tables must precede relationship tables.
var ddlStatements = []string{
	`CREATE NODE TABLE IF NOT EXISTS Function(
		name STRING,
		kind STRING,
		safe BOOLEAN,
		analyzed BOOLEAN,
		path STRING,
		span STRING,
		doc STRING,
		tags STRING,
		PRIMARY KEY(name)
	)`,
	`CREATE NODE TABLE IF NOT EXISTS Adt(
		name STRING,
		kind STRING,
		local BOOLEAN,
		span STRING,
		doc STRING,
		PRIMARY KEY(name)
	)`,
	`CREATE NODE TABLE IF NOT EXISTS NaviNode(
		id INT64,
		parent INT64,
		kind STRING,
		name STRING,
		PRIMARY KEY(id)
	)`,
	`CREATE REL TABLE IF NOT EXISTS CALLS(FROM Function TO Function, ranks STRING)`,
	`CREATE REL TABLE IF NOT EXISTS ACCESSES(FROM Function TO Adt, access STRING, as_argument BOOLEAN)`,
}

// InitSchema creates all node and relationship tables if they do not exist.
func (s *KuzuStore) InitSchema(_ context.Context) error {
	for _, stmt := range ddlStatements {
		res, err := s.conn.Query(stmt)
		if err != nil {
			return fmt.Errorf("kuzu: init schema: %w", err)
		}
		res.Close()
	}
	return nil
}

// ---------- Write operations ----------

// AddFunction upserts a Function node.
func (s *KuzuStore) AddFunction(_ context.Context, node FunctionNode) error {
	return s.exec(
		`MERGE (f:Function {name: $name})
		 SET f.kind = $kind, f.safe = $safe, f.analyzed = $analyzed,
		     f.path = $path, f.span = $span, f.doc = $doc, f.tags = $tags`,
		map[string]any{
			"name":     node.Name,
			"kind":     string(node.Kind),
			"safe":     node.Safe,
			"analyzed": node.Analyzed,
			"path":     string(node.Path),
			"span":     node.Span,
			"doc":      node.Doc,
			"tags":     strings.Join(node.Tags, ","),
		},
	)
}

// AddAdt upserts an Adt node.
func (s *KuzuStore) AddAdt(_ context.Context, node AdtNode) error {
	return s.exec(
		`MERGE (a:Adt {name: $name})
		 SET a.kind = $kind, a.local = $local, a.span = $span, a.doc = $doc`,
		map[string]any{
			"name":  node.Name,
			"kind":  node.Kind,
			"local": node.Local,
			"span":  node.Span,
			"doc":   node.Doc,
		},
	)
}

// AddCall inserts a CALLS edge. Ranks are stored as a JSON object.
func (s *KuzuStore) AddCall(_ context.Context, edge CallEdge) error {
	if err := s.requireNode("Function", edge.Caller); err != nil {
		return err
	}
	if err := s.requireNode("Function", edge.Callee); err != nil {
		return err
	}
	ranks, err := json.Marshal(edge.Ranks)
	if err != nil {
		return fmt.Errorf("kuzu: encode ranks: %w", err)
	}
	return s.exec(
		`MATCH (a:Function {name: $src}), (b:Function {name: $dst})
		 CREATE (a)-[:CALLS {ranks: $ranks}]->(b)`,
		map[string]any{"src": edge.Caller, "dst": edge.Callee, "ranks": string(ranks)},
	)
}

// AddAccess inserts an ACCESSES edge.
func (s *KuzuStore) AddAccess(_ context.Context, edge AccessEdge) error {
	if err := s.requireNode("Function", edge.Fn); err != nil {
		return err
	}
	if err := s.requireNode("Adt", edge.Adt); err != nil {
		return err
	}
	return s.exec(
		`MATCH (f:Function {name: $fn}), (a:Adt {name: $adt})
		 CREATE (f)-[:ACCESSES {access: $access, as_argument: $arg}]->(a)`,
		map[string]any{"fn": edge.Fn, "adt": edge.Adt, "access": edge.Access, "arg": edge.AsArgument},
	)
}

// AddNaviNode upserts a NaviNode.
func (s *KuzuStore) AddNaviNode(_ context.Context, node NaviNode) error {
	return s.exec(
		`MERGE (n:NaviNode {id: $id}) SET n.parent = $parent, n.kind = $kind, n.name = $name`,
		map[string]any{
			"id":     int64(node.ID),
			"parent": int64(node.Parent),
			"kind":   node.Kind,
			"name":   node.Name,
		},
	)
}

// ---------- Read operations ----------

const functionColumns = "f.name, f.kind, f.safe, f.analyzed, f.path, f.span, f.doc, f.tags"

// GetFunction retrieves a single Function node by name, or returns nil if
// not found.
func (s *KuzuStore) GetFunction(_ context.Context, name string) (*FunctionNode, error) {
	rows, err := s.query(
		"MATCH (f:Function {name: $name}) RETURN "+functionColumns,
		map[string]any{"name": name},
	)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rowToFunction(rows[0]), nil
}

// QueryFunctions returns functions matching q sorted by name.
func (s *KuzuStore) QueryFunctions(_ context.Context, q FunctionQuery) ([]FunctionNode, error) {
	var where []string
	params := map[string]any{}
	// An empty substring matches every name.
	if q.Substring != "" {
		where = append(where, "lower(f.name) CONTAINS lower($q)")
		params["q"] = q.Substring
	}
	if q.UnsafeOnly {
		where = append(where, "f.safe = false")
	}
	cypher := "MATCH (f:Function)"
	if len(where) > 0 {
		cypher += " WHERE " + strings.Join(where, " AND ")
	}
	cypher += " RETURN " + functionColumns + " ORDER BY f.name"
	if q.Limit > 0 {
		cypher += " LIMIT $lim"
		params["lim"] = int64(q.Limit)
	}
	rows, err := s.query(cypher, params)
	if err != nil {
		return nil, err
	}
	out := make([]FunctionNode, 0, len(rows))
	for _, r := range rows {
		out = append(out, *rowToFunction(r))
	}
	return out, nil
}

// ---------- Graph traversal ----------

// GetPropagation performs a BFS over CALLS edges starting from name. It
// returns one chain per reachable function.
func (s *KuzuStore) GetPropagation(_ context.Context, name string, dir Direction, maxDepth int) ([]PropagationChain, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultDepth
	}

	// BFS state.
	type bfsEntry struct {
		path  []string
		depth int
	}
	visited := map[string]bool{name: true}
	queue := []bfsEntry{{path: []string{name}, depth: 0}}
	var chains []PropagationChain

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= maxDepth {
			continue
		}
		tip := cur.path[len(cur.path)-1]
		neighbors, err := s.callNeighbors(tip, dir)
		if err != nil {
			return nil, err
		}
		for _, nb := range neighbors {
			if visited[nb.name] {
				continue
			}
			visited[nb.name] = true
			newPath := make([]string, len(cur.path)+1)
			copy(newPath, cur.path)
			newPath[len(cur.path)] = nb.name
			chains = append(chains, PropagationChain{
				Nodes:  newPath,
				Depth:  cur.depth + 1,
				Unsafe: !nb.safe,
			})
			queue = append(queue, bfsEntry{path: newPath, depth: cur.depth + 1})
		}
	}
	return chains, nil
}

type neighbor struct {
	name string
	safe bool
}

// callNeighbors returns the immediate neighbors along CALLS edges.
func (s *KuzuStore) callNeighbors(name string, dir Direction) ([]neighbor, error) {
	var cypher string
	switch dir {
	case DirectionCallees:
		cypher = "MATCH (a:Function {name: $name})-[:CALLS]->(b:Function) RETURN DISTINCT b.name, b.safe ORDER BY b.name"
	case DirectionCallers:
		cypher = "MATCH (a:Function)-[:CALLS]->(b:Function {name: $name}) RETURN DISTINCT a.name, a.safe ORDER BY a.name"
	default:
		return nil, fmt.Errorf("kuzu: unknown direction: %s", dir)
	}
	rows, err := s.query(cypher, map[string]any{"name": name})
	if err != nil {
		return nil, err
	}
	out := make([]neighbor, 0, len(rows))
	for _, r := range rows {
		out = append(out, neighbor{name: toString(r[0]), safe: toBool(r[1])})
	}
	return out, nil
}

// GetAccessors returns the ACCESSES edges into adt.
func (s *KuzuStore) GetAccessors(_ context.Context, adt string) ([]AccessEdge, error) {
	rows, err := s.query(
		`MATCH (f:Function)-[r:ACCESSES]->(a:Adt {name: $adt})
		 RETURN f.name, r.access, r.as_argument ORDER BY f.name, r.access`,
		map[string]any{"adt": adt},
	)
	if err != nil {
		return nil, err
	}
	out := make([]AccessEdge, 0, len(rows))
	for _, r := range rows {
		out = append(out, AccessEdge{
			Fn:         toString(r[0]),
			Adt:        adt,
			Access:     toString(r[1]),
			AsArgument: toBool(r[2]),
		})
	}
	return out, nil
}

// GetAllCalls returns every CALLS edge.
func (s *KuzuStore) GetAllCalls(_ context.Context) ([]CallEdge, error) {
	rows, err := s.query(
		"MATCH (a:Function)-[r:CALLS]->(b:Function) RETURN a.name, b.name, r.ranks ORDER BY a.name, b.name",
		nil,
	)
	if err != nil {
		return nil, err
	}
	out := make([]CallEdge, 0, len(rows))
	for _, r := range rows {
		edge := CallEdge{Caller: toString(r[0]), Callee: toString(r[1])}
		if raw := toString(r[2]); raw != "" && raw != "null" {
			if err := json.Unmarshal([]byte(raw), &edge.Ranks); err != nil {
				return nil, fmt.Errorf("kuzu: decode ranks: %w", err)
			}
		}
		out = append(out, edge)
	}
	return out, nil
}

// ---------- Stats ----------

// Stats returns counts of all node and edge tables.
func (s *KuzuStore) Stats(_ context.Context) (*GraphStats, error) {
	var st GraphStats
	counts := []struct {
		cypher string
		dst    *int
	}{
		{"MATCH (n:Function) RETURN count(n)", &st.FunctionCount},
		{"MATCH (n:Function) WHERE n.safe = false RETURN count(n)", &st.UnsafeCount},
		{"MATCH (n:Adt) RETURN count(n)", &st.AdtCount},
		{"MATCH (n:NaviNode) RETURN count(n)", &st.NaviNodeCount},
		{"MATCH ()-[r:CALLS]->() RETURN count(r)", &st.CallCount},
		{"MATCH ()-[r:ACCESSES]->() RETURN count(r)", &st.AccessCount},
	}
	for _, c := range counts {
		n, err := s.count(c.cypher)
		if err != nil {
			return nil, err
		}
		*c.dst = n
	}
	return &st, nil
}

// ---------- Internal helpers ----------

// exec runs a parameterized Cypher statement that produces no result rows.
func (s *KuzuStore) exec(cypher string, params map[string]any) error {
	stmt, err := s.conn.Prepare(cypher)
	if err != nil {
		return fmt.Errorf("kuzu: prepare: %w", err)
	}
	defer stmt.Close()

	res, err := s.conn.Execute(stmt, params)
	if err != nil {
		return fmt.Errorf("kuzu: execute: %w", err)
	}
	res.Close()
	return nil
}

// query runs a parameterized Cypher statement and collects all result rows.
// Each row is a []any slice with values in column order.
func (s *KuzuStore) query(cypher string, params map[string]any) ([][]any, error) {
	var res *kuzu.QueryResult
	var err error

	if len(params) == 0 {
		res, err = s.conn.Query(cypher)
	} else {
		var stmt *kuzu.PreparedStatement
		stmt, err = s.conn.Prepare(cypher)
		if err != nil {
			return nil, fmt.Errorf("kuzu: prepare: %w", err)
		}
		defer stmt.Close()
		res, err = s.conn.Execute(stmt, params)
	}
	if err != nil {
		return nil, fmt.Errorf("kuzu: query: %w", err)
	}
	defer res.Close()

	var rows [][]any
	for res.HasNext() {
		tuple, err := res.Next()
		if err != nil {
			return nil, fmt.Errorf("kuzu: next: %w", err)
		}
		vals, err := tuple.GetAsSlice()
		if err != nil {
			return nil, fmt.Errorf("kuzu: row values: %w", err)
		}
		rows = append(rows, vals)
	}
	return rows, nil
}

func (s *KuzuStore) count(cypher string) (int, error) {
	rows, err := s.query(cypher, nil)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return 0, nil
	}
	return toInt(rows[0][0]), nil
}

// requireNode fails when the node table has no row with the given name.
// Table is a fixed internal constant, not user input.
func (s *KuzuStore) requireNode(table, name string) error {
	rows, err := s.query(
		fmt.Sprintf("MATCH (n:%s {name: $name}) RETURN count(n)", table),
		map[string]any{"name": name},
	)
	if err != nil {
		return err
	}
	if len(rows) == 0 || toInt(rows[0][0]) == 0 {
		return fmt.Errorf("kuzu: unknown %s %q", strings.ToLower(table), name)
	}
	return nil
}

// rowToFunction converts a result row in functionColumns order.
func rowToFunction(r []any) *FunctionNode {
	fn := &FunctionNode{
		Name:     toString(r[0]),
		Kind:     FnKind(toString(r[1])),
		Safe:     toBool(r[2]),
		Analyzed: toBool(r[3]),
		Path:     PathType(toString(r[4])),
		Span:     toString(r[5]),
		Doc:      toString(r[6]),
	}
	if tags := toString(r[7]); tags != "" {
		fn.Tags = strings.Split(tags, ",")
	}
	return fn
}

// ---------- Type coercion helpers ----------
// KuzuDB returns typed Go values (int64, float64, bool, string).

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

func toInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case int32:
		return int(n)
	case uint64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func toBool(v any) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return false
}
