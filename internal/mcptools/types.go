package mcptools

import "github.com/dusk-indust/upg/internal/store"

// --- MCP Tool Input Types ---
// These structs define the JSON schema for each MCP tool's input.
// The MCP Go SDK auto-generates JSON schemas from struct tags.

// AnalyzeCrateInput is the input for the analyze_crate MCP tool.
type AnalyzeCrateInput struct {
	CratePath string `json:"cratePath" jsonschema:"the absolute path to the crate root (the directory holding Cargo.toml or src/)"`
	Name      string `json:"name,omitempty" jsonschema:"unit name (default: the Cargo package name)"`
	OutputDir string `json:"outputDir,omitempty" jsonschema:"directory to also write caller, adt and navi records to"`
}

// AnalyzeCrateOutput is the result of the analyze_crate MCP tool.
type AnalyzeCrateOutput struct {
	Unit     string           `json:"unit"`
	Control  string           `json:"control"`
	BadAttrs int              `json:"badAttrs"`
	Stats    store.GraphStats `json:"stats"`
}

// QueryFunctionsInput is the input for the query_functions MCP tool.
type QueryFunctionsInput struct {
	Query      string `json:"query" jsonschema:"search query for function paths (case-insensitive substring match)"`
	UnsafeOnly bool   `json:"unsafeOnly,omitempty" jsonschema:"only return unsafe functions"`
	Limit      int    `json:"limit,omitempty" jsonschema:"maximum number of results (default: 20)"`
}

// QueryFunctionsOutput is the result of the query_functions MCP tool.
type QueryFunctionsOutput struct {
	Functions []store.FunctionNode `json:"functions"`
	Total     int                  `json:"total"`
}

// GetFunctionInput is the input for the get_function MCP tool.
type GetFunctionInput struct {
	Name string `json:"name" jsonschema:"fully qualified function path, e.g. my_crate::S::new"`
}

// GetFunctionOutput is the result of the get_function MCP tool.
type GetFunctionOutput struct {
	Function store.FunctionNode `json:"function"`
	Callees  []string           `json:"callees"`
	Callers  []string           `json:"callers"`
}

// GetPropagationInput is the input for the get_propagation MCP tool.
type GetPropagationInput struct {
	Name      string `json:"name" jsonschema:"fully qualified function path to start from"`
	Direction string `json:"direction,omitempty" jsonschema:"callers (who is exposed to it) or callees (what it reaches). Default: callers"`
	MaxDepth  int    `json:"maxDepth,omitempty" jsonschema:"maximum traversal depth (default: 10)"`
}

// GetPropagationOutput is the result of the get_propagation MCP tool.
type GetPropagationOutput struct {
	Chains []store.PropagationChain `json:"chains"`
	Unsafe int                      `json:"unsafe"`
}

// GetAdtAccessorsInput is the input for the get_adt_accessors MCP tool.
type GetAdtAccessorsInput struct {
	Adt string `json:"adt" jsonschema:"fully qualified type path, e.g. my_crate::S"`
}

// GetAdtAccessorsOutput is the result of the get_adt_accessors MCP tool.
type GetAdtAccessorsOutput struct {
	Adt       string             `json:"adt"`
	Accessors []store.AccessEdge `json:"accessors"`
}

// GraphStatsInput is the input for the graph_stats MCP tool.
type GraphStatsInput struct{}

// GraphStatsOutput is the result of the graph_stats MCP tool.
type GraphStatsOutput struct {
	Stats store.GraphStats `json:"stats"`
}
