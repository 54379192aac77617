package store

// --- Enums ---

// FnKind mirrors the call shape of a function.
type FnKind string

const (
	FnKindMethod FnKind = "Method"
	FnKindAssoc  FnKind = "AssocFn"
	FnKindFree   FnKind = "FreeFn"
)

// PathType classifies a function against the navigation index.
type PathType string

const (
	PathLocal    PathType = "Local"
	PathExternal PathType = "External"
)

// --- Models ---

// FunctionNode is one function of the propagation graph, analyzed or only
// referenced as a callee.
type FunctionNode struct {
	Name     string   `json:"name"`
	Kind     FnKind   `json:"kind"`
	Safe     bool     `json:"safe"`
	Analyzed bool     `json:"analyzed"`
	Path     PathType `json:"path"`
	Span     string   `json:"span"`
	Doc      string   `json:"doc"`
	// Tags are the names of the safety properties the function requires.
	Tags []string `json:"tags"`
}

// AdtNode is one struct, enum or union.
type AdtNode struct {
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	Local bool   `json:"local"`
	Span  string `json:"span"`
	Doc   string `json:"doc"`
}

// CallEdge is one caller to callee reference. Ranks holds the privilege
// of the callee on each ADT the caller touches, by ADT name.
type CallEdge struct {
	Caller string            `json:"caller"`
	Callee string            `json:"callee"`
	Ranks  map[string]string `json:"ranks,omitempty"`
}

// AccessEdge is one direct access of a function to an ADT.
type AccessEdge struct {
	Fn         string `json:"fn"`
	Adt        string `json:"adt"`
	Access     string `json:"access"`
	AsArgument bool   `json:"asArgument"`
}

// NaviNode is one node of the navigation tree. The root has Parent -1.
type NaviNode struct {
	ID     int    `json:"id"`
	Parent int    `json:"parent"`
	Kind   string `json:"kind"`
	Name   string `json:"name"`
}

// FunctionQuery filters QueryFunctions.
type FunctionQuery struct {
	// Substring matches the function name, case-insensitively.
	Substring  string
	UnsafeOnly bool
	// Limit <= 0 returns every match.
	Limit int
}

// GraphStats summarizes a propagation graph.
type GraphStats struct {
	FunctionCount int `json:"functionCount"`
	UnsafeCount   int `json:"unsafeCount"`
	AdtCount      int `json:"adtCount"`
	CallCount     int `json:"callCount"`
	AccessCount   int `json:"accessCount"`
	NaviNodeCount int `json:"naviNodeCount"`
}

// PropagationChain is a call path starting at the queried function.
type PropagationChain struct {
	Nodes []string `json:"nodes"`
	Depth int      `json:"depth"`
	// Unsafe is true when the last node of the chain is an unsafe function.
	Unsafe bool `json:"unsafe"`
}
