// Package output assembles the per-function, per-type and per-unit
// records of an analysis run and writes them to a Sink.
package output

import (
	"github.com/dusk-indust/upg/internal/analysis"
	"github.com/dusk-indust/upg/internal/safety"
)

// Path kinds of a function record.
const (
	PathLocal    = "Local"
	PathExternal = "External"
)

// Caller is the record of one analyzed function.
type Caller struct {
	Name    string                 `json:"name"`
	Span    string                 `json:"span"`
	Src     string                 `json:"src"`
	Doc     string                 `json:"doc"`
	Safe    bool                   `json:"safe"`
	Callees map[string]*CalleeInfo `json:"callees"`
	// Adts lists the access kinds per ADT name, in observation order.
	Adts map[string][]string `json:"adts"`
	Path OutputPath          `json:"path"`
	Tags safety.Bundle       `json:"tags"`
}

// CalleeInfo annotates one call edge.
type CalleeInfo struct {
	Safe bool                          `json:"safe"`
	Tags safety.Bundle                 `json:"tags"`
	Adt  map[string]analysis.AdtFnKind `json:"adt"`
}

// OutputPath classifies a function name against the navigation index.
type OutputPath struct {
	Type string `json:"type"`
	Path string `json:"path"`
}

// Adt is the record of one ADT.
type Adt struct {
	Name               string                  `json:"name"`
	Constructors       []string                `json:"constructors"`
	AccessSelfAsArg    Access                  `json:"access_self_as_arg"`
	AccessSelfAsLocals Access                  `json:"access_self_as_locals"`
	AccessField        []Access                `json:"access_field"`
	AccessVariantField map[string]Access       `json:"access_variant_field"`
	Span               string                  `json:"span"`
	Src                string                  `json:"src"`
	Kind               string                  `json:"kind"`
	DocAdt             string                  `json:"doc_adt"`
	VariantFields      map[string]VariantField `json:"variant_fields"`
}

// Access lists function names by effect, each sorted.
type Access struct {
	Read  []string `json:"read"`
	Write []string `json:"write"`
	Other []string `json:"other"`
}

// VariantField documents one field or variant of an ADT.
type VariantField struct {
	Name string `json:"name"`
	Doc  string `json:"doc"`
}
