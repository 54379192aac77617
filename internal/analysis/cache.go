package analysis

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dusk-indust/upg/internal/ir"
)

// LayoutEntry names one entry of an ADT's field and variant layout.
type LayoutEntry struct {
	Idx  VariantFieldIdx
	Name string
	Doc  string
}

// Descriptor is the derived layout of one ADT: its struct field count and
// the flattened list of fields, variants and variant fields.
type Descriptor struct {
	Def *ir.AdtDef
	// NumFields is the struct field count; zero for enums and unions.
	NumFields     int
	VariantFields []LayoutEntry
}

// DefaultCacheSize bounds the number of descriptors kept per run.
const DefaultCacheSize = 1024

// AdtCache memoizes descriptors across the functions of a unit.
type AdtCache struct {
	cache *lru.Cache[*ir.AdtDef, *Descriptor]
}

// NewAdtCache returns a cache holding at most size descriptors.
func NewAdtCache(size int) *AdtCache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := lru.New[*ir.AdtDef, *Descriptor](size)
	if err != nil {
		// lru.New only fails for a non-positive size.
		panic(err)
	}
	return &AdtCache{cache: c}
}

// Describe returns the descriptor of def, computing it on first use.
func (c *AdtCache) Describe(def *ir.AdtDef) *Descriptor {
	if c == nil {
		return describe(def)
	}
	if d, ok := c.cache.Get(def); ok {
		return d
	}
	d := describe(def)
	c.cache.Add(def, d)
	return d
}

// Len returns the number of cached descriptors.
func (c *AdtCache) Len() int { return c.cache.Len() }

func describe(def *ir.AdtDef) *Descriptor {
	d := &Descriptor{Def: def}
	if n, ok := def.NumFields(); ok {
		d.NumFields = n
	}
	switch def.Kind {
	case ir.AdtEnum:
		for v, variant := range def.Variants {
			d.VariantFields = append(d.VariantFields, LayoutEntry{
				Idx:  VariantIdx(v),
				Name: variant.Name,
				Doc:  variant.Doc,
			})
			for i, f := range variant.Fields {
				d.VariantFields = append(d.VariantFields, LayoutEntry{
					Idx:  VariantFieldOf(v, i),
					Name: variant.Name + "." + f.Name,
				})
			}
		}
	default:
		if len(def.Variants) == 0 {
			break
		}
		for i, f := range def.Variants[0].Fields {
			d.VariantFields = append(d.VariantFields, LayoutEntry{
				Idx:  FieldIdx(i),
				Name: f.Name,
				Doc:  f.Doc,
			})
		}
	}
	return d
}
