package ir

import "context"

// ItemKind classifies the items that make up the navigation tree.
type ItemKind int

const (
	ItemFn      ItemKind = iota // free function
	ItemStruct                  // struct definition
	ItemEnum                    // enum definition
	ItemUnion                   // union definition
	ItemTrait                   // trait declaration
	ItemImplFn                  // function inside an inherent or trait impl block
	ItemTraitFn                 // default method declared inside a trait
)

// TypeKind classifies the definition a TypePath points at.
type TypeKind int

const (
	TypeOther TypeKind = iota // primitive, reference, generic parameter
	TypeStruct
	TypeEnum
	TypeUnion
	TypeTrait
)

// TypePath locates a type or trait definition by crate and module.
type TypePath struct {
	Crate   string
	Module  []string
	Name    string
	Kind    TypeKind
	Display string // rendering used for TypeOther
}

// Item is one definition as it appears in source, before any analysis.
type Item struct {
	Kind   ItemKind
	Name   string
	Module []string // module segments below the unit root
	// DefPath is the item path without the unit prefix, e.g. "a::f",
	// "S::new" or "<S as Tr>::m".
	DefPath string
	SelfTy  *TypePath // ItemImplFn
	Trait   *TypePath // ItemImplFn of a trait impl, ItemTraitFn
}

// Unit is one analyzed compilation unit.
type Unit struct {
	Name  string
	Fns   []*FnDef  // every function with a definition in the unit
	Adts  []*AdtDef // local ADT definitions in source order
	Items []Item
}

// Source produces a Unit. Implementations must return definitions in a
// deterministic order.
type Source interface {
	Load(ctx context.Context) (*Unit, error)
}
