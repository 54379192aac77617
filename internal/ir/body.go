package ir

import (
	"fmt"
	"strings"
)

// ProjKind is one step of a place projection.
type ProjKind int

const (
	ProjDeref ProjKind = iota
	ProjField
	ProjIndex
	ProjConstantIndex
	ProjSubslice
	ProjDowncast
	ProjOpaqueCast
)

// ProjElem is a projection step. Index carries the field index for
// ProjField and the variant index for ProjDowncast.
type ProjElem struct {
	Kind  ProjKind
	Index int
}

// Deref returns a dereference step.
func Deref() ProjElem { return ProjElem{Kind: ProjDeref} }

// Field returns a field-of-index step.
func Field(i int) ProjElem { return ProjElem{Kind: ProjField, Index: i} }

// Index returns an array or slice index step.
func Index() ProjElem { return ProjElem{Kind: ProjIndex} }

// Downcast returns a variant downcast step.
func Downcast(variant int) ProjElem { return ProjElem{Kind: ProjDowncast, Index: variant} }

func (p ProjElem) String() string {
	switch p.Kind {
	case ProjDeref:
		return "Deref"
	case ProjField:
		return fmt.Sprintf("Field(%d)", p.Index)
	case ProjIndex:
		return "Index"
	case ProjConstantIndex:
		return "ConstantIndex"
	case ProjSubslice:
		return "Subslice"
	case ProjDowncast:
		return fmt.Sprintf("Downcast(%d)", p.Index)
	default:
		return "OpaqueCast"
	}
}

// ProjString renders a projection chain as "[Deref, Field(0)]".
func ProjString(proj []ProjElem) string {
	parts := make([]string, len(proj))
	for i, p := range proj {
		parts[i] = p.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Place is a local slot followed by a projection chain.
type Place struct {
	Local int
	Proj  []ProjElem
}

// Body is the analyzable part of a function.
//
// Locals[0] is the return slot and Locals[1..ArgCount] are the arguments,
// the remaining slots are temporaries and user bindings.
type Body struct {
	Locals   []*Ty
	ArgCount int
	Places   []Place
	// Callees are function-valued references in order of appearance.
	Callees []*FnDef
}

// LocalTy returns the declared type of local i, or nil when out of range.
func (b *Body) LocalTy(i int) *Ty {
	if i < 0 || i >= len(b.Locals) {
		return nil
	}
	return b.Locals[i]
}

// RetTy returns the type of the return slot.
func (b *Body) RetTy() *Ty { return b.LocalTy(0) }

// IsArg reports whether local i is an argument slot.
func (b *Body) IsArg(i int) bool { return i >= 1 && i <= b.ArgCount }
