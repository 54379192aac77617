// Package ir holds the language-neutral view of one compiled unit that the
// analysis consumes: typed locals, place expressions, function and ADT
// definitions, and the items that make up the navigation tree.
package ir

import (
	"fmt"
	"strings"
)

// --- Enums ---

// TyKind classifies the shape of a type.
type TyKind int

const (
	TyOther  TyKind = iota // primitives, type parameters, anything opaque
	TyAdt                  // struct, enum or union with generic arguments
	TyRef                  // &T or &mut T
	TyRawPtr               // *const T or *mut T
	TyTuple                // (A, B, ...)
	TySlice                // [T]
	TyArray                // [T; N]
	TyFnDef                // a function item value
)

// AdtKind classifies an algebraic data type definition.
type AdtKind string

const (
	AdtStruct AdtKind = "Struct"
	AdtEnum   AdtKind = "Enum"
	AdtUnion  AdtKind = "Union"
)

// --- Models ---

// Ty is a structural type. Only the fields relevant to Kind are set.
type Ty struct {
	Kind  TyKind
	Adt   *AdtDef // TyAdt
	Args  []*Ty   // TyAdt generic type arguments
	Elem  *Ty     // TyRef, TyRawPtr, TySlice, TyArray
	Mut   bool    // TyRef, TyRawPtr
	Elems []*Ty   // TyTuple
	Fn    *FnDef  // TyFnDef
	Name  string  // TyOther display name
}

// Prim returns an opaque type with the given display name.
func Prim(name string) *Ty { return &Ty{Kind: TyOther, Name: name} }

// Adt returns the type of def instantiated with args.
func Adt(def *AdtDef, args ...*Ty) *Ty { return &Ty{Kind: TyAdt, Adt: def, Args: args} }

// Ref returns &elem or &mut elem.
func Ref(elem *Ty, mut bool) *Ty { return &Ty{Kind: TyRef, Elem: elem, Mut: mut} }

// RawPtr returns *const elem or *mut elem.
func RawPtr(elem *Ty, mut bool) *Ty { return &Ty{Kind: TyRawPtr, Elem: elem, Mut: mut} }

// Tuple returns (elems...).
func Tuple(elems ...*Ty) *Ty { return &Ty{Kind: TyTuple, Elems: elems} }

// Slice returns [elem].
func Slice(elem *Ty) *Ty { return &Ty{Kind: TySlice, Elem: elem} }

// Array returns [elem; N].
func Array(elem *Ty) *Ty { return &Ty{Kind: TyArray, Elem: elem} }

// FnItem returns the type of a function item value.
func FnItem(fn *FnDef) *Ty { return &Ty{Kind: TyFnDef, Fn: fn} }

// UnitTy is the empty tuple.
func UnitTy() *Ty { return &Ty{Kind: TyTuple} }

// IsAdt reports whether t is directly an ADT.
func (t *Ty) IsAdt() bool { return t != nil && t.Kind == TyAdt && t.Adt != nil }

// String renders t in Rust-like syntax.
func (t *Ty) String() string {
	if t == nil {
		return "_"
	}
	switch t.Kind {
	case TyAdt:
		if t.Adt == nil {
			return "_"
		}
		if len(t.Args) == 0 {
			return t.Adt.Name
		}
		return t.Adt.Name + "<" + joinTys(t.Args) + ">"
	case TyRef:
		if t.Mut {
			return "&mut " + t.Elem.String()
		}
		return "&" + t.Elem.String()
	case TyRawPtr:
		if t.Mut {
			return "*mut " + t.Elem.String()
		}
		return "*const " + t.Elem.String()
	case TyTuple:
		if len(t.Elems) == 1 {
			return "(" + t.Elems[0].String() + ",)"
		}
		return "(" + joinTys(t.Elems) + ")"
	case TySlice:
		return "[" + t.Elem.String() + "]"
	case TyArray:
		return "[" + t.Elem.String() + "; _]"
	case TyFnDef:
		if t.Fn == nil {
			return "fn"
		}
		return fmt.Sprintf("fn %s", t.Fn.Name)
	default:
		if t.Name == "" {
			return "_"
		}
		return t.Name
	}
}

func joinTys(tys []*Ty) string {
	parts := make([]string, len(tys))
	for i, ty := range tys {
		parts[i] = ty.String()
	}
	return strings.Join(parts, ", ")
}
