// Package analysis turns typed function bodies into the unsafety
// propagation graph: per-function summaries, per-type access profiles and
// the privilege ranks that relate the two.
package analysis

import (
	"fmt"

	"github.com/dusk-indust/upg/internal/ir"
)

// AccessTag names the shape of one access to a place of ADT type.
type AccessTag int

const (
	AccessPlain AccessTag = iota
	AccessRef
	AccessMutRef
	AccessDeref
	AccessRefVariantField
	AccessMutRefVariantField
	AccessDerefVariantField
	AccessUnknown
)

var accessTagNames = [...]string{
	AccessPlain:              "Plain",
	AccessRef:                "Ref",
	AccessMutRef:             "MutRef",
	AccessDeref:              "Deref",
	AccessRefVariantField:    "RefVariantField",
	AccessMutRefVariantField: "MutRefVariantField",
	AccessDerefVariantField:  "DerefVariantField",
	AccessUnknown:            "Unknown",
}

func (t AccessTag) String() string {
	if int(t) < len(accessTagNames) {
		return accessTagNames[t]
	}
	return fmt.Sprintf("AccessTag(%d)", int(t))
}

// VariantFieldIdx addresses a struct field, an enum variant or a field of
// an enum variant. Absent components are -1.
type VariantFieldIdx struct {
	Variant int
	Field   int
}

// FieldIdx addresses field i of a struct.
func FieldIdx(i int) VariantFieldIdx { return VariantFieldIdx{Variant: -1, Field: i} }

// VariantIdx addresses variant v of an enum.
func VariantIdx(v int) VariantFieldIdx { return VariantFieldIdx{Variant: v, Field: -1} }

// VariantFieldOf addresses field i of enum variant v.
func VariantFieldOf(v, i int) VariantFieldIdx { return VariantFieldIdx{Variant: v, Field: i} }

// AsField returns the struct field index when the index has no variant.
func (x VariantFieldIdx) AsField() (int, bool) {
	if x.Variant >= 0 || x.Field < 0 {
		return 0, false
	}
	return x.Field, true
}

func (x VariantFieldIdx) String() string {
	switch {
	case x.Variant < 0:
		return fmt.Sprintf("%d", x.Field)
	case x.Field < 0:
		return fmt.Sprintf("Variant(%d)", x.Variant)
	default:
		return fmt.Sprintf("Variant(%d).Field(%d)", x.Variant, x.Field)
	}
}

// AccessKind is one classified access. It is comparable and used as a map
// key; Idx is only meaningful for the *VariantField tags and Proj only for
// AccessUnknown.
type AccessKind struct {
	Tag  AccessTag
	Idx  VariantFieldIdx
	Proj string
}

var noIdx = VariantFieldIdx{Variant: -1, Field: -1}

// Simple returns an access without index or projection.
func Simple(tag AccessTag) AccessKind { return AccessKind{Tag: tag, Idx: noIdx} }

// VariantField returns one of the *VariantField accesses.
func VariantField(tag AccessTag, idx VariantFieldIdx) AccessKind {
	return AccessKind{Tag: tag, Idx: idx}
}

// Unknown returns the catch-all access for proj.
func Unknown(proj []ir.ProjElem) AccessKind {
	return AccessKind{Tag: AccessUnknown, Idx: noIdx, Proj: ir.ProjString(proj)}
}

// IsVariantField reports whether the access addresses a field or variant.
func (a AccessKind) IsVariantField() bool {
	switch a.Tag {
	case AccessRefVariantField, AccessMutRefVariantField, AccessDerefVariantField:
		return true
	}
	return false
}

func (a AccessKind) String() string {
	switch {
	case a.IsVariantField():
		return fmt.Sprintf("%s(%s)", a.Tag, a.Idx)
	case a.Tag == AccessUnknown:
		return fmt.Sprintf("Unknown(%s)", a.Proj)
	default:
		return a.Tag.String()
	}
}

// Classified is one (ADT, access) pair produced for a place.
type Classified struct {
	Adt    *ir.AdtDef
	Access AccessKind
}

// Classify returns every ADT access reached by applying proj to a local of
// type ty. It looks through one layer of reference and through tuples,
// arrays and slices. Types without an ADT inside yield nothing.
func Classify(ty *ir.Ty, proj []ir.ProjElem) []Classified {
	var out []Classified
	classify(ty, proj, &out)
	return out
}

func classify(ty *ir.Ty, proj []ir.ProjElem, out *[]Classified) {
	if ty == nil {
		return
	}
	switch ty.Kind {
	case ir.TyAdt:
		if ty.Adt != nil {
			*out = append(*out, Classified{Adt: ty.Adt, Access: ownedAccess(proj)})
		}
	case ir.TyRef:
		elem := ty.Elem
		if !elem.IsAdt() {
			classify(elem, proj, out)
			return
		}
		switch {
		case len(proj) == 0:
			tag := AccessRef
			if ty.Mut {
				tag = AccessMutRef
			}
			*out = append(*out, Classified{Adt: elem.Adt, Access: Simple(tag)})
		case proj[0].Kind == ir.ProjField && elem.Adt.Kind == ir.AdtStruct:
			tag := AccessRefVariantField
			if ty.Mut {
				tag = AccessMutRefVariantField
			}
			*out = append(*out, Classified{
				Adt:    elem.Adt,
				Access: VariantField(tag, FieldIdx(proj[0].Index)),
			})
		default:
			classify(elem, proj, out)
		}
	case ir.TyRawPtr:
		if ty.Elem.IsAdt() {
			*out = append(*out, Classified{Adt: ty.Elem.Adt, Access: Unknown(proj)})
		}
	case ir.TyTuple:
		for _, elem := range ty.Elems {
			classify(elem, proj, out)
		}
	case ir.TySlice, ir.TyArray:
		classify(ty.Elem, proj, out)
	}
}

// ownedAccess classifies a projection applied directly to an ADT value.
func ownedAccess(proj []ir.ProjElem) AccessKind {
	switch {
	case len(proj) == 0:
		return Simple(AccessPlain)
	case proj[0].Kind != ir.ProjDeref:
		return Unknown(proj)
	case len(proj) == 1:
		return Simple(AccessDeref)
	case proj[1].Kind == ir.ProjField:
		return VariantField(AccessDerefVariantField, FieldIdx(proj[1].Index))
	case proj[1].Kind == ir.ProjDowncast && len(proj) > 2 && proj[2].Kind == ir.ProjField:
		return VariantField(AccessDerefVariantField, VariantFieldOf(proj[1].Index, proj[2].Index))
	default:
		return Unknown(proj)
	}
}
