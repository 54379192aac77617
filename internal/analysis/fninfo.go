package analysis

import (
	"sort"

	"github.com/dusk-indust/upg/internal/ir"
	"github.com/dusk-indust/upg/internal/safety"
)

// LocalsAccess records how one function touches one ADT: which local
// slots were involved and the distinct access kinds observed.
type LocalsAccess struct {
	Locals []int
	access orderedSet[AccessKind]
}

// Access returns the observed kinds in first-seen order.
func (l *LocalsAccess) Access() []AccessKind { return l.access.items }

func (l *LocalsAccess) add(local int, acc AccessKind) {
	l.Locals = append(l.Locals, local)
	l.access.add(acc)
}

// dedup sorts the local slots and drops repeats.
func (l *LocalsAccess) dedup() {
	sort.Ints(l.Locals)
	out := l.Locals[:0]
	for i, v := range l.Locals {
		if i == 0 || v != l.Locals[i-1] {
			out = append(out, v)
		}
	}
	l.Locals = out
}

// IsArgument reports whether any involved local is an argument slot.
// Slot 0 is the return place, arguments occupy 1..argCount.
func (l *LocalsAccess) IsArgument(argCount int) bool {
	for _, idx := range l.Locals {
		if idx >= 1 && idx <= argCount {
			return true
		}
	}
	return false
}

// FnInfo is the summary of one function body.
type FnInfo struct {
	Fn       *ir.FnDef
	ArgCount int
	// RetAdts are the ADTs owned by the return type; the function is a
	// constructor candidate for each of them.
	RetAdts []*ir.AdtDef
	// Callees maps each referenced function to its generic display name.
	Callees *OrderedMap[*ir.FnDef, string]
	Adts    *OrderedMap[*ir.AdtDef, *LocalsAccess]
	Props   []safety.Properties
}

// NewFnInfo analyzes the body of fn. fn must have a body.
func NewFnInfo(fn *ir.FnDef, props []safety.Properties) *FnInfo {
	body := fn.Body
	info := &FnInfo{
		Fn:       fn,
		ArgCount: body.ArgCount,
		Callees:  NewOrderedMap[*ir.FnDef, string](),
		Adts:     NewOrderedMap[*ir.AdtDef, *LocalsAccess](),
		Props:    props,
	}

	for _, callee := range body.Callees {
		if callee != nil {
			info.Callees.Set(callee, callee.Name)
		}
	}

	for _, place := range body.Places {
		ty := body.LocalTy(place.Local)
		if ty == nil {
			continue
		}
		for _, c := range Classify(ty, place.Proj) {
			la := info.Adts.Entry(c.Adt, func() *LocalsAccess { return &LocalsAccess{} })
			la.add(place.Local, c.Access)
		}
	}
	info.Adts.Each(func(_ *ir.AdtDef, la *LocalsAccess) { la.dedup() })

	var seen orderedSet[*ir.AdtDef]
	flattenAdts(body.RetTy(), &seen)
	info.RetAdts = seen.items
	return info
}

// flattenAdts collects the ADTs owned by ty: the ADT itself, its generic
// arguments, and the elements of arrays and tuples. References, raw
// pointers and slices are not owned and stop the walk.
func flattenAdts(ty *ir.Ty, out *orderedSet[*ir.AdtDef]) {
	if ty == nil {
		return
	}
	switch ty.Kind {
	case ir.TyAdt:
		if ty.Adt != nil {
			out.add(ty.Adt)
		}
		for _, arg := range ty.Args {
			flattenAdts(arg, out)
		}
	case ir.TyArray:
		flattenAdts(ty.Elem, out)
	case ir.TyTuple:
		for _, elem := range ty.Elems {
			flattenAdts(elem, out)
		}
	}
}

// AnalyzeFns builds a FnInfo for every function with a body, in unit
// order. props supplies the parsed annotations per function and may be nil.
func AnalyzeFns(fns []*ir.FnDef, props func(*ir.FnDef) []safety.Properties) *OrderedMap[*ir.FnDef, *FnInfo] {
	out := NewOrderedMap[*ir.FnDef, *FnInfo]()
	for _, fn := range fns {
		if fn.Body == nil {
			continue
		}
		var sp []safety.Properties
		if props != nil {
			sp = props(fn)
		}
		out.Set(fn, NewFnInfo(fn, sp))
	}
	return out
}
