package output

import (
	"sort"

	"github.com/dusk-indust/upg/internal/analysis"
	"github.com/dusk-indust/upg/internal/ir"
	"github.com/dusk-indust/upg/internal/navi"
	"github.com/dusk-indust/upg/internal/safety"
)

// Assembler turns analysis results into records.
type Assembler struct {
	Unit string
	Navi *navi.Navigation
	Spec safety.Spec
	// Tags returns the parsed annotations of any function, including
	// callees without a body. Nil means no annotations.
	Tags  func(*ir.FnDef) []safety.Properties
	Cache *analysis.AdtCache
}

func (a *Assembler) tags(fn *ir.FnDef) safety.Bundle {
	var props []safety.Properties
	if a.Tags != nil {
		props = a.Tags(fn)
	}
	return safety.NewBundle(props, a.Spec)
}

// Caller builds the record of one function. priv may be nil, in which case
// callee ADT maps are left empty.
func (a *Assembler) Caller(info *analysis.FnInfo, priv *analysis.Privileges) *Caller {
	fn := info.Fn
	rec := &Caller{
		Name:    fn.Name,
		Span:    fn.Span,
		Src:     fn.Src,
		Doc:     fn.Doc,
		Safe:    fn.Safe(),
		Callees: make(map[string]*CalleeInfo, info.Callees.Len()),
		Adts:    make(map[string][]string, info.Adts.Len()),
		Path:    a.path(fn),
		Tags:    safety.NewBundle(info.Props, a.Spec),
	}

	info.Callees.Each(func(callee *ir.FnDef, name string) {
		ci := &CalleeInfo{
			Safe: callee.Safe(),
			Tags: a.tags(callee),
			Adt:  map[string]analysis.AdtFnKind{},
		}
		if priv != nil {
			if ranks, ok := priv.Callee(fn, name); ok {
				ranks.Each(func(def *ir.AdtDef, k analysis.AdtFnKind) { ci.Adt[def.Name] = k })
			}
		}
		rec.Callees[name] = ci
	})

	info.Adts.Each(func(def *ir.AdtDef, la *analysis.LocalsAccess) {
		kinds := make([]string, 0, len(la.Access()))
		for _, acc := range la.Access() {
			kinds = append(kinds, acc.String())
		}
		rec.Adts[def.Name] = kinds
	})
	return rec
}

// path reports Local when the function name resolves in the navigation
// index and External otherwise.
func (a *Assembler) path(fn *ir.FnDef) OutputPath {
	if a.Navi != nil {
		local := a.Unit + "::" + fn.Path
		if _, ok := a.Navi.ID(local); ok {
			return OutputPath{Type: PathLocal, Path: local}
		}
	}
	return OutputPath{Type: PathExternal, Path: fn.Path}
}

// Adt builds the record of one ADT.
func (a *Assembler) Adt(info *analysis.AdtInfo) *Adt {
	def := info.Adt
	rec := &Adt{
		Name:               def.Name,
		Constructors:       fnNames(info.Constructors),
		AccessSelfAsArg:    newAccess(&info.AsArgument),
		AccessSelfAsLocals: newAccess(&info.Otherwise),
		AccessField:        make([]Access, 0, len(info.Fields)),
		AccessVariantField: make(map[string]Access, info.VariantFields.Len()),
		Span:               def.Span,
		Src:                def.Src,
		Kind:               string(def.Kind),
		DocAdt:             def.Doc,
		VariantFields:      map[string]VariantField{},
	}
	for i := range info.Fields {
		rec.AccessField = append(rec.AccessField, newAccess(&info.Fields[i]))
	}
	info.VariantFields.Each(func(idx analysis.VariantFieldIdx, acc *analysis.Access) {
		rec.AccessVariantField[idx.String()] = newAccess(acc)
	})
	for _, vf := range a.Cache.Describe(def).VariantFields {
		rec.VariantFields[vf.Idx.String()] = VariantField{Name: vf.Name, Doc: vf.Doc}
	}
	return rec
}

func newAccess(acc *analysis.Access) Access {
	return Access{
		Read:  fnNames(acc.Read),
		Write: fnNames(acc.Write),
		Other: fnNames(acc.Other),
	}
}

// fnNames returns the sorted names of fns. Duplicates are kept.
func fnNames(fns []*ir.FnDef) []string {
	names := make([]string, len(fns))
	for i, fn := range fns {
		names[i] = fn.Name
	}
	sort.Strings(names)
	return names
}
