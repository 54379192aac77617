package frontend

import (
	"slices"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/dusk-indust/upg/internal/ir"
)

// ---------------------------------------------------------------------------
// External definitions
// ---------------------------------------------------------------------------

type externType struct {
	path     string
	kind     ir.AdtKind
	variants []string
}

// Standard library types the lowering knows the shape of. Everything else
// from outside the crate stays opaque.
var externTypes = map[string]externType{
	"String":      {path: "alloc::string::String", kind: ir.AdtStruct},
	"Vec":         {path: "alloc::vec::Vec", kind: ir.AdtStruct},
	"Box":         {path: "alloc::boxed::Box", kind: ir.AdtStruct},
	"Rc":          {path: "alloc::rc::Rc", kind: ir.AdtStruct},
	"Arc":         {path: "alloc::sync::Arc", kind: ir.AdtStruct},
	"Cell":        {path: "core::cell::Cell", kind: ir.AdtStruct},
	"RefCell":     {path: "core::cell::RefCell", kind: ir.AdtStruct},
	"NonNull":     {path: "core::ptr::NonNull", kind: ir.AdtStruct},
	"PhantomData": {path: "core::marker::PhantomData", kind: ir.AdtStruct},
	"HashMap":     {path: "std::collections::HashMap", kind: ir.AdtStruct},
	"Option":      {path: "core::option::Option", kind: ir.AdtEnum, variants: []string{"None", "Some"}},
	"Result":      {path: "core::result::Result", kind: ir.AdtEnum, variants: []string{"Ok", "Err"}},
}

// Variants usable without a path.
var preludeVariants = map[string]string{
	"Some": "Option",
	"None": "Option",
	"Ok":   "Result",
	"Err":  "Result",
}

var wellKnownTraits = map[string][]string{
	"Debug":     {"core", "fmt", "Debug"},
	"Display":   {"core", "fmt", "Display"},
	"Clone":     {"core", "clone", "Clone"},
	"Copy":      {"core", "marker", "Copy"},
	"Default":   {"core", "default", "Default"},
	"Drop":      {"core", "ops", "Drop"},
	"Deref":     {"core", "ops", "Deref"},
	"DerefMut":  {"core", "ops", "DerefMut"},
	"PartialEq": {"core", "cmp", "PartialEq"},
	"Eq":        {"core", "cmp", "Eq"},
	"From":      {"core", "convert", "From"},
	"Into":      {"core", "convert", "Into"},
	"Iterator":  {"core", "iter", "Iterator"},
}

// externs interns the external definitions of one crate so that every
// mention shares one pointer.
type externs struct {
	adts map[string]*ir.AdtDef
	fns  map[string]*ir.FnDef
}

func newExterns() *externs {
	return &externs{adts: map[string]*ir.AdtDef{}, fns: map[string]*ir.FnDef{}}
}

// adt returns the definition of a known standard type by simple name.
func (e *externs) adt(name string) *ir.AdtDef {
	et, ok := externTypes[name]
	if !ok {
		return nil
	}
	if def, ok := e.adts[name]; ok {
		return def
	}
	def := &ir.AdtDef{Name: et.path, Kind: et.kind}
	switch et.kind {
	case ir.AdtEnum:
		for _, v := range et.variants {
			vd := ir.VariantDef{Name: v}
			if v != "None" {
				vd.Fields = []ir.FieldDef{{Name: "0", Ty: ir.Prim("T")}}
			}
			def.Variants = append(def.Variants, vd)
		}
	default:
		def.Variants = []ir.VariantDef{{Name: name}}
	}
	e.adts[name] = def
	return def
}

// lookup maps an external path to a known type.
func (e *externs) lookup(q []string) *ir.AdtDef {
	if len(q) == 0 {
		return nil
	}
	if len(q) > 1 {
		switch q[0] {
		case "std", "core", "alloc":
		default:
			return nil
		}
	}
	return e.adt(q[len(q)-1])
}

// fn returns the opaque definition of an external function.
func (e *externs) fn(name string) *ir.FnDef {
	if fn, ok := e.fns[name]; ok {
		return fn
	}
	fn := &ir.FnDef{Name: name, Path: name, Kind: ir.FnFree}
	e.fns[name] = fn
	return fn
}

// ---------------------------------------------------------------------------
// Name resolution
// ---------------------------------------------------------------------------

// resolvePath expands crate/self/super prefixes and use aliases. It reports
// whether the result names something in this crate.
func (c *collector) resolvePath(mod *module, segs []string) ([]string, bool) {
	for depth := 0; depth < 4 && len(segs) > 0; depth++ {
		switch segs[0] {
		case "crate":
			return segs[1:], true
		case "self":
			return append(slices.Clone(mod.path), segs[1:]...), true
		case "super":
			base, rest := slices.Clone(mod.path), segs
			for len(rest) > 0 && rest[0] == "super" {
				if len(base) > 0 {
					base = base[:len(base)-1]
				}
				rest = rest[1:]
			}
			return append(base, rest...), true
		case "std", "core", "alloc":
			return segs, false
		}
		alias, ok := mod.uses[segs[0]]
		if !ok {
			break
		}
		segs = append(slices.Clone(alias), segs[1:]...)
	}
	rel := append(slices.Clone(mod.path), segs...)
	if c.known(rel) {
		return rel, true
	}
	if c.known(segs) {
		return segs, true
	}
	return segs, false
}

// known reports whether q names a local module, type, trait or function,
// or a member of a local type or trait.
func (c *collector) known(q []string) bool {
	if len(q) == 0 {
		return false
	}
	key := strings.Join(q, "::")
	if _, ok := c.types[key]; ok {
		return true
	}
	if _, ok := c.traits[key]; ok {
		return true
	}
	if _, ok := c.fnIndex[key]; ok {
		return true
	}
	if _, ok := c.modules[key]; ok {
		return true
	}
	parent := strings.Join(q[:len(q)-1], "::")
	if _, ok := c.types[parent]; ok && len(q) > 1 {
		return true
	}
	_, ok := c.traits[parent]
	return ok && len(q) > 1
}

// lookupType resolves a type path to an ADT, local or known external.
func (c *collector) lookupType(mod *module, segs []string) *ir.AdtDef {
	if len(segs) == 0 {
		return nil
	}
	q, local := c.resolvePath(mod, segs)
	if local {
		if ad, ok := c.types[strings.Join(q, "::")]; ok {
			return ad.def
		}
		return nil
	}
	return c.extern.lookup(q)
}

// lookupVariant resolves a path naming an enum variant.
func (c *collector) lookupVariant(mod *module, segs []string, self *ir.Ty) (*ir.AdtDef, int, bool) {
	if len(segs) == 0 {
		return nil, 0, false
	}
	if len(segs) == 2 && segs[0] == "Self" && self.IsAdt() {
		return variantOf(self.Adt, segs[1])
	}
	if len(segs) == 1 {
		if _, aliased := mod.uses[segs[0]]; !aliased {
			if owner, ok := preludeVariants[segs[0]]; ok {
				return variantOf(c.extern.adt(owner), segs[0])
			}
			return nil, 0, false
		}
	}
	q, local := c.resolvePath(mod, segs)
	if len(q) < 2 {
		return nil, 0, false
	}
	var def *ir.AdtDef
	if local {
		if ad, ok := c.types[strings.Join(q[:len(q)-1], "::")]; ok {
			def = ad.def
		}
	} else {
		def = c.extern.lookup(q[:len(q)-1])
	}
	if def == nil {
		return nil, 0, false
	}
	return variantOf(def, q[len(q)-1])
}

func variantOf(def *ir.AdtDef, name string) (*ir.AdtDef, int, bool) {
	if def == nil || def.Kind != ir.AdtEnum {
		return nil, 0, false
	}
	v, ok := def.VariantIndex(name)
	return def, v, ok
}

// generics returns the type parameter names of a local ADT.
func (c *collector) generics(def *ir.AdtDef) []string {
	if !def.Local {
		return []string{"T"}
	}
	if ad, ok := c.types[strings.TrimPrefix(def.Name, c.name+"::")]; ok {
		return ad.generics
	}
	return nil
}

// fieldTy returns the type of field i of variant v of ty's ADT with the
// generic arguments of ty substituted.
func (c *collector) fieldTy(ty *ir.Ty, v, i int) *ir.Ty {
	f := ty.Adt.Field(v, i)
	if f == nil || f.Ty == nil {
		return nil
	}
	return subst(f.Ty, c.generics(ty.Adt), ty.Args)
}

func subst(ty *ir.Ty, names []string, args []*ir.Ty) *ir.Ty {
	if ty == nil || len(args) == 0 {
		return ty
	}
	switch ty.Kind {
	case ir.TyOther:
		if k := slices.Index(names, ty.Name); k >= 0 && k < len(args) {
			return args[k]
		}
		return ty
	case ir.TyAdt:
		out := *ty
		out.Args = make([]*ir.Ty, len(ty.Args))
		for i, a := range ty.Args {
			out.Args[i] = subst(a, names, args)
		}
		return &out
	case ir.TyTuple:
		out := *ty
		out.Elems = make([]*ir.Ty, len(ty.Elems))
		for i, e := range ty.Elems {
			out.Elems[i] = subst(e, names, args)
		}
		return &out
	case ir.TyRef, ir.TyRawPtr, ir.TySlice, ir.TyArray:
		out := *ty
		out.Elem = subst(ty.Elem, names, args)
		return &out
	}
	return ty
}

// ---------------------------------------------------------------------------
// Types
// ---------------------------------------------------------------------------

type typeCtx struct {
	c        *collector
	mod      *module
	generics map[string]bool
	self     *ir.Ty
}

// lower converts a type node. Types that are not ADTs, references, raw
// pointers, tuples, arrays or slices become opaque.
func (tc *typeCtx) lower(pf *parsedFile, n *tree_sitter.Node) *ir.Ty {
	if n == nil {
		return ir.Prim("_")
	}
	switch n.Kind() {
	case "primitive_type":
		return ir.Prim(text(pf, n))
	case "unit_type":
		return ir.UnitTy()
	case "type_identifier":
		name := text(pf, n)
		switch {
		case name == "Self" && tc.self != nil:
			return tc.self
		case tc.generics[name]:
			return ir.Prim(name)
		}
		if def := tc.c.lookupType(tc.mod, []string{name}); def != nil {
			return ir.Adt(def)
		}
		return ir.Prim(name)
	case "scoped_type_identifier":
		if def := tc.c.lookupType(tc.mod, splitPath(text(pf, n))); def != nil {
			return ir.Adt(def)
		}
	case "generic_type":
		base := n.ChildByFieldName("type")
		var args []*ir.Ty
		for _, a := range namedChildren(n.ChildByFieldName("type_arguments")) {
			switch a.Kind() {
			case "lifetime", "type_binding", "block", "integer_literal":
				continue
			}
			args = append(args, tc.lower(pf, a))
		}
		if def := tc.c.lookupType(tc.mod, splitPath(text(pf, base))); def != nil {
			return ir.Adt(def, args...)
		}
	case "reference_type":
		return ir.Ref(tc.lower(pf, n.ChildByFieldName("type")), hasChild(n, "mutable_specifier"))
	case "pointer_type":
		return ir.RawPtr(tc.lower(pf, n.ChildByFieldName("type")), hasChild(n, "mutable_specifier"))
	case "tuple_type":
		var elems []*ir.Ty
		for _, e := range namedChildren(n) {
			elems = append(elems, tc.lower(pf, e))
		}
		return ir.Tuple(elems...)
	case "array_type":
		elem := tc.lower(pf, n.ChildByFieldName("element"))
		if n.ChildByFieldName("length") != nil {
			return ir.Array(elem)
		}
		return ir.Slice(elem)
	}
	return ir.Prim(compact(text(pf, n)))
}

// ---------------------------------------------------------------------------
// Paths
// ---------------------------------------------------------------------------

// splitPath splits "a::b::<T>::c" into its segments, dropping generic
// arguments and a leading "::".
func splitPath(s string) []string {
	var b strings.Builder
	depth := 0
	for _, r := range s {
		switch {
		case r == '<':
			depth++
		case r == '>':
			depth--
		case depth == 0 && r != ' ' && r != '\t' && r != '\n':
			b.WriteRune(r)
		}
	}
	var segs []string
	for _, seg := range strings.Split(b.String(), "::") {
		if seg != "" {
			segs = append(segs, seg)
		}
	}
	return segs
}

type useEntry struct {
	alias string
	path  []string
}

// expandUse flattens the argument of a use declaration, e.g.
// "a::{b, c::d as e}" into b => a::b and e => a::c::d.
func expandUse(s string) []useEntry {
	return expandUseIn(nil, compact(s))
}

func expandUseIn(prefix []string, s string) []useEntry {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if i := strings.IndexByte(s, '{'); i >= 0 && strings.HasSuffix(s, "}") {
		p := append(slices.Clone(prefix), splitPath(strings.TrimSuffix(strings.TrimSpace(s[:i]), "::"))...)
		var out []useEntry
		for _, part := range splitTopLevel(s[i+1 : len(s)-1]) {
			out = append(out, expandUseIn(p, part)...)
		}
		return out
	}
	alias := ""
	if before, after, ok := strings.Cut(s, " as "); ok {
		s, alias = before, strings.TrimSpace(after)
	}
	p := append(slices.Clone(prefix), splitPath(s)...)
	if len(p) > 0 && p[len(p)-1] == "self" {
		p = p[:len(p)-1]
	}
	if len(p) == 0 {
		return nil
	}
	if alias == "" {
		alias = p[len(p)-1]
	}
	return []useEntry{{alias: alias, path: p}}
}

// splitTopLevel splits on commas outside braces.
func splitTopLevel(s string) []string {
	var out []string
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '{':
			depth++
		case '}':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	return append(out, s[start:])
}
