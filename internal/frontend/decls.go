package frontend

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/dusk-indust/upg/internal/ir"
)

// module is one module of the crate with its use declarations.
type module struct {
	path []string
	// uses maps an imported name to the path it stands for.
	uses map[string][]string
}

type adtDecl struct {
	def      *ir.AdtDef
	mod      *module
	file     *parsedFile
	node     *tree_sitter.Node
	generics []string
}

type traitDecl struct {
	name string
	mod  *module
	path []string
	fns  map[string]*ir.FnDef
}

type implDecl struct {
	mod      *module
	file     *parsedFile
	node     *tree_sitter.Node
	generics []string
	selfNode *tree_sitter.Node
	trait    *tree_sitter.Node

	selfTy  *ir.Ty
	selfAdt *ir.AdtDef
	fns     []*fnDecl
}

type fnDecl struct {
	def   *ir.FnDef
	name  string
	mod   *module
	file  *parsedFile
	node  *tree_sitter.Node
	impl  *implDecl
	trait *traitDecl
	// item is the index of the navigation item, filled for impl fns once
	// the self type is known.
	item int

	generics map[string]bool
	params   []param
	ret      *ir.Ty
}

type param struct {
	pattern *tree_sitter.Node
	ty      *ir.Ty
}

// collector accumulates the declarations of every file of one crate.
type collector struct {
	name string
	log  *slog.Logger

	modules map[string]*module
	types   map[string]*adtDecl
	traits  map[string]*traitDecl
	fnIndex map[string]*fnDecl
	methods map[*ir.AdtDef]map[string]*ir.FnDef

	adts   []*adtDecl
	fns    []*fnDecl
	impls  []*implDecl
	items  []ir.Item
	extern *externs
}

func newCollector(name string, log *slog.Logger) *collector {
	return &collector{
		name:    name,
		log:     log,
		modules: map[string]*module{},
		types:   map[string]*adtDecl{},
		traits:  map[string]*traitDecl{},
		fnIndex: map[string]*fnDecl{},
		methods: map[*ir.AdtDef]map[string]*ir.FnDef{},
		extern:  newExterns(),
	}
}

func (c *collector) module(path []string) *module {
	key := strings.Join(path, "::")
	m, ok := c.modules[key]
	if !ok {
		m = &module{path: slices.Clone(path), uses: map[string][]string{}}
		c.modules[key] = m
	}
	return m
}

// ---------------------------------------------------------------------------
// Item collection
// ---------------------------------------------------------------------------

func (c *collector) collectFile(pf *parsedFile) {
	c.collectItems(pf, c.module(pf.module), pf.tree.RootNode())
}

func (c *collector) collectItems(pf *parsedFile, mod *module, list *tree_sitter.Node) {
	for _, n := range namedChildren(list) {
		switch n.Kind() {
		case "use_declaration":
			c.collectUse(pf, mod, n)
		case "mod_item":
			body := n.ChildByFieldName("body")
			if body == nil || isTestOnly(pf, n) {
				continue
			}
			name := text(pf, n.ChildByFieldName("name"))
			c.collectItems(pf, c.module(append(slices.Clone(mod.path), name)), body)
		case "struct_item":
			c.collectAdt(pf, mod, n, ir.AdtStruct, ir.ItemStruct)
		case "union_item":
			c.collectAdt(pf, mod, n, ir.AdtUnion, ir.ItemUnion)
		case "enum_item":
			c.collectAdt(pf, mod, n, ir.AdtEnum, ir.ItemEnum)
		case "trait_item":
			c.collectTrait(pf, mod, n)
		case "function_item":
			fd := c.newFn(pf, mod, n)
			fd.def.Kind = ir.FnFree
			c.setPath(fd, qualify(mod.path, fd.name))
			c.items = append(c.items, ir.Item{
				Kind: ir.ItemFn, Name: fd.name, Module: mod.path, DefPath: fd.def.Path,
			})
		case "impl_item":
			c.collectImpl(pf, mod, n)
		}
	}
}

func (c *collector) collectUse(pf *parsedFile, mod *module, n *tree_sitter.Node) {
	arg := n.ChildByFieldName("argument")
	if arg == nil {
		return
	}
	for _, u := range expandUse(text(pf, arg)) {
		if u.alias == "*" || u.alias == "self" || u.alias == "_" {
			continue
		}
		mod.uses[u.alias] = u.path
	}
}

func (c *collector) collectAdt(pf *parsedFile, mod *module, n *tree_sitter.Node, kind ir.AdtKind, item ir.ItemKind) {
	name := text(pf, n.ChildByFieldName("name"))
	q := qualify(mod.path, name)
	doc, _ := leading(pf, n)
	def := &ir.AdtDef{
		Name:  c.name + "::" + q,
		Kind:  kind,
		Local: true,
		Span:  span(pf, n),
		Src:   text(pf, n),
		Doc:   doc,
	}
	ad := &adtDecl{def: def, mod: mod, file: pf, node: n, generics: typeParams(pf, n)}
	c.types[q] = ad
	c.adts = append(c.adts, ad)
	c.items = append(c.items, ir.Item{Kind: item, Name: name, Module: mod.path, DefPath: q})
}

func (c *collector) collectTrait(pf *parsedFile, mod *module, n *tree_sitter.Node) {
	name := text(pf, n.ChildByFieldName("name"))
	q := qualify(mod.path, name)
	td := &traitDecl{name: name, mod: mod, path: append(slices.Clone(mod.path), name), fns: map[string]*ir.FnDef{}}
	c.traits[q] = td
	c.items = append(c.items, ir.Item{Kind: ir.ItemTrait, Name: name, Module: mod.path, DefPath: q})

	body := n.ChildByFieldName("body")
	if body == nil {
		return
	}
	traitPath := &ir.TypePath{Crate: c.name, Module: mod.path, Name: name, Kind: ir.TypeTrait}
	for _, fn := range namedChildren(body) {
		// Required methods are signatures without a body.
		if fn.Kind() != "function_item" && fn.Kind() != "function_signature_item" {
			continue
		}
		fd := c.newFn(pf, mod, fn)
		fd.trait = td
		fd.def.Kind = ir.FnAssoc
		if hasSelfParam(fn) {
			fd.def.Kind = ir.FnMethod
		}
		c.setPath(fd, q+"::"+fd.name)
		td.fns[fd.name] = fd.def
		c.items = append(c.items, ir.Item{
			Kind: ir.ItemTraitFn, Name: fd.name, Module: mod.path, DefPath: fd.def.Path, Trait: traitPath,
		})
	}
}

func (c *collector) collectImpl(pf *parsedFile, mod *module, n *tree_sitter.Node) {
	im := &implDecl{
		mod:      mod,
		file:     pf,
		node:     n,
		generics: typeParams(pf, n),
		selfNode: n.ChildByFieldName("type"),
		trait:    n.ChildByFieldName("trait"),
	}
	c.impls = append(c.impls, im)
	body := n.ChildByFieldName("body")
	if body == nil {
		return
	}
	for _, fn := range namedChildren(body) {
		if fn.Kind() != "function_item" {
			continue
		}
		fd := c.newFn(pf, mod, fn)
		fd.impl = im
		fd.def.Kind = ir.FnAssoc
		if hasSelfParam(fn) {
			fd.def.Kind = ir.FnMethod
		}
		// The path needs the resolved self type and is set in resolveDecls.
		fd.item = len(c.items)
		c.items = append(c.items, ir.Item{Kind: ir.ItemImplFn, Name: fd.name, Module: mod.path})
		im.fns = append(im.fns, fd)
	}
}

func (c *collector) newFn(pf *parsedFile, mod *module, n *tree_sitter.Node) *fnDecl {
	name := text(pf, n.ChildByFieldName("name"))
	doc, attrs := leading(pf, n)
	def := &ir.FnDef{
		Module: mod.path,
		Local:  true,
		Unsafe: isUnsafe(pf, n),
		Span:   span(pf, n),
		Src:    text(pf, n),
		Doc:    doc,
		Attrs:  attrs,
	}
	fd := &fnDecl{def: def, name: name, mod: mod, file: pf, node: n, generics: map[string]bool{}}
	for _, g := range typeParams(pf, n) {
		fd.generics[g] = true
	}
	c.fns = append(c.fns, fd)
	return fd
}

func (c *collector) setPath(fd *fnDecl, path string) {
	fd.def.Path = path
	fd.def.Name = c.name + "::" + path
	c.fnIndex[path] = fd
}

// ---------------------------------------------------------------------------
// Declaration resolution
// ---------------------------------------------------------------------------

// resolveDecls lowers field types, impl headers and function signatures.
// Every declaration of the crate is known at this point.
func (c *collector) resolveDecls() {
	for _, ad := range c.adts {
		c.resolveAdt(ad)
	}
	for _, im := range c.impls {
		c.resolveImpl(im)
	}
	for _, fd := range c.fns {
		c.resolveSig(fd)
	}
}

func (c *collector) resolveAdt(ad *adtDecl) {
	tc := &typeCtx{c: c, mod: ad.mod, generics: setOf(ad.generics)}
	body := ad.node.ChildByFieldName("body")
	def := ad.def
	switch def.Kind {
	case ir.AdtEnum:
		if body == nil {
			return
		}
		for _, v := range namedChildren(body) {
			if v.Kind() != "enum_variant" {
				continue
			}
			doc, _ := leading(ad.file, v)
			def.Variants = append(def.Variants, ir.VariantDef{
				Name:   text(ad.file, v.ChildByFieldName("name")),
				Doc:    doc,
				Fields: c.fields(ad.file, tc, v.ChildByFieldName("body")),
			})
		}
	default:
		def.Variants = []ir.VariantDef{{
			Name:   lastSeg(def.Name),
			Fields: c.fields(ad.file, tc, body),
		}}
	}
}

// fields lowers a named or positional field list.
func (c *collector) fields(pf *parsedFile, tc *typeCtx, list *tree_sitter.Node) []ir.FieldDef {
	if list == nil {
		return nil
	}
	var out []ir.FieldDef
	switch list.Kind() {
	case "field_declaration_list":
		for _, f := range namedChildren(list) {
			if f.Kind() != "field_declaration" {
				continue
			}
			doc, _ := leading(pf, f)
			out = append(out, ir.FieldDef{
				Name: text(pf, f.ChildByFieldName("name")),
				Ty:   tc.lower(pf, f.ChildByFieldName("type")),
				Doc:  doc,
			})
		}
	case "ordered_field_declaration_list":
		for _, f := range namedChildren(list) {
			switch f.Kind() {
			case "attribute_item", "visibility_modifier", "line_comment", "block_comment":
				continue
			}
			out = append(out, ir.FieldDef{Name: fmt.Sprint(len(out)), Ty: tc.lower(pf, f)})
		}
	}
	return out
}

func (c *collector) resolveImpl(im *implDecl) {
	tc := &typeCtx{c: c, mod: im.mod, generics: setOf(im.generics)}
	im.selfTy = tc.lower(im.file, im.selfNode)
	if im.selfTy.IsAdt() {
		im.selfAdt = im.selfTy.Adt
	}
	selfPath, selfStr := c.typePath(im.file, im.selfNode, im.selfTy)

	var traitPath *ir.TypePath
	var traitStr string
	if im.trait != nil {
		traitPath, traitStr = c.traitPath(im.file, im.mod, im.trait)
	}

	for _, fd := range im.fns {
		defPath := selfStr + "::" + fd.name
		if traitPath != nil {
			defPath = "<" + selfStr + " as " + traitStr + ">::" + fd.name
		}
		c.setPath(fd, defPath)
		item := &c.items[fd.item]
		item.DefPath = defPath
		item.SelfTy = selfPath
		item.Trait = traitPath

		if fd.def.Kind == ir.FnMethod && im.selfAdt != nil {
			fd.def.Receiver = &ir.Receiver{Adt: im.selfAdt, Kind: receiverKind(fd.node)}
		}
		if im.selfAdt != nil {
			m := c.methods[im.selfAdt]
			if m == nil {
				m = map[string]*ir.FnDef{}
				c.methods[im.selfAdt] = m
			}
			// Inherent methods shadow trait methods of the same name.
			if _, taken := m[fd.name]; !taken || traitPath == nil {
				m[fd.name] = fd.def
			}
		}
	}

	// Default methods of a local trait become callable on the self type.
	if im.selfAdt == nil || traitPath == nil || traitPath.Crate != c.name {
		return
	}
	td, ok := c.traits[qualify(traitPath.Module, traitPath.Name)]
	if !ok {
		return
	}
	m := c.methods[im.selfAdt]
	if m == nil {
		m = map[string]*ir.FnDef{}
		c.methods[im.selfAdt] = m
	}
	for name, fn := range td.fns {
		if _, taken := m[name]; !taken && fn.Kind == ir.FnMethod {
			m[name] = fn
		}
	}
}

// receiver reports how a local method takes self. Trait default methods
// have no receiver ADT but still declare a self parameter.
func (c *collector) receiver(fn *ir.FnDef) (ir.ReceiverKind, bool) {
	if fn.Receiver != nil {
		return fn.Receiver.Kind, true
	}
	if fd, ok := c.fnIndex[fn.Path]; ok && fd.def == fn && hasSelfParam(fd.node) {
		return receiverKind(fd.node), true
	}
	return 0, false
}

// typePath locates the self type of an impl and renders it for def paths.
func (c *collector) typePath(pf *parsedFile, n *tree_sitter.Node, ty *ir.Ty) (*ir.TypePath, string) {
	if ty.IsAdt() {
		def := ty.Adt
		segs := strings.Split(def.Name, "::")
		tp := &ir.TypePath{Crate: segs[0], Module: segs[1 : len(segs)-1], Name: segs[len(segs)-1]}
		switch def.Kind {
		case ir.AdtEnum:
			tp.Kind = ir.TypeEnum
		case ir.AdtUnion:
			tp.Kind = ir.TypeUnion
		default:
			tp.Kind = ir.TypeStruct
		}
		if def.Local {
			return tp, strings.Join(segs[1:], "::")
		}
		return tp, def.Name
	}
	display := compact(text(pf, n))
	return &ir.TypePath{Kind: ir.TypeOther, Display: display}, display
}

// traitPath resolves the trait of an impl. Traits that are neither local
// nor well known are placed under an "extern" crate.
func (c *collector) traitPath(pf *parsedFile, mod *module, n *tree_sitter.Node) (*ir.TypePath, string) {
	if n.Kind() == "generic_type" {
		n = n.ChildByFieldName("type")
	}
	segs := splitPath(text(pf, n))
	q, local := c.resolvePath(mod, segs)
	if local {
		if td, ok := c.traits[strings.Join(q, "::")]; ok {
			return &ir.TypePath{Crate: c.name, Module: td.mod.path, Name: td.name, Kind: ir.TypeTrait},
				strings.Join(td.path, "::")
		}
	}
	if len(q) == 1 {
		if full, ok := wellKnownTraits[q[0]]; ok {
			q = full
		} else {
			q = []string{"extern", q[0]}
		}
	}
	return &ir.TypePath{Crate: q[0], Module: q[1 : len(q)-1], Name: q[len(q)-1], Kind: ir.TypeTrait},
		strings.Join(q, "::")
}

func (c *collector) resolveSig(fd *fnDecl) {
	tc := &typeCtx{c: c, mod: fd.mod, generics: fd.generics}
	if fd.impl != nil {
		for _, g := range fd.impl.generics {
			tc.generics[g] = true
		}
		tc.self = fd.impl.selfTy
	} else if fd.trait != nil {
		tc.self = ir.Prim("Self")
	}

	pf := fd.file
	if params := fd.node.ChildByFieldName("parameters"); params != nil {
		for _, p := range namedChildren(params) {
			switch p.Kind() {
			case "self_parameter":
				self := tc.self
				if self == nil {
					self = ir.Prim("Self")
				}
				switch receiverKind(fd.node) {
				case ir.ReceiverMutableRef:
					self = ir.Ref(self, true)
				case ir.ReceiverImmutableRef:
					self = ir.Ref(self, false)
				}
				fd.params = append(fd.params, param{pattern: p, ty: self})
			case "parameter":
				fd.params = append(fd.params, param{
					pattern: p.ChildByFieldName("pattern"),
					ty:      tc.lower(pf, p.ChildByFieldName("type")),
				})
			}
		}
	}
	fd.ret = ir.UnitTy()
	if rt := fd.node.ChildByFieldName("return_type"); rt != nil {
		fd.ret = tc.lower(pf, rt)
	}
}

// ---------------------------------------------------------------------------
// Assembly
// ---------------------------------------------------------------------------

func (c *collector) unit() *ir.Unit {
	u := &ir.Unit{Name: c.name, Items: c.items}
	for _, ad := range c.adts {
		u.Adts = append(u.Adts, ad.def)
	}
	for _, fd := range c.fns {
		u.Fns = append(u.Fns, fd.def)
	}
	return u
}

func (c *collector) lowerBodies() {
	for _, fd := range c.fns {
		if fd.node.ChildByFieldName("body") == nil {
			continue
		}
		fd.def.Body = newLowerer(c, fd).lower()
	}
}

// ---------------------------------------------------------------------------
// Syntax helpers
// ---------------------------------------------------------------------------

func namedChildren(n *tree_sitter.Node) []*tree_sitter.Node {
	if n == nil {
		return nil
	}
	out := make([]*tree_sitter.Node, 0, n.NamedChildCount())
	for i := uint(0); i < n.NamedChildCount(); i++ {
		if child := n.NamedChild(i); child != nil {
			out = append(out, child)
		}
	}
	return out
}

func hasChild(n *tree_sitter.Node, kind string) bool {
	for i := uint(0); i < n.ChildCount(); i++ {
		if child := n.Child(i); child != nil && child.Kind() == kind {
			return true
		}
	}
	return false
}

func text(pf *parsedFile, n *tree_sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Utf8Text(pf.src)
}

// span renders a node position as "file:line:col: line:col", one based.
func span(pf *parsedFile, n *tree_sitter.Node) string {
	s, e := n.StartPosition(), n.EndPosition()
	return fmt.Sprintf("%s:%d:%d: %d:%d", pf.rel, s.Row+1, s.Column+1, e.Row+1, e.Column+1)
}

// leading returns the outer doc comment and the attributes written
// directly above an item.
func leading(pf *parsedFile, n *tree_sitter.Node) (doc string, attrs []string) {
	var docs []string
loop:
	for prev := n.PrevSibling(); prev != nil; prev = prev.PrevSibling() {
		t := text(pf, prev)
		switch {
		case prev.Kind() == "attribute_item":
			attrs = append(attrs, t)
		case prev.Kind() == "line_comment" && strings.HasPrefix(t, "///") && !strings.HasPrefix(t, "////"):
			docs = append(docs, strings.TrimRight(strings.TrimPrefix(t, "///"), "\r\n"))
		case prev.Kind() == "line_comment" || prev.Kind() == "block_comment":
		default:
			break loop
		}
	}
	slices.Reverse(docs)
	slices.Reverse(attrs)
	return strings.Join(docs, "\n"), attrs
}

func isTestOnly(pf *parsedFile, n *tree_sitter.Node) bool {
	_, attrs := leading(pf, n)
	for _, a := range attrs {
		if compact(a) == "#[cfg(test)]" {
			return true
		}
	}
	return false
}

func isUnsafe(pf *parsedFile, fn *tree_sitter.Node) bool {
	for _, ch := range namedChildren(fn) {
		if ch.Kind() == "function_modifiers" && strings.Contains(text(pf, ch), "unsafe") {
			return true
		}
	}
	return false
}

func selfParam(fn *tree_sitter.Node) *tree_sitter.Node {
	for _, p := range namedChildren(fn.ChildByFieldName("parameters")) {
		if p.Kind() == "self_parameter" {
			return p
		}
	}
	return nil
}

func hasSelfParam(fn *tree_sitter.Node) bool { return selfParam(fn) != nil }

func receiverKind(fn *tree_sitter.Node) ir.ReceiverKind {
	p := selfParam(fn)
	switch {
	case p == nil || !hasChild(p, "&"):
		return ir.ReceiverOwned
	case hasChild(p, "mutable_specifier"):
		return ir.ReceiverMutableRef
	default:
		return ir.ReceiverImmutableRef
	}
}

// typeParams returns the names of the type parameters of an item.
func typeParams(pf *parsedFile, n *tree_sitter.Node) []string {
	var out []string
	for _, p := range namedChildren(n.ChildByFieldName("type_parameters")) {
		switch p.Kind() {
		case "type_identifier":
			out = append(out, text(pf, p))
		case "constrained_type_parameter", "optional_type_parameter", "type_parameter":
			if left := p.ChildByFieldName("left"); left != nil {
				out = append(out, text(pf, left))
			} else if name := p.ChildByFieldName("name"); name != nil {
				out = append(out, text(pf, name))
			} else if first := p.NamedChild(0); first != nil {
				out = append(out, text(pf, first))
			}
		}
	}
	return out
}

func qualify(mod []string, name string) string {
	if len(mod) == 0 {
		return name
	}
	return strings.Join(mod, "::") + "::" + name
}

func setOf(names []string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

func lastSeg(path string) string {
	if i := strings.LastIndex(path, "::"); i >= 0 {
		return path[i+2:]
	}
	return path
}

// compact collapses runs of whitespace.
func compact(s string) string { return strings.Join(strings.Fields(s), " ") }
