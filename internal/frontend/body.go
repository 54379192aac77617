package frontend

import (
	"slices"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/dusk-indust/upg/internal/ir"
)

// bindMode is the default binding mode of a pattern position.
type bindMode int

const (
	byValue bindMode = iota
	byRef
	byRefMut
)

// lowerer builds the body of one function. Locals follow the usual slot
// layout: 0 is the return place, 1..n the parameters, then bindings and
// temporaries in order of appearance. Every evaluated place and every
// assignment destination is recorded.
type lowerer struct {
	c    *collector
	fd   *fnDecl
	pf   *parsedFile
	tc   *typeCtx
	body *ir.Body

	scopes []map[string]int
}

func newLowerer(c *collector, fd *fnDecl) *lowerer {
	tc := &typeCtx{c: c, mod: fd.mod, generics: fd.generics}
	if fd.impl != nil {
		tc.self = fd.impl.selfTy
	} else if fd.trait != nil {
		tc.self = ir.Prim("Self")
	}
	return &lowerer{c: c, fd: fd, pf: fd.file, tc: tc, body: &ir.Body{}}
}

func (l *lowerer) lower() *ir.Body {
	l.push()
	l.body.Locals = append(l.body.Locals, l.fd.ret)
	for _, p := range l.fd.params {
		l.newLocal(p.ty)
	}
	l.body.ArgCount = len(l.fd.params)
	for i, p := range l.fd.params {
		arg := i + 1
		switch p.pattern.Kind() {
		case "self_parameter", "self":
			l.bind("self", arg)
		case "identifier":
			l.bind(text(l.pf, p.pattern), arg)
		default:
			l.bindPattern(p.pattern, ir.Place{Local: arg}, p.ty, byValue)
		}
	}
	_, tail := l.block(l.fd.node.ChildByFieldName("body"))
	if tail && !isUnit(l.fd.ret) {
		l.use(ir.Place{Local: 0})
	}
	l.pop()
	return l.body
}

// ---------------------------------------------------------------------------
// Locals and scopes
// ---------------------------------------------------------------------------

func (l *lowerer) push() { l.scopes = append(l.scopes, map[string]int{}) }
func (l *lowerer) pop()  { l.scopes = l.scopes[:len(l.scopes)-1] }

func (l *lowerer) bind(name string, local int) { l.scopes[len(l.scopes)-1][name] = local }

func (l *lowerer) lookup(name string) (int, bool) {
	for i := len(l.scopes) - 1; i >= 0; i-- {
		if idx, ok := l.scopes[i][name]; ok {
			return idx, true
		}
	}
	return 0, false
}

func (l *lowerer) newLocal(ty *ir.Ty) int {
	if ty == nil {
		ty = ir.Prim("_")
	}
	l.body.Locals = append(l.body.Locals, ty)
	return len(l.body.Locals) - 1
}

// temp allocates a local assigned from an rvalue and records it.
func (l *lowerer) temp(ty *ir.Ty) int {
	idx := l.newLocal(ty)
	l.use(ir.Place{Local: idx})
	return idx
}

func (l *lowerer) use(p ir.Place) {
	l.body.Places = append(l.body.Places, ir.Place{Local: p.Local, Proj: slices.Clone(p.Proj)})
}

func (l *lowerer) callee(fn *ir.FnDef) {
	if fn != nil {
		l.body.Callees = append(l.body.Callees, fn)
	}
}

func (l *lowerer) localTy(idx int) *ir.Ty { return l.body.LocalTy(idx) }

// ---------------------------------------------------------------------------
// Blocks and statements
// ---------------------------------------------------------------------------

// block lowers a block and reports the type of its tail expression and
// whether it has one.
func (l *lowerer) block(n *tree_sitter.Node) (*ir.Ty, bool) {
	if n == nil {
		return ir.UnitTy(), false
	}
	l.push()
	defer l.pop()

	children := namedChildren(n)
	var ty *ir.Ty = ir.UnitTy()
	tail := false
	for i, ch := range children {
		switch ch.Kind() {
		case "let_declaration":
			l.let(ch)
		case "expression_statement":
			for _, e := range namedChildren(ch) {
				l.expr(e)
			}
		case "line_comment", "block_comment", "attribute_item", "inner_attribute_item", "empty_statement",
			"function_item", "struct_item", "enum_item", "union_item", "impl_item", "trait_item",
			"use_declaration", "const_item", "static_item", "type_item", "mod_item", "macro_definition", "label":
		default:
			t := l.expr(ch)
			if i == len(children)-1 {
				ty, tail = t, true
			}
		}
	}
	return ty, tail
}

func (l *lowerer) let(n *tree_sitter.Node) {
	pat := n.ChildByFieldName("pattern")
	var ty *ir.Ty
	if tn := n.ChildByFieldName("type"); tn != nil {
		ty = l.tc.lower(l.pf, tn)
	}
	value := n.ChildByFieldName("value")
	if value == nil {
		if name, ok := bindingName(l.pf, pat); ok {
			l.bind(name, l.newLocal(ty))
		}
		return
	}
	if name, ok := bindingName(l.pf, pat); ok {
		vt := l.expr(value)
		if ty == nil {
			ty = vt
		}
		l.bind(name, l.temp(ty))
	} else {
		src, vt := l.operand(value)
		if ty == nil {
			ty = vt
		}
		l.bindPattern(pat, src, ty, byValue)
	}
	if alt := n.ChildByFieldName("alternative"); alt != nil {
		l.block(alt)
	}
}

// operand evaluates n and returns a place holding its value, materializing
// a temporary when n is not a place expression.
func (l *lowerer) operand(n *tree_sitter.Node) (ir.Place, *ir.Ty) {
	if p, ty, ok := l.place(n); ok {
		return p, ty
	}
	ty := l.expr(n)
	return ir.Place{Local: l.temp(ty)}, ty
}

// bindingName returns the bound name of a simple binding pattern.
func bindingName(pf *parsedFile, pat *tree_sitter.Node) (string, bool) {
	switch pat.Kind() {
	case "identifier":
		return text(pf, pat), true
	case "mut_pattern":
		if inner := pat.NamedChild(pat.NamedChildCount() - 1); inner != nil && inner.Kind() == "identifier" {
			return text(pf, inner), true
		}
	}
	return "", false
}

// ---------------------------------------------------------------------------
// Places
// ---------------------------------------------------------------------------

// place resolves a place expression without recording it. ok is false when
// n is not a place rooted in a local; nothing is evaluated in that case.
func (l *lowerer) place(n *tree_sitter.Node) (ir.Place, *ir.Ty, bool) {
	switch n.Kind() {
	case "identifier", "self":
		idx, ok := l.lookup(text(l.pf, n))
		if !ok {
			return ir.Place{}, nil, false
		}
		return ir.Place{Local: idx}, l.localTy(idx), true

	case "parenthesized_expression":
		if inner := n.NamedChild(0); inner != nil {
			return l.place(inner)
		}

	case "field_expression":
		base, ty, ok := l.place(n.ChildByFieldName("value"))
		if !ok {
			return ir.Place{}, nil, false
		}
		base, ty = autoDeref(base, ty)
		field := text(l.pf, n.ChildByFieldName("field"))
		if ty == nil {
			return base, nil, true
		}
		switch {
		case ty.IsAdt() && ty.Adt.Kind != ir.AdtEnum:
			if i, ok := ty.Adt.FieldIndex(0, field); ok {
				base.Proj = append(base.Proj, ir.Field(i))
				return base, l.c.fieldTy(ty, 0, i), true
			}
		case ty.Kind == ir.TyTuple:
			if i, ok := tupleIndex(field); ok && i < len(ty.Elems) {
				base.Proj = append(base.Proj, ir.Field(i))
				return base, ty.Elems[i], true
			}
		}
		return base, nil, true

	case "unary_expression":
		if !hasChild(n, "*") {
			return ir.Place{}, nil, false
		}
		base, ty, ok := l.place(n.NamedChild(0))
		if !ok {
			return ir.Place{}, nil, false
		}
		base.Proj = append(base.Proj, ir.Deref())
		return base, pointee(ty), true

	case "index_expression":
		base, ty, ok := l.place(n.NamedChild(0))
		if !ok {
			return ir.Place{}, nil, false
		}
		base, ty = autoDeref(base, ty)
		if ty == nil || (ty.Kind != ir.TyArray && ty.Kind != ir.TySlice) {
			return ir.Place{}, nil, false
		}
		if idx := n.NamedChild(1); idx != nil {
			l.expr(idx)
		}
		base.Proj = append(base.Proj, ir.Index())
		return base, ty.Elem, true
	}
	return ir.Place{}, nil, false
}

// autoDeref follows references and boxes the way field access does.
func autoDeref(p ir.Place, ty *ir.Ty) (ir.Place, *ir.Ty) {
	for ty != nil {
		inner := pointee(ty)
		if inner == nil || ty.Kind == ir.TyRawPtr {
			break
		}
		p.Proj = append(p.Proj, ir.Deref())
		ty = inner
	}
	return p, ty
}

// pointee returns the target of a reference, raw pointer or box.
func pointee(ty *ir.Ty) *ir.Ty {
	if ty == nil {
		return nil
	}
	switch {
	case ty.Kind == ir.TyRef || ty.Kind == ir.TyRawPtr:
		return ty.Elem
	case ty.IsAdt() && ty.Adt.Name == "alloc::boxed::Box" && len(ty.Args) > 0:
		return ty.Args[0]
	}
	return nil
}

func tupleIndex(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}

func isUnit(ty *ir.Ty) bool { return ty == nil || (ty.Kind == ir.TyTuple && len(ty.Elems) == 0) }

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// expr evaluates n, records the places it reads or writes and returns its
// type when known.
func (l *lowerer) expr(n *tree_sitter.Node) *ir.Ty {
	if n == nil {
		return nil
	}
	switch n.Kind() {
	case "identifier", "self", "field_expression", "unary_expression", "index_expression", "parenthesized_expression":
		if p, ty, ok := l.place(n); ok {
			l.use(p)
			return ty
		}
		return l.rvalue(n)

	case "reference_expression":
		mut := hasChild(n, "mutable_specifier")
		inner := n.ChildByFieldName("value")
		if p, ty, ok := l.place(inner); ok {
			l.use(p)
			ref := ir.Ref(ty, mut)
			l.temp(ref)
			return ref
		}
		return ir.Ref(l.expr(inner), mut)

	case "call_expression":
		return l.call(n)

	case "struct_expression":
		return l.structExpr(n)

	case "assignment_expression", "compound_assignment_expr":
		l.expr(n.ChildByFieldName("right"))
		left := n.ChildByFieldName("left")
		if p, _, ok := l.place(left); ok {
			l.use(p)
		} else {
			l.expr(left)
		}
		return ir.UnitTy()

	case "block", "unsafe_block", "async_block", "const_block":
		b := n
		if n.Kind() != "block" {
			b = lastNamed(n)
		}
		ty, _ := l.block(b)
		return ty

	case "if_expression":
		l.push()
		l.condition(n.ChildByFieldName("condition"))
		ty, _ := l.block(n.ChildByFieldName("consequence"))
		l.pop()
		if alt := n.ChildByFieldName("alternative"); alt != nil {
			for _, e := range namedChildren(alt) {
				l.expr(e)
			}
		}
		return ty

	case "match_expression":
		return l.match(n)

	case "while_expression":
		l.push()
		l.condition(n.ChildByFieldName("condition"))
		l.block(n.ChildByFieldName("body"))
		l.pop()
		return ir.UnitTy()

	case "loop_expression":
		l.block(n.ChildByFieldName("body"))
		return nil

	case "for_expression":
		it := l.expr(n.ChildByFieldName("value"))
		l.push()
		elem := iterElem(it)
		l.bindPattern(n.ChildByFieldName("pattern"), ir.Place{Local: l.temp(elem)}, elem, byValue)
		l.block(n.ChildByFieldName("body"))
		l.pop()
		return ir.UnitTy()

	case "return_expression":
		if v := n.NamedChild(0); v != nil {
			l.expr(v)
			l.use(ir.Place{Local: 0})
		}
		return ir.Prim("!")

	case "try_expression":
		return unwrapped(l.expr(n.NamedChild(0)))

	case "tuple_expression":
		var elems []*ir.Ty
		for _, e := range namedChildren(n) {
			elems = append(elems, l.expr(e))
		}
		ty := ir.Tuple(elems...)
		l.temp(ty)
		return ty

	case "array_expression":
		var elem *ir.Ty
		for _, e := range namedChildren(n) {
			if t := l.expr(e); elem == nil {
				elem = t
			}
		}
		return ir.Array(elem)

	case "binary_expression":
		lt := l.expr(n.ChildByFieldName("left"))
		l.expr(n.ChildByFieldName("right"))
		switch text(l.pf, n.ChildByFieldName("operator")) {
		case "==", "!=", "<", ">", "<=", ">=", "&&", "||":
			return ir.Prim("bool")
		}
		return lt

	case "type_cast_expression":
		l.expr(n.ChildByFieldName("value"))
		return l.tc.lower(l.pf, n.ChildByFieldName("type"))

	case "scoped_identifier":
		segs := splitPath(text(l.pf, n))
		if def, _, ok := l.c.lookupVariant(l.fd.mod, segs, l.tc.self); ok {
			ty := ir.Adt(def)
			l.temp(ty)
			return ty
		}
		if fn, _ := l.resolveFn(segs); fn != nil && fn.Local {
			l.callee(fn)
			return ir.FnItem(fn)
		}
		return nil

	case "integer_literal":
		return ir.Prim("i32")
	case "float_literal":
		return ir.Prim("f64")
	case "string_literal", "raw_string_literal":
		return ir.Ref(ir.Prim("str"), false)
	case "char_literal":
		return ir.Prim("char")
	case "boolean_literal":
		return ir.Prim("bool")
	case "unit_expression":
		return ir.UnitTy()

	case "closure_expression", "macro_invocation", "line_comment", "block_comment":
		// Closure bodies are separate functions; macro token trees are not
		// lowered.
		return nil
	}

	for _, ch := range namedChildren(n) {
		l.expr(ch)
	}
	return nil
}

// rvalue evaluates expressions that looked like places but are not rooted
// in a local.
func (l *lowerer) rvalue(n *tree_sitter.Node) *ir.Ty {
	switch n.Kind() {
	case "identifier":
		name := text(l.pf, n)
		if def, _, ok := l.c.lookupVariant(l.fd.mod, []string{name}, l.tc.self); ok {
			ty := ir.Adt(def)
			l.temp(ty)
			return ty
		}
		if fn, _ := l.resolveFn([]string{name}); fn != nil && fn.Local {
			l.callee(fn)
			return ir.FnItem(fn)
		}
		return nil
	case "parenthesized_expression":
		return l.expr(n.NamedChild(0))
	case "field_expression":
		ty := l.expr(n.ChildByFieldName("value"))
		_, ty = autoDeref(ir.Place{}, ty)
		field := text(l.pf, n.ChildByFieldName("field"))
		switch {
		case ty.IsAdt() && ty.Adt.Kind != ir.AdtEnum:
			if i, ok := ty.Adt.FieldIndex(0, field); ok {
				return l.c.fieldTy(ty, 0, i)
			}
		case ty != nil && ty.Kind == ir.TyTuple:
			if i, ok := tupleIndex(field); ok && i < len(ty.Elems) {
				return ty.Elems[i]
			}
		}
		return nil
	case "unary_expression":
		ty := l.expr(n.NamedChild(0))
		if hasChild(n, "*") {
			return pointee(ty)
		}
		return ty
	case "index_expression":
		ty := l.expr(n.NamedChild(0))
		l.expr(n.NamedChild(1))
		_, ty = autoDeref(ir.Place{}, ty)
		if ty == nil {
			return nil
		}
		if ty.Elem != nil {
			return ty.Elem
		}
		if ty.IsAdt() && len(ty.Args) > 0 {
			return ty.Args[0]
		}
	}
	return nil
}

// condition lowers an if or while condition, binding let patterns in the
// current scope.
func (l *lowerer) condition(n *tree_sitter.Node) {
	if n == nil {
		return
	}
	switch n.Kind() {
	case "let_condition":
		src, ty := l.operand(n.ChildByFieldName("value"))
		l.discriminant(src, ty)
		l.bindPattern(n.ChildByFieldName("pattern"), src, ty, byValue)
	case "let_chain":
		for _, ch := range namedChildren(n) {
			l.condition(ch)
		}
	default:
		l.expr(n)
	}
}

func (l *lowerer) match(n *tree_sitter.Node) *ir.Ty {
	src, ty := l.operand(n.ChildByFieldName("value"))
	l.discriminant(src, ty)

	var out *ir.Ty
	for _, arm := range namedChildren(n.ChildByFieldName("body")) {
		if arm.Kind() != "match_arm" {
			continue
		}
		l.push()
		if mp := arm.ChildByFieldName("pattern"); mp != nil {
			l.bindPattern(mp.NamedChild(0), src, ty, byValue)
			if guard := mp.ChildByFieldName("condition"); guard != nil {
				l.condition(guard)
			}
		}
		if t := l.expr(arm.ChildByFieldName("value")); out == nil {
			out = t
		}
		l.pop()
	}
	return out
}

// discriminant records the read of an enum scrutinee.
func (l *lowerer) discriminant(src ir.Place, ty *ir.Ty) {
	p, t := autoDeref(src, ty)
	if t.IsAdt() && t.Adt.Kind == ir.AdtEnum {
		l.use(p)
	}
}

// ---------------------------------------------------------------------------
// Calls and aggregates
// ---------------------------------------------------------------------------

func (l *lowerer) call(n *tree_sitter.Node) *ir.Ty {
	fnNode := n.ChildByFieldName("function")
	args := namedChildren(n.ChildByFieldName("arguments"))
	if fnNode.Kind() == "generic_function" {
		fnNode = fnNode.ChildByFieldName("function")
	}

	switch fnNode.Kind() {
	case "field_expression":
		return l.methodCall(fnNode.ChildByFieldName("value"), text(l.pf, fnNode.ChildByFieldName("field")), args)
	case "identifier", "scoped_identifier", "self":
	default:
		l.expr(fnNode)
		l.args(args)
		return nil
	}

	segs := splitPath(text(l.pf, fnNode))
	if len(segs) == 1 {
		if _, local := l.lookup(segs[0]); local {
			// A call through a closure or function pointer local.
			l.expr(fnNode)
			l.args(args)
			return nil
		}
	}
	if def, _, ok := l.c.lookupVariant(l.fd.mod, segs, l.tc.self); ok {
		l.args(args)
		ty := ir.Adt(def)
		l.temp(ty)
		return ty
	}
	if def := l.tupleStruct(segs); def != nil {
		l.args(args)
		ty := ir.Adt(def)
		l.temp(ty)
		return ty
	}

	fn, ret := l.resolveFn(segs)
	l.args(args)
	l.callee(fn)
	if ret != nil {
		l.temp(ret)
	}
	return ret
}

func (l *lowerer) tupleStruct(segs []string) *ir.AdtDef {
	if len(segs) == 1 && segs[0] == "Self" && l.tc.self.IsAdt() {
		return l.tc.self.Adt
	}
	def := l.c.lookupType(l.fd.mod, segs)
	if def == nil || def.Kind != ir.AdtStruct || !def.Local {
		return nil
	}
	return def
}

func (l *lowerer) args(args []*tree_sitter.Node) {
	for _, a := range args {
		l.expr(a)
	}
}

// Associated functions of external types assumed to return Self.
var selfConstructors = map[string]bool{
	"new":           true,
	"default":       true,
	"from":          true,
	"with_capacity": true,
}

// resolveFn resolves a path call to a local function or an opaque external
// one, with its return type when known.
func (l *lowerer) resolveFn(segs []string) (*ir.FnDef, *ir.Ty) {
	c := l.c
	if len(segs) == 0 {
		return nil, nil
	}
	if segs[0] == "Self" && len(segs) == 2 {
		if l.tc.self.IsAdt() {
			if fn := c.methods[l.tc.self.Adt][segs[1]]; fn != nil {
				return fn, c.ret(fn)
			}
			return c.extern.fn(l.tc.self.Adt.Name + "::" + segs[1]), nil
		}
		if l.fd.trait != nil {
			if fn := l.fd.trait.fns[segs[1]]; fn != nil {
				return fn, c.ret(fn)
			}
		}
	}

	q, local := c.resolvePath(l.fd.mod, segs)
	last := q[len(q)-1]
	if local {
		if fd, ok := c.fnIndex[strings.Join(q, "::")]; ok {
			return fd.def, fd.ret
		}
		if len(q) > 1 {
			parent := strings.Join(q[:len(q)-1], "::")
			if ad, ok := c.types[parent]; ok {
				if fn := c.methods[ad.def][last]; fn != nil {
					return fn, c.ret(fn)
				}
			}
			if td, ok := c.traits[parent]; ok {
				if fn := td.fns[last]; fn != nil {
					return fn, c.ret(fn)
				}
			}
		}
	}
	if len(q) > 1 {
		if def := c.lookupType(l.fd.mod, segs[:len(segs)-1]); def != nil && !def.Local {
			var ret *ir.Ty
			if selfConstructors[last] {
				ret = ir.Adt(def)
			}
			return c.extern.fn(def.Name + "::" + last), ret
		}
	}
	return c.extern.fn(strings.Join(q, "::")), nil
}

// ret returns the declared return type of a local function.
func (c *collector) ret(fn *ir.FnDef) *ir.Ty {
	if fd, ok := c.fnIndex[fn.Path]; ok && fd.def == fn {
		return fd.ret
	}
	return nil
}

// methodCall lowers recv.name(args). Local methods get the receiver
// adjustment their self parameter asks for: a reborrow through references,
// an autoref of owned values, or a move.
func (l *lowerer) methodCall(recv *tree_sitter.Node, name string, args []*tree_sitter.Node) *ir.Ty {
	p, rty, isPlace := l.place(recv)
	if !isPlace {
		rty = l.expr(recv)
	}
	_, target := autoDeref(ir.Place{}, rty)

	var fn *ir.FnDef
	switch {
	case target.IsAdt():
		fn = l.c.methods[target.Adt][name]
	case l.fd.trait != nil && target != nil && target.Name == "Self":
		fn = l.fd.trait.fns[name]
	}

	var kind ir.ReceiverKind
	hasRecv := false
	if fn != nil {
		kind, hasRecv = l.c.receiver(fn)
	}
	switch {
	case hasRecv && kind != ir.ReceiverOwned && isPlace:
		mut := kind == ir.ReceiverMutableRef
		if rty != nil && rty.Kind == ir.TyRef {
			adj, _ := autoDeref(p, rty)
			l.use(adj)
		} else {
			l.use(p)
		}
		l.temp(ir.Ref(target, mut))
	case isPlace:
		l.use(p)
	}

	if fn == nil {
		owner := "_"
		switch {
		case target.IsAdt():
			owner = target.Adt.Name
		case target != nil:
			owner = target.String()
		}
		fn = l.c.extern.fn(owner + "::" + name)
	}
	l.args(args)
	l.callee(fn)

	ret := l.c.ret(fn)
	if ret != nil && !isUnit(ret) {
		l.temp(ret)
	}
	return ret
}

func (l *lowerer) structExpr(n *tree_sitter.Node) *ir.Ty {
	segs := splitPath(text(l.pf, n.ChildByFieldName("name")))
	var def *ir.AdtDef
	if d, _, ok := l.c.lookupVariant(l.fd.mod, segs, l.tc.self); ok {
		def = d
	} else if len(segs) == 1 && segs[0] == "Self" && l.tc.self.IsAdt() {
		def = l.tc.self.Adt
	} else {
		def = l.c.lookupType(l.fd.mod, segs)
	}

	for _, f := range namedChildren(n.ChildByFieldName("body")) {
		switch f.Kind() {
		case "field_initializer":
			l.expr(f.ChildByFieldName("value"))
		case "shorthand_field_initializer", "base_field_initializer":
			for _, e := range namedChildren(f) {
				l.expr(e)
			}
		}
	}
	if def == nil {
		return nil
	}
	ty := ir.Adt(def)
	l.temp(ty)
	return ty
}

// ---------------------------------------------------------------------------
// Patterns
// ---------------------------------------------------------------------------

// bindPattern binds the names of pat against the value at src of type ty.
// Matching a reference with a non-reference pattern dereferences it and
// switches to by-reference bindings.
func (l *lowerer) bindPattern(pat *tree_sitter.Node, src ir.Place, ty *ir.Ty, mode bindMode) {
	if pat == nil {
		return
	}
	switch pat.Kind() {
	case "identifier":
		name := text(l.pf, pat)
		if _, _, ok := l.c.lookupVariant(l.fd.mod, []string{name}, l.tc.self); ok {
			return
		}
		l.bindLocal(name, src, ty, mode)

	case "mut_pattern":
		l.bindPattern(lastNamed(pat), src, ty, mode)

	case "ref_pattern":
		m := byRef
		if hasChild(pat, "mutable_specifier") {
			m = byRefMut
		}
		l.bindPattern(lastNamed(pat), src, ty, m)

	case "captured_pattern":
		children := namedChildren(pat)
		if len(children) == 2 {
			l.bindLocal(text(l.pf, children[0]), src, ty, mode)
			l.bindPattern(children[1], src, ty, mode)
		}

	case "reference_pattern":
		src.Proj = append(slices.Clone(src.Proj), ir.Deref())
		l.bindPattern(lastNamed(pat), src, pointee(ty), byValue)

	case "or_pattern":
		for _, alt := range namedChildren(pat) {
			l.bindPattern(alt, src, ty, mode)
		}

	case "tuple_pattern":
		src, ty, mode = derefScrutinee(src, ty, mode)
		for i, sub := range patternElems(pat, nil) {
			var elem *ir.Ty
			if ty != nil && ty.Kind == ir.TyTuple && i < len(ty.Elems) {
				elem = ty.Elems[i]
			}
			l.bindPattern(sub, project(src, ir.Field(i)), elem, mode)
		}

	case "tuple_struct_pattern":
		typeNode := pat.ChildByFieldName("type")
		src, ty, mode = derefScrutinee(src, ty, mode)
		def, variant, ok := l.patternAdt(typeNode)
		if !ok {
			return
		}
		base := src
		if def.Kind == ir.AdtEnum {
			base = project(src, ir.Downcast(variant))
		}
		at := adtTy(def, ty)
		for i, sub := range patternElems(pat, typeNode) {
			l.bindPattern(sub, project(base, ir.Field(i)), l.c.fieldTy(at, variant, i), mode)
		}

	case "struct_pattern":
		typeNode := pat.ChildByFieldName("type")
		src, ty, mode = derefScrutinee(src, ty, mode)
		def, variant, ok := l.patternAdt(typeNode)
		if !ok {
			return
		}
		base := src
		if def.Kind == ir.AdtEnum {
			base = project(src, ir.Downcast(variant))
		}
		at := adtTy(def, ty)
		for _, fp := range namedChildren(pat) {
			if fp.Kind() != "field_pattern" {
				continue
			}
			nameNode := fp.ChildByFieldName("name")
			name := text(l.pf, nameNode)
			i, ok := def.FieldIndex(variant, name)
			if !ok {
				continue
			}
			fsrc, fty := project(base, ir.Field(i)), l.c.fieldTy(at, variant, i)
			if sub := fp.ChildByFieldName("pattern"); sub != nil {
				l.bindPattern(sub, fsrc, fty, mode)
				continue
			}
			m := mode
			if hasChild(fp, "ref") {
				m = byRef
				if hasChild(fp, "mutable_specifier") {
					m = byRefMut
				}
			}
			l.bindLocal(name, fsrc, fty, m)
		}
	}
}

// patternAdt resolves the path of a struct or tuple-struct pattern to an
// ADT and a variant index.
func (l *lowerer) patternAdt(typeNode *tree_sitter.Node) (*ir.AdtDef, int, bool) {
	if typeNode == nil {
		return nil, 0, false
	}
	segs := splitPath(text(l.pf, typeNode))
	if def, v, ok := l.c.lookupVariant(l.fd.mod, segs, l.tc.self); ok {
		return def, v, true
	}
	if len(segs) == 1 && segs[0] == "Self" && l.tc.self.IsAdt() {
		return l.tc.self.Adt, 0, true
	}
	if def := l.c.lookupType(l.fd.mod, segs); def != nil && def.Kind != ir.AdtEnum {
		return def, 0, true
	}
	return nil, 0, false
}

// bindLocal introduces a binding and records both its source and the new
// local.
func (l *lowerer) bindLocal(name string, src ir.Place, ty *ir.Ty, mode bindMode) {
	switch mode {
	case byRef:
		ty = ir.Ref(ty, false)
	case byRefMut:
		ty = ir.Ref(ty, true)
	}
	l.use(src)
	l.bind(name, l.temp(ty))
}

func derefScrutinee(src ir.Place, ty *ir.Ty, mode bindMode) (ir.Place, *ir.Ty, bindMode) {
	for ty != nil && ty.Kind == ir.TyRef {
		src = project(src, ir.Deref())
		if ty.Mut && mode != byRef {
			mode = byRefMut
		} else {
			mode = byRef
		}
		ty = ty.Elem
	}
	return src, ty, mode
}

func project(p ir.Place, elem ir.ProjElem) ir.Place {
	proj := make([]ir.ProjElem, len(p.Proj), len(p.Proj)+1)
	copy(proj, p.Proj)
	return ir.Place{Local: p.Local, Proj: append(proj, elem)}
}

// adtTy returns ty when it instantiates def, or def without arguments.
func adtTy(def *ir.AdtDef, ty *ir.Ty) *ir.Ty {
	if ty.IsAdt() && ty.Adt == def {
		return ty
	}
	return ir.Adt(def)
}

// iterElem guesses the item type of a for loop over ty.
func iterElem(ty *ir.Ty) *ir.Ty {
	switch {
	case ty == nil:
		return nil
	case ty.Kind == ir.TyRef:
		if inner := iterElem(ty.Elem); inner != nil {
			return ir.Ref(inner, ty.Mut)
		}
	case ty.Kind == ir.TyArray || ty.Kind == ir.TySlice:
		return ty.Elem
	case ty.IsAdt() && len(ty.Args) > 0:
		return ty.Args[0]
	}
	return nil
}

// unwrapped returns the success type of an Option or Result.
func unwrapped(ty *ir.Ty) *ir.Ty {
	if ty.IsAdt() && len(ty.Args) > 0 {
		switch ty.Adt.Name {
		case "core::option::Option", "core::result::Result":
			return ty.Args[0]
		}
	}
	return nil
}

// patternElems returns the positional subpatterns of a tuple or tuple
// struct pattern, wildcards included.
func patternElems(pat, skip *tree_sitter.Node) []*tree_sitter.Node {
	var out []*tree_sitter.Node
	for i := uint(0); i < pat.ChildCount(); i++ {
		ch := pat.Child(i)
		if ch == nil || (skip != nil && ch.StartByte() == skip.StartByte()) {
			continue
		}
		if ch.IsNamed() || ch.Kind() == "_" {
			out = append(out, ch)
		}
	}
	return out
}

func lastNamed(n *tree_sitter.Node) *tree_sitter.Node {
	if c := n.NamedChildCount(); c > 0 {
		return n.NamedChild(c - 1)
	}
	return nil
}
