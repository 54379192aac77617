package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/dusk-indust/upg/internal/analysis"
	"github.com/dusk-indust/upg/internal/driver"
	"github.com/dusk-indust/upg/internal/ir"
	"github.com/dusk-indust/upg/internal/navi"
	"github.com/dusk-indust/upg/internal/output"
)

// Load copies an analysis result into s: every analyzed function and every
// callee, every aggregated ADT, the call and access edges and the
// navigation tree.
func Load(ctx context.Context, s Store, res *driver.Result) error {
	if err := s.InitSchema(ctx); err != nil {
		return err
	}

	paths := make(map[string]output.OutputPath, len(res.Callers))
	for _, rec := range res.Callers {
		paths[rec.Name] = rec.Path
	}

	// Callees first so analyzed records replace any stub of the same name.
	added := map[*ir.FnDef]bool{}
	for _, info := range infos(res) {
		for _, callee := range info.Callees.Keys() {
			if _, analyzed := res.Fns.Get(callee); analyzed || added[callee] {
				continue
			}
			added[callee] = true
			if err := s.AddFunction(ctx, functionNode(res, callee, false, output.OutputPath{})); err != nil {
				return fmt.Errorf("add callee %s: %w", callee.Name, err)
			}
		}
	}
	for _, info := range infos(res) {
		if err := s.AddFunction(ctx, functionNode(res, info.Fn, true, paths[info.Fn.Name])); err != nil {
			return fmt.Errorf("add function %s: %w", info.Fn.Name, err)
		}
	}

	for _, def := range res.Adts.Keys() {
		node := AdtNode{Name: def.Name, Kind: string(def.Kind), Local: def.Local, Span: def.Span, Doc: def.Doc}
		if err := s.AddAdt(ctx, node); err != nil {
			return fmt.Errorf("add adt %s: %w", def.Name, err)
		}
	}

	for _, info := range infos(res) {
		if err := loadEdges(ctx, s, res, info); err != nil {
			return err
		}
	}

	var werr error
	res.Navi.Tree.Walk(func(node navi.Node, parent int) {
		if werr != nil {
			return
		}
		werr = s.AddNaviNode(ctx, NaviNode{ID: node.ID, Parent: parent, Kind: node.Kind.String(), Name: node.Name})
	})
	return werr
}

func infos(res *driver.Result) []*analysis.FnInfo {
	out := make([]*analysis.FnInfo, 0, res.Fns.Len())
	res.Fns.Each(func(_ *ir.FnDef, info *analysis.FnInfo) { out = append(out, info) })
	return out
}

func loadEdges(ctx context.Context, s Store, res *driver.Result, info *analysis.FnInfo) error {
	caller := info.Fn
	for _, callee := range info.Callees.Keys() {
		edge := CallEdge{Caller: caller.Name, Callee: callee.Name}
		if ranks, ok := res.Privileges.Callee(caller, callee.Name); ok && ranks.Len() > 0 {
			edge.Ranks = make(map[string]string, ranks.Len())
			ranks.Each(func(def *ir.AdtDef, k analysis.AdtFnKind) { edge.Ranks[def.Name] = k.String() })
		}
		if err := s.AddCall(ctx, edge); err != nil {
			return fmt.Errorf("add call %s -> %s: %w", caller.Name, callee.Name, err)
		}
	}

	var err error
	info.Adts.Each(func(def *ir.AdtDef, la *analysis.LocalsAccess) {
		if err != nil {
			return
		}
		asArg := la.IsArgument(info.ArgCount)
		for _, acc := range la.Access() {
			edge := AccessEdge{Fn: caller.Name, Adt: def.Name, Access: acc.String(), AsArgument: asArg}
			if err = s.AddAccess(ctx, edge); err != nil {
				err = fmt.Errorf("add access %s -> %s: %w", caller.Name, def.Name, err)
				return
			}
		}
	})
	return err
}

func functionNode(res *driver.Result, fn *ir.FnDef, analyzed bool, path output.OutputPath) FunctionNode {
	node := FunctionNode{
		Name:     fn.Name,
		Kind:     fnKind(fn.Kind),
		Safe:     fn.Safe(),
		Analyzed: analyzed,
		Path:     PathExternal,
		Span:     fn.Span,
		Doc:      fn.Doc,
	}
	if path.Type == output.PathLocal {
		node.Path = PathLocal
	}
	seen := map[string]bool{}
	for _, props := range res.Tags(fn) {
		for _, p := range props.Tags {
			if !seen[p.Tag.Name] {
				seen[p.Tag.Name] = true
				node.Tags = append(node.Tags, p.Tag.Name)
			}
		}
	}
	sort.Strings(node.Tags)
	return node
}

func fnKind(k ir.FnKind) FnKind {
	switch k {
	case ir.FnMethod:
		return FnKindMethod
	case ir.FnAssoc:
		return FnKindAssoc
	default:
		return FnKindFree
	}
}
