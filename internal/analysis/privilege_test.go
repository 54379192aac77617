package analysis

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/upg/internal/ir"
)

// flatten renders FnAdt as fn -> adt -> rank names for comparison.
func flatten(p *Privileges) map[string]map[string]string {
	out := map[string]map[string]string{}
	p.FnAdt.Each(func(fn *ir.FnDef, m *AdtFnKindMap) {
		inner := map[string]string{}
		m.Each(func(def *ir.AdtDef, k AdtFnKind) { inner[def.Name] = k.String() })
		out[fn.Name] = inner
	})
	return out
}

func rankOf(t *testing.T, p *Privileges, fn *ir.FnDef, def *ir.AdtDef) AdtFnKind {
	t.Helper()
	m, ok := p.FnAdt.Get(fn)
	require.True(t, ok, "no ranks for %s", fn.Name)
	k, ok := m.Get(def)
	require.True(t, ok, "no rank for %s on %s", fn.Name, def.Name)
	return k
}

func TestResolvePrivileges_Ranks(t *testing.T) {
	d := newDemo()
	fns, adts := d.analyze()
	p := ResolvePrivileges(adts, fns)

	assert.Equal(t, map[string]map[string]string{
		"demo::make":      {"demo::S": "Constructor"},
		"demo::make_from": {"demo::S": "Constructor"},
		"demo::pair": {
			"alloc::string::String": "Constructor",
			"demo::S":               "Constructor",
			"demo::E":               "Constructor",
			"core::result::Result":  "Constructor",
		},
		"demo::S::reset":   {"demo::S": "MethodMutableRefReceiver"},
		"demo::S::len":     {"demo::S": "MethodImmutableRefReceiver"},
		"demo::caller":     {"demo::S": "MutableAsArgument"},
		"demo::E::mutate2": {"demo::E": "MethodMutableRefReceiver"},
	}, flatten(p))
}

func TestResolvePrivileges_ConstructorWins(t *testing.T) {
	d := newDemo()
	fns, adts := d.analyze()
	p := ResolvePrivileges(adts, fns)

	s := adtInfo(t, adts, d.s)
	require.Contains(t, s.AsArgument.Read, d.makeFrom, "make_from also takes &S")
	assert.Equal(t, Constructor, rankOf(t, p, d.makeFrom, d.s))
	assert.Equal(t, Constructor, rankOf(t, p, d.make, d.s))
}

func TestResolvePrivileges_ReceiverMustMatch(t *testing.T) {
	d := newDemo()
	// A method of E that takes &S as a plain argument.
	absorb := &ir.FnDef{Name: "demo::E::absorb", Kind: ir.FnMethod, Local: true,
		Receiver: &ir.Receiver{Adt: d.e, Kind: ir.ReceiverImmutableRef},
		Body: &ir.Body{
			Locals:   []*ir.Ty{ir.UnitTy(), ir.Ref(ir.Adt(d.e), false), ir.Ref(ir.Adt(d.s), false)},
			ArgCount: 2,
			Places:   []ir.Place{{Local: 1}, {Local: 2}},
		}}
	fns := AnalyzeFns([]*ir.FnDef{absorb}, nil)
	p := ResolvePrivileges(AggregateAdts(fns), fns)

	assert.Equal(t, MethodImmutableRefReceiver, rankOf(t, p, absorb, d.e))
	assert.Equal(t, ImmutableAsArgument, rankOf(t, p, absorb, d.s))
}

func TestResolvePrivileges_Idempotent(t *testing.T) {
	d := newDemo()
	fns, adts := d.analyze()

	first := flatten(ResolvePrivileges(adts, fns))
	for range 3 {
		assert.Equal(t, first, flatten(ResolvePrivileges(adts, fns)))
	}
}

// TestResolvePrivileges_MinimumOfEvidence derives every candidate rank from
// the raw access map and checks the resolver kept the smallest.
func TestResolvePrivileges_MinimumOfEvidence(t *testing.T) {
	d := newDemo()
	fns, adts := d.analyze()
	p := ResolvePrivileges(adts, fns)

	type key struct {
		fn  *ir.FnDef
		adt *ir.AdtDef
	}
	want := map[key]AdtFnKind{}
	offer := func(k key, r AdtFnKind) {
		if old, ok := want[k]; !ok || r < old {
			want[k] = r
		}
	}
	adts.Each(func(def *ir.AdtDef, info *AdtInfo) {
		for _, fn := range info.Constructors {
			offer(key{fn, def}, Constructor)
		}
		info.Map.Each(func(acc AccessKind, entries []FnAdt) {
			for _, e := range entries {
				if !e.AsArgument {
					continue
				}
				var fallback AdtFnKind
				switch acc.Tag {
				case AccessRef:
					fallback = ImmutableAsArgument
				case AccessMutRef, AccessDeref:
					fallback = MutableAsArgument
				default:
					continue
				}
				r := fallback
				if e.Kind == ir.FnMethod && e.Receiver != nil && e.Receiver.Adt == def {
					r = map[ir.ReceiverKind]AdtFnKind{
						ir.ReceiverOwned:        MethodOwnedReceiver,
						ir.ReceiverMutableRef:   MethodMutableRefReceiver,
						ir.ReceiverImmutableRef: MethodImmutableRefReceiver,
					}[e.Receiver.Kind]
				}
				offer(key{e.Fn, def}, r)
			}
		})
	})

	got := 0
	p.FnAdt.Each(func(fn *ir.FnDef, m *AdtFnKindMap) {
		m.Each(func(def *ir.AdtDef, k AdtFnKind) {
			got++
			assert.Equal(t, want[key{fn, def}], k, "%s on %s", fn.Name, def.Name)
		})
	})
	assert.Equal(t, len(want), got)
}

func TestResolvePrivileges_CallerCallee(t *testing.T) {
	d := newDemo()
	fns, adts := d.analyze()
	p := ResolvePrivileges(adts, fns)

	edges, ok := p.CallerCallee.Get(d.caller)
	require.True(t, ok)
	assert.Equal(t, []string{"demo::S::reset", "demo::S::len", "demo::make"}, edges.Keys(),
		"callees without ranks get no edge")

	reset, _ := edges.Get("demo::S::reset")
	k, _ := reset.Get(d.s)
	assert.Equal(t, MethodMutableRefReceiver, k)

	mk, ok := p.Callee(d.caller, "demo::make")
	require.True(t, ok)
	k, _ = mk.Get(d.s)
	assert.Equal(t, Constructor, k)

	edges, ok = p.CallerCallee.Get(d.mutateA)
	require.True(t, ok, "every caller gets an entry")
	assert.Zero(t, edges.Len())
}

func TestResolvePrivileges_EdgeIntersectsCallerAdts(t *testing.T) {
	d := newDemo()
	// fn outer() { let _ = make(); } touches no ADT directly.
	outer := &ir.FnDef{Name: "demo::outer", Kind: ir.FnFree, Local: true,
		Body: &ir.Body{
			Locals:  []*ir.Ty{ir.UnitTy()},
			Callees: []*ir.FnDef{d.make},
		}}
	fns := AnalyzeFns([]*ir.FnDef{d.make, outer}, nil)
	p := ResolvePrivileges(AggregateAdts(fns), fns)

	edge, ok := p.Callee(outer, "demo::make")
	require.True(t, ok, "edge exists even when no ADT is shared")
	assert.Zero(t, edge.Len())
}

func TestAdtFnKind_Order(t *testing.T) {
	order := []AdtFnKind{
		Constructor,
		MethodOwnedReceiver,
		MethodMutableRefReceiver,
		MethodImmutableRefReceiver,
		MutableAsArgument,
		ImmutableAsArgument,
	}
	for i := 1; i < len(order); i++ {
		assert.Less(t, order[i-1], order[i])
	}

	b, err := json.Marshal(map[string]AdtFnKind{"demo::S": MutableAsArgument})
	require.NoError(t, err)
	assert.JSONEq(t, `{"demo::S":"MutableAsArgument"}`, string(b))
}
