package analysis

import (
	"fmt"

	"github.com/dusk-indust/upg/internal/ir"
)

// AdtFnKind ranks how privileged a function's relationship to an ADT is.
// Smaller is more privileged.
type AdtFnKind int

const (
	Constructor AdtFnKind = iota
	MethodOwnedReceiver
	MethodMutableRefReceiver
	MethodImmutableRefReceiver
	MutableAsArgument
	ImmutableAsArgument
)

var adtFnKindNames = [...]string{
	Constructor:                "Constructor",
	MethodOwnedReceiver:        "MethodOwnedReceiver",
	MethodMutableRefReceiver:   "MethodMutableRefReceiver",
	MethodImmutableRefReceiver: "MethodImmutableRefReceiver",
	MutableAsArgument:          "MutableAsArgument",
	ImmutableAsArgument:        "ImmutableAsArgument",
}

func (k AdtFnKind) String() string {
	if k >= 0 && int(k) < len(adtFnKindNames) {
		return adtFnKindNames[k]
	}
	return fmt.Sprintf("AdtFnKind(%d)", int(k))
}

// MarshalText encodes the rank by name.
func (k AdtFnKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// AdtFnKindMap holds one rank per ADT.
type AdtFnKindMap = OrderedMap[*ir.AdtDef, AdtFnKind]

// Privileges is the output of the resolver.
type Privileges struct {
	// FnAdt is the most privileged rank of each function per ADT.
	FnAdt *OrderedMap[*ir.FnDef, *AdtFnKindMap]
	// CallerCallee maps a caller and a callee display name to the ranks
	// the callee holds on ADTs the caller touches directly.
	CallerCallee *OrderedMap[*ir.FnDef, *OrderedMap[string, *AdtFnKindMap]]
}

// Callee returns the ADT ranks recorded for one call edge.
func (p *Privileges) Callee(caller *ir.FnDef, callee string) (*AdtFnKindMap, bool) {
	m, ok := p.CallerCallee.Get(caller)
	if !ok {
		return nil, false
	}
	return m.Get(callee)
}

type shape struct {
	kind     ir.FnKind
	receiver *ir.Receiver
}

// ResolvePrivileges ranks every function against every ADT it touches and
// projects those ranks onto the call edges of each caller.
func ResolvePrivileges(adts *OrderedMap[*ir.AdtDef, *AdtInfo], fns *OrderedMap[*ir.FnDef, *FnInfo]) *Privileges {
	p := &Privileges{
		FnAdt:        NewOrderedMap[*ir.FnDef, *AdtFnKindMap](),
		CallerCallee: NewOrderedMap[*ir.FnDef, *OrderedMap[string, *AdtFnKindMap]](),
	}

	adts.Each(func(def *ir.AdtDef, info *AdtInfo) {
		shapes := mergeShapes(info)
		for _, fn := range info.Constructors {
			p.push(fn, def, Constructor)
		}
		for _, fn := range info.AsArgument.Read {
			p.push(fn, def, rank(shapes[fn], def, ImmutableAsArgument))
		}
		for _, fn := range info.AsArgument.Write {
			p.push(fn, def, rank(shapes[fn], def, MutableAsArgument))
		}
	})

	fns.Each(func(caller *ir.FnDef, info *FnInfo) {
		edges := p.CallerCallee.Entry(caller, NewOrderedMap[string, *AdtFnKindMap])
		info.Callees.Each(func(callee *ir.FnDef, name string) {
			ranks, ok := p.FnAdt.Get(callee)
			if !ok {
				return
			}
			edge := edges.Entry(name, NewOrderedMap[*ir.AdtDef, AdtFnKind])
			for _, def := range info.Adts.Keys() {
				if k, ok := ranks.Get(def); ok {
					edge.Set(def, k)
				}
			}
		})
	})
	return p
}

// mergeShapes folds every observation of a function on one ADT into the
// most specific call shape and the first known receiver.
func mergeShapes(info *AdtInfo) map[*ir.FnDef]shape {
	shapes := make(map[*ir.FnDef]shape)
	info.Map.Each(func(_ AccessKind, entries []FnAdt) {
		for _, e := range entries {
			s, ok := shapes[e.Fn]
			if !ok {
				shapes[e.Fn] = shape{kind: e.Kind, receiver: e.Receiver}
				continue
			}
			s.kind = min(s.kind, e.Kind)
			if s.receiver == nil {
				s.receiver = e.Receiver
			}
			shapes[e.Fn] = s
		}
	})
	return shapes
}

func rank(s shape, def *ir.AdtDef, fallback AdtFnKind) AdtFnKind {
	if s.kind != ir.FnMethod || s.receiver == nil || s.receiver.Adt != def {
		return fallback
	}
	switch s.receiver.Kind {
	case ir.ReceiverOwned:
		return MethodOwnedReceiver
	case ir.ReceiverMutableRef:
		return MethodMutableRefReceiver
	default:
		return MethodImmutableRefReceiver
	}
}

// push records k for (fn, def), keeping the more privileged rank.
func (p *Privileges) push(fn *ir.FnDef, def *ir.AdtDef, k AdtFnKind) {
	m := p.FnAdt.Entry(fn, NewOrderedMap[*ir.AdtDef, AdtFnKind])
	if old, ok := m.Get(def); ok && old <= k {
		return
	}
	m.Set(def, k)
}
