package analysis

import (
	"log/slog"

	"github.com/dusk-indust/upg/internal/ir"
)

// FnAdt is one function observed under one access kind of an ADT.
type FnAdt struct {
	Fn         *ir.FnDef
	AsArgument bool
	Kind       ir.FnKind
	Receiver   *ir.Receiver
}

// Access splits the functions touching a place by effect.
type Access struct {
	// Read holds functions reaching the place through a shared reference.
	// Interior mutability is not modelled.
	Read []*ir.FnDef
	// Write holds functions reaching it through &mut or a dereference.
	Write []*ir.FnDef
	// Other holds owned and unrecognized accesses.
	Other []*ir.FnDef
}

// Len returns the total number of entries.
func (a *Access) Len() int { return len(a.Read) + len(a.Write) + len(a.Other) }

// AdtInfo is the access profile of one ADT across the unit.
type AdtInfo struct {
	Adt          *ir.AdtDef
	Map          *OrderedMap[AccessKind, []FnAdt]
	Constructors []*ir.FnDef
	AsArgument   Access
	Otherwise    Access
	// Fields has one entry per struct field and is empty for enums and
	// unions.
	Fields []Access
	// VariantFields tracks enum variant fields reached through a downcast.
	// Coverage is best effort.
	VariantFields *OrderedMap[VariantFieldIdx, *Access]
	// Skipped counts entries dropped during backfill because the field
	// index could not be resolved.
	Skipped int
}

func newAdtInfo(def *ir.AdtDef) *AdtInfo {
	return &AdtInfo{
		Adt:           def,
		Map:           NewOrderedMap[AccessKind, []FnAdt](),
		VariantFields: NewOrderedMap[VariantFieldIdx, *Access](),
	}
}

// Aggregator folds function summaries into per-ADT profiles.
type Aggregator struct {
	Cache  *AdtCache
	Logger *slog.Logger
}

func (a *Aggregator) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}

// Aggregate builds the profile of every ADT mentioned by fns. ADTs appear
// in the order they are first met while walking fns.
func (a *Aggregator) Aggregate(fns *OrderedMap[*ir.FnDef, *FnInfo]) *OrderedMap[*ir.AdtDef, *AdtInfo] {
	adts := NewOrderedMap[*ir.AdtDef, *AdtInfo]()
	entry := func(def *ir.AdtDef) *AdtInfo {
		return adts.Entry(def, func() *AdtInfo { return newAdtInfo(def) })
	}

	fns.Each(func(fn *ir.FnDef, info *FnInfo) {
		info.Adts.Each(func(def *ir.AdtDef, la *LocalsAccess) {
			ai := entry(def)
			asArg := la.IsArgument(info.ArgCount)
			for _, acc := range la.Access() {
				v, _ := ai.Map.Get(acc)
				ai.Map.Set(acc, append(v, FnAdt{
					Fn:         fn,
					AsArgument: asArg,
					Kind:       fn.Kind,
					Receiver:   fn.Receiver,
				}))
			}
		})
		for _, def := range info.RetAdts {
			ai := entry(def)
			ai.Constructors = append(ai.Constructors, fn)
		}
	})

	adts.Each(func(_ *ir.AdtDef, ai *AdtInfo) { a.finalize(ai) })
	return adts
}

// finalize allocates the field buckets and backfills every bucket from Map.
func (a *Aggregator) finalize(ai *AdtInfo) {
	desc := a.Cache.Describe(ai.Adt)
	ai.Fields = make([]Access, desc.NumFields)

	ai.Map.Each(func(acc AccessKind, entries []FnAdt) {
		split := func(asArg, other *[]*ir.FnDef) {
			for _, e := range entries {
				if e.AsArgument {
					*asArg = append(*asArg, e.Fn)
				} else {
					*other = append(*other, e.Fn)
				}
			}
		}
		switch acc.Tag {
		case AccessRef:
			split(&ai.AsArgument.Read, &ai.Otherwise.Read)
		case AccessMutRef, AccessDeref:
			split(&ai.AsArgument.Write, &ai.Otherwise.Write)
		case AccessPlain, AccessUnknown:
			split(&ai.AsArgument.Other, &ai.Otherwise.Other)
		case AccessRefVariantField:
			a.backfillField(ai, acc, entries, false)
		case AccessMutRefVariantField, AccessDerefVariantField:
			a.backfillField(ai, acc, entries, true)
		}
	})
}

func (a *Aggregator) backfillField(ai *AdtInfo, acc AccessKind, entries []FnAdt, write bool) {
	var target *Access
	switch {
	case ai.Adt.Kind == ir.AdtStruct:
		idx, ok := acc.Idx.AsField()
		if !ok || idx >= len(ai.Fields) {
			a.logger().Warn("adt.field_out_of_range",
				"adt", ai.Adt.Name, "access", acc.String(), "fields", len(ai.Fields))
			ai.Skipped += len(entries)
			return
		}
		target = &ai.Fields[idx]
	case ai.Adt.Kind == ir.AdtEnum && acc.Idx.Variant >= 0:
		if ai.Adt.Field(acc.Idx.Variant, acc.Idx.Field) == nil {
			a.logger().Warn("adt.variant_field_out_of_range",
				"adt", ai.Adt.Name, "access", acc.String(), "variants", len(ai.Adt.Variants))
			ai.Skipped += len(entries)
			return
		}
		target = ai.VariantFields.Entry(acc.Idx, func() *Access { return &Access{} })
	default:
		a.logger().Warn("adt.field_untracked", "adt", ai.Adt.Name, "kind", string(ai.Adt.Kind), "access", acc.String())
		ai.Skipped += len(entries)
		return
	}

	for _, e := range entries {
		if write {
			target.Write = append(target.Write, e.Fn)
		} else {
			target.Read = append(target.Read, e.Fn)
		}
	}
}

// AggregateAdts is a shorthand for an Aggregator with a fresh cache and
// the default logger.
func AggregateAdts(fns *OrderedMap[*ir.FnDef, *FnInfo]) *OrderedMap[*ir.AdtDef, *AdtInfo] {
	a := &Aggregator{Cache: NewAdtCache(DefaultCacheSize)}
	return a.Aggregate(fns)
}
