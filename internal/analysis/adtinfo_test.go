package analysis

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/upg/internal/ir"
)

func adtInfo(t *testing.T, adts *OrderedMap[*ir.AdtDef, *AdtInfo], def *ir.AdtDef) *AdtInfo {
	t.Helper()
	info, ok := adts.Get(def)
	require.True(t, ok, "no AdtInfo for %s", def.Name)
	return info
}

// ---------------------------------------------------------------------------
// Scenarios
// ---------------------------------------------------------------------------

func TestAggregate_StructFieldWrite(t *testing.T) {
	d := newDemo()
	adts := AggregateAdts(AnalyzeFns([]*ir.FnDef{d.mutateA}, nil))

	s := adtInfo(t, adts, d.s)
	require.Len(t, s.Fields, 2)
	assert.Equal(t, []*ir.FnDef{d.mutateA}, s.Fields[0].Write)
	assert.Empty(t, s.Fields[0].Read)
	assert.Empty(t, s.Fields[1].Write)
	assert.Zero(t, s.Skipped)
}

func TestAggregate_EnumVariantFields(t *testing.T) {
	d := newDemo()
	adts := AggregateAdts(AnalyzeFns([]*ir.FnDef{d.mutateA, d.mutate2}, nil))

	e := adtInfo(t, adts, d.e)
	assert.Empty(t, e.Fields, "enums have no struct field buckets")
	assert.Equal(t, []VariantFieldIdx{VariantFieldOf(0, 0), VariantFieldOf(1, 0)}, e.VariantFields.Keys())
	for _, idx := range e.VariantFields.Keys() {
		acc, _ := e.VariantFields.Get(idx)
		assert.Equal(t, []*ir.FnDef{d.mutate2}, acc.Write, "variant field %s", idx)
	}
	assert.Equal(t, []*ir.FnDef{d.mutate2}, e.AsArgument.Write)

	s := adtInfo(t, adts, d.s)
	s.Map.Each(func(_ AccessKind, entries []FnAdt) {
		for _, entry := range entries {
			assert.NotSame(t, d.mutate2, entry.Fn)
		}
	})
}

func TestAggregate_Constructors(t *testing.T) {
	d := newDemo()
	_, adts := d.analyze()

	assert.Equal(t, []*ir.FnDef{d.make, d.makeFrom, d.pair}, adtInfo(t, adts, d.s).Constructors)
	assert.Equal(t, []*ir.FnDef{d.pair}, adtInfo(t, adts, d.result).Constructors)
	assert.Equal(t, []*ir.FnDef{d.pair}, adtInfo(t, adts, d.e).Constructors)
	assert.Equal(t, []*ir.FnDef{d.pair}, adtInfo(t, adts, d.str).Constructors)
}

// ---------------------------------------------------------------------------
// Backfill
// ---------------------------------------------------------------------------

func TestAggregate_Buckets(t *testing.T) {
	d := newDemo()
	_, adts := d.analyze()

	assert.Equal(t, []*ir.AdtDef{d.str, d.s, d.e, d.result}, adts.Keys())

	s := adtInfo(t, adts, d.s)
	assert.Equal(t, []*ir.FnDef{d.length, d.makeFrom, d.caller}, s.AsArgument.Read)
	assert.Equal(t, []*ir.FnDef{d.reset, d.caller}, s.AsArgument.Write)
	assert.Equal(t, []*ir.FnDef{d.reset, d.makeFrom, d.caller}, s.AsArgument.Other)
	assert.Empty(t, s.Otherwise.Read)
	assert.Empty(t, s.Otherwise.Write)
	assert.Equal(t, []*ir.FnDef{d.make}, s.Otherwise.Other)
	assert.Equal(t, []*ir.FnDef{d.mutateA, d.mutate}, s.Fields[0].Write)
	assert.Equal(t, []*ir.FnDef{d.mutate}, s.Fields[1].Write)

	str := adtInfo(t, adts, d.str)
	assert.Empty(t, str.AsArgument.Read)
	assert.Empty(t, str.AsArgument.Write)
	assert.Equal(t, []*ir.FnDef{d.mutate, d.mutate2, d.mutate2}, str.Otherwise.Write,
		"mutate2 writes String through both MutRef and Deref")
}

func TestAggregate_BucketSum(t *testing.T) {
	d := newDemo()
	_, adts := d.analyze()

	adts.Each(func(def *ir.AdtDef, info *AdtInfo) {
		recorded := 0
		info.Map.Each(func(_ AccessKind, entries []FnAdt) { recorded += len(entries) })

		backfilled := info.AsArgument.Len() + info.Otherwise.Len() + info.Skipped
		for i := range info.Fields {
			backfilled += info.Fields[i].Len()
		}
		info.VariantFields.Each(func(_ VariantFieldIdx, acc *Access) { backfilled += acc.Len() })

		assert.Equal(t, recorded, backfilled, def.Name)
	})
}

func TestAggregate_OutOfRangeField(t *testing.T) {
	d := newDemo()
	u := &ir.AdtDef{Name: "demo::U", Kind: ir.AdtUnion, Local: true,
		Variants: []ir.VariantDef{{Name: "U", Fields: []ir.FieldDef{{Name: "x", Ty: ir.Prim("u32")}}}}}
	bad := &ir.FnDef{Name: "demo::bad", Kind: ir.FnFree, Local: true,
		Body: &ir.Body{
			Locals:   []*ir.Ty{ir.UnitTy(), ir.Ref(ir.Adt(d.s), true), ir.Adt(u)},
			ArgCount: 1,
			Places: []ir.Place{
				{Local: 1, Proj: []ir.ProjElem{ir.Deref(), ir.Field(7)}},
				{Local: 2, Proj: []ir.ProjElem{ir.Deref(), ir.Field(0)}},
			},
		}}

	var buf bytes.Buffer
	agg := &Aggregator{
		Cache:  NewAdtCache(8),
		Logger: slog.New(slog.NewTextHandler(&buf, nil)),
	}
	adts := agg.Aggregate(AnalyzeFns([]*ir.FnDef{bad}, nil))

	s := adtInfo(t, adts, d.s)
	assert.Equal(t, 1, s.Skipped)
	assert.Empty(t, s.Fields[0].Write)
	assert.Empty(t, s.Fields[1].Write)
	assert.Contains(t, buf.String(), "adt.field_out_of_range")
	assert.Contains(t, buf.String(), "demo::S")

	un := adtInfo(t, adts, u)
	assert.Equal(t, 1, un.Skipped, "union fields are not tracked")
	assert.Empty(t, un.Fields)
	assert.Contains(t, buf.String(), "level=WARN msg=adt.field_untracked")
	assert.Contains(t, buf.String(), "demo::U")
}

// ---------------------------------------------------------------------------
// AdtCache
// ---------------------------------------------------------------------------

func TestAdtCache_Describe(t *testing.T) {
	d := newDemo()
	cache := NewAdtCache(4)

	s := cache.Describe(d.s)
	assert.Same(t, s, cache.Describe(d.s))
	assert.Equal(t, 2, s.NumFields)
	assert.Equal(t, []LayoutEntry{
		{Idx: FieldIdx(0), Name: "a"},
		{Idx: FieldIdx(1), Name: "b"},
	}, s.VariantFields)

	e := cache.Describe(d.e)
	assert.Zero(t, e.NumFields)
	assert.Equal(t, []LayoutEntry{
		{Idx: VariantIdx(0), Name: "A"},
		{Idx: VariantFieldOf(0, 0), Name: "A.0"},
		{Idx: VariantIdx(1), Name: "B"},
		{Idx: VariantFieldOf(1, 0), Name: "B.0"},
	}, e.VariantFields)
	assert.Equal(t, 2, cache.Len())
}

func TestAdtCache_Evicts(t *testing.T) {
	d := newDemo()
	cache := NewAdtCache(1)
	first := cache.Describe(d.s)
	cache.Describe(d.e)
	assert.Equal(t, 1, cache.Len())
	assert.NotSame(t, first, cache.Describe(d.s))
}
