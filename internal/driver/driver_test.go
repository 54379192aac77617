package driver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/upg/internal/analysis"
	"github.com/dusk-indust/upg/internal/frontend"
	"github.com/dusk-indust/upg/internal/ir"
	"github.com/dusk-indust/upg/internal/output"
	"github.com/dusk-indust/upg/internal/safety"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

const fixtureDir = "../../testdata/fixtures/rust_demo"

func runFixture(t *testing.T, opts Options) (*Result, ControlFlow) {
	t.Helper()
	res, flow, err := Run(context.Background(), &frontend.Crate{Dir: fixtureDir}, opts)
	require.NoError(t, err)
	return res, flow
}

func callerByName(t *testing.T, res *Result, name string) *output.Caller {
	t.Helper()
	for _, c := range res.Callers {
		if c.Name == name {
			return c
		}
	}
	require.FailNow(t, "caller record not found", name)
	return nil
}

// attrUnit is a one-function unit carrying the given attributes.
func attrUnit(attrs ...string) *ir.Unit {
	fn := &ir.FnDef{
		Name: "demo::f", Path: "f", Local: true, Unsafe: true, Kind: ir.FnFree, Attrs: attrs,
		Body: &ir.Body{Locals: []*ir.Ty{ir.UnitTy()}},
	}
	return &ir.Unit{
		Name:  "demo",
		Fns:   []*ir.FnDef{fn},
		Items: []ir.Item{{Kind: ir.ItemFn, Name: "f", DefPath: "f"}},
	}
}

// ---------------------------------------------------------------------------
// End to end over the fixture crate
// ---------------------------------------------------------------------------

func TestRun_CallerRecords(t *testing.T) {
	res, _ := runFixture(t, Options{})

	useAll := callerByName(t, res, "rust_demo::use_all")
	assert.True(t, useAll.Safe)
	assert.Equal(t, output.OutputPath{Type: output.PathLocal, Path: "rust_demo::use_all"}, useAll.Path)

	require.Contains(t, useAll.Callees, "rust_demo::make")
	assert.Equal(t, analysis.Constructor, useAll.Callees["rust_demo::make"].Adt["rust_demo::S"])
	require.Contains(t, useAll.Callees, "rust_demo::E::mutate2")
	assert.Equal(t, analysis.MethodMutableRefReceiver, useAll.Callees["rust_demo::E::mutate2"].Adt["rust_demo::E"])
	assert.Contains(t, useAll.Adts, "rust_demo::S")
}

func TestRun_UnsafeCalleeTags(t *testing.T) {
	res, _ := runFixture(t, Options{})

	fill := callerByName(t, res, "rust_demo::fill")
	write, ok := fill.Callees["rust_demo::a::Buf::write_at"]
	require.True(t, ok)
	assert.False(t, write.Safe)
	require.Len(t, write.Tags.Tags, 2)
	assert.Equal(t, "ValidPtr", write.Tags.Tags[0].Tag.Name)
	assert.Equal(t, []string{"ptr", "u8", "1"}, write.Tags.Tags[0].Args)
	assert.Equal(t, "InBound", write.Tags.Tags[1].Tag.Name)
	assert.Contains(t, write.Tags.Spec, "ValidPtr")
	assert.Len(t, write.Tags.Docs, 2)

	own := callerByName(t, res, "rust_demo::a::Buf::write_at")
	assert.False(t, own.Safe)
	assert.Len(t, own.Tags.Tags, 2)
	assert.Zero(t, res.BadAttrs)
}

func TestRun_AdtRecords(t *testing.T) {
	res, _ := runFixture(t, Options{})

	byName := map[string]*output.Adt{}
	for _, rec := range res.Records {
		byName[rec.Name] = rec
	}
	s, ok := byName["rust_demo::S"]
	require.True(t, ok)
	assert.Equal(t, "Struct", s.Kind)
	assert.Contains(t, s.Constructors, "rust_demo::make")
	require.Len(t, s.AccessField, 2)
	assert.Contains(t, s.AccessField[0].Write, "rust_demo::S::mutate_a")

	e, ok := byName["rust_demo::E"]
	require.True(t, ok)
	assert.Equal(t, "Enum", e.Kind)
	assert.Contains(t, e.AccessSelfAsArg.Write, "rust_demo::E::mutate2")
	assert.Contains(t, e.VariantFields, "Variant(0)")
}

func TestRun_SinkLayout(t *testing.T) {
	sink := output.NewMemSink()
	res, _ := runFixture(t, Options{Sink: sink})

	var keys []string
	for _, k := range sink.Keys() {
		keys = append(keys, k.String())
	}
	assert.Contains(t, keys, "rust_demo::fill/caller.json")
	assert.Contains(t, keys, "adt/rust_demo::S.json")
	assert.Contains(t, keys, "navi/tree.json")
	require.NotNil(t, res.Manifest)
	assert.Len(t, res.Manifest.Entries(), len(keys))
}

func TestRun_Deterministic(t *testing.T) {
	a, _ := runFixture(t, Options{Sink: output.NewMemSink()})
	b, _ := runFixture(t, Options{Sink: output.NewMemSink()})
	assert.Empty(t, a.Manifest.Diff(b.Manifest))
}

func TestRun_ControlFlow(t *testing.T) {
	_, flow := runFixture(t, Options{})
	assert.Equal(t, Stop, flow)

	_, flow = runFixture(t, Options{Continue: true})
	assert.Equal(t, Continue, flow)
	assert.Equal(t, "Continue", flow.String())
}

// ---------------------------------------------------------------------------
// Annotation errors
// ---------------------------------------------------------------------------

func TestAnalyze_MalformedAttributeIsSkipped(t *testing.T) {
	unit := attrUnit(
		`#[rapx::requires(ValidPtr(p, T, 1)`,
		`#[rapx::requires(Init(p, T, 1))]`,
	)
	res, _, err := Analyze(context.Background(), unit, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.BadAttrs)
	require.Len(t, res.Props[unit.Fns[0]], 1)
	assert.Equal(t, "Init", res.Props[unit.Fns[0]][0].Tags[0].Tag.Name)
}

func TestAnalyze_UnknownPropertyAborts(t *testing.T) {
	unit := attrUnit(`#[rapx::requires(NoSuchProperty(p))]`)
	_, _, err := Analyze(context.Background(), unit, Options{})
	require.ErrorIs(t, err, safety.ErrUnknownProperty)
}

func TestAnalyze_EmptySpecAborts(t *testing.T) {
	_, _, err := Analyze(context.Background(), attrUnit(), Options{Spec: safety.Spec{}})
	require.ErrorIs(t, err, safety.ErrEmptySpec)
}

func TestAnalyze_OtherToolIgnored(t *testing.T) {
	unit := attrUnit(`#[rapx::requires(ValidPtr(p, T, 1))]`)
	res, _, err := Analyze(context.Background(), unit, Options{Tool: "other"})
	require.NoError(t, err)
	assert.Empty(t, res.Props)
}
