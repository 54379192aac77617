//go:build cgo

package mcptools

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/upg/internal/driver"
	"github.com/dusk-indust/upg/internal/store"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// fixtureAbsPath returns the absolute path to the rust_demo test fixture.
// Tests run from internal/mcptools/, so the relative path is
// ../../testdata/fixtures/rust_demo.
func fixtureAbsPath(t *testing.T) string {
	t.Helper()
	abs, err := filepath.Abs("../../testdata/fixtures/rust_demo")
	require.NoError(t, err)
	return abs
}

// newSeededService returns a service whose graph is a small hand-built
// chain: entry -> wrapper -> raw_write (unsafe), with wrapper touching
// demo::Buf through &mut.
func newSeededService(t *testing.T) *UPGService {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemStore()
	require.NoError(t, st.InitSchema(ctx))

	for _, fn := range []store.FunctionNode{
		{Name: "demo::entry", Kind: store.FnKindFree, Safe: true, Analyzed: true, Path: store.PathLocal},
		{Name: "demo::Buf::wrapper", Kind: store.FnKindMethod, Safe: true, Analyzed: true, Path: store.PathLocal},
		{Name: "demo::raw_write", Kind: store.FnKindFree, Safe: false, Analyzed: true, Path: store.PathLocal, Tags: []string{"ValidPtr"}},
	} {
		require.NoError(t, st.AddFunction(ctx, fn))
	}
	require.NoError(t, st.AddAdt(ctx, store.AdtNode{Name: "demo::Buf", Kind: "Struct", Local: true}))
	require.NoError(t, st.AddCall(ctx, store.CallEdge{Caller: "demo::entry", Callee: "demo::Buf::wrapper"}))
	require.NoError(t, st.AddCall(ctx, store.CallEdge{Caller: "demo::Buf::wrapper", Callee: "demo::raw_write"}))
	require.NoError(t, st.AddAccess(ctx, store.AccessEdge{Fn: "demo::Buf::wrapper", Adt: "demo::Buf", Access: "MutRef", AsArgument: true}))

	svc := NewUPGService(nil, driver.Options{})
	svc.store, svc.unit = st, "demo"
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

// ---------------------------------------------------------------------------
// TestAnalyzeCrate
// ---------------------------------------------------------------------------

func TestAnalyzeCrate(t *testing.T) {
	t.Run("requires cratePath", func(t *testing.T) {
		svc := NewUPGService(nil, driver.Options{})
		_, _, err := svc.AnalyzeCrate(context.Background(), nil, AnalyzeCrateInput{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cratePath is required")
	})

	t.Run("rejects a file", func(t *testing.T) {
		svc := NewUPGService(nil, driver.Options{})
		file := filepath.Join(t.TempDir(), "lib.rs")
		require.NoError(t, os.WriteFile(file, []byte("fn f() {}"), 0o644))
		_, _, err := svc.AnalyzeCrate(context.Background(), nil, AnalyzeCrateInput{CratePath: file})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not a directory")
	})

	t.Run("writes records when outputDir is set", func(t *testing.T) {
		svc := NewUPGService(nil, driver.Options{})
		t.Cleanup(func() { _ = svc.Close() })
		out := t.TempDir()
		_, res, err := svc.AnalyzeCrate(context.Background(), nil, AnalyzeCrateInput{
			CratePath: fixtureAbsPath(t),
			OutputDir: out,
		})
		require.NoError(t, err)
		assert.Equal(t, "rust_demo", res.Unit)
		assert.FileExists(t, filepath.Join(out, "rust_demo", "navi", "tree.json"))
		assert.FileExists(t, filepath.Join(out, "rust_demo", "rust_demo::fill", "caller.json"))
	})

	t.Run("replaces the previous graph", func(t *testing.T) {
		svc := newSeededService(t)
		_, _, err := svc.AnalyzeCrate(context.Background(), nil, AnalyzeCrateInput{CratePath: fixtureAbsPath(t)})
		require.NoError(t, err)

		_, got, err := svc.QueryFunctions(context.Background(), nil, QueryFunctionsInput{Query: "demo::entry"})
		require.NoError(t, err)
		assert.Zero(t, got.Total, "seeded functions are gone")
	})
}

// ---------------------------------------------------------------------------
// TestQueryFunctions
// ---------------------------------------------------------------------------

func TestQueryFunctions(t *testing.T) {
	svc := newSeededService(t)
	ctx := context.Background()

	_, all, err := svc.QueryFunctions(ctx, nil, QueryFunctionsInput{Query: "demo"})
	require.NoError(t, err)
	assert.Equal(t, 3, all.Total)

	_, unsafe, err := svc.QueryFunctions(ctx, nil, QueryFunctionsInput{UnsafeOnly: true})
	require.NoError(t, err)
	require.Equal(t, 1, unsafe.Total)
	assert.Equal(t, "demo::raw_write", unsafe.Functions[0].Name)

	_, none, err := svc.QueryFunctions(ctx, nil, QueryFunctionsInput{Query: "zzz"})
	require.NoError(t, err)
	assert.NotNil(t, none.Functions)
	assert.Zero(t, none.Total)
}

// ---------------------------------------------------------------------------
// TestGetFunction
// ---------------------------------------------------------------------------

func TestGetFunction(t *testing.T) {
	svc := newSeededService(t)
	ctx := context.Background()

	_, got, err := svc.GetFunction(ctx, nil, GetFunctionInput{Name: "demo::Buf::wrapper"})
	require.NoError(t, err)
	assert.Equal(t, store.FnKindMethod, got.Function.Kind)
	assert.Equal(t, []string{"demo::raw_write"}, got.Callees)
	assert.Equal(t, []string{"demo::entry"}, got.Callers)

	_, _, err = svc.GetFunction(ctx, nil, GetFunctionInput{Name: "demo::missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	_, _, err = svc.GetFunction(ctx, nil, GetFunctionInput{})
	require.Error(t, err)
}

// ---------------------------------------------------------------------------
// TestGetPropagation
// ---------------------------------------------------------------------------

func TestGetPropagation(t *testing.T) {
	svc := newSeededService(t)
	ctx := context.Background()

	t.Run("callers by default", func(t *testing.T) {
		_, got, err := svc.GetPropagation(ctx, nil, GetPropagationInput{Name: "demo::raw_write"})
		require.NoError(t, err)
		require.Len(t, got.Chains, 2)
		assert.Equal(t, []string{"demo::raw_write", "demo::Buf::wrapper", "demo::entry"}, got.Chains[1].Nodes)
		assert.Zero(t, got.Unsafe, "no caller is itself unsafe")
	})

	t.Run("callees flag unsafe targets", func(t *testing.T) {
		_, got, err := svc.GetPropagation(ctx, nil, GetPropagationInput{Name: "demo::entry", Direction: "CALLEES"})
		require.NoError(t, err)
		require.Len(t, got.Chains, 2)
		assert.Equal(t, 1, got.Unsafe)
	})

	t.Run("depth bound", func(t *testing.T) {
		_, got, err := svc.GetPropagation(ctx, nil, GetPropagationInput{Name: "demo::entry", Direction: "callees", MaxDepth: 1})
		require.NoError(t, err)
		assert.Len(t, got.Chains, 1)
	})

	t.Run("bad direction", func(t *testing.T) {
		_, _, err := svc.GetPropagation(ctx, nil, GetPropagationInput{Name: "demo::entry", Direction: "sideways"})
		require.Error(t, err)
	})
}

// ---------------------------------------------------------------------------
// TestGetAdtAccessors / TestGraphStats
// ---------------------------------------------------------------------------

func TestGetAdtAccessors(t *testing.T) {
	svc := newSeededService(t)

	_, got, err := svc.GetAdtAccessors(context.Background(), nil, GetAdtAccessorsInput{Adt: "demo::Buf"})
	require.NoError(t, err)
	require.Len(t, got.Accessors, 1)
	assert.Equal(t, "MutRef", got.Accessors[0].Access)
	assert.True(t, got.Accessors[0].AsArgument)

	_, _, err = svc.GetAdtAccessors(context.Background(), nil, GetAdtAccessorsInput{})
	require.Error(t, err)
}

func TestGraphStats(t *testing.T) {
	t.Run("empty service", func(t *testing.T) {
		svc := NewUPGService(nil, driver.Options{})
		_, _, err := svc.GraphStats(context.Background(), nil, GraphStatsInput{})
		require.ErrorIs(t, err, errNoGraph)
	})

	t.Run("seeded", func(t *testing.T) {
		svc := newSeededService(t)
		_, got, err := svc.GraphStats(context.Background(), nil, GraphStatsInput{})
		require.NoError(t, err)
		assert.Equal(t, 3, got.Stats.FunctionCount)
		assert.Equal(t, 1, got.Stats.UnsafeCount)
		assert.Equal(t, 2, got.Stats.CallCount)
		assert.Equal(t, 1, got.Stats.AccessCount)
	})
}
