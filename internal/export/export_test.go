package export

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/upg/internal/store"
)

func seededStore(t *testing.T) store.Store {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemStore()
	require.NoError(t, st.InitSchema(ctx))
	for _, fn := range []store.FunctionNode{
		{Name: "demo::main", Safe: true, Analyzed: true},
		{Name: "demo::Buf::push", Safe: true, Analyzed: true},
		{Name: "<demo::Buf as demo::Reset>::reset", Safe: true, Analyzed: true},
		{Name: "core::ptr::write", Safe: false},
	} {
		require.NoError(t, st.AddFunction(ctx, fn))
	}
	require.NoError(t, st.AddCall(ctx, store.CallEdge{Caller: "demo::main", Callee: "demo::Buf::push",
		Ranks: map[string]string{"demo::Buf": "MethodMutableRefReceiver"}}))
	require.NoError(t, st.AddCall(ctx, store.CallEdge{Caller: "demo::Buf::push", Callee: "core::ptr::write"}))
	require.NoError(t, st.AddCall(ctx, store.CallEdge{Caller: "demo::main", Callee: "<demo::Buf as demo::Reset>::reset"}))
	return st
}

func TestGenerateMermaid(t *testing.T) {
	out, err := GenerateMermaid(context.Background(), seededStore(t))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "graph TD\n"))
	assert.Contains(t, out, `["core::ptr"]`)
	assert.Contains(t, out, `["demo::Buf"]`)
	assert.Contains(t, out, `["push"]`)
	assert.Contains(t, out, `["reset"]`)
	assert.Contains(t, out, "-->|Buf: MethodMutableRefReceiver|")
	assert.Equal(t, 3, strings.Count(out, "-->"))
	assert.Equal(t, 1, strings.Count(out, "class "), "one unsafe class line")

	again, err := GenerateMermaid(context.Background(), seededStore(t))
	require.NoError(t, err)
	assert.Equal(t, out, again)
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "f", label("a::b::f"))
	assert.Equal(t, "f", label("f"))
	assert.Equal(t, "#lt;T#gt;", label("a::<T>"))
}

func TestExportGraph(t *testing.T) {
	got, err := ExportGraph(context.Background(), seededStore(t), "demo", 0)
	require.NoError(t, err)

	assert.Equal(t, "demo", got.Unit)
	assert.Equal(t, 4, got.Stats.FunctionCount)
	assert.Len(t, got.Functions, 4)
	assert.Len(t, got.Calls, 3)
	require.Len(t, got.Exposure, 1)
	assert.Equal(t, "core::ptr::write", got.Exposure[0].Unsafe)
	assert.Equal(t, []string{"demo::Buf::push", "demo::main"}, got.Exposure[0].Callers)
}
