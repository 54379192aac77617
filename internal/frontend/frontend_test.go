package frontend

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/upg/internal/ir"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// Tests run from internal/frontend/, so the fixture lives at ../../testdata.
const fixtureDir = "../../testdata/fixtures/rust_demo"

func loadFixture(t *testing.T) *ir.Unit {
	t.Helper()
	unit, err := (&Crate{Dir: fixtureDir}).Load(context.Background())
	require.NoError(t, err)
	return unit
}

func findFn(t *testing.T, unit *ir.Unit, path string) *ir.FnDef {
	t.Helper()
	for _, fn := range unit.Fns {
		if fn.Path == path {
			return fn
		}
	}
	require.FailNow(t, "function not found", path)
	return nil
}

func findAdt(t *testing.T, unit *ir.Unit, name string) *ir.AdtDef {
	t.Helper()
	for _, def := range unit.Adts {
		if def.Name == name {
			return def
		}
	}
	require.FailNow(t, "adt not found", name)
	return nil
}

// loadSource writes src as the library root of a scratch crate and loads it.
func loadSource(t *testing.T, src string) *ir.Unit {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "scratch")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "lib.rs"), []byte(src), 0o644))
	unit, err := (&Crate{Dir: dir}).Load(context.Background())
	require.NoError(t, err)
	return unit
}

// places renders the recorded places of fn as "local proj" strings.
func places(fn *ir.FnDef) []string {
	var out []string
	for _, p := range fn.Body.Places {
		out = append(out, placeString(p))
	}
	return out
}

func placeString(p ir.Place) string {
	return strconv.Itoa(p.Local) + " " + ir.ProjString(p.Proj)
}

func calleePaths(fn *ir.FnDef) []string {
	var out []string
	for _, c := range fn.Body.Callees {
		out = append(out, c.Path)
	}
	return out
}

// ---------------------------------------------------------------------------
// Discovery
// ---------------------------------------------------------------------------

func TestModulePath(t *testing.T) {
	assert.Nil(t, modulePath("lib.rs"))
	assert.Nil(t, modulePath("main.rs"))
	assert.Equal(t, []string{"a"}, modulePath("a/mod.rs"))
	assert.Equal(t, []string{"a", "b"}, modulePath("a/b.rs"))
}

func TestCrateName_FromManifest(t *testing.T) {
	assert.Equal(t, "rust_demo", crateName(fixtureDir))
	assert.Equal(t, "no_manifest", crateName(t.TempDir()+"/no-manifest"))
}

func TestLoad_NoSources(t *testing.T) {
	_, err := (&Crate{Dir: t.TempDir()}).Load(context.Background())
	require.Error(t, err)
}

// ---------------------------------------------------------------------------
// Declarations
// ---------------------------------------------------------------------------

func TestLoad_Adts(t *testing.T) {
	unit := loadFixture(t)
	assert.Equal(t, "rust_demo", unit.Name)

	var names []string
	for _, def := range unit.Adts {
		names = append(names, def.Name)
	}
	assert.Equal(t, []string{"rust_demo::a::Buf", "rust_demo::S", "rust_demo::E"}, names)

	s := findAdt(t, unit, "rust_demo::S")
	assert.Equal(t, ir.AdtStruct, s.Kind)
	assert.True(t, s.Local)
	assert.Contains(t, s.Doc, "A pair of owned strings.")
	require.Len(t, s.Variants, 1)
	require.Len(t, s.Variants[0].Fields, 2)
	assert.Equal(t, "a", s.Variants[0].Fields[0].Name)
	assert.Contains(t, s.Variants[0].Fields[0].Doc, "first half")
	assert.Equal(t, "alloc::string::String", s.Variants[0].Fields[0].Ty.Adt.Name)
	assert.True(t, len(s.Span) > 0)

	e := findAdt(t, unit, "rust_demo::E")
	assert.Equal(t, ir.AdtEnum, e.Kind)
	require.Len(t, e.Variants, 2)
	assert.Equal(t, "A", e.Variants[0].Name)
	assert.Equal(t, "B", e.Variants[1].Name)
	require.Len(t, e.Variants[1].Fields, 1)

	buf := findAdt(t, unit, "rust_demo::a::Buf")
	ptr := buf.Variants[0].Fields[0].Ty
	assert.Equal(t, ir.TyRawPtr, ptr.Kind)
	assert.True(t, ptr.Mut)
}

func TestLoad_FnPaths(t *testing.T) {
	unit := loadFixture(t)

	var paths []string
	for _, fn := range unit.Fns {
		paths = append(paths, fn.Path)
	}
	for _, want := range []string{
		"a::Buf::new", "a::Buf::write_at",
		"make", "S::mutate_a", "S::mutate", "S::len",
		"E::mutate1", "E::mutate2", "E::mutate_plain",
		"Reset::reset", "Reset::reset_twice", "<S as Reset>::reset",
		"fill", "use_all",
	} {
		assert.Contains(t, paths, want)
	}
	assert.NotContains(t, paths, "tests::it_works", "cfg(test) modules are skipped")

	mutate := findFn(t, unit, "S::mutate")
	assert.Equal(t, "rust_demo::S::mutate", mutate.Name)
	assert.Equal(t, ir.FnMethod, mutate.Kind)
	require.NotNil(t, mutate.Receiver)
	assert.Equal(t, ir.ReceiverMutableRef, mutate.Receiver.Kind)
	assert.Equal(t, "rust_demo::S", mutate.Receiver.Adt.Name)

	assert.Equal(t, ir.ReceiverImmutableRef, findFn(t, unit, "S::len").Receiver.Kind)
	assert.Equal(t, ir.FnAssoc, findFn(t, unit, "a::Buf::new").Kind)
	assert.Equal(t, ir.FnFree, findFn(t, unit, "make").Kind)
	assert.Nil(t, findFn(t, unit, "Reset::reset").Body, "trait method without default has no body")
}

func TestLoad_TraitRequiredMethods(t *testing.T) {
	unit := loadSource(t, `
pub trait Raw {
    /// Reads the slot.
    unsafe fn get(&self, i: usize) -> u8;
    fn len() -> usize;
    fn first(&self) -> u8 {
        unsafe { self.get(0) }
    }
}
`)

	get := findFn(t, unit, "Raw::get")
	assert.Nil(t, get.Body)
	assert.True(t, get.Unsafe)
	assert.Equal(t, ir.FnMethod, get.Kind)
	assert.Contains(t, get.Doc, "Reads the slot.")
	assert.Equal(t, ir.FnAssoc, findFn(t, unit, "Raw::len").Kind)

	var traitFns []string
	for _, it := range unit.Items {
		if it.Kind == ir.ItemTraitFn {
			traitFns = append(traitFns, it.DefPath)
		}
	}
	assert.ElementsMatch(t, []string{"Raw::get", "Raw::len", "Raw::first"}, traitFns)

	assert.Equal(t, []string{"Raw::get"}, calleePaths(findFn(t, unit, "Raw::first")))
}

func TestLoad_UnsafeAndAttrs(t *testing.T) {
	unit := loadFixture(t)

	w := findFn(t, unit, "a::Buf::write_at")
	assert.True(t, w.Unsafe)
	assert.False(t, w.Safe())
	assert.Contains(t, w.Doc, "Writes one byte at offset n.")
	require.Len(t, w.Attrs, 2)
	assert.Contains(t, w.Attrs[0], "ValidPtr(ptr, u8, 1)")
	assert.Contains(t, w.Attrs[1], "InBound(ptr, u8, n)")

	assert.True(t, findFn(t, unit, "fill").Safe())
}

func TestLoad_Items(t *testing.T) {
	unit := loadFixture(t)

	byPath := map[string]ir.Item{}
	for _, it := range unit.Items {
		byPath[it.DefPath] = it
	}

	s, ok := byPath["S"]
	require.True(t, ok)
	assert.Equal(t, ir.ItemStruct, s.Kind)

	buf, ok := byPath["a::Buf"]
	require.True(t, ok)
	assert.Equal(t, []string{"a"}, buf.Module)

	impl, ok := byPath["<S as Reset>::reset"]
	require.True(t, ok)
	assert.Equal(t, ir.ItemImplFn, impl.Kind)
	require.NotNil(t, impl.SelfTy)
	assert.Equal(t, "S", impl.SelfTy.Name)
	assert.Equal(t, ir.TypeStruct, impl.SelfTy.Kind)
	require.NotNil(t, impl.Trait)
	assert.Equal(t, "Reset", impl.Trait.Name)
	assert.Equal(t, "rust_demo", impl.Trait.Crate)

	def, ok := byPath["Reset::reset_twice"]
	require.True(t, ok)
	assert.Equal(t, ir.ItemTraitFn, def.Kind)

	inherent, ok := byPath["E::mutate2"]
	require.True(t, ok)
	assert.Nil(t, inherent.Trait)
	assert.Equal(t, ir.TypeEnum, inherent.SelfTy.Kind)
}

// ---------------------------------------------------------------------------
// Bodies
// ---------------------------------------------------------------------------

func TestBody_FieldAssignment(t *testing.T) {
	unit := loadFixture(t)

	fn := findFn(t, unit, "S::mutate_a")
	require.NotNil(t, fn.Body)
	assert.Equal(t, 1, fn.Body.ArgCount)
	self := fn.Body.LocalTy(1)
	assert.Equal(t, ir.TyRef, self.Kind)
	assert.True(t, self.Mut)
	assert.Contains(t, places(fn), "1 [Deref, Field(0)]")
}

func TestBody_MethodCallAutoref(t *testing.T) {
	unit := loadFixture(t)

	fn := findFn(t, unit, "S::mutate")
	ps := places(fn)
	assert.Contains(t, ps, "1 [Deref, Field(0)]")
	assert.Contains(t, ps, "1 [Deref, Field(1)]")
	assert.Contains(t, calleePaths(fn), "alloc::string::String::push")
}

func TestBody_VariantDowncast(t *testing.T) {
	unit := loadFixture(t)

	m1 := places(findFn(t, unit, "E::mutate1"))
	assert.Contains(t, m1, "1 [Deref]", "discriminant read")
	assert.Contains(t, m1, "1 [Deref, Downcast(0), Field(0)]")

	m2 := places(findFn(t, unit, "E::mutate2"))
	assert.Contains(t, m2, "1 [Deref, Downcast(0), Field(0)]")
	assert.Contains(t, m2, "1 [Deref, Downcast(1), Field(0)]")

	plain := places(findFn(t, unit, "E::mutate_plain"))
	assert.Contains(t, plain, "1 [Deref]")
	for _, p := range plain {
		assert.NotContains(t, p, "Downcast", "wildcards bind nothing")
	}
}

func TestBody_Callees(t *testing.T) {
	unit := loadFixture(t)

	callees := calleePaths(findFn(t, unit, "use_all"))
	assert.Contains(t, callees, "make")
	assert.Contains(t, callees, "S::mutate")
	assert.Contains(t, callees, "Reset::reset_twice", "default method reached through the impl")
	assert.Contains(t, callees, "E::mutate2")
	assert.Contains(t, callees, "a::Buf::new")
	assert.Contains(t, callees, "fill")

	fill := calleePaths(findFn(t, unit, "fill"))
	assert.Equal(t, []string{"S::len", "a::Buf::write_at"}, fill)

	twice := calleePaths(findFn(t, unit, "Reset::reset_twice"))
	assert.Equal(t, []string{"Reset::reset", "Reset::reset"}, twice)

	write := calleePaths(findFn(t, unit, "a::Buf::write_at"))
	assert.Contains(t, write, "core::ptr::write")
}

func TestBody_ReturnPlace(t *testing.T) {
	unit := loadFixture(t)

	fn := findFn(t, unit, "make")
	assert.Equal(t, 0, fn.Body.ArgCount)
	assert.Equal(t, "rust_demo::S", fn.Body.RetTy().Adt.Name)
	assert.Contains(t, places(fn), "0 []")
}

func TestLoad_Deterministic(t *testing.T) {
	a := loadFixture(t)
	b := loadFixture(t)

	require.Len(t, b.Fns, len(a.Fns))
	for i := range a.Fns {
		assert.Equal(t, a.Fns[i].Path, b.Fns[i].Path)
		if a.Fns[i].Body != nil {
			assert.Equal(t, places(a.Fns[i]), places(b.Fns[i]))
		}
	}
}
