package analysis

import (
	"github.com/dusk-indust/upg/internal/ir"
)

// demo is a hand-built unit mirroring the variant-idx and plain-places
// fixtures:
//
//	struct S { a: String, b: String }
//	enum E { A(String), B(String) }
//	impl S { fn mutate_a(&mut self); fn mutate(&mut self); fn reset(&mut self); fn len(&self) -> usize }
//	impl E { fn mutate2(&mut self) }
//	fn make() -> S
//	fn make_from(s: &S) -> S
//	fn pair() -> Result<(S, E), String>
//	fn caller(s: &mut S)
type demo struct {
	str, s, e, result *ir.AdtDef

	stringNew, mutateA, mutate, reset, length, mutate2, make, makeFrom, pair, caller *ir.FnDef

	fns []*ir.FnDef
}

func strField(name string, ty *ir.Ty) ir.FieldDef { return ir.FieldDef{Name: name, Ty: ty} }

func newDemo() *demo {
	d := &demo{}
	d.str = &ir.AdtDef{Name: "alloc::string::String", Kind: ir.AdtStruct,
		Variants: []ir.VariantDef{{Name: "String", Fields: []ir.FieldDef{{Name: "vec"}}}}}
	str := ir.Adt(d.str)
	d.s = &ir.AdtDef{Name: "demo::S", Kind: ir.AdtStruct, Local: true,
		Variants: []ir.VariantDef{{Name: "S", Fields: []ir.FieldDef{strField("a", str), strField("b", str)}}}}
	d.e = &ir.AdtDef{Name: "demo::E", Kind: ir.AdtEnum, Local: true,
		Variants: []ir.VariantDef{
			{Name: "A", Fields: []ir.FieldDef{strField("0", str)}},
			{Name: "B", Fields: []ir.FieldDef{strField("0", str)}},
		}}
	d.result = &ir.AdtDef{Name: "core::result::Result", Kind: ir.AdtEnum,
		Variants: []ir.VariantDef{{Name: "Ok", Fields: []ir.FieldDef{{Name: "0"}}}, {Name: "Err", Fields: []ir.FieldDef{{Name: "0"}}}}}

	s, e := ir.Adt(d.s), ir.Adt(d.e)
	recvS := func(k ir.ReceiverKind) *ir.Receiver { return &ir.Receiver{Adt: d.s, Kind: k} }

	d.stringNew = &ir.FnDef{Name: "alloc::string::String::new", Kind: ir.FnAssoc}

	// self.a = String::new();
	d.mutateA = &ir.FnDef{Name: "demo::S::mutate_a", Kind: ir.FnMethod, Local: true,
		Receiver: recvS(ir.ReceiverMutableRef),
		Body: &ir.Body{
			Locals:   []*ir.Ty{ir.UnitTy(), ir.Ref(s, true), str},
			ArgCount: 1,
			Places: []ir.Place{
				{Local: 2},
				{Local: 1, Proj: []ir.ProjElem{ir.Deref(), ir.Field(0)}},
			},
			Callees: []*ir.FnDef{d.stringNew},
		}}

	// self.a = String::new(); self.b.push(' ');
	d.mutate = &ir.FnDef{Name: "demo::S::mutate", Kind: ir.FnMethod, Local: true,
		Receiver: recvS(ir.ReceiverMutableRef),
		Body: &ir.Body{
			Locals:   []*ir.Ty{ir.UnitTy(), ir.Ref(s, true), str, ir.Ref(str, true)},
			ArgCount: 1,
			Places: []ir.Place{
				{Local: 2},
				{Local: 1, Proj: []ir.ProjElem{ir.Deref(), ir.Field(0)}},
				{Local: 1, Proj: []ir.ProjElem{ir.Deref(), ir.Field(1)}},
				{Local: 3},
			},
			Callees: []*ir.FnDef{d.stringNew},
		}}

	// fn make() -> S { S { a: String::new(), b: String::new() } }
	d.make = &ir.FnDef{Name: "demo::make", Kind: ir.FnFree, Local: true,
		Body: &ir.Body{
			Locals: []*ir.Ty{s, str, str},
			Places: []ir.Place{{Local: 1}, {Local: 2}, {Local: 0}},
			Callees: []*ir.FnDef{d.stringNew, d.stringNew},
		}}

	// *self = make();
	d.reset = &ir.FnDef{Name: "demo::S::reset", Kind: ir.FnMethod, Local: true,
		Receiver: recvS(ir.ReceiverMutableRef),
		Body: &ir.Body{
			Locals:   []*ir.Ty{ir.UnitTy(), ir.Ref(s, true), s},
			ArgCount: 1,
			Places: []ir.Place{
				{Local: 2},
				{Local: 1, Proj: []ir.ProjElem{ir.Deref()}},
			},
			Callees: []*ir.FnDef{d.make},
		}}

	// fn len(&self) -> usize { self.a.len() }
	d.length = &ir.FnDef{Name: "demo::S::len", Kind: ir.FnMethod, Local: true,
		Receiver: recvS(ir.ReceiverImmutableRef),
		Body: &ir.Body{
			Locals:   []*ir.Ty{ir.Prim("usize"), ir.Ref(s, false)},
			ArgCount: 1,
			Places:   []ir.Place{{Local: 1}},
		}}

	// match self { E::A(a) => *a = String::new(), E::B(b) => b.push(' ') }
	d.mutate2 = &ir.FnDef{Name: "demo::E::mutate2", Kind: ir.FnMethod, Local: true,
		Receiver: &ir.Receiver{Adt: d.e, Kind: ir.ReceiverMutableRef},
		Body: &ir.Body{
			Locals:   []*ir.Ty{ir.UnitTy(), ir.Ref(e, true), ir.Ref(str, true), ir.Ref(str, true)},
			ArgCount: 1,
			Places: []ir.Place{
				{Local: 1, Proj: []ir.ProjElem{ir.Deref()}},
				{Local: 1, Proj: []ir.ProjElem{ir.Deref(), ir.Downcast(0), ir.Field(0)}},
				{Local: 2, Proj: []ir.ProjElem{ir.Deref()}},
				{Local: 1, Proj: []ir.ProjElem{ir.Deref(), ir.Downcast(1), ir.Field(0)}},
				{Local: 3},
			},
			Callees: []*ir.FnDef{d.stringNew},
		}}

	// fn make_from(s: &S) -> S
	d.makeFrom = &ir.FnDef{Name: "demo::make_from", Kind: ir.FnFree, Local: true,
		Body: &ir.Body{
			Locals:   []*ir.Ty{s, ir.Ref(s, false)},
			ArgCount: 1,
			Places:   []ir.Place{{Local: 1}, {Local: 0}},
			Callees:  []*ir.FnDef{d.make},
		}}

	// fn pair() -> Result<(S, E), String>
	d.pair = &ir.FnDef{Name: "demo::pair", Kind: ir.FnFree, Local: true,
		Body: &ir.Body{
			Locals: []*ir.Ty{ir.Adt(d.result, ir.Tuple(s, e), str)},
		}}

	// fn caller(s: &mut S) { s.reset(); s.len(); let _ = make(); String::new(); }
	d.caller = &ir.FnDef{Name: "demo::caller", Kind: ir.FnFree, Local: true,
		Body: &ir.Body{
			Locals:   []*ir.Ty{ir.UnitTy(), ir.Ref(s, true), ir.Ref(s, false), s},
			ArgCount: 1,
			Places:   []ir.Place{{Local: 1}, {Local: 2}, {Local: 3}},
			Callees:  []*ir.FnDef{d.reset, d.length, d.make, d.stringNew},
		}}

	d.fns = []*ir.FnDef{d.mutateA, d.mutate, d.make, d.reset, d.length, d.mutate2, d.makeFrom, d.pair, d.caller, d.stringNew}
	return d
}

func (d *demo) analyze() (*OrderedMap[*ir.FnDef, *FnInfo], *OrderedMap[*ir.AdtDef, *AdtInfo]) {
	fns := AnalyzeFns(d.fns, nil)
	return fns, AggregateAdts(fns)
}
