package ir

// FnKind is the call shape of a function. The order is from most to least
// specific, so the smaller value wins when evidence is merged.
type FnKind int

const (
	FnMethod FnKind = iota // takes a self receiver
	FnAssoc                // associated function without receiver
	FnFree                 // free function
)

func (k FnKind) String() string {
	switch k {
	case FnMethod:
		return "Method"
	case FnAssoc:
		return "AssocFn"
	default:
		return "FreeFn"
	}
}

// ReceiverKind describes how a method takes its receiver.
type ReceiverKind int

const (
	ReceiverOwned ReceiverKind = iota
	ReceiverMutableRef
	ReceiverImmutableRef
)

// Receiver is the exact ADT a method receives, one layer of reference deep.
type Receiver struct {
	Adt  *AdtDef
	Kind ReceiverKind
}

// FieldDef is one named or positional field.
type FieldDef struct {
	Name string
	Ty   *Ty
	Doc  string
}

// VariantDef is one variant of an enum. Structs and unions carry a single
// variant named after the type.
type VariantDef struct {
	Name   string
	Doc    string
	Fields []FieldDef
}

// AdtDef is a struct, enum or union definition. Definitions are compared by
// pointer identity; generic instantiations share one AdtDef.
type AdtDef struct {
	Name     string // fully qualified, crate first
	Kind     AdtKind
	Local    bool
	Variants []VariantDef
	Span     string
	Src      string
	Doc      string
}

// NumFields returns the field count of a struct. Enums and unions have no
// field layout the analysis tracks and report ok == false.
func (a *AdtDef) NumFields() (n int, ok bool) {
	if a.Kind != AdtStruct {
		return 0, false
	}
	if len(a.Variants) == 0 {
		return 0, true
	}
	return len(a.Variants[0].Fields), true
}

// Field returns the i-th field of variant v, or nil.
func (a *AdtDef) Field(v, i int) *FieldDef {
	if v < 0 || v >= len(a.Variants) {
		return nil
	}
	fields := a.Variants[v].Fields
	if i < 0 || i >= len(fields) {
		return nil
	}
	return &fields[i]
}

// FieldIndex returns the index of the named field in variant v.
func (a *AdtDef) FieldIndex(v int, name string) (int, bool) {
	if v < 0 || v >= len(a.Variants) {
		return 0, false
	}
	for i, f := range a.Variants[v].Fields {
		if f.Name == name {
			return i, true
		}
	}
	return 0, false
}

// VariantIndex returns the index of the named enum variant.
func (a *AdtDef) VariantIndex(name string) (int, bool) {
	for i, v := range a.Variants {
		if v.Name == name {
			return i, true
		}
	}
	return 0, false
}

// FnDef is one function or method. Definitions are compared by pointer
// identity and are immutable once the Source hands them over.
type FnDef struct {
	// Name is the generic display name. Local items are prefixed with the
	// unit name, e.g. "demo::S::mutate_a".
	Name string
	// Path is the item path without the unit prefix, the key the
	// navigation index is looked up with.
	Path     string
	Module   []string
	Local    bool
	Unsafe   bool
	Kind     FnKind
	Receiver *Receiver
	Span     string
	Src      string
	Doc      string
	// Attrs are raw tool attribute strings such as
	// "#[rapx::requires(ValidPtr(p))]".
	Attrs []string
	// Body is nil when the function has no analyzable body.
	Body *Body
}

// Safe reports whether the function can be called outside an unsafe context.
func (f *FnDef) Safe() bool { return !f.Unsafe }
