// Package navi builds the navigation tree of a unit: every item gets a
// hierarchical path of segments, the paths are merged into one tree, and
// each node receives a stable pre-order id once the tree is sorted.
package navi

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/dusk-indust/upg/internal/ir"
)

// Kind is the kind of one path segment. The declaration order is the
// canonical sibling order.
type Kind int

const (
	Mod Kind = iota
	Fn
	AssocFn
	Struct
	Enum
	Union
	TraitDecl
	Ty
	ImplTrait
)

var kindNames = [...]string{"Mod", "Fn", "AssocFn", "Struct", "Enum", "Union", "TraitDecl", "Ty", "ImplTrait"}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText decodes a kind name.
func (k *Kind) UnmarshalText(b []byte) error {
	for i, name := range kindNames {
		if name == string(b) {
			*k = Kind(i)
			return nil
		}
	}
	return fmt.Errorf("navi: unknown kind %q", b)
}

// Segment is one step of an item path.
type Segment struct {
	Kind Kind
	Name string
}

func (s Segment) String() string { return s.Kind.String() + "(" + s.Name + ")" }

func less(a, b Segment) bool {
	if a.Kind != b.Kind {
		return a.Kind < b.Kind
	}
	return a.Name < b.Name
}

// Path is the segment sequence leading from the unit root to an item.
type Path []Segment

func (p Path) String() string {
	parts := make([]string, len(p))
	for i, s := range p {
		parts[i] = s.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

const (
	phonyMod     = "__phony"
	primitiveMod = "__primitive"
)

// Entry pairs a fully qualified item name with its path.
type Entry struct {
	Name string
	Path Path
}

// pathBuilder derives item paths for one unit.
type pathBuilder struct {
	root Segment
	unit string
	log  *slog.Logger
}

// ItemPaths derives the path of every item, in item order. Items sharing a
// name each keep their own entry.
func ItemPaths(unit *ir.Unit, log *slog.Logger) []Entry {
	if log == nil {
		log = slog.Default()
	}
	b := &pathBuilder{root: Segment{Mod, unit.Name}, unit: unit.Name, log: log}

	var entries []Entry
	for _, item := range unit.Items {
		p, ok := b.itemPath(item)
		if !ok {
			continue
		}
		entries = append(entries, Entry{Name: unit.Name + "::" + item.DefPath, Path: b.normalize(p)})
	}
	return entries
}

func (b *pathBuilder) itemPath(item ir.Item) (Path, bool) {
	switch item.Kind {
	case ir.ItemFn:
		return b.plain(item, Fn), true
	case ir.ItemStruct:
		return b.plain(item, Struct), true
	case ir.ItemEnum:
		return b.plain(item, Enum), true
	case ir.ItemUnion:
		return b.plain(item, Union), true
	case ir.ItemTrait:
		return b.plain(item, TraitDecl), true
	case ir.ItemTraitFn:
		if item.Trait == nil {
			return nil, false
		}
		p := b.modules(item.Module)
		p = append(p, Segment{TraitDecl, item.Trait.Name}, Segment{AssocFn, item.Name})
		return p, true
	case ir.ItemImplFn:
		return b.implFn(item), true
	}
	return nil, false
}

func (b *pathBuilder) modules(mods []string) Path {
	p := Path{b.root}
	for _, m := range mods {
		p = append(p, Segment{Mod, m})
	}
	return p
}

func (b *pathBuilder) plain(item ir.Item, kind Kind) Path {
	return append(b.modules(item.Module), Segment{kind, item.Name})
}

// implFn places a method next to its local self type, under its local
// trait, or under the phony module when neither is local.
func (b *pathBuilder) implFn(item ir.Item) Path {
	p := b.typePath(item.SelfTy)
	if item.Trait != nil {
		trait := b.typePath(item.Trait)
		switch {
		case b.isLocal(p):
			p = append(p, trait...)
		case b.isLocal(trait):
			p = append(trait, p...)
		default:
			p = b.underPhony(append(p, trait...))
		}
	}
	return append(p, Segment{AssocFn, item.Name})
}

// typePath returns the definition path of a type or trait. Types that are
// not ADTs go under the primitive module of the root.
func (b *pathBuilder) typePath(tp *ir.TypePath) Path {
	if tp == nil || tp.Kind == ir.TypeOther {
		display := "_"
		if tp != nil && tp.Display != "" {
			display = tp.Display
		}
		return Path{b.root, {Mod, primitiveMod}, {Ty, display}}
	}
	var kind Kind
	switch tp.Kind {
	case ir.TypeStruct:
		kind = Struct
	case ir.TypeEnum:
		kind = Enum
	case ir.TypeUnion:
		kind = Union
	default:
		kind = ImplTrait
	}
	p := Path{{Mod, tp.Crate}}
	for _, m := range tp.Module {
		p = append(p, Segment{Mod, m})
	}
	return append(p, Segment{kind, tp.Name})
}

func (b *pathBuilder) isLocal(p Path) bool { return len(p) > 0 && p[0] == b.root }

func (b *pathBuilder) underPhony(p Path) Path {
	return append(Path{b.root, {Mod, phonyMod}}, p...)
}

// normalize guarantees a path starts at the unit root.
func (b *pathBuilder) normalize(p Path) Path {
	if b.isLocal(p) {
		return p
	}
	b.log.Warn("navi.non_root_path", "path", p.String(), "root", b.root.String())
	return b.underPhony(p)
}
