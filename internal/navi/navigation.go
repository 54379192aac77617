package navi

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/dusk-indust/upg/internal/ir"
)

// ErrUnresolved means a path does not lead to a node of the tree.
var ErrUnresolved = errors.New("navi: path not found in tree")

// Navigation is the finalized tree of a unit and the index from fully
// qualified item names to node ids.
type Navigation struct {
	Tree     *Tree          `json:"tree"`
	NameToID map[string]int `json:"name_to_id"`

	paths []Entry
}

// Build derives the path of every item of unit, merges them into one tree,
// sorts it and assigns ids. Every path is inserted; when several items share
// a name the index points at the last one. Names whose path cannot be
// replayed are logged and left out of the index.
func Build(unit *ir.Unit, log *slog.Logger) *Navigation {
	if log == nil {
		log = slog.Default()
	}
	entries := ItemPaths(unit, log)
	return FromPaths(Segment{Mod, unit.Name}, entries, log)
}

// FromPaths builds a navigation from already derived paths.
func FromPaths(root Segment, entries []Entry, log *slog.Logger) *Navigation {
	if log == nil {
		log = slog.Default()
	}
	a := newArena(root)
	for _, e := range entries {
		a.insert(e.Path)
	}

	n := &Navigation{
		Tree:     a.finalize(),
		NameToID: make(map[string]int, len(entries)),
		paths:    entries,
	}
	for _, e := range entries {
		id, err := n.Resolve(e.Path)
		if err != nil {
			log.Warn("navi.unresolved", "name", e.Name, "err", err)
			continue
		}
		n.NameToID[e.Name] = id
	}
	return n
}

// Root returns the name of the unit root.
func (n *Navigation) Root() string { return n.Tree.Node.Name }

// ID returns the node id of a fully qualified item name.
func (n *Navigation) ID(name string) (int, bool) {
	id, ok := n.NameToID[name]
	return id, ok
}

// Entries returns the item paths the tree was built from.
func (n *Navigation) Entries() []Entry { return n.paths }

// Resolve replays p against the finalized tree and returns the id of the
// node it ends at.
func (n *Navigation) Resolve(p Path) (int, error) {
	t := n.Tree
	if len(p) > 0 && p[0].Kind == t.Node.Kind && p[0].Name == t.Node.Name {
		p = p[1:]
	}
	for _, seg := range p {
		next := t.child(seg)
		if next == nil {
			return 0, fmt.Errorf("%w: %s under %s(%s)", ErrUnresolved, seg, t.Node.Kind, t.Node.Name)
		}
		t = next
	}
	return t.Node.ID, nil
}

// Lookup returns the derived path of a fully qualified name. A shared name
// yields the path of its last item.
func (n *Navigation) Lookup(name string) (Path, bool) {
	for i := len(n.paths) - 1; i >= 0; i-- {
		if n.paths[i].Name == name {
			return n.paths[i].Path, true
		}
	}
	return nil, false
}
