package navi

import (
	"sort"
)

// Node is a tree node as emitted.
type Node struct {
	Kind Kind   `json:"kind"`
	Name string `json:"name"`
	ID   int    `json:"id"`
}

// Tree is the finalized tree: children sorted, ids assigned.
type Tree struct {
	Node Node    `json:"node"`
	Sub  []*Tree `json:"sub"`
}

// child returns the direct child matching seg.
func (t *Tree) child(seg Segment) *Tree {
	for _, sub := range t.Sub {
		if sub.Node.Kind == seg.Kind && sub.Node.Name == seg.Name {
			return sub
		}
	}
	return nil
}

// Len returns the number of nodes in the tree.
func (t *Tree) Len() int {
	n := 1
	for _, sub := range t.Sub {
		n += sub.Len()
	}
	return n
}

// Walk visits every node in pre-order with its parent id; the root has
// parent -1.
func (t *Tree) Walk(fn func(node Node, parent int)) {
	t.walk(-1, fn)
}

func (t *Tree) walk(parent int, fn func(Node, int)) {
	fn(t.Node, parent)
	for _, sub := range t.Sub {
		sub.walk(t.Node.ID, fn)
	}
}

// arena is the mutable tree used while paths are inserted. Children are
// index lists into nodes; node 0 is the root.
type arena struct {
	nodes []arenaNode
}

type arenaNode struct {
	seg      Segment
	children []int
}

func newArena(root Segment) *arena {
	return &arena{nodes: []arenaNode{{seg: root}}}
}

// insert walks p from the root, finding or creating one child per segment.
// A leading root segment is consumed by the root itself.
func (a *arena) insert(p Path) {
	if len(p) > 0 && p[0] == a.nodes[0].seg {
		p = p[1:]
	}
	cur := 0
	for _, seg := range p {
		cur = a.findOrCreate(cur, seg)
	}
}

func (a *arena) findOrCreate(parent int, seg Segment) int {
	for _, c := range a.nodes[parent].children {
		if a.nodes[c].seg == seg {
			return c
		}
	}
	idx := len(a.nodes)
	a.nodes = append(a.nodes, arenaNode{seg: seg})
	a.nodes[parent].children = append(a.nodes[parent].children, idx)
	return idx
}

// finalize sorts every sibling list canonically and numbers the nodes in
// depth-first pre-order starting at 0.
func (a *arena) finalize() *Tree {
	next := 0
	var build func(idx int) *Tree
	build = func(idx int) *Tree {
		n := &a.nodes[idx]
		sort.Slice(n.children, func(i, j int) bool {
			return less(a.nodes[n.children[i]].seg, a.nodes[n.children[j]].seg)
		})
		t := &Tree{
			Node: Node{Kind: n.seg.Kind, Name: n.seg.Name, ID: next},
			Sub:  make([]*Tree, 0, len(n.children)),
		}
		next++
		for _, c := range n.children {
			t.Sub = append(t.Sub, build(c))
		}
		return t
	}
	return build(0)
}
