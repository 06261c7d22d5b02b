// Package graph builds the ancestry graph of a set of commits.
package graph

import (
	"iter"
	"slices"
)

// Node is a commit as seen by the graph: its message and ordered parent ids.
type Node struct {
	ID      string
	Message string
	Parents []string
}

// Edge is a parent -> child relationship.
type Edge struct {
	Parent string
	Child  string
}

// Graph maps commit ids to nodes and remembers insertion order. It is filled
// once by a Builder and only read afterwards.
type Graph struct {
	order []string
	nodes map[string]Node
}

func New() *Graph {
	return &Graph{nodes: make(map[string]Node)}
}

// FromNodes builds a graph from already resolved nodes, keeping the first
// occurrence of each id.
func FromNodes(nodes ...Node) *Graph {
	g := New()
	for _, n := range nodes {
		g.add(n)
	}
	return g
}

// add inserts n unless its id is already present.
func (g *Graph) add(n Node) bool {
	if _, ok := g.nodes[n.ID]; ok {
		return false
	}
	g.nodes[n.ID] = n
	g.order = append(g.order, n.ID)
	return true
}

func (g *Graph) Len() int {
	if g == nil {
		return 0
	}
	return len(g.order)
}

func (g *Graph) Has(id string) bool {
	if g == nil {
		return false
	}
	_, ok := g.nodes[id]
	return ok
}

func (g *Graph) Node(id string) (Node, bool) {
	if g == nil {
		return Node{}, false
	}
	n, ok := g.nodes[id]
	return n, ok
}

// IDs returns the commit ids in insertion order.
func (g *Graph) IDs() []string {
	if g == nil {
		return nil
	}
	return slices.Clone(g.order)
}

// Nodes iterates over the graph in insertion order.
func (g *Graph) Nodes() iter.Seq[Node] {
	return func(yield func(Node) bool) {
		if g == nil {
			return
		}
		for _, id := range g.order {
			if !yield(g.nodes[id]) {
				return
			}
		}
	}
}

// Edges iterates over every parent relationship, node by node in insertion
// order and parents in recorded order.
func (g *Graph) Edges() iter.Seq[Edge] {
	return func(yield func(Edge) bool) {
		for n := range g.Nodes() {
			for _, p := range n.Parents {
				if !yield(Edge{Parent: p, Child: n.ID}) {
					return
				}
			}
		}
	}
}

// EdgeCount counts parent relationships, duplicates included.
func (g *Graph) EdgeCount() int {
	count := 0
	for range g.Edges() {
		count++
	}
	return count
}

// Dangling returns the edges whose parent is not a node of the graph. A
// complete build only has them when the history source could not resolve a
// boundary commit (e.g. a shallow clone).
func (g *Graph) Dangling() []Edge {
	var out []Edge
	for e := range g.Edges() {
		if !g.Has(e.Parent) {
			out = append(out, e)
		}
	}
	return out
}
