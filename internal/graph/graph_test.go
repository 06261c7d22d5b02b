package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromNodes_KeepsFirstOccurrence(t *testing.T) {
	t.Parallel()

	g := FromNodes(
		Node{ID: "b", Message: "first"},
		Node{ID: "a", Message: "second"},
		Node{ID: "b", Message: "duplicate"},
	)
	assert.Equal(t, []string{"b", "a"}, g.IDs())
	n, ok := g.Node("b")
	assert.True(t, ok)
	assert.Equal(t, "first", n.Message)
}

func TestGraph_EdgesAndDangling(t *testing.T) {
	t.Parallel()

	g := FromNodes(
		Node{ID: "m", Parents: []string{"x", "y"}},
		Node{ID: "x", Parents: []string{"boundary"}},
		Node{ID: "y", Parents: []string{"x"}},
	)

	var edges []Edge
	for e := range g.Edges() {
		edges = append(edges, e)
	}
	assert.Equal(t, []Edge{
		{Parent: "x", Child: "m"},
		{Parent: "y", Child: "m"},
		{Parent: "boundary", Child: "x"},
		{Parent: "x", Child: "y"},
	}, edges)
	assert.Equal(t, 4, g.EdgeCount())
	assert.Equal(t, []Edge{{Parent: "boundary", Child: "x"}}, g.Dangling())
}

func TestGraph_IterationStopsEarly(t *testing.T) {
	t.Parallel()

	g := FromNodes(Node{ID: "1"}, Node{ID: "2"}, Node{ID: "3"})
	var seen []string
	for n := range g.Nodes() {
		seen = append(seen, n.ID)
		if len(seen) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"1", "2"}, seen)
}

func TestGraph_NilIsEmpty(t *testing.T) {
	t.Parallel()

	var g *Graph
	assert.Zero(t, g.Len())
	assert.False(t, g.Has("a"))
	assert.Nil(t, g.IDs())
	assert.Zero(t, g.EdgeCount())
}
