package automorphism

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"robustroute/topology"
)

// groupOrder enumerates the group generated by gens.
func groupOrder(n int, gens []Perm) int {
	seen := map[string]bool{}
	queue := []Perm{Identity(n)}
	seen[fmt.Sprint(queue[0].Images())] = true
	for i := 0; i < len(queue); i++ {
		for _, g := range gens {
			next := queue[i].Then(g)
			key := fmt.Sprint(next.Images())
			if !seen[key] {
				seen[key] = true
				queue = append(queue, next)
			}
		}
	}
	return len(queue)
}

func assertAutomorphisms(t *testing.T, g *topology.Graph, gens []Perm) {
	t.Helper()
	for _, p := range gens {
		for _, node := range g.Nodes() {
			assert.Equal(t, node.NumServer, g.NumServer(p.Apply(node.ID)))
		}
		for _, l := range g.Links() {
			c1, _ := g.Capacity(l)
			c2, ok := g.Capacity(p.ApplyLink(l))
			assert.True(t, ok, "link %s maps to non-link", l)
			assert.Equal(t, c1, c2)
		}
	}
}

func TestRefinementGroupOrders(t *testing.T) {
	clique, err := topology.Clique(5, 1, 1)
	require.NoError(t, err)
	ring, err := topology.Ring(6, 1, 1)
	require.NoError(t, err)
	torus, err := topology.Torus2D(3, 3, 1, 1)
	require.NoError(t, err)
	clos, err := topology.TwoLevelClos(3, 2, 2, 1)
	require.NoError(t, err)

	tests := []struct {
		name  string
		graph *topology.Graph
		order int
	}{
		{"clique", clique, 120},
		{"ring", ring, 12},
		{"torus", torus, 72},
		{"clos", clos, 12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gens, err := NewRefinementOracle().Generators(context.Background(), Colored(tt.graph))
			require.NoError(t, err)
			assertAutomorphisms(t, tt.graph, gens)
			assert.Equal(t, tt.order, groupOrder(tt.graph.NumNodes(), gens))
		})
	}
}

func TestRefinementRespectsColors(t *testing.T) {
	// a 4-cycle whose server counts leave only the reflection through 0 and 2
	g, err := topology.NewGraph("kite",
		[]topology.Node{{ID: 0, NumServer: 1}, {ID: 1, NumServer: 2}, {ID: 2, NumServer: 3}, {ID: 3, NumServer: 2}},
		[]topology.Edge{{U: 0, V: 1, Capacity: 1}, {U: 1, V: 2, Capacity: 1}, {U: 2, V: 3, Capacity: 1}, {U: 0, V: 3, Capacity: 1}})
	require.NoError(t, err)
	gens, err := NewRefinementOracle().Generators(context.Background(), Colored(g))
	require.NoError(t, err)
	assertAutomorphisms(t, g, gens)
	assert.Equal(t, 2, groupOrder(4, gens))

	// capacities break the remaining symmetry
	g, err = topology.NewGraph("kite-cap",
		[]topology.Node{{ID: 0, NumServer: 1}, {ID: 1, NumServer: 2}, {ID: 2, NumServer: 3}, {ID: 3, NumServer: 2}},
		[]topology.Edge{{U: 0, V: 1, Capacity: 1}, {U: 1, V: 2, Capacity: 1}, {U: 2, V: 3, Capacity: 1}, {U: 0, V: 3, Capacity: 2}})
	require.NoError(t, err)
	gens, err = NewRefinementOracle().Generators(context.Background(), Colored(g))
	require.NoError(t, err)
	assert.Equal(t, 1, groupOrder(4, gens))
}
