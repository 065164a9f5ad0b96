package automorphism

import (
	"context"
	"sort"

	"robustroute/topology"
)

// ColoredEdge is an undirected edge carrying a color.
type ColoredEdge struct {
	U, V  int
	Color int
}

// ColoredGraph is the oracle's view of a topology: vertex colors separate
// node roles, edge colors separate capacities.
type ColoredGraph struct {
	VertexColors []int
	Edges        []ColoredEdge
}

// Oracle returns a generating set of the color-preserving automorphism
// group of a graph.
type Oracle interface {
	Generators(ctx context.Context, g ColoredGraph) ([]Perm, error)
}

// Colored ranks server counts and capacities into vertex and edge colors.
func Colored(g *topology.Graph) ColoredGraph {
	servers := make([]float64, 0, g.NumNodes())
	for _, n := range g.Nodes() {
		servers = append(servers, float64(n.NumServer))
	}
	vrank := ranks(servers)

	caps := make([]float64, 0, len(g.Edges()))
	for _, e := range g.Edges() {
		caps = append(caps, e.Capacity)
	}
	erank := ranks(caps)

	cg := ColoredGraph{VertexColors: make([]int, g.NumNodes())}
	for i, n := range g.Nodes() {
		cg.VertexColors[n.ID] = vrank[i]
	}
	for i, e := range g.Edges() {
		cg.Edges = append(cg.Edges, ColoredEdge{U: e.U, V: e.V, Color: erank[i]})
	}
	return cg
}

func ranks(values []float64) []int {
	distinct := append([]float64(nil), values...)
	sort.Float64s(distinct)
	idx := make(map[float64]int)
	for _, v := range distinct {
		if _, ok := idx[v]; !ok {
			idx[v] = len(idx)
		}
	}
	out := make([]int, len(values))
	for i, v := range values {
		out[i] = idx[v]
	}
	return out
}

// TrivialOracle reports no symmetry. Reduction then degrades to the full,
// unreduced formulation.
type TrivialOracle struct{}

func (TrivialOracle) Generators(context.Context, ColoredGraph) ([]Perm, error) {
	return nil, nil
}
