package topology

import (
	"fmt"
	"strconv"
)

// Structural generators used for experiments and tests.

// Clique connects every pair of ToRs.
func Clique(numToR, serversPerToR int, capacity float64) (*Graph, error) {
	nodes := uniformNodes(numToR, serversPerToR)
	var edges []Edge
	for u := 0; u < numToR; u++ {
		for v := u + 1; v < numToR; v++ {
			edges = append(edges, Edge{U: u, V: v, Capacity: capacity})
		}
	}
	return NewGraph(fmt.Sprintf("Clique-%d-%d-%s", serversPerToR, numToR, fmtCap(capacity)), nodes, edges)
}

// Ring connects ToR i to ToR i+1 modulo numToR. Two ToRs form a single edge.
func Ring(numToR, serversPerToR int, capacity float64) (*Graph, error) {
	if numToR < 2 {
		return nil, fmt.Errorf("%w: ring needs at least 2 nodes", ErrInvalidGraph)
	}
	nodes := uniformNodes(numToR, serversPerToR)
	caps := make(map[Link]float64)
	for u := 0; u < numToR; u++ {
		addMerged(caps, u, (u+1)%numToR, capacity)
	}
	return NewGraph(fmt.Sprintf("Ring-%d-%d-%s", serversPerToR, numToR, fmtCap(capacity)), nodes, mergedEdges(caps))
}

// Torus2D is a rows x cols wrap-around grid.
func Torus2D(rows, cols, serversPerToR int, capacity float64) (*Graph, error) {
	if rows < 2 || cols < 2 {
		return nil, fmt.Errorf("%w: torus needs at least 2x2 nodes", ErrInvalidGraph)
	}
	nodes := uniformNodes(rows*cols, serversPerToR)
	caps := make(map[Link]float64)
	id := func(r, c int) int { return r*cols + c }
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			addMerged(caps, id(r, c), id(r, (c+1)%cols), capacity)
			addMerged(caps, id(r, c), id((r+1)%rows, c), capacity)
		}
	}
	return NewGraph(fmt.Sprintf("Torus2D-%d-%dx%d-%s", serversPerToR, rows, cols, fmtCap(capacity)), nodes, mergedEdges(caps))
}

// TwoLevelClos connects every lower switch (hosting servers) to every upper switch.
func TwoLevelClos(lowers, uppers, serversPerLower int, capacity float64) (*Graph, error) {
	nodes := make([]Node, 0, lowers+uppers)
	for i := 0; i < lowers; i++ {
		nodes = append(nodes, Node{ID: i, NumServer: serversPerLower})
	}
	for j := 0; j < uppers; j++ {
		nodes = append(nodes, Node{ID: lowers + j})
	}
	var edges []Edge
	for i := 0; i < lowers; i++ {
		for j := 0; j < uppers; j++ {
			edges = append(edges, Edge{U: i, V: lowers + j, Capacity: capacity})
		}
	}
	return NewGraph(fmt.Sprintf("2LevelClos-%d-%d-%d-%s", serversPerLower, lowers, uppers, fmtCap(capacity)), nodes, edges)
}

// Generate dispatches on a generator kind name.
func Generate(kind string, a, b, servers int, capacity float64) (*Graph, error) {
	switch kind {
	case "clique":
		return Clique(a, servers, capacity)
	case "ring":
		return Ring(a, servers, capacity)
	case "torus2d":
		return Torus2D(a, b, servers, capacity)
	case "clos", "2levelclos":
		return TwoLevelClos(a, b, servers, capacity)
	}
	return nil, fmt.Errorf("%w: unknown generator %q", ErrInvalidGraph, kind)
}

func uniformNodes(n, servers int) []Node {
	nodes := make([]Node, n)
	for i := range nodes {
		nodes[i] = Node{ID: i, NumServer: servers}
	}
	return nodes
}

// parallel edges produced by small rings and tori merge into one edge
func addMerged(caps map[Link]float64, u, v int, capacity float64) {
	if u == v {
		return
	}
	if u > v {
		u, v = v, u
	}
	caps[Link{From: u, To: v}] += capacity
}

func mergedEdges(caps map[Link]float64) []Edge {
	edges := make([]Edge, 0, len(caps))
	for l, c := range caps {
		edges = append(edges, Edge{U: l.From, V: l.To, Capacity: c})
	}
	return edges
}

func fmtCap(c float64) string {
	return strconv.FormatFloat(c, 'g', -1, 64)
}
