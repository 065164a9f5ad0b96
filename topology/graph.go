package topology

import (
	"fmt"
	"sort"
)

// Graph is an immutable capacitated topology. Node ids are 0..n-1.
type Graph struct {
	name     string
	nodes    []Node
	edges    []Edge
	adj      [][]int
	capacity map[Link]float64
	servers  []int
	switches []int
	links    []Link
	demands  []Demand
}

// NewGraph validates nodes and edges and builds the derived sets.
func NewGraph(name string, nodes []Node, edges []Edge) (*Graph, error) {
	n := len(nodes)
	g := &Graph{
		name:     name,
		nodes:    make([]Node, n),
		adj:      make([][]int, n),
		capacity: make(map[Link]float64, 2*len(edges)),
	}
	seen := make([]bool, n)
	for _, node := range nodes {
		if node.ID < 0 || node.ID >= n {
			return nil, fmt.Errorf("%w: node id %d outside 0..%d", ErrInvalidGraph, node.ID, n-1)
		}
		if seen[node.ID] {
			return nil, fmt.Errorf("%w: duplicate node id %d", ErrInvalidGraph, node.ID)
		}
		if node.NumServer < 0 {
			return nil, fmt.Errorf("%w: node %d has negative server count", ErrInvalidGraph, node.ID)
		}
		seen[node.ID] = true
		g.nodes[node.ID] = node
	}

	for _, e := range edges {
		if e.U == e.V {
			return nil, fmt.Errorf("%w: self loop on node %d", ErrInvalidGraph, e.U)
		}
		if e.U < 0 || e.U >= n || e.V < 0 || e.V >= n {
			return nil, fmt.Errorf("%w: edge %d-%d references unknown node", ErrInvalidGraph, e.U, e.V)
		}
		if !(e.Capacity > 0) {
			return nil, fmt.Errorf("%w: edge %d-%d has non-positive capacity", ErrInvalidGraph, e.U, e.V)
		}
		if e.U > e.V {
			e.U, e.V = e.V, e.U
		}
		fwd := Link{From: e.U, To: e.V}
		if _, dup := g.capacity[fwd]; dup {
			return nil, fmt.Errorf("%w: duplicate edge %d-%d", ErrInvalidGraph, e.U, e.V)
		}
		g.capacity[fwd] = e.Capacity
		g.capacity[fwd.Reverse()] = e.Capacity
		g.adj[e.U] = append(g.adj[e.U], e.V)
		g.adj[e.V] = append(g.adj[e.V], e.U)
		g.edges = append(g.edges, e)
	}

	sort.Slice(g.edges, func(i, j int) bool {
		if g.edges[i].U != g.edges[j].U {
			return g.edges[i].U < g.edges[j].U
		}
		return g.edges[i].V < g.edges[j].V
	})
	for v := range g.adj {
		sort.Ints(g.adj[v])
		for _, w := range g.adj[v] {
			g.links = append(g.links, Link{From: v, To: w})
		}
		if g.nodes[v].IsServer() {
			g.servers = append(g.servers, v)
		} else {
			g.switches = append(g.switches, v)
		}
	}
	for _, s := range g.servers {
		for _, d := range g.servers {
			if s != d {
				g.demands = append(g.demands, Demand{Src: s, Dst: d})
			}
		}
	}
	return g, nil
}

func (g *Graph) Name() string          { return g.name }
func (g *Graph) NumNodes() int         { return len(g.nodes) }
func (g *Graph) Node(id int) Node      { return g.nodes[id] }
func (g *Graph) Nodes() []Node         { return g.nodes }
func (g *Graph) Edges() []Edge         { return g.edges }
func (g *Graph) Servers() []int        { return g.servers }
func (g *Graph) Switches() []int       { return g.switches }
func (g *Graph) Neighbors(v int) []int { return g.adj[v] }

// NumServer returns the number of servers hosted at node v.
func (g *Graph) NumServer(v int) int { return g.nodes[v].NumServer }

// Links returns every directed link in lexicographic order.
func (g *Graph) Links() []Link { return g.links }

// Demands returns every ordered pair of distinct servers in lexicographic order.
func (g *Graph) Demands() []Demand { return g.demands }

// Capacity returns the capacity of l, or false when l is not a link.
func (g *Graph) Capacity(l Link) (float64, bool) {
	c, ok := g.capacity[l]
	return c, ok
}

// MaxDegree is the largest neighbor count of any node.
func (g *Graph) MaxDegree() int {
	max := 0
	for _, a := range g.adj {
		if len(a) > max {
			max = len(a)
		}
	}
	return max
}

// HopDistances returns BFS hop counts from src; unreachable nodes get -1.
func (g *Graph) HopDistances(src int) []int {
	dist := make([]int, len(g.nodes))
	for i := range dist {
		dist[i] = -1
	}
	dist[src] = 0
	queue := []int{src}
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		for _, w := range g.adj[v] {
			if dist[w] < 0 {
				dist[w] = dist[v] + 1
				queue = append(queue, w)
			}
		}
	}
	return dist
}

// Spec returns the serializable description of g.
func (g *Graph) Spec() Spec {
	return Spec{
		Name:  g.name,
		Nodes: append([]Node(nil), g.nodes...),
		Edges: append([]Edge(nil), g.edges...),
	}
}
