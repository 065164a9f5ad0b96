package common

import "robustroute/topology"

// Network is the adjacency-matrix view of a topology used by the path
// algorithms. Links[i][j] is the latency of link i->j, -1 when there is no
// link and 0 on the diagonal.
type Network struct {
	Links [][]int `json:"links"`
}

// NewNetwork builds a unit-latency network, so path latency is hop count.
func NewNetwork(g *topology.Graph) *Network {
	n := g.NumNodes()
	net := &Network{Links: make([][]int, n)}
	for i := 0; i < n; i++ {
		net.Links[i] = make([]int, n)
		for j := range net.Links[i] {
			if i != j {
				net.Links[i][j] = -1
			}
		}
	}
	for _, l := range g.Links() {
		net.Links[l.From][l.To] = 1
	}
	return net
}

// Size is the number of nodes.
func (net *Network) Size() int {
	return len(net.Links)
}

// Clone deep-copies the latency matrix. Yen's algorithm edits links
// temporarily, so concurrent callers each work on a clone.
func (net *Network) Clone() *Network {
	c := &Network{Links: make([][]int, len(net.Links))}
	for i, row := range net.Links {
		c.Links[i] = append([]int(nil), row...)
	}
	return c
}

// Flow represents a traffic flow between source and destination
type Flow struct {
	Source      int `json:"source"`
	Destination int `json:"destination"`
}

// Path represents a routing path with node indices
type Path struct {
	Nodes   []int `json:"nodes"`   // nodes on a route
	Latency int   `json:"latency"` // total latency of a route
}

// Hops is the number of links on the path.
func (p Path) Hops() int {
	return len(p.Nodes) - 1
}

// PathCalculator selects the paths a demand is split over.
type PathCalculator interface {
	// ComputePaths returns the paths from source to dest. params carries
	// algorithm-specific settings, e.g. {"k": 2} for Shortest-Union.
	ComputePaths(network *Network, source, dest int, params map[string]interface{}) []Path
}

// EqualSplit spreads one unit of traffic evenly over paths and accumulates
// the share of every directed link.
func EqualSplit(paths []Path) map[topology.Link]float64 {
	shares := make(map[topology.Link]float64)
	if len(paths) == 0 {
		return shares
	}
	w := 1 / float64(len(paths))
	for _, p := range paths {
		for i := 0; i+1 < len(p.Nodes); i++ {
			shares[topology.Link{From: p.Nodes[i], To: p.Nodes[i+1]}] += w
		}
	}
	return shares
}
