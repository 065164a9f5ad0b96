package k_shortest

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"robustroute/heuristic_routing/common"
	"robustroute/topology"
)

func network(g *topology.Graph, err error) *common.Network {
	if err != nil {
		panic(err)
	}
	return common.NewNetwork(g)
}

func nodes(paths []common.Path) [][]int {
	out := make([][]int, len(paths))
	for i, p := range paths {
		out[i] = p.Nodes
	}
	return out
}

func TestDijkstraAllShortestPaths(t *testing.T) {
	net := network(topology.Torus2D(3, 3, 1, 1))
	paths := AllShortest(net, common.Flow{Source: 0, Destination: 4})
	assert.ElementsMatch(t, [][]int{{0, 1, 4}, {0, 3, 4}}, nodes(paths))
	for _, p := range paths {
		assert.Equal(t, 2, p.Latency)
	}

	all := Dijkstra(net, 0)
	assert.Equal(t, [][]int{{0}}, nodes(all[0]))
	assert.Len(t, all[8], 2)
}

func TestDijkstraUnreachable(t *testing.T) {
	g, err := topology.NewGraph("split",
		[]topology.Node{{ID: 0, NumServer: 1}, {ID: 1, NumServer: 1}, {ID: 2, NumServer: 1}},
		[]topology.Edge{{U: 0, V: 1, Capacity: 1}})
	net := network(g, err)
	assert.Empty(t, AllShortest(net, common.Flow{Source: 0, Destination: 2}))
	assert.Empty(t, KShortest(net, common.Flow{Source: 0, Destination: 2}, 3, 0))
}

func TestKShortestOrder(t *testing.T) {
	net := network(topology.Ring(6, 1, 1))
	before := net.Clone()

	paths := KShortest(net, common.Flow{Source: 0, Destination: 2}, 5, 0)
	assert.Equal(t, [][]int{{0, 1, 2}, {0, 5, 4, 3, 2}}, nodes(paths))
	assert.Equal(t, []int{2, 4}, []int{paths[0].Latency, paths[1].Latency})
	assert.Equal(t, before, net)

	assert.Empty(t, KShortest(net, common.Flow{Source: 0, Destination: 2}, 0, 0))
}

func TestKShortestHopBound(t *testing.T) {
	net := network(topology.Clique(5, 1, 1))
	paths := KShortest(net, common.Flow{Source: 0, Destination: 1}, 20, 2)
	assert.Equal(t, [][]int{{0, 1}, {0, 2, 1}, {0, 3, 1}, {0, 4, 1}}, nodes(paths))

	unbounded := KShortest(net, common.Flow{Source: 0, Destination: 1}, 20, 0)
	assert.Len(t, unbounded, 16) // 1 + 3 + 6 + 6 simple paths
	for i := 1; i < len(unbounded); i++ {
		assert.LessOrEqual(t, unbounded[i-1].Latency, unbounded[i].Latency)
	}

	ring := network(topology.Ring(6, 1, 1))
	assert.Empty(t, KShortest(ring, common.Flow{Source: 0, Destination: 3}, 4, 2))
}
