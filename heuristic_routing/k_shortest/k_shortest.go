package k_shortest

import (
	"container/heap"
	"slices"

	"robustroute/heuristic_routing/common"
)

// Dijkstra returns, for every node, all shortest paths from source. An
// unreachable node gets no paths.
func Dijkstra(net *common.Network, source int) [][]common.Path {
	n := net.Size()
	results := make([][]common.Path, n)
	results[source] = []common.Path{{Nodes: []int{source}}}

	latencies := make([]int, n) // latencies from source, -1 while unreachable
	copy(latencies, net.Links[source])
	latencies[source] = 0

	visited := make([]bool, n)
	visited[source] = true

	// predecessors of every node on its shortest paths
	predecessors := make([][]int, n)
	for i := range predecessors {
		predecessors[i] = []int{source}
	}

	for count := 0; count < n-1; count++ {
		minNode := -1
		for i := 0; i < n; i++ {
			if visited[i] || latencies[i] < 0 {
				continue
			}
			if minNode < 0 || latencies[i] < latencies[minNode] {
				minNode = i
			}
		}
		if minNode == -1 { // the rest is unreachable
			break
		}
		visited[minNode] = true
		results[minNode] = findPaths(minNode, source, predecessors, latencies[minNode])

		for i := 0; i < n; i++ {
			step := net.Links[minNode][i]
			if visited[i] || step < 0 {
				continue
			}
			via := latencies[minNode] + step
			switch {
			case latencies[i] < 0 || latencies[i] > via:
				latencies[i] = via
				predecessors[i] = []int{minNode}
			case latencies[i] == via:
				predecessors[i] = append(predecessors[i], minNode)
			}
		}
	}
	return results
}

// findPaths unwinds the predecessor lists of node back to source.
func findPaths(node, source int, predecessors [][]int, latency int) []common.Path {
	var paths []common.Path
	stack := []int{node}

	var walk func()
	walk = func() {
		top := stack[len(stack)-1]
		if top == source {
			nodes := make([]int, len(stack))
			for i := range stack {
				nodes[i] = stack[len(stack)-1-i]
			}
			paths = append(paths, common.Path{Nodes: nodes, Latency: latency})
			return
		}
		for _, p := range predecessors[top] {
			stack = append(stack, p)
			walk()
			stack = stack[:len(stack)-1]
		}
	}
	walk()
	return paths
}

// AllShortest returns every shortest path of flow.
func AllShortest(net *common.Network, flow common.Flow) []common.Path {
	return Dijkstra(net, flow.Source)[flow.Destination]
}

// KShortest returns up to k loopless paths of flow in order of latency
// (Yen's algorithm). Candidate paths with more than maxHops links are
// dropped; maxHops <= 0 disables the bound. net is not modified.
func KShortest(net *common.Network, flow common.Flow, k int, maxHops int) []common.Path {
	var accepted []common.Path
	if k <= 0 {
		return accepted
	}
	work := net.Clone()
	shortest := AllShortest(work, flow)
	if len(shortest) == 0 {
		return accepted
	}
	first := minPath(shortest)
	if maxHops > 0 && first.Hops() > maxHops {
		return accepted
	}
	accepted = append(accepted, first)

	candidates := &pathHeap{}
	for len(accepted) < k {
		prev := accepted[len(accepted)-1].Nodes
		for i := 0; i < len(prev)-1; i++ {
			spurNode := prev[i]
			root := prev[:i+1]
			removed := make(map[[2]int]int)
			cut := func(from, to int) {
				key := [2]int{from, to}
				if _, done := removed[key]; !done {
					removed[key] = work.Links[from][to]
					work.Links[from][to] = -1
				}
			}

			// links leaving the root along already accepted paths
			for _, p := range accepted {
				if len(p.Nodes) > i+1 && slices.Equal(p.Nodes[:i+1], root) {
					cut(p.Nodes[i], p.Nodes[i+1])
				}
			}
			// root nodes other than the spur node become unreachable
			for _, v := range root[:len(root)-1] {
				for head := 0; head < work.Size(); head++ {
					cut(head, v)
				}
			}

			spurs := Dijkstra(work, spurNode)[flow.Destination]
			for key, latency := range removed {
				work.Links[key[0]][key[1]] = latency
			}
			if len(spurs) == 0 {
				continue
			}

			total := append(slices.Clone(root[:len(root)-1]), minPath(spurs).Nodes...)
			if maxHops > 0 && len(total)-1 > maxHops {
				continue
			}
			latency := 0
			for j := 0; j+1 < len(total); j++ {
				latency += work.Links[total[j]][total[j+1]]
			}
			candidate := common.Path{Nodes: total, Latency: latency}
			if !candidates.contains(candidate) && !containsPath(accepted, candidate) {
				heap.Push(candidates, candidate)
			}
		}
		if candidates.Len() == 0 {
			break
		}
		accepted = append(accepted, heap.Pop(candidates).(common.Path))
	}
	return accepted
}

// pathHeap is a min-heap of paths by latency, then hop count.
type pathHeap []common.Path

func (h pathHeap) Len() int           { return len(h) }
func (h pathHeap) Less(i, j int) bool { return pathLess(h[i], h[j]) }
func (h pathHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *pathHeap) Push(x any)        { *h = append(*h, x.(common.Path)) }
func (h *pathHeap) Pop() any {
	old := *h
	p := old[len(old)-1]
	*h = old[:len(old)-1]
	return p
}

func (h pathHeap) contains(p common.Path) bool {
	return containsPath(h, p)
}

func containsPath(paths []common.Path, p common.Path) bool {
	for _, q := range paths {
		if slices.Equal(q.Nodes, p.Nodes) {
			return true
		}
	}
	return false
}

// pathLess orders by latency, then by hop count, then lexicographically so
// ties break the same way on every run.
func pathLess(p1, p2 common.Path) bool {
	if p1.Latency != p2.Latency {
		return p1.Latency < p2.Latency
	}
	if len(p1.Nodes) != len(p2.Nodes) {
		return len(p1.Nodes) < len(p2.Nodes)
	}
	return slices.Compare(p1.Nodes, p2.Nodes) < 0
}

func minPath(paths []common.Path) common.Path {
	best := paths[0]
	for _, p := range paths[1:] {
		if pathLess(p, best) {
			best = p
		}
	}
	return best
}
