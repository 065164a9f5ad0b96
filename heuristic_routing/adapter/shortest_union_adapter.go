package adapter

import (
	"strconv"

	log "github.com/sirupsen/logrus"

	"robustroute/heuristic_routing/common"
	"robustroute/heuristic_routing/k_shortest"
)

// ShortestUnionAdapter implements Shortest-Union(K). Demands whose shortest
// path is shorter than K hops use every simple path of at most K hops;
// the rest fall back to all shortest paths.
type ShortestUnionAdapter struct {
	K          int
	Candidates int // Yen candidates examined; <= 0 means 1 + K*maxDegree
}

// NewShortestUnionAdapter creates a Shortest-Union adapter with the given K
func NewShortestUnionAdapter(k int) *ShortestUnionAdapter {
	if k <= 0 {
		k = 2
	}
	return &ShortestUnionAdapter{K: k}
}

// ComputePaths implements PathCalculator. params may override "k",
// "candidates" and supply "max_degree" for the candidate default.
func (a *ShortestUnionAdapter) ComputePaths(network *common.Network, source, dest int, params map[string]interface{}) []common.Path {
	k := intParam(params, "k", a.K)
	candidates := intParam(params, "candidates", a.Candidates)
	if candidates <= 0 {
		candidates = 1 + k*intParam(params, "max_degree", maxDegree(network))
	}

	flow := common.Flow{Source: source, Destination: dest}
	shortest := k_shortest.AllShortest(network, flow)
	if len(shortest) == 0 {
		return nil
	}
	if shortest[0].Hops() >= k {
		return shortest
	}
	paths := k_shortest.KShortest(network, flow, candidates, k)
	log.Debugf("%s %d->%d: %d paths within %d hops", shortestUnionName(k), source, dest, len(paths), k)
	return paths
}

func shortestUnionName(k int) string {
	return "su" + strconv.Itoa(k)
}

func intParam(params map[string]interface{}, key string, def int) int {
	v, ok := params[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		log.Warnf("ignoring %s=%v: not a number", key, v)
		return def
	}
}

func maxDegree(network *common.Network) int {
	best := 0
	for i, row := range network.Links {
		d := 0
		for j, latency := range row {
			if i != j && latency >= 0 {
				d++
			}
		}
		best = max(best, d)
	}
	return best
}
