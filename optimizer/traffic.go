package optimizer

import (
	"context"
	"fmt"

	"robustroute/automorphism"
	"robustroute/solver"
	"robustroute/topology"
)

// NearWorstCase builds the first-iteration traffic matrix: a maximum-weight
// matching between sending and receiving servers where a pair weighs its
// hop distance times the smaller server count. Matched pairs send at that
// smaller server count.
func NearWorstCase(ctx context.Context, engine solver.Engine, g *topology.Graph, red *automorphism.Reduction) (topology.TrafficMatrix, error) {
	// weights are computed once per representative and shared by the
	// orbit, since automorphisms preserve distances and server counts
	weight := make(map[topology.Demand]float64, red.NumDemands())
	hops := make(map[int][]int)
	for _, o := range red.Orbits {
		r := o.Rep
		dist, ok := hops[r.Src]
		if !ok {
			dist = g.HopDistances(r.Src)
			hops[r.Src] = dist
		}
		if dist[r.Dst] <= 0 {
			continue
		}
		w := float64(dist[r.Dst] * minServers(g, r))
		for _, sd := range o.Members {
			weight[sd] = w
		}
	}

	m := engine.NewModel("matching")
	var obj solver.Expr
	demands := make([]topology.Demand, 0, len(weight))
	vars := make([]solver.Var, 0, len(weight))
	out := make(map[int][]solver.Var)
	in := make(map[int][]solver.Var)
	for _, d := range g.Demands() {
		w, ok := weight[d]
		if !ok || w <= 0 {
			continue
		}
		v := m.AddVar("x_"+d.String(), 0, solver.Inf)
		obj.Add(v, w)
		demands = append(demands, d)
		vars = append(vars, v)
		out[d.Src] = append(out[d.Src], v)
		in[d.Dst] = append(in[d.Dst], v)
	}
	if len(vars) == 0 {
		return topology.TrafficMatrix{}, nil
	}
	for _, n := range g.Servers() {
		if vs := out[n]; len(vs) > 0 {
			m.AddConstraint("send", solver.Sum(vs...), solver.LessEqual, 1)
		}
		if vs := in[n]; len(vs) > 0 {
			m.AddConstraint("recv", solver.Sum(vs...), solver.LessEqual, 1)
		}
	}
	m.SetObjective(solver.Maximize, obj)
	// the bipartite matching polytope is integral, so the simplex vertex is a matching
	if err := m.Solve(ctx); err != nil {
		return nil, fmt.Errorf("near-worst-case matching: %w", err)
	}

	tm := make(topology.TrafficMatrix)
	for i, d := range demands {
		if m.Value(vars[i]) > 0.5 {
			tm[d] = float64(minServers(g, d))
		}
	}
	return tm, nil
}

func minServers(g *topology.Graph, d topology.Demand) int {
	return min(g.NumServer(d.Src), g.NumServer(d.Dst))
}
