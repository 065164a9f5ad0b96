package optimizer

import (
	"context"
	"fmt"

	"robustroute/dependency"
	"robustroute/solver"
	"robustroute/topology"
)

// WorstCase finds the admissible traffic matrix that maximizes the load of
// ix.Link under the current flows. Only demands whose flow value exceeds
// zero contribute. The returned matrix keeps rates above zero.
func WorstCase(ctx context.Context, engine solver.Engine, g *topology.Graph, ix *dependency.Index, flows Flows, zero float64) (topology.TrafficMatrix, float64, error) {
	type candidate struct {
		demand topology.Demand
		coef   float64
	}
	var cands []candidate
	for _, e := range ix.Entries {
		fv := flows.Value(e.Demand, e.Flow)
		if fv <= zero {
			continue
		}
		for _, sd := range e.Members {
			cands = append(cands, candidate{demand: sd, coef: fv})
		}
	}
	if len(cands) == 0 {
		return nil, 0, nil
	}

	m := engine.NewModel("adversary_" + ix.Link.String())
	vars := make([]solver.Var, len(cands))
	out := make(map[int][]solver.Var)
	in := make(map[int][]solver.Var)
	var obj solver.Expr
	for i, c := range cands {
		ub := float64(min(g.NumServer(c.demand.Src), g.NumServer(c.demand.Dst)))
		vars[i] = m.AddVar("t_"+c.demand.String(), 0, ub)
		obj.Add(vars[i], c.coef)
		out[c.demand.Src] = append(out[c.demand.Src], vars[i])
		in[c.demand.Dst] = append(in[c.demand.Dst], vars[i])
	}
	for _, n := range g.Servers() {
		if vs := out[n]; len(vs) > 0 {
			m.AddConstraint("out", solver.Sum(vs...), solver.LessEqual, float64(g.NumServer(n)))
		}
		if vs := in[n]; len(vs) > 0 {
			m.AddConstraint("in", solver.Sum(vs...), solver.LessEqual, float64(g.NumServer(n)))
		}
	}
	m.SetObjective(solver.Maximize, obj)
	if err := m.Solve(ctx); err != nil {
		return nil, 0, fmt.Errorf("adversary for link %s: %w", ix.Link, err)
	}

	tm := make(topology.TrafficMatrix)
	for i, c := range cands {
		if v := m.Value(vars[i]); v > zero {
			tm[c.demand] = v
		}
	}
	return tm, m.ObjectiveValue(), nil
}
