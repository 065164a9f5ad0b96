package optimizer

import (
	"context"
	"sort"

	"robustroute/automorphism"
	"robustroute/dependency"
	"robustroute/solver"
	"robustroute/topology"
)

const (
	// weight of the min-throughput term relative to one unit of summed throughput
	thetaWeight = 10
	// throughput is normalized against the server-count ceiling
	maxThroughput = 1
)

// Flows holds the value of every representative flow variable, keyed by
// representative demand then representative flow-link.
type Flows map[topology.Demand]map[topology.Link]float64

// Value returns the flow value, zero when absent.
func (f Flows) Value(d topology.Demand, l topology.Link) float64 {
	return f[d][l]
}

type flowKey struct {
	demand topology.Demand
	flow   topology.Link
}

// master is the reduced routing model: one throughput variable per
// representative demand, one flow variable per representative flow-link,
// conservation at every node, and the capacity cuts added so far.
type master struct {
	model solver.Model
	theta solver.Var
	s     map[topology.Demand]solver.Var
	f     map[flowKey]solver.Var
	reps  []topology.Demand
	red   *automorphism.Reduction
	cuts  int
}

func buildMaster(engine solver.Engine, name string, g *topology.Graph, red *automorphism.Reduction, objective Objective) *master {
	m := &master{
		model: engine.NewModel(name),
		s:     make(map[topology.Demand]solver.Var),
		f:     make(map[flowKey]solver.Var),
		reps:  red.Reps(),
		red:   red,
	}
	m.theta = m.model.AddVar("theta", 0, solver.Inf)

	totalCapacity := 0.0
	for _, r := range m.reps {
		m.s[r] = m.model.AddVar("s_"+r.String(), 0, maxThroughput)
		var e solver.Expr
		e.Add(m.s[r], 1).Add(m.theta, -1)
		m.model.AddConstraint("min_"+r.String(), e, solver.GreaterEqual, 0)

		for _, l := range red.Flows[r].Reps {
			m.f[flowKey{r, l}] = m.model.AddVar("f_"+r.String()+"_"+l.String(), 0, 1)
			c, _ := g.Capacity(l)
			totalCapacity += c
		}
	}

	for _, r := range m.reps {
		m.addConservation(g, r)
	}

	var obj solver.Expr
	switch objective {
	case ObjectiveLog:
		for _, r := range m.reps {
			t := m.model.AddVar("t_"+r.String(), -solver.Inf, solver.Inf)
			m.model.AddExpCone(t, m.s[r])
			obj.Add(t, float64(red.OrbitSize(r)))
		}
	default:
		maxTotalFlow := 2 * totalCapacity
		obj.Add(m.theta, thetaWeight*float64(red.NumDemands())*maxTotalFlow)
		for _, r := range m.reps {
			obj.Add(m.s[r], float64(red.OrbitSize(r))*maxTotalFlow)
		}
		for _, k := range m.sortedFlowKeys() {
			obj.Add(m.f[k], -1)
		}
	}
	m.model.SetObjective(solver.Maximize, obj)
	return m
}

// addConservation writes inflow = outflow at every node for demand r, with
// s_r injected at the source and drained at the destination.
func (m *master) addConservation(g *topology.Graph, r topology.Demand) {
	fo := m.red.Flows[r]
	for n := 0; n < g.NumNodes(); n++ {
		coef := make(map[solver.Var]float64)
		for _, h := range g.Neighbors(n) {
			coef[m.f[flowKey{r, fo.RepOf[topology.Link{From: h, To: n}]}]] += 1
			coef[m.f[flowKey{r, fo.RepOf[topology.Link{From: n, To: h}]}]] -= 1
		}
		if n == r.Src {
			coef[m.s[r]] += 1
		}
		if n == r.Dst {
			coef[m.s[r]] -= 1
		}
		e := sortedExpr(coef)
		if len(e.Terms) == 0 {
			continue
		}
		m.model.AddConstraint("flow_"+r.String(), e, solver.Equal, 0)
	}
}

// addCut bounds the load of link l under tm by its capacity. It reports
// false when tm puts no traffic on any variable of the link.
func (m *master) addCut(ix *dependency.Index, capacity float64, tm topology.TrafficMatrix) bool {
	coef := make(map[solver.Var]float64)
	for _, w := range ix.Load(tm) {
		coef[m.f[flowKey{w.Demand, w.Flow}]] += w.Weight
	}
	e := sortedExpr(coef)
	if len(e.Terms) == 0 {
		return false
	}
	m.model.AddConstraint("cap_"+ix.Link.String(), e, solver.LessEqual, capacity)
	m.cuts++
	return true
}

func (m *master) solve(ctx context.Context) error {
	return m.model.Solve(ctx)
}

// snapshot reads the flow and throughput values of the last solve.
func (m *master) snapshot() (Flows, map[topology.Demand]float64) {
	flows := make(Flows, len(m.reps))
	through := make(map[topology.Demand]float64, len(m.reps))
	for _, r := range m.reps {
		through[r] = m.model.Value(m.s[r])
		flows[r] = make(map[topology.Link]float64)
	}
	for k, v := range m.f {
		flows[k.demand][k.flow] = m.model.Value(v)
	}
	return flows, through
}

func (m *master) sortedFlowKeys() []flowKey {
	keys := make([]flowKey, 0, len(m.f))
	for k := range m.f {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].demand != keys[j].demand {
			return keys[i].demand.Less(keys[j].demand)
		}
		return keys[i].flow.Less(keys[j].flow)
	})
	return keys
}

// sortedExpr drops zero coefficients and orders terms by variable so model
// rows do not depend on map iteration order.
func sortedExpr(coef map[solver.Var]float64) solver.Expr {
	vars := make([]solver.Var, 0, len(coef))
	for v, c := range coef {
		if c != 0 {
			vars = append(vars, v)
		}
	}
	sort.Slice(vars, func(i, j int) bool { return vars[i] < vars[j] })
	var e solver.Expr
	for _, v := range vars {
		e.Add(v, coef[v])
	}
	return e
}
