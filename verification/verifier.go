package verification

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"robustroute/automorphism"
	"robustroute/checkpoint"
	"robustroute/common"
	"robustroute/solver"
	"robustroute/topology"
)

// Result is the outcome of verifying one routing against every admissible
// traffic matrix.
type Result struct {
	Origin     string                    `json:"origin"`
	Throughput float64                   `json:"throughput"`
	MaxLoad    float64                   `json:"max_load"` // worst load over capacity
	Bottleneck topology.Link             `json:"bottleneck"`
	LinkLoads  map[topology.Link]float64 `json:"link_loads"`
	Elapsed    time.Duration             `json:"elapsed"`
}

// Verifier recomputes, link by link, the worst admissible traffic matrix
// for a finished routing. It uses only the topology, the routing and, for
// reduced routings, the demand orbits.
type Verifier struct {
	rc     common.RunContext
	engine solver.Engine
	pool   *common.Pool
	ns     checkpoint.Namespace
}

func NewVerifier(rc common.RunContext, engine solver.Engine, pool *common.Pool, ns checkpoint.Namespace) *Verifier {
	return &Verifier{rc: rc, engine: engine, pool: pool, ns: ns}
}

// Verify returns the verified throughput of rt. red is required when
// rt.Reduced is set and ignored otherwise. A stored result for the same
// origin is returned as is.
func (v *Verifier) Verify(ctx context.Context, g *topology.Graph, rt *topology.Routing, red *automorphism.Reduction) (*Result, error) {
	if rt.Reduced && red == nil {
		return nil, fmt.Errorf("%w: reduced routing needs demand orbits", checkpoint.ErrMissingStage)
	}

	var cached Result
	found, err := v.ns.GetJSON(ctx, checkpoint.StageVerification, rt.Origin, &cached)
	if err != nil {
		return nil, err
	}
	if found {
		v.rc.Logger().Infof("Verifier.Verify: existing result for %s, throughput=%.6f", rt.Origin, cached.Throughput)
		return &cached, nil
	}

	res, err := v.evaluate(ctx, g, rt, red)
	if err != nil {
		return nil, err
	}
	if !math.IsInf(res.Throughput, 1) {
		if err := v.ns.PutJSON(ctx, checkpoint.StageVerification, rt.Origin, res); err != nil && !errors.Is(err, checkpoint.ErrExists) {
			return nil, err
		}
	}
	return res, nil
}

// VerifySnapshot verifies an intermediate routing, such as one optimizer
// iteration. Results are neither looked up nor stored.
func (v *Verifier) VerifySnapshot(ctx context.Context, g *topology.Graph, rt *topology.Routing, red *automorphism.Reduction) (*Result, error) {
	if rt.Reduced && red == nil {
		return nil, fmt.Errorf("%w: reduced routing needs demand orbits", checkpoint.ErrMissingStage)
	}
	return v.evaluate(ctx, g, rt, red)
}

func (v *Verifier) evaluate(ctx context.Context, g *topology.Graph, rt *topology.Routing, red *automorphism.Reduction) (*Result, error) {
	start := time.Now()
	links := g.Links()
	loads := make([]float64, len(links))
	err := v.pool.Map(ctx, len(links), func(ctx context.Context, i int) error {
		load, err := LinkLoad(ctx, v.engine, g, rt, red, links[i])
		if err != nil {
			return err
		}
		loads[i] = load
		return nil
	})
	if err != nil {
		return nil, err
	}

	res := &Result{
		Origin:     rt.Origin,
		Throughput: math.Inf(1),
		LinkLoads:  make(map[topology.Link]float64, len(links)),
	}
	for i, l := range links {
		capacity, _ := g.Capacity(l)
		rel := loads[i] / capacity
		res.LinkLoads[l] = rel
		if rel > res.MaxLoad {
			res.MaxLoad = rel
			res.Bottleneck = l
		}
	}
	if res.MaxLoad > 0 {
		res.Throughput = 1 / res.MaxLoad
	}
	res.Elapsed = time.Since(start)
	v.rc.Logger().Infof("Verifier.evaluate: origin=%s throughput=%.6f bottleneck=%s elapsed=%v",
		rt.Origin, res.Throughput, res.Bottleneck, res.Elapsed)
	return res, nil
}

// LinkLoad maximizes the load of l over admissible traffic matrices: every
// server sends and receives at most its server count.
func LinkLoad(ctx context.Context, engine solver.Engine, g *topology.Graph, rt *topology.Routing, red *automorphism.Reduction, l topology.Link) (float64, error) {
	m := engine.NewModel("verify_" + l.String())
	out := make(map[int][]solver.Var)
	in := make(map[int][]solver.Var)
	var obj solver.Expr
	for _, sd := range g.Demands() {
		coef := fraction(rt, red, sd, l)
		if coef <= 0 {
			continue
		}
		p := m.AddVar("p_"+sd.String(), 0, solver.Inf)
		obj.Add(p, coef)
		out[sd.Src] = append(out[sd.Src], p)
		in[sd.Dst] = append(in[sd.Dst], p)
	}
	if len(obj.Terms) == 0 {
		return 0, nil
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
		return 0, fmt.Errorf("verify link %s: %w", l, err)
	}
	return m.ObjectiveValue(), nil
}

// fraction is the share of sd's unit traffic on l. For reduced routings it
// is the representative's share on the link sd's reverse map pulls l back to.
func fraction(rt *topology.Routing, red *automorphism.Reduction, sd topology.Demand, l topology.Link) float64 {
	if !rt.Reduced {
		return rt.Fraction(l, sd)
	}
	rep, ok := red.RepOf(sd)
	if !ok {
		return 0
	}
	return rt.Fraction(red.Reverse(sd).ApplyLink(l), rep)
}
