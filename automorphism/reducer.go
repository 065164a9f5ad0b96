package automorphism

import (
	"context"
	"errors"
	"fmt"
	"time"

	"robustroute/checkpoint"
	"robustroute/common"
	"robustroute/topology"
)

// Reducer derives generators, demand orbits and flow-link orbits of a
// topology, reading each stage from the checkpoint namespace when present.
type Reducer struct {
	rc     common.RunContext
	oracle Oracle
	pool   *common.Pool
	ns     checkpoint.Namespace
}

func NewReducer(rc common.RunContext, oracle Oracle, pool *common.Pool, ns checkpoint.Namespace) *Reducer {
	return &Reducer{rc: rc, oracle: oracle, pool: pool, ns: ns}
}

func (r *Reducer) Reduce(ctx context.Context, g *topology.Graph) (*Reduction, error) {
	logger := r.rc.Logger()
	n := g.NumNodes()

	start := time.Now()
	gens, cached, err := checkpoint.GetOrCompute(ctx, r.ns, checkpoint.StageGenerators, "", func(ctx context.Context) ([]Perm, error) {
		return r.generators(ctx, g)
	})
	if err != nil {
		return nil, fmt.Errorf("generators: %w", err)
	}
	for i, p := range gens {
		if p.Len() != n {
			return nil, fmt.Errorf("generator %d acts on %d points, graph has %d", i, p.Len(), n)
		}
	}
	logger.Infof("Reducer.Reduce: generators=%d cached=%v elapsed=%v", len(gens), cached, time.Since(start))

	start = time.Now()
	orbits, err := r.demandOrbits(ctx, g, gens)
	if err != nil {
		return nil, err
	}
	logger.Infof("Reducer.Reduce: demands=%d representatives=%d elapsed=%v", len(g.Demands()), len(orbits), time.Since(start))

	start = time.Now()
	flows, err := r.flowOrbits(ctx, g, gens, orbits)
	if err != nil {
		return nil, err
	}
	repFlows := 0
	for _, f := range flows {
		repFlows += len(f.Reps)
	}
	logger.Infof("Reducer.Reduce: links=%d representative flow variables=%d elapsed=%v", len(g.Links()), repFlows, time.Since(start))

	return newReduction(n, gens, orbits, flows)
}

func (r *Reducer) generators(ctx context.Context, g *topology.Graph) ([]Perm, error) {
	gens, err := r.oracle.Generators(ctx, Colored(g))
	if err != nil {
		return nil, err
	}
	// identity generators add nothing to the closures
	out := gens[:0]
	for _, p := range gens {
		if !p.IsIdentity() {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *Reducer) demandOrbits(ctx context.Context, g *topology.Graph, gens []Perm) ([]*DemandOrbit, error) {
	var reps []topology.Demand
	found, err := r.ns.GetJSON(ctx, checkpoint.StageDemandReps, "", &reps)
	if err != nil {
		return nil, err
	}
	if found {
		orbits := make([]*DemandOrbit, len(reps))
		for i, rep := range reps {
			var o DemandOrbit
			if err := r.ns.Require(ctx, checkpoint.StageDemandOrbit, rep.String(), &o); err != nil {
				return nil, err
			}
			orbits[i] = &o
		}
		return orbits, nil
	}

	orbits := DemandOrbits(g, gens)
	for _, o := range orbits {
		if err := r.ns.PutJSON(ctx, checkpoint.StageDemandOrbit, o.Rep.String(), o); err != nil && !isExists(err) {
			return nil, err
		}
		reps = append(reps, o.Rep)
	}
	// the representative list is written last and marks the stage complete
	if err := r.ns.PutJSON(ctx, checkpoint.StageDemandReps, "", reps); err != nil && !isExists(err) {
		return nil, err
	}
	return orbits, nil
}

func (r *Reducer) flowOrbits(ctx context.Context, g *topology.Graph, gens []Perm, orbits []*DemandOrbit) (map[topology.Demand]*FlowOrbits, error) {
	results := make([]*FlowOrbits, len(orbits))
	err := r.pool.Map(ctx, len(orbits), func(ctx context.Context, i int) error {
		rep := orbits[i].Rep
		fo, _, err := checkpoint.GetOrCompute(ctx, r.ns, checkpoint.StageFlowOrbit, rep.String(), func(context.Context) (*FlowOrbits, error) {
			return FlowLinkOrbits(g, gens, rep), nil
		})
		if err != nil {
			return fmt.Errorf("flow-link orbits of %s: %w", rep, err)
		}
		results[i] = fo
		return nil
	})
	if err != nil {
		return nil, err
	}
	flows := make(map[topology.Demand]*FlowOrbits, len(orbits))
	for _, fo := range results {
		flows[fo.Demand] = fo
	}
	return flows, nil
}

// DemandOrbits partitions the demands of g under the group generated by
// gens. The representative of each orbit is its lexicographically smallest
// member.
func DemandOrbits(g *topology.Graph, gens []Perm) []*DemandOrbit {
	n := g.NumNodes()
	visited := make(map[topology.Demand]bool, len(g.Demands()))
	var orbits []*DemandOrbit
	for _, d := range g.Demands() {
		if visited[d] {
			continue
		}
		members, forward := closure(d, gens, Perm.ApplyDemand, n)
		for _, m := range members {
			visited[m] = true
		}
		topology.SortDemands(members)
		orbits = append(orbits, &DemandOrbit{Rep: d, Members: members, Forward: forward})
	}
	return orbits
}

// StabilizerGenerators keeps the generators fixing both endpoints of d.
func StabilizerGenerators(gens []Perm, d topology.Demand) []Perm {
	return fixing(gens, []int{d.Src, d.Dst})
}

// FlowLinkOrbits partitions the directed links of g under the stabilizer of
// rep.
func FlowLinkOrbits(g *topology.Graph, gens []Perm, rep topology.Demand) *FlowOrbits {
	stab := StabilizerGenerators(gens, rep)
	fo := &FlowOrbits{Demand: rep, RepOf: make(map[topology.Link]topology.Link, len(g.Links()))}
	for _, l := range g.Links() {
		if _, done := fo.RepOf[l]; done {
			continue
		}
		for _, m := range orbit(l, stab, Perm.ApplyLink) {
			fo.RepOf[m] = l
		}
		fo.Reps = append(fo.Reps, l)
	}
	return fo
}

// Load rebuilds a reduction from checkpoints written by an earlier Reduce.
func Load(ctx context.Context, ns checkpoint.Namespace, n int) (*Reduction, error) {
	var gens []Perm
	if err := ns.Require(ctx, checkpoint.StageGenerators, "", &gens); err != nil {
		return nil, err
	}
	var reps []topology.Demand
	if err := ns.Require(ctx, checkpoint.StageDemandReps, "", &reps); err != nil {
		return nil, err
	}
	orbits := make([]*DemandOrbit, len(reps))
	flows := make(map[topology.Demand]*FlowOrbits, len(reps))
	for i, rep := range reps {
		var o DemandOrbit
		if err := ns.Require(ctx, checkpoint.StageDemandOrbit, rep.String(), &o); err != nil {
			return nil, err
		}
		var fo FlowOrbits
		if err := ns.Require(ctx, checkpoint.StageFlowOrbit, rep.String(), &fo); err != nil {
			return nil, err
		}
		orbits[i] = &o
		flows[rep] = &fo
	}
	return newReduction(n, gens, orbits, flows)
}

func isExists(err error) bool {
	return errors.Is(err, checkpoint.ErrExists)
}
