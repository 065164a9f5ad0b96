package automorphism

import (
	"fmt"

	"robustroute/topology"
)

// DemandOrbit is one equivalence class of demands. Forward maps every
// member to the automorphism carrying Rep onto it.
type DemandOrbit struct {
	Rep     topology.Demand          `json:"rep"`
	Members []topology.Demand        `json:"members"`
	Forward map[topology.Demand]Perm `json:"forward"`
}

// FlowOrbits partitions directed links under the stabilizer of one
// representative demand.
type FlowOrbits struct {
	Demand topology.Demand                 `json:"demand"`
	Reps   []topology.Link                 `json:"reps"`
	RepOf  map[topology.Link]topology.Link `json:"rep_of"`
}

// Reduction is the symmetry data of a topology. It is immutable once built.
type Reduction struct {
	NumNodes   int
	Generators []Perm
	Orbits     []*DemandOrbit
	Flows      map[topology.Demand]*FlowOrbits

	byRep map[topology.Demand]*DemandOrbit
	repOf map[topology.Demand]topology.Demand
}

func newReduction(n int, gens []Perm, orbits []*DemandOrbit, flows map[topology.Demand]*FlowOrbits) (*Reduction, error) {
	r := &Reduction{
		NumNodes:   n,
		Generators: gens,
		Orbits:     orbits,
		Flows:      flows,
		byRep:      make(map[topology.Demand]*DemandOrbit, len(orbits)),
		repOf:      make(map[topology.Demand]topology.Demand),
	}
	for _, o := range orbits {
		r.byRep[o.Rep] = o
		for _, m := range o.Members {
			if _, dup := r.repOf[m]; dup {
				return nil, fmt.Errorf("demand %s belongs to two orbits", m)
			}
			if _, ok := o.Forward[m]; !ok {
				return nil, fmt.Errorf("demand %s has no forward map", m)
			}
			r.repOf[m] = o.Rep
		}
		if _, ok := flows[o.Rep]; !ok {
			return nil, fmt.Errorf("representative %s has no flow-link orbits", o.Rep)
		}
	}
	return r, nil
}

// Reps lists representative demands in lexicographic order.
func (r *Reduction) Reps() []topology.Demand {
	reps := make([]topology.Demand, len(r.Orbits))
	for i, o := range r.Orbits {
		reps[i] = o.Rep
	}
	return reps
}

// RepOf returns the representative of d.
func (r *Reduction) RepOf(d topology.Demand) (topology.Demand, bool) {
	rep, ok := r.repOf[d]
	return rep, ok
}

func (r *Reduction) Orbit(rep topology.Demand) *DemandOrbit {
	return r.byRep[rep]
}

func (r *Reduction) OrbitSize(rep topology.Demand) int {
	if o := r.byRep[rep]; o != nil {
		return len(o.Members)
	}
	return 0
}

// Forward returns the automorphism carrying d's representative onto d.
func (r *Reduction) Forward(d topology.Demand) Perm {
	return r.byRep[r.repOf[d]].Forward[d]
}

// Reverse returns the automorphism carrying d onto its representative.
func (r *Reduction) Reverse(d topology.Demand) Perm {
	return r.Forward(d).Inverse()
}

// FlowRep returns the representative flow-link of l for representative demand rep.
func (r *Reduction) FlowRep(rep topology.Demand, l topology.Link) topology.Link {
	return r.Flows[rep].RepOf[l]
}

// NumDemands is the number of demands covered by all orbits.
func (r *Reduction) NumDemands() int {
	return len(r.repOf)
}
