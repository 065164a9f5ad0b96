package automorphism

import (
	"encoding/json"
	"errors"
	"fmt"

	"robustroute/topology"
)

var ErrNotPermutation = errors.New("not a permutation")

// Perm is a bijection on node ids 0..n-1. The inverse is kept alongside the
// forward images so both directions are O(1).
type Perm struct {
	fwd []int
	inv []int
}

// NewPerm validates that images is a bijection on 0..len(images)-1.
func NewPerm(images []int) (Perm, error) {
	n := len(images)
	inv := make([]int, n)
	for i := range inv {
		inv[i] = -1
	}
	for i, v := range images {
		if v < 0 || v >= n {
			return Perm{}, fmt.Errorf("%w: image %d of %d out of range", ErrNotPermutation, v, i)
		}
		if inv[v] >= 0 {
			return Perm{}, fmt.Errorf("%w: %d has two preimages", ErrNotPermutation, v)
		}
		inv[v] = i
	}
	return Perm{fwd: append([]int(nil), images...), inv: inv}, nil
}

// Identity returns the identity on n points.
func Identity(n int) Perm {
	fwd := make([]int, n)
	for i := range fwd {
		fwd[i] = i
	}
	return Perm{fwd: fwd, inv: append([]int(nil), fwd...)}
}

func (p Perm) Len() int         { return len(p.fwd) }
func (p Perm) Apply(v int) int  { return p.fwd[v] }
func (p Perm) Images() []int    { return append([]int(nil), p.fwd...) }
func (p Perm) Inverse() Perm    { return Perm{fwd: p.inv, inv: p.fwd} }
func (p Perm) Fixes(v int) bool { return p.fwd[v] == v }

// Then returns the permutation applying p first and q second.
func (p Perm) Then(q Perm) Perm {
	fwd := make([]int, len(p.fwd))
	inv := make([]int, len(p.fwd))
	for i, v := range p.fwd {
		fwd[i] = q.fwd[v]
		inv[q.fwd[v]] = i
	}
	return Perm{fwd: fwd, inv: inv}
}

// IsIdentity reports whether p fixes every point.
func (p Perm) IsIdentity() bool {
	for i, v := range p.fwd {
		if i != v {
			return false
		}
	}
	return true
}

func (p Perm) ApplyDemand(d topology.Demand) topology.Demand {
	return topology.Demand{Src: p.fwd[d.Src], Dst: p.fwd[d.Dst]}
}

func (p Perm) ApplyLink(l topology.Link) topology.Link {
	return topology.Link{From: p.fwd[l.From], To: p.fwd[l.To]}
}

func (p Perm) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.fwd)
}

func (p *Perm) UnmarshalJSON(b []byte) error {
	var images []int
	if err := json.Unmarshal(b, &images); err != nil {
		return err
	}
	q, err := NewPerm(images)
	if err != nil {
		return err
	}
	*p = q
	return nil
}
