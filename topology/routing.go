package topology

import "sort"

// Routing records, per directed link, the fraction of each demand's unit
// traffic carried on it. When Reduced is set the inner keys are
// representative demands and other demands are recovered through their
// automorphism maps.
type Routing struct {
	Origin     string                      `json:"origin"`
	Reduced    bool                        `json:"reduced"`
	Flows      map[Link]map[Demand]float64 `json:"flows"`
	Throughput map[Demand]float64          `json:"throughput,omitempty"`
}

// NewRouting returns an empty routing.
func NewRouting(origin string, reduced bool) *Routing {
	return &Routing{
		Origin:  origin,
		Reduced: reduced,
		Flows:   make(map[Link]map[Demand]float64),
	}
}

// Add accumulates fraction onto link l for demand d.
func (r *Routing) Add(l Link, d Demand, fraction float64) {
	m, ok := r.Flows[l]
	if !ok {
		m = make(map[Demand]float64)
		r.Flows[l] = m
	}
	m[d] += fraction
}

// Fraction returns the recorded fraction, zero when absent.
func (r *Routing) Fraction(l Link, d Demand) float64 {
	return r.Flows[l][d]
}

// Links returns the links carrying any flow in lexicographic order.
func (r *Routing) Links() []Link {
	links := make([]Link, 0, len(r.Flows))
	for l := range r.Flows {
		links = append(links, l)
	}
	sort.Slice(links, func(i, j int) bool { return links[i].Less(links[j]) })
	return links
}

// SortDemands sorts in place lexicographically.
func SortDemands(ds []Demand) {
	sort.Slice(ds, func(i, j int) bool { return ds[i].Less(ds[j]) })
}

// SortLinks sorts in place lexicographically.
func SortLinks(ls []Link) {
	sort.Slice(ls, func(i, j int) bool { return ls[i].Less(ls[j]) })
}
