package dependency

import (
	"sort"
	"strconv"
	"strings"

	"robustroute/automorphism"
	"robustroute/topology"
)

// Entry lists the demands whose traffic on a link is carried by the flow
// variable of (Demand, Flow), where Demand is a representative demand and
// Flow one of its representative flow-links.
type Entry struct {
	Demand  topology.Demand   `json:"demand"`
	Flow    topology.Link     `json:"flow"`
	Members []topology.Demand `json:"members"`
}

// Index is the dependency index of one directed link.
type Index struct {
	Link    topology.Link `json:"link"`
	Entries []Entry       `json:"entries"`
}

type bucket struct {
	demand topology.Demand
	flow   topology.Link
}

// Build computes the dependency index of l. Every demand lands in exactly
// one entry: the one naming its representative and the representative
// flow-link of l pulled back through the demand's reverse map.
func Build(red *automorphism.Reduction, l topology.Link) *Index {
	buckets := make(map[bucket][]topology.Demand)
	for _, o := range red.Orbits {
		fo := red.Flows[o.Rep]
		for _, sd := range o.Members {
			pulled := o.Forward[sd].Inverse().ApplyLink(l)
			key := bucket{demand: o.Rep, flow: fo.RepOf[pulled]}
			buckets[key] = append(buckets[key], sd)
		}
	}

	ix := &Index{Link: l, Entries: make([]Entry, 0, len(buckets))}
	for key, members := range buckets {
		topology.SortDemands(members)
		ix.Entries = append(ix.Entries, Entry{Demand: key.demand, Flow: key.flow, Members: members})
	}
	sort.Slice(ix.Entries, func(i, j int) bool {
		a, b := ix.Entries[i], ix.Entries[j]
		if a.Demand != b.Demand {
			return a.Demand.Less(b.Demand)
		}
		return a.Flow.Less(b.Flow)
	})
	return ix
}

// Signature encodes the member count of every entry plus the link
// capacity. Links with equal signatures share one representative.
func (ix *Index) Signature(capacity float64) string {
	var b strings.Builder
	for _, e := range ix.Entries {
		b.WriteString(e.Demand.String())
		b.WriteByte('|')
		b.WriteString(e.Flow.String())
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(len(e.Members)))
		b.WriteByte(';')
	}
	b.WriteString("cap=")
	b.WriteString(strconv.FormatFloat(capacity, 'g', -1, 64))
	return b.String()
}

// Load returns the summed coefficient of every (Demand, Flow) variable
// under traffic matrix tm, skipping entries with no traffic.
func (ix *Index) Load(tm topology.TrafficMatrix) []Weighted {
	var out []Weighted
	for _, e := range ix.Entries {
		sum := 0.0
		for _, sd := range e.Members {
			sum += tm[sd]
		}
		if sum > 0 {
			out = append(out, Weighted{Demand: e.Demand, Flow: e.Flow, Weight: sum})
		}
	}
	return out
}

// Weighted is an aggregated traffic coefficient of one flow variable.
type Weighted struct {
	Demand topology.Demand
	Flow   topology.Link
	Weight float64
}
