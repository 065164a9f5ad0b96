package optimizer

import (
	"math"

	"robustroute/automorphism"
	"robustroute/topology"
)

type DemandThroughput struct {
	Demand     topology.Demand `json:"demand"`
	OrbitSize  int             `json:"orbit_size"`
	Throughput float64         `json:"throughput"`
}

// Summary describes a finished optimization.
type Summary struct {
	Objective       Objective          `json:"objective"`
	Throughput      float64            `json:"throughput"`
	TotalThroughput float64            `json:"total_throughput"`
	Fairness        float64            `json:"fairness"`
	Demands         []DemandThroughput `json:"demands"`
	Iterations      int                `json:"iterations"`
	Converged       bool               `json:"converged"`
	MaxViolation    float64            `json:"max_violation"`
}

// Fairness is Jain's index of the representative throughputs, each weighted
// by its orbit size: (Σ w·s)² / (W · Σ w·s²).
func Fairness(demands []DemandThroughput) float64 {
	var sum, sumSq, weight float64
	for _, d := range demands {
		w := float64(d.OrbitSize)
		sum += w * d.Throughput
		sumSq += w * d.Throughput * d.Throughput
		weight += w
	}
	if weight == 0 || sumSq == 0 {
		return 0
	}
	return sum * sum / (weight * sumSq)
}

func summarize(objective Objective, red *automorphism.Reduction, through map[topology.Demand]float64) Summary {
	s := Summary{Objective: objective, Throughput: math.Inf(1)}
	for _, r := range red.Reps() {
		d := DemandThroughput{Demand: r, OrbitSize: red.OrbitSize(r), Throughput: through[r]}
		s.Demands = append(s.Demands, d)
		s.TotalThroughput += float64(d.OrbitSize) * d.Throughput
		s.Throughput = math.Min(s.Throughput, d.Throughput)
	}
	if len(s.Demands) == 0 {
		s.Throughput = 0
	}
	s.Fairness = Fairness(s.Demands)
	return s
}
