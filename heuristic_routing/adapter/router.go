package adapter

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	rcommon "robustroute/common"
	"robustroute/heuristic_routing/common"
	"robustroute/topology"
)

// Route builds an unreduced routing for every server pair of g by asking
// calc for paths and splitting each demand equally over them. Demands are
// fanned out on pool; the merge is in demand order.
func Route(ctx context.Context, pool *rcommon.Pool, g *topology.Graph, mode string, calc common.PathCalculator, params map[string]interface{}) (*topology.Routing, error) {
	network := common.NewNetwork(g)
	merged := map[string]interface{}{"max_degree": g.MaxDegree()}
	for k, v := range params {
		merged[k] = v
	}

	demands := g.Demands()
	shares := make([]map[topology.Link]float64, len(demands))
	err := pool.Map(ctx, len(demands), func(ctx context.Context, i int) error {
		d := demands[i]
		paths := calc.ComputePaths(network, d.Src, d.Dst, merged)
		if len(paths) == 0 {
			return fmt.Errorf("%s: no path for demand %s: %w", mode, d, topology.ErrInvalidGraph)
		}
		shares[i] = common.EqualSplit(paths)
		return nil
	})
	if err != nil {
		return nil, err
	}

	rt := topology.NewRouting(mode, false)
	for i, d := range demands {
		for l, frac := range shares[i] {
			rt.Add(l, d, frac)
		}
	}
	log.Infof("%s routing covers %d demands on %d links", mode, len(demands), len(rt.Flows))
	return rt, nil
}
