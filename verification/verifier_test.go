package verification

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"robustroute/automorphism"
	"robustroute/checkpoint"
	"robustroute/common"
	"robustroute/dependency"
	"robustroute/heuristic_routing/adapter"
	hrc "robustroute/heuristic_routing/common"
	"robustroute/optimizer"
	"robustroute/solver"
	"robustroute/topology"
)

func newPool(t *testing.T) *common.Pool {
	t.Helper()
	pool, err := common.NewPool(common.PoolConfig{MaxWorkers: 4})
	require.NoError(t, err)
	t.Cleanup(pool.Release)
	return pool
}

func engine() solver.Engine {
	return solver.NewSimplexEngine(solver.DefaultConfig())
}

func TestVerifyOptimizerRouting(t *testing.T) {
	ctx := context.Background()
	g, err := topology.Clique(6, 5, 1)
	require.NoError(t, err)
	pool := newPool(t)
	store := checkpoint.NewMemoryStore()
	rc := common.NewRunContext(g.Name(), "linear")
	topoNS := checkpoint.NewNamespace(store, rc.TopologyScope())
	outNS := checkpoint.NewNamespace(store, rc.OutputScope())

	red, err := automorphism.NewReducer(rc, automorphism.NewRefinementOracle(), pool, topoNS).Reduce(ctx, g)
	require.NoError(t, err)
	sel, err := dependency.NewBuilder(rc, pool, topoNS).Build(ctx, g, red)
	require.NoError(t, err)
	opt, err := optimizer.New(rc, optimizer.DefaultConfig(), g, red, sel, engine(), pool, outNS).Optimize(ctx)
	require.NoError(t, err)

	v := NewVerifier(rc, engine(), pool, outNS)
	res, err := v.Verify(ctx, g, opt.Routing, red)
	require.NoError(t, err)
	assert.InDelta(t, 0.6, res.Throughput, 1e-4)
	assert.InDelta(t, opt.Summary.Throughput, res.Throughput, 1e-4)
	// every link is a bottleneck in the clique
	for _, load := range res.LinkLoads {
		assert.InDelta(t, res.MaxLoad, load, 1e-4)
	}

	// the reduced routing cannot be verified without its orbits
	_, err = v.Verify(ctx, g, opt.Routing, nil)
	assert.ErrorIs(t, err, checkpoint.ErrMissingStage)

	// verification of the same origin is read back from the store
	again, err := NewVerifier(rc, engine(), pool, outNS).Verify(ctx, g, opt.Routing, red)
	require.NoError(t, err)
	assert.Equal(t, res.Throughput, again.Throughput)
	assert.Equal(t, res.Bottleneck, again.Bottleneck)
}

func TestVerifyHeuristicRoutings(t *testing.T) {
	ctx := context.Background()
	g, err := topology.Clique(6, 5, 1)
	require.NoError(t, err)
	pool := newPool(t)

	tests := []struct {
		mode string
		calc hrc.PathCalculator
		want float64
	}{
		{"ecmp", adapter.NewECMPAdapter(), 0.2},
		{"su2", adapter.NewShortestUnionAdapter(2), 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			rt, err := adapter.Route(ctx, pool, g, tt.mode, tt.calc, nil)
			require.NoError(t, err)
			assert.False(t, rt.Reduced)

			rc := common.NewRunContext(g.Name(), tt.mode)
			ns := checkpoint.NewNamespace(checkpoint.NewMemoryStore(), rc.OutputScope())
			res, err := NewVerifier(rc, engine(), pool, ns).Verify(ctx, g, rt, nil)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, res.Throughput, 1e-6)
		})
	}
}

func TestVerifyEmptyRouting(t *testing.T) {
	ctx := context.Background()
	g, err := topology.Ring(4, 1, 1)
	require.NoError(t, err)
	rc := common.NewRunContext(g.Name(), "empty")
	store := checkpoint.NewMemoryStore()
	ns := checkpoint.NewNamespace(store, rc.OutputScope())

	res, err := NewVerifier(rc, engine(), newPool(t), ns).Verify(ctx, g, topology.NewRouting("empty", false), nil)
	require.NoError(t, err)
	assert.True(t, math.IsInf(res.Throughput, 1))
	assert.Empty(t, store.Keys(ns.Prefix()))
}
