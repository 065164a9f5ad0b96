package automorphism

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"robustroute/checkpoint"
	"robustroute/common"
	"robustroute/topology"
)

type countingOracle struct {
	inner Oracle
	calls atomic.Int32
}

func (o *countingOracle) Generators(ctx context.Context, g ColoredGraph) ([]Perm, error) {
	o.calls.Add(1)
	return o.inner.Generators(ctx, g)
}

func newPool(t *testing.T) *common.Pool {
	t.Helper()
	pool, err := common.NewPool(common.PoolConfig{MaxWorkers: 4})
	require.NoError(t, err)
	t.Cleanup(pool.Release)
	return pool
}

func reduce(t *testing.T, g *topology.Graph, oracle Oracle, store checkpoint.Store) *Reduction {
	t.Helper()
	rc := common.NewRunContext(g.Name(), "linear")
	ns := checkpoint.NewNamespace(store, rc.TopologyScope())
	red, err := NewReducer(rc, oracle, newPool(t), ns).Reduce(context.Background(), g)
	require.NoError(t, err)
	return red
}

func TestReduceRing(t *testing.T) {
	g, err := topology.Ring(6, 1, 1)
	require.NoError(t, err)
	red := reduce(t, g, NewRefinementOracle(), checkpoint.NewMemoryStore())

	// one orbit per ring distance
	require.Len(t, red.Orbits, 3)
	assert.Equal(t, []topology.Demand{{Src: 0, Dst: 1}, {Src: 0, Dst: 2}, {Src: 0, Dst: 3}}, red.Reps())
	assert.Equal(t, 12, red.OrbitSize(topology.Demand{Src: 0, Dst: 1}))
	assert.Equal(t, 12, red.OrbitSize(topology.Demand{Src: 0, Dst: 2}))
	assert.Equal(t, 6, red.OrbitSize(topology.Demand{Src: 0, Dst: 3}))
	assert.Equal(t, 30, red.NumDemands())

	for _, d := range g.Demands() {
		rep, ok := red.RepOf(d)
		require.True(t, ok)
		assert.Equal(t, d, red.Forward(d).ApplyDemand(rep))
		assert.Equal(t, rep, red.Reverse(d).ApplyDemand(d))
	}

	// the stabilizer of 0-3 is the reflection through 0 and 3
	fo := red.Flows[topology.Demand{Src: 0, Dst: 3}]
	assert.Len(t, fo.Reps, 6)
	assert.Equal(t, red.FlowRep(topology.Demand{Src: 0, Dst: 3}, topology.Link{From: 0, To: 1}),
		red.FlowRep(topology.Demand{Src: 0, Dst: 3}, topology.Link{From: 0, To: 5}))
}

func TestReduceCliqueFlowOrbits(t *testing.T) {
	g, err := topology.Clique(6, 5, 1)
	require.NoError(t, err)
	red := reduce(t, g, NewRefinementOracle(), checkpoint.NewMemoryStore())

	require.Len(t, red.Orbits, 1)
	rep := red.Reps()[0]
	assert.Equal(t, topology.Demand{Src: 0, Dst: 1}, rep)
	// 0-1, 1-0, 0-x, x-0, 1-x, x-1, x-y
	assert.Len(t, red.Flows[rep].Reps, 7)
}

func TestReduceTrivialOracle(t *testing.T) {
	g, err := topology.Ring(5, 1, 1)
	require.NoError(t, err)
	red := reduce(t, g, TrivialOracle{}, checkpoint.NewMemoryStore())

	assert.Len(t, red.Orbits, len(g.Demands()))
	for _, o := range red.Orbits {
		assert.Equal(t, []topology.Demand{o.Rep}, o.Members)
		assert.Len(t, red.Flows[o.Rep].Reps, len(g.Links()))
	}
}

func TestReduceReusesCheckpoints(t *testing.T) {
	g, err := topology.Torus2D(3, 3, 1, 1)
	require.NoError(t, err)
	store := checkpoint.NewMemoryStore()
	oracle := &countingOracle{inner: NewRefinementOracle()}

	first := reduce(t, g, oracle, store)
	second := reduce(t, g, oracle, store)
	assert.Equal(t, int32(1), oracle.calls.Load())
	assert.Equal(t, first.Reps(), second.Reps())

	ns := checkpoint.NewNamespace(store, "topology/"+g.Name())
	loaded, err := Load(context.Background(), ns, g.NumNodes())
	require.NoError(t, err)
	assert.Equal(t, first.Reps(), loaded.Reps())
	for _, rep := range first.Reps() {
		assert.Equal(t, first.Flows[rep].Reps, loaded.Flows[rep].Reps)
	}

	_, err = Load(context.Background(), checkpoint.NewNamespace(store, "topology/absent"), g.NumNodes())
	assert.ErrorIs(t, err, checkpoint.ErrMissingStage)
}

func TestOrbitsClosedUnderGenerators(t *testing.T) {
	ring, err := topology.Ring(7, 1, 1)
	require.NoError(t, err)
	torus, err := topology.Torus2D(3, 4, 1, 1)
	require.NoError(t, err)
	clos, err := topology.TwoLevelClos(4, 2, 2, 1)
	require.NoError(t, err)

	tests := []struct {
		name  string
		graph *topology.Graph
	}{
		{"ring7", ring},
		{"torus3x4", torus},
		{"clos4x2", clos},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			red := reduce(t, tt.graph, NewRefinementOracle(), checkpoint.NewMemoryStore())
			require.NotEmpty(t, red.Generators)

			covered := 0
			for _, o := range red.Orbits {
				covered += len(o.Members)
				members := make(map[topology.Demand]bool, len(o.Members))
				for _, m := range o.Members {
					members[m] = true
				}
				for gi, gen := range red.Generators {
					for _, m := range o.Members {
						img := gen.ApplyDemand(m)
						assert.True(t, members[img], "generator %d maps %s to %s outside orbit of %s", gi, m, img, o.Rep)
					}
				}

				// generators fixing the representative keep every flow-link orbit
				fo := red.Flows[o.Rep]
				for gi, gen := range red.Generators {
					if gen.ApplyDemand(o.Rep) != o.Rep {
						continue
					}
					for l, rep := range fo.RepOf {
						assert.Equal(t, rep, fo.RepOf[gen.ApplyLink(l)], "generator %d splits the flow orbit of %s", gi, l)
					}
				}
			}
			assert.Equal(t, len(tt.graph.Demands()), covered)
		})
	}
}
