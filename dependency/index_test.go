package dependency

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"robustroute/automorphism"
	"robustroute/checkpoint"
	"robustroute/common"
	"robustroute/topology"
)

type fixture struct {
	graph *topology.Graph
	red   *automorphism.Reduction
	rc    common.RunContext
	pool  *common.Pool
	ns    checkpoint.Namespace
}

func newFixture(t *testing.T, g *topology.Graph, oracle automorphism.Oracle) *fixture {
	t.Helper()
	pool, err := common.NewPool(common.PoolConfig{MaxWorkers: 4})
	require.NoError(t, err)
	t.Cleanup(pool.Release)

	rc := common.NewRunContext(g.Name(), "linear")
	ns := checkpoint.NewNamespace(checkpoint.NewMemoryStore(), rc.TopologyScope())
	red, err := automorphism.NewReducer(rc, oracle, pool, ns).Reduce(context.Background(), g)
	require.NoError(t, err)
	return &fixture{graph: g, red: red, rc: rc, pool: pool, ns: ns}
}

func TestIndexPartitionsDemands(t *testing.T) {
	g, err := topology.Torus2D(3, 3, 1, 1)
	require.NoError(t, err)
	f := newFixture(t, g, automorphism.NewRefinementOracle())

	for _, l := range g.Links() {
		ix := Build(f.red, l)
		seen := make(map[topology.Demand]bool)
		for _, e := range ix.Entries {
			for _, sd := range e.Members {
				assert.False(t, seen[sd], "demand %s twice on %s", sd, l)
				seen[sd] = true

				// the entry names the flow variable that carries sd's traffic on l
				rep, _ := f.red.RepOf(sd)
				assert.Equal(t, rep, e.Demand)
				assert.Equal(t, f.red.FlowRep(rep, f.red.Reverse(sd).ApplyLink(l)), e.Flow)
			}
		}
		assert.Len(t, seen, len(g.Demands()))
	}
}

func TestIndexLoad(t *testing.T) {
	ix := &Index{
		Link: topology.Link{From: 0, To: 1},
		Entries: []Entry{
			{Demand: topology.Demand{Src: 0, Dst: 1}, Flow: topology.Link{From: 0, To: 1}, Members: []topology.Demand{{Src: 0, Dst: 1}, {Src: 1, Dst: 0}}},
			{Demand: topology.Demand{Src: 0, Dst: 2}, Flow: topology.Link{From: 0, To: 1}, Members: []topology.Demand{{Src: 2, Dst: 1}}},
		},
	}
	tm := topology.TrafficMatrix{{Src: 0, Dst: 1}: 1, {Src: 1, Dst: 0}: 0.5, {Src: 2, Dst: 0}: 3}
	assert.Equal(t, []Weighted{{Demand: topology.Demand{Src: 0, Dst: 1}, Flow: topology.Link{From: 0, To: 1}, Weight: 1.5}}, ix.Load(tm))
}

func TestBuilderRepresentativeLinks(t *testing.T) {
	clique, err := topology.Clique(6, 5, 1)
	require.NoError(t, err)
	ring, err := topology.Ring(5, 1, 1)
	require.NoError(t, err)

	tests := []struct {
		name   string
		graph  *topology.Graph
		oracle automorphism.Oracle
		reps   int
	}{
		{"clique", clique, automorphism.NewRefinementOracle(), 1},
		{"ring", ring, automorphism.NewRefinementOracle(), 1},
		{"ring without symmetry", ring, automorphism.TrivialOracle{}, len(ring.Links())},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.graph, tt.oracle)
			sel, err := NewBuilder(f.rc, f.pool, f.ns).Build(context.Background(), tt.graph, f.red)
			require.NoError(t, err)
			assert.Len(t, sel.Reps, tt.reps)
			assert.Equal(t, topology.Link{From: 0, To: 1}, sel.Reps[0])
			for _, l := range tt.graph.Links() {
				rep, ok := sel.RepOf[l]
				require.True(t, ok)
				assert.NotNil(t, sel.Index(rep))
			}
		})
	}
}

func TestBuilderReusesCheckpoints(t *testing.T) {
	g, err := topology.Torus2D(3, 3, 1, 1)
	require.NoError(t, err)
	f := newFixture(t, g, automorphism.NewRefinementOracle())
	b := NewBuilder(f.rc, f.pool, f.ns)

	first, err := b.Build(context.Background(), g, f.red)
	require.NoError(t, err)
	second, err := b.Build(context.Background(), g, f.red)
	require.NoError(t, err)
	assert.Equal(t, first.RepLinks, second.RepLinks)
	for _, l := range first.Reps {
		assert.Equal(t, first.Index(l).Entries, second.Index(l).Entries)
	}

	_, err = Load(context.Background(), f.ns, RepLinks{Reps: []topology.Link{{From: 9, To: 9}}})
	assert.ErrorIs(t, err, checkpoint.ErrMissingStage)
}
