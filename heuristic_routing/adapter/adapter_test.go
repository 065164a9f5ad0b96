package adapter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rcommon "robustroute/common"
	"robustroute/heuristic_routing/common"
	"robustroute/topology"
)

func TestRegisteredModes(t *testing.T) {
	assert.Equal(t, []string{"ecmp", "su2", "su3"}, common.NamesGlobal())
	for _, m := range common.ListGlobal() {
		assert.False(t, m.Reduced, m.Name)
		assert.NotNil(t, m.Calculator, m.Name)
	}

	su2, err := common.LookupGlobal("su2")
	require.NoError(t, err)
	assert.Equal(t, 2, su2.DefaultK)
	assert.Equal(t, 2, su2.Calculator.(*ShortestUnionAdapter).K)
	ecmp, err := common.LookupGlobal("ecmp")
	require.NoError(t, err)
	assert.False(t, ecmp.Tunable())

	_, err = common.LookupGlobal("wcmp")
	assert.ErrorIs(t, err, common.ErrUnknownMode)
	assert.Error(t, common.RegisterGlobal(common.Mode{Name: "ecmp", Calculator: NewECMPAdapter()}))
}

func TestModeLabelAndParams(t *testing.T) {
	su2, err := common.LookupGlobal("su2")
	require.NoError(t, err)
	ecmp, err := common.LookupGlobal("ecmp")
	require.NoError(t, err)

	tests := []struct {
		mode          common.Mode
		k, candidates int
		label         string
		params        map[string]interface{}
	}{
		{su2, 0, 0, "su2", map[string]interface{}{}},
		{su2, 2, 0, "su2", map[string]interface{}{"k": 2}},
		{su2, 3, 0, "su2-k3", map[string]interface{}{"k": 3}},
		{su2, 0, 9, "su2-c9", map[string]interface{}{"candidates": 9}},
		{ecmp, 3, 9, "ecmp", map[string]interface{}{}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.label, tt.mode.Label(tt.k, tt.candidates))
		assert.Equal(t, tt.params, tt.mode.Params(tt.k, tt.candidates))
	}
}

func TestModeRegistryRejectsInconsistentModes(t *testing.T) {
	r := common.NewModeRegistry()
	assert.Error(t, r.Register(common.Mode{Name: "bare"}))
	assert.Error(t, r.Register(common.Mode{Name: "mixed", Reduced: true, Calculator: NewECMPAdapter()}))
	assert.Error(t, r.Register(common.Mode{Calculator: NewECMPAdapter()}))
	require.NoError(t, r.Register(common.Mode{Name: "robust", Reduced: true}))
	require.NoError(t, r.Register(common.Mode{Name: "ecmp", Calculator: NewECMPAdapter()}))
	assert.Equal(t, []string{"robust", "ecmp"}, r.Names())
}

func TestShortestUnion(t *testing.T) {
	g, err := topology.Torus2D(3, 4, 1, 1)
	require.NoError(t, err)
	net := common.NewNetwork(g)
	su := NewShortestUnionAdapter(2)
	params := map[string]interface{}{"max_degree": g.MaxDegree()}

	// adjacent nodes share no neighbour in a 3x4 torus
	paths := su.ComputePaths(net, 0, 1, params)
	assert.Len(t, paths, 1)

	// diagonal neighbours are two hops away: the shortest paths only
	paths = su.ComputePaths(net, 0, 5, params)
	assert.Len(t, paths, 2)
	for _, p := range paths {
		assert.Equal(t, 2, p.Hops())
	}

	// K=3 admits the three-hop detours of adjacent nodes: around the row
	// ring and through either neighbouring row
	paths = su.ComputePaths(net, 0, 1, map[string]interface{}{"k": 3})
	assert.Len(t, paths, 4)
	for _, p := range paths {
		assert.LessOrEqual(t, p.Hops(), 3)
	}
}

func TestECMPMatchesShortest(t *testing.T) {
	g, err := topology.Torus2D(3, 3, 1, 1)
	require.NoError(t, err)
	paths := NewECMPAdapter().ComputePaths(common.NewNetwork(g), 0, 4, nil)
	assert.Len(t, paths, 2)
}

func TestRoute(t *testing.T) {
	g, err := topology.Clique(4, 1, 1)
	require.NoError(t, err)
	pool, err := rcommon.NewPool(rcommon.PoolConfig{MaxWorkers: 2})
	require.NoError(t, err)
	defer pool.Release()

	rt, err := Route(context.Background(), pool, g, "su2", NewShortestUnionAdapter(2), nil)
	require.NoError(t, err)
	assert.Equal(t, "su2", rt.Origin)
	assert.False(t, rt.Reduced)

	d := topology.Demand{Src: 0, Dst: 1}
	assert.InDelta(t, 1.0/3, rt.Fraction(topology.Link{From: 0, To: 1}, d), 1e-12)
	assert.InDelta(t, 1.0/3, rt.Fraction(topology.Link{From: 0, To: 2}, d), 1e-12)
	assert.InDelta(t, 1.0/3, rt.Fraction(topology.Link{From: 3, To: 1}, d), 1e-12)
	assert.Zero(t, rt.Fraction(topology.Link{From: 2, To: 3}, d))

	split, err := topology.NewGraph("split",
		[]topology.Node{{ID: 0, NumServer: 1}, {ID: 1, NumServer: 1}, {ID: 2, NumServer: 1}},
		[]topology.Edge{{U: 0, V: 1, Capacity: 1}})
	require.NoError(t, err)
	_, err = Route(context.Background(), pool, split, "ecmp", NewECMPAdapter(), nil)
	assert.ErrorIs(t, err, topology.ErrInvalidGraph)
}

func TestEqualSplit(t *testing.T) {
	shares := common.EqualSplit([]common.Path{{Nodes: []int{0, 1, 2}}, {Nodes: []int{0, 1, 3, 2}}})
	assert.Equal(t, 1.0, shares[topology.Link{From: 0, To: 1}])
	assert.Equal(t, 0.5, shares[topology.Link{From: 1, To: 2}])
	assert.Empty(t, common.EqualSplit(nil))
}
