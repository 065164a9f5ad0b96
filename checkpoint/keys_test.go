package checkpoint

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type artifact struct {
	Values []int `json:"values"`
}

func TestNamespace_Key(t *testing.T) {
	ns := NewNamespace(NewMemoryStore(), "output/Clique-5-6-1-linear")
	assert.Equal(t, "output/Clique-5-6-1-linear/iteration/3", ns.Key(StageIteration, "3"))
	assert.Equal(t, "output/Clique-5-6-1-linear/routing", ns.Key(StageRouting, ""))
}

func TestNamespace_Require(t *testing.T) {
	ctx := context.Background()
	ns := NewNamespace(NewMemoryStore(), "topology/t")

	var a artifact
	err := ns.Require(ctx, StageRepLinks, "", &a)
	assert.ErrorIs(t, err, ErrMissingStage)

	require.NoError(t, ns.PutJSON(ctx, StageRepLinks, "", artifact{Values: []int{1, 2}}))
	require.NoError(t, ns.Require(ctx, StageRepLinks, "", &a))
	assert.Equal(t, []int{1, 2}, a.Values)
}

func TestNamespace_CorruptBlob(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	ns := NewNamespace(store, "topology/t")
	require.NoError(t, store.Put(ctx, ns.Key(StageGenerators, ""), []byte("{not json")))

	var a artifact
	_, err := ns.GetJSON(ctx, StageGenerators, "", &a)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestGetOrCompute(t *testing.T) {
	ctx := context.Background()
	ns := NewNamespace(NewMemoryStore(), "topology/t")
	calls := 0
	compute := func(context.Context) (artifact, error) {
		calls++
		return artifact{Values: []int{calls}}, nil
	}

	v, found, err := GetOrCompute(ctx, ns, StageDemandReps, "", compute)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, []int{1}, v.Values)

	v, found, err = GetOrCompute(ctx, ns, StageDemandReps, "", compute)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []int{1}, v.Values)
	assert.Equal(t, 1, calls)

	boom := errors.New("boom")
	_, _, err = GetOrCompute(ctx, ns, StageDemandReps, "other", func(context.Context) (artifact, error) {
		return artifact{}, boom
	})
	assert.ErrorIs(t, err, boom)
}
