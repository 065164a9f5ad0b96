package common

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolMapFillsEveryIndex(t *testing.T) {
	pool, err := NewPool(PoolConfig{MaxWorkers: 4})
	require.NoError(t, err)
	defer pool.Release()
	assert.Equal(t, 4, pool.Size())

	out := make([]int, 100)
	err = pool.Map(context.Background(), len(out), func(_ context.Context, i int) error {
		out[i] = i * i
		return nil
	})
	require.NoError(t, err)
	for i, v := range out {
		assert.Equal(t, i*i, v)
	}
}

func TestPoolMapStopsOnFirstError(t *testing.T) {
	pool, err := NewPool(PoolConfig{MaxWorkers: 2})
	require.NoError(t, err)
	defer pool.Release()

	boom := errors.New("boom")
	var ran atomic.Int32
	err = pool.Map(context.Background(), 1000, func(ctx context.Context, i int) error {
		ran.Add(1)
		if i == 0 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
	assert.Less(t, int(ran.Load()), 1000)
}

func TestPoolMapCancelledParent(t *testing.T) {
	pool, err := NewPool(PoolConfig{MaxWorkers: 2})
	require.NoError(t, err)
	defer pool.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = pool.Map(ctx, 10, func(context.Context, int) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)

	assert.NoError(t, pool.Map(context.Background(), 0, nil))
}

func TestDefaultSize(t *testing.T) {
	pool, err := NewPool(PoolConfig{})
	require.NoError(t, err)
	defer pool.Release()
	assert.Positive(t, pool.Size())
}

func TestRunContextScopes(t *testing.T) {
	rc := NewRunContext("Clique-5-6-1", "linear")
	assert.Equal(t, "topology/Clique-5-6-1", rc.TopologyScope())
	assert.Equal(t, "output/Clique-5-6-1-linear", rc.OutputScope())
	assert.Len(t, rc.RunID(), 26)
	assert.NotEqual(t, rc.RunID(), NewRunContext("Clique-5-6-1", "linear").RunID())
	assert.Equal(t, "linear", rc.Logger().Data["objective"])
}
