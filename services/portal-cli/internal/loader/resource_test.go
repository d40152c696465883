package loader

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResource_LoadCachesSuccess(t *testing.T) {
	var calls atomic.Int32
	r := New(func(ctx context.Context) ([]string, error) {
		calls.Add(1)
		return []string{"job-1"}, nil
	})

	assert.False(t, r.Snapshot().HasData)

	data, err := r.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"job-1"}, data)

	_, err = r.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())

	snap := r.Snapshot()
	assert.True(t, snap.HasData)
	assert.False(t, snap.Loading)
	assert.NoError(t, snap.Err)
	assert.False(t, snap.LoadedAt.IsZero())
}

func TestResource_ErrorThenReload(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	r := New(func(ctx context.Context) (int, error) {
		if fail.Load() {
			return 0, errors.New("backend down")
		}
		return 42, nil
	})

	_, err := r.Load(context.Background())
	require.Error(t, err)
	assert.EqualError(t, r.Snapshot().Err, "backend down")

	fail.Store(false)
	v, err := r.Reload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.NoError(t, r.Snapshot().Err)
}

func TestResource_FailedReloadKeepsData(t *testing.T) {
	var fail atomic.Bool
	r := New(func(ctx context.Context) (int, error) {
		if fail.Load() {
			return 0, errors.New("boom")
		}
		return 1, nil
	})

	_, err := r.Load(context.Background())
	require.NoError(t, err)

	fail.Store(true)
	_, err = r.Reload(context.Background())
	require.Error(t, err)

	snap := r.Snapshot()
	assert.True(t, snap.HasData)
	assert.Equal(t, 1, snap.Data)
	assert.Error(t, snap.Err)
}

func TestResource_ConcurrentLoadsCoalesce(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	r := New(func(ctx context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 7, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := r.Load(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, 7, v)
		}()
	}

	require.Eventually(t, func() bool { return r.Snapshot().Loading }, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	assert.False(t, r.Snapshot().Loading)
}
