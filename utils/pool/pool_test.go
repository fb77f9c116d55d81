package pool

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/ugparu/goflow/metric"
)

func TestAllocateSizes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		minSize int
		atLeast int
	}{
		{name: "zero", minSize: 0, atLeast: defaultSmallSize},
		{name: "small", minSize: 100, atLeast: defaultSmallSize},
		{name: "above_small_class", minSize: defaultSmallSize + 1, atLeast: defaultSmallSize + 1},
		{name: "big", minSize: defaultBigSize, atLeast: defaultBigSize},
		{name: "huge", minSize: 2 * defaultMaxRetained, atLeast: 2 * defaultMaxRetained},
	}
	p := New()
	for _, tt := range tests {
		storage := p.Allocate(tt.minSize)
		require.GreaterOrEqual(t, len(storage), tt.atLeast, tt.name)
		require.Equal(t, cap(storage), len(storage), tt.name)
		p.Recycle(storage)
	}
	stats := p.Stats()
	require.Equal(t, int64(len(tests)), stats.Allocated)
	require.Equal(t, int64(len(tests)), stats.Recycled)
	require.Zero(t, stats.InUse)
}

func TestSizeClassesOption(t *testing.T) {
	t.Parallel()

	p := New(WithSizeClasses(16, 256, 1024))
	require.Len(t, p.Allocate(1), 16)
	require.Len(t, p.Allocate(300), 300)

	// Invalid values keep the defaults that make sense.
	p = New(WithSizeClasses(0, 0, 0))
	require.Equal(t, defaultSmallSize, p.smallSize)
	require.Equal(t, defaultBigSize, p.bigSize)
	require.Equal(t, defaultMaxRetained, p.maxRetained)
}

func TestRecycleNil(t *testing.T) {
	t.Parallel()

	p := New()
	p.Recycle(nil)
	require.Zero(t, p.Stats().Recycled)
}

func TestConcurrentUse(t *testing.T) {
	t.Parallel()

	p := New()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				p.Recycle(p.Allocate(j % 100))
			}
		}()
	}
	wg.Wait()
	require.Zero(t, p.Stats().InUse)
}

func TestMetrics(t *testing.T) {
	t.Parallel()

	m := metric.NewPoolMetrics("test")
	p := New(WithMetrics(m))
	storage := p.Allocate(10)
	require.InDelta(t, 1, testutil.ToFloat64(m.Allocations), 0)
	require.InDelta(t, 1, testutil.ToFloat64(m.InUse), 0)
	p.Recycle(storage)
	require.InDelta(t, 1, testutil.ToFloat64(m.Recycles), 0)
	require.InDelta(t, 0, testutil.ToFloat64(m.InUse), 0)
}
