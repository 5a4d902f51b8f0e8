package workerpool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"mlflow-migrate/internal/core/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreAnyFunction("k8s.io/klog/v2.(*flushDaemon).run.func1"))
}

func TestNew_MinimumOneWorker(t *testing.T) {
	assert.Equal(t, 1, New(0).Workers())
	assert.Equal(t, 1, New(-3).Workers())
	assert.Equal(t, 4, New(4).Workers())
}

func TestForThreads(t *testing.T) {
	assert.Equal(t, 1, ForThreads(false).Workers())
	assert.GreaterOrEqual(t, ForThreads(true).Workers(), 1)
}

func TestMap_PreservesInputOrder(t *testing.T) {
	items := []int{5, 4, 3, 2, 1}
	results := Map(context.Background(), New(3), items, func(_ context.Context, n int) (int, error) {
		time.Sleep(time.Duration(n) * time.Millisecond)
		return n * 10, nil
	})

	require.Len(t, results, 5)
	for i, r := range results {
		assert.NoError(t, r.Err)
		assert.Equal(t, items[i]*10, r.Value)
	}
}

func TestMap_FailureIsIsolated(t *testing.T) {
	boom := errors.New("boom")
	results := Map(context.Background(), New(2), []string{"r1", "r2", "r3"}, func(_ context.Context, id string) (string, error) {
		if id == "r2" {
			return "", boom
		}
		return id, nil
	})

	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, boom)
	assert.NoError(t, results[2].Err)
	assert.Equal(t, "r3", results[2].Value)
}

func TestMap_RecoversPanic(t *testing.T) {
	results := Map(context.Background(), New(2), []int{1, 2}, func(_ context.Context, n int) (int, error) {
		if n == 1 {
			panic("bad unit")
		}
		return n, nil
	})

	assert.ErrorIs(t, results[0].Err, domain.ErrWorkerPanic)
	assert.NoError(t, results[1].Err)
}

func TestMap_BoundsConcurrency(t *testing.T) {
	var current, peak int32
	items := make([]int, 20)
	Map(context.Background(), New(3), items, func(_ context.Context, _ int) (int, error) {
		n := atomic.AddInt32(&current, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		atomic.AddInt32(&current, -1)
		return 0, nil
	})

	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3))
}

func TestMap_CancelledContextMarksUndispatched(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := Map(ctx, New(1), []int{1, 2, 3}, func(_ context.Context, n int) (int, error) {
		return n, nil
	})

	for _, r := range results {
		assert.ErrorIs(t, r.Err, domain.ErrNotDispatched)
	}
}

func TestEach(t *testing.T) {
	boom := errors.New("boom")
	errs := Each(context.Background(), New(2), []int{1, 2}, func(_ context.Context, n int) error {
		if n == 2 {
			return boom
		}
		return nil
	})

	assert.NoError(t, errs[0])
	assert.ErrorIs(t, errs[1], boom)
}

func TestMap_Empty(t *testing.T) {
	results := Map(context.Background(), New(2), []int{}, func(_ context.Context, n int) (int, error) {
		return n, nil
	})
	assert.Empty(t, results)
}
