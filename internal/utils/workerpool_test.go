package utils

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParallelForEach(t *testing.T) {
	t.Parallel()

	t.Run("processes all items", func(t *testing.T) {
		var count atomic.Int64
		items := []int{1, 2, 3, 4, 5}

		errs := ParallelForEach(context.Background(), items, 3, func(_ context.Context, n int) error {
			count.Add(int64(n))
			return nil
		})

		require.Len(t, errs, 5)
		assert.NoError(t, FirstError(errs))
		assert.Equal(t, int64(15), count.Load())
	})

	t.Run("errors align with input positions", func(t *testing.T) {
		boom := errors.New("boom")
		items := []string{"ok", "fail", "ok"}

		errs := ParallelForEach(context.Background(), items, 2, func(_ context.Context, s string) error {
			if s == "fail" {
				return boom
			}
			return nil
		})

		require.Len(t, errs, 3)
		assert.NoError(t, errs[0])
		assert.ErrorIs(t, errs[1], boom)
		assert.NoError(t, errs[2])
	})

	t.Run("zero workers clamps to one", func(t *testing.T) {
		errs := ParallelForEach(context.Background(), []int{1, 2}, 0, func(_ context.Context, _ int) error {
			return nil
		})
		assert.NoError(t, FirstError(errs))
	})

	t.Run("respects cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		var ran atomic.Int64
		items := make([]int, 100)
		errs := ParallelForEach(ctx, items, 2, func(_ context.Context, _ int) error {
			ran.Add(1)
			time.Sleep(time.Millisecond)
			return nil
		})

		require.Len(t, errs, 100)
		assert.Less(t, ran.Load(), int64(100))
	})

	t.Run("empty input", func(t *testing.T) {
		errs := ParallelForEach(context.Background(), nil, 4, func(_ context.Context, _ int) error {
			return nil
		})
		assert.Empty(t, errs)
	})
}

func TestFirstError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	assert.Nil(t, FirstError(nil))
	assert.Nil(t, FirstError([]error{nil, nil}))
	assert.Equal(t, boom, FirstError([]error{nil, boom, errors.New("later")}))
}

func TestCollectErrors(t *testing.T) {
	t.Parallel()

	a := errors.New("a")
	b := errors.New("b")
	assert.Nil(t, CollectErrors([]error{nil, nil}))
	assert.Equal(t, []error{a, b}, CollectErrors([]error{nil, a, nil, b}))
}
