package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolExecuteKeepsOrder(t *testing.T) {
	p := NewPool[int, int](3, func(ctx context.Context, n int) (int, error) {
		return n * n, nil
	})

	results := p.Execute(context.Background(), []int{1, 2, 3, 4, 5})
	require.Len(t, results, 5)
	for i, r := range results {
		assert.NoError(t, r.Err)
		assert.Equal(t, i+1, r.Input)
		assert.Equal(t, (i+1)*(i+1), r.Result)
	}
}

func TestPoolExecuteReportsErrors(t *testing.T) {
	boom := errors.New("boom")
	p := NewPool[string, string](2, func(ctx context.Context, s string) (string, error) {
		if s == "bad" {
			return "", boom
		}
		return s, nil
	})

	results := p.Execute(context.Background(), []string{"ok", "bad"})
	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, boom)
}

func TestPoolExecuteCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	p := NewPool[int, int](0, func(ctx context.Context, n int) (int, error) {
		calls.Add(1)
		return n, nil
	})

	results := p.Execute(ctx, []int{1, 2, 3})
	require.Len(t, results, 3)
	for _, r := range results {
		if r.Err != nil {
			assert.ErrorIs(t, r.Err, context.Canceled)
		}
	}
}
