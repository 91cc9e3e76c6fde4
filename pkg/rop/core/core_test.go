package core

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ib-77/l1tnp/pkg/rop"
	"github.com/ib-77/l1tnp/pkg/rop/solo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func drain[T any](ch <-chan rop.Result[T]) []rop.Result[T] {
	var out []rop.Result[T]
	for r := range ch {
		out = append(out, r)
	}
	return out
}

func TestFeedValues(t *testing.T) {
	ch := make(chan rop.Result[int])
	go FeedValues(context.Background(), ch, 1, 2, 3)

	got := drain(ch)
	require.Len(t, got, 3)
	for i, r := range got {
		assert.True(t, r.IsSuccess())
		assert.Equal(t, i+1, r.Result())
	}
}

func TestFeed_ErrorIsLast(t *testing.T) {
	boom := errors.New("boom")
	n := 0
	ch := make(chan rop.Result[int])
	go Feed(context.Background(), ch, func(context.Context) (int, bool, error) {
		n++
		if n == 3 {
			return 0, false, boom
		}
		return n, true, nil
	})

	got := drain(ch)
	require.Len(t, got, 3)
	assert.True(t, got[1].IsSuccess())
	assert.True(t, got[2].IsFailure())
	assert.ErrorIs(t, got[2].Err(), boom)
}

func TestFeed_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan rop.Result[int])
	done := make(chan struct{})
	go func() {
		Feed(ctx, ch, func(context.Context) (int, bool, error) { return 1, true, nil })
		close(done)
	}()

	<-ch
	cancel()
	<-done
}

func TestLocomotive(t *testing.T) {
	ctx := context.Background()
	in := make(chan rop.Result[int])
	out := make(chan rop.Result[string])
	wg := &sync.WaitGroup{}

	var succeeded atomic.Int32
	engine := func(ctx context.Context, r rop.Result[int]) rop.Result[string] {
		return solo.Switch(ctx, r, func(_ context.Context, v int) rop.Result[string] {
			if v < 0 {
				return rop.Fail[string](errors.New("negative"))
			}
			return rop.Success(string(rune('a' + v)))
		})
	}

	for range 3 {
		wg.Add(1)
		go Locomotive(ctx, in, out, engine, CancellationHandlers[int, string]{},
			func(context.Context, rop.Result[string]) { succeeded.Add(1) }, wg)
	}
	go FeedValues(ctx, in, 0, 1, -1, 2)
	go func() {
		wg.Wait()
		close(out)
	}()

	got := map[string]bool{}
	failures := 0
	for r := range out {
		if r.IsFailure() {
			failures++
			continue
		}
		got[r.Result()] = true
	}
	assert.Equal(t, map[string]bool{"a": true, "b": true, "c": true}, got)
	assert.Equal(t, 1, failures)
	assert.Equal(t, int32(3), succeeded.Load())
}

func TestLocomotive_CancelCallsHandlers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	in := make(chan rop.Result[int], 1)
	out := make(chan rop.Result[int])
	wg := &sync.WaitGroup{}

	var processed, canceled atomic.Int32
	handlers := CancellationHandlers[int, int]{
		OnCancel: func(context.Context, <-chan rop.Result[int]) { canceled.Add(1) },
		OnCancelProcessed: func(context.Context, rop.Result[int], rop.Result[int]) {
			processed.Add(1)
		},
	}
	engine := func(_ context.Context, r rop.Result[int]) rop.Result[int] {
		cancel()
		return r
	}

	in <- rop.Success(1)
	wg.Add(1)
	go Locomotive(ctx, in, out, engine, handlers, nil, wg)
	wg.Wait()

	assert.Equal(t, int32(1), processed.Load())
	assert.Equal(t, int32(1), canceled.Load())
}

func TestWorkerOptions(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, 4, GetWorkerMaxCount(ctx, 4))
	assert.Equal(t, 2, GetWorkerMaxCount(WithWorkerOptions(ctx, 2), 4))
	assert.Equal(t, 4, GetWorkerMaxCount(WithWorkerOptions(ctx, 0), 4))
}
