package core

import (
	"context"

	"github.com/ib-77/l1tnp/pkg/rop"
)

// Feed sends the values produced by next into out until next reports it is
// exhausted, fails, or ctx ends, then closes out. A failure of next is sent
// as the last result.
func Feed[T any](ctx context.Context, out chan<- rop.Result[T],
	next func(ctx context.Context) (v T, ok bool, err error)) {
	defer close(out)

	for {
		if ctx.Err() != nil {
			return
		}

		v, ok, err := next(ctx)
		if err != nil {
			select {
			case out <- rop.Fail[T](err):
			case <-ctx.Done():
			}
			return
		}
		if !ok {
			return
		}

		select {
		case out <- rop.Success(v):
		case <-ctx.Done():
			return
		}
	}
}

// FeedValues is Feed over a fixed list.
func FeedValues[T any](ctx context.Context, out chan<- rop.Result[T], values ...T) {
	i := 0
	Feed(ctx, out, func(context.Context) (T, bool, error) {
		if i == len(values) {
			var zero T
			return zero, false, nil
		}
		i++
		return values[i-1], true, nil
	})
}
