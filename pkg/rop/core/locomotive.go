package core

import (
	"context"
	"sync"

	"github.com/ib-77/l1tnp/pkg/rop"
)

type CancellationHandlers[In, Out any] struct {
	// OnCancel is called once when the locomotive stops because ctx ended.
	OnCancel func(ctx context.Context, inputCh <-chan rop.Result[In])
	// OnCancelUnprocessed receives an input taken from the channel but not
	// handed to the engine.
	OnCancelUnprocessed func(ctx context.Context, unprocessed rop.Result[In])
	// OnCancelProcessed receives an engine result that could not be sent.
	OnCancelProcessed func(ctx context.Context, in rop.Result[In], processed rop.Result[Out])
}

// Locomotive pulls inputs from inputCh, runs engine on each and pushes the
// result to outCh, until inputCh is closed or ctx ends. Failed inputs are
// handed to engine as well, so it decides how failures propagate.
func Locomotive[In, Out any](ctx context.Context, inputCh <-chan rop.Result[In], outCh chan<- rop.Result[Out],
	engine func(ctx context.Context, input rop.Result[In]) rop.Result[Out],
	handlers CancellationHandlers[In, Out],
	onSuccess func(ctx context.Context, out rop.Result[Out]), wg *sync.WaitGroup) {
	defer wg.Done()

	for {
		select {
		case <-ctx.Done():
			if handlers.OnCancel != nil {
				handlers.OnCancel(ctx, inputCh)
			}
			return
		case in, ok := <-inputCh:
			if !ok {
				return
			}

			if ctx.Err() != nil {
				if handlers.OnCancelUnprocessed != nil {
					handlers.OnCancelUnprocessed(ctx, in)
				}
				if handlers.OnCancel != nil {
					handlers.OnCancel(ctx, inputCh)
				}
				return
			}

			pr := engine(ctx, in)

			select {
			case <-ctx.Done():
				if handlers.OnCancelProcessed != nil {
					handlers.OnCancelProcessed(ctx, in, pr)
				}
				if handlers.OnCancel != nil {
					handlers.OnCancel(ctx, inputCh)
				}
				return
			case outCh <- pr:
				if onSuccess != nil && pr.IsSuccess() {
					onSuccess(ctx, pr)
				}
			}
		}
	}
}
