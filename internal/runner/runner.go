// Package runner drives a Reducer over every chunk of an input with a pool
// of workers and writes the probe records in input order.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ib-77/l1tnp/internal/stats"
	"github.com/ib-77/l1tnp/pkg/event"
	"github.com/ib-77/l1tnp/pkg/rop"
	"github.com/ib-77/l1tnp/pkg/rop/core"
	"github.com/ib-77/l1tnp/pkg/rop/solo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Source yields event chunks, returning io.EOF when exhausted.
type Source interface {
	Next(ctx context.Context) (event.Batch, error)
}

// Reducer turns a chunk into probe records, adding its cutflow to acc.
type Reducer interface {
	Reduce(ctx context.Context, batch event.Batch, acc *stats.Accumulator) ([]event.ProbeRecord, error)
}

// Sink receives the records of each chunk, in chunk order.
type Sink interface {
	Write(ctx context.Context, records []event.ProbeRecord) error
}

// Observer is told about finished chunks and written records.
type Observer interface {
	ChunkDone(err error)
	ProbesWritten(n int)
}

type Option func(*Runner)

func WithWorkers(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithBufferSize sets the capacity of the chunk and result channels.
func WithBufferSize(n int) Option {
	return func(r *Runner) {
		if n >= 0 {
			r.buffer = n
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithObserver(o Observer) Option {
	return func(r *Runner) {
		r.observer = o
	}
}

type Runner struct {
	reducer  Reducer
	workers  int
	buffer   int
	logger   *zap.Logger
	observer Observer
}

// Summary describes a finished run.
type Summary struct {
	RunID    uuid.UUID
	Chunks   int
	Probes   int
	Stats    *stats.Accumulator
	Duration time.Duration
}

func New(reducer Reducer, opts ...Option) *Runner {
	r := &Runner{
		reducer: reducer,
		workers: 1,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type chunkOutput struct {
	index   int
	events  int
	records []event.ProbeRecord
}

// Run reduces every chunk of src and writes the records to sink. The worker
// count may be overridden through core.WithWorkerOptions on ctx. The first
// failure cancels the remaining work and is returned; the stats of a failed
// run are not returned.
func (r *Runner) Run(ctx context.Context, src Source, sink Sink) (*Summary, error) {
	start := time.Now()
	runID := uuid.New()
	workers := core.GetWorkerMaxCount(ctx, r.workers)
	logger := r.logger.With(zap.String("run_id", runID.String()))
	logger.Info("run started", zap.Int("workers", workers))

	g, gctx := errgroup.WithContext(ctx)

	inCh := make(chan rop.Result[event.Batch], r.buffer)
	g.Go(func() error {
		core.Feed(gctx, inCh, func(ctx context.Context) (event.Batch, bool, error) {
			b, err := src.Next(ctx)
			if errors.Is(err, io.EOF) {
				return event.Batch{}, false, nil
			}
			if err != nil {
				return event.Batch{}, false, fmt.Errorf("failed to read chunk: %w", err)
			}
			return b, true, nil
		})
		return nil
	})

	outCh := make(chan rop.Result[chunkOutput], r.buffer)
	accs := make([]*stats.Accumulator, workers)
	handlers := core.CancellationHandlers[event.Batch, chunkOutput]{
		OnCancelUnprocessed: func(_ context.Context, in rop.Result[event.Batch]) {
			if in.IsSuccess() {
				logger.Debug("chunk dropped on cancel", zap.Int("chunk", in.Result().Index))
			}
		},
		OnCancelProcessed: func(_ context.Context, _ rop.Result[event.Batch], out rop.Result[chunkOutput]) {
			if out.IsSuccess() {
				logger.Debug("chunk result dropped on cancel", zap.Int("chunk", out.Result().index))
			}
		},
	}

	wg := &sync.WaitGroup{}
	for i := range workers {
		accs[i] = stats.New()
		engine := r.engine(accs[i])
		wg.Add(1)
		g.Go(func() error {
			core.Locomotive(gctx, inCh, outCh, engine, handlers, nil, wg)
			return nil
		})
	}
	g.Go(func() error {
		wg.Wait()
		close(outCh)
		return nil
	})

	var chunks, probes int
	g.Go(func() error {
		var err error
		chunks, probes, err = r.collect(gctx, outCh, sink, logger)
		return err
	})

	if err := g.Wait(); err != nil {
		logger.Error("run failed", zap.Error(err))
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	total := stats.New()
	for _, acc := range accs {
		total.Merge(acc)
	}

	summary := &Summary{
		RunID:    runID,
		Chunks:   chunks,
		Probes:   probes,
		Stats:    total,
		Duration: time.Since(start),
	}
	logger.Info("run finished",
		zap.Int("chunks", chunks),
		zap.Int("probes", probes),
		zap.Int64("events", total.Counter(stats.KeyEvents)),
		zap.Duration("duration", summary.Duration))
	return summary, nil
}

func (r *Runner) engine(acc *stats.Accumulator) func(context.Context, rop.Result[event.Batch]) rop.Result[chunkOutput] {
	return func(ctx context.Context, in rop.Result[event.Batch]) rop.Result[chunkOutput] {
		return solo.Try(ctx, in, func(ctx context.Context, b event.Batch) (chunkOutput, error) {
			records, err := r.reducer.Reduce(ctx, b, acc)
			if r.observer != nil {
				r.observer.ChunkDone(err)
			}
			if err != nil {
				return chunkOutput{}, err
			}
			return chunkOutput{index: b.Index, events: b.Len(), records: records}, nil
		})
	}
}

// collect writes chunk outputs to sink in index order, holding back chunks
// that finish ahead of their predecessors.
func (r *Runner) collect(ctx context.Context, outCh <-chan rop.Result[chunkOutput], sink Sink,
	logger *zap.Logger) (chunks, probes int, err error) {
	pending := make(map[int]rop.Result[chunkOutput])
	next := 0

	for res := range outCh {
		if !res.IsSuccess() {
			logger.Debug("chunk failed",
				zap.String("result_id", res.Id().String()),
				zap.Bool("canceled", res.IsCancel()),
				zap.Error(res.Err()))
			return chunks, probes, res.Err()
		}
		pending[res.Result().index] = res

		for {
			res, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			ready := res.Result()
			if err := sink.Write(ctx, ready.records); err != nil {
				return chunks, probes, fmt.Errorf("chunk %d: failed to write records: %w", ready.index, err)
			}
			if r.observer != nil {
				r.observer.ProbesWritten(len(ready.records))
			}
			logger.Debug("chunk written",
				zap.Int("chunk", ready.index),
				zap.Int("events", ready.events),
				zap.Int("probes", len(ready.records)),
				zap.Duration("held", time.Since(res.CreatedAt())))
			chunks++
			probes += len(ready.records)
			next++
		}
	}

	if len(pending) > 0 && ctx.Err() == nil {
		return chunks, probes, fmt.Errorf("%d chunks never written, first missing chunk %d", len(pending), next)
	}
	return chunks, probes, nil
}
