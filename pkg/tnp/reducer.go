package tnp

import (
	"context"
	"fmt"

	"github.com/ib-77/l1tnp/internal/stats"
	"github.com/ib-77/l1tnp/pkg/event"
	"github.com/ib-77/l1tnp/pkg/rop/tiny"
	"go.uber.org/zap"
)

// Observer is told about every checkpoint, after the stats accumulator.
type Observer interface {
	ObserveCheckpoint(stage string, events int, sumMCWeight float64, isMC bool)
}

type Option func(*Reducer)

func WithLogger(logger *zap.Logger) Option {
	return func(r *Reducer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithObserver(o Observer) Option {
	return func(r *Reducer) {
		r.observer = o
	}
}

// Reducer runs the tag-and-probe selection over chunks of events. It holds
// only its configuration, so one Reducer may serve several goroutines as
// long as each passes its own stats.Accumulator.
type Reducer struct {
	cfg      Config
	logger   *zap.Logger
	observer Observer
}

func NewReducer(cfg Config, opts ...Option) (*Reducer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &Reducer{cfg: cfg, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}

	if cfg.RequireHLT {
		r.logger.Warn("require_hlt is set but the HLT tag requirement is not implemented; tags are not filtered on it")
	}
	return r, nil
}

// Config returns the configuration the reducer was built with.
func (r *Reducer) Config() Config {
	return r.cfg
}

// Reduce runs every stage over batch and returns one record per surviving
// probe. Checkpoint counts are added to acc. A chunk that loses all its
// events yields no records and no error; malformed input yields a
// *StageError wrapping ErrMalformedBatch.
func (r *Reducer) Reduce(ctx context.Context, batch event.Batch, acc *stats.Accumulator) ([]event.ProbeRecord, error) {
	if acc == nil {
		return nil, fmt.Errorf("%w: nil stats accumulator", ErrInvalidConfig)
	}
	logger := r.logger.With(zap.Int("chunk", batch.Index))

	res := tiny.FromValue(ctx, batch).
		Step(StageValidate, r.validate).
		Step(StagePrepare, r.prepare).
		Tee(r.checkpoint(acc, logger, "")).
		Step(StageMuonPair, r.selectMuonPairs).
		Tee(r.checkpoint(acc, logger, StageMuonPair)).
		Step(StageTagReqs, r.selectTags).
		Tee(r.checkpoint(acc, logger, StageTagReqs)).
		Step(StageL1TagReqs, r.selectL1Tags).
		Tee(r.checkpoint(acc, logger, StageL1TagReqs)).
		Step(StageL1TagMatch, r.matchTagsToL1).
		Tee(r.checkpoint(acc, logger, StageL1TagMatch)).
		Step(StageProbeReqs, r.selectProbes).
		Step(StageProbeMatch, r.matchProbesToTags).
		Tee(r.checkpoint(acc, logger, StageProbeMatch)).
		Step(StageL1ProbeMatch, r.matchProbesToL1).
		Tee(r.checkpoint(acc, logger, StageSelected)).
		Tee(r.sumPerProcess(acc)).
		Ensure(nil, func(_ context.Context, err error) {
			logger.Debug("chunk rejected", zap.Error(err))
		}).
		Result()

	if res.IsFailure() {
		return nil, &StageError{Stage: res.Step(), Chunk: batch.Index, Err: res.Err()}
	}

	records := event.Flatten(res.Result())
	logger.Debug("chunk reduced",
		zap.Int("events_in", batch.Len()),
		zap.Int("events_out", res.Result().Len()),
		zap.Int("probes", len(records)))
	return records, nil
}

// checkpoint records the surviving events of a stage. The empty stage is
// the input checkpoint.
func (r *Reducer) checkpoint(acc *stats.Accumulator, logger *zap.Logger, stage string) func(context.Context, event.Batch) {
	eventsKey, weightKey, name := stats.EventsKey(stage), stats.WeightKey(stage), stage
	if stage == "" {
		eventsKey, weightKey, name = stats.KeyEvents, stats.KeySumMCWeight, stats.KeyEvents
	}

	return func(_ context.Context, b event.Batch) {
		acc.IncrCounter(eventsKey, int64(b.Len()))

		sumW := 0.0
		if b.IsMC {
			sumW = b.SumMCWeight()
			acc.AddWeight(weightKey, sumW)
		}

		if r.observer != nil {
			r.observer.ObserveCheckpoint(name, b.Len(), sumW, b.IsMC)
		}
		logger.Debug("checkpoint", zap.String("stage", name), zap.Int("events", b.Len()))
	}
}

func (r *Reducer) sumPerProcess(acc *stats.Accumulator) func(context.Context, event.Batch) {
	return func(_ context.Context, b event.Batch) {
		if !b.IsMC {
			return
		}
		for pid, w := range b.SumMCWeightPerProcess() {
			acc.AddProcessWeight(pid, w)
		}
	}
}
