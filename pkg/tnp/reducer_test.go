package tnp

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/ib-77/l1tnp/internal/stats"
	"github.com/ib-77/l1tnp/pkg/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func newReducer(t *testing.T, cfg Config) *Reducer {
	t.Helper()
	r, err := NewReducer(cfg, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	return r
}

func TestReduce_ZPair(t *testing.T) {
	r := newReducer(t, DefaultConfig())
	acc := stats.New()

	records, err := r.Reduce(context.Background(), dataBatch(zEvent(11)), acc)
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, uint64(11), rec.EventID)
	assert.Equal(t, int64(7), rec.ProcessID)
	assert.Equal(t, 1, rec.NProbes)
	assert.Equal(t, 0, rec.ProbeIndex)
	assert.InDelta(t, math.Pi, rec.Phi, 1e-12)
	assert.Nil(t, rec.MCWeight)

	require.Len(t, rec.Tags, 1)
	assert.InDelta(t, 0, rec.Tags[0].Phi, 1e-12)
	assert.InDelta(t, math.Pi, rec.Tags[0].DR, 1e-9)
	assert.InDelta(t, 90, rec.Tags[0].MInv, 0.01)

	require.Len(t, rec.L1, 1)
	assert.Equal(t, 4, rec.L1[0].HwQual)
	assert.Less(t, rec.L1[0].DR, 0.4)

	for _, key := range []string{
		stats.KeyEvents,
		stats.EventsKey(StageMuonPair),
		stats.EventsKey(StageTagReqs),
		stats.EventsKey(StageL1TagReqs),
		stats.EventsKey(StageL1TagMatch),
		stats.EventsKey(StageProbeMatch),
		stats.EventsKey(StageSelected),
	} {
		assert.Equal(t, int64(1), acc.Counter(key), key)
	}
	assert.False(t, acc.HasWeight(stats.KeySumMCWeight))
	assert.Empty(t, acc.ProcessWeights())
}

func TestReduce_CollinearPairDroppedAtProbeMatch(t *testing.T) {
	r := newReducer(t, DefaultConfig())
	acc := stats.New()

	ev := event.Event{
		EventID: 1,
		Muons: []event.Muon{
			muon(30, 0.1, 0.2),
			muon(25, 0.11, 0.21),
		},
		L1Muons: []event.L1Muon{l1mu(28, 0.1, 0.2, 13)},
	}

	records, err := r.Reduce(context.Background(), dataBatch(ev), acc)
	require.NoError(t, err)
	assert.Empty(t, records)

	assert.Equal(t, int64(1), acc.Counter(stats.EventsKey(StageMuonPair)))
	assert.Equal(t, int64(1), acc.Counter(stats.EventsKey(StageTagReqs)))
	assert.Equal(t, int64(1), acc.Counter(stats.EventsKey(StageL1TagReqs)))
	assert.Equal(t, int64(1), acc.Counter(stats.EventsKey(StageL1TagMatch)))
	assert.Equal(t, int64(0), acc.Counter(stats.EventsKey(StageProbeMatch)))
	assert.Equal(t, int64(0), acc.Counter(stats.EventsKey(StageSelected)))
}

func TestReduce_SingleMuonDroppedAtMuonPair(t *testing.T) {
	r := newReducer(t, DefaultConfig())
	acc := stats.New()

	ev := event.Event{EventID: 1, Muons: []event.Muon{muon(40, 0, 0)}}
	records, err := r.Reduce(context.Background(), dataBatch(ev), acc)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, int64(1), acc.Counter(stats.KeyEvents))
	assert.Equal(t, int64(0), acc.Counter(stats.EventsKey(StageMuonPair)))
}

func TestReduce_BaselineRejectsMuons(t *testing.T) {
	r := newReducer(t, DefaultConfig())
	acc := stats.New()

	notMedium := muon(45, 0, math.Pi)
	notMedium.MediumID = false
	ev := zEvent(1)
	ev.Muons = []event.Muon{muon(45, 0, 0), notMedium, muon(2.5, 0, 1), muon(30, 2.6, 1)}

	records, err := r.Reduce(context.Background(), dataBatch(ev), acc)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, int64(0), acc.Counter(stats.EventsKey(StageMuonPair)))
}

func TestBaselineMuons(t *testing.T) {
	notMedium := muon(45, 0, 0)
	notMedium.MediumID = false

	tests := []struct {
		name string
		in   event.Muon
		keep bool
	}{
		{"passes", muon(3.01, 2.49, 0), true},
		{"pt at threshold", muon(3, 0, 0), false},
		{"eta at edge", muon(45, 2.5, 0), false},
		{"negative eta at edge", muon(45, -2.5, 0), false},
		{"not medium", notMedium, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BaselineMuons([]event.Muon{tt.in})
			if tt.keep {
				assert.Equal(t, []event.Muon{tt.in}, got)
			} else {
				assert.Empty(t, got)
			}
		})
	}
}

func TestBaselineMuons_Idempotent(t *testing.T) {
	notMedium := muon(45, 0, 0)
	notMedium.MediumID = false
	in := []event.Muon{muon(45, 0, 0), muon(3, 1, 1), muon(20, -2.5, 2), notMedium, muon(3.5, -2.4, -1)}

	once := BaselineMuons(in)
	assert.Len(t, once, 2)
	if diff := cmp.Diff(once, BaselineMuons(once)); diff != "" {
		t.Fatalf("second baseline pass changed the muons (-once +twice):\n%s", diff)
	}
}

func TestReduce_ZWindow(t *testing.T) {
	ev := event.Event{
		EventID: 3,
		Muons: []event.Muon{
			muon(45, 0, 0),
			muon(30, 0, 1.5),
		},
		L1Muons: []event.L1Muon{l1mu(40, 0, 0, 12)},
	}

	withWindow := newReducer(t, DefaultConfig())
	records, err := withWindow.Reduce(context.Background(), dataBatch(ev), stats.New())
	require.NoError(t, err)
	assert.Empty(t, records)

	cfg := DefaultConfig()
	cfg.RequireZWindow = false
	without := newReducer(t, cfg)
	records, err = without.Reduce(context.Background(), dataBatch(ev), stats.New())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.InDelta(t, 30, records[0].Pt, 1e-12)
	assert.InDelta(t, 50, records[0].Tags[0].MInv, 1)
}

func TestReduce_SimulatedWeights(t *testing.T) {
	r := newReducer(t, DefaultConfig())
	acc := stats.New()

	a := zEvent(1)
	a.MCWeight = weight(0.5)
	a.ProcessID = 1
	b := zEvent(2)
	b.MCWeight = weight(-2)
	b.ProcessID = 2
	c := event.Event{EventID: 3, ProcessID: 2, MCWeight: weight(4), Muons: []event.Muon{muon(40, 0, 0)}}

	batch := event.Batch{Index: 3, IsMC: true, Events: []event.Event{a, b, c}}
	records, err := r.Reduce(context.Background(), batch, acc)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.NotNil(t, records[0].MCWeight)
	assert.Equal(t, 0.5, *records[0].MCWeight)
	assert.Equal(t, -2.0, records[1].Weight())

	assert.Equal(t, int64(3), acc.Counter(stats.KeyEvents))
	assert.InDelta(t, 2.5, acc.Weight(stats.KeySumMCWeight), 1e-12)
	assert.InDelta(t, -1.5, acc.Weight(stats.WeightKey(StageMuonPair)), 1e-12)
	assert.InDelta(t, -1.5, acc.Weight(stats.WeightKey(StageSelected)), 1e-12)
	assert.Equal(t, map[int64]float64{1: 0.5, 2: -2}, acc.ProcessWeights())
}

func TestReduce_MissingWeightIsFatal(t *testing.T) {
	r := newReducer(t, DefaultConfig())
	acc := stats.New()

	batch := event.Batch{Index: 5, IsMC: true, Events: []event.Event{zEvent(1)}}
	records, err := r.Reduce(context.Background(), batch, acc)
	require.Error(t, err)
	assert.Nil(t, records)
	assert.True(t, errors.Is(err, ErrMalformedBatch))

	var stageErr *StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, StageValidate, stageErr.Stage)
	assert.Equal(t, 5, stageErr.Chunk)
	assert.Empty(t, acc.Counters())
}

func TestReduce_LogsRejectedChunk(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	r, err := NewReducer(DefaultConfig(), WithLogger(zap.New(core)))
	require.NoError(t, err)

	batch := event.Batch{Index: 3, IsMC: true, Events: []event.Event{zEvent(1)}}
	_, err = r.Reduce(context.Background(), batch, stats.New())
	require.Error(t, err)

	rejected := logs.FilterMessage("chunk rejected").All()
	require.Len(t, rejected, 1)
	assert.Equal(t, int64(3), rejected[0].ContextMap()["chunk"])
	assert.Contains(t, rejected[0].ContextMap()["error"], "mc_weight")
	assert.Zero(t, logs.FilterMessage("chunk reduced").Len())
}

func TestReduce_NonFiniteKinematicsIsFatal(t *testing.T) {
	r := newReducer(t, DefaultConfig())
	ev := zEvent(1)
	ev.L1Muons[0].Pt = math.NaN()

	_, err := r.Reduce(context.Background(), dataBatch(ev), stats.New())
	assert.ErrorIs(t, err, ErrMalformedBatch)
}

func TestReduce_EmptyChunk(t *testing.T) {
	r := newReducer(t, DefaultConfig())
	acc := stats.New()

	records, err := r.Reduce(context.Background(), event.Batch{IsMC: true}, acc)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, int64(0), acc.Counter(stats.KeyEvents))
	assert.Equal(t, 0.0, acc.Weight(stats.KeySumMCWeight))
}

func TestReduce_NilAccumulator(t *testing.T) {
	r := newReducer(t, DefaultConfig())
	_, err := r.Reduce(context.Background(), dataBatch(zEvent(1)), nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestReduce_DoesNotMutateInput(t *testing.T) {
	r := newReducer(t, DefaultConfig())

	batch := dataBatch(zEvent(1), zEvent(2))
	batch.Events[1].Muons = append(batch.Events[1].Muons, muon(1, 0, 0))
	before := event.Batch{Events: make([]event.Event, len(batch.Events))}
	for i, ev := range batch.Events {
		ev.Muons = append([]event.Muon(nil), ev.Muons...)
		ev.L1Muons = append([]event.L1Muon(nil), ev.L1Muons...)
		before.Events[i] = ev
	}

	first, err := r.Reduce(context.Background(), batch, stats.New())
	require.NoError(t, err)
	second, err := r.Reduce(context.Background(), batch, stats.New())
	require.NoError(t, err)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("second reduction differs (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(before.Events, batch.Events); diff != "" {
		t.Fatalf("input batch was modified (-before +after):\n%s", diff)
	}
}

func TestReduce_CountersAreMonotonic(t *testing.T) {
	r := newReducer(t, DefaultConfig())
	acc := stats.New()

	batch := dataBatch(zEvent(1), event.Event{EventID: 2, Muons: []event.Muon{muon(40, 0, 0)}}, zEvent(3))
	_, err := r.Reduce(context.Background(), batch, acc)
	require.NoError(t, err)

	prev := acc.Counter(stats.KeyEvents)
	for _, stage := range Checkpoints {
		n := acc.Counter(stats.EventsKey(stage))
		assert.LessOrEqual(t, n, prev, stage)
		prev = n
	}
	assert.Equal(t, int64(2), acc.Counter(stats.EventsKey(StageSelected)))
}

func TestReduce_L1BxFilter(t *testing.T) {
	ev := zEvent(1)
	ev.L1Muons[0].Bx = -1

	records, err := newReducer(t, DefaultConfig()).Reduce(context.Background(), dataBatch(ev), stats.New())
	require.NoError(t, err)
	assert.Len(t, records, 1)

	cfg := DefaultConfig()
	cfg.RequireL1Bx = true
	acc := stats.New()
	records, err = newReducer(t, cfg).Reduce(context.Background(), dataBatch(ev), acc)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, int64(1), acc.Counter(stats.EventsKey(StageL1TagReqs)))
	assert.Equal(t, int64(0), acc.Counter(stats.EventsKey(StageL1TagMatch)))
}

func TestReduce_L1TagQuality(t *testing.T) {
	ev := zEvent(1)
	ev.L1Muons[0].HwQual = 11

	acc := stats.New()
	records, err := newReducer(t, DefaultConfig()).Reduce(context.Background(), dataBatch(ev), acc)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, int64(0), acc.Counter(stats.EventsKey(StageL1TagMatch)))
}

func TestReduce_LeadingTagOnly(t *testing.T) {
	ev := zEvent(1)
	ev.Muons[1].Pt = 44
	ev.L1Muons = append(ev.L1Muons, l1mu(40, 0, math.Pi, 12))

	records, err := newReducer(t, DefaultConfig()).Reduce(context.Background(), dataBatch(ev), stats.New())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 2, records[0].NProbes)

	cfg := DefaultConfig()
	cfg.LeadingTagOnly = true
	records, err = newReducer(t, cfg).Reduce(context.Background(), dataBatch(ev), stats.New())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 44.0, records[0].Pt)
	assert.Equal(t, 45.0, records[0].Tags[0].Pt)
}

type recordingObserver struct {
	stages []string
	events []int
}

func (o *recordingObserver) ObserveCheckpoint(stage string, events int, _ float64, _ bool) {
	o.stages = append(o.stages, stage)
	o.events = append(o.events, events)
}

func TestReduce_Observer(t *testing.T) {
	obs := &recordingObserver{}
	r, err := NewReducer(DefaultConfig(), WithObserver(obs))
	require.NoError(t, err)

	_, err = r.Reduce(context.Background(), dataBatch(zEvent(1)), stats.New())
	require.NoError(t, err)

	assert.Equal(t, append([]string{stats.KeyEvents}, Checkpoints...), obs.stages)
	assert.Equal(t, []int{1, 1, 1, 1, 1, 1, 1}, obs.events)
}

func TestNewReducer_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxDR = 0
	r, err := NewReducer(cfg)
	assert.Nil(t, r)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestReduce_RecordMuonCountIsBaseline(t *testing.T) {
	r := newReducer(t, DefaultConfig())

	ev := zEvent(1)
	ev.Muons = append(ev.Muons, muon(2, 1, 1))

	records, err := r.Reduce(context.Background(), dataBatch(ev), stats.New())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 2, records[0].NMuon)
	assert.Equal(t, DeterministicSeed(&ev), records[0].DeterministicSeed)
}
