package eventio

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ib-77/l1tnp/pkg/event"
	"go.uber.org/zap"
)

var (
	ErrMissingColumn = errors.New("missing column")
	ErrBadLine       = errors.New("unparsable event line")
)

const maxLineSize = 16 << 20

type muonColumns struct {
	Pt            []float64 `json:"pt"`
	Eta           []float64 `json:"eta"`
	Phi           []float64 `json:"phi"`
	Mass          []float64 `json:"mass"`
	Charge        []int     `json:"charge"`
	MediumID      []bool    `json:"mediumId"`
	TightID       []bool    `json:"tightId"`
	PfRelIso04All []float64 `json:"pfRelIso04_all"`
}

type l1Columns struct {
	Pt     []float64 `json:"pt"`
	Eta    []float64 `json:"eta"`
	Phi    []float64 `json:"phi"`
	Mass   []float64 `json:"mass"`
	HwQual []int     `json:"hwQual"`
	Bx     []int     `json:"bx"`
}

type rawEvent struct {
	Run             uint32      `json:"run"`
	LuminosityBlock uint32      `json:"luminosityBlock"`
	Event           uint64      `json:"event"`
	ProcessID       *int64      `json:"process_id"`
	MCWeight        *float64    `json:"mc_weight"`
	NMuon           *int        `json:"nMuon"`
	NL1Mu           *int        `json:"nL1Mu"`
	Muon            muonColumns `json:"Muon"`
	L1Mu            l1Columns   `json:"L1Mu"`
}

type ReaderOptions struct {
	ChunkSize int
	IsMC      bool
	// ProcessID is assigned to events without a process_id column.
	ProcessID int64
	Logger    *zap.Logger
}

// Reader cuts a JSON lines stream into event batches.
type Reader struct {
	sc     *bufio.Scanner
	closer io.Closer
	opts   ReaderOptions
	logger *zap.Logger
	line   int
	index  int
	done   bool
}

func NewReader(r io.Reader, opts ReaderOptions) *Reader {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Reader{sc: sc, opts: opts, logger: logger}
}

// Open reads the JSON lines file at path. Close releases it.
func Open(path string, opts ReaderOptions) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	r := NewReader(f, opts)
	r.closer = f
	return r, nil
}

func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// Next returns the next batch of up to ChunkSize events, or io.EOF once the
// input is exhausted. Batches are indexed from zero in input order.
func (r *Reader) Next(ctx context.Context) (event.Batch, error) {
	if r.done {
		return event.Batch{}, io.EOF
	}

	batch := event.Batch{
		Index:  r.index,
		IsMC:   r.opts.IsMC,
		Events: make([]event.Event, 0, r.opts.ChunkSize),
	}
	for len(batch.Events) < r.opts.ChunkSize {
		if err := ctx.Err(); err != nil {
			return event.Batch{}, err
		}
		if !r.sc.Scan() {
			if err := r.sc.Err(); err != nil {
				return event.Batch{}, fmt.Errorf("failed to read input: %w", err)
			}
			r.done = true
			break
		}
		r.line++

		line := r.sc.Bytes()
		if len(line) == 0 {
			continue
		}
		ev, err := r.decode(line)
		if err != nil {
			return event.Batch{}, fmt.Errorf("line %d: %w", r.line, err)
		}
		batch.Events = append(batch.Events, ev)
	}

	if len(batch.Events) == 0 && r.done {
		return event.Batch{}, io.EOF
	}
	r.index++
	r.logger.Debug("read chunk", zap.Int("chunk", batch.Index), zap.Int("events", batch.Len()))
	return batch, nil
}

func (r *Reader) decode(line []byte) (event.Event, error) {
	var raw rawEvent
	if err := json.Unmarshal(line, &raw); err != nil {
		return event.Event{}, fmt.Errorf("%w: %v", ErrBadLine, err)
	}

	ev := event.Event{
		Run:             raw.Run,
		LuminosityBlock: raw.LuminosityBlock,
		EventID:         raw.Event,
		ProcessID:       r.opts.ProcessID,
		MCWeight:        raw.MCWeight,
	}
	if raw.ProcessID != nil {
		ev.ProcessID = *raw.ProcessID
	}

	muons, err := decodeMuons(raw.Muon, raw.NMuon)
	if err != nil {
		return event.Event{}, fmt.Errorf("event %d: %w", raw.Event, err)
	}
	l1, err := decodeL1(raw.L1Mu, raw.NL1Mu)
	if err != nil {
		return event.Event{}, fmt.Errorf("event %d: %w", raw.Event, err)
	}
	ev.Muons, ev.L1Muons = muons, l1
	return ev, nil
}

func collectionSize(count *int, first int) int {
	if count != nil {
		return *count
	}
	return first
}

func checkLen(name string, got, want int) error {
	if got != want {
		return fmt.Errorf("%w: %s has %d entries, collection has %d", ErrMissingColumn, name, got, want)
	}
	return nil
}

// checkOptional accepts an absent column or one of the collection size.
func checkOptional(name string, present bool, got, want int) error {
	if !present {
		return nil
	}
	return checkLen(name, got, want)
}

func decodeMuons(c muonColumns, count *int) ([]event.Muon, error) {
	n := collectionSize(count, len(c.Pt))
	checks := []error{
		checkLen("Muon.pt", len(c.Pt), n),
		checkLen("Muon.eta", len(c.Eta), n),
		checkLen("Muon.phi", len(c.Phi), n),
		checkLen("Muon.mass", len(c.Mass), n),
		checkLen("Muon.charge", len(c.Charge), n),
		checkLen("Muon.mediumId", len(c.MediumID), n),
		checkOptional("Muon.tightId", c.TightID != nil, len(c.TightID), n),
		checkOptional("Muon.pfRelIso04_all", c.PfRelIso04All != nil, len(c.PfRelIso04All), n),
	}
	if err := errors.Join(checks...); err != nil {
		return nil, err
	}

	muons := make([]event.Muon, n)
	for i := range muons {
		muons[i] = event.Muon{
			Pt:       c.Pt[i],
			Eta:      c.Eta[i],
			Phi:      c.Phi[i],
			Mass:     c.Mass[i],
			Charge:   c.Charge[i],
			MediumID: c.MediumID[i],
		}
		if c.TightID != nil {
			muons[i].TightID = c.TightID[i]
		}
		if c.PfRelIso04All != nil {
			iso := c.PfRelIso04All[i]
			muons[i].PfRelIso04All = &iso
		}
	}
	return muons, nil
}

func decodeL1(c l1Columns, count *int) ([]event.L1Muon, error) {
	n := collectionSize(count, len(c.Pt))
	checks := []error{
		checkLen("L1Mu.pt", len(c.Pt), n),
		checkLen("L1Mu.eta", len(c.Eta), n),
		checkLen("L1Mu.phi", len(c.Phi), n),
		checkLen("L1Mu.hwQual", len(c.HwQual), n),
		checkLen("L1Mu.bx", len(c.Bx), n),
		checkOptional("L1Mu.mass", c.Mass != nil, len(c.Mass), n),
	}
	if err := errors.Join(checks...); err != nil {
		return nil, err
	}

	l1 := make([]event.L1Muon, n)
	for i := range l1 {
		mass := event.MuonRestMass
		if c.Mass != nil {
			mass = c.Mass[i]
		}
		l1[i] = event.L1Muon{
			Pt:     c.Pt[i],
			Eta:    c.Eta[i],
			Phi:    c.Phi[i],
			Mass:   mass,
			HwQual: c.HwQual[i],
			Bx:     c.Bx[i],
		}
	}
	return l1, nil
}
