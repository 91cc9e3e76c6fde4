package event

// MuonRestMass is the mass, in GeV, assigned to L1 candidates that come
// without a mass column.
const MuonRestMass = 0.106

// Muon is a reconstructed (offline) muon.
type Muon struct {
	Pt       float64
	Eta      float64
	Phi      float64
	Mass     float64
	Charge   int
	MediumID bool
	TightID  bool
	// PfRelIso04All is nil when the isolation column was not read.
	PfRelIso04All *float64
}

// L1Muon is a hardware trigger muon candidate.
type L1Muon struct {
	Pt     float64
	Eta    float64
	Phi    float64
	Mass   float64
	HwQual int
	Bx     int
}

// TagMatch is a tag muon paired with a probe.
type TagMatch struct {
	Tag  Muon
	DR   float64
	MInv float64
}

// L1Match is an L1 candidate found within the matching radius of a probe.
type L1Match struct {
	L1 L1Muon
	DR float64
}

// ProbeMuon is a probe candidate together with the tags it pairs with and
// the L1 candidates matched to it.
type ProbeMuon struct {
	Muon
	Tags []TagMatch
	L1   []L1Match
}

type Event struct {
	Run             uint32
	LuminosityBlock uint32
	EventID         uint64
	ProcessID       int64
	// MCWeight is nil for collision data.
	MCWeight          *float64
	DeterministicSeed uint64

	Muons   []Muon
	L1Muons []L1Muon

	TagMuons   []Muon
	L1TagMuons []L1Muon
	ProbeMuons []ProbeMuon
}

// Weight is the event weight used for histograms: mc_weight when present,
// one otherwise.
func (e *Event) Weight() float64 {
	if e.MCWeight == nil {
		return 1
	}
	return *e.MCWeight
}

// Batch is one chunk of events read from a dataset.
type Batch struct {
	// Index is the position of the chunk in its input, used to keep output
	// in input order when chunks are processed concurrently.
	Index  int
	IsMC   bool
	Events []Event
}

func (b Batch) Len() int {
	return len(b.Events)
}

// Filter returns a new batch with the events for which keep returns true.
// keep may replace collections on the event it is given; the event is a copy.
func (b Batch) Filter(keep func(ev *Event) bool) Batch {
	out := Batch{Index: b.Index, IsMC: b.IsMC, Events: make([]Event, 0, len(b.Events))}
	for _, ev := range b.Events {
		if keep(&ev) {
			out.Events = append(out.Events, ev)
		}
	}
	return out
}

// Map returns a new batch with every event passed through fn.
func (b Batch) Map(fn func(ev *Event)) Batch {
	return b.Filter(func(ev *Event) bool {
		fn(ev)
		return true
	})
}

// SumMCWeight sums mc_weight over the batch. Events without a weight add
// nothing.
func (b Batch) SumMCWeight() float64 {
	sum := 0.0
	for i := range b.Events {
		if w := b.Events[i].MCWeight; w != nil {
			sum += *w
		}
	}
	return sum
}

// SumMCWeightPerProcess groups SumMCWeight by process id.
func (b Batch) SumMCWeightPerProcess() map[int64]float64 {
	out := make(map[int64]float64)
	for i := range b.Events {
		ev := &b.Events[i]
		if ev.MCWeight == nil {
			continue
		}
		out[ev.ProcessID] += *ev.MCWeight
	}
	return out
}
