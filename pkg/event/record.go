package event

// ProbeRecord is one output row: a probe muon with its matches, joined with
// the scalar columns of its event.
type ProbeRecord struct {
	ProcessID         int64    `json:"process_id"`
	Run               uint32   `json:"run"`
	LuminosityBlock   uint32   `json:"luminosityBlock"`
	EventID           uint64   `json:"event"`
	DeterministicSeed uint64   `json:"deterministic_seed"`
	NProbes           int      `json:"N_probes"`
	// NMuon counts the event's muons passing the baseline selection, not
	// the raw Muon collection.
	NMuon             int      `json:"nMuon"`
	MCWeight          *float64 `json:"mc_weight,omitempty"`

	ProbeIndex int     `json:"probe_index"`
	Pt         float64 `json:"pt"`
	Eta        float64 `json:"eta"`
	Phi        float64 `json:"phi"`
	Mass       float64 `json:"mass"`
	Charge     int     `json:"charge"`

	Tags []TagRecord `json:"tags"`
	L1   []L1Record  `json:"l1"`
}

type TagRecord struct {
	Pt   float64 `json:"pt"`
	Eta  float64 `json:"eta"`
	Phi  float64 `json:"phi"`
	Mass float64 `json:"mass"`
	DR   float64 `json:"dr"`
	MInv float64 `json:"m_inv"`
}

type L1Record struct {
	Pt     float64 `json:"pt"`
	Eta    float64 `json:"eta"`
	Phi    float64 `json:"phi"`
	Mass   float64 `json:"mass"`
	HwQual int     `json:"hwQual"`
	Bx     int     `json:"bx"`
	DR     float64 `json:"dr"`
}

// Weight mirrors Event.Weight for a flattened record.
func (r *ProbeRecord) Weight() float64 {
	if r.MCWeight == nil {
		return 1
	}
	return *r.MCWeight
}

// Flatten explodes the probe collection of every event into one record per
// probe. Events without probes contribute nothing.
func Flatten(b Batch) []ProbeRecord {
	n := 0
	for i := range b.Events {
		n += len(b.Events[i].ProbeMuons)
	}

	out := make([]ProbeRecord, 0, n)
	for i := range b.Events {
		ev := &b.Events[i]
		for j, p := range ev.ProbeMuons {
			rec := ProbeRecord{
				ProcessID:         ev.ProcessID,
				Run:               ev.Run,
				LuminosityBlock:   ev.LuminosityBlock,
				EventID:           ev.EventID,
				DeterministicSeed: ev.DeterministicSeed,
				NProbes:           len(ev.ProbeMuons),
				NMuon:             len(ev.Muons),
				ProbeIndex:        j,
				Pt:                p.Pt,
				Eta:               p.Eta,
				Phi:               p.Phi,
				Mass:              p.Mass,
				Charge:            p.Charge,
				Tags:              make([]TagRecord, len(p.Tags)),
				L1:                make([]L1Record, len(p.L1)),
			}
			if b.IsMC && ev.MCWeight != nil {
				w := *ev.MCWeight
				rec.MCWeight = &w
			}
			for k, t := range p.Tags {
				rec.Tags[k] = TagRecord{
					Pt: t.Tag.Pt, Eta: t.Tag.Eta, Phi: t.Tag.Phi, Mass: t.Tag.Mass,
					DR: t.DR, MInv: t.MInv,
				}
			}
			for k, m := range p.L1 {
				rec.L1[k] = L1Record{
					Pt: m.L1.Pt, Eta: m.L1.Eta, Phi: m.L1.Phi, Mass: m.L1.Mass,
					HwQual: m.L1.HwQual, Bx: m.L1.Bx, DR: m.DR,
				}
			}
			out = append(out, rec)
		}
	}
	return out
}
