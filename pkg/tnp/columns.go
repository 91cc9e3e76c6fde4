package tnp

import "slices"

// ColumnContract lists the input columns the reducer reads and the output
// columns it writes, so loaders and writers can prune everything else.
type ColumnContract struct {
	Used     []string
	Optional []string
	Produced []string
}

// Required returns the used columns that must be present in the input.
func (c ColumnContract) Required() []string {
	out := make([]string, 0, len(c.Used))
	for _, col := range c.Used {
		if !slices.Contains(c.Optional, col) {
			out = append(out, col)
		}
	}
	return out
}

var (
	usedColumns = []string{
		"run", "luminosityBlock", "event", "process_id", "mc_weight",
		"nMuon",
		"Muon.pt", "Muon.eta", "Muon.phi", "Muon.mass", "Muon.charge",
		"Muon.mediumId", "Muon.tightId", "Muon.pfRelIso04_all",
		"L1Mu.pt", "L1Mu.eta", "L1Mu.phi", "L1Mu.mass", "L1Mu.hwQual", "L1Mu.bx",
	}

	// process_id falls back to the dataset's process, mc_weight is checked
	// per chunk, L1Mu.mass falls back to the muon rest mass.
	optionalColumns = []string{
		"process_id", "mc_weight", "nMuon",
		"Muon.tightId", "Muon.pfRelIso04_all",
		"L1Mu.mass",
	}

	producedColumns = []string{
		"process_id", "run", "luminosityBlock", "event", "deterministic_seed",
		"N_probes", "nMuon", "mc_weight",
		"probe_index", "pt", "eta", "phi", "mass", "charge",
		"tags.pt", "tags.eta", "tags.phi", "tags.mass", "tags.dr", "tags.m_inv",
		"l1.pt", "l1.eta", "l1.phi", "l1.mass", "l1.hwQual", "l1.bx", "l1.dr",
	}
)

// Columns returns the column contract of the reducer.
func Columns() ColumnContract {
	return ColumnContract{
		Used:     slices.Clone(usedColumns),
		Optional: slices.Clone(optionalColumns),
		Produced: slices.Clone(producedColumns),
	}
}
