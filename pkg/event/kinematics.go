package event

import (
	"go-hep.org/x/hep/fmom"
)

func (m Muon) P4() *fmom.PtEtaPhiM {
	p := fmom.NewPtEtaPhiM(m.Pt, m.Eta, m.Phi, m.Mass)
	return &p
}

func (m L1Muon) P4() *fmom.PtEtaPhiM {
	p := fmom.NewPtEtaPhiM(m.Pt, m.Eta, m.Phi, m.Mass)
	return &p
}

// DeltaR is sqrt(Δη² + Δφ²) with Δφ wrapped into [-π, π].
func DeltaR(a, b fmom.P4) float64 {
	return fmom.DeltaR(a, b)
}

// InvMass is the mass of the summed four-vector of a and b.
func InvMass(a, b fmom.P4) float64 {
	return fmom.InvMass(a, b)
}

// DeltaRTable returns the pairwise ΔR of every muon against every L1
// candidate, indexed [muon][l1].
func DeltaRTable(muons []Muon, l1 []L1Muon) [][]float64 {
	l1p4 := make([]*fmom.PtEtaPhiM, len(l1))
	for j := range l1 {
		l1p4[j] = l1[j].P4()
	}

	table := make([][]float64, len(muons))
	for i := range muons {
		p := muons[i].P4()
		row := make([]float64, len(l1))
		for j := range l1p4 {
			row[j] = fmom.DeltaR(p, l1p4[j])
		}
		table[i] = row
	}
	return table
}

// AnyBelow reports whether any entry in row is strictly below limit.
func AnyBelow(row []float64, limit float64) bool {
	for _, v := range row {
		if v < limit {
			return true
		}
	}
	return false
}
