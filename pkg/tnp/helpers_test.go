package tnp

import (
	"math"

	"github.com/ib-77/l1tnp/pkg/event"
)

func muon(pt, eta, phi float64) event.Muon {
	return event.Muon{Pt: pt, Eta: eta, Phi: phi, Mass: event.MuonRestMass, Charge: -1, MediumID: true}
}

func l1mu(pt, eta, phi float64, qual int) event.L1Muon {
	return event.L1Muon{Pt: pt, Eta: eta, Phi: phi, Mass: event.MuonRestMass, HwQual: qual}
}

func weight(w float64) *float64 {
	return &w
}

// zEvent is a back-to-back pair with m ≈ 90 GeV. Only the first muon has an
// L1 tag; the second has a low quality L1 candidate next to it.
func zEvent(id uint64) event.Event {
	return event.Event{
		Run: 1, LuminosityBlock: 2, EventID: id, ProcessID: 7,
		Muons: []event.Muon{
			muon(45, 0, 0),
			muon(45, 0, math.Pi),
		},
		L1Muons: []event.L1Muon{
			l1mu(40, 0, 0.05, 12),
			l1mu(10, 0, 3.1, 4),
		},
	}
}

func dataBatch(events ...event.Event) event.Batch {
	return event.Batch{Index: 0, IsMC: false, Events: events}
}
