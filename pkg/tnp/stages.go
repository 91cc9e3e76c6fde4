package tnp

import (
	"context"
	"fmt"
	"math"

	"github.com/ib-77/l1tnp/pkg/event"
	"github.com/ib-77/l1tnp/pkg/rop"
	"go-hep.org/x/hep/fmom"
)

// Stage names. The checkpoint stages double as stats keys.
const (
	StageValidate     = "validate"
	StagePrepare      = "prepare"
	StageMuonPair     = "muon_pair"
	StageTagReqs      = "tag_reqs"
	StageL1TagReqs    = "l1tag_reqs"
	StageL1TagMatch   = "l1tag_match"
	StageProbeReqs    = "probe_reqs"
	StageProbeMatch   = "probe_match"
	StageL1ProbeMatch = "l1probe_match"
	StageSelected     = "selected"
)

// Checkpoints lists the checkpointed stages in pipeline order. The input
// checkpoint is stored under stats.KeyEvents rather than a stage key.
var Checkpoints = []string{
	StageMuonPair,
	StageTagReqs,
	StageL1TagReqs,
	StageL1TagMatch,
	StageProbeMatch,
	StageSelected,
}

// BaselineMuons returns the muons with pt > 3, |eta| < 2.5 and the medium
// identification flag set.
func BaselineMuons(muons []event.Muon) []event.Muon {
	out := make([]event.Muon, 0, len(muons))
	for _, m := range muons {
		if m.Pt > baselineMinPt && math.Abs(m.Eta) < baselineMaxEta && m.MediumID {
			out = append(out, m)
		}
	}
	return out
}

func (r *Reducer) validate(_ context.Context, b event.Batch) rop.Result[event.Batch] {
	for i := range b.Events {
		ev := &b.Events[i]
		if b.IsMC && ev.MCWeight == nil {
			return rop.Fail[event.Batch](fmt.Errorf("%w: event %d of simulated chunk has no mc_weight",
				ErrMalformedBatch, ev.EventID))
		}
		for j, m := range ev.Muons {
			if !finite(m.Pt, m.Eta, m.Phi, m.Mass) {
				return rop.Fail[event.Batch](fmt.Errorf("%w: event %d Muon[%d] has non-finite kinematics",
					ErrMalformedBatch, ev.EventID, j))
			}
		}
		for j, m := range ev.L1Muons {
			if !finite(m.Pt, m.Eta, m.Phi, m.Mass) {
				return rop.Fail[event.Batch](fmt.Errorf("%w: event %d L1Mu[%d] has non-finite kinematics",
					ErrMalformedBatch, ev.EventID, j))
			}
		}
	}
	return rop.Success(b)
}

func (r *Reducer) prepare(_ context.Context, b event.Batch) rop.Result[event.Batch] {
	return rop.Success(b.Map(func(ev *event.Event) {
		ev.DeterministicSeed = DeterministicSeed(ev)
		ev.L1Muons = r.l1Candidates(ev.L1Muons)
	}))
}

func (r *Reducer) selectMuonPairs(_ context.Context, b event.Batch) rop.Result[event.Batch] {
	return rop.Success(b.Filter(func(ev *event.Event) bool {
		ev.Muons = BaselineMuons(ev.Muons)
		return len(ev.Muons) >= 2
	}))
}

func (r *Reducer) selectTags(_ context.Context, b event.Batch) rop.Result[event.Batch] {
	return rop.Success(b.Filter(func(ev *event.Event) bool {
		tags := make([]event.Muon, 0, len(ev.Muons))
		for _, m := range ev.Muons {
			if m.Pt > r.cfg.TagPtThreshold && r.passesHLT(m) {
				tags = append(tags, m)
			}
		}
		ev.TagMuons = tags
		return len(tags) >= 1
	}))
}

// passesHLT is the placeholder for the tag trigger requirement; see
// Config.RequireHLT.
func (r *Reducer) passesHLT(_ event.Muon) bool {
	return true
}

func (r *Reducer) selectL1Tags(_ context.Context, b event.Batch) rop.Result[event.Batch] {
	ptMin := r.cfg.L1TagPtThreshold()
	return rop.Success(b.Map(func(ev *event.Event) {
		l1tags := make([]event.L1Muon, 0, len(ev.L1Muons))
		for _, l1 := range ev.L1Muons {
			if l1.HwQual >= r.cfg.L1HwQualityMin && l1.Pt > ptMin {
				l1tags = append(l1tags, l1)
			}
		}
		ev.L1TagMuons = l1tags
	}))
}

func (r *Reducer) matchTagsToL1(_ context.Context, b event.Batch) rop.Result[event.Batch] {
	return rop.Success(b.Filter(func(ev *event.Event) bool {
		table := event.DeltaRTable(ev.TagMuons, ev.L1TagMuons)
		tags := make([]event.Muon, 0, len(ev.TagMuons))
		for i, tag := range ev.TagMuons {
			if event.AnyBelow(table[i], r.cfg.MaxDR) {
				tags = append(tags, tag)
			}
		}
		if r.cfg.LeadingTagOnly && len(tags) > 1 {
			tags = []event.Muon{leading(tags)}
		}
		ev.TagMuons = tags
		return len(tags) >= 1
	}))
}

func (r *Reducer) selectProbes(_ context.Context, b event.Batch) rop.Result[event.Batch] {
	return rop.Success(b.Map(func(ev *event.Event) {
		probes := make([]event.ProbeMuon, 0, len(ev.Muons))
		for _, m := range ev.Muons {
			if m.Pt > r.cfg.ProbePtThreshold {
				probes = append(probes, event.ProbeMuon{Muon: m})
			}
		}
		ev.ProbeMuons = probes
	}))
}

// matchProbesToTags keeps the tags of each probe that are separated from it
// by more than twice the matching radius, which ensures tag and probe are
// different muons, and whose pair mass falls in the Z window when required.
func (r *Reducer) matchProbesToTags(_ context.Context, b event.Batch) rop.Result[event.Batch] {
	minSep := 2 * r.cfg.MaxDR
	return rop.Success(b.Filter(func(ev *event.Event) bool {
		tagP4 := make([]*fmom.PtEtaPhiM, len(ev.TagMuons))
		for i := range ev.TagMuons {
			tagP4[i] = ev.TagMuons[i].P4()
		}

		probes := make([]event.ProbeMuon, 0, len(ev.ProbeMuons))
		for _, probe := range ev.ProbeMuons {
			p4 := probe.P4()
			matches := make([]event.TagMatch, 0, len(ev.TagMuons))
			for i, tag := range ev.TagMuons {
				dr := event.DeltaR(p4, tagP4[i])
				if dr <= minSep {
					continue
				}
				mInv := event.InvMass(p4, tagP4[i])
				if r.cfg.RequireZWindow && !r.cfg.ZWindow.Contains(mInv) {
					continue
				}
				matches = append(matches, event.TagMatch{Tag: tag, DR: dr, MInv: mInv})
			}
			if len(matches) == 0 {
				continue
			}
			probe.Tags = matches
			probes = append(probes, probe)
		}
		ev.ProbeMuons = probes
		return len(probes) >= 1
	}))
}

func (r *Reducer) matchProbesToL1(_ context.Context, b event.Batch) rop.Result[event.Batch] {
	return rop.Success(b.Map(func(ev *event.Event) {
		probes := make([]event.ProbeMuon, len(ev.ProbeMuons))
		for i, probe := range ev.ProbeMuons {
			p4 := probe.P4()
			matches := make([]event.L1Match, 0, len(ev.L1Muons))
			for _, l1 := range ev.L1Muons {
				if dr := event.DeltaR(p4, l1.P4()); dr < r.cfg.MaxDR {
					matches = append(matches, event.L1Match{L1: l1, DR: dr})
				}
			}
			probe.L1 = matches
			probes[i] = probe
		}
		ev.ProbeMuons = probes
	}))
}

func (r *Reducer) l1Candidates(l1 []event.L1Muon) []event.L1Muon {
	if !r.cfg.RequireL1Bx {
		return l1
	}
	out := make([]event.L1Muon, 0, len(l1))
	for _, m := range l1 {
		if m.Bx == r.cfg.L1Bx {
			out = append(out, m)
		}
	}
	return out
}

func leading(muons []event.Muon) event.Muon {
	best := muons[0]
	for _, m := range muons[1:] {
		if m.Pt > best.Pt {
			best = m
		}
	}
	return best
}

func finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
