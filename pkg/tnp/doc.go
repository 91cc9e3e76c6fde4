// Package tnp implements the muon tag-and-probe reduction used to measure
// Level-1 muon trigger efficiencies.
//
// A Reducer takes one chunk of events and runs a fixed sequence of stages
// over it:
//
//	validate      fatal on malformed input
//	prepare       deterministic seeds              checkpoint n_events
//	muon_pair     baseline muons, >= 2 per event   checkpoint muon_pair
//	tag_reqs      tag pt cut, >= 1 tag             checkpoint tag_reqs
//	l1tag_reqs    L1 quality and pt cut            checkpoint l1tag_reqs
//	l1tag_match   tag within ΔR of an L1 tag       checkpoint l1tag_match
//	probe_reqs    probe pt cut
//	probe_match   tag/probe separation, Z window   checkpoint probe_match
//	l1probe_match attach L1 candidates to probes
//	selected      flatten to one record per probe  checkpoint selected
//
// An event that loses every candidate at a filtering stage is removed from
// the chunk. Each checkpoint adds the surviving event count, and for
// simulation the surviving mc_weight sum, to a stats.Accumulator owned by the
// caller. The reducer keeps no state between chunks.
package tnp
