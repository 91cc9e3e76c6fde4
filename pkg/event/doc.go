// Package event holds the per-event data model of the L1 muon study:
// reconstructed muons, Level-1 trigger muon candidates, the tag and probe
// collections derived from them, and the flat probe record written out by
// the reducer.
//
// Collections are plain slices (array-of-structs per event). A Batch is one
// chunk of events. Code that derives a new collection always allocates a new
// slice, so a Batch handed to the reducer is never modified by it.
package event
