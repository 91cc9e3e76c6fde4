// Package eventio reads event chunks from JSON lines files and writes probe
// records to JSON lines or SQLite.
//
// Each input line holds one event with its collections stored as structures
// of arrays, the way NanoAOD stores them:
//
//	{"run": 367883, "luminosityBlock": 12, "event": 1001, "mc_weight": 1.0,
//	 "Muon": {"pt": [45.1, 38.2], "eta": [...], ...},
//	 "L1Mu": {"pt": [44.0], "hwQual": [12], ...}}
//
// A column whose length differs from its collection size is reported as
// ErrMissingColumn.
package eventio
