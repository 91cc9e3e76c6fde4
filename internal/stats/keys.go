package stats

import "strings"

// Keys of the stats file. Per-stage keys are built from a prefix and the
// stage name, e.g. "n_events_muon_pair".
const (
	// KeyEvents counts every event handed to the reducer.
	KeyEvents = "n_events"
	// KeySumMCWeight sums mc_weight over every simulated event handed to
	// the reducer.
	KeySumMCWeight = "sum_mc_weight"
	// KeySumMCWeightPerProcess holds the nested process id -> weight map.
	KeySumMCWeightPerProcess = "sum_mc_weight_per_process"

	eventsPrefix = KeyEvents + "_"
	weightPrefix = KeySumMCWeight + "_"
)

// EventsKey is the event counter key of a stage.
func EventsKey(stage string) string {
	return eventsPrefix + stage
}

// WeightKey is the weighted sum key of a stage.
func WeightKey(stage string) string {
	return weightPrefix + stage
}

func isEventsKey(key string) bool {
	return key == KeyEvents || strings.HasPrefix(key, eventsPrefix)
}

func isWeightKey(key string) bool {
	return key != KeySumMCWeightPerProcess && (key == KeySumMCWeight || strings.HasPrefix(key, weightPrefix))
}
