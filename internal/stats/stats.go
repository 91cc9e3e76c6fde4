package stats

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
)

// Accumulator collects the cutflow of a reduction run: event counts and
// mc_weight sums per named stage, and the mc_weight sum per process id.
//
// # Counters vs Weights
//
// Event counters only go up; IncrCounter panics on a negative delta.
// Weighted sums are plain sums, since simulated events may carry negative
// weights.
//
// # Ownership
//
// One Accumulator lives for the whole run of one worker and is never reset.
// Workers do not share accumulators: the runner gives each worker its own
// and merges them with Merge once every chunk is done. Methods are still
// safe for concurrent use.
type Accumulator struct {
	mu         sync.RWMutex
	counters   map[string]int64
	weights    map[string]float64
	perProcess map[int64]float64
}

func New() *Accumulator {
	return &Accumulator{
		counters:   make(map[string]int64),
		weights:    make(map[string]float64),
		perProcess: make(map[int64]float64),
	}
}

// IncrCounter increments an event counter by delta, creating it if needed.
//
// Panics if delta is negative.
func (a *Accumulator) IncrCounter(key string, delta int64) {
	if delta < 0 {
		panic("stats: IncrCounter called with negative delta")
	}
	a.mu.Lock()
	a.counters[key] += delta
	a.mu.Unlock()
}

// AddWeight adds w to a weighted sum, creating it if needed.
func (a *Accumulator) AddWeight(key string, w float64) {
	a.mu.Lock()
	a.weights[key] += w
	a.mu.Unlock()
}

// AddProcessWeight adds w to the weighted sum of a process.
func (a *Accumulator) AddProcessWeight(processID int64, w float64) {
	a.mu.Lock()
	a.perProcess[processID] += w
	a.mu.Unlock()
}

// Counter returns the value of an event counter, or 0 if not set.
func (a *Accumulator) Counter(key string) int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.counters[key]
}

// Weight returns the value of a weighted sum, or 0 if not set.
func (a *Accumulator) Weight(key string) float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.weights[key]
}

// ProcessWeight returns the weighted sum of a process, or 0 if not set.
func (a *Accumulator) ProcessWeight(processID int64) float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.perProcess[processID]
}

// HasWeight reports whether the weighted sum key was ever written.
func (a *Accumulator) HasWeight(key string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.weights[key]
	return ok
}

// Counters returns a copy of all event counters.
func (a *Accumulator) Counters() map[string]int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[string]int64, len(a.counters))
	for k, v := range a.counters {
		out[k] = v
	}
	return out
}

// Weights returns a copy of all weighted sums.
func (a *Accumulator) Weights() map[string]float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[string]float64, len(a.weights))
	for k, v := range a.weights {
		out[k] = v
	}
	return out
}

// ProcessWeights returns a copy of the per-process weighted sums.
func (a *Accumulator) ProcessWeights() map[int64]float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[int64]float64, len(a.perProcess))
	for k, v := range a.perProcess {
		out[k] = v
	}
	return out
}

// Merge adds every value of other into a. other is left untouched.
func (a *Accumulator) Merge(other *Accumulator) {
	if other == nil || other == a {
		return
	}
	counters := other.Counters()
	weights := other.Weights()
	perProcess := other.ProcessWeights()

	a.mu.Lock()
	defer a.mu.Unlock()
	for k, v := range counters {
		a.counters[k] += v
	}
	for k, v := range weights {
		a.weights[k] += v
	}
	for k, v := range perProcess {
		a.perProcess[k] += v
	}
}

// Keys returns every top-level key, sorted.
func (a *Accumulator) Keys() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	keys := make([]string, 0, len(a.counters)+len(a.weights)+1)
	for k := range a.counters {
		keys = append(keys, k)
	}
	for k := range a.weights {
		keys = append(keys, k)
	}
	if len(a.perProcess) > 0 {
		keys = append(keys, KeySumMCWeightPerProcess)
	}
	sort.Strings(keys)
	return keys
}

// MarshalJSON writes the flat stats record: counters and weighted sums as
// top-level numbers, the per-process sums as a nested object keyed by the
// process id.
func (a *Accumulator) MarshalJSON() ([]byte, error) {
	out := make(map[string]any)
	for k, v := range a.Counters() {
		out[k] = v
	}
	for k, v := range a.Weights() {
		out[k] = v
	}
	if perProcess := a.ProcessWeights(); len(perProcess) > 0 {
		nested := make(map[string]float64, len(perProcess))
		for pid, w := range perProcess {
			nested[strconv.FormatInt(pid, 10)] = w
		}
		out[KeySumMCWeightPerProcess] = nested
	}
	return json.Marshal(out)
}

func (a *Accumulator) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	fresh := New()
	for key, value := range raw {
		switch {
		case key == KeySumMCWeightPerProcess:
			var nested map[string]float64
			if err := json.Unmarshal(value, &nested); err != nil {
				return fmt.Errorf("stats key %q: %w", key, err)
			}
			for pid, w := range nested {
				id, err := strconv.ParseInt(pid, 10, 64)
				if err != nil {
					return fmt.Errorf("stats key %q: process id %q: %w", key, pid, err)
				}
				fresh.perProcess[id] = w
			}
		case isEventsKey(key):
			var n int64
			if err := json.Unmarshal(value, &n); err != nil {
				return fmt.Errorf("stats key %q: %w", key, err)
			}
			fresh.counters[key] = n
		case isWeightKey(key):
			var w float64
			if err := json.Unmarshal(value, &w); err != nil {
				return fmt.Errorf("stats key %q: %w", key, err)
			}
			fresh.weights[key] = w
		default:
			return fmt.Errorf("unknown stats key %q", key)
		}
	}

	a.mu.Lock()
	a.counters, a.weights, a.perProcess = fresh.counters, fresh.weights, fresh.perProcess
	a.mu.Unlock()
	return nil
}

// Save writes the stats as indented JSON.
func (a *Accumulator) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create stats directory: %w", err)
	}

	data, err := json.MarshalIndent(a, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write stats: %w", err)
	}
	return nil
}

// Load reads a stats file written by Save.
func Load(path string) (*Accumulator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read stats: %w", err)
	}

	a := New()
	if err := json.Unmarshal(data, a); err != nil {
		return nil, fmt.Errorf("failed to parse stats: %w", err)
	}
	return a, nil
}
