// Package trigger holds the Level-1 muon seeds whose efficiency is measured
// and the probe categories built from them.
package trigger

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/ib-77/l1tnp/pkg/event"
)

var (
	ErrInvalidTrigger = errors.New("invalid trigger")
	ErrUnknownTrigger = errors.New("unknown trigger")
)

const maxHwQual = 15

// Trigger is an L1 seed: a probe fires it when a matched L1 candidate has at
// least MinPt and one of the listed qualities.
type Trigger struct {
	Name      string  `yaml:"name"`
	MinPt     float64 `yaml:"pt"`
	Qualities []int   `yaml:"qual"`
}

func (t Trigger) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidTrigger)
	}
	if math.IsNaN(t.MinPt) || math.IsInf(t.MinPt, 0) || t.MinPt < 0 {
		return fmt.Errorf("%w: %s: pt must be a finite non-negative number, got %v", ErrInvalidTrigger, t.Name, t.MinPt)
	}
	if len(t.Qualities) == 0 {
		return fmt.Errorf("%w: %s: empty quality list", ErrInvalidTrigger, t.Name)
	}
	for _, q := range t.Qualities {
		if q < 0 || q > maxHwQual {
			return fmt.Errorf("%w: %s: quality %d outside [0, %d]", ErrInvalidTrigger, t.Name, q, maxHwQual)
		}
	}
	return nil
}

// Fires reports whether any L1 candidate matched to the probe within maxDR
// passes the seed.
func (t Trigger) Fires(rec *event.ProbeRecord, maxDR float64) bool {
	for _, l1 := range rec.L1 {
		if l1.DR < maxDR && l1.Pt >= t.MinPt && slices.Contains(t.Qualities, l1.HwQual) {
			return true
		}
	}
	return false
}

func qualities(lo, hi int) []int {
	out := make([]int, 0, hi-lo+1)
	for q := lo; q <= hi; q++ {
		out = append(out, q)
	}
	return out
}

// Defaults are the seeds of the Run 3 single and double muon menus.
func Defaults() []Trigger {
	return []Trigger{
		{Name: "SingleMu", MinPt: 22, Qualities: qualities(12, 15)},
		{Name: "SingleMu7", MinPt: 7, Qualities: qualities(11, 15)},
		{Name: "DoubleMu", MinPt: 8, Qualities: qualities(8, 15)},
		{Name: "MuOpen", MinPt: 3, Qualities: qualities(4, 15)},
		{Name: "TFMatch", MinPt: 0, Qualities: []int{0}},
	}
}
