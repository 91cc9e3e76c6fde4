// Package histo fills probe histograms per category and turns them into
// trigger efficiencies.
package histo

import (
	"errors"
	"fmt"
	"math"

	"github.com/ib-77/l1tnp/pkg/event"
)

var (
	ErrInvalidVariable = errors.New("invalid variable")
	ErrBinningMismatch = errors.New("histogram binning mismatch")
)

// Variable is a binned probe quantity.
type Variable struct {
	Name string `yaml:"name"`
	// Expression selects the record field: pt, eta, phi, mass, m_inv (first
	// tag pair) or n_probes.
	Expression string  `yaml:"expression"`
	Bins       int     `yaml:"bins"`
	Min        float64 `yaml:"min"`
	Max        float64 `yaml:"max"`
	Unit       string  `yaml:"unit,omitempty"`
	Title      string  `yaml:"title,omitempty"`
}

func DefaultVariables() []Variable {
	return []Variable{
		{Name: "probe_pt", Expression: "pt", Bins: 40, Min: 0, Max: 200, Unit: "GeV", Title: "Probe muon pT"},
		{Name: "probe_eta", Expression: "eta", Bins: 50, Min: -2.5, Max: 2.5, Title: "Probe muon eta"},
		{Name: "probe_phi", Expression: "phi", Bins: 40, Min: -3.2, Max: 3.2, Title: "Probe muon phi"},
		{Name: "probe_mass", Expression: "mass", Bins: 40, Min: 0, Max: 200, Title: "Probe muon mass"},
	}
}

func (v Variable) Validate() error {
	if v.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidVariable)
	}
	if _, ok := extractors[v.Expression]; !ok {
		return fmt.Errorf("%w: %s: unknown expression %q", ErrInvalidVariable, v.Name, v.Expression)
	}
	if v.Bins <= 0 {
		return fmt.Errorf("%w: %s: bins must be positive, got %d", ErrInvalidVariable, v.Name, v.Bins)
	}
	if math.IsNaN(v.Min) || math.IsNaN(v.Max) || math.IsInf(v.Min, 0) || math.IsInf(v.Max, 0) || v.Min >= v.Max {
		return fmt.Errorf("%w: %s: bad range [%v, %v]", ErrInvalidVariable, v.Name, v.Min, v.Max)
	}
	return nil
}

// Label is the axis label of the variable.
func (v Variable) Label() string {
	title := v.Title
	if title == "" {
		title = v.Name
	}
	if v.Unit != "" {
		return fmt.Sprintf("%s [%s]", title, v.Unit)
	}
	return title
}

// Value extracts the variable from a record. ok is false when the record
// has no value for it.
func (v Variable) Value(rec *event.ProbeRecord) (float64, bool) {
	extract, found := extractors[v.Expression]
	if !found {
		return 0, false
	}
	return extract(rec)
}

var extractors = map[string]func(*event.ProbeRecord) (float64, bool){
	"pt":   func(r *event.ProbeRecord) (float64, bool) { return r.Pt, true },
	"eta":  func(r *event.ProbeRecord) (float64, bool) { return r.Eta, true },
	"phi":  func(r *event.ProbeRecord) (float64, bool) { return r.Phi, true },
	"mass": func(r *event.ProbeRecord) (float64, bool) { return r.Mass, true },
	"m_inv": func(r *event.ProbeRecord) (float64, bool) {
		if len(r.Tags) == 0 {
			return 0, false
		}
		return r.Tags[0].MInv, true
	},
	"n_probes": func(r *event.ProbeRecord) (float64, bool) { return float64(r.NProbes), true },
}
