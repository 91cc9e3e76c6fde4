package tnp

import (
	"fmt"
	"math"
)

// Window is a closed interval [Min, Max].
type Window struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

func (w Window) Contains(v float64) bool {
	return v >= w.Min && v <= w.Max
}

// Config holds the thresholds of the reduction. It is copied into the
// Reducer at construction and never changes afterwards.
type Config struct {
	// MaxDR is the ΔR radius for tag/L1-tag and probe/L1 matching. Tag and
	// probe must be separated by more than twice this value.
	MaxDR            float64 `yaml:"max_dr" json:"max_dr"`
	TagPtThreshold   float64 `yaml:"tag_pt_threshold" json:"tag_pt_threshold"`
	ProbePtThreshold float64 `yaml:"probe_pt_threshold" json:"probe_pt_threshold"`

	RequireZWindow bool   `yaml:"require_z_window" json:"require_z_window"`
	ZWindow        Window `yaml:"z_window" json:"z_window"`

	// RequireHLT asks for the tag to fire the isolated single muon HLT path.
	// The trigger-object columns are not available in the input yet, so
	// this is accepted but has no effect.
	RequireHLT bool `yaml:"require_hlt" json:"require_hlt"`

	L1HwQualityMin int `yaml:"l1_hw_quality_min" json:"l1_hw_quality_min"`

	// LeadingTagOnly keeps only the highest-pt matched tag per event.
	LeadingTagOnly bool `yaml:"leading_tag_only" json:"leading_tag_only"`

	// RequireL1Bx restricts every L1 candidate to bunch crossing L1Bx.
	RequireL1Bx bool `yaml:"require_l1_bx" json:"require_l1_bx"`
	L1Bx        int  `yaml:"l1_bx" json:"l1_bx"`
}

const (
	// l1TagPtMargin loosens the L1 tag pt cut with respect to the offline
	// tag cut, to account for the coarser L1 pt scale.
	l1TagPtMargin = 4.01

	baselineMinPt  = 3.0
	baselineMaxEta = 2.5

	maxHwQual = 15
)

func DefaultConfig() Config {
	return Config{
		MaxDR:            0.4,
		TagPtThreshold:   26,
		ProbePtThreshold: 22,
		RequireZWindow:   true,
		ZWindow:          Window{Min: 81, Max: 101},
		RequireHLT:       false,
		L1HwQualityMin:   12,
		LeadingTagOnly:   false,
		RequireL1Bx:      false,
		L1Bx:             0,
	}
}

// Validate reports the first unusable threshold, wrapped in ErrInvalidConfig.
func (c Config) Validate() error {
	finite := []struct {
		name  string
		value float64
	}{
		{"max_dr", c.MaxDR},
		{"tag_pt_threshold", c.TagPtThreshold},
		{"probe_pt_threshold", c.ProbePtThreshold},
		{"z_window.min", c.ZWindow.Min},
		{"z_window.max", c.ZWindow.Max},
	}
	for _, f := range finite {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return fmt.Errorf("%w: %s must be finite, got %v", ErrInvalidConfig, f.name, f.value)
		}
	}

	if c.MaxDR <= 0 {
		return fmt.Errorf("%w: max_dr must be positive, got %v", ErrInvalidConfig, c.MaxDR)
	}
	if c.TagPtThreshold < 0 {
		return fmt.Errorf("%w: tag_pt_threshold must not be negative, got %v", ErrInvalidConfig, c.TagPtThreshold)
	}
	if c.ProbePtThreshold < 0 {
		return fmt.Errorf("%w: probe_pt_threshold must not be negative, got %v", ErrInvalidConfig, c.ProbePtThreshold)
	}
	if c.RequireZWindow && c.ZWindow.Min > c.ZWindow.Max {
		return fmt.Errorf("%w: z_window min %v above max %v", ErrInvalidConfig, c.ZWindow.Min, c.ZWindow.Max)
	}
	if c.L1HwQualityMin < 0 || c.L1HwQualityMin > maxHwQual {
		return fmt.Errorf("%w: l1_hw_quality_min must be within [0, %d], got %d", ErrInvalidConfig, maxHwQual, c.L1HwQualityMin)
	}
	return nil
}

// L1TagPtThreshold is the pt an L1 candidate must exceed to be an L1 tag.
func (c Config) L1TagPtThreshold() float64 {
	return c.TagPtThreshold - l1TagPtMargin
}
