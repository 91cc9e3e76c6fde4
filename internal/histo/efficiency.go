package histo

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/ib-77/l1tnp/internal/trigger"
	"go-hep.org/x/hep/hbook"
	"gonum.org/v1/gonum/stat/distuv"
	"gopkg.in/yaml.v3"
)

// OneSigma is the coverage of the efficiency intervals.
const OneSigma = 0.682689492137

// Point is the efficiency of one bin. ErrLow and ErrHigh are distances from
// Eff, not interval bounds.
type Point struct {
	X       float64 `yaml:"x"`
	XWidth  float64 `yaml:"x_width"`
	Num     float64 `yaml:"num"`
	Denom   float64 `yaml:"denom"`
	Eff     float64 `yaml:"eff"`
	ErrLow  float64 `yaml:"err_low"`
	ErrHigh float64 `yaml:"err_high"`
}

// Table is the efficiency of one trigger as a function of one variable.
type Table struct {
	Variable string  `yaml:"variable"`
	Label    string  `yaml:"label"`
	Trigger  string  `yaml:"trigger"`
	Points   []Point `yaml:"points"`
}

// ClopperPearson returns the central interval of the given coverage for k
// passing out of n trials. k and n may be weighted sums; k is clamped to
// [0, n].
func ClopperPearson(k, n, coverage float64) (lo, hi float64) {
	if n <= 0 {
		return 0, 1
	}
	k = math.Max(0, math.Min(k, n))
	alpha := (1 - coverage) / 2

	lo, hi = 0, 1
	if k > 0 {
		lo = distuv.Beta{Alpha: k, Beta: n - k + 1}.Quantile(alpha)
	}
	if k < n {
		hi = distuv.Beta{Alpha: k + 1, Beta: n - k}.Quantile(1 - alpha)
	}
	return lo, hi
}

// Efficiency divides num by denom bin by bin. Bins with an empty or negative
// denominator get zero efficiency. Zero efficiency points carry no error bar.
func Efficiency(num, denom *hbook.H1D) ([]Point, error) {
	nb, db := num.Binning.Bins, denom.Binning.Bins
	if len(nb) != len(db) {
		return nil, fmt.Errorf("%w: %d vs %d bins", ErrBinningMismatch, len(nb), len(db))
	}

	points := make([]Point, len(db))
	for i := range db {
		if nb[i].XMin() != db[i].XMin() || nb[i].XMax() != db[i].XMax() {
			return nil, fmt.Errorf("%w: bin %d edges differ", ErrBinningMismatch, i)
		}
		k, n := nb[i].SumW(), db[i].SumW()
		p := Point{X: db[i].XMid(), XWidth: db[i].XWidth(), Num: k, Denom: n}
		if n > 0 {
			p.Eff = k / n
		}
		if p.Eff != 0 {
			lo, hi := ClopperPearson(k, n, OneSigma)
			p.ErrLow = math.Abs(p.Eff - lo)
			p.ErrHigh = math.Abs(hi - p.Eff)
		}
		points[i] = p
	}
	return points, nil
}

// Efficiencies computes one table per variable and trigger of reg, with
// the valid_probe category as denominator.
func (f *Filler) Efficiencies(reg *trigger.Registry) ([]Table, error) {
	tables := make([]Table, 0, len(f.vars)*reg.Len())
	for _, v := range f.vars {
		denom := f.H1D(v.Name, trigger.ValidProbe)
		if denom == nil {
			return nil, fmt.Errorf("no %s histogram for %s", trigger.ValidProbe, v.Name)
		}
		for _, name := range reg.Names() {
			num := f.H1D(v.Name, name)
			if num == nil {
				return nil, fmt.Errorf("no %s histogram for %s", name, v.Name)
			}
			points, err := Efficiency(num, denom)
			if err != nil {
				return nil, fmt.Errorf("%s/%s: %w", v.Name, name, err)
			}
			tables = append(tables, Table{Variable: v.Name, Label: v.Label(), Trigger: name, Points: points})
		}
	}
	return tables, nil
}

func SaveTables(path string, tables []Table) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create efficiency directory: %w", err)
	}
	data, err := yaml.Marshal(tables)
	if err != nil {
		return fmt.Errorf("failed to marshal efficiencies: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write efficiencies: %w", err)
	}
	return nil
}

func LoadTables(path string) ([]Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read efficiencies: %w", err)
	}
	var tables []Table
	if err := yaml.Unmarshal(data, &tables); err != nil {
		return nil, fmt.Errorf("failed to parse efficiencies: %w", err)
	}
	return tables, nil
}
