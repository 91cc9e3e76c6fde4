package histo

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ib-77/l1tnp/internal/trigger"
	"github.com/ib-77/l1tnp/pkg/event"
	"go-hep.org/x/hep/hbook"
)

type key struct {
	variable string
	category string
}

// Filler keeps one histogram per (variable, category) pair. Each record is
// filled with its event weight into every category that selects it.
// A Filler is not safe for concurrent use.
type Filler struct {
	vars  []Variable
	cats  []trigger.Category
	hists map[key]*hbook.H1D
	n     int
}

func NewFiller(vars []Variable, cats []trigger.Category) (*Filler, error) {
	f := &Filler{
		vars:  vars,
		cats:  cats,
		hists: make(map[key]*hbook.H1D, len(vars)*len(cats)),
	}
	for _, v := range vars {
		if err := v.Validate(); err != nil {
			return nil, err
		}
		for _, c := range cats {
			k := key{variable: v.Name, category: c.Name}
			if _, dup := f.hists[k]; dup {
				return nil, fmt.Errorf("%w: duplicate histogram %s/%s", ErrInvalidVariable, v.Name, c.Name)
			}
			h := hbook.NewH1D(v.Bins, v.Min, v.Max)
			h.Annotation()["name"] = histName(v.Name, c.Name)
			h.Annotation()["title"] = v.Label()
			f.hists[k] = h
		}
	}
	return f, nil
}

func histName(variable, category string) string {
	return variable + "__" + category
}

func (f *Filler) Fill(rec *event.ProbeRecord) {
	w := rec.Weight()
	for _, c := range f.cats {
		if !c.Selects(rec) {
			continue
		}
		for _, v := range f.vars {
			x, ok := v.Value(rec)
			if !ok {
				continue
			}
			f.hists[key{variable: v.Name, category: c.Name}].Fill(x, w)
		}
	}
	f.n++
}

// Filled is the number of records passed to Fill.
func (f *Filler) Filled() int {
	return f.n
}

// H1D returns the histogram of a variable in a category, or nil.
func (f *Filler) H1D(variable, category string) *hbook.H1D {
	return f.hists[key{variable: variable, category: category}]
}

func (f *Filler) Variables() []Variable {
	return f.vars
}

// MarshalYODA writes every histogram, variables outer and categories inner.
func (f *Filler) MarshalYODA() ([]byte, error) {
	var buf bytes.Buffer
	for _, v := range f.vars {
		for _, c := range f.cats {
			raw, err := f.H1D(v.Name, c.Name).MarshalYODA()
			if err != nil {
				return nil, fmt.Errorf("failed to marshal %s: %w", histName(v.Name, c.Name), err)
			}
			buf.Write(raw)
		}
	}
	return buf.Bytes(), nil
}

// SaveYODA writes all histograms into one YODA file.
func (f *Filler) SaveYODA(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create histogram directory: %w", err)
	}
	data, err := f.MarshalYODA()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write histograms: %w", err)
	}
	return nil
}
