package trigger

import "github.com/ib-77/l1tnp/pkg/event"

// Category names that do not come from a trigger.
const (
	// ValidProbe selects every probe and is the efficiency denominator.
	ValidProbe = "valid_probe"
	Inclusive  = "incl"
	TwoMuons   = "2mu"
)

func isReserved(name string) bool {
	return name == ValidProbe || name == Inclusive || name == TwoMuons
}

// Category is a named probe selection.
type Category struct {
	Name     string
	Label    string
	Selector func(rec *event.ProbeRecord) bool
}

func (c Category) Selects(rec *event.ProbeRecord) bool {
	return c.Selector(rec)
}

// Categories returns the denominator category, one numerator category per
// trigger, and the event level incl and 2mu categories, in that order.
func (r *Registry) Categories(maxDR float64) []Category {
	cats := make([]Category, 0, len(r.triggers)+3)
	cats = append(cats, Category{
		Name:     ValidProbe,
		Label:    "Valid probe",
		Selector: func(*event.ProbeRecord) bool { return true },
	})

	for _, t := range r.triggers {
		cats = append(cats, Category{
			Name:  t.Name,
			Label: t.Name,
			Selector: func(rec *event.ProbeRecord) bool {
				return t.Fires(rec, maxDR)
			},
		})
	}

	cats = append(cats,
		Category{
			Name:     Inclusive,
			Label:    "Inclusive",
			Selector: func(*event.ProbeRecord) bool { return true },
		},
		Category{
			Name:     TwoMuons,
			Label:    "At least two muons",
			Selector: func(rec *event.ProbeRecord) bool { return rec.NMuon >= 2 },
		},
	)
	return cats
}

// IsNumerator reports whether the category is a trigger category.
func (r *Registry) IsNumerator(name string) bool {
	_, ok := r.index[name]
	return ok
}
