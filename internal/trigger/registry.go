package trigger

import (
	"fmt"
	"slices"
)

// Registry is an ordered, validated set of triggers.
type Registry struct {
	triggers []Trigger
	index    map[string]int
}

func NewRegistry(triggers []Trigger) (*Registry, error) {
	r := &Registry{
		triggers: make([]Trigger, 0, len(triggers)),
		index:    make(map[string]int, len(triggers)),
	}
	for _, t := range triggers {
		if err := t.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.index[t.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate name %s", ErrInvalidTrigger, t.Name)
		}
		if isReserved(t.Name) {
			return nil, fmt.Errorf("%w: %s is a reserved category name", ErrInvalidTrigger, t.Name)
		}
		t.Qualities = slices.Clone(t.Qualities)
		r.index[t.Name] = len(r.triggers)
		r.triggers = append(r.triggers, t)
	}
	return r, nil
}

// Default returns the registry of Defaults.
func Default() *Registry {
	r, err := NewRegistry(Defaults())
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Registry) Len() int {
	return len(r.triggers)
}

func (r *Registry) Get(name string) (Trigger, bool) {
	i, ok := r.index[name]
	if !ok {
		return Trigger{}, false
	}
	return r.triggers[i], true
}

// Names returns the trigger names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.triggers))
	for i, t := range r.triggers {
		names[i] = t.Name
	}
	return names
}

// All returns a copy of the triggers in registration order.
func (r *Registry) All() []Trigger {
	return slices.Clone(r.triggers)
}

// Select returns a registry restricted to names, in the given order. An
// empty list selects every trigger.
func (r *Registry) Select(names []string) (*Registry, error) {
	if len(names) == 0 {
		return r, nil
	}
	out := make([]Trigger, 0, len(names))
	for _, name := range names {
		t, ok := r.Get(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownTrigger, name)
		}
		out = append(out, t)
	}
	return NewRegistry(out)
}
