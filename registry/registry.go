package registry

import (
	"errors"
	"fmt"

	"github.com/jonwraymond/querycache/key"
)

// Registry is the read-only aggregate of bound entities.
//
// Contract:
// - Concurrency: safe for concurrent use; nothing mutates after Bind.
// - Determinism: ModelTypeFor and Reachable return the same answer for the
// same key on every call.
type Registry struct {
	entities map[string]*Entity
	order    []string
}

// Bind validates and freezes the given entities. Every conflicting
// declaration is reported, joined, as *ConfigurationError.
func Bind(entities ...*Entity) (*Registry, error) {
	r := &Registry{entities: make(map[string]*Entity, len(entities))}
	var errs []error

	for _, e := range entities {
		if e == nil {
			errs = append(errs, &ConfigurationError{Reason: "nil entity"})
			continue
		}
		if _, dup := r.entities[e.name]; dup {
			errs = append(errs, &ConfigurationError{Entity: e.name, Reason: "entity bound twice"})
			continue
		}
		if e.bound {
			errs = append(errs, &ConfigurationError{Entity: e.name, Reason: "entity already bound to another registry"})
			continue
		}
		errs = append(errs, e.errs...)
		errs = append(errs, ambiguousLeaves(e)...)
		r.entities[e.name] = e
		r.order = append(r.order, e.name)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	for _, e := range r.entities {
		e.bound = true
	}
	return r, nil
}

// MustBind is like Bind but panics on error. Use it at process start so a
// bad declaration fails before any request is served.
func MustBind(entities ...*Entity) *Registry {
	r, err := Bind(entities...)
	if err != nil {
		panic(err)
	}
	return r
}

// ambiguousLeaves reports pairs of leaves that can both accept one key.
func ambiguousLeaves(e *Entity) []error {
	var errs []error
	for i, a := range e.leaves {
		if a.invalid() != nil {
			continue
		}
		ca := a.chain()
		for _, b := range e.leaves[i+1:] {
			if b.invalid() != nil || !overlap(ca, b.chain()) {
				continue
			}
			errs = append(errs, &ConfigurationError{
				Entity: e.name,
				Name:   b.name,
				Reason: fmt.Sprintf("leaf key shape overlaps %q", a.name),
			})
		}
	}
	return errs
}

func overlap(a, b []key.Level) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Overlaps(b[i]) {
			return false
		}
	}
	return true
}

// Entities returns the bound entity names in bind order.
func (r *Registry) Entities() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Leaves returns every leaf of every entity in declaration order.
func (r *Registry) Leaves() []LeafInfo {
	var out []LeafInfo
	for _, name := range r.order {
		for _, d := range r.entities[name].leaves {
			out = append(out, d.info())
		}
	}
	return out
}

// ModelTypeFor resolves the leaf that produced k.
func (r *Registry) ModelTypeFor(k key.Key) (LeafInfo, bool) {
	e, ok := r.entities[k.Entity()]
	if !ok {
		return LeafInfo{}, false
	}
	for _, d := range e.leaves {
		if d.err == nil && acceptsChain(e.name, d.chain(), k) {
			return d.info(), true
		}
	}
	return LeafInfo{}, false
}

// Reachable returns the leaves whose keys filter can match, in declaration
// order. A leaf key reaches only its own leaf.
func (r *Registry) Reachable(filter key.Key) []LeafInfo {
	e, ok := r.entities[filter.Entity()]
	if !ok {
		return nil
	}
	var out []LeafInfo
	for _, d := range e.leaves {
		if d.err == nil && prefixAccepts(e.name, d.chain(), filter) {
			out = append(out, d.info())
		}
	}
	return out
}

// Matches is the registry-aware containment test: filter must structurally
// contain candidate and candidate must be a registered leaf key.
func (r *Registry) Matches(filter, candidate key.Key) bool {
	if !key.Matches(filter, candidate) {
		return false
	}
	_, ok := r.ModelTypeFor(candidate)
	return ok
}
