package registry

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/jonwraymond/querycache/key"
)

// Entity collects the declarations of one resource type.
type Entity struct {
	name    string
	root    *Filter
	filters map[string]*Filter
	leaves  []*leafDecl
	byName  map[string]*leafDecl
	errs    []error
	bound   bool
}

// NewEntity starts the declarations of an entity.
func NewEntity(name string) *Entity {
	e := &Entity{
		name:    name,
		filters: make(map[string]*Filter),
		byName:  make(map[string]*leafDecl),
	}
	e.root = &Filter{entity: e, name: "all"}
	e.filters[e.root.name] = e.root
	if strings.TrimSpace(name) == "" {
		e.fail("", "entity name is empty")
	}
	return e
}

// Name returns the entity name.
func (e *Entity) Name() string { return e.name }

// Root returns the entity's "all" filter, whose key is {type: name}.
func (e *Entity) Root() *Filter { return e.root }

func (e *Entity) fail(name, format string, args ...any) {
	e.errs = append(e.errs, &ConfigurationError{
		Entity: e.name,
		Name:   name,
		Reason: fmt.Sprintf(format, args...),
	})
}

func (e *Entity) checkOpen() {
	if e.bound {
		panic(fmt.Sprintf("registry: entity %q is bound; declarations are closed", e.name))
	}
}

// resolveParent maps a nil parent to the root and records foreign parents.
func (e *Entity) resolveParent(name string, parent *Filter) *Filter {
	if parent == nil {
		return e.root
	}
	if parent.entity != e {
		e.fail(name, "parent filter %q belongs to entity %q", parent.name, parent.entity.name)
	}
	return parent
}

// Filter declares a filter level named name beneath parent (nil means the
// root). Problems are recorded and reported by Bind.
func (e *Entity) Filter(name string, parent *Filter, params ...key.Param) *Filter {
	e.checkOpen()
	parent = e.resolveParent(name, parent)
	f := &Filter{entity: e, name: name, parent: parent, depth: parent.depth + 1}

	lvl, err := key.NewLevel(params...)
	if err != nil {
		e.fail(name, "filter level: %v", err)
		f.err = err
	}
	f.level = lvl

	if _, dup := e.filters[name]; dup {
		e.fail(name, "filter declared twice")
	} else {
		e.filters[name] = f
	}
	return f
}

// Filter is a declared scope: a node of the entity's prefix lattice.
type Filter struct {
	entity *Entity
	name   string
	parent *Filter
	level  key.Level
	depth  int
	err    error
}

// Name returns the filter name.
func (f *Filter) Name() string { return f.name }

// Entity returns the owning entity name.
func (f *Filter) Entity() string { return f.entity.name }

// chain returns the levels from the root (exclusive) down to f.
func (f *Filter) chain() []key.Level {
	levels := make([]key.Level, f.depth)
	for n := f; n.parent != nil; n = n.parent {
		levels[n.depth-1] = n.level
	}
	return levels
}

func (f *Filter) invalid() error {
	for n := f; n != nil; n = n.parent {
		if n.err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidDeclaration, n.name, n.err)
		}
	}
	return nil
}

// accepts reports whether k was produced by f's chain.
func (f *Filter) accepts(k key.Key) bool {
	return acceptsChain(f.entity.name, f.chain(), k)
}

// Key extends parent, a key produced by f's parent filter, with values.
// For the root filter parent is ignored.
func (f *Filter) Key(parent key.Key, values key.Values) (key.Key, error) {
	if err := f.invalid(); err != nil {
		return key.Key{}, err
	}
	if f.parent == nil {
		return key.Root(f.entity.name)
	}
	if !f.parent.accepts(parent) {
		return key.Key{}, fmt.Errorf("%w: %s under %s", ErrParentMismatch, parent, f.parent.name)
	}
	return key.Extend(parent, f.level, values)
}

// Build builds f's key from one flat set of values covering every
// variable of the chain.
func (f *Filter) Build(values key.Values) (key.Key, error) {
	if err := f.invalid(); err != nil {
		return key.Key{}, err
	}
	return buildChain(f.entity.name, f.chain(), values)
}

// MustBuild is like Build but panics on error.
func (f *Filter) MustBuild(values key.Values) key.Key {
	k, err := f.Build(values)
	if err != nil {
		panic(err)
	}
	return k
}

func acceptsChain(entity string, levels []key.Level, k key.Key) bool {
	if k.Len() != len(levels)+1 || k.Entity() != entity {
		return false
	}
	if k.Segment(0).Len() != 1 {
		return false
	}
	for i, lvl := range levels {
		if !lvl.Accepts(k.Segment(i + 1)) {
			return false
		}
	}
	return true
}

// prefixAccepts reports whether k matches the first k.Len()-1 levels.
func prefixAccepts(entity string, levels []key.Level, k key.Key) bool {
	if k.IsZero() || k.Len() > len(levels)+1 || k.Entity() != entity {
		return false
	}
	if k.Segment(0).Len() != 1 {
		return false
	}
	for i := 1; i < k.Len(); i++ {
		if !levels[i-1].Accepts(k.Segment(i)) {
			return false
		}
	}
	return true
}

func buildChain(entity string, levels []key.Level, values key.Values) (key.Key, error) {
	k, err := key.Root(entity)
	if err != nil {
		return key.Key{}, err
	}
	used := make(map[string]struct{}, len(values))
	for _, lvl := range levels {
		vars := lvl.Vars()
		step := make(key.Values, len(vars))
		for _, name := range vars {
			if v, ok := values[name]; ok {
				step[name] = v
				used[name] = struct{}{}
			}
		}
		if k, err = key.Extend(k, lvl, step); err != nil {
			return key.Key{}, err
		}
	}
	for name := range values {
		if _, ok := used[name]; !ok {
			return key.Key{}, fmt.Errorf("%w: %q", key.ErrUndeclaredField, name)
		}
	}
	return k, nil
}

type leafDecl struct {
	entity *Entity
	name   string
	parent *Filter
	level  key.Level
	model  reflect.Type
	err    error
}

func (d *leafDecl) chain() []key.Level {
	return append(d.parent.chain(), d.level)
}

func (d *leafDecl) info() LeafInfo {
	return LeafInfo{
		Entity: d.entity.name,
		Name:   d.name,
		Model:  d.model,
	}
}

func (d *leafDecl) invalid() error {
	if d.err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidDeclaration, d.name, d.err)
	}
	return d.parent.invalid()
}

// LeafInfo describes a registered leaf.
type LeafInfo struct {
	Entity string
	Name   string
	Model  reflect.Type
}

// String returns "entity.leaf".
func (i LeafInfo) String() string { return i.Entity + "." + i.Name }
