package key

import (
	"fmt"
	"sort"
	"strings"
)

// Values supplies the variable fields of one extension.
type Values map[string]any

// Param declares one field of a Level: either a variable filled from
// Values or a constant fixed at declaration.
type Param struct {
	name  string
	fixed bool
	value any
}

// Var declares a variable field.
func Var(name string) Param {
	return Param{name: name}
}

// Const declares a constant field. The value is normalized when the
// level is built; unsupported values surface from NewLevel.
func Const(name string, value any) Param {
	return Param{name: name, fixed: true, value: value}
}

// Name returns the field name.
func (p Param) Name() string { return p.name }

// IsConst reports whether the field is fixed at declaration.
func (p Param) IsConst() bool { return p.fixed }

// Level declares one extension step: the fields it adds, in order.
type Level struct {
	params []Param
	consts map[string]string // name -> canonical value
}

// NewLevel validates params and returns a Level.
func NewLevel(params ...Param) (Level, error) {
	if len(params) == 0 {
		return Level{}, ErrEmptyLevel
	}
	seen := make(map[string]struct{}, len(params))
	lvl := Level{
		params: make([]Param, len(params)),
		consts: make(map[string]string),
	}
	for i, p := range params {
		if strings.TrimSpace(p.name) == "" {
			return Level{}, fmt.Errorf("%w: empty name", ErrUndeclaredField)
		}
		if _, dup := seen[p.name]; dup {
			return Level{}, fmt.Errorf("%w: %q", ErrDuplicateField, p.name)
		}
		seen[p.name] = struct{}{}

		if p.fixed {
			n, err := normalize(p.value)
			if err != nil {
				return Level{}, fmt.Errorf("const %q: %w", p.name, err)
			}
			c, err := canonicalize(n)
			if err != nil {
				return Level{}, fmt.Errorf("const %q: %w", p.name, err)
			}
			p.value = n
			lvl.consts[p.name] = string(c)
		}
		lvl.params[i] = p
	}
	return lvl, nil
}

// MustLevel is like NewLevel but panics on error.
func MustLevel(params ...Param) Level {
	lvl, err := NewLevel(params...)
	if err != nil {
		panic(err)
	}
	return lvl
}

// Params returns the declared params in order.
func (l Level) Params() []Param {
	out := make([]Param, len(l.params))
	copy(out, l.params)
	return out
}

// Vars returns the names of the variable params in order.
func (l Level) Vars() []string {
	var out []string
	for _, p := range l.params {
		if !p.fixed {
			out = append(out, p.name)
		}
	}
	return out
}

// Accepts reports whether seg could have been produced by l: same names
// in the same order and equal constants.
func (l Level) Accepts(seg Segment) bool {
	if len(seg.fields) != len(l.params) {
		return false
	}
	for i, p := range l.params {
		f := seg.fields[i]
		if f.Name != p.name {
			return false
		}
		if p.fixed {
			c, err := canonicalize(f.Value)
			if err != nil || string(c) != l.consts[p.name] {
				return false
			}
		}
	}
	return true
}

// SameShape reports whether two levels accept exactly the same segments.
func (l Level) SameShape(other Level) bool {
	if len(l.params) != len(other.params) {
		return false
	}
	for i, p := range l.params {
		o := other.params[i]
		if p.name != o.name || p.fixed != o.fixed {
			return false
		}
		if p.fixed && l.consts[p.name] != other.consts[o.name] {
			return false
		}
	}
	return true
}

// Overlaps reports whether some segment is accepted by both levels: same
// names in the same order, and equal constants wherever both levels fix
// the field.
func (l Level) Overlaps(other Level) bool {
	if len(l.params) != len(other.params) {
		return false
	}
	for i, p := range l.params {
		o := other.params[i]
		if p.name != o.name {
			return false
		}
		if p.fixed && o.fixed && l.consts[p.name] != other.consts[o.name] {
			return false
		}
	}
	return true
}

// Extend appends one segment to parent. Fields are laid out in the
// level's declaration order regardless of the iteration order of values.
// Extend is pure: equal inputs always produce equal keys.
func Extend(parent Key, level Level, values Values) (Key, error) {
	if parent.IsZero() {
		return Key{}, ErrEmptyParent
	}
	if len(level.params) == 0 {
		return Key{}, ErrEmptyLevel
	}

	declared := make(map[string]struct{}, len(level.params))
	fields := make([]Field, 0, len(level.params))
	for _, p := range level.params {
		declared[p.name] = struct{}{}
		if _, exists := parent.Get(p.name); exists {
			return Key{}, fmt.Errorf("%w: %q already set by parent", ErrDuplicateField, p.name)
		}
		if p.fixed {
			fields = append(fields, Field{Name: p.name, Value: cloneValue(p.value)})
			continue
		}
		raw, ok := values[p.name]
		if !ok {
			return Key{}, fmt.Errorf("%w: %q", ErrMissingField, p.name)
		}
		n, err := normalize(raw)
		if err != nil {
			return Key{}, fmt.Errorf("field %q: %w", p.name, err)
		}
		fields = append(fields, Field{Name: p.name, Value: n})
	}

	var extra []string
	for name := range values {
		if _, ok := declared[name]; !ok {
			extra = append(extra, name)
		}
	}
	if len(extra) > 0 {
		sort.Strings(extra)
		return Key{}, fmt.Errorf("%w: %s", ErrUndeclaredField, strings.Join(extra, ", "))
	}
	for _, p := range level.params {
		if p.fixed {
			if _, ok := values[p.name]; ok {
				return Key{}, fmt.Errorf("%w: %q is constant", ErrUndeclaredField, p.name)
			}
		}
	}

	seg, err := newSegment(fields)
	if err != nil {
		return Key{}, err
	}
	return parent.append(seg), nil
}
