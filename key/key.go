package key

import (
	"strings"

	"github.com/cespare/xxhash/v2"
)

// TypeField is the field every root key carries to name its entity.
const TypeField = "type"

// Field is a single named value inside a segment.
type Field struct {
	Name  string
	Value any
}

// Segment is the ordered set of fields added by one extension.
type Segment struct {
	fields []Field
	canon  string
}

// Fields returns a copy of the segment's fields in declaration order.
func (s Segment) Fields() []Field {
	out := make([]Field, len(s.fields))
	for i, f := range s.fields {
		out[i] = Field{Name: f.Name, Value: cloneValue(f.Value)}
	}
	return out
}

// Names returns the segment's field names in declaration order.
func (s Segment) Names() []string {
	out := make([]string, len(s.fields))
	for i, f := range s.fields {
		out[i] = f.Name
	}
	return out
}

// Len returns the number of fields in the segment.
func (s Segment) Len() int { return len(s.fields) }

// String returns the canonical JSON object form of the segment.
func (s Segment) String() string { return s.canon }

func (s Segment) lookup(name string) (any, bool) {
	for _, f := range s.fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Key is an immutable hierarchical cache key. The zero Key has no
// segments and matches nothing.
type Key struct {
	segments []Segment
	canon    string
}

// Root returns the zero-extension key of an entity: {type: entity}.
func Root(entity string) (Key, error) {
	if strings.TrimSpace(entity) == "" {
		return Key{}, ErrEmptyEntity
	}
	seg, err := newSegment([]Field{{Name: TypeField, Value: entity}})
	if err != nil {
		return Key{}, err
	}
	return Key{}.append(seg), nil
}

// MustRoot is like Root but panics on error.
func MustRoot(entity string) Key {
	k, err := Root(entity)
	if err != nil {
		panic(err)
	}
	return k
}

func newSegment(fields []Field) (Segment, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		name, err := canonicalize(f.Name)
		if err != nil {
			return Segment{}, err
		}
		val, err := canonicalize(f.Value)
		if err != nil {
			return Segment{}, err
		}
		b.Write(name)
		b.WriteByte(':')
		b.Write(val)
	}
	b.WriteByte('}')
	return Segment{fields: fields, canon: b.String()}, nil
}

func (k Key) append(seg Segment) Key {
	segments := make([]Segment, len(k.segments), len(k.segments)+1)
	copy(segments, k.segments)
	segments = append(segments, seg)

	var b strings.Builder
	b.WriteByte('[')
	for i, s := range segments {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s.canon)
	}
	b.WriteByte(']')
	return Key{segments: segments, canon: b.String()}
}

// IsZero reports whether k has no segments.
func (k Key) IsZero() bool { return len(k.segments) == 0 }

// Len returns the number of segments (the root counts as one).
func (k Key) Len() int { return len(k.segments) }

// Segment returns the i-th segment.
func (k Key) Segment(i int) Segment { return k.segments[i] }

// Segments returns a copy of the key's segments.
func (k Key) Segments() []Segment {
	out := make([]Segment, len(k.segments))
	copy(out, k.segments)
	return out
}

// Fields returns all fields of k, flattened in declaration order.
func (k Key) Fields() []Field {
	var out []Field
	for _, s := range k.segments {
		out = append(out, s.Fields()...)
	}
	return out
}

// Get returns the value of the named field.
func (k Key) Get(name string) (any, bool) {
	for _, s := range k.segments {
		if v, ok := s.lookup(name); ok {
			return cloneValue(v), true
		}
	}
	return nil, false
}

// Entity returns the entity named by the root segment.
func (k Key) Entity() string {
	if k.IsZero() {
		return ""
	}
	v, _ := k.segments[0].lookup(TypeField)
	s, _ := v.(string)
	return s
}

// Parent returns k without its last segment. The parent of a root key
// is the zero Key.
func (k Key) Parent() Key {
	if len(k.segments) <= 1 {
		return Key{}
	}
	parent := Key{}
	for _, s := range k.segments[:len(k.segments)-1] {
		parent = parent.append(s)
	}
	return parent
}

// String returns the canonical form of k. Equal keys have equal strings.
func (k Key) String() string { return k.canon }

// Fingerprint returns the xxhash64 of the canonical form.
func (k Key) Fingerprint() uint64 { return xxhash.Sum64String(k.canon) }

// Equal reports structural equality.
func (k Key) Equal(other Key) bool { return k.canon == other.canon }

// Matches reports whether filter contains candidate: every segment of
// filter appears, with equal fields in equal order, at the same position
// in candidate.
func Matches(filter, candidate Key) bool {
	if filter.IsZero() || len(filter.segments) > len(candidate.segments) {
		return false
	}
	for i, s := range filter.segments {
		if s.canon != candidate.segments[i].canon {
			return false
		}
	}
	return true
}
