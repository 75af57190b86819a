package registry

import (
	"fmt"
	"reflect"

	"github.com/jonwraymond/querycache/key"
)

// Leaf is a query-key pattern statically bound to the model type M.
type Leaf[M any] struct {
	decl *leafDecl
}

// DeclareLeaf declares a leaf named name beneath parent (nil means the
// root) whose keys always cache values of type M.
//
// Declaring the same name again with the same model and shape returns the
// existing leaf. Any other redeclaration is recorded as a configuration
// error and reported by Bind.
func DeclareLeaf[M any](e *Entity, name string, parent *Filter, params ...key.Param) *Leaf[M] {
	e.checkOpen()
	parent = e.resolveParent(name, parent)
	model := reflect.TypeFor[M]()

	lvl, err := key.NewLevel(params...)
	decl := &leafDecl{entity: e, name: name, parent: parent, level: lvl, model: model, err: err}
	if err != nil {
		e.fail(name, "leaf level: %v", err)
	}

	if prev, dup := e.byName[name]; dup {
		switch {
		case prev.model != model:
			e.fail(name, "leaf registered with two model types: %s and %s", prev.model, model)
		case prev.parent != parent || !prev.level.SameShape(lvl):
			e.fail(name, "leaf redeclared with a different key shape")
		default:
			return &Leaf[M]{decl: prev}
		}
		return &Leaf[M]{decl: decl}
	}

	e.byName[name] = decl
	e.leaves = append(e.leaves, decl)
	return &Leaf[M]{decl: decl}
}

// Name returns the leaf name.
func (l *Leaf[M]) Name() string { return l.decl.name }

// Info describes the leaf.
func (l *Leaf[M]) Info() LeafInfo { return l.decl.info() }

// Key extends parent, a key produced by the leaf's parent filter.
func (l *Leaf[M]) Key(parent key.Key, values key.Values) (QueryKey[M], error) {
	if err := l.decl.invalid(); err != nil {
		return QueryKey[M]{}, err
	}
	if !l.decl.parent.accepts(parent) {
		return QueryKey[M]{}, fmt.Errorf("%w: %s under %s", ErrParentMismatch, parent, l.decl.parent.name)
	}
	k, err := key.Extend(parent, l.decl.level, values)
	if err != nil {
		return QueryKey[M]{}, err
	}
	return QueryKey[M]{key: k, leaf: l.decl}, nil
}

// Build builds a query key from one flat set of values covering every
// variable of the chain.
func (l *Leaf[M]) Build(values key.Values) (QueryKey[M], error) {
	if err := l.decl.invalid(); err != nil {
		return QueryKey[M]{}, err
	}
	k, err := buildChain(l.decl.entity.name, l.decl.chain(), values)
	if err != nil {
		return QueryKey[M]{}, err
	}
	return QueryKey[M]{key: k, leaf: l.decl}, nil
}

// MustBuild is like Build but panics on error.
func (l *Leaf[M]) MustBuild(values key.Values) QueryKey[M] {
	q, err := l.Build(values)
	if err != nil {
		panic(err)
	}
	return q
}

// Narrow returns a typed key for k when k was produced by this leaf.
func (l *Leaf[M]) Narrow(k key.Key) (QueryKey[M], bool) {
	if !acceptsChain(l.decl.entity.name, l.decl.chain(), k) {
		return QueryKey[M]{}, false
	}
	return QueryKey[M]{key: k, leaf: l.decl}, true
}

// QueryKey is a leaf key whose cached values have type M. Only Leaf[M]
// produces non-zero QueryKey[M] values.
type QueryKey[M any] struct {
	key  key.Key
	leaf *leafDecl
}

// Key returns the untyped structural key.
func (q QueryKey[M]) Key() key.Key { return q.key }

// Leaf describes the leaf the key was built from.
func (q QueryKey[M]) Leaf() LeafInfo {
	if q.leaf == nil {
		return LeafInfo{}
	}
	return q.leaf.info()
}

// IsZero reports whether q was not built by a Leaf.
func (q QueryKey[M]) IsZero() bool { return q.leaf == nil }

// String returns the canonical key form.
func (q QueryKey[M]) String() string { return q.key.String() }
