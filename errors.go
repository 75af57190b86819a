package querycache

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/jonwraymond/querycache/key"
	"github.com/jonwraymond/querycache/registry"
)

var (
	// ErrNilRegistry is returned by New when no registry is supplied.
	ErrNilRegistry = errors.New("querycache: registry is nil")

	// ErrUnknownKey is returned when a key was not produced by any
	// registered leaf.
	ErrUnknownKey = errors.New("querycache: key is not a registered leaf")

	// ErrNilUpdate is returned when an update function is nil.
	ErrNilUpdate = errors.New("querycache: nil update function")
)

// KeyMismatchError reports a value whose type is not the model registered
// for its key.
type KeyMismatchError struct {
	Key  key.Key
	Leaf registry.LeafInfo
	Got  reflect.Type // nil for an untyped nil value
}

func (e *KeyMismatchError) Error() string {
	got := "nil"
	if e.Got != nil {
		got = e.Got.String()
	}
	return fmt.Sprintf("querycache: %s expects %s, got %s", e.Leaf, e.Leaf.Model, got)
}

// conforms reports whether v can be stored under a leaf of type model.
func conforms(model reflect.Type, v any) bool {
	if v == nil {
		switch model.Kind() {
		case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			return true
		default:
			return false
		}
	}
	t := reflect.TypeOf(v)
	if t == model {
		return true
	}
	return model.Kind() == reflect.Interface && t.Implements(model)
}

func checkValue(info registry.LeafInfo, k key.Key, v any) error {
	if conforms(info.Model, v) {
		return nil
	}
	var got reflect.Type
	if v != nil {
		got = reflect.TypeOf(v)
	}
	return &KeyMismatchError{Key: k, Leaf: info, Got: got}
}
