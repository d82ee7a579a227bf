// Package override models layered configuration values that are either
// absent or explicitly set.
//
// Lookups that fall back through several sources (explicit argument,
// table entry, configured default) use Value instead of treating the zero
// value as "unset".
package override

import "fmt"

// Value holds an optional T.
type Value[T any] struct {
	v  T
	ok bool
}

// None returns an absent value.
func None[T any]() Value[T] { return Value[T]{} }

// Explicit returns a value that is set to v, even if v is the zero value.
func Explicit[T any](v T) Value[T] { return Value[T]{v: v, ok: true} }

// NonZero returns Explicit(v) unless v is the zero value of T, in which
// case it returns None.
//
// This is the dialect's "zero means absent" rule, e.g. a technology number
// of 0 on HKOST.
func NonZero[T comparable](v T) Value[T] {
	var zero T
	if v == zero {
		return None[T]()
	}
	return Explicit(v)
}

// Get returns the value and whether it is set.
func (o Value[T]) Get() (T, bool) { return o.v, o.ok }

// IsSet reports whether o holds a value.
func (o Value[T]) IsSet() bool { return o.ok }

// Or returns the held value, or def if o is absent.
func (o Value[T]) Or(def T) T {
	if o.ok {
		return o.v
	}
	return def
}

// Else returns o if it is set, otherwise next.
func (o Value[T]) Else(next Value[T]) Value[T] {
	if o.ok {
		return o
	}
	return next
}

func (o Value[T]) String() string {
	if !o.ok {
		return "<none>"
	}
	return fmt.Sprint(o.v)
}
