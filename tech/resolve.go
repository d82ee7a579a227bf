package tech

import (
	"fmt"

	"github.com/mastercactapus/hkmacro/override"
)

// CodeUnresolved is the issue code reported when no technology is found.
const CodeUnresolved = "UNRESOLVED_TECHNOLOGY"

// Source records which layer produced a technology number.
type Source int

const (
	SourceExplicit Source = iota + 1
	SourceThickness
	SourceDefault
	SourceFallback
)

func (s Source) String() string {
	switch s {
	case SourceExplicit:
		return "explicit"
	case SourceThickness:
		return "thickness"
	case SourceDefault:
		return "default"
	case SourceFallback:
		return "fallback"
	}
	return "unknown"
}

// Resolution is a resolved technology number.
type Resolution struct {
	Number int
	Source Source
	Key    string
}

// UsedFallback is true if the global fallback had to be used.
func (r Resolution) UsedFallback() bool { return r.Source == SourceFallback }

// UnresolvedError is returned when no layer yields a technology number.
type UnresolvedError struct {
	Material  string
	Key       string
	Operation string
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("no technology for %s/%s/%s and no fallback configured", e.Material, e.Key, e.Operation)
}

func (e *UnresolvedError) Code() string { return CodeUnresolved }

// Resolver resolves technology numbers against a table, falling back to a
// global default.
type Resolver struct {
	Table Table

	// Fallback is used when the table has no entry. It only applies if
	// it is positive.
	Fallback override.Value[int]
}

// Resolve picks the technology number for an operation.
//
// An explicit non-zero override always wins. Otherwise the table is
// consulted with the thickness key, then with DefaultKey, and finally the
// fallback is used.
func (r Resolver) Resolve(material string, thicknessMM float64, op string, explicit override.Value[int]) (Resolution, error) {
	if n, ok := explicit.Get(); ok && n != 0 {
		return Resolution{Number: n, Source: SourceExplicit}, nil
	}

	key := ThicknessKey(thicknessMM)
	if n, ok := r.Table.lookup(material, key, op); ok {
		src := SourceThickness
		if key == DefaultKey {
			src = SourceDefault
		}
		return Resolution{Number: n, Source: src, Key: key}, nil
	}
	if n, ok := r.Table.lookup(material, DefaultKey, op); ok {
		return Resolution{Number: n, Source: SourceDefault, Key: DefaultKey}, nil
	}

	if n, ok := r.Fallback.Get(); ok && n > 0 {
		return Resolution{Number: n, Source: SourceFallback, Key: key}, nil
	}

	return Resolution{}, &UnresolvedError{Material: material, Key: key, Operation: op}
}
