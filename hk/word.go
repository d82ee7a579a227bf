package hk

import (
	"strconv"
)

// Word is an axis or arc-offset word on a motion line, e.g. X28.6017.
type Word struct {
	W   byte
	Arg float64
}

func (w Word) IsAxis() bool {
	switch w.W {
	case 'X', 'Y':
		return true
	}
	return false
}

func (w Word) IsOffset() bool {
	switch w.W {
	case 'I', 'J':
		return true
	}
	return false
}

func (w Word) IsValid() bool {
	return w.IsAxis() || w.IsOffset()
}

// Decimals is the fixed precision for coordinates in emitted text.
const Decimals = 4

// FormatCoord formats a coordinate or offset with 4 fixed decimals.
func FormatCoord(f float64) string {
	s := strconv.FormatFloat(f, 'f', Decimals, 64)
	if s == "-0.0000" {
		return "0.0000"
	}
	return s
}

func (w Word) String() string {
	return string(w.W) + FormatCoord(w.Arg)
}
