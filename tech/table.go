// Package tech maps material, sheet thickness and operation type to the
// machine's technology number.
package tech

import (
	"fmt"
	"math"
	"strconv"

	"gopkg.in/yaml.v3"
)

// DefaultKey is the thickness key used when no thickness-specific entry
// exists or the thickness is unknown.
const DefaultKey = "default"

// Operation types.
const (
	OpContour    = "contour"
	OpSlot       = "slot"
	OpPierceOnly = "pierce-only"
)

// Table is material -> thickness key -> operation type -> technology number.
type Table map[string]map[string]map[string]int

// ThicknessKey rounds mm to one decimal place, e.g. "1.5mm". Non-finite or
// non-positive thickness maps to DefaultKey.
func ThicknessKey(mm float64) string {
	if math.IsNaN(mm) || math.IsInf(mm, 0) || mm <= 0 {
		return DefaultKey
	}
	return strconv.FormatFloat(math.Round(mm*10)/10, 'f', 1, 64) + "mm"
}

func (t Table) lookup(material, key, op string) (int, bool) {
	n, ok := t[material][key][op]
	return n, ok
}

// Validate checks every entry is a positive number.
func (t Table) Validate() error {
	for mat, byThickness := range t {
		for key, byOp := range byThickness {
			for op, n := range byOp {
				if n <= 0 {
					return fmt.Errorf("technology %s/%s/%s: must be positive, got %d", mat, key, op, n)
				}
			}
		}
	}
	return nil
}

// ParseTable reads an operator-edited table in YAML or JSON form:
//
//	S304:
//	  1.5mm: {contour: 5, slot: 3}
//	  default: {contour: 9}
func ParseTable(data []byte) (Table, error) {
	var t Table
	err := yaml.Unmarshal(data, &t)
	if err != nil {
		return nil, fmt.Errorf("parse technology table: %w", err)
	}
	if t == nil {
		t = Table{}
	}
	err = t.Validate()
	if err != nil {
		return nil, err
	}
	return t, nil
}
