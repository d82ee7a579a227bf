package validate

import "github.com/mastercactapus/hkmacro/hk"

// Limits are the operator configured safety bounds.
type Limits struct {
	// MaxSheetWidth and MaxSheetHeight bound the HKINI sheet. Zero means
	// unlimited.
	MaxSheetWidth  float64
	MaxSheetHeight float64

	MinTechnology int
	MaxTechnology int

	AllowedKerfModes []hk.KerfMode

	// MinMotions is the least number of motions a cut body should have,
	// unless it is pierce-only.
	MinMotions int

	// Margin is added to the header margin around the sheet.
	Margin float64
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{
		MaxSheetWidth:    4000,
		MaxSheetHeight:   2000,
		MinTechnology:    1,
		MaxTechnology:    999,
		AllowedKerfModes: []hk.KerfMode{hk.KerfNone, hk.KerfCompensated},
		MinMotions:       1,
	}
}

func (l Limits) kerfAllowed(k hk.KerfMode) bool {
	for _, a := range l.AllowedKerfModes {
		if a == k {
			return true
		}
	}
	return false
}
