// Package hk parses, represents and emits HK macro programs for sheet
// laser cutting machines.
//
// A program has a header (HKLDB, HKINI), a registration (HKOST, HKPPP) for
// every operation, a cut body per operation
// (HKSTR, HKPIE, HKLEA, leads, HKCUT, cuts, HKSTO, HKPED) and a footer
// (HKEND, M30).
package hk

import (
	"github.com/mastercactapus/hkmacro/coord"
	"github.com/mastercactapus/hkmacro/override"
)

// LabelStep is the N-label distance between consecutive operations.
const LabelStep = 10000

// KerfMode selects whether the machine compensates the path for the beam
// width.
type KerfMode int

const (
	KerfNone        KerfMode = 0
	KerfCompensated KerfMode = 1
)

// Valid is true for the two modes the dialect defines.
func (k KerfMode) Valid() bool { return k == KerfNone || k == KerfCompensated }

// OpType is the technology operation type of a cut.
type OpType string

const (
	OpContour    OpType = "contour"
	OpSlot       OpType = "slot"
	OpPierceOnly OpType = "pierce-only"
)

// MotionKind is the interpolation of a motion line.
type MotionKind int

const (
	Linear MotionKind = iota // G1
	ArcCW                    // G2
	ArcCCW                   // G3
)

func (k MotionKind) Circular() bool { return k == ArcCW || k == ArcCCW }

// Code returns the G word for k.
func (k MotionKind) Code() Head {
	switch k {
	case ArcCW:
		return HeadG2
	case ArcCCW:
		return HeadG3
	}
	return HeadG1
}

// Role separates non-cutting approach motions from genuine cuts.
type Role int

const (
	RoleLead Role = iota
	RoleCut
)

func (r Role) String() string {
	if r == RoleCut {
		return "cut"
	}
	return "lead"
}

// Motion is a single G1/G2/G3 line.
type Motion struct {
	Kind MotionKind
	End  coord.Point

	// Center is the arc center relative to the start of the motion.
	// It is unused for Linear.
	Center coord.Point

	Role Role
}

// Verbatim is a line carried through a cut body without interpretation:
// a WHEN conditional or a whitelisted pass-through statement.
type Verbatim struct {
	Text string

	// After is the number of motions that precede the line.
	After int

	// BeforeCut is set if the line came before HKCUT.
	BeforeCut bool

	Conditional bool
}

// CutSequence is the HKSTR..HKSTO body of an operation.
type CutSequence struct {
	Orientation int
	Kerf        override.Value[KerfMode]
	Type        OpType

	// Start is the pierce point.
	Start coord.Point

	// LeadTarget is the absolute first point after piercing. HKSTR carries
	// it as an offset from Start.
	LeadTarget override.Value[coord.Point]

	Motions []Motion

	// FirstCutIndex is the index of the first cutting motion, where HKCUT
	// is emitted. It equals len(Motions) if nothing is cut.
	FirstCutIndex int

	Verbatim []Verbatim

	// Ended is set if HKPED follows HKSTO.
	Ended bool
}

// Points returns start and every motion endpoint, in order.
func (c CutSequence) Points() []coord.Point {
	pts := make([]coord.Point, 0, len(c.Motions)+1)
	pts = append(pts, c.Start)
	for _, m := range c.Motions {
		pts = append(pts, m.End)
	}
	return pts
}

// Contour returns the start of the cutting path followed by every cut
// endpoint.
func (c CutSequence) Contour() []coord.Point {
	from := c.Start
	if c.FirstCutIndex > 0 && c.FirstCutIndex <= len(c.Motions) {
		from = c.Motions[c.FirstCutIndex-1].End
	}
	pts := []coord.Point{from}
	for i := c.FirstCutIndex; i >= 0 && i < len(c.Motions); i++ {
		pts = append(pts, c.Motions[i].End)
	}
	return pts
}

// Anchor is the registration point and rotation of an operation.
type Anchor struct {
	coord.Point
	Angle float64
}

// Operation is one registered part path.
type Operation struct {
	BaseLabel   int
	OperationID int
	Anchor      Anchor

	// Technology is 0 when it must be resolved from the technology table.
	Technology int

	Cut CutSequence

	// Sequence is the order macro statements were seen in for this
	// operation. Nil means canonical.
	Sequence []Head
}

// Header is the HKLDB/HKINI program envelope.
type Header struct {
	Library      int
	Material     string
	ProcessClass int
	InitMode     int
	SheetWidth   float64
	SheetHeight  float64

	// Margin and Thickness are not carried in the macro text.
	Margin    override.Value[float64]
	Thickness override.Value[float64]
}

// ThicknessMM returns the sheet thickness, or 0 if unknown.
func (h Header) ThicknessMM() float64 { return h.Thickness.Or(0) }

// Program is a parsed HK macro program.
type Program struct {
	Header Header

	// Verbatim holds pass-through lines found outside of cut bodies.
	Verbatim []string

	Operations []Operation

	// EndLabel is the N-label found on HKEND, 0 if there was none.
	EndLabel int
}

// Operation returns the operation with the given id.
func (p *Program) Operation(id int) (*Operation, bool) {
	for i := range p.Operations {
		if p.Operations[i].OperationID == id {
			return &p.Operations[i], true
		}
	}
	return nil, false
}

// EndLabelFor returns the HKEND label for a program with n operations.
func EndLabelFor(n int) int { return (n + 1) * LabelStep }

// CanonicalSequence is the statement order the emitter produces.
func CanonicalSequence(ended bool) []Head {
	seq := []Head{HeadOST, HeadPPP, HeadSTR, HeadPIE, HeadLEA, HeadCUT, HeadSTO}
	if ended {
		seq = append(seq, HeadPED)
	}
	return seq
}
