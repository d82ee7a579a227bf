// Package validate checks a parsed program against the sequencing, label,
// safety and technology rules of the HK dialect.
package validate

import (
	"fmt"
	"math"
	"strings"

	"github.com/mastercactapus/hkmacro/coord"
	"github.com/mastercactapus/hkmacro/hk"
	"github.com/mastercactapus/hkmacro/override"
	"github.com/mastercactapus/hkmacro/tech"
)

type checker struct {
	p      *hk.Program
	r      tech.Resolver
	limits Limits
	issues []hk.Issue
}

func (c *checker) add(sev hk.Severity, code hk.Code, opID int, format string, args ...interface{}) {
	c.issues = append(c.issues, hk.Issue{
		Severity:    sev,
		Code:        code,
		OperationID: opID,
		Message:     fmt.Sprintf(format, args...),
	})
}

func (c *checker) errorf(code hk.Code, opID int, format string, args ...interface{}) {
	c.add(hk.SeverityError, code, opID, format, args...)
}

func (c *checker) warnf(code hk.Code, opID int, format string, args ...interface{}) {
	c.add(hk.SeverityWarning, code, opID, format, args...)
}

// Validate runs every check against p and returns all issues found. It
// never stops at the first problem.
func Validate(p *hk.Program, r tech.Resolver, limits Limits) []hk.Issue {
	c := &checker{p: p, r: r, limits: limits}

	headerOK := c.header()
	c.labels()
	for i := range p.Operations {
		op := &p.Operations[i]
		c.sequence(op)
		if headerOK {
			c.safety(op)
		}
		c.technology(op)
		c.kerf(op)
		c.empty(op)
		c.arcs(op)
		c.conditionals(op)
	}

	return c.issues
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

func (c *checker) header() bool {
	h := c.p.Header
	if !finite(h.SheetWidth) || !finite(h.SheetHeight) || h.SheetWidth <= 0 || h.SheetHeight <= 0 {
		c.errorf(hk.CodeInvalidHeader, 0, "sheet size %gx%g must be positive", h.SheetWidth, h.SheetHeight)
		return false
	}

	if (c.limits.MaxSheetWidth > 0 && h.SheetWidth > c.limits.MaxSheetWidth) ||
		(c.limits.MaxSheetHeight > 0 && h.SheetHeight > c.limits.MaxSheetHeight) {
		c.errorf(hk.CodeSafetyLimitExceeded, 0, "sheet %gx%g exceeds machine limit %gx%g",
			h.SheetWidth, h.SheetHeight, c.limits.MaxSheetWidth, c.limits.MaxSheetHeight)
	}
	return true
}

func (c *checker) labels() {
	ops := c.p.Operations
	for i, op := range ops {
		if i > 0 {
			prev := ops[i-1].OperationID
			switch {
			case op.OperationID == prev:
				c.errorf(hk.CodeLabelMismatch, op.OperationID, "duplicate operation id %d", op.OperationID)
			case op.OperationID < prev:
				c.errorf(hk.CodeLabelMismatch, op.OperationID, "operation id %d does not follow %d", op.OperationID, prev)
			}
		}

		if exp := (i + 1) * hk.LabelStep; op.BaseLabel != exp {
			c.errorf(hk.CodeLabelMismatch, op.OperationID, "base label N%d, expected N%d", op.BaseLabel, exp)
		}
		if op.OperationID != op.BaseLabel+1 {
			c.errorf(hk.CodeLabelMismatch, op.OperationID, "operation id %d does not follow base label N%d", op.OperationID, op.BaseLabel)
		}
	}

	if exp := hk.EndLabelFor(len(ops)); c.p.EndLabel != 0 && c.p.EndLabel != exp {
		c.errorf(hk.CodeLabelMismatch, 0, "%s label N%d, expected N%d", hk.HeadEND, c.p.EndLabel, exp)
	}
}

// order lists the statement pairs that must appear in this order.
var order = [][2]hk.Head{
	{hk.HeadOST, hk.HeadSTR},
	{hk.HeadSTR, hk.HeadPIE},
	{hk.HeadPIE, hk.HeadLEA},
	{hk.HeadLEA, hk.HeadCUT},
	{hk.HeadCUT, hk.HeadSTO},
	{hk.HeadSTO, hk.HeadPED},
}

func (c *checker) sequence(op *hk.Operation) {
	id := op.OperationID
	seq := op.Sequence
	if seq == nil {
		seq = hk.CanonicalSequence(op.Cut.Ended)
	}

	pos := make(map[hk.Head]int, len(seq))
	for i := len(seq) - 1; i >= 0; i-- {
		pos[seq[i]] = i
	}
	for _, h := range []hk.Head{hk.HeadOST, hk.HeadSTR, hk.HeadPIE, hk.HeadLEA, hk.HeadCUT, hk.HeadSTO} {
		if _, ok := pos[h]; !ok {
			c.errorf(hk.CodeSequenceViolation, id, "missing %s", h)
		}
	}
	for _, pair := range order {
		a, okA := pos[pair[0]]
		b, okB := pos[pair[1]]
		if okA && okB && a > b {
			c.errorf(hk.CodeSequenceViolation, id, "%s before %s", pair[1], pair[0])
		}
	}

	cut := op.Cut
	if cut.FirstCutIndex < 0 || cut.FirstCutIndex > len(cut.Motions) {
		c.errorf(hk.CodeSequenceViolation, id, "cut marker index %d outside of %d motions", cut.FirstCutIndex, len(cut.Motions))
	} else {
		for i, m := range cut.Motions {
			switch {
			case i < cut.FirstCutIndex && m.Role == hk.RoleCut:
				c.errorf(hk.CodeSequenceViolation, id, "cut motion %d before %s", i+1, hk.HeadCUT)
			case i >= cut.FirstCutIndex && m.Role == hk.RoleLead:
				c.errorf(hk.CodeSequenceViolation, id, "lead motion %d after %s", i+1, hk.HeadCUT)
			}
		}
	}

	for _, v := range cut.Verbatim {
		if v.Conditional && v.BeforeCut {
			c.errorf(hk.CodeSequenceViolation, id, "conditional %q before %s", v.Text, hk.HeadCUT)
		}
	}
}

// safety reports at most one issue per operation, listing every point
// outside the sheet.
func (c *checker) safety(op *hk.Operation) {
	h := c.p.Header
	m := c.limits.Margin + h.Margin.Or(0)
	bounds := coord.Box{Max: coord.Point{X: h.SheetWidth, Y: h.SheetHeight}}.Grow(m)

	var outside []string
	check := func(name string, p coord.Point) {
		if !p.IsFinite() || !bounds.Contains(p) {
			outside = append(outside, fmt.Sprintf("%s (%s, %s)", name, hk.FormatCoord(p.X), hk.FormatCoord(p.Y)))
		}
	}
	check("anchor", op.Anchor.Point)
	for i, mo := range op.Cut.Motions {
		check(fmt.Sprintf("motion %d", i+1), mo.End)
	}
	if len(outside) == 0 {
		return
	}

	c.errorf(hk.CodeSafetyLimitExceeded, op.OperationID, "%d point(s) outside sheet %gx%g (margin %g): %s",
		len(outside), h.SheetWidth, h.SheetHeight, m, joinList(outside))
}

func joinList(s []string) string {
	const max = 5
	if len(s) <= max {
		return strings.Join(s, ", ")
	}
	return strings.Join(s[:max], ", ") + fmt.Sprintf(" and %d more", len(s)-max)
}

func (c *checker) technology(op *hk.Operation) {
	h := c.p.Header
	res, err := c.r.Resolve(h.Material, h.ThicknessMM(), string(op.Cut.Type), override.NonZero(op.Technology))
	if err != nil {
		c.errorf(hk.CodeUnresolvedTechnology, op.OperationID, "%v", err)
		return
	}
	if res.UsedFallback() {
		c.warnf(hk.CodeTechnologyFallback, op.OperationID, "no technology for %s/%s/%s, using fallback %d",
			h.Material, res.Key, op.Cut.Type, res.Number)
	}
	if res.Number < c.limits.MinTechnology || res.Number > c.limits.MaxTechnology {
		c.errorf(hk.CodeInvalidTechnology, op.OperationID, "technology %d (%s) outside %d..%d",
			res.Number, res.Source, c.limits.MinTechnology, c.limits.MaxTechnology)
	}
}

func (c *checker) kerf(op *hk.Operation) {
	if k, ok := op.Cut.Kerf.Get(); ok && !c.limits.kerfAllowed(k) {
		c.errorf(hk.CodeInvalidKerfMode, op.OperationID, "kerf mode %d is not allowed", k)
	}
}

func (c *checker) empty(op *hk.Operation) {
	cut := op.Cut
	if cut.Type != hk.OpPierceOnly && len(cut.Motions) < c.limits.MinMotions {
		c.warnf(hk.CodeEmptyCutSequence, op.OperationID, "%d motion(s), expected at least %d", len(cut.Motions), c.limits.MinMotions)
	}
	if !cut.LeadTarget.IsSet() {
		c.warnf(hk.CodeEmptyCutSequence, op.OperationID, "no lead target")
	}
}

func (c *checker) arcs(op *hk.Operation) {
	for i, m := range op.Cut.Motions {
		if !m.Kind.Circular() {
			continue
		}
		if !m.Center.IsFinite() || m.Center.Equal(coord.Point{}) {
			c.errorf(hk.CodeInvalidArc, op.OperationID, "motion %d: invalid arc center offset (%g, %g)", i+1, m.Center.X, m.Center.Y)
		}
	}
}

func (c *checker) conditionals(op *hk.Operation) {
	v := op.Cut.Verbatim
	for i := 1; i < len(v); i++ {
		if v[i].Conditional && v[i-1].Conditional && v[i].Text == v[i-1].Text &&
			v[i].After == v[i-1].After && v[i].BeforeCut == v[i-1].BeforeCut {
			c.errorf(hk.CodeDuplicateConditional, op.OperationID, "%q repeated on consecutive lines", v[i].Text)
		}
	}
}
