// Package extract turns one operation of a program into a standalone
// program whose sheet is the part's bounding box.
package extract

import (
	"errors"
	"fmt"
	"math"

	"github.com/mastercactapus/hkmacro/coord"
	"github.com/mastercactapus/hkmacro/hk"
	"github.com/mastercactapus/hkmacro/override"
	"github.com/mastercactapus/hkmacro/tech"
)

// Error codes.
const (
	CodeOperationNotFound    = "OPERATION_NOT_FOUND"
	CodeUnresolvedTechnology = tech.CodeUnresolved
	CodeInvalidArc           = "INVALID_ARC"
	CodeInvalidMargin        = "INVALID_MARGIN"
)

// Error is returned when an operation cannot be extracted.
type Error struct {
	Code        string
	OperationID int
	Err         error
}

func (e *Error) Error() string {
	return fmt.Sprintf("extract operation %d: %s: %v", e.OperationID, e.Code, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Result is an extracted program.
type Result struct {
	Program *hk.Program

	// Warnings holds advisory issues, e.g. a technology fallback.
	Warnings []hk.Issue
}

// Extract copies operation operationID out of p, translating it so the
// bounding box of its anchor, start, lead target and motion endpoints
// starts at margin on both axes. Arc center offsets are relative and are
// not translated.
//
// The technology number is resolved again from the header material and
// thickness instead of being copied. p is not modified.
func Extract(p *hk.Program, operationID int, r tech.Resolver, margin float64) (*Result, error) {
	fail := func(code string, err error) (*Result, error) {
		return nil, &Error{Code: code, OperationID: operationID, Err: err}
	}

	if math.IsNaN(margin) || math.IsInf(margin, 0) || margin < 0 {
		return fail(CodeInvalidMargin, fmt.Errorf("margin %g must be a non-negative number", margin))
	}
	src, ok := p.Operation(operationID)
	if !ok {
		return fail(CodeOperationNotFound, errors.New("no such operation"))
	}
	for i, m := range src.Cut.Motions {
		if m.Kind.Circular() && (!m.Center.IsFinite() || m.Center.Equal(coord.Point{})) {
			return fail(CodeInvalidArc, fmt.Errorf("motion %d: invalid arc center offset (%g, %g)", i+1, m.Center.X, m.Center.Y))
		}
	}

	pts := []coord.Point{src.Anchor.Point}
	pts = append(pts, src.Cut.Points()...)
	if lt, ok := src.Cut.LeadTarget.Get(); ok {
		pts = append(pts, lt)
	}
	box, _ := coord.BoundingBox(pts)
	origin := box.Min.Sub(coord.Point{X: margin, Y: margin})

	cut := src.Cut
	cut.Start = cut.Start.Sub(origin)
	if lt, ok := cut.LeadTarget.Get(); ok {
		cut.LeadTarget = override.Explicit(lt.Sub(origin))
	}
	cut.Motions = make([]hk.Motion, len(src.Cut.Motions))
	for i, m := range src.Cut.Motions {
		m.End = m.End.Sub(origin)
		cut.Motions[i] = m
	}
	cut.Verbatim = append([]hk.Verbatim(nil), src.Cut.Verbatim...)

	h := p.Header
	header := hk.Header{
		Library:      h.Library,
		Material:     h.Material,
		ProcessClass: h.ProcessClass,
		InitMode:     h.InitMode,
		SheetWidth:   box.Width() + 2*margin,
		SheetHeight:  box.Height() + 2*margin,
		Margin:       override.Explicit(margin),
		Thickness:    h.Thickness,
	}

	res, err := r.Resolve(header.Material, header.ThicknessMM(), string(cut.Type), override.None[int]())
	if err != nil {
		return fail(CodeUnresolvedTechnology, err)
	}

	const base = hk.LabelStep
	out := &hk.Program{
		Header:   header,
		Verbatim: append([]string(nil), p.Verbatim...),
		Operations: []hk.Operation{{
			BaseLabel:   base,
			OperationID: base + 1,
			Anchor:      hk.Anchor{Point: src.Anchor.Sub(origin), Angle: src.Anchor.Angle},
			Technology:  res.Number,
			Cut:         cut,
		}},
		EndLabel: hk.EndLabelFor(1),
	}

	result := &Result{Program: out}
	if res.UsedFallback() {
		result.Warnings = append(result.Warnings, hk.Issue{
			Severity:    hk.SeverityWarning,
			Code:        hk.CodeTechnologyFallback,
			OperationID: base + 1,
			Message:     fmt.Sprintf("no technology for %s/%s/%s, using fallback %d", header.Material, res.Key, cut.Type, res.Number),
		})
	}
	return result, nil
}
