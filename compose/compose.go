// Package compose builds HK programs from job descriptions of 2D part
// paths.
package compose

import (
	"fmt"
	"strings"

	"github.com/mastercactapus/hkmacro/coord"
	"github.com/mastercactapus/hkmacro/hk"
	"github.com/mastercactapus/hkmacro/override"
	"github.com/mastercactapus/hkmacro/tech"
)

// cutting reports whether a move role removes material. Every other
// classification is a non-cutting approach.
func cutting(role string) (bool, error) {
	switch strings.ToLower(role) {
	case "", "cut":
		return true, nil
	case "lead-in", "lead-out", "pierce", "ramp", "rapid", "link":
		return false, nil
	}
	return false, fmt.Errorf("unknown move role %q", role)
}

func opType(s string) (hk.OpType, error) {
	switch t := hk.OpType(strings.ToLower(s)); t {
	case "":
		return hk.OpContour, nil
	case hk.OpContour, hk.OpSlot, hk.OpPierceOnly:
		return t, nil
	}
	return "", fmt.Errorf("unknown operation type %q", s)
}

// Build numbers the parts of job as operations, resolves their technology
// and orientation flags, and returns the program with any technology
// fallback warnings.
//
// Moves before the first cutting move are leads. HKCUT is placed before
// the first cutting move; the dialect has no way to stop cutting before
// HKSTO, so anything after it is a cut.
func Build(job *Job, r tech.Resolver) (*hk.Program, []hk.Issue, error) {
	p := &hk.Program{
		Header: hk.Header{
			Library:      job.Library,
			Material:     job.Material,
			ProcessClass: job.ProcessClass,
			InitMode:     job.InitMode,
			SheetWidth:   job.SheetX,
			SheetHeight:  job.SheetY,
			Margin:       override.NonZero(job.Margin),
			Thickness:    override.NonZero(job.Thickness),
		},
		EndLabel: hk.EndLabelFor(len(job.Parts)),
	}

	var warnings []hk.Issue
	for i, part := range job.Parts {
		base := (i + 1) * hk.LabelStep
		op, err := buildOperation(part, base)
		if err != nil {
			return nil, nil, fmt.Errorf("part %d: %w", i+1, err)
		}

		res, err := r.Resolve(job.Material, job.Thickness, string(op.Cut.Type), override.NonZero(part.Technology))
		if err != nil {
			return nil, nil, fmt.Errorf("part %d: %w", i+1, err)
		}
		op.Technology = res.Number
		if res.UsedFallback() {
			warnings = append(warnings, hk.Issue{
				Severity:    hk.SeverityWarning,
				Code:        hk.CodeTechnologyFallback,
				OperationID: op.OperationID,
				Message:     fmt.Sprintf("no technology for %s/%s/%s, using fallback %d", job.Material, res.Key, op.Cut.Type, res.Number),
			})
		}

		p.Operations = append(p.Operations, op)
	}

	return p, warnings, nil
}

func buildOperation(part Part, base int) (hk.Operation, error) {
	typ, err := opType(part.Type)
	if err != nil {
		return hk.Operation{}, err
	}
	orient, ok := coord.ParseOrientation(strings.ToLower(part.Orientation))
	if !ok {
		return hk.Operation{}, fmt.Errorf("unknown orientation %q", part.Orientation)
	}

	cut := hk.CutSequence{
		Type:          typ,
		Start:         coord.Point{X: part.Start.X, Y: part.Start.Y},
		FirstCutIndex: -1,
		Ended:         true,
	}
	if part.Kerf != nil {
		cut.Kerf = override.Explicit(hk.KerfMode(*part.Kerf))
	}
	if part.Lead != nil {
		cut.LeadTarget = override.Explicit(coord.Point{X: part.Lead.X, Y: part.Lead.Y})
	}

	pos := cut.Start
	for i, mv := range part.Moves {
		m := hk.Motion{End: pos, Center: coord.Point{X: mv.I, Y: mv.J}}
		switch mv.G {
		case 1:
			m.Kind = hk.Linear
			m.Center = coord.Point{}
		case 2:
			m.Kind = hk.ArcCW
		case 3:
			m.Kind = hk.ArcCCW
		default:
			return hk.Operation{}, fmt.Errorf("move %d: unsupported motion G%d", i+1, mv.G)
		}
		if mv.X != nil {
			m.End.X = *mv.X
		}
		if mv.Y != nil {
			m.End.Y = *mv.Y
		}

		isCut, err := cutting(mv.Role)
		if err != nil {
			return hk.Operation{}, fmt.Errorf("move %d: %w", i+1, err)
		}
		if isCut && cut.FirstCutIndex == -1 {
			cut.FirstCutIndex = i
		}
		cut.Motions = append(cut.Motions, m)
		pos = m.End
	}
	if cut.FirstCutIndex == -1 {
		cut.FirstCutIndex = len(cut.Motions)
	}
	for i := range cut.Motions {
		if i >= cut.FirstCutIndex {
			cut.Motions[i].Role = hk.RoleCut
		}
	}

	if part.When != "" {
		if !hk.IsConditional(part.When) {
			return hk.Operation{}, fmt.Errorf("invalid conditional %q", part.When)
		}
		cut.Verbatim = []hk.Verbatim{{Text: hk.NormalizeConditional(part.When), After: len(cut.Motions), Conditional: true}}
	}

	cut.Orientation = coord.ResolveOrientationFlag(cut.Contour(), orient)

	return hk.Operation{
		BaseLabel:   base,
		OperationID: base + 1,
		Anchor:      hk.Anchor{Point: coord.Point{X: part.Anchor.X, Y: part.Anchor.Y}, Angle: part.Angle},
		Cut:         cut,
	}, nil
}
