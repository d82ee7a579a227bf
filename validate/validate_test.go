package validate

import (
	"fmt"
	"strings"
	"testing"

	"github.com/mastercactapus/hkmacro/coord"
	"github.com/mastercactapus/hkmacro/hk"
	"github.com/mastercactapus/hkmacro/override"
	"github.com/mastercactapus/hkmacro/tech"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var resolver = tech.Resolver{Table: tech.Table{
	"S304": {"default": {tech.OpContour: 5, tech.OpPierceOnly: 9}},
}}

func program(body ...string) *hk.Program {
	src := []string{
		`HKLDB(3,"S304",1,0,0,0)`,
		`HKINI(2,100,50,0,0,0)`,
		`N10000 HKOST(10,10,0,10001,0,0,0,0)`,
		`HKPPP`,
	}
	src = append(src, body...)
	src = append(src, `N20000 HKEND(0,0,0)`, `M30`)
	return hk.MustParse(strings.Join(src, "\n"))
}

func validProgram() *hk.Program {
	return program(
		`N10001 HKSTR(0,1,10,10,0,1,0,0)`,
		`HKPIE(0,0,0)`,
		`HKLEA(0,0,0)`,
		`G1 X11 Y10`,
		`HKCUT(0,0,0)`,
		`G1 X20 Y10`,
		`G2 X20 Y20 I0 J5`,
		`WHEN R0=1 DO R1=2`,
		`G1 X11 Y10`,
		`HKSTO(0,0,0)`,
	)
}

func codes(issues []hk.Issue) []hk.Code {
	var res []hk.Code
	for _, i := range issues {
		res = append(res, i.Code)
	}
	return res
}

func only(issues []hk.Issue, code hk.Code) []hk.Issue {
	var res []hk.Issue
	for _, i := range issues {
		if i.Code == code {
			res = append(res, i)
		}
	}
	return res
}

func TestValidate_Valid(t *testing.T) {
	issues := Validate(validProgram(), resolver, DefaultLimits())
	assert.Empty(t, issues)
	assert.False(t, hk.HasErrors(issues))
}

func TestValidate_Sequence(t *testing.T) {
	t.Run("cut motion before marker", func(t *testing.T) {
		p := validProgram()
		p.Operations[0].Cut.Motions[0].Role = hk.RoleCut

		issues := Validate(p, resolver, DefaultLimits())
		require.Len(t, issues, 1)
		assert.Equal(t, hk.CodeSequenceViolation, issues[0].Code)
		assert.Equal(t, hk.SeverityError, issues[0].Severity)
		assert.Equal(t, 10001, issues[0].OperationID)
		assert.Contains(t, issues[0].Message, "cut motion 1 before HKCUT")
	})

	t.Run("markers out of order", func(t *testing.T) {
		p := program(
			`N10001 HKSTR(0,1,10,10,0,1,0,0)`,
			`HKLEA(0,0,0)`,
			`WHEN R0=1 DO R1=2`,
			`HKCUT(0,0,0)`,
			`G1 X20 Y10`,
			`HKSTO(0,0,0)`,
		)

		issues := only(Validate(p, resolver, DefaultLimits()), hk.CodeSequenceViolation)
		require.Len(t, issues, 2)
		assert.Equal(t, "missing HKPIE", issues[0].Message)
		assert.Contains(t, issues[1].Message, "before HKCUT")
	})

	t.Run("marker index out of range", func(t *testing.T) {
		p := validProgram()
		p.Operations[0].Cut.FirstCutIndex = 10

		issues := only(Validate(p, resolver, DefaultLimits()), hk.CodeSequenceViolation)
		require.Len(t, issues, 1)
		assert.Contains(t, issues[0].Message, "outside of 4 motions")
	})

	t.Run("end marker before storage", func(t *testing.T) {
		p := validProgram()
		p.Operations[0].Sequence = []hk.Head{hk.HeadOST, hk.HeadPPP, hk.HeadSTR, hk.HeadPIE, hk.HeadLEA, hk.HeadCUT, hk.HeadPED, hk.HeadSTO}

		issues := only(Validate(p, resolver, DefaultLimits()), hk.CodeSequenceViolation)
		require.Len(t, issues, 1)
		assert.Equal(t, "HKPED before HKSTO", issues[0].Message)
	})
}

func TestValidate_Labels(t *testing.T) {
	p := validProgram()
	second := p.Operations[0]
	second.BaseLabel = 30000
	second.OperationID = 10001
	p.Operations = append(p.Operations, second)
	p.EndLabel = 20000

	issues := Validate(p, resolver, DefaultLimits())
	assert.Equal(t, []hk.Code{hk.CodeLabelMismatch, hk.CodeLabelMismatch, hk.CodeLabelMismatch, hk.CodeLabelMismatch}, codes(only(issues, hk.CodeLabelMismatch)))

	msgs := []string{}
	for _, i := range only(issues, hk.CodeLabelMismatch) {
		msgs = append(msgs, i.Message)
	}
	assert.Contains(t, msgs, "duplicate operation id 10001")
	assert.Contains(t, msgs, "base label N30000, expected N20000")
	assert.Contains(t, msgs, "operation id 10001 does not follow base label N30000")
	assert.Contains(t, msgs, "HKEND label N20000, expected N30000")
}

func TestValidate_Safety(t *testing.T) {
	p := validProgram()
	op := &p.Operations[0]
	op.Anchor.X = -5
	op.Cut.Motions[1].End.X = 150
	op.Cut.Motions[2].End.Y = 80

	issues := only(Validate(p, resolver, DefaultLimits()), hk.CodeSafetyLimitExceeded)
	require.Len(t, issues, 1)
	assert.Equal(t, 10001, issues[0].OperationID)
	assert.Contains(t, issues[0].Message, "3 point(s) outside sheet")

	limits := DefaultLimits()
	limits.Margin = 6
	p.Header.Margin = override.Explicit(50.0)
	assert.Empty(t, only(Validate(p, resolver, limits), hk.CodeSafetyLimitExceeded))
}

func TestValidate_SafetyOneOperation(t *testing.T) {
	body := func(label int, x float64) []string {
		return []string{
			fmt.Sprintf(`N%d HKSTR(0,1,%g,10,0,1,0,0)`, label, x),
			`HKPIE(0,0,0)`,
			`HKLEA(0,0,0)`,
			fmt.Sprintf(`G1 X%g Y10`, x+1),
			`HKCUT(0,0,0)`,
			fmt.Sprintf(`G1 X%g Y20`, x+1),
			fmt.Sprintf(`G1 X%g Y10`, x),
			`HKSTO(0,0,0)`,
		}
	}
	src := []string{
		`HKLDB(3,"S304",1,0,0,0)`,
		`HKINI(2,100,50,0,0,0)`,
		`N10000 HKOST(10,10,0,10001,0,0,0,0)`, `HKPPP`,
		`N20000 HKOST(101,10,0,20001,0,0,0,0)`, `HKPPP`,
		`N30000 HKOST(70,10,0,30001,0,0,0,0)`, `HKPPP`,
	}
	src = append(src, body(10001, 10)...)
	src = append(src, body(20001, 40)...)
	src = append(src, body(30001, 70)...)
	src = append(src, `N40000 HKEND(0,0,0)`, `M30`)
	p := hk.MustParse(strings.Join(src, "\n"))

	issues := Validate(p, resolver, DefaultLimits())
	safety := only(issues, hk.CodeSafetyLimitExceeded)
	require.Len(t, safety, 1)
	assert.Equal(t, 20001, safety[0].OperationID)
	for _, i := range issues {
		assert.NotEqual(t, 10001, i.OperationID, i.String())
		assert.NotEqual(t, 30001, i.OperationID, i.String())
	}
	assert.Equal(t, []hk.Code{hk.CodeSafetyLimitExceeded}, codes(issues))
}

func TestValidate_SheetLimits(t *testing.T) {
	p := validProgram()
	p.Header.SheetWidth = 5000

	issues := only(Validate(p, resolver, DefaultLimits()), hk.CodeSafetyLimitExceeded)
	require.Len(t, issues, 1)
	assert.Equal(t, 0, issues[0].OperationID)

	p.Header.SheetHeight = 0
	issues = Validate(p, resolver, DefaultLimits())
	assert.Equal(t, []hk.Code{hk.CodeInvalidHeader}, codes(issues))
}

func TestValidate_Technology(t *testing.T) {
	p := validProgram()
	p.Header.Material = "AL5754"
	issues := Validate(p, resolver, DefaultLimits())
	assert.Equal(t, []hk.Code{hk.CodeUnresolvedTechnology}, codes(issues))
	assert.True(t, hk.HasErrors(issues))

	r := resolver
	r.Fallback = override.Explicit(42)
	issues = Validate(p, r, DefaultLimits())
	assert.Equal(t, []hk.Code{hk.CodeTechnologyFallback}, codes(issues))
	assert.False(t, hk.HasErrors(issues))

	p = validProgram()
	p.Operations[0].Technology = 5000
	issues = Validate(p, resolver, DefaultLimits())
	assert.Equal(t, []hk.Code{hk.CodeInvalidTechnology}, codes(issues))
}

func TestValidate_Kerf(t *testing.T) {
	p := validProgram()
	p.Operations[0].Cut.Kerf = override.Explicit(hk.KerfMode(2))
	assert.Equal(t, []hk.Code{hk.CodeInvalidKerfMode}, codes(Validate(p, resolver, DefaultLimits())))

	limits := DefaultLimits()
	limits.AllowedKerfModes = []hk.KerfMode{hk.KerfNone}
	p = validProgram()
	assert.Equal(t, []hk.Code{hk.CodeInvalidKerfMode}, codes(Validate(p, resolver, limits)))

	p.Operations[0].Cut.Kerf = override.None[hk.KerfMode]()
	assert.Empty(t, Validate(p, resolver, limits))
}

func TestValidate_Empty(t *testing.T) {
	p := program(
		`N10001 HKSTR(0,1,10,10,0,0,0,0)`,
		`HKPIE(0,0,0)`,
		`HKLEA(0,0,0)`,
		`HKCUT(0,0,0)`,
		`HKSTO(0,0,0)`,
	)
	issues := Validate(p, resolver, DefaultLimits())
	assert.Equal(t, []hk.Code{hk.CodeEmptyCutSequence, hk.CodeEmptyCutSequence}, codes(issues))
	assert.False(t, hk.HasErrors(issues))

	p.Operations[0].Cut.Type = hk.OpPierceOnly
	p.Operations[0].Cut.LeadTarget = override.Explicit(coord.Point{X: 11, Y: 10})
	assert.Empty(t, Validate(p, resolver, DefaultLimits()))
}

func TestValidate_Arcs(t *testing.T) {
	p := validProgram()
	p.Operations[0].Cut.Motions[2].Center = coord.Point{}

	issues := Validate(p, resolver, DefaultLimits())
	require.Equal(t, []hk.Code{hk.CodeInvalidArc}, codes(issues))
	assert.Contains(t, issues[0].Message, "motion 3")
}

func TestValidate_DuplicateConditional(t *testing.T) {
	p := program(
		`N10001 HKSTR(0,1,10,10,0,1,0,0)`,
		`HKPIE(0,0,0)`,
		`HKLEA(0,0,0)`,
		`HKCUT(0,0,0)`,
		`G1 X20 Y10`,
		`WHEN R0=1 DO R1=2`,
		`WHEN R0=1 DO R1=2`,
		`G1 X10 Y10`,
		`HKSTO(0,0,0)`,
	)

	assert.Equal(t, []hk.Code{hk.CodeDuplicateConditional}, codes(Validate(p, resolver, DefaultLimits())))
}

func TestValidate_Exhaustive(t *testing.T) {
	p := validProgram()
	op := &p.Operations[0]
	op.BaseLabel = 10
	op.Anchor.Y = 500
	op.Cut.Kerf = override.Explicit(hk.KerfMode(7))
	op.Cut.Motions[2].Center = coord.Point{}
	op.Cut.Motions[3].Role = hk.RoleLead

	issues := Validate(p, resolver, DefaultLimits())
	assert.ElementsMatch(t, []hk.Code{
		hk.CodeLabelMismatch,
		hk.CodeLabelMismatch,
		hk.CodeSequenceViolation,
		hk.CodeSafetyLimitExceeded,
		hk.CodeInvalidKerfMode,
		hk.CodeInvalidArc,
	}, codes(issues))
}
