package compose

import (
	"errors"
	"os"
	"testing"

	"github.com/mastercactapus/hkmacro/coord"
	"github.com/mastercactapus/hkmacro/hk"
	"github.com/mastercactapus/hkmacro/override"
	"github.com/mastercactapus/hkmacro/tech"
	"github.com/mastercactapus/hkmacro/validate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var resolver = tech.Resolver{Table: tech.Table{
	"S304": {
		"1.5mm":   {tech.OpContour: 5, tech.OpSlot: 3, tech.OpPierceOnly: 9},
		"default": {tech.OpContour: 5, tech.OpSlot: 3, tech.OpPierceOnly: 9},
	},
}}

func loadJob(t *testing.T) *Job {
	t.Helper()
	data, err := os.ReadFile("testdata/job.yaml")
	require.NoError(t, err)
	job, err := ParseJob(data)
	require.NoError(t, err)
	return job
}

func TestBuild(t *testing.T) {
	p, warnings, err := Build(loadJob(t), resolver)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	assert.Equal(t, "S304", p.Header.Material)
	assert.Equal(t, 15, p.Header.InitMode)
	assert.Equal(t, override.Explicit(1.5), p.Header.Thickness)
	assert.Equal(t, override.Explicit(1.0), p.Header.Margin)
	assert.Equal(t, 30000, p.EndLabel)
	require.Len(t, p.Operations, 2)

	op := p.Operations[0]
	assert.Equal(t, 10000, op.BaseLabel)
	assert.Equal(t, 10001, op.OperationID)
	assert.Equal(t, 5, op.Technology)
	assert.Equal(t, coord.FlagInner, op.Cut.Orientation)
	assert.Equal(t, override.Explicit(hk.KerfCompensated), op.Cut.Kerf)
	assert.Equal(t, override.Explicit(coord.Point{X: 2, Y: 3}), op.Cut.LeadTarget)
	assert.Equal(t, 1, op.Cut.FirstCutIndex)
	require.Len(t, op.Cut.Motions, 5)
	assert.Equal(t, hk.Motion{End: coord.Point{X: 2, Y: 3}, Role: hk.RoleLead}, op.Cut.Motions[0])
	assert.Equal(t, hk.RoleCut, op.Cut.Motions[1].Role)
	assert.Equal(t, []hk.Verbatim{{Text: "WHEN R0=1 DO R1=2", After: 5, Conditional: true}}, op.Cut.Verbatim)
	assert.True(t, op.Cut.Ended)

	op = p.Operations[1]
	assert.Equal(t, 20001, op.OperationID)
	assert.Equal(t, 3, op.Technology)
	assert.Equal(t, hk.OpSlot, op.Cut.Type)
	assert.Equal(t, coord.FlagOuter, op.Cut.Orientation)
	assert.False(t, op.Cut.Kerf.IsSet())
	assert.Equal(t, 1, op.Cut.FirstCutIndex)
	assert.Equal(t, hk.Motion{Kind: hk.ArcCCW, End: coord.Point{X: 41, Y: 7}, Center: coord.Point{Y: 1}, Role: hk.RoleCut}, op.Cut.Motions[1])
	assert.Equal(t, hk.RoleCut, op.Cut.Motions[2].Role)
	assert.Equal(t, coord.Point{X: 40, Y: 7}, op.Cut.Motions[2].End)

	issues := validate.Validate(p, resolver, validate.DefaultLimits())
	assert.False(t, hk.HasErrors(issues), "%v", issues)
	errs, warns := hk.Count(issues)
	assert.Equal(t, 0, errs)
	assert.Equal(t, 1, warns)
}

func TestBuild_EmitRoundTrip(t *testing.T) {
	p, _, err := Build(loadJob(t), resolver)
	require.NoError(t, err)

	text := hk.Emit(p, hk.EmitOptions{})
	parsed, err := hk.Parse(text)
	require.NoError(t, err)
	assert.Equal(t, text, hk.Emit(parsed, hk.EmitOptions{}))
	assert.Len(t, parsed.Operations, 2)
}

func TestBuild_ConditionalSpacing(t *testing.T) {
	job := loadJob(t)
	job.Parts[0].When = "when  R0=1   DO R1=2 "

	p, _, err := Build(job, resolver)
	require.NoError(t, err)
	assert.Equal(t, "WHEN R0=1 DO R1=2", p.Operations[0].Cut.Verbatim[0].Text)

	parsed, err := hk.Parse(hk.Emit(p, hk.EmitOptions{}))
	require.NoError(t, err)
	assert.Equal(t, p.Operations[0].Cut.Verbatim, parsed.Operations[0].Cut.Verbatim)
}

func TestBuild_Fallback(t *testing.T) {
	job := loadJob(t)
	job.Material = "AL5754"

	_, _, err := Build(job, resolver)
	require.Error(t, err)
	var ue *tech.UnresolvedError
	assert.True(t, errors.As(err, &ue))

	r := resolver
	r.Fallback = override.Explicit(4)
	p, warnings, err := Build(job, r)
	require.NoError(t, err)
	assert.Len(t, warnings, 2)
	assert.Equal(t, 4, p.Operations[0].Technology)
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name string
		edit func(*Part)
		msg  string
	}{
		{"role", func(p *Part) { p.Moves[0].Role = "plunge" }, `part 1: move 1: unknown move role "plunge"`},
		{"motion", func(p *Part) { p.Moves[1].G = 0 }, "part 1: move 2: unsupported motion G0"},
		{"type", func(p *Part) { p.Type = "engrave" }, `part 1: unknown operation type "engrave"`},
		{"orientation", func(p *Part) { p.Orientation = "left" }, `part 1: unknown orientation "left"`},
		{"when", func(p *Part) { p.When = "R1=2" }, `part 1: invalid conditional "R1=2"`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			job := loadJob(t)
			tc.edit(&job.Parts[0])
			_, _, err := Build(job, resolver)
			require.Error(t, err)
			assert.Equal(t, tc.msg, err.Error())
		})
	}
}

func TestParseJob_JSON(t *testing.T) {
	job, err := ParseJob([]byte(`{"material":"S304","sheetX":10,"sheetY":5,"parts":[{"start":{"x":1,"y":1},"type":"pierce-only"}]}`))
	require.NoError(t, err)
	assert.Equal(t, 10.0, job.SheetX)
	require.Len(t, job.Parts, 1)

	p, _, err := Build(job, resolver)
	require.NoError(t, err)
	assert.Equal(t, 9, p.Operations[0].Technology)
	assert.Equal(t, 0, p.Operations[0].Cut.FirstCutIndex)
	assert.False(t, p.Header.Thickness.IsSet())
}

func TestParseJob_Errors(t *testing.T) {
	_, err := ParseJob([]byte("material: S304\nsheets: 2\n"))
	assert.Error(t, err)

	_, err = ParseJob(nil)
	assert.Error(t, err)
}
