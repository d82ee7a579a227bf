package config

import (
	"path/filepath"
	"testing"

	"github.com/mastercactapus/hkmacro/hk"
	"github.com/mastercactapus/hkmacro/override"
	"github.com/mastercactapus/hkmacro/tech"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 1.0, cfg.SheetMargin)
	assert.EqualValues(t, 15*1024*1024, cfg.MaxUploadBytes())
	assert.True(t, cfg.AllowedExtension("part.MPF"))
	assert.True(t, cfg.AllowedExtension("part.gcode"))
	assert.False(t, cfg.AllowedExtension("part.exe"))

	res, err := cfg.Technology.Resolve("S304", 1.5, tech.OpSlot, override.None[int]())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Number)

	_, err = cfg.Technology.Resolve("AL5083", 1.5, tech.OpSlot, override.None[int]())
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "hkmacro.hcl"))
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/hkmacro", cfg.StorageRoot)
	assert.Equal(t, ":8080", cfg.Listen)
	assert.Equal(t, 2.5, cfg.SheetMargin)
	assert.Equal(t, 1.5, cfg.SheetThickness)
	assert.EqualValues(t, 4*1024*1024, cfg.MaxUploadBytes())
	assert.False(t, cfg.AllowedExtension("a.gcode"))
	assert.Equal(t, []string{"M8", "M9"}, cfg.ParseOptions().PassThrough)

	assert.Equal(t, 3000.0, cfg.Limits.MaxSheetWidth)
	assert.Equal(t, 2000.0, cfg.Limits.MaxSheetHeight, "unset limits keep their default")
	assert.Equal(t, []hk.KerfMode{hk.KerfCompensated}, cfg.Limits.AllowedKerfModes)
	assert.Equal(t, 5.0, cfg.Limits.Margin)

	assert.Equal(t, 6, cfg.Technology.Table["S304"]["1.5mm"][tech.OpContour])
	assert.Equal(t, 22, cfg.Technology.Table["AL5083"]["default"][tech.OpPierceOnly])
	res, err := cfg.Technology.Resolve("S235", 3, tech.OpContour, override.None[int]())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Number)
	assert.True(t, res.UsedFallback())

	assert.Equal(t, hk.WhenBeforeLastCut, cfg.Emit.WhenPlacement)
	assert.True(t, cfg.Emit.EndMarker)
	assert.Equal(t, hk.KerfCompensated, cfg.Emit.KerfDefault)

	assert.Equal(t, "ws://localhost:8989/ws", cfg.Machine.SPJS)
	assert.Equal(t, 115200, cfg.Machine.Baud)
}

func TestLoad_TableFile(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "file.hcl"))
	require.NoError(t, err)

	res, err := cfg.Technology.Resolve("S235", 3, tech.OpSlot, override.None[int]())
	require.NoError(t, err)
	assert.Equal(t, 32, res.Number)

	_, ok := cfg.Technology.Table["S304"]
	assert.False(t, ok, "a table file replaces the built-in table")
}

func TestParse_Errors(t *testing.T) {
	check := func(name, src string) {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(src), "test.hcl")
			assert.Error(t, err)
		})
	}

	check("syntax", `listen = `)
	check("unknown attribute", `port = 1`)
	check("wrong type", `sheet_margin = "wide"`)
	check("table not an object", `technology { table = [1, 2] }`)
	check("table not a number", `technology { table = { S304 = { default = { contour = "x" } } } }`)
	check("table zero", `technology { table = { S304 = { default = { contour = 0 } } } }`)
	check("placement", `emit { when_placement = "middle" }`)
	check("when", `emit { when = "M8" }`)
	check("kerf", `emit { kerf_default = 3 }`)
	check("missing file", `technology { file = "nope.yaml" }`)
}

func TestHeader(t *testing.T) {
	cfg := Default()
	cfg.SheetThickness = 2

	var p hk.Program
	cfg.Header(&p)
	assert.Equal(t, 2.0, p.Header.ThicknessMM())

	p.Header.Thickness = override.Explicit(1.5)
	cfg.Header(&p)
	assert.Equal(t, 1.5, p.Header.ThicknessMM())
}
