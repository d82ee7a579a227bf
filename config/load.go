package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/mastercactapus/hkmacro/hk"
	"github.com/mastercactapus/hkmacro/override"
	"github.com/mastercactapus/hkmacro/tech"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

// file is the HCL layout. Absent attributes keep their defaults.
type file struct {
	StorageRoot    *string  `hcl:"storage_root,optional"`
	Listen         *string  `hcl:"listen,optional"`
	SheetMargin    *float64 `hcl:"sheet_margin,optional"`
	SheetThickness *float64 `hcl:"sheet_thickness,optional"`
	MaxUploadMB    *int     `hcl:"max_upload_mb,optional"`
	Extensions     []string `hcl:"extensions,optional"`
	PassThrough    []string `hcl:"pass_through,optional"`

	Limits     *limitsBlock     `hcl:"limits,block"`
	Technology *technologyBlock `hcl:"technology,block"`
	Emit       *emitBlock       `hcl:"emit,block"`
	Machine    *machineBlock    `hcl:"machine,block"`
}

type limitsBlock struct {
	MaxSheetWidth  *float64 `hcl:"max_sheet_width,optional"`
	MaxSheetHeight *float64 `hcl:"max_sheet_height,optional"`
	MinTechnology  *int     `hcl:"min_technology,optional"`
	MaxTechnology  *int     `hcl:"max_technology,optional"`
	KerfModes      []int    `hcl:"kerf_modes,optional"`
	MinMotions     *int     `hcl:"min_motions,optional"`
	Margin         *float64 `hcl:"margin,optional"`
}

type technologyBlock struct {
	Fallback *int `hcl:"fallback,optional"`

	// File is a YAML or JSON table, relative to the config file.
	File  *string        `hcl:"file,optional"`
	Table hcl.Expression `hcl:"table,optional"`
}

type emitBlock struct {
	When          *string `hcl:"when,optional"`
	WhenPlacement *string `hcl:"when_placement,optional"`
	EndMarker     *bool   `hcl:"end_marker,optional"`
	KerfDefault   *int    `hcl:"kerf_default,optional"`
}

type machineBlock struct {
	SPJS *string `hcl:"spjs,optional"`
	Port *string `hcl:"port,optional"`
	Baud *int    `hcl:"baud,optional"`
}

// Load reads the configuration file at path on top of Default.
func Load(path string) (*Config, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(src, path)
}

// Parse decodes HCL source. filename is used in diagnostics and to locate
// a technology table file.
func Parse(src []byte, filename string) (*Config, error) {
	parser := hclparse.NewParser()
	f, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse config %s: %w", filename, diags)
	}

	var raw file
	diags = gohcl.DecodeBody(f.Body, nil, &raw)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode config %s: %w", filename, diags)
	}

	cfg := Default()
	setString(&cfg.StorageRoot, raw.StorageRoot)
	setString(&cfg.Listen, raw.Listen)
	setFloat(&cfg.SheetMargin, raw.SheetMargin)
	setFloat(&cfg.SheetThickness, raw.SheetThickness)
	setInt(&cfg.MaxUploadMB, raw.MaxUploadMB)
	if raw.Extensions != nil {
		cfg.Extensions = raw.Extensions
	}
	if raw.PassThrough != nil {
		cfg.PassThrough = raw.PassThrough
	}

	if l := raw.Limits; l != nil {
		setFloat(&cfg.Limits.MaxSheetWidth, l.MaxSheetWidth)
		setFloat(&cfg.Limits.MaxSheetHeight, l.MaxSheetHeight)
		setInt(&cfg.Limits.MinTechnology, l.MinTechnology)
		setInt(&cfg.Limits.MaxTechnology, l.MaxTechnology)
		setInt(&cfg.Limits.MinMotions, l.MinMotions)
		setFloat(&cfg.Limits.Margin, l.Margin)
		if l.KerfModes != nil {
			cfg.Limits.AllowedKerfModes = make([]hk.KerfMode, len(l.KerfModes))
			for i, k := range l.KerfModes {
				cfg.Limits.AllowedKerfModes[i] = hk.KerfMode(k)
			}
		}
	}

	if t := raw.Technology; t != nil {
		if t.Fallback != nil {
			cfg.Technology.Fallback = override.Explicit(*t.Fallback)
		}
		if t.File != nil {
			name := *t.File
			if !filepath.IsAbs(name) {
				name = filepath.Join(filepath.Dir(filename), name)
			}
			data, err := os.ReadFile(name)
			if err != nil {
				return nil, fmt.Errorf("read technology table: %w", err)
			}
			cfg.Technology.Table, err = tech.ParseTable(data)
			if err != nil {
				return nil, err
			}
		}
		table, err := decodeTable(t.Table)
		if err != nil {
			return nil, fmt.Errorf("config %s: %w", filename, err)
		}
		if table != nil {
			cfg.Technology.Table = table
		}
	}

	if e := raw.Emit; e != nil {
		if e.When != nil && *e.When != "" {
			if !hk.IsConditional(*e.When) {
				return nil, fmt.Errorf("config %s: emit.when: invalid conditional %q", filename, *e.When)
			}
			cfg.Emit.When = hk.NormalizeConditional(*e.When)
		}
		if e.WhenPlacement != nil {
			w, err := hk.ParseWhenPlacement(*e.WhenPlacement)
			if err != nil {
				return nil, fmt.Errorf("config %s: emit.when_placement: %w", filename, err)
			}
			cfg.Emit.WhenPlacement = w
		}
		if e.EndMarker != nil {
			cfg.Emit.EndMarker = *e.EndMarker
		}
		if e.KerfDefault != nil {
			cfg.Emit.KerfDefault = hk.KerfMode(*e.KerfDefault)
			if !cfg.Emit.KerfDefault.Valid() {
				return nil, fmt.Errorf("config %s: emit.kerf_default: invalid kerf mode %d", filename, *e.KerfDefault)
			}
		}
	}

	if m := raw.Machine; m != nil {
		setString(&cfg.Machine.SPJS, m.SPJS)
		setString(&cfg.Machine.Port, m.Port)
		setInt(&cfg.Machine.Baud, m.Baud)
	}

	return cfg, nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

// decodeTable walks a nested object expression:
//
//	table = {
//	  S304 = {
//	    "1.5mm" = { contour = 5, slot = 3 }
//	  }
//	}
//
// It returns nil if the attribute is absent.
func decodeTable(expr hcl.Expression) (tech.Table, error) {
	if expr == nil {
		return nil, nil
	}
	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return nil, fmt.Errorf("technology.table: %w", diags)
	}
	if val.IsNull() {
		return nil, nil
	}

	table := tech.Table{}
	err := eachObject(val, "technology.table", func(material string, byThickness cty.Value) error {
		table[material] = map[string]map[string]int{}
		return eachObject(byThickness, material, func(key string, byOp cty.Value) error {
			table[material][key] = map[string]int{}
			return eachObject(byOp, material+"."+key, func(op string, v cty.Value) error {
				var n int
				if err := gocty.FromCtyValue(v, &n); err != nil {
					return fmt.Errorf("%s.%s.%s: %w", material, key, op, err)
				}
				table[material][key][op] = n
				return nil
			})
		})
	})
	if err != nil {
		return nil, err
	}
	if err = table.Validate(); err != nil {
		return nil, err
	}
	return table, nil
}

func eachObject(val cty.Value, path string, fn func(string, cty.Value) error) error {
	ty := val.Type()
	if val.IsNull() || !(ty.IsObjectType() || ty.IsMapType()) {
		return fmt.Errorf("%s: expected an object, got %s", path, ty.FriendlyName())
	}
	for it := val.ElementIterator(); it.Next(); {
		k, v := it.Element()
		if err := fn(k.AsString(), v); err != nil {
			return err
		}
	}
	return nil
}
