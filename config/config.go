// Package config loads the service configuration from an HCL file.
package config

import (
	"path/filepath"
	"strings"

	"github.com/mastercactapus/hkmacro/hk"
	"github.com/mastercactapus/hkmacro/override"
	"github.com/mastercactapus/hkmacro/tech"
	"github.com/mastercactapus/hkmacro/validate"
)

// Config is read-only once loaded.
type Config struct {
	StorageRoot string
	Listen      string

	// SheetMargin is the margin around extracted parts, in mm.
	SheetMargin float64

	// SheetThickness is assumed for uploaded programs, which do not carry
	// it. 0 is unknown.
	SheetThickness float64

	MaxUploadMB int
	Extensions  []string
	PassThrough []string

	Limits     validate.Limits
	Technology tech.Resolver
	Emit       hk.EmitOptions
	Machine    Machine
}

// Machine selects where programs are dispatched to.
type Machine struct {
	// SPJS is the websocket URL of a serial-port-json-server. If empty,
	// Port is opened directly.
	SPJS string
	Port string
	Baud int
}

// DefaultTable is the technology table used when none is configured.
func DefaultTable() tech.Table {
	return tech.Table{
		"S304": {
			"1.5mm":        {tech.OpContour: 5, tech.OpSlot: 3, tech.OpPierceOnly: 9},
			tech.DefaultKey: {tech.OpContour: 5, tech.OpSlot: 3, tech.OpPierceOnly: 9},
		},
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		StorageRoot: "./data",
		Listen:      ":9091",
		SheetMargin: 1.0,
		MaxUploadMB: 15,
		Extensions:  []string{".mpf", ".gcode", ".txt"},
		Limits:      validate.DefaultLimits(),
		Technology:  tech.Resolver{Table: DefaultTable(), Fallback: override.None[int]()},
		Emit:        hk.EmitOptions{KerfDefault: hk.KerfCompensated},
		Machine:     Machine{Port: "/dev/ttyUSB0", Baud: 115200},
	}
}

// MaxUploadBytes is the upload size limit in bytes.
func (c *Config) MaxUploadBytes() int64 { return int64(c.MaxUploadMB) * 1024 * 1024 }

// AllowedExtension is true if name has one of the configured extensions.
func (c *Config) AllowedExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range c.Extensions {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}

// ParseOptions returns the parser options for uploads.
func (c *Config) ParseOptions() hk.ParseOptions {
	return hk.ParseOptions{PassThrough: c.PassThrough}
}

// Header fills in the sheet properties the macro text does not carry.
func (c *Config) Header(p *hk.Program) {
	if !p.Header.Thickness.IsSet() {
		p.Header.Thickness = override.NonZero(c.SheetThickness)
	}
}
