package compose

import (
	"bytes"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Job describes a sheet and the 2D part paths to cut from it.
type Job struct {
	Library      int     `yaml:"library"`
	Material     string  `yaml:"material"`
	ProcessClass int     `yaml:"processClass"`
	InitMode     int     `yaml:"initMode"`
	SheetX       float64 `yaml:"sheetX"`
	SheetY       float64 `yaml:"sheetY"`

	// Thickness in mm selects the technology table row. 0 is unknown.
	Thickness float64 `yaml:"thickness"`
	Margin    float64 `yaml:"margin"`

	Parts []Part `yaml:"parts"`
}

// XY is a point in a job file.
type XY struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// Part is one operation.
type Part struct {
	Anchor XY      `yaml:"anchor"`
	Angle  float64 `yaml:"angle"`

	// Type is contour, slot or pierce-only. Empty means contour.
	Type string `yaml:"type"`

	// Orientation is auto, inner, outer or chain. Empty means auto.
	Orientation string `yaml:"orientation"`

	// Kerf is 0 or 1, unset means the emitter default.
	Kerf *int `yaml:"kerf"`

	// Technology overrides the table when non-zero.
	Technology int `yaml:"technology"`

	Start XY  `yaml:"start"`
	Lead  *XY `yaml:"lead"`

	Moves []Move `yaml:"moves"`

	// When is an optional conditional line emitted after the cut.
	When string `yaml:"when"`
}

// Move is one motion of a part path.
type Move struct {
	G int      `yaml:"g"`
	X *float64 `yaml:"x"`
	Y *float64 `yaml:"y"`
	I float64  `yaml:"i"`
	J float64  `yaml:"j"`

	// Role is the toolpath classification of the move: cut (default),
	// lead-in, lead-out, pierce, ramp, rapid or link.
	Role string `yaml:"role"`
}

// ParseJob reads a job from YAML or JSON. Unknown fields are an error.
func ParseJob(data []byte) (*Job, error) {
	return ReadJob(bytes.NewReader(data))
}

// ReadJob is like ParseJob but reads from r.
func ReadJob(r io.Reader) (*Job, error) {
	var job Job
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	err := dec.Decode(&job)
	if err == io.EOF {
		return nil, fmt.Errorf("parse job: empty document")
	}
	if err != nil {
		return nil, fmt.Errorf("parse job: %w", err)
	}
	return &job, nil
}
