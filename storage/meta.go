package storage

import (
	"time"

	"github.com/mastercactapus/hkmacro/coord"
	"github.com/mastercactapus/hkmacro/hk"
)

// Meta is stored next to every program as <stem>.meta.json.
type Meta struct {
	ID string `json:"id"`

	// SourceID and OperationID are set on extracted parts.
	SourceID    string `json:"sourceId,omitempty"`
	OperationID int    `json:"operationId,omitempty"`

	Filename    string    `json:"filename"`
	Description string    `json:"description"`
	UploadedAt  time.Time `json:"uploadedAt"`

	Material    string  `json:"material"`
	SheetWidth  float64 `json:"sheetWidth"`
	SheetHeight float64 `json:"sheetHeight"`

	Summary Summary    `json:"summary"`
	Issues  []hk.Issue `json:"issues"`
	Parts   []Part     `json:"parts"`

	// Release is set once the program was approved for production.
	Release *Release `json:"release,omitempty"`
}

// IsExtraction is true for parts cut out of an upload.
func (m Meta) IsExtraction() bool { return m.SourceID != "" }

type Summary struct {
	Errors   int `json:"errors"`
	Warnings int `json:"warnings"`
	Lines    int `json:"lines"`
}

// Part summarizes one operation.
type Part struct {
	OperationID int     `json:"operationId"`
	BaseLabel   int     `json:"baseLabel"`
	AnchorX     float64 `json:"anchorX"`
	AnchorY     float64 `json:"anchorY"`
	Technology  int     `json:"technology"`
	Motions     int     `json:"motions"`

	// Footprint is the convex hull area of the cut path in mm².
	Footprint float64 `json:"footprint"`
}

// Describe builds the metadata for a parsed program.
func Describe(p *hk.Program, issues []hk.Issue) Meta {
	m := Meta{
		Material:    p.Header.Material,
		SheetWidth:  p.Header.SheetWidth,
		SheetHeight: p.Header.SheetHeight,
		Issues:      issues,
		Parts:       make([]Part, 0, len(p.Operations)),
	}
	if m.Issues == nil {
		m.Issues = []hk.Issue{}
	}
	m.Summary.Errors, m.Summary.Warnings = hk.Count(issues)

	for _, op := range p.Operations {
		m.Parts = append(m.Parts, Part{
			OperationID: op.OperationID,
			BaseLabel:   op.BaseLabel,
			AnchorX:     op.Anchor.X,
			AnchorY:     op.Anchor.Y,
			Technology:  op.Technology,
			Motions:     len(op.Cut.Motions),
			Footprint:   coord.HullArea(op.Cut.Points()),
		})
	}
	return m
}
