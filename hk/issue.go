package hk

import "fmt"

// Severity of a validation issue. Errors block extraction and dispatch.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "warning"
	}
	return "error"
}

func (s Severity) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Severity) UnmarshalText(data []byte) error {
	switch string(data) {
	case "error":
		*s = SeverityError
	case "warning":
		*s = SeverityWarning
	default:
		return fmt.Errorf("unknown severity %q", data)
	}
	return nil
}

// Code classifies an Issue.
type Code string

const (
	CodeSequenceViolation    Code = "SEQUENCE_VIOLATION"
	CodeLabelMismatch        Code = "LABEL_MISMATCH"
	CodeSafetyLimitExceeded  Code = "SAFETY_LIMIT_EXCEEDED"
	CodeInvalidTechnology    Code = "INVALID_TECHNOLOGY"
	CodeUnresolvedTechnology Code = "UNRESOLVED_TECHNOLOGY"
	CodeTechnologyFallback   Code = "TECHNOLOGY_FALLBACK"
	CodeInvalidKerfMode      Code = "INVALID_KERF_MODE"
	CodeEmptyCutSequence     Code = "EMPTY_CUT_SEQUENCE"
	CodeInvalidHeader        Code = "INVALID_HEADER"
	CodeInvalidArc           Code = "INVALID_ARC"
	CodeDuplicateConditional Code = "DUPLICATE_CONDITIONAL"
)

// Issue is a single validation finding.
type Issue struct {
	Severity Severity `json:"severity"`
	Code     Code     `json:"code"`

	// OperationID is 0 for program level issues.
	OperationID int    `json:"operationId,omitempty"`
	Message     string `json:"message"`
}

func (i Issue) String() string {
	if i.OperationID != 0 {
		return fmt.Sprintf("%s %s [op %d]: %s", i.Severity, i.Code, i.OperationID, i.Message)
	}
	return fmt.Sprintf("%s %s: %s", i.Severity, i.Code, i.Message)
}

// HasErrors is true if any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Count returns the number of errors and warnings.
func Count(issues []Issue) (errs, warnings int) {
	for _, i := range issues {
		if i.Severity == SeverityError {
			errs++
		} else {
			warnings++
		}
	}
	return errs, warnings
}
