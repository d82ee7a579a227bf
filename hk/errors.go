package hk

import (
	"fmt"
)

// ParseError reports a malformed or misplaced statement.
type ParseError struct {
	Line int

	// Expected is the statement form the parser wanted, if known.
	Expected string

	// Text is the offending source line.
	Text string
	Msg  string
}

func (e *ParseError) Error() string {
	s := fmt.Sprintf("line %d: %s", e.Line, e.Msg)
	if e.Expected != "" {
		s += "; expected " + e.Expected
	}
	return s
}

func errAt(st Statement, expected, format string, args ...interface{}) *ParseError {
	return &ParseError{
		Line:     st.Line,
		Expected: expected,
		Text:     st.String(),
		Msg:      fmt.Sprintf(format, args...),
	}
}
