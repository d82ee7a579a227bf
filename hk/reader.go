package hk

import "io"

// Reader reads one statement at a time.
type Reader interface {
	Read() (Statement, error)
}

// StatementsReader reads from a fixed list of statements.
type StatementsReader struct {
	Statements []Statement
	n          int
}

func (s *StatementsReader) Read() (Statement, error) {
	if s.n == len(s.Statements) {
		return Statement{}, io.EOF
	}

	s.n++
	return s.Statements[s.n-1], nil
}
