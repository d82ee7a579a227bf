package hk

import (
	"io"
	"strings"
)

// ParseOptions controls parsing.
type ParseOptions struct {
	// PassThrough lists statement heads that are kept verbatim instead of
	// being rejected as unknown.
	PassThrough []string
}

// Parse parses HK macro text into a Program.
func Parse(text string) (*Program, error) {
	return ParseWith(text, ParseOptions{})
}

// ParseWith parses HK macro text with the given options.
func ParseWith(text string, opts ParseOptions) (*Program, error) {
	return ParseReader(strings.NewReader(text), opts)
}

// ParseReader parses HK macro text from r. Any error that is not an I/O
// error is a *ParseError.
func ParseReader(r io.Reader, opts ParseOptions) (*Program, error) {
	l := NewLexer(r, opts.PassThrough...)
	a := newAssembler()
	for {
		st, err := l.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if err = a.Feed(st); err != nil {
			return nil, err
		}
	}

	return a.Close(l.line)
}

// MustParse is like Parse but panics on error.
func MustParse(text string) *Program {
	p, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return p
}
