package hk

import (
	"math"
	"strconv"
	"strings"
)

// ArgKind is how a macro argument was written.
type ArgKind int

const (
	ArgInt ArgKind = iota
	ArgFloat
	ArgString
)

// Arg is a single macro argument.
type Arg struct {
	Kind ArgKind
	Num  float64
	Str  string
}

func IntArg(n int) Arg       { return Arg{Kind: ArgInt, Num: float64(n)} }
func FloatArg(f float64) Arg { return Arg{Kind: ArgFloat, Num: f} }
func StringArg(s string) Arg { return Arg{Kind: ArgString, Str: s} }

func zeroArgs(n int) []Arg { return make([]Arg, n) }

func (a Arg) IsNumber() bool { return a.Kind != ArgString }
func (a Arg) Integral() bool { return a.IsNumber() && a.Num == math.Trunc(a.Num) }
func (a Arg) Int() int       { return int(a.Num) }

func (a Arg) String() string {
	switch a.Kind {
	case ArgString:
		return strconv.Quote(a.Str)
	case ArgFloat:
		return FormatCoord(a.Num)
	}
	return strconv.FormatInt(int64(a.Num), 10)
}

// Statement is one line of a program.
type Statement struct {
	// Line is the 1-based source line, 0 for generated statements.
	Line int

	// Label is the N-label, 0 if the line had none.
	Label int

	Head Head

	// Args holds macro arguments.
	Args []Arg

	// Words holds X/Y/I/J words of a motion line.
	Words []Word

	// Text is the verbatim body of WHEN and pass-through lines.
	Text string
}

// Word returns the argument of w on a motion line.
func (s Statement) Word(w byte) (bool, float64) {
	for _, g := range s.Words {
		if g.W == w {
			return true, g.Arg
		}
	}
	return false, 0
}

func (s Statement) String() string {
	var b strings.Builder
	if s.Label != 0 {
		b.WriteString("N")
		b.WriteString(strconv.Itoa(s.Label))
		b.WriteString(" ")
	}

	switch {
	case s.Text != "":
		b.WriteString(s.Text)
	case s.Head.IsMotion():
		b.WriteString(string(s.Head))
		for _, w := range s.Words {
			b.WriteString(" ")
			b.WriteString(w.String())
		}
	default:
		b.WriteString(string(s.Head))
		if len(s.Args) > 0 {
			b.WriteString("(")
			for i, a := range s.Args {
				if i > 0 {
					b.WriteString(",")
				}
				b.WriteString(a.String())
			}
			b.WriteString(")")
		}
	}
	return b.String()
}
