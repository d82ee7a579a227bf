package hk

import (
	"fmt"
	"strings"
)

// WhenPlacement controls where conditional lines are emitted in a cut body.
type WhenPlacement int

const (
	// WhenRecorded keeps conditionals where they were parsed.
	WhenRecorded WhenPlacement = iota

	// WhenBeforeLastCut emits conditionals right before the last cut
	// motion.
	WhenBeforeLastCut

	// WhenEnd emits conditionals after every cut motion.
	WhenEnd
)

func (w WhenPlacement) String() string {
	switch w {
	case WhenBeforeLastCut:
		return "beforeLastCut"
	case WhenEnd:
		return "end"
	}
	return "recorded"
}

// ParseWhenPlacement accepts "recorded", "beforeLastCut" or "end".
func ParseWhenPlacement(s string) (WhenPlacement, error) {
	switch strings.ToLower(s) {
	case "", "recorded":
		return WhenRecorded, nil
	case "beforelastcut":
		return WhenBeforeLastCut, nil
	case "end":
		return WhenEnd, nil
	}
	return 0, fmt.Errorf("unknown conditional placement %q", s)
}

// EmitOptions controls emission.
type EmitOptions struct {
	// KerfDefault is used for operations without an explicit kerf mode.
	KerfDefault KerfMode

	WhenPlacement WhenPlacement

	// When, if set, replaces the conditional line of every operation.
	When string

	// EndMarker emits HKPED after every HKSTO.
	EndMarker bool
}

// Emit renders p as macro text.
func Emit(p *Program, opts EmitOptions) string {
	var b strings.Builder
	for _, st := range EmitStatements(p, opts) {
		b.WriteString(st.String())
		b.WriteString("\n")
	}
	return b.String()
}

func marker(h Head) Statement { return Statement{Head: h, Args: zeroArgs(arity[h])} }

// EmitStatements returns the statements of p in emit order.
func EmitStatements(p *Program, opts EmitOptions) []Statement {
	h := p.Header
	res := []Statement{
		{Head: HeadLDB, Args: []Arg{IntArg(h.Library), StringArg(h.Material), IntArg(h.ProcessClass), IntArg(0), IntArg(0), IntArg(0)}},
		{Head: HeadINI, Args: []Arg{IntArg(h.InitMode), FloatArg(h.SheetWidth), FloatArg(h.SheetHeight), IntArg(0), IntArg(0), IntArg(0)}},
	}
	for _, v := range p.Verbatim {
		res = append(res, verbatimStatement(v))
	}

	for _, op := range p.Operations {
		res = append(res,
			Statement{Label: op.BaseLabel, Head: HeadOST, Args: []Arg{
				FloatArg(op.Anchor.X), FloatArg(op.Anchor.Y), FloatArg(op.Anchor.Angle),
				IntArg(op.OperationID), IntArg(op.Technology),
				IntArg(0), IntArg(0), IntArg(0),
			}},
			Statement{Head: HeadPPP},
		)
	}

	for _, op := range p.Operations {
		res = append(res, emitCut(op, opts)...)
	}

	end := marker(HeadEND)
	end.Label = EndLabelFor(len(p.Operations))
	return append(res, end, Statement{Head: HeadM30})
}

func verbatimStatement(text string) Statement {
	head := text
	if i := strings.IndexAny(text, " ("); i >= 0 {
		head = text[:i]
	}
	return Statement{Head: Head(strings.ToUpper(head)), Text: text}
}

func emitCut(op Operation, opts EmitOptions) []Statement {
	c := op.Cut
	lead := c.LeadTarget.Or(c.Start).Sub(c.Start)

	res := []Statement{
		{Label: op.OperationID, Head: HeadSTR, Args: []Arg{
			IntArg(c.Orientation), IntArg(int(c.Kerf.Or(opts.KerfDefault))),
			FloatArg(c.Start.X), FloatArg(c.Start.Y), IntArg(0),
			FloatArg(lead.X), FloatArg(lead.Y), IntArg(0),
		}},
		marker(HeadPIE),
		marker(HeadLEA),
	}

	n := len(c.Motions)
	fci := c.FirstCutIndex
	if fci < 0 {
		fci = 0
	} else if fci > n {
		fci = n
	}
	verbatim := placeVerbatim(c, fci, opts)

	emitAt := func(i int, beforeCut bool) {
		for _, v := range verbatim {
			if v.After != i || (i == fci && v.BeforeCut != beforeCut) {
				continue
			}
			if v.Conditional {
				res = append(res, Statement{Head: HeadWhen, Text: v.Text})
			} else {
				res = append(res, verbatimStatement(v.Text))
			}
		}
	}

	for i := 0; i <= n; i++ {
		if i == fci {
			emitAt(i, true)
			res = append(res, marker(HeadCUT))
			emitAt(i, false)
		} else {
			emitAt(i, false)
		}
		if i < n {
			res = append(res, motionStatement(c.Motions[i]))
		}
	}

	res = append(res, marker(HeadSTO))
	if opts.EndMarker || c.Ended {
		res = append(res, marker(HeadPED))
	}
	return res
}

// placeVerbatim returns the verbatim lines of c with conditionals moved
// according to opts.
func placeVerbatim(c CutSequence, fci int, opts EmitOptions) []Verbatim {
	n := len(c.Motions)
	res := make([]Verbatim, 0, len(c.Verbatim)+1)

	if opts.When != "" {
		w := Verbatim{Text: opts.When, After: n, Conditional: true}
		placed := false
		for _, v := range c.Verbatim {
			if !v.Conditional {
				res = append(res, v)
				continue
			}
			if !placed {
				w.After, w.BeforeCut = v.After, v.BeforeCut
				res = append(res, w)
				placed = true
			}
		}
		if !placed {
			res = append(res, w)
		}
	} else {
		res = append(res, c.Verbatim...)
	}

	if opts.WhenPlacement == WhenRecorded {
		return res
	}

	at := n
	if opts.WhenPlacement == WhenBeforeLastCut && n > fci {
		at = n - 1
	}
	for i := range res {
		if res[i].Conditional {
			res[i].After = at
			res[i].BeforeCut = false
		}
	}
	return res
}

func motionStatement(m Motion) Statement {
	st := Statement{
		Head:  m.Kind.Code(),
		Words: []Word{{W: 'X', Arg: m.End.X}, {W: 'Y', Arg: m.End.Y}},
	}
	if m.Kind.Circular() {
		st.Words = append(st.Words, Word{W: 'I', Arg: m.Center.X}, Word{W: 'J', Arg: m.Center.Y})
	}
	return st
}
