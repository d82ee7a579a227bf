package hk

import (
	"github.com/mastercactapus/hkmacro/coord"
	"github.com/mastercactapus/hkmacro/override"
)

type state int

const (
	awaitingLdb state = iota
	awaitingIni
	awaitingOst

	// awaitingStr is the between-blocks state while registrations are
	// still waiting for their cut body.
	awaitingStr

	awaitingPie
	awaitingLea
	collectingLeads
	collectingCuts
	awaitingSto

	// done follows HKSTO, where HKPED may close the operation.
	done

	ended
	terminated
)

func (s state) inBlock() bool { return s >= awaitingPie && s <= awaitingSto }

// assembler folds statements into a Program.
type assembler struct {
	state state
	p     Program

	// pending holds indexes of registrations without a cut body, oldest
	// first.
	pending []int

	// cur is the operation whose block is open, or was just closed by
	// HKSTO.
	cur     int
	lastOST bool

	seenPie, seenLea, seenCut bool
	pos                       coord.Point
}

func newAssembler() *assembler {
	return &assembler{cur: -1}
}

func (a *assembler) op() *Operation { return &a.p.Operations[a.cur] }

func (a *assembler) between() state {
	if len(a.pending) > 0 {
		return awaitingStr
	}
	return awaitingOst
}

// Feed applies a single statement.
func (a *assembler) Feed(st Statement) error {
	afterOST := a.lastOST
	a.lastOST = false

	switch a.state {
	case terminated:
		return errAt(st, "", "statement after %s", HeadM30)
	case ended:
		if st.Head != HeadM30 {
			return errAt(st, HeadM30.Form(), "unexpected %s after %s", st.Head, HeadEND)
		}
		a.state = terminated
		return nil
	case awaitingLdb:
		if a.passThrough(st) {
			return nil
		}
		if st.Head != HeadLDB {
			return errAt(st, HeadLDB.Form(), "program must start with %s", HeadLDB)
		}
		return a.ldb(st)
	case awaitingIni:
		if a.passThrough(st) {
			return nil
		}
		if st.Head != HeadINI {
			return errAt(st, HeadINI.Form(), "unexpected %s in header", st.Head)
		}
		return a.ini(st)
	}

	if a.state.inBlock() {
		return a.block(st)
	}

	// between blocks: awaitingOst, awaitingStr or done
	switch st.Head {
	case HeadPED:
		if a.state != done {
			return errAt(st, HeadSTR.Form(), "%s outside of a cut block", st.Head)
		}
		op := a.op()
		op.Sequence = append(op.Sequence, HeadPED)
		op.Cut.Ended = true
		a.state = a.between()
		return nil
	case HeadOST:
		a.lastOST = true
		return a.ost(st)
	case HeadPPP:
		if !afterOST {
			return errAt(st, HeadOST.Form(), "%s must follow %s", HeadPPP, HeadOST)
		}
		op := &a.p.Operations[len(a.p.Operations)-1]
		op.Sequence = append(op.Sequence, HeadPPP)
		a.state = a.between()
		return nil
	case HeadSTR:
		return a.str(st)
	case HeadEND:
		if len(a.pending) > 0 {
			op := a.p.Operations[a.pending[0]]
			return errAt(st, HeadSTR.Form(), "operation %d has no cut body", op.OperationID)
		}
		a.p.EndLabel = st.Label
		a.state = ended
		return nil
	case HeadM30:
		return errAt(st, HeadEND.Form(), "%s before %s", HeadM30, HeadEND)
	case HeadLDB, HeadINI:
		return errAt(st, "", "header statement %s out of place", st.Head)
	}

	if a.passThrough(st) {
		a.state = a.between()
		return nil
	}
	return errAt(st, HeadSTR.Form(), "%s outside of a cut block", st.Head)
}

// passThrough records a whitelisted line outside of any cut block.
func (a *assembler) passThrough(st Statement) bool {
	if st.Head.IsMacro() || st.Head.IsMotion() || st.Head == HeadWhen {
		return false
	}
	a.p.Verbatim = append(a.p.Verbatim, st.String())
	return true
}

func (a *assembler) block(st Statement) error {
	op := a.op()
	cut := &op.Cut

	switch st.Head {
	case HeadPIE:
		if a.seenPie {
			return errAt(st, HeadLEA.Form(), "duplicate %s in operation %d", st.Head, op.OperationID)
		}
		a.seenPie = true
		op.Sequence = append(op.Sequence, st.Head)
		if a.state == awaitingPie {
			a.state = awaitingLea
		}
	case HeadLEA:
		if a.seenLea {
			return errAt(st, HeadCUT.Form(), "duplicate %s in operation %d", st.Head, op.OperationID)
		}
		a.seenLea = true
		op.Sequence = append(op.Sequence, st.Head)
		if a.state < collectingLeads {
			a.state = collectingLeads
		}
	case HeadCUT:
		if a.seenCut {
			return errAt(st, HeadSTO.Form(), "duplicate %s in operation %d", st.Head, op.OperationID)
		}
		a.seenCut = true
		op.Sequence = append(op.Sequence, st.Head)
		cut.FirstCutIndex = len(cut.Motions)
		a.state = collectingCuts
	case HeadPED:
		op.Sequence = append(op.Sequence, st.Head)
		cut.Ended = true
	case HeadSTO:
		op.Sequence = append(op.Sequence, st.Head)
		if !a.seenCut {
			cut.FirstCutIndex = len(cut.Motions)
		}
		a.state = done
	case HeadG1, HeadG2, HeadG3:
		cut.Motions = append(cut.Motions, a.motion(st))
		if a.state == collectingCuts {
			a.state = awaitingSto
		}
	case HeadWhen:
		cut.Verbatim = append(cut.Verbatim, Verbatim{
			Text:        st.Text,
			After:       len(cut.Motions),
			BeforeCut:   !a.seenCut,
			Conditional: true,
		})
	case HeadSTR:
		return errAt(st, HeadSTO.Form(), "operation %d not closed before %s", op.OperationID, st.Head)
	case HeadOST, HeadPPP:
		return errAt(st, HeadSTO.Form(), "%s inside the cut block of operation %d", st.Head, op.OperationID)
	case HeadEND, HeadM30:
		return errAt(st, HeadSTO.Form(), "unterminated cut block for operation %d", op.OperationID)
	case HeadLDB, HeadINI:
		return errAt(st, "", "header statement %s out of place", st.Head)
	default:
		cut.Verbatim = append(cut.Verbatim, Verbatim{
			Text:      st.String(),
			After:     len(cut.Motions),
			BeforeCut: !a.seenCut,
		})
	}
	return nil
}

// motion builds a Motion, inheriting missing axes from the previous point.
func (a *assembler) motion(st Statement) Motion {
	m := Motion{End: a.pos, Role: RoleLead}
	switch st.Head {
	case HeadG2:
		m.Kind = ArcCW
	case HeadG3:
		m.Kind = ArcCCW
	}
	if a.seenCut {
		m.Role = RoleCut
	}
	if ok, v := st.Word('X'); ok {
		m.End.X = v
	}
	if ok, v := st.Word('Y'); ok {
		m.End.Y = v
	}
	if m.Kind.Circular() {
		_, m.Center.X = st.Word('I')
		_, m.Center.Y = st.Word('J')
	}
	a.pos = m.End
	return m
}

func (a *assembler) ldb(st Statement) error {
	lib, err := intArg(st, 0)
	if err != nil {
		return err
	}
	mat, err := stringArg(st, 1)
	if err != nil {
		return err
	}
	pc, err := intArg(st, 2)
	if err != nil {
		return err
	}
	a.p.Header.Library = lib
	a.p.Header.Material = mat
	a.p.Header.ProcessClass = pc
	a.state = awaitingIni
	return nil
}

func (a *assembler) ini(st Statement) error {
	mode, err := intArg(st, 0)
	if err != nil {
		return err
	}
	w, err := numArg(st, 1)
	if err != nil {
		return err
	}
	h, err := numArg(st, 2)
	if err != nil {
		return err
	}
	a.p.Header.InitMode = mode
	a.p.Header.SheetWidth = w
	a.p.Header.SheetHeight = h
	a.state = awaitingOst
	return nil
}

func (a *assembler) ost(st Statement) error {
	var nums [3]float64
	for i := range nums {
		v, err := numArg(st, i)
		if err != nil {
			return err
		}
		nums[i] = v
	}
	id, err := intArg(st, 3)
	if err != nil {
		return err
	}
	tech, err := intArg(st, 4)
	if err != nil {
		return err
	}
	for _, op := range a.p.Operations {
		if op.OperationID == id {
			return errAt(st, HeadOST.Form(), "operation %d registered twice", id)
		}
	}

	a.p.Operations = append(a.p.Operations, Operation{
		BaseLabel:   st.Label,
		OperationID: id,
		Anchor:      Anchor{Point: coord.Point{X: nums[0], Y: nums[1]}, Angle: nums[2]},
		Technology:  tech,
		Cut:         CutSequence{Type: OpContour},
		Sequence:    []Head{HeadOST},
	})
	a.pending = append(a.pending, len(a.p.Operations)-1)
	a.state = awaitingStr
	return nil
}

func (a *assembler) str(st Statement) error {
	if len(a.pending) == 0 {
		return errAt(st, HeadOST.Form(), "%s without a pending registration", HeadSTR)
	}

	// a label naming a pending operation picks it, any other label is a
	// plain line number
	n := 0
	if st.Label != 0 {
		for i, idx := range a.pending {
			if a.p.Operations[idx].OperationID == st.Label {
				n = i
				break
			}
		}
	}

	orient, err := intArg(st, 0)
	if err != nil {
		return err
	}
	kerf, err := intArg(st, 1)
	if err != nil {
		return err
	}
	var nums [4]float64
	for i, argn := range []int{2, 3, 5, 6} {
		v, err := numArg(st, argn)
		if err != nil {
			return err
		}
		nums[i] = v
	}

	a.cur = a.pending[n]
	a.pending = append(a.pending[:n], a.pending[n+1:]...)

	op := a.op()
	op.Sequence = append(op.Sequence, HeadSTR)
	op.Cut.Orientation = orient
	op.Cut.Kerf = override.Explicit(KerfMode(kerf))
	op.Cut.Start = coord.Point{X: nums[0], Y: nums[1]}
	lead := coord.Point{X: nums[2], Y: nums[3]}
	if !lead.Equal(coord.Point{}) {
		op.Cut.LeadTarget = override.Explicit(op.Cut.Start.Add(lead))
	}

	a.pos = op.Cut.Start
	a.seenPie, a.seenLea, a.seenCut = false, false, false
	a.state = awaitingPie
	return nil
}

// Close checks the end of input and returns the program.
func (a *assembler) Close(line int) (*Program, error) {
	st := Statement{Line: line}
	switch {
	case a.state == terminated:
	case a.state == awaitingLdb:
		return nil, errAt(st, HeadLDB.Form(), "empty program")
	case a.state == awaitingIni:
		return nil, errAt(st, HeadINI.Form(), "unexpected end of input")
	case a.state.inBlock():
		return nil, errAt(st, HeadSTO.Form(), "end of input inside the cut block of operation %d", a.op().OperationID)
	case a.state == ended:
		return nil, errAt(st, HeadM30.Form(), "missing %s", HeadM30)
	case len(a.pending) > 0:
		return nil, errAt(st, HeadSTR.Form(), "operation %d has no cut body", a.p.Operations[a.pending[0]].OperationID)
	default:
		return nil, errAt(st, HeadEND.Form(), "missing %s", HeadEND)
	}

	for i := range a.p.Operations {
		op := &a.p.Operations[i]
		if sameHeads(op.Sequence, CanonicalSequence(op.Cut.Ended)) {
			op.Sequence = nil
		}
	}

	p := a.p
	return &p, nil
}

func sameHeads(a, b []Head) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func numArg(st Statement, i int) (float64, error) {
	a := st.Args[i]
	if !a.IsNumber() {
		return 0, errAt(st, st.Head.Form(), "argument %d of %s must be a number", i+1, st.Head)
	}
	return a.Num, nil
}

func intArg(st Statement, i int) (int, error) {
	a := st.Args[i]
	if !a.Integral() {
		return 0, errAt(st, st.Head.Form(), "argument %d of %s must be an integer", i+1, st.Head)
	}
	return a.Int(), nil
}

func stringArg(st Statement, i int) (string, error) {
	a := st.Args[i]
	if a.Kind != ArgString {
		return "", errAt(st, st.Head.Form(), "argument %d of %s must be a quoted string", i+1, st.Head)
	}
	return a.Str, nil
}
