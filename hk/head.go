package hk

// Head is the name a statement starts with.
type Head string

const (
	HeadLDB Head = "HKLDB"
	HeadINI Head = "HKINI"
	HeadOST Head = "HKOST"
	HeadPPP Head = "HKPPP"
	HeadSTR Head = "HKSTR"
	HeadPIE Head = "HKPIE"
	HeadLEA Head = "HKLEA"
	HeadCUT Head = "HKCUT"
	HeadSTO Head = "HKSTO"
	HeadPED Head = "HKPED"
	HeadEND Head = "HKEND"
	HeadM30 Head = "M30"

	HeadG1   Head = "G1"
	HeadG2   Head = "G2"
	HeadG3   Head = "G3"
	HeadWhen Head = "WHEN"
)

// Arity is the number of arguments each macro takes.
var arity = map[Head]int{
	HeadLDB: 6,
	HeadINI: 6,
	HeadOST: 8,
	HeadPPP: 0,
	HeadSTR: 8,
	HeadPIE: 3,
	HeadLEA: 3,
	HeadCUT: 3,
	HeadSTO: 3,
	HeadPED: 3,
	HeadEND: 3,
	HeadM30: 0,
}

// forms is the expected statement form, used in parse errors.
var forms = map[Head]string{
	HeadLDB: `HKLDB(library,"material",processClass,0,0,0)`,
	HeadINI: "HKINI(mode,sheetX,sheetY,0,0,0)",
	HeadOST: "HKOST(x,y,angle,operationId,technology,0,0,0)",
	HeadPPP: "HKPPP",
	HeadSTR: "HKSTR(orientation,kerf,startX,startY,0,leadX,leadY,0)",
	HeadPIE: "HKPIE(0,0,0)",
	HeadLEA: "HKLEA(0,0,0)",
	HeadCUT: "HKCUT(0,0,0)",
	HeadSTO: "HKSTO(0,0,0)",
	HeadPED: "HKPED(0,0,0)",
	HeadEND: "HKEND(0,0,0)",
	HeadM30: "M30",

	HeadG1:   "G1 X.. Y..",
	HeadG2:   "G2 X.. Y.. I.. J..",
	HeadG3:   "G3 X.. Y.. I.. J..",
	HeadWhen: "WHEN <condition> DO <assignment>",
}

// IsMacro is true for heads that take a parenthesized argument list (or
// none, for HKPPP and M30).
func (h Head) IsMacro() bool {
	_, ok := arity[h]
	return ok
}

// IsMotion is true for G1, G2 and G3.
func (h Head) IsMotion() bool {
	return h == HeadG1 || h == HeadG2 || h == HeadG3
}

// Form returns the expected statement form for h.
func (h Head) Form() string {
	if f, ok := forms[h]; ok {
		return f
	}
	return string(h)
}
