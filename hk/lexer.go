package hk

import (
	"bufio"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// Lexer reads statements from macro text, one line at a time.
type Lexer struct {
	br   *bufio.Reader
	line int

	passThrough map[Head]bool
}

var _ Reader = &Lexer{}

// NewLexer returns a Lexer reading from r. Unknown statement heads are
// errors unless listed in passThrough.
func NewLexer(r io.Reader, passThrough ...string) *Lexer {
	l := &Lexer{passThrough: make(map[Head]bool, len(passThrough))}
	if br, ok := r.(*bufio.Reader); ok {
		l.br = br
	} else {
		l.br = bufio.NewReader(r)
	}
	for _, h := range passThrough {
		l.passThrough[Head(strings.ToUpper(strings.TrimSpace(h)))] = true
	}
	return l
}

var (
	rxLabel  = regexp.MustCompile(`^[Nn](\d+)(?:\s+|$)`)
	rxMotion = regexp.MustCompile(`^[Gg]0?([123])`)
	rxWord   = regexp.MustCompile(`^([A-Za-z])\s*([-+]?(?:\d+(?:\.\d*)?|\.\d+))\s*`)
	rxHead   = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9]*`)
	rxMacro  = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9]*)\s*(?:\((.*)\))?$`)
	rxWhen   = regexp.MustCompile(`(?i)^WHEN\s+(.+?)\s+DO\s+(.+)$`)
	rxNumber = regexp.MustCompile(`^[-+]?(?:\d+(?:\.\d*)?|\.\d+)(?:[eE][-+]?\d+)?$`)
)

// Read returns the next statement, or io.EOF.
func (l *Lexer) Read() (Statement, error) {
	for {
		s, err := l.br.ReadString('\n')
		if err == io.EOF && s != "" {
			err = nil
		}
		if err != nil {
			return Statement{}, err
		}
		l.line++

		raw := strings.TrimRight(s, "\r\n")
		s = strings.TrimSpace(stripComment(raw))
		if s == "" {
			continue
		}

		st := Statement{Line: l.line}
		if m := rxLabel.FindStringSubmatch(s); m != nil {
			st.Label, err = strconv.Atoi(m[1])
			if err != nil {
				return Statement{}, l.errorf(raw, "", "invalid label %q", m[1])
			}
			s = strings.TrimSpace(s[len(m[0]):])
			if s == "" {
				// label only
				continue
			}
		}

		return l.statement(st, s, raw)
	}
}

func (l *Lexer) errorf(raw, expected, format string, args ...interface{}) *ParseError {
	st := Statement{Line: l.line}
	e := errAt(st, expected, format, args...)
	e.Text = raw
	return e
}

func (l *Lexer) statement(st Statement, s, raw string) (Statement, error) {
	if rxWhen.MatchString(s) {
		st.Head = HeadWhen
		st.Text = NormalizeConditional(s)
		return st, nil
	}
	if strings.HasPrefix(strings.ToUpper(s), "WHEN") {
		return Statement{}, l.errorf(raw, HeadWhen.Form(), "malformed conditional")
	}

	if head, rest, ok := motionHead(s); ok {
		st.Head = head
		words, err := parseWords(rest)
		if err != nil {
			return Statement{}, l.errorf(raw, st.Head.Form(), "%s", err.Error())
		}
		st.Words = words
		return st, l.checkWords(st, raw)
	}

	st.Head = Head(strings.ToUpper(rxHead.FindString(s)))
	if st.Head == "" {
		return Statement{}, l.errorf(raw, "", "invalid or unhandled line")
	}
	n, known := arity[st.Head]
	if !known {
		if l.passThrough[st.Head] {
			st.Text = s
			return st, nil
		}
		return Statement{}, l.errorf(raw, "", "unknown statement %s", st.Head)
	}

	m := rxMacro.FindStringSubmatch(s)
	if m == nil || Head(strings.ToUpper(m[1])) != st.Head {
		return Statement{}, l.errorf(raw, st.Head.Form(), "malformed %s", st.Head)
	}

	hasParens := strings.HasSuffix(s, ")")
	if n > 0 && !hasParens {
		return Statement{}, l.errorf(raw, st.Head.Form(), "missing argument list")
	}
	if hasParens {
		args, err := parseArgs(m[2])
		if err != nil {
			return Statement{}, l.errorf(raw, st.Head.Form(), "%s", err.Error())
		}
		st.Args = args
	}
	if len(st.Args) != n {
		return Statement{}, l.errorf(raw, st.Head.Form(), "%s takes %d arguments, got %d", st.Head, n, len(st.Args))
	}

	return st, nil
}

// IsConditional is true if s is a "WHEN <condition> DO <assignment>" line.
func IsConditional(s string) bool { return rxWhen.MatchString(strings.TrimSpace(s)) }

// NormalizeConditional collapses whitespace and upper-cases the leading
// WHEN, the form conditionals are parsed into.
func NormalizeConditional(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) < len("WHEN") {
		return s
	}
	return "WHEN" + s[len("WHEN"):]
}

// motionHead matches G1, G2 or G3 (optionally zero padded) at the start of s.
func motionHead(s string) (Head, string, bool) {
	m := rxMotion.FindStringSubmatch(s)
	if m == nil {
		return "", "", false
	}
	rest := s[len(m[0]):]
	if rest != "" && strings.IndexByte("0123456789.", rest[0]) >= 0 {
		return "", "", false
	}
	return Head("G" + m[1]), rest, true
}

// stripComment drops everything after a ';' that is not inside quotes.
func stripComment(s string) string {
	var inString bool
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			if inString {
				i++
			}
		case '"':
			inString = !inString
		case ';':
			if !inString {
				return s[:i]
			}
		}
	}
	return s
}

type lexError string

func (e lexError) Error() string { return string(e) }

func parseWords(s string) ([]Word, error) {
	var res []Word
	s = strings.TrimSpace(s)
	for s != "" {
		m := rxWord.FindStringSubmatch(s)
		if m == nil {
			return nil, lexError("malformed word " + strconv.Quote(s))
		}
		f, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			return nil, lexError("invalid number " + strconv.Quote(m[2]))
		}
		w := Word{W: strings.ToUpper(m[1])[0], Arg: f}
		if !w.IsValid() {
			return nil, lexError("unsupported word " + string(w.W))
		}
		for _, prev := range res {
			if prev.W == w.W {
				return nil, lexError("word was repeated: " + string(w.W))
			}
		}
		res = append(res, w)
		s = s[len(m[0]):]
	}
	return res, nil
}

func (l *Lexer) checkWords(st Statement, raw string) error {
	var hasAxis bool
	for _, w := range st.Words {
		if w.IsOffset() && st.Head == HeadG1 {
			return l.errorf(raw, st.Head.Form(), "G1 does not take %c", w.W)
		}
		if w.IsAxis() {
			hasAxis = true
		}
	}
	if !hasAxis {
		return l.errorf(raw, st.Head.Form(), "motion without X or Y")
	}
	return nil
}

func parseArgs(body string) ([]Arg, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, nil
	}

	var (
		args     []Arg
		cur      strings.Builder
		inString bool
	)
	flush := func() error {
		a, err := parseArg(strings.TrimSpace(cur.String()))
		cur.Reset()
		if err != nil {
			return err
		}
		args = append(args, a)
		return nil
	}
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case c == '\\' && inString && i+1 < len(body):
			cur.WriteByte(c)
			i++
			cur.WriteByte(body[i])
		case c == '"':
			inString = !inString
			cur.WriteByte(c)
		case c == ',' && !inString:
			if err := flush(); err != nil {
				return nil, err
			}
		default:
			cur.WriteByte(c)
		}
	}
	if inString {
		return nil, lexError("unterminated string")
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return args, nil
}

func parseArg(s string) (Arg, error) {
	if s == "" {
		return Arg{}, lexError("empty argument")
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		if u, err := strconv.Unquote(s); err == nil {
			return StringArg(u), nil
		}
		// not Go quoting, take it as written
		return StringArg(s[1 : len(s)-1]), nil
	}
	if !rxNumber.MatchString(s) {
		return Arg{}, lexError("invalid argument " + strconv.Quote(s))
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Arg{}, lexError("invalid argument " + strconv.Quote(s))
	}
	if strings.ContainsAny(s, ".eE") {
		return FloatArg(f), nil
	}
	return IntArg(int(f)), nil
}
