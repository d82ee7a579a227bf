package hk

import (
	"bytes"
	"io"
)

// Buffer renders statements from a Reader as newline terminated text.
type Buffer struct {
	sr  Reader
	buf bytes.Buffer
	err error
}

var _ io.Reader = &Buffer{}

func NewBuffer(r Reader) *Buffer {
	return &Buffer{sr: r}
}
func (b *Buffer) Buffered() []byte { return b.buf.Bytes() }

func (b *Buffer) Read(p []byte) (n int, err error) {
	for b.err == nil && b.buf.Len() < len(p) {
		var st Statement
		st, b.err = b.sr.Read()
		if b.err != nil {
			break
		}
		b.buf.WriteString(st.String() + "\n")
	}

	if b.buf.Len() > 0 {
		return b.buf.Read(p)
	}
	return 0, b.err
}
