package hk

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatementsReader(t *testing.T) {
	stmts := []Statement{
		{Head: HeadPPP},
		{Head: HeadM30},
	}

	sr := &StatementsReader{Statements: stmts}

	st, err := sr.Read()
	assert.NoError(t, err)
	assert.Equal(t, Statement{Head: HeadPPP}, st)

	st, err = sr.Read()
	assert.NoError(t, err)
	assert.Equal(t, Statement{Head: HeadM30}, st)

	st, err = sr.Read()
	assert.Error(t, err)
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, Statement{}, st)
}
