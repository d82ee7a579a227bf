package hk

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssue_JSON(t *testing.T) {
	in := []Issue{
		{Severity: SeverityError, Code: CodeLabelMismatch, OperationID: 10001, Message: "bad"},
		{Severity: SeverityWarning, Code: CodeTechnologyFallback, Message: "fallback"},
	}
	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"severity":"warning"`)

	var out []Issue
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)

	assert.Error(t, json.Unmarshal([]byte(`{"severity":"fatal"}`), &out[0]))
}

func TestCount(t *testing.T) {
	issues := []Issue{{Severity: SeverityWarning}, {Severity: SeverityError}, {Severity: SeverityWarning}}
	errs, warns := Count(issues)
	assert.Equal(t, 1, errs)
	assert.Equal(t, 2, warns)
	assert.True(t, HasErrors(issues))
	assert.False(t, HasErrors(issues[:1]))
	assert.Equal(t, "warning TECHNOLOGY_FALLBACK [op 10001]: x", Issue{Severity: SeverityWarning, Code: CodeTechnologyFallback, OperationID: 10001, Message: "x"}.String())
}
