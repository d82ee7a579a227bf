package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mastercactapus/hkmacro/hk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCmd(stdin string, args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(args, strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func writeTemp(t *testing.T, name, content string) string {
	name = filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(name, []byte(content), 0644))
	return name
}

func TestRun_Usage(t *testing.T) {
	code, _, stderr := runCmd("")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "Usage:")

	code, _, stderr = runCmd("", "bogus")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, `unknown command "bogus"`)

	code, stdout, _ := runCmd("", "help")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "hkmacro compose")

	code, _, _ = runCmd("", "validate", "-h")
	assert.Equal(t, 0, code)
}

func TestRun_Validate(t *testing.T) {
	code, stdout, _ := runCmd("", "validate", writeTemp(t, "ok.mpf", validProgram))
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "0 error(s), 1 warning(s)")

	code, stdout, _ = runCmd("", "validate", writeTemp(t, "bad.mpf", outsideProgram))
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout, "SAFETY_LIMIT_EXCEEDED")

	code, _, stderr := runCmd("HKPPP\n", "validate", "-")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "line 1")

	code, _, _ = runCmd("", "validate")
	assert.Equal(t, 2, code)
}

func TestRun_Fmt(t *testing.T) {
	messy := strings.Replace(validProgram, "G1 X20.0000 Y10.0000", "g1 x20 y10 ; first edge", 1)
	code, stdout, _ := runCmd(messy, "fmt", "-")
	require.Equal(t, 0, code)
	assert.Equal(t, validProgram, stdout)

	code, stdout, _ = runCmd(validProgram, "fmt", "-end-marker", "-")
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "HKSTO(0,0,0)\nHKPED(0,0,0)\n")

	name := writeTemp(t, "messy.mpf", messy)
	code, _, _ = runCmd("", "fmt", "-w", name)
	require.Equal(t, 0, code)
	data, err := os.ReadFile(name)
	require.NoError(t, err)
	assert.Equal(t, validProgram, string(data))

	code, _, _ = runCmd(validProgram, "fmt", "-when-placement", "middle", "-")
	assert.Equal(t, 2, code)
}

func TestRun_Extract(t *testing.T) {
	code, stdout, _ := runCmd(validProgram, "extract", "-op", "10001", "-margin", "2", "-")
	require.Equal(t, 0, code)
	p, err := hk.Parse(stdout)
	require.NoError(t, err)
	assert.Equal(t, 14.0, p.Header.SheetWidth)
	assert.Equal(t, 2.0, p.Operations[0].Anchor.X)

	out := filepath.Join(t.TempDir(), "part.mpf")
	code, _, _ = runCmd(validProgram, "extract", "-op", "10001", "-o", out, "-")
	require.Equal(t, 0, code)
	_, err = os.Stat(out)
	assert.NoError(t, err)

	code, _, stderr := runCmd(validProgram, "extract", "-op", "99", "-")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "OPERATION_NOT_FOUND")

	code, _, _ = runCmd(validProgram, "extract", "-")
	assert.Equal(t, 2, code)

	code, _, stderr = runCmd(outsideProgram, "extract", "-op", "10001", "-")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "refusing")
}

func TestRun_Compose(t *testing.T) {
	code, stdout, stderr := runCmd("", "compose", filepath.Join("..", "..", "compose", "testdata", "job.yaml"))
	require.Equal(t, 0, code, stderr)
	p, err := hk.Parse(stdout)
	require.NoError(t, err)
	assert.Len(t, p.Operations, 2)
	assert.Equal(t, "S304", p.Header.Material)

	code, _, _ = runCmd("parts: [", "compose", "-")
	assert.Equal(t, 1, code)
}

func TestRun_Config(t *testing.T) {
	cfg := writeTemp(t, "hkmacro.hcl", `
limits {
  max_sheet_width = 50
}
`)
	code, stdout, _ := runCmd(validProgram, "validate", "-config", cfg, "-")
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout, "exceeds machine limit")

	code, _, _ = runCmd(validProgram, "validate", "-config", filepath.Join(t.TempDir(), "missing.hcl"), "-")
	assert.Equal(t, 2, code)
}
