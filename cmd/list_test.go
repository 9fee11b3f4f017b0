package cmd

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/flowrunner/internal/flow"
)

func TestListCmd_BuiltinAndFileCases(t *testing.T) {
	resetForTest(t)
	dir := t.TempDir()
	writeFile(t, dir, "smoke.yaml", smokeCases)

	out, err := executeCommand(t, "list", "--cases-dir", dir)

	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 7)
	assert.Regexp(t, `^NAME\s+STEPS\s+TAGS\s+START$`, lines[0])
	assert.Contains(t, out, "SignUp_New_Club")
	assert.Regexp(t, `(?m)^Smoke_Login\s+1\s+smoke,auth\s+/login$`, out)
}

func TestListCmd_DuplicateName(t *testing.T) {
	resetForTest(t)
	dir := t.TempDir()
	writeFile(t, dir, "dup.yaml", `
cases:
  - name: SignUp_New_Club
    start: /
    expect:
      target:
        selector: {kind: text, value: Welcome}
`)

	_, err := executeCommand(t, "list", "--cases-dir", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `duplicate case name "SignUp_New_Club"`)
}

func TestPrintCases_Verbose(t *testing.T) {
	tc := flow.NewCase("Home").
		Describe("landing page renders").
		Start("/").
		Do(flow.Wait(time.Second).Describe("pause")).
		Expect(flow.ExpectText("Welcome", 0, "no welcome banner")).
		MustBuild()

	var buf strings.Builder
	require.NoError(t, printCases(&buf, []flow.TestCase{tc}, true))

	out := buf.String()
	assert.Contains(t, out, "\nHome\n  landing page renders\n")
	assert.Contains(t, out, "   1. wait 1s (pause)\n")
	assert.Contains(t, out, "  => no welcome banner\n")
}
