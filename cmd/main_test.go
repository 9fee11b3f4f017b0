// File: cmd/main_test.go
package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/flowrunner/internal/config"
	"github.com/xkilldash9x/flowrunner/internal/observability"
)

// resetForTest provides the single source of truth for resetting test state.
func resetForTest(t *testing.T) {
	t.Helper()

	// 1. Reset package-level variables from root.go and run.go.
	cfgFile = ""
	envFile = ""
	originalDriver := newDriver
	t.Cleanup(func() { newDriver = originalDriver })

	// 2. Keep the process environment from leaking into the config.
	for _, key := range []string{"FLOWRUNNER_TARGET_BASE_URL", "FLOWRUNNER_BROWSER_ENGINE", "FLOWRUNNER_CASES_DIR", "FLOWRUNNER_RUNNER_CONCURRENCY"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	// 3. Reset the logger to a silent state.
	observability.ResetForTest()
	observability.InitializeLogger(config.LoggerConfig{Level: "fatal", Format: "console", ServiceName: "test"})
	t.Cleanup(observability.ResetForTest)

	// 4. Re-initialize the root command to its pristine state.
	rootCmd = newPristineRootCmd()
}

// newPristineRootCmd returns a fresh command tree that never picks up a
// flowrunner.yaml or .env from the working directory.
func newPristineRootCmd() *cobra.Command {
	cmd := NewRootCommand()
	envFile = ""
	return cmd
}

// executeCommand runs the root command with args and returns its output.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

// writeFile creates name under dir with content.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
