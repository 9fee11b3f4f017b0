// File: cmd/flowrunner/main_test.go
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/flowrunner/cmd"
)

func resetMocks() {
	osWriteFile = os.WriteFile
	osExit = os.Exit
	execute = cmd.Execute
}

func TestRun_ExitCodes(t *testing.T) {
	defer resetMocks()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, 0},
		{"command error", errors.New("bad flag"), 1},
		{"interrupted", fmt.Errorf("run: %w", context.Canceled), exitErrored},
		{"failed cases", &cmd.ExitError{Code: 1}, 1},
		{"errored cases", &cmd.ExitError{Code: 2}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			execute = func(context.Context) error { return tt.err }
			assert.Equal(t, tt.want, run(context.Background()))
		})
	}
}

func TestHandlePanic(t *testing.T) {
	defer resetMocks()

	t.Run("writes the panic log", func(t *testing.T) {
		var (
			path    string
			content []byte
			code    = -1
		)
		osWriteFile = func(name string, data []byte, perm fs.FileMode) error {
			path, content = name, data
			return nil
		}
		osExit = func(c int) { code = c }

		func() {
			defer handlePanic()
			panic("boom")
		}()

		assert.Equal(t, panicLogFile, path)
		assert.Contains(t, string(content), "panic: boom")
		assert.Equal(t, exitErrored, code)
	})

	t.Run("write failure still exits", func(t *testing.T) {
		code := -1
		osWriteFile = func(string, []byte, fs.FileMode) error { return errors.New("read-only") }
		osExit = func(c int) { code = c }

		func() {
			defer handlePanic()
			panic("boom")
		}()
		assert.Equal(t, exitErrored, code)
	})

	t.Run("no panic is a no-op", func(t *testing.T) {
		called := false
		osExit = func(int) { called = true }
		func() {
			defer handlePanic()
		}()
		require.False(t, called)
	})
}
