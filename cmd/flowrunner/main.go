// File: cmd/flowrunner/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/xkilldash9x/flowrunner/cmd"
	"github.com/xkilldash9x/flowrunner/internal/observability"
)

const panicLogFile = "flowrunner-panic.log"

// Exit status for an interrupted or crashed run; matches runner.ExitCode's
// "errored" class.
const exitErrored = 2

// Injected for tests.
var (
	osWriteFile = os.WriteFile
	osExit      = os.Exit
	execute     = cmd.Execute
)

func main() {
	defer handlePanic()

	// Cancel in-flight runs on SIGINT/SIGTERM; sessions still tear down.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	code := run(ctx)
	stop()
	observability.Sync()
	if code != 0 {
		osExit(code)
	}
}

func run(ctx context.Context) int {
	err := execute(ctx)
	var exit *cmd.ExitError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &exit):
		return exit.Code
	case errors.Is(err, context.Canceled):
		return exitErrored
	}
	return 1
}

// handlePanic records a crash to panicLogFile and exits with the errored status.
func handlePanic() {
	r := recover()
	if r == nil {
		return
	}
	observability.Sync()

	msg := fmt.Sprintf("panic: %v\n\n%s", r, debug.Stack())
	if err := osWriteFile(panicLogFile, []byte(msg), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL: Failed to write panic log: %v\n", err)
		fmt.Fprintf(os.Stderr, "Panic details:\n%s\n", msg)
		osExit(exitErrored)
		return
	}
	fmt.Fprintf(os.Stderr, "flowrunner crashed; details logged to %s\n", panicLogFile)
	osExit(exitErrored)
}
