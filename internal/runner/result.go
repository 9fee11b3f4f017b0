package runner

import (
	"errors"
	"fmt"
	"time"

	"github.com/xkilldash9x/flowrunner/internal/driver"
	"github.com/xkilldash9x/flowrunner/internal/flow"
)

// State is a phase of a single case run.
type State int

const (
	StateStarting State = iota
	StateNavigating
	StateRunningSteps
	StateAsserting
	StatePassed
	StateFailed
	StateErrored
	StateTeardown
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "Starting"
	case StateNavigating:
		return "Navigating"
	case StateRunningSteps:
		return "RunningSteps"
	case StateAsserting:
		return "Asserting"
	case StatePassed:
		return "Passed"
	case StateFailed:
		return "Failed"
	case StateErrored:
		return "Errored"
	case StateTeardown:
		return "Teardown"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Status is the outcome of a case.
type Status string

const (
	StatusPassed  Status = "PASSED"
	StatusFailed  Status = "FAILED"
	StatusErrored Status = "ERRORED"
)

// Result reports one case run.
type Result struct {
	Case      string
	RunID     string
	SessionID string
	Status    Status
	// Message is the human-readable outcome; for assertion failures it is
	// the case's expectation message rather than the driver's error text.
	Message string
	Err     error
	// FailedStep is the 1-based index of the step that stopped the run, or 0.
	FailedStep  int
	StepsRun    int
	Started     time.Time
	Duration    time.Duration
	States      []State
	TeardownErr error
}

// Passed reports whether the case passed.
func (r Result) Passed() bool { return r.Status == StatusPassed }

// StepError is a failure of one step in the sequence.
type StepError struct {
	Index int // 1-based
	Step  flow.Step
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Index, e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// AssertionError is an unmet terminal expectation.
type AssertionError struct {
	Message string
	Err     error
}

func (e *AssertionError) Error() string { return e.Message }

func (e *AssertionError) Unwrap() error { return e.Err }

// Classify maps a run error onto an outcome. Missing elements and timeouts
// within steps, and unmet assertions, are failures of the case; anything
// else means the run could not be carried out.
func Classify(err error) Status {
	if err == nil {
		return StatusPassed
	}
	var ae *AssertionError
	if errors.As(err, &ae) {
		return StatusFailed
	}
	var se *StepError
	if errors.As(err, &se) && (errors.Is(se.Err, driver.ErrNotFound) || errors.Is(se.Err, driver.ErrTimeout)) {
		return StatusFailed
	}
	return StatusErrored
}

// ExitCode is 0 when every case passed, 2 when any errored, 1 otherwise.
func ExitCode(results []Result) int {
	code := 0
	for _, r := range results {
		switch r.Status {
		case StatusPassed:
		case StatusFailed:
			if code == 0 {
				code = 1
			}
		default:
			code = 2
		}
	}
	return code
}
