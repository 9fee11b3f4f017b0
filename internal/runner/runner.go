// File: internal/runner/runner.go
// Description: Executes one test case against one exclusive browser session:
// launch, navigate, settle, run steps, assert, and tear down exactly once.

package runner

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/flowrunner/internal/config"
	"github.com/xkilldash9x/flowrunner/internal/driver"
	"github.com/xkilldash9x/flowrunner/internal/flow"
	"github.com/xkilldash9x/flowrunner/internal/observability"
)

const defaultTeardownTimeout = 15 * time.Second

// Options tune a Runner.
type Options struct {
	// BaseURL resolves relative start and navigate URLs.
	BaseURL           string
	NavigationTimeout time.Duration
	SettleTimeout     time.Duration
	// ActionDelay is a pause before every fill or click.
	ActionDelay time.Duration
	// Linger is a pause after a passing assertion, before teardown.
	Linger          time.Duration
	TeardownTimeout time.Duration
	Launch          driver.LaunchOptions
}

// OptionsFromConfig builds runner options from the application config.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		BaseURL:           cfg.Target.BaseURL,
		NavigationTimeout: cfg.Runner.NavigationTimeout,
		SettleTimeout:     cfg.Runner.SettleTimeout,
		ActionDelay:       cfg.Runner.ActionDelay,
		Linger:            cfg.Runner.Linger,
		Launch:            driver.NewLaunchOptions(cfg.Browser, cfg.Runner),
	}
}

// Runner executes test cases. It keeps no state between runs and may be
// shared by concurrent callers; each run owns its session.
type Runner struct {
	driver driver.Driver
	opts   Options
	logger *zap.Logger
}

// New creates a Runner.
func New(drv driver.Driver, opts Options, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.TeardownTimeout <= 0 {
		opts.TeardownTimeout = defaultTeardownTimeout
	}
	return &Runner{driver: drv, opts: opts, logger: logger.Named("runner")}
}

// run carries the mutable state of one case execution.
type run struct {
	res    *Result
	logger *zap.Logger
	state  State
}

func (r *run) enter(s State) {
	if len(r.res.States) > 0 {
		r.logger.Debug("State transition.", zap.Stringer("from", r.state), zap.Stringer("to", s))
	}
	r.state = s
	r.res.States = append(r.res.States, s)
}

// finish records the outcome for err and moves to the terminal state.
func (r *run) finish(err error, message string) {
	r.res.Err = err
	r.res.Status = Classify(err)
	r.res.Message = message
	var se *StepError
	if errors.As(err, &se) {
		r.res.FailedStep = se.Index
	}
	switch r.res.Status {
	case StatusPassed:
		r.enter(StatePassed)
	case StatusFailed:
		r.enter(StateFailed)
	default:
		r.enter(StateErrored)
	}
}

// Run executes tc once and reports the outcome. It never panics; a panic
// inside the flow becomes an Errored result after the session is closed.
func (rn *Runner) Run(ctx context.Context, tc flow.TestCase) (res Result) {
	runID := uuid.NewString()
	res = Result{Case: tc.Name(), RunID: runID, Started: time.Now()}
	r := &run{res: &res, logger: observability.ForRun(rn.logger, tc.Name(), runID)}
	defer func() {
		res.Duration = time.Since(res.Started)
		r.logger.Info("Case finished.",
			zap.String("status", string(res.Status)),
			zap.String("message", res.Message),
			zap.Int("steps_run", res.StepsRun),
			zap.Duration("duration", res.Duration),
		)
	}()

	// 1. Acquire a session. Nothing to tear down if this fails.
	r.enter(StateStarting)
	sess, err := rn.driver.Launch(ctx, rn.opts.Launch)
	if err != nil {
		r.finish(err, fmt.Sprintf("failed to start browser session: %v", err))
		return res
	}
	res.SessionID = sess.ID()
	r.logger = r.logger.With(zap.String("session_id", res.SessionID))

	// 2. Teardown runs exactly once, after the outcome is recorded.
	defer rn.teardown(sess, r)
	defer func() {
		if p := recover(); p != nil {
			err := fmt.Errorf("panic during run: %v", p)
			r.logger.Error("Recovered from panic.", zap.Any("panic", p), zap.Stack("stack"))
			r.finish(err, err.Error())
		}
	}()

	message, err := rn.execute(ctx, sess, tc, r)
	r.finish(err, message)
	if err == nil && rn.opts.Linger > 0 {
		_ = sleep(ctx, rn.opts.Linger)
	}
	return res
}

// execute runs navigation, settle, steps and the assertion. It returns the
// message to report and the first error.
func (rn *Runner) execute(ctx context.Context, sess driver.Session, tc flow.TestCase, r *run) (string, error) {
	// 3. Navigate to the start URL, committed only.
	r.enter(StateNavigating)
	start, err := rn.resolve(tc.StartURL())
	if err != nil {
		return err.Error(), err
	}
	r.logger.Info("Navigating to start URL.", zap.String("url", start))
	if err := sess.Navigate(ctx, start, flow.WaitCommit, rn.opts.NavigationTimeout); err != nil {
		return fmt.Sprintf("navigation to %s failed: %v", start, err), err
	}

	// 4. Settle the page and its frames, best effort.
	rn.settle(ctx, sess, r.logger)

	// 5. Steps, strictly in order; the first failure ends the sequence.
	r.enter(StateRunningSteps)
	for i, step := range tc.Steps() {
		r.logger.Debug("Running step.", zap.Int("index", i+1), zap.Stringer("step", step))
		if err := rn.step(ctx, sess, step); err != nil {
			se := &StepError{Index: i + 1, Step: step, Err: err}
			return se.Error(), se
		}
		r.res.StepsRun++
	}

	// 6. The assertion, once.
	r.enter(StateAsserting)
	a := tc.Assertion()
	if err := rn.assert(ctx, sess, a); err != nil {
		if errors.Is(err, driver.ErrNotFound) || errors.Is(err, driver.ErrTimeout) {
			ae := &AssertionError{Message: a.FailureMessage(), Err: err}
			return ae.Message, ae
		}
		return fmt.Sprintf("assertion could not be evaluated: %v", err), err
	}
	return "all steps completed and expectation met", nil
}

func (rn *Runner) step(ctx context.Context, sess driver.Session, s flow.Step) error {
	switch s.Kind {
	case flow.StepNavigate:
		target, err := rn.resolve(s.URL)
		if err != nil {
			return err
		}
		timeout := s.Timeout
		if timeout == 0 {
			timeout = rn.opts.NavigationTimeout
		}
		return sess.Navigate(ctx, target, s.WaitUntil, timeout)

	case flow.StepWait:
		return sleep(ctx, s.Duration)

	case flow.StepScroll:
		page, err := sess.ActivePage(ctx)
		if err != nil {
			return err
		}
		return page.Scroll(ctx)

	case flow.StepFill, flow.StepClick:
		if rn.opts.ActionDelay > 0 {
			if err := sleep(ctx, rn.opts.ActionDelay); err != nil {
				return err
			}
		}
		// The target is looked up on whichever page opened last.
		page, err := sess.ActivePage(ctx)
		if err != nil {
			return err
		}
		el, err := page.Locate(ctx, s.Target)
		if err != nil {
			return err
		}
		if s.Kind == flow.StepFill {
			return el.Fill(ctx, s.Text, s.Timeout)
		}
		return el.Click(ctx, s.Timeout)
	}
	return fmt.Errorf("unsupported step kind %q", s.Kind)
}

func (rn *Runner) assert(ctx context.Context, sess driver.Session, a flow.Assertion) error {
	page, err := sess.ActivePage(ctx)
	if err != nil {
		return err
	}
	el, err := page.Locate(ctx, a.Target)
	if err != nil {
		return err
	}
	return el.WaitVisible(ctx, a.Bound())
}

// settle waits for the active page and each sub-frame to parse, each
// independently bounded. Failures are logged and dropped.
func (rn *Runner) settle(ctx context.Context, sess driver.Session, logger *zap.Logger) {
	page, err := sess.ActivePage(ctx)
	if err != nil {
		logger.Debug("Settle skipped, no active page.", zap.Error(err))
		return
	}
	if err := page.WaitForLoadState(ctx, flow.WaitDOMContentLoaded, rn.opts.SettleTimeout); err != nil {
		logger.Debug("Page did not settle.", zap.Error(err))
	}
	frames, err := page.Frames(ctx)
	if err != nil {
		logger.Debug("Could not list frames.", zap.Error(err))
		return
	}
	for _, f := range frames {
		if err := f.WaitForLoadState(ctx, flow.WaitDOMContentLoaded, rn.opts.SettleTimeout); err != nil {
			logger.Debug("Frame did not settle.", zap.String("frame", f.Name()), zap.Error(err))
		}
	}
}

func (rn *Runner) teardown(sess driver.Session, r *run) {
	r.enter(StateTeardown)
	// A crashing driver must not take down sibling runs in a suite.
	defer func() {
		if p := recover(); p != nil {
			r.res.TeardownErr = fmt.Errorf("panic during teardown: %v", p)
			r.logger.Error("Recovered from panic during teardown.", zap.Any("panic", p), zap.Stack("stack"))
		}
	}()
	// A fresh context: teardown must run even when the run's context is done.
	ctx, cancel := context.WithTimeout(context.Background(), rn.opts.TeardownTimeout)
	defer cancel()
	if err := sess.Close(ctx); err != nil {
		r.res.TeardownErr = err
		r.logger.Warn("Session teardown failed.", zap.Error(err))
	}
}

// resolve makes ref absolute against the base URL.
func (rn *Runner) resolve(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", ref, err)
	}
	if u.IsAbs() || rn.opts.BaseURL == "" {
		return u.String(), nil
	}
	base, err := url.Parse(rn.opts.BaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base url %q: %w", rn.opts.BaseURL, err)
	}
	return base.ResolveReference(u).String(), nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
