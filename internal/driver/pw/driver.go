// File: internal/driver/pw/driver.go
package pw

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/flowrunner/internal/driver"
	"github.com/xkilldash9x/flowrunner/internal/flow"
)

const installTimeout = 5 * time.Minute

// Driver runs sessions through the Playwright driver process.
type Driver struct {
	logger  *zap.Logger
	install bool

	installOnce sync.Once
	installErr  error
}

var _ driver.Driver = (*Driver)(nil)

// New creates a playwright-backed driver. When install is set, the driver
// and Chromium are downloaded on first launch if missing.
func New(logger *zap.Logger, install bool) *Driver {
	return &Driver{logger: logger.Named("playwright"), install: install}
}

func (d *Driver) ensureInstallation(ctx context.Context) error {
	d.installOnce.Do(func() {
		if !d.install {
			return
		}
		d.logger.Info("Verifying Playwright browser installation...")
		ctx, cancel := context.WithTimeout(ctx, installTimeout)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			done <- playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}})
		}()
		select {
		case err := <-done:
			if err != nil {
				d.installErr = fmt.Errorf("failed to install playwright browsers: %w", err)
			}
		case <-ctx.Done():
			d.installErr = fmt.Errorf("timeout waiting for Playwright installation: %w", ctx.Err())
		}
	})
	return d.installErr
}

// Launch starts the driver, a Chromium instance, and an isolated context
// with one page.
func (d *Driver) Launch(ctx context.Context, opts driver.LaunchOptions) (driver.Session, error) {
	if err := d.ensureInstallation(ctx); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	log := d.logger.With(zap.String("session_id", id))

	// 1. Start the Playwright driver.
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright driver: %w", err)
	}

	// 2. Launch the browser.
	browser, err := pw.Chromium.Launch(launchOptions(opts))
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to launch browser instance: %w", err)
	}

	// 3. Open the isolated context and its first page.
	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{Width: opts.Width, Height: opts.Height},
	})
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}
	bctx.SetDefaultTimeout(float64(opts.Bound(0).Milliseconds()))

	if _, err := bctx.NewPage(); err != nil {
		_ = bctx.Close()
		_ = browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}

	log.Debug("Browser session launched.", zap.String("browser_version", browser.Version()))
	return &Session{id: id, opts: opts, logger: log, pw: pw, browser: browser, context: bctx}, nil
}

func launchOptions(opts driver.LaunchOptions) playwright.BrowserTypeLaunchOptions {
	args := make([]string, 0, len(opts.Args)+4)
	for _, f := range opts.Flags() {
		args = append(args, f.String())
	}
	lo := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		Args:     args,
		Timeout:  playwright.Float(60000),
	}
	if opts.ExecPath != "" {
		lo.ExecutablePath = playwright.String(opts.ExecPath)
	}
	return lo
}

// Session wraps one Playwright driver, browser, and context.
type Session struct {
	id     string
	opts   driver.LaunchOptions
	logger *zap.Logger

	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext

	mu       sync.Mutex
	isClosed bool
}

var _ driver.Session = (*Session)(nil)

func (s *Session) ID() string { return s.id }

func (s *Session) Navigate(ctx context.Context, url string, until driver.WaitCondition, timeout time.Duration) error {
	p, err := s.activePage(ctx)
	if err != nil {
		return err
	}
	_, err = p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: waitUntil(until),
		Timeout:   millis(s.opts.Bound(timeout)),
	})
	if err != nil {
		return mapErr("navigate to "+url, err)
	}
	return nil
}

func (s *Session) ActivePage(ctx context.Context) (driver.Page, error) {
	return s.activePage(ctx)
}

// activePage returns the last page of the context, which Playwright keeps
// in opening order.
func (s *Session) activePage(ctx context.Context) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	closed := s.isClosed
	s.mu.Unlock()
	if closed {
		return nil, errors.New("session is closed")
	}
	pages := s.context.Pages()
	if len(pages) == 0 {
		return nil, fmt.Errorf("no open page: %w", driver.ErrNotFound)
	}
	return &Page{session: s, page: pages[len(pages)-1]}, nil
}

// Close releases pages, context, browser and driver in that order.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.isClosed {
		s.mu.Unlock()
		return nil
	}
	s.isClosed = true
	s.mu.Unlock()

	s.logger.Debug("Closing browser session.")
	var errs []error
	for _, p := range s.context.Pages() {
		if err := p.Close(); err != nil && !errors.Is(err, playwright.ErrTargetClosed) {
			errs = append(errs, fmt.Errorf("close page: %w", err))
		}
	}
	if err := s.context.Close(); err != nil && !errors.Is(err, playwright.ErrTargetClosed) {
		errs = append(errs, fmt.Errorf("close context: %w", err))
	}
	if err := s.browser.Close(); err != nil && !errors.Is(err, playwright.ErrTargetClosed) {
		errs = append(errs, fmt.Errorf("close browser: %w", err))
	}
	if err := s.pw.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stop driver: %w", err))
	}
	return errors.Join(errs...)
}

func waitUntil(w driver.WaitCondition) *playwright.WaitUntilState {
	switch w {
	case flow.WaitDOMContentLoaded:
		return playwright.WaitUntilStateDomcontentloaded
	case flow.WaitLoad:
		return playwright.WaitUntilStateLoad
	}
	return playwright.WaitUntilStateCommit
}

func loadState(w driver.WaitCondition) *playwright.LoadState {
	if w == flow.WaitLoad {
		return playwright.LoadStateLoad
	}
	return playwright.LoadStateDomcontentloaded
}

// millis converts a bound to Playwright's float milliseconds. Zero leaves
// the context default in force.
func millis(d time.Duration) *float64 {
	if d <= 0 {
		return nil
	}
	return playwright.Float(float64(d.Milliseconds()))
}

func mapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, playwright.ErrTimeout) {
		return fmt.Errorf("%s: %w: %v", op, driver.ErrTimeout, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
