// File: internal/driver/cdp/driver.go
package cdp

import (
	"context"
	"fmt"

	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/flowrunner/internal/driver"
)

// Driver launches one Chromium process per session over the DevTools protocol.
type Driver struct {
	logger *zap.Logger
}

var _ driver.Driver = (*Driver)(nil)

// New creates a chromedp-backed driver.
func New(logger *zap.Logger) *Driver {
	return &Driver{logger: logger.Named("cdp")}
}

// Launch starts a browser with a fresh profile and attaches to its first page.
func (d *Driver) Launch(ctx context.Context, opts driver.LaunchOptions) (driver.Session, error) {
	id := uuid.NewString()
	log := d.logger.With(zap.String("session_id", id))

	// The browser lives until Close, not until the launch context ends.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), AllocatorOptions(opts)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(zap.NewStdLog(log.Named("chromedp")).Printf),
		chromedp.WithErrorf(log.Sugar().Debugf),
	)

	s := &Session{
		id:            id,
		opts:          opts,
		logger:        log,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		tabs:          make(map[string]*tab),
	}

	started := make(chan error, 1)
	go func() { started <- s.start() }()

	select {
	case err := <-started:
		if err != nil {
			browserCancel()
			allocCancel()
			return nil, fmt.Errorf("failed to launch browser: %w", err)
		}
	case <-ctx.Done():
		browserCancel()
		allocCancel()
		<-started
		return nil, fmt.Errorf("browser launch canceled: %w", ctx.Err())
	}

	log.Debug("Browser session launched.", zap.Bool("headless", opts.Headless))
	return s, nil
}

// AllocatorOptions translates launch options into exec allocator options.
func AllocatorOptions(opts driver.LaunchOptions) []chromedp.ExecAllocatorOption {
	out := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
	}
	if opts.ExecPath != "" {
		out = append(out, chromedp.ExecPath(opts.ExecPath))
	}
	for name, value := range allocatorFlags(opts) {
		out = append(out, chromedp.Flag(name, value))
	}
	return out
}

// allocatorFlags is the flag set behind AllocatorOptions. Later entries win,
// so user args can override the defaults.
func allocatorFlags(opts driver.LaunchOptions) map[string]interface{} {
	flags := map[string]interface{}{
		"disable-gpu":                   true,
		"enable-automation":             true,
		"disable-background-networking": true,
		"disable-popup-blocking":        true,
		"mute-audio":                    true,
	}
	if opts.Headless {
		flags["headless"] = true
		flags["hide-scrollbars"] = true
	}
	for _, f := range opts.Flags() {
		if f.Value == "" {
			flags[f.Name] = true
		} else {
			flags[f.Name] = f.Value
		}
	}
	return flags
}
