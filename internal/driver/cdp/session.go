package cdp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/flowrunner/internal/driver"
)

const (
	pageTargetType = "page"
	closeTimeout   = 10 * time.Second
)

// Session is one browser process with its own temporary profile.
type Session struct {
	id     string
	opts   driver.LaunchOptions
	logger *zap.Logger

	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	mu       sync.Mutex
	order    []string // page target IDs in creation order
	live     map[string]*target.Info
	tabs     map[string]*tab
	first    string
	isClosed bool
}

var _ driver.Session = (*Session)(nil)

// tab is an attached chromedp context for one page target.
type tab struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// start runs the browser, records its initial page, and subscribes to
// target lifecycle events so later pages are seen in creation order.
func (s *Session) start() error {
	s.live = make(map[string]*target.Info)

	chromedp.ListenBrowser(s.browserCtx, s.onTargetEvent)

	// 1. Allocate the browser and attach to its initial page.
	if err := chromedp.Run(s.browserCtx); err != nil {
		return err
	}
	c := chromedp.FromContext(s.browserCtx)
	first := string(c.Target.TargetID)

	s.mu.Lock()
	s.first = first
	s.track(&target.Info{TargetID: c.Target.TargetID, Type: pageTargetType})
	s.tabs[first] = &tab{ctx: s.browserCtx, cancel: s.browserCancel}
	s.mu.Unlock()

	// 2. Ask the browser to report pages opened from now on.
	if err := target.SetDiscoverTargets(true).Do(cdp.WithExecutor(s.browserCtx, c.Browser)); err != nil {
		return fmt.Errorf("failed to enable target discovery: %w", err)
	}
	return nil
}

// onTargetEvent runs on chromedp's event loop, which must not block or
// send commands. Releasing a closed page's context does both, so it is
// handed to its own goroutine after s.mu is dropped.
func (s *Session) onTargetEvent(ev interface{}) {
	var release context.CancelFunc

	s.mu.Lock()
	switch ev := ev.(type) {
	case *target.EventTargetCreated:
		if ev.TargetInfo != nil && ev.TargetInfo.Type == pageTargetType {
			s.track(ev.TargetInfo)
		}
	case *target.EventTargetInfoChanged:
		if ev.TargetInfo != nil {
			if _, ok := s.live[string(ev.TargetInfo.TargetID)]; ok {
				s.live[string(ev.TargetInfo.TargetID)] = ev.TargetInfo
			}
		}
	case *target.EventTargetDestroyed:
		id := string(ev.TargetID)
		delete(s.live, id)
		if t, ok := s.tabs[id]; ok && id != s.first {
			release = t.cancel
			delete(s.tabs, id)
		}
	}
	s.mu.Unlock()

	if release != nil {
		go release()
	}
}

// track records a page target once. Callers hold s.mu.
func (s *Session) track(info *target.Info) {
	id := string(info.TargetID)
	if _, seen := s.live[id]; seen {
		return
	}
	for _, known := range s.order {
		if known == id {
			s.live[id] = info
			return
		}
	}
	s.order = append(s.order, id)
	s.live[id] = info
}

func (s *Session) ID() string { return s.id }

// Navigate loads url in the active page.
func (s *Session) Navigate(ctx context.Context, url string, until driver.WaitCondition, timeout time.Duration) error {
	p, err := s.activePage(ctx)
	if err != nil {
		return err
	}
	return p.navigate(ctx, url, until, timeout)
}

// ActivePage returns the most recently opened page that is still open.
func (s *Session) ActivePage(ctx context.Context) (driver.Page, error) {
	return s.activePage(ctx)
}

func (s *Session) activePage(ctx context.Context) (*Page, error) {
	s.mu.Lock()
	if s.isClosed {
		s.mu.Unlock()
		return nil, errors.New("session is closed")
	}
	var (
		id   string
		info *target.Info
	)
	for i := len(s.order) - 1; i >= 0; i-- {
		if live, ok := s.live[s.order[i]]; ok {
			id, info = s.order[i], live
			break
		}
	}
	t := s.tabs[id]
	s.mu.Unlock()

	if id == "" {
		return nil, fmt.Errorf("no open page: %w", driver.ErrNotFound)
	}

	if t == nil {
		var err error
		if t, err = s.attach(ctx, id); err != nil {
			return nil, err
		}
	}
	return &Page{session: s, targetID: id, ctx: t.ctx, url: info.URL}, nil
}

// attach opens a chromedp context on a page target the session did not create.
func (s *Session) attach(ctx context.Context, id string) (*tab, error) {
	tabCtx, cancel := chromedp.NewContext(s.browserCtx, chromedp.WithTargetID(target.ID(id)))

	runCtx, stop := CombineContext(tabCtx, ctx)
	err := chromedp.Run(runCtx)
	stop()
	if err != nil {
		cancel()
		return nil, classify("attach to page", err, ctx)
	}

	t := &tab{ctx: tabCtx, cancel: cancel}
	s.mu.Lock()
	if existing, ok := s.tabs[id]; ok {
		s.mu.Unlock()
		cancel()
		return existing, nil
	}
	s.tabs[id] = t
	s.mu.Unlock()
	s.logger.Debug("Attached to page.", zap.String("target_id", id))
	return t, nil
}

// Close detaches from every page, shuts the browser down gracefully and
// finally stops the process. Subsequent calls return nil.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.isClosed {
		s.mu.Unlock()
		return nil
	}
	s.isClosed = true
	tabs := s.tabs
	s.tabs = nil
	s.mu.Unlock()

	s.logger.Debug("Closing browser session.")

	// 1. Release the pages we attached to.
	for id, t := range tabs {
		if id != s.first {
			t.cancel()
		}
	}

	// 2. Close the browser. chromedp.Cancel blocks until the process exits,
	// so it runs behind the caller's deadline.
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, closeTimeout)
		defer cancel()
	}
	done := make(chan error, 1)
	go func() { done <- chromedp.Cancel(s.browserCtx) }()

	var err error
	select {
	case err = <-done:
		if errors.Is(err, context.Canceled) {
			err = nil
		}
	case <-ctx.Done():
		err = fmt.Errorf("browser shutdown timed out: %w", ctx.Err())
	}

	// 3. Stop the process and remove its profile directory.
	s.browserCancel()
	s.allocCancel()
	if err == nil {
		s.logger.Debug("Browser session closed.")
	}
	return err
}
