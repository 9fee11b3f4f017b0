package cdp

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/xkilldash9x/flowrunner/internal/driver"
	"github.com/xkilldash9x/flowrunner/internal/flow"
)

const pollInterval = 100 * time.Millisecond

// Page is a page target bound to its chromedp context.
type Page struct {
	session  *Session
	targetID string
	ctx      context.Context
	url      string
}

var _ driver.Page = (*Page)(nil)

func (p *Page) URL() string { return p.url }

// run executes actions on the page within timeout (or the session default).
func (p *Page) run(ctx context.Context, op string, timeout time.Duration, actions ...chromedp.Action) error {
	cctx, cancel := CombineContext(p.ctx, ctx)
	defer cancel()
	tctx, tcancel := context.WithTimeout(cctx, p.session.opts.Bound(timeout))
	defer tcancel()
	return classify(op, chromedp.Run(tctx, actions...), ctx)
}

func (p *Page) navigate(ctx context.Context, url string, until driver.WaitCondition, timeout time.Duration) error {
	start := time.Now()
	bound := p.session.opts.Bound(timeout)

	// Page.navigate returns once the response is committed to the frame.
	err := p.run(ctx, "navigate to "+url, bound, chromedp.ActionFunc(func(c context.Context) error {
		var res page.NavigateReturns
		if err := cdp.Execute(c, page.CommandNavigate, page.Navigate(url), &res); err != nil {
			return err
		}
		if res.ErrorText != "" {
			return fmt.Errorf("navigation to %s failed: %s", url, res.ErrorText)
		}
		return nil
	}))
	if err != nil {
		return err
	}
	p.url = url

	if until == "" || until == flow.WaitCommit {
		return nil
	}
	remaining := bound - time.Since(start)
	if remaining <= 0 {
		return fmt.Errorf("navigate to %s: %w", url, driver.ErrTimeout)
	}
	return p.WaitForLoadState(ctx, until, remaining)
}

// WaitForLoadState polls document.readyState until it reaches state.
func (p *Page) WaitForLoadState(ctx context.Context, state driver.WaitCondition, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = p.session.opts.Bound(0)
	}
	return p.run(ctx, fmt.Sprintf("wait for %s", state), timeout, chromedp.ActionFunc(func(c context.Context) error {
		return pollReadyState(c, state, func(c context.Context) (string, error) {
			var rs string
			err := chromedp.Evaluate(`document.readyState`, &rs).Do(c)
			return rs, err
		})
	}))
}

// Frames lists every sub-frame of the page, depth first.
func (p *Page) Frames(ctx context.Context) ([]driver.Frame, error) {
	var tree *page.FrameTree
	err := p.run(ctx, "read frame tree", 0, chromedp.ActionFunc(func(c context.Context) error {
		var err error
		tree, err = page.GetFrameTree().Do(c)
		return err
	}))
	if err != nil {
		return nil, err
	}

	var frames []driver.Frame
	var walk func(t *page.FrameTree)
	walk = func(t *page.FrameTree) {
		for _, child := range t.ChildFrames {
			if child.Frame != nil {
				frames = append(frames, &Frame{page: p, frame: child.Frame})
			}
			walk(child)
		}
	}
	if tree != nil {
		walk(tree)
	}
	return frames, nil
}

// Locate binds loc to the page. The selector is resolved when acted on.
func (p *Page) Locate(_ context.Context, loc flow.Locator) (driver.Element, error) {
	if err := loc.Validate(); err != nil {
		return nil, err
	}
	return &Element{page: p, loc: loc}, nil
}

// Scroll dispatches a mouse wheel event of one viewport height at the
// centre of the viewport.
func (p *Page) Scroll(ctx context.Context) error {
	return p.run(ctx, "scroll", 0, chromedp.ActionFunc(func(c context.Context) error {
		var size struct {
			W float64 `json:"w"`
			H float64 `json:"h"`
		}
		if err := chromedp.Evaluate(`({w: window.innerWidth, h: window.innerHeight})`, &size).Do(c); err != nil {
			return err
		}
		return input.DispatchMouseEvent(input.MouseWheel, size.W/2, size.H/2).
			WithDeltaX(0).
			WithDeltaY(size.H).
			Do(c)
	}))
}

// Frame is a sub-frame of a page. Its readiness is read from an isolated
// world so page scripts cannot interfere.
type Frame struct {
	page  *Page
	frame *cdp.Frame
}

var _ driver.Frame = (*Frame)(nil)

func (f *Frame) Name() string { return f.frame.Name }
func (f *Frame) URL() string  { return f.frame.URL }

func (f *Frame) WaitForLoadState(ctx context.Context, state driver.WaitCondition, timeout time.Duration) error {
	op := fmt.Sprintf("wait for frame %s %s", f.frame.ID, state)
	return f.page.run(ctx, op, timeout, chromedp.ActionFunc(func(c context.Context) error {
		world, err := page.CreateIsolatedWorld(f.frame.ID).WithWorldName("flowrunner").Do(c)
		if err != nil {
			return err
		}
		return pollReadyState(c, state, func(c context.Context) (string, error) {
			var rs string
			err := chromedp.Evaluate(`document.readyState`, &rs, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
				return p.WithContextID(world)
			}).Do(c)
			return rs, err
		})
	}))
}

// pollReadyState reads the document state until it satisfies want or ctx ends.
func pollReadyState(ctx context.Context, want driver.WaitCondition, read func(context.Context) (string, error)) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		rs, err := read(ctx)
		if err == nil && reached(rs, want) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// reached reports whether a document.readyState value satisfies want.
func reached(readyState string, want driver.WaitCondition) bool {
	switch want {
	case flow.WaitLoad:
		return readyState == "complete"
	case flow.WaitDOMContentLoaded:
		return readyState == "interactive" || readyState == "complete"
	}
	return readyState != ""
}
