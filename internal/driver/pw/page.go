package pw

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/xkilldash9x/flowrunner/internal/driver"
	"github.com/xkilldash9x/flowrunner/internal/flow"
)

// Page adapts a Playwright page. Playwright calls are not context aware, so
// ctx is only checked before each call.
type Page struct {
	session *Session
	page    playwright.Page
}

var _ driver.Page = (*Page)(nil)

func (p *Page) URL() string { return p.page.URL() }

func (p *Page) WaitForLoadState(ctx context.Context, state driver.WaitCondition, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := p.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   loadState(state),
		Timeout: millis(timeout),
	})
	return mapErr(fmt.Sprintf("wait for %s", state), err)
}

// Frames returns every frame of the page except the main frame.
func (p *Page) Frames(ctx context.Context) ([]driver.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	main := p.page.MainFrame()
	var frames []driver.Frame
	for _, f := range p.page.Frames() {
		if f == main {
			continue
		}
		frames = append(frames, &Frame{frame: f})
	}
	return frames, nil
}

func (p *Page) Locate(ctx context.Context, loc flow.Locator) (driver.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := loc.Validate(); err != nil {
		return nil, err
	}
	sc := p.pageScope()
	if loc.Frame != "" {
		ref := strconv.Quote(loc.Frame)
		fl := p.page.FrameLocator(fmt.Sprintf(`iframe[name=%s], iframe[id=%s], iframe[src*=%s]`, ref, ref, ref)).First()
		sc = frameScope(fl)
	}
	base := sc.resolve(loc.Selector)
	return &Element{loc: loc, base: base, target: base.Nth(loc.Index)}, nil
}

// Scroll wheels down by one viewport height.
func (p *Page) Scroll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	height := p.session.opts.Height
	if vp := p.page.ViewportSize(); vp != nil && vp.Height > 0 {
		height = vp.Height
	}
	return mapErr("scroll", p.page.Mouse().Wheel(0, float64(height)))
}

type Frame struct {
	frame playwright.Frame
}

var _ driver.Frame = (*Frame)(nil)

func (f *Frame) Name() string { return f.frame.Name() }
func (f *Frame) URL() string  { return f.frame.URL() }

func (f *Frame) WaitForLoadState(ctx context.Context, state driver.WaitCondition, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := f.frame.WaitForLoadState(playwright.FrameWaitForLoadStateOptions{
		State:   loadState(state),
		Timeout: millis(timeout),
	})
	return mapErr(fmt.Sprintf("wait for frame %s %s", f.frame.Name(), state), err)
}

// scope builds locators from a page or a frame locator; the two expose the
// same finders with distinct option types.
type scope struct {
	locator func(selector string) playwright.Locator
	role    func(role string, name string, exact bool) playwright.Locator
	label   func(text string, exact bool) playwright.Locator
	text    func(text string, exact bool) playwright.Locator
	testID  func(id string) playwright.Locator
}

func (p *Page) pageScope() scope {
	pg := p.page
	return scope{
		locator: func(s string) playwright.Locator { return pg.Locator(s) },
		role: func(role, name string, exact bool) playwright.Locator {
			o := playwright.PageGetByRoleOptions{}
			if name != "" {
				o.Name = name
				o.Exact = playwright.Bool(exact)
			}
			return pg.GetByRole(playwright.AriaRole(role), o)
		},
		label: func(text string, exact bool) playwright.Locator {
			return pg.GetByLabel(text, playwright.PageGetByLabelOptions{Exact: playwright.Bool(exact)})
		},
		text: func(text string, exact bool) playwright.Locator {
			return pg.GetByText(text, playwright.PageGetByTextOptions{Exact: playwright.Bool(exact)})
		},
		testID: func(id string) playwright.Locator { return pg.GetByTestId(id) },
	}
}

func frameScope(fl playwright.FrameLocator) scope {
	return scope{
		locator: func(s string) playwright.Locator { return fl.Locator(s) },
		role: func(role, name string, exact bool) playwright.Locator {
			o := playwright.FrameLocatorGetByRoleOptions{}
			if name != "" {
				o.Name = name
				o.Exact = playwright.Bool(exact)
			}
			return fl.GetByRole(playwright.AriaRole(role), o)
		},
		label: func(text string, exact bool) playwright.Locator {
			return fl.GetByLabel(text, playwright.FrameLocatorGetByLabelOptions{Exact: playwright.Bool(exact)})
		},
		text: func(text string, exact bool) playwright.Locator {
			return fl.GetByText(text, playwright.FrameLocatorGetByTextOptions{Exact: playwright.Bool(exact)})
		},
		testID: func(id string) playwright.Locator { return fl.GetByTestId(id) },
	}
}

// resolve maps a selector onto Playwright's native finders.
func (sc scope) resolve(sel flow.Selector) playwright.Locator {
	switch sel.Kind {
	case flow.KindRole:
		return sc.role(sel.Role, sel.Name, sel.Exact)
	case flow.KindLabel:
		return sc.label(sel.Value, sel.Exact)
	case flow.KindText:
		return sc.text(sel.Value, sel.Exact)
	case flow.KindTestID:
		return sc.testID(sel.Value)
	}
	return sc.locator(sel.String())
}
