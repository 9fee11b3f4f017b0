package pw

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/xkilldash9x/flowrunner/internal/driver"
	"github.com/xkilldash9x/flowrunner/internal/flow"
)

// Element is a Playwright locator; it re-resolves on every action.
type Element struct {
	loc    flow.Locator
	base   playwright.Locator
	target playwright.Locator
}

var _ driver.Element = (*Element)(nil)

func (e *Element) Fill(ctx context.Context, text string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.classify("fill", e.target.Fill(text, playwright.LocatorFillOptions{Timeout: millis(timeout)}))
}

func (e *Element) Click(ctx context.Context, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.classify("click", e.target.Click(playwright.LocatorClickOptions{Timeout: millis(timeout)}))
}

func (e *Element) WaitVisible(ctx context.Context, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := e.target.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: millis(timeout),
	})
	return e.classify("wait visible", err)
}

// classify tells a missing element apart from one that never became
// actionable: after a timeout, too few matches means not found.
func (e *Element) classify(op string, err error) error {
	if err == nil {
		return nil
	}
	op = fmt.Sprintf("%s %s", op, e.loc)
	if errors.Is(err, playwright.ErrTimeout) {
		if n, cerr := e.base.Count(); cerr == nil && n <= e.loc.Index {
			return fmt.Errorf("%s: %w", op, driver.ErrNotFound)
		}
	}
	return mapErr(op, err)
}
