package cdp

import (
	"context"
	"errors"
	"fmt"

	"github.com/xkilldash9x/flowrunner/internal/driver"
)

// CombineContext derives a context from tabCtx, which carries the chromedp
// target, that is also canceled when opCtx (the caller's deadline) ends.
func CombineContext(tabCtx, opCtx context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(tabCtx)
	go func() {
		select {
		case <-opCtx.Done():
			cancel()
		case <-combined.Done():
		}
	}()
	return combined, cancel
}

// classify maps a chromedp failure onto the driver's error classes. A
// deadline hit while the caller's context is still live is an action timeout.
func classify(op string, err error, caller context.Context) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, driver.ErrTimeout) || errors.Is(err, driver.ErrNotFound) {
		return err
	}
	if caller.Err() == nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)) {
		return fmt.Errorf("%s: %w", op, driver.ErrTimeout)
	}
	return fmt.Errorf("%s: %w", op, err)
}
