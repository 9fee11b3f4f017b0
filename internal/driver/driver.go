// File: internal/driver/driver.go
package driver

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/xkilldash9x/flowrunner/internal/config"
	"github.com/xkilldash9x/flowrunner/internal/flow"
)

// Failure classes every backend maps its errors onto.
var (
	// ErrNotFound means a locator matched nothing, or fewer elements than its index.
	ErrNotFound = errors.New("element not found")
	// ErrTimeout means an action or wait exceeded its bound.
	ErrTimeout = errors.New("timed out")
)

// WaitCondition is re-exported so callers need not import flow for it.
type WaitCondition = flow.WaitCondition

// Driver launches isolated browser sessions.
type Driver interface {
	Launch(ctx context.Context, opts LaunchOptions) (Session, error)
}

// Session owns one browser process and one isolated context. A session
// serves a single case and is not safe for concurrent use.
type Session interface {
	ID() string
	Navigate(ctx context.Context, url string, until WaitCondition, timeout time.Duration) error
	// ActivePage returns the most recently opened page that is still open.
	ActivePage(ctx context.Context) (Page, error)
	// Close releases page, context, browser and driver, in that order. It is idempotent.
	Close(ctx context.Context) error
}

type Page interface {
	URL() string
	WaitForLoadState(ctx context.Context, state WaitCondition, timeout time.Duration) error
	// Frames returns the attached sub-frames, excluding the main frame.
	Frames(ctx context.Context) ([]Frame, error)
	// Locate binds loc to the page. Resolution happens on the action.
	Locate(ctx context.Context, loc flow.Locator) (Element, error)
	// Scroll wheels the page down by one viewport height.
	Scroll(ctx context.Context) error
}

type Frame interface {
	Name() string
	URL() string
	WaitForLoadState(ctx context.Context, state WaitCondition, timeout time.Duration) error
}

// Element actions take a zero timeout to mean the session default.
type Element interface {
	Fill(ctx context.Context, text string, timeout time.Duration) error
	Click(ctx context.Context, timeout time.Duration) error
	WaitVisible(ctx context.Context, timeout time.Duration) error
}

// LaunchOptions configures the browser process and its isolated context.
type LaunchOptions struct {
	Headless      bool
	Width         int
	Height        int
	NoSandbox     bool
	DisableDevShm bool
	SingleProcess bool
	Args          []string
	ExecPath      string
	// DefaultTimeout applies to every call made with a zero timeout.
	DefaultTimeout time.Duration
}

// NewLaunchOptions maps the browser and runner configuration onto launch options.
func NewLaunchOptions(b config.BrowserConfig, r config.RunnerConfig) LaunchOptions {
	return LaunchOptions{
		Headless:       b.Headless,
		Width:          b.Viewport.Width,
		Height:         b.Viewport.Height,
		NoSandbox:      b.NoSandbox,
		DisableDevShm:  b.DisableDevShm,
		SingleProcess:  b.SingleProcess,
		Args:           append([]string(nil), b.Args...),
		ExecPath:       b.ExecPath,
		DefaultTimeout: r.DefaultTimeout,
	}
}

// Bound returns timeout, or the default when timeout is zero.
func (o LaunchOptions) Bound(timeout time.Duration) time.Duration {
	if timeout > 0 {
		return timeout
	}
	if o.DefaultTimeout > 0 {
		return o.DefaultTimeout
	}
	return 30 * time.Second
}

// Flags renders the command-line switches shared by every Chromium backend,
// without leading dashes. Extra args are split on the first '='.
func (o LaunchOptions) Flags() []Flag {
	var flags []Flag
	if o.Width > 0 && o.Height > 0 {
		flags = append(flags, Flag{Name: "window-size", Value: strconv.Itoa(o.Width) + "," + strconv.Itoa(o.Height)})
	}
	if o.NoSandbox {
		flags = append(flags, Flag{Name: "no-sandbox"})
	}
	if o.DisableDevShm {
		flags = append(flags, Flag{Name: "disable-dev-shm-usage"})
	}
	if o.SingleProcess {
		flags = append(flags, Flag{Name: "single-process"})
	}
	for _, arg := range o.Args {
		flags = append(flags, ParseFlag(arg))
	}
	return flags
}

// Flag is one browser switch. An empty Value is a boolean switch.
type Flag struct {
	Name  string
	Value string
}

func (f Flag) String() string {
	if f.Value == "" {
		return "--" + f.Name
	}
	return "--" + f.Name + "=" + f.Value
}

// ParseFlag accepts "--name", "--name=value" or "name=value".
func ParseFlag(arg string) Flag {
	name, value, _ := strings.Cut(strings.TrimLeft(arg, "-"), "=")
	return Flag{Name: name, Value: value}
}
