package flow

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// DefaultAssertionTimeout is used when an assertion does not set one.
const DefaultAssertionTimeout = 5 * time.Second

// Assertion is the single terminal check of a case: the target becomes
// visible within Timeout.
type Assertion struct {
	Target  Locator       `yaml:"target"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
	// Message describes the unmet expectation when the check fails.
	Message string `yaml:"message,omitempty"`
}

// ExpectVisible builds an assertion on sel.
func ExpectVisible(sel Selector, timeout time.Duration, message string) Assertion {
	return Assertion{Target: At(sel), Timeout: timeout, Message: message}
}

// ExpectText is ExpectVisible for a text selector.
func ExpectText(text string, timeout time.Duration, message string) Assertion {
	return ExpectVisible(Text(text), timeout, message)
}

// Bound returns the effective timeout.
func (a Assertion) Bound() time.Duration {
	if a.Timeout <= 0 {
		return DefaultAssertionTimeout
	}
	return a.Timeout
}

// FailureMessage is the human-readable outcome reported when the check fails.
func (a Assertion) FailureMessage() string {
	if a.Message != "" {
		return a.Message
	}
	return fmt.Sprintf("expected %s to become visible within %s", a.Target, a.Bound())
}

// TestCase is a named, ordered sequence of steps plus one terminal assertion.
// It is immutable once built; use Builder to construct one.
type TestCase struct {
	name        string
	description string
	startURL    string
	steps       []Step
	assertion   Assertion
	tags        []string
}

func (c TestCase) Name() string         { return c.name }
func (c TestCase) Description() string  { return c.description }
func (c TestCase) StartURL() string     { return c.startURL }
func (c TestCase) Assertion() Assertion { return c.assertion }
func (c TestCase) Len() int             { return len(c.steps) }

// Steps returns a copy of the ordered step list.
func (c TestCase) Steps() []Step {
	out := make([]Step, len(c.steps))
	copy(out, c.steps)
	return out
}

// Tags returns a copy of the case's tags.
func (c TestCase) Tags() []string {
	out := make([]string, len(c.tags))
	copy(out, c.tags)
	return out
}

// HasTag reports whether the case carries tag.
func (c TestCase) HasTag(tag string) bool {
	for _, t := range c.tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// Validate checks the whole case, reporting every problem found.
func (c TestCase) Validate() error {
	var errs []error
	if strings.TrimSpace(c.name) == "" {
		errs = append(errs, errors.New("case name is required"))
	}
	if strings.TrimSpace(c.startURL) == "" {
		errs = append(errs, errors.New("start url is required"))
	} else if _, err := url.Parse(c.startURL); err != nil {
		errs = append(errs, fmt.Errorf("start url: %w", err))
	}
	for i, s := range c.steps {
		if err := s.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("step %d: %w", i+1, err))
		}
	}
	if err := c.assertion.Target.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("assertion: %w", err))
	}
	if c.assertion.Timeout < 0 {
		errs = append(errs, errors.New("assertion timeout is negative"))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("case %q: %w", c.name, errors.Join(errs...))
}

// Builder assembles a TestCase.
type Builder struct {
	tc TestCase
}

// NewCase starts a case definition.
func NewCase(name string) *Builder {
	return &Builder{tc: TestCase{name: name}}
}

func (b *Builder) Describe(description string) *Builder {
	b.tc.description = description
	return b
}

// Start sets the URL the runner navigates to before the first step. A path
// is resolved against the configured base URL at run time.
func (b *Builder) Start(url string) *Builder {
	b.tc.startURL = url
	return b
}

func (b *Builder) Tag(tags ...string) *Builder {
	b.tc.tags = append(b.tc.tags, tags...)
	return b
}

// Do appends steps.
func (b *Builder) Do(steps ...Step) *Builder {
	b.tc.steps = append(b.tc.steps, steps...)
	return b
}

// Then appends the steps of each sub-flow in order.
func (b *Builder) Then(flows ...SubFlow) *Builder {
	for _, f := range flows {
		b.tc.steps = append(b.tc.steps, f.Steps...)
	}
	return b
}

func (b *Builder) Expect(a Assertion) *Builder {
	b.tc.assertion = a
	return b
}

// Build validates and returns the case. The builder may keep being used;
// the returned case shares no memory with it.
func (b *Builder) Build() (TestCase, error) {
	tc := b.tc
	tc.steps = append([]Step(nil), b.tc.steps...)
	tc.tags = append([]string(nil), b.tc.tags...)
	if err := tc.Validate(); err != nil {
		return TestCase{}, err
	}
	return tc, nil
}

// MustBuild is Build for statically defined cases.
func (b *Builder) MustBuild() TestCase {
	tc, err := b.Build()
	if err != nil {
		panic(err)
	}
	return tc
}
