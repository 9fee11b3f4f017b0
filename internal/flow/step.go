package flow

import (
	"fmt"
	"strings"
	"time"
)

// StepKind enumerates the atomic browser actions a case is made of.
type StepKind string

const (
	StepNavigate StepKind = "navigate"
	StepWait     StepKind = "wait"
	StepFill     StepKind = "fill"
	StepClick    StepKind = "click"
	StepScroll   StepKind = "scroll"
)

// WaitCondition is the readiness signal a navigation waits for.
type WaitCondition string

const (
	// WaitCommit returns as soon as the navigation response is committed.
	WaitCommit           WaitCondition = "commit"
	WaitDOMContentLoaded WaitCondition = "domcontentloaded"
	WaitLoad             WaitCondition = "load"
)

// Valid reports whether w is a known condition. The empty value means commit.
func (w WaitCondition) Valid() bool {
	switch w {
	case "", WaitCommit, WaitDOMContentLoaded, WaitLoad:
		return true
	}
	return false
}

// Locator is a selector scoped to a frame, with an ordinal among its matches.
type Locator struct {
	Selector Selector `yaml:"selector"`
	// Frame optionally names a sub-frame by name, id or URL fragment.
	// Empty means the main frame of the active page.
	Frame string `yaml:"frame,omitempty"`
	Index int    `yaml:"index,omitempty"`
}

// At returns a locator for the given selector's first match.
func At(sel Selector) Locator { return Locator{Selector: sel} }

// Nth returns a copy of l pointing at the i-th match.
func (l Locator) Nth(i int) Locator {
	l.Index = i
	return l
}

// InFrame returns a copy of l scoped to the named frame.
func (l Locator) InFrame(ref string) Locator {
	l.Frame = ref
	return l
}

func (l Locator) String() string {
	s := l.Selector.String()
	if l.Index > 0 {
		s = fmt.Sprintf("%s >> nth=%d", s, l.Index)
	}
	if l.Frame != "" {
		s = fmt.Sprintf("frame(%s) >> %s", l.Frame, s)
	}
	return s
}

// Validate checks the selector and index.
func (l Locator) Validate() error {
	if err := l.Selector.Validate(); err != nil {
		return err
	}
	if l.Index < 0 {
		return fmt.Errorf("index %d is negative", l.Index)
	}
	return nil
}

// Step is one atomic action in a case's ordered sequence.
type Step struct {
	Kind StepKind `yaml:"kind"`

	// navigate
	URL       string        `yaml:"url,omitempty"`
	WaitUntil WaitCondition `yaml:"wait_until,omitempty"`

	// Timeout bounds navigate and click. Zero falls back to the session default.
	Timeout time.Duration `yaml:"timeout,omitempty"`
	// Duration is the pause length for wait steps.
	Duration time.Duration `yaml:"duration,omitempty"`

	// fill and click
	Target Locator `yaml:"target,omitempty"`
	Text   string  `yaml:"text,omitempty"`

	// Note is a free-form description carried into logs.
	Note string `yaml:"note,omitempty"`
}

// Navigate loads url and waits for the given condition.
func Navigate(url string, until WaitCondition, timeout time.Duration) Step {
	return Step{Kind: StepNavigate, URL: url, WaitUntil: until, Timeout: timeout}
}

// Wait pauses the flow.
func Wait(d time.Duration) Step { return Step{Kind: StepWait, Duration: d} }

// Fill types text into the located element.
func Fill(target Locator, text string) Step {
	return Step{Kind: StepFill, Target: target, Text: text}
}

// Click clicks the located element within timeout.
func Click(target Locator, timeout time.Duration) Step {
	return Step{Kind: StepClick, Target: target, Timeout: timeout}
}

// Scroll wheels the active page down by one viewport height.
func Scroll() Step { return Step{Kind: StepScroll} }

// Describe attaches a note to the step.
func (s Step) Describe(note string) Step {
	s.Note = note
	return s
}

// Locates reports whether the step must resolve an element on the active page.
func (s Step) Locates() bool {
	return s.Kind == StepFill || s.Kind == StepClick
}

// Validate checks that the step carries what its kind needs.
func (s Step) Validate() error {
	if s.Timeout < 0 || s.Duration < 0 {
		return fmt.Errorf("%s step has a negative duration", s.Kind)
	}
	switch s.Kind {
	case StepNavigate:
		if strings.TrimSpace(s.URL) == "" {
			return fmt.Errorf("navigate step has no url")
		}
		if !s.WaitUntil.Valid() {
			return fmt.Errorf("navigate step has unknown wait condition %q", s.WaitUntil)
		}
	case StepWait:
		if s.Duration == 0 {
			return fmt.Errorf("wait step has no duration")
		}
	case StepFill, StepClick:
		if err := s.Target.Validate(); err != nil {
			return fmt.Errorf("%s step target: %w", s.Kind, err)
		}
	case StepScroll:
	default:
		return fmt.Errorf("unknown step kind %q", s.Kind)
	}
	return nil
}

func (s Step) String() string {
	var b strings.Builder
	b.WriteString(string(s.Kind))
	switch s.Kind {
	case StepNavigate:
		fmt.Fprintf(&b, " %s", s.URL)
	case StepWait:
		fmt.Fprintf(&b, " %s", s.Duration)
	case StepFill:
		fmt.Fprintf(&b, " %s", s.Target)
	case StepClick:
		fmt.Fprintf(&b, " %s", s.Target)
	}
	if s.Note != "" {
		fmt.Fprintf(&b, " (%s)", s.Note)
	}
	return b.String()
}
