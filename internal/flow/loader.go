package flow

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// LookupFunc resolves ${VAR} references in case files.
type LookupFunc func(name string) (string, bool)

type caseFile struct {
	Cases []caseDoc `yaml:"cases"`
}

type caseDoc struct {
	Name        string    `yaml:"name"`
	Description string    `yaml:"description"`
	Start       string    `yaml:"start"`
	Tags        []string  `yaml:"tags"`
	Steps       []stepDoc `yaml:"steps"`
	Expect      Assertion `yaml:"expect"`
}

// stepDoc is either a plain step or a reference to a named sub-flow.
type stepDoc struct {
	Step `yaml:",inline"`
	Use  string            `yaml:"use,omitempty"`
	With map[string]string `yaml:"with,omitempty"`
}

// LoadFile reads the cases in a YAML file, expanding references from the
// process environment.
func LoadFile(path string) ([]TestCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read case file: %w", err)
	}
	return Parse(bytes.NewReader(data), path, os.LookupEnv)
}

// LoadDir reads every *.yaml and *.yml file in dir, in name order. Case
// names must be unique across the directory.
func LoadDir(dir string) ([]TestCase, error) {
	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		m, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		paths = append(paths, m...)
	}
	sort.Strings(paths)

	var all []TestCase
	seen := make(map[string]string)
	for _, p := range paths {
		cases, err := LoadFile(p)
		if err != nil {
			return nil, err
		}
		for _, tc := range cases {
			if prev, ok := seen[tc.Name()]; ok {
				return nil, fmt.Errorf("case %q defined in both %s and %s", tc.Name(), prev, p)
			}
			seen[tc.Name()] = p
			all = append(all, tc)
		}
	}
	return all, nil
}

// Parse decodes cases from r. source names the input in errors.
func Parse(r io.Reader, source string, lookup LookupFunc) ([]TestCase, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f caseFile
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: failed to decode: %w", source, err)
	}

	x := &expander{lookup: lookup}
	cases := make([]TestCase, 0, len(f.Cases))
	seen := make(map[string]struct{}, len(f.Cases))
	for i, doc := range f.Cases {
		tc, err := doc.build(x)
		if err != nil {
			return nil, fmt.Errorf("%s: case %d: %w", source, i+1, err)
		}
		if _, dup := seen[tc.Name()]; dup {
			return nil, fmt.Errorf("%s: duplicate case name %q", source, tc.Name())
		}
		seen[tc.Name()] = struct{}{}
		cases = append(cases, tc)
	}
	if len(x.missing) > 0 {
		return nil, fmt.Errorf("%s: undefined variables: %s", source, strings.Join(x.missingNames(), ", "))
	}
	return cases, nil
}

func (d caseDoc) build(x *expander) (TestCase, error) {
	b := NewCase(d.Name).
		Describe(d.Description).
		Start(x.expand(d.Start)).
		Tag(d.Tags...)

	for i, sd := range d.Steps {
		if sd.Use != "" {
			params := make(map[string]string, len(sd.With))
			for k, v := range sd.With {
				params[k] = x.expand(v)
			}
			sub, err := Lookup(sd.Use, params)
			if err != nil {
				return TestCase{}, fmt.Errorf("step %d: %w", i+1, err)
			}
			b.Then(sub)
			continue
		}
		s := sd.Step
		s.URL = x.expand(s.URL)
		s.Text = x.expand(s.Text)
		b.Do(s)
	}

	a := d.Expect
	a.Message = x.expand(a.Message)
	return b.Expect(a).Build()
}

type expander struct {
	lookup  LookupFunc
	missing map[string]struct{}
}

// expand substitutes ${VAR} and $VAR references. $$ is a literal dollar
// sign, so "Pa$$w0rd" loads as "Pa$w0rd".
func (x *expander) expand(s string) string {
	if !strings.Contains(s, "$") {
		return s
	}
	parts := strings.Split(s, "$$")
	for i, part := range parts {
		parts[i] = x.expandPart(part)
	}
	return strings.Join(parts, "$")
}

func (x *expander) expandPart(s string) string {
	return os.Expand(s, func(name string) string {
		if x.lookup != nil {
			if v, ok := x.lookup(name); ok {
				return v
			}
		}
		if x.missing == nil {
			x.missing = make(map[string]struct{})
		}
		x.missing[name] = struct{}{}
		return ""
	})
}

func (x *expander) missingNames() []string {
	names := make([]string, 0, len(x.missing))
	for n := range x.missing {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
