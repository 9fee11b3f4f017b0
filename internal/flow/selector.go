package flow

import (
	"fmt"
	"strings"
)

// SelectorKind names the strategy used to find an element.
type SelectorKind string

const (
	KindXPath SelectorKind = "xpath"
	KindCSS   SelectorKind = "css"
	KindText  SelectorKind = "text"
	KindRole  SelectorKind = "role"
	KindLabel SelectorKind = "label"
	// KindTestID matches the data-testid attribute the NexusSuite client renders.
	KindTestID SelectorKind = "testid"
)

// Selector identifies elements on a page. Semantic kinds (text, role, label)
// survive layout changes that break positional XPath.
type Selector struct {
	Kind  SelectorKind `yaml:"kind"`
	Value string       `yaml:"value,omitempty"`
	// Role and Name are used by KindRole.
	Role string `yaml:"role,omitempty"`
	Name string `yaml:"name,omitempty"`
	// Exact requires whole-string matches for text, role names and labels.
	Exact bool `yaml:"exact,omitempty"`
}

func XPath(expr string) Selector { return Selector{Kind: KindXPath, Value: expr} }
func CSS(query string) Selector  { return Selector{Kind: KindCSS, Value: query} }
func Text(text string) Selector  { return Selector{Kind: KindText, Value: text} }
func Label(text string) Selector { return Selector{Kind: KindLabel, Value: text} }
func TestID(id string) Selector  { return Selector{Kind: KindTestID, Value: id} }

// Role selects by ARIA role and accessible name.
func Role(role, name string) Selector { return Selector{Kind: KindRole, Role: role, Name: name} }

// Validate reports whether the selector can be resolved at all.
func (s Selector) Validate() error {
	switch s.Kind {
	case KindXPath, KindCSS, KindText, KindLabel, KindTestID:
		if strings.TrimSpace(s.Value) == "" {
			return fmt.Errorf("%s selector has an empty value", s.Kind)
		}
	case KindRole:
		if strings.TrimSpace(s.Role) == "" {
			return fmt.Errorf("role selector has no role")
		}
	case "":
		return fmt.Errorf("selector kind is required")
	default:
		return fmt.Errorf("unknown selector kind %q", s.Kind)
	}
	return nil
}

// String renders the selector in Playwright's selector syntax.
func (s Selector) String() string {
	switch s.Kind {
	case KindXPath:
		return "xpath=" + s.Value
	case KindCSS:
		return "css=" + s.Value
	case KindText:
		if s.Exact {
			return fmt.Sprintf("text=%q", s.Value)
		}
		return "text=" + s.Value
	case KindRole:
		if s.Name == "" {
			return "role=" + s.Role
		}
		return fmt.Sprintf("role=%s[name=%q]", s.Role, s.Name)
	case KindLabel:
		return fmt.Sprintf("label=%q", s.Value)
	case KindTestID:
		return fmt.Sprintf("testid=%q", s.Value)
	}
	return string(s.Kind) + "=" + s.Value
}

// Query renders a query for engines limited to XPath and CSS. XPath and CSS
// selectors pass through; the semantic kinds become XPath 1.0 expressions.
func (s Selector) Query() string {
	switch s.Kind {
	case KindXPath, KindCSS:
		return s.Value
	case KindText:
		return "//*[text()[" + s.match(".", s.Value) + "]]"
	case KindTestID:
		return "//*[@data-testid=" + xpathLiteral(s.Value) + "]"
	case KindLabel:
		return "//*[self::input or self::textarea or self::select][" + labelledBy(s.Value, s.Exact) + "]"
	case KindRole:
		q := "//*[" + roleTest(s.Role) + "]"
		if s.Name != "" {
			q += "[" + s.accessibleName() + "]"
		}
		return q
	}
	return s.Value
}

// match builds a text comparison against node, case-insensitive unless Exact.
func (s Selector) match(node, text string) string {
	if s.Exact {
		return "normalize-space(" + node + ")=" + xpathLiteral(text)
	}
	return "contains(" + lower("normalize-space("+node+")") + ", " + xpathLiteral(strings.ToLower(text)) + ")"
}

func (s Selector) accessibleName() string {
	parts := []string{
		s.match(".", s.Name),
		s.match("@aria-label", s.Name),
		s.match("@value", s.Name),
		s.match("@title", s.Name),
		labelledBy(s.Name, s.Exact),
	}
	return strings.Join(parts, " or ")
}

func labelledBy(text string, exact bool) string {
	sel := Selector{Exact: exact}
	return strings.Join([]string{
		"@id=//label[" + sel.match(".", text) + "]/@for",
		"ancestor::label[" + sel.match(".", text) + "]",
		sel.match("@aria-label", text),
		sel.match("@placeholder", text),
	}, " or ")
}

// roleTest covers explicit roles plus the implicit roles of native elements.
func roleTest(role string) string {
	explicit := "@role=" + xpathLiteral(role)
	switch strings.ToLower(role) {
	case "button":
		return explicit + " or self::button or self::input[@type='button' or @type='submit' or @type='reset']"
	case "link":
		return explicit + " or self::a[@href]"
	case "textbox":
		return explicit + " or self::textarea or self::input[not(@type) or @type='text' or @type='email' or @type='search' or @type='tel' or @type='url']"
	case "checkbox":
		return explicit + " or self::input[@type='checkbox']"
	case "combobox":
		return explicit + " or self::select"
	case "heading":
		return explicit + " or self::h1 or self::h2 or self::h3 or self::h4 or self::h5 or self::h6"
	}
	return explicit
}

const (
	upperASCII = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	lowerASCII = "abcdefghijklmnopqrstuvwxyz"
)

func lower(expr string) string {
	return "translate(" + expr + ", '" + upperASCII + "', '" + lowerASCII + "')"
}

// xpathLiteral quotes s for XPath 1.0, which has no escape sequences.
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	quoted := make([]string, 0, 2*len(parts))
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `"'"`)
		}
		quoted = append(quoted, "'"+p+"'")
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}
