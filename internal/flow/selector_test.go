package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectorString(t *testing.T) {
	tests := []struct {
		name string
		sel  Selector
		want string
	}{
		{"xpath", XPath("html/body/div"), "xpath=html/body/div"},
		{"css", CSS("#club-name"), "css=#club-name"},
		{"text", Text("Export Success"), "text=Export Success"},
		{"exact text", Selector{Kind: KindText, Value: "Save", Exact: true}, `text="Save"`},
		{"role with name", Role("button", "Sign In"), `role=button[name="Sign In"]`},
		{"role only", Role("combobox", ""), "role=combobox"},
		{"label", Label("Email"), `label="Email"`},
		{"test id", TestID("button-save-info"), `testid="button-save-info"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.sel.String())
		})
	}
}

func TestSelectorValidate(t *testing.T) {
	assert.NoError(t, XPath("//a").Validate())
	assert.NoError(t, Role("link", "").Validate())

	assert.ErrorContains(t, Selector{}.Validate(), "kind is required")
	assert.ErrorContains(t, Text("  ").Validate(), "empty value")
	assert.ErrorContains(t, Role("", "Sign In").Validate(), "no role")
	assert.ErrorContains(t, Selector{Kind: "shadow", Value: "x"}.Validate(), "unknown selector kind")
}

func TestSelectorQuery(t *testing.T) {
	t.Run("passthrough", func(t *testing.T) {
		assert.Equal(t, "html/body/div[1]", XPath("html/body/div[1]").Query())
		assert.Equal(t, "#club-name", CSS("#club-name").Query())
	})

	t.Run("text is case insensitive by default", func(t *testing.T) {
		q := Text("Export Success").Query()
		assert.Contains(t, q, "translate(normalize-space(.)")
		assert.Contains(t, q, "'export success'")
	})

	t.Run("exact text compares whole string", func(t *testing.T) {
		q := Selector{Kind: KindText, Value: "Save", Exact: true}.Query()
		assert.Equal(t, "//*[text()[normalize-space(.)='Save']]", q)
	})

	t.Run("test id", func(t *testing.T) {
		assert.Equal(t, "//*[@data-testid='input-club-name']", TestID("input-club-name").Query())
	})

	t.Run("label covers for attribute and placeholder", func(t *testing.T) {
		q := Label("Email").Query()
		assert.Contains(t, q, "self::input")
		assert.Contains(t, q, "//label[")
		assert.Contains(t, q, "@placeholder")
	})

	t.Run("role includes implicit elements", func(t *testing.T) {
		q := Role("button", "Sign In").Query()
		assert.Contains(t, q, "self::button")
		assert.Contains(t, q, "@role='button'")
		assert.Contains(t, q, "'sign in'")

		assert.NotContains(t, Role("link", "").Query(), "][", "no name predicate without a name")
	})
}

func TestXPathLiteral(t *testing.T) {
	assert.Equal(t, "'plain'", xpathLiteral("plain"))
	assert.Equal(t, `"it's"`, xpathLiteral("it's"))

	got := xpathLiteral(`say "it's"`)
	require.Contains(t, got, "concat(")
	assert.Equal(t, `concat('say "it', "'", 's"')`, got)
}
