package flow

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const settingsCase = `
cases:
  - name: Settings_Save
    description: edit the club name
    start: /login
    tags: [settings]
    steps:
      - use: signin
        with:
          email: ${ADMIN_EMAIL}
          password: ${ADMIN_PASSWORD}
      - use: nav
        with: {title: Settings}
      - kind: fill
        target:
          selector: {kind: testid, value: input-club-name}
        text: Riverside FC
      - kind: click
        timeout: 5s
        target:
          selector: {kind: role, role: button, name: Save Information}
    expect:
      target:
        selector: {kind: text, value: Settings saved}
      timeout: 1500ms
      message: settings for ${ADMIN_EMAIL} were not saved
`

func envLookup(vars map[string]string) LookupFunc {
	return func(name string) (string, bool) {
		v, ok := vars[name]
		return v, ok
	}
}

func TestParse(t *testing.T) {
	lookup := envLookup(map[string]string{
		"ADMIN_EMAIL":    "clubadmin@example.com",
		"ADMIN_PASSWORD": "ValidPassword123",
	})

	cases, err := Parse(strings.NewReader(settingsCase), "settings.yaml", lookup)
	require.NoError(t, err)
	require.Len(t, cases, 1)

	tc := cases[0]
	assert.Equal(t, "Settings_Save", tc.Name())
	assert.Equal(t, "/login", tc.StartURL())
	assert.True(t, tc.HasTag("settings"))

	want := append([]Step{}, SignIn(Credentials{Email: "clubadmin@example.com", Password: "ValidPassword123"}).Steps...)
	want = append(want, OpenNav("Settings").Steps...)
	want = append(want,
		Fill(At(TestID("input-club-name")), "Riverside FC"),
		Click(At(Role("button", "Save Information")), 5*time.Second),
	)
	if diff := cmp.Diff(want, tc.Steps()); diff != "" {
		t.Errorf("steps mismatch (-want +got):\n%s", diff)
	}

	a := tc.Assertion()
	assert.Equal(t, 1500*time.Millisecond, a.Timeout)
	assert.Equal(t, "settings for clubadmin@example.com were not saved", a.FailureMessage())
}

func TestParseUndefinedVariables(t *testing.T) {
	_, err := Parse(strings.NewReader(settingsCase), "settings.yaml", envLookup(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "undefined variables: ADMIN_EMAIL, ADMIN_PASSWORD")
}

func TestParseDollarEscape(t *testing.T) {
	doc := `
cases:
  - name: Literal_Dollar
    start: /login
    steps:
      - kind: fill
        target:
          selector: {kind: label, value: Password}
        text: Pa$$w0rd
      - kind: fill
        target:
          selector: {kind: label, value: Note}
        text: ${PRICE}$$ per $$${UNIT}
    expect:
      target:
        selector: {kind: text, value: Saved}
`
	cases, err := Parse(strings.NewReader(doc), "dollar.yaml", envLookup(map[string]string{
		"PRICE": "42",
		"UNIT":  "seat",
	}))
	require.NoError(t, err)
	require.Len(t, cases, 1)

	steps := cases[0].Steps()
	require.Len(t, steps, 2)
	assert.Equal(t, "Pa$w0rd", steps[0].Text)
	assert.Equal(t, "42$ per $seat", steps[1].Text)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{
			name:    "unknown field",
			doc:     "cases:\n  - name: x\n    bogus: 1\n",
			wantErr: "failed to decode",
		},
		{
			name:    "invalid case",
			doc:     "cases:\n  - name: x\n    start: /\n",
			wantErr: "case 1",
		},
		{
			name:    "unknown sub-flow",
			doc:     "cases:\n  - name: x\n    start: /\n    steps:\n      - use: teleport\n",
			wantErr: "unknown sub-flow",
		},
		{
			name: "duplicate names",
			doc: `cases:
  - {name: x, start: /, expect: {target: {selector: {kind: text, value: ok}}}}
  - {name: x, start: /, expect: {target: {selector: {kind: text, value: ok}}}}
`,
			wantErr: `duplicate case name "x"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.doc), "doc.yaml", envLookup(nil))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseEmpty(t *testing.T) {
	cases, err := Parse(strings.NewReader(""), "empty.yaml", nil)
	require.NoError(t, err)
	assert.Empty(t, cases)
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	one := "cases:\n  - {name: a, start: /, expect: {target: {selector: {kind: text, value: ok}}}}\n"
	two := "cases:\n  - {name: b, start: /, expect: {target: {selector: {kind: text, value: ok}}}}\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "one.yaml"), []byte(one), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "two.yml"), []byte(two), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o600))

	cases, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, cases, 2)
	assert.Equal(t, "a", cases[0].Name())
	assert.Equal(t, "b", cases[1].Name())

	t.Run("duplicate across files", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "three.yaml"), []byte(one), 0o600))
		_, err := LoadDir(dir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `case "a" defined in both`)
	})
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "failed to read case file")
}
