// File: internal/catalog/builtin.go
package catalog

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/xkilldash9x/flowrunner/internal/config"
	"github.com/xkilldash9x/flowrunner/internal/flow"
)

// Env parameterizes the built-in cases.
type Env struct {
	// Admin has club admin rights; Member is a non-privileged account.
	Admin  flow.Credentials
	Member flow.Credentials
	// Now seeds generated sign-up addresses.
	Now func() time.Time
}

// EnvFromConfig reads the accounts from the target configuration.
func EnvFromConfig(t config.TargetConfig) Env {
	return Env{
		Admin:  flow.Credentials{Email: t.Credentials.Email, Password: t.Credentials.Password},
		Member: flow.Credentials{Email: t.Credentials.RoleEmail, Password: t.Credentials.RolePassword},
		Now:    time.Now,
	}
}

const (
	exportSuccess    = "Real-time Social and Platform Data Export Success"
	profileFailed    = "Profile Creation Failed"
	unauthorizedEdit = "Unauthorized Access to Settings"
	clickTimeout     = 5 * time.Second
	reloadPause      = 3 * time.Second
)

// Cases returns the built-in NexusSuite cases, sorted by name.
func Cases(env Env) []flow.TestCase {
	cases := []flow.TestCase{
		analyticsExport(env),
		signInProfileCreation(),
		settingsUnauthorizedEdit(env),
		signUpNewClub(env),
	}
	sort.Slice(cases, func(i, j int) bool { return cases[i].Name() < cases[j].Name() })
	return cases
}

// Select returns the named cases in the order given. Names match
// case-insensitively.
func Select(all []flow.TestCase, names ...string) ([]flow.TestCase, error) {
	byName := make(map[string]flow.TestCase, len(all))
	for _, tc := range all {
		byName[strings.ToLower(tc.Name())] = tc
	}
	out := make([]flow.TestCase, 0, len(names))
	var unknown []string
	for _, n := range names {
		tc, ok := byName[strings.ToLower(n)]
		if !ok {
			unknown = append(unknown, n)
			continue
		}
		out = append(out, tc)
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("unknown case(s): %s", strings.Join(unknown, ", "))
	}
	return out, nil
}

// Merge appends extra cases to base, rejecting names already present.
func Merge(base, extra []flow.TestCase) ([]flow.TestCase, error) {
	seen := make(map[string]struct{}, len(base)+len(extra))
	out := make([]flow.TestCase, 0, len(base)+len(extra))
	for _, tc := range append(append([]flow.TestCase{}, base...), extra...) {
		key := strings.ToLower(tc.Name())
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("duplicate case name %q", tc.Name())
		}
		seen[key] = struct{}{}
		out = append(out, tc)
	}
	return out, nil
}

// analyticsExport signs in (creating the account through sign-up when the
// first attempt is rejected), opens Analytics, and probes the header and
// dashboard menus for the export confirmation.
func analyticsExport(env Env) flow.TestCase {
	profile := flow.Profile{
		FirstName:    "John",
		LastName:     "Doe",
		Email:        env.Admin.Email,
		Organization: "Acme Esports",
		Password:     env.Admin.Password,
	}
	return flow.NewCase("TC011_Analytics_Dashboard_Data_Refresh_and_Export").
		Describe("Club admin exports social and platform data from the analytics dashboard").
		Tag("analytics", "export", "admin").
		Start("/").
		Do(flow.Scroll().Describe("reveal the landing page")).
		Then(
			flow.Reload("/", reloadPause),
			flow.SignIn(env.Admin),
			flow.SignUp(profile),
			flow.SignIn(env.Admin),
			flow.OpenNav("Analytics"),
		).
		Do(
			flow.Scroll(),
			flow.Click(flow.At(flow.XPath("html/body/div/div/div/div[2]/header/div/button[2]")), clickTimeout).Describe("header menu"),
			flow.Click(flow.At(flow.XPath("html/body/div/div/div/div[2]/main/div/div/button")), clickTimeout).Describe("dashboard range selector"),
			flow.Scroll(),
		).
		Expect(flow.ExpectText(exportSuccess, time.Second,
			"Test case failed: the analytics dashboard did not confirm a successful export of real-time social and platform data")).
		MustBuild()
}

// signInProfileCreation uses the literal credentials of the generated
// script, independent of configuration.
func signInProfileCreation() flow.TestCase {
	return flow.NewCase("SignIn_Profile_Creation").
		Describe("Signing in with a fresh admin address surfaces the profile creation result").
		Tag("auth").
		Start("/login").
		Then(flow.SignIn(flow.Credentials{Email: "clubadmin@example.com", Password: "ValidPassword123"})).
		Expect(flow.ExpectText(profileFailed, time.Second,
			"Test case failed: expected the profile creation result to read \"Profile Creation Failed\" after sign-in")).
		MustBuild()
}

// settingsUnauthorizedEdit edits the club name as a non-privileged member.
func settingsUnauthorizedEdit(env Env) flow.TestCase {
	return flow.NewCase("Settings_Unauthorized_Edit").
		Describe("A member without admin rights is refused when saving club settings").
		Tag("settings", "rbac").
		Start("/login").
		Then(
			flow.SignIn(env.Member),
			flow.OpenNav("Settings"),
		).
		Do(
			flow.Fill(flow.At(flow.TestID("input-club-name")), "Unauthorized Rename").Describe("club name"),
			flow.Click(flow.At(flow.TestID("button-save-info")), clickTimeout).Describe("save information"),
		).
		Expect(flow.ExpectText(unauthorizedEdit, 5*time.Second,
			"Test case failed: missing authorization error; a member was not shown \"Unauthorized Access to Settings\" when editing settings")).
		MustBuild()
}

// signUpNewClub registers a club under a generated address and expects
// to land on the dashboard.
func signUpNewClub(env Env) flow.TestCase {
	now := time.Now
	if env.Now != nil {
		now = env.Now
	}
	email := fmt.Sprintf("club+%d@example.com", now().Unix())
	password := env.Admin.Password
	if password == "" {
		password = "SecurePass123!"
	}
	return flow.NewCase("SignUp_New_Club").
		Describe("A visitor registers a new club and reaches the dashboard").
		Tag("auth", "signup").
		Start("/login").
		Then(flow.SignUp(flow.Profile{
			FirstName:    "Jane",
			LastName:     "Roe",
			Email:        email,
			Organization: "Riverside Esports",
			Password:     password,
		})).
		Expect(flow.ExpectVisible(flow.Role("heading", "Dashboard"), 10*time.Second,
			"Test case failed: the dashboard did not load after creating a new club")).
		MustBuild()
}
