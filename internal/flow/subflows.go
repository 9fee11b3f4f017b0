package flow

import (
	"fmt"
	"time"
)

// SubFlow is a named, reusable run of steps composed into cases.
type SubFlow struct {
	Name  string
	Steps []Step
}

// Credentials identify an account on the target application.
type Credentials struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

// Profile is the data entered on the sign-up form.
type Profile struct {
	FirstName    string `yaml:"first_name"`
	LastName     string `yaml:"last_name"`
	Email        string `yaml:"email"`
	Organization string `yaml:"organization"`
	Password     string `yaml:"password"`
}

// Timeout used by sub-flow clicks, matching the generated scripts.
const subFlowClickTimeout = 5 * time.Second

// SignIn fills the sign-in form and submits it.
func SignIn(c Credentials) SubFlow {
	return SubFlow{
		Name: "signin",
		Steps: []Step{
			Fill(At(Label("Email")), c.Email).Describe("email"),
			Fill(At(Label("Password")), c.Password).Describe("password"),
			Click(At(Role("button", "Sign In")), subFlowClickTimeout).Describe("submit sign-in"),
		},
	}
}

// SignUp follows the sign-up link from the sign-in page and creates an account.
func SignUp(p Profile) SubFlow {
	return SubFlow{
		Name: "signup",
		Steps: []Step{
			Click(At(Role("link", "Sign up")), subFlowClickTimeout).Describe("open sign-up"),
			Fill(At(Label("First Name")), p.FirstName).Describe("first name"),
			Fill(At(Label("Last Name")), p.LastName).Describe("last name"),
			Fill(At(Label("Email")), p.Email).Describe("email"),
			Fill(At(Label("Organization Name")), p.Organization).Describe("organization"),
			Fill(At(Selector{Kind: KindLabel, Value: "Password", Exact: true}), p.Password).Describe("password"),
			Fill(At(Label("Confirm Password")), p.Password).Describe("confirm password"),
			Click(At(Role("button", "Create Account")), subFlowClickTimeout).Describe("submit sign-up"),
		},
	}
}

// OpenNav clicks a sidebar navigation entry by its visible title.
func OpenNav(title string) SubFlow {
	return SubFlow{
		Name: "nav",
		Steps: []Step{
			Click(At(Role("link", title)), subFlowClickTimeout).Describe("open " + title),
		},
	}
}

// Reload navigates to url again and waits, for pages whose first paint is blank.
func Reload(url string, pause time.Duration) SubFlow {
	return SubFlow{
		Name: "reload",
		Steps: []Step{
			Navigate(url, WaitCommit, 10*time.Second).Describe("reload"),
			Wait(pause),
		},
	}
}

// Lookup resolves a sub-flow by the name used in case files.
func Lookup(name string, params map[string]string) (SubFlow, error) {
	switch name {
	case "signin":
		return SignIn(Credentials{Email: params["email"], Password: params["password"]}), nil
	case "signup":
		return SignUp(Profile{
			FirstName:    params["first_name"],
			LastName:     params["last_name"],
			Email:        params["email"],
			Organization: params["organization"],
			Password:     params["password"],
		}), nil
	case "nav":
		if params["title"] == "" {
			return SubFlow{}, fmt.Errorf("nav sub-flow needs a title")
		}
		return OpenNav(params["title"]), nil
	case "reload":
		pause := 3 * time.Second
		if raw := params["pause"]; raw != "" {
			d, err := time.ParseDuration(raw)
			if err != nil {
				return SubFlow{}, fmt.Errorf("reload pause: %w", err)
			}
			pause = d
		}
		if params["url"] == "" {
			return SubFlow{}, fmt.Errorf("reload sub-flow needs a url")
		}
		return Reload(params["url"], pause), nil
	}
	return SubFlow{}, fmt.Errorf("unknown sub-flow %q", name)
}
