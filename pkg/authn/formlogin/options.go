package formlogin

import (
	"fmt"
	"strings"
)

// FailureStyle selects how the module answers a mandatory request that
// carries no identity.
type FailureStyle int

const (
	// FailureRedirect sends the client to the login page.
	FailureRedirect FailureStyle = iota

	// FailureForbidden answers with HTTP 403 and no redirect. Intended
	// for API-style consumers that cannot follow a login flow.
	FailureForbidden
)

// RedirectPrecedence selects which request parameter wins when picking
// the post-action redirect target. Both orders exist in the wild, so the
// choice is explicit configuration rather than a silent default.
type RedirectPrecedence int

const (
	// PrecedenceReturnURL prefers the return-URL parameter over the
	// login/logout page parameters.
	PrecedenceReturnURL RedirectPrecedence = iota

	// PrecedencePageURL prefers the login/logout page parameters over
	// the return-URL parameter.
	PrecedencePageURL
)

// Options is the parsed module configuration. All request-parameter names
// are aliasable so the module can front forms it does not own.
type Options struct {
	// LoginPage is the URL of the form that collects credentials. Required.
	LoginPage string

	// LoginAction is the URI suffix identifying credential submissions
	// (default "/login/check").
	LoginAction string

	// LogoutAction is the URI suffix identifying logout requests
	// (default "/logout").
	LogoutAction string

	FailureStyle FailureStyle
	Precedence   RedirectPrecedence

	UsernameParam  string // default "username"
	PasswordParam  string // default "password"
	ReturnParam    string // default "returnURL"
	CurrentParam   string // alias for ReturnParam, default "currentURL"
	LoginURLParam  string // default "loginURL"
	LogoutURLParam string // default "logoutURL"
}

// parseOptions validates the raw option map. Unknown keys and invalid
// values fail here, before any request is processed.
func parseOptions(raw map[string]string) (Options, error) {
	opts := Options{
		LoginAction:    "/login/check",
		LogoutAction:   "/logout",
		UsernameParam:  "username",
		PasswordParam:  "password",
		ReturnParam:    "returnURL",
		CurrentParam:   "currentURL",
		LoginURLParam:  "loginURL",
		LogoutURLParam: "logoutURL",
	}

	for key, value := range raw {
		switch key {
		case "login_page":
			opts.LoginPage = value
		case "login_action":
			opts.LoginAction = value
		case "logout_action":
			opts.LogoutAction = value
		case "failure_style":
			switch strings.ToLower(value) {
			case "", "redirect":
				opts.FailureStyle = FailureRedirect
			case "forbidden":
				opts.FailureStyle = FailureForbidden
			default:
				return Options{}, fmt.Errorf("failure_style must be \"redirect\" or \"forbidden\", got %q", value)
			}
		case "redirect_precedence":
			switch strings.ToLower(value) {
			case "", "return_url":
				opts.Precedence = PrecedenceReturnURL
			case "page_url":
				opts.Precedence = PrecedencePageURL
			default:
				return Options{}, fmt.Errorf("redirect_precedence must be \"return_url\" or \"page_url\", got %q", value)
			}
		case "param_username":
			opts.UsernameParam = value
		case "param_password":
			opts.PasswordParam = value
		case "param_return_url":
			opts.ReturnParam = value
		case "param_current_url":
			opts.CurrentParam = value
		case "param_login_url":
			opts.LoginURLParam = value
		case "param_logout_url":
			opts.LogoutURLParam = value
		default:
			return Options{}, fmt.Errorf("unknown option %q", key)
		}
	}

	if opts.LoginPage == "" {
		return Options{}, fmt.Errorf("login_page is required")
	}
	if opts.LoginAction == "" || opts.LogoutAction == "" {
		return Options{}, fmt.Errorf("login_action and logout_action must not be empty")
	}
	if opts.LoginAction == opts.LogoutAction {
		return Options{}, fmt.Errorf("login_action and logout_action must differ")
	}
	if strings.HasSuffix(opts.LoginPage, opts.LoginAction) {
		return Options{}, fmt.Errorf("login_page %q must not match the login_action suffix %q", opts.LoginPage, opts.LoginAction)
	}

	return opts, nil
}
