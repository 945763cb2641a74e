// Package pagestate decides where a login attempt ended up by looking at the page URL and,
// only when the URL alone is ambiguous, at the rendered content.
package pagestate

import (
	"context"
	"strings"
)

// State is the outcome of one classification.
type State string

const (
	Success          State = "success"
	TwoFactorEmail   State = "2fa_email"
	TwoFactorSMS     State = "2fa_sms"
	TwoFactorApp     State = "2fa_app"
	TwoFactorUnknown State = "2fa_unknown"
	Captcha          State = "captcha"
	Failed           State = "failed"
)

// IsTwoFactor reports whether the state is one of the second-factor prompts.
func (s State) IsTwoFactor() bool {
	switch s {
	case TwoFactorEmail, TwoFactorSMS, TwoFactorApp, TwoFactorUnknown:
		return true
	}
	return false
}

// Result pairs a state with a human-readable reason. Reason is set only for Failed.
type Result struct {
	State  State
	Reason string
}

// Inspector gives the classifier read access to the current page.
type Inspector interface {
	Content(ctx context.Context) (string, error)
	Text(ctx context.Context, selector string) (string, error)
}

// DefaultFailureReason is reported when the login page shows no recognizable error.
const DefaultFailureReason = "Login failed"

const maxErrorTextLen = 200

var (
	successMarkers    = []string{"/feed", "/mynetwork"}
	checkpointMarkers = []string{"/checkpoint", "/challenge"}
	captchaMarkers    = []string{"captcha", "security-verification"}
	loginMarkers      = []string{"/login", "/uas"}

	// ErrorSelectors are probed in order, most specific first.
	ErrorSelectors = []string{
		"#error-for-username",
		"#error-for-password",
		".form__label--error",
		".alert-content",
		`div[role="alert"] p`,
	}
)

// twoFactorRule matches page content to a second-factor variant. Rules are tried in order.
type twoFactorRule struct {
	state State
	match func(content string) bool
}

var twoFactorRules = []twoFactorRule{
	{TwoFactorEmail, func(c string) bool {
		return strings.Contains(c, "email") && containsAny(c, "verification", "verify", "pin")
	}},
	{TwoFactorSMS, func(c string) bool { return containsAny(c, "sms", "text message", "phone") }},
	{TwoFactorApp, func(c string) bool { return containsAny(c, "authenticator", "authentication app", "totp") }},
}

// Classify maps the current URL (and page content where needed) to exactly one state.
// It never fails: inspector errors are treated as missing content.
func Classify(ctx context.Context, currentURL string, page Inspector) Result {
	url := strings.ToLower(currentURL)

	switch {
	case containsAny(url, successMarkers...):
		return Result{State: Success}
	case containsAny(url, checkpointMarkers...):
		return Result{State: twoFactorVariant(ctx, page)}
	case containsAny(url, captchaMarkers...):
		return Result{State: Captcha}
	case containsAny(url, loginMarkers...):
		return Result{State: Failed, Reason: loginError(ctx, page)}
	default:
		return Result{State: Failed, Reason: "Unexpected page: " + currentURL}
	}
}

func twoFactorVariant(ctx context.Context, page Inspector) State {
	if page == nil {
		return TwoFactorUnknown
	}
	content, err := page.Content(ctx)
	if err != nil {
		return TwoFactorUnknown
	}
	content = strings.ToLower(content)
	for _, rule := range twoFactorRules {
		if rule.match(content) {
			return rule.state
		}
	}
	return TwoFactorUnknown
}

// loginError returns the first acceptable error text shown on the login page.
func loginError(ctx context.Context, page Inspector) string {
	if page == nil {
		return DefaultFailureReason
	}
	for _, sel := range ErrorSelectors {
		text, err := page.Text(ctx, sel)
		if err != nil {
			continue
		}
		if acceptableErrorText(text) {
			return strings.TrimSpace(text)
		}
	}
	return DefaultFailureReason
}

// acceptableErrorText filters out empty, oversized and cookie banner texts.
func acceptableErrorText(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" || len(text) >= maxErrorTextLen {
		return false
	}
	return !strings.Contains(strings.ToLower(text), "cookie")
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
