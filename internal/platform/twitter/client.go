// Package twitter reads home timelines from the X/Twitter web API with either browser
// session cookies or a password login driven through the onboarding task flow.
package twitter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/newsroom-scraper/internal/platform"
	"github.com/xkilldash9x/newsroom-scraper/internal/platform/upstream"
)

// PublicBearerToken is the application token the x.com web client ships with.
const PublicBearerToken = "AAAAAAAAAAAAAAAAAAAAANRILgAAAAAAnNwIzUejRCOuH5E6I8xnZz4puTs%3D1Zv7ttfk8LF81IUq16cHjhLTvJu4FA33AGWWjCpTnA"

const (
	authCookie = "auth_token"
	csrfCookie = "ct0"

	guestPath    = "/i/api/1.1/guest/activate.json"
	taskPath     = "/i/api/1.1/onboarding/task.json"
	settingsPath = "/i/api/1.1/account/settings.json"
	graphqlPath  = "/i/api/graphql/"

	maxLoginSteps = 10
	maxPageSize   = 40
)

// Timeline selects which home timeline to read.
type Timeline string

const (
	Following Timeline = "following"
	ForYou    Timeline = "for_you"
)

// ParseTimeline accepts the wire names; empty means Following.
func ParseTimeline(s string) (Timeline, error) {
	switch Timeline(strings.ToLower(strings.TrimSpace(s))) {
	case "", Following:
		return Following, nil
	case ForYou:
		return ForYou, nil
	}
	return "", fmt.Errorf("unknown timeline type %q, expected %q or %q", s, Following, ForYou)
}

func (t Timeline) operation() string {
	if t == ForYou {
		return "HJFjzBgCs16TqxewQOeLNg/HomeTimeline"
	}
	return "K0X1xbCZUjttdK8RazKAlw/HomeLatestTimeline"
}

var timelineFeatures = map[string]bool{
	"responsive_web_graphql_exclude_directive_enabled":                  true,
	"verified_phone_label_enabled":                                      false,
	"responsive_web_graphql_timeline_navigation_enabled":                true,
	"responsive_web_graphql_skip_user_profile_image_extensions_enabled": false,
	"longform_notetweets_consumption_enabled":                           true,
	"tweet_awards_web_tipping_enabled":                                  false,
	"freedom_of_speech_not_reach_fetch_enabled":                         true,
	"responsive_web_enhance_cards_enabled":                              false,
}

// Credentials authenticate a client. Cookies win over Username/Password when both are set.
type Credentials struct {
	AuthToken string
	CT0       string
	Username  string
	Password  string
}

// Client is one authenticated X account.
type Client struct {
	api    *upstream.Client
	logger *zap.Logger
}

// Dial authenticates and returns a ready client. An empty bearer uses PublicBearerToken.
func Dial(ctx context.Context, opts upstream.Options, bearer string, creds Credentials) (*Client, error) {
	if bearer == "" {
		bearer = PublicBearerToken
	}
	opts.Headers = map[string]string{
		"Authorization":             "Bearer " + bearer,
		"X-Twitter-Active-User":     "yes",
		"X-Twitter-Client-Language": "en",
	}
	api, err := upstream.New(opts)
	if err != nil {
		return nil, err
	}
	c := &Client{api: api, logger: opts.Logger}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}

	switch {
	case creds.AuthToken != "" && creds.CT0 != "":
		api.SetCookies(
			&http.Cookie{Name: authCookie, Value: creds.AuthToken},
			&http.Cookie{Name: csrfCookie, Value: creds.CT0},
		)
		c.useSession()
	case creds.Username != "" && creds.Password != "":
		err = c.login(ctx, creds.Username, creds.Password)
	default:
		err = fmt.Errorf("provide auth_token and ct0 cookies or username and password: %w", platform.ErrMissingCredentials)
	}
	if err != nil {
		_ = api.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) useSession() {
	c.api.SetHeader("X-Twitter-Auth-Type", "OAuth2Session")
	c.api.SetHeader("X-Csrf-Token", c.api.Cookie(csrfCookie))
}

// login walks the onboarding task flow. Any verification subtask means the account needs
// an interactive login first.
func (c *Client) login(ctx context.Context, username, password string) error {
	guest, err := c.api.PostJSON(ctx, guestPath, map[string]any{})
	if err != nil {
		return err
	}
	c.api.SetHeader("X-Guest-Token", guest.String("guest_token"))

	flow, err := c.api.PostJSON(ctx, taskPath+"?flow_name=login", map[string]any{
		"input_flow_data": map[string]any{
			"flow_context": map[string]any{"start_location": map[string]any{"location": "splash_screen"}},
		},
	})
	if err != nil {
		return loginError(err)
	}

	for step := 0; step < maxLoginSteps; step++ {
		subtasks := flow.Objects("subtasks")
		if len(subtasks) == 0 {
			break
		}
		id := subtasks[0].String("subtask_id")
		input, done, err := subtaskInput(id, username, password)
		if err != nil {
			return err
		}
		if done {
			break
		}
		flow, err = c.api.PostJSON(ctx, taskPath, map[string]any{
			"flow_token":     flow.String("flow_token"),
			"subtask_inputs": []any{input},
		})
		if err != nil {
			return loginError(err)
		}
	}

	if c.api.Cookie(authCookie) == "" || c.api.Cookie(csrfCookie) == "" {
		return &platform.AuthError{Platform: "twitter", Reason: "login flow ended without session cookies"}
	}
	c.useSession()
	return nil
}

func subtaskInput(id, username, password string) (input map[string]any, done bool, err error) {
	switch id {
	case "LoginSuccessSubtask":
		return nil, true, nil
	case "LoginJsInstrumentationSubtask":
		return map[string]any{"subtask_id": id, "js_instrumentation": map[string]any{"response": "{}", "link": "next_link"}}, false, nil
	case "LoginEnterUserIdentifierSSO":
		return map[string]any{"subtask_id": id, "settings_list": map[string]any{
			"setting_responses": []any{map[string]any{
				"key":           "user_identifier",
				"response_data": map[string]any{"text_data": map[string]any{"result": username}},
			}},
			"link": "next_link",
		}}, false, nil
	case "LoginEnterPassword":
		return map[string]any{"subtask_id": id, "enter_password": map[string]any{"password": password, "link": "next_link"}}, false, nil
	case "AccountDuplicationCheck":
		return map[string]any{"subtask_id": id, "check_logged_in_account": map[string]any{"link": "AccountDuplicationCheck_false"}}, false, nil
	case "LoginTwoFactorAuthChallenge", "LoginAcid", "LoginEnterAlternateIdentifierSubtask", "ArkoseLogin":
		return nil, false, platform.ErrAuthChallenge
	case "DenyLoginSubtask":
		return nil, false, &platform.AuthError{Platform: "twitter", Reason: "login denied, the account may be locked or suspended", Err: platform.ErrUnauthorized}
	}
	return nil, false, &platform.AuthError{Platform: "twitter", Reason: "unsupported login step " + id}
}

func loginError(err error) error {
	var rl *platform.RateLimitError
	if errors.As(err, &rl) {
		return err
	}
	return &platform.AuthError{Platform: "twitter", Reason: "invalid username or password", Err: err}
}

// ScreenName returns the signed-in account's handle.
func (c *Client) ScreenName(ctx context.Context) (string, error) {
	p, err := c.api.GetJSON(ctx, settingsPath, nil)
	if err != nil {
		return "", err
	}
	return p.String("screen_name"), nil
}

// Timeline returns up to limit raw tweet results, following bottom cursors between pages.
func (c *Client) Timeline(ctx context.Context, kind Timeline, limit int) ([]platform.Payload, error) {
	var (
		out    []platform.Payload
		cursor string
	)
	for len(out) < limit {
		variables := map[string]any{
			"count":                  min(limit-len(out), maxPageSize),
			"includePromotedContent": false,
			"latestControlAvailable": true,
		}
		if cursor != "" {
			variables["cursor"] = cursor
		}
		op := kind.operation()
		page, err := c.api.PostJSON(ctx, graphqlPath+op, map[string]any{
			"variables": variables,
			"features":  timelineFeatures,
			"queryId":   op[:strings.IndexByte(op, '/')],
		})
		if err != nil {
			return out, err
		}
		tweets, next := timelineEntries(page)
		out = append(out, tweets...)
		if len(tweets) == 0 || next == "" || next == cursor {
			break
		}
		cursor = next
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// timelineEntries pulls tweet results and the bottom cursor out of a timeline response.
func timelineEntries(page platform.Payload) ([]platform.Payload, string) {
	var (
		tweets []platform.Payload
		cursor string
	)
	for _, ins := range page.Objects("data", "home", "home_timeline_urt", "instructions") {
		for _, entry := range ins.Objects("entries") {
			content := entry.Object("content")
			if content.String("cursorType") == "Bottom" {
				cursor = content.String("value")
				continue
			}
			result := content.Object("itemContent", "tweet_results", "result")
			if result == nil {
				continue
			}
			// Tweets with visibility limits wrap the real result.
			if inner := result.Object("tweet"); inner != nil && result.String("__typename") == "TweetWithVisibilityResults" {
				result = inner
			}
			tweets = append(tweets, result)
		}
	}
	return tweets, cursor
}

// Close releases the client's connections.
func (c *Client) Close() error { return c.api.Close() }
