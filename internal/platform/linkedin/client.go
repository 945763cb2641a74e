// Package linkedin talks to the Voyager API behind linkedin.com with either a session cookie
// or a password login, and turns feed updates into content records.
package linkedin

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/newsroom-scraper/internal/platform"
	"github.com/xkilldash9x/newsroom-scraper/internal/platform/upstream"
)

const (
	// CredentialCookie is the session cookie LinkedIn issues after a full login.
	CredentialCookie = "li_at"
	csrfCookie       = "JSESSIONID"

	authPath    = "/uas/authenticate"
	mePath      = "/voyager/api/me"
	feedPath    = "/voyager/api/feed/updatesV2"
	maxPageSize = 50
)

var voyagerHeaders = map[string]string{
	"Accept":                    "application/vnd.linkedin.normalized+json+2.1",
	"X-Li-Lang":                 "en_US",
	"X-Restli-Protocol-Version": "2.0.0",
}

// Credentials authenticate a client. LiAt wins over Email/Password when both are set.
type Credentials struct {
	Email    string
	Password string
	LiAt     string
}

// Profile is the signed-in member.
type Profile struct {
	FirstName string
	LastName  string
}

// Name is the display name, empty when LinkedIn returned neither part.
func (p Profile) Name() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Client is one authenticated LinkedIn account.
type Client struct {
	api    *upstream.Client
	logger *zap.Logger
}

// Dial authenticates against LinkedIn and returns a ready client.
func Dial(ctx context.Context, opts upstream.Options, creds Credentials) (*Client, error) {
	if opts.Headers == nil {
		opts.Headers = voyagerHeaders
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
	case creds.LiAt != "":
		api.SetCookies(&http.Cookie{Name: CredentialCookie, Value: creds.LiAt})
		err = c.bootstrap(ctx)
	case creds.Email != "" && creds.Password != "":
		err = c.login(ctx, creds.Email, creds.Password)
	default:
		err = fmt.Errorf("provide email and password or an li_at cookie: %w", platform.ErrMissingCredentials)
	}
	if err != nil {
		_ = api.Close()
		return nil, err
	}
	return c, nil
}

// bootstrap obtains the JSESSIONID cookie that doubles as the CSRF token.
func (c *Client) bootstrap(ctx context.Context) error {
	if _, err := c.api.Do(ctx, http.MethodGet, authPath, nil); err != nil {
		return err
	}
	c.applyCSRF()
	return nil
}

func (c *Client) applyCSRF() {
	if token := strings.Trim(c.api.Cookie(csrfCookie), `"`); token != "" {
		c.api.SetHeader("Csrf-Token", token)
	}
}

func (c *Client) login(ctx context.Context, email, password string) error {
	if err := c.bootstrap(ctx); err != nil {
		return err
	}
	res, err := c.api.PostForm(ctx, authPath, url.Values{
		"session_key":      {email},
		"session_password": {password},
		"JSESSIONID":       {strings.Trim(c.api.Cookie(csrfCookie), `"`)},
	})
	if err != nil {
		return err
	}

	if p, perr := res.Payload(); perr == nil {
		switch result := strings.ToUpper(p.String("login_result")); {
		case result == "PASS":
		case strings.Contains(result, "CHALLENGE"):
			return platform.ErrAuthChallenge
		case strings.HasPrefix(result, "BAD_"):
			return &platform.AuthError{Platform: "linkedin", Reason: "invalid LinkedIn email or password", Err: platform.ErrUnauthorized}
		case result != "":
			return &platform.AuthError{Platform: "linkedin", Reason: strings.ToLower(result)}
		}
	}
	if err := upstream.CheckStatus(res); err != nil {
		return err
	}
	if c.api.Cookie(CredentialCookie) == "" {
		return &platform.AuthError{Platform: "linkedin", Reason: "no session cookie was issued"}
	}
	c.applyCSRF()
	return nil
}

// Me returns the signed-in member's profile.
func (c *Client) Me(ctx context.Context) (Profile, error) {
	p, err := c.api.GetJSON(ctx, mePath, nil)
	if err != nil {
		return Profile{}, err
	}
	mini := p.Object("miniProfile")
	if mini == nil {
		mini = p.Object("data", "miniProfile")
	}
	if mini == nil {
		// Normalized responses keep the profile under "included".
		for _, inc := range p.Objects("included") {
			if inc.String("firstName") != "" {
				mini = inc
				break
			}
		}
	}
	return Profile{FirstName: mini.String("firstName"), LastName: mini.String("lastName")}, nil
}

// Feed returns up to limit raw feed updates, newest first.
func (c *Client) Feed(ctx context.Context, limit int) ([]platform.Payload, error) {
	var out []platform.Payload
	for start := 0; len(out) < limit; {
		count := min(limit-len(out), maxPageSize)
		page, err := c.api.GetJSON(ctx, feedPath, url.Values{
			"q":     {"chronFeed"},
			"count": {strconv.Itoa(count)},
			"start": {strconv.Itoa(start)},
		})
		if err != nil {
			return out, err
		}
		elements := page.Objects("elements")
		if len(elements) == 0 {
			elements = page.Objects("data", "elements")
		}
		if len(elements) == 0 {
			break
		}
		out = append(out, elements...)
		start += len(elements)
		if len(elements) < count {
			break
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Close releases the client's connections.
func (c *Client) Close() error { return c.api.Close() }
