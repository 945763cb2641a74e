// Package upstream is the HTTP client the platform connectors talk to their APIs with. It
// keeps a per-session cookie jar, paces requests through a token bucket and maps the
// platforms' throttling and auth statuses onto the platform error types.
package upstream

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/newsroom-scraper/internal/config"
	"github.com/xkilldash9x/newsroom-scraper/internal/platform"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Options configures a Client.
type Options struct {
	BaseURL string
	Config  config.UpstreamConfig
	// Headers are sent with every request.
	Headers map[string]string
	// Transport replaces the network transport, mostly for tests.
	Transport http.RoundTripper
	Logger    *zap.Logger
}

// Client is one authenticated conversation with a platform API. It is safe for concurrent
// use but carries the cookies of a single account.
type Client struct {
	http    *resty.Client
	jar     http.CookieJar
	base    *url.URL
	limiter *rate.Limiter
	logger  *zap.Logger
}

// Response is a fully read upstream response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Payload decodes the body as a JSON object.
func (r *Response) Payload() (platform.Payload, error) {
	p, err := platform.Decode(r.Body)
	if err != nil {
		return nil, fmt.Errorf("upstream returned invalid JSON (status %d): %w", r.Status, err)
	}
	return p, nil
}

// New builds a client for opts.BaseURL.
func New(opts Options) (*Client, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid upstream base url %q", opts.BaseURL)
	}
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	limit := rate.Inf
	if opts.Config.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.Config.RequestsPerSecond)
	}
	burst := opts.Config.Burst
	if burst < 1 {
		burst = 1
	}

	c := &Client{
		jar:     jar,
		base:    base,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger.With(zap.String("upstream", base.Host)),
	}

	rc := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetCookieJar(jar).
		SetTransport(newDecompressor(opts.Transport)).
		SetJSONMarshaler(json.Marshal).
		SetJSONUnmarshaler(json.Unmarshal)
	if opts.Config.Timeout > 0 {
		rc.SetTimeout(opts.Config.Timeout)
	}
	if opts.Config.UserAgent != "" {
		rc.SetHeader("User-Agent", opts.Config.UserAgent)
	}
	rc.SetHeaders(opts.Headers)
	rc.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return c.limiter.Wait(req.Context())
	})
	c.http = rc
	return c, nil
}

// SetHeader sets a header on every later request.
func (c *Client) SetHeader(key, value string) {
	c.http.SetHeader(key, value)
}

// SetCookies stores cookies scoped to the base URL's registrable domain.
func (c *Client) SetCookies(cookies ...*http.Cookie) {
	host := c.base.Hostname()
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	scoped := err == nil && domain != host && net.ParseIP(host) == nil
	for _, ck := range cookies {
		if ck.Domain == "" && scoped {
			ck.Domain = "." + domain
		}
		if ck.Path == "" {
			ck.Path = "/"
		}
	}
	c.jar.SetCookies(c.base, cookies)
}

// Cookie returns the value of the named cookie the jar would send to the base URL.
func (c *Client) Cookie(name string) string {
	for _, ck := range c.jar.Cookies(c.base) {
		if ck.Name == name {
			return ck.Value
		}
	}
	return ""
}

// Do sends a request and returns the raw response. Only transport failures and upstream
// throttling (429) are errors here; callers decide what other statuses mean.
func (c *Client) Do(ctx context.Context, method, path string, prepare func(*resty.Request)) (*Response, error) {
	req := c.http.R().SetContext(ctx)
	if prepare != nil {
		prepare(req)
	}
	res, err := req.Execute(method, path)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	out := &Response{Status: res.StatusCode(), Header: res.Header(), Body: res.Body()}
	c.logger.Debug("Upstream call.", zap.String("method", method), zap.String("path", path), zap.Int("status", out.Status))

	if out.Status == http.StatusTooManyRequests {
		return out, &platform.RateLimitError{RetryAfter: retryAfter(out.Header.Get("Retry-After"), time.Now())}
	}
	return out, nil
}

// GetJSON fetches path and decodes a JSON object, mapping error statuses.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values) (platform.Payload, error) {
	res, err := c.Do(ctx, http.MethodGet, path, func(r *resty.Request) {
		if query != nil {
			r.SetQueryParamsFromValues(query)
		}
	})
	if err != nil {
		return nil, err
	}
	if err := CheckStatus(res); err != nil {
		return nil, err
	}
	return res.Payload()
}

// PostJSON sends body as JSON and decodes a JSON object, mapping error statuses.
func (c *Client) PostJSON(ctx context.Context, path string, body any) (platform.Payload, error) {
	res, err := c.Do(ctx, http.MethodPost, path, func(r *resty.Request) {
		r.SetHeader("Content-Type", "application/json").SetBody(body)
	})
	if err != nil {
		return nil, err
	}
	if err := CheckStatus(res); err != nil {
		return nil, err
	}
	return res.Payload()
}

// PostForm sends a url-encoded form and returns the raw response.
func (c *Client) PostForm(ctx context.Context, path string, form url.Values) (*Response, error) {
	return c.Do(ctx, http.MethodPost, path, func(r *resty.Request) {
		r.SetFormDataFromValues(form)
	})
}

// Close drops idle connections. The client must not be used afterwards.
func (c *Client) Close() error {
	c.http.GetClient().CloseIdleConnections()
	return nil
}

// CheckStatus maps 401/403 to platform.ErrUnauthorized and any other non-2xx status to a
// plain error.
func CheckStatus(res *Response) error {
	switch {
	case res.Status == http.StatusUnauthorized || res.Status == http.StatusForbidden:
		return fmt.Errorf("upstream returned %d: %w", res.Status, platform.ErrUnauthorized)
	case res.Status == http.StatusTooManyRequests:
		return &platform.RateLimitError{RetryAfter: retryAfter(res.Header.Get("Retry-After"), time.Now())}
	case res.Status < 200 || res.Status > 299:
		return fmt.Errorf("upstream returned unexpected status %d", res.Status)
	}
	return nil
}

// retryAfter parses a Retry-After header given either in seconds or as an HTTP date.
func retryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := at.Sub(now); d > 0 {
			return d.Round(time.Second)
		}
	}
	return 0
}
