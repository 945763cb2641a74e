package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/xkilldash9x/newsroom-scraper/api/schemas"
	"github.com/xkilldash9x/newsroom-scraper/internal/config"
	"github.com/xkilldash9x/newsroom-scraper/internal/login"
	"github.com/xkilldash9x/newsroom-scraper/internal/pagestate"
	"github.com/xkilldash9x/newsroom-scraper/internal/platform"
	"github.com/xkilldash9x/newsroom-scraper/internal/platform/linkedin"
	"github.com/xkilldash9x/newsroom-scraper/internal/platform/twitter"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// -- fakes --

type fakeLogin struct {
	startRes  login.Result
	startErr  error
	verifyRes login.Result
	verifyErr error
	closed    []string
}

func (f *fakeLogin) Start(context.Context, string, string) (login.Result, error) {
	return f.startRes, f.startErr
}
func (f *fakeLogin) Verify(context.Context, string, string) (login.Result, error) {
	return f.verifyRes, f.verifyErr
}
func (f *fakeLogin) Close(id string) { f.closed = append(f.closed, id) }

type fakeLinkedIn struct {
	auth     linkedin.AuthResult
	authErr  error
	posts    []schemas.ContentRecord
	fetchErr error
	gotOpts  linkedin.FetchOptions
	gotCreds linkedin.Credentials
	gone     []string
}

func (f *fakeLinkedIn) Authenticate(_ context.Context, c linkedin.Credentials) (linkedin.AuthResult, error) {
	f.gotCreds = c
	return f.auth, f.authErr
}
func (f *fakeLinkedIn) Fetch(_ context.Context, _ string, o linkedin.FetchOptions) ([]schemas.ContentRecord, error) {
	f.gotOpts = o
	return f.posts, f.fetchErr
}
func (f *fakeLinkedIn) Test(context.Context, string) (string, error) { return "Ada Lovelace", f.fetchErr }
func (f *fakeLinkedIn) Disconnect(id string)                          { f.gone = append(f.gone, id) }

type fakeTwitter struct {
	tweets   []schemas.ContentRecord
	fetchErr error
	gotOpts  twitter.FetchOptions
	authErr  error
}

func (f *fakeTwitter) Authenticate(context.Context, twitter.Credentials) (twitter.AuthResult, error) {
	return twitter.AuthResult{SessionID: "tw-1", Username: "newsdesk"}, f.authErr
}
func (f *fakeTwitter) Fetch(_ context.Context, _ string, o twitter.FetchOptions) ([]schemas.ContentRecord, error) {
	f.gotOpts = o
	return f.tweets, f.fetchErr
}
func (f *fakeTwitter) Test(context.Context, string) (string, error) { return "newsdesk", f.fetchErr }
func (f *fakeTwitter) Disconnect(string)                            {}

type fakeScraper struct {
	gotTimeout time.Duration
	articles   schemas.ArticlesResponse
	err        error
}

func (f *fakeScraper) Scrape(_ context.Context, url, _ string, timeout time.Duration) (schemas.ScrapeResponse, error) {
	f.gotTimeout = timeout
	return schemas.ScrapeResponse{Success: true, URL: url, Title: "T", Markdown: "# T"}, f.err
}
func (f *fakeScraper) Articles(context.Context, string, int) (schemas.ArticlesResponse, error) {
	return f.articles, f.err
}

type fakeFetchLog struct {
	mu      sync.Mutex
	records []schemas.FetchLogEntry
	err     error
}

func (f *fakeFetchLog) Record(_ context.Context, source string, n int) (schemas.FetchLogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return schemas.FetchLogEntry{}, f.err
	}
	e := schemas.FetchLogEntry{ID: int64(len(f.records) + 1), Source: source, ArticlesCount: n}
	f.records = append(f.records, e)
	return e, nil
}
func (f *fakeFetchLog) List(context.Context, int) ([]schemas.FetchLogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records, f.err
}

type harness struct {
	srv      *Server
	login    *fakeLogin
	linkedin *fakeLinkedIn
	twitter  *fakeTwitter
	scraper  *fakeScraper
	log      *fakeFetchLog
}

func newHarness() *harness {
	h := &harness{
		login:    &fakeLogin{},
		linkedin: &fakeLinkedIn{},
		twitter:  &fakeTwitter{},
		scraper:  &fakeScraper{},
		log:      &fakeFetchLog{},
	}
	h.srv = New(config.ServerConfig{RequestTimeout: 5 * time.Second}, Deps{
		Login:    h.login,
		LinkedIn: h.linkedin,
		Twitter:  h.twitter,
		Scraper:  h.scraper,
		FetchLog: h.log,
	}, "newsroom-scraper", "test", zap.NewNop())
	return h
}

func (h *harness) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.srv.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// -- tests --

func TestHealth(t *testing.T) {
	h := newHarness()
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	h.srv.now = func() time.Time { return fixed }

	rec := h.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[schemas.HealthResponse](t, rec)
	assert.Equal(t, "ok", got.Status)
	assert.Equal(t, "newsroom-scraper", got.Service)
	assert.True(t, fixed.Equal(got.Timestamp))
}

func TestBrowserLogin_Start(t *testing.T) {
	h := newHarness()
	h.login.startRes = login.Result{
		SessionID:  "abc",
		State:      pagestate.TwoFactorEmail,
		Screenshot: []byte{0x89, 'P', 'N', 'G'},
	}

	rec := h.do(t, http.MethodPost, "/browser-login/start", `{"email":"a@b.c","password":"pw"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[map[string]any](t, rec)
	assert.Equal(t, false, got["success"])
	assert.Equal(t, "abc", got["session_id"])
	assert.Equal(t, "2fa_email", got["state"])
	assert.Equal(t, "iVBORw==", got["screenshot"])
	assert.NotContains(t, got, "li_at")
}

func TestBrowserLogin_StatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		body       string
		startErr   error
		verifyErr  error
		wantStatus int
		retryAfter string
	}{
		{"malformed json", "/browser-login/start", `{"email":`, nil, nil, http.StatusBadRequest, ""},
		{"missing password", "/browser-login/start", `{"email":"a@b.c"}`, nil, nil, http.StatusBadRequest, ""},
		{"capacity", "/browser-login/start", `{"email":"a@b.c","password":"x"}`, login.ErrCapacityExceeded, nil, http.StatusServiceUnavailable, "30"},
		{"unknown session", "/browser-login/verify", `{"session_id":"x","code":"123456"}`, nil, login.ErrSessionNotFound, http.StatusNotFound, ""},
		{"expired session", "/browser-login/verify", `{"session_id":"x","code":"123456"}`, nil, login.ErrSessionExpired, http.StatusGone, ""},
		{"missing code", "/browser-login/verify", `{"session_id":"x"}`, nil, nil, http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			h.login.startErr = tt.startErr
			h.login.verifyErr = tt.verifyErr

			rec := h.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.retryAfter, rec.Header().Get("Retry-After"))
			got := decodeBody[schemas.BrowserLoginResponse](t, rec)
			assert.False(t, got.Success)
			assert.NotEmpty(t, got.Error)
		})
	}
}

func TestBrowserLogin_VerifySuccessAndClose(t *testing.T) {
	h := newHarness()
	h.login.verifyRes = login.Result{Success: true, State: pagestate.Success, Credential: "AQED", ProfileName: "Ada"}

	rec := h.do(t, http.MethodPost, "/browser-login/verify", `{"session_id":"s1","code":" 123456 "}`)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[schemas.BrowserLoginResponse](t, rec)
	assert.True(t, got.Success)
	assert.Equal(t, "AQED", got.LiAt)
	assert.Equal(t, "Ada", got.ProfileName)

	rec = h.do(t, http.MethodPost, "/browser-login/close", `{"session_id":"s1"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"s1"}, h.login.closed)
}

func TestLinkedIn_Endpoints(t *testing.T) {
	h := newHarness()
	h.linkedin.auth = linkedin.AuthResult{SessionID: "li-1", ProfileName: "Ada"}
	h.linkedin.posts = []schemas.ContentRecord{{ExternalID: "1", Title: "t", Content: "c", URL: "u"}}

	rec := h.do(t, http.MethodPost, "/linkedin/auth", `{"li_at_cookie":"AQED"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	auth := decodeBody[schemas.LinkedInAuthResponse](t, rec)
	assert.Equal(t, "li-1", auth.SessionID)
	assert.Equal(t, "AQED", h.linkedin.gotCreds.LiAt)

	for _, path := range []string{"/linkedin/posts", "/linkedin/fetch"} {
		rec = h.do(t, http.MethodPost, path, `{"session_id":"li-1","max_posts":5,"hashtags":["AI"],"include_reposts":true}`)
		require.Equal(t, http.StatusOK, rec.Code, path)
		got := decodeBody[schemas.LinkedInFetchResponse](t, rec)
		assert.True(t, got.Success)
		assert.Equal(t, 1, got.FetchedCount)
		assert.Equal(t, linkedin.FetchOptions{MaxPosts: 5, Hashtags: []string{"AI"}, IncludeReposts: true}, h.linkedin.gotOpts)
	}
	assert.Len(t, h.log.records, 2)
	assert.Equal(t, "linkedin", h.log.records[0].Source)

	rec = h.do(t, http.MethodPost, "/linkedin/test", `{"session_id":"li-1"}`)
	assert.Equal(t, "Ada Lovelace", decodeBody[schemas.LinkedInTestResponse](t, rec).ProfileName)

	rec = h.do(t, http.MethodPost, "/linkedin/disconnect", `{"session_id":"li-1"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"li-1"}, h.linkedin.gone)
}

func TestLinkedIn_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		retryAfter string
	}{
		{"not found", platform.ErrSessionNotFound, http.StatusNotFound, ""},
		{"expired", platform.ErrSessionExpired, http.StatusGone, ""},
		{"rate limited", &platform.RateLimitError{RetryAfter: 1500 * time.Millisecond}, http.StatusTooManyRequests, "2"},
		{"rate limited without hint", &platform.RateLimitError{}, http.StatusTooManyRequests, ""},
		{"business failure", errors.New("feed unavailable"), http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			h.linkedin.fetchErr = tt.err

			rec := h.do(t, http.MethodPost, "/linkedin/posts", `{"session_id":"x"}`)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.retryAfter, rec.Header().Get("Retry-After"))
			got := decodeBody[map[string]any](t, rec)
			assert.Equal(t, false, got["success"])
			assert.Equal(t, []any{}, got["posts"])
			assert.Equal(t, tt.err.Error(), got["error"])
			assert.Empty(t, h.log.records)
		})
	}
}

func TestLinkedIn_AuthFailures(t *testing.T) {
	h := newHarness()
	h.linkedin.authErr = platform.ErrMissingCredentials
	rec := h.do(t, http.MethodPost, "/linkedin/auth", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	h.linkedin.authErr = &platform.AuthError{Platform: "linkedin", Reason: "invalid or expired li_at cookie", Err: platform.ErrUnauthorized}
	rec = h.do(t, http.MethodPost, "/linkedin/auth", `{"li_at_cookie":"bad"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[schemas.LinkedInAuthResponse](t, rec)
	assert.False(t, got.Success)
	assert.Contains(t, got.Error, "invalid or expired li_at cookie")
}

func TestTwitter_FetchDefaults(t *testing.T) {
	h := newHarness()
	h.twitter.tweets = []schemas.ContentRecord{{ExternalID: "1"}, {ExternalID: "2"}}

	rec := h.do(t, http.MethodPost, "/twitter/timeline", `{"session_id":"tw-1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[schemas.TwitterFetchResponse](t, rec)
	assert.Equal(t, 2, got.FetchedCount)
	assert.Equal(t, twitter.FetchOptions{
		Timeline:        twitter.Following,
		IncludeRetweets: true,
		ExpandThreads:   true,
	}, h.twitter.gotOpts)
	assert.Equal(t, "twitter", h.log.records[0].Source)

	rec = h.do(t, http.MethodPost, "/twitter/fetch", `{"session_id":"tw-1","timeline_type":"for_you","max_tweets":10,"include_retweets":false,"include_replies":true,"expand_threads":false,"hashtags":["golang"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, twitter.FetchOptions{
		Timeline:       twitter.ForYou,
		MaxTweets:      10,
		IncludeReplies: true,
		Hashtags:       []string{"golang"},
	}, h.twitter.gotOpts)
}

func TestTwitter_Errors(t *testing.T) {
	h := newHarness()
	rec := h.do(t, http.MethodPost, "/twitter/timeline", `{"session_id":"tw-1","timeline_type":"latest"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	h.twitter.fetchErr = platform.ErrSessionExpired
	rec = h.do(t, http.MethodPost, "/twitter/timeline", `{"session_id":"tw-1"}`)
	assert.Equal(t, http.StatusGone, rec.Code)

	h.twitter.authErr = platform.ErrAuthChallenge
	rec = h.do(t, http.MethodPost, "/twitter/auth", `{"username":"u","password":"p"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[schemas.TwitterAuthResponse](t, rec)
	assert.False(t, got.Success)
	assert.Contains(t, got.Error, "browser login")
}

func TestScrape(t *testing.T) {
	h := newHarness()
	rec := h.do(t, http.MethodPost, "/scrape", `{"url":"https://example.com","timeout":1500}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1500*time.Millisecond, h.scraper.gotTimeout)
	assert.True(t, decodeBody[schemas.ScrapeResponse](t, rec).Success)

	rec = h.do(t, http.MethodPost, "/scrape", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	h.scraper.err = errors.New("navigation failed")
	rec = h.do(t, http.MethodPost, "/scrape", `{"url":"https://example.com"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[schemas.ScrapeResponse](t, rec)
	assert.False(t, got.Success)
	assert.Equal(t, "navigation failed", got.Error)
}

func TestArticlesRecordsFetch(t *testing.T) {
	h := newHarness()
	h.scraper.articles = schemas.ArticlesResponse{
		Success:   true,
		SourceURL: "https://blog.example.com",
		Method:    "browser",
		Articles:  []schemas.Article{{URL: "https://blog.example.com/p/one", Title: "First article"}},
	}

	rec := h.do(t, http.MethodPost, "/scrape/articles", `{"url":"https://blog.example.com","max_articles":5}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, h.log.records, 1)
	assert.Equal(t, "https://blog.example.com", h.log.records[0].Source)
	assert.Equal(t, 1, h.log.records[0].ArticlesCount)

	rec = h.do(t, http.MethodGet, "/fetch-log", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[schemas.FetchLogResponse](t, rec).Entries, 1)
}

func TestFetchLog(t *testing.T) {
	h := newHarness()
	rec := h.do(t, http.MethodPost, "/fetch-log", `{"source":"manual","articles_count":4}`)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[schemas.FetchLogResponse](t, rec)
	require.Len(t, got.Entries, 1)
	assert.Equal(t, "manual", got.Entries[0].Source)

	rec = h.do(t, http.MethodGet, "/fetch-log?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	t.Run("not configured", func(t *testing.T) {
		srv := New(config.ServerConfig{}, Deps{}, "svc", "v", zap.NewNop())
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/fetch-log", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("record failure does not fail the fetch", func(t *testing.T) {
		h := newHarness()
		h.log.err = errors.New("db down")
		rec := h.do(t, http.MethodPost, "/linkedin/posts", `{"session_id":"x"}`)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, decodeBody[schemas.LinkedInFetchResponse](t, rec).Success)
	})
}

func TestCORS(t *testing.T) {
	srv := New(config.ServerConfig{AllowedOrigins: []string{"https://app.example.com"}}, Deps{}, "svc", "v", zap.NewNop())

	req := httptest.NewRequest(http.MethodOptions, "/linkedin/auth", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestListenAndServe_StopsOnCancel(t *testing.T) {
	srv := New(config.ServerConfig{ListenAddr: "127.0.0.1:0", ShutdownTimeout: time.Second}, Deps{}, "svc", "v", zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
