package linkedin

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/newsroom-scraper/internal/config"
	"github.com/xkilldash9x/newsroom-scraper/internal/platform"
)

const (
	validCookie = "valid-li-at"
	csrfValue   = "ajax:42"
)

// fakeVoyager imitates the handful of LinkedIn endpoints the client uses.
type fakeVoyager struct {
	mu         sync.Mutex
	feed       []map[string]any
	feedStatus int
	feedCalls  []string
}

func (f *fakeVoyager) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodGet && r.URL.Path == authPath:
		http.SetCookie(w, &http.Cookie{Name: csrfCookie, Value: csrfValue, Path: "/"})
	case r.Method == http.MethodPost && r.URL.Path == authPath:
		_ = r.ParseForm()
		result := "BAD_PASSWORD"
		switch r.PostForm.Get("session_password") {
		case "good":
			result = "PASS"
			http.SetCookie(w, &http.Cookie{Name: CredentialCookie, Value: validCookie, Path: "/"})
		case "challenge":
			result = "CHALLENGE"
		}
		writeJSON(w, http.StatusOK, map[string]any{"login_result": result})
	case r.URL.Path == mePath:
		if !f.authorized(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"miniProfile": map[string]any{"firstName": "Ada", "lastName": "Lovelace"}})
	case r.URL.Path == feedPath:
		if !f.authorized(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		f.serveFeed(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeVoyager) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.feedCalls...)
}

func (f *fakeVoyager) authorized(r *http.Request) bool {
	ck, err := r.Cookie(CredentialCookie)
	return err == nil && ck.Value == validCookie && r.Header.Get("Csrf-Token") == csrfValue
}

func (f *fakeVoyager) serveFeed(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feedCalls = append(f.feedCalls, r.URL.RawQuery)
	if f.feedStatus != 0 {
		w.Header().Set("Retry-After", "60")
		w.WriteHeader(f.feedStatus)
		return
	}
	start, _ := strconv.Atoi(r.URL.Query().Get("start"))
	count, _ := strconv.Atoi(r.URL.Query().Get("count"))
	end := min(start+count, len(f.feed))
	page := []map[string]any{}
	if start < end {
		page = f.feed[start:end]
	}
	writeJSON(w, http.StatusOK, map[string]any{"elements": page})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = jsoniter.NewEncoder(w).Encode(v)
}

func post(id, text string, repost bool) map[string]any {
	p := map[string]any{
		"urn":        "urn:li:activity:" + id,
		"actor":      map[string]any{"name": map[string]any{"text": "Grace Hopper"}},
		"commentary": map[string]any{"text": map[string]any{"text": text}},
		"createdAt":  float64(1700000000000),
	}
	if repost {
		p["resharedPost"] = map[string]any{"urn": "urn:li:activity:orig-" + id}
	}
	return p
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestService(t *testing.T, fake *fakeVoyager, opts ...Option) *Service {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	cfg := config.PlatformConfig{BaseURL: srv.URL, SessionTTL: time.Hour, MaxSessions: 100}
	svc := NewService(cfg, config.UpstreamConfig{Timeout: 5 * time.Second}, zap.NewNop(),
		append([]Option{WithPacer(platform.NoPacing{})}, opts...)...)
	t.Cleanup(svc.Shutdown)
	return svc
}

func makeFeed(n int, prefix string) []map[string]any {
	out := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, post(fmt.Sprintf("%s%d", prefix, i), fmt.Sprintf("Post number %d with enough text", i), false))
	}
	return out
}
