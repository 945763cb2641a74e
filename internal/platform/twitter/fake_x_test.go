package twitter

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/newsroom-scraper/internal/config"
	"github.com/xkilldash9x/newsroom-scraper/internal/platform"
)

const (
	goodToken = "tok"
	goodCT0   = "csrf"
)

// fakeX imitates the guest, onboarding, settings and home timeline endpoints.
type fakeX struct {
	mu         sync.Mutex
	timeline   []map[string]any
	operations []string
	status     int
}

func (f *fakeX) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	switch {
	case r.URL.Path == guestPath:
		writeJSON(w, map[string]any{"guest_token": "g1"})
	case r.URL.Path == taskPath:
		f.serveTask(w, r)
	case r.URL.Path == settingsPath:
		if !authorized(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(w, map[string]any{"screen_name": "gopher"})
	case strings.HasPrefix(r.URL.Path, graphqlPath):
		if !authorized(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		f.serveTimeline(w, r)
	default:
		http.NotFound(w, r)
	}
}

func authorized(r *http.Request) bool {
	tok, err1 := r.Cookie(authCookie)
	ct0, err2 := r.Cookie(csrfCookie)
	return err1 == nil && err2 == nil && tok.Value == goodToken &&
		ct0.Value == goodCT0 && r.Header.Get("X-Csrf-Token") == goodCT0
}

func (f *fakeX) serveTask(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("flow_name") == "login" {
		if r.Header.Get("X-Guest-Token") != "g1" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		writeJSON(w, flow("LoginJsInstrumentationSubtask"))
		return
	}
	body, _ := io.ReadAll(r.Body)
	var req struct {
		FlowToken     string           `json:"flow_token"`
		SubtaskInputs []map[string]any `json:"subtask_inputs"`
	}
	_ = jsoniter.Unmarshal(body, &req)
	in := platform.Payload(req.SubtaskInputs[0])

	switch in.String("subtask_id") {
	case "LoginJsInstrumentationSubtask":
		writeJSON(w, flow("LoginEnterUserIdentifierSSO"))
	case "LoginEnterUserIdentifierSSO":
		responses := in.Objects("settings_list", "setting_responses")
		if responses[0].String("response_data", "text_data", "result") == "locked" {
			writeJSON(w, flow("DenyLoginSubtask"))
			return
		}
		writeJSON(w, flow("LoginEnterPassword"))
	case "LoginEnterPassword":
		switch in.String("enter_password", "password") {
		case "good":
			http.SetCookie(w, &http.Cookie{Name: authCookie, Value: goodToken, Path: "/"})
			http.SetCookie(w, &http.Cookie{Name: csrfCookie, Value: goodCT0, Path: "/"})
			writeJSON(w, flow("LoginSuccessSubtask"))
		case "2fa":
			writeJSON(w, flow("LoginTwoFactorAuthChallenge"))
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	default:
		w.WriteHeader(http.StatusBadRequest)
	}
}

func flow(subtask string) map[string]any {
	return map[string]any{
		"flow_token": "f1",
		"subtasks":   []any{map[string]any{"subtask_id": subtask}},
	}
}

func (f *fakeX) serveTimeline(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.operations = append(f.operations, r.URL.Path[len(graphqlPath):])
	if f.status != 0 {
		w.WriteHeader(f.status)
		return
	}
	body, _ := io.ReadAll(r.Body)
	req, _ := platform.Decode(body)
	count, _ := strconv.Atoi(req.String("variables", "count"))
	start, _ := strconv.Atoi(req.String("variables", "cursor"))
	end := min(start+count, len(f.timeline))

	var entries []any
	for i := start; i < end; i++ {
		entries = append(entries, map[string]any{
			"entryId": "tweet-" + strconv.Itoa(i),
			"content": map[string]any{
				"entryType":   "TimelineTimelineItem",
				"itemContent": map[string]any{"tweet_results": map[string]any{"result": f.timeline[i]}},
			},
		})
	}
	entries = append(entries, map[string]any{
		"entryId": "cursor-bottom",
		"content": map[string]any{"cursorType": "Bottom", "value": strconv.Itoa(end)},
	})
	writeJSON(w, map[string]any{"data": map[string]any{"home": map[string]any{"home_timeline_urt": map[string]any{
		"instructions": []any{map[string]any{"type": "TimelineAddEntries", "entries": entries}},
	}}}})
}

func (f *fakeX) ops() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.operations...)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = jsoniter.NewEncoder(w).Encode(v)
}

type tweetOpt func(map[string]any)

func retweet(t map[string]any) {
	t["legacy"].(map[string]any)["retweeted_status_result"] = map[string]any{"result": map[string]any{"rest_id": "9"}}
}

func reply(t map[string]any) {
	t["legacy"].(map[string]any)["in_reply_to_status_id_str"] = "77"
}

func tweet(id, text string, opts ...tweetOpt) map[string]any {
	t := map[string]any{
		"__typename": "Tweet",
		"rest_id":    id,
		"core": map[string]any{"user_results": map[string]any{"result": map[string]any{
			"legacy": map[string]any{"screen_name": "gopher", "name": "Go Gopher"},
		}}},
		"legacy": map[string]any{
			"full_text":  text,
			"created_at": "Wed Oct 10 20:19:24 +0000 2018",
		},
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

func newTestService(t *testing.T, fake *fakeX, opts ...Option) *Service {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	cfg := config.PlatformConfig{BaseURL: srv.URL, SessionTTL: 90 * time.Minute, MaxSessions: 100}
	svc := NewService(cfg, config.UpstreamConfig{Timeout: 5 * time.Second}, zap.NewNop(),
		append([]Option{WithPacer(platform.NoPacing{})}, opts...)...)
	t.Cleanup(svc.Shutdown)
	return svc
}
