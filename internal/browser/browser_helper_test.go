// internal/browser/browser_helper_test.go
package browser

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/newsroom-scraper/internal/config"
)

const defaultBrowserTestTimeout = 90 * time.Second

// findChrome returns a Chrome binary or skips the test.
func findChrome(t *testing.T) string {
	t.Helper()
	for _, name := range []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "headless-shell"} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	t.Skip("no Chrome binary found; skipping browser integration test")
	return ""
}

// testFixture bundles a factory and a context bounded by the test deadline.
type testFixture struct {
	Factory *ChromeFactory
	Ctx     context.Context
}

func newTestFixture(t *testing.T) *testFixture {
	t.Helper()
	chrome := findChrome(t)

	cfg := config.NewDefaultConfig().Browser()
	cfg.ExecPath = chrome
	cfg.NavigationTimeout = 20 * time.Second
	cfg.ActionTimeout = 5 * time.Second

	ctx, cancel := context.WithTimeout(context.Background(), defaultBrowserTestTimeout)
	factory := NewFactory(ctx, cfg, zaptest.NewLogger(t))
	t.Cleanup(func() {
		factory.Shutdown()
		cancel()
	})
	return &testFixture{Factory: factory, Ctx: ctx}
}

func (f *testFixture) newPage(t *testing.T) Page {
	t.Helper()
	page, err := f.Factory.Create(f.Ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = page.Close() })
	return page
}

// serveHTML starts a server answering every path with body.
func serveHTML(t *testing.T, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(server.Close)
	return server
}
