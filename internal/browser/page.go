// internal/browser/page.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

// Page is a single tab of a stealth browser session. It exclusively owns its tab, browser
// context and browser process; Close releases all three.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Location(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
	Content(ctx context.Context) (string, error)

	// Probes return immediately; they never wait for the selector to appear.
	Exists(ctx context.Context, selector string) (bool, error)
	Visible(ctx context.Context, selector string) (bool, error)
	Text(ctx context.Context, selector string) (string, error)

	WaitVisible(ctx context.Context, selector string) error
	Fill(ctx context.Context, selector, value string) error
	Click(ctx context.Context, selector string) error
	ClickButtonByLabel(ctx context.Context, label string) (bool, error)
	Evaluate(ctx context.Context, script string, out any) error
	WaitSettled(ctx context.Context, timeout time.Duration) error

	Cookie(ctx context.Context, name string, urls ...string) (string, bool, error)
	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}

const (
	// quietPeriod is how long the network must stay idle before a page counts as settled.
	quietPeriod = 500 * time.Millisecond
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// chromePage implements Page on top of a chromedp tab context.
type chromePage struct {
	ctx    context.Context
	logger *zap.Logger

	navigationTimeout time.Duration
	actionTimeout     time.Duration

	closeOnce sync.Once
	cancels   []context.CancelFunc
}

var _ Page = (*chromePage)(nil)

// run executes actions in the tab, canceled by either the tab's lifetime or ctx.
func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	if p.ctx.Err() != nil {
		return ErrPageClosed
	}
	runCtx, cancel := CombineContext(p.ctx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

// runBounded is run with the action timeout applied.
func (p *chromePage) runBounded(ctx context.Context, actions ...chromedp.Action) error {
	if p.actionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.actionTimeout)
		defer cancel()
	}
	return p.run(ctx, actions...)
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	navCtx := ctx
	if p.navigationTimeout > 0 {
		var cancel context.CancelFunc
		navCtx, cancel = context.WithTimeout(ctx, p.navigationTimeout)
		defer cancel()
	}

	err := p.run(navCtx, chromedp.Navigate(url))
	if err == nil {
		return nil
	}
	// The caller's own cancellation is not a navigation timeout.
	if ctx.Err() == nil && errors.Is(navCtx.Err(), context.DeadlineExceeded) {
		p.logger.Debug("Navigation timed out.", zap.String("url", url), zap.Duration("timeout", p.navigationTimeout))
		return fmt.Errorf("%w: %s", ErrNavigationTimeout, url)
	}
	return fmt.Errorf("failed to navigate to %s: %w", url, err)
}

func (p *chromePage) Location(ctx context.Context) (string, error) {
	var loc string
	if err := p.run(ctx, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("failed to read location: %w", err)
	}
	return loc, nil
}

func (p *chromePage) Title(ctx context.Context) (string, error) {
	var title string
	if err := p.run(ctx, chromedp.Title(&title)); err != nil {
		return "", fmt.Errorf("failed to read title: %w", err)
	}
	return title, nil
}

func (p *chromePage) Content(ctx context.Context) (string, error) {
	var html string
	if err := p.Evaluate(ctx, `document.documentElement ? document.documentElement.outerHTML : ""`, &html); err != nil {
		return "", fmt.Errorf("failed to read page content: %w", err)
	}
	return html, nil
}

// probe evaluates fn against the first element matching selector. fn receives the element
// (or null) and must return a JSON-serializable value.
func (p *chromePage) probe(ctx context.Context, selector, fn string, out any) error {
	quoted, err := json.MarshalToString(selector)
	if err != nil {
		return err
	}
	script := fmt.Sprintf(`(%s)(document.querySelector(%s))`, fn, quoted)
	return p.Evaluate(ctx, script, out)
}

func (p *chromePage) Exists(ctx context.Context, selector string) (bool, error) {
	var ok bool
	err := p.probe(ctx, selector, `el => el !== null`, &ok)
	return ok, err
}

const visibleFn = `el => {
  if (!el) return false;
  const style = window.getComputedStyle(el);
  if (style.visibility === 'hidden' || style.display === 'none') return false;
  const rect = el.getBoundingClientRect();
  return rect.width > 0 && rect.height > 0;
}`

func (p *chromePage) Visible(ctx context.Context, selector string) (bool, error) {
	var ok bool
	err := p.probe(ctx, selector, visibleFn, &ok)
	return ok, err
}

func (p *chromePage) Text(ctx context.Context, selector string) (string, error) {
	var res struct {
		Found bool   `json:"found"`
		Text  string `json:"text"`
	}
	err := p.probe(ctx, selector, `el => el ? {found: true, text: el.innerText || el.textContent || ""} : {found: false, text: ""}`, &res)
	if err != nil {
		return "", err
	}
	if !res.Found {
		return "", ErrElementNotFound
	}
	return res.Text, nil
}

func (p *chromePage) WaitVisible(ctx context.Context, selector string) error {
	return p.run(ctx, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

func (p *chromePage) Fill(ctx context.Context, selector, value string) error {
	err := p.runBounded(ctx,
		chromedp.Focus(selector, chromedp.ByQuery),
		chromedp.SetValue(selector, "", chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("failed to fill %q: %w", selector, err)
	}
	return nil
}

func (p *chromePage) Click(ctx context.Context, selector string) error {
	if err := p.runBounded(ctx, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible)); err != nil {
		return fmt.Errorf("failed to click %q: %w", selector, err)
	}
	return nil
}

const clickByLabelFn = `(label) => {
  const norm = s => (s || '').replace(/\s+/g, ' ').trim();
  const candidates = Array.from(document.querySelectorAll('button, [role="button"]'));
  const match = candidates.find(b => norm(b.innerText || b.textContent) === label || norm(b.getAttribute('aria-label')) === label);
  if (!match) return false;
  match.click();
  return true;
}`

// ClickButtonByLabel clicks the first button whose visible text or aria-label equals label exactly.
func (p *chromePage) ClickButtonByLabel(ctx context.Context, label string) (bool, error) {
	quoted, err := json.MarshalToString(label)
	if err != nil {
		return false, err
	}
	var clicked bool
	err = p.Evaluate(ctx, fmt.Sprintf(`(%s)(%s)`, clickByLabelFn, quoted), &clicked)
	return clicked, err
}

func (p *chromePage) Evaluate(ctx context.Context, script string, out any) error {
	return p.runBounded(ctx, chromedp.Evaluate(script, out))
}

// WaitSettled blocks until no request has been in flight for quietPeriod, or until timeout.
// Requests issued before the call are not tracked.
func (p *chromePage) WaitSettled(ctx context.Context, timeout time.Duration) error {
	if p.ctx.Err() != nil {
		return ErrPageClosed
	}
	listenCtx, stop := context.WithCancel(p.ctx)
	defer stop()

	var (
		mu       sync.Mutex
		inflight = make(map[network.RequestID]struct{})
		activity = make(chan struct{}, 1)
	)
	chromedp.ListenTarget(listenCtx, func(ev any) {
		mu.Lock()
		switch e := ev.(type) {
		case *network.EventRequestWillBeSent:
			inflight[e.RequestID] = struct{}{}
		case *network.EventLoadingFinished:
			delete(inflight, e.RequestID)
		case *network.EventLoadingFailed:
			delete(inflight, e.RequestID)
		default:
			mu.Unlock()
			return
		}
		mu.Unlock()
		select {
		case activity <- struct{}{}:
		default:
		}
	})

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	quiet := time.NewTimer(quietPeriod)
	defer quiet.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.ctx.Done():
			return ErrPageClosed
		case <-deadline.C:
			return ErrSettleTimeout
		case <-activity:
			if !quiet.Stop() {
				select {
				case <-quiet.C:
				default:
				}
			}
			quiet.Reset(quietPeriod)
		case <-quiet.C:
			mu.Lock()
			idle := len(inflight) == 0
			mu.Unlock()
			if idle {
				return nil
			}
			quiet.Reset(quietPeriod)
		}
	}
}

// Cookie returns the value of the named cookie visible to urls.
func (p *chromePage) Cookie(ctx context.Context, name string, urls ...string) (string, bool, error) {
	var cookies []*network.Cookie
	err := p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = network.GetCookies().WithURLs(urls).Do(ctx)
		return err
	}))
	if err != nil {
		return "", false, fmt.Errorf("failed to read cookies: %w", err)
	}
	for _, c := range cookies {
		if c.Name == name {
			return c.Value, true, nil
		}
	}
	return "", false, nil
}

// Screenshot captures the viewport as PNG.
func (p *chromePage) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := p.runBounded(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return buf, nil
}

// Close tears down the tab, its browser context and the browser process. Safe to call repeatedly.
func (p *chromePage) Close() error {
	p.closeOnce.Do(func() {
		for _, cancel := range p.cancels {
			cancel()
		}
		p.logger.Debug("Browser session closed.")
	})
	return nil
}
