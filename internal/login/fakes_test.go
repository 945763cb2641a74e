package login

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/xkilldash9x/newsroom-scraper/internal/browser"
)

// fakePage is a scriptable stand-in for a browser tab. Selectors present in visible are
// both present and visible; those in hidden are present only.
type fakePage struct {
	mu sync.Mutex

	url     string
	content string
	visible map[string]bool
	hidden  map[string]bool
	texts   map[string]string
	labels  map[string]bool
	cookies map[string]string

	navErr      error
	fillErr     error
	locationErr error
	settleErr   error

	// Transitions.
	onConsent  func(p *fakePage)
	onFallback func(p *fakePage)
	onSubmit   func(p *fakePage)

	filled      map[string]string
	clicked     []string
	screenshots int
	closed      int
}

func newFakePage() *fakePage {
	return &fakePage{
		visible: map[string]bool{},
		hidden:  map[string]bool{},
		texts:   map[string]string{},
		labels:  map[string]bool{},
		cookies: map[string]string{},
		filled:  map[string]string{},
	}
}

// loginForm makes the username/password form available.
func (p *fakePage) loginForm() *fakePage {
	p.visible[usernameSelector] = true
	p.visible[passwordSelector] = true
	p.visible[submitSelector] = true
	return p
}

func (p *fakePage) Navigate(_ context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.url = url
	return p.navErr
}

func (p *fakePage) Location(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url, p.locationErr
}

func (p *fakePage) Title(context.Context) (string, error) { return "", nil }

func (p *fakePage) Content(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.content, nil
}

func (p *fakePage) Exists(_ context.Context, sel string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.visible[sel] || p.hidden[sel], nil
}

func (p *fakePage) Visible(_ context.Context, sel string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.visible[sel], nil
}

func (p *fakePage) Text(_ context.Context, sel string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	text, ok := p.texts[sel]
	if !ok {
		return "", browser.ErrElementNotFound
	}
	return text, nil
}

func (p *fakePage) WaitVisible(context.Context, string) error { return nil }

func (p *fakePage) Fill(_ context.Context, sel, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fillErr != nil {
		return p.fillErr
	}
	if !p.visible[sel] {
		return errors.New("no such element: " + sel)
	}
	p.filled[sel] = value
	return nil
}

func (p *fakePage) Click(_ context.Context, sel string) error {
	p.mu.Lock()
	p.clicked = append(p.clicked, sel)
	hook := p.onSubmit
	p.mu.Unlock()
	if hook != nil {
		hook(p)
	}
	return nil
}

func (p *fakePage) ClickButtonByLabel(_ context.Context, label string) (bool, error) {
	p.mu.Lock()
	ok := p.labels[label]
	hook := p.onConsent
	if ok {
		p.clicked = append(p.clicked, "label:"+label)
	}
	p.mu.Unlock()
	if ok && hook != nil {
		hook(p)
	}
	return ok, nil
}

func (p *fakePage) Evaluate(_ context.Context, script string, out any) error {
	if script != consentFallbackScript {
		return nil
	}
	p.mu.Lock()
	hook := p.onFallback
	p.mu.Unlock()
	if b, ok := out.(*bool); ok {
		*b = hook != nil
	}
	if hook != nil {
		hook(p)
	}
	return nil
}

func (p *fakePage) WaitSettled(context.Context, time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.settleErr
}

func (p *fakePage) Cookie(_ context.Context, name string, _ ...string) (string, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.cookies[name]
	return v, ok, nil
}

func (p *fakePage) Screenshot(context.Context) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.screenshots++
	return []byte("\x89PNG-fake"), nil
}

func (p *fakePage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed++
	return nil
}

func (p *fakePage) closeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// fakeFactory hands out prepared pages in order.
type fakeFactory struct {
	mu    sync.Mutex
	pages []*fakePage
	err   error
	// gate, when set, blocks Create until closed.
	gate    chan struct{}
	entered chan struct{}
}

func (f *fakeFactory) Create(ctx context.Context) (browser.Page, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if len(f.pages) == 0 {
		return nil, &browser.LaunchError{Err: errors.New("no pages scripted")}
	}
	p := f.pages[0]
	f.pages = f.pages[1:]
	return p, nil
}

type fakeProfiles struct {
	name string
	err  error
	got  []string
}

func (f *fakeProfiles) ProfileName(_ context.Context, credential string) (string, error) {
	f.got = append(f.got, credential)
	return f.name, f.err
}

// recordingSleeper records requested pauses without sleeping.
type recordingSleeper struct {
	mu     sync.Mutex
	pauses []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.pauses = append(s.pauses, d)
	s.mu.Unlock()
	return ctx.Err()
}
