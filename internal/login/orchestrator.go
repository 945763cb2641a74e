// Package login drives the interactive two-step browser login: Start submits credentials
// and either finishes or parks the browser waiting for a second factor, Verify submits the
// code for a parked session and Close abandons it.
package login

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/xkilldash9x/newsroom-scraper/internal/browser"
	"github.com/xkilldash9x/newsroom-scraper/internal/config"
	"github.com/xkilldash9x/newsroom-scraper/internal/pagestate"
	"github.com/xkilldash9x/newsroom-scraper/internal/registry"
)

const (
	usernamePause      = 300 * time.Millisecond
	passwordPause      = 500 * time.Millisecond
	codePause          = 500 * time.Millisecond
	consentSettle      = 5 * time.Second
	consentFallbackGap = 2 * time.Second
	settleGrace        = 2 * time.Second
	profileTimeout     = 15 * time.Second
	diagnosticsTimeout = 5 * time.Second
)

// Result is the outcome of Start or Verify.
type Result struct {
	Success     bool
	SessionID   string
	State       pagestate.State
	Credential  string
	ProfileName string
	Screenshot  []byte
	Error       string
}

// ProfileResolver looks up the display name behind a session credential.
type ProfileResolver interface {
	ProfileName(ctx context.Context, credential string) (string, error)
}

// Sleeper pauses for d unless ctx ends first.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the real Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithSleeper replaces the pause implementation.
func WithSleeper(s Sleeper) Option { return func(o *Orchestrator) { o.sleep = s } }

// WithClock sets the clock used by the pending-session registry.
func WithClock(c registry.Clock) Option { return func(o *Orchestrator) { o.clock = c } }

// WithProfileResolver enables best-effort display name lookup after a successful login.
func WithProfileResolver(r ProfileResolver) Option { return func(o *Orchestrator) { o.profiles = r } }

// Orchestrator runs browser logins. It is safe for concurrent use.
type Orchestrator struct {
	factory  browser.Factory
	sessions *registry.Registry[browser.Page]
	slots    *semaphore.Weighted
	profiles ProfileResolver
	sleep    Sleeper
	clock    registry.Clock
	cfg      config.BrowserConfig
	logger   *zap.Logger

	// verifying holds the ids currently taken out of the registry by Verify. The value
	// is set when Close arrives for one of them.
	mu        sync.Mutex
	verifying map[string]bool
}

// New creates an Orchestrator. Pending sessions live in a registry bounded by
// cfg.SessionTTL and cfg.MaxSessions; concurrent Start calls are capped at cfg.MaxConcurrent.
func New(cfg config.BrowserConfig, factory browser.Factory, logger *zap.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		factory:   factory,
		slots:     semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		sleep:     Sleep,
		cfg:       cfg,
		logger:    logger.Named("login"),
		verifying: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.sessions = registry.New(registry.Options[browser.Page]{
		TTL:      cfg.SessionTTL,
		Capacity: cfg.MaxSessions,
		Clock:    o.clock,
		Logger:   o.logger,
		Release: func(id string, p browser.Page) {
			if err := p.Close(); err != nil {
				o.logger.Warn("Failed to close browser session.", zap.String("session_id", id), zap.Error(err))
			}
		},
	})
	return o
}

// Pending reports how many sessions are waiting for a second factor.
func (o *Orchestrator) Pending() int { return o.sessions.Len() }

// Start opens a stealth browser, submits the credentials and classifies where the login
// landed. Only ErrCapacityExceeded is returned as an error; every other failure is reported
// in the Result.
func (o *Orchestrator) Start(ctx context.Context, email, password string) (Result, error) {
	o.sessions.Sweep()

	if !o.slots.TryAcquire(1) {
		o.logger.Warn("Login rejected, all browser slots are busy.", zap.Int("max_concurrent", o.cfg.MaxConcurrent))
		return Result{}, ErrCapacityExceeded
	}
	defer o.slots.Release(1)

	page, err := o.factory.Create(ctx)
	if err != nil {
		o.logger.Error("Could not create browser session.", zap.Error(err))
		return failed(err.Error()), nil
	}

	res, keep := o.submitCredentials(ctx, page, email, password)
	if keep {
		res.SessionID = uuid.NewString()
		o.sessions.Put(res.SessionID, page)
		o.logger.Info("Login waiting for second factor.", zap.String("session_id", res.SessionID), zap.String("state", string(res.State)))
		return res, nil
	}
	o.closePage(page)
	return res, nil
}

// Verify submits a second-factor code for a pending session. While Verify runs the session
// is owned by this call alone; it is put back only when the page still asks for a code and
// nobody closed it in the meantime.
func (o *Orchestrator) Verify(ctx context.Context, sessionID, code string) (Result, error) {
	page, createdAt, err := o.take(sessionID)
	switch {
	case errors.Is(err, registry.ErrNotFound):
		return Result{}, ErrSessionNotFound
	case errors.Is(err, registry.ErrExpired):
		return Result{}, ErrSessionExpired
	case err != nil:
		return Result{}, err
	}

	logger := o.logger.With(zap.String("session_id", sessionID))
	res, keep := o.submitCode(ctx, page, code)

	o.mu.Lock()
	closed := o.verifying[sessionID]
	delete(o.verifying, sessionID)
	parked := false
	if keep && !closed {
		parked = o.sessions.Restore(sessionID, page, createdAt)
	}
	o.mu.Unlock()

	switch {
	case keep && closed:
		o.closePage(page)
		logger.Info("Session closed while verifying.")
		return failed(msgSessionClosed), nil
	case parked:
		res.SessionID = sessionID
		logger.Info("Session still waiting for second factor.", zap.String("state", string(res.State)))
		return res, nil
	case keep:
		// Restore already released the page.
		logger.Warn("Session evicted before it could wait for another code.")
		return failed(msgSessionEvicted), nil
	}
	o.closePage(page)
	logger.Info("Verification finished.", zap.String("state", string(res.State)), zap.Bool("success", res.Success))
	return res, nil
}

// take removes the session from the registry and marks it as being verified, both under
// o.mu so Close always finds it in one of the two.
func (o *Orchestrator) take(sessionID string) (browser.Page, time.Time, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	page, createdAt, err := o.sessions.Take(sessionID)
	if err == nil {
		o.verifying[sessionID] = false
	}
	return page, createdAt, err
}

// Close releases a pending session. A session in the middle of Verify is released as soon
// as that call finishes. Unknown ids are ignored.
func (o *Orchestrator) Close(sessionID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sessions.Remove(sessionID) {
		o.logger.Info("Login session closed.", zap.String("session_id", sessionID))
		return
	}
	if _, ok := o.verifying[sessionID]; ok {
		o.verifying[sessionID] = true
		o.logger.Info("Login session will close once verification returns.", zap.String("session_id", sessionID))
	}
}

// Shutdown releases every pending session, including those still being verified.
func (o *Orchestrator) Shutdown() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for id := range o.verifying {
		o.verifying[id] = true
	}
	o.sessions.Clear()
}

// submitCredentials runs the first step. keep reports that the page must stay open for Verify.
func (o *Orchestrator) submitCredentials(ctx context.Context, page browser.Page, email, password string) (res Result, keep bool) {
	if err := page.Navigate(ctx, o.cfg.LoginURL); err != nil {
		if !errors.Is(err, browser.ErrNavigationTimeout) {
			return failed(err.Error()), false
		}
		o.logger.Warn("Login page load timed out, continuing.", zap.String("url", o.cfg.LoginURL))
	}

	found, err := o.revealLoginForm(ctx, page)
	if err != nil {
		return failed(err.Error()), false
	}
	if !found {
		res := failed(msgFormNotFound)
		res.Screenshot = o.screenshot(ctx, page)
		return res, false
	}

	steps := []func() error{
		func() error { return page.Fill(ctx, usernameSelector, email) },
		func() error { return o.sleep(ctx, usernamePause) },
		func() error { return page.Fill(ctx, passwordSelector, password) },
		func() error { return o.sleep(ctx, passwordPause) },
		func() error { return page.Click(ctx, submitSelector) },
		func() error { return o.settle(ctx, page) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return failed(err.Error()), false
		}
	}
	return o.conclude(ctx, page)
}

// revealLoginForm dismisses a cookie consent overlay if one hides the username field.
func (o *Orchestrator) revealLoginForm(ctx context.Context, page browser.Page) (bool, error) {
	for _, label := range consentLabels {
		clicked, err := page.ClickButtonByLabel(ctx, label)
		if err != nil {
			o.logger.Debug("Consent probe failed.", zap.String("label", label), zap.Error(err))
			continue
		}
		if clicked {
			o.logger.Debug("Dismissed cookie consent.", zap.String("label", label))
			o.settleQuietly(ctx, page, consentSettle)
			break
		}
	}

	if o.exists(ctx, page, usernameSelector) {
		return true, nil
	}

	var clicked bool
	if err := page.Evaluate(ctx, consentFallbackScript, &clicked); err != nil {
		o.logger.Debug("Consent fallback script failed.", zap.Error(err))
	}
	if err := o.sleep(ctx, consentFallbackGap); err != nil {
		return false, err
	}
	return o.exists(ctx, page, usernameSelector), nil
}

// submitCode runs the verify step. keep reports that the page must go back to the registry.
func (o *Orchestrator) submitCode(ctx context.Context, page browser.Page, code string) (res Result, keep bool) {
	sel, ok := o.firstVisible(ctx, page, codeInputSelectors)
	if !ok {
		res := failed(msgCodeInputMiss)
		res.Screenshot = o.screenshot(ctx, page)
		return res, ctx.Err() == nil
	}
	if err := page.Fill(ctx, sel, code); err != nil {
		return failed(err.Error()), false
	}
	if err := o.sleep(ctx, codePause); err != nil {
		return failed(err.Error()), false
	}

	if btn, ok := o.firstVisible(ctx, page, codeSubmitSelectors); ok {
		if err := page.Click(ctx, btn); err != nil {
			return failed(err.Error()), false
		}
	} else {
		o.logger.Warn("No visible submit control for verification code.")
	}

	if err := o.settle(ctx, page); err != nil {
		return failed(err.Error()), false
	}
	return o.conclude(ctx, page)
}

// conclude classifies the current page and builds the result for it.
func (o *Orchestrator) conclude(ctx context.Context, page browser.Page) (Result, bool) {
	loc, err := page.Location(ctx)
	if err != nil {
		return failed(err.Error()), false
	}
	verdict := pagestate.Classify(ctx, loc, page)
	o.logger.Debug("Classified page.", zap.String("url", loc), zap.String("state", string(verdict.State)))

	switch {
	case verdict.State == pagestate.Success:
		return o.succeed(ctx, page), false
	case verdict.State.IsTwoFactor():
		return Result{State: verdict.State}, true
	case verdict.State == pagestate.Captcha:
		return Result{State: pagestate.Captcha, Error: msgCaptcha, Screenshot: o.screenshot(ctx, page)}, false
	default:
		res := failed(verdict.Reason)
		res.Screenshot = o.screenshot(ctx, page)
		return res, false
	}
}

// succeed extracts the session cookie and, if possible, the profile name.
func (o *Orchestrator) succeed(ctx context.Context, page browser.Page) Result {
	res := Result{Success: true, State: pagestate.Success}

	cred, ok, err := page.Cookie(ctx, o.cfg.CredentialCookie, o.cfg.CookieURL)
	switch {
	case err != nil:
		o.logger.Warn("Could not read session cookie.", zap.Error(err))
	case !ok:
		o.logger.Warn("Login succeeded but the session cookie is missing.", zap.String("cookie", o.cfg.CredentialCookie))
	default:
		res.Credential = cred
		res.ProfileName = o.profileName(ctx, cred)
	}
	return res
}

func (o *Orchestrator) profileName(ctx context.Context, credential string) string {
	if o.profiles == nil {
		return ""
	}
	ctx, cancel := context.WithTimeout(ctx, profileTimeout)
	defer cancel()
	name, err := o.profiles.ProfileName(ctx, credential)
	if err != nil {
		o.logger.Debug("Profile name lookup failed.", zap.Error(err))
		return ""
	}
	return name
}

// settle waits for the page to go quiet. Running out of time is fine; the classifier
// copes with half-loaded pages.
func (o *Orchestrator) settle(ctx context.Context, page browser.Page) error {
	err := page.WaitSettled(ctx, o.cfg.SettleTimeout)
	if errors.Is(err, browser.ErrSettleTimeout) {
		o.logger.Debug("Page did not settle in time, classifying anyway.")
		return o.sleep(ctx, settleGrace)
	}
	return err
}

func (o *Orchestrator) settleQuietly(ctx context.Context, page browser.Page, timeout time.Duration) {
	if err := page.WaitSettled(ctx, timeout); err != nil {
		o.logger.Debug("Page did not settle after consent click.", zap.Error(err))
	}
}

func (o *Orchestrator) exists(ctx context.Context, page browser.Page, selector string) bool {
	ok, err := page.Exists(ctx, selector)
	if err != nil {
		o.logger.Debug("Probe failed.", zap.String("selector", selector), zap.Error(err))
		return false
	}
	return ok
}

// firstVisible returns the first selector with a visible match.
func (o *Orchestrator) firstVisible(ctx context.Context, page browser.Page, selectors []string) (string, bool) {
	for _, sel := range selectors {
		ok, err := page.Visible(ctx, sel)
		if err != nil {
			o.logger.Debug("Probe failed.", zap.String("selector", sel), zap.Error(err))
			continue
		}
		if ok {
			return sel, true
		}
	}
	return "", false
}

// screenshot is best effort; a failure only costs the diagnostic.
func (o *Orchestrator) screenshot(ctx context.Context, page browser.Page) []byte {
	ctx, cancel := context.WithTimeout(browser.Detach(ctx), diagnosticsTimeout)
	defer cancel()
	shot, err := page.Screenshot(ctx)
	if err != nil {
		o.logger.Debug("Diagnostic screenshot failed.", zap.Error(err))
		return nil
	}
	return shot
}

func (o *Orchestrator) closePage(page browser.Page) {
	if err := page.Close(); err != nil {
		o.logger.Warn("Failed to close browser session.", zap.Error(err))
	}
}

func failed(reason string) Result {
	return Result{State: pagestate.Failed, Error: reason}
}
