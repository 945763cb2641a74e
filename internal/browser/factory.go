// internal/browser/factory.go
package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/newsroom-scraper/internal/browser/stealth"
	"github.com/xkilldash9x/newsroom-scraper/internal/config"
)

// Factory produces fresh stealth browser sessions.
type Factory interface {
	Create(ctx context.Context) (Page, error)
}

// ChromeFactory launches one Chrome process per session through chromedp.
type ChromeFactory struct {
	cfg     config.BrowserConfig
	persona stealth.Persona
	logger  *zap.Logger

	// root outlives individual requests; sessions parked for a second factor must survive
	// the request that created them.
	root     context.Context
	shutdown context.CancelFunc
}

var _ Factory = (*ChromeFactory)(nil)

// NewFactory creates a factory. Sessions keep ctx's values but not its cancellation;
// Shutdown closes every session the factory created.
func NewFactory(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) *ChromeFactory {
	root, cancel := context.WithCancel(Detach(ctx))
	return &ChromeFactory{
		cfg:      cfg,
		persona:  stealth.FromConfig(cfg),
		logger:   logger.Named("browser"),
		root:     root,
		shutdown: cancel,
	}
}

// Create launches a browser, opens an isolated browser context with a single tab and
// applies the stealth persona before any navigation. ctx bounds the launch only.
func (f *ChromeFactory) Create(ctx context.Context) (Page, error) {
	if err := f.root.Err(); err != nil {
		return nil, &LaunchError{Err: fmt.Errorf("factory is shut down: %w", err)}
	}

	id := uuid.NewString()
	logger := f.logger.With(zap.String("browser_session", id))

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(f.root, AllocatorOptions(f.cfg, f.persona)...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(logger.Sugar().Debugf),
		chromedp.WithErrorf(logger.Sugar().Debugf),
	)
	release := func() {
		cancelBrowser()
		cancelAlloc()
	}

	// Abort the launch if the caller gives up, without tying the session to ctx afterwards.
	stopWatch := context.AfterFunc(ctx, release)
	if err := chromedp.Run(browserCtx); err != nil {
		stopWatch()
		release()
		if ctx.Err() != nil {
			return nil, &LaunchError{Err: ctx.Err()}
		}
		return nil, &LaunchError{Err: err}
	}

	tabCtx, cancelTab := chromedp.NewContext(browserCtx, chromedp.WithNewBrowserContext())
	p := &chromePage{
		ctx:               tabCtx,
		logger:            logger,
		navigationTimeout: f.cfg.NavigationTimeout,
		actionTimeout:     f.cfg.ActionTimeout,
		cancels:           []context.CancelFunc{cancelTab, cancelBrowser, cancelAlloc},
	}

	if err := chromedp.Run(tabCtx, stealth.Apply(f.persona, logger)); err != nil {
		stopWatch()
		_ = p.Close()
		if ctx.Err() != nil {
			return nil, &LaunchError{Err: ctx.Err()}
		}
		return nil, &LaunchError{Err: fmt.Errorf("failed to prepare stealth tab: %w", err)}
	}
	if !stopWatch() {
		// The caller canceled while the tab was being prepared; the session is already gone.
		_ = p.Close()
		return nil, &LaunchError{Err: context.Cause(ctx)}
	}

	logger.Debug("Browser session created.")
	return p, nil
}

// Shutdown closes every session created by this factory.
func (f *ChromeFactory) Shutdown() {
	f.shutdown()
}
