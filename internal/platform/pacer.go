package platform

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/xkilldash9x/newsroom-scraper/internal/config"
)

// Pacer spaces out upstream calls the way a person browsing would.
type Pacer interface {
	// Before pauses ahead of an upstream fetch.
	Before(ctx context.Context) error
	// Batch pauses when kept has just completed a batch.
	Batch(ctx context.Context, kept int) error
}

// Sleeper pauses for d unless ctx ends first.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the real Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// NoPacing never pauses.
type NoPacing struct{}

func (NoPacing) Before(context.Context) error     { return nil }
func (NoPacing) Batch(context.Context, int) error { return nil }

// RandomPacer draws uniform delays from the configured ranges.
type RandomPacer struct {
	mu    sync.Mutex
	rng   *rand.Rand
	cfg   config.PacingConfig
	sleep Sleeper
}

// NewPacer builds a pacer from cfg. A disabled config yields NoPacing. A nil sleep uses Sleep.
func NewPacer(cfg config.PacingConfig, sleep Sleeper) Pacer {
	if !cfg.Enabled {
		return NoPacing{}
	}
	if sleep == nil {
		sleep = Sleep
	}
	return &RandomPacer{
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
		cfg:   cfg,
		sleep: sleep,
	}
}

func (p *RandomPacer) Before(ctx context.Context) error {
	return p.sleep(ctx, p.uniform(p.cfg.MinDelay, p.cfg.MaxDelay))
}

func (p *RandomPacer) Batch(ctx context.Context, kept int) error {
	if p.cfg.BatchSize <= 0 || kept == 0 || kept%p.cfg.BatchSize != 0 {
		return nil
	}
	return p.sleep(ctx, p.uniform(p.cfg.BatchMinDelay, p.cfg.BatchMaxDelay))
}

func (p *RandomPacer) uniform(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return lo + time.Duration(p.rng.Int63n(int64(hi-lo)+1))
}
