package linkedin

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/newsroom-scraper/api/schemas"
	"github.com/xkilldash9x/newsroom-scraper/internal/config"
	"github.com/xkilldash9x/newsroom-scraper/internal/platform"
	"github.com/xkilldash9x/newsroom-scraper/internal/platform/upstream"
	"github.com/xkilldash9x/newsroom-scraper/internal/registry"
)

const (
	// DefaultMaxPosts applies when a fetch does not ask for a count.
	DefaultMaxPosts  = 30
	minContentLength = 10
	fallbackName     = "LinkedIn User"
)

// AuthResult is returned by a successful Authenticate.
type AuthResult struct {
	SessionID   string
	ProfileName string
}

// FetchOptions narrows a feed fetch.
type FetchOptions struct {
	MaxPosts       int
	Hashtags       []string
	IncludeReposts bool
}

// Option customizes a Service.
type Option func(*Service)

// WithPacer replaces the pacing policy built from config.
func WithPacer(p platform.Pacer) Option { return func(s *Service) { s.pacer = p } }

// WithClock sets the clock of the session store.
func WithClock(c registry.Clock) Option { return func(s *Service) { s.clock = c } }

// Service keeps authenticated LinkedIn clients and answers queries against them.
type Service struct {
	sessions *platform.Sessions[*Client]
	pacer    platform.Pacer
	clock    registry.Clock
	cfg      config.PlatformConfig
	upstream config.UpstreamConfig
	logger   *zap.Logger
}

// NewService builds the LinkedIn service.
func NewService(cfg config.PlatformConfig, up config.UpstreamConfig, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		cfg:      cfg,
		upstream: up,
		logger:   logger.Named("linkedin"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.pacer == nil {
		s.pacer = platform.NewPacer(cfg.Pacing, nil)
	}
	s.sessions = platform.NewSessions[*Client](cfg, s.clock, s.logger)
	return s
}

func (s *Service) dial(ctx context.Context, creds Credentials) (*Client, error) {
	return Dial(ctx, upstream.Options{
		BaseURL: s.cfg.BaseURL,
		Config:  s.upstream,
		Logger:  s.logger,
	}, creds)
}

// Authenticate signs in and stores the client under a new session id.
func (s *Service) Authenticate(ctx context.Context, creds Credentials) (AuthResult, error) {
	client, err := s.dial(ctx, creds)
	if err != nil {
		s.logger.Warn("LinkedIn authentication failed.", zap.Error(err))
		return AuthResult{}, err
	}

	name := ""
	profile, err := client.Me(ctx)
	switch {
	case err == nil:
		name = profile.Name()
	case creds.LiAt != "" && errors.Is(err, platform.ErrUnauthorized):
		// A cookie login is only proven by the first authenticated call.
		_ = client.Close()
		return AuthResult{}, &platform.AuthError{Platform: "linkedin", Reason: "invalid or expired li_at cookie", Err: err}
	default:
		s.logger.Debug("Profile lookup failed after login.", zap.Error(err))
	}
	if name == "" {
		name = creds.Email
	}
	if name == "" {
		name = fallbackName
	}

	id := s.sessions.Open(client)
	s.logger.Info("LinkedIn session opened.", zap.String("session_id", id))
	return AuthResult{SessionID: id, ProfileName: name}, nil
}

// Fetch returns the filtered feed of a session.
func (s *Service) Fetch(ctx context.Context, sessionID string, opts FetchOptions) ([]schemas.ContentRecord, error) {
	client, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	limit := opts.MaxPosts
	if limit <= 0 {
		limit = DefaultMaxPosts
	}

	if err := s.pacer.Before(ctx); err != nil {
		return nil, err
	}
	raw, err := client.Feed(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("fetching LinkedIn feed: %w", err)
	}

	items := make([]platform.Item, 0, len(raw))
	for _, p := range raw {
		items = append(items, ParseUpdate(p))
	}
	records, err := platform.Collect(ctx, items, platform.Criteria{
		IncludeReposts: opts.IncludeReposts,
		IncludeReplies: true,
		Hashtags:       opts.Hashtags,
		MinLength:      minContentLength,
	}, s.pacer)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("LinkedIn feed fetched.", zap.Int("raw", len(raw)), zap.Int("kept", len(records)))
	return records, nil
}

// Test checks that the session still works and returns the profile name.
func (s *Service) Test(ctx context.Context, sessionID string) (string, error) {
	client, err := s.sessions.Get(sessionID)
	if err != nil {
		return "", err
	}
	profile, err := client.Me(ctx)
	if err != nil {
		return "", err
	}
	if name := profile.Name(); name != "" {
		return name, nil
	}
	return fallbackName, nil
}

// Disconnect forgets the session. Unknown ids are fine.
func (s *Service) Disconnect(sessionID string) {
	s.sessions.Close(sessionID)
}

// ProfileName resolves the member behind a freshly issued li_at cookie without keeping a
// session around.
func (s *Service) ProfileName(ctx context.Context, liAt string) (string, error) {
	client, err := s.dial(ctx, Credentials{LiAt: liAt})
	if err != nil {
		return "", err
	}
	defer client.Close()
	profile, err := client.Me(ctx)
	if err != nil {
		return "", err
	}
	return profile.Name(), nil
}

// Shutdown closes every session.
func (s *Service) Shutdown() { s.sessions.Shutdown() }
