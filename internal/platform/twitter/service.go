package twitter

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
	// DefaultMaxTweets applies when a fetch does not ask for a count.
	DefaultMaxTweets = 50
	minContentLength = 5
	fallbackName     = "X User"
)

// AuthResult is returned by a successful Authenticate.
type AuthResult struct {
	SessionID string
	Username  string
}

// FetchOptions narrows a timeline fetch.
type FetchOptions struct {
	Timeline        Timeline
	MaxTweets       int
	IncludeRetweets bool
	IncludeReplies  bool
	Hashtags        []string
	// ExpandThreads is accepted for compatibility. Threads are returned as separate tweets.
	ExpandThreads bool
}

// Option customizes a Service.
type Option func(*Service)

// WithPacer replaces the pacing policy built from config.
func WithPacer(p platform.Pacer) Option { return func(s *Service) { s.pacer = p } }

// WithClock sets the clock of the session store.
func WithClock(c registry.Clock) Option { return func(s *Service) { s.clock = c } }

// Service keeps authenticated X clients and answers timeline queries.
type Service struct {
	sessions *platform.Sessions[*Client]
	pacer    platform.Pacer
	clock    registry.Clock
	cfg      config.PlatformConfig
	upstream config.UpstreamConfig
	logger   *zap.Logger
}

// NewService builds the X/Twitter service.
func NewService(cfg config.PlatformConfig, up config.UpstreamConfig, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		cfg:      cfg,
		upstream: up,
		logger:   logger.Named("twitter"),
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

// Authenticate signs in and stores the client under a new session id.
func (s *Service) Authenticate(ctx context.Context, creds Credentials) (AuthResult, error) {
	client, err := Dial(ctx, upstream.Options{
		BaseURL: s.cfg.BaseURL,
		Config:  s.upstream,
		Logger:  s.logger,
	}, s.cfg.BearerToken, creds)
	if err != nil {
		s.logger.Warn("X authentication failed.", zap.Error(err))
		return AuthResult{}, err
	}

	name, err := client.ScreenName(ctx)
	switch {
	case err == nil:
	case creds.AuthToken != "" && errors.Is(err, platform.ErrUnauthorized):
		_ = client.Close()
		return AuthResult{}, &platform.AuthError{Platform: "twitter", Reason: "invalid or expired cookies, check auth_token and ct0", Err: err}
	default:
		s.logger.Debug("Account lookup failed after login.", zap.Error(err))
	}
	if name == "" {
		name = creds.Username
	}
	if name == "" {
		name = fallbackName
	}

	id := s.sessions.Open(client)
	s.logger.Info("X session opened.", zap.String("session_id", id))
	return AuthResult{SessionID: id, Username: name}, nil
}

// Fetch returns the filtered home timeline of a session.
func (s *Service) Fetch(ctx context.Context, sessionID string, opts FetchOptions) ([]schemas.ContentRecord, error) {
	client, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	limit := opts.MaxTweets
	if limit <= 0 {
		limit = DefaultMaxTweets
	}
	kind := opts.Timeline
	if kind == "" {
		kind = Following
	}

	if err := s.pacer.Before(ctx); err != nil {
		return nil, err
	}
	raw, err := client.Timeline(ctx, kind, limit)
	if err != nil {
		return nil, fmt.Errorf("fetching %s timeline: %w", kind, err)
	}

	items := make([]platform.Item, 0, len(raw))
	for _, p := range raw {
		items = append(items, ParseTweet(p))
	}
	records, err := platform.Collect(ctx, items, platform.Criteria{
		IncludeReposts: opts.IncludeRetweets,
		IncludeReplies: opts.IncludeReplies,
		Hashtags:       opts.Hashtags,
		MinLength:      minContentLength,
	}, s.pacer)
	if err != nil {
		return nil, err
	}
	if opts.ExpandThreads {
		s.logger.Debug("Thread expansion requested; tweets are returned individually.")
	}
	return records, nil
}

// Test checks that the session still works and returns the account handle.
func (s *Service) Test(ctx context.Context, sessionID string) (string, error) {
	client, err := s.sessions.Get(sessionID)
	if err != nil {
		return "", err
	}
	name, err := client.ScreenName(ctx)
	if err != nil {
		return "", err
	}
	if name == "" {
		return fallbackName, nil
	}
	return name, nil
}

// Disconnect forgets the session. Unknown ids are fine.
func (s *Service) Disconnect(sessionID string) {
	s.sessions.Close(sessionID)
}

// Shutdown closes every session.
func (s *Service) Shutdown() { s.sessions.Shutdown() }
