// Package server exposes the login flow, the platform services and the scraper over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/xkilldash9x/newsroom-scraper/api/schemas"
	"github.com/xkilldash9x/newsroom-scraper/internal/config"
	"github.com/xkilldash9x/newsroom-scraper/internal/login"
	"github.com/xkilldash9x/newsroom-scraper/internal/platform/linkedin"
	"github.com/xkilldash9x/newsroom-scraper/internal/platform/twitter"
)

// LoginFlow is the interactive browser login.
type LoginFlow interface {
	Start(ctx context.Context, email, password string) (login.Result, error)
	Verify(ctx context.Context, sessionID, code string) (login.Result, error)
	Close(sessionID string)
}

// LinkedIn is the LinkedIn query service.
type LinkedIn interface {
	Authenticate(ctx context.Context, creds linkedin.Credentials) (linkedin.AuthResult, error)
	Fetch(ctx context.Context, sessionID string, opts linkedin.FetchOptions) ([]schemas.ContentRecord, error)
	Test(ctx context.Context, sessionID string) (string, error)
	Disconnect(sessionID string)
}

// Twitter is the X/Twitter query service.
type Twitter interface {
	Authenticate(ctx context.Context, creds twitter.Credentials) (twitter.AuthResult, error)
	Fetch(ctx context.Context, sessionID string, opts twitter.FetchOptions) ([]schemas.ContentRecord, error)
	Test(ctx context.Context, sessionID string) (string, error)
	Disconnect(sessionID string)
}

// Scraper renders pages and article listings.
type Scraper interface {
	Scrape(ctx context.Context, url, waitFor string, timeout time.Duration) (schemas.ScrapeResponse, error)
	Articles(ctx context.Context, url string, limit int) (schemas.ArticlesResponse, error)
}

// FetchLog stores fetch counts. It is optional.
type FetchLog interface {
	Record(ctx context.Context, source string, count int) (schemas.FetchLogEntry, error)
	List(ctx context.Context, limit int) ([]schemas.FetchLogEntry, error)
}

// Deps are the collaborators behind the routes. FetchLog may be nil.
type Deps struct {
	Login    LoginFlow
	LinkedIn LinkedIn
	Twitter  Twitter
	Scraper  Scraper
	FetchLog FetchLog
}

// Server is the HTTP front of the service.
type Server struct {
	deps    Deps
	cfg     config.ServerConfig
	service string
	version string
	now     func() time.Time
	logger  *zap.Logger
	router  chi.Router
}

// New builds the router. service and version are reported by /health.
func New(cfg config.ServerConfig, deps Deps, service, version string, logger *zap.Logger) *Server {
	s := &Server{
		deps:    deps,
		cfg:     cfg,
		service: service,
		version: version,
		now:     time.Now,
		logger:  logger.Named("server"),
	}
	s.router = s.routes()
	return s
}

// ServeHTTP makes the Server usable directly as a handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	if s.cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(s.cfg.RequestTimeout))
	}
	r.Use(cors(s.cfg.AllowedOrigins))

	r.Get("/health", s.handleHealth)

	r.Route("/browser-login", func(r chi.Router) {
		r.Post("/start", s.handleLoginStart)
		r.Post("/verify", s.handleLoginVerify)
		r.Post("/close", s.handleLoginClose)
	})

	r.Route("/linkedin", func(r chi.Router) {
		r.Post("/auth", s.handleLinkedInAuth)
		r.Post("/posts", s.handleLinkedInFetch)
		r.Post("/fetch", s.handleLinkedInFetch)
		r.Post("/test", s.handleLinkedInTest)
		r.Post("/disconnect", s.handleLinkedInDisconnect)
	})

	r.Route("/twitter", func(r chi.Router) {
		r.Post("/auth", s.handleTwitterAuth)
		r.Post("/timeline", s.handleTwitterFetch)
		r.Post("/fetch", s.handleTwitterFetch)
		r.Post("/test", s.handleTwitterTest)
		r.Post("/disconnect", s.handleTwitterDisconnect)
	})

	r.Post("/scrape", s.handleScrape)
	r.Post("/scrape/articles", s.handleArticles)

	r.Get("/fetch-log", s.handleFetchLogList)
	r.Post("/fetch-log", s.handleFetchLogRecord)

	return r
}

// ListenAndServe serves on cfg.ListenAddr until ctx is canceled, then drains in-flight
// requests for at most cfg.ShutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server starting.", zap.String("address", s.cfg.ListenAddr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server.")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("Request served.",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// cors allows the listed origins, or any origin when the list is empty or contains "*".
func cors(allowed []string) func(http.Handler) http.Handler {
	anyOrigin := len(allowed) == 0
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			anyOrigin = true
		}
		set[o] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (anyOrigin || set[origin]) {
				if anyOrigin {
					w.Header().Set("Access-Control-Allow-Origin", "*")
				} else {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Add("Vary", "Origin")
				}
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			}
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, schemas.HealthResponse{
		Status:    "ok",
		Service:   s.service,
		Version:   s.version,
		Timestamp: s.now().UTC(),
	})
}
