// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override (NEWSROOM_SERVER_LISTEN_ADDR, ...).
const EnvPrefix = "NEWSROOM"

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Server() ServerConfig
	Database() DatabaseConfig
	Browser() BrowserConfig
	LinkedIn() PlatformConfig
	Twitter() PlatformConfig
	Upstream() UpstreamConfig
	Scrape() ScrapeConfig

	SetServerListenAddr(addr string)
	SetBrowserHeadless(bool)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	ServerCfg   ServerConfig   `mapstructure:"server" yaml:"server"`
	DatabaseCfg DatabaseConfig `mapstructure:"database" yaml:"database"`
	BrowserCfg  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	LinkedInCfg PlatformConfig `mapstructure:"linkedin" yaml:"linkedin"`
	TwitterCfg  PlatformConfig `mapstructure:"twitter" yaml:"twitter"`
	UpstreamCfg UpstreamConfig `mapstructure:"upstream" yaml:"upstream"`
	ScrapeCfg   ScrapeConfig   `mapstructure:"scrape" yaml:"scrape"`
}

var _ Interface = (*Config)(nil)

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig     { return c.LoggerCfg }
func (c *Config) Server() ServerConfig     { return c.ServerCfg }
func (c *Config) Database() DatabaseConfig { return c.DatabaseCfg }
func (c *Config) Browser() BrowserConfig   { return c.BrowserCfg }
func (c *Config) LinkedIn() PlatformConfig { return c.LinkedInCfg }
func (c *Config) Twitter() PlatformConfig  { return c.TwitterCfg }
func (c *Config) Upstream() UpstreamConfig { return c.UpstreamCfg }
func (c *Config) Scrape() ScrapeConfig     { return c.ScrapeCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetServerListenAddr(addr string) { c.ServerCfg.ListenAddr = addr }
func (c *Config) SetBrowserHeadless(b bool)       { c.BrowserCfg.Headless = b }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color names for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	ListenAddr      string        `mapstructure:"listen_addr" yaml:"listen_addr"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

// DatabaseConfig holds the database connection details. An empty URL disables the fetch log.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// ViewportConfig is the fixed window size of every stealth session.
type ViewportConfig struct {
	Width  int `mapstructure:"width" yaml:"width"`
	Height int `mapstructure:"height" yaml:"height"`
}

// PersonaConfig overrides the browser fingerprint presented to the login target.
type PersonaConfig struct {
	UserAgent string   `mapstructure:"user_agent" yaml:"user_agent"`
	Platform  string   `mapstructure:"platform" yaml:"platform"`
	Locale    string   `mapstructure:"locale" yaml:"locale"`
	Timezone  string   `mapstructure:"timezone" yaml:"timezone"`
	Languages []string `mapstructure:"languages" yaml:"languages"`
}

// BrowserConfig holds settings for the headless browser sessions used by the login flow
// and the page scraper.
type BrowserConfig struct {
	Headless          bool           `mapstructure:"headless" yaml:"headless"`
	ExecPath          string         `mapstructure:"exec_path" yaml:"exec_path"`
	Args              []string       `mapstructure:"args" yaml:"args"`
	Viewport          ViewportConfig `mapstructure:"viewport" yaml:"viewport"`
	Persona           PersonaConfig  `mapstructure:"persona" yaml:"persona"`
	LoginURL          string         `mapstructure:"login_url" yaml:"login_url"`
	CookieURL         string         `mapstructure:"cookie_url" yaml:"cookie_url"`
	CredentialCookie  string         `mapstructure:"credential_cookie" yaml:"credential_cookie"`
	NavigationTimeout time.Duration  `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	SettleTimeout     time.Duration  `mapstructure:"settle_timeout" yaml:"settle_timeout"`
	ActionTimeout     time.Duration  `mapstructure:"action_timeout" yaml:"action_timeout"`
	MaxConcurrent     int            `mapstructure:"max_concurrent" yaml:"max_concurrent"`
	SessionTTL        time.Duration  `mapstructure:"session_ttl" yaml:"session_ttl"`
	MaxSessions       int            `mapstructure:"max_sessions" yaml:"max_sessions"`
}

// PacingConfig shapes the human-like delays around upstream fetches.
type PacingConfig struct {
	Enabled       bool          `mapstructure:"enabled" yaml:"enabled"`
	MinDelay      time.Duration `mapstructure:"min_delay" yaml:"min_delay"`
	MaxDelay      time.Duration `mapstructure:"max_delay" yaml:"max_delay"`
	BatchSize     int           `mapstructure:"batch_size" yaml:"batch_size"`
	BatchMinDelay time.Duration `mapstructure:"batch_min_delay" yaml:"batch_min_delay"`
	BatchMaxDelay time.Duration `mapstructure:"batch_max_delay" yaml:"batch_max_delay"`
}

// PlatformConfig configures one social platform connector.
type PlatformConfig struct {
	BaseURL     string        `mapstructure:"base_url" yaml:"base_url"`
	BearerToken string        `mapstructure:"bearer_token" yaml:"-"`
	SessionTTL  time.Duration `mapstructure:"session_ttl" yaml:"session_ttl"`
	MaxSessions int           `mapstructure:"max_sessions" yaml:"max_sessions"`
	Pacing      PacingConfig  `mapstructure:"pacing" yaml:"pacing"`
}

// UpstreamConfig tunes the HTTP client used against the platform APIs.
type UpstreamConfig struct {
	Timeout           time.Duration `mapstructure:"timeout" yaml:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	Burst             int           `mapstructure:"burst" yaml:"burst"`
	UserAgent         string        `mapstructure:"user_agent" yaml:"user_agent"`
}

// ScrapeConfig configures the page and article-listing scraper.
type ScrapeConfig struct {
	Timeout         time.Duration `mapstructure:"timeout" yaml:"timeout"`
	ArticlesTimeout time.Duration `mapstructure:"articles_timeout" yaml:"articles_timeout"`
	FallbackTimeout time.Duration `mapstructure:"fallback_timeout" yaml:"fallback_timeout"`
	SettleDelay     time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	MaxArticles     int           `mapstructure:"max_articles" yaml:"max_articles"`
	KnownPlatforms  []string      `mapstructure:"known_platforms" yaml:"known_platforms"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Defaults are static; a failure here is a programming error.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "newsroom-scraper")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Server --
	v.SetDefault("server.listen_addr", "0.0.0.0:8000")
	v.SetDefault("server.request_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000", "http://127.0.0.1:3000"})

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.viewport.width", 1920)
	v.SetDefault("browser.viewport.height", 1080)
	v.SetDefault("browser.persona.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("browser.persona.platform", "Win32")
	v.SetDefault("browser.persona.locale", "en-US")
	v.SetDefault("browser.persona.timezone", "Europe/Warsaw")
	v.SetDefault("browser.persona.languages", []string{"en-US", "en", "pl"})
	v.SetDefault("browser.login_url", "https://www.linkedin.com/login")
	v.SetDefault("browser.cookie_url", "https://www.linkedin.com")
	v.SetDefault("browser.credential_cookie", "li_at")
	v.SetDefault("browser.navigation_timeout", "15s")
	v.SetDefault("browser.settle_timeout", "15s")
	v.SetDefault("browser.action_timeout", "5s")
	v.SetDefault("browser.max_concurrent", 5)
	v.SetDefault("browser.session_ttl", "5m")
	v.SetDefault("browser.max_sessions", 5)

	// -- LinkedIn --
	v.SetDefault("linkedin.base_url", "https://www.linkedin.com")
	v.SetDefault("linkedin.session_ttl", "60m")
	v.SetDefault("linkedin.max_sessions", 100)
	setPacingDefaults(v, "linkedin", 10)

	// -- Twitter --
	v.SetDefault("twitter.base_url", "https://x.com")
	v.SetDefault("twitter.session_ttl", "90m")
	v.SetDefault("twitter.max_sessions", 100)
	setPacingDefaults(v, "twitter", 20)

	// -- Upstream --
	v.SetDefault("upstream.timeout", "30s")
	v.SetDefault("upstream.requests_per_second", 2.0)
	v.SetDefault("upstream.burst", 2)
	v.SetDefault("upstream.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")

	// -- Scrape --
	v.SetDefault("scrape.timeout", "30s")
	v.SetDefault("scrape.articles_timeout", "60s")
	v.SetDefault("scrape.fallback_timeout", "30s")
	v.SetDefault("scrape.settle_delay", "1s")
	v.SetDefault("scrape.max_articles", 20)
	v.SetDefault("scrape.known_platforms", []string{"substack.com", "medium.com", "ghost.io"})
}

func setPacingDefaults(v *viper.Viper, prefix string, batch int) {
	v.SetDefault(prefix+".pacing.enabled", true)
	v.SetDefault(prefix+".pacing.min_delay", "1s")
	v.SetDefault(prefix+".pacing.max_delay", "3s")
	v.SetDefault(prefix+".pacing.batch_size", batch)
	v.SetDefault(prefix+".pacing.batch_min_delay", "500ms")
	v.SetDefault(prefix+".pacing.batch_max_delay", "1500ms")
}

// Load reads the optional config file and environment overrides into v and returns the
// validated configuration. An empty path searches the working directory for config.yaml.
func Load(v *viper.Viper, path string) (*Config, error) {
	SetDefaults(v)

	if path != "" {
		expanded, err := homedir.Expand(path)
		if err != nil {
			return nil, fmt.Errorf("failed to expand config path %q: %w", path, err)
		}
		v.SetConfigFile(expanded)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file; defaults and env vars apply.
	}
	return NewConfigFromViper(v)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Secrets are only ever read from the environment.
	_ = v.BindEnv("database.url", EnvPrefix+"_DATABASE_URL")
	_ = v.BindEnv("twitter.bearer_token", EnvPrefix+"_TWITTER_BEARER_TOKEN")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.ServerCfg.ListenAddr == "" {
		return fmt.Errorf("server.listen_addr is required")
	}
	if err := c.BrowserCfg.Validate(); err != nil {
		return fmt.Errorf("browser configuration invalid: %w", err)
	}
	if err := c.LinkedInCfg.Validate(); err != nil {
		return fmt.Errorf("linkedin configuration invalid: %w", err)
	}
	if err := c.TwitterCfg.Validate(); err != nil {
		return fmt.Errorf("twitter configuration invalid: %w", err)
	}
	if c.UpstreamCfg.RequestsPerSecond < 0 {
		return fmt.Errorf("upstream.requests_per_second must not be negative")
	}
	return nil
}

// Validate checks the browser configuration.
func (b *BrowserConfig) Validate() error {
	if b.MaxConcurrent <= 0 {
		return fmt.Errorf("max_concurrent must be a positive integer")
	}
	if b.MaxSessions <= 0 {
		return fmt.Errorf("max_sessions must be a positive integer")
	}
	if b.SessionTTL <= 0 {
		return fmt.Errorf("session_ttl must be a positive duration")
	}
	if b.LoginURL == "" {
		return fmt.Errorf("login_url is required")
	}
	return nil
}

// Validate checks a platform configuration.
func (p *PlatformConfig) Validate() error {
	if p.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	if p.MaxSessions <= 0 {
		return fmt.Errorf("max_sessions must be a positive integer")
	}
	if p.SessionTTL <= 0 {
		return fmt.Errorf("session_ttl must be a positive duration")
	}
	return p.Pacing.Validate()
}

// Validate checks the pacing configuration.
func (p *PacingConfig) Validate() error {
	if !p.Enabled {
		return nil
	}
	if p.MinDelay < 0 || p.MaxDelay < p.MinDelay {
		return fmt.Errorf("pacing delays must satisfy 0 <= min_delay <= max_delay")
	}
	if p.BatchSize < 0 {
		return fmt.Errorf("pacing.batch_size must not be negative")
	}
	if p.BatchMinDelay < 0 || p.BatchMaxDelay < p.BatchMinDelay {
		return fmt.Errorf("pacing batch delays must satisfy 0 <= batch_min_delay <= batch_max_delay")
	}
	return nil
}
