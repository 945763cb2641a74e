package stealth

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/newsroom-scraper/internal/config"
)

//go:embed evasions.js
var evasionsTemplate string

const personaPlaceholder = "__PERSONA__"

// Persona defines the browser characteristics to emulate.
type Persona struct {
	UserAgent string
	Platform  string
	Languages []string
	Timezone  string
	Locale    string
	Width     int
	Height    int
}

// DefaultPersona is a desktop Chrome 120 on Windows, browsing from Poland in English.
var DefaultPersona = Persona{
	UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	Platform:  "Win32",
	Languages: []string{"en-US", "en", "pl"},
	Timezone:  "Europe/Warsaw",
	Locale:    "en-US",
	Width:     1920,
	Height:    1080,
}

// FromConfig builds a persona from browser configuration, keeping defaults for unset fields.
func FromConfig(cfg config.BrowserConfig) Persona {
	p := DefaultPersona
	if cfg.Persona.UserAgent != "" {
		p.UserAgent = cfg.Persona.UserAgent
	}
	if cfg.Persona.Platform != "" {
		p.Platform = cfg.Persona.Platform
	}
	if len(cfg.Persona.Languages) > 0 {
		p.Languages = append([]string(nil), cfg.Persona.Languages...)
	}
	if cfg.Persona.Timezone != "" {
		p.Timezone = cfg.Persona.Timezone
	}
	if cfg.Persona.Locale != "" {
		p.Locale = cfg.Persona.Locale
	}
	if cfg.Viewport.Width > 0 && cfg.Viewport.Height > 0 {
		p.Width, p.Height = cfg.Viewport.Width, cfg.Viewport.Height
	}
	return p
}

// AcceptLanguage renders the languages list as an Accept-Language header value,
// with descending quality weights after the first entry.
func (p Persona) AcceptLanguage() string {
	if len(p.Languages) == 0 {
		return p.Locale
	}
	parts := make([]string, 0, len(p.Languages))
	for i, lang := range p.Languages {
		if i == 0 {
			parts = append(parts, lang)
			continue
		}
		q := 1.0 - float64(i)*0.1
		if q < 0.1 {
			q = 0.1
		}
		parts = append(parts, fmt.Sprintf("%s;q=%.1f", lang, q))
	}
	return strings.Join(parts, ",")
}

// Script returns the init script with the persona's navigator values bound in.
func Script(p Persona) (string, error) {
	payload, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalToString(map[string]any{
		"languages": p.Languages,
		"platform":  p.Platform,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode persona: %w", err)
	}
	return strings.Replace(evasionsTemplate, personaPlaceholder, payload, 1), nil
}

// Apply returns the CDP actions that make a tab look like a user-operated desktop browser.
// They must run before the first navigation so the init script covers every document.
func Apply(p Persona, logger *zap.Logger) chromedp.Tasks {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Debug("Applying browser stealth persona",
		zap.String("userAgent", p.UserAgent),
		zap.String("timezone", p.Timezone),
		zap.String("locale", p.Locale),
	)

	return chromedp.Tasks{
		emulation.SetUserAgentOverride(p.UserAgent).
			WithAcceptLanguage(p.AcceptLanguage()).
			WithPlatform(p.Platform),
		emulation.SetDeviceMetricsOverride(int64(p.Width), int64(p.Height), 1, false),
		chromedp.ActionFunc(func(ctx context.Context) error {
			script, err := Script(p)
			if err != nil {
				return err
			}
			// Returns an identifier we never remove, so the pair result is dropped here.
			if _, err := page.AddScriptToEvaluateOnNewDocument(script).Do(ctx); err != nil {
				return fmt.Errorf("failed to inject evasions script: %w", err)
			}
			return nil
		}),
		emulation.SetTimezoneOverride(p.Timezone),
		emulation.SetLocaleOverride().WithLocale(p.Locale),
		network.SetExtraHTTPHeaders(network.Headers{
			"Accept-Language": p.AcceptLanguage(),
		}),
	}
}
