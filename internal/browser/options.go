// internal/browser/options.go
package browser

import (
	"fmt"
	"strings"

	"github.com/chromedp/chromedp"

	"github.com/xkilldash9x/newsroom-scraper/internal/browser/stealth"
	"github.com/xkilldash9x/newsroom-scraper/internal/config"
)

// launchFlags returns the command line switches applied on top of chromedp's defaults.
// true renders a bare switch and false removes one of the defaults.
func launchFlags(cfg config.BrowserConfig, persona stealth.Persona) map[string]any {
	flags := map[string]any{
		"no-sandbox":                     true,
		"disable-gpu":                    true,
		"no-first-run":                   true,
		"no-default-browser-check":       true,
		"disable-dev-shm-usage":          true,
		"disable-blink-features":         "AutomationControlled",
		"window-size":                    fmt.Sprintf("%d,%d", persona.Width, persona.Height),
		"user-agent":                     persona.UserAgent,
		"lang":                           persona.Locale,
		"enable-automation":              false,
		"disable-features":               "Translate,MediaRouter",
		"disable-background-networking":  true,
		"disable-renderer-backgrounding": true,
	}
	if !cfg.Headless {
		flags["headless"] = false
	}

	for _, arg := range cfg.Args {
		arg = strings.TrimLeft(arg, "-")
		if arg == "" {
			continue
		}
		if name, value, ok := strings.Cut(arg, "="); ok {
			flags[name] = value
		} else {
			flags[arg] = true
		}
	}
	return flags
}

// AllocatorOptions builds the exec allocator options for one stealth session.
func AllocatorOptions(cfg config.BrowserConfig, persona stealth.Persona) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption(nil), chromedp.DefaultExecAllocatorOptions[:]...)
	for name, value := range launchFlags(cfg, persona) {
		opts = append(opts, chromedp.Flag(name, value))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	return opts
}
