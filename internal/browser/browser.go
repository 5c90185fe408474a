package browser

import (
	"context"
	"fmt"
	"time"

	"sjsage522/asinharvester/config"
	"sjsage522/asinharvester/internal/harvest"
	"sjsage522/asinharvester/logger"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"
)

// Driver names
const (
	DriverRod    = "rod"
	DriverStatic = "static"
)

// Session is one opened result page
type Session interface {
	harvest.Driver
	// URL returns the address of the currently loaded document
	URL() string
	Close() error
}

// Navigator opens result pages
type Navigator interface {
	Open(ctx context.Context, url string) (Session, error)
	// Selectors returns the page selectors suited to this navigator
	Selectors() harvest.Selectors
	Close() error
}

// Options configures the headless browser
type Options struct {
	Headless bool
	// ControlURL connects to an already running browser instead of launching one
	ControlURL        string
	Proxy             string
	NavigationTimeout time.Duration
}

// Browser wraps a rod.Browser instance
type Browser struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	opts     Options
	log      *logger.Logger
}

// NewNavigator creates the navigator selected by cfg.Driver
func NewNavigator(cfg *config.Config) (Navigator, error) {
	switch cfg.Driver {
	case config.DriverBrowser:
		return Launch(Options{
			Headless:          cfg.Headless,
			ControlURL:        cfg.BrowserControlURL,
			Proxy:             cfg.BrowserProxy,
			NavigationTimeout: cfg.NavigationTimeout,
		})
	case config.DriverHTTP:
		return NewStatic(nil), nil
	default:
		return nil, fmt.Errorf("unknown page driver %q", cfg.Driver)
	}
}

// Launch starts (or connects to) a browser
func Launch(opts Options) (*Browser, error) {
	log := logger.ForBrowser(DriverRod)
	b := &Browser{opts: opts, log: log}

	controlURL := opts.ControlURL
	if controlURL == "" {
		l := launcher.New().
			Headless(opts.Headless).
			NoSandbox(true).
			Set("disable-blink-features", "AutomationControlled")
		if opts.Proxy != "" {
			l = l.Proxy(opts.Proxy)
		}

		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch browser: %w", err)
		}
		b.launcher = l
		controlURL = u
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		if b.launcher != nil {
			b.launcher.Kill()
		}
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	b.browser = browser

	log.Info().
		Bool("headless", opts.Headless).
		Bool("remote", opts.ControlURL != "").
		Msg("Browser started")
	return b, nil
}

// Open creates a stealth tab and navigates it to url
func (b *Browser) Open(ctx context.Context, url string) (Session, error) {
	page, err := stealth.Page(b.browser)
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}

	p := &Page{page: page, sel: harvest.DefaultSelectors(), log: b.log.WithField("url", url)}
	if err := p.Navigate(ctx, url, b.opts.NavigationTimeout); err != nil {
		_ = page.Close()
		return nil, err
	}
	return p, nil
}

// Selectors implements Navigator
func (b *Browser) Selectors() harvest.Selectors {
	return harvest.DefaultSelectors()
}

// Close shuts down the browser and cleans up resources
func (b *Browser) Close() error {
	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			return err
		}
	}
	if b.launcher != nil {
		b.launcher.Kill()
	}
	return nil
}
