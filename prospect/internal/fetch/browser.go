package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/hazyhaar/prospect/horosafe"
)

// BrowserConfig configures the headless browser fetcher.
type BrowserConfig struct {
	// RemoteURL is the WebSocket URL of an external Chrome instance.
	// Empty = launch a local headless Chrome on first use.
	RemoteURL string

	// Timeout bounds navigation plus load. Default: 30s.
	Timeout time.Duration

	// Viewport size. Default: 1920x1080.
	Width, Height int

	UserAgent string
	Headers   map[string]string

	// URLValidator runs before navigation. Default: horosafe.ValidateURL.
	URLValidator func(string) error

	Logger *slog.Logger
}

func (c *BrowserConfig) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.Width <= 0 {
		c.Width = 1920
	}
	if c.Height <= 0 {
		c.Height = 1080
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.Headers == nil {
		c.Headers = map[string]string{
			"Accept":                    DefaultHeaders["Accept"],
			"Accept-Language":           DefaultHeaders["Accept-Language"],
			"Sec-Fetch-Dest":            "document",
			"Sec-Fetch-Mode":            "navigate",
			"Sec-Fetch-Site":            "none",
			"Sec-Fetch-User":            "?1",
			"Upgrade-Insecure-Requests": "1",
		}
	}
	if c.URLValidator == nil {
		c.URLValidator = horosafe.ValidateURL
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Browser fetches pages through a stealth Chrome tab. Chrome is started on
// the first Fetch and shared by later ones until Close.
type Browser struct {
	cfg     BrowserConfig
	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	closed  bool
}

// NewBrowser creates a Browser. No process is started until Fetch.
func NewBrowser(cfg BrowserConfig) *Browser {
	cfg.defaults()
	return &Browser{cfg: cfg}
}

// Fetch navigates a fresh stealth tab to url and returns the rendered HTML.
// A non-2xx document response is an error.
func (b *Browser) Fetch(ctx context.Context, url string) (*Result, error) {
	if err := b.cfg.URLValidator(url); err != nil {
		return nil, fmt.Errorf("URL blocked (SSRF): %w", err)
	}
	br, err := b.connect()
	if err != nil {
		return nil, err
	}

	page, err := stealth.Page(br)
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}
	defer page.Close()

	navCtx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()
	p := page.Context(navCtx)

	if err := p.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width: b.cfg.Width, Height: b.cfg.Height, DeviceScaleFactor: 1,
	}); err != nil {
		b.cfg.Logger.Warn("browser: set viewport failed", "error", err)
	}
	if err := p.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: b.cfg.UserAgent}); err != nil {
		b.cfg.Logger.Warn("browser: set user agent failed", "error", err)
	}
	dict := make([]string, 0, 2*len(b.cfg.Headers))
	for k, v := range b.cfg.Headers {
		dict = append(dict, k, v)
	}
	if _, err := p.SetExtraHeaders(dict); err != nil {
		b.cfg.Logger.Warn("browser: set headers failed", "error", err)
	}

	var status int
	var finalURL, contentType string
	waitDoc := p.EachEvent(func(e *proto.NetworkResponseReceived) bool {
		if e.Type != proto.NetworkResourceTypeDocument || e.Response == nil {
			return false
		}
		status = e.Response.Status
		finalURL = e.Response.URL
		contentType = e.Response.MIMEType
		return true
	})

	if err := p.Navigate(url); err != nil {
		return nil, fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	waitDoc()
	if status == 0 {
		return nil, fmt.Errorf("browser: no document response for %s", url)
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("http %d", status)
	}

	if err := p.WaitLoad(); err != nil {
		b.cfg.Logger.Warn("browser: wait load timeout", "url", url, "error", err)
	}

	html, err := p.HTML()
	if err != nil {
		return nil, fmt.Errorf("browser: get DOM: %w", err)
	}
	if finalURL == "" {
		finalURL = url
	}
	return &Result{
		URL:         finalURL,
		StatusCode:  status,
		ContentType: contentType,
		Body:        []byte(html),
	}, nil
}

// Close shuts down Chrome if it was started.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	var err error
	if b.browser != nil {
		err = b.browser.Close()
		b.browser = nil
	}
	if b.lnch != nil {
		b.lnch.Kill()
		b.lnch.Cleanup()
		b.lnch = nil
	}
	return err
}

func (b *Browser) connect() (*rod.Browser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, fmt.Errorf("browser: closed")
	}
	if b.browser != nil {
		return b.browser, nil
	}

	wsURL := b.cfg.RemoteURL
	if wsURL == "" {
		l := launcher.New().Headless(true).
			Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		b.lnch = l
		b.cfg.Logger.Info("browser: launched local chrome", "url", wsURL)
	} else {
		b.cfg.Logger.Info("browser: connecting to remote", "url", wsURL)
	}

	br := rod.New().ControlURL(wsURL)
	if err := br.Connect(); err != nil {
		if b.lnch != nil {
			b.lnch.Kill()
			b.lnch = nil
		}
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	b.browser = br
	return br, nil
}
