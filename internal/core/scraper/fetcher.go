package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"go.uber.org/zap"
)

const (
	userAgent      = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	acceptLanguage = "en-US,en;q=0.9"
	acceptHeader   = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"

	maxNavAttempts = 3
	navRetryWait   = 2 * time.Second
)

// Fetcher returns the rendered HTML of a page.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (string, error)
	Close() error
}

// blockedResources never need to load for text extraction.
var blockedResources = map[proto.NetworkResourceType]bool{
	proto.NetworkResourceTypeImage:      true,
	proto.NetworkResourceTypeStylesheet: true,
	proto.NetworkResourceTypeFont:       true,
	proto.NetworkResourceTypeMedia:      true,
	proto.NetworkResourceTypeOther:      true,
}

// transientNavErrors are browser-side races worth another navigation attempt.
var transientNavErrors = []string{
	"detached frame",
	"execution context was destroyed",
	"target closed",
	"lifecyclewatcher disposed",
	"protocol error",
}

func isTransientNavError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, p := range transientNavErrors {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// withNavRetry runs fn up to attempts times, waiting between tries, as long
// as the failure is transient. Any other error is returned at once.
func withNavRetry(ctx context.Context, attempts int, wait time.Duration, logger *zap.Logger, fn func() error) error {
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if !isTransientNavError(err) || attempt == attempts {
			return err
		}
		logger.Warn("navigation failed, retrying",
			zap.Int("attempt", attempt),
			zap.Int("attempts_left", attempts-attempt),
			zap.Error(err))
		if err := sleepCtx(ctx, wait); err != nil {
			return err
		}
	}
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
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

type RodConfig struct {
	// ControlURL connects to an existing browser; empty launches a local one.
	ControlURL  string
	Headless    bool
	NavTimeout  time.Duration
	SettleDelay time.Duration
}

// RodFetcher renders pages in a headless Chrome with stealth patches and
// heavy resources blocked. Each fetch uses its own tab.
type RodFetcher struct {
	browser *rod.Browser
	lnch    *launcher.Launcher
	cfg     RodConfig
	logger  *zap.Logger
}

func NewRodFetcher(cfg RodConfig, logger *zap.Logger) (*RodFetcher, error) {
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 45 * time.Second
	}

	wsURL := cfg.ControlURL
	var lnch *launcher.Launcher
	if wsURL == "" {
		lnch = launcher.New().
			Headless(cfg.Headless).
			NoSandbox(true).
			Set("disable-dev-shm-usage").
			Set("disable-gpu").
			Set("mute-audio").
			Set("disable-blink-features", "AutomationControlled")
		u, err := lnch.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		logger.Info("launched local chrome", zap.String("url", wsURL))
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		if lnch != nil {
			lnch.Cleanup()
		}
		return nil, fmt.Errorf("browser: connect: %w", err)
	}

	return &RodFetcher{browser: b, lnch: lnch, cfg: cfg, logger: logger}, nil
}

// Fetch opens a stealth tab, navigates with retries and returns page.HTML().
func (f *RodFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	page, err := stealth.Page(f.browser)
	if err != nil {
		return "", fmt.Errorf("browser: create tab: %w", err)
	}
	defer page.Close()

	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      userAgent,
		AcceptLanguage: acceptLanguage,
	}); err != nil {
		f.logger.Warn("set user agent failed", zap.Error(err))
	}
	if _, err := page.SetExtraHeaders([]string{
		"Accept", acceptHeader,
		"Upgrade-Insecure-Requests", "1",
		"Referer", "https://www.google.com/",
	}); err != nil {
		f.logger.Warn("set extra headers failed", zap.Error(err))
	}

	router := page.HijackRequests()
	router.MustAdd("*", func(h *rod.Hijack) {
		if blockedResources[h.Request.Type()] {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})
	go router.Run()
	defer func() { _ = router.Stop() }()

	err = withNavRetry(ctx, maxNavAttempts, navRetryWait, f.logger, func() error {
		navCtx, cancel := context.WithTimeout(ctx, f.cfg.NavTimeout)
		defer cancel()
		p := page.Context(navCtx)
		if err := p.Navigate(pageURL); err != nil {
			return err
		}
		if err := p.WaitLoad(); err != nil {
			if isTransientNavError(err) {
				return err
			}
			f.logger.Warn("wait load failed", zap.String("url", pageURL), zap.Error(err))
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("navigate %s: %w", pageURL, err)
	}

	// let client-side rendering settle
	if err := sleepCtx(ctx, f.cfg.SettleDelay); err != nil {
		return "", err
	}

	var out string
	err = withNavRetry(ctx, 2, navRetryWait, f.logger, func() error {
		var herr error
		out, herr = page.Context(ctx).HTML()
		return herr
	})
	if err != nil {
		return "", fmt.Errorf("read html %s: %w", pageURL, err)
	}
	return out, nil
}

func (f *RodFetcher) Close() error {
	var err error
	if f.browser != nil {
		err = f.browser.Close()
	}
	if f.lnch != nil {
		f.lnch.Cleanup()
	}
	return err
}

// HTTPFetcher fetches raw HTML without rendering. Used for static sites and
// environments without Chrome.
type HTTPFetcher struct {
	client   *http.Client
	maxBytes int64
}

func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPFetcher{
		client:   &http.Client{Timeout: timeout},
		maxBytes: 10 << 20,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("Accept-Language", acceptLanguage)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("GET %s: %s", pageURL, resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(body), nil
}

func (f *HTTPFetcher) Close() error { return nil }
