// Package browser - chromedp.go provides the headless-Chrome implementation
// of the Browser capability. Requires Chrome/Chromium to be installed on the
// system.
package browser

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/chromedp/chromedp"
)

// Config holds session-level options for the chromedp adapter.
type Config struct {
	Headless    bool
	NavTimeout  time.Duration // per-navigation timeout
	SlowestKey  time.Duration // upper bound for randomized inter-key delay
	FastestKey  time.Duration // lower bound for randomized inter-key delay
	ClickDelay  time.Duration // upper bound for randomized pre-click delay
	SettleDelay time.Duration // post-navigation settle time
}

// DefaultConfig returns the adapter defaults. Typing and click delays are
// randomized per keystroke/click to avoid bot-detection heuristics.
func DefaultConfig() Config {
	return Config{
		Headless:    true,
		NavTimeout:  DefaultNavTimeout,
		SlowestKey:  180 * time.Millisecond,
		FastestKey:  40 * time.Millisecond,
		ClickDelay:  400 * time.Millisecond,
		SettleDelay: 2 * time.Second,
	}
}

// Session is a chromedp-backed Browser. One Session drives one page; create
// one Session per application attempt.
type Session struct {
	ctx    context.Context
	cancel context.CancelFunc
	cfg    Config
}

var _ Browser = (*Session)(nil)

// NewSession launches a browser and returns a ready Session.
func NewSession(ctx context.Context, cfg Config) (*Session, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", cfg.Headless),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("disable-blink-features", "AutomationControlled"),
		)...,
	)

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Start the browser process eagerly so launch failures surface here
	// rather than on the first navigation.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	cancel := func() {
		browserCancel()
		allocCancel()
	}

	return &Session{ctx: browserCtx, cancel: cancel, cfg: cfg}, nil
}

// Navigate loads the URL, waits for body readiness, and pauses for the
// configured settle delay so JavaScript-rendered content appears.
func (s *Session) Navigate(ctx context.Context, url string) error {
	navCtx, cancel := s.withTimeout(ctx, s.cfg.NavTimeout)
	defer cancel()

	err := chromedp.Run(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		chromedp.Sleep(s.cfg.SettleDelay),
	)
	if err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

// WaitForSelector blocks until the selector is visible or the timeout expires.
func (s *Session) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	waitCtx, cancel := s.withTimeout(ctx, timeout)
	defer cancel()

	if err := chromedp.Run(waitCtx, chromedp.WaitVisible(selector)); err != nil {
		return &ElementNotFoundError{Selector: selector, Cause: err}
	}
	return nil
}

// Click moves to a randomized point inside the element's bounding box after a
// randomized pre-click delay, then clicks there.
func (s *Session) Click(ctx context.Context, selector string) error {
	clickCtx, cancel := s.withTimeout(ctx, DefaultLocateTimeout)
	defer cancel()

	var box struct {
		X      float64 `json:"x"`
		Y      float64 `json:"y"`
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
	}
	err := chromedp.Run(clickCtx,
		chromedp.WaitVisible(selector),
		chromedp.Evaluate(boundingBoxJS(selector), &box),
	)
	if err != nil {
		return &ElementNotFoundError{Selector: selector, Cause: err}
	}

	if s.cfg.ClickDelay > 0 {
		time.Sleep(time.Duration(rand.Int63n(int64(s.cfg.ClickDelay))))
	}

	// Click inside the middle 60% of the box, never exactly center.
	x := box.X + box.Width*(0.2+rand.Float64()*0.6)
	y := box.Y + box.Height*(0.2+rand.Float64()*0.6)

	if err := chromedp.Run(clickCtx, chromedp.MouseClickXY(x, y)); err != nil {
		return fmt.Errorf("click on %s failed: %w", selector, err)
	}
	return nil
}

// Type clears the field and enters text one character at a time with a
// randomized delay between keystrokes.
func (s *Session) Type(ctx context.Context, selector, text string) error {
	typeCtx, cancel := s.withTimeout(ctx, s.typeBudget(text))
	defer cancel()

	err := chromedp.Run(typeCtx,
		chromedp.WaitVisible(selector),
		chromedp.Focus(selector),
		chromedp.SetValue(selector, ""),
	)
	if err != nil {
		return &ElementNotFoundError{Selector: selector, Cause: err}
	}

	for _, r := range text {
		if err := chromedp.Run(typeCtx, chromedp.SendKeys(selector, string(r))); err != nil {
			return fmt.Errorf("typing into %s failed: %w", selector, err)
		}
		time.Sleep(s.keyDelay())
	}
	return nil
}

// SelectOption sets a dropdown's value and fires a change event.
func (s *Session) SelectOption(ctx context.Context, selector, value string) error {
	selCtx, cancel := s.withTimeout(ctx, DefaultLocateTimeout)
	defer cancel()

	err := chromedp.Run(selCtx,
		chromedp.WaitVisible(selector),
		chromedp.SetValue(selector, value),
	)
	if err != nil {
		return &ElementNotFoundError{Selector: selector, Cause: err}
	}
	return nil
}

// SetInputFiles attaches a local file to a file input.
func (s *Session) SetInputFiles(ctx context.Context, selector, path string) error {
	upCtx, cancel := s.withTimeout(ctx, DefaultLocateTimeout)
	defer cancel()

	if err := chromedp.Run(upCtx, chromedp.SetUploadFiles(selector, []string{path})); err != nil {
		return &ElementNotFoundError{Selector: selector, Cause: err}
	}
	return nil
}

// Screenshot captures the viewport and writes it to path.
func (s *Session) Screenshot(ctx context.Context, path string) error {
	shotCtx, cancel := s.withTimeout(ctx, DefaultNavTimeout)
	defer cancel()

	var buf []byte
	if err := chromedp.Run(shotCtx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return fmt.Errorf("screenshot failed: %w", err)
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("failed to write screenshot %s: %w", path, err)
	}
	return nil
}

// Evaluate runs a JavaScript expression and unmarshals the result into out.
func (s *Session) Evaluate(ctx context.Context, expression string, out any) error {
	evalCtx, cancel := s.withTimeout(ctx, DefaultLocateTimeout)
	defer cancel()

	if err := chromedp.Run(evalCtx, chromedp.Evaluate(expression, out)); err != nil {
		return fmt.Errorf("evaluate failed: %w", err)
	}
	return nil
}

// Text returns the visible text of the first element matching selector.
func (s *Session) Text(ctx context.Context, selector string) (string, error) {
	textCtx, cancel := s.withTimeout(ctx, DefaultLocateTimeout)
	defer cancel()

	var text string
	if err := chromedp.Run(textCtx, chromedp.Text(selector, &text, chromedp.NodeVisible)); err != nil {
		return "", &ElementNotFoundError{Selector: selector, Cause: err}
	}
	return text, nil
}

// PageHTML returns the full page HTML.
func (s *Session) PageHTML(ctx context.Context) (string, error) {
	htmlCtx, cancel := s.withTimeout(ctx, DefaultLocateTimeout)
	defer cancel()

	var html string
	if err := chromedp.Run(htmlCtx, chromedp.OuterHTML("html", &html)); err != nil {
		return "", fmt.Errorf("failed to get page HTML: %w", err)
	}
	return html, nil
}

// PageText returns the visible text of the page body.
func (s *Session) PageText(ctx context.Context) (string, error) {
	textCtx, cancel := s.withTimeout(ctx, DefaultLocateTimeout)
	defer cancel()

	var text string
	if err := chromedp.Run(textCtx, chromedp.Text("body", &text, chromedp.NodeVisible)); err != nil {
		return "", fmt.Errorf("failed to get page text: %w", err)
	}
	return text, nil
}

// CurrentURL returns the page's current URL.
func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	urlCtx, cancel := s.withTimeout(ctx, DefaultLocateTimeout)
	defer cancel()

	var url string
	if err := chromedp.Run(urlCtx, chromedp.Location(&url)); err != nil {
		return "", fmt.Errorf("failed to get current URL: %w", err)
	}
	return url, nil
}

// Close tears down the browser process.
func (s *Session) Close() error {
	s.cancel()
	return nil
}

// withTimeout layers the caller's context over the session context so both
// cancellation sources apply.
func (s *Session) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	merged, cancelMerge := mergeContexts(s.ctx, ctx)
	timed, cancelTimed := context.WithTimeout(merged, timeout)
	return timed, func() {
		cancelTimed()
		cancelMerge()
	}
}

// mergeContexts returns the session context, cancelled early if the caller's
// context ends first. chromedp requires its own context chain, so the caller
// context can only contribute cancellation.
func mergeContexts(session, caller context.Context) (context.Context, context.CancelFunc) {
	merged, cancel := context.WithCancel(session)
	stop := context.AfterFunc(caller, cancel)
	return merged, func() {
		stop()
		cancel()
	}
}

// keyDelay returns a randomized inter-keystroke delay within the configured bounds.
func (s *Session) keyDelay() time.Duration {
	if s.cfg.SlowestKey <= s.cfg.FastestKey {
		return s.cfg.FastestKey
	}
	spread := int64(s.cfg.SlowestKey - s.cfg.FastestKey)
	return s.cfg.FastestKey + time.Duration(rand.Int63n(spread))
}

// typeBudget bounds the total time allowed for typing a string.
func (s *Session) typeBudget(text string) time.Duration {
	budget := DefaultLocateTimeout + time.Duration(len(text))*s.cfg.SlowestKey*2
	if budget < DefaultNavTimeout {
		return DefaultNavTimeout
	}
	return budget
}

// boundingBoxJS builds an expression returning the bounding rect of the first
// element matching the selector.
func boundingBoxJS(selector string) string {
	return fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (!el) { return {x: 0, y: 0, width: 0, height: 0}; }
		const r = el.getBoundingClientRect();
		return {x: r.x, y: r.y, width: r.width, height: r.height};
	})()`, selector)
}
