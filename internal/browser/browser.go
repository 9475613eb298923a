// Package browser provides the browser-automation capability the execution
// engine drives. The engine only depends on the Browser interface; the
// chromedp adapter in this package is one implementation of it.
package browser

import (
	"context"
	"time"
)

// Default timeouts for element resolution and navigation.
const (
	DefaultLocateTimeout   = 5 * time.Second
	DefaultCriteriaTimeout = 2 * time.Second
	DefaultNavTimeout      = 30 * time.Second
)

// Browser is the capability shape the engine consumes. Implementations drive
// a single page session; sessions are never shared between concurrent
// application attempts.
type Browser interface {
	// Navigate loads a URL and waits for the page to settle.
	Navigate(ctx context.Context, url string) error
	// WaitForSelector blocks until the selector is visible or the timeout expires.
	WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error
	// Click performs a human-like click on the first element matching selector.
	Click(ctx context.Context, selector string) error
	// Type enters text character by character with randomized inter-key delays.
	Type(ctx context.Context, selector, text string) error
	// SelectOption chooses a dropdown option by value or visible text.
	SelectOption(ctx context.Context, selector, value string) error
	// SetInputFiles attaches a local file path to a file input.
	SetInputFiles(ctx context.Context, selector, path string) error
	// Screenshot captures the viewport to the given file path.
	Screenshot(ctx context.Context, path string) error
	// Evaluate runs a JavaScript expression and unmarshals the result into out.
	Evaluate(ctx context.Context, expression string, out any) error
	// Text returns the visible text of the first element matching selector.
	Text(ctx context.Context, selector string) (string, error)
	// PageHTML returns the full page HTML.
	PageHTML(ctx context.Context) (string, error)
	// PageText returns the visible text of the page body.
	PageText(ctx context.Context) (string, error)
	// CurrentURL returns the page's current URL.
	CurrentURL(ctx context.Context) (string, error)
	// Close tears down the session.
	Close() error
}
