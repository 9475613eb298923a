package registry

import (
	"context"
	"time"

	"github.com/jonathan/apply-agent/internal/browser"
)

// noopBrowser satisfies browser.Browser for dispatch tests that never touch
// the page. Every selector resolves and every action succeeds.
type noopBrowser struct{}

var _ browser.Browser = noopBrowser{}

func (noopBrowser) Navigate(context.Context, string) error                    { return nil }
func (noopBrowser) WaitForSelector(context.Context, string, time.Duration) error { return nil }
func (noopBrowser) Click(context.Context, string) error                       { return nil }
func (noopBrowser) Type(context.Context, string, string) error                { return nil }
func (noopBrowser) SelectOption(context.Context, string, string) error        { return nil }
func (noopBrowser) SetInputFiles(context.Context, string, string) error       { return nil }
func (noopBrowser) Screenshot(context.Context, string) error                  { return nil }
func (noopBrowser) Evaluate(context.Context, string, any) error               { return nil }
func (noopBrowser) Text(context.Context, string) (string, error)              { return "", nil }
func (noopBrowser) PageHTML(context.Context) (string, error)                  { return "", nil }
func (noopBrowser) PageText(context.Context) (string, error)                  { return "", nil }
func (noopBrowser) CurrentURL(context.Context) (string, error)                { return "", nil }
func (noopBrowser) Close() error                                              { return nil }
