package engine

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/jonathan/apply-agent/internal/browser"
)

// fakeBrowser is an in-memory browser.Browser for executor and supervisor
// tests. Selectors listed in visible resolve immediately; failures map a
// selector to how many WaitForSelector calls must fail before it appears.
type fakeBrowser struct {
	mu sync.Mutex

	visible  map[string]bool
	failures map[string]int

	clickErr map[string]error
	pageText string
	pageHTML string

	navigated []string
	clicks    []string
	typed     map[string]string
	uploads   map[string]string
	waits     []string
}

func newFakeBrowser(visible ...string) *fakeBrowser {
	fb := &fakeBrowser{
		visible:  make(map[string]bool),
		failures: make(map[string]int),
		clickErr: make(map[string]error),
		typed:    make(map[string]string),
		uploads:  make(map[string]string),
	}
	for _, selector := range visible {
		fb.visible[selector] = true
	}
	return fb
}

var _ browser.Browser = (*fakeBrowser)(nil)

func (f *fakeBrowser) Navigate(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.navigated = append(f.navigated, url)
	return nil
}

func (f *fakeBrowser) WaitForSelector(_ context.Context, selector string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.waits = append(f.waits, selector)

	if remaining, ok := f.failures[selector]; ok {
		if remaining > 0 {
			f.failures[selector] = remaining - 1
			return &browser.ElementNotFoundError{Selector: selector}
		}
		return nil
	}
	if f.visible[selector] {
		return nil
	}
	return &browser.ElementNotFoundError{Selector: selector}
}

func (f *fakeBrowser) Click(_ context.Context, selector string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.clickErr[selector]; err != nil {
		return err
	}
	f.clicks = append(f.clicks, selector)
	return nil
}

func (f *fakeBrowser) Type(_ context.Context, selector, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.typed[selector] = text
	return nil
}

func (f *fakeBrowser) SelectOption(_ context.Context, selector, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.typed[selector] = value
	return nil
}

func (f *fakeBrowser) SetInputFiles(_ context.Context, selector, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads[selector] = path
	return nil
}

func (f *fakeBrowser) Screenshot(_ context.Context, path string) error {
	return os.WriteFile(path, []byte("png"), 0644)
}

func (f *fakeBrowser) Evaluate(_ context.Context, _ string, _ any) error {
	return nil
}

func (f *fakeBrowser) Text(_ context.Context, selector string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.visible[selector] {
		return "", fmt.Errorf("no element for %s", selector)
	}
	return f.pageText, nil
}

func (f *fakeBrowser) PageHTML(_ context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pageHTML, nil
}

func (f *fakeBrowser) PageText(_ context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pageText, nil
}

func (f *fakeBrowser) CurrentURL(_ context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.navigated) == 0 {
		return "", nil
	}
	return f.navigated[len(f.navigated)-1], nil
}

func (f *fakeBrowser) Close() error { return nil }

func (f *fakeBrowser) waitCount(selector string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, waited := range f.waits {
		if waited == selector {
			count++
		}
	}
	return count
}
