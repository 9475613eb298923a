package registry

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jonathan/apply-agent/internal/engine"
	"github.com/jonathan/apply-agent/internal/formfill"
	"github.com/jonathan/apply-agent/internal/strategy"
	"github.com/jonathan/apply-agent/internal/types"
	"github.com/jonathan/apply-agent/internal/vision"
)

// AIAutomator is the AI-driven automation path tried before the
// deterministic strategy implementation. A nil automator disables the path.
type AIAutomator interface {
	Execute(ctx context.Context, ec *types.ExecutionContext, def *strategy.Definition) (*types.ExecutionResult, error)
}

// VisionAutomator drives an application with the vision capability: it
// screenshots the page, asks the resolver to understand the form, fills
// fields identified heuristically from the page HTML, and submits using the
// definition's selectors.
type VisionAutomator struct {
	Resolver      vision.Resolver
	ScreenshotDir string
	LocateTimeout time.Duration
}

var _ AIAutomator = (*VisionAutomator)(nil)

// Execute runs the AI automation path for one attempt.
func (a *VisionAutomator) Execute(ctx context.Context, ec *types.ExecutionContext, def *strategy.Definition) (*types.ExecutionResult, error) {
	start := time.Now()
	result := &types.ExecutionResult{}
	logf := func(format string, args ...any) {
		result.Logs = append(result.Logs, fmt.Sprintf(format, args...))
	}

	if err := ec.Browser.Navigate(ctx, ec.Job.URL); err != nil {
		return a.fail(result, start, fmt.Errorf("navigation failed: %w", err))
	}

	// Ask the resolver what it sees before touching anything.
	analysis, err := a.analyzePage(ctx, ec, def)
	if err != nil {
		return a.fail(result, start, fmt.Errorf("page analysis failed: %w", err))
	}
	logf("ai page analysis: %.120s", analysis.Text)

	// The apply control may be behind a listing page.
	if selector, err := firstVisible(ctx, ec, def.Selectors.ApplyButton, a.locateTimeout()); err == nil {
		if err := ec.Browser.Click(ctx, selector); err != nil {
			return a.fail(result, start, fmt.Errorf("apply click failed: %w", err))
		}
		result.StepsCompleted++
		logf("clicked apply control %s", selector)
	}

	// Fill every field we can identify from the rendered form.
	html, err := ec.Browser.PageHTML(ctx)
	if err != nil {
		return a.fail(result, start, fmt.Errorf("failed to read form HTML: %w", err))
	}
	guesses, err := formfill.IdentifyFields(html)
	if err != nil {
		return a.fail(result, start, err)
	}
	if len(guesses) == 0 {
		return a.fail(result, start, fmt.Errorf("no fillable fields identified"))
	}

	filled := 0
	for _, guess := range guesses {
		value := formfill.Value(ec.Profile, guess.Field)
		if value == "" {
			continue
		}
		var fillErr error
		if formfill.IsFileField(guess.Field) || guess.Kind == "file" {
			fillErr = ec.Browser.SetInputFiles(ctx, guess.Selector, value)
		} else {
			fillErr = ec.Browser.Type(ctx, guess.Selector, value)
		}
		if fillErr != nil {
			logf("could not fill %s (%s): %v", guess.Field, guess.Selector, fillErr)
			continue
		}
		filled++
	}
	if filled == 0 {
		return a.fail(result, start, fmt.Errorf("identified %d fields but filled none", len(guesses)))
	}
	result.StepsCompleted++
	logf("filled %d of %d identified fields", filled, len(guesses))

	// Submit via the definition's submit selectors.
	submitSelectors := def.Selectors.SubmitButton
	if len(submitSelectors) == 0 {
		submitSelectors = []string{`button[type="submit"]`, `input[type="submit"]`}
	}
	selector, err := firstVisible(ctx, ec, submitSelectors, a.locateTimeout())
	if err != nil {
		return a.fail(result, start, fmt.Errorf("no submit control found: %w", err))
	}
	if err := ec.Browser.Click(ctx, selector); err != nil {
		return a.fail(result, start, fmt.Errorf("submit click failed: %w", err))
	}
	result.StepsCompleted++

	text, err := ec.Browser.PageText(ctx)
	if err == nil {
		if code, ok := engine.ScanConfirmation(text); ok {
			result.ConfirmationNumber = code
		}
	}

	result.Success = true
	result.TotalSteps = result.StepsCompleted
	result.ExecutionTime = time.Since(start)
	return result, nil
}

// analyzePage screenshots the page and submits it for analysis.
func (a *VisionAutomator) analyzePage(ctx context.Context, ec *types.ExecutionContext, def *strategy.Definition) (*vision.Analysis, error) {
	path := fmt.Sprintf("%s/ai-%s-%d.png", a.screenshotDir(), def.ID, time.Now().UnixMilli())
	if err := ec.Browser.Screenshot(ctx, path); err != nil {
		return nil, err
	}
	image, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	analysis, err := a.Resolver.Analyze(ctx, vision.Request{
		Image:     image,
		MediaType: "image/png",
		Kind:      vision.KindForm,
		Hints: map[string]string{
			"job_url":  ec.Job.URL,
			"strategy": def.Name,
		},
	})
	if err != nil {
		return nil, err
	}
	if !analysis.Success {
		return nil, fmt.Errorf("resolver reported no usable analysis")
	}
	return analysis, nil
}

func (a *VisionAutomator) fail(result *types.ExecutionResult, start time.Time, err error) (*types.ExecutionResult, error) {
	result.Error = err.Error()
	result.ExecutionTime = time.Since(start)
	return result, err
}

func (a *VisionAutomator) screenshotDir() string {
	if a.ScreenshotDir != "" {
		return a.ScreenshotDir
	}
	return "."
}

func (a *VisionAutomator) locateTimeout() time.Duration {
	if a.LocateTimeout > 0 {
		return a.LocateTimeout
	}
	return 5 * time.Second
}

// firstVisible returns the first selector in the list that becomes visible
// within the timeout.
func firstVisible(ctx context.Context, ec *types.ExecutionContext, selectors []string, timeout time.Duration) (string, error) {
	var lastErr error
	for _, selector := range selectors {
		if err := ec.Browser.WaitForSelector(ctx, selector, timeout); err != nil {
			lastErr = err
			continue
		}
		return selector, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no selectors configured")
	}
	return "", lastErr
}
