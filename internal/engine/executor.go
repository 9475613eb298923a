package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/jonathan/apply-agent/internal/browser"
	"github.com/jonathan/apply-agent/internal/events"
	"github.com/jonathan/apply-agent/internal/formfill"
	"github.com/jonathan/apply-agent/internal/strategy"
	"github.com/jonathan/apply-agent/internal/types"
)

// StepResult is the outcome of one executed workflow step. Value carries
// extracted text or a screenshot path where the action produces one.
type StepResult struct {
	Step      string
	Value     string
	Attempts  int
	Elapsed   time.Duration
	Fallback  bool // true when a fallback action produced the result
	Completed bool
}

// StepExecutor runs single workflow steps against a browser session with
// bounded retries, linear backoff, and ordered fallback actions. The zero
// value is not usable; populate Browser at minimum.
type StepExecutor struct {
	Browser browser.Browser
	Profile *types.UserProfile

	// LocateTimeout bounds each selector resolution attempt (default 5s).
	LocateTimeout time.Duration
	// CriteriaTimeout bounds each success-criterion wait (default 2s).
	CriteriaTimeout time.Duration
	// BackoffUnit is the base backoff between attempts (default 1s);
	// attempt k sleeps BackoffUnit×k before attempt k+1.
	BackoffUnit time.Duration
	// ScreenshotDir is where screenshot actions write files (default cwd).
	ScreenshotDir string

	// Logf records a diagnostic line into the attempt log. Optional.
	Logf func(format string, args ...any)
	// OnScreenshot records a captured screenshot path. Optional.
	OnScreenshot func(path string)

	// Events receives step-started/step-completed events. Optional.
	Events     *events.Emitter
	StrategyID string
	JobID      string
}

// Execute runs one step to completion: up to RetryCount+1 attempts with
// linear backoff, then fallback actions in order. It returns an error only
// when the step is required and everything is exhausted; optional steps log
// the failure and return a nil result.
func (e *StepExecutor) Execute(ctx context.Context, step strategy.Step) (*StepResult, error) {
	start := time.Now()
	e.emit(events.StepStarted, step.Name, nil)

	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= step.RetryCount; attempt++ {
		attempts++
		result, err := e.attempt(ctx, step)
		if err == nil {
			result.Attempts = attempts
			result.Elapsed = time.Since(start)
			e.emit(events.StepCompleted, step.Name, map[string]any{
				"attempts":   attempts,
				"elapsed_ms": result.Elapsed.Milliseconds(),
			})
			return result, nil
		}
		lastErr = err
		e.logf("step %q attempt %d/%d failed: %v", step.Name, attempts, step.RetryCount+1, err)

		if attempt < step.RetryCount {
			if err := e.backoff(ctx, attempts); err != nil {
				lastErr = err
				break
			}
		}
	}

	// Normal retries exhausted; try each fallback action once, in order.
	for i, fallback := range step.FallbackActions {
		result, err := e.runFallback(ctx, step, fallback)
		if err == nil {
			result.Attempts = attempts
			result.Elapsed = time.Since(start)
			result.Fallback = true
			e.logf("step %q recovered via fallback action %d (%s)", step.Name, i+1, fallback.Action)
			e.emit(events.StepCompleted, step.Name, map[string]any{
				"attempts": attempts,
				"fallback": string(fallback.Action),
			})
			return result, nil
		}
		e.logf("step %q fallback action %d (%s) failed: %v", step.Name, i+1, fallback.Action, err)
	}

	if step.Required {
		return nil, &StepFailedError{Step: step.Name, Attempts: attempts, Cause: lastErr}
	}
	e.logf("optional step %q exhausted after %d attempts, continuing: %v", step.Name, attempts, lastErr)
	return nil, nil
}

// attempt performs the step's action once and checks its success criteria.
func (e *StepExecutor) attempt(ctx context.Context, step strategy.Step) (*StepResult, error) {
	value, err := e.doAction(ctx, step.Name, step.Action, step.Selectors, step.Metadata)
	if err != nil {
		return nil, err
	}

	// The action may run cleanly without the page actually progressing;
	// criteria are the ground truth when present.
	if len(step.SuccessCriteria) > 0 {
		if !e.anyVisible(ctx, step.SuccessCriteria) {
			return nil, fmt.Errorf("no success criterion appeared for step %q", step.Name)
		}
	}
	return &StepResult{Step: step.Name, Value: value, Completed: true}, nil
}

// runFallback performs one fallback action using the same element-resolution
// logic as normal attempts. Fallbacks have no success criteria; completing
// without error is acceptance.
func (e *StepExecutor) runFallback(ctx context.Context, step strategy.Step, fb strategy.FallbackAction) (*StepResult, error) {
	selectors := fb.Selectors
	if len(selectors) == 0 {
		selectors = step.Selectors
	}
	metadata := fb.Metadata
	if metadata == nil {
		metadata = step.Metadata
	}

	value, err := e.doAction(ctx, step.Name, fb.Action, selectors, metadata)
	if err != nil {
		return nil, err
	}
	return &StepResult{Step: step.Name, Value: value, Completed: true}, nil
}

// doAction dispatches one action kind against the first selector that
// resolves, for the actions that target an element.
func (e *StepExecutor) doAction(ctx context.Context, stepName string, action strategy.Action, selectors []string, metadata map[string]any) (string, error) {
	meta := stepMeta{metadata}

	switch action {
	case strategy.ActionNavigate:
		url := meta.str("url")
		if url == "" {
			return "", fmt.Errorf("navigate step %q has no url metadata", stepName)
		}
		return "", e.Browser.Navigate(ctx, url)

	case strategy.ActionClick:
		selector, err := e.resolve(ctx, selectors)
		if err != nil {
			return "", err
		}
		return "", e.Browser.Click(ctx, selector)

	case strategy.ActionType:
		selector, err := e.resolve(ctx, selectors)
		if err != nil {
			return "", err
		}
		text := meta.str("text")
		if text == "" {
			text = formfill.Value(e.Profile, formfill.Field(meta.str("field")))
		}
		return "", e.Browser.Type(ctx, selector, text)

	case strategy.ActionUpload:
		selector, err := e.resolve(ctx, selectors)
		if err != nil {
			return "", err
		}
		path := meta.str("path")
		if path == "" {
			field := formfill.Field(meta.str("field"))
			if field == "" {
				field = formfill.FieldResume
			}
			path = formfill.Value(e.Profile, field)
		}
		if path == "" {
			return "", fmt.Errorf("upload step %q has no file to attach", stepName)
		}
		return "", e.Browser.SetInputFiles(ctx, selector, path)

	case strategy.ActionSelect:
		selector, err := e.resolve(ctx, selectors)
		if err != nil {
			return "", err
		}
		value := meta.str("value")
		if value == "" {
			value = formfill.Value(e.Profile, formfill.Field(meta.str("field")))
		}
		return "", e.Browser.SelectOption(ctx, selector, value)

	case strategy.ActionWait:
		if ms := meta.dur("duration_ms"); ms > 0 {
			return "", sleepCtx(ctx, ms)
		}
		// Selector form: resolution itself is the wait.
		if _, err := e.resolve(ctx, selectors); err != nil {
			return "", err
		}
		return "", nil

	case strategy.ActionValidate:
		for _, selector := range selectors {
			if err := e.Browser.WaitForSelector(ctx, selector, e.criteriaTimeout()); err != nil {
				return "", fmt.Errorf("validation selector %s did not appear: %w", selector, err)
			}
		}
		return "", nil

	case strategy.ActionExtract:
		selector, err := e.resolve(ctx, selectors)
		if err != nil {
			return "", err
		}
		return e.Browser.Text(ctx, selector)

	case strategy.ActionScreenshot:
		path := filepath.Join(e.screenshotDir(), fmt.Sprintf("%s-%d.png", sanitizeName(stepName), time.Now().UnixMilli()))
		if err := e.Browser.Screenshot(ctx, path); err != nil {
			return "", err
		}
		if e.OnScreenshot != nil {
			e.OnScreenshot(path)
		}
		return path, nil

	case strategy.ActionCustom:
		return "", &NotImplementedError{Step: stepName}

	default:
		return "", fmt.Errorf("unknown action %q in step %q", action, stepName)
	}
}

// resolve returns the first selector that becomes visible within the
// per-selector timeout, trying selectors in order.
func (e *StepExecutor) resolve(ctx context.Context, selectors []string) (string, error) {
	if len(selectors) == 0 {
		return "", fmt.Errorf("no selectors configured")
	}

	var lastErr error
	for _, selector := range selectors {
		if err := e.Browser.WaitForSelector(ctx, selector, e.locateTimeout()); err != nil {
			lastErr = err
			continue
		}
		return selector, nil
	}
	return "", lastErr
}

// anyVisible reports whether at least one criterion selector appears within
// the criteria timeout.
func (e *StepExecutor) anyVisible(ctx context.Context, criteria []string) bool {
	for _, criterion := range criteria {
		if err := e.Browser.WaitForSelector(ctx, criterion, e.criteriaTimeout()); err == nil {
			return true
		}
	}
	return false
}

// backoff sleeps BackoffUnit×attempt, honoring context cancellation.
func (e *StepExecutor) backoff(ctx context.Context, attempt int) error {
	return sleepCtx(ctx, e.backoffUnit()*time.Duration(attempt))
}

func (e *StepExecutor) locateTimeout() time.Duration {
	if e.LocateTimeout > 0 {
		return e.LocateTimeout
	}
	return browser.DefaultLocateTimeout
}

func (e *StepExecutor) criteriaTimeout() time.Duration {
	if e.CriteriaTimeout > 0 {
		return e.CriteriaTimeout
	}
	return browser.DefaultCriteriaTimeout
}

func (e *StepExecutor) backoffUnit() time.Duration {
	if e.BackoffUnit > 0 {
		return e.BackoffUnit
	}
	return time.Second
}

func (e *StepExecutor) screenshotDir() string {
	if e.ScreenshotDir != "" {
		return e.ScreenshotDir
	}
	return "."
}

func (e *StepExecutor) logf(format string, args ...any) {
	if e.Logf != nil {
		e.Logf(format, args...)
	}
}

func (e *StepExecutor) emit(typ events.Type, stepName string, fields map[string]any) {
	if e.Events == nil {
		return
	}
	if fields == nil {
		fields = map[string]any{}
	}
	fields["step"] = stepName
	e.Events.Emit(events.Event{
		Type:       typ,
		StrategyID: e.StrategyID,
		JobID:      e.JobID,
		Fields:     fields,
	})
}

// stepMeta wraps free-form step metadata with typed accessors.
type stepMeta struct {
	m map[string]any
}

func (s stepMeta) str(key string) string {
	if s.m == nil {
		return ""
	}
	if v, ok := s.m[key].(string); ok {
		return v
	}
	return ""
}

func (s stepMeta) dur(key string) time.Duration {
	if s.m == nil {
		return 0
	}
	switch v := s.m[key].(type) {
	case int:
		return time.Duration(v) * time.Millisecond
	case float64:
		return time.Duration(v) * time.Millisecond
	}
	return 0
}

// sleepCtx sleeps for d, returning early if the context ends.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// sanitizeName makes a step name safe for use in a file name.
func sanitizeName(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	if len(out) == 0 {
		return "step"
	}
	return string(out)
}
