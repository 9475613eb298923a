// Package ats implements the site-specific strategy for multi-step
// applicant-tracking-system forms: it classifies the form, walks the logical
// steps, fills fields from the profile with heuristic fallback, handles
// challenges between steps, and extracts a confirmation code after submit.
package ats

import (
	"context"
	"fmt"
	"time"

	"github.com/jonathan/apply-agent/internal/engine"
	"github.com/jonathan/apply-agent/internal/events"
	"github.com/jonathan/apply-agent/internal/formfill"
	"github.com/jonathan/apply-agent/internal/strategy"
	"github.com/jonathan/apply-agent/internal/types"
	"github.com/jonathan/apply-agent/internal/vision"
)

// Logical step types for a multi-step application form.
const (
	StepPersonalInfo        = "personal-info"
	StepResumeUpload        = "resume-upload"
	StepAdditionalQuestions = "additional-questions"
	StepCoverLetter         = "cover-letter"
	StepReviewSubmit        = "review-submit"
	StepSinglePageForm      = "single-page-form"
)

// Known controls tried after the definition's own selectors.
var (
	defaultApplySelectors = []string{
		"#apply-button", "a[href*='apply']", "button[data-qa='apply']",
		".apply-button", "button.postings-btn",
	}
	defaultNextSelectors = []string{
		"button[type='submit']", "button[data-qa='continue']",
		".next-button", "button.continue",
	}
	defaultSubmitSelectors = []string{
		"button[type='submit']", "input[type='submit']",
		"button[data-qa='submit']", ".submit-application",
	}

	// stepIndicatorSelectors probe whether the form is a multi-step wizard.
	stepIndicatorSelectors = []string{
		".step-indicator", "[data-step]", ".wizard-step",
		".progress-steps", "ol.steps li", ".application-step",
	}

	// challengeSelectors are the recognized captcha iframe/widget markers.
	challengeSelectors = []string{
		"iframe[src*='recaptcha']", ".g-recaptcha",
		"iframe[src*='hcaptcha']", ".h-captcha", "[data-sitekey]",
	}
)

// Default pacing and waits.
const (
	DefaultStepDelay         = 1500 * time.Millisecond
	DefaultManualCaptchaWait = 2 * time.Minute
	captchaPollInterval      = 3 * time.Second
	probeTimeout             = 1500 * time.Millisecond
)

// MultiStepStrategy drives a multi-step ATS application form. It implements
// engine.Implementation.
type MultiStepStrategy struct {
	Def      *strategy.Definition
	Resolver vision.Resolver // optional; nil means wait for manual resolution
	Events   *events.Emitter

	LocateTimeout     time.Duration
	StepDelay         time.Duration // inter-step pause against automation-detection heuristics
	ManualCaptchaWait time.Duration
	ScreenshotDir     string
}

var _ engine.Implementation = (*MultiStepStrategy)(nil)

// New binds the multi-step strategy to a definition.
func New(def *strategy.Definition) *MultiStepStrategy {
	return &MultiStepStrategy{Def: def}
}

// Definition returns the bound definition.
func (m *MultiStepStrategy) Definition() *strategy.Definition {
	return m.Def
}

// RunMainWorkflow navigates to the job, opens the form, classifies it, and
// walks every logical step through fill, challenge handling, and advance.
func (m *MultiStepStrategy) RunMainWorkflow(ctx context.Context, ec *types.ExecutionContext) (*types.ExecutionResult, error) {
	result := &types.ExecutionResult{}
	logf := func(format string, args ...any) {
		result.Logs = append(result.Logs, fmt.Sprintf(format, args...))
	}

	if err := ec.Browser.Navigate(ctx, ec.Job.URL); err != nil {
		result.Error = err.Error()
		return result, fmt.Errorf("navigation failed: %w", err)
	}
	logf("opened %s", ec.Job.URL)

	if err := m.openApplicationForm(ctx, ec); err != nil {
		result.Error = err.Error()
		return result, err
	}
	logf("opened application form")

	plan := m.buildStepPlan(ctx, ec)
	result.TotalSteps = len(plan)
	logf("form classified into %d logical steps: %v", len(plan), plan)

	for i, stepType := range plan {
		if err := m.fillStep(ctx, ec, stepType, logf); err != nil {
			result.Error = err.Error()
			return result, fmt.Errorf("step %s: %w", stepType, err)
		}

		// Challenges tend to appear between steps, not inside them.
		if m.challengePresent(ctx, ec) {
			result.CaptchaEncountered = true
			m.emit(events.CaptchaDetected, ec, map[string]any{"step": stepType})
			cleared, err := m.HandleCaptcha(ctx, ec)
			if err != nil || !cleared {
				if err == nil {
					err = &engine.CaptchaUnresolvedError{Message: "challenge still present"}
				}
				result.Error = err.Error()
				return result, err
			}
			logf("challenge cleared at step %s", stepType)
		}

		// Fixed inter-step delay against automation-detection heuristics.
		if err := m.pause(ctx); err != nil {
			result.Error = err.Error()
			return result, err
		}

		last := i == len(plan)-1
		if err := m.advance(ctx, ec, last); err != nil {
			result.Error = err.Error()
			return result, fmt.Errorf("advancing past %s: %w", stepType, err)
		}
		result.StepsCompleted++
		logf("completed step %s", stepType)
	}

	result.Success = true
	return result, nil
}

// MapFields fills the current form page: the definition's direct
// selector-to-profile mapping first, then heuristic identification for
// whatever it did not cover.
func (m *MultiStepStrategy) MapFields(ctx context.Context, ec *types.ExecutionContext) error {
	filled := make(map[string]bool)

	for field, selectors := range m.Def.Selectors.FormFields {
		value := formfill.Value(ec.Profile, formfill.Field(field))
		if value == "" {
			continue
		}
		selector, ok := m.firstVisible(ctx, ec, selectors, probeTimeout)
		if !ok {
			continue
		}
		if err := m.fill(ctx, ec, formfill.Field(field), selector, value); err != nil {
			return fmt.Errorf("mapped field %s: %w", field, err)
		}
		filled[field] = true
	}

	// Heuristic pass for fields the mapping did not know about.
	html, err := ec.Browser.PageHTML(ctx)
	if err != nil {
		return fmt.Errorf("failed to read page HTML: %w", err)
	}
	guesses, err := formfill.IdentifyFields(html)
	if err != nil {
		return err
	}
	for _, guess := range guesses {
		if filled[string(guess.Field)] {
			continue
		}
		value := formfill.Value(ec.Profile, guess.Field)
		if value == "" {
			continue
		}
		if _, ok := m.firstVisible(ctx, ec, []string{guess.Selector}, probeTimeout); !ok {
			continue
		}
		// Best guess; a miss on one heuristic field must not sink the step.
		if err := m.fill(ctx, ec, guess.Field, guess.Selector, value); err == nil {
			filled[string(guess.Field)] = true
		}
	}
	return nil
}

// HandleCaptcha resolves a detected challenge: the vision resolver when
// attached, otherwise waiting for manual resolution up to the bounded wait.
// Returns true once the challenge markers are gone.
func (m *MultiStepStrategy) HandleCaptcha(ctx context.Context, ec *types.ExecutionContext) (bool, error) {
	if m.Resolver != nil {
		if cleared, err := m.resolveWithVision(ctx, ec); err == nil && cleared {
			return true, nil
		}
	}

	// Manual path: poll until the challenge disappears or the wait expires.
	deadline := time.Now().Add(m.manualWait())
	for time.Now().Before(deadline) {
		if !m.challengePresent(ctx, ec) {
			return true, nil
		}
		if err := sleepCtx(ctx, captchaPollInterval); err != nil {
			return false, err
		}
	}
	return false, &engine.CaptchaUnresolvedError{Message: "manual wait expired"}
}

// ExtractConfirmation scans the page for a confirmation code after submit,
// falling back to a generated id so a successful attempt always carries one.
func (m *MultiStepStrategy) ExtractConfirmation(ctx context.Context, ec *types.ExecutionContext) (string, error) {
	if selector, ok := m.firstVisible(ctx, ec, m.Def.Selectors.Confirmation, m.locateTimeout()); ok {
		if text, err := ec.Browser.Text(ctx, selector); err == nil {
			if code, found := engine.ScanConfirmation(text); found {
				return code, nil
			}
		}
	}

	text, err := ec.Browser.PageText(ctx)
	if err != nil {
		return "", err
	}
	if code, found := engine.ScanConfirmation(text); found {
		return code, nil
	}
	return engine.GeneratedConfirmationID(), nil
}
