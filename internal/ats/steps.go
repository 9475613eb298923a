package ats

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jonathan/apply-agent/internal/browser"
	"github.com/jonathan/apply-agent/internal/events"
	"github.com/jonathan/apply-agent/internal/formfill"
	"github.com/jonathan/apply-agent/internal/types"
	"github.com/jonathan/apply-agent/internal/vision"
)

// openApplicationForm clicks through to the form when the job URL lands on a
// listing page. No apply control at all means the form is already open.
func (m *MultiStepStrategy) openApplicationForm(ctx context.Context, ec *types.ExecutionContext) error {
	selectors := append([]string{}, m.Def.Selectors.ApplyButton...)
	selectors = append(selectors, defaultApplySelectors...)

	selector, ok := m.firstVisible(ctx, ec, selectors, probeTimeout)
	if !ok {
		return nil
	}
	if err := ec.Browser.Click(ctx, selector); err != nil {
		return fmt.Errorf("apply click failed: %w", err)
	}
	return nil
}

// buildStepPlan classifies the form by probing for wizard step indicators and
// returns the ordered logical steps to walk.
func (m *MultiStepStrategy) buildStepPlan(ctx context.Context, ec *types.ExecutionContext) []string {
	if _, ok := m.firstVisible(ctx, ec, stepIndicatorSelectors, probeTimeout); ok {
		return []string{
			StepPersonalInfo,
			StepResumeUpload,
			StepAdditionalQuestions,
			StepCoverLetter,
			StepReviewSubmit,
		}
	}
	return []string{StepSinglePageForm}
}

// fillStep performs the fill work for one logical step. Review has nothing to
// fill; the single-page form does everything at once.
func (m *MultiStepStrategy) fillStep(ctx context.Context, ec *types.ExecutionContext, stepType string, logf func(string, ...any)) error {
	switch stepType {
	case StepPersonalInfo, StepAdditionalQuestions:
		return m.MapFields(ctx, ec)

	case StepResumeUpload:
		return m.uploadDocument(ctx, ec, formfill.FieldResume, true, logf)

	case StepCoverLetter:
		// Optional on most forms.
		return m.uploadDocument(ctx, ec, formfill.FieldCoverLetter, false, logf)

	case StepReviewSubmit:
		return nil

	case StepSinglePageForm:
		if err := m.MapFields(ctx, ec); err != nil {
			return err
		}
		if err := m.uploadDocument(ctx, ec, formfill.FieldResume, true, logf); err != nil {
			return err
		}
		return m.uploadDocument(ctx, ec, formfill.FieldCoverLetter, false, logf)

	default:
		return fmt.Errorf("unknown logical step %q", stepType)
	}
}

// uploadDocument attaches a profile document to the first visible file input
// mapped for the field. Required documents must attach; optional ones log and
// move on.
func (m *MultiStepStrategy) uploadDocument(ctx context.Context, ec *types.ExecutionContext, field formfill.Field, required bool, logf func(string, ...any)) error {
	path := formfill.Value(ec.Profile, field)
	if path == "" {
		if required {
			return fmt.Errorf("profile has no %s to upload", field)
		}
		return nil
	}

	selectors := append([]string{}, m.Def.Selectors.FormFields[string(field)]...)
	selectors = append(selectors, `input[type="file"]`)

	selector, ok := m.firstVisible(ctx, ec, selectors, m.locateTimeout())
	if !ok {
		if required {
			return &browser.ElementNotFoundError{Selector: fmt.Sprintf("%s upload input", field)}
		}
		logf("no %s input on this step, skipping", field)
		return nil
	}
	if err := ec.Browser.SetInputFiles(ctx, selector, path); err != nil {
		if required {
			return fmt.Errorf("attaching %s: %w", field, err)
		}
		logf("could not attach %s: %v", field, err)
		return nil
	}
	logf("attached %s via %s", field, selector)
	return nil
}

// advance clicks the control that moves to the next step, or submits on the
// final one.
func (m *MultiStepStrategy) advance(ctx context.Context, ec *types.ExecutionContext, last bool) error {
	var selectors []string
	if last {
		selectors = append(selectors, m.Def.Selectors.SubmitButton...)
		selectors = append(selectors, defaultSubmitSelectors...)
	} else {
		selectors = append(selectors, m.Def.Selectors.NextButton...)
		selectors = append(selectors, defaultNextSelectors...)
	}

	selector, ok := m.firstVisible(ctx, ec, selectors, m.locateTimeout())
	if !ok {
		return &browser.ElementNotFoundError{Selector: fmt.Sprintf("%v", selectors)}
	}
	return ec.Browser.Click(ctx, selector)
}

// resolveWithVision screenshots the challenge, asks the resolver for a
// solution, types it into a captcha input when one exists, and reports
// whether the challenge markers cleared.
func (m *MultiStepStrategy) resolveWithVision(ctx context.Context, ec *types.ExecutionContext) (bool, error) {
	path := fmt.Sprintf("%s/captcha-%s-%d.png", m.screenshotDir(), m.Def.ID, time.Now().UnixMilli())
	if err := ec.Browser.Screenshot(ctx, path); err != nil {
		return false, err
	}
	image, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}

	analysis, err := m.Resolver.Analyze(ctx, vision.Request{
		Image:     image,
		MediaType: "image/png",
		Kind:      vision.KindCaptcha,
	})
	if err != nil {
		return false, err
	}
	if !analysis.Success || analysis.CaptchaSolution == "" {
		return false, nil
	}

	// Text captchas have an answer input; widget captchas do not, and for
	// those the solution cannot be typed anywhere.
	inputs := []string{`input[name*="captcha"]`, `input[id*="captcha"]`, `#captcha-answer`}
	if selector, ok := m.firstVisible(ctx, ec, inputs, probeTimeout); ok {
		if err := ec.Browser.Type(ctx, selector, analysis.CaptchaSolution); err != nil {
			return false, err
		}
		if submit, ok := m.firstVisible(ctx, ec, []string{`button[type="submit"]`}, probeTimeout); ok {
			_ = ec.Browser.Click(ctx, submit)
		}
	}

	if err := sleepCtx(ctx, captchaPollInterval); err != nil {
		return false, err
	}
	return !m.challengePresent(ctx, ec), nil
}

// challengePresent probes the known captcha markers with a short timeout.
func (m *MultiStepStrategy) challengePresent(ctx context.Context, ec *types.ExecutionContext) bool {
	_, present := m.firstVisible(ctx, ec, challengeSelectors, probeTimeout)
	return present
}

// firstVisible returns the first selector that becomes visible within the
// timeout.
func (m *MultiStepStrategy) firstVisible(ctx context.Context, ec *types.ExecutionContext, selectors []string, timeout time.Duration) (string, bool) {
	for _, selector := range selectors {
		if err := ec.Browser.WaitForSelector(ctx, selector, timeout); err != nil {
			continue
		}
		return selector, true
	}
	return "", false
}

// fill writes one value into one control, picking the interaction by field kind.
func (m *MultiStepStrategy) fill(ctx context.Context, ec *types.ExecutionContext, field formfill.Field, selector, value string) error {
	if formfill.IsFileField(field) {
		return ec.Browser.SetInputFiles(ctx, selector, value)
	}
	return ec.Browser.Type(ctx, selector, value)
}

func (m *MultiStepStrategy) pause(ctx context.Context) error {
	delay := m.StepDelay
	if delay <= 0 {
		delay = DefaultStepDelay
	}
	return sleepCtx(ctx, delay)
}

func (m *MultiStepStrategy) emit(eventType events.Type, ec *types.ExecutionContext, fields map[string]any) {
	if m.Events == nil {
		return
	}
	jobID := ""
	if ec.Job != nil {
		jobID = ec.Job.ID
	}
	m.Events.Emit(events.Event{
		Type:       eventType,
		StrategyID: m.Def.ID,
		JobID:      jobID,
		Fields:     fields,
	})
}

func (m *MultiStepStrategy) manualWait() time.Duration {
	if m.ManualCaptchaWait > 0 {
		return m.ManualCaptchaWait
	}
	return DefaultManualCaptchaWait
}

func (m *MultiStepStrategy) locateTimeout() time.Duration {
	if m.LocateTimeout > 0 {
		return m.LocateTimeout
	}
	return browser.DefaultLocateTimeout
}

func (m *MultiStepStrategy) screenshotDir() string {
	if m.ScreenshotDir != "" {
		return m.ScreenshotDir
	}
	return "."
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
