package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jonathan/apply-agent/internal/events"
	"github.com/jonathan/apply-agent/internal/formfill"
	"github.com/jonathan/apply-agent/internal/strategy"
	"github.com/jonathan/apply-agent/internal/types"
)

// GenericStrategy is the explicit fallback implementation used when no
// site-specific implementation is registered for a definition. It runs the
// definition's application step list verbatim and fills form fields from the
// definition's selector mapping.
type GenericStrategy struct {
	Def *strategy.Definition

	// Executor tuning; zero values use the step executor defaults.
	LocateTimeout   time.Duration
	CriteriaTimeout time.Duration
	BackoffUnit     time.Duration
	ScreenshotDir   string
	Events          *events.Emitter
}

var _ Implementation = (*GenericStrategy)(nil)

// NewGenericStrategy binds a generic implementation to a definition.
func NewGenericStrategy(def *strategy.Definition) *GenericStrategy {
	return &GenericStrategy{Def: def}
}

// Definition returns the bound definition.
func (g *GenericStrategy) Definition() *strategy.Definition {
	return g.Def
}

// RunMainWorkflow executes the definition's application steps in order.
func (g *GenericStrategy) RunMainWorkflow(ctx context.Context, ec *types.ExecutionContext) (*types.ExecutionResult, error) {
	steps := g.Def.Workflow.Application
	result := &types.ExecutionResult{TotalSteps: len(steps)}
	exec := g.executor(ec, result)

	for _, step := range steps {
		stepResult, err := exec.Execute(ctx, step)
		if err != nil {
			result.Error = err.Error()
			return result, err
		}
		if stepResult != nil {
			result.StepsCompleted++
		}
	}

	result.Success = true
	return result, nil
}

// MapFields fills every known form field from the definition's selector
// mapping, in stable field order. Fields the profile has no value for are
// skipped.
func (g *GenericStrategy) MapFields(ctx context.Context, ec *types.ExecutionContext) error {
	fields := make([]string, 0, len(g.Def.Selectors.FormFields))
	for field := range g.Def.Selectors.FormFields {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	exec := g.executor(ec, nil)
	for _, field := range fields {
		value := formfill.Value(ec.Profile, formfill.Field(field))
		if value == "" {
			continue
		}

		selector, err := exec.resolve(ctx, g.Def.Selectors.FormFields[field])
		if err != nil {
			return fmt.Errorf("form field %s: %w", field, err)
		}

		if formfill.IsFileField(formfill.Field(field)) {
			err = ec.Browser.SetInputFiles(ctx, selector, value)
		} else {
			err = ec.Browser.Type(ctx, selector, value)
		}
		if err != nil {
			return fmt.Errorf("form field %s: %w", field, err)
		}
	}
	return nil
}

// HandleCaptcha is a no-op for the generic strategy; it reports the
// challenge as uncleared so callers can decide what to do.
func (g *GenericStrategy) HandleCaptcha(_ context.Context, _ *types.ExecutionContext) (bool, error) {
	return false, nil
}

// ExtractConfirmation scans the page text for a confirmation code.
func (g *GenericStrategy) ExtractConfirmation(ctx context.Context, ec *types.ExecutionContext) (string, error) {
	text, err := ec.Browser.PageText(ctx)
	if err != nil {
		return "", err
	}
	if code, ok := ScanConfirmation(text); ok {
		return code, nil
	}
	return "", nil
}

func (g *GenericStrategy) executor(ec *types.ExecutionContext, result *types.ExecutionResult) *StepExecutor {
	exec := &StepExecutor{
		Browser:         ec.Browser,
		Profile:         ec.Profile,
		LocateTimeout:   g.LocateTimeout,
		CriteriaTimeout: g.CriteriaTimeout,
		BackoffUnit:     g.BackoffUnit,
		ScreenshotDir:   g.ScreenshotDir,
		Events:          g.Events,
		StrategyID:      g.Def.ID,
	}
	if ec.Job != nil {
		exec.JobID = ec.Job.ID
	}
	if result != nil {
		exec.Logf = func(format string, args ...any) {
			result.Logs = append(result.Logs, fmt.Sprintf(format, args...))
		}
		exec.OnScreenshot = func(path string) {
			result.Screenshots = append(result.Screenshots, path)
		}
	}
	return exec
}
