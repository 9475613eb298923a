// Package engine executes job-application strategies: it runs workflow steps
// with bounded retries, backoff, and fallback actions, and supervises whole
// attempts so that callers always receive a structured result.
package engine

import (
	"context"

	"github.com/jonathan/apply-agent/internal/strategy"
	"github.com/jonathan/apply-agent/internal/types"
)

// Implementation is the executable side of a strategy: site-specific logic
// bound to a declarative definition. Concrete strategies are plain values
// implementing this interface, registered into the registry by id.
type Implementation interface {
	// Definition returns the declarative definition this implementation
	// is bound to.
	Definition() *strategy.Definition
	// RunMainWorkflow drives the site's application flow and reports a
	// result. It may return an error; the supervisor converts it.
	RunMainWorkflow(ctx context.Context, ec *types.ExecutionContext) (*types.ExecutionResult, error)
	// MapFields fills form fields from the user profile.
	MapFields(ctx context.Context, ec *types.ExecutionContext) error
	// HandleCaptcha deals with a detected challenge. It returns true when
	// the challenge was cleared.
	HandleCaptcha(ctx context.Context, ec *types.ExecutionContext) (bool, error)
	// ExtractConfirmation pulls a confirmation id/number from the page
	// after a successful submission.
	ExtractConfirmation(ctx context.Context, ec *types.ExecutionContext) (string, error)
}
