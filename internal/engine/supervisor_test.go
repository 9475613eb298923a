package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/apply-agent/internal/events"
	"github.com/jonathan/apply-agent/internal/strategy"
	"github.com/jonathan/apply-agent/internal/types"
)

// fakeImpl is a scriptable Implementation for supervisor tests.
type fakeImpl struct {
	def          *strategy.Definition
	mainFn       func(calls int) (*types.ExecutionResult, error)
	confirmation string
	confErr      error

	mainCalls int
}

func (f *fakeImpl) Definition() *strategy.Definition { return f.def }

func (f *fakeImpl) RunMainWorkflow(_ context.Context, _ *types.ExecutionContext) (*types.ExecutionResult, error) {
	f.mainCalls++
	return f.mainFn(f.mainCalls)
}

func (f *fakeImpl) MapFields(_ context.Context, _ *types.ExecutionContext) error { return nil }

func (f *fakeImpl) HandleCaptcha(_ context.Context, _ *types.ExecutionContext) (bool, error) {
	return false, nil
}

func (f *fakeImpl) ExtractConfirmation(_ context.Context, _ *types.ExecutionContext) (string, error) {
	return f.confirmation, f.confErr
}

func testDefinition() *strategy.Definition {
	def := &strategy.Definition{
		ID:        "test-site",
		Name:      "Test Site",
		Domains:   []string{"example.com"},
		Selectors: strategy.Selectors{ApplyButton: []string{"#apply"}},
		Workflow: strategy.Workflow{
			Application: []strategy.Step{
				{Name: "click-apply", Action: strategy.ActionClick, Selectors: []string{"#apply"}, Required: true},
			},
		},
	}
	def.Normalize()
	return def
}

func testContext(fb *fakeBrowser) *types.ExecutionContext {
	return &types.ExecutionContext{
		AttemptID: "attempt-1",
		Job:       &types.Job{ID: "job-1", URL: "https://example.com/jobs/1"},
		Profile:   &types.UserProfile{FirstName: "Ada", Email: "ada@example.com", ResumePath: "/tmp/resume.pdf"},
		Browser:   fb,
	}
}

func testSupervisor() *Supervisor {
	return &Supervisor{
		LocateTimeout:   time.Millisecond,
		CriteriaTimeout: time.Millisecond,
		BackoffUnit:     time.Millisecond,
		Probe:           func(context.Context, string) error { return nil },
	}
}

func TestSupervisorExecute_Success(t *testing.T) {
	impl := &fakeImpl{
		def: testDefinition(),
		mainFn: func(int) (*types.ExecutionResult, error) {
			return &types.ExecutionResult{Success: true, StepsCompleted: 1, TotalSteps: 1}, nil
		},
		confirmation: "CONF-1234",
	}
	ec := testContext(newFakeBrowser())

	result := testSupervisor().Execute(context.Background(), impl, ec)

	require.NotNil(t, result)
	assert.True(t, result.Success)
	assert.Equal(t, "CONF-1234", result.ConfirmationNumber)
	assert.Equal(t, "CONF-1234", ec.ConfirmationID)
	assert.Greater(t, result.ExecutionTime, time.Duration(0))
	assert.Contains(t, result.Metrics, "validate")
	assert.Contains(t, result.Metrics, "main_workflow")

	// Outcome is appended to the definition's rolling window.
	assert.Equal(t, 1, impl.def.Metrics.Len())
	assert.InDelta(t, 1.0, impl.def.Metrics.SuccessRate(), 0.001)
}

func TestSupervisorExecute_InvalidContextReturnsFailedResult(t *testing.T) {
	impl := &fakeImpl{def: testDefinition(), mainFn: func(int) (*types.ExecutionResult, error) {
		t.Fatal("main workflow must not run with an invalid context")
		return nil, nil
	}}

	result := testSupervisor().Execute(context.Background(), impl, &types.ExecutionContext{})

	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "invalid execution context")
}

func TestSupervisorExecute_RejectsNonHTTPURL(t *testing.T) {
	impl := &fakeImpl{def: testDefinition(), mainFn: func(int) (*types.ExecutionResult, error) {
		return &types.ExecutionResult{Success: true}, nil
	}}
	ec := testContext(newFakeBrowser())
	ec.Job.URL = "ftp://example.com/jobs"

	result := testSupervisor().Execute(context.Background(), impl, ec)

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "not a valid http(s) URL")
}

func TestSupervisorExecute_UnreachableJobURL(t *testing.T) {
	s := testSupervisor()
	s.Probe = func(context.Context, string) error { return fmt.Errorf("connection refused") }
	impl := &fakeImpl{def: testDefinition(), mainFn: func(int) (*types.ExecutionResult, error) {
		return &types.ExecutionResult{Success: true}, nil
	}}

	result := s.Execute(context.Background(), impl, testContext(newFakeBrowser()))

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "unreachable")
}

func TestSupervisorExecute_PanicBecomesFailedResult(t *testing.T) {
	impl := &fakeImpl{def: testDefinition(), mainFn: func(int) (*types.ExecutionResult, error) {
		panic("boom")
	}}

	result := testSupervisor().Execute(context.Background(), impl, testContext(newFakeBrowser()))

	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "panic")
	assert.Contains(t, result.Error, "boom")
}

func TestSupervisorExecute_RecoveryThenRetrySucceeds(t *testing.T) {
	def := testDefinition()
	def.Workflow.ErrorRecovery = []strategy.Step{
		{Name: "reload", Action: strategy.ActionWait, Metadata: map[string]any{"duration_ms": 1}},
	}
	impl := &fakeImpl{
		def: def,
		mainFn: func(calls int) (*types.ExecutionResult, error) {
			if calls == 1 {
				return nil, fmt.Errorf("transient failure")
			}
			return &types.ExecutionResult{Success: true, StepsCompleted: 1, TotalSteps: 1}, nil
		},
	}

	result := testSupervisor().Execute(context.Background(), impl, testContext(newFakeBrowser()))

	assert.True(t, result.Success)
	assert.Equal(t, 2, impl.mainCalls)
	assert.Contains(t, result.Metrics, "error_recovery")
}

func TestSupervisorExecute_RecoveryRetryFailsKeepsOriginalError(t *testing.T) {
	def := testDefinition()
	def.Workflow.ErrorRecovery = []strategy.Step{
		{Name: "reload", Action: strategy.ActionWait, Metadata: map[string]any{"duration_ms": 1}},
	}
	impl := &fakeImpl{
		def: def,
		mainFn: func(calls int) (*types.ExecutionResult, error) {
			if calls == 1 {
				return nil, fmt.Errorf("original failure")
			}
			return nil, fmt.Errorf("retry failure")
		},
	}

	result := testSupervisor().Execute(context.Background(), impl, testContext(newFakeBrowser()))

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "original failure")
	assert.Equal(t, 2, impl.mainCalls)
}

func TestSupervisorExecute_NoRecoveryStepsFailsDirectly(t *testing.T) {
	impl := &fakeImpl{
		def: testDefinition(),
		mainFn: func(int) (*types.ExecutionResult, error) {
			return nil, fmt.Errorf("hard failure")
		},
	}

	result := testSupervisor().Execute(context.Background(), impl, testContext(newFakeBrowser()))

	assert.False(t, result.Success)
	assert.Equal(t, 1, impl.mainCalls)
}

func TestSupervisorExecute_ConfirmationFailureDoesNotFailAttempt(t *testing.T) {
	impl := &fakeImpl{
		def: testDefinition(),
		mainFn: func(int) (*types.ExecutionResult, error) {
			return &types.ExecutionResult{Success: true}, nil
		},
		confErr: fmt.Errorf("page already closed"),
	}

	result := testSupervisor().Execute(context.Background(), impl, testContext(newFakeBrowser()))

	assert.True(t, result.Success)
	assert.Empty(t, result.ConfirmationNumber)
}

func TestSupervisorExecute_PreAndPostStepsRun(t *testing.T) {
	def := testDefinition()
	def.Workflow.PreApplication = []strategy.Step{
		{Name: "accept-cookies", Action: strategy.ActionClick, Selectors: []string{"#cookies"}},
	}
	def.Workflow.PostApplication = []strategy.Step{
		{Name: "close-modal", Action: strategy.ActionClick, Selectors: []string{"#close"}},
	}
	impl := &fakeImpl{
		def: def,
		mainFn: func(int) (*types.ExecutionResult, error) {
			return &types.ExecutionResult{Success: true, StepsCompleted: 1, TotalSteps: 1}, nil
		},
	}
	fb := newFakeBrowser("#cookies", "#close")

	result := testSupervisor().Execute(context.Background(), impl, testContext(fb))

	assert.True(t, result.Success)
	// Main step plus the two surrounding optional steps.
	assert.Equal(t, 3, result.StepsCompleted)
	assert.Equal(t, 3, result.TotalSteps)
	assert.Contains(t, result.Metrics, "pre_steps")
	assert.Contains(t, result.Metrics, "post_steps")
}

func TestSupervisorExecute_EmitsLifecycleEvents(t *testing.T) {
	emitter := events.NewEmitter()
	var seen []events.Type
	emitter.Subscribe(func(ev events.Event) { seen = append(seen, ev.Type) })

	s := testSupervisor()
	s.Events = emitter
	impl := &fakeImpl{
		def: testDefinition(),
		mainFn: func(int) (*types.ExecutionResult, error) {
			return &types.ExecutionResult{Success: true}, nil
		},
	}

	s.Execute(context.Background(), impl, testContext(newFakeBrowser()))

	assert.Contains(t, seen, events.ExecutionStarted)
	assert.Contains(t, seen, events.ExecutionCompleted)
	assert.NotContains(t, seen, events.ExecutionFailed)
}
