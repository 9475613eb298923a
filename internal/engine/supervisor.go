package engine

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/jonathan/apply-agent/internal/events"
	"github.com/jonathan/apply-agent/internal/strategy"
	"github.com/jonathan/apply-agent/internal/types"
)

// DefaultReachabilityTimeout bounds the job-URL probe during context validation.
const DefaultReachabilityTimeout = 10 * time.Second

// Supervisor orchestrates one application attempt: context validation, pre
// steps, the strategy's main workflow, post steps, confirmation extraction,
// error recovery, and the metrics update. Execute never lets an error or
// panic escape; callers always receive an ExecutionResult.
//
// A Supervisor is safe to reuse across attempts; all per-attempt state lives
// inside Execute.
type Supervisor struct {
	Events        *events.Emitter
	ScreenshotDir string

	// Executor tuning, passed through to the per-attempt StepExecutor.
	LocateTimeout   time.Duration
	CriteriaTimeout time.Duration
	BackoffUnit     time.Duration

	// ReachabilityTimeout bounds the job-URL probe (default 10s).
	ReachabilityTimeout time.Duration
	// Probe checks that a job URL is reachable. nil uses an HTTP HEAD
	// request. Tests inject stubs here.
	Probe func(ctx context.Context, jobURL string) error
}

// run holds the transient per-attempt state the supervisor owns. Discarded
// after Execute returns.
type run struct {
	logs           []string
	screenshots    []string
	stepsCompleted int
	timings        map[string]time.Duration
}

func (r *run) logf(format string, args ...any) {
	r.logs = append(r.logs, fmt.Sprintf(format, args...))
}

// Execute runs one application attempt end to end and always returns a
// result, converting every failure mode into a failed ExecutionResult.
func (s *Supervisor) Execute(ctx context.Context, impl Implementation, ec *types.ExecutionContext) (result *types.ExecutionResult) {
	start := time.Now()
	r := &run{timings: make(map[string]time.Duration)}
	def := impl.Definition()

	defer func() {
		if rec := recover(); rec != nil {
			r.logf("panic during execution: %v", rec)
			result = s.finish(def, ec, r, failedResult(fmt.Errorf("panic: %v", rec)), start)
		}
	}()

	s.emit(events.ExecutionStarted, def, ec, nil)

	validateStart := time.Now()
	if err := s.validateContext(ctx, ec); err != nil {
		r.logf("context validation failed: %v", err)
		return s.finish(def, ec, r, failedResult(err), start)
	}
	r.timings["validate"] = time.Since(validateStart)

	exec := s.newExecutor(def, ec, r)

	mainRes, err := s.runPhases(ctx, impl, ec, exec, r, true)
	if err != nil {
		r.logf("workflow failed: %v", err)
		originalErr := err

		if len(def.Workflow.ErrorRecovery) > 0 {
			if recErr := s.runRecovery(ctx, def, exec, r); recErr != nil {
				r.logf("error recovery failed: %v", recErr)
			} else {
				r.logf("error recovery completed, re-attempting main workflow")
				mainRes, err = s.runPhases(ctx, impl, ec, exec, r, false)
				if err != nil {
					r.logf("re-attempt after recovery failed: %v", err)
				}
			}
		}

		if err != nil {
			return s.finish(def, ec, r, failedResult(originalErr), start)
		}
	}

	if mainRes == nil {
		mainRes = failedResult(fmt.Errorf("strategy %s returned no result", def.ID))
	}

	if mainRes.Success {
		confStart := time.Now()
		conf, confErr := impl.ExtractConfirmation(ctx, ec)
		r.timings["confirmation"] = time.Since(confStart)
		switch {
		case confErr != nil:
			// Extraction failure never fails a successful attempt.
			r.logf("confirmation extraction failed: %v", confErr)
		case conf != "":
			if mainRes.ConfirmationNumber == "" {
				mainRes.ConfirmationNumber = conf
			}
			ec.ConfirmationID = conf
		}
	}

	return s.finish(def, ec, r, mainRes, start)
}

// runPhases executes pre steps (optionally), the main workflow, and post
// steps, recording sub-timings. Pre steps are skipped on the post-recovery
// re-attempt since they already ran.
func (s *Supervisor) runPhases(ctx context.Context, impl Implementation, ec *types.ExecutionContext, exec *StepExecutor, r *run, includePre bool) (*types.ExecutionResult, error) {
	def := impl.Definition()

	if includePre {
		preStart := time.Now()
		if err := s.runSteps(ctx, exec, r, def.Workflow.PreApplication); err != nil {
			return nil, fmt.Errorf("pre-application steps: %w", err)
		}
		r.timings["pre_steps"] = time.Since(preStart)
	}

	mainStart := time.Now()
	mainRes, err := impl.RunMainWorkflow(ctx, ec)
	r.timings["main_workflow"] = time.Since(mainStart)
	if err != nil {
		return nil, fmt.Errorf("main workflow: %w", err)
	}

	postStart := time.Now()
	if err := s.runSteps(ctx, exec, r, def.Workflow.PostApplication); err != nil {
		return mainRes, fmt.Errorf("post-application steps: %w", err)
	}
	r.timings["post_steps"] = time.Since(postStart)

	return mainRes, nil
}

// runSteps executes a step list in order. A required step's failure
// propagates; optional step failures were already absorbed by the executor.
func (s *Supervisor) runSteps(ctx context.Context, exec *StepExecutor, r *run, steps []strategy.Step) error {
	for _, step := range steps {
		result, err := exec.Execute(ctx, step)
		if err != nil {
			return err
		}
		if result != nil {
			r.stepsCompleted++
		}
	}
	return nil
}

// runRecovery executes the error-recovery step list best-effort; the first
// failing recovery step aborts recovery.
func (s *Supervisor) runRecovery(ctx context.Context, def *strategy.Definition, exec *StepExecutor, r *run) error {
	recStart := time.Now()
	defer func() { r.timings["error_recovery"] = time.Since(recStart) }()

	for _, step := range def.Workflow.ErrorRecovery {
		if _, err := exec.Execute(ctx, step); err != nil {
			return err
		}
	}
	return nil
}

// validateContext fails fast on an unusable execution context.
func (s *Supervisor) validateContext(ctx context.Context, ec *types.ExecutionContext) error {
	switch {
	case ec == nil:
		return &ValidationError{Message: "execution context is nil"}
	case ec.Browser == nil:
		return &ValidationError{Message: "browser session is missing"}
	case ec.Job == nil || ec.Job.URL == "":
		return &ValidationError{Message: "job with URL is missing"}
	case ec.Profile == nil:
		return &ValidationError{Message: "user profile is missing"}
	case ec.Profile.ResumePath == "":
		return &ValidationError{Message: "user profile has no resume reference"}
	}

	parsed, err := url.Parse(ec.Job.URL)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return &ValidationError{Message: fmt.Sprintf("job URL %q is not a valid http(s) URL", ec.Job.URL), Cause: err}
	}

	probeCtx, cancel := context.WithTimeout(ctx, s.reachabilityTimeout())
	defer cancel()
	if err := s.probe(probeCtx, ec.Job.URL); err != nil {
		return &ValidationError{Message: "job URL is unreachable", Cause: err}
	}
	return nil
}

// probe checks URL reachability, defaulting to an HTTP HEAD request.
func (s *Supervisor) probe(ctx context.Context, jobURL string) error {
	if s.Probe != nil {
		return s.Probe(ctx, jobURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, jobURL, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("job URL returned status %d", resp.StatusCode)
	}
	return nil
}

// newExecutor builds the per-attempt step executor wired into the run's
// log/screenshot recorders.
func (s *Supervisor) newExecutor(def *strategy.Definition, ec *types.ExecutionContext, r *run) *StepExecutor {
	return &StepExecutor{
		Browser:         ec.Browser,
		Profile:         ec.Profile,
		LocateTimeout:   s.LocateTimeout,
		CriteriaTimeout: s.CriteriaTimeout,
		BackoffUnit:     s.BackoffUnit,
		ScreenshotDir:   s.ScreenshotDir,
		Logf:            r.logf,
		OnScreenshot:    func(path string) { r.screenshots = append(r.screenshots, path) },
		Events:          s.Events,
		StrategyID:      def.ID,
		JobID:           ec.Job.ID,
	}
}

// finish merges the run state into the main result, updates the strategy's
// rolling metrics, and emits the completion event.
func (s *Supervisor) finish(def *strategy.Definition, ec *types.ExecutionContext, r *run, mainRes *types.ExecutionResult, start time.Time) *types.ExecutionResult {
	result := *mainRes
	result.ExecutionTime = time.Since(start)
	result.StepsCompleted += r.stepsCompleted
	result.Screenshots = append(append([]string(nil), r.screenshots...), result.Screenshots...)
	result.Logs = append(append([]string(nil), r.logs...), result.Logs...)

	if result.TotalSteps == 0 {
		result.TotalSteps = len(def.Workflow.Application)
	}
	result.TotalSteps += len(def.Workflow.PreApplication) + len(def.Workflow.PostApplication)

	if result.Metrics == nil {
		result.Metrics = make(map[string]time.Duration, len(r.timings))
	}
	for phase, elapsed := range r.timings {
		if _, ok := result.Metrics[phase]; !ok {
			result.Metrics[phase] = elapsed
		}
	}

	if def.Metrics != nil {
		def.Metrics.Append(types.PerformanceMetric{
			Timestamp: time.Now(),
			Success:   result.Success,
			Duration:  result.ExecutionTime,
			ErrorKind: result.Error,
			Captcha:   result.CaptchaEncountered,
		})
	}

	eventType := events.ExecutionCompleted
	if !result.Success {
		eventType = events.ExecutionFailed
	}
	s.emit(eventType, def, ec, map[string]any{
		"success":         result.Success,
		"steps_completed": result.StepsCompleted,
		"duration_ms":     result.ExecutionTime.Milliseconds(),
	})

	return &result
}

func (s *Supervisor) emit(typ events.Type, def *strategy.Definition, ec *types.ExecutionContext, fields map[string]any) {
	if s.Events == nil {
		return
	}
	jobID := ""
	if ec != nil && ec.Job != nil {
		jobID = ec.Job.ID
	}
	s.Events.Emit(events.Event{
		Type:       typ,
		StrategyID: def.ID,
		JobID:      jobID,
		Fields:     fields,
	})
}

func (s *Supervisor) reachabilityTimeout() time.Duration {
	if s.ReachabilityTimeout > 0 {
		return s.ReachabilityTimeout
	}
	return DefaultReachabilityTimeout
}

// failedResult builds a failed ExecutionResult carrying the error message;
// unset metrics stay zero.
func failedResult(err error) *types.ExecutionResult {
	return &types.ExecutionResult{
		Success: false,
		Error:   err.Error(),
	}
}
