package engine

import "fmt"

// ValidationError indicates the execution context is unusable: a missing
// browser session, job, profile, or resume reference, or an unreachable job
// URL.
type ValidationError struct {
	Message string
	Cause   error
}

func (e *ValidationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invalid execution context: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("invalid execution context: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Cause
}

// StepFailedError indicates a required step exhausted its retries and
// fallback actions.
type StepFailedError struct {
	Step     string
	Attempts int
	Cause    error
}

func (e *StepFailedError) Error() string {
	msg := fmt.Sprintf("step %q failed after %d attempts", e.Step, e.Attempts)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *StepFailedError) Unwrap() error {
	return e.Cause
}

// NotImplementedError indicates a workflow used a custom action the strategy
// implementation does not handle.
type NotImplementedError struct {
	Step string
}

func (e *NotImplementedError) Error() string {
	return fmt.Sprintf("custom action in step %q is not implemented", e.Step)
}

// CaptchaUnresolvedError indicates a detected challenge was neither resolved
// by the vision capability nor cleared manually within the wait timeout.
type CaptchaUnresolvedError struct {
	Message string
}

func (e *CaptchaUnresolvedError) Error() string {
	if e.Message == "" {
		return "captcha challenge was not resolved"
	}
	return fmt.Sprintf("captcha challenge was not resolved: %s", e.Message)
}
