package types

import (
	"time"

	"github.com/jonathan/apply-agent/internal/browser"
)

// ExecutionContext carries everything one application attempt needs. It is
// created once per attempt by the caller and passed by reference through the
// engine; the engine never mutates it except to attach the confirmation id
// once the attempt finishes.
type ExecutionContext struct {
	AttemptID string          `json:"attempt_id"`
	Job       *Job            `json:"job"`
	Profile   *UserProfile    `json:"profile"`
	Browser   browser.Browser `json:"-"`

	// ConfirmationID is attached by the engine after a successful attempt.
	ConfirmationID string `json:"confirmation_id,omitempty"`
}

// ExecutionResult is the structured outcome of one application attempt.
// Created fresh per attempt; treated as immutable once returned.
type ExecutionResult struct {
	Success            bool                     `json:"success"`
	ExecutionTime      time.Duration            `json:"execution_time"`
	StepsCompleted     int                      `json:"steps_completed"`
	TotalSteps         int                      `json:"total_steps"`
	CaptchaEncountered bool                     `json:"captcha_encountered"`
	Screenshots        []string                 `json:"screenshots,omitempty"`
	Logs               []string                 `json:"logs,omitempty"`
	Metrics            map[string]time.Duration `json:"metrics,omitempty"`
	ApplicationID      string                   `json:"application_id,omitempty"`
	ConfirmationNumber string                   `json:"confirmation_number,omitempty"`
	Error              string                   `json:"error,omitempty"`
}

// PerformanceMetric records the outcome of one attempt for the rolling window.
type PerformanceMetric struct {
	Timestamp time.Time     `json:"timestamp"`
	Success   bool          `json:"success"`
	Duration  time.Duration `json:"duration"`
	ErrorKind string        `json:"error_kind,omitempty"`
	Captcha   bool          `json:"captcha,omitempty"`
}
