// Package events provides the fire-and-forget event stream the engine and
// registry emit for external consumers. Events are side effects, never part
// of a return-value contract.
package events

import (
	"sync"
	"time"
)

// Type identifies an event kind.
type Type string

const (
	RegistryInitialized Type = "registry-initialized"
	RegistryError       Type = "registry-error"
	StrategyLoaded      Type = "strategy-loaded"
	StrategyRegistered  Type = "strategy-registered"
	StrategyMatched     Type = "strategy-matched"
	ExecutionStarted    Type = "execution-started"
	StepStarted         Type = "step-started"
	StepCompleted       Type = "step-completed"
	ExecutionCompleted  Type = "execution-completed"
	ExecutionFailed     Type = "execution-failed"
	AIAutomationStart   Type = "ai-automation-start"
	AIAutomationDone    Type = "ai-automation-complete"
	AIAutomationError   Type = "ai-automation-error"
	CaptchaDetected     Type = "captcha-detected"
)

// Event is one emitted occurrence. StrategyID and JobID are set whenever the
// emitter knows them.
type Event struct {
	Type       Type           `json:"type"`
	StrategyID string         `json:"strategy_id,omitempty"`
	JobID      string         `json:"job_id,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
	Fields     map[string]any `json:"fields,omitempty"`
}

// Handler receives emitted events.
type Handler func(Event)

// Emitter fans events out to subscribed handlers. Emission is synchronous;
// a panicking handler is recovered so it cannot break an execution.
type Emitter struct {
	mu       sync.RWMutex
	handlers []Handler
}

// NewEmitter returns an emitter with no subscribers.
func NewEmitter() *Emitter {
	return &Emitter{}
}

// Subscribe registers a handler for all future events.
func (e *Emitter) Subscribe(h Handler) {
	if h == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = append(e.handlers, h)
}

// Emit delivers the event to every subscriber. The timestamp is stamped here
// if the caller left it zero.
func (e *Emitter) Emit(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	e.mu.RLock()
	handlers := append([]Handler(nil), e.handlers...)
	e.mu.RUnlock()

	for _, h := range handlers {
		deliver(h, ev)
	}
}

func deliver(h Handler, ev Event) {
	defer func() {
		_ = recover() // a subscriber must not break the emitter
	}()
	h(ev)
}
