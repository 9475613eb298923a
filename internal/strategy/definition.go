// Package strategy provides the declarative strategy definition model:
// domains, selectors, workflow steps, retry policy, and rolling metrics.
// Definitions are pure data; executable behavior lives in internal/engine.
package strategy

import "strings"

// Action is the closed set of step actions a workflow may use.
type Action string

const (
	ActionNavigate   Action = "navigate"
	ActionClick      Action = "click"
	ActionType       Action = "type"
	ActionUpload     Action = "upload"
	ActionSelect     Action = "select"
	ActionWait       Action = "wait"
	ActionValidate   Action = "validate"
	ActionExtract    Action = "extract"
	ActionScreenshot Action = "screenshot"
	ActionCustom     Action = "custom"
)

// KnownActions lists every valid action value.
var KnownActions = []Action{
	ActionNavigate, ActionClick, ActionType, ActionUpload, ActionSelect,
	ActionWait, ActionValidate, ActionExtract, ActionScreenshot, ActionCustom,
}

// Valid reports whether a is one of the closed action set.
func (a Action) Valid() bool {
	for _, known := range KnownActions {
		if a == known {
			return true
		}
	}
	return false
}

// Step is one atomic workflow step: an action, the selectors it may target
// (tried in order, first match wins), the criteria that confirm success, and
// its retry/fallback policy.
type Step struct {
	Name            string           `json:"name" validate:"required"`
	Action          Action           `json:"action" validate:"required"`
	Selectors       []string         `json:"selectors,omitempty"`
	SuccessCriteria []string         `json:"success_criteria,omitempty"`
	RetryCount      int              `json:"retry_count,omitempty" validate:"min=0"`
	Required        bool             `json:"required,omitempty"`
	FallbackActions []FallbackAction `json:"fallback_actions,omitempty"`
	Metadata        map[string]any   `json:"metadata,omitempty"`
}

// FallbackAction is an alternate action tried once, in order, only after a
// step's normal retries are exhausted.
type FallbackAction struct {
	Action    Action         `json:"action"`
	Selectors []string       `json:"selectors,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Selectors groups a site's CSS selectors by purpose.
type Selectors struct {
	ApplyButton  []string            `json:"apply_button,omitempty"`
	FormFields   map[string][]string `json:"form_fields,omitempty"`
	Confirmation []string            `json:"confirmation,omitempty"`
	NextButton   []string            `json:"next_button,omitempty"`
	SubmitButton []string            `json:"submit_button,omitempty"`
}

// Empty reports whether no selector group is populated.
func (s Selectors) Empty() bool {
	return len(s.ApplyButton) == 0 && len(s.FormFields) == 0 &&
		len(s.Confirmation) == 0 && len(s.NextButton) == 0 && len(s.SubmitButton) == 0
}

// Workflow holds the ordered step lists for the phases of one application.
type Workflow struct {
	PreApplication  []Step `json:"pre_application,omitempty"`
	Application     []Step `json:"application,omitempty"`
	PostApplication []Step `json:"post_application,omitempty"`
	ErrorRecovery   []Step `json:"error_recovery,omitempty"`
}

// Empty reports whether the workflow has no steps in any phase.
func (w Workflow) Empty() bool {
	return len(w.PreApplication) == 0 && len(w.Application) == 0 &&
		len(w.PostApplication) == 0 && len(w.ErrorRecovery) == 0
}

// Definition describes one target site: identity, domains, selectors, and
// the ordered workflow the engine runs against it.
type Definition struct {
	ID   string `json:"id" validate:"required"`
	Name string `json:"name" validate:"required"`

	// CompanyDomain is an accepted single-domain alias for Domains in
	// definition files; Normalize folds it into Domains.
	CompanyDomain string   `json:"company_domain,omitempty"`
	Domains       []string `json:"domains,omitempty"`

	Selectors Selectors `json:"selectors"`
	Workflow  Workflow  `json:"workflow"`
	ABTesting bool      `json:"ab_testing,omitempty"`

	// Metrics is the rolling window of recent outcomes for this strategy.
	// It is runtime state, not part of the definition file, and survives
	// definition reloads.
	Metrics *MetricsWindow `json:"-"`
}

// Normalize lower-cases domains, strips "www." prefixes, folds CompanyDomain
// into Domains, and ensures the metrics window exists.
func (d *Definition) Normalize() {
	if d.CompanyDomain != "" {
		d.Domains = append(d.Domains, d.CompanyDomain)
		d.CompanyDomain = ""
	}
	seen := make(map[string]bool, len(d.Domains))
	normalized := d.Domains[:0]
	for _, domain := range d.Domains {
		domain = NormalizeDomain(domain)
		if domain == "" || seen[domain] {
			continue
		}
		seen[domain] = true
		normalized = append(normalized, domain)
	}
	d.Domains = normalized

	if d.Metrics == nil {
		d.Metrics = NewMetricsWindow()
	}
}

// NormalizeDomain lower-cases a hostname and strips a leading "www.".
func NormalizeDomain(domain string) string {
	domain = strings.ToLower(strings.TrimSpace(domain))
	return strings.TrimPrefix(domain, "www.")
}

// Clone returns a deep copy of the definition sharing the same metrics
// window. Reloads swap in clones so in-flight executions keep the definition
// they started with.
func (d *Definition) Clone() *Definition {
	clone := *d
	clone.Domains = append([]string(nil), d.Domains...)
	clone.Selectors = d.Selectors.clone()
	clone.Workflow = Workflow{
		PreApplication:  cloneSteps(d.Workflow.PreApplication),
		Application:     cloneSteps(d.Workflow.Application),
		PostApplication: cloneSteps(d.Workflow.PostApplication),
		ErrorRecovery:   cloneSteps(d.Workflow.ErrorRecovery),
	}
	return &clone
}

func (s Selectors) clone() Selectors {
	out := Selectors{
		ApplyButton:  append([]string(nil), s.ApplyButton...),
		Confirmation: append([]string(nil), s.Confirmation...),
		NextButton:   append([]string(nil), s.NextButton...),
		SubmitButton: append([]string(nil), s.SubmitButton...),
	}
	if s.FormFields != nil {
		out.FormFields = make(map[string][]string, len(s.FormFields))
		for field, sels := range s.FormFields {
			out.FormFields[field] = append([]string(nil), sels...)
		}
	}
	return out
}

func cloneSteps(steps []Step) []Step {
	if steps == nil {
		return nil
	}
	out := make([]Step, len(steps))
	for i, step := range steps {
		out[i] = step
		out[i].Selectors = append([]string(nil), step.Selectors...)
		out[i].SuccessCriteria = append([]string(nil), step.SuccessCriteria...)
		out[i].FallbackActions = append([]FallbackAction(nil), step.FallbackActions...)
		if step.Metadata != nil {
			meta := make(map[string]any, len(step.Metadata))
			for k, v := range step.Metadata {
				meta[k] = v
			}
			out[i].Metadata = meta
		}
	}
	return out
}

// MetadataString returns a string metadata value for a step, or "" if absent.
func (s *Step) MetadataString(key string) string {
	if s.Metadata == nil {
		return ""
	}
	if v, ok := s.Metadata[key].(string); ok {
		return v
	}
	return ""
}

// MetadataInt returns an integer metadata value for a step, or 0 if absent.
// JSON numbers decode as float64, so both forms are accepted.
func (s *Step) MetadataInt(key string) int {
	if s.Metadata == nil {
		return 0
	}
	switch v := s.Metadata[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}
