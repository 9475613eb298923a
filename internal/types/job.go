// Package types provides type definitions for structured data used throughout the apply-agent system.
//
//nolint:revive // types is a standard Go package name pattern
package types

// Job represents a single job posting to apply to
type Job struct {
	ID      string `json:"id"`
	Title   string `json:"title,omitempty"`
	Company string `json:"company,omitempty"`
	URL     string `json:"url"`
}

// UserProfile represents the applicant's contact info, documents, and preferences
type UserProfile struct {
	FirstName       string      `json:"first_name"`
	LastName        string      `json:"last_name"`
	Email           string      `json:"email"`
	Phone           string      `json:"phone,omitempty"`
	LinkedIn        string      `json:"linkedin,omitempty"`
	Website         string      `json:"website,omitempty"`
	Location        string      `json:"location,omitempty"`
	ResumePath      string      `json:"resume_path"`
	CoverLetterPath string      `json:"cover_letter_path,omitempty"`
	DesiredSalary   string      `json:"desired_salary,omitempty"`
	Preferences     Preferences `json:"preferences,omitempty"`
}

// Preferences controls per-user automation behavior
type Preferences struct {
	// AIAutomation enables the AI-driven automation path when a vision
	// resolver is attached. nil means "use the default" (enabled).
	AIAutomation *bool `json:"ai_automation,omitempty"`
}

// AIAutomationEnabled reports whether the AI path may be attempted.
// Only an explicit false disables it.
func (p Preferences) AIAutomationEnabled() bool {
	return p.AIAutomation == nil || *p.AIAutomation
}

// FullName returns the applicant's display name
func (u *UserProfile) FullName() string {
	if u.FirstName == "" {
		return u.LastName
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
