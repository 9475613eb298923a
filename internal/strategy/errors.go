package strategy

import (
	"fmt"
	"strings"
)

// ValidationError represents a malformed strategy definition: missing
// required fields, an unknown action, or a schema violation.
type ValidationError struct {
	Message string
	Fields  []string
	Cause   error
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid strategy definition: %s", e.Message)
	if len(e.Fields) > 0 {
		msg += " (" + strings.Join(e.Fields, ", ") + ")"
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ValidationError) Unwrap() error {
	return e.Cause
}

// LoadError represents a failure reading or parsing a definition file.
type LoadError struct {
	Path    string
	Message string
	Cause   error
}

func (e *LoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to load strategy %s: %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("failed to load strategy %s: %s", e.Path, e.Message)
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}
