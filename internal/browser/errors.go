package browser

import "fmt"

// ElementNotFoundError indicates no element matching the selector became
// visible within the timeout.
type ElementNotFoundError struct {
	Selector string
	Cause    error
}

func (e *ElementNotFoundError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("element not found: %s: %v", e.Selector, e.Cause)
	}
	return fmt.Sprintf("element not found: %s", e.Selector)
}

func (e *ElementNotFoundError) Unwrap() error {
	return e.Cause
}
