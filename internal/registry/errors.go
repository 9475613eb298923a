package registry

import "fmt"

// NoStrategyFoundError indicates the registry could not resolve any strategy
// for a job and no fallback is configured. This is the only registry failure
// surfaced as an error; everything else becomes a failed ExecutionResult.
type NoStrategyFoundError struct {
	Domain string
}

func (e *NoStrategyFoundError) Error() string {
	if e.Domain == "" {
		return "no strategy found and no fallback configured"
	}
	return fmt.Sprintf("no strategy found for domain %s and no fallback configured", e.Domain)
}
