package engine

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// confirmationPatterns match the confirmation codes ATS pages print after a
// successful submission. Each pattern captures the code in group 1.
var confirmationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)confirmation\s*(?:number|code|id)?\s*[:#]?\s*([A-Z0-9][A-Z0-9-]{3,})`),
	regexp.MustCompile(`(?i)reference\s*(?:number|code|id)?\s*[:#]?\s*([A-Z0-9][A-Z0-9-]{3,})`),
	regexp.MustCompile(`(?i)application\s*(?:number|id)\s*[:#]?\s*([A-Z0-9][A-Z0-9-]{3,})`),
	regexp.MustCompile(`(?i)tracking\s*(?:number|code)?\s*[:#]?\s*([A-Z0-9][A-Z0-9-]{3,})`),
}

// ScanConfirmation searches page text for a confirmation code. The second
// return is false when no pattern matched.
func ScanConfirmation(text string) (string, bool) {
	for _, pattern := range confirmationPatterns {
		if match := pattern.FindStringSubmatch(text); match != nil {
			code := strings.TrimRight(match[1], ".,;")
			if code != "" {
				return code, true
			}
		}
	}
	return "", false
}

// GeneratedConfirmationID returns a synthetic confirmation id for successful
// submissions whose page showed no recognizable code.
func GeneratedConfirmationID() string {
	return "GEN-" + strings.ToUpper(uuid.NewString()[:8])
}
