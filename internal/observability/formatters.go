// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jonathan/apply-agent/internal/registry"
	"github.com/jonathan/apply-agent/internal/strategy"
	"github.com/jonathan/apply-agent/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintMatch outputs how a job's domain resolved to a strategy.
func (p *Printer) PrintMatch(job *types.Job, match registry.Match) {
	var sb strings.Builder

	if job != nil {
		sb.WriteString(fmt.Sprintf("Job:        %s\n", job.Title))
		sb.WriteString(fmt.Sprintf("URL:        %s\n", job.URL))
	}
	if match.Matched {
		sb.WriteString(fmt.Sprintf("Strategy:   %s\n", match.Strategy.ID))
		sb.WriteString(fmt.Sprintf("Confidence: %.2f\n", match.Confidence))
	} else {
		sb.WriteString("Strategy:   none matched\n")
	}

	if len(match.Alternates) > 0 {
		sb.WriteString("\nAlternates:\n")
		count := min(len(match.Alternates), maxItemsToShow)
		for i := 0; i < count; i++ {
			sb.WriteString(fmt.Sprintf("  • %s\n", match.Alternates[i].ID))
		}
		if len(match.Alternates) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(match.Alternates)-maxItemsToShow))
		}
	}

	p.printBox("STRATEGY MATCH", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintResult outputs a human-readable summary of one execution attempt.
func (p *Printer) PrintResult(result *types.ExecutionResult) {
	if result == nil {
		return
	}

	var sb strings.Builder

	status := "FAILED"
	if result.Success {
		status = "SUCCESS"
	}
	sb.WriteString(fmt.Sprintf("Status:    %s\n", status))
	sb.WriteString(fmt.Sprintf("Steps:     %d/%d\n", result.StepsCompleted, result.TotalSteps))
	sb.WriteString(fmt.Sprintf("Duration:  %s\n", result.ExecutionTime.Round(time.Millisecond)))
	if result.CaptchaEncountered {
		sb.WriteString("Captcha:   encountered\n")
	}
	if result.ConfirmationNumber != "" {
		sb.WriteString(fmt.Sprintf("Confirmed: %s\n", result.ConfirmationNumber))
	}
	if result.Error != "" {
		sb.WriteString(fmt.Sprintf("Error:     %s\n", result.Error))
	}

	if len(result.Logs) > 0 {
		sb.WriteString("\nLog:\n")
		logs := result.Logs
		if len(logs) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... %d earlier entries\n", len(logs)-maxItemsToShow))
			logs = logs[len(logs)-maxItemsToShow:]
		}
		for _, line := range logs {
			sb.WriteString(fmt.Sprintf("  • %s\n", line))
		}
	}

	p.printBox("EXECUTION RESULT", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintMetrics outputs the rolling performance window for one strategy.
func (p *Printer) PrintMetrics(id string, window *strategy.MetricsWindow) {
	if window == nil || window.Len() == 0 {
		p.printBox("STRATEGY METRICS", fmt.Sprintf("%s: no recorded attempts", id))
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Strategy:     %s\n", id))
	sb.WriteString(fmt.Sprintf("Attempts:     %d\n", window.Len()))
	sb.WriteString(fmt.Sprintf("Success rate: %.0f%%\n", window.SuccessRate()*100))
	sb.WriteString(fmt.Sprintf("Avg duration: %s", window.AverageDuration().Round(time.Millisecond)))

	p.printBox("STRATEGY METRICS", sb.String())
}

// PrintDefinitions outputs the registered strategies and their domains.
func (p *Printer) PrintDefinitions(defs []*strategy.Definition) {
	if len(defs) == 0 {
		p.printBox("REGISTERED STRATEGIES", "none")
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Total: %d\n\n", len(defs)))

	for i, def := range defs {
		domains := strings.Join(def.Domains, ", ")
		if len(domains) > 40 {
			domains = domains[:37] + "..."
		}
		sb.WriteString(fmt.Sprintf("• %s\n", def.ID))
		sb.WriteString(fmt.Sprintf("  %s\n", domains))
		if i < len(defs)-1 {
			sb.WriteString("\n")
		}
	}

	p.printBox("REGISTERED STRATEGIES", strings.TrimSuffix(sb.String(), "\n"))
}
