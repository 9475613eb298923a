package observability

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/apply-agent/internal/registry"
	"github.com/jonathan/apply-agent/internal/strategy"
	"github.com/jonathan/apply-agent/internal/types"
)

func TestPrintMatch(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	job := &types.Job{
		Title: "Senior Engineer",
		URL:   "https://boards.greenhouse.io/acme/jobs/123",
	}
	match := registry.Match{
		Matched:    true,
		Strategy:   &strategy.Definition{ID: "greenhouse"},
		Confidence: 0.95,
		Alternates: []*strategy.Definition{{ID: "lever"}},
	}

	p.PrintMatch(job, match)
	output := buf.String()

	assert.Contains(t, output, "STRATEGY MATCH")
	assert.Contains(t, output, "Senior Engineer")
	assert.Contains(t, output, "greenhouse")
	assert.Contains(t, output, "0.95")
	assert.Contains(t, output, "lever")
}

func TestPrintMatch_NoMatch(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintMatch(nil, registry.Match{})
	output := buf.String()

	assert.Contains(t, output, "none matched")
}

func TestPrintResult(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	result := &types.ExecutionResult{
		Success:            true,
		StepsCompleted:     5,
		TotalSteps:         5,
		ExecutionTime:      3200 * time.Millisecond,
		CaptchaEncountered: true,
		ConfirmationNumber: "CONF-12345",
		Logs:               []string{"opened form", "completed step personal-info"},
	}

	p.PrintResult(result)
	output := buf.String()

	assert.Contains(t, output, "EXECUTION RESULT")
	assert.Contains(t, output, "SUCCESS")
	assert.Contains(t, output, "5/5")
	assert.Contains(t, output, "CONF-12345")
	assert.Contains(t, output, "Captcha:   encountered")
	assert.Contains(t, output, "completed step personal-info")
}

func TestPrintResult_Failed(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	result := &types.ExecutionResult{
		Success: false,
		Error:   "step apply failed after 3 attempts",
	}

	p.PrintResult(result)
	output := buf.String()

	assert.Contains(t, output, "FAILED")
	assert.Contains(t, output, "step apply failed")
}

func TestPrintResult_Nil(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintResult(nil)

	assert.Empty(t, buf.String())
}

func TestPrintMetrics(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	window := strategy.NewMetricsWindow()
	window.Append(types.PerformanceMetric{Success: true, Duration: 2 * time.Second})
	window.Append(types.PerformanceMetric{Success: false, Duration: 4 * time.Second})

	p.PrintMetrics("greenhouse", window)
	output := buf.String()

	assert.Contains(t, output, "STRATEGY METRICS")
	assert.Contains(t, output, "greenhouse")
	assert.Contains(t, output, "Attempts:     2")
	assert.Contains(t, output, "50%")
	assert.Contains(t, output, "3s")
}

func TestPrintMetrics_Empty(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintMetrics("greenhouse", strategy.NewMetricsWindow())
	output := buf.String()

	assert.Contains(t, output, "no recorded attempts")
}

func TestPrintDefinitions(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	defs := []*strategy.Definition{
		{ID: "greenhouse", Domains: []string{"greenhouse.io", "boards.greenhouse.io"}},
		{ID: "lever", Domains: []string{"lever.co"}},
	}

	p.PrintDefinitions(defs)
	output := buf.String()

	assert.Contains(t, output, "REGISTERED STRATEGIES")
	assert.Contains(t, output, "Total: 2")
	assert.Contains(t, output, "greenhouse.io")
	assert.Contains(t, output, "lever")
}

func TestPrintBox_LongLines(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	result := &types.ExecutionResult{
		Success: false,
		Error:   "a very long error message that should be truncated to fit inside the output box without breaking the border alignment",
	}

	p.PrintResult(result)
	output := buf.String()

	// Should contain box characters
	assert.True(t, strings.Contains(output, "┌"))
	assert.True(t, strings.Contains(output, "└"))
	assert.True(t, strings.Contains(output, "│"))
}
