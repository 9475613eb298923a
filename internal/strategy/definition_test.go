package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_DedupsAndLowercases(t *testing.T) {
	def := &Definition{
		ID:      "x",
		Name:    "X",
		Domains: []string{"Example.com", "www.example.com", " example.com ", "other.io"},
	}

	def.Normalize()

	assert.Equal(t, []string{"example.com", "other.io"}, def.Domains)
	assert.NotNil(t, def.Metrics)
}

func TestNormalizeDomain(t *testing.T) {
	assert.Equal(t, "example.com", NormalizeDomain("WWW.Example.COM"))
	assert.Equal(t, "boards.greenhouse.io", NormalizeDomain(" boards.greenhouse.io "))
	assert.Equal(t, "", NormalizeDomain("  "))
}

func TestClone_DeepCopiesButSharesMetrics(t *testing.T) {
	def := &Definition{
		ID:      "x",
		Name:    "X",
		Domains: []string{"example.com"},
		Selectors: Selectors{
			ApplyButton: []string{"#apply"},
			FormFields:  map[string][]string{"email": {"#email"}},
		},
		Workflow: Workflow{
			Application: []Step{{
				Name:      "apply",
				Action:    ActionClick,
				Selectors: []string{"#apply"},
				Metadata:  map[string]any{"key": "value"},
			}},
		},
	}
	def.Normalize()

	clone := def.Clone()

	// Mutating the clone must not leak into the original.
	clone.Domains[0] = "changed.com"
	clone.Selectors.FormFields["email"][0] = "#changed"
	clone.Workflow.Application[0].Selectors[0] = "#changed"
	clone.Workflow.Application[0].Metadata["key"] = "changed"

	assert.Equal(t, "example.com", def.Domains[0])
	assert.Equal(t, "#email", def.Selectors.FormFields["email"][0])
	assert.Equal(t, "#apply", def.Workflow.Application[0].Selectors[0])
	assert.Equal(t, "value", def.Workflow.Application[0].Metadata["key"])

	// The metrics window is shared so history survives reloads.
	require.NotNil(t, clone.Metrics)
	assert.Same(t, def.Metrics, clone.Metrics)
}

func TestActionValid(t *testing.T) {
	for _, action := range KnownActions {
		assert.True(t, action.Valid(), "expected %q to be valid", action)
	}
	assert.False(t, Action("teleport").Valid())
	assert.False(t, Action("").Valid())
}

func TestStepMetadata(t *testing.T) {
	step := &Step{Metadata: map[string]any{
		"url":         "https://example.com",
		"duration_ms": float64(1500), // JSON numbers decode as float64
		"count":       3,
	}}

	assert.Equal(t, "https://example.com", step.MetadataString("url"))
	assert.Equal(t, 1500, step.MetadataInt("duration_ms"))
	assert.Equal(t, 3, step.MetadataInt("count"))
	assert.Equal(t, "", step.MetadataString("missing"))
	assert.Equal(t, 0, step.MetadataInt("missing"))

	empty := &Step{}
	assert.Equal(t, "", empty.MetadataString("url"))
}
