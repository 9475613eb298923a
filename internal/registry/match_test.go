package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/apply-agent/internal/strategy"
)

func TestJobHost(t *testing.T) {
	assert.Equal(t, "boards.greenhouse.io", jobHost("https://boards.greenhouse.io/acme/jobs/123"))
	assert.Equal(t, "example.com", jobHost("https://WWW.Example.com/careers?id=1"))
	assert.Equal(t, "jobs.lever.co", jobHost("jobs.lever.co/acme"))
	assert.Equal(t, "", jobHost(""))
}

func TestExactDomainMatch(t *testing.T) {
	def := &strategy.Definition{Domains: []string{"greenhouse.io"}}

	assert.True(t, exactDomainMatch("greenhouse.io", def))
	// Substring in either direction counts as exact.
	assert.True(t, exactDomainMatch("boards.greenhouse.io", def))
	assert.True(t, exactDomainMatch("house.io", &strategy.Definition{Domains: []string{"boards.greenhouse.io"}}))
	assert.False(t, exactDomainMatch("lever.co", def))
}

func TestTokenScore(t *testing.T) {
	// workday.com vs myworkday.com: "workday" is contained in "myworkday"
	// and "com" matches "com", so 2 matches over max(2, 2) tokens.
	assert.InDelta(t, 1.0, tokenScore("myworkday.com", "workday.com"), 0.001)

	// Disjoint tokens score zero.
	assert.Zero(t, tokenScore("lever.co", "greenhouse.io"))

	// Empty sides score zero.
	assert.Zero(t, tokenScore("", "workday.com"))
}

func TestSplitDomainTokens(t *testing.T) {
	assert.Equal(t, []string{"boards", "greenhouse", "io"}, splitDomainTokens("boards.greenhouse.io"))
	assert.Equal(t, []string{"my", "jobs", "example", "com"}, splitDomainTokens("my-jobs.example.com"))
	assert.Empty(t, splitDomainTokens("..."))
}

func TestSortScored(t *testing.T) {
	candidates := []scoredDef{
		{def: &strategy.Definition{ID: "b"}, score: 0.7},
		{def: &strategy.Definition{ID: "a"}, score: 0.9},
		{def: &strategy.Definition{ID: "c"}, score: 0.7},
	}

	sortScored(candidates)

	assert.Equal(t, "a", candidates[0].def.ID)
	// Equal scores tie-break by id for deterministic ordering.
	assert.Equal(t, "b", candidates[1].def.ID)
	assert.Equal(t, "c", candidates[2].def.ID)
}
