package registry

import (
	"net/url"
	"sort"
	"strings"

	"github.com/jonathan/apply-agent/internal/strategy"
)

// Confidence levels for the three resolution tiers.
const (
	ConfidenceExact    = 0.95
	ConfidenceFuzzy    = 0.8
	ConfidenceFallback = 0.5
)

// fuzzyThreshold is the minimum token-containment score for a fuzzy match.
const fuzzyThreshold = 0.6

// Match is the outcome of strategy resolution for one job. Absence of a
// match is represented here, never as an error.
type Match struct {
	Matched    bool
	Strategy   *strategy.Definition
	Confidence float64
	Alternates []*strategy.Definition
}

// jobHost extracts and normalizes the hostname from a job URL. A bare domain
// without a scheme is accepted as-is.
func jobHost(jobURL string) string {
	parsed, err := url.Parse(jobURL)
	if err == nil && parsed.Host != "" {
		return strategy.NormalizeDomain(parsed.Hostname())
	}
	// Not URL-shaped; treat the whole string as a host.
	host := jobURL
	if i := strings.IndexAny(host, "/?#"); i >= 0 {
		host = host[:i]
	}
	return strategy.NormalizeDomain(host)
}

// exactDomainMatch reports whether the job host matches one of the
// definition's domains exactly or by substring in either direction.
func exactDomainMatch(host string, def *strategy.Definition) bool {
	for _, domain := range def.Domains {
		if domain == host {
			return true
		}
		if domain != "" && host != "" &&
			(strings.Contains(host, domain) || strings.Contains(domain, host)) {
			return true
		}
	}
	return false
}

// domainScore is the token-containment similarity between the job host and
// the definition's best-scoring domain.
//
// The formula is kept exactly as documented even though short tokens can
// produce asymmetric scores: every (job token, domain token) pair where one
// token contains the other counts once, divided by the larger token count.
func domainScore(host string, def *strategy.Definition) float64 {
	best := 0.0
	for _, domain := range def.Domains {
		if score := tokenScore(host, domain); score > best {
			best = score
		}
	}
	return best
}

func tokenScore(a, b string) float64 {
	tokensA := splitDomainTokens(a)
	tokensB := splitDomainTokens(b)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}

	matches := 0
	for _, ta := range tokensA {
		for _, tb := range tokensB {
			if strings.Contains(ta, tb) || strings.Contains(tb, ta) {
				matches++
			}
		}
	}

	denom := len(tokensA)
	if len(tokensB) > denom {
		denom = len(tokensB)
	}
	return float64(matches) / float64(denom)
}

// splitDomainTokens tokenizes a domain on "." and "-", dropping empties.
func splitDomainTokens(domain string) []string {
	parts := strings.FieldsFunc(domain, func(r rune) bool {
		return r == '.' || r == '-'
	})
	tokens := parts[:0]
	for _, part := range parts {
		if part != "" {
			tokens = append(tokens, part)
		}
	}
	return tokens
}

// scoredDef pairs a definition with its fuzzy score for sorting.
type scoredDef struct {
	def   *strategy.Definition
	score float64
}

// sortScored orders candidates by descending score, ties broken by id for
// deterministic results.
func sortScored(candidates []scoredDef) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].def.ID < candidates[j].def.ID
	})
}
