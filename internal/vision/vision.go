// Package vision provides the AI-vision capability the engine consumes for
// captcha resolution and page/form understanding. The engine depends only on
// the Resolver interface; the Gemini client below is one implementation.
package vision

import "context"

// AnalysisKind selects what the resolver should do with the image.
type AnalysisKind string

const (
	// KindCaptcha asks the resolver to solve a captcha challenge.
	KindCaptcha AnalysisKind = "captcha-resolution"
	// KindPage asks for a free-text analysis of the page.
	KindPage AnalysisKind = "page-analysis"
	// KindForm asks for a free-text analysis of a form and its fields.
	KindForm AnalysisKind = "form-analysis"
)

// Request carries an image and context hints to the resolver.
type Request struct {
	Image     []byte
	MediaType string // e.g. "image/png", "image/jpeg"
	Kind      AnalysisKind
	Hints     map[string]string
}

// Analysis is the resolver's response. CaptchaSolution is set only for
// KindCaptcha requests; Text carries free-form analysis otherwise.
type Analysis struct {
	Success         bool
	CaptchaSolution string
	Text            string
}

// Resolver is an abstraction over vision-capable AI providers.
type Resolver interface {
	// Analyze submits an image for the requested kind of analysis.
	Analyze(ctx context.Context, req Request) (*Analysis, error)
	// Close releases any resources held by the resolver.
	Close() error
}
