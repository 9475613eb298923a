package vision

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// DefaultModel is the Gemini model used for vision requests.
const DefaultModel = "gemini-2.0-flash"

// GeminiResolver implements Resolver for Google Gemini.
type GeminiResolver struct {
	client *genai.Client
	model  string
}

var _ Resolver = (*GeminiResolver)(nil)

// NewGeminiResolver creates a new Gemini-backed resolver.
func NewGeminiResolver(ctx context.Context, apiKey, model string) (*GeminiResolver, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if model == "" {
		model = DefaultModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiResolver{client: client, model: model}, nil
}

// Analyze submits the image and a kind-specific instruction to the model.
func (r *GeminiResolver) Analyze(ctx context.Context, req Request) (*Analysis, error) {
	if len(req.Image) == 0 {
		return nil, fmt.Errorf("image is required")
	}

	model := r.client.GenerativeModel(r.model)
	model.SetTemperature(0.1) // Low temperature for consistent output

	parts := []genai.Part{
		genai.ImageData(imageFormat(req.MediaType), req.Image),
		genai.Text(instructionFor(req)),
	}

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, fmt.Errorf("failed to generate analysis: %w", err)
	}

	text, err := extractTextFromResponse(resp)
	if err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)

	analysis := &Analysis{Success: text != ""}
	if req.Kind == KindCaptcha {
		analysis.CaptchaSolution = firstLine(text)
		analysis.Success = analysis.CaptchaSolution != "" &&
			!strings.EqualFold(analysis.CaptchaSolution, "unsolvable")
	} else {
		analysis.Text = text
	}
	return analysis, nil
}

// Close releases resources held by the resolver.
func (r *GeminiResolver) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// instructionFor builds the instruction text for a request kind.
func instructionFor(req Request) string {
	var sb strings.Builder
	switch req.Kind {
	case KindCaptcha:
		sb.WriteString("Read the challenge in this image and answer it. ")
		sb.WriteString("Reply with only the solution text, nothing else. ")
		sb.WriteString("If it cannot be solved from the image alone, reply with exactly: unsolvable.")
	case KindForm:
		sb.WriteString("Describe the form in this screenshot: each visible field, ")
		sb.WriteString("its label, its input type, and whether it appears required.")
	default:
		sb.WriteString("Describe this page screenshot: its purpose, main interactive ")
		sb.WriteString("elements, and any visible error or confirmation messages.")
	}

	for key, value := range req.Hints {
		sb.WriteString(fmt.Sprintf("\nHint - %s: %s", key, value))
	}
	return sb.String()
}

// imageFormat converts a media type like "image/png" to the genai format name.
func imageFormat(mediaType string) string {
	format := strings.TrimPrefix(strings.ToLower(mediaType), "image/")
	if format == "" {
		return "png"
	}
	return format
}

// extractTextFromResponse extracts text from a Gemini API response.
func extractTextFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("no content in response")
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("no text parts in response")
	}
	return strings.Join(parts, ""), nil
}

// firstLine returns the first non-empty line of s.
func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			return line
		}
	}
	return ""
}
