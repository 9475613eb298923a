package vision

import (
	"context"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGeminiResolver_RequiresAPIKey(t *testing.T) {
	_, err := NewGeminiResolver(context.Background(), "", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key")
}

func TestInstructionFor(t *testing.T) {
	captcha := instructionFor(Request{Kind: KindCaptcha})
	assert.Contains(t, captcha, "solution")
	assert.Contains(t, captcha, "unsolvable")

	form := instructionFor(Request{Kind: KindForm})
	assert.Contains(t, form, "form")
	assert.Contains(t, form, "field")

	page := instructionFor(Request{Kind: KindPage})
	assert.Contains(t, page, "page")
}

func TestInstructionFor_IncludesHints(t *testing.T) {
	instruction := instructionFor(Request{
		Kind:  KindForm,
		Hints: map[string]string{"job_url": "https://example.com/jobs/1"},
	})

	assert.Contains(t, instruction, "job_url")
	assert.Contains(t, instruction, "https://example.com/jobs/1")
}

func TestImageFormat(t *testing.T) {
	assert.Equal(t, "png", imageFormat("image/png"))
	assert.Equal(t, "jpeg", imageFormat("image/JPEG"))
	assert.Equal(t, "png", imageFormat(""))
}

func TestExtractTextFromResponse(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []genai.Part{genai.Text("ABC"), genai.Text("123")}}},
		},
	}

	text, err := extractTextFromResponse(resp)
	require.NoError(t, err)
	assert.Equal(t, "ABC123", text)
}

func TestExtractTextFromResponse_Empty(t *testing.T) {
	_, err := extractTextFromResponse(&genai.GenerateContentResponse{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no candidates")

	_, err = extractTextFromResponse(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no content")
}

func TestFirstLine(t *testing.T) {
	assert.Equal(t, "X7K2", firstLine("\n  X7K2\nsecond line"))
	assert.Equal(t, "only", firstLine("only"))
	assert.Equal(t, "", firstLine("  \n \n"))
}
