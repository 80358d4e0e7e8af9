package aifallback

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	client := NewClient("test-api-key")
	require.NotNil(t, client)
	assert.Equal(t, ModelGPT4oMini, client.textModel)
	assert.Equal(t, ModelGPT4o, client.visionModel)
}

func TestNewClient_WithOptions(t *testing.T) {
	client := NewClient("test-api-key",
		WithBaseURL("https://custom.api.com/v1"),
		WithTextModel(ModelClaude35Sonnet),
	)
	require.NotNil(t, client)
	assert.Equal(t, ModelClaude35Sonnet, client.textModel)
}

func TestExtractJSON_CodeBlock(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"json code block", "Svaret är:\n```json\n{\"amount\": 1234.56}\n```", `{"amount": 1234.56}`},
		{"generic code block", "```\n{\"amount\": 500}\n```", `{"amount": 500}`},
		{"raw json object", `{"amount": 100}`, `{"amount": 100}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractJSON(tt.input))
		})
	}
}

func TestParseTotalResponse_ValidJSON(t *testing.T) {
	reply := "```json\n{\"amount\": 1250.50, \"confidence\": 0.92, \"reasoning\": \"Att betala-rad\"}\n```"
	result, ok := parseTotalResponse(reply)
	require.True(t, ok)
	assert.True(t, result.Amount.Equal(decimal.NewFromFloat(1250.50)))
	assert.Equal(t, 0.92, result.Confidence)
}

func TestParseTotalResponse_InvalidJSONFails(t *testing.T) {
	_, ok := parseTotalResponse("det kan jag tyvärr inte svara på")
	assert.False(t, ok)
}

func TestParseTotalResponse_ClipsConfidence(t *testing.T) {
	reply := `{"amount": 100, "confidence": 1.5, "reasoning": "x"}`
	result, ok := parseTotalResponse(reply)
	require.True(t, ok)
	assert.Equal(t, 1.0, result.Confidence)
}

func TestClip01(t *testing.T) {
	assert.Equal(t, 0.0, clip01(-0.5))
	assert.Equal(t, 1.0, clip01(1.5))
	assert.Equal(t, 0.5, clip01(0.5))
}

func TestPromptTemplates_NotEmptyAndSwedish(t *testing.T) {
	assert.NotEmpty(t, totalTextSystemPrompt)
	assert.NotEmpty(t, totalVisionSystemPrompt)
	assert.Contains(t, totalTextSystemPrompt, "JSON")
	assert.Contains(t, totalTextSystemPrompt, "faktur")
}

func TestDefaultBaseURL(t *testing.T) {
	assert.Equal(t, "https://openrouter.ai/api/v1", DefaultBaseURL)
}

func TestTotalTextUserPrompt_IncludesCandidatesAndPageContext(t *testing.T) {
	prompt := totalTextUserPrompt("Att betala: 1 250,00 kr", "1250.00", []string{"1250.00", "1000.00"}, "Leveransadress: Storgatan 1")
	assert.Contains(t, prompt, "Att betala: 1 250,00 kr")
	assert.Contains(t, prompt, "1250.00")
	assert.Contains(t, prompt, "1000.00")
	assert.Contains(t, prompt, "Leveransadress: Storgatan 1")
}

func TestTotalTextUserPrompt_OmitsSectionsWhenEmpty(t *testing.T) {
	prompt := totalTextUserPrompt("footer", "0", nil, "")
	assert.NotContains(t, prompt, "Kandidatbelopp")
	assert.NotContains(t, prompt, "Ytterligare sidkontext")
}

func BenchmarkExtractJSON(b *testing.B) {
	input := "Svaret är:\n```json\n{\"amount\": 1234.56, \"confidence\": 0.9}\n```"
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		extractJSON(input)
	}
}
