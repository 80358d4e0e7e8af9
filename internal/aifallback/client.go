// Package aifallback wraps an OpenAI-compatible chat API for the two AI
// escalation capabilities the retry ladder calls on: text-based total
// extraction and vision-based total extraction from a rendered page image.
package aifallback

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
)

const (
	DefaultBaseURL = "https://openrouter.ai/api/v1"
	DefaultTimeout = 120 * time.Second
)

const (
	ModelClaude35Sonnet = "anthropic/claude-3.5-sonnet"
	ModelGPT4oMini      = "openai/gpt-4o-mini"
	ModelGPT4o          = "openai/gpt-4o"
)

// Client handles communication with an OpenAI-compatible chat completions API.
type Client struct {
	client       openai.Client
	visionClient openai.Client
	textModel    string
	visionModel  string
}

// visionHeaderTransport tags outbound vision requests for gateway routing.
type visionHeaderTransport struct {
	base http.RoundTripper
}

func (t *visionHeaderTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("Copilot-Vision-Request", "true")
	if t.base != nil {
		return t.base.RoundTrip(req)
	}
	return http.DefaultTransport.RoundTrip(req)
}

// ClientOption configures the Client.
type ClientOption func(*clientConfig)

type clientConfig struct {
	baseURL     string
	timeout     time.Duration
	textModel   string
	visionModel string
}

func WithBaseURL(url string) ClientOption {
	return func(cfg *clientConfig) { cfg.baseURL = url }
}

func WithTimeout(timeout time.Duration) ClientOption {
	return func(cfg *clientConfig) { cfg.timeout = timeout }
}

func WithTextModel(model string) ClientOption {
	return func(cfg *clientConfig) { cfg.textModel = model }
}

func WithVisionModel(model string) ClientOption {
	return func(cfg *clientConfig) { cfg.visionModel = model }
}

// NewClient builds a Client against an OpenAI-compatible endpoint.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	cfg := &clientConfig{
		baseURL:     DefaultBaseURL,
		timeout:     DefaultTimeout,
		textModel:   ModelGPT4oMini,
		visionModel: ModelGPT4o,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	textOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(cfg.baseURL),
		option.WithHTTPClient(&http.Client{Timeout: cfg.timeout}),
		option.WithHeader("HTTP-Referer", "https://github.com/rezonia/faktura-processor"),
		option.WithHeader("X-Title", "Faktura Processor"),
	}

	visionHTTPClient := &http.Client{
		Timeout:   cfg.timeout,
		Transport: &visionHeaderTransport{base: http.DefaultTransport},
	}
	visionOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(cfg.baseURL),
		option.WithHTTPClient(visionHTTPClient),
		option.WithHeader("HTTP-Referer", "https://github.com/rezonia/faktura-processor"),
		option.WithHeader("X-Title", "Faktura Processor"),
	}

	return &Client{
		client:       openai.NewClient(textOpts...),
		visionClient: openai.NewClient(visionOpts...),
		textModel:    cfg.textModel,
		visionModel:  cfg.visionModel,
	}
}

func (c *Client) chatText(ctx context.Context, model, systemPrompt, userPrompt string) (string, error) {
	messages := []openai.ChatCompletionMessageParamUnion{}
	if systemPrompt != "" {
		messages = append(messages, openai.SystemMessage(systemPrompt))
	}
	messages = append(messages, openai.UserMessage(userPrompt))

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       model,
		Messages:    messages,
		MaxTokens:   param.NewOpt[int64](1024),
		Temperature: param.NewOpt[float64](0.0),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *Client) chatWithImage(ctx context.Context, model, systemPrompt, userPrompt string, imageData []byte, mimeType string) (string, error) {
	b64 := base64.StdEncoding.EncodeToString(imageData)
	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, b64)

	messages := []openai.ChatCompletionMessageParamUnion{}
	if systemPrompt != "" {
		messages = append(messages, openai.SystemMessage(systemPrompt))
	}

	contentParts := []openai.ChatCompletionContentPartUnionParam{
		openai.TextContentPart(userPrompt),
		openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL}),
	}
	messages = append(messages, openai.UserMessage(contentParts))

	resp, err := c.visionClient.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       model,
		Messages:    messages,
		MaxTokens:   param.NewOpt[int64](1024),
		Temperature: param.NewOpt[float64](0.0),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}

// extractJSON pulls a JSON object out of a markdown-fenced or raw LLM reply.
func extractJSON(response string) string {
	if start := strings.Index(response, "```json"); start != -1 {
		start += 7
		if end := strings.Index(response[start:], "```"); end != -1 {
			return strings.TrimSpace(response[start : start+end])
		}
	}
	if start := strings.Index(response, "```"); start != -1 {
		start += 3
		if nl := strings.Index(response[start:], "\n"); nl != -1 {
			start += nl + 1
		}
		if end := strings.Index(response[start:], "```"); end != -1 {
			return strings.TrimSpace(response[start : start+end])
		}
	}
	response = strings.TrimSpace(response)
	if (strings.HasPrefix(response, "{") && strings.HasSuffix(response, "}")) ||
		(strings.HasPrefix(response, "[") && strings.HasSuffix(response, "]")) {
		return response
	}
	return response
}
