package aifallback

import (
	"context"
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/rezonia/faktura-processor/internal/model"
)

// TotalExtraction is the parsed result of an AI total-amount extraction.
type TotalExtraction struct {
	Amount     decimal.Decimal
	Confidence float64
	Reasoning  string
}

type totalResponse struct {
	Amount     json.Number `json:"amount"`
	Confidence float64     `json:"confidence"`
	Reasoning  string      `json:"reasoning"`
}

// ExtractTotalText asks the text model to determine the total from the
// footer text, the Σ line totals, up to ten already-scored candidates, and
// page context. Any failure returns (nil, nil) — the caller is expected to
// fall back to the heuristic result, not treat this as fatal.
func (c *Client) ExtractTotalText(ctx context.Context, footerText, linesSum string, candidates []string, pageContext string) (*TotalExtraction, error) {
	userPrompt := totalTextUserPrompt(footerText, linesSum, candidates, pageContext)

	reply, err := c.chatText(ctx, c.textModel, totalTextSystemPrompt, userPrompt)
	if err != nil {
		return nil, nil
	}

	result, ok := parseTotalResponse(reply)
	if !ok {
		// one retry: ask again verbatim, LLMs are non-deterministic on format
		reply, err = c.chatText(ctx, c.textModel, totalTextSystemPrompt, userPrompt)
		if err != nil {
			return nil, nil
		}
		result, ok = parseTotalResponse(reply)
		if !ok {
			return nil, nil
		}
	}

	return result, nil
}

// ExtractTotalVision asks the vision model to read the total off a rendered
// page image. Same any-error-returns-nil contract as ExtractTotalText.
func (c *Client) ExtractTotalVision(ctx context.Context, image model.ImageHandle, pageContext string) (*TotalExtraction, error) {
	userPrompt := totalVisionUserPrompt(pageContext)

	reply, err := c.chatWithImage(ctx, c.visionModel, totalVisionSystemPrompt, userPrompt, image.Bytes, "image/png")
	if err != nil {
		return nil, nil
	}

	result, ok := parseTotalResponse(reply)
	if !ok {
		reply, err = c.chatWithImage(ctx, c.visionModel, totalVisionSystemPrompt, userPrompt, image.Bytes, "image/png")
		if err != nil {
			return nil, nil
		}
		result, ok = parseTotalResponse(reply)
		if !ok {
			return nil, nil
		}
	}

	return result, nil
}

func parseTotalResponse(reply string) (*TotalExtraction, bool) {
	raw := extractJSON(reply)

	var resp totalResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, false
	}

	amount, err := decimal.NewFromString(resp.Amount.String())
	if err != nil {
		return nil, false
	}

	return &TotalExtraction{
		Amount:     amount,
		Confidence: clip01(resp.Confidence),
		Reasoning:  resp.Reasoning,
	}, true
}

func clip01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
