package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joseph-ayodele/reckon/internal/common"
	"github.com/joseph-ayodele/reckon/internal/llm"
)

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature     float32 `json:"temperature"`
	TopP            float32 `json:"topP,omitempty"`
	TopK            int     `json:"topK,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// Generate implements llm.Gateway with one generateContent call.
func (c *Client) Generate(ctx context.Context, p llm.Prompt) (string, error) {
	start := time.Now()
	c.logger.Info("llm.gemini.start",
		"model", c.cfg.Model,
		"flow", p.Flow,
		"prompt_len", len(p.Text),
	)

	body := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: p.Text}}}},
		GenerationConfig: generationConfig{
			Temperature:     c.cfg.Temperature,
			TopP:            c.cfg.TopP,
			TopK:            c.cfg.TopK,
			MaxOutputTokens: c.cfg.MaxOutputTokens,
		},
	}
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/models/" + c.cfg.Model + ":generateContent"
	headers := map[string]string{"x-goog-api-key": c.cfg.APIKey}

	raw, err := llm.SendJSON(ctx, c.http, c.limiter, endpoint, body, headers, c.logger)
	if err != nil {
		c.logger.Error("llm.gemini.http_error", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return "", err
	}

	var resp generateResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		c.logger.Error("llm.gemini.decode_error", "error", err, "raw_bytes", len(raw))
		return "", common.KindError(common.ErrGatewayUnavailable, fmt.Errorf("decode gemini response: %w", err))
	}
	if len(resp.Candidates) == 0 {
		reason := resp.PromptFeedback.BlockReason
		c.logger.Error("llm.gemini.no_candidates", "block_reason", reason)
		return "", common.KindError(common.ErrGatewayUnavailable, fmt.Errorf("no candidates in gemini response (block reason %q)", reason))
	}

	var b strings.Builder
	for _, pt := range resp.Candidates[0].Content.Parts {
		b.WriteString(pt.Text)
	}
	text := b.String()
	if strings.TrimSpace(text) == "" {
		c.logger.Error("llm.gemini.empty_text", "finish_reason", resp.Candidates[0].FinishReason)
		return "", common.KindError(common.ErrGatewayUnavailable, errors.New("empty text in gemini response"))
	}

	c.logger.Info("llm.gemini.ok",
		"chars", len(text),
		"finish_reason", resp.Candidates[0].FinishReason,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}
