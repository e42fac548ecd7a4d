package openai

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

// Generate implements llm.Gateway using a single-message chat/completions call.
func (c *Client) Generate(ctx context.Context, p llm.Prompt) (string, error) {
	start := time.Now()
	c.logger.Info("llm.openai.start",
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"flow", p.Flow,
		"prompt_len", len(p.Text),
	)

	body := map[string]any{
		"model":       c.cfg.Model,
		"temperature": c.cfg.Temperature,
		"messages": []map[string]any{
			{"role": "user", "content": p.Text},
		},
	}
	if c.cfg.MaxTokens > 0 {
		body["max_tokens"] = c.cfg.MaxTokens
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
	raw, err := llm.SendJSON(ctx, c.http, c.limiter, endpoint, body, headers, c.logger)
	if err != nil {
		c.logger.Error("llm.openai.http_error",
			"error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.logger.Error("llm.openai.decode_error", "error", err, "raw_bytes", len(raw))
		return "", common.KindError(common.ErrGatewayUnavailable, fmt.Errorf("decode openai response: %w", err))
	}
	if len(cc.Choices) == 0 {
		c.logger.Error("llm.openai.no_choices", "raw", string(raw))
		return "", common.KindError(common.ErrGatewayUnavailable, errors.New("no choices in openai response"))
	}
	text := cc.Choices[0].Message.Content
	if strings.TrimSpace(text) == "" {
		c.logger.Error("llm.openai.empty_content", "finish_reason", cc.Choices[0].FinishReason)
		return "", common.KindError(common.ErrGatewayUnavailable, errors.New("empty content in openai response"))
	}

	c.logger.Info("llm.openai.ok",
		"chars", len(text),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}
