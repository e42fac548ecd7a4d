package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/reckon/constants"
	"github.com/joseph-ayodele/reckon/internal/common"
	"github.com/joseph-ayodele/reckon/internal/llm"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		APIKey:          "test-key",
		BaseURL:         srv.URL,
		Model:           "gemini-test",
		Temperature:     0.7,
		TopP:            0.8,
		TopK:            40,
		MaxOutputTokens: 2048,
	}, nil)
}

func TestGenerate_OK(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-test:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Contents, 1)
		assert.Equal(t, "analyze this", req.Contents[0].Parts[0].Text)
		assert.InDelta(t, 0.7, req.GenerationConfig.Temperature, 1e-6)
		assert.InDelta(t, 0.8, req.GenerationConfig.TopP, 1e-6)
		assert.Equal(t, 40, req.GenerationConfig.TopK)
		assert.Equal(t, 2048, req.GenerationConfig.MaxOutputTokens)

		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"{\"summary\":"},{"text":"\"ok\"}"}]},"finishReason":"STOP"}]}`))
	})

	out, err := c.Generate(context.Background(), llm.Prompt{Flow: constants.FlowDocument, Text: "analyze this"})
	require.NoError(t, err)
	assert.Equal(t, `{"summary":"ok"}`, out)
}

func TestGenerate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   error
	}{
		{"quota", http.StatusTooManyRequests, `{"error":{"code":429,"message":"quota exceeded"}}`, common.ErrGatewayError},
		{"bad key", http.StatusBadRequest, `{"error":{"code":400,"message":"API key not valid"}}`, common.ErrGatewayError},
		{"blocked", http.StatusOK, `{"promptFeedback":{"blockReason":"SAFETY"}}`, common.ErrGatewayUnavailable},
		{"empty text", http.StatusOK, `{"candidates":[{"content":{"parts":[{"text":"  "}]}}]}`, common.ErrGatewayUnavailable},
		{"garbage body", http.StatusOK, `<html>`, common.ErrGatewayUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				calls++
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := c.Generate(context.Background(), llm.Prompt{Text: "x"})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.kind)
			assert.Equal(t, 1, calls)
		})
	}
}

func TestGenerate_ProviderMessageKept(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"message":"permission denied"}}`))
	})

	_, err := c.Generate(context.Background(), llm.Prompt{Text: "x"})
	var se *llm.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusForbidden, se.Status)
	assert.Equal(t, "permission denied", se.Message)
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(Config{}, nil)
	assert.Equal(t, "https://generativelanguage.googleapis.com/v1beta", c.cfg.BaseURL)
	assert.Equal(t, "gemini-1.5-flash", c.cfg.Model)
	assert.Nil(t, c.limiter)
}
