package app

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/reckon/internal/auth"
	"github.com/joseph-ayodele/reckon/internal/common"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(common.LogConfig{Level: "warn", Format: "json"}, &buf)
	logger.Info("quiet")
	logger.Warn("pipeline.unit.failed", "kind", "GatewayError")
	assert.NotContains(t, buf.String(), "quiet")
	assert.Contains(t, buf.String(), `"msg":"pipeline.unit.failed"`)

	buf.Reset()
	NewLogger(common.LogConfig{Level: "bogus"}, &buf).Info("llm.gateway.request")
	assert.Contains(t, buf.String(), "msg=llm.gateway.request")
}

func TestNewGateway(t *testing.T) {
	g, err := NewGateway(common.LLMConfig{Provider: common.ProviderOpenAI, OpenAIAPIKey: "k"}, nil, nil)
	require.NoError(t, err)
	assert.NotNil(t, g)

	_, err = NewGateway(common.LLMConfig{Provider: "llama"}, nil, nil)
	assert.Error(t, err)
}

func TestBuild(t *testing.T) {
	cfg := &common.Config{
		Database: common.DatabaseConfig{DSN: "file:" + filepath.Join(t.TempDir(), "app.db")},
		LLM:      common.LLMConfig{Provider: common.ProviderGemini, GeminiAPIKey: "k"},
		Auth:     common.AuthConfig{JWTSecret: "secret", BcryptCost: 4},
		Pipeline: common.PipelineConfig{MaxConcurrency: 2},
	}
	a, err := Build(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(a.Close)

	ctx := context.Background()
	sess, err := a.Auth.Signup(ctx, auth.SignupRequest{
		FirstName: "Ada", LastName: "Obi", Email: "ada@example.com", Username: "adaobi", Password: "secret1",
	})
	require.NoError(t, err)

	got, err := a.Users.GetByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, got.ID)

	data, err := a.Export.ExportAnalysesXLSX(ctx, got.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
	assert.NotNil(t, a.Processor)
	assert.NotNil(t, a.Metrics.Registry())
}
