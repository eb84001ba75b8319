package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onepager/internal/config"
	"onepager/internal/domain"
)

type scriptedGenerator struct {
	fail  map[string]bool
	calls []string
}

func (g *scriptedGenerator) Generate(_ context.Context, lang string) domain.RenderResult {
	g.calls = append(g.calls, lang)
	return domain.RenderResult{Request: domain.RenderRequest{Language: lang}, OK: !g.fail[lang]}
}

func TestRun_AllSucceed(t *testing.T) {
	g := &scriptedGenerator{}
	results, code := Run(context.Background(), []string{"en", "es"}, g)

	assert.Equal(t, ExitSuccess, code)
	assert.Equal(t, []string{"en", "es"}, g.calls)
	require.Len(t, results, 2)
}

func TestRun_FailureDoesNotStopNextLanguage(t *testing.T) {
	g := &scriptedGenerator{fail: map[string]bool{"en": true}}
	results, code := Run(context.Background(), []string{"en", "es"}, g)

	assert.Equal(t, ExitFailure, code)
	assert.Equal(t, []string{"en", "es"}, g.calls)
	assert.False(t, results[0].OK)
	assert.True(t, results[1].OK)
}

func TestRun_CancelledContextSkipsRemaining(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g := &scriptedGenerator{}

	results, code := Run(ctx, []string{"en", "es"}, g)

	assert.Equal(t, ExitFailure, code)
	assert.Empty(t, g.calls)
	require.Len(t, results, 2)
	assert.ErrorIs(t, results[0].Err, domain.ErrRenderCancelled)
}

func TestRun_DuplicateLanguagesRenderOnce(t *testing.T) {
	g := &scriptedGenerator{}
	results, code := Run(context.Background(), []string{"en", "EN", "es", " es", "pt_BR", "pt-BR"}, g)

	assert.Equal(t, ExitSuccess, code)
	assert.Equal(t, []string{"en", "es", "pt_BR"}, g.calls)
	assert.Len(t, results, 3)
}

func TestSetup(t *testing.T) {
	cfg := config.Default()
	cfg.Render.ChromePath = "/bin/true"
	d, err := Setup(cfg)
	require.NoError(t, err)
	assert.NotNil(t, d)

	cfg.Verify.Enabled = true
	cfg.Verify.Backend = "pdfcpu"
	_, err = Setup(cfg)
	require.NoError(t, err)

	cfg.Render.Engine = "webkit"
	_, err = Setup(cfg)
	assert.ErrorIs(t, err, domain.ErrUnsupportedEngine)
}
