package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.Model)
	assert.Equal(t, "local", cfg.DocConv.Provider)
	assert.Equal(t, "pdftotext", cfg.DocConv.PdfToTextPath)
	assert.Equal(t, "pixtral-large-latest", cfg.DocConv.MistralModel)
	assert.Equal(t, float64(2), cfg.DocConv.RatePerSecond)
	assert.Equal(t, int64(8192), cfg.Report.MaxTokens)
	assert.Equal(t, 500, cfg.Import.BatchSize)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("MARKET_STORE_DRIVER", "sqlite")
	t.Setenv("MARKET_LOG_LEVEL", "debug")
	t.Setenv("MARKET_REPORT_MAX_TOKENS", "4096")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, int64(4096), cfg.Report.MaxTokens)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))

	err := InitLogger(LogConfig{Level: "loud"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse log level")
}
