package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/talgya/villagers/internal/config"
)

func TestInferConfigThreadsTuning(t *testing.T) {
	cfg := config.Default()
	cfg.Infer.BaseURL = "http://localhost:9999/v1"
	cfg.Infer.Model = "test-model"
	cfg.Infer.Temperature = 0.2
	cfg.Infer.TopP = 0.5
	cfg.Infer.MaxTokens = 400
	cfg.Infer.TimeoutMs = 2000

	c := inferConfig(cfg, "key")
	assert.Equal(t, "key", c.APIKey)
	assert.Equal(t, "http://localhost:9999/v1", c.BaseURL)
	assert.Equal(t, "test-model", c.Model)
	assert.Equal(t, 0.2, c.Temperature)
	assert.Equal(t, 0.5, c.TopP)
	assert.Equal(t, 400, c.MaxTokens)
	assert.Equal(t, 2*time.Second, c.Timeout)
}

func TestInferConfigKeepsDefaultsForZeroValues(t *testing.T) {
	cfg := config.Default()
	cfg.Infer.Temperature = 0
	cfg.Infer.TopP = 0
	cfg.Infer.MaxTokens = 0

	c := inferConfig(cfg, "")
	assert.Equal(t, 0.8, c.Temperature)
	assert.Equal(t, 0.9, c.TopP)
	assert.Equal(t, 1500, c.MaxTokens)
}
