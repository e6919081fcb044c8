package cmd

import (
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/KaramelBytes/salesloom-cli/internal/ai"
	"github.com/KaramelBytes/salesloom-cli/internal/loader"
	"github.com/KaramelBytes/salesloom-cli/internal/qa"
	"github.com/KaramelBytes/salesloom-cli/internal/qacache"
	"github.com/KaramelBytes/salesloom-cli/internal/session"
	"github.com/KaramelBytes/salesloom-cli/internal/usage"
)

func loadOptions() loader.Options {
	return loader.Options{MaxBytes: cfg.MaxFileBytes()}
}

func newGovernor() *usage.Governor {
	return usage.New(usage.Options{
		Path:           cfg.UsagePath(),
		MaxDailyCalls:  cfg.MaxDailyCalls,
		MaxWeeklyCalls: cfg.MaxWeeklyCalls,
		CostPerCall:    cfg.CostPerCall,
		Logger:         logger,
	})
}

// newCache opens the answer cache, or returns nil when caching is disabled.
func newCache() *qacache.Cache {
	if !cfg.CacheEnabled {
		return nil
	}
	c := qacache.Open(cfg.CachePath(), logger)
	if cfg.CacheClearOnStart {
		c.Purge()
	}
	return c
}

func newRuntime() (ai.Runtime, error) {
	rc := ai.RuntimeConfig{
		HTTPTimeout: time.Duration(cfg.HTTPTimeoutSec) * time.Second,
		RetryMax:    cfg.RetryMaxAttempts,
		BaseDelay:   time.Duration(cfg.RetryBaseDelayMs) * time.Millisecond,
		MaxDelay:    time.Duration(cfg.RetryMaxDelayMs) * time.Millisecond,
		APIKey:      cfg.APIKey,
		Host:        cfg.OllamaHost,
	}
	switch cfg.DefaultProvider {
	case ai.ProviderOpenAI:
		rc.BaseURL = cfg.OpenAIBaseURL
	case ai.ProviderOllama:
		rc.HTTPTimeout = time.Duration(cfg.OllamaTimeoutSec) * time.Second
	}
	rt, ok := ai.GetRuntime(cfg.DefaultProvider, rc)
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s (use openrouter, openai or ollama)", cfg.DefaultProvider)
	}
	return rt, nil
}

// newAssistant wires runtime, agent, cache and governor from the config.
func newAssistant(gov *usage.Governor) (*session.Assistant, error) {
	rt, err := newRuntime()
	if err != nil {
		return nil, err
	}
	agent := qa.New(rt, qa.Options{
		Model:       cfg.DefaultModel,
		MaxTokens:   cfg.MaxTokens,
		MaxAttempts: cfg.AgentMaxAttempts,
		SampleRows:  cfg.AgentSampleRows,
		CallTimeout: time.Duration(cfg.CallTimeoutSec) * time.Second,
		Logger:      logger,
	})
	logger.Debug("assistant ready", zap.String("provider", cfg.DefaultProvider), zap.String("model", cfg.DefaultModel))
	return session.NewAssistant(agent, newCache(), gov, session.AssistantOptions{
		APIKey:        cfg.APIKey,
		RequireAPIKey: cfg.DefaultProvider != ai.ProviderOllama,
		Logger:        logger,
	}), nil
}

// printWarnings writes data-quality warnings in the CLI's ⚠ style.
func printWarnings(out io.Writer, warnings []string) {
	for _, w := range warnings {
		fmt.Fprintf(out, "⚠ %s\n", w)
	}
}
