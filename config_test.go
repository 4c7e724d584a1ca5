package compactor

import (
	"errors"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Model = "claude-sonnet-4-20250514"

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !cfg.Interactive {
		t.Error("Interactive defaults to false, want true")
	}
}

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := &Config{Model: "claude-sonnet-4-20250514", TriggerTokens: 50000}
	cfg.ApplyDefaults()

	if cfg.TriggerTokens != 50000 {
		t.Errorf("TriggerTokens = %d, explicit value overwritten", cfg.TriggerTokens)
	}
	if cfg.TriggerUtilization != DefaultTriggerUtilization {
		t.Errorf("TriggerUtilization = %f, want default", cfg.TriggerUtilization)
	}
	if cfg.MinTimeBetweenPrompts != 300*time.Second {
		t.Errorf("MinTimeBetweenPrompts = %v, want 300s", cfg.MinTimeBetweenPrompts)
	}
	if cfg.SummarizerModel != DefaultSummarizerModel {
		t.Errorf("SummarizerModel = %q, want default", cfg.SummarizerModel)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.Model = "claude-sonnet-4-20250514"
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing model", func(c *Config) { c.Model = "" }},
		{"zero trigger tokens", func(c *Config) { c.TriggerTokens = 0 }},
		{"negative trigger tokens", func(c *Config) { c.TriggerTokens = -1 }},
		{"utilization above one", func(c *Config) { c.TriggerUtilization = 1.5 }},
		{"zero utilization", func(c *Config) { c.TriggerUtilization = 0 }},
		{"threshold above one", func(c *Config) { c.Threshold = 2 }},
		{"multiplier not above one", func(c *Config) { c.FrequencyMultiplier = 1.0 }},
		{"preserve threshold of one", func(c *Config) { c.PreserveThreshold = 1.0 }},
		{"missing summarizer model", func(c *Config) { c.SummarizerModel = "" }},
		{"zero context window", func(c *Config) { c.MaxTokensForModel = 0 }},
		{"trigger above context window", func(c *Config) { c.TriggerTokens = 300000 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate accepted an invalid config")
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("error %v does not wrap ErrInvalidConfig", err)
			}
		})
	}
}
