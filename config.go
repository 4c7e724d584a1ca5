package compactor

import (
	"fmt"
	"time"
)

// PreserveStrategy selects how the split planner chooses the boundary between
// the compressed and preserved portions of history.
type PreserveStrategy string

const (
	// StrategyPercentage keeps roughly the newest PreserveThreshold fraction
	// of the history by weight.
	StrategyPercentage PreserveStrategy = "percentage"

	// StrategySinceLastPrompt keeps everything from the last user message
	// onward. Used when a goal was selected.
	StrategySinceLastPrompt PreserveStrategy = "since-last-prompt"
)

// Default configuration values.
const (
	DefaultTriggerTokens            = 40000
	DefaultTriggerUtilization       = 0.5
	DefaultMinMessagesSinceCompress = 25
	DefaultMinTimeBetweenPrompts    = 300 * time.Second
	DefaultFrequencyMultiplier      = 1.5
	DefaultPromptTimeout            = 30 * time.Second
	DefaultThreshold                = 0.5
	DefaultMaxTriggerTokens         = 200000
	DefaultMaxMinMessages           = 100
	DefaultGoalWindow               = 20
	DefaultGoalTimeout              = 10 * time.Second
	DefaultPreserveThreshold        = 0.3
	DefaultMinMessagesToCompress    = 5
	DefaultSummarizerModel          = "claude-3-5-haiku-20241022"
	DefaultSummarizerMaxTokens      = 4096
	DefaultMaxTokensForModel        = 200000
	DefaultUseTokenCountingAPI      = true
)

// Config holds the engine configuration. TriggerTokens,
// MinMessagesSinceCompress, and Interactive may move at runtime when the user
// opts out at the goal prompt; the engine reads them through the selection
// coordinator's lock, and everything else is fixed after construction.
type Config struct {
	// TriggerTokens is the absolute token count above which compaction
	// becomes eligible. Default: 40000
	TriggerTokens int

	// TriggerUtilization is the context usage fraction (0.0-1.0) at which
	// the safety valve fires, bypassing all guards. Default: 0.5
	TriggerUtilization float64

	// MinMessagesSinceCompress suppresses a trigger until this many messages
	// have accumulated since the last compaction. Default: 25
	MinMessagesSinceCompress int

	// MinTimeBetweenPrompts suppresses a trigger until this much time has
	// passed since the last compaction. Default: 5 minutes
	MinTimeBetweenPrompts time.Duration

	// FrequencyMultiplier scales TriggerTokens and MinMessagesSinceCompress
	// when the user picks "less frequent". Default: 1.5
	FrequencyMultiplier float64

	// Interactive enables the goal-selection prompt. Default: true
	Interactive bool

	// PromptTimeout bounds how long the user prompt waits before the
	// selection is treated as "auto". Default: 30 seconds
	PromptTimeout time.Duration

	// Threshold is the utilization fraction below which a non-forced
	// executor call is a no-op. Default: 0.5
	Threshold float64

	// MaxTriggerTokens caps TriggerTokens under repeated "less frequent"
	// relaxations. Default: 200000
	MaxTriggerTokens int

	// MaxMinMessages caps MinMessagesSinceCompress under repeated
	// "less frequent" relaxations. Default: 100
	MaxMinMessages int

	// GoalWindow is how many trailing messages goal extraction looks at.
	// Default: 20
	GoalWindow int

	// GoalTimeout bounds the goal-extraction call. Default: 10 seconds
	GoalTimeout time.Duration

	// PreserveThreshold is the fraction of history weight the percentage
	// strategy keeps. Default: 0.3
	PreserveThreshold float64

	// MinMessagesToCompress is the minimum number of messages the
	// since-last-prompt strategy requires before the split point.
	// Default: 5
	MinMessagesToCompress int

	// Model is the conversation model identifier (required). Used for token
	// counting and context-limit lookups.
	Model string

	// SummarizerModel is the model used for summarization and goal
	// extraction. Using a faster/cheaper model is recommended.
	// Default: "claude-3-5-haiku-20241022"
	SummarizerModel string

	// SummarizerMaxTokens is the maximum tokens for the summarization
	// response. Default: 4096
	SummarizerMaxTokens int

	// MaxTokensForModel is the maximum context window for the conversation
	// model. Default: 200000
	MaxTokensForModel int

	// UseTokenCountingAPI determines whether to use the provider's token
	// counting API. If false or the API fails, a character-based
	// approximation is used. Default: true
	UseTokenCountingAPI bool
}

// DefaultConfig returns a Config with the default values.
func DefaultConfig() *Config {
	return &Config{
		TriggerTokens:            DefaultTriggerTokens,
		TriggerUtilization:       DefaultTriggerUtilization,
		MinMessagesSinceCompress: DefaultMinMessagesSinceCompress,
		MinTimeBetweenPrompts:    DefaultMinTimeBetweenPrompts,
		FrequencyMultiplier:      DefaultFrequencyMultiplier,
		Interactive:              true,
		PromptTimeout:            DefaultPromptTimeout,
		Threshold:                DefaultThreshold,
		MaxTriggerTokens:         DefaultMaxTriggerTokens,
		MaxMinMessages:           DefaultMaxMinMessages,
		GoalWindow:               DefaultGoalWindow,
		GoalTimeout:              DefaultGoalTimeout,
		PreserveThreshold:        DefaultPreserveThreshold,
		MinMessagesToCompress:    DefaultMinMessagesToCompress,
		SummarizerModel:          DefaultSummarizerModel,
		SummarizerMaxTokens:      DefaultSummarizerMaxTokens,
		MaxTokensForModel:        DefaultMaxTokensForModel,
		UseTokenCountingAPI:      DefaultUseTokenCountingAPI,
	}
}

// ApplyDefaults fills in zero values with defaults.
func (c *Config) ApplyDefaults() {
	if c.TriggerTokens == 0 {
		c.TriggerTokens = DefaultTriggerTokens
	}
	if c.TriggerUtilization == 0 {
		c.TriggerUtilization = DefaultTriggerUtilization
	}
	if c.MinMessagesSinceCompress == 0 {
		c.MinMessagesSinceCompress = DefaultMinMessagesSinceCompress
	}
	if c.MinTimeBetweenPrompts == 0 {
		c.MinTimeBetweenPrompts = DefaultMinTimeBetweenPrompts
	}
	if c.FrequencyMultiplier == 0 {
		c.FrequencyMultiplier = DefaultFrequencyMultiplier
	}
	if c.PromptTimeout == 0 {
		c.PromptTimeout = DefaultPromptTimeout
	}
	if c.Threshold == 0 {
		c.Threshold = DefaultThreshold
	}
	if c.MaxTriggerTokens == 0 {
		c.MaxTriggerTokens = DefaultMaxTriggerTokens
	}
	if c.MaxMinMessages == 0 {
		c.MaxMinMessages = DefaultMaxMinMessages
	}
	if c.GoalWindow == 0 {
		c.GoalWindow = DefaultGoalWindow
	}
	if c.GoalTimeout == 0 {
		c.GoalTimeout = DefaultGoalTimeout
	}
	if c.PreserveThreshold == 0 {
		c.PreserveThreshold = DefaultPreserveThreshold
	}
	if c.MinMessagesToCompress == 0 {
		c.MinMessagesToCompress = DefaultMinMessagesToCompress
	}
	if c.SummarizerModel == "" {
		c.SummarizerModel = DefaultSummarizerModel
	}
	if c.SummarizerMaxTokens == 0 {
		c.SummarizerMaxTokens = DefaultSummarizerMaxTokens
	}
	if c.MaxTokensForModel == 0 {
		c.MaxTokensForModel = DefaultMaxTokensForModel
	}
	// Interactive and UseTokenCountingAPI default to true via DefaultConfig;
	// a zero-value Config built by hand opts out of both explicitly.
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("%w: model is required", ErrInvalidConfig)
	}

	if c.TriggerTokens <= 0 {
		return fmt.Errorf("%w: trigger_tokens must be positive, got %d", ErrInvalidConfig, c.TriggerTokens)
	}

	if c.TriggerUtilization <= 0 || c.TriggerUtilization > 1.0 {
		return fmt.Errorf("%w: trigger_utilization must be between 0 and 1, got %f", ErrInvalidConfig, c.TriggerUtilization)
	}

	if c.Threshold <= 0 || c.Threshold > 1.0 {
		return fmt.Errorf("%w: threshold must be between 0 and 1, got %f", ErrInvalidConfig, c.Threshold)
	}

	if c.MinMessagesSinceCompress < 0 {
		return fmt.Errorf("%w: min_messages_since_compress must be non-negative, got %d", ErrInvalidConfig, c.MinMessagesSinceCompress)
	}

	if c.FrequencyMultiplier <= 1.0 {
		return fmt.Errorf("%w: frequency_multiplier must be greater than 1, got %f", ErrInvalidConfig, c.FrequencyMultiplier)
	}

	if c.PreserveThreshold <= 0 || c.PreserveThreshold >= 1.0 {
		return fmt.Errorf("%w: preserve_threshold must be between 0 and 1 exclusive, got %f", ErrInvalidConfig, c.PreserveThreshold)
	}

	if c.SummarizerModel == "" {
		return fmt.Errorf("%w: summarizer_model is required", ErrInvalidConfig)
	}

	if c.MaxTokensForModel <= 0 {
		return fmt.Errorf("%w: max_tokens_for_model must be positive, got %d", ErrInvalidConfig, c.MaxTokensForModel)
	}

	if c.SummarizerMaxTokens <= 0 {
		return fmt.Errorf("%w: summarizer_max_tokens must be positive, got %d", ErrInvalidConfig, c.SummarizerMaxTokens)
	}

	if c.TriggerTokens >= c.MaxTokensForModel {
		return fmt.Errorf("%w: trigger_tokens (%d) must be less than max_tokens_for_model (%d)",
			ErrInvalidConfig, c.TriggerTokens, c.MaxTokensForModel)
	}

	return nil
}
