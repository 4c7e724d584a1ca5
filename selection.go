package compactor

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"
)

// PromptReason explains a prompt decision.
type PromptReason string

const (
	PromptReasonSafetyValve       PromptReason = "safety_valve"
	PromptReasonExtractionTimeout PromptReason = "extraction_timeout"
	PromptReasonNoGoals           PromptReason = "no_goals"
	PromptReasonAutoSkipEnabled   PromptReason = "auto_skip_enabled"
	PromptReasonGoalsFound        PromptReason = "goals_found"
)

// PromptDecision is the outcome of deciding whether to show the user a choice.
type PromptDecision struct {
	ShouldPrompt bool
	Reason       PromptReason
}

// SelectionKind identifies what the user picked at the prompt.
type SelectionKind string

const (
	// SelectionGoal means a concrete goal was chosen; Goal carries it.
	SelectionGoal SelectionKind = "goal"

	// SelectionAuto means the user deferred to automatic compaction.
	SelectionAuto SelectionKind = "auto"

	// SelectionOther means the user typed a free-text goal; Goal carries it.
	SelectionOther SelectionKind = "other"

	// SelectionDisable opts out of interactive compaction permanently.
	SelectionDisable SelectionKind = "disable"

	// SelectionLessFrequent relaxes the trigger thresholds.
	SelectionLessFrequent SelectionKind = "less_frequent"

	// SelectionTimeout means the prompt expired without an answer.
	SelectionTimeout SelectionKind = "timeout"
)

// Selection is the user's (possibly defaulted) answer to the goal prompt.
type Selection struct {
	Kind SelectionKind
	Goal string
}

// Prompter presents the goal choice to the user. When isSafetyValve is true,
// implementations must not offer the disable and less-frequent choices.
type Prompter interface {
	PresentChoice(ctx context.Context, goals []string, isSafetyValve bool) (Selection, error)
}

// Feedback receives one-line user-visible notices about configuration
// changes the engine makes on the user's behalf.
type Feedback interface {
	Notify(msg string)
}

type noopFeedback struct{}

func (noopFeedback) Notify(string) {}

// Options steers a single compaction attempt. Constructed from the user's
// selection and consumed once by the executor.
type Options struct {
	// UserGoal, when set, directs the summary toward that goal.
	UserGoal string

	// PreserveStrategy selects the split strategy. Empty means percentage.
	PreserveStrategy PreserveStrategy

	// PreserveThreshold overrides the configured percentage-strategy
	// threshold when non-zero.
	PreserveThreshold float64
}

// ResolvedSelection is a Selection interpreted against configuration: the
// compaction options to use plus any persistent adjustments that were made.
type ResolvedSelection struct {
	Options Options

	// Disabled reports that the user opted out of interactive compaction.
	Disabled bool

	// LessFrequent reports that trigger thresholds were relaxed.
	LessFrequent bool

	// NewTriggerTokens and NewMinMessages carry the post-relaxation
	// thresholds when LessFrequent is set.
	NewTriggerTokens int
	NewMinMessages   int
}

// SelectionCoordinator decides whether to prompt, gathers the selection, and
// interprets it, mutating configuration on opt-outs. Configuration mutations
// take effect for future trigger evaluations, never for the attempt in
// flight.
type SelectionCoordinator struct {
	// mu orders the runtime-mutable configuration fields (TriggerTokens,
	// MinMessagesSinceCompress, Interactive) against concurrent readers.
	mu       sync.RWMutex
	cfg      *Config
	store    SettingsStore
	feedback Feedback
	logger   Logger
}

// NewSelectionCoordinator creates a coordinator. store may be nil, in which
// case opt-outs adjust the in-memory configuration only.
func NewSelectionCoordinator(cfg *Config, store SettingsStore, feedback Feedback, logger Logger) *SelectionCoordinator {
	if feedback == nil {
		feedback = noopFeedback{}
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &SelectionCoordinator{
		cfg:      cfg,
		store:    store,
		feedback: feedback,
		logger:   logger,
	}
}

// ShouldPrompt decides whether the user gets a choice at all, in priority
// order: the safety valve always skips straight to basic compaction, a failed
// or empty extraction has nothing to offer, and the auto-skip preference
// suppresses the prompt entirely.
func (c *SelectionCoordinator) ShouldPrompt(extraction *Extraction, isSafetyValve bool) PromptDecision {
	switch {
	case isSafetyValve:
		return PromptDecision{ShouldPrompt: false, Reason: PromptReasonSafetyValve}
	case extraction.Error == ExtractionErrorTimeout:
		return PromptDecision{ShouldPrompt: false, Reason: PromptReasonExtractionTimeout}
	case len(extraction.Goals) == 0:
		return PromptDecision{ShouldPrompt: false, Reason: PromptReasonNoGoals}
	case !c.ConfigSnapshot().Interactive:
		return PromptDecision{ShouldPrompt: false, Reason: PromptReasonAutoSkipEnabled}
	default:
		return PromptDecision{ShouldPrompt: true, Reason: PromptReasonGoalsFound}
	}
}

// ConfigSnapshot returns a copy of the configuration, taken under the lock
// that orders it against opt-out mutations in Resolve.
func (c *SelectionCoordinator) ConfigSnapshot() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return *c.cfg
}

// Prompt races the user's choice against the prompt timeout. The loser of
// the race is discarded; a late answer is never handled twice. Errors from
// the prompter degrade to a timeout selection.
func (c *SelectionCoordinator) Prompt(ctx context.Context, prompter Prompter, goals []string, isSafetyValve bool) Selection {
	type outcome struct {
		sel Selection
		err error
	}
	results := make(chan outcome, 1)

	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		sel, err := prompter.PresentChoice(callCtx, goals, isSafetyValve)
		results <- outcome{sel: sel, err: err}
	}()

	timer := time.NewTimer(c.cfg.PromptTimeout)
	defer timer.Stop()

	select {
	case res := <-results:
		if res.err != nil {
			c.logger.Warn("goal prompt failed", "error", res.err)
			return Selection{Kind: SelectionTimeout}
		}
		return res.sel
	case <-timer.C:
		c.logger.Debug("goal prompt timed out", "timeout", c.cfg.PromptTimeout)
		return Selection{Kind: SelectionTimeout}
	case <-ctx.Done():
		return Selection{Kind: SelectionTimeout}
	}
}

// Resolve interprets a selection into compaction options, applying any
// opt-out side effects synchronously so the next trigger evaluation sees
// them. Opt-outs never abort the compaction in flight; they fall through to
// automatic behavior for this attempt.
func (c *SelectionCoordinator) Resolve(selection Selection) *ResolvedSelection {
	switch selection.Kind {
	case SelectionGoal, SelectionOther:
		if selection.Goal != "" {
			return &ResolvedSelection{Options: Options{
				UserGoal:         selection.Goal,
				PreserveStrategy: StrategySinceLastPrompt,
			}}
		}
		return &ResolvedSelection{Options: Options{PreserveStrategy: StrategyPercentage}}

	case SelectionDisable:
		c.mu.Lock()
		c.cfg.Interactive = false
		c.persist()
		c.mu.Unlock()
		c.feedback.Notify("Interactive compaction disabled. Future compactions will run automatically; re-enable it in settings.")
		return &ResolvedSelection{
			Options:  Options{PreserveStrategy: StrategyPercentage},
			Disabled: true,
		}

	case SelectionLessFrequent:
		c.mu.Lock()
		oldTokens := c.cfg.TriggerTokens
		oldMessages := c.cfg.MinMessagesSinceCompress

		newTokens := int(math.Round(float64(oldTokens) * c.cfg.FrequencyMultiplier))
		if newTokens > c.cfg.MaxTriggerTokens {
			newTokens = c.cfg.MaxTriggerTokens
		}
		newMessages := int(math.Round(float64(oldMessages) * c.cfg.FrequencyMultiplier))
		if newMessages > c.cfg.MaxMinMessages {
			newMessages = c.cfg.MaxMinMessages
		}

		c.cfg.TriggerTokens = newTokens
		c.cfg.MinMessagesSinceCompress = newMessages
		c.persist()
		c.mu.Unlock()
		c.feedback.Notify(fmt.Sprintf(
			"Compaction will run less often: token threshold %d -> %d, message minimum %d -> %d.",
			oldTokens, newTokens, oldMessages, newMessages))
		return &ResolvedSelection{
			Options:          Options{PreserveStrategy: StrategyPercentage},
			LessFrequent:     true,
			NewTriggerTokens: newTokens,
			NewMinMessages:   newMessages,
		}

	default: // auto, timeout
		return &ResolvedSelection{Options: Options{PreserveStrategy: StrategyPercentage}}
	}
}

func (c *SelectionCoordinator) persist() {
	if c.store == nil {
		return
	}
	if err := c.store.Save(snapshotSettings(c.cfg)); err != nil {
		c.logger.Warn("failed to persist compaction settings", "error", err)
	}
}
