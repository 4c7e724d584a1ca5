package compactor

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/google/uuid"

	"github.com/ctxforge/compactor/types"
)

// Conversation is the engine's view of the host's conversation store. The
// store owns the messages; the engine only ever reads curated views and
// swaps in a reconstructed history on success.
type Conversation interface {
	// Curated returns the conversation history with internal bookkeeping
	// entries excluded.
	Curated(ctx context.Context) ([]*types.Message, error)

	// Standing returns the standing system/environment context that
	// accompanies every model call. May be empty.
	Standing(ctx context.Context) ([]*types.Message, error)

	// Replace swaps the conversation history for the reconstructed one.
	Replace(ctx context.Context, history []*types.Message) error
}

// EngineParams configures a new Engine.
type EngineParams struct {
	// Config is the engine configuration. Nil means defaults.
	Config *Config

	// Conversation is the host's conversation store (required).
	Conversation Conversation

	// Generator performs summarization and goal-extraction calls. If nil,
	// Client must be set and the default Anthropic generator is used.
	Generator Generator

	// Client is the Anthropic API client, used for the default generator
	// and for API-backed token counting. Optional if Generator is set and
	// UseTokenCountingAPI is false.
	Client *anthropic.Client

	// Prompter presents the interactive goal choice. Nil disables prompting.
	Prompter Prompter

	// Settings persists user-adjustable settings across sessions. Optional.
	Settings SettingsStore

	// Telemetry receives chat_compression events. Optional.
	Telemetry TelemetrySink

	// Feedback receives user-visible notices about opt-outs. Optional.
	Feedback Feedback

	// Logger receives engine logs. Optional.
	Logger Logger

	// Hooks holds lifecycle callbacks. Optional.
	Hooks *HookRegistry
}

// Engine is the context compaction engine for one conversation session. It
// decides when accumulated history must shrink, negotiates what to keep with
// the user, performs the compaction, and validates that it actually helped.
//
// An Engine is safe for concurrent use; overlapping TryCompress calls
// resolve to one active attempt and immediate no-ops for the rest.
type Engine struct {
	cfg          *Config
	conversation Conversation
	prompter     Prompter
	settings     SettingsStore
	telemetry    TelemetrySink
	logger       Logger
	hooks        *HookRegistry

	guard       *Guard
	counter     *TokenCounter
	extractor   *GoalExtractor
	coordinator *SelectionCoordinator
	executor    *Executor
}

// NewEngine creates an Engine for a session. Persisted settings, when a
// store is given, overlay the provided configuration before validation.
func NewEngine(params EngineParams) (*Engine, error) {
	if params.Conversation == nil {
		return nil, WrapError("NewEngine", errors.New("conversation is required"))
	}

	cfg := params.Config
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg.ApplyDefaults()

	if params.Settings != nil {
		persisted, err := params.Settings.Load()
		if err != nil {
			return nil, WrapError("NewEngine", err)
		}
		persisted.Apply(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	generator := params.Generator
	if generator == nil {
		if params.Client == nil {
			return nil, WrapError("NewEngine", errors.New("either generator or client is required"))
		}
		generator = NewAnthropicGenerator(params.Client, cfg.SummarizerMaxTokens)
	}

	logger := params.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	telemetry := params.Telemetry
	if telemetry == nil {
		telemetry = noopTelemetry{}
	}
	hooks := params.Hooks
	if hooks == nil {
		hooks = NewHookRegistry()
	}

	counter := NewTokenCounter(params.Client, cfg.Model, cfg.UseTokenCountingAPI)

	return &Engine{
		cfg:          cfg,
		conversation: params.Conversation,
		prompter:     params.Prompter,
		settings:     params.Settings,
		telemetry:    telemetry,
		logger:       logger,
		hooks:        hooks,
		guard:        NewGuard(),
		counter:      counter,
		extractor:    NewGoalExtractor(generator, cfg.SummarizerModel, cfg.GoalWindow, cfg.GoalTimeout, logger),
		coordinator:  NewSelectionCoordinator(cfg, params.Settings, params.Feedback, logger),
		executor:     NewExecutor(generator, counter, cfg, logger),
	}, nil
}

// NoteMessages records n new conversation messages for guard accounting.
func (e *Engine) NoteMessages(n int) {
	e.guard.NoteMessages(n)
}

// Guard exposes the session guard, chiefly for host teardown and tests.
func (e *Engine) Guard() *Guard {
	return e.guard
}

// Hooks returns the engine's hook registry for callback registration.
func (e *Engine) Hooks() *HookRegistry {
	return e.hooks
}

// Config returns a copy of the engine's current configuration. Opt-out
// selections adjust thresholds at runtime, so the copy is taken under the
// lock that orders those writes.
func (e *Engine) Config() Config {
	return e.coordinator.ConfigSnapshot()
}

// Close clears transient guard state on session teardown so a restart is not
// poisoned by a half-finished attempt, and releases the settings store's
// watcher if it holds one.
func (e *Engine) Close() error {
	e.guard.Reset()
	if closer, ok := e.settings.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// TryCompress is the engine's single public operation: evaluate the trigger,
// negotiate a goal with the user if appropriate, compact, validate, and
// report. force bypasses the trigger guards and the sticky-failure
// short-circuit but never the token-inflation validation.
func (e *Engine) TryCompress(ctx context.Context, promptID uuid.UUID, force bool, opts *Options) (*Result, error) {
	if promptID == uuid.Nil {
		promptID = uuid.New()
	}

	if !e.guard.BeginAttempt() {
		return &Result{Status: StatusNoop, NoopReason: NoopInProgress}, nil
	}
	defer e.guard.EndAttempt()

	history, err := e.conversation.Curated(ctx)
	if err != nil {
		return nil, NewEngineError("TryCompress", err)
	}
	standing, err := e.conversation.Standing(ctx)
	if err != nil {
		return nil, NewEngineError("TryCompress", err)
	}

	currentTokens := e.counter.Count(ctx, concat(standing, history))

	// We hold the attempt slot, so the in-progress rule does not apply to
	// our own evaluation; it exists to turn away nested and concurrent ones.
	snap := e.guard.Snapshot()
	snap.InProgress = false

	// Thresholds can move under a concurrent selection, so evaluate against
	// a consistent copy.
	cfg := e.coordinator.ConfigSnapshot()

	decision := EvaluateTrigger(currentTokens, cfg.MaxTokensForModel, snap, &cfg, time.Now())
	if !force && !decision.ShouldCompress {
		e.logger.Debug("compaction not triggered",
			"reason", decision.Reason,
			"tokens", currentTokens,
		)
		return &Result{Status: StatusNoop, NoopReason: NoopNotTriggered}, nil
	}

	if err := e.hooks.TriggerBeforeCompaction(ctx, promptID); err != nil {
		return nil, NewEngineError("BeforeCompactionHook", err)
	}

	if force {
		// A forced attempt explicitly retries past a sticky failure.
		e.guard.ClearFailure()
		snap.LastFailure = false
	}

	options, resolved := e.selectOptions(ctx, history, cfg.Interactive, decision, promptID, opts)

	result, execErr := e.executor.Execute(ctx, ExecRequest{
		History:      history,
		Standing:     standing,
		Force:        force,
		PriorFailure: snap.LastFailure,
		Options:      options,
		PromptID:     promptID,
	})
	if execErr != nil {
		e.guard.MarkFailure()
		e.emit(promptID, &Result{Status: StatusFailed, Strategy: options.PreserveStrategy}, decision, resolved)
		return nil, execErr
	}

	switch result.Status {
	case StatusCompressed:
		if err := e.conversation.Replace(ctx, result.NewHistory); err != nil {
			return nil, NewEngineError("ReplaceHistory", err).WithContext("prompt_id", promptID.String())
		}
		e.guard.MarkSuccess(time.Now())
		e.logger.Info("compaction complete",
			"original_tokens", result.OriginalTokens,
			"new_tokens", result.NewTokens,
			"messages_compressed", result.MessagesCompressed,
			"messages_preserved", result.MessagesPreserved,
			"strategy", result.Strategy,
		)
	case StatusFailedInflated:
		e.guard.MarkFailure()
	}

	e.emit(promptID, result, decision, resolved)

	if err := e.hooks.TriggerAfterCompaction(ctx, result); err != nil {
		e.logger.Warn("after-compaction hook failed", "error", err)
	}

	return result, nil
}

// selectOptions runs the interactive negotiation: goal extraction, the
// prompt decision, the prompt itself, and interpretation of the answer.
// Caller-supplied options short-circuit the whole phase.
func (e *Engine) selectOptions(ctx context.Context, history []*types.Message, interactive bool, decision TriggerDecision, promptID uuid.UUID, opts *Options) (Options, *ResolvedSelection) {
	if opts != nil {
		options := *opts
		if options.PreserveStrategy == "" {
			options.PreserveStrategy = StrategyPercentage
			if options.UserGoal != "" {
				options.PreserveStrategy = StrategySinceLastPrompt
			}
		}
		return options, nil
	}

	if !interactive || e.prompter == nil {
		return Options{PreserveStrategy: StrategyPercentage}, nil
	}

	extraction := &Extraction{Confidence: ConfidenceNone}
	if !decision.IsSafetyValve {
		extraction = e.extractor.Extract(ctx, history, promptID)
	}

	promptDecision := e.coordinator.ShouldPrompt(extraction, decision.IsSafetyValve)
	e.logger.Debug("prompt decision",
		"prompt", promptDecision.ShouldPrompt,
		"reason", promptDecision.Reason,
		"goals", len(extraction.Goals),
	)

	selection := Selection{Kind: SelectionAuto}
	if promptDecision.ShouldPrompt {
		e.guard.BeginPrompt()
		selection = e.coordinator.Prompt(ctx, e.prompter, extraction.Goals, decision.IsSafetyValve)
		e.guard.EndPrompt()
	}

	resolved := e.coordinator.Resolve(selection)
	if resolved.LessFrequent {
		e.guard.NoteRelaxation()
	}
	return resolved.Options, resolved
}

// emit sends the attempt's telemetry event. Sinks are fire-and-forget; they
// must not block.
func (e *Engine) emit(promptID uuid.UUID, result *Result, decision TriggerDecision, resolved *ResolvedSelection) {
	event := TelemetryEvent{
		EventID:            uuid.New(),
		PromptID:           promptID,
		Timestamp:          time.Now(),
		Status:             result.Status,
		TokensBefore:       result.OriginalTokens,
		TokensAfter:        result.NewTokens,
		PreserveStrategy:   result.Strategy,
		MessagesPreserved:  result.MessagesPreserved,
		MessagesCompressed: result.MessagesCompressed,
		GoalWasSelected:    result.GoalWasSelected,
		TriggerReason:      decision.Reason,
		WasSafetyValve:     decision.IsSafetyValve,
	}
	if resolved != nil {
		event.UserSelectedDisable = resolved.Disabled
		event.UserSelectedLessFrequent = resolved.LessFrequent
		if resolved.LessFrequent {
			event.FrequencyMultiplierApplied = e.cfg.FrequencyMultiplier
			event.NewTokenThreshold = resolved.NewTriggerTokens
			event.NewMessageThreshold = resolved.NewMinMessages
		}
	}
	e.telemetry.Emit(event)
}

// Stats reports the session's current compaction posture.
type Stats struct {
	TotalMessages         int
	TotalTokens           int
	Utilization           float64
	MessagesSinceCompress int
	Compactions           int
	Relaxations           int
	WouldTrigger          bool
	TriggerReason         TriggerReason
}

// Stats computes current token usage and whether a trigger would fire now.
func (e *Engine) Stats(ctx context.Context) (*Stats, error) {
	history, err := e.conversation.Curated(ctx)
	if err != nil {
		return nil, NewEngineError("Stats", err)
	}
	standing, err := e.conversation.Standing(ctx)
	if err != nil {
		return nil, NewEngineError("Stats", err)
	}

	tokens := e.counter.Count(ctx, concat(standing, history))
	snap := e.guard.Snapshot()
	cfg := e.coordinator.ConfigSnapshot()
	decision := EvaluateTrigger(tokens, cfg.MaxTokensForModel, snap, &cfg, time.Now())

	return &Stats{
		TotalMessages:         len(history),
		TotalTokens:           tokens,
		Utilization:           float64(tokens) / float64(cfg.MaxTokensForModel),
		MessagesSinceCompress: snap.MessagesSinceCompress,
		Compactions:           snap.Compactions,
		Relaxations:           snap.Relaxations,
		WouldTrigger:          decision.ShouldCompress,
		TriggerReason:         decision.Reason,
	}, nil
}
