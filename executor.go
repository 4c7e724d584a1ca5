package compactor

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ctxforge/compactor/types"
)

// Status is the terminal outcome of a compaction attempt.
type Status string

const (
	// StatusCompressed means history was replaced with a smaller one.
	StatusCompressed Status = "compressed"

	// StatusNoop means nothing was done; NoopReason says why.
	StatusNoop Status = "noop"

	// StatusFailedInflated means the summary failed to shrink the history
	// it replaced; the original history remains authoritative.
	StatusFailedInflated Status = "compression_failed_inflated_token_count"

	// StatusFailed means the summarization call itself failed.
	StatusFailed Status = "compression_failed"
)

// NoopReason explains a StatusNoop result.
type NoopReason string

const (
	NoopInProgress     NoopReason = "compression_in_progress"
	NoopNotTriggered   NoopReason = "not_triggered"
	NoopEmptyHistory   NoopReason = "empty_history"
	NoopPriorFailure   NoopReason = "prior_failure"
	NoopBelowThreshold NoopReason = "below_threshold"
	NoopNoSplit        NoopReason = "no_split"
)

// Result is the terminal value of a compaction attempt, returned to the
// caller and reflected into telemetry.
type Result struct {
	Status     Status
	NoopReason NoopReason

	OriginalTokens     int
	NewTokens          int
	MessagesPreserved  int
	MessagesCompressed int

	// DiscardedContextSummary is the optional one-sentence note about what
	// the snapshot omitted.
	DiscardedContextSummary string

	// GoalWasSelected reports whether a user goal steered the summary.
	GoalWasSelected bool

	// Strategy is the split strategy that actually produced the boundary.
	Strategy PreserveStrategy

	// NewHistory is the reconstructed history. Nil unless Status is
	// StatusCompressed; on failure the caller keeps the original.
	NewHistory []*types.Message
}

// compactionAckText is the assistant acknowledgment inserted after the
// snapshot so the reconstructed history stays role-alternating.
const compactionAckText = "Got it. Thanks for the additional context!"

// Executor performs the actual compaction: split, summarize, reconstruct,
// validate.
type Executor struct {
	generator Generator
	counter   *TokenCounter
	cfg       *Config
	logger    Logger
}

// NewExecutor creates an Executor.
func NewExecutor(generator Generator, counter *TokenCounter, cfg *Config, logger Logger) *Executor {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Executor{
		generator: generator,
		counter:   counter,
		cfg:       cfg,
		logger:    logger,
	}
}

// ExecRequest carries one compaction attempt's inputs.
type ExecRequest struct {
	// History is the curated conversation history.
	History []*types.Message

	// Standing is the standing system/environment context included in token
	// counts on both sides of the comparison.
	Standing []*types.Message

	// Force bypasses the threshold and sticky-failure short-circuits. It
	// never bypasses the token-inflation validation.
	Force bool

	// PriorFailure is the session's sticky failure flag.
	PriorFailure bool

	// Options steers the split and the summary.
	Options Options

	// PromptID correlates the attempt's model calls.
	PromptID uuid.UUID
}

// Execute runs one compaction attempt end to end. The only error it returns
// is a failed summarization call; every benign condition is a Result.
func (e *Executor) Execute(ctx context.Context, req ExecRequest) (*Result, error) {
	if len(req.History) == 0 {
		return &Result{Status: StatusNoop, NoopReason: NoopEmptyHistory}, nil
	}
	if req.PriorFailure && !req.Force {
		return &Result{Status: StatusNoop, NoopReason: NoopPriorFailure}, nil
	}

	originalTokens := e.counter.Count(ctx, concat(req.Standing, req.History))

	if !req.Force {
		threshold := int(float64(e.cfg.MaxTokensForModel) * e.cfg.Threshold)
		if originalTokens < threshold {
			return &Result{
				Status:         StatusNoop,
				NoopReason:     NoopBelowThreshold,
				OriginalTokens: originalTokens,
			}, nil
		}
	}

	splitIdx, strategy := e.plan(req.History, req.Options)
	if splitIdx <= 0 {
		return &Result{
			Status:         StatusNoop,
			NoopReason:     NoopNoSplit,
			OriginalTokens: originalTokens,
			Strategy:       strategy,
		}, nil
	}

	toCompress := req.History[:splitIdx]
	toKeep := req.History[splitIdx:]

	e.logger.Debug("compaction split planned",
		"strategy", strategy,
		"compress", len(toCompress),
		"keep", len(toKeep),
	)

	request := types.NewTextMessage(types.RoleUser, buildSnapshotRequest(toCompress, req.Options.UserGoal))
	raw, err := e.generator.Generate(ctx, e.cfg.SummarizerModel, SnapshotSystemPrompt, []*types.Message{request}, req.PromptID)
	if err != nil {
		return nil, NewEngineError("Summarize", err)
	}

	snapshot := &types.Message{
		Role:      types.RoleUser,
		Content:   []types.ContentBlock{{Type: types.ContentTypeText, Text: raw}},
		CreatedAt: time.Now(),
		IsSummary: true,
	}
	ack := types.NewTextMessage(types.RoleAssistant, compactionAckText)

	newHistory := make([]*types.Message, 0, len(toKeep)+2)
	newHistory = append(newHistory, snapshot, ack)
	newHistory = append(newHistory, toKeep...)

	// Recount over the fully reconstructed history including standing
	// context; comparing anything narrower understates the new size.
	newTokens := e.counter.Count(ctx, concat(req.Standing, newHistory))

	result := &Result{
		OriginalTokens:          originalTokens,
		NewTokens:               newTokens,
		MessagesPreserved:       len(toKeep),
		MessagesCompressed:      len(toCompress),
		DiscardedContextSummary: parseDiscardedSummary(raw),
		GoalWasSelected:         req.Options.UserGoal != "",
		Strategy:                strategy,
	}

	// A compressed result must be strictly smaller; an equal count means the
	// summarization bought nothing and the original history stays.
	if newTokens >= originalTokens {
		result.Status = StatusFailedInflated
		e.logger.Warn("compaction inflated token count",
			"original_tokens", originalTokens,
			"new_tokens", newTokens,
		)
		return result, nil
	}

	result.Status = StatusCompressed
	result.NewHistory = newHistory
	return result, nil
}

// plan picks the split index per the requested strategy. When the
// since-last-prompt strategy finds no valid split, the percentage heuristic
// re-derives one instead of giving up; skipping that fallback changes
// observed compaction frequency.
func (e *Executor) plan(history []*types.Message, opts Options) (int, PreserveStrategy) {
	if opts.PreserveStrategy == StrategySinceLastPrompt {
		if idx, ok := SinceLastPromptSplitPoint(history, e.cfg.MinMessagesToCompress); ok {
			return idx, StrategySinceLastPrompt
		}
	}

	threshold := opts.PreserveThreshold
	if threshold == 0 {
		threshold = e.cfg.PreserveThreshold
	}
	return PercentageSplitPoint(history, threshold), StrategyPercentage
}

func concat(a, b []*types.Message) []*types.Message {
	if len(a) == 0 {
		return b
	}
	out := make([]*types.Message, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return out
}
