package compactor

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ctxforge/compactor/types"
)

// Confidence grades how trustworthy an extraction result is.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
	ConfidenceNone   Confidence = "none"
)

// ExtractionErrorTag identifies why an extraction produced no goals. Empty
// means no error.
type ExtractionErrorTag string

const (
	ExtractionErrorNone    ExtractionErrorTag = ""
	ExtractionErrorTimeout ExtractionErrorTag = "timeout"
	ExtractionErrorFailed  ExtractionErrorTag = "extraction_failed"
)

// Extraction is the result of a goal-extraction attempt. Callers always get a
// usable value; failures degrade to zero goals with an error tag.
type Extraction struct {
	Goals      []string
	Confidence Confidence
	Error      ExtractionErrorTag
}

// GoalExtractor asks the model what the user is currently working on.
type GoalExtractor struct {
	generator Generator
	model     string
	window    int
	timeout   time.Duration
	logger    Logger
}

// NewGoalExtractor creates a GoalExtractor. window bounds how many trailing
// messages are examined; timeout bounds the model call.
func NewGoalExtractor(generator Generator, model string, window int, timeout time.Duration, logger Logger) *GoalExtractor {
	if window <= 0 {
		window = DefaultGoalWindow
	}
	if timeout <= 0 {
		timeout = DefaultGoalTimeout
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &GoalExtractor{
		generator: generator,
		model:     model,
		window:    window,
		timeout:   timeout,
		logger:    logger,
	}
}

// Extract races the extraction call against the configured timeout. The
// loser of the race is discarded, never awaited further.
func (e *GoalExtractor) Extract(ctx context.Context, history []*types.Message, promptID uuid.UUID) *Extraction {
	window := history
	if len(window) > e.window {
		window = window[len(window)-e.window:]
	}

	if len(window) == 0 {
		return &Extraction{Goals: nil, Confidence: ConfidenceNone}
	}

	request := types.NewTextMessage(types.RoleUser, buildGoalExtractionRequest(window))

	type outcome struct {
		raw string
		err error
	}
	// Buffered so a late result is dropped, not leaked into a blocked send.
	results := make(chan outcome, 1)

	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		raw, err := e.generator.Generate(callCtx, e.model, GoalExtractionSystemPrompt, []*types.Message{request}, promptID)
		results <- outcome{raw: raw, err: err}
	}()

	timer := time.NewTimer(e.timeout)
	defer timer.Stop()

	select {
	case res := <-results:
		if res.err != nil {
			e.logger.Warn("goal extraction failed", "error", res.err)
			return &Extraction{Goals: nil, Confidence: ConfidenceNone, Error: ExtractionErrorFailed}
		}
		goals := parseGoals(res.raw)
		return &Extraction{Goals: goals, Confidence: gradeConfidence(goals)}

	case <-timer.C:
		e.logger.Warn("goal extraction timed out", "timeout", e.timeout)
		return &Extraction{Goals: nil, Confidence: ConfidenceNone, Error: ExtractionErrorTimeout}

	case <-ctx.Done():
		return &Extraction{Goals: nil, Confidence: ConfidenceNone, Error: ExtractionErrorTimeout}
	}
}

// gradeConfidence applies the extraction confidence rules: no goals is none,
// a single substantial goal is high, multiple goals are medium, anything else
// is low.
func gradeConfidence(goals []string) Confidence {
	switch {
	case len(goals) == 0:
		return ConfidenceNone
	case len(goals) == 1 && len(goals[0]) > 30:
		return ConfidenceHigh
	case len(goals) >= 2:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}
