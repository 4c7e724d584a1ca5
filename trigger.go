package compactor

import "time"

// TriggerReason explains a trigger decision.
type TriggerReason string

const (
	ReasonCompressionInProgress TriggerReason = "compression_in_progress"
	ReasonUtilizationThreshold  TriggerReason = "utilization_threshold"
	ReasonBelowTokenThreshold   TriggerReason = "below_token_threshold"
	ReasonMessageGuardFailed    TriggerReason = "message_guard_failed"
	ReasonTimeGuardFailed       TriggerReason = "time_guard_failed"
	ReasonAbsoluteTokens        TriggerReason = "absolute_tokens"
)

// TriggerDecision is the outcome of a trigger evaluation. It is transient,
// recomputed on every evaluation, never persisted.
type TriggerDecision struct {
	ShouldCompress bool
	IsSafetyValve  bool
	Reason         TriggerReason
}

// EvaluateTrigger decides whether compaction should run. It is a pure
// function of the inputs and is safe to call any number of times.
//
// The utilization check is the system's non-negotiable backstop against
// context overflow: when it fires, every guard below it is bypassed.
func EvaluateTrigger(currentTokens, maxTokens int, guard GuardSnapshot, cfg *Config, now time.Time) TriggerDecision {
	if guard.InProgress {
		return TriggerDecision{ShouldCompress: false, Reason: ReasonCompressionInProgress}
	}

	if maxTokens > 0 {
		utilization := float64(currentTokens) / float64(maxTokens)
		if utilization >= cfg.TriggerUtilization {
			return TriggerDecision{
				ShouldCompress: true,
				IsSafetyValve:  true,
				Reason:         ReasonUtilizationThreshold,
			}
		}
	}

	if currentTokens < cfg.TriggerTokens {
		return TriggerDecision{ShouldCompress: false, Reason: ReasonBelowTokenThreshold}
	}

	if guard.MessagesSinceCompress < cfg.MinMessagesSinceCompress {
		return TriggerDecision{ShouldCompress: false, Reason: ReasonMessageGuardFailed}
	}

	if !guard.LastCompressionAt.IsZero() && now.Sub(guard.LastCompressionAt) < cfg.MinTimeBetweenPrompts {
		return TriggerDecision{ShouldCompress: false, Reason: ReasonTimeGuardFailed}
	}

	return TriggerDecision{ShouldCompress: true, Reason: ReasonAbsoluteTokens}
}
