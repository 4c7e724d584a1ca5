package compactor

import (
	"time"

	"github.com/google/uuid"
)

// TelemetryEventName is the name under which compaction events are emitted.
const TelemetryEventName = "chat_compression"

// TelemetryEvent captures one compaction attempt for analytics. Emission is
// fire-and-forget; a sink must never block or fail the attempt.
type TelemetryEvent struct {
	EventID   uuid.UUID `json:"event_id"`
	PromptID  uuid.UUID `json:"prompt_id"`
	Timestamp time.Time `json:"timestamp"`

	Status           Status           `json:"status"`
	TokensBefore     int              `json:"tokens_before"`
	TokensAfter      int              `json:"tokens_after"`
	PreserveStrategy PreserveStrategy `json:"preserve_strategy"`

	MessagesPreserved  int  `json:"messages_preserved"`
	MessagesCompressed int  `json:"messages_compressed"`
	GoalWasSelected    bool `json:"goal_was_selected"`

	TriggerReason  TriggerReason `json:"trigger_reason"`
	WasSafetyValve bool          `json:"was_safety_valve"`

	UserSelectedDisable        bool    `json:"user_selected_disable"`
	UserSelectedLessFrequent   bool    `json:"user_selected_less_frequent"`
	FrequencyMultiplierApplied float64 `json:"frequency_multiplier_applied,omitempty"`
	NewTokenThreshold          int     `json:"new_token_threshold,omitempty"`
	NewMessageThreshold        int     `json:"new_message_threshold,omitempty"`
}

// TelemetrySink receives compaction telemetry events.
type TelemetrySink interface {
	Emit(event TelemetryEvent)
}

type noopTelemetry struct{}

func (noopTelemetry) Emit(TelemetryEvent) {}

// LoggingTelemetrySink writes telemetry events through the engine logger.
// Useful as a default sink for hosts without a telemetry transport.
type LoggingTelemetrySink struct {
	Logger Logger
}

// Emit logs the event at debug level.
func (s *LoggingTelemetrySink) Emit(event TelemetryEvent) {
	if s.Logger == nil {
		return
	}
	s.Logger.Debug(TelemetryEventName,
		"status", event.Status,
		"tokens_before", event.TokensBefore,
		"tokens_after", event.TokensAfter,
		"preserve_strategy", event.PreserveStrategy,
		"messages_preserved", event.MessagesPreserved,
		"messages_compressed", event.MessagesCompressed,
		"goal_was_selected", event.GoalWasSelected,
		"trigger_reason", event.TriggerReason,
		"was_safety_valve", event.WasSafetyValve,
	)
}
