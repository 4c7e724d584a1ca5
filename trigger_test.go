package compactor

import (
	"testing"
	"time"
)

func TestEvaluateTrigger(t *testing.T) {
	now := time.Now()
	cfg := DefaultConfig()
	cfg.Model = "claude-sonnet-4-20250514"

	tests := []struct {
		name           string
		currentTokens  int
		maxTokens      int
		guard          GuardSnapshot
		wantCompress   bool
		wantSafetyValv bool
		wantReason     TriggerReason
	}{
		{
			name:          "below token threshold",
			currentTokens: 10000,
			maxTokens:     1000000,
			guard:         GuardSnapshot{MessagesSinceCompress: 50},
			wantCompress:  false,
			wantReason:    ReasonBelowTokenThreshold,
		},
		{
			name:          "absolute threshold with guards satisfied",
			currentTokens: 45000,
			maxTokens:     1000000,
			guard:         GuardSnapshot{MessagesSinceCompress: 30},
			wantCompress:  true,
			wantReason:    ReasonAbsoluteTokens,
		},
		{
			name:          "message guard blocks",
			currentTokens: 45000,
			maxTokens:     1000000,
			guard:         GuardSnapshot{MessagesSinceCompress: 20},
			wantCompress:  false,
			wantReason:    ReasonMessageGuardFailed,
		},
		{
			name:          "time guard blocks",
			currentTokens: 45000,
			maxTokens:     1000000,
			guard: GuardSnapshot{
				MessagesSinceCompress: 30,
				LastCompressionAt:     now.Add(-time.Minute),
			},
			wantCompress: false,
			wantReason:   ReasonTimeGuardFailed,
		},
		{
			name:          "time guard satisfied after window",
			currentTokens: 45000,
			maxTokens:     1000000,
			guard: GuardSnapshot{
				MessagesSinceCompress: 30,
				LastCompressionAt:     now.Add(-10 * time.Minute),
			},
			wantCompress: true,
			wantReason:   ReasonAbsoluteTokens,
		},
		{
			name:           "safety valve overrides message guard",
			currentTokens:  520000,
			maxTokens:      1000000,
			guard:          GuardSnapshot{MessagesSinceCompress: 5},
			wantCompress:   true,
			wantSafetyValv: true,
			wantReason:     ReasonUtilizationThreshold,
		},
		{
			name:          "in progress blocks everything",
			currentTokens: 520000,
			maxTokens:     1000000,
			guard:         GuardSnapshot{InProgress: true, MessagesSinceCompress: 50},
			wantCompress:  false,
			wantReason:    ReasonCompressionInProgress,
		},
		{
			name:           "safety valve overrides time guard",
			currentTokens:  150000,
			maxTokens:      200000,
			guard: GuardSnapshot{
				MessagesSinceCompress: 0,
				LastCompressionAt:     now.Add(-time.Second),
			},
			wantCompress:   true,
			wantSafetyValv: true,
			wantReason:     ReasonUtilizationThreshold,
		},
		{
			name:          "exactly at token threshold passes",
			currentTokens: 40000,
			maxTokens:     1000000,
			guard:         GuardSnapshot{MessagesSinceCompress: 25},
			wantCompress:  true,
			wantReason:    ReasonAbsoluteTokens,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EvaluateTrigger(tt.currentTokens, tt.maxTokens, tt.guard, cfg, now)
			if got.ShouldCompress != tt.wantCompress {
				t.Errorf("ShouldCompress = %v, want %v", got.ShouldCompress, tt.wantCompress)
			}
			if got.IsSafetyValve != tt.wantSafetyValv {
				t.Errorf("IsSafetyValve = %v, want %v", got.IsSafetyValve, tt.wantSafetyValv)
			}
			if got.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", got.Reason, tt.wantReason)
			}
		})
	}
}

func TestEvaluateTrigger_ZeroLastCompressionSkipsTimeGuard(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Model = "claude-sonnet-4-20250514"

	// A session that never compacted has a zero timestamp; the time guard
	// must not treat that as a recent compaction.
	got := EvaluateTrigger(45000, 1000000, GuardSnapshot{MessagesSinceCompress: 30}, cfg, time.Now())
	if !got.ShouldCompress {
		t.Fatalf("ShouldCompress = false (%s), want true", got.Reason)
	}
}

func TestEvaluateTrigger_RelaxedThresholds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Model = "claude-sonnet-4-20250514"
	cfg.TriggerTokens = 60000
	cfg.MinMessagesSinceCompress = 38

	got := EvaluateTrigger(45000, 1000000, GuardSnapshot{MessagesSinceCompress: 30}, cfg, time.Now())
	if got.ShouldCompress {
		t.Fatal("ShouldCompress = true, want false under relaxed thresholds")
	}
	if got.Reason != ReasonBelowTokenThreshold {
		t.Errorf("Reason = %q, want %q", got.Reason, ReasonBelowTokenThreshold)
	}
}
