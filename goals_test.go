package compactor

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ctxforge/compactor/types"
)

// generatorFunc adapts a function to the Generator interface for tests.
type generatorFunc func(ctx context.Context, model, system string, contents []*types.Message, promptID uuid.UUID) (string, error)

func (f generatorFunc) Generate(ctx context.Context, model, system string, contents []*types.Message, promptID uuid.UUID) (string, error) {
	return f(ctx, model, system, contents, promptID)
}

func TestParseGoals(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{
			name: "two goals",
			raw:  "<goals>\n<goal>refactor the auth middleware</goal>\n<goal>fix the flaky login test</goal>\n</goals>",
			want: []string{"refactor the auth middleware", "fix the flaky login test"},
		},
		{
			name: "empty block",
			raw:  "<goals></goals>",
			want: []string{},
		},
		{
			name: "whitespace-only goal dropped",
			raw:  "<goals><goal>  </goal><goal>ship the release</goal></goals>",
			want: []string{"ship the release"},
		},
		{
			name: "surrounding chatter ignored",
			raw:  "Sure, here are the goals.\n<goals><goal>write docs</goal></goals>\nLet me know!",
			want: []string{"write docs"},
		},
		{
			name: "capped at three",
			raw:  "<goals><goal>a</goal><goal>b</goal><goal>c</goal><goal>d</goal></goals>",
			want: []string{"a", "b", "c"},
		},
		{
			name: "no tags at all",
			raw:  "I could not find any goals.",
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseGoals(tt.raw)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseGoals() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGradeConfidence(t *testing.T) {
	long := "migrate the billing service to the new provider API"

	tests := []struct {
		name  string
		goals []string
		want  Confidence
	}{
		{"no goals", nil, ConfidenceNone},
		{"single substantial goal", []string{long}, ConfidenceHigh},
		{"single short goal", []string{"fix tests"}, ConfidenceLow},
		{"two goals", []string{"fix tests", "write docs"}, ConfidenceMedium},
		{"three goals", []string{"a", "b", "c"}, ConfidenceMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := gradeConfidence(tt.goals); got != tt.want {
				t.Errorf("gradeConfidence(%v) = %q, want %q", tt.goals, got, tt.want)
			}
		})
	}
}

func TestGoalExtractor_Extract(t *testing.T) {
	gen := generatorFunc(func(_ context.Context, _, system string, _ []*types.Message, _ uuid.UUID) (string, error) {
		if system != GoalExtractionSystemPrompt {
			t.Errorf("unexpected system prompt")
		}
		return "<goals><goal>debug the websocket reconnect loop in the dashboard</goal></goals>", nil
	})

	e := NewGoalExtractor(gen, "test-model", 20, time.Second, nil)
	got := e.Extract(context.Background(), []*types.Message{userMsg("help me debug this")}, uuid.New())

	if len(got.Goals) != 1 {
		t.Fatalf("got %d goals, want 1", len(got.Goals))
	}
	if got.Confidence != ConfidenceHigh {
		t.Errorf("Confidence = %q, want %q", got.Confidence, ConfidenceHigh)
	}
	if got.Error != ExtractionErrorNone {
		t.Errorf("Error = %q, want none", got.Error)
	}
}

func TestGoalExtractor_Timeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	gen := generatorFunc(func(ctx context.Context, _, _ string, _ []*types.Message, _ uuid.UUID) (string, error) {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return "<goals><goal>too late</goal></goals>", nil
	})

	e := NewGoalExtractor(gen, "test-model", 20, 10*time.Millisecond, nil)
	got := e.Extract(context.Background(), []*types.Message{userMsg("hello")}, uuid.New())

	if len(got.Goals) != 0 {
		t.Errorf("got %d goals, want 0", len(got.Goals))
	}
	if got.Confidence != ConfidenceNone {
		t.Errorf("Confidence = %q, want %q", got.Confidence, ConfidenceNone)
	}
	if got.Error != ExtractionErrorTimeout {
		t.Errorf("Error = %q, want %q", got.Error, ExtractionErrorTimeout)
	}
}

func TestGoalExtractor_GeneratorError(t *testing.T) {
	gen := generatorFunc(func(context.Context, string, string, []*types.Message, uuid.UUID) (string, error) {
		return "", errors.New("api unavailable")
	})

	e := NewGoalExtractor(gen, "test-model", 20, time.Second, nil)
	got := e.Extract(context.Background(), []*types.Message{userMsg("hello")}, uuid.New())

	if got.Error != ExtractionErrorFailed {
		t.Errorf("Error = %q, want %q", got.Error, ExtractionErrorFailed)
	}
	if got.Confidence != ConfidenceNone {
		t.Errorf("Confidence = %q, want %q", got.Confidence, ConfidenceNone)
	}
}

func TestGoalExtractor_WindowsHistory(t *testing.T) {
	var captured []*types.Message
	gen := generatorFunc(func(_ context.Context, _, _ string, contents []*types.Message, _ uuid.UUID) (string, error) {
		captured = contents
		return "<goals></goals>", nil
	})

	history := make([]*types.Message, 0, 50)
	for i := 0; i < 50; i++ {
		history = append(history, userMsg("message"))
	}

	e := NewGoalExtractor(gen, "test-model", 20, time.Second, nil)
	e.Extract(context.Background(), history, uuid.New())

	if len(captured) != 1 {
		t.Fatalf("generator received %d messages, want 1 rendered request", len(captured))
	}
	// 20 windowed messages render as 20 transcript lines.
	if got := strings.Count(captured[0].TextContent(), "User:"); got != 20 {
		t.Errorf("rendered %d transcript entries, want 20", got)
	}
}

func TestGoalExtractor_EmptyHistory(t *testing.T) {
	gen := generatorFunc(func(context.Context, string, string, []*types.Message, uuid.UUID) (string, error) {
		t.Fatal("generator must not be called for empty history")
		return "", nil
	})

	e := NewGoalExtractor(gen, "test-model", 20, time.Second, nil)
	got := e.Extract(context.Background(), nil, uuid.New())

	if got.Confidence != ConfidenceNone || len(got.Goals) != 0 {
		t.Errorf("got %+v, want empty extraction", got)
	}
}
