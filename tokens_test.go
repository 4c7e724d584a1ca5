package compactor

import (
	"context"
	"strings"
	"testing"

	"github.com/ctxforge/compactor/types"
)

func TestApproximateTokens(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"ab", 1},
		{"abc", 1},
		{"abcd", 1},
		{"abcde", 2},
		{"hello world!", 3},
		{strings.Repeat("x", 400), 100},
	}

	for _, tt := range tests {
		if got := approximateTokens(tt.text); got != tt.want {
			t.Errorf("approximateTokens(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}

func TestEstimateMessageTokens(t *testing.T) {
	msg := types.NewTextMessage(types.RoleUser, strings.Repeat("x", 40))
	// 10 tokens of text plus 4 of framing overhead.
	if got := estimateMessageTokens(msg); got != 14 {
		t.Errorf("estimateMessageTokens = %d, want 14", got)
	}
}

func TestEstimateMessageTokens_ToolBlocks(t *testing.T) {
	msg := &types.Message{
		Role: types.RoleAssistant,
		Content: []types.ContentBlock{
			{Type: types.ContentTypeToolUse, ToolName: "grep", ToolInputRaw: []byte(`{"pattern":"x"}`)},
			{Type: types.ContentTypeToolResult, ToolContent: strings.Repeat("y", 80)},
		},
	}

	// 4 framing + (1 name + 10 + 4 input) + (10 + 20 content) = 49
	if got := estimateMessageTokens(msg); got != 49 {
		t.Errorf("estimateMessageTokens = %d, want 49", got)
	}
}

func TestTokenCounter_ApproximationWithoutClient(t *testing.T) {
	tc := NewTokenCounter(nil, "claude-sonnet-4-20250514", true)

	msgs := []*types.Message{
		types.NewTextMessage(types.RoleUser, strings.Repeat("x", 400)),
		types.NewTextMessage(types.RoleAssistant, strings.Repeat("y", 400)),
	}

	// No client means approximation even with the API enabled.
	if got := tc.Count(context.Background(), msgs); got != 208 {
		t.Errorf("Count = %d, want 208", got)
	}
}

func TestTokenCounter_CountText(t *testing.T) {
	tc := NewTokenCounter(nil, "claude-sonnet-4-20250514", false)

	if got := tc.CountText(context.Background(), ""); got != 0 {
		t.Errorf("CountText(\"\") = %d, want 0", got)
	}
	if got := tc.CountText(context.Background(), strings.Repeat("x", 40)); got != 14 {
		t.Errorf("CountText = %d, want 14", got)
	}
}

func TestMessageWeight_TracksSerializedSize(t *testing.T) {
	small := types.NewTextMessage(types.RoleUser, "hi")
	large := types.NewTextMessage(types.RoleUser, strings.Repeat("x", 1000))

	if messageWeight(small) >= messageWeight(large) {
		t.Error("larger message does not weigh more")
	}
}
