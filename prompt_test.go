package compactor

import (
	"strings"
	"testing"

	"github.com/ctxforge/compactor/types"
)

func TestParseDiscardedSummary(t *testing.T) {
	raw := `<state_snapshot>stuff</state_snapshot>
<discarded_context_summary>
Omitted the abandoned database migration discussion.
</discarded_context_summary>`

	got := parseDiscardedSummary(raw)
	want := "Omitted the abandoned database migration discussion."
	if got != want {
		t.Errorf("parseDiscardedSummary = %q, want %q", got, want)
	}

	if got := parseDiscardedSummary("no tag here"); got != "" {
		t.Errorf("parseDiscardedSummary without tag = %q, want empty", got)
	}
}

func TestBuildSnapshotRequest(t *testing.T) {
	history := []*types.Message{userMsg("please fix the login bug"), assistantMsg("on it")}

	plain := buildSnapshotRequest(history, "")
	if strings.Contains(plain, "identified their current goal") {
		t.Error("goal preamble present without a goal")
	}
	if !strings.Contains(plain, "please fix the login bug") {
		t.Error("request does not contain the conversation")
	}

	directed := buildSnapshotRequest(history, "fix the login bug")
	if !strings.Contains(directed, `"fix the login bug"`) {
		t.Error("goal-directed request does not quote the goal")
	}
	if !strings.HasPrefix(directed, "The user has identified their current goal") {
		t.Error("goal preamble must come first")
	}
}

func TestFormatMessagesAsText_TruncatesToolResults(t *testing.T) {
	long := strings.Repeat("z", 600)
	history := []*types.Message{
		{
			Role: types.RoleUser,
			Content: []types.ContentBlock{
				{Type: types.ContentTypeToolResult, ToolResultForUseID: "tu_9", ToolContent: long},
			},
		},
	}

	out := formatMessagesAsText(history)
	if strings.Contains(out, long) {
		t.Error("tool result not truncated")
	}
	if !strings.Contains(out, strings.Repeat("z", 497)+"...") {
		t.Error("truncation marker missing")
	}
}

func TestFormatMessagesAsText_SkipsEmptyMessages(t *testing.T) {
	history := []*types.Message{
		{Role: types.RoleUser},
		userMsg("real content"),
	}

	out := formatMessagesAsText(history)
	if strings.Count(out, "User:") != 1 {
		t.Errorf("empty message rendered: %q", out)
	}
}
