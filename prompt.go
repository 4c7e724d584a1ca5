package compactor

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ctxforge/compactor/types"
)

// SnapshotSystemPrompt instructs the model to produce the structured state
// snapshot that replaces the compressed portion of history. Free-form scratch
// reasoning precedes the snapshot so the model can work through the
// conversation before committing to the structured form.
const SnapshotSystemPrompt = `You are a conversation summarizer for an AI agent system. Your task is to distill the conversation into a state snapshot that will replace the original messages while preserving the context needed to continue.

First, think through the conversation in a <scratch> block: what the user wanted, what happened, what is still open. This reasoning is discarded.

Then produce a <state_snapshot> block with these sections:

1. **Goal** - what the user is trying to accomplish right now, with any stated constraints.
2. **Key Facts** - decisions made, technical details established, important values and names.
3. **File and Resource State** - files or resources created, modified, or discussed, with paths and their current state.
4. **Plan** - the agreed approach, progress so far, and the immediate next step.

Finally include a <discarded_context_summary> tag containing exactly one sentence describing what was omitted from the snapshot.

Guidelines:
- Be concise but complete; preserve the information needed to continue.
- Include specific details: file names, function names, error messages.
- Do not add information that was not in the conversation.`

// goalDirectedPreamble is prepended to the snapshot request when the user
// selected a goal. It explicitly permits dropping unrelated material.
const goalDirectedPreamble = `The user has identified their current goal as: %q

Prioritize information relevant to that goal. You may discard details of earlier work that does not bear on it; note such omissions only in the discarded context summary.

`

// GoalExtractionSystemPrompt asks the model for the user's current goals as
// tagged short descriptions.
const GoalExtractionSystemPrompt = `You are analyzing the recent turns of a conversation between a user and an AI agent. Identify what the user is currently working on.

Return between 1 and 3 goals, each a short concrete description of a current activity. Current means in progress right now - not something finished earlier and not something merely planned.

Format your answer as:

<goals>
<goal>first goal</goal>
<goal>second goal</goal>
</goals>

If you cannot identify any current goal, return an empty <goals></goals> block. Output nothing else.`

var (
	goalTagRe      = regexp.MustCompile(`(?s)<goal>(.*?)</goal>`)
	discardedTagRe = regexp.MustCompile(`(?s)<discarded_context_summary>(.*?)</discarded_context_summary>`)
)

// parseGoals extracts all <goal> tags from a raw model response, trimming
// whitespace and dropping empties. At most three goals are returned.
func parseGoals(raw string) []string {
	matches := goalTagRe.FindAllStringSubmatch(raw, -1)
	goals := make([]string, 0, len(matches))
	for _, m := range matches {
		goal := strings.TrimSpace(m[1])
		if goal == "" {
			continue
		}
		goals = append(goals, goal)
		if len(goals) == 3 {
			break
		}
	}
	return goals
}

// parseDiscardedSummary extracts the optional one-sentence discarded context
// summary from a raw snapshot response.
func parseDiscardedSummary(raw string) string {
	m := discardedTagRe.FindStringSubmatch(raw)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// buildSnapshotRequest renders the portion of history to compress into the
// user message for the summarization call. A non-empty goal switches to the
// goal-directed variant.
func buildSnapshotRequest(toCompress []*types.Message, goal string) string {
	var b strings.Builder
	if goal != "" {
		fmt.Fprintf(&b, goalDirectedPreamble, goal)
	}
	b.WriteString("Produce the state snapshot for the following conversation.\n\n<conversation>\n")
	b.WriteString(formatMessagesAsText(toCompress))
	b.WriteString("</conversation>")
	return b.String()
}

// buildGoalExtractionRequest renders the trailing window of history into the
// user message for the goal-extraction call.
func buildGoalExtractionRequest(window []*types.Message) string {
	var b strings.Builder
	b.WriteString("Identify the user's current goals in this conversation.\n\n<conversation>\n")
	b.WriteString(formatMessagesAsText(window))
	b.WriteString("</conversation>")
	return b.String()
}

// formatMessagesAsText converts messages to a readable transcript for model
// consumption. Long tool results are abbreviated.
func formatMessagesAsText(messages []*types.Message) string {
	var b strings.Builder
	for _, msg := range messages {
		content := extractMessageContent(msg)
		if content == "" {
			continue
		}
		b.WriteString(roleLabel(msg.Role))
		b.WriteString(":\n")
		b.WriteString(content)
		b.WriteString("\n\n")
	}
	return b.String()
}

func roleLabel(role types.Role) string {
	switch role {
	case types.RoleAssistant:
		return "Assistant"
	case types.RoleSystem:
		return "System"
	default:
		return "User"
	}
}

func extractMessageContent(msg *types.Message) string {
	var parts []string

	for _, block := range msg.Content {
		switch block.Type {
		case types.ContentTypeText:
			if block.Text != "" {
				parts = append(parts, block.Text)
			}
		case types.ContentTypeToolUse:
			parts = append(parts, fmt.Sprintf("[Tool: %s, Input: %s]", block.ToolName, string(block.ToolInputRaw)))
		case types.ContentTypeToolResult:
			result := block.ToolContent
			if len(result) > 500 {
				result = result[:497] + "..."
			}
			if block.IsError {
				parts = append(parts, fmt.Sprintf("[Tool Error for %s: %s]", block.ToolResultForUseID, result))
			} else {
				parts = append(parts, fmt.Sprintf("[Tool Result for %s: %s]", block.ToolResultForUseID, result))
			}
		case types.ContentTypeThinking:
			if block.Text != "" {
				parts = append(parts, fmt.Sprintf("[Thinking: %s]", block.Text))
			}
		}
	}

	return strings.Join(parts, "\n")
}
