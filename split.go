package compactor

import (
	"github.com/ctxforge/compactor/types"
)

// A split point s partitions history into history[:s] (compressed) and
// history[s:] (kept verbatim). s == 0 means nothing can be compressed,
// s == len(history) means the whole history may be compressed.

// PercentageSplitPoint finds the boundary that keeps roughly the newest
// preserveThreshold fraction of the history by serialized weight.
//
// A valid boundary is a user message that does not carry a tool result:
// splitting at one never leaves the kept portion starting mid
// tool-call/response pair. The walk returns the first valid boundary at or
// after the target weight; if none qualifies past the target, it falls back
// to the last valid boundary seen, except that a history ending in an
// assistant message with no pending tool call may be compressed whole.
func PercentageSplitPoint(history []*types.Message, preserveThreshold float64) int {
	if len(history) == 0 {
		return 0
	}
	if preserveThreshold <= 0 || preserveThreshold >= 1 {
		preserveThreshold = DefaultPreserveThreshold
	}

	weights := make([]int, len(history))
	total := 0
	for i, msg := range history {
		weights[i] = messageWeight(msg)
		total += weights[i]
	}
	target := float64(total) * (1 - preserveThreshold)

	lastValid := 0
	cumulative := 0
	for i, msg := range history {
		if msg.Role == types.RoleUser && !msg.HasToolResult() {
			if float64(cumulative) >= target {
				return i
			}
			lastValid = i
		}
		cumulative += weights[i]
	}

	// No boundary qualified past the target. If the conversation ends on a
	// settled assistant turn, the whole history may be compressed.
	last := history[len(history)-1]
	if last.Role == types.RoleAssistant && !last.HasToolUse() {
		return len(history)
	}

	return lastValid
}

// SinceLastPromptSplitPoint splits exactly at the last user message, keeping
// that message and everything after it verbatim. It reports no split when no
// user message exists, when nothing precedes it, or when fewer than
// minMessagesToCompress messages precede it (a compaction that small is not
// worth the summarization cost).
func SinceLastPromptSplitPoint(history []*types.Message, minMessagesToCompress int) (int, bool) {
	if minMessagesToCompress <= 0 {
		minMessagesToCompress = DefaultMinMessagesToCompress
	}

	for i := len(history) - 1; i >= 0; i-- {
		msg := history[i]
		if msg.Role != types.RoleUser || msg.HasToolResult() {
			continue
		}
		if i <= 0 || i < minMessagesToCompress {
			return 0, false
		}
		return i, true
	}
	return 0, false
}
