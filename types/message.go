// Package types defines the conversation value types shared across the
// compaction engine.
package types

import (
	"encoding/json"
	"time"
)

// Role represents the message role
type Role string

const (
	// RoleUser represents a user message
	RoleUser Role = "user"

	// RoleAssistant represents an assistant message
	RoleAssistant Role = "assistant"

	// RoleSystem represents a system message
	RoleSystem Role = "system"
)

// Message represents one turn of a conversation. Messages are treated as
// immutable once appended; the engine never mutates one in place, it builds
// replacement histories instead.
type Message struct {
	ID        string         `json:"id"`
	Role      Role           `json:"role"`
	Content   []ContentBlock `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`

	// IsSummary marks a message produced by a previous compaction.
	IsSummary bool `json:"is_summary,omitempty"`

	// IsInternal marks bookkeeping entries (reasoning traces, hook output)
	// that are excluded from curated views.
	IsInternal bool `json:"is_internal,omitempty"`
}

// ContentType represents the type of content block
type ContentType string

const (
	// ContentTypeText represents text content
	ContentTypeText ContentType = "text"

	// ContentTypeToolUse represents a tool use block
	ContentTypeToolUse ContentType = "tool_use"

	// ContentTypeToolResult represents a tool result block
	ContentTypeToolResult ContentType = "tool_result"

	// ContentTypeThinking represents a reasoning trace block
	ContentTypeThinking ContentType = "thinking"
)

// ContentBlock represents a piece of content in a message
type ContentBlock struct {
	Type ContentType `json:"type"`

	// Text content
	Text string `json:"text,omitempty"`

	// Tool use content
	ToolUseID    string          `json:"id,omitempty"`
	ToolName     string          `json:"name,omitempty"`
	ToolInputRaw json.RawMessage `json:"input,omitempty"`

	// Tool result content
	ToolResultForUseID string `json:"tool_use_id,omitempty"`
	ToolContent        string `json:"content,omitempty"`
	IsError            bool   `json:"is_error,omitempty"`
}

// HasToolUse reports whether the message carries at least one tool_use block.
func (m *Message) HasToolUse() bool {
	for _, block := range m.Content {
		if block.Type == ContentTypeToolUse {
			return true
		}
	}
	return false
}

// HasToolResult reports whether the message carries at least one tool_result block.
func (m *Message) HasToolResult() bool {
	for _, block := range m.Content {
		if block.Type == ContentTypeToolResult {
			return true
		}
	}
	return false
}

// TextContent returns the concatenated text blocks of the message.
func (m *Message) TextContent() string {
	var out string
	for _, block := range m.Content {
		if block.Type == ContentTypeText {
			if out != "" {
				out += "\n"
			}
			out += block.Text
		}
	}
	return out
}

// NewTextMessage builds a single-text-block message with the given role.
func NewTextMessage(role Role, text string) *Message {
	return &Message{
		Role:      role,
		Content:   []ContentBlock{{Type: ContentTypeText, Text: text}},
		CreatedAt: time.Now(),
	}
}

// Curated filters a history down to the curated view: every message that is
// not internal bookkeeping. Order is preserved.
func Curated(history []*Message) []*Message {
	out := make([]*Message, 0, len(history))
	for _, msg := range history {
		if msg.IsInternal {
			continue
		}
		out = append(out, msg)
	}
	return out
}
