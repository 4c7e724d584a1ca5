package compactor

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/ctxforge/compactor/types"
)

// TokenCounter provides token counting for messages using the Claude API
// with a character-based approximation fallback. Counts may run concurrently.
type TokenCounter struct {
	client *anthropic.Client
	useAPI bool
	model  string

	// fallback sticks once the API has failed so later counts skip it.
	fallback atomic.Bool
}

// NewTokenCounter creates a new TokenCounter. If useAPI is false or client is
// nil, only character-based approximation is used.
func NewTokenCounter(client *anthropic.Client, model string, useAPI bool) *TokenCounter {
	return &TokenCounter{
		client: client,
		model:  model,
		useAPI: useAPI,
	}
}

// Count counts the tokens in the given messages, preferring the API and
// degrading to approximation on failure.
func (tc *TokenCounter) Count(ctx context.Context, messages []*types.Message) int {
	if tc.useAPI && tc.client != nil && !tc.fallback.Load() {
		total, err := tc.countWithAPI(ctx, messages)
		if err == nil {
			return total
		}
		tc.fallback.Store(true)
	}
	return tc.countWithApproximation(messages)
}

// CountText counts the tokens of a single text snippet.
func (tc *TokenCounter) CountText(ctx context.Context, text string) int {
	if text == "" {
		return 0
	}
	return tc.Count(ctx, []*types.Message{types.NewTextMessage(types.RoleUser, text)})
}

func (tc *TokenCounter) countWithAPI(ctx context.Context, messages []*types.Message) (int, error) {
	if len(messages) == 0 {
		return 0, nil
	}

	anthropicMessages := toAnthropicMessages(messages)
	if len(anthropicMessages) == 0 {
		return 0, nil
	}

	result, err := tc.client.Messages.CountTokens(ctx, anthropic.MessageCountTokensParams{
		Model:    anthropic.Model(tc.model),
		Messages: anthropicMessages,
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrTokenCountingFailed, err)
	}
	return int(result.InputTokens), nil
}

func (tc *TokenCounter) countWithApproximation(messages []*types.Message) int {
	total := 0
	for _, msg := range messages {
		total += estimateMessageTokens(msg)
	}
	return total
}

// estimateMessageTokens estimates tokens for a single message using character
// approximation plus per-block structural overhead.
func estimateMessageTokens(msg *types.Message) int {
	// ~4 tokens of overhead for role and framing
	total := 4

	for _, block := range msg.Content {
		switch block.Type {
		case types.ContentTypeText, types.ContentTypeThinking:
			total += approximateTokens(block.Text)
		case types.ContentTypeToolUse:
			total += approximateTokens(block.ToolName) + 10
			if len(block.ToolInputRaw) > 0 {
				total += approximateTokens(string(block.ToolInputRaw))
			}
		case types.ContentTypeToolResult:
			total += 10
			total += approximateTokens(block.ToolContent)
		default:
			if block.Text != "" {
				total += approximateTokens(block.Text)
			}
		}
	}

	return total
}

// messageWeight is the serialized length of a message, used by the percentage
// split strategy to weigh messages against each other.
func messageWeight(msg *types.Message) int {
	data, err := json.Marshal(msg)
	if err != nil {
		return estimateMessageTokens(msg) * 4
	}
	return len(data)
}

// approximateTokens estimates token count from character count, at
// ~4 characters per token with a minimum of 1 token for non-empty text.
func approximateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	tokens := (len(text) + 3) / 4
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}

// toAnthropicMessages converts engine messages to API message params for
// token counting and generation.
func toAnthropicMessages(messages []*types.Message) []anthropic.MessageParam {
	result := make([]anthropic.MessageParam, 0, len(messages))

	for _, msg := range messages {
		role := anthropic.MessageParamRoleUser
		if msg.Role == types.RoleAssistant {
			role = anthropic.MessageParamRoleAssistant
		}

		content := make([]anthropic.ContentBlockParamUnion, 0, len(msg.Content))
		for _, block := range msg.Content {
			switch block.Type {
			case types.ContentTypeText:
				content = append(content, anthropic.NewTextBlock(block.Text))
			case types.ContentTypeToolUse:
				var input any
				if len(block.ToolInputRaw) > 0 {
					if err := json.Unmarshal(block.ToolInputRaw, &input); err != nil {
						input = map[string]any{}
					}
				}
				content = append(content, anthropic.NewToolUseBlock(block.ToolUseID, input, block.ToolName))
			case types.ContentTypeToolResult:
				content = append(content, anthropic.NewToolResultBlock(block.ToolResultForUseID, block.ToolContent, block.IsError))
			case types.ContentTypeThinking:
				// Reasoning traces count as text for estimation purposes.
				content = append(content, anthropic.NewTextBlock(block.Text))
			}
		}

		if len(content) > 0 {
			result = append(result, anthropic.MessageParam{
				Role:    role,
				Content: content,
			})
		}
	}

	return result
}
