package compactor

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/google/uuid"

	"github.com/ctxforge/compactor/types"
)

// Generator performs the language-model calls the engine depends on, for both
// summarization and goal extraction. Calls may fail or hang; the engine
// always applies its own timeout and never assumes success.
type Generator interface {
	Generate(ctx context.Context, model, system string, contents []*types.Message, promptID uuid.UUID) (string, error)
}

// AnthropicGenerator is the default Generator, backed by Claude's streaming
// API.
type AnthropicGenerator struct {
	client    *anthropic.Client
	maxTokens int
}

// NewAnthropicGenerator creates a Generator using the given client.
// maxTokens bounds the response length.
func NewAnthropicGenerator(client *anthropic.Client, maxTokens int) *AnthropicGenerator {
	if maxTokens <= 0 {
		maxTokens = DefaultSummarizerMaxTokens
	}
	return &AnthropicGenerator{client: client, maxTokens: maxTokens}
}

// Generate streams a completion and accumulates it into the full text.
func (g *AnthropicGenerator) Generate(ctx context.Context, model, system string, contents []*types.Message, promptID uuid.UUID) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(g.maxTokens),
		Messages:  toAnthropicMessages(contents),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	stream := g.client.Messages.NewStreaming(ctx, params)

	message := anthropic.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := message.Accumulate(event); err != nil {
			return "", fmt.Errorf("%w: failed to accumulate stream: %v", ErrSummarizationFailed, err)
		}
	}
	if err := stream.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrSummarizationFailed, err)
	}

	var out strings.Builder
	for _, block := range message.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			out.WriteString(text.Text)
		}
	}

	if out.Len() == 0 {
		return "", fmt.Errorf("%w: empty response", ErrSummarizationFailed)
	}
	return out.String(), nil
}
