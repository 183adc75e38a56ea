package provider

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/harun/parley/pkg/chat"
	"github.com/harun/parley/pkg/tools"
)

// Anthropic streams completions from Claude via the official SDK.
// Safe for concurrent use; each Stream call owns an independent SSE stream.
type Anthropic struct {
	client anthropic.Client
}

// NewAnthropic creates an Anthropic provider. When apiKey is empty the SDK
// falls back to the ANTHROPIC_API_KEY environment variable.
func NewAnthropic(apiKey string) *Anthropic {
	var opts []option.RequestOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	return &Anthropic{client: anthropic.NewClient(opts...)}
}

// Name returns the provider identifier.
func (p *Anthropic) Name() string {
	return "anthropic"
}

// Stream sends the request and converts the SSE events into the neutral
// event union, closing the channel when the stream ends.
func (p *Anthropic) Stream(ctx context.Context, req Request) <-chan Event {
	events := make(chan Event)

	go func() {
		defer close(events)

		params, err := p.buildParams(req)
		if err != nil {
			events <- Event{Kind: EventError, Err: err}
			return
		}

		stream := p.client.Messages.NewStreaming(ctx, params)
		stopReason := ""

		for stream.Next() {
			event := stream.Current()

			switch event.Type {
			case "content_block_start":
				start := event.AsContentBlockStart()
				block := start.ContentBlock
				switch block.Type {
				case "text":
					events <- Event{Kind: EventBlockStart, Block: chat.TextBlock{}}
				case "thinking":
					events <- Event{Kind: EventBlockStart, Block: chat.ThinkingBlock{}}
				case "redacted_thinking":
					events <- Event{Kind: EventBlockStart, Block: chat.RedactedThinkingBlock{}}
				case "tool_use":
					toolUse := block.AsToolUse()
					events <- Event{Kind: EventBlockStart, Block: chat.ToolUseBlock{
						ID:   toolUse.ID,
						Name: toolUse.Name,
					}}
				}

			case "content_block_delta":
				delta := event.AsContentBlockDelta().Delta
				switch delta.Type {
				case "text_delta":
					events <- Event{Kind: EventTextDelta, Text: delta.Text}
				case "thinking_delta":
					events <- Event{Kind: EventThinkingDelta, Text: delta.Thinking}
				case "input_json_delta":
					events <- Event{Kind: EventInputJSONDelta, Text: delta.PartialJSON}
				case "signature_delta":
					events <- Event{Kind: EventSignatureDelta, Text: delta.Signature}
				case "citations_delta":
					events <- Event{Kind: EventCitationDelta}
				}

			case "content_block_stop":
				events <- Event{Kind: EventBlockStop}

			case "message_delta":
				messageDelta := event.AsMessageDelta()
				if messageDelta.Delta.StopReason != "" {
					stopReason = string(messageDelta.Delta.StopReason)
				}

			case "message_stop":
				events <- Event{Kind: EventMessageStop, StopReason: stopReason}
				return
			}
		}

		if err := stream.Err(); err != nil {
			events <- Event{Kind: EventError, Err: fmt.Errorf("anthropic stream: %w", err)}
			return
		}

		// Stream drained without a message_stop; treat as complete.
		events <- Event{Kind: EventMessageStop, StopReason: stopReason}
	}()

	return events
}

func (p *Anthropic) buildParams(req Request) (anthropic.MessageNewParams, error) {
	messages, err := convertMessages(req.Messages)
	if err != nil {
		return anthropic.MessageNewParams{}, err
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		Messages:  messages,
		MaxTokens: int64(req.MaxTokens),
	}

	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	if len(req.Tools) > 0 {
		params.Tools = convertTools(req.Tools)
	}

	return params, nil
}

// convertMessages maps history content blocks to Anthropic message params.
// Thinking and redacted-thinking blocks are skipped: their signatures are
// not retained, so they cannot be re-sent verbatim.
func convertMessages(messages []chat.Message) ([]anthropic.MessageParam, error) {
	var result []anthropic.MessageParam

	for _, msg := range messages {
		var content []anthropic.ContentBlockParamUnion

		for _, block := range msg.Content {
			switch b := block.(type) {
			case chat.TextBlock:
				content = append(content, anthropic.NewTextBlock(b.Text))
			case chat.ToolUseBlock:
				var input map[string]any
				if err := json.Unmarshal(b.Input, &input); err != nil {
					return nil, fmt.Errorf("invalid tool use input for %s: %w", b.Name, err)
				}
				content = append(content, anthropic.NewToolUseBlock(b.ID, input, b.Name))
			case chat.ToolResultBlock:
				content = append(content, anthropic.NewToolResultBlock(b.ToolUseID, b.Output, b.IsError))
			case chat.ThinkingBlock, chat.RedactedThinkingBlock:
				continue
			}
		}

		if len(content) == 0 {
			continue
		}

		if msg.Role == chat.RoleAssistant {
			result = append(result, anthropic.MessageParam{
				Role:    anthropic.MessageParamRoleAssistant,
				Content: content,
			})
		} else {
			result = append(result, anthropic.MessageParam{
				Role:    anthropic.MessageParamRoleUser,
				Content: content,
			})
		}
	}

	return result, nil
}

func convertTools(schemas []tools.Schema) []anthropic.ToolUnionParam {
	result := make([]anthropic.ToolUnionParam, 0, len(schemas))
	for _, schema := range schemas {
		toolParam := anthropic.ToolParam{
			Name:        schema.Name,
			Description: anthropic.String(schema.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: schema.Properties,
				Required:   schema.Required,
			},
		}
		result = append(result, anthropic.ToolUnionParam{OfTool: &toolParam})
	}
	return result
}
