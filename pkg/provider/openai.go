package provider

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/harun/parley/pkg/chat"
)

// OpenAI streams chat completions and maps them onto the same event union
// the Anthropic provider emits. OpenAI models produce no thinking blocks, so
// those event kinds simply never occur.
type OpenAI struct {
	client openai.Client
}

// NewOpenAI creates an OpenAI provider. When apiKey is empty the SDK falls
// back to the OPENAI_API_KEY environment variable.
func NewOpenAI(apiKey string) *OpenAI {
	var opts []option.RequestOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	return &OpenAI{client: openai.NewClient(opts...)}
}

// Name returns the provider identifier.
func (p *OpenAI) Name() string {
	return "openai"
}

type openBlock int

const (
	openNone openBlock = iota
	openText
	openTool
)

// Stream sends the request and converts completion chunks into the neutral
// event union. Tool-call argument fragments become input JSON deltas on a
// tool-use block; block boundaries are synthesized since the chunk stream
// has none of its own.
func (p *OpenAI) Stream(ctx context.Context, req Request) <-chan Event {
	events := make(chan Event)

	go func() {
		defer close(events)

		stream := p.client.Chat.Completions.NewStreaming(ctx, p.buildParams(req))

		open := openNone
		currentTool := int64(-1)
		finish := ""

		closeOpen := func() {
			if open != openNone {
				events <- Event{Kind: EventBlockStop}
				open = openNone
			}
		}

		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			choice := chunk.Choices[0]

			if choice.Delta.Content != "" {
				if open != openText {
					closeOpen()
					events <- Event{Kind: EventBlockStart, Block: chat.TextBlock{}}
					open = openText
				}
				events <- Event{Kind: EventTextDelta, Text: choice.Delta.Content}
			}

			for _, toolCall := range choice.Delta.ToolCalls {
				if open != openTool || toolCall.Index != currentTool {
					closeOpen()
					id := toolCall.ID
					if id == "" {
						id = uuid.NewString()
					}
					events <- Event{Kind: EventBlockStart, Block: chat.ToolUseBlock{
						ID:   id,
						Name: toolCall.Function.Name,
					}}
					open = openTool
					currentTool = toolCall.Index
				}
				if toolCall.Function.Arguments != "" {
					events <- Event{Kind: EventInputJSONDelta, Text: toolCall.Function.Arguments}
				}
			}

			if choice.FinishReason != "" {
				finish = choice.FinishReason
			}
		}

		if err := stream.Err(); err != nil {
			events <- Event{Kind: EventError, Err: fmt.Errorf("openai stream: %w", err)}
			return
		}

		closeOpen()
		events <- Event{Kind: EventMessageStop, StopReason: stopReasonFromFinish(finish)}
	}()

	return events
}

// stopReasonFromFinish translates OpenAI finish reasons into the stop
// vocabulary the session understands.
func stopReasonFromFinish(finish string) string {
	switch finish {
	case "tool_calls":
		return "tool_use"
	case "length":
		return "max_tokens"
	default:
		return "end_turn"
	}
}

func (p *OpenAI) buildParams(req Request) openai.ChatCompletionNewParams {
	messages := []openai.ChatCompletionMessageParamUnion{}

	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}

	for _, msg := range req.Messages {
		messages = append(messages, convertMessageOpenAI(msg)...)
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(req.Model),
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	if len(req.Tools) > 0 {
		toolParams := make([]openai.ChatCompletionToolParam, 0, len(req.Tools))
		for _, schema := range req.Tools {
			toolParams = append(toolParams, openai.ChatCompletionToolParam{
				Type: "function",
				Function: openai.FunctionDefinitionParam{
					Name:        schema.Name,
					Description: openai.String(schema.Description),
					Parameters: openai.FunctionParameters{
						"type":       "object",
						"properties": schema.Properties,
						"required":   schema.Required,
					},
				},
			})
		}
		params.Tools = toolParams
	}

	return params
}

// convertMessageOpenAI flattens one history message into OpenAI chat
// messages. Tool results become dedicated tool-role messages; thinking
// blocks are skipped.
func convertMessageOpenAI(msg chat.Message) []openai.ChatCompletionMessageParamUnion {
	var result []openai.ChatCompletionMessageParamUnion

	text := ""
	toolCalls := []openai.ChatCompletionMessageToolCall{}

	for _, block := range msg.Content {
		switch b := block.(type) {
		case chat.TextBlock:
			text += b.Text
		case chat.ToolUseBlock:
			toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCall{
				ID:   b.ID,
				Type: "function",
				Function: openai.ChatCompletionMessageToolCallFunction{
					Name:      b.Name,
					Arguments: string(b.Input),
				},
			})
		case chat.ToolResultBlock:
			result = append(result, openai.ToolMessage(b.ToolUseID, b.Output))
		case chat.ThinkingBlock, chat.RedactedThinkingBlock:
			continue
		}
	}

	switch {
	case msg.Role == chat.RoleAssistant && len(toolCalls) > 0:
		assistant := openai.ChatCompletionMessage{
			Role:      "assistant",
			Content:   text,
			ToolCalls: toolCalls,
		}
		result = append(result, assistant.ToParam())
	case msg.Role == chat.RoleAssistant && text != "":
		result = append(result, openai.AssistantMessage(text))
	case msg.Role == chat.RoleUser && text != "":
		result = append(result, openai.UserMessage(text))
	}

	return result
}
