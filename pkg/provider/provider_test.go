package provider

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/parley/pkg/chat"
	"github.com/harun/parley/pkg/tools"
)

func TestNew(t *testing.T) {
	t.Run("anthropic", func(t *testing.T) {
		p, err := New("anthropic", "sk-test")
		require.NoError(t, err)
		assert.Equal(t, "anthropic", p.Name())
	})

	t.Run("empty name defaults to anthropic", func(t *testing.T) {
		p, err := New("", "sk-test")
		require.NoError(t, err)
		assert.Equal(t, "anthropic", p.Name())
	})

	t.Run("openai", func(t *testing.T) {
		p, err := New("openai", "sk-test")
		require.NoError(t, err)
		assert.Equal(t, "openai", p.Name())
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := New("cohere", "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown provider")
	})
}

func TestConvertMessages(t *testing.T) {
	t.Run("text turns keep their roles", func(t *testing.T) {
		msgs, err := convertMessages([]chat.Message{
			chat.NewUserText("hello"),
			{Role: chat.RoleAssistant, Content: []chat.ContentBlock{chat.TextBlock{Text: "hi"}}},
		})
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.Equal(t, "user", string(msgs[0].Role))
		assert.Equal(t, "assistant", string(msgs[1].Role))
	})

	t.Run("thinking blocks are dropped", func(t *testing.T) {
		msgs, err := convertMessages([]chat.Message{
			{Role: chat.RoleAssistant, Content: []chat.ContentBlock{
				chat.ThinkingBlock{Text: "pondering"},
				chat.TextBlock{Text: "answer"},
			}},
		})
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		assert.Len(t, msgs[0].Content, 1)
	})

	t.Run("message of only thinking is skipped entirely", func(t *testing.T) {
		msgs, err := convertMessages([]chat.Message{
			{Role: chat.RoleAssistant, Content: []chat.ContentBlock{chat.ThinkingBlock{Text: "x"}}},
		})
		require.NoError(t, err)
		assert.Empty(t, msgs)
	})

	t.Run("tool use round trips", func(t *testing.T) {
		msgs, err := convertMessages([]chat.Message{
			{Role: chat.RoleAssistant, Content: []chat.ContentBlock{
				chat.ToolUseBlock{ID: "toolu_01", Name: "read_file", Input: json.RawMessage(`{"path":"x"}`)},
			}},
			chat.NewToolResult("toolu_01", "contents", false),
		})
		require.NoError(t, err)
		assert.Len(t, msgs, 2)
	})

	t.Run("invalid tool input", func(t *testing.T) {
		_, err := convertMessages([]chat.Message{
			{Role: chat.RoleAssistant, Content: []chat.ContentBlock{
				chat.ToolUseBlock{ID: "toolu_01", Name: "read_file", Input: json.RawMessage(`{`)},
			}},
		})
		assert.Error(t, err)
	})
}

func TestConvertTools(t *testing.T) {
	schemas := []tools.Schema{
		{
			Name:        "read_file",
			Description: "Reads a file",
			Properties: map[string]map[string]any{
				"path": {"type": "string", "description": "The path"},
			},
			Required: []string{"path"},
		},
	}

	params := convertTools(schemas)
	require.Len(t, params, 1)
	require.NotNil(t, params[0].OfTool)
	assert.Equal(t, "read_file", params[0].OfTool.Name)
	assert.Equal(t, []string{"path"}, params[0].OfTool.InputSchema.Required)
}

func TestStopReasonFromFinish(t *testing.T) {
	assert.Equal(t, "tool_use", stopReasonFromFinish("tool_calls"))
	assert.Equal(t, "max_tokens", stopReasonFromFinish("length"))
	assert.Equal(t, "end_turn", stopReasonFromFinish("stop"))
	assert.Equal(t, "end_turn", stopReasonFromFinish(""))
}

func TestOpenAIBuildParams(t *testing.T) {
	p := NewOpenAI("sk-test")
	params := p.buildParams(Request{
		Model:     "gpt-4o",
		MaxTokens: 512,
		System:    "be terse",
		Messages:  []chat.Message{chat.NewUserText("hello")},
		Tools: []tools.Schema{
			{Name: "double", Description: "Doubles", Properties: map[string]map[string]any{}, Required: nil},
		},
	})

	// System message first, then the user turn
	require.Len(t, params.Messages, 2)
	assert.Equal(t, "gpt-4o", string(params.Model))
	require.Len(t, params.Tools, 1)
	assert.Equal(t, "double", params.Tools[0].Function.Name)
}
