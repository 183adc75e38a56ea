package chat

import (
	"encoding/json"
	"strings"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of the conversation: an ordered sequence of content
// blocks tagged with a role. Messages are immutable once appended to history.
type Message struct {
	Role    Role
	Content []ContentBlock
}

// ContentBlock is the closed union of block kinds a message can carry.
// The unexported marker keeps the union sealed so consumers can type-switch
// exhaustively over the five variants.
type ContentBlock interface {
	contentBlock()
}

// TextBlock is visible assistant or user text.
type TextBlock struct {
	Text string
}

// ThinkingBlock carries the model's internal reasoning. It is opaque to tools
// and never re-sent to the provider.
type ThinkingBlock struct {
	Text string
}

// ToolUseBlock is the model's request to invoke a named tool. ID is the
// provider-issued tool-use id and Input the fully assembled JSON input.
type ToolUseBlock struct {
	ID    string
	Name  string
	Input json.RawMessage
}

// ToolResultBlock feeds a tool's output (or a denial) back to the model.
type ToolResultBlock struct {
	ToolUseID string
	Output    string
	IsError   bool
}

// RedactedThinkingBlock is reasoning withheld by the provider.
type RedactedThinkingBlock struct{}

func (TextBlock) contentBlock()             {}
func (ThinkingBlock) contentBlock()         {}
func (ToolUseBlock) contentBlock()          {}
func (ToolResultBlock) contentBlock()       {}
func (RedactedThinkingBlock) contentBlock() {}

// NewUserText builds a user message with a single text block.
func NewUserText(text string) Message {
	return Message{Role: RoleUser, Content: []ContentBlock{TextBlock{Text: text}}}
}

// NewToolResult builds the user-role message that carries one tool result.
func NewToolResult(toolUseID, output string, isError bool) Message {
	return Message{
		Role: RoleUser,
		Content: []ContentBlock{
			ToolResultBlock{ToolUseID: toolUseID, Output: output, IsError: isError},
		},
	}
}

// Text concatenates the message's text blocks in order.
func (m Message) Text() string {
	var sb strings.Builder
	for _, block := range m.Content {
		if text, ok := block.(TextBlock); ok {
			sb.WriteString(text.Text)
		}
	}
	return sb.String()
}

// History is the append-only conversation record owned by one session.
type History struct {
	messages []Message
}

// NewHistory creates an empty history.
func NewHistory() *History {
	return &History{}
}

// Append adds a message to the history.
func (h *History) Append(msg Message) {
	h.messages = append(h.messages, msg)
}

// Messages returns a copy of the recorded messages, oldest first.
func (h *History) Messages() []Message {
	out := make([]Message, len(h.messages))
	copy(out, h.messages)
	return out
}

// Len returns the number of recorded messages.
func (h *History) Len() int {
	return len(h.messages)
}
