package chat

import (
	"encoding/json"
	"fmt"
)

// Wire message type tags. The client and server agree on these
// discriminators; everything else in a frame is variant-specific.
const (
	typeTextMessage            = "message"
	typeToolPermissionResponse = "tool-permission-response"
	typeText                   = "text"
	typeThinking               = "thinking"
	typeToolCall               = "tool-call"
	typeToolPermissionRequest  = "tool-permission-request"
)

// Selection is the user's answer to a tool permission request.
type Selection string

const (
	SelectionAllowOnce   Selection = "AllowOnce"
	SelectionAllowAlways Selection = "AllowAlways"
	SelectionDeny        Selection = "Deny"
)

// Valid reports whether the selection is one of the three known values.
func (s Selection) Valid() bool {
	switch s {
	case SelectionAllowOnce, SelectionAllowAlways, SelectionDeny:
		return true
	}
	return false
}

// Incoming is the closed union of frames a client may send.
type Incoming interface {
	incoming()
}

// TextMessage is a user chat message.
type TextMessage struct {
	Message string `json:"message"`
}

// ToolPermissionResponse answers a pending tool permission request.
type ToolPermissionResponse struct {
	RequestID string    `json:"requestId"`
	Selection Selection `json:"selection"`
}

func (TextMessage) incoming()            {}
func (ToolPermissionResponse) incoming() {}

// Outgoing is the closed union of frames the server may send.
type Outgoing interface {
	outgoing()
}

// Text carries assistant text, incremental when Delta is set.
type Text struct {
	Text  string `json:"text"`
	Delta bool   `json:"delta"`
}

// Thinking carries the model's reasoning, incremental when Delta is set.
type Thinking struct {
	Text  string `json:"text"`
	Delta bool   `json:"delta"`
}

// ToolCall reports a tool invocation. It is sent twice per invoked tool:
// once with a nil Output when the invocation starts and once with the
// result when it finishes.
type ToolCall struct {
	Tool   string  `json:"tool"`
	Input  string  `json:"input"`
	Output *string `json:"output"`
}

// ToolPermissionRequest asks the user to approve or deny a tool use.
type ToolPermissionRequest struct {
	RequestID string `json:"requestId"`
	Tool      string `json:"tool"`
	Input     string `json:"input"`
}

func (Text) outgoing()                  {}
func (Thinking) outgoing()              {}
func (ToolCall) outgoing()              {}
func (ToolPermissionRequest) outgoing() {}

type envelope struct {
	Type string `json:"type"`
}

// EncodeOutgoing marshals an outgoing frame with its type tag.
func EncodeOutgoing(msg Outgoing) ([]byte, error) {
	switch m := msg.(type) {
	case Text:
		return tagged(typeText, m)
	case Thinking:
		return tagged(typeThinking, m)
	case ToolCall:
		return tagged(typeToolCall, m)
	case ToolPermissionRequest:
		return tagged(typeToolPermissionRequest, m)
	default:
		return nil, fmt.Errorf("unknown outgoing message type %T", msg)
	}
}

// DecodeOutgoing unmarshals an outgoing frame by its type tag.
func DecodeOutgoing(data []byte) (Outgoing, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("invalid frame: %w", err)
	}
	switch env.Type {
	case typeText:
		var m Text
		return m, json.Unmarshal(data, &m)
	case typeThinking:
		var m Thinking
		return m, json.Unmarshal(data, &m)
	case typeToolCall:
		var m ToolCall
		return m, json.Unmarshal(data, &m)
	case typeToolPermissionRequest:
		var m ToolPermissionRequest
		return m, json.Unmarshal(data, &m)
	default:
		return nil, fmt.Errorf("unknown outgoing message type %q", env.Type)
	}
}

// EncodeIncoming marshals an inbound frame with its type tag.
func EncodeIncoming(msg Incoming) ([]byte, error) {
	switch m := msg.(type) {
	case TextMessage:
		return tagged(typeTextMessage, m)
	case ToolPermissionResponse:
		return tagged(typeToolPermissionResponse, m)
	default:
		return nil, fmt.Errorf("unknown incoming message type %T", msg)
	}
}

// DecodeIncoming unmarshals an inbound frame by its type tag.
func DecodeIncoming(data []byte) (Incoming, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("invalid frame: %w", err)
	}
	switch env.Type {
	case typeTextMessage:
		var m TextMessage
		return m, json.Unmarshal(data, &m)
	case typeToolPermissionResponse:
		var m ToolPermissionResponse
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		if !m.Selection.Valid() {
			return nil, fmt.Errorf("unknown permission selection %q", m.Selection)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown incoming message type %q", env.Type)
	}
}

func tagged(typ string, body any) ([]byte, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	tag, err := json.Marshal(envelope{Type: typ})
	if err != nil {
		return nil, err
	}
	if string(raw) == "{}" {
		return tag, nil
	}
	// Splice the type tag into the variant's own object.
	return append(append(tag[:len(tag)-1], ','), raw[1:]...), nil
}

// PrettyPrint renders a JSON value with two-space indentation, matching what
// the web client shows in tool call and permission request cards.
func PrettyPrint(raw json.RawMessage) string {
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return string(raw)
	}
	out, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return string(raw)
	}
	return string(out)
}
