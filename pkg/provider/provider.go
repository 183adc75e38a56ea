// Package provider integrates language-model backends behind a single
// streaming interface. Implementations push incremental events into a
// channel and close it when the stream ends, so the session can consume the
// stream sequentially regardless of the SDK's callback shape.
package provider

import (
	"context"
	"fmt"

	"github.com/harun/parley/pkg/chat"
	"github.com/harun/parley/pkg/tools"
)

// Request is the immutable value sent to the provider for one round. It is
// built fresh from the history, tool schemas and fixed system configuration
// on every call.
type Request struct {
	Model     string
	MaxTokens int
	System    string
	Messages  []chat.Message
	Tools     []tools.Schema
}

// EventKind tags one incremental stream event.
type EventKind int

const (
	// EventBlockStart opens a new content block; Event.Block carries its
	// skeleton (tool-use blocks already have their id and name).
	EventBlockStart EventKind = iota
	// EventTextDelta appends text to the open text block.
	EventTextDelta
	// EventThinkingDelta appends text to the open thinking block.
	EventThinkingDelta
	// EventInputJSONDelta appends a partial-JSON fragment to the open
	// tool-use block's input. Never forwarded to the client.
	EventInputJSONDelta
	// EventSignatureDelta is auxiliary provider data; logged and ignored.
	EventSignatureDelta
	// EventCitationDelta is auxiliary provider data; logged and ignored.
	EventCitationDelta
	// EventBlockStop closes the open content block.
	EventBlockStop
	// EventMessageStop ends the stream; Event.StopReason is set.
	EventMessageStop
	// EventError terminates the stream without a completed message.
	EventError
)

// Event is one incremental update from the model stream.
type Event struct {
	Kind       EventKind
	Block      chat.ContentBlock
	Text       string
	StopReason string
	Err        error
}

// Streamer produces an ordered event stream for one request. The returned
// channel is closed when the stream ends; a terminal EventError is sent
// first when it fails. Cancelling the context aborts the stream.
type Streamer interface {
	Name() string
	Stream(ctx context.Context, req Request) <-chan Event
}

// New creates the named provider. Supported names: anthropic, openai.
func New(name, apiKey string) (Streamer, error) {
	switch name {
	case "anthropic", "":
		return NewAnthropic(apiKey), nil
	case "openai":
		return NewOpenAI(apiKey), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", name)
	}
}
