package session

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/harun/parley/internal/observability"
	"github.com/harun/parley/pkg/chat"
	"github.com/harun/parley/pkg/provider"
)

// Transport delivers outgoing frames to the connected client. Frames must be
// delivered in call order within one connection.
type Transport interface {
	Send(msg chat.Outgoing) error
}

// Accumulator folds one provider event stream into a complete assistant
// message. Text and thinking deltas are forwarded to the transport the
// moment they arrive; tool input fragments are assembled silently.
type Accumulator struct {
	transport Transport
	logger    zerolog.Logger
}

// NewAccumulator creates an accumulator bound to one transport.
func NewAccumulator(transport Transport, logger zerolog.Logger) *Accumulator {
	return &Accumulator{
		transport: transport,
		logger:    logger.With().Str("component", "accumulator").Logger(),
	}
}

// Run consumes events until the stream ends and returns the completed
// message plus the provider's stop reason. A stream error is surfaced as-is
// with no message; the caller treats it as fatal for the round.
func (a *Accumulator) Run(events <-chan provider.Event) (chat.Message, string, error) {
	var (
		blocks []chat.ContentBlock
		open   chat.ContentBlock
		text   strings.Builder
		input  strings.Builder
	)

	closeBlock := func() {
		switch b := open.(type) {
		case nil:
			return
		case chat.TextBlock:
			blocks = append(blocks, chat.TextBlock{Text: text.String()})
		case chat.ThinkingBlock:
			blocks = append(blocks, chat.ThinkingBlock{Text: text.String()})
		case chat.ToolUseBlock:
			raw := input.String()
			if raw == "" {
				raw = "{}"
			}
			blocks = append(blocks, chat.ToolUseBlock{
				ID:    b.ID,
				Name:  b.Name,
				Input: json.RawMessage(raw),
			})
		case chat.RedactedThinkingBlock:
			blocks = append(blocks, b)
		}
		open = nil
		text.Reset()
		input.Reset()
	}

	for event := range events {
		switch event.Kind {
		case provider.EventBlockStart:
			closeBlock()
			open = event.Block

		case provider.EventTextDelta:
			text.WriteString(event.Text)
			a.forward(chat.Text{Text: event.Text, Delta: true}, "text")

		case provider.EventThinkingDelta:
			text.WriteString(event.Text)
			a.forward(chat.Thinking{Text: event.Text, Delta: true}, "thinking")

		case provider.EventInputJSONDelta:
			input.WriteString(event.Text)

		case provider.EventSignatureDelta, provider.EventCitationDelta:
			a.logger.Debug().Int("kind", int(event.Kind)).Msg("Unhandled auxiliary delta")

		case provider.EventBlockStop:
			closeBlock()

		case provider.EventMessageStop:
			closeBlock()
			return chat.Message{Role: chat.RoleAssistant, Content: blocks}, event.StopReason, nil

		case provider.EventError:
			return chat.Message{}, "", event.Err
		}
	}

	return chat.Message{}, "", errors.New("stream ended without completion")
}

func (a *Accumulator) forward(msg chat.Outgoing, channel string) {
	observability.RecordDelta(channel)
	if err := a.transport.Send(msg); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to forward delta")
	}
}
