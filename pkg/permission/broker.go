// Package permission gates sensitive tool invocations behind an asynchronous
// human-approval round trip.
package permission

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/harun/parley/pkg/chat"
	"github.com/harun/parley/pkg/tools"
)

// Decision is the outcome of gating one tool-use block.
type Decision int

const (
	// AutoApproved means the tool may be invoked immediately: it either
	// requires no permission or its name was previously always-allowed.
	AutoApproved Decision = iota
	// AwaitingApproval means the block was queued and the user must answer
	// a permission request before anything runs.
	AwaitingApproval
)

// PendingToolUse is a tool-use block parked until the user responds. It is
// keyed by the provider-issued tool-use id.
type PendingToolUse struct {
	RequestID string
	Tool      *tools.Definition
	RawInput  json.RawMessage
}

// Broker tracks tool uses awaiting approval plus the set of tool names the
// user has allowed for the rest of the session. One broker belongs to one
// session and is only touched from that session's goroutine, so no locking
// is needed.
type Broker struct {
	pending map[string]PendingToolUse
	allowed map[string]struct{}
	logger  zerolog.Logger
}

// NewBroker creates an empty broker for one session.
func NewBroker(logger zerolog.Logger) *Broker {
	return &Broker{
		pending: make(map[string]PendingToolUse),
		allowed: make(map[string]struct{}),
		logger:  logger.With().Str("component", "permission").Logger(),
	}
}

// Gate decides what happens to one tool-use block. Blocks that need
// permission are recorded as pending; the caller emits the permission
// request and stops auto-continuing past the block this round.
func (b *Broker) Gate(def *tools.Definition, requestID string, rawInput json.RawMessage) Decision {
	if !def.RequiresPermission || b.AlwaysAllowed(def.Name) {
		return AutoApproved
	}

	b.pending[requestID] = PendingToolUse{
		RequestID: requestID,
		Tool:      def,
		RawInput:  rawInput,
	}
	b.logger.Debug().
		Str("tool", def.Name).
		Str("request_id", requestID).
		Msg("Tool use awaiting approval")
	return AwaitingApproval
}

// Resolve consumes the pending entry for requestID. AllowAlways additionally
// marks the tool name as allowed for the rest of the session before
// resolving. A response for an unknown or already-resolved requestID is a
// protocol error and changes no state.
func (b *Broker) Resolve(requestID string, selection chat.Selection) (PendingToolUse, bool, error) {
	use, exists := b.pending[requestID]
	if !exists {
		return PendingToolUse{}, false, fmt.Errorf("unknown tool use: %s", requestID)
	}

	var approved bool
	switch selection {
	case chat.SelectionAllowOnce:
		approved = true
	case chat.SelectionAllowAlways:
		b.allowed[use.Tool.Name] = struct{}{}
		approved = true
	case chat.SelectionDeny:
		approved = false
	default:
		return PendingToolUse{}, false, fmt.Errorf("unknown permission selection %q", selection)
	}

	delete(b.pending, requestID)
	b.logger.Info().
		Str("tool", use.Tool.Name).
		Str("request_id", requestID).
		Str("selection", string(selection)).
		Msg("Tool permission resolved")
	return use, approved, nil
}

// AlwaysAllowed reports whether the tool name is exempt from future gates.
func (b *Broker) AlwaysAllowed(name string) bool {
	_, ok := b.allowed[name]
	return ok
}

// PendingCount returns the number of tool uses still awaiting a response.
func (b *Broker) PendingCount() int {
	return len(b.pending)
}
