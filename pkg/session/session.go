package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/harun/parley/internal/observability"
	"github.com/harun/parley/internal/tracing"
	"github.com/harun/parley/pkg/chat"
	"github.com/harun/parley/pkg/permission"
	"github.com/harun/parley/pkg/provider"
	"github.com/harun/parley/pkg/tools"
)

// DeniedResult is the tool result recorded when the user denies a tool use.
const DeniedResult = "Permission denied by user"

const (
	defaultModel     = "claude-3-7-sonnet-latest"
	defaultMaxTokens = 1024
)

// Config carries the collaborators and model parameters for one session.
type Config struct {
	Provider     provider.Streamer
	Registry     *tools.Registry
	Transport    Transport
	Logger       zerolog.Logger
	Model        string
	MaxTokens    int
	SystemPrompt string
}

// Session drives one multi-turn conversation. All methods must be called
// from a single goroutine; the session holds no locks.
type Session struct {
	id           string
	provider     provider.Streamer
	registry     *tools.Registry
	transport    Transport
	broker       *permission.Broker
	accumulator  *Accumulator
	history      *chat.History
	model        string
	maxTokens    int
	systemPrompt string
	logger       zerolog.Logger
}

// New creates a session with a fresh history and permission state.
func New(cfg Config) (*Session, error) {
	if cfg.Provider == nil {
		return nil, errors.New("session: provider is required")
	}
	if cfg.Registry == nil {
		return nil, errors.New("session: registry is required")
	}
	if cfg.Transport == nil {
		return nil, errors.New("session: transport is required")
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	id := uuid.NewString()
	logger := cfg.Logger.With().Str("session_id", id).Logger()

	return &Session{
		id:           id,
		provider:     cfg.Provider,
		registry:     cfg.Registry,
		transport:    cfg.Transport,
		broker:       permission.NewBroker(logger),
		accumulator:  NewAccumulator(cfg.Transport, logger),
		history:      chat.NewHistory(),
		model:        model,
		maxTokens:    maxTokens,
		systemPrompt: cfg.SystemPrompt,
		logger:       logger,
	}, nil
}

// ID returns the session identifier used in logs.
func (s *Session) ID() string { return s.id }

// History exposes the accumulated conversation, mainly for tests.
func (s *Session) History() *chat.History { return s.history }

// Handle processes one inbound frame to completion. For a text message that
// means running provider rounds until the model stops requesting tools; for
// a permission response it means resolving the pending tool use and, once no
// other use is awaiting an answer, resuming the round loop.
func (s *Session) Handle(ctx context.Context, msg chat.Incoming) {
	switch m := msg.(type) {
	case chat.TextMessage:
		s.logger.Info().Int("length", len(m.Message)).Msg("User message received")
		s.history.Append(chat.NewUserText(m.Message))
		s.runRounds(ctx)

	case chat.ToolPermissionResponse:
		use, approved, err := s.broker.Resolve(m.RequestID, m.Selection)
		if err != nil {
			s.logger.Error().Err(err).Str("request_id", m.RequestID).Msg("Invalid permission response")
			return
		}
		observability.RecordPermissionResolution(string(m.Selection))
		observability.RecordPermissionAudit(ctx, use.Tool.Name, s.id, string(m.Selection))
		s.invokeTool(ctx, use.Tool, use.RequestID, use.RawInput, approved)
		if s.broker.PendingCount() > 0 {
			return
		}
		s.runRounds(ctx)
	}
}

// runRounds repeats provider rounds for as long as each completed round
// produced at least one tool result. A round whose message left tool uses
// awaiting approval ends the loop; resolving the last pending use restarts
// it.
func (s *Session) runRounds(ctx context.Context) {
	for {
		roundCtx, span := tracing.StartSpan(ctx, "parley/session", "session.round",
			attribute.String("session_id", s.id),
			attribute.String("provider", s.provider.Name()),
			attribute.String("model", s.model),
		)
		start := time.Now()
		events := s.provider.Stream(roundCtx, provider.Request{
			Model:     s.model,
			MaxTokens: s.maxTokens,
			System:    s.systemPrompt,
			Messages:  s.history.Messages(),
			Tools:     s.registry.Schemas(),
		})
		msg, stopReason, err := s.accumulator.Run(events)
		if err != nil {
			observability.RecordRound(s.provider.Name(), time.Since(start), false)
			span.RecordError(err)
			span.SetStatus(codes.Error, "stream failed")
			span.End()
			s.logger.Error().Err(err).Msg("Provider stream failed")
			return
		}
		observability.RecordRound(s.provider.Name(), time.Since(start), true)
		span.SetAttributes(attribute.String("stop_reason", stopReason))
		span.End()
		s.logger.Debug().
			Str("stop_reason", stopReason).
			Int("blocks", len(msg.Content)).
			Msg("Round completed")
		s.history.Append(msg)

		ranTool := false
		for _, block := range msg.Content {
			switch b := block.(type) {
			case chat.TextBlock:
				s.send(chat.Text{Text: b.Text})

			case chat.ThinkingBlock:
				s.send(chat.Thinking{Text: b.Text})

			case chat.ToolUseBlock:
				def, ok := s.registry.Lookup(b.Name)
				if !ok {
					s.logger.Warn().Str("tool", b.Name).Msg("Model requested unknown tool")
					continue
				}
				switch s.broker.Gate(def, b.ID, b.Input) {
				case permission.AutoApproved:
					s.invokeTool(ctx, def, b.ID, b.Input, true)
					ranTool = true
				case permission.AwaitingApproval:
					observability.RecordPermissionRequest()
					s.send(chat.ToolPermissionRequest{
						RequestID: b.ID,
						Tool:      def.Name,
						Input:     chat.PrettyPrint(b.Input),
					})
					// Keep scanning: later gated uses still get queued and
					// trailing text still gets its complete frame.
				}

			case chat.RedactedThinkingBlock:
				s.logger.Warn().Msg("Redacted thinking block received")
			}
		}

		// The next round may only start once every pending use has been
		// resolved; an unanswered tool_use must never reach the provider.
		if s.broker.PendingCount() > 0 || !ranTool {
			return
		}
	}
}

// invokeTool runs an approved tool and records its result in history. A
// denied use records DeniedResult without touching the handler. The client
// sees the call twice: once before invocation without output, once after
// with it.
func (s *Session) invokeTool(ctx context.Context, def *tools.Definition, requestID string, rawInput json.RawMessage, approved bool) {
	if !approved {
		s.logger.Info().Str("tool", def.Name).Msg("Tool use denied")
		s.history.Append(chat.NewToolResult(requestID, DeniedResult, false))
		return
	}

	pretty := chat.PrettyPrint(rawInput)
	s.send(chat.ToolCall{Tool: def.Name, Input: pretty})

	toolCtx, span := tracing.StartSpan(ctx, "parley/session", "tool.invoke",
		attribute.String("session_id", s.id),
		attribute.String("tool", def.Name),
	)
	start := time.Now()
	output, ok := s.registry.Invoke(toolCtx, def, rawInput)
	observability.RecordToolInvocation(def.Name, time.Since(start), ok)
	status := "success"
	if !ok {
		status = "failure"
		span.SetStatus(codes.Error, "tool failed")
	}
	observability.RecordToolAudit(toolCtx, def.Name, s.id, status, nil)
	span.End()

	s.send(chat.ToolCall{Tool: def.Name, Input: pretty, Output: &output})
	s.history.Append(chat.NewToolResult(requestID, output, !ok))
}

func (s *Session) send(msg chat.Outgoing) {
	if err := s.transport.Send(msg); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to send frame")
	}
}
