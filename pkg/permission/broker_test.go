package permission

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/parley/pkg/chat"
	"github.com/harun/parley/pkg/tools"
)

func gatedTool(name string) *tools.Definition {
	return &tools.Definition{
		Name:               name,
		Description:        "Test tool",
		RequiresPermission: true,
		Handler: func(ctx context.Context, input map[string]any) (string, error) {
			return "", nil
		},
	}
}

func openTool(name string) *tools.Definition {
	def := gatedTool(name)
	def.RequiresPermission = false
	return def
}

func TestBrokerGate(t *testing.T) {
	t.Run("no permission needed", func(t *testing.T) {
		b := NewBroker(zerolog.Nop())
		decision := b.Gate(openTool("free"), "toolu_01", nil)
		assert.Equal(t, AutoApproved, decision)
		assert.Equal(t, 0, b.PendingCount())
	})

	t.Run("permission needed parks the use", func(t *testing.T) {
		b := NewBroker(zerolog.Nop())
		decision := b.Gate(gatedTool("guarded"), "toolu_01", json.RawMessage(`{"x":1}`))
		assert.Equal(t, AwaitingApproval, decision)
		assert.Equal(t, 1, b.PendingCount())
	})

	t.Run("always-allowed skips the gate", func(t *testing.T) {
		b := NewBroker(zerolog.Nop())
		def := gatedTool("guarded")

		b.Gate(def, "toolu_01", nil)
		_, approved, err := b.Resolve("toolu_01", chat.SelectionAllowAlways)
		require.NoError(t, err)
		assert.True(t, approved)

		decision := b.Gate(def, "toolu_02", nil)
		assert.Equal(t, AutoApproved, decision)
		assert.Equal(t, 0, b.PendingCount())
	})
}

func TestBrokerResolve(t *testing.T) {
	t.Run("allow once", func(t *testing.T) {
		b := NewBroker(zerolog.Nop())
		def := gatedTool("guarded")
		b.Gate(def, "toolu_01", json.RawMessage(`{"x":1}`))

		use, approved, err := b.Resolve("toolu_01", chat.SelectionAllowOnce)
		require.NoError(t, err)
		assert.True(t, approved)
		assert.Equal(t, "toolu_01", use.RequestID)
		assert.Equal(t, def, use.Tool)
		assert.JSONEq(t, `{"x":1}`, string(use.RawInput))
		assert.Equal(t, 0, b.PendingCount())
		assert.False(t, b.AlwaysAllowed("guarded"))
	})

	t.Run("allow always records the tool name", func(t *testing.T) {
		b := NewBroker(zerolog.Nop())
		b.Gate(gatedTool("guarded"), "toolu_01", nil)

		_, approved, err := b.Resolve("toolu_01", chat.SelectionAllowAlways)
		require.NoError(t, err)
		assert.True(t, approved)
		assert.True(t, b.AlwaysAllowed("guarded"))
	})

	t.Run("deny", func(t *testing.T) {
		b := NewBroker(zerolog.Nop())
		b.Gate(gatedTool("guarded"), "toolu_01", nil)

		use, approved, err := b.Resolve("toolu_01", chat.SelectionDeny)
		require.NoError(t, err)
		assert.False(t, approved)
		assert.Equal(t, "toolu_01", use.RequestID)
		assert.False(t, b.AlwaysAllowed("guarded"))
	})

	t.Run("unknown request id", func(t *testing.T) {
		b := NewBroker(zerolog.Nop())
		_, _, err := b.Resolve("toolu_99", chat.SelectionAllowOnce)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown tool use")
	})

	t.Run("double resolve fails", func(t *testing.T) {
		b := NewBroker(zerolog.Nop())
		b.Gate(gatedTool("guarded"), "toolu_01", nil)

		_, _, err := b.Resolve("toolu_01", chat.SelectionAllowOnce)
		require.NoError(t, err)

		_, _, err = b.Resolve("toolu_01", chat.SelectionAllowOnce)
		assert.Error(t, err)
	})

	t.Run("unknown selection leaves state intact", func(t *testing.T) {
		b := NewBroker(zerolog.Nop())
		b.Gate(gatedTool("guarded"), "toolu_01", nil)

		_, _, err := b.Resolve("toolu_01", chat.Selection("Maybe"))
		require.Error(t, err)
		assert.Equal(t, 1, b.PendingCount())
	})
}
