package server

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/harun/parley/pkg/chat"
)

// wsTransport writes outgoing frames to a WebSocket connection. The mutex
// serializes writers; gorilla/websocket supports at most one concurrent
// writer per connection. A write failure cancels the connection context so
// an in-flight provider stream does not outlive its peer.
type wsTransport struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	cancel context.CancelFunc
}

func newWSTransport(conn *websocket.Conn, cancel context.CancelFunc) *wsTransport {
	return &wsTransport{conn: conn, cancel: cancel}
}

func (t *wsTransport) Send(msg chat.Outgoing) error {
	data, err := chat.EncodeOutgoing(msg)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.cancel()
		return err
	}
	return nil
}

func decodeFrame(data []byte) (chat.Incoming, error) {
	return chat.DecodeIncoming(data)
}
