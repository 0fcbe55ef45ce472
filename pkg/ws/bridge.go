package ws

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cadenza-chat/cadenza/pkg/api"
	"github.com/cadenza-chat/cadenza/pkg/event"
)

const bridgeWriteWait = 10 * time.Second

// Envelope is the JSON message frame delivered to chat clients: a type tag
// plus an arbitrary payload. Lifecycle frames carry the event name separately
// so clients can switch on it without decoding the payload.
type Envelope struct {
	Type         string      `json:"type"`
	Event        string      `json:"event,omitempty"`
	ConnectionID string      `json:"connection_id,omitempty"`
	Payload      interface{} `json:"payload,omitempty"`
	Time         int64       `json:"time"`
}

// Bridge delivers lifecycle events and chat frames to one WebSocket
// connection. A write mutex serializes frames; gorilla connections allow
// only one concurrent writer.
type Bridge struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// NewBridge wraps an upgraded connection.
func NewBridge(conn *websocket.Conn) *Bridge {
	return &Bridge{conn: conn}
}

// SendLifecycleEvent implements event.Bridge.
func (b *Bridge) SendLifecycleEvent(ctx context.Context, clientID string, ev event.Event) error {
	return b.write(ctx, &Envelope{
		Type:         api.EnvelopeLifecycle,
		Event:        ev.EventName(),
		ConnectionID: clientID,
		Payload:      ev,
		Time:         time.Now().UnixMilli(),
	})
}

// Send delivers an application frame (chat deltas, errors, acks).
func (b *Bridge) Send(ctx context.Context, frameType string, payload interface{}) error {
	return b.write(ctx, &Envelope{
		Type:    frameType,
		Payload: payload,
		Time:    time.Now().UnixMilli(),
	})
}

func (b *Bridge) write(ctx context.Context, env *Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.conn.SetWriteDeadline(time.Now().Add(bridgeWriteWait))
	if err := b.conn.WriteJSON(env); err != nil {
		return fmt.Errorf("write frame %s: %w", env.Type, err)
	}
	return nil
}
