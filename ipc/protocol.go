package ipc

import (
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"
)

// maxMessageSize guards against corrupted frames or oversized payloads.
const maxMessageSize = 1 << 20

// Envelope is the wire format shared with the game server. Data is kept as
// RawMessage so handlers can defer deserialization to the concrete type.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

func NewEnvelope(msgType string, data any) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal data: %w", err)
	}
	return Envelope{Type: msgType, Data: raw}, nil
}

// Decode unmarshals the envelope payload into v.
func (e Envelope) Decode(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("%s: empty payload", e.Type)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("unmarshal %s: %w", e.Type, err)
	}
	return nil
}

// ReadEnvelope reads a single text frame and decodes it as an envelope.
func ReadEnvelope(ws *websocket.Conn) (Envelope, error) {
	msgType, payload, err := ws.ReadMessage()
	if err != nil {
		return Envelope{}, fmt.Errorf("read frame: %w", err)
	}
	if msgType != websocket.TextMessage {
		return Envelope{}, fmt.Errorf("unexpected frame type: %d", msgType)
	}

	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Envelope{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("envelope without type")
	}
	return env, nil
}

func WriteEnvelope(ws *websocket.Conn, env Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if err := ws.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}
