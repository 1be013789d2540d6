// Package protocol defines the WebSocket message types and structures used for
// communication between the client and server. Inbound frames carry a type
// discriminator and a content string; outbound frames wrap a typed payload in
// a {"type": ..., "data": {...}} envelope.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// Message type constants
// ---------------------------------------------------------------------------

// Client -> Server event types.
const (
	TypeMessage     = "message"
	TypeSetUsername = "set_username"
	TypeTyping      = "typing"
)

// Server -> Client frame types.
const (
	TypeUsernameChanged = "username_changed"
	TypeUserJoined      = "user_joined"
	TypeUserLeft        = "user_left"
)

// DefaultUsername is the display name assigned to sessions that have not
// authenticated or that clear their name.
const DefaultUsername = "Anonymous"

// ---------------------------------------------------------------------------
// Client -> Server events
// ---------------------------------------------------------------------------

// Event is a decoded inbound client action.
type Event struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// DecodeEvent parses raw WebSocket text bytes into an Event.
//
// Frames that are empty or whitespace-only are dropped before any decode is
// attempted: DecodeEvent returns ok=false and the caller must not dispatch.
// Frames that do not parse as a JSON object fall back to a plain chat message
// whose content is the raw frame text, so clients predating the typed
// protocol keep working.
func DecodeEvent(data []byte) (Event, bool) {
	raw := string(data)
	if strings.TrimSpace(raw) == "" {
		return Event{}, false
	}

	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil || ev.Type == "" {
		return Event{Type: TypeMessage, Content: raw}, true
	}

	switch ev.Type {
	case TypeMessage, TypeSetUsername, TypeTyping:
		return ev, true
	default:
		// Unknown discriminator: same fallback as unparseable JSON.
		return Event{Type: TypeMessage, Content: raw}, true
	}
}

// ---------------------------------------------------------------------------
// Server -> Client frame payloads
// ---------------------------------------------------------------------------

// MessageData is the payload of a broadcast chat message.
type MessageData struct {
	Username  string    `json:"username"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// UsernameChangedData announces a display-name change to all sessions.
type UsernameChangedData struct {
	OldUsername string `json:"old_username"`
	NewUsername string `json:"new_username"`
}

// UserJoinedData announces a new session; Count is the registry size
// immediately after admission.
type UserJoinedData struct {
	Username string `json:"username"`
	Count    int    `json:"count"`
}

// UserLeftData announces a departed session; Count is the registry size
// immediately after eviction.
type UserLeftData struct {
	Username string `json:"username"`
	Count    int    `json:"count"`
}

// TypingData relays a typing indicator under the sender's current name.
type TypingData struct {
	Username string `json:"username"`
}

// frame is the outbound wire envelope.
type frame struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// NewFrame JSON-encodes an outbound frame with the given type discriminator
// and payload. The payload should be one of the *Data structs above.
func NewFrame(frameType string, payload interface{}) ([]byte, error) {
	out, err := json.Marshal(frame{Type: frameType, Data: payload})
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal %q frame: %w", frameType, err)
	}
	return out, nil
}
