package presence

import (
	"github.com/goccy/go-json"
)

// MessageType is the "type" field of every frame on the socket.
type MessageType string

const (
	// Client -> server
	TypeJoin           MessageType = "join"
	TypeLocationUpdate MessageType = "location_update"
	TypeLeave          MessageType = "leave"

	// Server -> client
	TypePresenceCount     MessageType = "presence_count"
	TypeLocationBroadcast MessageType = "location_broadcast"
	TypePresenceSnapshot  MessageType = "presence_snapshot"
)

// Envelope wraps every frame in both directions.
type Envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// JoinPayload binds the connection to a user.
type JoinPayload struct {
	UserID      int64  `json:"user_id" validate:"required,gt=0"`
	DisplayName string `json:"display_name" validate:"required,max=120"`
}

// LocationPayload is a client position report. Values are not range checked.
type LocationPayload struct {
	Latitude  *float64 `json:"latitude" validate:"required"`
	Longitude *float64 `json:"longitude" validate:"required"`
}

// PresenceCountPayload carries the number of distinct joined users.
type PresenceCountPayload struct {
	Count int `json:"count"`
}

// LocationBroadcastPayload is fanned out to every connection, the sender included.
type LocationBroadcastPayload struct {
	UserID      int64   `json:"user_id"`
	DisplayName string  `json:"display_name"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

// PresenceSnapshotPayload is sent to a connection right after it joins.
type PresenceSnapshotPayload struct {
	Users []LiveUserState `json:"users"`
}

type outbound struct {
	Type    MessageType `json:"type"`
	Payload any         `json:"payload"`
}

// encodeFrame marshals a server frame.
func encodeFrame(t MessageType, payload any) ([]byte, error) {
	return json.Marshal(outbound{Type: t, Payload: payload})
}
