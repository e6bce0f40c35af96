package websocket

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ayushpatel2508/auctions/internal/auction/application"
)

// MessageType names an inbound client message.
type MessageType string

const (
	MessageTypeJoinRoom  MessageType = "join-room"
	MessageTypePlaceBid  MessageType = "place-bid"
	MessageTypeLeaveRoom MessageType = "leave-room"
)

// BaseMessage is the envelope of every frame in both directions.
type BaseMessage struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type JoinRoomPayload struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
}

type PlaceBidPayload struct {
	RoomID    string   `json:"roomId"`
	Username  string   `json:"username"`
	BidAmount *float64 `json:"bidAmount"`
}

type LeaveRoomPayload struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
	Reason   string `json:"reason"`
}

// ServerMessage is an outbound frame.
type ServerMessage struct {
	Type    application.EventType `json:"type"`
	Payload any                   `json:"payload"`
}

var errMalformed = errors.New("malformed message")

// strictUnmarshal rejects unknown fields and trailing data.
func strictUnmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data", errMalformed)
	}
	return nil
}

// decodeMessage parses one inbound frame into its typed payload.
func decodeMessage(data []byte) (MessageType, any, error) {
	var base BaseMessage
	if err := strictUnmarshal(data, &base); err != nil {
		return "", nil, err
	}
	if len(base.Payload) == 0 || string(base.Payload) == "null" {
		return base.Type, nil, fmt.Errorf("%w: missing payload", errMalformed)
	}

	switch base.Type {
	case MessageTypeJoinRoom:
		var p JoinRoomPayload
		if err := strictUnmarshal(base.Payload, &p); err != nil {
			return base.Type, nil, err
		}
		if p.RoomID == "" || p.Username == "" {
			return base.Type, nil, fmt.Errorf("%w: roomId and username are required", errMalformed)
		}
		return base.Type, p, nil

	case MessageTypePlaceBid:
		var p PlaceBidPayload
		if err := strictUnmarshal(base.Payload, &p); err != nil {
			return base.Type, nil, err
		}
		if p.RoomID == "" || p.Username == "" || p.BidAmount == nil {
			return base.Type, nil, fmt.Errorf("%w: roomId, username and bidAmount are required", errMalformed)
		}
		return base.Type, p, nil

	case MessageTypeLeaveRoom:
		var p LeaveRoomPayload
		if err := strictUnmarshal(base.Payload, &p); err != nil {
			return base.Type, nil, err
		}
		if p.RoomID == "" || p.Username == "" {
			return base.Type, nil, fmt.Errorf("%w: roomId and username are required", errMalformed)
		}
		return base.Type, p, nil

	default:
		return base.Type, nil, fmt.Errorf("%w: unknown message type %q", errMalformed, base.Type)
	}
}

func encodeEvent(ev application.Event) ([]byte, error) {
	return json.Marshal(ServerMessage{Type: ev.Type, Payload: ev.Payload})
}
