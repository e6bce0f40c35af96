package domain

import (
	"time"

	"github.com/google/uuid"
)

type PresenceStatus string

const (
	PresenceOnline       PresenceStatus = "online"
	PresenceDisconnected PresenceStatus = "disconnected"
)

// Presence records that a connection represents a participant inside a room.
type Presence struct {
	ID           uuid.UUID
	Participant  string
	RoomID       string
	ConnectionID string
	Status       PresenceStatus
	JoinedAt     time.Time
	LeftAt       *time.Time
}

func NewPresence(id uuid.UUID, participant, roomID, connectionID string, joinedAt time.Time) *Presence {
	return &Presence{
		ID:           id,
		Participant:  participant,
		RoomID:       roomID,
		ConnectionID: connectionID,
		Status:       PresenceOnline,
		JoinedAt:     joinedAt,
	}
}

// IsLive reports whether the row is the active membership of its connection.
func (p *Presence) IsLive() bool {
	return p.Status == PresenceOnline && p.LeftAt == nil
}

// MarkLeft closes the row.
func (p *Presence) MarkLeft(at time.Time) {
	p.Status = PresenceDisconnected
	p.LeftAt = &at
}
