package events

import (
	"context"
	"time"

	"github.com/ayushpatel2508/auctions/internal/shared/logger"
	"github.com/google/uuid"
)

var log = logger.GetLogger()

// Domain event types published after a room mutation commits.
const (
	TypeBidAccepted      = "bid.accepted"
	TypeAuctionFinalized = "auction.finalized"
	TypeAuctionDeleted   = "auction.deleted"
)

// Event is the envelope written to the outbound bus.
type Event struct {
	ID         uuid.UUID `json:"id"`
	Type       string    `json:"type"`
	RoomID     string    `json:"roomId"`
	OccurredAt time.Time `json:"occurredAt"`
	Data       any       `json:"data"`
}

func New(eventType, roomID string, at time.Time, data any) Event {
	return Event{ID: uuid.New(), Type: eventType, RoomID: roomID, OccurredAt: at, Data: data}
}

// Publisher delivers domain events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Noop drops every event.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close() error                         { return nil }
