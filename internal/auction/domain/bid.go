package domain

import (
	"time"

	"github.com/google/uuid"
)

// Bid is one accepted bid in a room's ledger. Rows are immutable except IsWinning, which
// is true only on the bid currently holding the auction.
type Bid struct {
	ID           uuid.UUID
	RoomID       string
	Bidder       string
	Amount       float64
	IsWinning    bool
	PlacedAt     time.Time
	ConnectionID string // connection the bid arrived on
}

// NewBid creates a new winning Bid instance
func NewBid(id uuid.UUID, roomID, bidder string, amount float64, connectionID string, placedAt time.Time) *Bid {
	return &Bid{
		ID:           id,
		RoomID:       roomID,
		Bidder:       bidder,
		Amount:       amount,
		IsWinning:    true,
		PlacedAt:     placedAt,
		ConnectionID: connectionID,
	}
}
