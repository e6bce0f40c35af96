package domain

import (
	"context"
	"time"
)

// AuctionRepository is the Auction Record Store.
type AuctionRepository interface {
	Create(ctx context.Context, auction *Auction) error
	FindByRoom(ctx context.Context, roomID string) (*Auction, error)
	// FindByRoomForUpdate locks the row for the rest of the surrounding transaction.
	FindByRoomForUpdate(ctx context.Context, roomID string) (*Auction, error)
	Save(ctx context.Context, auction *Auction) error
	List(ctx context.Context) ([]*Auction, error)
	FindExpired(ctx context.Context, now time.Time, limit int) ([]*Auction, error)
	Delete(ctx context.Context, roomID string) error
}

// BidRepository is the append-only Bid Ledger.
type BidRepository interface {
	Append(ctx context.Context, bid *Bid) error
	MarkAllNonWinning(ctx context.Context, roomID string) error
	MarkWinning(ctx context.Context, roomID, bidder string, amount float64) error
	CountByRoom(ctx context.Context, roomID string) (int, error)
	ListByRoom(ctx context.Context, roomID string, limit int) ([]*Bid, error)
	DeleteByRoom(ctx context.Context, roomID string) error
}

// PresenceRepository is the Presence Tracker.
type PresenceRepository interface {
	// SupersedeParticipant removes every earlier row of participant in the room.
	SupersedeParticipant(ctx context.Context, roomID, participant string) error
	Insert(ctx context.Context, presence *Presence) error
	FindActiveByConnection(ctx context.Context, connectionID string) (*Presence, error)
	MarkLeftByConnection(ctx context.Context, connectionID string, at time.Time) error
	MarkLeftByParticipant(ctx context.Context, roomID, participant string, at time.Time) ([]string, error)
	MarkAllLeft(ctx context.Context, roomID string, at time.Time) error
	ListOnline(ctx context.Context, roomID string) ([]*Presence, error)
	DeleteByRoom(ctx context.Context, roomID string) error
}

// TxManager runs fn as one commit-or-rollback unit. Repository calls made with the ctx
// passed to fn join the transaction.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
