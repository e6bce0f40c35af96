package application

import (
	"fmt"
	"time"
)

// EventType names a server-to-client protocol event.
type EventType string

const (
	EventJoined            EventType = "joined"
	EventPresenceUpdated   EventType = "presence-updated"
	EventParticipantJoined EventType = "participant-joined"
	EventPriceUpdated      EventType = "price-updated"
	EventBidRejectedSoft   EventType = "bid-rejected-soft"
	EventParticipantLeft   EventType = "participant-left"
	EventAuctionFinalized  EventType = "auction-finalized"
	EventRoomDeleted       EventType = "room-deleted"
	EventProtocolError     EventType = "protocol-error"
)

// Event is one outbound protocol message. Payload is one of the payload types below, or a
// string for joined and protocol-error.
type Event struct {
	Type    EventType
	Payload any
}

type PresenceUpdatedPayload struct {
	OnlineUsers      []string `json:"onlineUsers"`
	OnlineUsersCount int      `json:"onlineUsersCount"`
}

type ParticipantJoinedPayload struct {
	Username string `json:"username"`
	Message  string `json:"message"`
}

type PriceUpdatedPayload struct {
	HighestBid    float64 `json:"highestBid"`
	HighestBidder string  `json:"highestBidder"`
}

type BidRejectedSoftPayload struct {
	Message       string  `json:"message"`
	CurrentBid    float64 `json:"currentBid"`
	HighestBidder string  `json:"highestBidder"`
}

type ParticipantLeftPayload struct {
	Username         string   `json:"username"`
	Message          string   `json:"message"`
	IsCreator        bool     `json:"isCreator"`
	OnlineUsers      []string `json:"onlineUsers"`
	OnlineUsersCount int      `json:"onlineUsersCount"`
}

// FinalStats summarises a finalized auction.
type FinalStats struct {
	Title         string    `json:"title"`
	CreatedBy     string    `json:"createdBy"`
	Winner        *string   `json:"winner,omitempty"`
	StartingPrice float64   `json:"startingPrice"`
	FinalPrice    float64   `json:"finalPrice"`
	TotalBids     int       `json:"totalBids"`
	EndedAt       time.Time `json:"endedAt"`
	EndedBy       string    `json:"endedBy"`
}

type AuctionFinalizedPayload struct {
	RoomID     string     `json:"roomId"`
	Winner     *string    `json:"winner,omitempty"`
	FinalPrice float64    `json:"finalPrice"`
	Message    string     `json:"message"`
	FinalStats FinalStats `json:"finalStats"`
	ShowWinner bool       `json:"showWinner"`
}

// DeletionStats summarises a deleted auction.
type DeletionStats struct {
	Title         string    `json:"title"`
	CreatedBy     string    `json:"createdBy"`
	HighestBid    float64   `json:"highestBid"`
	HighestBidder *string   `json:"highestBidder"`
	TotalBids     int       `json:"totalBids"`
	StartingPrice float64   `json:"startingPrice"`
	DeletedAt     time.Time `json:"deletedAt"`
}

type RoomDeletedPayload struct {
	RoomID     string        `json:"roomId"`
	Message    string        `json:"message"`
	FinalStats DeletionStats `json:"finalStats"`
}

// Notifier delivers protocol events to connections. Implementations must not block.
type Notifier interface {
	// Subscribe puts the connection in the room's group, leaving any previous group.
	Subscribe(roomID, connID string)
	Unsubscribe(roomID, connID string)
	Send(connID string, ev Event)
	// Broadcast sends to every connection in the room except exceptConnID ("" for none).
	Broadcast(roomID string, ev Event, exceptConnID string)
	// DisbandRoom drops every connection from the room's group after events already sent to
	// it are delivered.
	DisbandRoom(roomID string)
}

// LeaveReason distinguishes an explicit quit from navigation that only drops the view.
type LeaveReason string

const LeaveManual LeaveReason = "manual_quit"

// FinalizeCause says who ended an auction.
type FinalizeCause string

const (
	CauseExpiry  FinalizeCause = "timer"
	CauseCreator FinalizeCause = "creator"
)

func (c FinalizeCause) message() string {
	if c == CauseCreator {
		return "Auction has been ended by the creator"
	}
	return "Auction has ended due to time expiry"
}

const consecutiveBidMessage = "You cannot place consecutive bids. Wait for another user to bid first."

// SoftRejection is returned for a consecutive bid. It unwraps to domain.ErrConsecutiveBid and
// carries the standing bid for the sender's warning.
type SoftRejection struct {
	CurrentBid    float64
	HighestBidder string
	err           error
}

func (e *SoftRejection) Error() string {
	return fmt.Sprintf("%v: %s holds %.2f", e.err, e.HighestBidder, e.CurrentBid)
}

func (e *SoftRejection) Unwrap() error { return e.err }

// Message is the warning shown to the bidder.
func (e *SoftRejection) Message() string { return consecutiveBidMessage }
