package domain

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"
)

// Status is the lifecycle state of an auction. The only transition is active -> ended.
type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

const (
	MaxTitleLength       = 100
	MaxDescriptionLength = 500
)

// Auction is the economic state of one room.
type Auction struct {
	RoomID          string
	Title           string
	Description     string
	StartingPrice   float64
	CurrentBid      float64
	CreatedBy       string
	HighestBidder   *string // nil until the first accepted bid
	Status          Status
	DurationMinutes int
	EndTime         time.Time // fixed at creation
	// usernames currently connected to the room
	OnlineParticipants []string
	// usernames that ever joined the room
	JoinedParticipants []string
	Winner             *string
	FinalPrice         float64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// NewAuction validates the creation input and returns an active auction whose current bid
// starts at the starting price.
func NewAuction(roomID, createdBy, title, description string, startingPrice float64, durationMinutes int, now time.Time) (*Auction, error) {
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)

	switch {
	case roomID == "" || createdBy == "":
		return nil, fmt.Errorf("%w: room and creator are required", ErrInvalidAuction)
	case title == "":
		return nil, fmt.Errorf("%w: title is required", ErrInvalidAuction)
	case len([]rune(title)) > MaxTitleLength:
		return nil, fmt.Errorf("%w: title exceeds %d characters", ErrInvalidAuction, MaxTitleLength)
	case len([]rune(description)) > MaxDescriptionLength:
		return nil, fmt.Errorf("%w: description exceeds %d characters", ErrInvalidAuction, MaxDescriptionLength)
	case math.IsNaN(startingPrice) || math.IsInf(startingPrice, 0) || startingPrice < 0:
		return nil, fmt.Errorf("%w: starting price must be a non-negative number", ErrInvalidAuction)
	case durationMinutes < 1:
		return nil, fmt.Errorf("%w: duration must be at least one minute", ErrInvalidAuction)
	}

	return &Auction{
		RoomID:             roomID,
		Title:              title,
		Description:        description,
		StartingPrice:      startingPrice,
		CurrentBid:         startingPrice,
		CreatedBy:          createdBy,
		Status:             StatusActive,
		DurationMinutes:    durationMinutes,
		EndTime:            now.Add(time.Duration(durationMinutes) * time.Minute),
		OnlineParticipants: []string{},
		JoinedParticipants: []string{},
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

func (a *Auction) IsActive() bool { return a.Status == StatusActive }

// IsExpired reports whether an active auction's countdown has elapsed at now.
func (a *Auction) IsExpired(now time.Time) bool {
	return a.IsActive() && !now.Before(a.EndTime)
}

// TimeRemaining is negative once the end time has passed.
func (a *Auction) TimeRemaining(now time.Time) time.Duration {
	return a.EndTime.Sub(now)
}

// IsHighestBidder reports whether participant holds the standing bid.
func (a *Auction) IsHighestBidder(participant string) bool {
	return a.HighestBidder != nil && *a.HighestBidder == participant
}

// CheckBid validates a bid against the current state without mutating it. The current
// highest bidder is always rejected with ErrConsecutiveBid, whatever the amount.
func (a *Auction) CheckBid(participant string, amount float64) error {
	if !a.IsActive() {
		return ErrAuctionEnded
	}
	if a.IsHighestBidder(participant) {
		return ErrConsecutiveBid
	}
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return ErrInvalidAmount
	}
	if amount <= a.CurrentBid {
		return ErrBidTooLow
	}
	return nil
}

// ApplyBid raises the current bid to amount and records participant as highest bidder.
func (a *Auction) ApplyBid(participant string, amount float64, now time.Time) error {
	if err := a.CheckBid(participant, amount); err != nil {
		return err
	}
	bidder := participant
	a.CurrentBid = amount
	a.HighestBidder = &bidder
	a.UpdatedAt = now
	return nil
}

// AddOnline adds participant to the online and ever-joined lists when absent.
func (a *Auction) AddOnline(participant string, now time.Time) {
	if !slices.Contains(a.OnlineParticipants, participant) {
		a.OnlineParticipants = append(a.OnlineParticipants, participant)
	}
	if !slices.Contains(a.JoinedParticipants, participant) {
		a.JoinedParticipants = append(a.JoinedParticipants, participant)
	}
	a.UpdatedAt = now
}

// RemoveOnline drops participant from the online list. The ever-joined list is kept.
func (a *Auction) RemoveOnline(participant string, now time.Time) bool {
	idx := slices.Index(a.OnlineParticipants, participant)
	if idx < 0 {
		return false
	}
	a.OnlineParticipants = slices.Delete(a.OnlineParticipants, idx, idx+1)
	a.UpdatedAt = now
	return true
}

// Finish ends an active auction, fixing the winner and final price. A second call returns
// ErrAuctionEnded and changes nothing.
func (a *Auction) Finish(now time.Time) error {
	if !a.IsActive() {
		return ErrAuctionEnded
	}
	a.Status = StatusEnded
	if a.HighestBidder != nil {
		winner := *a.HighestBidder
		a.Winner = &winner
	}
	a.FinalPrice = a.CurrentBid
	a.UpdatedAt = now
	return nil
}

// Clone returns a deep copy.
func (a *Auction) Clone() *Auction {
	c := *a
	c.OnlineParticipants = slices.Clone(a.OnlineParticipants)
	c.JoinedParticipants = slices.Clone(a.JoinedParticipants)
	if c.OnlineParticipants == nil {
		c.OnlineParticipants = []string{}
	}
	if c.JoinedParticipants == nil {
		c.JoinedParticipants = []string{}
	}
	if a.HighestBidder != nil {
		v := *a.HighestBidder
		c.HighestBidder = &v
	}
	if a.Winner != nil {
		v := *a.Winner
		c.Winner = &v
	}
	return &c
}
