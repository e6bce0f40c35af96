package domain

import "errors"

// not found
var (
	ErrAuctionNotFound     = errors.New("auction not found")
	ErrParticipantNotFound = errors.New("participant not found")
)

// precondition violations
var (
	ErrAuctionEnded    = errors.New("auction has ended")
	ErrBidTooLow       = errors.New("bid must be higher than current bid")
	ErrInvalidAmount   = errors.New("bid amount must be a positive number")
	ErrConsecutiveBid  = errors.New("consecutive bids are not allowed")
	ErrNotCreator      = errors.New("only the auction creator can do this")
	ErrInvalidAuction  = errors.New("invalid auction")
	ErrRoomExists      = errors.New("auction room already exists")
	ErrConnectionBusy  = errors.New("connection already joined another room")
	ErrPresenceMissing = errors.New("no live presence for connection")
)

// IsSoft reports whether err is an expected user mistake rather than a protocol error.
func IsSoft(err error) bool {
	return errors.Is(err, ErrConsecutiveBid)
}

// IsNotFound reports whether err names an unknown room or participant.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAuctionNotFound) || errors.Is(err, ErrParticipantNotFound)
}
