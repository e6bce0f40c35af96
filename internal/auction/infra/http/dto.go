package http

import (
	"time"

	"github.com/ayushpatel2508/auctions/internal/auction/domain"
)

type createAuctionRequest struct {
	Title         string  `json:"title"`
	Description   string  `json:"description"`
	StartingPrice float64 `json:"startingPrice"`
	Duration      int     `json:"duration"` // minutes
}

type auctionResponse struct {
	RoomID             string    `json:"roomId"`
	Title              string    `json:"title"`
	Description        string    `json:"description"`
	StartingPrice      float64   `json:"startingPrice"`
	CurrentBid         float64   `json:"currentBid"`
	CreatedBy          string    `json:"createdBy"`
	HighestBidder      *string   `json:"highestBidder"`
	Status             string    `json:"status"`
	Duration           int       `json:"duration"`
	EndTime            time.Time `json:"endTime"`
	OnlineParticipants []string  `json:"onlineUsers"`
	JoinedParticipants []string  `json:"joinedUsers"`
	Winner             *string   `json:"winner,omitempty"`
	FinalPrice         float64   `json:"finalPrice,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
}

func toAuctionResponse(a *domain.Auction) auctionResponse {
	return auctionResponse{
		RoomID:             a.RoomID,
		Title:              a.Title,
		Description:        a.Description,
		StartingPrice:      a.StartingPrice,
		CurrentBid:         a.CurrentBid,
		CreatedBy:          a.CreatedBy,
		HighestBidder:      a.HighestBidder,
		Status:             string(a.Status),
		Duration:           a.DurationMinutes,
		EndTime:            a.EndTime,
		OnlineParticipants: nonNil(a.OnlineParticipants),
		JoinedParticipants: nonNil(a.JoinedParticipants),
		Winner:             a.Winner,
		FinalPrice:         a.FinalPrice,
		CreatedAt:          a.CreatedAt,
	}
}

type bidResponse struct {
	ID        string    `json:"id"`
	Bidder    string    `json:"username"`
	Amount    float64   `json:"bidAmount"`
	IsWinning bool      `json:"isWinning"`
	PlacedAt  time.Time `json:"timestamp"`
}

func toBidResponses(bids []*domain.Bid) []bidResponse {
	out := make([]bidResponse, 0, len(bids))
	for _, b := range bids {
		out = append(out, bidResponse{
			ID:        b.ID.String(),
			Bidder:    b.Bidder,
			Amount:    b.Amount,
			IsWinning: b.IsWinning,
			PlacedAt:  b.PlacedAt,
		})
	}
	return out
}

type presenceResponse struct {
	Username string    `json:"username"`
	JoinedAt time.Time `json:"joinedAt"`
}

type auctionDetailsResponse struct {
	Auction       auctionResponse    `json:"auction"`
	RecentBids    []bidResponse      `json:"bids"`
	Online        []presenceResponse `json:"onlineUsers"`
	TimeRemaining int64              `json:"timeRemaining"` // milliseconds
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
