package application

import (
	"context"
)

// Get returns the auction with its most recent bids, its live presence rows and the time
// left on the countdown (zero once ended).
func (s *AuctionService) Get(ctx context.Context, roomID string) (*AuctionDetails, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	a, err := s.repos.Auctions.FindByRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	bids, err := s.repos.Bids.ListByRoom(ctx, roomID, RecentBidsLimit)
	if err != nil {
		return nil, err
	}
	online, err := s.repos.Presence.ListOnline(ctx, roomID)
	if err != nil {
		return nil, err
	}

	details := &AuctionDetails{Auction: a, RecentBids: bids, Online: online}
	if a.IsActive() {
		details.TimeRemaining = max(a.TimeRemaining(s.clock.Now()), 0)
	}
	return details, nil
}
