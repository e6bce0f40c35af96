package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/ayushpatel2508/auctions/internal/auction/domain"
	"github.com/ayushpatel2508/auctions/internal/shared/events"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PlaceBid validates and applies a bid under the room lock. Checks run in this order:
// participant, auction, status, consecutive bidder, amount. A consecutive bid returns a
// *SoftRejection.
func (c *Coordinator) PlaceBid(ctx context.Context, roomID, participant, connID string, amount float64) (*domain.Bid, error) {
	log.Info("Executing PlaceBid",
		zap.String("roomID", roomID),
		zap.String("participant", participant),
		zap.Float64("amount", amount),
	)

	ctx, unlock, err := c.lockRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var bid *domain.Bid
	err = c.repos.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := c.checkParticipant(ctx, participant); err != nil {
			return err
		}
		a, err := c.repos.Auctions.FindByRoomForUpdate(ctx, roomID)
		if err != nil {
			return err
		}

		now := c.clock.Now()
		if err := a.ApplyBid(participant, amount, now); err != nil {
			if errors.Is(err, domain.ErrConsecutiveBid) {
				return &SoftRejection{CurrentBid: a.CurrentBid, HighestBidder: participant, err: err}
			}
			return err
		}

		// the previous winner is cleared in the same transaction as the price update
		if err := c.repos.Bids.MarkAllNonWinning(ctx, roomID); err != nil {
			return err
		}
		newBid := domain.NewBid(uuid.New(), roomID, participant, amount, connID, now)
		if err := c.repos.Bids.Append(ctx, newBid); err != nil {
			return err
		}
		if err := c.repos.Auctions.Save(ctx, a); err != nil {
			return err
		}
		bid = newBid
		return nil
	})
	if err != nil {
		c.logRejection("PlaceBid rejected", err, roomID, participant, connID)
		return nil, fmt.Errorf("coordinator: place bid in %s: %w", roomID, err)
	}

	log.Info("Bid accepted",
		zap.String("roomID", roomID),
		zap.String("participant", participant),
		zap.Float64("amount", amount),
		zap.String("bidID", bid.ID.String()),
	)

	c.notifier.Broadcast(roomID, Event{
		Type:    EventPriceUpdated,
		Payload: PriceUpdatedPayload{HighestBid: bid.Amount, HighestBidder: bid.Bidder},
	}, "")
	c.publish(ctx, events.New(events.TypeBidAccepted, roomID, bid.PlacedAt, map[string]any{
		"bidId":  bid.ID,
		"bidder": bid.Bidder,
		"amount": bid.Amount,
	}))
	return bid, nil
}
