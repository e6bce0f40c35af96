package application

import (
	"context"
	"fmt"

	"github.com/ayushpatel2508/auctions/internal/auction/domain"
	"github.com/ayushpatel2508/auctions/internal/shared/events"
	"go.uber.org/zap"
)

// Finalize ends an active auction exactly once. It reports false without broadcasting when
// the auction had already ended, or for CauseExpiry when its end time has not passed.
func (c *Coordinator) Finalize(ctx context.Context, roomID string, cause FinalizeCause) (bool, error) {
	ctx, unlock, err := c.lockRoom(ctx, roomID)
	if err != nil {
		return false, err
	}
	defer unlock()

	var (
		auction *domain.Auction
		stats   FinalStats
		done    bool
	)
	err = c.repos.Tx.WithinTx(ctx, func(ctx context.Context) error {
		a, err := c.repos.Auctions.FindByRoomForUpdate(ctx, roomID)
		if err != nil {
			return err
		}
		now := c.clock.Now()
		if !a.IsActive() || (cause == CauseExpiry && !a.IsExpired(now)) {
			return nil
		}

		if err := a.Finish(now); err != nil {
			return err
		}
		if err := c.repos.Auctions.Save(ctx, a); err != nil {
			return err
		}
		if a.Winner != nil {
			if err := c.repos.Bids.MarkWinning(ctx, roomID, *a.Winner, a.FinalPrice); err != nil {
				return err
			}
		}
		if err := c.repos.Presence.MarkAllLeft(ctx, roomID, now); err != nil {
			return err
		}
		total, err := c.repos.Bids.CountByRoom(ctx, roomID)
		if err != nil {
			return err
		}

		stats = FinalStats{
			Title:         a.Title,
			CreatedBy:     a.CreatedBy,
			Winner:        a.Winner,
			StartingPrice: a.StartingPrice,
			FinalPrice:    a.FinalPrice,
			TotalBids:     total,
			EndedAt:       now,
			EndedBy:       string(cause),
		}
		auction = a
		done = true
		return nil
	})
	if err != nil {
		c.logRejection("Finalize failed", err, roomID, "", "")
		return false, fmt.Errorf("coordinator: finalize %s: %w", roomID, err)
	}
	if !done {
		log.Debug("Finalize skipped, auction not finalizable", zap.String("roomID", roomID), zap.String("cause", string(cause)))
		return false, nil
	}

	log.Info("Auction finalized",
		zap.String("roomID", roomID),
		zap.String("cause", string(cause)),
		zap.Stringp("winner", auction.Winner),
		zap.Float64("finalPrice", auction.FinalPrice),
	)

	payload := AuctionFinalizedPayload{
		RoomID:     roomID,
		FinalPrice: auction.FinalPrice,
		Message:    cause.message(),
		FinalStats: stats,
		ShowWinner: c.showWin,
	}
	if c.showWin {
		payload.Winner = auction.Winner
	} else {
		payload.FinalStats.Winner = nil
	}
	c.notifier.Broadcast(roomID, Event{Type: EventAuctionFinalized, Payload: payload}, "")
	c.notifier.DisbandRoom(roomID)
	c.publish(ctx, events.New(events.TypeAuctionFinalized, roomID, stats.EndedAt, stats))
	return true, nil
}

// Delete removes an auction and everything recorded for it. Only the creator may delete, and
// no winner is recorded whatever the auction's state.
func (c *Coordinator) Delete(ctx context.Context, roomID, caller string) (*DeletionStats, error) {
	ctx, unlock, err := c.lockRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var (
		title string
		stats DeletionStats
	)
	err = c.repos.Tx.WithinTx(ctx, func(ctx context.Context) error {
		a, err := c.repos.Auctions.FindByRoomForUpdate(ctx, roomID)
		if err != nil {
			return err
		}
		if a.CreatedBy != caller {
			return domain.ErrNotCreator
		}
		total, err := c.repos.Bids.CountByRoom(ctx, roomID)
		if err != nil {
			return err
		}
		if err := c.repos.Bids.DeleteByRoom(ctx, roomID); err != nil {
			return err
		}
		if err := c.repos.Presence.DeleteByRoom(ctx, roomID); err != nil {
			return err
		}
		if err := c.repos.Auctions.Delete(ctx, roomID); err != nil {
			return err
		}

		title = a.Title
		stats = DeletionStats{
			Title:         a.Title,
			CreatedBy:     a.CreatedBy,
			HighestBid:    a.CurrentBid,
			HighestBidder: a.HighestBidder,
			TotalBids:     total,
			StartingPrice: a.StartingPrice,
			DeletedAt:     c.clock.Now(),
		}
		return nil
	})
	if err != nil {
		c.logRejection("Delete rejected", err, roomID, caller, "")
		return nil, fmt.Errorf("coordinator: delete %s: %w", roomID, err)
	}

	log.Info("Auction deleted", zap.String("roomID", roomID), zap.String("by", caller))

	c.notifier.Broadcast(roomID, Event{
		Type: EventRoomDeleted,
		Payload: RoomDeletedPayload{
			RoomID:     roomID,
			Message:    `Auction "` + title + `" has been deleted by the creator`,
			FinalStats: stats,
		},
	}, "")
	c.notifier.DisbandRoom(roomID)
	c.publish(ctx, events.New(events.TypeAuctionDeleted, roomID, stats.DeletedAt, stats))
	return &stats, nil
}
