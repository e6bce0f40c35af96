package memory

import (
	"context"

	"github.com/ayushpatel2508/auctions/internal/auction/domain"
)

// BidRepository implements domain.BidRepository. Bids are kept per room in insertion order.
type BidRepository struct{ s *Store }

func (r *BidRepository) Append(ctx context.Context, bid *domain.Bid) error {
	unlock, err := r.s.lockWrite(ctx)
	if err != nil {
		return err
	}
	defer unlock()
	if _, ok := r.s.auctions[bid.RoomID]; !ok {
		return domain.ErrAuctionNotFound
	}
	cp := *bid
	r.s.bids[bid.RoomID] = append(r.s.bids[bid.RoomID], &cp)
	return nil
}

func (r *BidRepository) MarkAllNonWinning(ctx context.Context, roomID string) error {
	unlock, err := r.s.lockWrite(ctx)
	if err != nil {
		return err
	}
	defer unlock()
	for _, b := range r.s.bids[roomID] {
		b.IsWinning = false
	}
	return nil
}

// MarkWinning flags the most recent bid of bidder at amount.
func (r *BidRepository) MarkWinning(ctx context.Context, roomID, bidder string, amount float64) error {
	unlock, err := r.s.lockWrite(ctx)
	if err != nil {
		return err
	}
	defer unlock()
	list := r.s.bids[roomID]
	for i := len(list) - 1; i >= 0; i-- {
		if list[i].Bidder == bidder && list[i].Amount == amount {
			list[i].IsWinning = true
			return nil
		}
	}
	return nil
}

func (r *BidRepository) CountByRoom(ctx context.Context, roomID string) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return len(r.s.bids[roomID]), nil
}

// ListByRoom returns up to limit bids, newest first. A non-positive limit returns all.
func (r *BidRepository) ListByRoom(ctx context.Context, roomID string, limit int) ([]*domain.Bid, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	list := r.s.bids[roomID]
	out := make([]*domain.Bid, 0, len(list))
	for i := len(list) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		cp := *list[i]
		out = append(out, &cp)
	}
	return out, nil
}

func (r *BidRepository) DeleteByRoom(ctx context.Context, roomID string) error {
	unlock, err := r.s.lockWrite(ctx)
	if err != nil {
		return err
	}
	defer unlock()
	delete(r.s.bids, roomID)
	return nil
}
