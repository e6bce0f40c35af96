package memory

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/ayushpatel2508/auctions/internal/auction/domain"
)

// AuctionRepository implements domain.AuctionRepository.
type AuctionRepository struct{ s *Store }

func (r *AuctionRepository) Create(ctx context.Context, auction *domain.Auction) error {
	unlock, err := r.s.lockWrite(ctx)
	if err != nil {
		return err
	}
	defer unlock()
	if _, ok := r.s.auctions[auction.RoomID]; ok {
		return domain.ErrRoomExists
	}
	r.s.auctions[auction.RoomID] = auction.Clone()
	return nil
}

func (r *AuctionRepository) FindByRoom(ctx context.Context, roomID string) (*domain.Auction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	a, ok := r.s.auctions[roomID]
	if !ok {
		return nil, domain.ErrAuctionNotFound
	}
	return a.Clone(), nil
}

// FindByRoomForUpdate is FindByRoom; the store-wide transaction already excludes writers.
func (r *AuctionRepository) FindByRoomForUpdate(ctx context.Context, roomID string) (*domain.Auction, error) {
	return r.FindByRoom(ctx, roomID)
}

func (r *AuctionRepository) Save(ctx context.Context, auction *domain.Auction) error {
	unlock, err := r.s.lockWrite(ctx)
	if err != nil {
		return err
	}
	defer unlock()
	if _, ok := r.s.auctions[auction.RoomID]; !ok {
		return domain.ErrAuctionNotFound
	}
	r.s.auctions[auction.RoomID] = auction.Clone()
	return nil
}

// List returns every auction, newest first.
func (r *AuctionRepository) List(ctx context.Context) ([]*domain.Auction, error) {
	r.s.mu.RLock()
	out := make([]*domain.Auction, 0, len(r.s.auctions))
	for _, a := range r.s.auctions {
		out = append(out, a.Clone())
	}
	r.s.mu.RUnlock()

	slices.SortFunc(out, func(a, b *domain.Auction) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.RoomID, a.RoomID)
	})
	return out, nil
}

// FindExpired returns active auctions whose end time is at or before now, oldest deadline first.
func (r *AuctionRepository) FindExpired(ctx context.Context, now time.Time, limit int) ([]*domain.Auction, error) {
	r.s.mu.RLock()
	var out []*domain.Auction
	for _, a := range r.s.auctions {
		if a.IsExpired(now) {
			out = append(out, a.Clone())
		}
	}
	r.s.mu.RUnlock()

	slices.SortFunc(out, func(a, b *domain.Auction) int { return a.EndTime.Compare(b.EndTime) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Delete removes the auction together with its bids and presence rows.
func (r *AuctionRepository) Delete(ctx context.Context, roomID string) error {
	unlock, err := r.s.lockWrite(ctx)
	if err != nil {
		return err
	}
	defer unlock()
	if _, ok := r.s.auctions[roomID]; !ok {
		return domain.ErrAuctionNotFound
	}
	delete(r.s.auctions, roomID)
	delete(r.s.bids, roomID)
	for id, p := range r.s.presence {
		if p.RoomID == roomID {
			delete(r.s.presence, id)
		}
	}
	return nil
}
