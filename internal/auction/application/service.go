package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ayushpatel2508/auctions/internal/auction/domain"
	userdomain "github.com/ayushpatel2508/auctions/internal/user/domain"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// RecentBidsLimit is how many bids Get returns with an auction.
const RecentBidsLimit = 50

// CreateAuctionInput is the input DTO for Create.
type CreateAuctionInput struct {
	Creator         string
	Title           string
	Description     string
	StartingPrice   float64
	DurationMinutes int
}

// AuctionDetails is what Get returns for one room.
type AuctionDetails struct {
	Auction       *domain.Auction
	RecentBids    []*domain.Bid
	Online        []*domain.Presence
	TimeRemaining time.Duration
}

// AuctionService is the synchronous request/response surface. Every mutation goes through
// the Coordinator so REST and real-time callers share one path.
type AuctionService struct {
	repos       Repositories
	coordinator *Coordinator
	clock       clockwork.Clock
	timeout     time.Duration
}

func NewAuctionService(repos Repositories, coordinator *Coordinator, clock clockwork.Clock, storeTimeout time.Duration) *AuctionService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &AuctionService{repos: repos, coordinator: coordinator, clock: clock, timeout: storeTimeout}
}

func (s *AuctionService) checkParticipant(ctx context.Context, participant string) error {
	if _, err := s.repos.Users.GetByUsername(ctx, participant); err != nil {
		if errors.Is(err, userdomain.ErrUserNotFound) {
			return domain.ErrParticipantNotFound
		}
		return fmt.Errorf("auction service: look up %s: %w", participant, err)
	}
	return nil
}

// Create opens a new active auction owned by in.Creator.
func (s *AuctionService) Create(ctx context.Context, in CreateAuctionInput) (*domain.Auction, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.checkParticipant(ctx, in.Creator); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	roomID := fmt.Sprintf("room_%s_%d", in.Creator, now.UnixMilli())
	a, err := domain.NewAuction(roomID, in.Creator, in.Title, in.Description, in.StartingPrice, in.DurationMinutes, now)
	if err != nil {
		return nil, err
	}
	if err := s.repos.Auctions.Create(ctx, a); err != nil {
		if !errors.Is(err, domain.ErrRoomExists) {
			log.Error("Failed to create auction", zap.String("roomID", roomID), zap.Error(err))
		}
		return nil, err
	}

	log.Info("Auction created",
		zap.String("roomID", roomID),
		zap.String("creator", in.Creator),
		zap.Float64("startingPrice", in.StartingPrice),
		zap.Time("endTime", a.EndTime),
	)
	return a, nil
}

func (s *AuctionService) List(ctx context.Context) ([]*domain.Auction, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.repos.Auctions.List(ctx)
}

// BidHistory returns every bid of the room, newest first.
func (s *AuctionService) BidHistory(ctx context.Context, roomID string) ([]*domain.Bid, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.repos.Auctions.FindByRoom(ctx, roomID); err != nil {
		return nil, err
	}
	return s.repos.Bids.ListByRoom(ctx, roomID, 0)
}

// End finalizes the auction on behalf of its creator. ErrAuctionEnded is returned when it had
// already ended.
func (s *AuctionService) End(ctx context.Context, roomID, caller string) (*domain.Auction, error) {
	if err := s.requireCreator(ctx, roomID, caller); err != nil {
		return nil, err
	}
	finalized, err := s.coordinator.Finalize(ctx, roomID, CauseCreator)
	if err != nil {
		return nil, err
	}
	if !finalized {
		return nil, domain.ErrAuctionEnded
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.repos.Auctions.FindByRoom(ctx, roomID)
}

func (s *AuctionService) Delete(ctx context.Context, roomID, caller string) (*DeletionStats, error) {
	return s.coordinator.Delete(ctx, roomID, caller)
}

// Quit takes caller out of the room. The creator may quit too; the auction keeps running and
// any standing bid of the caller stays in place.
func (s *AuctionService) Quit(ctx context.Context, roomID, caller string) error {
	checkCtx, cancel := context.WithTimeout(ctx, s.timeout)
	err := s.checkParticipant(checkCtx, caller)
	cancel()
	if err != nil {
		return err
	}
	return s.coordinator.Quit(ctx, roomID, caller)
}

func (s *AuctionService) requireCreator(ctx context.Context, roomID, caller string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	a, err := s.repos.Auctions.FindByRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if a.CreatedBy != caller {
		return domain.ErrNotCreator
	}
	return nil
}
