package application

import (
	"context"
	"time"

	"github.com/ayushpatel2508/auctions/internal/auction/domain"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Finalizer is the part of the Coordinator the sweeper drives.
type Finalizer interface {
	Finalize(ctx context.Context, roomID string, cause FinalizeCause) (bool, error)
}

// ExpiredFinder lists auctions whose countdown has lapsed.
type ExpiredFinder interface {
	FindExpired(ctx context.Context, now time.Time, limit int) ([]*domain.Auction, error)
}

// Lease elects one sweeper when several instances share a store.
type Lease interface {
	Acquire(ctx context.Context) (bool, error)
}

type SweeperConfig struct {
	Interval     time.Duration
	Batch        int
	StoreTimeout time.Duration
	Clock        clockwork.Clock
	// Lease is optional; without one every instance sweeps and relies on the status guard.
	Lease Lease
}

// Sweeper finalizes expired auctions on a fixed interval, whether or not anyone is connected.
type Sweeper struct {
	finder    ExpiredFinder
	finalizer Finalizer
	cfg       SweeperConfig
}

func NewSweeper(finder ExpiredFinder, finalizer Finalizer, cfg SweeperConfig) *Sweeper {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Batch <= 0 {
		cfg.Batch = 100
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 5 * time.Second
	}
	return &Sweeper{finder: finder, finalizer: finalizer, cfg: cfg}
}

// Run sweeps once immediately and then every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	log.Info("Expiry sweeper started", zap.Duration("interval", s.cfg.Interval), zap.Int("batch", s.cfg.Batch))

	ticker := s.cfg.Clock.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.SweepOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Info("Expiry sweeper stopped")
			return nil
		case <-ticker.Chan():
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs one cycle and returns how many auctions it finalized. Errors are logged; a
// store outage skips the cycle.
func (s *Sweeper) SweepOnce(ctx context.Context) int {
	if s.cfg.Lease != nil {
		held, err := s.cfg.Lease.Acquire(ctx)
		if err != nil {
			log.Warn("Sweeper lease unavailable, skipping cycle", zap.Error(err))
			return 0
		}
		if !held {
			log.Debug("Sweeper lease held elsewhere, skipping cycle")
			return 0
		}
	}

	findCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	expired, err := s.finder.FindExpired(findCtx, s.cfg.Clock.Now(), s.cfg.Batch)
	cancel()
	if err != nil {
		log.Error("Failed to scan for expired auctions", zap.Error(err))
		return 0
	}

	finalized := 0
	for _, a := range expired {
		if ctx.Err() != nil {
			break
		}
		ok, err := s.finalizer.Finalize(ctx, a.RoomID, CauseExpiry)
		if err != nil {
			log.Error("Failed to finalize expired auction", zap.String("roomID", a.RoomID), zap.Error(err))
			continue
		}
		if ok {
			finalized++
		}
	}
	if finalized > 0 {
		log.Info("Expired auctions finalized", zap.Int("count", finalized))
	}
	return finalized
}
