package memory

import (
	"context"
	"sync"

	"github.com/ayushpatel2508/auctions/internal/auction/domain"
	userdomain "github.com/ayushpatel2508/auctions/internal/user/domain"
	"github.com/google/uuid"
)

type txKey struct{}

// Store keeps auctions, bids, presence and users in process memory. Transactions are
// serialized store-wide and roll back by restoring a snapshot taken when they begin; writes
// outside a transaction wait for the running one. Rooms therefore do not progress in
// parallel on this backend, which is meant for development and tests.
type Store struct {
	mu       sync.RWMutex
	users    map[string]*userdomain.User
	auctions map[string]*domain.Auction
	bids     map[string][]*domain.Bid
	presence map[uuid.UUID]*domain.Presence

	txSem chan struct{}
}

// NewStore returns an empty store. One transaction runs at a time across every room.
func NewStore() *Store {
	return &Store{
		users:    make(map[string]*userdomain.User),
		auctions: make(map[string]*domain.Auction),
		bids:     make(map[string][]*domain.Bid),
		presence: make(map[uuid.UUID]*domain.Presence),
		txSem:    make(chan struct{}, 1),
	}
}

// AddUser seeds the identity store.
func (s *Store) AddUser(u *userdomain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *u
	s.users[u.Username] = &cp
}

func (s *Store) Users() *UserRepository        { return &UserRepository{s: s} }
func (s *Store) Auctions() *AuctionRepository  { return &AuctionRepository{s: s} }
func (s *Store) Bids() *BidRepository          { return &BidRepository{s: s} }
func (s *Store) Presence() *PresenceRepository { return &PresenceRepository{s: s} }

type snapshot struct {
	auctions map[string]*domain.Auction
	bids     map[string][]*domain.Bid
	presence map[uuid.UUID]*domain.Presence
}

func (s *Store) snapshot() snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := snapshot{
		auctions: make(map[string]*domain.Auction, len(s.auctions)),
		bids:     make(map[string][]*domain.Bid, len(s.bids)),
		presence: make(map[uuid.UUID]*domain.Presence, len(s.presence)),
	}
	for k, a := range s.auctions {
		snap.auctions[k] = a.Clone()
	}
	for k, list := range s.bids {
		cp := make([]*domain.Bid, len(list))
		for i, b := range list {
			bb := *b
			cp[i] = &bb
		}
		snap.bids[k] = cp
	}
	for k, p := range s.presence {
		snap.presence[k] = clonePresence(p)
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auctions = snap.auctions
	s.bids = snap.bids
	s.presence = snap.presence
}

// WithinTx implements domain.TxManager. Nested calls join the outer transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	select {
	case s.txSem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-s.txSem }()

	snap := s.snapshot()
	defer func() {
		if r := recover(); r != nil {
			s.restore(snap)
			panic(r)
		}
		if err != nil {
			s.restore(snap)
		}
	}()

	if err = ctx.Err(); err != nil {
		return err
	}
	return fn(context.WithValue(ctx, txKey{}, struct{}{}))
}

// lockWrite guards a single write. Outside a transaction the write also takes the
// transaction semaphore, so a concurrent rollback cannot restore a snapshot over it.
func (s *Store) lockWrite(ctx context.Context) (func(), error) {
	if ctx.Value(txKey{}) != nil {
		s.mu.Lock()
		return s.mu.Unlock, nil
	}
	select {
	case s.txSem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	s.mu.Lock()
	return func() {
		s.mu.Unlock()
		<-s.txSem
	}, nil
}

// Stats reports row counts, used by tests to assert cascading deletes.
func (s *Store) Stats(roomID string) (auctions, bids, presence int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.auctions[roomID]; ok {
		auctions = 1
	}
	bids = len(s.bids[roomID])
	for _, p := range s.presence {
		if p.RoomID == roomID {
			presence++
		}
	}
	return auctions, bids, presence
}

func clonePresence(p *domain.Presence) *domain.Presence {
	cp := *p
	if p.LeftAt != nil {
		at := *p.LeftAt
		cp.LeftAt = &at
	}
	return &cp
}

// UserRepository implements userdomain.UserRepository.
type UserRepository struct{ s *Store }

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*userdomain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[username]
	if !ok {
		return nil, userdomain.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}
