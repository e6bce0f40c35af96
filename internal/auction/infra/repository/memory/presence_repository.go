package memory

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/ayushpatel2508/auctions/internal/auction/domain"
)

// PresenceRepository implements domain.PresenceRepository.
type PresenceRepository struct{ s *Store }

func (r *PresenceRepository) SupersedeParticipant(ctx context.Context, roomID, participant string) error {
	unlock, err := r.s.lockWrite(ctx)
	if err != nil {
		return err
	}
	defer unlock()
	for id, p := range r.s.presence {
		if p.RoomID == roomID && p.Participant == participant {
			delete(r.s.presence, id)
		}
	}
	return nil
}

// Insert rejects a second live row for the same connection.
func (r *PresenceRepository) Insert(ctx context.Context, presence *domain.Presence) error {
	unlock, err := r.s.lockWrite(ctx)
	if err != nil {
		return err
	}
	defer unlock()
	if _, ok := r.s.auctions[presence.RoomID]; !ok {
		return domain.ErrAuctionNotFound
	}
	for _, p := range r.s.presence {
		if p.ConnectionID == presence.ConnectionID && p.LeftAt == nil {
			return fmt.Errorf("presence repository: connection %s already has a live row", presence.ConnectionID)
		}
	}
	r.s.presence[presence.ID] = clonePresence(presence)
	return nil
}

// FindActiveByConnection returns domain.ErrPresenceMissing when the connection has no open row.
func (r *PresenceRepository) FindActiveByConnection(ctx context.Context, connectionID string) (*domain.Presence, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, p := range r.s.presence {
		if p.ConnectionID == connectionID && p.LeftAt == nil {
			return clonePresence(p), nil
		}
	}
	return nil, domain.ErrPresenceMissing
}

func (r *PresenceRepository) MarkLeftByConnection(ctx context.Context, connectionID string, at time.Time) error {
	unlock, err := r.s.lockWrite(ctx)
	if err != nil {
		return err
	}
	defer unlock()
	for _, p := range r.s.presence {
		if p.ConnectionID == connectionID && p.LeftAt == nil {
			p.MarkLeft(at)
		}
	}
	return nil
}

// MarkLeftByParticipant closes the participant's open rows in the room and returns their connections.
func (r *PresenceRepository) MarkLeftByParticipant(ctx context.Context, roomID, participant string, at time.Time) ([]string, error) {
	unlock, err := r.s.lockWrite(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()
	var conns []string
	for _, p := range r.s.presence {
		if p.RoomID == roomID && p.Participant == participant && p.LeftAt == nil {
			p.MarkLeft(at)
			conns = append(conns, p.ConnectionID)
		}
	}
	slices.Sort(conns)
	return conns, nil
}

func (r *PresenceRepository) MarkAllLeft(ctx context.Context, roomID string, at time.Time) error {
	unlock, err := r.s.lockWrite(ctx)
	if err != nil {
		return err
	}
	defer unlock()
	for _, p := range r.s.presence {
		if p.RoomID == roomID && p.LeftAt == nil {
			p.MarkLeft(at)
		}
	}
	return nil
}

// ListOnline returns the room's live rows ordered by join time.
func (r *PresenceRepository) ListOnline(ctx context.Context, roomID string) ([]*domain.Presence, error) {
	r.s.mu.RLock()
	var out []*domain.Presence
	for _, p := range r.s.presence {
		if p.RoomID == roomID && p.IsLive() {
			out = append(out, clonePresence(p))
		}
	}
	r.s.mu.RUnlock()
	slices.SortFunc(out, func(a, b *domain.Presence) int { return a.JoinedAt.Compare(b.JoinedAt) })
	return out, nil
}

func (r *PresenceRepository) DeleteByRoom(ctx context.Context, roomID string) error {
	unlock, err := r.s.lockWrite(ctx)
	if err != nil {
		return err
	}
	defer unlock()
	for id, p := range r.s.presence {
		if p.RoomID == roomID {
			delete(r.s.presence, id)
		}
	}
	return nil
}
