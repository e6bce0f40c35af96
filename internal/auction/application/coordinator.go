package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ayushpatel2508/auctions/internal/auction/domain"
	"github.com/ayushpatel2508/auctions/internal/shared/events"
	"github.com/ayushpatel2508/auctions/internal/shared/logger"
	userdomain "github.com/ayushpatel2508/auctions/internal/user/domain"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// Repositories groups the storage ports the coordinator writes through.
type Repositories struct {
	Users    userdomain.UserRepository
	Auctions domain.AuctionRepository
	Bids     domain.BidRepository
	Presence domain.PresenceRepository
	Tx       domain.TxManager
}

// Options tune the coordinator.
type Options struct {
	// StoreTimeout bounds lock acquisition plus the storage transaction of one operation.
	StoreTimeout time.Duration
	// ShowWinner includes the winner in auction-finalized events.
	ShowWinner bool
	Clock      clockwork.Clock
	Publisher  events.Publisher
}

// Coordinator serializes every mutation of a room and emits the protocol events for it.
// Broadcasts are issued after the transaction commits and before the room lock is released,
// so every connection sees a room's events in commit order.
type Coordinator struct {
	repos     Repositories
	notifier  Notifier
	publisher events.Publisher
	clock     clockwork.Clock
	locks     *roomLocks
	timeout   time.Duration
	showWin   bool
}

func NewCoordinator(repos Repositories, notifier Notifier, opts Options) *Coordinator {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Publisher == nil {
		opts.Publisher = events.Noop{}
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 5 * time.Second
	}
	return &Coordinator{
		repos:     repos,
		notifier:  notifier,
		publisher: opts.Publisher,
		clock:     opts.Clock,
		locks:     newRoomLocks(),
		timeout:   opts.StoreTimeout,
		showWin:   opts.ShowWinner,
	}
}

// lockRoom bounds the whole operation by the store timeout and takes the room lock.
func (c *Coordinator) lockRoom(ctx context.Context, roomID string) (context.Context, func(), error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	release, err := c.locks.acquire(ctx, roomID)
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("coordinator: lock room %s: %w", roomID, err)
	}
	return ctx, func() {
		release()
		cancel()
	}, nil
}

func (c *Coordinator) checkParticipant(ctx context.Context, participant string) error {
	if _, err := c.repos.Users.GetByUsername(ctx, participant); err != nil {
		if errors.Is(err, userdomain.ErrUserNotFound) {
			return domain.ErrParticipantNotFound
		}
		return err
	}
	return nil
}

// Join records participant's presence in the room through connID and announces it.
func (c *Coordinator) Join(ctx context.Context, roomID, participant, connID string) error {
	ctx, unlock, err := c.lockRoom(ctx, roomID)
	if err != nil {
		return err
	}
	defer unlock()

	var auction *domain.Auction
	err = c.repos.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := c.checkParticipant(ctx, participant); err != nil {
			return err
		}
		a, err := c.repos.Auctions.FindByRoomForUpdate(ctx, roomID)
		if err != nil {
			return err
		}
		if !a.IsActive() {
			return domain.ErrAuctionEnded
		}

		current, err := c.repos.Presence.FindActiveByConnection(ctx, connID)
		switch {
		case err == nil:
			if current.RoomID != roomID || current.Participant != participant {
				return domain.ErrConnectionBusy
			}
		case !errors.Is(err, domain.ErrPresenceMissing):
			return err
		}

		now := c.clock.Now()
		if err := c.repos.Presence.SupersedeParticipant(ctx, roomID, participant); err != nil {
			return err
		}
		if err := c.repos.Presence.Insert(ctx, domain.NewPresence(uuid.New(), participant, roomID, connID, now)); err != nil {
			return err
		}
		a.AddOnline(participant, now)
		if err := c.repos.Auctions.Save(ctx, a); err != nil {
			return err
		}
		auction = a
		return nil
	})
	if err != nil {
		c.logRejection("Join rejected", err, roomID, participant, connID)
		return fmt.Errorf("coordinator: join %s: %w", roomID, err)
	}

	log.Info("Participant joined room",
		zap.String("roomID", roomID),
		zap.String("participant", participant),
		zap.String("connID", connID),
		zap.Int("online", len(auction.OnlineParticipants)),
	)

	c.notifier.Subscribe(roomID, connID)
	c.notifier.Send(connID, Event{Type: EventJoined, Payload: participant + " joined successfully"})
	c.notifier.Broadcast(roomID, presenceUpdated(auction), "")
	c.notifier.Broadcast(roomID, Event{
		Type: EventParticipantJoined,
		Payload: ParticipantJoinedPayload{
			Username: participant,
			Message:  participant + " joined the auction",
		},
	}, connID)
	return nil
}

// Leave handles an explicit leave request. Only LeaveManual changes state; any other reason
// leaves presence and the online list untouched.
func (c *Coordinator) Leave(ctx context.Context, roomID, participant, connID string, reason LeaveReason) error {
	if reason != LeaveManual {
		log.Debug("Ignoring non-manual leave",
			zap.String("roomID", roomID),
			zap.String("participant", participant),
			zap.String("reason", string(reason)),
		)
		return nil
	}
	_, err := c.depart(ctx, roomID, participant, connID)
	return err
}

// Quit removes participant from the room on behalf of every live connection it holds there.
// With no live connection the participant is still taken off the online list.
func (c *Coordinator) Quit(ctx context.Context, roomID, participant string) error {
	_, err := c.depart(ctx, roomID, participant, "")
	return err
}

// depart is the manual leave path. An empty connID closes all of participant's rows in the room.
func (c *Coordinator) depart(ctx context.Context, roomID, participant, connID string) ([]string, error) {
	ctx, unlock, err := c.lockRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var (
		auction *domain.Auction
		conns   []string
		removed bool
	)
	err = c.repos.Tx.WithinTx(ctx, func(ctx context.Context) error {
		a, err := c.repos.Auctions.FindByRoomForUpdate(ctx, roomID)
		if err != nil {
			return err
		}
		if !a.IsActive() {
			return domain.ErrAuctionEnded
		}

		now := c.clock.Now()
		if connID != "" {
			// the connection must be live in this room as this participant
			p, err := c.repos.Presence.FindActiveByConnection(ctx, connID)
			if err != nil {
				return err
			}
			if p.RoomID != roomID || p.Participant != participant {
				return domain.ErrPresenceMissing
			}
			if err := c.repos.Presence.MarkLeftByConnection(ctx, connID, now); err != nil {
				return err
			}
			conns = []string{connID}
		} else {
			conns, err = c.repos.Presence.MarkLeftByParticipant(ctx, roomID, participant, now)
			if err != nil {
				return err
			}
		}
		removed = a.RemoveOnline(participant, now)
		if removed {
			if err := c.repos.Auctions.Save(ctx, a); err != nil {
				return err
			}
		}
		auction = a
		return nil
	})
	if err != nil {
		c.logRejection("Leave rejected", err, roomID, participant, connID)
		return nil, fmt.Errorf("coordinator: leave %s: %w", roomID, err)
	}

	log.Info("Participant left room",
		zap.String("roomID", roomID),
		zap.String("participant", participant),
		zap.Strings("connIDs", conns),
	)

	except := ""
	for _, id := range conns {
		c.notifier.Unsubscribe(roomID, id)
		except = id
	}
	if !removed && len(conns) == 0 {
		return conns, nil
	}

	isCreator := auction.CreatedBy == participant
	message := participant + " has left the auction"
	if isCreator {
		message = "Auction creator " + participant + " has left the auction. The auction continues without them."
	}
	c.notifier.Broadcast(roomID, participantLeft(auction, participant, message, isCreator), except)
	c.notifier.Broadcast(roomID, presenceUpdated(auction), except)
	return conns, nil
}

// HandleTransportDrop runs when a connection closes without an explicit leave.
func (c *Coordinator) HandleTransportDrop(ctx context.Context, connID string) error {
	lookupCtx, cancel := context.WithTimeout(ctx, c.timeout)
	p, err := c.repos.Presence.FindActiveByConnection(lookupCtx, connID)
	cancel()
	if err != nil {
		if errors.Is(err, domain.ErrPresenceMissing) {
			return nil
		}
		log.Error("Failed to look up presence for dropped connection", zap.String("connID", connID), zap.Error(err))
		return fmt.Errorf("coordinator: drop %s: %w", connID, err)
	}
	roomID := p.RoomID

	ctx, unlock, err := c.lockRoom(ctx, roomID)
	if err != nil {
		return err
	}
	defer unlock()

	var (
		auction     *domain.Auction
		participant string
	)
	err = c.repos.Tx.WithinTx(ctx, func(ctx context.Context) error {
		p, err := c.repos.Presence.FindActiveByConnection(ctx, connID)
		if err != nil {
			return err
		}
		if p.RoomID != roomID || !p.IsLive() {
			return domain.ErrPresenceMissing
		}

		now := c.clock.Now()
		if err := c.repos.Presence.MarkLeftByConnection(ctx, connID, now); err != nil {
			return err
		}
		a, err := c.repos.Auctions.FindByRoomForUpdate(ctx, roomID)
		if err != nil {
			return err
		}
		if a.RemoveOnline(p.Participant, now) {
			if err := c.repos.Auctions.Save(ctx, a); err != nil {
				return err
			}
		}
		auction = a
		participant = p.Participant
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrPresenceMissing) || errors.Is(err, domain.ErrAuctionNotFound) {
			return nil
		}
		log.Error("Failed to handle dropped connection",
			zap.String("roomID", roomID),
			zap.String("connID", connID),
			zap.Error(err),
		)
		return fmt.Errorf("coordinator: drop %s: %w", connID, err)
	}

	log.Info("Participant disconnected from room",
		zap.String("roomID", roomID),
		zap.String("participant", participant),
		zap.String("connID", connID),
	)

	c.notifier.Unsubscribe(roomID, connID)
	c.notifier.Broadcast(roomID,
		participantLeft(auction, participant, participant+" has disconnected from the auction", auction.CreatedBy == participant),
		connID,
	)
	c.notifier.Broadcast(roomID, presenceUpdated(auction), connID)
	return nil
}

func (c *Coordinator) publish(ctx context.Context, ev events.Event) {
	if err := c.publisher.Publish(ctx, ev); err != nil {
		log.Warn("Failed to publish domain event",
			zap.String("type", ev.Type),
			zap.String("roomID", ev.RoomID),
			zap.Error(err),
		)
	}
}

// logRejection logs expected user errors at Warn and everything else at Error.
func (c *Coordinator) logRejection(msg string, err error, roomID, participant, connID string) {
	fields := []zap.Field{
		zap.String("roomID", roomID),
		zap.String("participant", participant),
		zap.String("connID", connID),
		zap.Error(err),
	}
	if isUserError(err) {
		log.Warn(msg, fields...)
		return
	}
	log.Error(msg, fields...)
}

func isUserError(err error) bool {
	for _, target := range []error{
		domain.ErrAuctionNotFound,
		domain.ErrParticipantNotFound,
		domain.ErrAuctionEnded,
		domain.ErrBidTooLow,
		domain.ErrInvalidAmount,
		domain.ErrConsecutiveBid,
		domain.ErrNotCreator,
		domain.ErrConnectionBusy,
		domain.ErrPresenceMissing,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func presenceUpdated(a *domain.Auction) Event {
	online := append([]string{}, a.OnlineParticipants...)
	return Event{
		Type:    EventPresenceUpdated,
		Payload: PresenceUpdatedPayload{OnlineUsers: online, OnlineUsersCount: len(online)},
	}
}

func participantLeft(a *domain.Auction, participant, message string, isCreator bool) Event {
	online := append([]string{}, a.OnlineParticipants...)
	return Event{
		Type: EventParticipantLeft,
		Payload: ParticipantLeftPayload{
			Username:         participant,
			Message:          message,
			IsCreator:        isCreator,
			OnlineUsers:      online,
			OnlineUsersCount: len(online),
		},
	}
}
