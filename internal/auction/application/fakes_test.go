package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ayushpatel2508/auctions/internal/auction/domain"
	"github.com/ayushpatel2508/auctions/internal/auction/infra/repository/memory"
	"github.com/ayushpatel2508/auctions/internal/shared/events"
	userdomain "github.com/ayushpatel2508/auctions/internal/user/domain"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type delivery struct {
	kind   string // send or broadcast
	roomID string
	connID string
	except string
	ev     Event
}

// recordingNotifier keeps every delivery and mirrors the hub's room membership.
type recordingNotifier struct {
	mu    sync.Mutex
	log   []delivery
	rooms map[string]map[string]bool
	// disbanded holds, per room, how many deliveries were logged when its group was dropped.
	disbanded map[string]int
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{
		rooms:     make(map[string]map[string]bool),
		disbanded: make(map[string]int),
	}
}

func (n *recordingNotifier) Subscribe(roomID, connID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, members := range n.rooms {
		delete(members, connID)
	}
	if n.rooms[roomID] == nil {
		n.rooms[roomID] = make(map[string]bool)
	}
	n.rooms[roomID][connID] = true
}

func (n *recordingNotifier) Unsubscribe(roomID, connID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.rooms[roomID], connID)
}

func (n *recordingNotifier) Send(connID string, ev Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.log = append(n.log, delivery{kind: "send", connID: connID, ev: ev})
}

func (n *recordingNotifier) Broadcast(roomID string, ev Event, except string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.log = append(n.log, delivery{kind: "broadcast", roomID: roomID, except: except, ev: ev})
}

func (n *recordingNotifier) DisbandRoom(roomID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.disbanded[roomID] = len(n.log)
	delete(n.rooms, roomID)
}

// received returns, in order, the events connID would have received.
func (n *recordingNotifier) received(roomID, connID string) []Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []Event
	for _, d := range n.log {
		switch {
		case d.kind == "send" && d.connID == connID:
			out = append(out, d.ev)
		case d.kind == "broadcast" && d.roomID == roomID && d.except != connID:
			out = append(out, d.ev)
		}
	}
	return out
}

func (n *recordingNotifier) count(t EventType) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, d := range n.log {
		if d.ev.Type == t {
			c++
		}
	}
	return c
}

func (n *recordingNotifier) reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.log = nil
	n.disbanded = make(map[string]int)
}

func (n *recordingNotifier) members(roomID string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.rooms[roomID])
}

// disbandedAfter reports whether the room's group was dropped and the type of the last
// delivery logged before that.
func (n *recordingNotifier) disbandedAfter(roomID string) (EventType, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	at, ok := n.disbanded[roomID]
	if !ok || at == 0 {
		return "", ok
	}
	return n.log[at-1].ev.Type, true
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type harness struct {
	store     *memory.Store
	repos     Repositories
	clock     *clockwork.FakeClock
	notifier  *recordingNotifier
	publisher *recordingPublisher
	coord     *Coordinator
	service   *AuctionService
}

func newHarness(t *testing.T, users ...string) *harness {
	t.Helper()
	store := memory.NewStore()
	for _, u := range users {
		store.AddUser(&userdomain.User{Username: u, Email: u + "@example.com", CreatedAt: t0})
	}
	h := &harness{
		store:     store,
		clock:     clockwork.NewFakeClockAt(t0),
		notifier:  newRecordingNotifier(),
		publisher: &recordingPublisher{},
	}
	h.repos = Repositories{
		Users:    store.Users(),
		Auctions: store.Auctions(),
		Bids:     store.Bids(),
		Presence: store.Presence(),
		Tx:       store,
	}
	h.coord = NewCoordinator(h.repos, h.notifier, Options{
		StoreTimeout: time.Second,
		ShowWinner:   true,
		Clock:        h.clock,
		Publisher:    h.publisher,
	})
	h.service = NewAuctionService(h.repos, h.coord, h.clock, time.Second)
	return h
}

func (h *harness) createAuction(t *testing.T, creator string, price float64, minutes int) *domain.Auction {
	t.Helper()
	a, err := h.service.Create(context.Background(), CreateAuctionInput{
		Creator:         creator,
		Title:           "Vintage lamp",
		Description:     "brass",
		StartingPrice:   price,
		DurationMinutes: minutes,
	})
	require.NoError(t, err)
	return a
}

func (h *harness) auction(t *testing.T, roomID string) *domain.Auction {
	t.Helper()
	a, err := h.repos.Auctions.FindByRoom(context.Background(), roomID)
	require.NoError(t, err)
	return a
}
