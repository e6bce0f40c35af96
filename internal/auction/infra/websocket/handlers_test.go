package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ayushpatel2508/auctions/internal/auction/application"
	"github.com/ayushpatel2508/auctions/internal/auction/domain"
	"github.com/ayushpatel2508/auctions/internal/auction/infra/repository/memory"
	"github.com/ayushpatel2508/auctions/internal/shared/websocket"
	userdomain "github.com/ayushpatel2508/auctions/internal/user/domain"
	"github.com/gofiber/fiber/v2"
	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type testServer struct {
	url     string
	roomID  string
	service *application.AuctionService
	hub     *websocket.Hub
}

func startServer(t *testing.T) *testServer {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	store := memory.NewStore()
	for _, u := range []string{"alice", "bob"} {
		store.AddUser(&userdomain.User{Username: u, Email: u + "@example.com", CreatedAt: time.Now()})
	}
	repos := application.Repositories{
		Users:    store.Users(),
		Auctions: store.Auctions(),
		Bids:     store.Bids(),
		Presence: store.Presence(),
		Tx:       store,
	}

	hub := websocket.NewHub(64)
	go hub.Run(ctx)
	notifier := NewHubNotifier(hub)
	coord := application.NewCoordinator(repos, notifier, application.Options{StoreTimeout: time.Second, ShowWinner: true})
	service := application.NewAuctionService(repos, coord, nil, time.Second)

	auction, err := service.Create(ctx, application.CreateAuctionInput{
		Creator:         "alice",
		Title:           "Vintage lamp",
		StartingPrice:   100,
		DurationMinutes: 10,
	})
	require.NoError(t, err)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	NewAuctionWSHandler(ctx, coord, hub, notifier).Register(app)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })

	return &testServer{
		url:     fmt.Sprintf("ws://%s/ws", ln.Addr().String()),
		roomID:  auction.RoomID,
		service: service,
		hub:     hub,
	}
}

func dial(t *testing.T, url string) *gorilla.Conn {
	t.Helper()
	conn, _, err := gorilla.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *gorilla.Conn, msgType string, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(map[string]any{"type": msgType, "payload": json.RawMessage(raw)}))
}

func read(t *testing.T, conn *gorilla.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func readType(t *testing.T, conn *gorilla.Conn, want string) frame {
	t.Helper()
	f := read(t, conn)
	require.Equal(t, want, f.Type, "payload: %s", f.Payload)
	return f
}

func payloadString(t *testing.T, f frame) string {
	t.Helper()
	var s string
	require.NoError(t, json.Unmarshal(f.Payload, &s))
	return s
}

func TestAuctionWSHandler_Protocol(t *testing.T) {
	srv := startServer(t)
	alice := dial(t, srv.url)
	bob := dial(t, srv.url)

	send(t, alice, "join-room", JoinRoomPayload{RoomID: srv.roomID, Username: "alice"})
	require.Equal(t, "alice joined successfully", payloadString(t, readType(t, alice, "joined")))
	readType(t, alice, "presence-updated")

	send(t, bob, "join-room", JoinRoomPayload{RoomID: srv.roomID, Username: "bob"})
	readType(t, bob, "joined")
	f := readType(t, bob, "presence-updated")
	var presence application.PresenceUpdatedPayload
	require.NoError(t, json.Unmarshal(f.Payload, &presence))
	require.ElementsMatch(t, []string{"alice", "bob"}, presence.OnlineUsers)
	require.Equal(t, 2, presence.OnlineUsersCount)

	readType(t, alice, "presence-updated")
	f = readType(t, alice, "participant-joined")
	var joined application.ParticipantJoinedPayload
	require.NoError(t, json.Unmarshal(f.Payload, &joined))
	require.Equal(t, "bob", joined.Username)

	amount := 150.0
	send(t, bob, "place-bid", PlaceBidPayload{RoomID: srv.roomID, Username: "bob", BidAmount: &amount})
	for _, conn := range []*gorilla.Conn{alice, bob} {
		f := readType(t, conn, "price-updated")
		var price application.PriceUpdatedPayload
		require.NoError(t, json.Unmarshal(f.Payload, &price))
		require.Equal(t, application.PriceUpdatedPayload{HighestBid: 150, HighestBidder: "bob"}, price)
	}

	again := 200.0
	send(t, bob, "place-bid", PlaceBidPayload{RoomID: srv.roomID, Username: "bob", BidAmount: &again})
	f = readType(t, bob, "bid-rejected-soft")
	var soft application.BidRejectedSoftPayload
	require.NoError(t, json.Unmarshal(f.Payload, &soft))
	require.Equal(t, 150.0, soft.CurrentBid)
	require.Equal(t, "bob", soft.HighestBidder)

	low := 120.0
	send(t, alice, "place-bid", PlaceBidPayload{RoomID: srv.roomID, Username: "alice", BidAmount: &low})
	require.Equal(t, msgBidTooLow, payloadString(t, readType(t, alice, "protocol-error")))

	require.NoError(t, alice.WriteMessage(gorilla.TextMessage, []byte(`{"type":"shout","payload":{}}`)))
	require.Equal(t, msgInvalidMessage, payloadString(t, readType(t, alice, "protocol-error")))

	// bob's transport drops; alice hears about it
	require.NoError(t, bob.Close())
	f = readType(t, alice, "participant-left")
	var left application.ParticipantLeftPayload
	require.NoError(t, json.Unmarshal(f.Payload, &left))
	require.Equal(t, "bob", left.Username)
	require.Equal(t, []string{"alice"}, left.OnlineUsers)
	readType(t, alice, "presence-updated")

	details, err := srv.service.Get(context.Background(), srv.roomID)
	require.NoError(t, err)
	require.Equal(t, []string{"alice"}, details.Auction.OnlineParticipants)
	require.Equal(t, 150.0, details.Auction.CurrentBid)
}

func TestAuctionWSHandler_JoinErrors(t *testing.T) {
	srv := startServer(t)
	conn := dial(t, srv.url)

	send(t, conn, "join-room", JoinRoomPayload{RoomID: srv.roomID, Username: "mallory"})
	require.Equal(t, msgUserNotFound, payloadString(t, readType(t, conn, "protocol-error")))

	send(t, conn, "join-room", JoinRoomPayload{RoomID: "room_nobody_1", Username: "alice"})
	require.Equal(t, msgAuctionNotFound, payloadString(t, readType(t, conn, "protocol-error")))

	_, err := srv.service.End(context.Background(), srv.roomID, "alice")
	require.NoError(t, err)
	send(t, conn, "join-room", JoinRoomPayload{RoomID: srv.roomID, Username: "bob"})
	require.Equal(t, msgAuctionEnded, payloadString(t, readType(t, conn, "protocol-error")))
}

func TestAuctionWSHandler_RejectsPlainHTTP(t *testing.T) {
	app := fiber.New()
	hub := websocket.NewHub(1)
	NewAuctionWSHandler(context.Background(), nil, hub, NewHubNotifier(hub)).Register(app)

	resp, err := app.Test(httptestRequest("/ws"))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)

	resp, err = app.Test(httptestRequest("/ws/stats"))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestDecodeMessage(t *testing.T) {
	testCases := []struct {
		name     string
		data     string
		wantType MessageType
		want     any
		wantErr  bool
	}{
		{
			name:     "join",
			data:     `{"type":"join-room","payload":{"roomId":"r1","username":"alice"}}`,
			wantType: MessageTypeJoinRoom,
			want:     JoinRoomPayload{RoomID: "r1", Username: "alice"},
		},
		{
			name:     "leave",
			data:     `{"type":"leave-room","payload":{"roomId":"r1","username":"alice","reason":"manual_quit"}}`,
			wantType: MessageTypeLeaveRoom,
			want:     LeaveRoomPayload{RoomID: "r1", Username: "alice", Reason: "manual_quit"},
		},
		{name: "not json", data: `hello`, wantErr: true},
		{name: "unknown envelope field", data: `{"type":"join-room","payload":{},"extra":1}`, wantErr: true},
		{name: "unknown payload field", data: `{"type":"join-room","payload":{"roomId":"r1","username":"a","admin":true}}`, wantErr: true},
		{name: "missing payload", data: `{"type":"join-room"}`, wantErr: true},
		{name: "missing username", data: `{"type":"join-room","payload":{"roomId":"r1"}}`, wantErr: true},
		{name: "missing amount", data: `{"type":"place-bid","payload":{"roomId":"r1","username":"a"}}`, wantErr: true},
		{name: "amount as string", data: `{"type":"place-bid","payload":{"roomId":"r1","username":"a","bidAmount":"10"}}`, wantErr: true},
		{name: "unknown type", data: `{"type":"shout","payload":{}}`, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gotType, got, err := decodeMessage([]byte(tc.data))
			if tc.wantErr {
				require.ErrorIs(t, err, errMalformed)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.wantType, gotType)
			require.Equal(t, tc.want, got)
		})
	}

	_, got, err := decodeMessage([]byte(`{"type":"place-bid","payload":{"roomId":"r1","username":"a","bidAmount":12.5}}`))
	require.NoError(t, err)
	bid := got.(PlaceBidPayload)
	require.Equal(t, 12.5, *bid.BidAmount)
}

func TestErrorMessage(t *testing.T) {
	testCases := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("coordinator: join r1: %w", domain.ErrParticipantNotFound), msgUserNotFound},
		{domain.ErrAuctionNotFound, msgAuctionNotFound},
		{domain.ErrAuctionEnded, msgAuctionEnded},
		{domain.ErrBidTooLow, msgBidTooLow},
		{domain.ErrInvalidAmount, msgInvalidAmount},
		{domain.ErrConnectionBusy, msgConnectionBusy},
		{domain.ErrPresenceMissing, msgNotInRoom},
		{context.DeadlineExceeded, msgBidFailed},
		{errors.New("connection refused"), msgBidFailed},
	}
	for _, tc := range testCases {
		require.Equal(t, tc.want, errorMessage(tc.err, msgBidFailed), tc.err.Error())
	}
}

func httptestRequest(path string) *http.Request {
	return httptest.NewRequest(http.MethodGet, path, nil)
}
