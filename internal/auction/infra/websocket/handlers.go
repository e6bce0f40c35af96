package websocket

import (
	"context"
	"errors"

	"github.com/ayushpatel2508/auctions/internal/auction/application"
	"github.com/ayushpatel2508/auctions/internal/auction/domain"
	"github.com/ayushpatel2508/auctions/internal/shared/logger"
	"github.com/ayushpatel2508/auctions/internal/shared/websocket"
	"github.com/gofiber/fiber/v2"
	fiberws "github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

const (
	msgUserNotFound    = "User not found. Please register first."
	msgAuctionNotFound = "Auction not found"
	msgAuctionEnded    = "Auction has ended"
	msgBidTooLow       = "Bid must be higher than current bid"
	msgInvalidAmount   = "Bid amount must be a positive number"
	msgConnectionBusy  = "Leave your current auction before joining another"
	msgNotInRoom       = "You are not in this auction"
	msgInvalidMessage  = "Invalid message format"
	msgJoinFailed      = "Failed to join auction"
	msgBidFailed       = "Failed to place bid"
	msgLeaveFailed     = "Failed to leave auction"
)

// RoomCoordinator is the part of the application layer the real-time transport drives.
type RoomCoordinator interface {
	Join(ctx context.Context, roomID, participant, connID string) error
	PlaceBid(ctx context.Context, roomID, participant, connID string, amount float64) (*domain.Bid, error)
	Leave(ctx context.Context, roomID, participant, connID string, reason application.LeaveReason) error
	HandleTransportDrop(ctx context.Context, connID string) error
}

// HubNotifier delivers protocol events through the shared hub.
type HubNotifier struct {
	hub *websocket.Hub
}

func NewHubNotifier(hub *websocket.Hub) *HubNotifier {
	return &HubNotifier{hub: hub}
}

func (n *HubNotifier) Subscribe(roomID, connID string)   { n.hub.Subscribe(roomID, connID) }
func (n *HubNotifier) Unsubscribe(roomID, connID string) { n.hub.Unsubscribe(roomID, connID) }

func (n *HubNotifier) Send(connID string, ev application.Event) {
	data, err := encodeEvent(ev)
	if err != nil {
		log.Error("Failed to marshal event", zap.String("type", string(ev.Type)), zap.Error(err))
		return
	}
	n.hub.SendTo(connID, data)
}

func (n *HubNotifier) Broadcast(roomID string, ev application.Event, exceptConnID string) {
	data, err := encodeEvent(ev)
	if err != nil {
		log.Error("Failed to marshal event", zap.String("type", string(ev.Type)), zap.Error(err))
		return
	}
	n.hub.BroadcastToRoom(roomID, data, exceptConnID)
}

func (n *HubNotifier) DisbandRoom(roomID string) {
	n.hub.CloseRoom(roomID)
}

// AuctionWSHandler serves the real-time auction protocol.
type AuctionWSHandler struct {
	coordinator RoomCoordinator
	hub         *websocket.Hub
	notifier    application.Notifier
	// ctx outlives every connection and is cancelled on shutdown.
	ctx context.Context
}

func NewAuctionWSHandler(ctx context.Context, coordinator RoomCoordinator, hub *websocket.Hub, notifier application.Notifier) *AuctionWSHandler {
	return &AuctionWSHandler{coordinator: coordinator, hub: hub, notifier: notifier, ctx: ctx}
}

// Register mounts GET /ws and GET /ws/stats.
func (h *AuctionWSHandler) Register(router fiber.Router) {
	router.Get("/ws/stats", func(c *fiber.Ctx) error {
		return c.JSON(h.hub.Stats())
	})
	router.Use("/ws", func(c *fiber.Ctx) error {
		if fiberws.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	router.Get("/ws", fiberws.New(h.serve))
}

// serve runs for the lifetime of one connection.
func (h *AuctionWSHandler) serve(conn *fiberws.Conn) {
	client := websocket.NewClient(uuid.NewString(), conn)
	h.hub.Register(client)

	written := make(chan struct{})
	go func() {
		defer close(written)
		client.WritePump(h.ctx)
	}()
	client.ReadPump(h.ctx, h.processMessage)

	// closes the send queue, which stops the write pump
	h.hub.Unregister(client)
	<-written
	// the connection is already gone; run the drop on a context the shutdown does not cancel
	if err := h.coordinator.HandleTransportDrop(context.WithoutCancel(h.ctx), client.ID); err != nil {
		log.Error("Failed to handle transport drop", zap.String("clientID", client.ID), zap.Error(err))
	}
}

// processMessage handles one inbound frame. Frames of a connection are handled one at a time.
func (h *AuctionWSHandler) processMessage(ctx context.Context, client *websocket.Client, data []byte) {
	msgType, payload, err := decodeMessage(data)
	if err != nil {
		log.Warn("Rejected inbound message", zap.String("clientID", client.ID), zap.String("type", string(msgType)), zap.Error(err))
		h.sendError(client.ID, msgInvalidMessage)
		return
	}

	switch p := payload.(type) {
	case JoinRoomPayload:
		if err := h.coordinator.Join(ctx, p.RoomID, p.Username, client.ID); err != nil {
			h.sendError(client.ID, errorMessage(err, msgJoinFailed))
		}

	case PlaceBidPayload:
		_, err := h.coordinator.PlaceBid(ctx, p.RoomID, p.Username, client.ID, *p.BidAmount)
		var soft *application.SoftRejection
		switch {
		case err == nil:
		case errors.As(err, &soft):
			h.notifier.Send(client.ID, application.Event{
				Type: application.EventBidRejectedSoft,
				Payload: application.BidRejectedSoftPayload{
					Message:       soft.Message(),
					CurrentBid:    soft.CurrentBid,
					HighestBidder: soft.HighestBidder,
				},
			})
		default:
			h.sendError(client.ID, errorMessage(err, msgBidFailed))
		}

	case LeaveRoomPayload:
		reason := application.LeaveReason(p.Reason)
		if err := h.coordinator.Leave(ctx, p.RoomID, p.Username, client.ID, reason); err != nil {
			h.sendError(client.ID, errorMessage(err, msgLeaveFailed))
		}
	}
}

func (h *AuctionWSHandler) sendError(connID, message string) {
	h.notifier.Send(connID, application.Event{Type: application.EventProtocolError, Payload: message})
}

// errorMessage maps a coordinator error to the text shown to the client. Infrastructure
// failures get the generic fallback.
func errorMessage(err error, fallback string) string {
	switch {
	case errors.Is(err, domain.ErrParticipantNotFound):
		return msgUserNotFound
	case errors.Is(err, domain.ErrAuctionNotFound):
		return msgAuctionNotFound
	case errors.Is(err, domain.ErrAuctionEnded):
		return msgAuctionEnded
	case errors.Is(err, domain.ErrBidTooLow):
		return msgBidTooLow
	case errors.Is(err, domain.ErrInvalidAmount):
		return msgInvalidAmount
	case errors.Is(err, domain.ErrConnectionBusy):
		return msgConnectionBusy
	case errors.Is(err, domain.ErrPresenceMissing):
		return msgNotInRoom
	default:
		return fallback
	}
}
