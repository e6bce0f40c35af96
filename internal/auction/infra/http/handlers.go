package http

import (
	"context"
	"errors"
	"strings"

	"github.com/ayushpatel2508/auctions/internal/auction/application"
	"github.com/ayushpatel2508/auctions/internal/auction/domain"
	"github.com/ayushpatel2508/auctions/internal/shared/logger"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// ParticipantHeader carries the caller identity set by the authenticating gateway.
const ParticipantHeader = "X-Participant"

// AuctionUseCases is the application surface the REST handlers call.
type AuctionUseCases interface {
	Create(ctx context.Context, in application.CreateAuctionInput) (*domain.Auction, error)
	List(ctx context.Context) ([]*domain.Auction, error)
	Get(ctx context.Context, roomID string) (*application.AuctionDetails, error)
	BidHistory(ctx context.Context, roomID string) ([]*domain.Bid, error)
	End(ctx context.Context, roomID, caller string) (*domain.Auction, error)
	Delete(ctx context.Context, roomID, caller string) (*application.DeletionStats, error)
	Quit(ctx context.Context, roomID, caller string) error
}

type AuctionHandler struct {
	service AuctionUseCases
}

func NewAuctionHandler(service AuctionUseCases) *AuctionHandler {
	return &AuctionHandler{service: service}
}

// Register mounts the auction routes on router, usually the /api group.
func (h *AuctionHandler) Register(router fiber.Router) {
	auctions := router.Group("/auctions")
	auctions.Post("/", h.create)
	auctions.Get("/", h.list)
	auctions.Get("/:roomId", h.get)
	auctions.Get("/:roomId/bids", h.bids)
	auctions.Post("/:roomId/end", h.end)
	auctions.Post("/:roomId/quit", h.quit)
	auctions.Delete("/:roomId", h.delete)
}

func (h *AuctionHandler) create(c *fiber.Ctx) error {
	caller := participant(c)
	if caller == "" {
		return fail(c, fiber.StatusBadRequest, ParticipantHeader+" header is required")
	}
	var req createAuctionRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}

	auction, err := h.service.Create(c.UserContext(), application.CreateAuctionInput{
		Creator:         caller,
		Title:           req.Title,
		Description:     req.Description,
		StartingPrice:   req.StartingPrice,
		DurationMinutes: req.Duration,
	})
	if err != nil {
		return h.respondError(c, err, "Failed to create auction")
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": toAuctionResponse(auction)})
}

func (h *AuctionHandler) list(c *fiber.Ctx) error {
	auctions, err := h.service.List(c.UserContext())
	if err != nil {
		return h.respondError(c, err, "Failed to fetch auctions")
	}
	out := make([]auctionResponse, 0, len(auctions))
	for _, a := range auctions {
		out = append(out, toAuctionResponse(a))
	}
	return ok(c, out)
}

func (h *AuctionHandler) get(c *fiber.Ctx) error {
	details, err := h.service.Get(c.UserContext(), c.Params("roomId"))
	if err != nil {
		return h.respondError(c, err, "Failed to fetch auction")
	}
	online := make([]presenceResponse, 0, len(details.Online))
	for _, p := range details.Online {
		online = append(online, presenceResponse{Username: p.Participant, JoinedAt: p.JoinedAt})
	}
	return ok(c, auctionDetailsResponse{
		Auction:       toAuctionResponse(details.Auction),
		RecentBids:    toBidResponses(details.RecentBids),
		Online:        online,
		TimeRemaining: details.TimeRemaining.Milliseconds(),
	})
}

func (h *AuctionHandler) bids(c *fiber.Ctx) error {
	bids, err := h.service.BidHistory(c.UserContext(), c.Params("roomId"))
	if err != nil {
		return h.respondError(c, err, "Failed to fetch bid history")
	}
	return ok(c, toBidResponses(bids))
}

func (h *AuctionHandler) end(c *fiber.Ctx) error {
	caller := participant(c)
	if caller == "" {
		return fail(c, fiber.StatusBadRequest, ParticipantHeader+" header is required")
	}
	auction, err := h.service.End(c.UserContext(), c.Params("roomId"), caller)
	if err != nil {
		return h.respondError(c, err, "Failed to end auction")
	}
	return ok(c, toAuctionResponse(auction))
}

func (h *AuctionHandler) quit(c *fiber.Ctx) error {
	caller := participant(c)
	if caller == "" {
		return fail(c, fiber.StatusBadRequest, ParticipantHeader+" header is required")
	}
	if err := h.service.Quit(c.UserContext(), c.Params("roomId"), caller); err != nil {
		return h.respondError(c, err, "Failed to quit auction")
	}
	return c.JSON(fiber.Map{"success": true, "msg": "Successfully quit auction"})
}

func (h *AuctionHandler) delete(c *fiber.Ctx) error {
	caller := participant(c)
	if caller == "" {
		return fail(c, fiber.StatusBadRequest, ParticipantHeader+" header is required")
	}
	stats, err := h.service.Delete(c.UserContext(), c.Params("roomId"), caller)
	if err != nil {
		return h.respondError(c, err, "Failed to delete auction")
	}
	return ok(c, stats)
}

func participant(c *fiber.Ctx) string {
	return strings.TrimSpace(c.Get(ParticipantHeader))
}

func ok(c *fiber.Ctx, data any) error {
	return c.JSON(fiber.Map{"success": true, "data": data})
}

func fail(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"success": false, "msg": msg})
}

// respondError maps application errors to status codes. Anything unrecognised is a 500 with
// the generic message.
func (h *AuctionHandler) respondError(c *fiber.Ctx, err error, generic string) error {
	var status int
	msg := err.Error()
	switch {
	case errors.Is(err, domain.ErrParticipantNotFound):
		status, msg = fiber.StatusNotFound, "User not found"
	case errors.Is(err, domain.ErrAuctionNotFound):
		status, msg = fiber.StatusNotFound, "Auction not found"
	case errors.Is(err, domain.ErrNotCreator):
		status, msg = fiber.StatusForbidden, "Only the auction creator can do this"
	case errors.Is(err, domain.ErrAuctionEnded):
		status, msg = fiber.StatusConflict, "Auction has already ended"
	case errors.Is(err, domain.ErrRoomExists):
		status, msg = fiber.StatusConflict, "Auction room already exists"
	case errors.Is(err, domain.ErrInvalidAuction), errors.Is(err, domain.ErrInvalidAmount):
		status = fiber.StatusBadRequest
	default:
		log.Error(generic, zap.String("path", c.Path()), zap.Error(err))
		return fail(c, fiber.StatusInternalServerError, generic)
	}
	log.Warn("Request rejected", zap.String("path", c.Path()), zap.Int("status", status), zap.Error(err))
	return fail(c, status, msg)
}
