package httpserver

import (
	"context"
	"strings"
	"time"

	"github.com/ayushpatel2508/auctions/internal/shared/logger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

const shutdownTimeout = 5 * time.Second

// Options configure the HTTP server.
type Options struct {
	Addr        string
	CORSOrigins []string
	// RateLimiter guards the /api group. When nil and RateLimit is positive an in-process
	// limiter of RateLimit requests per RateWindow is used instead.
	RateLimiter fiber.Handler
	RateLimit   int
	RateWindow  time.Duration
}

type Server struct {
	app  *fiber.App
	api  fiber.Router
	addr string
}

func NewServer(opts Options) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			if code >= fiber.StatusInternalServerError {
				log.Error("Unhandled request error", zap.String("path", c.Path()), zap.Error(err))
			}
			return c.Status(code).JSON(fiber.Map{"success": false, "msg": err.Error()})
		},
	})

	// request logging
	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		log.Info("HTTP request",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", c.Response().StatusCode()),
			zap.Duration("latency", time.Since(start)),
			zap.String("remote_addr", c.IP()),
		)
		return err
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(opts.CORSOrigins, ","),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization,X-Participant",
		AllowCredentials: true,
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "OK", "timestamp": time.Now().UTC()})
	})

	api := app.Group("/api")
	switch {
	case opts.RateLimiter != nil:
		api.Use(opts.RateLimiter)
	case opts.RateLimit > 0:
		api.Use(limiter.New(limiter.Config{
			Max:        opts.RateLimit,
			Expiration: opts.RateWindow,
			LimitReached: func(c *fiber.Ctx) error {
				return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
					"success": false,
					"msg":     "Too many requests, please try again later",
				})
			},
		}))
	}

	return &Server{app: app, api: api, addr: opts.Addr}
}

// App is the root router, for routes outside /api such as the websocket endpoint.
func (s *Server) App() *fiber.App { return s.app }

// API is the rate-limited /api group.
func (s *Server) API() fiber.Router { return s.api }

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server started", zap.String("addr", s.addr))
		errCh <- s.app.Listen(s.addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.app.ShutdownWithContext(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
