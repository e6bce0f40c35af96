package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ayushpatel2508/auctions/internal/auction/application"
	resthttp "github.com/ayushpatel2508/auctions/internal/auction/infra/http"
	"github.com/ayushpatel2508/auctions/internal/auction/infra/repository/memory"
	auctionpg "github.com/ayushpatel2508/auctions/internal/auction/infra/repository/postgres"
	wsinfra "github.com/ayushpatel2508/auctions/internal/auction/infra/websocket"
	"github.com/ayushpatel2508/auctions/internal/shared/cache"
	"github.com/ayushpatel2508/auctions/internal/shared/config"
	"github.com/ayushpatel2508/auctions/internal/shared/db"
	"github.com/ayushpatel2508/auctions/internal/shared/db/migrations"
	"github.com/ayushpatel2508/auctions/internal/shared/events"
	"github.com/ayushpatel2508/auctions/internal/shared/httpserver"
	"github.com/ayushpatel2508/auctions/internal/shared/lease"
	"github.com/ayushpatel2508/auctions/internal/shared/logger"
	"github.com/ayushpatel2508/auctions/internal/shared/ratelimit"
	"github.com/ayushpatel2508/auctions/internal/shared/websocket"
	userdomain "github.com/ayushpatel2508/auctions/internal/user/domain"
	userpg "github.com/ayushpatel2508/auctions/internal/user/infra/repository/postgres"
	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var log = logger.GetLogger()

const (
	sweeperLeaseKey = "auctions:sweeper"
	rateLimitPrefix = "auctions:ratelimit"
)

func main() {
	defer func() { _ = log.Sync() }()

	log.Info("Starting auction server...")
	if err := run(); err != nil {
		log.Fatal("Auction server failed", zap.Error(err))
	}
	log.Info("Auction server stopped")
}

func run() (err error) {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := logger.SetLevel(cfg.LogLevel); err != nil {
		log.Warn("Ignoring invalid LOG_LEVEL", zap.String("level", cfg.LogLevel), zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// closers run in reverse order on the way out
	var closers []func() error
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			err = multierr.Append(err, closers[i]())
		}
	}()

	repos, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	closers = append(closers, closeStore)

	var rdb *redis.Client
	if cfg.Redis.Enabled() {
		rdb, err = cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		closers = append(closers, rdb.Close)
	}

	publisher, err := openPublisher(ctx, cfg.Events)
	if err != nil {
		return err
	}
	closers = append(closers, publisher.Close)

	hub := websocket.NewHub(0)
	notifier := wsinfra.NewHubNotifier(hub)
	coordinator := application.NewCoordinator(repos, notifier, application.Options{
		StoreTimeout: cfg.StoreTimeout,
		ShowWinner:   cfg.ShowWinner,
		Publisher:    publisher,
	})
	service := application.NewAuctionService(repos, coordinator, nil, cfg.StoreTimeout)

	sweeperCfg := application.SweeperConfig{
		Interval:     cfg.SweepInterval,
		Batch:        cfg.SweepBatch,
		StoreTimeout: cfg.StoreTimeout,
	}
	serverOpts := httpserver.Options{
		Addr:        cfg.HTTPAddr,
		CORSOrigins: cfg.CORSOrigins,
		RateLimit:   cfg.RateLimit,
		RateWindow:  cfg.RateWindow,
	}
	if rdb != nil {
		l := lease.NewRedisLease(rdb, sweeperLeaseKey, cfg.SweeperLeaseTTL)
		sweeperCfg.Lease = l
		closers = append(closers, func() error {
			releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			return l.Release(releaseCtx)
		})
		serverOpts.RateLimiter = ratelimit.New(rdb, rateLimitPrefix, cfg.RateLimit, cfg.RateWindow).Middleware()
		log.Info("Redis enabled for rate limiting and sweeper lease", zap.String("owner", l.Owner()))
	}
	sweeper := application.NewSweeper(repos.Auctions, coordinator, sweeperCfg)

	g, gctx := errgroup.WithContext(ctx)

	server := httpserver.NewServer(serverOpts)
	resthttp.NewAuctionHandler(service).Register(server.API())
	wsinfra.NewAuctionWSHandler(gctx, coordinator, hub, notifier).Register(server.App())

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error { return sweeper.Run(gctx) })
	g.Go(func() error { return server.Run(gctx) })

	return g.Wait()
}

// openStore builds the repositories for the configured backend and returns their closer.
func openStore(ctx context.Context, cfg *config.Config) (application.Repositories, func() error, error) {
	switch cfg.StoreBackend {
	case config.StoreMemory:
		store := memory.NewStore()
		for _, u := range cfg.SeedUsers {
			store.AddUser(&userdomain.User{Username: u, Email: u + "@localhost", CreatedAt: time.Now()})
		}
		log.Warn("Using in-memory store; state is lost on restart", zap.Strings("seedUsers", cfg.SeedUsers))
		return application.Repositories{
			Users:    store.Users(),
			Auctions: store.Auctions(),
			Bids:     store.Bids(),
			Presence: store.Presence(),
			Tx:       store,
		}, func() error { return nil }, nil

	default:
		if cfg.RunMigrations {
			log.Info("Running database migrations...")
			if err := migrations.RunMigrations(cfg.DB.DSN()); err != nil {
				return application.Repositories{}, nil, fmt.Errorf("database migration failed: %w", err)
			}
			log.Info("Database migrations completed successfully.")
		}
		pool, err := db.NewPostgresPool(ctx, cfg.DB)
		if err != nil {
			return application.Repositories{}, nil, err
		}
		repos := application.Repositories{
			Users:    userpg.NewUserRepository(pool),
			Auctions: auctionpg.NewAuctionRepository(pool),
			Bids:     auctionpg.NewBidRepository(pool),
			Presence: auctionpg.NewPresenceRepository(pool),
			Tx:       db.NewTxManager(pool),
		}
		closePool := func() error {
			pool.Close()
			return nil
		}
		return repos, closePool, nil
	}
}

func openPublisher(ctx context.Context, cfg config.EventsConfig) (events.Publisher, error) {
	switch cfg.Backend {
	case config.EventsNATS:
		return events.NewNATSPublisher(ctx, cfg.NATSURL, cfg.NATSStream, cfg.NATSSubjectPrefix)
	case config.EventsKafka:
		return events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	default:
		return events.Noop{}, nil
	}
}
