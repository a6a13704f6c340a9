package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"hammerdrop-auction-service/internal/adapters/archive"
	"hammerdrop-auction-service/internal/adapters/broadcaster"
	"hammerdrop-auction-service/internal/adapters/clock"
	"hammerdrop-auction-service/internal/adapters/db"
	"hammerdrop-auction-service/internal/adapters/memory"
	"hammerdrop-auction-service/internal/adapters/redis"
	"hammerdrop-auction-service/internal/adapters/ws"
	"hammerdrop-auction-service/internal/app"
	"hammerdrop-auction-service/internal/config"
	"hammerdrop-auction-service/internal/ports/outbound"
)

func main() {

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	initLogging(cfg)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().Msg("Starting Hammerdrop Auction Service...")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage
	var (
		listingRepo outbound.ListingRepository
		bidLedger   outbound.BidLedger
	)
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		if cfg.Database.Migrate {
			if err := db.Migrate(cfg.Database.URL, log.Logger); err != nil {
				log.Fatal().Err(err).Msg("Failed to run database migrations")
			}
		}

		dbConn, err := db.NewConnection(ctx, &cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer dbConn.Close()

		repoFactory := db.NewRepositoryFactory(dbConn)
		listingRepo = repoFactory.GetListingRepository()
		bidLedger = repoFactory.GetBidLedger()
		log.Info().Msg("PostgreSQL storage initialized")
	case config.DriverMemory:
		listingRepo = memory.NewListingRepository()
		bidLedger = memory.NewBidLedger()
		log.Warn().Msg("In-memory storage initialized; listings and bids are lost on restart")
	}

	// Broadcaster
	var events outbound.Broadcaster
	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&cfg.Redis)
		if err := redis.Ping(ctx, redisClient); err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		log.Info().Msg("Redis connection established")

		redisBroadcaster := broadcaster.NewRedisBroadcaster(broadcaster.RedisBroadcasterParams{
			RedisClient: redisClient,
			Logger:      log.Logger,
		})
		defer redisBroadcaster.Close()
		events = redisBroadcaster
	} else {
		localBroadcaster := broadcaster.NewLocalBroadcaster(broadcaster.LocalBroadcasterParams{
			Logger: log.Logger,
		})
		defer localBroadcaster.Close()
		events = localBroadcaster
	}
	log.Info().Bool("redis", cfg.Redis.Enabled).Msg("Broadcaster initialized")

	// Bid archive
	var bidArchive outbound.BidArchive
	if cfg.NATS.Enabled {
		natsConn, err := archive.Connect(cfg.NATS.URL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to NATS")
		}

		natsArchive, err := archive.NewNATSArchive(ctx, archive.NATSArchiveParams{
			Conn:           natsConn,
			Stream:         cfg.NATS.Stream,
			PublishTimeout: cfg.NATS.PublishTimeout,
			Logger:         log.Logger,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create bid archive")
		}
		defer natsArchive.Close()
		bidArchive = natsArchive
		log.Info().Str("stream", cfg.NATS.Stream).Msg("Bid archive initialized")
	}

	// Business services share the per-listing locks so bids, relists and
	// deletes on one listing never interleave.
	systemClock := clock.System{}
	locks := app.NewListingLocks()

	listingService := app.NewListingService(app.ListingServiceParams{
		ListingRepo: listingRepo,
		BidLedger:   bidLedger,
		Broadcaster: events,
		Clock:       systemClock,
		Locks:       locks,
		Logger:      log.Logger,
	})
	bidService := app.NewBidService(app.BidServiceParams{
		ListingRepo:         listingRepo,
		BidLedger:           bidLedger,
		Broadcaster:         events,
		Archive:             bidArchive,
		Clock:               systemClock,
		Locks:               locks,
		AllowSelfOutbid:     cfg.Auction.AllowSelfOutbid,
		MaxAdmissionRetries: cfg.Auction.MaxAdmissionRetries,
		Logger:              log.Logger,
	})
	catalogService := app.NewCatalogService(app.CatalogServiceParams{
		ListingRepo: listingRepo,
		BidLedger:   bidLedger,
		Clock:       systemClock,
		Logger:      log.Logger,
	})

	log.Info().Msg("Business services initialized")

	server := ws.NewServer(ws.ServerParams{
		Config:         cfg,
		ListingService: listingService,
		BidService:     bidService,
		CatalogService: catalogService,
		Broadcaster:    events,
		Logger:         log.Logger,
	})

	go func() {
		if err := server.Start(); err != nil {
			log.Error().Err(err).Msg("Failed to start server")
			cancel()
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case <-ctx.Done():
		log.Info().Msg("Context cancelled")
	}

	log.Info().Msg("Starting graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping server")
	}

	log.Info().Msg("Graceful shutdown completed")
}

func initLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Logging.Format == "json" {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		// Console format for development
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		log.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	zerolog.DefaultContextLogger = &log.Logger
}
