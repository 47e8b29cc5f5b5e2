package app

import (
	"context"
	"database/sql"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"vego/backend/libs/db"
	libredis "vego/backend/libs/redis"
	"vego/backend/services/stations-service/internal/config"
	"vego/backend/services/stations-service/internal/feed"
	httpserver "vego/backend/services/stations-service/internal/http"
	"vego/backend/services/stations-service/internal/http/handlers"
	"vego/backend/services/stations-service/internal/http/middleware"
	"vego/backend/services/stations-service/internal/notify"
	"vego/backend/services/stations-service/internal/repository"
	"vego/backend/services/stations-service/internal/service"
	"vego/backend/services/stations-service/internal/ws"
)

const (
	startupTimeout = 30 * time.Second
	wsWriteTimeout = 10 * time.Second
)

// App wires stations-service dependencies.
type App struct {
	server      *httpserver.Server
	stationFeed *feed.Feed
	monitor     *service.ExpiryMonitor
	reminders   *notify.Scheduler
	db          *sql.DB
	redisClient *redis.Client
	logger      *zap.Logger
}

// New constructs the application graph, prepares the schema and reconciles
// the station collection with the bundled reference dataset.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	sqlDB, err := db.NewPostgresDB(cfg.Database.DSN, cfg.Database.MaxOpenConns)
	if err != nil {
		return nil, err
	}

	redisClient, err := libredis.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}

	stationRepo := repository.NewStationRepository(sqlDB)

	startupCtx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	if err := stationRepo.EnsureSchema(startupCtx); err != nil {
		sqlDB.Close()
		redisClient.Close()
		return nil, err
	}
	if cfg.Seed {
		reference, err := repository.SeedStations()
		if err != nil {
			sqlDB.Close()
			redisClient.Close()
			return nil, err
		}
		if err := stationRepo.Reconcile(startupCtx, reference, logger); err != nil {
			sqlDB.Close()
			redisClient.Close()
			return nil, err
		}
	}

	stationFeed := feed.New(redisClient, cfg.Redis.Channel, stationRepo, logger)

	reminders := notify.NewScheduler(newSender(cfg, logger), logger)

	checkinSvc := service.NewCheckInService(
		stationRepo,
		stationFeed,
		reminders,
		cfg.CheckIn.ProximityKm,
		nil,
		logger,
	)
	monitor := service.NewExpiryMonitor(
		stationFeed,
		checkinSvc,
		cfg.Expiry.SweepInterval,
		cfg.Expiry.GraceMinutes,
		nil,
		logger,
	)

	hub := ws.NewHub()
	wsServer := ws.NewServer(hub, stationFeed, wsWriteTimeout, logger)
	stationFeed.Subscribe(hub.Broadcast)

	checkinHandlers := handlers.NewCheckInHandlers(stationRepo, checkinSvc, logger)
	routes := httpserver.Routes{
		StationsList:   handlers.NewStationsListHandler(stationFeed),
		NearestStation: handlers.NewNearestStationHandler(stationFeed),
		CheckIn:        checkinHandlers.CheckIn,
		Release:        checkinHandlers.Release,
		Feed:           wsServer.HandleWS,
		Health:         handlers.NewHealthHandler(),
	}

	router := httpserver.NewRouter(routes, middleware.AuthMiddleware(cfg.Auth.JWTSecret))
	server := httpserver.NewServer(cfg.HTTPAddress(), router, logger)

	return &App{
		server:      server,
		stationFeed: stationFeed,
		monitor:     monitor,
		reminders:   reminders,
		db:          sqlDB,
		redisClient: redisClient,
		logger:      logger,
	}, nil
}

// Run starts the feed consumer, the expiry monitor and the HTTP server, and
// blocks until all of them have stopped.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 3)
	go func() { errCh <- a.stationFeed.Run(ctx) }()
	go func() { errCh <- a.monitor.Run(ctx) }()
	go func() { errCh <- a.server.Run(ctx) }()

	var firstErr error
	for i := 0; i < 3; i++ {
		if err := <-errCh; err != nil {
			if firstErr == nil {
				firstErr = err
			}
			cancel()
		}
	}
	return firstErr
}

// Close releases resources.
func (a *App) Close() {
	a.reminders.Stop()
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close db", zap.Error(err))
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
}

// newSender picks the reminder delivery backend: FCM when credentials are
// configured, otherwise log-only.
func newSender(cfg *config.Config, logger *zap.Logger) notify.Sender {
	if cfg.FCM.CredentialsFile == "" {
		return &notify.NopSender{Logger: logger}
	}

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	sender, err := notify.NewFCMSender(ctx, cfg.FCM.CredentialsFile)
	if err != nil {
		logger.Warn("fcm unavailable, reminders will be log-only", zap.Error(err))
		return &notify.NopSender{Logger: logger}
	}
	return sender
}
