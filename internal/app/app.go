package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"quizroom/config"
	"quizroom/internal/cache"
	"quizroom/internal/logger"
	"quizroom/internal/metrics"
	"quizroom/internal/repository"
	"quizroom/internal/service"
	"quizroom/internal/transport/rest"
	"quizroom/internal/transport/ws"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

// App wires the room coordinator together
type App struct {
	Config   *config.Config
	Log      *logger.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	RoomRepo repository.RoomRepo
	Redis    *redis.Client
	Hub      *ws.Hub

	Auth     *service.AuthService
	Rooms    *service.RoomService
	Rounds   *service.RoundService
	Answers  *service.AnswerService
	Sessions *service.SessionService
	Sync     *service.SyncService
	Sweeper  *service.Sweeper
	Monitor  *service.Monitor

	Server *http.Server

	mongo *mongo.Client
}

// New connects the stores and builds every component. ctx bounds the
// connection attempts and the lifetime of websocket work.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	a := &App{Config: cfg, Log: log}

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.Metrics = metrics.New(a.Registry)

	if err := a.connectStore(ctx); err != nil {
		return nil, err
	}

	a.Redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr()})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := a.Redis.Ping(pingCtx).Err(); err != nil {
		a.Close(context.Background())
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	log.Component("app").WithField("addr", cfg.RedisAddr()).Info("connected to redis")

	a.Hub = ws.NewHub(a.Metrics, log.Component("ws"))

	settings := service.Settings{
		StartDelay:           cfg.StartDelay,
		TransitionGap:        cfg.TransitionGap,
		DefaultBudget:        cfg.DefaultBudget,
		ScoringMode:          service.ScoringMode(cfg.ScoringMode),
		AutoAdvance:          cfg.AutoAdvance,
		MaxProcessedRequests: cfg.MaxProcessed,
		StaleAfter:           cfg.StaleAfter,
		PlayerGrace:          cfg.PlayerGrace,
	}
	if settings.ScoringMode != service.ScoringServer {
		settings.ScoringMode = service.ScoringTrusted
	}

	svcLog := log.Component("rooms")
	deps := service.Deps{
		Rooms:       a.RoomRepo,
		Snapshots:   cache.NewRoomCache(a.Redis),
		Sessions:    cache.NewSessionCache(a.Redis),
		Leaderboard: cache.NewLeaderboardCache(a.Redis),
		Locker:      service.NewRoomLocker(svcLog, a.Metrics.ObserveLockWait),
		Broadcaster: a.Hub,
		Clients:     service.NewClientRegistry(),
		Metrics:     a.Metrics,
		Log:         svcLog,
		Now:         time.Now,
		Settings:    settings,
	}
	a.Sync = service.NewSyncService(deps, cfg.ResyncInterval)
	deps.Tracker = a.Sync

	a.Rounds = service.NewRoundService(deps)
	deps.Deadlines = a.Rounds

	a.Auth = service.NewAuthService(cfg.JWTSecret, cfg.ResumeTokenTTL)
	a.Rooms = service.NewRoomService(deps, a.Auth)
	a.Answers = service.NewAnswerService(deps)
	a.Sessions = service.NewSessionService(deps, a.Auth)
	a.Sweeper = service.NewSweeper(deps, cfg.StaleSweepInterval, cfg.PlayerPurgeInterval)
	a.Monitor = service.NewMonitor(deps, cfg.MonitorInterval)

	wsHandler := ws.NewHandler(ctx, a.Hub, ws.Services{
		Rooms:    a.Rooms,
		Rounds:   a.Rounds,
		Answers:  a.Answers,
		Sessions: a.Sessions,
	}, log.Component("ws"), cfg.CORSOrigins)

	router := rest.NewRouter(&rest.Container{
		AuthService:  a.Auth,
		RoomService:  a.Rooms,
		RoundService: a.Rounds,
		Leaderboard:  deps.Leaderboard,
		WSHandler:    wsHandler,
		Gatherer:     a.Registry,
		CORSOrigins:  cfg.CORSOrigins,
		Log:          log.Component("http"),
	})
	a.Server = &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a, nil
}

func (a *App) connectStore(ctx context.Context) error {
	log := a.Log.Component("app")
	switch a.Config.StoreDriver {
	case "memory":
		a.RoomRepo = repository.NewMemoryRoomRepo()
		log.Warn("using in-memory room store, rooms are lost on restart")
		return nil
	case "mongo", "":
	default:
		return fmt.Errorf("unknown store driver %q", a.Config.StoreDriver)
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(a.Config.MongoURI))
	if err != nil {
		return fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		client.Disconnect(context.Background())
		return fmt.Errorf("failed to ping mongodb: %w", err)
	}
	a.mongo = client

	repo := repository.NewRoomRepo(client.Database(a.Config.MongoDatabase))
	if err := repo.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	a.RoomRepo = repo
	log.WithField("database", a.Config.MongoDatabase).Info("connected to mongodb")
	return nil
}

// Run serves HTTP and runs the background loops until ctx is cancelled or
// one of them fails, then shuts everything down
func (a *App) Run(ctx context.Context) error {
	log := a.Log.Component("app")

	if err := a.Sync.TrackActive(ctx); err != nil {
		log.WithError(err).Warn("failed to seed resync with active rooms")
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.WithField("addr", a.Server.Addr).Info("server starting")
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error { return a.Sweeper.Run(ctx) })
	g.Go(func() error { return a.Sync.Run(ctx) })
	g.Go(func() error { return a.Monitor.Run(ctx) })

	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.Rounds.Stop()
		err := a.Server.Shutdown(shutdownCtx)
		a.Hub.Close()
		return err
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close releases store connections
func (a *App) Close(ctx context.Context) {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Log.WithError(err).Warn("failed to close redis")
		}
	}
	if a.mongo != nil {
		if err := a.mongo.Disconnect(ctx); err != nil {
			a.Log.WithError(err).Warn("failed to disconnect mongodb")
		}
	}
}

// Fields returns the settings worth logging at startup
func (a *App) Fields() logrus.Fields {
	return logrus.Fields{
		"store":        a.Config.StoreDriver,
		"scoring_mode": a.Config.ScoringMode,
		"auto_advance": a.Config.AutoAdvance,
		"stale_after":  a.Config.StaleAfter.String(),
		"player_grace": a.Config.PlayerGrace.String(),
	}
}
