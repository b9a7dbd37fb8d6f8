package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"innkeep/internal/app/engine"
	"innkeep/internal/app/middleware"
	appoutbox "innkeep/internal/app/outbox"
	"innkeep/internal/app/uow"
	"innkeep/internal/domain/rooms"
	"innkeep/internal/infra/broker/kafka"
	rediscache "innkeep/internal/infra/cache/redis"
	"innkeep/internal/infra/config"
	mongostore "innkeep/internal/infra/db/mongo"
	sqlitestore "innkeep/internal/infra/db/sqlite"
	grpcserver "innkeep/internal/infra/grpc"
	ginserver "innkeep/internal/infra/http/gin"
	"innkeep/internal/infra/inbox"
	"innkeep/internal/infra/obs"
	relay "innkeep/internal/infra/outbox"
	"innkeep/internal/infra/realtime"
	"innkeep/internal/infra/storage/memory"
	s3store "innkeep/internal/infra/storage/s3"
	"innkeep/internal/infra/validation"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		obs.NewLogger(os.Getenv("APP_ENV")).Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Env)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	app, err := buildApplication(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer app.close(logger)

	if err := loadRoomFixtures(ctx, fixturesPath(cfg.FixturesPath), app.rooms, logger); err != nil {
		logger.Warn("room fixtures load failed", "error", err)
	}

	app.start(ctx, cfg, logger)

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, app.health, app.handlers)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "storage", cfg.Storage)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		stop()
		app.wait()
		os.Exit(1)
	}
	app.wait()
	logger.Info("HTTP server stopped")
}

// relaySource is an outbox that the relay worker can also drain.
type relaySource interface {
	appoutbox.Outbox
	relay.Source
}

// backend bundles what one storage choice provides.
type backend struct {
	factory     uow.UoWFactory
	rooms       rooms.Writer
	outbox      relaySource
	idempotency middleware.IdempotencyStore
	inbox       kafka.Inbox
	ping        obs.Check
	close       func(context.Context) error
}

func openBackend(ctx context.Context, cfg config.Config, logger *slog.Logger) (backend, error) {
	switch cfg.Storage {
	case config.StorageMongo:
		client, err := mongostore.New(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return backend{}, fmt.Errorf("connect mongo: %w", err)
		}
		if err := client.EnsureIndexes(ctx); err != nil {
			return backend{}, fmt.Errorf("mongo indexes: %w", err)
		}
		store := mongostore.NewStore(client.DB, cfg.TxLockTimeout)
		idem, err := mongostore.NewIdempotencyStore(ctx, client.DB, cfg.IdempotencyTTL)
		if err != nil {
			return backend{}, fmt.Errorf("mongo idempotency: %w", err)
		}
		box, err := relay.NewStore(ctx, client.DB, hostname())
		if err != nil {
			return backend{}, fmt.Errorf("mongo outbox: %w", err)
		}
		seen, err := inbox.NewStore(ctx, client.DB, cfg.KafkaGroupID)
		if err != nil {
			return backend{}, fmt.Errorf("mongo inbox: %w", err)
		}
		return backend{
			factory: store, rooms: store, outbox: box, idempotency: idem, inbox: seen,
			ping: store.Ping, close: client.Disconnect,
		}, nil
	case config.StorageSQLite:
		store, err := sqlitestore.Open(ctx, sqlitestore.Options{Path: cfg.SQLitePath, LockTimeout: cfg.TxLockTimeout, Logger: logger})
		if err != nil {
			return backend{}, fmt.Errorf("open sqlite: %w", err)
		}
		return backend{
			factory: store, rooms: store, outbox: store.Outbox(),
			idempotency: memory.NewIdempotencyStore(cfg.IdempotencyTTL), inbox: memory.NewInbox(),
			ping: store.Ping, close: func(context.Context) error { return store.Close() },
		}, nil
	default:
		store := memory.New(memory.Options{LockTimeout: cfg.TxLockTimeout})
		return backend{
			factory: store, rooms: store, outbox: store.Outbox(),
			idempotency: memory.NewIdempotencyStore(cfg.IdempotencyTTL), inbox: memory.NewInbox(),
			ping:  func(context.Context) error { return nil },
			close: func(context.Context) error { return nil },
		}, nil
	}
}

type application struct {
	backend  backend
	engine   *engine.Engine
	hub      *realtime.Hub
	rooms    rooms.Writer
	handlers ginserver.Handlers
	health   obs.HealthHandlers
	producer relay.Producer
	closers  []func() error
	done     chan struct{}
	tasks    int
}

func buildApplication(ctx context.Context, cfg config.Config, logger *slog.Logger) (*application, error) {
	be, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	app := &application{backend: be, rooms: be.rooms, done: make(chan struct{}, 8)}
	checks := map[string]obs.Check{"store": be.ping}

	app.hub = realtime.NewHub(logger)
	sinks := appoutbox.Sinks{app.hub}

	engineCfg := engine.Config{
		UoWFactory:    be.factory,
		Validator:     validation.New(),
		Idempotency:   be.idempotency,
		Outbox:        be.outbox,
		Tracer:        otel.Tracer("innkeep"),
		Logger:        logger,
		RetryBackoff:  cfg.TxRetryBackoff,
		LockTimeout:   cfg.TxLockTimeout,
		MaxStayNights: cfg.MaxStayNights,
		GridMaxDays:   cfg.GridMaxDays,
		HorizonDays:   cfg.BlockHorizonDays,
		StatsTTL:      cfg.StatsCacheTTL,
		Reports:       s3store.Unconfigured{},
	}
	if cfg.RedisAddr != "" {
		cache := rediscache.NewStatsCache(rediscache.NewClient(cfg.RedisAddr), logger)
		engineCfg.StatsCache = cache
		sinks = append(sinks, cache)
		checks["redis"] = cache.Ping
	} else {
		logger.Info("REDIS_ADDR not set, occupancy stats are not cached")
	}
	if cfg.S3Endpoint != "" {
		reports, err := s3store.NewReportStore(s3store.Options{
			Endpoint:       cfg.S3Endpoint,
			PublicEndpoint: cfg.S3PublicEndpoint,
			AccessKey:      cfg.S3AccessKey,
			SecretKey:      cfg.S3SecretKey,
			Bucket:         cfg.S3Bucket,
			UseSSL:         cfg.S3UseSSL,
		}, logger)
		if err != nil {
			return nil, err
		}
		engineCfg.Reports = reports
		checks["s3"] = reports.Ping
	}
	engineCfg.Sinks = sinks

	app.engine, err = engine.New(engineCfg)
	if err != nil {
		return nil, err
	}
	app.health = obs.HealthHandlers{Checks: checks}
	app.handlers = ginserver.Handlers{
		Service: app.engine,
		Logger:  logger,
		Stream:  realtime.Stream(app.hub, logger),
	}

	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(cfg.KafkaBrokers, "innkeep")
		if err != nil {
			return nil, fmt.Errorf("kafka producer: %w", err)
		}
		app.producer = producer
		app.closers = append(app.closers, producer.Close)
	} else {
		logger.Info("KAFKA_BROKERS not set, outbox records are logged instead of published")
		app.producer = relay.LogProducer{Logger: logger}
	}
	return app, nil
}

// start launches the background loops; each signals done when it returns.
func (a *application) start(ctx context.Context, cfg config.Config, logger *slog.Logger) {
	a.spawn(func() { a.hub.Run(ctx) })

	worker := &relay.Worker{
		Store:       a.backend.outbox,
		Producer:    a.producer,
		Interval:    cfg.OutboxPollInterval,
		TopicPrefix: cfg.KafkaTopicPrefix,
		SourceURI:   "urn:innkeep:availability",
		Backoff:     cfg.RetryBackoff,
		Logger:      logger,
	}
	a.spawn(func() {
		if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("outbox worker stopped", "error", err)
		}
	})

	if cfg.GRPCAddr != "" {
		health := grpcserver.NewHealthServer(a.health, 5*time.Second, logger)
		a.spawn(func() {
			lis, err := net.Listen("tcp", cfg.GRPCAddr)
			if err != nil {
				logger.Error("grpc listen failed", "addr", cfg.GRPCAddr, "error", err)
				return
			}
			logger.Info("gRPC health server starting", "addr", cfg.GRPCAddr)
			if err := health.Serve(ctx, lis); err != nil {
				logger.Error("grpc health server failed", "error", err)
			}
		})
	}

	if len(cfg.KafkaBrokers) > 0 {
		consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID, nil, kafka.CancellationHandler{
			Service: a.engine,
			Inbox:   a.backend.inbox,
			Logger:  logger,
		}, logger)
		if err != nil {
			logger.Error("kafka consumer unavailable", "error", err)
			return
		}
		a.closers = append(a.closers, consumer.Close)
		a.spawn(func() {
			logger.Info("booking cancellations consumer starting", "topic", cfg.BookingEventsTopic)
			if err := consumer.Run(ctx, []string{cfg.BookingEventsTopic}); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("booking cancellations consumer stopped", "error", err)
			}
		})
	}
}

func (a *application) spawn(fn func()) {
	a.tasks++
	go func() {
		defer func() { a.done <- struct{}{} }()
		fn()
	}()
}

// wait blocks until the background loops returned or the grace period ran out.
func (a *application) wait() {
	timeout := time.After(5 * time.Second)
	for i := 0; i < a.tasks; i++ {
		select {
		case <-a.done:
		case <-timeout:
			return
		}
	}
}

func (a *application) close(logger *slog.Logger) {
	for _, c := range a.closers {
		if err := c(); err != nil {
			logger.Warn("close failed", "error", err)
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.backend.close(ctx); err != nil {
		logger.Warn("storage close failed", "error", err)
	}
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "innkeep"
	}
	return name
}
