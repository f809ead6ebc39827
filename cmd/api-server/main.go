package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/hackgods/vet-appointment-scheduling/internal/api"
	"github.com/hackgods/vet-appointment-scheduling/internal/appointment"
	"github.com/hackgods/vet-appointment-scheduling/internal/auth"
	"github.com/hackgods/vet-appointment-scheduling/internal/clock"
	"github.com/hackgods/vet-appointment-scheduling/internal/config"
	"github.com/hackgods/vet-appointment-scheduling/internal/db"
	"github.com/hackgods/vet-appointment-scheduling/internal/logger"
	"github.com/hackgods/vet-appointment-scheduling/internal/notify"
	redisclient "github.com/hackgods/vet-appointment-scheduling/internal/redis"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString("config load error: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.New(cfg, "api-server")
	defer func() { _ = log.Sync() }()

	if err := cfg.RequireJWT(); err != nil {
		log.Fatal("config error", zap.Error(err))
	}

	log.Info("api-server starting up", zap.String("env", cfg.Env), zap.String("http_port", cfg.HTTPPort))

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolOptions{})
	if err == nil {
		err = db.Migrate(pgCtx, pgPool)
	}
	cancelPg()
	if err != nil {
		log.Fatal("postgres setup error", zap.Error(err))
	}
	defer pgPool.Close()
	log.Info("connected to Postgres")

	// Connect Redis
	rdb, err := redisclient.NewRedisClient(rootCtx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatal("redis connection error", zap.Error(err))
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Warn("error closing redis", zap.Error(err))
		}
	}()
	log.Info("connected to Redis")

	opts, err := appointment.OptionsFromConfig(cfg)
	if err != nil {
		log.Fatal("schedule config error", zap.Error(err))
	}

	clk := clock.System()
	inbox := notify.NewPgInbox(pgPool)

	var sink notify.Sink
	switch cfg.NotifyMode {
	case "queue":
		conn, err := amqp.Dial(cfg.AMQPURL)
		if err != nil {
			log.Fatal("amqp connection error", zap.Error(err))
		}
		defer conn.Close()
		pub, err := notify.NewQueuePublisher(conn, cfg.NotifyQueue)
		if err != nil {
			log.Fatal("amqp publisher error", zap.Error(err))
		}
		defer pub.Close()
		sink = pub
		log.Info("publishing notifications to queue", zap.String("queue", cfg.NotifyQueue))
	default:
		sinks := notify.Fanout{inbox}
		if cfg.Email.Enabled {
			sinks = append(sinks, notify.NewEmailSink(cfg.Email, notify.NewPgAddressBook(pgPool)))
		}
		sink = sinks
	}
	dispatcher := notify.NewDispatcher(sink, log, clk, cfg.NotifyTimeout)

	svc := appointment.NewService(
		appointment.NewPgRepository(pgPool),
		appointment.NewPgDirectory(pgPool, opts.WorkingHours.Location),
		redisclient.NewRedisLocker(rdb, cfg.LockTTL, cfg.LockWait),
		dispatcher,
		clk,
		log,
		opts,
	)

	router := api.NewRouter(api.RouterConfig{
		Service:      svc,
		Inbox:        inbox,
		Verifier:     auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer),
		Health:       api.NewHealthHandler(pgPool, api.RedisPinger(rdb), cfg.Env, version),
		Log:          log,
		CORSOrigins:  cfg.CORSOrigins,
		RateLimitRPS: cfg.RateLimitRPS,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-rootCtx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error("http server error", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown error", zap.Error(err))
	}
	if err := dispatcher.Close(shutdownCtx); err != nil {
		log.Warn("pending notifications dropped", zap.Error(err))
	}

	log.Info("api-server stopped")
}
