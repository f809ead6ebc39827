package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/hackgods/vet-appointment-scheduling/internal/config"
	"github.com/hackgods/vet-appointment-scheduling/internal/db"
	"github.com/hackgods/vet-appointment-scheduling/internal/logger"
	"github.com/hackgods/vet-appointment-scheduling/internal/notify"
)

const prefetch = 16

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString("config load error: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.New(cfg, "notify-worker")
	defer func() { _ = log.Sync() }()

	log.Info("notify-worker starting up", zap.String("env", cfg.Env), zap.String("queue", cfg.NotifyQueue))

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolOptions{MaxConns: 4})
	cancelPg()
	if err != nil {
		log.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()
	log.Info("connected to Postgres")

	conn, err := amqp.Dial(cfg.AMQPURL)
	if err != nil {
		log.Fatal("amqp connection error", zap.Error(err))
	}
	defer conn.Close()
	log.Info("connected to RabbitMQ")

	sinks := notify.Fanout{notify.NewPgInbox(pgPool)}
	if cfg.Email.Enabled {
		sinks = append(sinks, notify.NewEmailSink(cfg.Email, notify.NewPgAddressBook(pgPool)))
	}

	consumer, err := notify.NewConsumer(conn, cfg.NotifyQueue, sinks, log, prefetch, cfg.NotifyTimeout)
	if err != nil {
		log.Fatal("amqp consumer error", zap.Error(err))
	}
	defer consumer.Close()

	if err := consumer.Run(rootCtx); err != nil {
		log.Error("consumer stopped", zap.Error(err))
		return
	}
	log.Info("shutdown signal received, stopping notify worker")
}
