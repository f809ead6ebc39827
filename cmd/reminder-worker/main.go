package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/hackgods/vet-appointment-scheduling/internal/appointment"
	"github.com/hackgods/vet-appointment-scheduling/internal/clock"
	"github.com/hackgods/vet-appointment-scheduling/internal/config"
	"github.com/hackgods/vet-appointment-scheduling/internal/db"
	"github.com/hackgods/vet-appointment-scheduling/internal/logger"
	"github.com/hackgods/vet-appointment-scheduling/internal/notify"
	redisclient "github.com/hackgods/vet-appointment-scheduling/internal/redis"
)

const sweepTimeout = 2 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString("config load error: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.New(cfg, "reminder-worker")
	defer func() { _ = log.Sync() }()

	log.Info("reminder-worker starting up",
		zap.String("env", cfg.Env),
		zap.String("day_spec", cfg.ReminderDaySpec),
		zap.String("hour_spec", cfg.ReminderHourSpec),
	)

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
	sinks := notify.Fanout{notify.NewPgInbox(pgPool)}
	if cfg.Email.Enabled {
		sinks = append(sinks, notify.NewEmailSink(cfg.Email, notify.NewPgAddressBook(pgPool)))
	}
	dispatcher := notify.NewDispatcher(sinks, log, clk, cfg.NotifyTimeout)

	svc := appointment.NewService(
		appointment.NewPgRepository(pgPool),
		appointment.NewPgDirectory(pgPool, opts.WorkingHours.Location),
		redisclient.NewRedisLocker(rdb, cfg.LockTTL, cfg.LockWait),
		dispatcher,
		clk,
		log,
		opts,
	)

	// One sweep per kind across all worker replicas. Losers skip the tick.
	leader := redisclient.NewRedisLocker(rdb, sweepTimeout, 0)

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{log.Sugar()})))
	for _, job := range []struct {
		spec string
		kind appointment.ReminderKind
	}{
		{cfg.ReminderDaySpec, appointment.ReminderDayBefore},
		{cfg.ReminderHourSpec, appointment.ReminderHourBefore},
	} {
		kind := job.kind
		if _, err := c.AddFunc(job.spec, func() { runOnce(rootCtx, log, leader, svc, kind) }); err != nil {
			log.Fatal("invalid reminder schedule", zap.String("spec", job.spec), zap.Error(err))
		}
	}

	// Run once at startup
	runOnce(rootCtx, log, leader, svc, appointment.ReminderDayBefore)
	runOnce(rootCtx, log, leader, svc, appointment.ReminderHourBefore)

	c.Start()
	<-rootCtx.Done()
	log.Info("shutdown signal received, stopping reminder worker")

	<-c.Stop().Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := dispatcher.Close(shutdownCtx); err != nil {
		log.Warn("pending notifications dropped", zap.Error(err))
	}
}

func runOnce(ctx context.Context, log *zap.Logger, leader redisclient.Locker, svc *appointment.Service, kind appointment.ReminderKind) {
	if ctx.Err() != nil {
		return
	}

	start := time.Now()
	var sent int
	err := leader.WithLock(ctx, "lock:reminders:"+string(kind), func(ctx context.Context) error {
		var err error
		sent, err = svc.SendReminders(ctx, kind)
		return err
	})
	switch {
	case errors.Is(err, redisclient.ErrLockNotAcquired):
		log.Debug("reminder sweep running elsewhere", zap.String("reminder", string(kind)))
	case err != nil:
		log.Error("reminder sweep error", zap.String("reminder", string(kind)), zap.Error(err))
	default:
		log.Info("reminder sweep complete",
			zap.String("reminder", string(kind)),
			zap.Int("sent", sent),
			zap.Duration("took", time.Since(start)),
		)
	}
}

// cronLogger routes cron's internal messages through zap.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
