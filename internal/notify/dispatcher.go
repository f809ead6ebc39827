package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/vet-appointment-scheduling/internal/clock"
)

// Dispatcher delivers notifications in the background. Notify never blocks the caller
// and a delivery failure is only logged.
type Dispatcher struct {
	sink    Sink
	log     *zap.Logger
	clock   clock.Clock
	timeout time.Duration

	wg sync.WaitGroup
}

func NewDispatcher(sink Sink, log *zap.Logger, clk clock.Clock, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{sink: sink, log: log, clock: clk, timeout: timeout}
}

func (d *Dispatcher) Notify(ctx context.Context, n Notification) {
	n = prepare(n, d.clock.Now())

	// the request that triggered this may finish before delivery does
	ctx = context.WithoutCancel(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()

		if err := d.sink.Deliver(ctx, n); err != nil {
			d.log.Warn("notification delivery failed",
				zap.String("notification_id", n.ID.String()),
				zap.String("user_id", n.UserID.String()),
				zap.String("type", n.Type),
				zap.Error(err),
			)
			return
		}
		d.log.Debug("notification delivered",
			zap.String("notification_id", n.ID.String()),
			zap.String("type", n.Type),
		)
	}()
}

// Close waits for in-flight deliveries, or until ctx is done.
func (d *Dispatcher) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
