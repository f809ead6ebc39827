package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hackgods/vet-appointment-scheduling/internal/clock"
)

type recordingSink struct {
	mu  sync.Mutex
	got []Notification
	err error
}

func (s *recordingSink) Deliver(_ context.Context, n Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, n)
	return s.err
}

func (s *recordingSink) delivered() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Notification(nil), s.got...)
}

func TestDispatcherDeliversInBackground(t *testing.T) {
	sink := &recordingSink{}
	now := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	d := NewDispatcher(sink, zap.NewNop(), clock.NewManual(now), time.Second)

	userID := uuid.New()
	d.Notify(context.Background(), Notification{UserID: userID, Type: "appointment_confirmed", Title: "t", Message: "m"})
	require.NoError(t, d.Close(context.Background()))

	got := sink.delivered()
	require.Len(t, got, 1)
	assert.Equal(t, userID, got[0].UserID)
	assert.NotEqual(t, uuid.Nil, got[0].ID)
	assert.Equal(t, now, got[0].CreatedAt)
}

func TestDispatcherSwallowsFailures(t *testing.T) {
	sink := &recordingSink{err: errors.New("smtp down")}
	d := NewDispatcher(sink, zap.NewNop(), clock.System(), time.Second)

	assert.NotPanics(t, func() {
		d.Notify(context.Background(), Notification{UserID: uuid.New()})
	})
	require.NoError(t, d.Close(context.Background()))
	assert.Len(t, sink.delivered(), 1)
}

func TestDispatcherOutlivesCancelledRequest(t *testing.T) {
	var gotErr error
	done := make(chan struct{})
	sink := SinkFunc(func(ctx context.Context, _ Notification) error {
		gotErr = ctx.Err()
		close(done)
		return nil
	})
	d := NewDispatcher(sink, zap.NewNop(), clock.System(), time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Notify(ctx, Notification{UserID: uuid.New()})

	<-done
	require.NoError(t, d.Close(context.Background()))
	assert.NoError(t, gotErr)
}

func TestDispatcherCloseHonoursDeadline(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	sink := SinkFunc(func(context.Context, Notification) error {
		<-release
		return nil
	})
	d := NewDispatcher(sink, zap.NewNop(), clock.System(), time.Minute)
	d.Notify(context.Background(), Notification{UserID: uuid.New()})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Close(ctx), context.DeadlineExceeded)
}

func TestFanoutDeliversToEverySink(t *testing.T) {
	ok := &recordingSink{}
	failing := &recordingSink{err: errors.New("boom")}
	after := &recordingSink{}

	err := Fanout{ok, failing, after}.Deliver(context.Background(), Notification{UserID: uuid.New()})

	assert.EqualError(t, err, "boom")
	assert.Len(t, ok.delivered(), 1)
	assert.Len(t, after.delivered(), 1)
}

func TestFanoutNoErrors(t *testing.T) {
	assert.NoError(t, Fanout{&recordingSink{}}.Deliver(context.Background(), Notification{}))
	assert.NoError(t, Fanout{}.Deliver(context.Background(), Notification{}))
}
