package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeAcknowledger struct {
	acked   bool
	nacked  bool
	requeue bool
}

func (a *fakeAcknowledger) Ack(uint64, bool) error {
	a.acked = true
	return nil
}

func (a *fakeAcknowledger) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacked = true
	a.requeue = requeue
	return nil
}

func (a *fakeAcknowledger) Reject(_ uint64, requeue bool) error {
	a.nacked = true
	a.requeue = requeue
	return nil
}

func delivery(t *testing.T, ack amqp.Acknowledger, n Notification) amqp.Delivery {
	t.Helper()
	body, err := json.Marshal(n)
	require.NoError(t, err)
	return amqp.Delivery{Acknowledger: ack, Body: body, DeliveryTag: 1}
}

func TestDeadLetterQueueName(t *testing.T) {
	assert.Equal(t, "appointment_notifications.dlq", DeadLetterQueue("appointment_notifications"))
}

func TestConsumerAcksDelivered(t *testing.T) {
	sink := &recordingSink{}
	c := &Consumer{sink: sink, log: zap.NewNop(), timeout: time.Second}
	ack := &fakeAcknowledger{}

	n := Notification{ID: uuid.New(), UserID: uuid.New(), Type: "appointment_request", Title: "t", Message: "m",
		Data: map[string]any{"appointmentId": "abc"}}
	c.handle(context.Background(), delivery(t, ack, n))

	assert.True(t, ack.acked)
	assert.False(t, ack.nacked)
	got := sink.delivered()
	require.Len(t, got, 1)
	assert.Equal(t, n.ID, got[0].ID)
	assert.Equal(t, "abc", got[0].Data["appointmentId"])
}

func TestConsumerDeadLettersFailedDelivery(t *testing.T) {
	c := &Consumer{sink: &recordingSink{err: errors.New("db down")}, log: zap.NewNop(), timeout: time.Second}
	ack := &fakeAcknowledger{}

	c.handle(context.Background(), delivery(t, ack, Notification{ID: uuid.New()}))

	assert.False(t, ack.acked)
	assert.True(t, ack.nacked)
	assert.False(t, ack.requeue)
}

func TestConsumerDeadLettersGarbage(t *testing.T) {
	sink := &recordingSink{}
	c := &Consumer{sink: sink, log: zap.NewNop()}
	ack := &fakeAcknowledger{}

	c.handle(context.Background(), amqp.Delivery{Acknowledger: ack, Body: []byte("{not json")})

	assert.True(t, ack.nacked)
	assert.False(t, ack.requeue)
	assert.Empty(t, sink.delivered())
}

// fakeConfirmation resolves when the broker answer is sent on result.
type fakeConfirmation struct {
	result chan bool
}

func (c *fakeConfirmation) WaitContext(ctx context.Context) (bool, error) {
	select {
	case acked := <-c.result:
		return acked, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// fakeChannel hands out confirms in publish order.
type fakeChannel struct {
	published []amqp.Publishing
	confirms  []*fakeConfirmation
}

func (c *fakeChannel) publish(_ context.Context, _ string, msg amqp.Publishing) (confirmation, error) {
	conf := c.confirms[len(c.published)]
	c.published = append(c.published, msg)
	return conf, nil
}

func (c *fakeChannel) Close() error { return nil }

func TestPublisherWaitsForOwnConfirm(t *testing.T) {
	first := &fakeConfirmation{result: make(chan bool, 1)}
	second := &fakeConfirmation{result: make(chan bool, 1)}
	ch := &fakeChannel{confirms: []*fakeConfirmation{first, second}}
	p := &QueuePublisher{ch: ch, queue: "appointment_notifications"}

	// the broker has not answered the first message before the deadline
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := p.Deliver(ctx, Notification{ID: uuid.New(), Type: "appointment_confirmed"})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// a late ack for the first message must not answer the second
	first.result <- true
	second.result <- false

	err = p.Deliver(context.Background(), Notification{ID: uuid.New(), Type: "appointment_cancelled"})
	assert.ErrorContains(t, err, "not confirmed")

	require.Len(t, ch.published, 2)
	assert.Equal(t, "appointment_cancelled", ch.published[1].Type)
	assert.Equal(t, amqp.Persistent, ch.published[1].DeliveryMode)
}

func TestPublisherAcked(t *testing.T) {
	conf := &fakeConfirmation{result: make(chan bool, 1)}
	conf.result <- true
	p := &QueuePublisher{ch: &fakeChannel{confirms: []*fakeConfirmation{conf}}, queue: "q"}

	assert.NoError(t, p.Deliver(context.Background(), Notification{ID: uuid.New()}))
}
