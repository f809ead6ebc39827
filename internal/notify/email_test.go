package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

type fakeMailer struct {
	sent []*gomail.Message
	err  error
}

func (m *fakeMailer) DialAndSend(msgs ...*gomail.Message) error {
	m.sent = append(m.sent, msgs...)
	return m.err
}

type mapAddressBook map[uuid.UUID]string

func (b mapAddressBook) EmailAddress(_ context.Context, id uuid.UUID) (string, error) {
	return b[id], nil
}

func TestEmailSinkSendsToUserAddress(t *testing.T) {
	userID := uuid.New()
	mailer := &fakeMailer{}
	sink := newEmailSink(mailer, " clinic@example.com ", mapAddressBook{userID: "owner@example.com"})

	err := sink.Deliver(context.Background(), Notification{
		UserID:  userID,
		Title:   "Appointment confirmed",
		Message: "See you soon",
	})
	require.NoError(t, err)

	require.Len(t, mailer.sent, 1)
	msg := mailer.sent[0]
	assert.Equal(t, []string{"owner@example.com"}, msg.GetHeader("To"))
	assert.Equal(t, []string{"clinic@example.com"}, msg.GetHeader("From"))
	assert.Equal(t, []string{"Appointment confirmed"}, msg.GetHeader("Subject"))
}

func TestEmailSinkSkipsUsersWithoutAddress(t *testing.T) {
	mailer := &fakeMailer{}
	sink := newEmailSink(mailer, "clinic@example.com", mapAddressBook{})

	require.NoError(t, sink.Deliver(context.Background(), Notification{UserID: uuid.New()}))
	assert.Empty(t, mailer.sent)
}

func TestEmailSinkReportsSendErrors(t *testing.T) {
	userID := uuid.New()
	mailer := &fakeMailer{err: errors.New("connection refused")}
	sink := newEmailSink(mailer, "clinic@example.com", mapAddressBook{userID: "vet@example.com"})

	err := sink.Deliver(context.Background(), Notification{UserID: userID, Title: "x"})
	assert.ErrorContains(t, err, "connection refused")
}
