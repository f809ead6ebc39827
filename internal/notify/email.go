package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"gopkg.in/gomail.v2"

	"github.com/hackgods/vet-appointment-scheduling/internal/config"
)

// AddressBook resolves a user's email address. An empty address means the user has none on file.
type AddressBook interface {
	EmailAddress(ctx context.Context, userID uuid.UUID) (string, error)
}

// Mailer is satisfied by *gomail.Dialer.
type Mailer interface {
	DialAndSend(m ...*gomail.Message) error
}

type EmailSink struct {
	mailer Mailer
	from   string
	book   AddressBook
}

func NewEmailSink(cfg config.Email, book AddressBook) *EmailSink {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	return newEmailSink(d, cfg.From, book)
}

func newEmailSink(m Mailer, from string, book AddressBook) *EmailSink {
	return &EmailSink{mailer: m, from: strings.TrimSpace(from), book: book}
}

func (s *EmailSink) Deliver(ctx context.Context, n Notification) error {
	to, err := s.book.EmailAddress(ctx, n.UserID)
	if err != nil {
		return fmt.Errorf("resolve email for %s: %w", n.UserID, err)
	}
	if to == "" {
		return nil
	}

	msg := s.buildMessage(to, n)

	done := make(chan error, 1)
	go func() {
		done <- s.mailer.DialAndSend(msg)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send email to %s: %w", to, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *EmailSink) buildMessage(to string, n Notification) *gomail.Message {
	msg := gomail.NewMessage()
	msg.SetHeader("From", s.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", n.Title)
	msg.SetBody("text/plain", n.Message)
	return msg
}

// PgAddressBook reads addresses from the users table.
type PgAddressBook struct {
	pool *pgxpool.Pool
}

func NewPgAddressBook(pool *pgxpool.Pool) *PgAddressBook {
	return &PgAddressBook{pool: pool}
}

func (b *PgAddressBook) EmailAddress(ctx context.Context, userID uuid.UUID) (string, error) {
	var email *string
	err := b.pool.QueryRow(ctx, `SELECT email FROM users WHERE id = $1`, userID).Scan(&email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	if email == nil {
		return "", nil
	}
	return strings.TrimSpace(*email), nil
}
