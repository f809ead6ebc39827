package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/vet-appointment-scheduling/internal/notify"
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListAppointments(ctx context.Context, f ListFilter) ([]Appointment, error)

	// BlockingBookings returns the veterinarian's pending/confirmed bookings overlapping [from, to).
	// It is a plain read and gives no guarantee against concurrent writers.
	BlockingBookings(ctx context.Context, vetID uuid.UUID, from, to time.Time) ([]Booking, error)

	// WithVeterinarianLock runs fn in a transaction that excludes every other
	// WithVeterinarianLock call for the same veterinarian until it commits.
	// The conflict check and the write it guards must both go through tx.
	WithVeterinarianLock(ctx context.Context, vetID uuid.UUID, fn func(ctx context.Context, tx BookingTx) error) error

	// Reminders
	FindDueReminders(ctx context.Context, kind ReminderKind, now time.Time) ([]Appointment, error)
	MarkReminderSent(ctx context.Context, id uuid.UUID, kind ReminderKind, at time.Time) (bool, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}

// BookingTx is the view of the store inside WithVeterinarianLock. Every change to an
// existing appointment goes through it.
type BookingTx interface {
	BlockingBookings(ctx context.Context, vetID uuid.UUID, from, to time.Time) ([]Booking, error)
	// GetAppointmentByID reads the row and holds it until the transaction ends.
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	InsertAppointment(ctx context.Context, a *Appointment) error
	// UpdateAppointment writes a only if the stored row still matches prev,
	// otherwise it returns ErrAppointmentModified.
	UpdateAppointment(ctx context.Context, a *Appointment, prev Version) error
}

// Directory answers the ownership and approval questions owned by the profile services.
type Directory interface {
	// PetOwner returns the owner's user id or ErrPetNotFound.
	PetOwner(ctx context.Context, petID uuid.UUID) (uuid.UUID, error)
	// Veterinarian returns the veterinarian profile or ErrVeterinarianNotFound.
	Veterinarian(ctx context.Context, userID uuid.UUID) (*Veterinarian, error)
}

// Notifier hands notifications off for best-effort delivery. It must not block on delivery.
type Notifier interface {
	Notify(ctx context.Context, n notify.Notification)
}
