package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const appointmentColumns = `
	id, owner_id, pet_id, veterinarian_id, start_time, duration_minutes, type, status,
	reason, notes, status_reason, reschedule_reason,
	created_at, updated_at, confirmed_at, completed_at, cancelled_at, no_show_at, rescheduled_at,
	reminder_24h_sent_at, reminder_1h_sent_at`

// querier is the subset shared by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.OwnerID,
		&a.PetID,
		&a.VeterinarianID,
		&a.StartTime,
		&a.DurationMinutes,
		&a.Type,
		&a.Status,
		&a.Reason,
		&a.Notes,
		&a.StatusReason,
		&a.RescheduleReason,
		&a.CreatedAt,
		&a.UpdatedAt,
		&a.ConfirmedAt,
		&a.CompletedAt,
		&a.CancelledAt,
		&a.NoShowAt,
		&a.RescheduledAt,
		&a.Reminder24hSentAt,
		&a.Reminder1hSentAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.StartTime = a.StartTime.UTC()
	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func getAppointment(ctx context.Context, q querier, id uuid.UUID, forUpdate bool) (*Appointment, error) {
	sql := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	return scanAppointment(q.QueryRow(ctx, sql, id))
}

func blockingBookings(ctx context.Context, q querier, vetID uuid.UUID, from, to time.Time) ([]Booking, error) {
	rows, err := q.Query(ctx, `
		SELECT id, start_time, duration_minutes
		FROM appointments
		WHERE veterinarian_id = $1
		  AND status IN ('pending', 'confirmed')
		  AND start_time < $3
		  AND start_time + make_interval(mins => duration_minutes) > $2
		ORDER BY start_time
	`, vetID, from, to)
	if err != nil {
		return nil, fmt.Errorf("query blocking bookings: %w", err)
	}
	defer rows.Close()

	var result []Booking
	for rows.Next() {
		var (
			id       uuid.UUID
			start    time.Time
			duration int
		)
		if err := rows.Scan(&id, &start, &duration); err != nil {
			return nil, err
		}
		result = append(result, Booking{ID: id, Interval: NewInterval(start.UTC(), duration)})
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func insertAppointment(ctx context.Context, q querier, a *Appointment) error {
	_, err := q.Exec(ctx, `
		INSERT INTO appointments (
			id, owner_id, pet_id, veterinarian_id, start_time, duration_minutes, type, status,
			reason, notes, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, a.ID, a.OwnerID, a.PetID, a.VeterinarianID, a.StartTime, a.DurationMinutes, a.Type, a.Status,
		a.Reason, a.Notes, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

// updateAppointment writes a over the row read as prev. Status, start time and updated_at
// must all be unchanged, so a write planned from a stale read cannot undo a reschedule.
func updateAppointment(ctx context.Context, q querier, a *Appointment, prev Version) error {
	tag, err := q.Exec(ctx, `
		UPDATE appointments
		SET start_time = $5,
		    status = $6,
		    status_reason = $7,
		    reschedule_reason = $8,
		    updated_at = $9,
		    confirmed_at = $10,
		    completed_at = $11,
		    cancelled_at = $12,
		    no_show_at = $13,
		    rescheduled_at = $14
		WHERE id = $1
		  AND status = $2
		  AND start_time = $3
		  AND updated_at = $4
	`, a.ID, prev.Status, prev.StartTime, prev.UpdatedAt,
		a.StartTime, a.Status, a.StatusReason, a.RescheduleReason, a.UpdatedAt,
		a.ConfirmedAt, a.CompletedAt, a.CancelledAt, a.NoShowAt, a.RescheduledAt)
	if err != nil {
		return fmt.Errorf("update appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentModified
	}
	return nil
}

// Interface methods

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return getAppointment(ctx, r.pool, id, false)
}

func (r *PgRepository) ListAppointments(ctx context.Context, f ListFilter) ([]Appointment, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if f.OwnerID != nil {
		add("owner_id = $%d", *f.OwnerID)
	}
	if f.VeterinarianID != nil {
		add("veterinarian_id = $%d", *f.VeterinarianID)
	}
	if f.Status != nil {
		add("status = $%d", *f.Status)
	}
	if f.StartFrom != nil {
		add("start_time >= $%d", *f.StartFrom)
	}

	sql := `SELECT ` + appointmentColumns + ` FROM appointments`
	if len(where) > 0 {
		sql += ` WHERE ` + strings.Join(where, " AND ")
	}
	if f.Ascending {
		sql += ` ORDER BY start_time ASC, id`
	} else {
		sql += ` ORDER BY start_time DESC, id`
	}
	args = append(args, f.Limit, f.Offset)
	sql += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return collectAppointments(rows)
}

func (r *PgRepository) BlockingBookings(ctx context.Context, vetID uuid.UUID, from, to time.Time) ([]Booking, error) {
	return blockingBookings(ctx, r.pool, vetID, from, to)
}

func (r *PgRepository) WithVeterinarianLock(ctx context.Context, vetID uuid.UUID, fn func(ctx context.Context, tx BookingTx) error) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		// released on commit or rollback
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, vetID.String()); err != nil {
			return fmt.Errorf("acquire veterinarian lock: %w", err)
		}
		return fn(ctx, &pgBookingTx{tx: tx})
	})
}

func reminderColumn(kind ReminderKind) string {
	if kind == ReminderHourBefore {
		return "reminder_1h_sent_at"
	}
	return "reminder_24h_sent_at"
}

func (r *PgRepository) FindDueReminders(ctx context.Context, kind ReminderKind, now time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status IN ('pending', 'confirmed')
		  AND start_time > $1
		  AND start_time <= $2
		  AND `+reminderColumn(kind)+` IS NULL
		ORDER BY start_time
	`, now, now.Add(kind.Lead()))
	if err != nil {
		return nil, fmt.Errorf("find due reminders: %w", err)
	}
	return collectAppointments(rows)
}

func (r *PgRepository) MarkReminderSent(ctx context.Context, id uuid.UUID, kind ReminderKind, at time.Time) (bool, error) {
	col := reminderColumn(kind)
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET `+col+` = $2
		WHERE id = $1
		  AND `+col+` IS NULL
	`, id, at)
	if err != nil {
		return false, fmt.Errorf("mark reminder sent: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, actor_id, payload, created_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, now()))
	`, ev.EventType, ev.AppointmentID, ev.ActorID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

type pgBookingTx struct {
	tx pgx.Tx
}

func (t *pgBookingTx) BlockingBookings(ctx context.Context, vetID uuid.UUID, from, to time.Time) ([]Booking, error) {
	return blockingBookings(ctx, t.tx, vetID, from, to)
}

func (t *pgBookingTx) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return getAppointment(ctx, t.tx, id, true)
}

func (t *pgBookingTx) InsertAppointment(ctx context.Context, a *Appointment) error {
	return insertAppointment(ctx, t.tx, a)
}

func (t *pgBookingTx) UpdateAppointment(ctx context.Context, a *Appointment, prev Version) error {
	return updateAppointment(ctx, t.tx, a, prev)
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
