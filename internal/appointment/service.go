package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/vet-appointment-scheduling/internal/auth"
	"github.com/hackgods/vet-appointment-scheduling/internal/clock"
	"github.com/hackgods/vet-appointment-scheduling/internal/config"
	"github.com/hackgods/vet-appointment-scheduling/internal/notify"
	redisclient "github.com/hackgods/vet-appointment-scheduling/internal/redis"
)

const (
	DefaultListLimit   = 20
	MaxListLimit       = 100
	MaxDurationMinutes = 8 * 60
)

type Options struct {
	WorkingHours           WorkingHours
	SlotGranularity        time.Duration
	DefaultDurationMinutes int
}

func DefaultOptions() Options {
	return Options{
		WorkingHours:           DefaultWorkingHours(),
		SlotGranularity:        30 * time.Minute,
		DefaultDurationMinutes: 30,
	}
}

func OptionsFromConfig(cfg config.Config) (Options, error) {
	loc, err := time.LoadLocation(cfg.Schedule.Timezone)
	if err != nil {
		return Options{}, fmt.Errorf("load clinic timezone %q: %w", cfg.Schedule.Timezone, err)
	}
	hours, err := NewWorkingHours(cfg.Schedule.WorkDayStart, cfg.Schedule.WorkDayEnd, loc)
	if err != nil {
		return Options{}, err
	}
	return Options{
		WorkingHours:           hours,
		SlotGranularity:        cfg.Schedule.SlotGranularity,
		DefaultDurationMinutes: cfg.Schedule.DefaultDurationMinutes,
	}, nil
}

type Service struct {
	repo      Repository
	directory Directory
	locker    redisclient.Locker
	notifier  Notifier
	clock     clock.Clock
	log       *zap.Logger
	opts      Options
}

func NewService(repo Repository, directory Directory, locker redisclient.Locker, notifier Notifier, clk clock.Clock, log *zap.Logger, opts Options) *Service {
	return &Service{
		repo:      repo,
		directory: directory,
		locker:    locker,
		notifier:  notifier,
		clock:     clk,
		log:       log,
		opts:      opts,
	}
}

type CreateRequest struct {
	PetID           uuid.UUID
	VeterinarianID  uuid.UUID
	StartTime       time.Time
	Type            Type
	Reason          string
	Notes           string
	DurationMinutes int
}

// CreateAppointment books a pending appointment for the caller's pet.
// The conflict check and insert run under the veterinarian's lock so two overlapping
// bookings for the same veterinarian cannot both succeed.
func (s *Service) CreateAppointment(ctx context.Context, caller auth.Identity, req CreateRequest) (*Appointment, error) {
	if req.DurationMinutes == 0 {
		req.DurationMinutes = s.opts.DefaultDurationMinutes
	}
	if req.DurationMinutes < 0 || req.DurationMinutes > MaxDurationMinutes {
		return nil, withMessage(ErrInvalidDuration, fmt.Sprintf("duration must be between 1 and %d minutes", MaxDurationMinutes))
	}
	if !req.Type.IsValid() {
		return nil, withMessage(ErrInvalidType, fmt.Sprintf("unknown appointment type %q", req.Type))
	}

	now := s.clock.Now()
	if !req.StartTime.After(now) {
		return nil, ErrStartInPast
	}

	ownerID, err := s.directory.PetOwner(ctx, req.PetID)
	if err != nil {
		if errors.Is(err, ErrPetNotFound) {
			return nil, ErrPetNotFound
		}
		return nil, infraError("load pet", err)
	}
	if ownerID != caller.UserID {
		return nil, ErrPetNotOwned
	}

	vet, err := s.veterinarian(ctx, req.VeterinarianID)
	if err != nil {
		return nil, err
	}
	if !vet.Approved {
		return nil, ErrVeterinarianNotApproved
	}

	appt := &Appointment{
		ID:              uuid.New(),
		OwnerID:         caller.UserID,
		PetID:           req.PetID,
		VeterinarianID:  req.VeterinarianID,
		StartTime:       req.StartTime.UTC(),
		DurationMinutes: req.DurationMinutes,
		Type:            req.Type,
		Status:          StatusPending,
		Reason:          req.Reason,
		Notes:           req.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	candidate := appt.Interval()

	err = s.withVeterinarian(ctx, req.VeterinarianID, func(ctx context.Context, tx BookingTx) error {
		bookings, err := tx.BlockingBookings(ctx, req.VeterinarianID, candidate.Start, candidate.End)
		if err != nil {
			return fmt.Errorf("load bookings: %w", err)
		}
		if err := checkConflicts(bookings, candidate, uuid.Nil); err != nil {
			return err
		}
		return tx.InsertAppointment(ctx, appt)
	})
	if err != nil {
		return nil, err
	}

	s.logEvent(ctx, appt.ID, caller.UserID, EventCreated, map[string]any{
		"pet_id":           appt.PetID.String(),
		"veterinarian_id":  appt.VeterinarianID.String(),
		"start_time":       appt.StartTime,
		"duration_minutes": appt.DurationMinutes,
		"type":             appt.Type,
	})
	s.notify(ctx, appt, appt.VeterinarianID, NotificationRequest, "New appointment request",
		fmt.Sprintf("A %s appointment has been requested for %s.", appt.Type, formatWhen(appt.StartTime)))

	return appt, nil
}

type StatusChangeRequest struct {
	Status string
	Reason string
}

// ChangeStatus applies one row of the lifecycle table. The row is re-read under the
// veterinarian's lock so a concurrent reschedule is never overwritten with the old start time.
func (s *Service) ChangeStatus(ctx context.Context, caller auth.Identity, id uuid.UUID, req StatusChangeRequest) (*Appointment, error) {
	to, err := ParseStatus(req.Status)
	if err != nil {
		return nil, err
	}

	appt, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	// reject early without taking the lock
	if _, err := planTransition(appt.Status, to, appt.RelationTo(caller.UserID)); err != nil {
		return nil, err
	}

	var (
		updated Appointment
		from    Status
		rel     Relation
		t       transition
	)
	err = s.withVeterinarian(ctx, appt.VeterinarianID, func(ctx context.Context, tx BookingTx) error {
		current, err := tx.GetAppointmentByID(ctx, id)
		if err != nil {
			return err
		}
		rel = current.RelationTo(caller.UserID)
		t, err = planTransition(current.Status, to, rel)
		if err != nil {
			return err
		}

		from = current.Status
		now := s.clock.Now()
		updated = *current
		updated.Status = to
		updated.UpdatedAt = now
		t.stamp(&updated, now, req.Reason)

		return tx.UpdateAppointment(ctx, &updated, current.Version())
	})
	if err != nil {
		return nil, err
	}

	payload := map[string]any{"from": from, "to": to}
	if req.Reason != "" {
		payload["reason"] = req.Reason
	}
	s.logEvent(ctx, updated.ID, caller.UserID, t.event, payload)

	msg := fmt.Sprintf("Your appointment on %s is now %s.", formatWhen(updated.StartTime), to)
	if req.Reason != "" {
		msg += " Reason: " + req.Reason
	}
	s.notify(ctx, &updated, updated.Counterpart(rel), t.notification, t.title, msg)

	return &updated, nil
}

type RescheduleRequest struct {
	NewStartTime time.Time
	Reason       string
}

// Reschedule moves an appointment to a new start time and sends it back to pending.
func (s *Service) Reschedule(ctx context.Context, caller auth.Identity, id uuid.UUID, req RescheduleRequest) (*Appointment, error) {
	appt, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	rel := appt.RelationTo(caller.UserID)
	if err := planReschedule(appt.Status, rel); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if !req.NewStartTime.After(now) {
		return nil, ErrStartInPast
	}
	newStart := req.NewStartTime.UTC()
	previousStart := appt.StartTime

	var updated *Appointment
	err = s.withVeterinarian(ctx, appt.VeterinarianID, func(ctx context.Context, tx BookingTx) error {
		current, err := tx.GetAppointmentByID(ctx, id)
		if err != nil {
			return err
		}
		// status may have moved while we waited for the lock
		if err := planReschedule(current.Status, current.RelationTo(caller.UserID)); err != nil {
			return err
		}

		candidate := NewInterval(newStart, current.DurationMinutes)
		bookings, err := tx.BlockingBookings(ctx, current.VeterinarianID, candidate.Start, candidate.End)
		if err != nil {
			return fmt.Errorf("load bookings: %w", err)
		}
		if err := checkConflicts(bookings, candidate, current.ID); err != nil {
			return err
		}

		prev := current.Version()
		previousStart = current.StartTime
		applyReschedule(current, newStart, req.Reason, now)
		if err := tx.UpdateAppointment(ctx, current, prev); err != nil {
			return err
		}
		updated = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"previous_start_time": previousStart,
		"new_start_time":      updated.StartTime,
	}
	if req.Reason != "" {
		payload["reason"] = req.Reason
	}
	s.logEvent(ctx, updated.ID, caller.UserID, EventRescheduled, payload)

	msg := fmt.Sprintf("Your appointment has been moved from %s to %s and awaits confirmation.",
		formatWhen(previousStart), formatWhen(updated.StartTime))
	if req.Reason != "" {
		msg += " Reason: " + req.Reason
	}
	s.notify(ctx, updated, updated.Counterpart(rel), NotificationRescheduled, "Appointment rescheduled", msg)

	return updated, nil
}

// GetAppointment returns the appointment if the caller is its owner or veterinarian.
func (s *Service) GetAppointment(ctx context.Context, caller auth.Identity, id uuid.UUID) (*Appointment, error) {
	appt, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.RelationTo(caller.UserID) == RelationNone {
		return nil, ErrNotParticipant
	}
	return appt, nil
}

type ListRequest struct {
	Status   string
	Limit    int
	Offset   int
	Upcoming bool
}

type ListResult struct {
	Appointments []Appointment
	HasMore      bool
	Limit        int
	Offset       int
}

// ListAppointments pages through the caller's own appointments. Owners see what they booked,
// veterinarians see what was booked with them.
func (s *Service) ListAppointments(ctx context.Context, caller auth.Identity, req ListRequest) (*ListResult, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = DefaultListLimit // default
	}
	if limit > MaxListLimit {
		limit = MaxListLimit // max
	}
	offset := req.Offset
	if offset < 0 {
		offset = 0
	}

	f := ListFilter{Limit: limit + 1, Offset: offset}
	userID := caller.UserID
	switch caller.Role {
	case auth.RolePetOwner:
		f.OwnerID = &userID
	case auth.RoleVeterinarian:
		f.VeterinarianID = &userID
	default:
		return nil, ErrRoleNotPermitted
	}

	if req.Status != "" {
		st, err := ParseStatus(req.Status)
		if err != nil {
			return nil, err
		}
		f.Status = &st
	}
	if req.Upcoming {
		now := s.clock.Now()
		f.StartFrom = &now
		f.Ascending = true
	}

	appts, err := s.repo.ListAppointments(ctx, f)
	if err != nil {
		return nil, infraError("list appointments", err)
	}

	res := &ListResult{Appointments: appts, Limit: limit, Offset: offset}
	if len(appts) > limit {
		res.Appointments = appts[:limit]
		res.HasMore = true
	}
	if res.Appointments == nil {
		res.Appointments = []Appointment{}
	}
	return res, nil
}

// Availability lists the free slot starts for an approved veterinarian on date.
func (s *Service) Availability(ctx context.Context, vetID uuid.UUID, date Date) ([]time.Time, error) {
	hours := s.opts.WorkingHours
	now := s.clock.Now()
	if date.Before(DateOf(now.In(hours.location()))) {
		return nil, ErrDateInPast
	}

	vet, err := s.veterinarian(ctx, vetID)
	if err != nil {
		return nil, err
	}
	if !vet.Approved {
		return nil, withMessage(ErrVeterinarianNotFound, "veterinarian not found or not approved")
	}
	if vet.WorkingHours != nil {
		hours = *vet.WorkingHours
	}

	window := hours.Window(date)
	bookings, err := s.repo.BlockingBookings(ctx, vetID, window.Start, window.End)
	if err != nil {
		return nil, infraError("load bookings", err)
	}

	return CollectSlots(AvailableSlots(date, hours, s.opts.SlotGranularity, bookings, now)), nil
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrAppointmentNotFound
		}
		return nil, infraError("load appointment", err)
	}
	return appt, nil
}

func (s *Service) veterinarian(ctx context.Context, id uuid.UUID) (*Veterinarian, error) {
	vet, err := s.directory.Veterinarian(ctx, id)
	if err != nil {
		if errors.Is(err, ErrVeterinarianNotFound) {
			return nil, ErrVeterinarianNotFound
		}
		return nil, infraError("load veterinarian", err)
	}
	return vet, nil
}

// withVeterinarian serialises fn against every other booking for vetID: first across
// instances through Redis, then inside the store transaction.
func (s *Service) withVeterinarian(ctx context.Context, vetID uuid.UUID, fn func(ctx context.Context, tx BookingTx) error) error {
	err := s.locker.WithLock(ctx, redisclient.VeterinarianLockKey(vetID), func(lockCtx context.Context) error {
		return s.repo.WithVeterinarianLock(lockCtx, vetID, fn)
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		return ErrBookingInProgress
	}
	return wrapStore("booking transaction", err)
}

func checkConflicts(bookings []Booking, candidate Interval, excludeID uuid.UUID) error {
	conflicts, err := FindConflicts(bookings, candidate, excludeID)
	if err != nil {
		return err
	}
	if len(conflicts) == 0 {
		return nil
	}
	details := make([]map[string]any, 0, len(conflicts))
	for _, c := range conflicts {
		details = append(details, map[string]any{
			"appointmentId": c.ID,
			"startTime":     c.Start,
			"endTime":       c.End,
		})
	}
	return withDetails(ErrTimeConflict, details)
}

// notify is fire-and-forget; delivery errors never reach the caller.
func (s *Service) notify(ctx context.Context, appt *Appointment, userID uuid.UUID, typ, title, message string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, notify.Notification{
		UserID:  userID,
		Type:    typ,
		Title:   title,
		Message: message,
		Data: map[string]any{
			"appointmentId": appt.ID.String(),
			"status":        string(appt.Status),
			"startTime":     appt.StartTime.Format(time.RFC3339),
		},
	})
}

func (s *Service) logEvent(ctx context.Context, appointmentID, actorID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Warn("failed to marshal event payload", zap.String("event_type", eventType), zap.Error(err))
		data = nil
	}

	apptID := appointmentID
	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.clock.Now(),
	}
	if actorID != uuid.Nil {
		actor := actorID
		ev.ActorID = &actor
	}

	// the mutation has already committed, so the audit row outlives the request
	if err := s.repo.InsertEvent(context.WithoutCancel(ctx), ev); err != nil {
		s.log.Error("failed to insert event log",
			zap.String("event_type", eventType),
			zap.String("appointment_id", appointmentID.String()),
			zap.Error(err),
		)
	}
}

func formatWhen(t time.Time) string {
	return t.UTC().Format("Mon Jan 2 2006 15:04 MST")
}
