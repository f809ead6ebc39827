package appointment

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
	StatusNoShow    Status = "no_show"
)

// BlockingStatuses are the statuses that occupy time on a veterinarian's calendar.
var BlockingStatuses = []Status{StatusPending, StatusConfirmed}

// ParseStatus rejects anything outside the closed set before it reaches the lifecycle table.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted, StatusNoShow:
		return st, nil
	}
	return "", withMessage(ErrInvalidStatus, fmt.Sprintf("unknown status %q", s))
}

func (s Status) IsTerminal() bool {
	return s == StatusCancelled || s == StatusCompleted || s == StatusNoShow
}

func (s Status) IsBlocking() bool {
	return s == StatusPending || s == StatusConfirmed
}

type Type string

const (
	TypeCheckup      Type = "checkup"
	TypeVaccination  Type = "vaccination"
	TypeConsultation Type = "consultation"
	TypeSurgery      Type = "surgery"
	TypeDental       Type = "dental"
	TypeEmergency    Type = "emergency"
	TypeFollowUp     Type = "follow_up"
	TypeGrooming     Type = "grooming"
)

func (t Type) IsValid() bool {
	switch t {
	case TypeCheckup, TypeVaccination, TypeConsultation, TypeSurgery,
		TypeDental, TypeEmergency, TypeFollowUp, TypeGrooming:
		return true
	}
	return false
}

type Appointment struct {
	ID              uuid.UUID
	OwnerID         uuid.UUID
	PetID           uuid.UUID
	VeterinarianID  uuid.UUID
	StartTime       time.Time
	DurationMinutes int
	Type            Type
	Status          Status

	Reason           string
	Notes            string
	StatusReason     string
	RescheduleReason string

	CreatedAt     time.Time
	UpdatedAt     time.Time
	ConfirmedAt   *time.Time
	CompletedAt   *time.Time
	CancelledAt   *time.Time
	NoShowAt      *time.Time
	RescheduledAt *time.Time

	Reminder24hSentAt *time.Time
	Reminder1hSentAt  *time.Time
}

func (a *Appointment) EndTime() time.Time {
	return a.StartTime.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

func (a *Appointment) Interval() Interval {
	return Interval{Start: a.StartTime, End: a.EndTime()}
}

func (a *Appointment) Booking() Booking {
	return Booking{ID: a.ID, Interval: a.Interval()}
}

// Version identifies the stored state an update was planned against. A write only lands
// if the row still carries the same status, start time and updated_at.
type Version struct {
	Status    Status
	StartTime time.Time
	UpdatedAt time.Time
}

func (a *Appointment) Version() Version {
	return Version{Status: a.Status, StartTime: a.StartTime, UpdatedAt: a.UpdatedAt}
}

// Relation describes how a user stands towards an appointment.
type Relation int

const (
	RelationNone Relation = iota
	RelationOwner
	RelationVeterinarian
)

func (r Relation) String() string {
	switch r {
	case RelationOwner:
		return "owner"
	case RelationVeterinarian:
		return "veterinarian"
	}
	return "none"
}

// RelationTo resolves the caller's relation. A veterinarian booking for their own pet
// acts as the veterinarian, whose permissions are a superset of the owner's.
func (a *Appointment) RelationTo(userID uuid.UUID) Relation {
	switch userID {
	case uuid.Nil:
		return RelationNone
	case a.VeterinarianID:
		return RelationVeterinarian
	case a.OwnerID:
		return RelationOwner
	}
	return RelationNone
}

// Counterpart returns the user who should hear about a change made by rel.
func (a *Appointment) Counterpart(rel Relation) uuid.UUID {
	if rel == RelationVeterinarian {
		return a.OwnerID
	}
	return a.VeterinarianID
}

type Veterinarian struct {
	ID           uuid.UUID
	Name         string
	Approved     bool
	WorkingHours *WorkingHours
}

type ListFilter struct {
	OwnerID        *uuid.UUID
	VeterinarianID *uuid.UUID
	Status         *Status
	StartFrom      *time.Time
	Ascending      bool
	Limit          int
	Offset         int
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	ActorID       *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

type ReminderKind string

const (
	ReminderDayBefore  ReminderKind = "24h"
	ReminderHourBefore ReminderKind = "1h"
)

func (k ReminderKind) Lead() time.Duration {
	if k == ReminderHourBefore {
		return time.Hour
	}
	return 24 * time.Hour
}
