package appointment

import (
	"fmt"
	"time"
)

const (
	EventCreated      = "APPOINTMENT_CREATED"
	EventConfirmed    = "APPOINTMENT_CONFIRMED"
	EventCancelled    = "APPOINTMENT_CANCELLED"
	EventCompleted    = "APPOINTMENT_COMPLETED"
	EventNoShow       = "APPOINTMENT_NO_SHOW"
	EventRescheduled  = "APPOINTMENT_RESCHEDULED"
	EventReminderSent = "APPOINTMENT_REMINDER_SENT"
)

const (
	NotificationRequest     = "appointment_request"
	NotificationConfirmed   = "appointment_confirmed"
	NotificationCancelled   = "appointment_cancelled"
	NotificationCompleted   = "appointment_completed"
	NotificationNoShow      = "appointment_no_show"
	NotificationRescheduled = "appointment_rescheduled"
	NotificationReminder    = "appointment_reminder"
)

type transitionKey struct {
	from Status
	to   Status
	by   Relation
}

// transition is one row of the lifecycle table.
type transition struct {
	event        string
	notification string
	title        string
	stamp        func(a *Appointment, now time.Time, reason string)
}

var transitions = buildTransitions()

func buildTransitions() map[transitionKey]transition {
	confirm := transition{
		event:        EventConfirmed,
		notification: NotificationConfirmed,
		title:        "Appointment confirmed",
		stamp: func(a *Appointment, now time.Time, _ string) {
			a.ConfirmedAt = &now
		},
	}
	cancel := transition{
		event:        EventCancelled,
		notification: NotificationCancelled,
		title:        "Appointment cancelled",
		stamp: func(a *Appointment, now time.Time, reason string) {
			a.CancelledAt = &now
			a.StatusReason = reason
		},
	}
	complete := transition{
		event:        EventCompleted,
		notification: NotificationCompleted,
		title:        "Appointment completed",
		stamp: func(a *Appointment, now time.Time, _ string) {
			a.CompletedAt = &now
		},
	}
	noShow := transition{
		event:        EventNoShow,
		notification: NotificationNoShow,
		title:        "Missed appointment",
		stamp: func(a *Appointment, now time.Time, reason string) {
			a.NoShowAt = &now
			if reason != "" {
				a.StatusReason = reason
			}
		},
	}

	table := make(map[transitionKey]transition)
	for _, from := range BlockingStatuses {
		table[transitionKey{from, StatusConfirmed, RelationVeterinarian}] = confirm
		table[transitionKey{from, StatusCancelled, RelationOwner}] = cancel
		table[transitionKey{from, StatusCancelled, RelationVeterinarian}] = cancel
		table[transitionKey{from, StatusCompleted, RelationVeterinarian}] = complete
		table[transitionKey{from, StatusNoShow, RelationVeterinarian}] = noShow
	}
	return table
}

// planTransition looks up the row for moving from -> to by a caller with relation by.
func planTransition(from, to Status, by Relation) (transition, error) {
	if by == RelationNone {
		return transition{}, ErrNotParticipant
	}
	if from.IsTerminal() {
		return transition{}, withMessage(ErrInvalidTransition, fmt.Sprintf("appointment is already %s", from))
	}
	if t, ok := transitions[transitionKey{from, to, by}]; ok {
		return t, nil
	}
	for _, other := range []Relation{RelationOwner, RelationVeterinarian} {
		if other == by {
			continue
		}
		if _, ok := transitions[transitionKey{from, to, other}]; ok {
			return transition{}, withMessage(ErrTransitionNotPermitted,
				fmt.Sprintf("only the %s may change status to %s", other, to))
		}
	}
	return transition{}, withMessage(ErrInvalidTransition, fmt.Sprintf("cannot change status from %s to %s", from, to))
}

// CanTransition reports whether a caller with relation by may move an appointment from -> to.
func CanTransition(from, to Status, by Relation) bool {
	_, err := planTransition(from, to, by)
	return err == nil
}

// planReschedule checks that a caller with relation by may move an appointment in status from.
func planReschedule(from Status, by Relation) error {
	if by == RelationNone {
		return ErrNotParticipant
	}
	if from.IsTerminal() {
		return withMessage(ErrInvalidTransition, fmt.Sprintf("cannot reschedule a %s appointment", from))
	}
	return nil
}

// applyReschedule moves a to start and sends it back for confirmation. ConfirmedAt is history
// and is left as is.
func applyReschedule(a *Appointment, start time.Time, reason string, now time.Time) {
	a.StartTime = start
	a.Status = StatusPending
	a.RescheduledAt = &now
	a.RescheduleReason = reason
	a.UpdatedAt = now
}
