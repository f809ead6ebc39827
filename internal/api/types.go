package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/vet-appointment-scheduling/internal/appointment"
	"github.com/hackgods/vet-appointment-scheduling/internal/notify"
)

type CreateAppointmentRequest struct {
	PetID          string `json:"petId" validate:"required,uuid"`
	VeterinarianID string `json:"veterinarianId" validate:"required,uuid"`
	DateTime       string `json:"dateTime" validate:"required"`
	Type           string `json:"type" validate:"required"`
	Reason         string `json:"reason" validate:"required,max=500"`
	Notes          string `json:"notes" validate:"max=2000"`
	Duration       int    `json:"duration" validate:"omitempty,min=1,max=480"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
	Reason string `json:"reason" validate:"max=500"`
}

type RescheduleRequest struct {
	NewDateTime string `json:"newDateTime" validate:"required"`
	Reason      string `json:"reason" validate:"max=500"`
}

type AppointmentResponse struct {
	ID               uuid.UUID  `json:"id"`
	OwnerID          uuid.UUID  `json:"ownerId"`
	PetID            uuid.UUID  `json:"petId"`
	VeterinarianID   uuid.UUID  `json:"veterinarianId"`
	DateTime         time.Time  `json:"dateTime"`
	EndTime          time.Time  `json:"endTime"`
	Duration         int        `json:"duration"`
	Type             string     `json:"type"`
	Status           string     `json:"status"`
	Reason           string     `json:"reason"`
	Notes            string     `json:"notes,omitempty"`
	StatusReason     string     `json:"statusReason,omitempty"`
	RescheduleReason string     `json:"rescheduleReason,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
	ConfirmedAt      *time.Time `json:"confirmedAt,omitempty"`
	CompletedAt      *time.Time `json:"completedAt,omitempty"`
	CancelledAt      *time.Time `json:"cancelledAt,omitempty"`
	NoShowAt         *time.Time `json:"noShowAt,omitempty"`
	RescheduledAt    *time.Time `json:"rescheduledAt,omitempty"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:               a.ID,
		OwnerID:          a.OwnerID,
		PetID:            a.PetID,
		VeterinarianID:   a.VeterinarianID,
		DateTime:         a.StartTime,
		EndTime:          a.EndTime(),
		Duration:         a.DurationMinutes,
		Type:             string(a.Type),
		Status:           string(a.Status),
		Reason:           a.Reason,
		Notes:            a.Notes,
		StatusReason:     a.StatusReason,
		RescheduleReason: a.RescheduleReason,
		CreatedAt:        a.CreatedAt,
		UpdatedAt:        a.UpdatedAt,
		ConfirmedAt:      a.ConfirmedAt,
		CompletedAt:      a.CompletedAt,
		CancelledAt:      a.CancelledAt,
		NoShowAt:         a.NoShowAt,
		RescheduledAt:    a.RescheduledAt,
	}
}

type ListAppointmentsResponse struct {
	Appointments []AppointmentResponse `json:"appointments"`
	HasMore      bool                  `json:"hasMore"`
	Limit        int                   `json:"limit"`
	Offset       int                   `json:"offset"`
}

type AvailabilityResponse struct {
	VeterinarianID uuid.UUID   `json:"veterinarianId"`
	Date           string      `json:"date"`
	AvailableSlots []time.Time `json:"availableSlots"`
}

type ListNotificationsResponse struct {
	Notifications []notify.Notification `json:"notifications"`
	Limit         int                   `json:"limit"`
	Offset        int                   `json:"offset"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	Details   string `json:"details,omitempty"`
	Conflicts any    `json:"conflicts,omitempty"`
}
