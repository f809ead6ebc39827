package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/vet-appointment-scheduling/internal/appointment"
)

func createAppointmentHandler(svc AppointmentService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		start, err := time.Parse(time.RFC3339, req.DateTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date_time", "dateTime must be an RFC 3339 timestamp")
			return
		}

		// validated as uuids above
		petID := uuid.MustParse(req.PetID)
		vetID := uuid.MustParse(req.VeterinarianID)

		appt, err := svc.CreateAppointment(r.Context(), caller(r), appointment.CreateRequest{
			PetID:           petID,
			VeterinarianID:  vetID,
			StartTime:       start,
			Type:            appointment.Type(req.Type),
			Reason:          req.Reason,
			Notes:           req.Notes,
			DurationMinutes: req.Duration,
		})
		if err != nil {
			writeServiceError(w, r, log, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func listAppointmentsHandler(svc AppointmentService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		limit, ok := queryInt(w, q.Get("limit"), "limit")
		if !ok {
			return
		}
		offset, ok := queryInt(w, q.Get("offset"), "offset")
		if !ok {
			return
		}
		upcoming := false
		if v := q.Get("upcoming"); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_query", "upcoming must be true or false")
				return
			}
			upcoming = b
		}

		res, err := svc.ListAppointments(r.Context(), caller(r), appointment.ListRequest{
			Status:   q.Get("status"),
			Limit:    limit,
			Offset:   offset,
			Upcoming: upcoming,
		})
		if err != nil {
			writeServiceError(w, r, log, err)
			return
		}

		resp := ListAppointmentsResponse{
			Appointments: make([]AppointmentResponse, 0, len(res.Appointments)),
			HasMore:      res.HasMore,
			Limit:        res.Limit,
			Offset:       res.Offset,
		}
		for i := range res.Appointments {
			resp.Appointments = append(resp.Appointments, toAppointmentResponse(&res.Appointments[i]))
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func getAppointmentHandler(svc AppointmentService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}

		appt, err := svc.GetAppointment(r.Context(), caller(r), id)
		if err != nil {
			writeServiceError(w, r, log, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func updateStatusHandler(svc AppointmentService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}

		var req UpdateStatusRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		appt, err := svc.ChangeStatus(r.Context(), caller(r), id, appointment.StatusChangeRequest{
			Status: req.Status,
			Reason: req.Reason,
		})
		if err != nil {
			writeServiceError(w, r, log, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func rescheduleHandler(svc AppointmentService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}

		var req RescheduleRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		start, err := time.Parse(time.RFC3339, req.NewDateTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date_time", "newDateTime must be an RFC 3339 timestamp")
			return
		}

		appt, err := svc.Reschedule(r.Context(), caller(r), id, appointment.RescheduleRequest{
			NewStartTime: start,
			Reason:       req.Reason,
		})
		if err != nil {
			writeServiceError(w, r, log, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func availabilityHandler(svc AppointmentService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vetID, ok := pathUUID(w, r, "veterinarianId")
		if !ok {
			return
		}

		date, err := appointment.ParseDate(r.URL.Query().Get("date"))
		if err != nil {
			writeServiceError(w, r, log, err)
			return
		}

		slots, err := svc.Availability(r.Context(), vetID, date)
		if err != nil {
			writeServiceError(w, r, log, err)
			return
		}

		writeJSON(w, http.StatusOK, AvailabilityResponse{
			VeterinarianID: vetID,
			Date:           date.String(),
			AvailableSlots: slots,
		})
	}
}

func pathUUID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+param, param+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(w http.ResponseWriter, raw, name string) (int, bool) {
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		writeError(w, http.StatusBadRequest, "invalid_query", name+" must be a non-negative integer")
		return 0, false
	}
	return n, true
}
