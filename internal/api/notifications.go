package api

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/hackgods/vet-appointment-scheduling/internal/notify"
)

func listNotificationsHandler(inbox NotificationInbox, log *zap.Logger) http.HandlerFunc {
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
		if limit <= 0 {
			limit = 20 // default
		}
		if limit > 100 {
			limit = 100 // max
		}

		items, err := inbox.List(r.Context(), caller(r).UserID, q.Get("unread") == "true", limit, offset)
		if err != nil {
			writeServiceError(w, r, log, err)
			return
		}
		if items == nil {
			items = []notify.Notification{}
		}

		writeJSON(w, http.StatusOK, ListNotificationsResponse{Notifications: items, Limit: limit, Offset: offset})
	}
}

func markNotificationReadHandler(inbox NotificationInbox, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}

		n, err := inbox.MarkRead(r.Context(), caller(r).UserID, id)
		if err != nil {
			if errors.Is(err, notify.ErrNotificationNotFound) {
				writeError(w, http.StatusNotFound, "notification_not_found", err.Error())
				return
			}
			writeServiceError(w, r, log, err)
			return
		}

		writeJSON(w, http.StatusOK, n)
	}
}
