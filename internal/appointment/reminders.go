package appointment

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SendReminders notifies both parties of every pending or confirmed appointment starting
// within kind's lead time that has not had this reminder yet. It is meant to be called
// periodically by the reminder worker and returns how many appointments were reminded.
func (s *Service) SendReminders(ctx context.Context, kind ReminderKind) (int, error) {
	now := s.clock.Now()
	due, err := s.repo.FindDueReminders(ctx, kind, now)
	if err != nil {
		return 0, fmt.Errorf("find due %s reminders: %w", kind, err)
	}

	sent := 0
	for i := range due {
		appt := &due[i]

		// another worker may have claimed it since the query
		marked, err := s.repo.MarkReminderSent(ctx, appt.ID, kind, now)
		if err != nil {
			s.log.Error("failed to mark reminder sent",
				zap.String("appointment_id", appt.ID.String()),
				zap.String("reminder", string(kind)),
				zap.Error(err),
			)
			continue
		}
		if !marked {
			continue
		}

		s.logEvent(ctx, appt.ID, uuid.Nil, EventReminderSent, map[string]any{
			"reminder":   string(kind),
			"start_time": appt.StartTime,
		})

		msg := fmt.Sprintf("Reminder: %s appointment on %s.", appt.Type, formatWhen(appt.StartTime))
		s.notify(ctx, appt, appt.OwnerID, NotificationReminder, "Upcoming appointment", msg)
		s.notify(ctx, appt, appt.VeterinarianID, NotificationReminder, "Upcoming appointment", msg)
		sent++
	}

	return sent, nil
}
