package appointment

import (
	"time"

	"github.com/google/uuid"
)

// Interval is the half-open range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

func NewInterval(start time.Time, durationMinutes int) Interval {
	return Interval{Start: start, End: start.Add(time.Duration(durationMinutes) * time.Minute)}
}

func (i Interval) Valid() bool {
	return i.End.After(i.Start)
}

// Booking is an occupied interval on a veterinarian's calendar.
type Booking struct {
	ID uuid.UUID
	Interval
}

// Overlaps reports whether a and b share any instant. Touching intervals do not overlap.
func Overlaps(a, b Interval) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// FindConflicts returns the bookings that overlap candidate, ignoring the booking whose ID
// equals excludeID. existing must already be narrowed to one veterinarian's blocking
// appointments.
func FindConflicts(existing []Booking, candidate Interval, excludeID uuid.UUID) ([]Booking, error) {
	if !candidate.Valid() {
		return nil, ErrMalformedInterval
	}

	var conflicts []Booking
	for _, b := range existing {
		if !b.Valid() {
			return nil, ErrMalformedInterval
		}
		if excludeID != uuid.Nil && b.ID == excludeID {
			continue
		}
		if Overlaps(candidate, b.Interval) {
			conflicts = append(conflicts, b)
		}
	}
	return conflicts, nil
}

func HasConflict(existing []Booking, candidate Interval, excludeID uuid.UUID) (bool, error) {
	conflicts, err := FindConflicts(existing, candidate, excludeID)
	if err != nil {
		return false, err
	}
	return len(conflicts) > 0, nil
}
