package appointment

import (
	"fmt"
	"iter"
	"slices"
	"time"
)

const dateLayout = "2006-01-02"

// Date is a calendar day with no time or zone attached.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func ParseDate(s string) (Date, error) {
	if s == "" {
		return Date{}, withMessage(ErrInvalidDate, "date is required")
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return DateOf(t), nil
}

func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

func (d Date) Before(other Date) bool {
	if d.Year != other.Year {
		return d.Year < other.Year
	}
	if d.Month != other.Month {
		return d.Month < other.Month
	}
	return d.Day < other.Day
}

// At returns the instant at tod on this date in loc.
func (d Date) At(tod TimeOfDay, loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, tod.Hour, tod.Minute, 0, 0, loc)
}

type TimeOfDay struct {
	Hour   int
	Minute int
}

func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return TimeOfDay{}, withMessage(ErrInvalidTimeOfDay, fmt.Sprintf("invalid time of day %q", s))
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

func (t TimeOfDay) minutes() int {
	return t.Hour*60 + t.Minute
}

// WorkingHours is the daily window [Start, End) during which slots are offered.
type WorkingHours struct {
	Start    TimeOfDay
	End      TimeOfDay
	Location *time.Location
}

func DefaultWorkingHours() WorkingHours {
	return WorkingHours{
		Start:    TimeOfDay{Hour: 9},
		End:      TimeOfDay{Hour: 17},
		Location: time.UTC,
	}
}

func NewWorkingHours(start, end string, loc *time.Location) (WorkingHours, error) {
	s, err := ParseTimeOfDay(start)
	if err != nil {
		return WorkingHours{}, err
	}
	e, err := ParseTimeOfDay(end)
	if err != nil {
		return WorkingHours{}, err
	}
	if e.minutes() <= s.minutes() {
		return WorkingHours{}, withMessage(ErrInvalidTimeOfDay, fmt.Sprintf("work day end %s must be after start %s", end, start))
	}
	if loc == nil {
		loc = time.UTC
	}
	return WorkingHours{Start: s, End: e, Location: loc}, nil
}

func (h WorkingHours) location() *time.Location {
	if h.Location == nil {
		return time.UTC
	}
	return h.Location
}

// Window returns the working interval on date.
func (h WorkingHours) Window(date Date) Interval {
	loc := h.location()
	return Interval{Start: date.At(h.Start, loc), End: date.At(h.End, loc)}
}

// AvailableSlots yields every slot start on date within hours, stepping by granularity,
// that is strictly after now and whose [t, t+granularity) overlaps none of bookings.
// The sequence is lazy and can be ranged over more than once.
func AvailableSlots(date Date, hours WorkingHours, granularity time.Duration, bookings []Booking, now time.Time) iter.Seq[time.Time] {
	return func(yield func(time.Time) bool) {
		if granularity <= 0 {
			return
		}
		window := hours.Window(date)
		for t := window.Start; t.Before(window.End); t = t.Add(granularity) {
			if !t.After(now) {
				continue
			}
			slot := Interval{Start: t, End: t.Add(granularity)}
			if overlapsAny(slot, bookings) {
				continue
			}
			if !yield(t.UTC()) {
				return
			}
		}
	}
}

func CollectSlots(seq iter.Seq[time.Time]) []time.Time {
	slots := slices.Collect(seq)
	if slots == nil {
		return []time.Time{}
	}
	return slots
}

func overlapsAny(slot Interval, bookings []Booking) bool {
	for _, b := range bookings {
		if Overlaps(slot, b.Interval) {
			return true
		}
	}
	return false
}
