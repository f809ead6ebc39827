package appointment

import (
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAvailableSlotsSkipsBooking(t *testing.T) {
	date := Date{Year: 2025, Month: time.June, Day: 1}
	bookings := []Booking{booking(at(9, 30), 30)}

	slots := CollectSlots(AvailableSlots(date, DefaultWorkingHours(), 30*time.Minute, bookings, at(7, 0)))

	require.Len(t, slots, 15)
	assert.Equal(t, at(9, 0), slots[0])
	assert.Equal(t, at(10, 0), slots[1])
	assert.Equal(t, at(16, 30), slots[len(slots)-1])
	assert.NotContains(t, slots, at(9, 30))
	assert.True(t, slices.IsSortedFunc(slots, time.Time.Compare))
}

func TestAvailableSlotsWithinHoursAndFuture(t *testing.T) {
	date := Date{Year: 2025, Month: time.June, Day: 1}
	hours := DefaultWorkingHours()
	window := hours.Window(date)

	for _, now := range []time.Time{at(0, 0), at(9, 0), at(12, 10), at(16, 30), at(18, 0)} {
		for _, g := range []time.Duration{15 * time.Minute, 30 * time.Minute, 45 * time.Minute, time.Hour} {
			for t1 := range AvailableSlots(date, hours, g, []Booking{booking(at(13, 0), 90)}, now) {
				assert.False(t, t1.Before(window.Start), "slot %v before work start", t1)
				assert.True(t, t1.Before(window.End), "slot %v at or after work end", t1)
				assert.True(t, t1.After(now), "slot %v not after now %v", t1, now)
			}
		}
	}
}

func TestAvailableSlotsNowIsNotOffered(t *testing.T) {
	date := Date{Year: 2025, Month: time.June, Day: 1}

	slots := CollectSlots(AvailableSlots(date, DefaultWorkingHours(), 30*time.Minute, nil, at(12, 0)))

	require.NotEmpty(t, slots)
	assert.Equal(t, at(12, 30), slots[0])
	assert.Len(t, slots, 9)
}

func TestAvailableSlotsUsesBookingDuration(t *testing.T) {
	date := Date{Year: 2025, Month: time.June, Day: 1}
	// a 90 minute surgery blocks three half-hour slots, a 10 minute booking still blocks its slot
	bookings := []Booking{booking(at(10, 0), 90), booking(at(14, 40), 10)}

	slots := CollectSlots(AvailableSlots(date, DefaultWorkingHours(), 30*time.Minute, bookings, at(7, 0)))

	for _, blocked := range []time.Time{at(10, 0), at(10, 30), at(11, 0), at(14, 30)} {
		assert.NotContains(t, slots, blocked)
	}
	assert.Contains(t, slots, at(11, 30))
	assert.Contains(t, slots, at(15, 0))
	assert.Len(t, slots, 12)
}

func TestAvailableSlotsFullyBookedDay(t *testing.T) {
	date := Date{Year: 2025, Month: time.June, Day: 1}

	slots := CollectSlots(AvailableSlots(date, DefaultWorkingHours(), 30*time.Minute, []Booking{booking(at(9, 0), 480)}, at(7, 0)))

	assert.NotNil(t, slots)
	assert.Empty(t, slots)
}

func TestAvailableSlotsRestartable(t *testing.T) {
	date := Date{Year: 2025, Month: time.June, Day: 1}
	seq := AvailableSlots(date, DefaultWorkingHours(), time.Hour, nil, at(7, 0))

	first := slices.Collect(seq)
	second := slices.Collect(seq)
	assert.Equal(t, first, second)
	assert.Len(t, first, 8)

	// stopping early is honoured
	var taken []time.Time
	for s := range seq {
		taken = append(taken, s)
		if len(taken) == 2 {
			break
		}
	}
	assert.Equal(t, first[:2], taken)
}

func TestAvailableSlotsInClinicTimezone(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	hours, err := NewWorkingHours("08:00", "10:00", loc)
	require.NoError(t, err)
	date := Date{Year: 2025, Month: time.June, Day: 1}

	slots := CollectSlots(AvailableSlots(date, hours, time.Hour, nil, at(0, 0)))

	assert.Equal(t, []time.Time{at(6, 0), at(7, 0)}, slots)
	for _, s := range slots {
		assert.Equal(t, time.UTC, s.Location())
	}
}

func TestAvailableSlotsNonPositiveGranularity(t *testing.T) {
	date := Date{Year: 2025, Month: time.June, Day: 1}
	assert.Empty(t, CollectSlots(AvailableSlots(date, DefaultWorkingHours(), 0, nil, at(0, 0))))
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-06-01")
	require.NoError(t, err)
	assert.Equal(t, Date{Year: 2025, Month: time.June, Day: 1}, d)
	assert.Equal(t, "2025-06-01", d.String())

	for _, s := range []string{"", "2025-6-1", "01/06/2025", "2025-02-30", "tomorrow"} {
		_, err := ParseDate(s)
		assert.ErrorIs(t, err, ErrInvalidDate, s)
	}
}

func TestDateBefore(t *testing.T) {
	d := Date{Year: 2025, Month: time.June, Day: 1}
	assert.True(t, Date{Year: 2025, Month: time.May, Day: 31}.Before(d))
	assert.True(t, Date{Year: 2024, Month: time.December, Day: 31}.Before(d))
	assert.False(t, d.Before(d))
	assert.False(t, Date{Year: 2025, Month: time.June, Day: 2}.Before(d))
}

func TestNewWorkingHours(t *testing.T) {
	h, err := NewWorkingHours("08:30", "18:00", nil)
	require.NoError(t, err)
	assert.Equal(t, TimeOfDay{Hour: 8, Minute: 30}, h.Start)
	assert.Equal(t, "18:00", h.End.String())
	assert.Equal(t, time.UTC, h.Location)

	_, err = NewWorkingHours("17:00", "09:00", nil)
	assert.ErrorIs(t, err, ErrInvalidTimeOfDay)

	_, err = NewWorkingHours("9am", "17:00", nil)
	assert.ErrorIs(t, err, ErrInvalidTimeOfDay)
}
