package appointment

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func booking(start time.Time, minutes int) Booking {
	return Booking{ID: uuid.New(), Interval: NewInterval(start, minutes)}
}

func TestOverlapsSymmetric(t *testing.T) {
	intervals := []Interval{
		NewInterval(at(9, 0), 30),
		NewInterval(at(9, 15), 30),
		NewInterval(at(9, 30), 30),
		NewInterval(at(8, 0), 240),
		NewInterval(at(9, 29), 1),
		NewInterval(at(10, 0), 15),
		{Start: at(9, 0), End: at(9, 0).Add(time.Second)},
	}

	for _, a := range intervals {
		for _, b := range intervals {
			ab, err := HasConflict([]Booking{{ID: uuid.New(), Interval: a}}, b, uuid.Nil)
			require.NoError(t, err)
			ba, err := HasConflict([]Booking{{ID: uuid.New(), Interval: b}}, a, uuid.Nil)
			require.NoError(t, err)
			assert.Equal(t, ab, ba, "a=%v b=%v", a, b)
			assert.Equal(t, Overlaps(a, b), Overlaps(b, a))
		}
	}
}

func TestHalfOpenBoundary(t *testing.T) {
	existing := []Booking{booking(at(10, 0), 30)}

	tests := []struct {
		name      string
		candidate Interval
		want      bool
	}{
		{"starts when booking ends", NewInterval(at(10, 30), 30), false},
		{"ends when booking starts", Interval{Start: at(9, 30), End: at(10, 0)}, false},
		{"ends exactly at start from one second before", Interval{Start: at(10, 0).Add(-time.Second), End: at(10, 0)}, false},
		{"same interval", NewInterval(at(10, 0), 30), true},
		{"starts inside", NewInterval(at(10, 15), 30), true},
		{"ends inside", NewInterval(at(9, 45), 30), true},
		{"contains booking", NewInterval(at(9, 0), 120), true},
		{"inside booking", NewInterval(at(10, 10), 5), true},
		{"one second of overlap", Interval{Start: at(10, 29).Add(59 * time.Second), End: at(11, 0)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := HasConflict(existing, tt.candidate, uuid.Nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHasConflictExcludesSelf(t *testing.T) {
	self := booking(at(10, 0), 30)
	other := booking(at(11, 0), 30)
	existing := []Booking{self, other}

	got, err := HasConflict(existing, self.Interval, self.ID)
	require.NoError(t, err)
	assert.False(t, got, "moving onto its own slot must not conflict")

	got, err = HasConflict(existing, NewInterval(at(10, 15), 30), self.ID)
	require.NoError(t, err)
	assert.False(t, got, "overlap with its own prior slot is ignored")

	got, err = HasConflict(existing, NewInterval(at(10, 45), 30), self.ID)
	require.NoError(t, err)
	assert.True(t, got, "still conflicts with other bookings")
}

func TestFindConflictsReturnsEveryOverlap(t *testing.T) {
	a := booking(at(9, 0), 60)
	b := booking(at(9, 30), 30)
	c := booking(at(11, 0), 30)

	got, err := FindConflicts([]Booking{a, b, c}, NewInterval(at(9, 45), 30), uuid.Nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []Booking{a, b}, got)

	got, err = FindConflicts(nil, NewInterval(at(9, 45), 30), uuid.Nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMalformedIntervals(t *testing.T) {
	_, err := HasConflict(nil, Interval{Start: at(10, 0), End: at(10, 0)}, uuid.Nil)
	assert.ErrorIs(t, err, ErrMalformedInterval)

	_, err = HasConflict(nil, Interval{Start: at(10, 0), End: at(9, 0)}, uuid.Nil)
	assert.ErrorIs(t, err, ErrMalformedInterval)

	bad := Booking{ID: uuid.New(), Interval: Interval{Start: at(11, 0), End: at(10, 0)}}
	_, err = HasConflict([]Booking{bad}, NewInterval(at(10, 0), 30), uuid.Nil)
	assert.ErrorIs(t, err, ErrMalformedInterval)
	assert.Equal(t, KindValidation, KindOf(err))
}
