package appointment

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/vet-appointment-scheduling/internal/notify"
)

// memRepo is an in-memory Repository. WithVeterinarianLock serialises on one mutex,
// which is stricter than the per-veterinarian store lock.
type memRepo struct {
	bookMu sync.Mutex

	mu     sync.Mutex
	appts  map[uuid.UUID]Appointment
	events []EventLog
	err    error

	// beforeUpdate runs inside UpdateAppointment before the version check.
	beforeUpdate func(r *memRepo, id uuid.UUID)
}

func newMemRepo() *memRepo {
	return &memRepo{appts: make(map[uuid.UUID]Appointment)}
}

func (r *memRepo) put(a Appointment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.appts[a.ID] = a
}

func (r *memRepo) get(id uuid.UUID) Appointment {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.appts[id]
}

func (r *memRepo) eventTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, ev := range r.events {
		out = append(out, ev.EventType)
	}
	return out
}

func (r *memRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.appts)
}

func (r *memRepo) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	a, ok := r.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (r *memRepo) ListAppointments(_ context.Context, f ListFilter) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}

	var out []Appointment
	for _, a := range r.appts {
		if f.OwnerID != nil && a.OwnerID != *f.OwnerID {
			continue
		}
		if f.VeterinarianID != nil && a.VeterinarianID != *f.VeterinarianID {
			continue
		}
		if f.Status != nil && a.Status != *f.Status {
			continue
		}
		if f.StartFrom != nil && a.StartTime.Before(*f.StartFrom) {
			continue
		}
		out = append(out, a)
	}
	slices.SortFunc(out, func(a, b Appointment) int {
		if f.Ascending {
			return a.StartTime.Compare(b.StartTime)
		}
		return b.StartTime.Compare(a.StartTime)
	})

	if f.Offset >= len(out) {
		return nil, nil
	}
	out = out[f.Offset:]
	if len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *memRepo) BlockingBookings(_ context.Context, vetID uuid.UUID, from, to time.Time) ([]Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}

	window := Interval{Start: from, End: to}
	var out []Booking
	for _, a := range r.appts {
		if a.VeterinarianID != vetID || !a.Status.IsBlocking() {
			continue
		}
		if Overlaps(a.Interval(), window) {
			out = append(out, a.Booking())
		}
	}
	return out, nil
}

func (r *memRepo) WithVeterinarianLock(ctx context.Context, _ uuid.UUID, fn func(ctx context.Context, tx BookingTx) error) error {
	r.bookMu.Lock()
	defer r.bookMu.Unlock()
	return fn(ctx, r)
}

func (r *memRepo) InsertAppointment(_ context.Context, a *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.appts[a.ID] = *a
	return nil
}

func (r *memRepo) UpdateAppointment(_ context.Context, a *Appointment, prev Version) error {
	if r.beforeUpdate != nil {
		r.beforeUpdate(r, a.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	cur, ok := r.appts[a.ID]
	if !ok || cur.Status != prev.Status || !cur.StartTime.Equal(prev.StartTime) || !cur.UpdatedAt.Equal(prev.UpdatedAt) {
		return ErrAppointmentModified
	}
	r.appts[a.ID] = *a
	return nil
}

func (r *memRepo) FindDueReminders(_ context.Context, kind ReminderKind, now time.Time) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Appointment
	for _, a := range r.appts {
		sent := a.Reminder24hSentAt
		if kind == ReminderHourBefore {
			sent = a.Reminder1hSentAt
		}
		if sent != nil || !a.Status.IsBlocking() {
			continue
		}
		if a.StartTime.After(now) && !a.StartTime.After(now.Add(kind.Lead())) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memRepo) MarkReminderSent(_ context.Context, id uuid.UUID, kind ReminderKind, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appts[id]
	if !ok {
		return false, nil
	}
	field := &a.Reminder24hSentAt
	if kind == ReminderHourBefore {
		field = &a.Reminder1hSentAt
	}
	if *field != nil {
		return false, nil
	}
	*field = &at
	r.appts[id] = a
	return true, nil
}

func (r *memRepo) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

type fakeDirectory struct {
	pets map[uuid.UUID]uuid.UUID
	vets map[uuid.UUID]*Veterinarian
	err  error
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		pets: make(map[uuid.UUID]uuid.UUID),
		vets: make(map[uuid.UUID]*Veterinarian),
	}
}

func (d *fakeDirectory) PetOwner(_ context.Context, petID uuid.UUID) (uuid.UUID, error) {
	if d.err != nil {
		return uuid.Nil, d.err
	}
	owner, ok := d.pets[petID]
	if !ok {
		return uuid.Nil, ErrPetNotFound
	}
	return owner, nil
}

func (d *fakeDirectory) Veterinarian(_ context.Context, id uuid.UUID) (*Veterinarian, error) {
	if d.err != nil {
		return nil, d.err
	}
	v, ok := d.vets[id]
	if !ok {
		return nil, ErrVeterinarianNotFound
	}
	return v, nil
}

// fakeLocker records keys and runs fn unless err is set. beforeLock runs once, on the
// next WithLock call, before the lock is granted.
type fakeLocker struct {
	mu         sync.Mutex
	keys       []string
	err        error
	beforeLock func()
}

func (l *fakeLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	l.keys = append(l.keys, key)
	err := l.err
	hook := l.beforeLock
	l.beforeLock = nil
	l.mu.Unlock()
	if hook != nil {
		hook()
	}
	if err != nil {
		return err
	}
	return fn(ctx)
}

type recordingNotifier struct {
	mu  sync.Mutex
	got []notify.Notification
}

func (n *recordingNotifier) Notify(_ context.Context, msg notify.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.got = append(n.got, msg)
}

func (n *recordingNotifier) sent() []notify.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.Notification(nil), n.got...)
}
