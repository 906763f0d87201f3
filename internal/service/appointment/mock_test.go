package appointment

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/medvault-api/internal/model"
	"github.com/jwalitptl/medvault-api/internal/repository"
)

// memRepo mimics the SQL store: insertion order, a unique active slot and
// compare-and-set updates.
type memRepo struct {
	mu   sync.Mutex
	apts []*model.Appointment

	// beforeUpdate runs under no lock right before UpdateIfStatus compares.
	beforeUpdate func(id uuid.UUID)
	failList     error
}

func newMemRepo() *memRepo {
	return &memRepo{}
}

func (r *memRepo) slotHeldLocked(doctorID uuid.UUID, date, slot string, except uuid.UUID) bool {
	for _, a := range r.apts {
		if a.ID != except && a.DoctorID == doctorID && a.Date == date && a.Time == slot && a.Status.HoldsSlot() {
			return true
		}
	}
	return false
}

func (r *memRepo) Create(ctx context.Context, apt *model.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if apt.Status.HoldsSlot() && r.slotHeldLocked(apt.DoctorID, apt.Date, apt.Time, uuid.Nil) {
		return repository.ErrSlotTaken
	}
	r.apts = append(r.apts, apt.Clone())
	return nil
}

func (r *memRepo) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.apts {
		if a.ID == id {
			return a.Clone(), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memRepo) UpdateIfStatus(ctx context.Context, apt *model.Appointment, expected model.AppointmentStatus) error {
	if r.beforeUpdate != nil {
		r.beforeUpdate(apt.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for i, a := range r.apts {
		if a.ID != apt.ID {
			continue
		}
		if a.Status != expected {
			return repository.ErrStale
		}
		if apt.Status.HoldsSlot() && r.slotHeldLocked(apt.DoctorID, apt.Date, apt.Time, apt.ID) {
			return repository.ErrSlotTaken
		}
		r.apts[i] = apt.Clone()
		return nil
	}
	return repository.ErrNotFound
}

func (r *memRepo) FindActiveBySlot(ctx context.Context, doctorID uuid.UUID, date, slot string) (*model.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.apts {
		if a.DoctorID == doctorID && a.Date == date && a.Time == slot && a.Status.HoldsSlot() {
			return a.Clone(), nil
		}
	}
	return nil, nil
}

func (r *memRepo) ListByDoctorAndDate(ctx context.Context, doctorID uuid.UUID, date string) ([]*model.Appointment, error) {
	return r.List(ctx, &model.AppointmentFilters{DoctorID: doctorID, Date: date})
}

func (r *memRepo) List(ctx context.Context, f *model.AppointmentFilters) ([]*model.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failList != nil {
		return nil, r.failList
	}
	out := []*model.Appointment{}
	for _, a := range r.apts {
		if f != nil {
			if f.HospitalID != uuid.Nil && a.HospitalID != f.HospitalID {
				continue
			}
			if f.DoctorID != uuid.Nil && a.DoctorID != f.DoctorID {
				continue
			}
			if f.PatientID != uuid.Nil && a.PatientID != f.PatientID {
				continue
			}
			if f.Status != "" && a.Status != f.Status {
				continue
			}
			if f.Date != "" && a.Date != f.Date {
				continue
			}
		}
		out = append(out, a.Clone())
	}
	return out, nil
}

// setStatus edits a stored record directly, standing in for another writer.
func (r *memRepo) setStatus(id uuid.UUID, status model.AppointmentStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.apts {
		if a.ID == id {
			a.Status = status
		}
	}
}

type recordedEvent struct {
	Type    string
	Payload *model.AppointmentEvent
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []recordedEvent
	err    error
}

func (e *recordingEmitter) Emit(ctx context.Context, eventType string, payload interface{}) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.events = append(e.events, recordedEvent{Type: eventType, Payload: payload.(*model.AppointmentEvent)})
	return nil
}

func (e *recordingEmitter) types() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.events))
	for _, ev := range e.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixedRoster struct {
	slots []string
	err   error
}

func (f fixedRoster) Slots(ctx context.Context, doctorID uuid.UUID, date string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return append([]string(nil), f.slots...), nil
}

var errBoom = errors.New("boom")

// clock returns a settable time source.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}
