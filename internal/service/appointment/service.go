package appointment

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/medvault-api/internal/model"
	"github.com/jwalitptl/medvault-api/internal/repository"
	"github.com/jwalitptl/medvault-api/internal/service/event"
	"github.com/jwalitptl/medvault-api/internal/service/roster"
	"github.com/jwalitptl/medvault-api/pkg/errors"
	"github.com/jwalitptl/medvault-api/pkg/logger"
	"github.com/jwalitptl/medvault-api/pkg/metrics"
)

// Lifecycle actions, used in error messages and metric labels.
const (
	ActionCreate     = "create"
	ActionApprove    = "approve"
	ActionReject     = "reject"
	ActionComplete   = "complete"
	ActionReschedule = "reschedule"
)

// Service owns the appointment state machine and slot rules. It holds no
// state of its own; every invariant is re-checked against the repository.
type Service struct {
	repo    repository.AppointmentRepository
	roster  roster.Provider
	events  event.Emitter
	metrics *metrics.Metrics
	logger  *logger.Logger
	loc     *time.Location
	now     func() time.Time
}

type Option func(*Service)

// WithLocation sets the clinic time zone that decides "today".
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(
	repo repository.AppointmentRepository,
	rosterProvider roster.Provider,
	events event.Emitter,
	m *metrics.Metrics,
	log *logger.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		repo:    repo,
		roster:  rosterProvider,
		events:  events,
		metrics: m,
		logger:  log,
		loc:     time.UTC,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Location returns the clinic time zone.
func (s *Service) Location() *time.Location {
	return s.loc
}

func (s *Service) today() string {
	return model.FormatDate(s.now(), s.loc)
}

// Create books a PENDING appointment on a free, offered slot.
func (s *Service) Create(ctx context.Context, req *model.CreateAppointmentRequest) (apt *model.Appointment, err error) {
	defer func() { s.record(ActionCreate, err) }()

	if req == nil {
		return nil, errors.Validation("request is required")
	}
	if req.PatientID == uuid.Nil {
		return nil, errors.Validation("patientId is required")
	}
	if req.DoctorID == uuid.Nil {
		return nil, errors.Validation("doctorId is required")
	}
	if req.HospitalID == uuid.Nil {
		return nil, errors.Validation("hospitalId is required")
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, errors.Validation("reason is required")
	}
	if err := s.validateSlot(ctx, req.DoctorID, req.Date, req.Time); err != nil {
		return nil, err
	}

	holder, err := s.repo.FindActiveBySlot(ctx, req.DoctorID, req.Date, req.Time)
	if err != nil {
		return nil, errors.Internal(err)
	}
	if holder != nil {
		return nil, s.conflict(req.DoctorID, req.Date, req.Time)
	}

	now := s.now().UTC()
	apt = &model.Appointment{
		ID:          uuid.New(),
		PatientID:   req.PatientID,
		PatientName: strings.TrimSpace(req.PatientName),
		DoctorID:    req.DoctorID,
		DoctorName:  strings.TrimSpace(req.DoctorName),
		HospitalID:  req.HospitalID,
		Date:        req.Date,
		Time:        req.Time,
		Status:      model.AppointmentStatusPending,
		Reason:      reason,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, apt); err != nil {
		// The unique index caught a booking that raced past the pre-check.
		if stderrors.Is(err, repository.ErrSlotTaken) {
			return nil, s.conflict(req.DoctorID, req.Date, req.Time)
		}
		return nil, errors.Internal(fmt.Errorf("failed to create appointment: %w", err))
	}

	s.emit(ctx, model.EventAppointmentRequested, apt, nil)
	s.logger.Info("appointment requested",
		"appointment_id", apt.ID.String(),
		"doctor_id", apt.DoctorID.String(),
		"date", apt.Date,
		"time", apt.Time)
	return apt.Clone(), nil
}

// ListAvailableSlots returns the doctor's roster for date minus every time
// held by a PENDING or APPROVED appointment, earliest first.
func (s *Service) ListAvailableSlots(ctx context.Context, doctorID uuid.UUID, date string) ([]string, error) {
	if doctorID == uuid.Nil {
		return nil, errors.Validation("doctorId is required")
	}
	if _, err := model.ParseDate(date, s.loc); err != nil {
		return nil, errors.Validation("%v", err)
	}

	offered, err := s.offered(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}

	booked, err := s.repo.ListByDoctorAndDate(ctx, doctorID, date)
	if err != nil {
		return nil, errors.Internal(err)
	}
	held := make(map[string]struct{}, len(booked))
	for _, apt := range booked {
		if apt.Status.HoldsSlot() {
			held[apt.Time] = struct{}{}
		}
	}

	available := make([]string, 0, len(offered))
	for _, slot := range offered {
		if _, taken := held[slot]; !taken {
			available = append(available, slot)
		}
	}
	return available, nil
}

// Approve moves PENDING to APPROVED.
func (s *Service) Approve(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	return s.transition(ctx, id, ActionApprove, model.EventAppointmentApproved,
		func(current *model.Appointment) error {
			if current.Status != model.AppointmentStatusPending {
				return errors.InvalidTransition(ActionApprove, current.Status)
			}
			return nil
		},
		func(next *model.Appointment) {
			next.Status = model.AppointmentStatusApproved
			next.RejectionReason = nil
		})
}

// Reject moves PENDING to REJECTED and releases the slot. A blank reason is
// refused before the appointment is loaded.
func (s *Service) Reject(ctx context.Context, id uuid.UUID, reason string) (*model.Appointment, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		err := errors.Validation("rejection reason is required")
		s.record(ActionReject, err)
		return nil, err
	}

	return s.transition(ctx, id, ActionReject, model.EventAppointmentRejected,
		func(current *model.Appointment) error {
			if current.Status != model.AppointmentStatusPending {
				return errors.InvalidTransition(ActionReject, current.Status)
			}
			return nil
		},
		func(next *model.Appointment) {
			next.Status = model.AppointmentStatusRejected
			next.RejectionReason = &reason
		})
}

// Complete moves APPROVED to COMPLETED.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	return s.transition(ctx, id, ActionComplete, model.EventAppointmentCompleted,
		func(current *model.Appointment) error {
			if current.Status != model.AppointmentStatusApproved {
				return errors.InvalidTransition(ActionComplete, current.Status)
			}
			return nil
		},
		func(next *model.Appointment) {
			next.Status = model.AppointmentStatusCompleted
		})
}

// Reschedule moves a PENDING or APPROVED appointment to another slot in
// place. Status and id are kept; note is stored as an annotation.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, req *model.RescheduleAppointmentRequest) (*model.Appointment, error) {
	if req == nil {
		err := errors.Validation("request is required")
		s.record(ActionReschedule, err)
		return nil, err
	}
	if err := s.validateDateTime(req.Date, req.Time); err != nil {
		s.record(ActionReschedule, err)
		return nil, err
	}
	note := strings.TrimSpace(req.Note)

	return s.transition(ctx, id, ActionReschedule, model.EventAppointmentRescheduled,
		func(current *model.Appointment) error {
			if !current.Status.HoldsSlot() {
				return errors.InvalidTransition(ActionReschedule, current.Status)
			}
			if err := s.validateSlot(ctx, current.DoctorID, req.Date, req.Time); err != nil {
				return err
			}
			holder, err := s.repo.FindActiveBySlot(ctx, current.DoctorID, req.Date, req.Time)
			if err != nil {
				return errors.Internal(err)
			}
			if holder != nil && holder.ID != current.ID {
				return s.conflict(current.DoctorID, req.Date, req.Time)
			}
			return nil
		},
		func(next *model.Appointment) {
			next.Date = req.Date
			next.Time = req.Time
			// A blank note keeps the previous annotation.
			if note != "" {
				next.RescheduleNote = &note
			}
		})
}

// transition runs check and mutate against a fresh read and persists with a
// compare-and-set on the status that was read.
func (s *Service) transition(
	ctx context.Context,
	id uuid.UUID,
	action string,
	eventType string,
	check func(current *model.Appointment) error,
	mutate func(next *model.Appointment),
) (result *model.Appointment, err error) {
	defer func() { s.record(action, err) }()

	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := check(current); err != nil {
		return nil, err
	}

	next := current.Clone()
	mutate(next)
	next.UpdatedAt = s.now().UTC()

	if err := s.repo.UpdateIfStatus(ctx, next, current.Status); err != nil {
		switch {
		case stderrors.Is(err, repository.ErrStale):
			// Someone else moved it first; report what they left behind.
			latest, loadErr := s.load(ctx, id)
			if loadErr != nil {
				return nil, loadErr
			}
			return nil, errors.InvalidTransition(action, latest.Status)
		case stderrors.Is(err, repository.ErrSlotTaken):
			return nil, s.conflict(next.DoctorID, next.Date, next.Time)
		case stderrors.Is(err, repository.ErrNotFound):
			return nil, errors.NotFound("appointment", err)
		default:
			return nil, errors.Internal(fmt.Errorf("failed to %s appointment: %w", action, err))
		}
	}

	s.emit(ctx, eventType, next, current)
	s.logger.Info("appointment transitioned",
		"action", action,
		"appointment_id", next.ID.String(),
		"from", current.Status.String(),
		"to", next.Status.String())
	return next, nil
}

// Get returns one appointment.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	return s.load(ctx, id)
}

// ListForDoctor returns the doctor's appointments in booking order,
// optionally narrowed to one status.
func (s *Service) ListForDoctor(ctx context.Context, doctorID uuid.UUID, status model.AppointmentStatus) ([]*model.Appointment, error) {
	if doctorID == uuid.Nil {
		return nil, errors.Validation("doctorId is required")
	}
	return s.list(ctx, &model.AppointmentFilters{DoctorID: doctorID, Status: status})
}

// ListForPatient returns the patient's appointments in booking order,
// optionally narrowed to one status.
func (s *Service) ListForPatient(ctx context.Context, patientID uuid.UUID, status model.AppointmentStatus) ([]*model.Appointment, error) {
	if patientID == uuid.Nil {
		return nil, errors.Validation("patientId is required")
	}
	return s.list(ctx, &model.AppointmentFilters{PatientID: patientID, Status: status})
}

// TodayForDoctor returns the doctor's APPROVED appointments dated today in
// the clinic time zone, earliest slot first.
func (s *Service) TodayForDoctor(ctx context.Context, doctorID uuid.UUID) ([]*model.Appointment, error) {
	if doctorID == uuid.Nil {
		return nil, errors.Validation("doctorId is required")
	}
	apts, err := s.list(ctx, &model.AppointmentFilters{
		DoctorID: doctorID,
		Status:   model.AppointmentStatusApproved,
		Date:     s.today(),
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(apts, func(i, j int) bool { return apts[i].Time < apts[j].Time })
	return apts, nil
}

// CompletedForPatient returns the patient's COMPLETED appointments.
func (s *Service) CompletedForPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Appointment, error) {
	return s.ListForPatient(ctx, patientID, model.AppointmentStatusCompleted)
}

// ListAll is the admin view; zero-valued filter fields match everything.
func (s *Service) ListAll(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	return s.list(ctx, filters)
}

func (s *Service) list(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	if filters != nil && filters.Status != "" && !filters.Status.Valid() {
		return nil, errors.Validation("unknown status %q", filters.Status)
	}
	apts, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, errors.Internal(err)
	}
	return apts, nil
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	if id == uuid.Nil {
		return nil, errors.Validation("appointment id is required")
	}
	apt, err := s.repo.Get(ctx, id)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.NotFound("appointment", err)
		}
		return nil, errors.Internal(err)
	}
	return apt, nil
}

// validateDateTime checks the shape of date and time and that date is not in
// the past.
func (s *Service) validateDateTime(date, clock string) error {
	if _, err := model.ParseDate(date, s.loc); err != nil {
		return errors.Validation("%v", err)
	}
	if date < s.today() {
		return errors.Validation("date %s is in the past", date)
	}
	if _, err := model.ParseTimeOfDay(clock); err != nil {
		return errors.Validation("%v", err)
	}
	return nil
}

// validateSlot additionally requires clock to be on the doctor's roster.
func (s *Service) validateSlot(ctx context.Context, doctorID uuid.UUID, date, clock string) error {
	if err := s.validateDateTime(date, clock); err != nil {
		return err
	}
	offered, err := s.offered(ctx, doctorID, date)
	if err != nil {
		return err
	}
	for _, slot := range offered {
		if slot == clock {
			return nil
		}
	}
	return errors.Validation("time %s is not an offered slot for this doctor", clock)
}

func (s *Service) offered(ctx context.Context, doctorID uuid.UUID, date string) ([]string, error) {
	slots, err := s.roster.Slots(ctx, doctorID, date)
	if err != nil {
		var appErr *errors.AppError
		if stderrors.As(err, &appErr) {
			return nil, err
		}
		return nil, errors.Internal(err)
	}
	sorted := append([]string(nil), slots...)
	sort.Strings(sorted)
	return sorted, nil
}

func (s *Service) conflict(doctorID uuid.UUID, date, clock string) error {
	s.metrics.SlotConflicts.Inc()
	return errors.SlotConflict(doctorID, date, clock)
}

// emit queues the event. Failures are logged; the state change already
// happened and is not rolled back.
func (s *Service) emit(ctx context.Context, eventType string, apt, previous *model.Appointment) {
	payload := model.NewAppointmentEvent(eventType, apt, s.now().UTC())
	if previous != nil && (previous.Date != apt.Date || previous.Time != apt.Time) {
		payload.PreviousDate = previous.Date
		payload.PreviousTime = previous.Time
	}
	if err := s.events.Emit(ctx, eventType, payload); err != nil {
		s.logger.Error(err, "failed to queue appointment event",
			"appointment_id", apt.ID.String(),
			"event_type", eventType)
	}
}

func (s *Service) record(action string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = strings.ToLower(string(errors.CodeOf(err)))
	}
	s.metrics.AppointmentTransitions.WithLabelValues(action, outcome).Inc()
}
