package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/medvault-api/internal/model"
)

// Summarize counts apts by status and picks the next APPROVED appointment
// starting strictly after now. apts must be in insertion order; on equal
// start times the earlier-created one wins. Appointments whose date or time
// does not parse are counted but never chosen as next.
func Summarize(apts []*model.Appointment, now time.Time, loc *time.Location) *model.AppointmentSummary {
	if loc == nil {
		loc = time.UTC
	}

	summary := &model.AppointmentSummary{}
	var nextAt time.Time

	for _, apt := range apts {
		summary.Total++
		switch apt.Status {
		case model.AppointmentStatusPending:
			summary.Pending++
		case model.AppointmentStatusApproved:
			summary.Approved++
		case model.AppointmentStatusRejected:
			summary.Rejected++
		case model.AppointmentStatusCompleted:
			summary.Completed++
		}

		if apt.Status != model.AppointmentStatusApproved {
			continue
		}
		startsAt, ok := apt.StartsAt(loc)
		if !ok || !startsAt.After(now) {
			continue
		}
		if summary.Next == nil || startsAt.Before(nextAt) {
			summary.Next = apt.Clone()
			nextAt = startsAt
		}
	}

	return summary
}

func (s *Service) DoctorAnalytics(ctx context.Context, doctorID uuid.UUID) (*model.AppointmentSummary, error) {
	apts, err := s.ListForDoctor(ctx, doctorID, "")
	if err != nil {
		return nil, err
	}
	return Summarize(apts, s.now(), s.loc), nil
}

func (s *Service) PatientAnalytics(ctx context.Context, patientID uuid.UUID) (*model.AppointmentSummary, error) {
	apts, err := s.ListForPatient(ctx, patientID, "")
	if err != nil {
		return nil, err
	}
	return Summarize(apts, s.now(), s.loc), nil
}

// HospitalAnalytics summarizes one hospital, or every hospital when
// hospitalID is uuid.Nil.
func (s *Service) HospitalAnalytics(ctx context.Context, hospitalID uuid.UUID) (*model.AppointmentSummary, error) {
	apts, err := s.list(ctx, &model.AppointmentFilters{HospitalID: hospitalID})
	if err != nil {
		return nil, err
	}
	return Summarize(apts, s.now(), s.loc), nil
}
