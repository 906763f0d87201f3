package notification

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/medvault-api/internal/email"
	"github.com/jwalitptl/medvault-api/internal/model"
	"github.com/jwalitptl/medvault-api/internal/repository"
	"github.com/jwalitptl/medvault-api/pkg/errors"
	"github.com/jwalitptl/medvault-api/pkg/logger"
	"github.com/jwalitptl/medvault-api/pkg/messaging"
)

// Notification kinds shown on the notifications page.
const (
	KindRequested   = "APPOINTMENT_REQUESTED"
	KindApproved    = "APPOINTMENT_APPROVED"
	KindRejected    = "APPOINTMENT_REJECTED"
	KindCompleted   = "APPOINTMENT_COMPLETED"
	KindRescheduled = "APPOINTMENT_RESCHEDULED"
)

type Service interface {
	// HandleMessage turns an appointment event into in-app notifications.
	// Unknown event types are ignored.
	HandleMessage(ctx context.Context, msg *messaging.Message) error
	List(ctx context.Context, recipientID uuid.UUID, unreadOnly bool) ([]*model.Notification, error)
	MarkRead(ctx context.Context, id, recipientID uuid.UUID) error
}

type service struct {
	repo      repository.NotificationRepository
	emailSvc  email.Service
	frontDesk string
	logger    *logger.Logger
	now       func() time.Time
}

// NewService builds the notification service. emailSvc may be nil; when set,
// a copy of every notification is mailed to frontDesk.
func NewService(repo repository.NotificationRepository, emailSvc email.Service, frontDesk string, log *logger.Logger) Service {
	return &service{
		repo:      repo,
		emailSvc:  emailSvc,
		frontDesk: frontDesk,
		logger:    log,
		now:       time.Now,
	}
}

func (s *service) HandleMessage(ctx context.Context, msg *messaging.Message) error {
	var evt model.AppointmentEvent
	if err := json.Unmarshal(msg.Payload, &evt); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", msg.Type, err)
	}

	n := build(msg.Type, &evt)
	if n == nil {
		s.logger.Debug("ignoring event", "type", msg.Type)
		return nil
	}
	n.ID = uuid.New()
	n.AppointmentID = evt.AppointmentID
	n.CreatedAt = s.now().UTC()

	if err := s.repo.Create(ctx, n); err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	if s.emailSvc != nil && s.frontDesk != "" {
		if err := s.emailSvc.SendCustom(ctx, s.frontDesk, n.Title, n.Message); err != nil {
			s.logger.Error(err, "failed to mail front desk copy", "notification_id", n.ID.String())
		}
	}
	return nil
}

func build(eventType string, evt *model.AppointmentEvent) *model.Notification {
	slot := fmt.Sprintf("%s at %s", evt.Date, evt.Time)
	doctor := evt.DoctorName
	if doctor == "" {
		doctor = "your doctor"
	}

	switch eventType {
	case model.EventAppointmentRequested:
		patient := evt.PatientName
		if patient == "" {
			patient = "A patient"
		}
		return &model.Notification{
			RecipientID: evt.DoctorID,
			Kind:        KindRequested,
			Title:       "New appointment request",
			Message:     fmt.Sprintf("%s requested an appointment on %s.", patient, slot),
		}
	case model.EventAppointmentApproved:
		return &model.Notification{
			RecipientID: evt.PatientID,
			Kind:        KindApproved,
			Title:       "Appointment approved",
			Message:     fmt.Sprintf("Your appointment with %s on %s is confirmed.", doctor, slot),
		}
	case model.EventAppointmentRejected:
		return &model.Notification{
			RecipientID: evt.PatientID,
			Kind:        KindRejected,
			Title:       "Appointment rejected",
			Message:     fmt.Sprintf("Your appointment with %s on %s was rejected: %s", doctor, slot, evt.RejectionReason),
		}
	case model.EventAppointmentCompleted:
		return &model.Notification{
			RecipientID: evt.PatientID,
			Kind:        KindCompleted,
			Title:       "Appointment completed",
			Message:     fmt.Sprintf("Your appointment with %s on %s is complete. You can now leave a review.", doctor, slot),
		}
	case model.EventAppointmentRescheduled:
		msg := fmt.Sprintf("Your appointment with %s moved to %s.", doctor, slot)
		if evt.PreviousDate != "" {
			msg = fmt.Sprintf("Your appointment with %s moved from %s at %s to %s.", doctor, evt.PreviousDate, evt.PreviousTime, slot)
		}
		if evt.Note != "" {
			msg += " Note: " + evt.Note
		}
		return &model.Notification{
			RecipientID: evt.PatientID,
			Kind:        KindRescheduled,
			Title:       "Appointment rescheduled",
			Message:     msg,
		}
	}
	return nil
}

func (s *service) List(ctx context.Context, recipientID uuid.UUID, unreadOnly bool) ([]*model.Notification, error) {
	notifications, err := s.repo.ListByRecipient(ctx, recipientID, unreadOnly)
	if err != nil {
		return nil, errors.Internal(err)
	}
	return notifications, nil
}

func (s *service) MarkRead(ctx context.Context, id, recipientID uuid.UUID) error {
	if err := s.repo.MarkRead(ctx, id, recipientID); err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return errors.NotFound("notification", err)
		}
		return errors.Internal(err)
	}
	return nil
}
