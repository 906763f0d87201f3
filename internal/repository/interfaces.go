package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/medvault-api/internal/model"
)

var (
	// ErrNotFound is returned when no row matches the requested id.
	ErrNotFound = errors.New("record not found")
	// ErrSlotTaken is returned when a write would leave two active
	// appointments on the same doctor slot.
	ErrSlotTaken = errors.New("slot already held by an active appointment")
	// ErrStale is returned by conditional updates when the stored status no
	// longer matches the expected one.
	ErrStale = errors.New("appointment changed concurrently")
)

// All repository interfaces in one file
type (
	AppointmentRepository interface {
		// Create inserts a new appointment. It returns ErrSlotTaken when an
		// active appointment already occupies the slot.
		Create(ctx context.Context, apt *model.Appointment) error
		Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		// UpdateIfStatus persists apt only if the stored status still equals
		// expected. It returns ErrStale otherwise and ErrSlotTaken when the new
		// date/time collides with another active appointment.
		UpdateIfStatus(ctx context.Context, apt *model.Appointment, expected model.AppointmentStatus) error
		// FindActiveBySlot returns the PENDING/APPROVED appointment holding the
		// slot, or nil when the slot is free.
		FindActiveBySlot(ctx context.Context, doctorID uuid.UUID, date, slot string) (*model.Appointment, error)
		ListByDoctorAndDate(ctx context.Context, doctorID uuid.UUID, date string) ([]*model.Appointment, error)
		// List returns matches in insertion order.
		List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error)
	}

	RosterRepository interface {
		ListSlots(ctx context.Context, doctorID uuid.UUID) ([]string, error)
		ReplaceSlots(ctx context.Context, doctorID uuid.UUID, slots []string) error
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errMsg *string) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}

	NotificationRepository interface {
		Create(ctx context.Context, n *model.Notification) error
		ListByRecipient(ctx context.Context, recipientID uuid.UUID, unreadOnly bool) ([]*model.Notification, error)
		MarkRead(ctx context.Context, id, recipientID uuid.UUID) error
	}
)
