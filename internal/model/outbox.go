package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "PENDING"
	OutboxStatusProcessed OutboxStatus = "PROCESSED"
	OutboxStatusFailed    OutboxStatus = "FAILED"
)

type OutboxEvent struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	EventType    string          `db:"event_type" json:"event_type"`
	Payload      json.RawMessage `db:"payload" json:"payload"`
	Status       OutboxStatus    `db:"status" json:"status"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
	RetryCount   int             `db:"retry_count" json:"retry_count"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
	ProcessedAt  *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
}

// Appointment event types written to the outbox and published on the broker.
const (
	EventAppointmentRequested   = "appointment.requested"
	EventAppointmentApproved    = "appointment.approved"
	EventAppointmentRejected    = "appointment.rejected"
	EventAppointmentCompleted   = "appointment.completed"
	EventAppointmentRescheduled = "appointment.rescheduled"
)

// AppointmentEvent is the payload of every appointment.* event.
type AppointmentEvent struct {
	Type            string            `json:"type"`
	AppointmentID   uuid.UUID         `json:"appointmentId"`
	PatientID       uuid.UUID         `json:"patientId"`
	PatientName     string            `json:"patientName"`
	DoctorID        uuid.UUID         `json:"doctorId"`
	DoctorName      string            `json:"doctorName"`
	HospitalID      uuid.UUID         `json:"hospitalId"`
	Date            string            `json:"date"`
	Time            string            `json:"time"`
	Status          AppointmentStatus `json:"status"`
	RejectionReason string            `json:"rejectionReason,omitempty"`
	Note            string            `json:"note,omitempty"`
	PreviousDate    string            `json:"previousDate,omitempty"`
	PreviousTime    string            `json:"previousTime,omitempty"`
	OccurredAt      time.Time         `json:"occurredAt"`
}

// NewAppointmentEvent snapshots apt for the given event type.
func NewAppointmentEvent(eventType string, apt *Appointment, at time.Time) *AppointmentEvent {
	evt := &AppointmentEvent{
		Type:          eventType,
		AppointmentID: apt.ID,
		PatientID:     apt.PatientID,
		PatientName:   apt.PatientName,
		DoctorID:      apt.DoctorID,
		DoctorName:    apt.DoctorName,
		HospitalID:    apt.HospitalID,
		Date:          apt.Date,
		Time:          apt.Time,
		Status:        apt.Status,
		OccurredAt:    at,
	}
	if apt.RejectionReason != nil {
		evt.RejectionReason = *apt.RejectionReason
	}
	if apt.RescheduleNote != nil {
		evt.Note = *apt.RescheduleNote
	}
	return evt
}
