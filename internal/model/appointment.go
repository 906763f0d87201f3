package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusPending   AppointmentStatus = "PENDING"
	AppointmentStatusApproved  AppointmentStatus = "APPROVED"
	AppointmentStatusRejected  AppointmentStatus = "REJECTED"
	AppointmentStatusCompleted AppointmentStatus = "COMPLETED"
)

// AllAppointmentStatuses lists statuses in lifecycle order.
var AllAppointmentStatuses = []AppointmentStatus{
	AppointmentStatusPending,
	AppointmentStatusApproved,
	AppointmentStatusRejected,
	AppointmentStatusCompleted,
}

func (s AppointmentStatus) String() string {
	return string(s)
}

func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentStatusPending, AppointmentStatusApproved, AppointmentStatusRejected, AppointmentStatusCompleted:
		return true
	}
	return false
}

// HoldsSlot reports whether an appointment in this status occupies its
// (doctor, date, time) slot.
func (s AppointmentStatus) HoldsSlot() bool {
	return s == AppointmentStatusPending || s == AppointmentStatusApproved
}

// ParseAppointmentStatus accepts any case and returns the canonical spelling.
func ParseAppointmentStatus(s string) (AppointmentStatus, error) {
	status := AppointmentStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !status.Valid() {
		return "", fmt.Errorf("unknown appointment status %q", s)
	}
	return status, nil
}

// Appointment field names and enum spellings are read directly by several
// portal surfaces; keep the json tags stable.
type Appointment struct {
	ID              uuid.UUID         `db:"id" json:"id"`
	PatientID       uuid.UUID         `db:"patient_id" json:"patientId"`
	PatientName     string            `db:"patient_name" json:"patientName"`
	DoctorID        uuid.UUID         `db:"doctor_id" json:"doctorId"`
	DoctorName      string            `db:"doctor_name" json:"doctorName"`
	HospitalID      uuid.UUID         `db:"hospital_id" json:"hospitalId"`
	Date            string            `db:"appointment_date" json:"date"`
	Time            string            `db:"appointment_time" json:"time"`
	Status          AppointmentStatus `db:"status" json:"status"`
	Reason          string            `db:"reason" json:"reason"`
	RejectionReason *string           `db:"rejection_reason" json:"rejectionReason,omitempty"`
	RescheduleOf    *uuid.UUID        `db:"reschedule_of" json:"rescheduleOf,omitempty"`
	RescheduleNote  *string           `db:"reschedule_note" json:"rescheduleNote,omitempty"`
	CreatedAt       time.Time         `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time         `db:"updated_at" json:"updatedAt"`
}

// Clone returns a deep copy so callers can mutate without touching stored state.
func (a *Appointment) Clone() *Appointment {
	if a == nil {
		return nil
	}
	c := *a
	if a.RejectionReason != nil {
		v := *a.RejectionReason
		c.RejectionReason = &v
	}
	if a.RescheduleOf != nil {
		v := *a.RescheduleOf
		c.RescheduleOf = &v
	}
	if a.RescheduleNote != nil {
		v := *a.RescheduleNote
		c.RescheduleNote = &v
	}
	return &c
}

// StartsAt combines Date and Time in loc. ok is false when either part is
// malformed.
func (a *Appointment) StartsAt(loc *time.Location) (time.Time, bool) {
	t, err := ParseSlot(a.Date, a.Time, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

type CreateAppointmentRequest struct {
	PatientID   uuid.UUID `json:"-"`
	PatientName string    `json:"-"`
	DoctorID    uuid.UUID `json:"doctorId" validate:"required"`
	DoctorName  string    `json:"doctorName" validate:"max=200"`
	HospitalID  uuid.UUID `json:"hospitalId" validate:"required"`
	Date        string    `json:"date" validate:"required,isodate"`
	Time        string    `json:"time" validate:"required,hhmm"`
	Reason      string    `json:"reason" validate:"required,max=1000"`
}

type RejectAppointmentRequest struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

type RescheduleAppointmentRequest struct {
	Date string `json:"date" validate:"required,isodate"`
	Time string `json:"time" validate:"required,hhmm"`
	Note string `json:"note" validate:"max=1000"`
}

type AppointmentFilters struct {
	HospitalID uuid.UUID
	DoctorID   uuid.UUID
	PatientID  uuid.UUID
	Status     AppointmentStatus
	Date       string
}

// AppointmentSummary is the analytics strip shown on dashboards.
type AppointmentSummary struct {
	Total     int          `json:"total"`
	Pending   int          `json:"pending"`
	Approved  int          `json:"approved"`
	Rejected  int          `json:"rejected"`
	Completed int          `json:"completed"`
	Next      *Appointment `json:"nextAppointment"`
}
