package model

import (
	"time"

	"github.com/google/uuid"
)

// Notification is an in-app message shown on a user's notifications page.
type Notification struct {
	ID            uuid.UUID `db:"id" json:"id"`
	RecipientID   uuid.UUID `db:"recipient_id" json:"recipientId"`
	AppointmentID uuid.UUID `db:"appointment_id" json:"appointmentId"`
	Kind          string    `db:"kind" json:"kind"`
	Title         string    `db:"title" json:"title"`
	Message       string    `db:"message" json:"message"`
	Read          bool      `db:"is_read" json:"read"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
}
