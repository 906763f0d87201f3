package sqlstore

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schema is valid for both postgres and sqlite. Timestamps are always written
// in UTC.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS appointments (
		id               TEXT PRIMARY KEY,
		patient_id       TEXT NOT NULL,
		patient_name     TEXT NOT NULL DEFAULT '',
		doctor_id        TEXT NOT NULL,
		doctor_name      TEXT NOT NULL DEFAULT '',
		hospital_id      TEXT NOT NULL,
		appointment_date TEXT NOT NULL,
		appointment_time TEXT NOT NULL,
		status           TEXT NOT NULL,
		reason           TEXT NOT NULL,
		rejection_reason TEXT,
		reschedule_of    TEXT,
		reschedule_note  TEXT,
		created_at       TIMESTAMP NOT NULL,
		updated_at       TIMESTAMP NOT NULL,
		CHECK (status IN ('PENDING', 'APPROVED', 'REJECTED', 'COMPLETED'))
	)`,
	// Linearization point for concurrent bookings: at most one active
	// appointment per doctor slot.
	`CREATE UNIQUE INDEX IF NOT EXISTS appointments_active_slot_idx
		ON appointments (doctor_id, appointment_date, appointment_time)
		WHERE status IN ('PENDING', 'APPROVED')`,
	`CREATE INDEX IF NOT EXISTS appointments_patient_idx ON appointments (patient_id)`,
	`CREATE INDEX IF NOT EXISTS appointments_hospital_idx ON appointments (hospital_id)`,
	`CREATE TABLE IF NOT EXISTS doctor_slots (
		doctor_id TEXT NOT NULL,
		slot_time TEXT NOT NULL,
		PRIMARY KEY (doctor_id, slot_time)
	)`,
	`CREATE TABLE IF NOT EXISTS outbox_events (
		id            TEXT PRIMARY KEY,
		event_type    TEXT NOT NULL,
		payload       TEXT NOT NULL,
		status        TEXT NOT NULL,
		error_message TEXT,
		retry_count   INTEGER NOT NULL DEFAULT 0,
		created_at    TIMESTAMP NOT NULL,
		updated_at    TIMESTAMP NOT NULL,
		processed_at  TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS outbox_events_status_idx ON outbox_events (status, created_at)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id             TEXT PRIMARY KEY,
		recipient_id   TEXT NOT NULL,
		appointment_id TEXT NOT NULL,
		kind           TEXT NOT NULL,
		title          TEXT NOT NULL,
		message        TEXT NOT NULL,
		is_read        BOOLEAN NOT NULL DEFAULT FALSE,
		created_at     TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS notifications_recipient_idx ON notifications (recipient_id, created_at)`,
}

// postgresSchema adds the insertion sequence appointments are listed by.
// sqlite tables already carry a monotonic rowid since rows are never deleted.
var postgresSchema = []string{
	`ALTER TABLE appointments ADD COLUMN IF NOT EXISTS seq BIGSERIAL`,
	`CREATE INDEX IF NOT EXISTS appointments_seq_idx ON appointments (seq)`,
}

// Migrate creates the tables and indexes if they do not exist yet.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	stmts := schema
	if db.DriverName() == DriverPostgres {
		stmts = append(append([]string(nil), schema...), postgresSchema...)
	}
	for i, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement %d: %w", i+1, err)
		}
	}
	return nil
}

// insertionOrder is the column that reflects the order rows were inserted.
func insertionOrder(db *sqlx.DB) string {
	if db.DriverName() == DriverPostgres {
		return "seq"
	}
	return "rowid"
}
