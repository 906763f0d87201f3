package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/medvault-api/internal/model"
	"github.com/jwalitptl/medvault-api/internal/repository"
)

const appointmentColumns = `
	id, patient_id, patient_name, doctor_id, doctor_name, hospital_id,
	appointment_date, appointment_time, status, reason,
	rejection_reason, reschedule_of, reschedule_note,
	created_at, updated_at`

type appointmentRepository struct {
	BaseRepository
}

func NewAppointmentRepository(db *sqlx.DB) repository.AppointmentRepository {
	return &appointmentRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *appointmentRepository) Create(ctx context.Context, apt *model.Appointment) error {
	if apt.ID == uuid.Nil {
		apt.ID = uuid.New()
	}
	if apt.CreatedAt.IsZero() {
		apt.CreatedAt = time.Now().UTC()
	}
	if apt.UpdatedAt.IsZero() {
		apt.UpdatedAt = apt.CreatedAt
	}

	query := r.q(`
		INSERT INTO appointments (` + appointmentColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := r.db.ExecContext(ctx, query,
		apt.ID,
		apt.PatientID,
		apt.PatientName,
		apt.DoctorID,
		apt.DoctorName,
		apt.HospitalID,
		apt.Date,
		apt.Time,
		apt.Status,
		apt.Reason,
		apt.RejectionReason,
		apt.RescheduleOf,
		apt.RescheduleNote,
		apt.CreatedAt.UTC(),
		apt.UpdatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrSlotTaken
		}
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	query := r.q(`SELECT ` + appointmentColumns + ` FROM appointments WHERE id = ?`)

	var apt model.Appointment
	if err := r.db.GetContext(ctx, &apt, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return &apt, nil
}

func (r *appointmentRepository) UpdateIfStatus(ctx context.Context, apt *model.Appointment, expected model.AppointmentStatus) error {
	if apt.UpdatedAt.IsZero() {
		apt.UpdatedAt = time.Now().UTC()
	}

	query := r.q(`
		UPDATE appointments
		SET appointment_date = ?, appointment_time = ?, status = ?,
			rejection_reason = ?, reschedule_of = ?, reschedule_note = ?,
			updated_at = ?
		WHERE id = ? AND status = ?
	`)
	result, err := r.db.ExecContext(ctx, query,
		apt.Date,
		apt.Time,
		apt.Status,
		apt.RejectionReason,
		apt.RescheduleOf,
		apt.RescheduleNote,
		apt.UpdatedAt.UTC(),
		apt.ID,
		expected,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrSlotTaken
		}
		return fmt.Errorf("failed to update appointment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		if _, err := r.Get(ctx, apt.ID); err != nil {
			return err
		}
		return repository.ErrStale
	}
	return nil
}

func (r *appointmentRepository) FindActiveBySlot(ctx context.Context, doctorID uuid.UUID, date, slot string) (*model.Appointment, error) {
	query := r.q(`
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE doctor_id = ? AND appointment_date = ? AND appointment_time = ?
			AND status IN ('PENDING', 'APPROVED')
	`)

	var apt model.Appointment
	if err := r.db.GetContext(ctx, &apt, query, doctorID, date, slot); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find appointment by slot: %w", err)
	}
	return &apt, nil
}

func (r *appointmentRepository) ListByDoctorAndDate(ctx context.Context, doctorID uuid.UUID, date string) ([]*model.Appointment, error) {
	return r.List(ctx, &model.AppointmentFilters{DoctorID: doctorID, Date: date})
}

func (r *appointmentRepository) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	var (
		where []string
		args  []interface{}
	)
	if filters != nil {
		if filters.HospitalID != uuid.Nil {
			where = append(where, "hospital_id = ?")
			args = append(args, filters.HospitalID)
		}
		if filters.DoctorID != uuid.Nil {
			where = append(where, "doctor_id = ?")
			args = append(args, filters.DoctorID)
		}
		if filters.PatientID != uuid.Nil {
			where = append(where, "patient_id = ?")
			args = append(args, filters.PatientID)
		}
		if filters.Status != "" {
			where = append(where, "status = ?")
			args = append(args, filters.Status)
		}
		if filters.Date != "" {
			where = append(where, "appointment_date = ?")
			args = append(args, filters.Date)
		}
	}

	query := `SELECT ` + appointmentColumns + ` FROM appointments`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	// created_at can repeat; the insertion sequence cannot.
	query += " ORDER BY " + insertionOrder(r.db) + " ASC"

	appointments := []*model.Appointment{}
	if err := r.db.SelectContext(ctx, &appointments, r.q(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}
