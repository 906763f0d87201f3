package sqlstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/medvault-api/internal/repository"
)

type rosterRepository struct {
	BaseRepository
}

func NewRosterRepository(db *sqlx.DB) repository.RosterRepository {
	return &rosterRepository{BaseRepository: NewBaseRepository(db)}
}

// ListSlots returns the doctor's configured HH:MM slots, earliest first. An
// empty result means the doctor has no personal roster.
func (r *rosterRepository) ListSlots(ctx context.Context, doctorID uuid.UUID) ([]string, error) {
	slots := []string{}
	query := r.q(`SELECT slot_time FROM doctor_slots WHERE doctor_id = ? ORDER BY slot_time ASC`)
	if err := r.db.SelectContext(ctx, &slots, query, doctorID); err != nil {
		return nil, fmt.Errorf("failed to list doctor slots: %w", err)
	}
	return slots, nil
}

func (r *rosterRepository) ReplaceSlots(ctx context.Context, doctorID uuid.UUID, slots []string) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, r.q(`DELETE FROM doctor_slots WHERE doctor_id = ?`), doctorID); err != nil {
			return fmt.Errorf("failed to clear doctor slots: %w", err)
		}
		insert := r.q(`INSERT INTO doctor_slots (doctor_id, slot_time) VALUES (?, ?)`)
		for _, slot := range slots {
			if _, err := tx.ExecContext(ctx, insert, doctorID, slot); err != nil {
				return fmt.Errorf("failed to insert doctor slot %s: %w", slot, err)
			}
		}
		return nil
	})
}
