package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/medvault-api/internal/config"
	"github.com/jwalitptl/medvault-api/internal/model"
	"github.com/jwalitptl/medvault-api/internal/repository/sqlstore"
	"github.com/jwalitptl/medvault-api/pkg/logger"
	"github.com/jwalitptl/medvault-api/pkg/metrics"
)

func newSQLService(t *testing.T, now time.Time) *Service {
	t.Helper()
	db, err := sqlstore.NewDB(config.DatabaseConfig{Driver: sqlstore.DriverSQLite, Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, sqlstore.Migrate(context.Background(), db))

	return NewService(
		sqlstore.NewAppointmentRepository(db),
		fixedRoster{slots: defaultRoster},
		&recordingEmitter{},
		metrics.NewNop(),
		logger.Nop(),
		WithClock(func() time.Time { return now }),
	)
}

func TestPatientAnalytics_TieGoesToFirstBookedWithSQLStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 5, 30, 10, 0, 0, 0, time.UTC)

	// Every booking shares one created_at under the frozen clock.
	for run := 0; run < 20; run++ {
		svc := newSQLService(t, now)
		patient := uuid.New()

		var booked []*model.Appointment
		for i := 0; i < 2; i++ {
			req := bookingRequest(uuid.New(), "2025-06-01", "09:00")
			req.PatientID = patient
			apt, err := svc.Create(ctx, req)
			require.NoError(t, err)
			_, err = svc.Approve(ctx, apt.ID)
			require.NoError(t, err)
			booked = append(booked, apt)
		}
		require.Equal(t, booked[0].CreatedAt, booked[1].CreatedAt)

		summary, err := svc.PatientAnalytics(ctx, patient)
		require.NoError(t, err)
		assert.Equal(t, 2, summary.Approved)
		require.NotNil(t, summary.Next)
		assert.Equal(t, booked[0].ID, summary.Next.ID, "run %d", run)
	}
}
