package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/medvault-api/internal/model"
)

func newApt(status model.AppointmentStatus, date, clock string) *model.Appointment {
	return &model.Appointment{ID: uuid.New(), Status: status, Date: date, Time: clock}
}

func TestSummarize_Empty(t *testing.T) {
	summary := Summarize(nil, time.Now(), time.UTC)
	require.NotNil(t, summary)
	assert.Zero(t, summary.Total)
	assert.Nil(t, summary.Next)
}

func TestSummarize_NoApprovedMeansNoNext(t *testing.T) {
	now := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	summary := Summarize([]*model.Appointment{
		newApt(model.AppointmentStatusPending, "2025-06-02", "09:00"),
		newApt(model.AppointmentStatusRejected, "2025-06-02", "10:30"),
	}, now, time.UTC)

	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 1, summary.Pending)
	assert.Equal(t, 1, summary.Rejected)
	assert.Nil(t, summary.Next)
}

func TestSummarize_CountsAndNext(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	past := newApt(model.AppointmentStatusApproved, "2025-06-01", "09:00")
	atNow := newApt(model.AppointmentStatusApproved, "2025-06-01", "10:00")
	later := newApt(model.AppointmentStatusApproved, "2025-06-03", "09:00")
	soonest := newApt(model.AppointmentStatusApproved, "2025-06-01", "12:00")
	pendingSooner := newApt(model.AppointmentStatusPending, "2025-06-01", "10:30")
	malformed := newApt(model.AppointmentStatusApproved, "2025-13-01", "09:00")
	badTime := newApt(model.AppointmentStatusApproved, "2025-06-01", "noon")
	done := newApt(model.AppointmentStatusCompleted, "2025-05-01", "09:00")

	summary := Summarize([]*model.Appointment{
		past, atNow, later, malformed, soonest, pendingSooner, badTime, done,
	}, now, time.UTC)

	assert.Equal(t, 8, summary.Total)
	assert.Equal(t, 1, summary.Pending)
	assert.Equal(t, 6, summary.Approved)
	assert.Equal(t, 0, summary.Rejected)
	assert.Equal(t, 1, summary.Completed)
	require.NotNil(t, summary.Next)
	assert.Equal(t, soonest.ID, summary.Next.ID)
}

func TestSummarize_TiesGoToFirstInserted(t *testing.T) {
	now := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	first := newApt(model.AppointmentStatusApproved, "2025-06-02", "09:00")
	second := newApt(model.AppointmentStatusApproved, "2025-06-02", "09:00")

	summary := Summarize([]*model.Appointment{first, second}, now, time.UTC)
	require.NotNil(t, summary.Next)
	assert.Equal(t, first.ID, summary.Next.ID)
}

func TestSummarize_UsesClinicTimeZone(t *testing.T) {
	kolkata, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	// 09:00 in Kolkata is 03:30 UTC, already past at 04:00 UTC.
	now := time.Date(2025, 6, 1, 4, 0, 0, 0, time.UTC)
	morning := newApt(model.AppointmentStatusApproved, "2025-06-01", "09:00")
	noon := newApt(model.AppointmentStatusApproved, "2025-06-01", "12:00")

	summary := Summarize([]*model.Appointment{morning, noon}, now, kolkata)
	require.NotNil(t, summary.Next)
	assert.Equal(t, noon.ID, summary.Next.ID)

	summary = Summarize([]*model.Appointment{morning, noon}, now, time.UTC)
	assert.Equal(t, morning.ID, summary.Next.ID)
}

func TestSummarize_NextIsACopy(t *testing.T) {
	now := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	a := newApt(model.AppointmentStatusApproved, "2025-06-02", "09:00")

	summary := Summarize([]*model.Appointment{a}, now, time.UTC)
	summary.Next.Time = "23:59"
	assert.Equal(t, "09:00", a.Time)
}

func TestServiceAnalytics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doctor := uuid.New()

	a := f.book(t, doctor, "2025-06-02", "09:00")
	b := f.book(t, doctor, "2025-06-01", "15:00")
	c := f.book(t, doctor, "2025-06-01", "16:30")
	for _, id := range []uuid.UUID{a.ID, b.ID} {
		_, err := f.svc.Approve(ctx, id)
		require.NoError(t, err)
	}
	_, err := f.svc.Reject(ctx, c.ID, "clash")
	require.NoError(t, err)

	summary, err := f.svc.DoctorAnalytics(ctx, doctor)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Approved)
	assert.Equal(t, 1, summary.Rejected)
	require.NotNil(t, summary.Next)
	assert.Equal(t, b.ID, summary.Next.ID)

	patient, err := f.svc.PatientAnalytics(ctx, a.PatientID)
	require.NoError(t, err)
	assert.Equal(t, 1, patient.Total)
	require.NotNil(t, patient.Next)
	assert.Equal(t, a.ID, patient.Next.ID)

	hospital, err := f.svc.HospitalAnalytics(ctx, a.HospitalID)
	require.NoError(t, err)
	assert.Equal(t, 3, hospital.Total)

	everyone, err := f.svc.HospitalAnalytics(ctx, uuid.Nil)
	require.NoError(t, err)
	assert.Equal(t, 3, everyone.Total)

	empty, err := f.svc.DoctorAnalytics(ctx, uuid.New())
	require.NoError(t, err)
	assert.Zero(t, empty.Total)
	assert.Nil(t, empty.Next)
}
