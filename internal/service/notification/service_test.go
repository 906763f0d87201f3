package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/medvault-api/internal/model"
	"github.com/jwalitptl/medvault-api/internal/repository"
	apperrors "github.com/jwalitptl/medvault-api/pkg/errors"
	"github.com/jwalitptl/medvault-api/pkg/logger"
	"github.com/jwalitptl/medvault-api/pkg/messaging"
)

type memNotifications struct {
	items []*model.Notification
}

func (m *memNotifications) Create(ctx context.Context, n *model.Notification) error {
	m.items = append(m.items, n)
	return nil
}

func (m *memNotifications) ListByRecipient(ctx context.Context, recipientID uuid.UUID, unreadOnly bool) ([]*model.Notification, error) {
	var out []*model.Notification
	for _, n := range m.items {
		if n.RecipientID == recipientID && (!unreadOnly || !n.Read) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *memNotifications) MarkRead(ctx context.Context, id, recipientID uuid.UUID) error {
	for _, n := range m.items {
		if n.ID == id && n.RecipientID == recipientID {
			n.Read = true
			return nil
		}
	}
	return repository.ErrNotFound
}

type fakeMailer struct {
	to, subject, body []string
	err               error
}

func (f *fakeMailer) SendCustom(ctx context.Context, to, subject, content string) error {
	if f.err != nil {
		return f.err
	}
	f.to = append(f.to, to)
	f.subject = append(f.subject, subject)
	f.body = append(f.body, content)
	return nil
}

func message(t *testing.T, eventType string, evt *model.AppointmentEvent) *messaging.Message {
	t.Helper()
	payload, err := json.Marshal(evt)
	require.NoError(t, err)
	return &messaging.Message{Type: eventType, Payload: payload}
}

func sampleEvent() *model.AppointmentEvent {
	return &model.AppointmentEvent{
		AppointmentID: uuid.New(),
		PatientID:     uuid.New(),
		PatientName:   "Asha",
		DoctorID:      uuid.New(),
		DoctorName:    "Dr. Rao",
		Date:          "2030-01-02",
		Time:          "09:00",
		OccurredAt:    time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestHandleMessage_Recipients(t *testing.T) {
	tests := []struct {
		eventType string
		kind      string
		toDoctor  bool
		contains  string
	}{
		{model.EventAppointmentRequested, KindRequested, true, "Asha requested"},
		{model.EventAppointmentApproved, KindApproved, false, "confirmed"},
		{model.EventAppointmentRejected, KindRejected, false, "double booked"},
		{model.EventAppointmentCompleted, KindCompleted, false, "review"},
		{model.EventAppointmentRescheduled, KindRescheduled, false, "from 2030-01-01 at 12:00 to 2030-01-02 at 09:00"},
	}

	for _, tt := range tests {
		t.Run(tt.eventType, func(t *testing.T) {
			repo := &memNotifications{}
			svc := NewService(repo, nil, "", logger.Nop())
			evt := sampleEvent()
			evt.RejectionReason = "double booked"
			if tt.eventType == model.EventAppointmentRescheduled {
				evt.PreviousDate = "2030-01-01"
				evt.PreviousTime = "12:00"
			}

			require.NoError(t, svc.HandleMessage(context.Background(), message(t, tt.eventType, evt)))
			require.Len(t, repo.items, 1)

			n := repo.items[0]
			assert.Equal(t, tt.kind, n.Kind)
			assert.Equal(t, evt.AppointmentID, n.AppointmentID)
			assert.Contains(t, n.Message, tt.contains)
			if tt.toDoctor {
				assert.Equal(t, evt.DoctorID, n.RecipientID)
			} else {
				assert.Equal(t, evt.PatientID, n.RecipientID)
			}
		})
	}
}

func TestHandleMessage_IgnoresUnknownAndRejectsGarbage(t *testing.T) {
	repo := &memNotifications{}
	svc := NewService(repo, nil, "", logger.Nop())

	require.NoError(t, svc.HandleMessage(context.Background(), message(t, "feedback.created", sampleEvent())))
	assert.Empty(t, repo.items)

	err := svc.HandleMessage(context.Background(), &messaging.Message{Type: model.EventAppointmentApproved, Payload: []byte("{")})
	assert.Error(t, err)
}

func TestHandleMessage_MailsFrontDesk(t *testing.T) {
	repo := &memNotifications{}
	mailer := &fakeMailer{}
	svc := NewService(repo, mailer, "desk@clinic.example", logger.Nop())

	require.NoError(t, svc.HandleMessage(context.Background(), message(t, model.EventAppointmentRequested, sampleEvent())))
	assert.Equal(t, []string{"desk@clinic.example"}, mailer.to)
	assert.Equal(t, []string{"New appointment request"}, mailer.subject)

	// Mail failures never lose the in-app notification.
	mailer.err = errors.New("smtp down")
	require.NoError(t, svc.HandleMessage(context.Background(), message(t, model.EventAppointmentApproved, sampleEvent())))
	assert.Len(t, repo.items, 2)
}

func TestListAndMarkRead(t *testing.T) {
	repo := &memNotifications{}
	svc := NewService(repo, nil, "", logger.Nop())
	evt := sampleEvent()
	require.NoError(t, svc.HandleMessage(context.Background(), message(t, model.EventAppointmentApproved, evt)))

	items, err := svc.List(context.Background(), evt.PatientID, true)
	require.NoError(t, err)
	require.Len(t, items, 1)

	require.NoError(t, svc.MarkRead(context.Background(), items[0].ID, evt.PatientID))
	items, err = svc.List(context.Background(), evt.PatientID, true)
	require.NoError(t, err)
	assert.Empty(t, items)

	err = svc.MarkRead(context.Background(), uuid.New(), evt.PatientID)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}
