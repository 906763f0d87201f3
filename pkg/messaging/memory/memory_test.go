package memory

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/medvault-api/pkg/logger"
	"github.com/jwalitptl/medvault-api/pkg/messaging"
)

func TestBroker_PublishSubscribe(t *testing.T) {
	b := NewBroker(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := b.Subscribe(ctx, "appointments")
	require.NoError(t, err)

	require.NoError(t, b.Publish(ctx, "appointments", messaging.Message{Type: "appointment.approved", Payload: json.RawMessage(`{"id":1}`)}))
	require.NoError(t, b.Publish(ctx, "other", messaging.Message{Type: "ignored"}))

	select {
	case raw := <-ch:
		var msg messaging.Message
		require.NoError(t, json.Unmarshal(raw, &msg))
		assert.Equal(t, "appointment.approved", msg.Type)
		assert.JSONEq(t, `{"id":1}`, string(msg.Payload))
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}

	cancel()
	assert.Eventually(t, func() bool {
		_, ok := <-ch
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestBroker_Closed(t *testing.T) {
	b := NewBroker(1)
	require.NoError(t, b.Close())

	assert.ErrorIs(t, b.Publish(context.Background(), "c", "x"), ErrClosed)
	_, err := b.Subscribe(context.Background(), "c")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestConsume_SkipsBadMessages(t *testing.T) {
	b := NewBroker(8)
	ctx, cancel := context.WithCancel(context.Background())

	received := make(chan string, 4)
	done := make(chan error, 1)
	go func() {
		done <- messaging.Consume(ctx, b, "appointments", func(_ context.Context, msg *messaging.Message) error {
			received <- msg.Type
			return nil
		}, logger.Nop())
	}()

	// Wait for the consumer to subscribe.
	require.Eventually(t, func() bool {
		b.mu.RLock()
		defer b.mu.RUnlock()
		return len(b.subs["appointments"]) == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, b.Publish(ctx, "appointments", "not an envelope"))
	require.NoError(t, b.Publish(ctx, "appointments", messaging.Message{Type: "appointment.requested"}))

	select {
	case typ := <-received:
		assert.Equal(t, "appointment.requested", typ)
	case <-time.After(time.Second):
		t.Fatal("handler not called")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("consume did not return after cancel")
	}
}
