package messaging

import (
	"context"
	"encoding/json"

	"github.com/jwalitptl/medvault-api/pkg/logger"
)

// Consume subscribes to channel and feeds each message to handler until ctx
// is done. Undecodable payloads and handler errors are logged and skipped.
// It returns once the subscription channel closes.
func Consume(ctx context.Context, broker Broker, channel string, handler Handler, log *logger.Logger) error {
	msgChan, err := broker.Subscribe(ctx, channel)
	if err != nil {
		return err
	}

	for raw := range msgChan {
		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			log.Error(err, "dropping undecodable message", "channel", channel)
			continue
		}
		if err := handler(ctx, &msg); err != nil {
			log.Error(err, "message handler failed", "channel", channel, "type", msg.Type)
			continue
		}
	}
	return nil
}
