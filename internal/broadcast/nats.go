package broadcast

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"

	"pso-control-plane/backend/internal/errs"
	"pso-control-plane/backend/internal/logging"
)

// subjectPrefix namespaces group subjects on the shared NATS fabric.
const subjectPrefix = "group."

// retryDelay is the pause before the single publish retry.
const retryDelay = 100 * time.Millisecond

// NATSBroadcaster publishes group payloads as JSON to NATS subjects
// ("group.<name>"). Publish failures get one bounded retry; consumers dedupe
// on the payload's idempotency key, so at-least-once delivery is safe.
type NATSBroadcaster struct {
	conn *nats.Conn
}

// NewNATSBroadcaster wraps an established NATS connection.
func NewNATSBroadcaster(conn *nats.Conn) *NATSBroadcaster {
	return &NATSBroadcaster{conn: conn}
}

// SendToGroup publishes payload to the group's subject. Returns a typed
// external error after the retry is exhausted.
func (b *NATSBroadcaster) SendToGroup(ctx context.Context, group string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return errs.Wrap(errs.KindValidation, "broadcast: encode payload", err)
	}
	subject := subjectPrefix + group

	if err := b.conn.Publish(subject, data); err == nil {
		return nil
	} else {
		logging.Warn().Str("subject", subject).Err(err).Msg("broadcast publish failed, retrying once")
	}

	select {
	case <-ctx.Done():
		return errs.Wrap(errs.KindExternal, "broadcast: publish "+subject, ctx.Err())
	case <-time.After(retryDelay):
	}
	if err := b.conn.Publish(subject, data); err != nil {
		return errs.Wrap(errs.KindExternal, "broadcast: publish "+subject, err)
	}
	return nil
}
