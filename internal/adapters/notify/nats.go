package notify

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"

	"audiencepulse/internal/services/pulse/domain"
)

// publisher is the part of *nats.Conn we use
type publisher interface {
	Publish(subj string, data []byte) error
}

var _ publisher = (*nats.Conn)(nil)

// NATS publishes notifications as JSON on "<prefix>.<status>"
type NATS struct {
	conn   publisher
	prefix string
}

// NewNATS wraps a connection owned by the store; the notifier never closes it
func NewNATS(nc *nats.Conn, prefix string) *NATS {
	return &NATS{conn: nc, prefix: prefix}
}

// Notify publishes n
func (x *NATS) Notify(_ context.Context, n domain.JobNotification) error {
	b, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return x.conn.Publish(Subject(x.prefix, n), b)
}
