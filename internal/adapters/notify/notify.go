// Package notify delivers terminal job notifications to whoever listens: the log,
// a NATS subject or a Kafka topic. Delivery is best effort; failures are logged by
// the caller and never retried
package notify

import (
	"context"
	"errors"

	"audiencepulse/internal/platform/logger"
	"audiencepulse/internal/services/pulse/domain"
)

// Subject returns the routing key for n: "<prefix>.<status>"
func Subject(prefix string, n domain.JobNotification) string {
	if prefix == "" {
		prefix = "pulse.job"
	}
	return prefix + "." + string(n.Status)
}

// Log writes notifications to the structured log
type Log struct{}

// Notify logs n at info level
func (Log) Notify(ctx context.Context, n domain.JobNotification) error {
	ev := logger.C(ctx).Info().
		Str("job_id", n.JobID).
		Str("fingerprint", n.Fingerprint).
		Str("status", string(n.Status))
	if n.ErrorCode != "" {
		ev = ev.Str("error_code", string(n.ErrorCode))
	}
	ev.Msg("job finished")
	return nil
}

// Multi fans a notification out to every notifier; all are tried and errors are joined
type Multi []domain.Notifier

// Notify calls each notifier in order
func (m Multi) Notify(ctx context.Context, n domain.JobNotification) error {
	var errs []error
	for _, x := range m {
		if x == nil {
			continue
		}
		if err := x.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Closer is implemented by notifiers that own a connection
type Closer interface{ Close() error }

// Close closes every member that owns a connection
func (m Multi) Close() error {
	var errs []error
	for _, x := range m {
		if c, ok := x.(Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
