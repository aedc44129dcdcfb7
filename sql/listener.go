package sql

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/rteval/parserd"

	"github.com/uptrace/bun/driver/pgdriver"
)

// Listener implements parserd.Listener over the PostgreSQL driver's
// LISTEN/NOTIFY support.
//
// The listener holds its own connection, separate from any session.
type Listener struct {
	ln *pgdriver.Listener
}

// Wait blocks until a notification arrives on the subscribed channel,
// the timeout elapses, or ctx is canceled.
//
// Timeouts map to parserd.ErrWaitTimeout; the notification payload is
// discarded because the producer re-reads the queue table anyway.
func (l *Listener) Wait(ctx context.Context, timeout time.Duration) error {
	_, _, err := l.ln.ReceiveTimeout(ctx, timeout)
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return parserd.ErrWaitTimeout
		}
		return err
	}
	return nil
}

// Close unsubscribes and releases the listener's connection.
func (l *Listener) Close() error {
	return l.ln.Close()
}
