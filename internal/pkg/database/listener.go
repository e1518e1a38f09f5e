package database

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
)

// DefaultNotifyChannel is the channel notify_benefit_change() publishes on.
const DefaultNotifyChannel = "benefit_changes"

// Listener holds one pooled connection in LISTEN mode and hands every
// notification payload to a callback. The connection is re-acquired after
// failures.
type Listener struct {
	db      *DB
	channel string
	ready   atomic.Bool

	minBackoff time.Duration
	maxBackoff time.Duration
}

func NewListener(db *DB, channel string) *Listener {
	if channel == "" {
		channel = DefaultNotifyChannel
	}
	return &Listener{
		db:         db,
		channel:    channel,
		minBackoff: 500 * time.Millisecond,
		maxBackoff: 30 * time.Second,
	}
}

// Ready reports whether the LISTEN statement is active.
func (l *Listener) Ready() bool {
	return l.ready.Load()
}

// Listen blocks until ctx is done. fn runs on the listener goroutine and
// must not block for long.
func (l *Listener) Listen(ctx context.Context, fn func(payload string)) error {
	backoff := l.minBackoff
	for {
		err := l.listenOnce(ctx, fn)
		if l.ready.Swap(false) {
			backoff = l.minBackoff
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		slog.Warn("notification listener disconnected", "channel", l.channel, "error", err, "retry_in", backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, l.maxBackoff)
	}
}

func (l *Listener) listenOnce(ctx context.Context, fn func(payload string)) error {
	conn, err := l.db.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listener connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen %s: %w", l.channel, err)
	}
	l.ready.Store(true)
	slog.Info("listening for data changes", "channel", l.channel)

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			// the connection may still be in LISTEN mode
			conn.Conn().Close(context.Background())
			return err
		}
		fn(n.Payload)
	}
}
