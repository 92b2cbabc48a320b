package database

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultHealthInterval is how often the monitor pings the database.
	DefaultHealthInterval = 5 * time.Minute

	backoffBase = time.Second
	backoffMax  = 60 * time.Second
)

// Conn is what the monitor needs from a database connection.
type Conn interface {
	Ping(ctx context.Context) error
	Reconnect(ctx context.Context) error
}

// BackoffDelay returns the wait before reconnect attempt n (0-based):
// 1s doubling per attempt, capped at 60s.
func BackoffDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= 6 {
		return backoffMax
	}
	d := backoffBase << uint(attempt)
	if d > backoffMax {
		return backoffMax
	}
	return d
}

// Monitor pings the database periodically and reconnects on failure.
// Healthy is read by the request middleware.
type Monitor struct {
	conn     Conn
	interval time.Duration
	healthy  atomic.Bool
	log      *logrus.Logger
	sleep    func(ctx context.Context, d time.Duration) bool
}

// NewMonitor creates a monitor that starts out healthy.
func NewMonitor(conn Conn, interval time.Duration, log *logrus.Logger) *Monitor {
	if interval <= 0 {
		interval = DefaultHealthInterval
	}
	m := &Monitor{conn: conn, interval: interval, log: log, sleep: sleepCtx}
	m.healthy.Store(true)
	return m
}

// Healthy reports whether the last check succeeded.
func (m *Monitor) Healthy() bool {
	return m.healthy.Load()
}

// Start runs checks on the interval until ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.log.WithField("interval", m.interval.String()).Info("database health monitor started")
	for {
		select {
		case <-ctx.Done():
			m.log.Info("database health monitor stopped")
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// Check pings once. On failure it marks the database unhealthy and
// retries reconnecting with exponential backoff until it succeeds or
// ctx ends.
func (m *Monitor) Check(ctx context.Context) {
	err := m.conn.Ping(ctx)
	if err == nil {
		m.healthy.Store(true)
		return
	}

	m.healthy.Store(false)
	m.log.WithError(err).Error("database ping failed, reconnecting")

	for attempt := 0; ; attempt++ {
		delay := BackoffDelay(attempt)
		if !m.sleep(ctx, delay) {
			return
		}
		if err := m.conn.Reconnect(ctx); err != nil {
			m.log.WithError(err).WithFields(logrus.Fields{
				"attempt":   attempt + 1,
				"nextDelay": BackoffDelay(attempt + 1).String(),
			}).Warn("database reconnect failed")
			continue
		}
		m.healthy.Store(true)
		m.log.WithField("attempts", attempt+1).Info("database reconnected")
		return
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
