package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"event-relay/internal/config"
	"event-relay/internal/metrics"
)

// Limiter bounds the number of relays with outbound calls in flight. A relay
// waits up to the queue timeout for a slot before being rejected.
type Limiter struct {
	sem      *semaphore.Weighted
	capacity int64
	wait     time.Duration
	inFlight atomic.Int64
	metrics  *metrics.Metrics
}

// NewLimiter creates a Limiter sized by relay.max_concurrent. The metrics
// parameter is optional.
func NewLimiter(cfg *config.Config, m *metrics.Metrics) *Limiter {
	capacity := int64(cfg.Relay.MaxConcurrent)
	if capacity <= 0 {
		capacity = 1
	}
	return &Limiter{
		sem:      semaphore.NewWeighted(capacity),
		capacity: capacity,
		wait:     time.Duration(cfg.Relay.QueueTimeoutSeconds) * time.Second,
		metrics:  m,
	}
}

// Acquire takes a slot, waiting at most the queue timeout. It returns an error
// wrapping ErrRelayBusy when no slot frees up in time or ctx ends first.
func (l *Limiter) Acquire(ctx context.Context) error {
	if l.wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.wait)
		defer cancel()
		if err := l.sem.Acquire(ctx, 1); err != nil {
			l.reject()
			return fmt.Errorf("%w: %w", ErrRelayBusy, err)
		}
	} else if !l.sem.TryAcquire(1) {
		l.reject()
		return ErrRelayBusy
	}

	l.inFlight.Add(1)
	if l.metrics != nil {
		l.metrics.RelaysInFlight.Inc()
	}
	return nil
}

// Release returns a slot taken by Acquire.
func (l *Limiter) Release() {
	l.inFlight.Add(-1)
	if l.metrics != nil {
		l.metrics.RelaysInFlight.Dec()
	}
	l.sem.Release(1)
}

// InFlight returns the number of slots currently held.
func (l *Limiter) InFlight() int64 {
	return l.inFlight.Load()
}

// Capacity returns the maximum number of concurrent relays.
func (l *Limiter) Capacity() int64 {
	return l.capacity
}

func (l *Limiter) reject() {
	if l.metrics != nil {
		l.metrics.RelaysRejected.Inc()
	}
}
