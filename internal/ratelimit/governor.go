// Package ratelimit throttles outgoing requests using the exchange's own
// rate-limit feedback instead of a fixed requests-per-second table.
package ratelimit

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Response headers consulted by the Governor.
const (
	HeaderRemaining  = "X-Ratelimit-Remaining"
	HeaderRetryAfter = "Retry-After"
)

// ExhaustedCooldown is the delay applied once the server reports no requests
// left in the current window.
const ExhaustedCooldown = 5 * time.Second

// Governor delays requests according to the most recent rate-limit signal.
// It is safe for concurrent use.
type Governor struct {
	mu         sync.Mutex
	delayUntil time.Time

	// slot admits one request at a time between Acquire and release.
	slot chan struct{}

	clock      Clock
	logger     zerolog.Logger
	anomalyLog *rate.Sometimes
	metrics    *Metrics
}

// Metrics tracks statistics about throttling decisions.
type Metrics struct {
	waits       atomic.Int64
	waitedNanos atomic.Int64
	updates     atomic.Int64
	cooldowns   atomic.Int64
	anomalies   atomic.Int64
	holds       atomic.Int64
}

// Option configures a Governor.
type Option func(*Governor)

// WithClock replaces the system clock.
func WithClock(c Clock) Option {
	return func(g *Governor) {
		g.clock = c
	}
}

// WithLogger sets the logger used for throttling events.
func WithLogger(l zerolog.Logger) Option {
	return func(g *Governor) {
		g.logger = l
	}
}

// NewGovernor returns a Governor with no pending delay.
func NewGovernor(opts ...Option) *Governor {
	g := &Governor{
		slot:       make(chan struct{}, 1),
		clock:      SystemClock{},
		logger:     zerolog.Nop(),
		anomalyLog: &rate.Sometimes{First: 1, Interval: time.Minute},
		metrics:    &Metrics{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Backoff returns the delay implied by a remaining-request count:
// ExhaustedCooldown at zero, otherwise max(0, sqrt(10/remaining) - 0.2*remaining) seconds.
func Backoff(remaining int) time.Duration {
	if remaining <= 0 {
		return ExhaustedCooldown
	}
	r := float64(remaining)
	secs := math.Sqrt(10/r) - 0.2*r
	if secs <= 0 {
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}

// Acquire takes the dispatch slot and then waits out the pending delay. The
// caller sends its request, applies the response's signal with Observe or
// Hold, and only then calls release, so the next holder waits on that signal.
// release is idempotent. On error the slot is not held.
func (g *Governor) Acquire(ctx context.Context) (release func(), err error) {
	select {
	case g.slot <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if err := g.Wait(ctx); err != nil {
		<-g.slot
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() { <-g.slot })
	}, nil
}

// Wait blocks until the pending delay has elapsed or ctx is done.
// A cancelled wait leaves the throttle state untouched.
func (g *Governor) Wait(ctx context.Context) error {
	d := g.Delay()
	if d <= 0 {
		return nil
	}

	g.metrics.waits.Add(1)
	g.metrics.waitedNanos.Add(int64(d))
	g.logger.Debug().Dur("delay", d).Msg("throttling request")

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-g.clock.After(d):
		return nil
	}
}

// Delay returns how long a request issued now would wait.
func (g *Governor) Delay() time.Duration {
	return g.DelayAt(g.clock.Now())
}

// DelayAt returns max(0, delayUntil - now).
func (g *Governor) DelayAt(now time.Time) time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	if d := g.delayUntil.Sub(now); d > 0 {
		return d
	}
	return 0
}

// DelayUntil returns the earliest time the next request may be sent.
func (g *Governor) DelayUntil() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.delayUntil
}

// Update records a remaining-request count observed now.
func (g *Governor) Update(remaining int) {
	g.UpdateAt(remaining, g.clock.Now())
}

// UpdateAt records a remaining-request count observed at now.
// Negative counts are ignored.
func (g *Governor) UpdateAt(remaining int, now time.Time) {
	if remaining < 0 {
		g.anomaly(strconv.Itoa(remaining))
		return
	}

	d := Backoff(remaining)

	g.mu.Lock()
	g.delayUntil = now.Add(d)
	g.mu.Unlock()

	g.metrics.updates.Add(1)
	if remaining == 0 {
		g.metrics.cooldowns.Add(1)
		g.logger.Debug().Dur("cooldown", d).Msg("rate limit exhausted")
	}
}

// Observe updates the throttle from response headers. A missing or malformed
// remaining count leaves the state unchanged.
func (g *Governor) Observe(h http.Header) {
	remaining, ok := ParseRemaining(h)
	if !ok {
		g.anomaly(h.Get(HeaderRemaining))
		return
	}
	g.Update(remaining)
}

// Hold pushes the next allowed time to at least now+d. It never shortens a
// pending delay.
func (g *Governor) Hold(d time.Duration) {
	if d <= 0 {
		return
	}
	until := g.clock.Now().Add(d)

	g.mu.Lock()
	if until.After(g.delayUntil) {
		g.delayUntil = until
	}
	g.mu.Unlock()

	g.metrics.holds.Add(1)
	g.logger.Debug().Dur("hold", d).Msg("holding requests")
}

func (g *Governor) anomaly(raw string) {
	g.metrics.anomalies.Add(1)
	g.anomalyLog.Do(func() {
		g.logger.Debug().
			Str("header", HeaderRemaining).
			Str("value", raw).
			Msg("rate limit signal missing or malformed")
	})
}

// ParseRemaining extracts a non-negative remaining-request count.
func ParseRemaining(h http.Header) (int, bool) {
	v := strings.TrimSpace(h.Get(HeaderRemaining))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// ParseRetryAfter reads a Retry-After header given either as delta seconds or
// as an HTTP date relative to now.
func ParseRetryAfter(h http.Header, now time.Time) (time.Duration, bool) {
	v := strings.TrimSpace(h.Get(HeaderRetryAfter))
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := at.Sub(now); d > 0 {
			return d, true
		}
		return 0, true
	}
	return 0, false
}

// Metrics returns a snapshot of the current throttling statistics.
func (g *Governor) Metrics() MetricsSnapshot {
	return MetricsSnapshot{
		Waits:     g.metrics.waits.Load(),
		WaitTime:  time.Duration(g.metrics.waitedNanos.Load()),
		Updates:   g.metrics.updates.Load(),
		Cooldowns: g.metrics.cooldowns.Load(),
		Anomalies: g.metrics.anomalies.Load(),
		Holds:     g.metrics.holds.Load(),
	}
}

// MetricsSnapshot is a point-in-time capture of throttling statistics.
type MetricsSnapshot struct {
	// Waits is the number of requests that were delayed.
	Waits int64
	// WaitTime is the total delay scheduled across all waits.
	WaitTime time.Duration
	// Updates is the number of accepted rate-limit signals.
	Updates int64
	// Cooldowns is the number of signals reporting an exhausted window.
	Cooldowns int64
	// Anomalies is the number of missing or malformed signals.
	Anomalies int64
	// Holds is the number of Retry-After holds applied.
	Holds int64
}
