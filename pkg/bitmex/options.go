package bitmex

import (
	"time"

	"github.com/rs/zerolog"

	"bitmexrest/internal/ratelimit"
)

// Option is a functional option for configuring the Client.
type Option func(*Options)

// Options holds configuration options for the Client.
type Options struct {
	Logger zerolog.Logger
	Clock  ratelimit.Clock
}

// WithLogger returns an option that sets the logger for the client.
func WithLogger(l zerolog.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// WithClock replaces the wall clock used for throttling and request expiry.
func WithClock(c ratelimit.Clock) Option {
	return func(o *Options) {
		o.Clock = c
	}
}

// QueryOption tunes list endpoints.
type QueryOption func(*QueryOptions)

type QueryOptions struct {
	Filter    any
	Start     int
	Count     int
	Reverse   bool
	Partial   bool
	StartTime time.Time
	EndTime   time.Time
}

// WithFilter sets the JSON filter. Strings are sent as-is; other values are
// encoded as compact JSON.
func WithFilter(filter any) QueryOption {
	return func(o *QueryOptions) {
		o.Filter = filter
	}
}

func WithStart(start int) QueryOption {
	return func(o *QueryOptions) {
		o.Start = start
	}
}

func WithCount(count int) QueryOption {
	return func(o *QueryOptions) {
		o.Count = count
	}
}

func WithReverse(reverse bool) QueryOption {
	return func(o *QueryOptions) {
		o.Reverse = reverse
	}
}

// WithPartial includes the in-progress bucket in bucketed results.
func WithPartial(partial bool) QueryOption {
	return func(o *QueryOptions) {
		o.Partial = partial
	}
}

// WithTimeRange bounds results by timestamp. A zero time leaves that side open.
func WithTimeRange(start, end time.Time) QueryOption {
	return func(o *QueryOptions) {
		o.StartTime = start
		o.EndTime = end
	}
}

// ApplyQueryOptions returns the options with Count defaulting to defaultCount.
func ApplyQueryOptions(defaultCount int, opts ...QueryOption) *QueryOptions {
	o := &QueryOptions{Count: defaultCount}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// OrderOption tunes order placement.
type OrderOption func(*OrderOptions)

type OrderOptions struct {
	IDPrefix string
	PostOnly bool
}

// WithIDPrefix prefixes generated client order IDs with "prefix-".
func WithIDPrefix(prefix string) OrderOption {
	return func(o *OrderOptions) {
		o.IDPrefix = prefix
	}
}

// PostOnly marks orders ParticipateDoNotInitiate unless an execInst is already set.
func PostOnly() OrderOption {
	return func(o *OrderOptions) {
		o.PostOnly = true
	}
}

func ApplyOrderOptions(opts ...OrderOption) *OrderOptions {
	o := &OrderOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
