package repository

import "time"

const defaultBusyTimeout = 5 * time.Second

// Option applies a configuration option to a store.
type Option func(*options)

type options struct {
	busyTimeout time.Duration
	now         func() time.Time
}

func newOptions(opts []Option) options {
	o := options{busyTimeout: defaultBusyTimeout, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithBusyTimeout sets how long SQLite waits on a locked database.
func WithBusyTimeout(timeout time.Duration) Option {
	return func(o *options) {
		if timeout > 0 {
			o.busyTimeout = timeout
		}
	}
}

// WithClock overrides the time source used to stamp missing timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}
