// Package token issues and decodes the two opaque credentials of the service:
// encrypted session tokens and signed email verification tokens.
package token

import "time"

type options struct {
	now func() time.Time
}

// Option configures a Codec or EmailTokens.
type Option func(*options)

// WithClock overrides time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func newOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
