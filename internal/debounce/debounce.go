// Package debounce delays propagation of a rapidly changing value until it
// has been stable for a configured interval.
package debounce

import (
	"sync"
	"time"
)

// DefaultDelay is the quiet period used for the search phrase.
const DefaultDelay = 600 * time.Millisecond

// Timer is the part of *time.Timer the debouncer needs.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f to run once after d.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type settings struct {
	after AfterFunc
}

// Option configures a Debouncer.
type Option func(*settings)

// WithAfterFunc replaces time.AfterFunc, mainly for tests driving a fake clock.
func WithAfterFunc(after AfterFunc) Option {
	return func(s *settings) {
		s.after = after
	}
}

// Debouncer is a trailing-edge debouncer: fn receives the last value passed to
// Set once no further Set happened for the whole delay. There is no leading
// edge emission.
type Debouncer[T any] struct {
	mu    sync.Mutex
	delay time.Duration
	fn    func(T)
	after AfterFunc
	timer Timer
	// seq invalidates callbacks whose timer fired while a newer Set was
	// already holding the lock.
	seq uint64
}

// New creates a debouncer that calls fn after delay of inactivity.
func New[T any](delay time.Duration, fn func(T), opts ...Option) *Debouncer[T] {
	s := settings{after: realAfterFunc}
	for _, opt := range opts {
		opt(&s)
	}
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Debouncer[T]{
		delay: delay,
		fn:    fn,
		after: s.after,
	}
}

// Delay returns the configured quiet period.
func (d *Debouncer[T]) Delay() time.Duration {
	return d.delay
}

// Set records a new input value and restarts the quiet period.
func (d *Debouncer[T]) Set(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.seq++
	seq := d.seq
	d.timer = d.after(d.delay, func() {
		d.mu.Lock()
		if d.seq != seq {
			d.mu.Unlock()
			return
		}
		d.timer = nil
		d.mu.Unlock()
		d.fn(v)
	})
}

// Pending reports whether a value is waiting for its quiet period to end.
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Stop drops any pending value without calling fn.
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.seq++
}
