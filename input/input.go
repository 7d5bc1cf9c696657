// Package input models the operator-facing event sources — clutch and mode
// selection — as injected signals. The engine polls these once per tick and
// has no dependency on any particular capture mechanism (keyboard, pedal,
// device button).
package input

import (
	"sync/atomic"
	"time"

	"github.com/bep/debounce"
)

// BoolSignal is a level-style boolean input, e.g. a held clutch key.
type BoolSignal interface {
	Get() bool
}

// IntSignal is an enumerated input, e.g. a mode selector.
type IntSignal interface {
	Get() int
}

// Bool is an atomic boolean signal. Set is safe to call from any
// goroutine, typically a transport or HID callback.
type Bool struct {
	v atomic.Bool
}

// NewBool returns a Bool at the given initial level.
func NewBool(initial bool) *Bool {
	b := &Bool{}
	b.v.Store(initial)
	return b
}

// Set updates the level.
func (b *Bool) Set(v bool) { b.v.Store(v) }

// Get returns the current level.
func (b *Bool) Get() bool { return b.v.Load() }

// Int is an atomic enumerated signal.
type Int struct {
	v atomic.Int64
}

// NewInt returns an Int at the given initial value.
func NewInt(initial int) *Int {
	s := &Int{}
	s.v.Store(int64(initial))
	return s
}

// Set updates the value.
func (s *Int) Set(v int) { s.v.Store(int64(v)) }

// Get returns the current value.
func (s *Int) Get() int { return int(s.v.Load()) }

// DebouncedBool wraps a Bool so that a raw edge is committed only after
// the source has been quiet for the configured interval. Clean sources
// (a keyboard flag) should use Bool directly; this exists for electrically
// noisy clutch switches.
type DebouncedBool struct {
	committed Bool
	pending   atomic.Bool
	debounced func(func())
}

// NewDebouncedBool returns a debounced signal with the given quiet interval.
func NewDebouncedBool(quiet time.Duration, initial bool) *DebouncedBool {
	d := &DebouncedBool{debounced: debounce.New(quiet)}
	d.committed.Set(initial)
	d.pending.Store(initial)
	return d
}

// Set records a raw edge; the level is committed once no further edges
// arrive within the quiet interval.
func (d *DebouncedBool) Set(v bool) {
	d.pending.Store(v)
	d.debounced(func() {
		d.committed.Set(d.pending.Load())
	})
}

// Get returns the last committed level.
func (d *DebouncedBool) Get() bool { return d.committed.Get() }
