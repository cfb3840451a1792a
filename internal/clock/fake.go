// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package clock

import "sync"

// Fake is a manually driven Clock. SleepUntil advances the fake time
// instead of blocking, so loops driven by it run at full speed in tests.
type Fake struct {
	mu     sync.Mutex
	now    uint64
	sleeps []uint64
}

// NewFake returns a fake clock starting at tick start.
func NewFake(start uint64) *Fake {
	return &Fake{now: start}
}

// Now implements Clock.
func (f *Fake) Now() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// SleepUntil implements Clock.
func (f *Fake) SleepUntil(tick uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sleeps = append(f.sleeps, tick)
	if tick > f.now {
		f.now = tick
	}
}

// Set moves the clock to tick, backwards included.
func (f *Fake) Set(tick uint64) {
	f.mu.Lock()
	f.now = tick
	f.mu.Unlock()
}

// Advance moves the clock forward by d ticks.
func (f *Fake) Advance(d uint64) {
	f.mu.Lock()
	f.now += d
	f.mu.Unlock()
}

// Sleeps returns the targets of every SleepUntil call so far.
func (f *Fake) Sleeps() []uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uint64(nil), f.sleeps...)
}
