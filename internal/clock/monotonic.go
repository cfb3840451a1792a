// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package clock

// Monotonic is the system monotonic clock, counted from its creation.
type Monotonic struct {
	base uint64
}

// NewMonotonic returns a clock whose tick 0 is the moment of the call.
func NewMonotonic() *Monotonic {
	return &Monotonic{base: systemTicks()}
}

// Now implements Clock.
func (m *Monotonic) Now() uint64 {
	return systemTicks() - m.base
}

// SleepUntil implements Clock.
func (m *Monotonic) SleepUntil(tick uint64) {
	sleepUntilSystem(tick + m.base)
}
