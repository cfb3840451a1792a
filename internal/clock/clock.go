// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package clock provides the monotonic microsecond tick source every
// periodic activity is timed against.
package clock

// Clock is a monotonic tick counter with microsecond resolution.
type Clock interface {
	// Now returns the current tick in microseconds.
	Now() uint64
	// SleepUntil blocks until Now() >= tick.
	SleepUntil(tick uint64)
}

// PeriodFromFrequency converts a frequency in Hz to a period in ticks.
// A frequency <= 0 yields 0, meaning "do not wait".
func PeriodFromFrequency(hz float64) uint64 {
	if hz <= 0 {
		return 0
	}
	return uint64(1e6 / hz)
}

// WaitTick sleeps until one period after last and returns the tick the
// next period should be measured from.
//
// The first sleep targets next+bias (bias is normally negative so the
// caller wakes a little early), then the remainder is slept precisely.
// Returning the ideal tick rather than the wake-up tick keeps the long-run
// average frequency exact under jitter. When the caller overran by a full
// period or more, the schedule is re-anchored on the current tick instead
// of firing a burst of catch-up iterations.
func WaitTick(c Clock, period, last uint64, bias int64) uint64 {
	now := c.Now()
	if period == 0 {
		return now
	}

	next := last + period
	if now >= next {
		if now-next >= period {
			return now
		}
		return next
	}

	if early := int64(next) + bias; early > int64(now) {
		c.SleepUntil(uint64(early))
	}
	if c.Now() < next {
		c.SleepUntil(next)
	}
	return next
}
