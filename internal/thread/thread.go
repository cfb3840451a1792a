// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package thread runs periodic activities on dedicated OS threads with a
// real-time scheduling priority and a frequency the body may change.
package thread

import (
	"context"
	"math"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/flight_computer/internal/clock"
)

// Body is one iteration of a periodic activity. Returning false ends the
// thread as a fault.
type Body func() bool

// ErrBodyStopped is the fault recorded when a body returns false.
var ErrBodyStopped = errors.New("body returned false")

// Thread is one periodic activity. A frequency of 0 runs the body back to
// back without sleeping.
type Thread struct {
	name  string
	clock clock.Clock
	body  Body

	freq     atomic.Uint64 // math.Float64bits
	priority atomic.Int32
	bias     atomic.Int64

	once     sync.Once
	stopOnce sync.Once
	running  atomic.Bool
	stop     chan struct{}
	done     chan struct{}
	fault    error
}

// New returns a stopped thread.
func New(name string, c clock.Clock, body Body) *Thread {
	return &Thread{
		name:  name,
		clock: c,
		body:  body,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

func (t *Thread) Name() string { return t.name }

// SetFrequency changes the requested frequency in Hz. It is safe to call
// from the body itself.
func (t *Thread) SetFrequency(hz float64) {
	t.freq.Store(math.Float64bits(hz))
}

// Frequency returns the requested frequency in Hz.
func (t *Thread) Frequency() float64 {
	return math.Float64frombits(t.freq.Load())
}

// SetPriority sets the SCHED_FIFO priority, applied before the next
// iteration. 0 keeps the default scheduler.
func (t *Thread) SetPriority(p int) {
	t.priority.Store(int32(p))
}

func (t *Thread) Priority() int {
	return int(t.priority.Load())
}

// SetSleepBias sets the wake-up offset in µs (negative wakes early).
func (t *Thread) SetSleepBias(us int64) {
	t.bias.Store(us)
}

// Running reports whether the loop is active.
func (t *Thread) Running() bool {
	return t.running.Load()
}

// Start launches the thread. Starting twice is a no-op.
func (t *Thread) Start() {
	t.once.Do(func() {
		t.running.Store(true)
		go t.run()
	})
}

// Stop asks the thread to exit and waits for it.
func (t *Thread) Stop() {
	_ = t.StopContext(context.Background())
}

// StopContext asks the thread to exit and waits until it has, or until
// ctx is done.
func (t *Thread) StopContext(ctx context.Context) error {
	t.once.Do(func() { close(t.done) })
	t.stopOnce.Do(func() { close(t.stop) })
	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return errors.Wrapf(ctx.Err(), "thread %s", t.name)
	}
}

// Done is closed when the loop has exited.
func (t *Thread) Done() <-chan struct{} {
	return t.done
}

// Err returns the fault that ended the thread, if any. Only meaningful
// after Done is closed.
func (t *Thread) Err() error {
	return t.fault
}

func (t *Thread) run() {
	defer close(t.done)
	defer t.running.Store(false)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	applied := -1
	last := t.clock.Now()
	for {
		select {
		case <-t.stop:
			log.Debugf("thread: %s stopped", t.name)
			return
		default:
		}

		if p := t.Priority(); p != applied {
			applied = p
			if err := setRealtimePriority(p); err != nil {
				log.Warnf("thread: %s: priority %d: %v", t.name, p, err)
			} else if p > 0 {
				log.Debugf("thread: %s running at priority %d", t.name, p)
			}
		}

		if err := t.iterate(); err != nil {
			t.fault = errors.Wrapf(err, "thread %s", t.name)
			log.Errorf("thread: %v", t.fault)
			return
		}

		last = clock.WaitTick(t.clock, clock.PeriodFromFrequency(t.Frequency()), last, t.bias.Load())
	}
}

func (t *Thread) iterate() (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.Errorf("panic: %v", p)
		}
	}()
	if !t.body() {
		return ErrBodyStopped
	}
	return nil
}
