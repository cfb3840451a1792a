// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package bus

import (
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

// DefaultTimeout bounds a single transaction on a real bus.
const DefaultTimeout = 20 * time.Millisecond

// I2C is a Bus backed by a periph.io host bus.
type I2C struct {
	bus     i2c.BusCloser
	timeout time.Duration
	// abandoned counts timed out transfers still running on the host bus.
	abandoned atomic.Int32
}

// OpenI2C initializes the periph host and opens the named bus ("" picks
// the first one available, as i2creg does).
func OpenI2C(name string, timeout time.Duration) (*I2C, error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "periph host init")
	}
	b, err := i2creg.Open(name)
	if err != nil {
		return nil, errors.Wrapf(err, "i2c open %q", name)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	log.Printf("bus: opened i2c bus %s (timeout %s)", b, timeout)
	return &I2C{bus: b, timeout: timeout}, nil
}

// String implements i2c.Bus.
func (b *I2C) String() string {
	return b.bus.String()
}

// SetSpeed implements i2c.Bus.
func (b *I2C) SetSpeed(f physic.Frequency) error {
	return b.bus.SetSpeed(f)
}

// Tx implements i2c.Bus. The underlying transfer cannot be cancelled, so
// on timeout it is left to finish in the background and its result is
// discarded. Until it does, every new transaction fails with ErrTimeout
// without touching the host bus.
func (b *I2C) Tx(addr uint16, w, r []byte) error {
	if b.abandoned.Load() > 0 {
		return errors.Wrapf(ErrTimeout, "addr 0x%02X: bus busy with an abandoned transfer", addr)
	}

	const (
		running int32 = iota
		finished
		gaveUp
	)
	var state atomic.Int32
	rbuf := make([]byte, len(r))
	done := make(chan error, 1)
	go func() {
		err := b.bus.Tx(addr, w, rbuf)
		if !state.CompareAndSwap(running, finished) {
			b.abandoned.Add(-1)
		}
		done <- err
	}()

	timer := time.NewTimer(b.timeout)
	defer timer.Stop()
	select {
	case err := <-done:
		if err != nil {
			return err
		}
		copy(r, rbuf)
		return nil
	case <-timer.C:
		if !state.CompareAndSwap(running, gaveUp) {
			// finished between the timer firing and now
			if err := <-done; err != nil {
				return err
			}
			copy(r, rbuf)
			return nil
		}
		b.abandoned.Add(1)
		return errors.Wrapf(ErrTimeout, "addr 0x%02X", addr)
	}
}

// Scan implements Bus.
func (b *I2C) Scan() ([]uint16, error) {
	return Scan(b), nil
}

// ReadRegister implements Bus.
func (b *I2C) ReadRegister(addr uint16, reg byte, n int) ([]byte, error) {
	return ReadRegister(b, addr, reg, n)
}

// WriteRegister implements Bus.
func (b *I2C) WriteRegister(addr uint16, reg byte, data ...byte) error {
	return WriteRegister(b, addr, reg, data...)
}

// Close releases the host bus.
func (b *I2C) Close() error {
	return b.bus.Close()
}
