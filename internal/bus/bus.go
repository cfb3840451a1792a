// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package bus is the transaction layer sensors are discovered and read
// through. Every transaction is bounded in time; a device that never
// answers surfaces as ErrTimeout, not as a hung caller.
package bus

import (
	"github.com/pkg/errors"
	"periph.io/x/conn/v3/i2c"
)

// First and last 7-bit addresses probed by Scan (reserved ranges excluded).
const (
	FirstAddress uint16 = 0x03
	LastAddress  uint16 = 0x77
)

var (
	// ErrTimeout is returned when a transaction exceeds its time bound.
	ErrTimeout = errors.New("bus: transaction timed out")
	// ErrNoDevice is returned when nothing acknowledges an address.
	ErrNoDevice = errors.New("bus: no device at address")
)

// Bus is a shared two-wire bus. It is a periph.io i2c.Bus, so periph
// device drivers can be bound to it directly, plus the register helpers
// the flight core uses.
type Bus interface {
	i2c.Bus

	// Scan returns the addresses that acknowledge a one byte read, in
	// ascending order.
	Scan() ([]uint16, error)
	// ReadRegister reads n bytes starting at reg.
	ReadRegister(addr uint16, reg byte, n int) ([]byte, error)
	// WriteRegister writes data starting at reg.
	WriteRegister(addr uint16, reg byte, data ...byte) error
}

// ReadRegister performs a write-then-read register access over any i2c.Bus.
func ReadRegister(b i2c.Bus, addr uint16, reg byte, n int) ([]byte, error) {
	buf := make([]byte, n)
	if err := b.Tx(addr, []byte{reg}, buf); err != nil {
		return nil, errors.Wrapf(err, "read reg 0x%02X @0x%02X", reg, addr)
	}
	return buf, nil
}

// WriteRegister performs a register write over any i2c.Bus.
func WriteRegister(b i2c.Bus, addr uint16, reg byte, data ...byte) error {
	w := append([]byte{reg}, data...)
	if err := b.Tx(addr, w, nil); err != nil {
		return errors.Wrapf(err, "write reg 0x%02X @0x%02X", reg, addr)
	}
	return nil
}

// Scan probes every address in [FirstAddress, LastAddress] with a single
// byte read and returns those that acknowledge.
func Scan(b i2c.Bus) []uint16 {
	var found []uint16
	probe := make([]byte, 1)
	for addr := FirstAddress; addr <= LastAddress; addr++ {
		if err := b.Tx(addr, nil, probe); err == nil {
			found = append(found, addr)
		}
	}
	return found
}
