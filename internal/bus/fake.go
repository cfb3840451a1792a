// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package bus

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/physic"
)

// FakeDevice is a 256 byte register file answering on one address.
// Register reads always auto-increment.
type FakeDevice struct {
	mu   sync.Mutex
	Regs [256]byte
	// AutoIncrementBit is cleared from the register byte before lookup,
	// for chips that take the auto-increment flag in the sub-address
	// (0x80 on the ST parts).
	AutoIncrementBit byte
	// Fail makes every transaction to this device return the error.
	Fail error
	// Writes records every register write in order.
	Writes []FakeWrite
}

// FakeWrite is one recorded register write.
type FakeWrite struct {
	Reg  byte
	Data []byte
}

// Set stores data starting at reg.
func (d *FakeDevice) Set(reg byte, data ...byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	copy(d.Regs[reg:], data)
}

// Fake is an in-memory Bus used by tests and the simulated board.
type Fake struct {
	mu      sync.Mutex
	devices map[uint16]*FakeDevice
}

// NewFake returns an empty fake bus.
func NewFake() *Fake {
	return &Fake{devices: map[uint16]*FakeDevice{}}
}

// Attach places a device at addr and returns it.
func (f *Fake) Attach(addr uint16) *FakeDevice {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := &FakeDevice{}
	f.devices[addr] = d
	return d
}

// Device returns the device at addr, or nil.
func (f *Fake) Device(addr uint16) *FakeDevice {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.devices[addr]
}

// String implements i2c.Bus.
func (f *Fake) String() string { return "fake-i2c" }

// SetSpeed implements i2c.Bus.
func (f *Fake) SetSpeed(physic.Frequency) error { return nil }

// Tx implements i2c.Bus.
func (f *Fake) Tx(addr uint16, w, r []byte) error {
	d := f.Device(addr)
	if d == nil {
		return errors.Wrapf(ErrNoDevice, "0x%02X", addr)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Fail != nil {
		return d.Fail
	}
	if len(w) == 0 {
		for i := range r {
			r[i] = d.Regs[i]
		}
		return nil
	}
	reg := int(w[0] &^ d.AutoIncrementBit)
	if len(w) > 1 {
		data := append([]byte(nil), w[1:]...)
		copy(d.Regs[reg:], data)
		d.Writes = append(d.Writes, FakeWrite{Reg: w[0], Data: data})
	}
	for i := range r {
		r[i] = d.Regs[(reg+i)%len(d.Regs)]
	}
	return nil
}

// Scan implements Bus.
func (f *Fake) Scan() ([]uint16, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	addrs := make([]uint16, 0, len(f.devices))
	for a := range f.devices {
		if a >= FirstAddress && a <= LastAddress {
			addrs = append(addrs, a)
		}
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })
	return addrs, nil
}

// ReadRegister implements Bus.
func (f *Fake) ReadRegister(addr uint16, reg byte, n int) ([]byte, error) {
	return ReadRegister(f, addr, reg, n)
}

// WriteRegister implements Bus.
func (f *Fake) WriteRegister(addr uint16, reg byte, data ...byte) error {
	return WriteRegister(f, addr, reg, data...)
}
