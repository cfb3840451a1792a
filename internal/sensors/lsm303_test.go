// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"

	"github.com/relabs-tech/flight_computer/internal/bus"
)

const tolerance = 1e-9

func near(a, b float64) bool { return math.Abs(a-b) < tolerance }

// le12 encodes a left-justified 12 bit accelerometer value.
func le12(v int16) []byte {
	u := uint16(v << 4)
	return []byte{byte(u), byte(u >> 8)}
}

func attachAccel(t *testing.T, x, y, z int16) (*bus.Fake, *bus.FakeDevice) {
	t.Helper()
	b := bus.NewFake()
	d := b.Attach(LSM303AccelAddress)
	d.AutoIncrementBit = autoIncrement
	d.Set(lsm303StatusRegA, statusZYXDA)
	var out []byte
	for _, v := range []int16{x, y, z} {
		out = append(out, le12(v)...)
	}
	d.Set(lsm303OutXLA, out...)
	return b, d
}

func TestLSM303AccelInit(t *testing.T) {
	b, d := attachAccel(t, 0, 0, 0)
	if _, err := NewLSM303Accel(b, LSM303AccelAddress); err != nil {
		t.Fatal(err)
	}
	want := map[byte]byte{lsm303CtrlReg1A: 0x77, lsm303CtrlReg4A: 0x28, lsm303CtrlReg5A: 0x40}
	for reg, v := range want {
		if d.Regs[reg] != v {
			t.Errorf("reg 0x%02X = 0x%02X, want 0x%02X", reg, d.Regs[reg], v)
		}
	}
}

func TestLSM303AccelDecode(t *testing.T) {
	// 250 digits at 4 mg/digit is 1 g.
	b, _ := attachAccel(t, 250, -125, 0)
	s, err := NewLSM303Accel(b, LSM303AccelAddress)
	if err != nil {
		t.Fatal(err)
	}
	sample, err := s.Sample()
	if err != nil {
		t.Fatal(err)
	}
	if !near(sample.Accel.X, StandardGravity) || !near(sample.Accel.Y, -StandardGravity/2) || sample.Accel.Z != 0 {
		t.Errorf("accel = %v", sample.Accel)
	}
}

func TestLSM303AccelCalibration(t *testing.T) {
	b, _ := attachAccel(t, 10, -20, 260)
	s, err := NewLSM303Accel(b, LSM303AccelAddress)
	if err != nil {
		t.Fatal(err)
	}
	const passes = 5
	for i := 1; i <= passes; i++ {
		if s.Calibrated() {
			t.Fatalf("calibrated before last pass (pass %d)", i)
		}
		s.Calibrate(0.001, i == passes)
	}
	if !s.Calibrated() {
		t.Fatal("not calibrated after last pass")
	}
	sample, err := s.Sample()
	if err != nil {
		t.Fatal(err)
	}
	if !near(sample.Accel.X, 0) || !near(sample.Accel.Y, 0) || !near(sample.Accel.Z, StandardGravity) {
		t.Errorf("calibrated accel = %v, want (0, 0, g)", sample.Accel)
	}
}

func TestLSM303AccelBusFaultKeepsLastSample(t *testing.T) {
	b, d := attachAccel(t, 250, 0, 0)
	s, err := NewLSM303Accel(b, LSM303AccelAddress)
	if err != nil {
		t.Fatal(err)
	}
	first, err := s.Sample()
	if err != nil {
		t.Fatal(err)
	}
	d.Fail = bus.ErrTimeout
	got, err := s.Sample()
	if err == nil {
		t.Fatal("expected an error from a failing device")
	}
	if got != first || s.Last() != first {
		t.Errorf("last sample changed on fault: %v != %v", got, first)
	}
}

func TestLSM303AccelNotReady(t *testing.T) {
	b, d := attachAccel(t, 1, 1, 1)
	s, err := NewLSM303Accel(b, LSM303AccelAddress)
	if err != nil {
		t.Fatal(err)
	}
	d.Set(lsm303StatusRegA, 0)
	if _, err := s.Sample(); err == nil {
		t.Error("expected not ready error")
	}
}

func TestLSM303MagDecodeAndCalibration(t *testing.T) {
	b := bus.NewFake()
	d := b.Attach(LSM303MagAddress)
	s, err := NewLSM303Mag(b, LSM303MagAddress)
	if err != nil {
		t.Fatal(err)
	}
	if d.Regs[lsm303MrRegM] != 0x00 || d.Regs[lsm303CrbRegM] != 0x20 {
		t.Errorf("mag not configured: MR=0x%02X CRB=0x%02X", d.Regs[lsm303MrRegM], d.Regs[lsm303CrbRegM])
	}

	// X=1100 (1 gauss), Z=980 (1 gauss), Y=-1100, big endian in X Z Y order.
	d.Set(lsm303OutXHM, 0x04, 0x4C, 0x03, 0xD4, 0xFB, 0xB4)
	sample, err := s.Sample()
	if err != nil {
		t.Fatal(err)
	}
	if !near(sample.Mag.X, 100) || !near(sample.Mag.Y, -100) || !near(sample.Mag.Z, 100) {
		t.Errorf("mag = %v, want (100, -100, 100) µT", sample.Mag)
	}

	s.Calibrate(0.01, false)
	d.Set(lsm303OutXHM, 0, 0, 0, 0, 0, 0)
	s.Calibrate(0.01, true)
	off := s.Offset()
	if !near(off.X, 50) || !near(off.Y, -50) || !near(off.Z, 50) {
		t.Errorf("hard iron offset = %v", off)
	}
}

func TestLSM303MagStillCalibrationKeepsField(t *testing.T) {
	b := bus.NewFake()
	d := b.Attach(LSM303MagAddress)
	s, err := NewLSM303Mag(b, LSM303MagAddress)
	if err != nil {
		t.Fatal(err)
	}
	// constant (100, -100, 100) µT, as seen by a craft at rest
	d.Set(lsm303OutXHM, 0x04, 0x4C, 0x03, 0xD4, 0xFB, 0xB4)
	const passes = 2000
	for i := 1; i <= passes; i++ {
		s.Calibrate(0.0005, i == passes)
	}
	if !s.Calibrated() {
		t.Fatal("not calibrated after the last pass")
	}
	if off := s.Offset(); off != (r3.Vector{}) {
		t.Errorf("offset = %v, want zero", off)
	}
	sample, err := s.Sample()
	if err != nil {
		t.Fatal(err)
	}
	if !near(sample.Mag.X, 100) || !near(sample.Mag.Y, -100) || !near(sample.Mag.Z, 100) {
		t.Errorf("mag = %v, want the ambient field (100, -100, 100)", sample.Mag)
	}
}

func TestL3GD20(t *testing.T) {
	b := bus.NewFake()
	d := b.Attach(L3GD20Address)
	d.AutoIncrementBit = autoIncrement
	if _, err := NewL3GD20(b, L3GD20Address); err == nil {
		t.Fatal("expected identity check to fail on a blank device")
	}

	d.Set(l3gd20WhoAmI, l3gd20ID)
	d.Set(l3gd20Status, statusZYXDA)
	d.Set(l3gd20OutXL, 100, 0, 0x9C, 0xFF, 0, 0) // 100, -100, 0 digits
	s, err := NewL3GD20(b, L3GD20Address)
	if err != nil {
		t.Fatal(err)
	}
	if d.Regs[l3gd20Ctrl1] != 0x0F || d.Regs[l3gd20Ctrl4] != 0x20 {
		t.Error("gyro not powered up at 2000 dps")
	}
	sample, err := s.Sample()
	if err != nil {
		t.Fatal(err)
	}
	if !near(sample.Gyro.X, 7) || !near(sample.Gyro.Y, -7) || sample.Gyro.Z != 0 {
		t.Errorf("gyro = %v", sample.Gyro)
	}

	s.Calibrate(0.001, true)
	sample, _ = s.Sample()
	if !near(sample.Gyro.Norm(), 0) {
		t.Errorf("bias not removed: %v", sample.Gyro)
	}
}

func TestCalibrationWithoutReadsDoesNotCommit(t *testing.T) {
	b, d := attachAccel(t, 0, 0, 250)
	s, err := NewLSM303Accel(b, LSM303AccelAddress)
	if err != nil {
		t.Fatal(err)
	}
	d.Fail = bus.ErrTimeout
	s.Calibrate(0.001, false)
	s.Calibrate(0.001, true)
	if s.Calibrated() {
		t.Error("calibrated from a cycle with no successful read")
	}

	d.Fail = nil
	s.Calibrate(0.001, true)
	if !s.Calibrated() {
		t.Error("not calibrated after a readable cycle")
	}
}
