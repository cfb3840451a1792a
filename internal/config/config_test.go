// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
)

const sample = `
username: pilot
board:
  type: rpi
  loading_led: GPIO26
frame:
  type: multicopter
stabilizer:
  loop_time: 4000
imu:
  calibrate_all: true
sensors_map_i2c:
  "0x68": custom-gyro
  "0x6A": l3gd20h
serial_sensors:
  - type: gps
    name: ublox
    port: /dev/serial0
    baud: 9600
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flight.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	c := New()
	tests := []struct {
		name string
		got  any
		want any
	}{
		{"board.type", c.Board.Type, "generic"},
		{"stabilizer.loop_time", c.Stabilizer.LoopTime, 2000},
		{"stabilizer.priority", c.Stabilizer.Priority, 99},
		{"stabilizer.sleep_bias", c.Stabilizer.SleepBias, -150},
		{"stabilizer.calibration_frequency", c.Stabilizer.CalibrationFrequency, 4000.0},
		{"imu.calibration_passes", c.IMU.CalibrationPasses, 2000},
		{"power.frequency", c.Power.Frequency, 20.0},
		{"power.priority", c.Power.Priority, 97},
		{"controller.priority", c.Controller.Priority, 98},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
	if err := c.validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestLoad(t *testing.T) {
	c, err := Load(writeConfig(t, sample), nil)
	if err != nil {
		t.Fatal(err)
	}
	if c.Username != "pilot" || c.Board.Type != "rpi" || c.Frame.Type != "multicopter" {
		t.Errorf("decoded %+v", c)
	}
	if c.Stabilizer.LoopTime != 4000 || c.Stabilizer.SleepBias != -150 {
		t.Errorf("stabilizer = %+v", c.Stabilizer)
	}
	if !c.IMU.CalibrateAll {
		t.Error("imu.calibrate_all not decoded")
	}

	bindings, err := c.SensorBindings()
	if err != nil {
		t.Fatal(err)
	}
	if bindings[0x68] != "custom-gyro" || bindings[0x6A] != "l3gd20h" || len(bindings) != 2 {
		t.Errorf("bindings = %v", bindings)
	}
	if len(c.SerialSensors) != 1 || c.SerialSensors[0].Baud != 9600 || c.SerialSensors[0].Port != "/dev/serial0" {
		t.Errorf("serial sensors = %+v", c.SerialSensors)
	}
}

func TestPathQueriesNeverFail(t *testing.T) {
	c, err := Load(writeConfig(t, sample), nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := c.String("username", "x"); got != "pilot" {
		t.Errorf("String = %q", got)
	}
	if got := c.String("missing.key", "fallback"); got != "fallback" {
		t.Errorf("missing String = %q", got)
	}
	if got := c.Integer("stabilizer.loop_time", 1); got != 4000 {
		t.Errorf("Integer = %d", got)
	}
	if got := c.Integer("username", 7); got != 7 {
		t.Errorf("Integer on a string = %d, want the default", got)
	}
	if got := c.Boolean("imu.calibrate_all", false); !got {
		t.Error("Boolean = false")
	}
	if got := c.Number("imu.filter_alpha", 0); got != 0.98 {
		t.Errorf("Number = %v", got)
	}
	if got := c.ArrayLength("serial_sensors"); got != 1 {
		t.Errorf("ArrayLength = %d", got)
	}
	if got := c.ArrayLength("nothing"); got != 0 {
		t.Errorf("ArrayLength(nothing) = %d", got)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"loop time", "stabilizer:\n  loop_time: 0\n"},
		{"binding", "sensors_map_i2c:\n  \"zz\": gyro\n"},
		{"address range", "sensors_map_i2c:\n  \"0x80\": gyro\n"},
		{"alpha", "imu:\n  filter_alpha: 2\n"},
		{"serial port", "serial_sensors:\n  - name: gps\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body), nil)
			if errors.Cause(err) != ErrInvalid {
				t.Errorf("err = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), nil); err == nil {
		t.Error("expected an error for an explicit missing file")
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("FLIGHT_STABILIZER_LOOP_TIME", "1000")
	c, err := Load(writeConfig(t, "board:\n  type: generic\n"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if c.Stabilizer.LoopTime != 1000 {
		t.Errorf("loop_time = %d, want the environment value", c.Stabilizer.LoopTime)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	c := New()
	if err := c.Set("frame.type", "multicopter"); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "out.yaml")
	if err := c.Save(path); err != nil {
		t.Fatal(err)
	}
	again, err := Load(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if again.Frame.Type != "multicopter" || again.Stabilizer.LoopTime != 2000 {
		t.Errorf("reloaded %+v", again)
	}
}
