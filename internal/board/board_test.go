// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package board

import (
	"path/filepath"
	"testing"

	"github.com/pkg/errors"

	"github.com/relabs-tech/flight_computer/internal/sensors"
)

func TestRegistersPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registers.yaml")
	r, err := LoadRegisters(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.SaveRegister("lsm303:Accelerometer:Offset:X", 0.25); err != nil {
		t.Fatal(err)
	}
	if err := r.SaveRegister("l3gd20:Gyroscope:Offset:Z", -1.5); err != nil {
		t.Fatal(err)
	}

	again, err := LoadRegisters(path)
	if err != nil {
		t.Fatal(err)
	}
	if v, ok := again.Register("l3gd20:Gyroscope:Offset:Z"); !ok || v != -1.5 {
		t.Errorf("reloaded value = %v, %v", v, ok)
	}
	if keys := again.Keys(); len(keys) != 2 || keys[0] != "l3gd20:Gyroscope:Offset:Z" {
		t.Errorf("keys = %v", keys)
	}
}

func TestRegistersInMemory(t *testing.T) {
	r, err := LoadRegisters("")
	if err != nil {
		t.Fatal(err)
	}
	if err := r.SaveRegister("k", 1); err != nil {
		t.Fatal(err)
	}
	if v, _ := r.Register("k"); v != 1 {
		t.Errorf("k = %v", v)
	}
}

func TestOpenGenericBoard(t *testing.T) {
	b, err := Open(Options{Type: Generic})
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	classified := sensors.Classify(b.Simulated)
	if classified.Count(sensors.Accelerometer) != 1 || classified.Count(sensors.Gyroscope) != 1 {
		t.Errorf("simulated sensors = %v", b.Simulated)
	}
	addrs, err := b.Bus.Scan()
	if err != nil || len(addrs) != 0 {
		t.Errorf("generic bus scan = %v, %v", addrs, err)
	}
}

func TestOpenUnknownBoard(t *testing.T) {
	if _, err := Open(Options{Type: "navio"}); errors.Cause(err) != ErrUnknownBoard {
		t.Errorf("err = %v", err)
	}
}

func TestLoadingIndicatorFallsBackToLog(t *testing.T) {
	tests := []struct {
		name string
		led  string
	}{
		{"none configured", ""},
		{"unknown gpio", "GPIO_DOES_NOT_EXIST"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ind := loadingIndicator(tt.led)
			if _, ok := ind.(*LogIndicator); !ok {
				t.Fatalf("indicator = %T, want *LogIndicator", ind)
			}
			ind.InformLoading()
			ind.LoadingDone()
		})
	}
}
