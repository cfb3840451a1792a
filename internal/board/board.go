// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package board selects the hardware the flight core runs on: the bus,
// the loading indicator, the register store and any simulated sensors.
package board

import (
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/flight_computer/internal/bus"
	"github.com/relabs-tech/flight_computer/internal/sensors"
)

// Board types.
const (
	RPi     = "rpi"
	Generic = "generic"
)

// ErrUnknownBoard is returned for a board type this build cannot drive.
var ErrUnknownBoard = errors.New("unknown board type")

// Options select and configure a board.
type Options struct {
	Type       string
	I2CBus     string        // periph bus name, "" for the first one
	BusTimeout time.Duration // per transaction
	LoadingLED string        // GPIO name, "" for none
	Registers  string        // register file path, "" keeps them in memory
	Seed       uint64        // simulated sensor noise seed
}

// Board is the hardware the flight core was started on.
type Board struct {
	Type      string
	Bus       bus.Bus
	Indicator Indicator
	Registers *Registers

	// Simulated sensors that are adopted instead of discovered.
	Simulated []sensors.Instance

	closer func() error
}

// Open brings up the board.
func Open(opts Options) (*Board, error) {
	regs, err := LoadRegisters(opts.Registers)
	if err != nil {
		return nil, err
	}

	switch opts.Type {
	case RPi:
		b, err := bus.OpenI2C(opts.I2CBus, opts.BusTimeout)
		if err != nil {
			return nil, err
		}
		return &Board{Type: RPi, Bus: b, Indicator: loadingIndicator(opts.LoadingLED), Registers: regs, closer: b.Close}, nil

	case Generic:
		log.Info("board: generic board, simulated accelerometer and gyroscope")
		return &Board{
			Type:      Generic,
			Bus:       bus.NewFake(),
			Indicator: &LogIndicator{},
			Registers: regs,
			Simulated: []sensors.Instance{
				sensors.NewFakeAccelerometer(opts.Seed),
				sensors.NewFakeGyroscope(opts.Seed + 1),
			},
		}, nil
	}
	return nil, errors.Wrapf(ErrUnknownBoard, "%q", opts.Type)
}

// loadingIndicator drives the named LED, or falls back to the log.
func loadingIndicator(led string) Indicator {
	l, err := NewLED(led)
	if err != nil {
		log.Warnf("board: %v, using log indicator", err)
		return &LogIndicator{}
	}
	return l
}

// Close releases the bus.
func (b *Board) Close() error {
	if b.closer == nil {
		return nil
	}
	return b.closer()
}
