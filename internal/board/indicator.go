// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package board

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

// Indicator is the loading/readiness signal. Both calls are fire and
// forget.
type Indicator interface {
	InformLoading()
	LoadingDone()
}

// blinkPeriod is the shortest time between two LED toggles, however
// often InformLoading is called.
const blinkPeriod = 100 * time.Millisecond

// LED blinks a GPIO while loading and turns it off when done.
type LED struct {
	mu      sync.Mutex
	pin     gpio.PinOut
	on      bool
	toggled time.Time
}

// NewLED drives the named GPIO.
func NewLED(name string) (*LED, error) {
	if name == "" {
		return nil, errors.New("no loading led configured")
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, errors.Errorf("gpio %q not found", name)
	}
	return &LED{pin: pin}, nil
}

// InformLoading toggles the LED.
func (l *LED) InformLoading() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if time.Since(l.toggled) < blinkPeriod {
		return
	}
	l.toggled = time.Now()
	l.on = !l.on
	if err := l.pin.Out(gpio.Level(l.on)); err != nil {
		log.Debugf("board: led: %v", err)
	}
}

// LoadingDone turns the LED off.
func (l *LED) LoadingDone() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.on = false
	if err := l.pin.Out(gpio.Low); err != nil {
		log.Debugf("board: led: %v", err)
	}
}

// LogIndicator reports loading through the log only.
type LogIndicator struct {
	mu      sync.Mutex
	loading bool
}

func (l *LogIndicator) InformLoading() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.loading {
		l.loading = true
		log.Info("board: loading")
	}
}

func (l *LogIndicator) LoadingDone() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loading = false
	log.Info("board: ready")
}
