// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"bufio"
	"io"
	"strings"
	"sync"

	nmea "github.com/adrianmo/go-nmea"
	serial "github.com/jacobsa/go-serial/serial"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/flight_computer/internal/gps"
)

// SerialGPS reads NMEA sentences from a serial port in the background and
// exposes the latest merged fix as samples.
type SerialGPS struct {
	Base
	port io.ReadCloser

	mu   sync.Mutex
	fix  gps.Fix
	seen bool
	done chan struct{}
}

// OpenSerialGPS opens a serial NMEA receiver, e.g. /dev/serial0 at 9600.
func OpenSerialGPS(name, port string, baud uint) (*SerialGPS, error) {
	rwc, err := serial.Open(serial.OpenOptions{
		PortName:        port,
		BaudRate:        baud,
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
		ParityMode:      serial.PARITY_NONE,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "gps: open %s", port)
	}
	log.Infof("gps: %s opened on %s at %d baud", name, port, baud)
	return NewGPS(name, rwc), nil
}

// NewGPS starts reading NMEA lines from r.
func NewGPS(name string, r io.ReadCloser) *SerialGPS {
	g := &SerialGPS{
		Base: NewBase(Caps(GPS), name, "nmea"),
		port: r,
		done: make(chan struct{}),
	}
	go g.read()
	return g
}

func (g *SerialGPS) read() {
	defer close(g.done)
	reader := bufio.NewReader(g.port)
	for {
		line, err := reader.ReadString('\n')
		if line = strings.TrimSpace(line); strings.HasPrefix(line, "$") {
			if sentence, perr := nmea.Parse(line); perr == nil {
				g.mu.Lock()
				g.fix.Apply(sentence)
				g.seen = true
				g.mu.Unlock()
			} else {
				log.Debugf("gps: %v (line %q)", perr, line)
			}
		}
		if err != nil {
			if err != io.EOF {
				log.Warnf("gps: read: %v", err)
			}
			return
		}
	}
}

// Sample returns the latest fix. It fails until a sentence has been parsed.
func (g *SerialGPS) Sample() (Sample, error) {
	g.mu.Lock()
	fix, seen := g.fix, g.seen
	g.mu.Unlock()
	if !seen {
		return g.last, ErrNotReady
	}
	return g.remember(Sample{Fix: fix}), nil
}

// Close stops the reader and closes the port.
func (g *SerialGPS) Close() error {
	err := g.port.Close()
	<-g.done
	return err
}
