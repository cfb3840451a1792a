// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"io"
	"strings"
	"testing"
	"time"
)

func TestSerialGPSMergesSentences(t *testing.T) {
	stream := strings.Join([]string{
		"garbage",
		"$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*47",
		"$GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*6A",
		"",
	}, "\r\n")
	g := NewGPS("gps", io.NopCloser(strings.NewReader(stream)))
	<-g.done

	s, err := g.Sample()
	if err != nil {
		t.Fatal(err)
	}
	if !s.Fix.Valid() || s.Fix.Satellites != 8 || s.Fix.Altitude != 545.4 {
		t.Errorf("fix = %+v", s.Fix)
	}
	if !g.Capabilities().Has(GPS) {
		t.Error("missing GPS capability")
	}
	if err := g.Close(); err != nil {
		t.Error(err)
	}
}

func TestSerialGPSNotReadyBeforeFirstSentence(t *testing.T) {
	r, w := io.Pipe()
	g := NewGPS("gps", r)
	if _, err := g.Sample(); err != ErrNotReady {
		t.Errorf("err = %v, want ErrNotReady", err)
	}
	w.Close()
	select {
	case <-g.done:
	case <-time.After(time.Second):
		t.Fatal("reader did not stop")
	}
}
