// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package bus

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/physic"
)

// stuckBus blocks every transfer until release is closed.
type stuckBus struct {
	release chan struct{}
	calls   atomic.Int32
}

func (s *stuckBus) String() string                  { return "stuck" }
func (s *stuckBus) SetSpeed(physic.Frequency) error { return nil }
func (s *stuckBus) Close() error                    { return nil }

func (s *stuckBus) Tx(_ uint16, _, r []byte) error {
	s.calls.Add(1)
	<-s.release
	for i := range r {
		r[i] = 0xAB
	}
	return nil
}

func TestI2CTimeoutRefusesWhileAbandoned(t *testing.T) {
	host := &stuckBus{release: make(chan struct{})}
	b := &I2C{bus: host, timeout: 10 * time.Millisecond}

	r := make([]byte, 1)
	if err := b.Tx(0x19, []byte{0x0F}, r); errors.Cause(err) != ErrTimeout {
		t.Fatalf("first Tx = %v, want ErrTimeout", err)
	}

	start := time.Now()
	if err := b.Tx(0x19, []byte{0x0F}, r); errors.Cause(err) != ErrTimeout {
		t.Fatalf("Tx during abandoned transfer = %v, want ErrTimeout", err)
	}
	if elapsed := time.Since(start); elapsed >= b.timeout {
		t.Errorf("refused Tx took %s, want an immediate failure", elapsed)
	}
	if n := host.calls.Load(); n != 1 {
		t.Errorf("host bus saw %d transfers, want 1", n)
	}

	close(host.release)
	deadline := time.Now().Add(5 * time.Second)
	for b.abandoned.Load() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("abandoned transfer never cleared")
		}
		time.Sleep(time.Millisecond)
	}

	if err := b.Tx(0x19, []byte{0x0F}, r); err != nil {
		t.Fatalf("Tx after recovery: %v", err)
	}
	if r[0] != 0xAB {
		t.Errorf("read 0x%02X, want 0xAB", r[0])
	}
}
