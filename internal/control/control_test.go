// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package control

import (
	"testing"

	"github.com/relabs-tech/flight_computer/internal/clock"
	"github.com/relabs-tech/flight_computer/internal/imu"
	"github.com/relabs-tech/flight_computer/internal/orientation"
	"github.com/relabs-tech/flight_computer/internal/telemetry"
)

func TestMQTTLinkFailsafe(t *testing.T) {
	c := clock.NewFake(1_000_000)
	l := NewMQTTLink(c, 500_000)

	l.Poll(c.Now())
	if !l.Lost() || l.Input() != Failsafe {
		t.Fatal("link should start in failsafe")
	}

	l.Handle([]byte(`{"roll":0.5,"thrust":0.4,"armed":true}`))
	l.Poll(c.Now())
	if l.Lost() {
		t.Fatal("still lost after a message")
	}
	if in := l.Input(); in.Roll != 0.5 || in.Thrust != 0.4 || !in.Armed {
		t.Errorf("input = %+v", in)
	}

	c.Advance(400_000)
	l.Poll(c.Now())
	if l.Lost() {
		t.Error("lost before the timeout")
	}

	c.Advance(200_000)
	l.Poll(c.Now())
	if !l.Lost() || l.Input().Armed {
		t.Error("armed input survived a link timeout")
	}

	l.Handle([]byte("not json"))
	l.Poll(c.Now())
	if !l.Lost() {
		t.Error("bad message restored the link")
	}
}

func TestMQTTLinkMessageNewerThanPoll(t *testing.T) {
	c := clock.NewFake(1_000_000)
	l := NewMQTTLink(c, 500_000)

	polled := c.Now()
	c.Advance(100)
	l.Handle([]byte(`{"thrust":0.5,"armed":true,"mode":"stabilize"}`))
	l.Poll(polled)
	if l.Lost() {
		t.Fatal("a message received after the poll tick tripped the failsafe")
	}
	if in := l.Input(); in.Thrust != 0.5 || !in.Armed {
		t.Errorf("input = %+v", in)
	}
}

func TestRecorder(t *testing.T) {
	box := telemetry.NewMemory(0)
	r := NewRecorder(box, 3)
	est := imu.Estimate{Pose: orientation.Pose{Roll: 1}}
	for range 7 {
		r.Update(est, Input{Armed: true}, 0.002)
	}
	if n := len(box.Values("Stabilizer:attitude")); n != 2 {
		t.Errorf("attitude recorded %d times, want 2", n)
	}
	if v := box.Values("Stabilizer:armed"); len(v) != 1 || v[0] != true {
		t.Errorf("armed transitions = %v", v)
	}
}

func TestStatic(t *testing.T) {
	var l Link = Static{Thrust: 0.3}
	l.Poll(0)
	if l.Input().Thrust != 0.3 {
		t.Error("static input changed")
	}
}
