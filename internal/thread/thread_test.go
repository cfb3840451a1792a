// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package thread

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/relabs-tech/flight_computer/internal/clock"
)

func waitDone(t *testing.T, th *Thread) {
	t.Helper()
	select {
	case <-th.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("thread %s did not finish", th.Name())
	}
}

func TestBodyFalseEndsThreadWithFault(t *testing.T) {
	var n int
	th := New("test", clock.NewFake(0), func() bool {
		n++
		return n < 3
	})
	th.SetFrequency(100)
	th.Start()
	waitDone(t, th)

	if n != 3 {
		t.Errorf("body ran %d times, want 3", n)
	}
	if errors.Cause(th.Err()) != ErrBodyStopped {
		t.Errorf("fault = %v", th.Err())
	}
	if th.Running() {
		t.Error("still running")
	}
}

func TestPanicIsRecovered(t *testing.T) {
	th := New("panicky", clock.NewFake(0), func() bool { panic("boom") })
	th.Start()
	waitDone(t, th)
	if th.Err() == nil {
		t.Error("panic not recorded as fault")
	}
}

func TestPeriodFollowsFrequencyChanges(t *testing.T) {
	c := clock.NewFake(0)
	var ticks []uint64
	var th *Thread
	th = New("tuned", c, func() bool {
		ticks = append(ticks, c.Now())
		if len(ticks) == 3 {
			th.SetFrequency(1000)
		}
		return len(ticks) < 6
	})
	th.SetFrequency(100)
	th.Start()
	waitDone(t, th)

	want := []uint64{0, 10000, 20000, 21000, 22000, 23000}
	if len(ticks) != len(want) {
		t.Fatalf("ticks = %v", ticks)
	}
	for i := range want {
		if ticks[i] != want[i] {
			t.Fatalf("ticks = %v, want %v", ticks, want)
		}
	}
	if th.Frequency() != 1000 {
		t.Errorf("frequency = %v", th.Frequency())
	}
}

func TestStopBeforeStart(t *testing.T) {
	th := New("idle", clock.NewFake(0), func() bool { return true })
	th.Stop()
	th.Start()
	waitDone(t, th)
	if th.Running() {
		t.Error("started after stop")
	}
}

func TestRuntimeStopsInReverseOrder(t *testing.T) {
	rt := NewRuntime()
	var spawned []*Thread
	for _, name := range []string{"power", "stabilizer", "controller"} {
		th := New(name, clock.NewMonotonic(), func() bool { return true })
		th.SetFrequency(1000)
		rt.Spawn(th)
		spawned = append(spawned, th)
	}
	for _, th := range spawned {
		if !th.Running() {
			t.Fatalf("%s not running", th.Name())
		}
	}

	// when a thread ends, every thread spawned after it must already be done
	var violations atomic.Int32
	var wg sync.WaitGroup
	for i, th := range spawned {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-th.Done()
			for _, later := range spawned[i+1:] {
				select {
				case <-later.Done():
				default:
					violations.Add(1)
				}
			}
		}()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rt.StopAll(ctx); err != nil {
		t.Fatal(err)
	}
	wg.Wait()
	if v := violations.Load(); v != 0 {
		t.Errorf("%d threads stopped before a later spawned one", v)
	}
	for _, th := range spawned {
		if th.Running() {
			t.Errorf("%s still running", th.Name())
		}
	}
	if len(rt.Threads()) != 3 {
		t.Errorf("runtime owns %d threads", len(rt.Threads()))
	}
}

func TestRuntimeReportsFault(t *testing.T) {
	rt := NewRuntime()
	rt.Spawn(New("ok", clock.NewMonotonic(), func() bool { return true }))
	bad := New("bad", clock.NewFake(0), func() bool { return false })
	rt.Spawn(bad)
	waitDone(t, bad)

	if err := rt.StopAll(context.Background()); errors.Cause(err) != ErrBodyStopped {
		t.Errorf("StopAll = %v, want the body fault", err)
	}
}
