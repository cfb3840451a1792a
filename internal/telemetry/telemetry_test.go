// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package telemetry

import (
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type fakeToken struct {
	done chan struct{}
	err  error
}

func (t *fakeToken) Wait() bool { <-t.done; return true }

func (t *fakeToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}
func (t *fakeToken) Done() <-chan struct{} { return t.done }
func (t *fakeToken) Error() error          { return t.err }

type message struct {
	topic   string
	payload string
}

// fakePublisher blocks every publish until release is closed.
type fakePublisher struct {
	mu      sync.Mutex
	msgs    []message
	release chan struct{}
}

func (p *fakePublisher) Publish(topic string, _ byte, _ bool, payload interface{}) mqtt.Token {
	<-p.release
	p.mu.Lock()
	p.msgs = append(p.msgs, message{topic, string(payload.([]byte))})
	p.mu.Unlock()
	done := make(chan struct{})
	close(done)
	return &fakeToken{done: done}
}

func (p *fakePublisher) messages() []message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]message(nil), p.msgs...)
}

func TestMQTTTopicsAndPayload(t *testing.T) {
	p := &fakePublisher{release: make(chan struct{})}
	close(p.release)
	m := NewMQTT(p, "flight/", 8)
	m.Enqueue("Stabilizer:lps", 498)
	m.Enqueue("Power:voltage", 11.1)
	m.Close()

	got := p.messages()
	want := []message{
		{"flight/Stabilizer/lps", "498"},
		{"flight/Power/voltage", "11.1"},
	}
	if len(got) != len(want) {
		t.Fatalf("messages = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("message %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestMQTTEnqueueNeverBlocks(t *testing.T) {
	p := &fakePublisher{release: make(chan struct{})}
	m := NewMQTT(p, "flight", 2)

	done := make(chan struct{})
	go func() {
		for i := range 100 {
			m.Enqueue("k", i)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Enqueue blocked on a stalled broker")
	}
	// one entry may be held by the publishing goroutine, two in the queue
	if d := m.Dropped(); d < 97 {
		t.Errorf("dropped = %d, want at least 97", d)
	}
	close(p.release)
	m.Close()
}

func TestMemory(t *testing.T) {
	m := NewMemory(2)
	m.Enqueue("a", 1)
	m.Enqueue("b", 2)
	m.Enqueue("a", 3)

	if v := m.Values("a"); len(v) != 1 || v[0] != 3 {
		t.Errorf("Values(a) = %v, want only the retained entry", v)
	}
	if v, ok := m.Last("b"); !ok || v != 2 {
		t.Errorf("Last(b) = %v, %v", v, ok)
	}
	if len(m.Snapshot()) != 2 {
		t.Errorf("snapshot = %v", m.Snapshot())
	}

	var tee Tee = []BlackBox{m, Discard{}}
	tee.Enqueue("c", "x")
	if _, ok := m.Last("c"); !ok {
		t.Error("tee did not forward")
	}
}
