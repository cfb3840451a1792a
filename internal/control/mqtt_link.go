// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package control

import (
	"encoding/json"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/flight_computer/internal/clock"
)

// Subscriber is the part of an MQTT client the link needs.
type Subscriber interface {
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
}

// MQTTLink receives JSON encoded Input messages. When no message arrived
// within the timeout the failsafe input is applied until the next one.
type MQTTLink struct {
	clock   clock.Clock
	timeout uint64

	mu       sync.Mutex
	latest   Input
	received uint64
	seen     bool
	failsafe bool
}

// NewMQTTLink returns a link that starts in failsafe.
func NewMQTTLink(c clock.Clock, timeoutUS uint64) *MQTTLink {
	return &MQTTLink{clock: c, timeout: timeoutUS, failsafe: true}
}

// Subscribe starts receiving inputs on topic.
func (l *MQTTLink) Subscribe(s Subscriber, topic string) error {
	token := s.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		l.Handle(msg.Payload())
	})
	if token.Wait() && token.Error() != nil {
		return errors.Wrapf(token.Error(), "subscribe %s", topic)
	}
	log.Infof("controller: listening on %s", topic)
	return nil
}

// Handle decodes one controller message.
func (l *MQTTLink) Handle(payload []byte) {
	var in Input
	if err := json.Unmarshal(payload, &in); err != nil {
		log.Debugf("controller: bad message: %v", err)
		return
	}
	now := l.clock.Now()
	l.mu.Lock()
	l.latest = in
	l.received = now
	l.seen = true
	l.mu.Unlock()
}

// Poll updates the failsafe state. A message received after now, i.e.
// between the caller's clock read and the lock, counts as fresh.
func (l *MQTTLink) Poll(now uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lost := !l.seen || (now > l.received && now-l.received > l.timeout)
	if lost == l.failsafe {
		return
	}
	l.failsafe = lost
	if lost {
		log.Warn("controller: link lost, failsafe")
	} else {
		log.Info("controller: link up")
	}
}

// Input returns the latest input, or Failsafe while the link is lost.
func (l *MQTTLink) Input() Input {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failsafe {
		return Failsafe
	}
	return l.latest
}

// Lost reports whether the failsafe is active.
func (l *MQTTLink) Lost() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.failsafe
}
