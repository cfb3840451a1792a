// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package telemetry

import (
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Publisher is the part of an MQTT client the black box needs.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Connect dials the broker and waits for the connection.
func Connect(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, errors.Wrapf(token.Error(), "mqtt connect %s", broker)
	}
	log.Infof("telemetry: connected to MQTT broker at %s", broker)
	return client, nil
}

const publishTimeout = time.Second

// MQTT publishes black box entries from a background goroutine. Entries
// are JSON encoded and published on prefix/<key>, with ':' in keys turned
// into topic levels. When the queue is full entries are dropped.
type MQTT struct {
	pub    Publisher
	prefix string
	queue  chan Entry

	dropped atomic.Uint64
	once    sync.Once
	done    chan struct{}
}

// NewMQTT starts the publishing goroutine.
func NewMQTT(pub Publisher, prefix string, size int) *MQTT {
	if size <= 0 {
		size = 1
	}
	m := &MQTT{
		pub:    pub,
		prefix: strings.TrimSuffix(prefix, "/"),
		queue:  make(chan Entry, size),
		done:   make(chan struct{}),
	}
	go m.run()
	return m
}

// Topic maps a black box key to its MQTT topic.
func (m *MQTT) Topic(key string) string {
	return m.prefix + "/" + strings.ReplaceAll(key, ":", "/")
}

func (m *MQTT) Enqueue(key string, value any) {
	select {
	case m.queue <- Entry{Key: key, Value: value}:
	default:
		if m.dropped.Add(1) == 1 {
			log.Warn("telemetry: queue full, dropping entries")
		}
	}
}

// Dropped returns how many entries were discarded on a full queue.
func (m *MQTT) Dropped() uint64 {
	return m.dropped.Load()
}

func (m *MQTT) run() {
	defer close(m.done)
	for e := range m.queue {
		payload, err := json.Marshal(e.Value)
		if err != nil {
			log.Warnf("telemetry: %s: %v", e.Key, err)
			continue
		}
		token := m.pub.Publish(m.Topic(e.Key), 0, false, payload)
		if !token.WaitTimeout(publishTimeout) {
			log.Debugf("telemetry: publish %s timed out", e.Key)
			continue
		}
		if err := token.Error(); err != nil {
			log.Debugf("telemetry: publish %s: %v", e.Key, err)
		}
	}
}

// Close flushes the queue and stops the goroutine. Enqueue must not be
// called afterwards.
func (m *MQTT) Close() {
	m.once.Do(func() { close(m.queue) })
	<-m.done
}
