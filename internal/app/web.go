// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/flight_computer/internal/flight"
	"github.com/relabs-tech/flight_computer/internal/sensors"
)

// StatusSource is what the status page and display read from.
type StatusSource interface {
	Status() flight.Status
	Misses() []sensors.DiscoveryMiss
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // local network only
	},
}

// MissInfo is a discovery miss as shown on the status page.
type MissInfo struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
	Error   string `json:"error"`
}

// DevicesResponse is the body of /api/devices.
type DevicesResponse struct {
	Devices []sensors.DeviceInfo `json:"devices"`
	Misses  []MissInfo           `json:"misses"`
}

// Web serves the live status of the flight core:
//
//	/api/status   flight.Status as JSON
//	/api/devices  detected sensors and discovery misses
//	/ws           flight.Status pushed every interval
//
// Anything else is served from the static directory when it exists.
type Web struct {
	src      StatusSource
	interval time.Duration
	static   string
	srv      *http.Server

	// done is closed by Shutdown to end the websocket pushes, which the
	// http server no longer tracks once hijacked.
	done     chan struct{}
	doneOnce sync.Once
}

// NewWeb returns a server listening on port once started.
func NewWeb(src StatusSource, port int, static string, interval time.Duration) *Web {
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	w := &Web{src: src, interval: interval, static: static, done: make(chan struct{})}
	w.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           w.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return w
}

// Handler returns the routes.
func (w *Web) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", w.handleStatus)
	mux.HandleFunc("/api/devices", w.handleDevices)
	mux.HandleFunc("/ws", w.handleWS)
	if w.static != "" {
		if fi, err := os.Stat(w.static); err == nil && fi.IsDir() {
			mux.Handle("/", http.FileServer(http.Dir(w.static)))
		} else {
			log.Debugf("web: no static directory %q", w.static)
		}
	}
	return mux
}

// ListenAndServe blocks until the server is shut down.
func (w *Web) ListenAndServe() error {
	log.Infof("web: listening on %s", w.srv.Addr)
	if err := w.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "web")
	}
	return nil
}

// Shutdown stops accepting connections, closes the websockets and waits
// for active requests.
func (w *Web) Shutdown(ctx context.Context) error {
	w.doneOnce.Do(func() { close(w.done) })
	return w.srv.Shutdown(ctx)
}

func writeJSON(rw http.ResponseWriter, v any) {
	rw.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(rw).Encode(v); err != nil {
		log.Debugf("web: json encode: %v", err)
	}
}

func (w *Web) handleStatus(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(rw, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(rw, w.src.Status())
}

func (w *Web) handleDevices(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(rw, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	resp := DevicesResponse{
		Devices: w.src.Status().Devices,
		Misses:  []MissInfo{},
	}
	for _, m := range w.src.Misses() {
		info := MissInfo{Address: fmt.Sprintf("0x%02X", m.Address), Name: m.Name}
		if m.Err != nil {
			info.Error = m.Err.Error()
		}
		resp.Misses = append(resp.Misses, info)
	}
	writeJSON(rw, resp)
}

func (w *Web) handleWS(rw http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(rw, r, nil)
	if err != nil {
		log.Warnf("web: websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	// The reader only notices the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Debugf("web: websocket: %v", err)
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		if err := conn.WriteJSON(w.src.Status()); err != nil {
			log.Debugf("web: websocket write: %v", err)
			return
		}
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case <-w.done:
			msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
			return
		case <-ticker.C:
		}
	}
}
