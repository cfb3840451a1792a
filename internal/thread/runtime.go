// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package thread

import (
	"context"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Runtime owns every periodic thread of the process. Threads stop in
// reverse spawn order, so a thread can rely on the ones spawned before it
// outliving it.
type Runtime struct {
	mu      sync.Mutex
	threads []*Thread
	group   errgroup.Group
}

// NewRuntime returns an empty runtime.
func NewRuntime() *Runtime {
	return &Runtime{}
}

// Spawn starts t and takes ownership of it.
func (r *Runtime) Spawn(t *Thread) {
	r.mu.Lock()
	r.threads = append(r.threads, t)
	r.mu.Unlock()

	t.Start()
	r.group.Go(func() error {
		<-t.Done()
		return t.Err()
	})
}

// Threads returns the owned threads in spawn order.
func (r *Runtime) Threads() []*Thread {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.threads)
}

// StopAll stops every thread, last spawned first, and returns the first
// fault any of them ended with.
func (r *Runtime) StopAll(ctx context.Context) error {
	threads := r.Threads()
	for i := len(threads) - 1; i >= 0; i-- {
		if err := threads[i].StopContext(ctx); err != nil {
			return err
		}
	}
	return r.group.Wait()
}
