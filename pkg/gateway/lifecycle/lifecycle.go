// Package lifecycle tracks shutdown state for the portal process.
package lifecycle

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
)

// State flips readiness off ahead of shutdown and lets the server wait for
// requests that were already in flight when draining began.
type State struct {
	draining atomic.Bool
	inflight sync.WaitGroup
}

func New() *State { return &State{} }

// StartDrain marks the process as draining. Readiness probes fail from this
// point on; in-flight requests are allowed to finish.
func (s *State) StartDrain() { s.draining.Store(true) }

func (s *State) Draining() bool { return s.draining.Load() }

// Track wraps a handler so Wait can block until its requests complete.
func (s *State) Track(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.inflight.Add(1)
		defer s.inflight.Done()
		next.ServeHTTP(w, r)
	})
}

// Wait blocks until all tracked requests finish or ctx expires.
func (s *State) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
