package lifecycle

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestDrainFlag(t *testing.T) {
	t.Parallel()

	s := New()
	if s.Draining() {
		t.Fatal("fresh state is draining")
	}
	s.StartDrain()
	if !s.Draining() {
		t.Fatal("StartDrain did not mark draining")
	}
}

func TestWait_BlocksOnInFlightRequest(t *testing.T) {
	t.Parallel()

	s := New()
	release := make(chan struct{})
	entered := make(chan struct{})
	h := s.Track(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
	}))

	go h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := s.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Wait with held request: err = %v, want deadline exceeded", err)
	}

	close(release)
	ctx2, cancel2 := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel2()
	if err := s.Wait(ctx2); err != nil {
		t.Fatalf("Wait after release: %v", err)
	}
}

func TestWait_ImmediateWhenIdle(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := New().Wait(ctx); err != nil {
		t.Fatalf("Wait on idle state: %v", err)
	}
}
