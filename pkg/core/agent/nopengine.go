package agent

import (
	"context"
	"sync"
	"time"
)

// NopEngine is a provider-less pipeline. It accepts context and speech
// requests without doing audio work and emits a close event on shutdown.
// Useful for control-plane development and tests; real deployments inject
// an engine backed by live speech providers.
type NopEngine struct {
	mu     sync.Mutex
	items  []string
	events chan EngineEvent
	closed bool
}

func NewNopEngine() *NopEngine {
	return &NopEngine{events: make(chan EngineEvent, 16)}
}

func (e *NopEngine) Start(ctx context.Context, opts SessionOptions) error { return nil }

func (e *NopEngine) ApplyContext(ctx context.Context, items []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.items = append([]string(nil), items...)
	return nil
}

// Context returns the last applied context items.
func (e *NopEngine) Context() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.items...)
}

func (e *NopEngine) Say(ctx context.Context, text string) error { return nil }

func (e *NopEngine) Events() <-chan EngineEvent { return e.events }

func (e *NopEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.events <- EngineEvent{
		Kind: EngineClose,
		Data: map[string]any{"reason": "engine closed", "created_at": time.Now().Unix()},
	}
	close(e.events)
	return nil
}
