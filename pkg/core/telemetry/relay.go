package telemetry

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// ClipLen bounds free-form text fields (messages, tool arguments, tool
// outputs) before transmission.
const ClipLen = 800

// Clip truncates s to ClipLen runes with an ellipsis marker.
func Clip(s string) string {
	runes := []rune(s)
	if len(runes) <= ClipLen {
		return s
	}
	return string(runes[:ClipLen]) + "…"
}

// Publisher publishes one payload on a data topic. Implemented by the room
// transport's local participant.
type Publisher interface {
	PublishData(ctx context.Context, payload []byte, topic string, reliable bool) error
}

// Tags are the model identifiers injected into every outbound envelope.
type Tags struct {
	AgentName string
	LLMModel  string
	STTModel  string
	TTSModel  string
}

// Config configures a Relay.
type Config struct {
	Publisher Publisher
	Topic     string // empty disables the relay
	Tags      Tags
	Logger    *slog.Logger
	QueueSize int // defaults to 256

	// Now overrides the timestamp source in tests.
	Now func() time.Time

	// PublishTimeout bounds one publish call. Defaults to 5s.
	PublishTimeout time.Duration
}

// Relay publishes session lifecycle events on a fixed outbound topic.
// Emit never blocks the caller: events flow through a bounded queue drained
// by one background worker, and the queue drops on overflow. Publish
// failures are logged and never retried.
type Relay struct {
	cfg    Config
	queue  chan Event
	done   chan struct{}
	wg     sync.WaitGroup
	closed atomic.Bool

	dropped atomic.Int64
}

// NewRelay builds a relay and starts its worker. Close must be called to
// stop it. A nil publisher or empty topic yields a disabled relay whose
// Emit is a no-op.
func NewRelay(cfg Config) *Relay {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 5 * time.Second
	}

	r := &Relay{
		cfg:   cfg,
		queue: make(chan Event, cfg.QueueSize),
		done:  make(chan struct{}),
	}
	if r.enabled() {
		r.wg.Add(1)
		go r.run()
	}
	return r
}

func (r *Relay) enabled() bool {
	return r.cfg.Publisher != nil && r.cfg.Topic != ""
}

// Emit enqueues an event for publication. It never blocks and never fails;
// when the queue is full the event is dropped and counted.
func (r *Relay) Emit(ev Event) {
	if r == nil || ev == nil || !r.enabled() || r.closed.Load() {
		return
	}
	select {
	case r.queue <- ev:
	default:
		r.dropped.Add(1)
	}
}

// Dropped returns the number of events discarded due to queue overflow.
func (r *Relay) Dropped() int64 {
	if r == nil {
		return 0
	}
	return r.dropped.Load()
}

// Close stops the worker after draining events already queued.
func (r *Relay) Close() {
	if r == nil || !r.closed.CompareAndSwap(false, true) {
		return
	}
	close(r.done)
	r.wg.Wait()
}

func (r *Relay) run() {
	defer r.wg.Done()
	for {
		select {
		case ev := <-r.queue:
			r.publish(ev)
		case <-r.done:
			// Drain what is already queued, then stop.
			for {
				select {
				case ev := <-r.queue:
					r.publish(ev)
				default:
					return
				}
			}
		}
	}
}

type envelope struct {
	Type      string  `json:"type"`
	Event     string  `json:"event"`
	Data      Event   `json:"data"`
	TS        float64 `json:"ts"`
	AgentName string  `json:"agent_name"`
	LLMModel  string  `json:"llm_model"`
	STTModel  string  `json:"stt_model"`
	TTSModel  string  `json:"tts_model"`
}

func (r *Relay) publish(ev Event) {
	payload, err := json.Marshal(envelope{
		Type:      EnvelopeType,
		Event:     ev.EventType(),
		Data:      ev,
		TS:        float64(r.cfg.Now().UnixNano()) / float64(time.Second),
		AgentName: r.cfg.Tags.AgentName,
		LLMModel:  r.cfg.Tags.LLMModel,
		STTModel:  r.cfg.Tags.STTModel,
		TTSModel:  r.cfg.Tags.TTSModel,
	})
	if err != nil {
		r.cfg.Logger.Error("telemetry marshal failed", "event", ev.EventType(), "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.PublishTimeout)
	defer cancel()
	if err := r.cfg.Publisher.PublishData(ctx, payload, r.cfg.Topic, true); err != nil {
		r.cfg.Logger.Error("publish_data failed", "topic", r.cfg.Topic, "event", ev.EventType(), "error", err)
	}
}
