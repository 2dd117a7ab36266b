// Package control gates and routes inbound control-plane messages from the
// room data channel to the context ledger. It protects the session against
// malformed payloads, wrong topics and unauthorized senders without ever
// blocking packet delivery.
package control

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/owui-labs/voicegate/pkg/core/ledger"
	"github.com/owui-labs/voicegate/pkg/core/telemetry"
	"github.com/owui-labs/voicegate/pkg/room/rtc"
)

const (
	// MessageType is the "type" field of every control message.
	MessageType = "owui.voice.control"

	// DefaultTopic is the designated control data topic.
	DefaultTopic = "owui.voice.control"

	// IdentityPrefix restricts control ops to senders minted by the portal.
	IdentityPrefix = "owui:"

	OpContextSet   = "context_set"
	OpContextClear = "context_clear"
)

// Message is the inbound control payload. It is transient: it exists only
// for the duration of handling.
type Message struct {
	Type      string `json:"type"`
	Op        string `json:"op"`
	RequestID string `json:"request_id,omitempty"`
	Text      string `json:"text,omitempty"`
	Mode      string `json:"mode,omitempty"`
}

// ContextStore is the ledger surface the channel dispatches to.
type ContextStore interface {
	Set(ctx context.Context, text, mode, requestID string) ledger.Outcome
	Clear(ctx context.Context, requestID string) ledger.Outcome
}

// Notifier emits telemetry events for rejected payloads.
type Notifier interface {
	Emit(ev telemetry.Event)
}

// Config configures a Channel.
type Config struct {
	Topic          string // defaults to DefaultTopic
	IdentityPrefix string // defaults to IdentityPrefix
	Ledger         ContextStore
	Notifier       Notifier
	Logger         *slog.Logger
	QueueSize      int // defaults to 128

	// BaseContext parents the per-operation contexts handed to the ledger.
	BaseContext context.Context
}

// Channel consumes inbound control packets. HandleData only enqueues; a
// dedicated worker goroutine does the parsing and ledger dispatch, so a
// slow or faulted control operation cannot stall delivery for other topics.
type Channel struct {
	cfg    Config
	tasks  chan rtc.DataPacket
	done   chan struct{}
	wg     sync.WaitGroup
	closed atomic.Bool

	dropped atomic.Int64
}

// New builds a channel and starts its worker. Close must be called.
func New(cfg Config) *Channel {
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.IdentityPrefix == "" {
		cfg.IdentityPrefix = IdentityPrefix
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 128
	}
	if cfg.BaseContext == nil {
		cfg.BaseContext = context.Background()
	}

	c := &Channel{
		cfg:   cfg,
		tasks: make(chan rtc.DataPacket, cfg.QueueSize),
		done:  make(chan struct{}),
	}
	c.wg.Add(1)
	go c.run()
	return c
}

// HandleData is the transport delivery callback. It never blocks: packets
// are queued for the worker, and dropped with a warning when the queue is
// full (the substrate delivers control packets at least once).
func (c *Channel) HandleData(pkt rtc.DataPacket) {
	if c == nil || c.closed.Load() {
		return
	}
	select {
	case c.tasks <- pkt:
	default:
		c.dropped.Add(1)
		c.cfg.Logger.Warn("control queue full, dropping packet",
			"topic", pkt.Topic, "identity", pkt.SenderIdentity)
	}
}

// Dropped returns the number of packets discarded due to queue overflow.
func (c *Channel) Dropped() int64 {
	if c == nil {
		return 0
	}
	return c.dropped.Load()
}

// Close stops the worker. Queued packets that have not started processing
// are discarded.
func (c *Channel) Close() {
	if c == nil || !c.closed.CompareAndSwap(false, true) {
		return
	}
	close(c.done)
	c.wg.Wait()
}

func (c *Channel) run() {
	defer c.wg.Done()
	for {
		select {
		case pkt := <-c.tasks:
			c.process(pkt)
		case <-c.done:
			return
		}
	}
}

// process applies the per-packet gating sequence: empty drop, topic check,
// identity check, JSON parse, type check, op dispatch. Every rejection is
// contained to the one packet; the session continues.
func (c *Channel) process(pkt rtc.DataPacket) {
	raw := strings.TrimSpace(string(pkt.Payload))
	if raw == "" {
		return
	}

	if pkt.Topic != c.cfg.Topic {
		// A control-shaped payload on the wrong topic is a likely client
		// misconfiguration. Warn, never process.
		if strings.Contains(raw, MessageType) {
			c.cfg.Logger.Warn("control payload received on wrong topic",
				"topic", pkt.Topic, "identity", pkt.SenderIdentity)
		}
		return
	}

	if pkt.SenderIdentity != "" && !strings.HasPrefix(pkt.SenderIdentity, c.cfg.IdentityPrefix) {
		c.cfg.Logger.Warn("ignoring control packet from unauthorized identity",
			"identity", pkt.SenderIdentity, "topic", pkt.Topic)
		return
	}

	var payload any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		c.emit(&telemetry.ContextErrorEvent{Message: "Invalid JSON control payload"})
		return
	}
	fields, ok := payload.(map[string]any)
	if !ok {
		return
	}
	if typ, _ := fields["type"].(string); typ != MessageType {
		// Unrelated payload shapes share the data channel; stay forward
		// compatible and ignore them.
		return
	}

	msg := Message{
		Type:      MessageType,
		Op:        strings.ToLower(strings.TrimSpace(stringField(fields, "op"))),
		RequestID: strings.TrimSpace(stringField(fields, "request_id")),
		Text:      stringField(fields, "text"),
		Mode:      strings.ToLower(strings.TrimSpace(stringField(fields, "mode"))),
	}
	if msg.Mode == "" {
		msg.Mode = ledger.ModeReplace
	}

	switch msg.Op {
	case OpContextSet:
		c.cfg.Logger.Info("control_context_set",
			"identity", pkt.SenderIdentity, "topic", pkt.Topic,
			"request_id", msg.RequestID, "chars", len(msg.Text), "mode", msg.Mode)
		c.cfg.Ledger.Set(c.cfg.BaseContext, msg.Text, msg.Mode, msg.RequestID)
	case OpContextClear:
		c.cfg.Logger.Info("control_context_clear",
			"identity", pkt.SenderIdentity, "topic", pkt.Topic, "request_id", msg.RequestID)
		c.cfg.Ledger.Clear(c.cfg.BaseContext, msg.RequestID)
	default:
		op := msg.Op
		if op == "" {
			op = "(empty)"
		}
		c.emit(&telemetry.ContextErrorEvent{
			Message:   fmt.Sprintf("Unknown control op: %s", op),
			RequestID: msg.RequestID,
		})
	}
}

func (c *Channel) emit(ev telemetry.Event) {
	if c.cfg.Notifier != nil {
		c.cfg.Notifier.Emit(ev)
	}
}

func stringField(fields map[string]any, key string) string {
	v, ok := fields[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64, bool:
		return fmt.Sprint(t)
	default:
		return ""
	}
}
