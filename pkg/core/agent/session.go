package agent

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/owui-labs/voicegate/pkg/core/control"
	"github.com/owui-labs/voicegate/pkg/core/ledger"
	"github.com/owui-labs/voicegate/pkg/core/telemetry"
	"github.com/owui-labs/voicegate/pkg/room/rtc"
)

// SessionConfig wires one in-room session.
type SessionConfig struct {
	Room   rtc.Room
	Engine Engine

	Defaults       Defaults
	StartupMessage string
	STTLanguage    string

	TelemetryTopic  string // empty disables telemetry
	ControlTopic    string // defaults to control.DefaultTopic
	IdentityPrefix  string // defaults to control.IdentityPrefix
	MaxContextChars int    // <= 0 means ledger.DefaultMaxChars

	Logger *slog.Logger
}

// Session is one agent's run inside a room. It owns the context ledger,
// the control channel and the telemetry relay; the engine owns the audio
// pipeline.
type Session struct {
	cfg     SessionConfig
	opts    SessionOptions
	relay   *telemetry.Relay
	ledger  *ledger.Ledger
	control *control.Channel

	pumping  atomic.Bool
	pumpDone chan struct{}
}

// NewSession resolves options from the room's metadata and wires the
// control plane. Start must be called to begin the pipeline.
func NewSession(cfg SessionConfig) *Session {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	opts := OptionsFromMetadata(cfg.Room.Metadata(), cfg.Defaults)

	relay := telemetry.NewRelay(telemetry.Config{
		Publisher: cfg.Room,
		Topic:     cfg.TelemetryTopic,
		Tags: telemetry.Tags{
			AgentName: cfg.Room.LocalIdentity(),
			LLMModel:  opts.LLMModel,
			STTModel:  cfg.Defaults.STTModel,
			TTSModel:  cfg.Defaults.TTSModel,
		},
		Logger: cfg.Logger,
	})

	led := ledger.New(ledger.Config{
		MaxChars: cfg.MaxContextChars,
		Applier:  engineApplier{engine: cfg.Engine},
		Notifier: relay,
		Logger:   cfg.Logger,
	})

	ctl := control.New(control.Config{
		Topic:          cfg.ControlTopic,
		IdentityPrefix: cfg.IdentityPrefix,
		Ledger:         led,
		Notifier:       relay,
		Logger:         cfg.Logger,
	})

	return &Session{
		cfg:      cfg,
		opts:     opts,
		relay:    relay,
		ledger:   led,
		control:  ctl,
		pumpDone: make(chan struct{}),
	}
}

// Options returns the resolved session options.
func (s *Session) Options() SessionOptions { return s.opts }

// Start launches the engine and begins pumping its events to telemetry.
// The startup message is best effort; a synthesis failure is logged and
// the session continues.
func (s *Session) Start(ctx context.Context) error {
	s.relay.Emit(&telemetry.AgentStartingEvent{
		TurnDetection: s.opts.TurnDetection,
		SessionOpts:   s.sessionOptsLog(),
		TTSVoice:      s.opts.TTSVoice,
		LLMModel:      s.opts.LLMModel,
		STTModel:      s.cfg.Defaults.STTModel,
		STTLanguage:   s.cfg.STTLanguage,
		TTSModel:      s.cfg.Defaults.TTSModel,
	})

	s.cfg.Room.OnData(s.control.HandleData)

	if err := s.cfg.Engine.Start(ctx, s.opts); err != nil {
		return err
	}
	s.pumping.Store(true)
	go s.pump()

	if s.cfg.StartupMessage != "" {
		if err := s.cfg.Engine.Say(ctx, s.cfg.StartupMessage); err != nil {
			s.cfg.Logger.Error("startup message failed", "error", err)
		}
	}
	return nil
}

// Close tears down in dependency order: stop accepting control packets,
// stop the engine, then flush telemetry.
func (s *Session) Close() error {
	s.control.Close()
	err := s.cfg.Engine.Close()
	// The pump only runs after a successful Start; waiting on it when the
	// session never started would block forever.
	if s.pumping.Load() {
		<-s.pumpDone
	}
	s.relay.Close()
	return err
}

func (s *Session) sessionOptsLog() map[string]any {
	out := make(map[string]any)
	if s.opts.AllowInterruptions != nil {
		out["allow_interruptions"] = *s.opts.AllowInterruptions
	}
	if s.opts.MinEndpointingDelay != nil {
		out["min_endpointing_delay"] = *s.opts.MinEndpointingDelay
	}
	if s.opts.MaxEndpointingDelay != nil {
		out["max_endpointing_delay"] = *s.opts.MaxEndpointingDelay
	}
	if s.opts.MinInterruptionDuration != nil {
		out["min_interruption_duration"] = *s.opts.MinInterruptionDuration
	}
	if s.opts.MinInterruptionWords != nil {
		out["min_interruption_words"] = *s.opts.MinInterruptionWords
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// pump forwards engine events to the relay until the engine's event
// channel closes.
func (s *Session) pump() {
	defer close(s.pumpDone)
	for raw := range s.cfg.Engine.Events() {
		if ev := shapeEvent(raw); ev != nil {
			s.relay.Emit(ev)
		}
	}
}

// engineApplier renders ledger items for the engine's chat context.
type engineApplier struct {
	engine Engine
}

func (a engineApplier) ApplyContext(ctx context.Context, items []ledger.Item) error {
	rendered := make([]string, len(items))
	for i, it := range items {
		rendered[i] = it.Render()
	}
	return a.engine.ApplyContext(ctx, rendered)
}
