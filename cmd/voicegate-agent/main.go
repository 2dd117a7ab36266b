package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/owui-labs/voicegate/internal/dotenv"
	"github.com/owui-labs/voicegate/pkg/core/agent"
	"github.com/owui-labs/voicegate/pkg/core/control"
	"github.com/owui-labs/voicegate/pkg/room"
	"github.com/owui-labs/voicegate/pkg/room/rtc"
)

type agentConfig struct {
	WSURL     string
	APIKey    string
	APISecret string
	RoomName  string

	TelemetryTopic string
	ControlTopic   string
	IdentityPrefix string

	TurnDetection  string
	TTSVoice       string
	LLMModel       string
	STTModel       string
	STTLanguage    string
	TTSModel       string
	StartupMessage string
}

func loadAgentConfig() (agentConfig, error) {
	cfg := agentConfig{
		WSURL:          strings.TrimSpace(os.Getenv("LIVEKIT_URL")),
		APIKey:         strings.TrimSpace(os.Getenv("LIVEKIT_API_KEY")),
		APISecret:      strings.TrimSpace(os.Getenv("LIVEKIT_API_SECRET")),
		RoomName:       strings.TrimSpace(os.Getenv("LIVEKIT_ROOM")),
		TelemetryTopic: envOr("LIVEKIT_DEBUG_DATA_TOPIC", "owui.voice"),
		ControlTopic:   envOr("LIVEKIT_CONTROL_DATA_TOPIC", control.DefaultTopic),
		IdentityPrefix: envOr("OWUI_IDENTITY_PREFIX", control.IdentityPrefix),
		TurnDetection:  envOr("TURN_DETECTION", "ml"),
		TTSVoice:       strings.TrimSpace(os.Getenv("TTS_VOICE")),
		LLMModel:       envOr("LLM_MODEL", "zai-glm-4.6"),
		STTModel:       envOr("STT_MODEL", "ink-whisper"),
		STTLanguage:    envOr("STT_LANGUAGE", "en"),
		TTSModel:       envOr("TTS_MODEL", "sonic-2"),
		StartupMessage: strings.TrimSpace(os.Getenv("STARTUP_MESSAGE")),
	}
	if cfg.WSURL == "" {
		return agentConfig{}, errors.New("LIVEKIT_URL is required")
	}
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return agentConfig{}, errors.New("LIVEKIT_API_KEY and LIVEKIT_API_SECRET are required")
	}
	if cfg.RoomName == "" {
		return agentConfig{}, errors.New("LIVEKIT_ROOM is required")
	}
	return cfg, nil
}

func envOr(name, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return fallback
}

type agentDeps struct {
	loadConfig   func() (agentConfig, error)
	dial         func(ctx context.Context, cfg rtc.DialConfig) (rtc.Room, error)
	newEngine    func(cfg agentConfig) agent.Engine
	signalNotify func(chan<- os.Signal, ...os.Signal)
	signalStop   func(chan<- os.Signal)
}

func defaultAgentDeps() agentDeps {
	return agentDeps{
		loadConfig: loadAgentConfig,
		dial:       rtc.Dial,
		// The speech providers are wired by the deployment; the stock
		// binary runs the provider-less engine, which still serves the
		// full control plane.
		newEngine: func(agentConfig) agent.Engine { return agent.NewNopEngine() },
		signalNotify: func(c chan<- os.Signal, sig ...os.Signal) {
			signal.Notify(c, sig...)
		},
		signalStop: signal.Stop,
	}
}

func joinToken(cfg agentConfig) (string, string, error) {
	identity := "agent-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	token, err := room.NewAccessToken(cfg.APIKey, cfg.APISecret).
		WithIdentity(identity).
		WithName("voicegate agent").
		WithGrant(room.JoinGrant(cfg.RoomName)).
		WithTTL(2 * time.Hour).
		ToJWT()
	if err != nil {
		return "", "", err
	}
	return token, identity, nil
}

func runAgent(ctx context.Context, logger *slog.Logger, deps agentDeps) error {
	if deps.loadConfig == nil || deps.dial == nil || deps.newEngine == nil {
		return errors.New("missing dependency")
	}
	if deps.signalNotify == nil || deps.signalStop == nil {
		return errors.New("missing signal dependency")
	}
	if logger == nil {
		logger = slog.Default()
	}

	cfg, err := deps.loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	token, identity, err := joinToken(cfg)
	if err != nil {
		return fmt.Errorf("mint join token: %w", err)
	}

	joined, err := deps.dial(ctx, rtc.DialConfig{
		URL:    cfg.WSURL,
		Token:  token,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("join room: %w", err)
	}
	defer func() {
		if err := joined.Close(); err != nil {
			logger.Warn("leave room", "error", err)
		}
	}()

	logger.Info("joined room",
		"room", joined.Name(),
		"identity", identity,
		"metadata_bytes", len(joined.Metadata()),
	)

	session := agent.NewSession(agent.SessionConfig{
		Room:   joined,
		Engine: deps.newEngine(cfg),
		Defaults: agent.Defaults{
			TurnDetection: cfg.TurnDetection,
			TTSVoice:      cfg.TTSVoice,
			LLMModel:      cfg.LLMModel,
			STTModel:      cfg.STTModel,
			TTSModel:      cfg.TTSModel,
		},
		StartupMessage: cfg.StartupMessage,
		STTLanguage:    cfg.STTLanguage,
		TelemetryTopic: cfg.TelemetryTopic,
		ControlTopic:   cfg.ControlTopic,
		IdentityPrefix: cfg.IdentityPrefix,
		Logger:         logger,
	})

	if err := session.Start(ctx); err != nil {
		return fmt.Errorf("start session: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	deps.signalNotify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer deps.signalStop(sigCh)

	select {
	case <-ctx.Done():
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	if err := session.Close(); err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	logger.Info("session stopped", "room", joined.Name())
	return nil
}

func runMain(ctx context.Context, stderr io.Writer, deps agentDeps) int {
	if stderr == nil {
		stderr = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(stderr, nil))

	if err := dotenv.LoadFile(".env"); err != nil {
		fmt.Fprintf(stderr, "voicegate-agent: %v\n", err)
		return 1
	}

	if err := runAgent(ctx, logger, deps); err != nil {
		fmt.Fprintf(stderr, "voicegate-agent: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(runMain(context.Background(), os.Stderr, defaultAgentDeps()))
}
