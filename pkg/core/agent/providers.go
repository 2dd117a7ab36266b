package agent

import "context"

// The speech and language providers are external collaborators. The session
// only needs their capabilities, not their configuration surface.

// Transcriber converts captured audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// Completer produces a reply for a user turn.
type Completer interface {
	Complete(ctx context.Context, userTurn string) (string, error)
}

// Speaker renders agent text as audio.
type Speaker interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Engine is the running voice pipeline built from the providers above.
// It is the session's view of the provider runtime: it accepts injected
// conversational context, can speak on demand, and reports lifecycle
// events on a channel that closes when the pipeline shuts down.
type Engine interface {
	// Start launches the pipeline with the resolved session options.
	Start(ctx context.Context, opts SessionOptions) error
	// ApplyContext replaces the injected reference context with the given
	// rendered items, in order.
	ApplyContext(ctx context.Context, items []string) error
	// Say speaks text without adding it to the conversation history.
	Say(ctx context.Context, text string) error
	// Events delivers lifecycle events until Close.
	Events() <-chan EngineEvent
	Close() error
}

// EngineEvent is a raw pipeline event before telemetry shaping.
type EngineEvent struct {
	Kind string
	Data map[string]any
}

// Engine event kinds.
const (
	EngineAgentStateChanged    = "agent_state_changed"
	EngineUserStateChanged     = "user_state_changed"
	EngineUserInputTranscribed = "user_input_transcribed"
	EngineConversationItem     = "conversation_item_added"
	EngineFalseInterruption    = "agent_false_interruption"
	EngineToolsExecuted        = "function_tools_executed"
	EngineMetricsCollected     = "metrics_collected"
	EngineSpeechCreated        = "speech_created"
	EngineError                = "error"
	EngineClose                = "close"
)
