// Package telemetry forwards session lifecycle events to an outbound data
// topic as structured messages. Delivery is best effort: events are
// observability, not a delivery guarantee.
package telemetry

// EnvelopeType is the "type" field of every outbound telemetry message.
const EnvelopeType = "owui.voice.event"

// Event is the closed set of session lifecycle events the relay publishes.
type Event interface {
	// EventType returns the event name used in the wire envelope.
	EventType() string
}

// AgentStartingEvent is emitted once, before the session starts, with the
// resolved session tuning.
type AgentStartingEvent struct {
	TurnDetection string         `json:"turn_detection"`
	SessionOpts   map[string]any `json:"session_kwargs,omitempty"`
	TTSVoice      string         `json:"tts_voice,omitempty"`
	LLMModel      string         `json:"llm_model"`
	STTModel      string         `json:"stt_model"`
	STTLanguage   string         `json:"stt_language,omitempty"`
	TTSModel      string         `json:"tts_model"`
}

func (e *AgentStartingEvent) EventType() string { return "agent_starting" }

// AgentStateChangedEvent reports an agent state transition.
type AgentStateChangedEvent struct {
	OldState string `json:"old_state"`
	NewState string `json:"new_state"`
}

func (e *AgentStateChangedEvent) EventType() string { return "agent_state_changed" }

// UserStateChangedEvent reports a user speaking/listening transition.
type UserStateChangedEvent struct {
	OldState string `json:"old_state"`
	NewState string `json:"new_state"`
}

func (e *UserStateChangedEvent) EventType() string { return "user_state_changed" }

// UserInputTranscribedEvent carries partial and final user transcripts.
type UserInputTranscribedEvent struct {
	Transcript string `json:"transcript"`
	IsFinal    bool   `json:"is_final"`
	Language   string `json:"language,omitempty"`
}

func (e *UserInputTranscribedEvent) EventType() string { return "user_input_transcribed" }

// ConversationItemAddedEvent is a compact view of a new conversation item.
// Only a compact view is sent to keep payloads bounded.
type ConversationItemAddedEvent struct {
	ID          string `json:"id,omitempty"`
	Role        string `json:"role,omitempty"`
	Text        string `json:"text,omitempty"`
	Interrupted bool   `json:"interrupted,omitempty"`
	CreatedAt   int64  `json:"created_at,omitempty"`
}

func (e *ConversationItemAddedEvent) EventType() string { return "conversation_item_added" }

// AgentFalseInterruptionEvent reports speech that was detected as an
// interruption but dismissed.
type AgentFalseInterruptionEvent struct {
	Message           string `json:"message,omitempty"`
	ExtraInstructions string `json:"extra_instructions,omitempty"`
}

func (e *AgentFalseInterruptionEvent) EventType() string { return "agent_false_interruption" }

// ToolCall is one executed tool invocation inside a
// FunctionToolsExecutedEvent.
type ToolCall struct {
	Name      string `json:"name,omitempty"`
	CallID    string `json:"call_id,omitempty"`
	Arguments string `json:"arguments,omitempty"`
	CreatedAt int64  `json:"created_at,omitempty"`
}

// ToolOutput is the result of one executed tool invocation.
type ToolOutput struct {
	Name      string `json:"name,omitempty"`
	CallID    string `json:"call_id,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
	Output    string `json:"output,omitempty"`
	CreatedAt int64  `json:"created_at,omitempty"`
}

// FunctionToolsExecutedEvent reports a batch of tool calls and their outputs.
type FunctionToolsExecutedEvent struct {
	FunctionCalls       []ToolCall   `json:"function_calls"`
	FunctionCallOutputs []ToolOutput `json:"function_call_outputs"`
	CreatedAt           int64        `json:"created_at,omitempty"`
}

func (e *FunctionToolsExecutedEvent) EventType() string { return "function_tools_executed" }

// MetricsCollectedEvent forwards provider latency/usage metrics as-is.
type MetricsCollectedEvent struct {
	Metrics map[string]any `json:"metrics"`
}

func (e *MetricsCollectedEvent) EventType() string { return "metrics_collected" }

// SpeechCreatedEvent reports a new assistant speech handle.
type SpeechCreatedEvent struct {
	UserInitiated bool           `json:"user_initiated"`
	Source        string         `json:"source,omitempty"`
	Speech        map[string]any `json:"speech,omitempty"`
	CreatedAt     int64          `json:"created_at,omitempty"`
}

func (e *SpeechCreatedEvent) EventType() string { return "speech_created" }

// ErrorEvent reports a recoverable in-session error.
type ErrorEvent struct {
	Message     string `json:"message,omitempty"`
	Recoverable bool   `json:"recoverable,omitempty"`
	Source      string `json:"source,omitempty"`
	Detail      string `json:"error_detail,omitempty"`
}

func (e *ErrorEvent) EventType() string { return "error" }

// CloseEvent is the final event of a session.
type CloseEvent struct {
	Reason    string `json:"reason"`
	Error     string `json:"error,omitempty"`
	CreatedAt int64  `json:"created_at,omitempty"`
}

func (e *CloseEvent) EventType() string { return "close" }

// ContextSetEvent reports a successful context-ledger mutation.
type ContextSetEvent struct {
	Mode       string `json:"mode"`
	Chars      int    `json:"chars"`
	ID         string `json:"id,omitempty"`
	Appended   bool   `json:"appended"`
	Truncated  bool   `json:"truncated"`
	MaxChars   int    `json:"max_chars"`
	TotalChars int    `json:"total_chars"`
	RequestID  string `json:"request_id,omitempty"`
}

func (e *ContextSetEvent) EventType() string { return "context_set" }

// ContextClearedEvent reports that all injected context was removed.
type ContextClearedEvent struct {
	Mode      string `json:"mode,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func (e *ContextClearedEvent) EventType() string { return "context_cleared" }

// ContextErrorEvent reports a rejected or failed context operation.
type ContextErrorEvent struct {
	Message   string `json:"message"`
	MaxChars  int    `json:"max_chars,omitempty"`
	Chars     int    `json:"chars,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func (e *ContextErrorEvent) EventType() string { return "context_error" }
