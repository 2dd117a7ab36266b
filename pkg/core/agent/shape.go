package agent

import (
	"github.com/owui-labs/voicegate/pkg/core/telemetry"
)

// shapeEvent converts a raw engine event into its typed telemetry form.
// Free-text fields are clipped so envelopes stay bounded. Unknown kinds
// are dropped.
func shapeEvent(raw EngineEvent) telemetry.Event {
	d := raw.Data
	switch raw.Kind {
	case EngineAgentStateChanged:
		return &telemetry.AgentStateChangedEvent{
			OldState: str(d, "old_state"),
			NewState: str(d, "new_state"),
		}
	case EngineUserStateChanged:
		return &telemetry.UserStateChangedEvent{
			OldState: str(d, "old_state"),
			NewState: str(d, "new_state"),
		}
	case EngineUserInputTranscribed:
		return &telemetry.UserInputTranscribedEvent{
			Transcript: telemetry.Clip(str(d, "transcript")),
			IsFinal:    boolean(d, "is_final"),
			Language:   str(d, "language"),
		}
	case EngineConversationItem:
		return &telemetry.ConversationItemAddedEvent{
			ID:          str(d, "id"),
			Role:        str(d, "role"),
			Text:        telemetry.Clip(str(d, "text")),
			Interrupted: boolean(d, "interrupted"),
			CreatedAt:   i64(d, "created_at"),
		}
	case EngineFalseInterruption:
		return &telemetry.AgentFalseInterruptionEvent{
			Message:           telemetry.Clip(str(d, "message")),
			ExtraInstructions: telemetry.Clip(str(d, "extra_instructions")),
		}
	case EngineToolsExecuted:
		return &telemetry.FunctionToolsExecutedEvent{
			FunctionCalls:       toolCalls(d["function_calls"]),
			FunctionCallOutputs: toolOutputs(d["function_call_outputs"]),
			CreatedAt:           i64(d, "created_at"),
		}
	case EngineMetricsCollected:
		metrics, _ := d["metrics"].(map[string]any)
		return &telemetry.MetricsCollectedEvent{Metrics: metrics}
	case EngineSpeechCreated:
		speech, _ := d["speech"].(map[string]any)
		return &telemetry.SpeechCreatedEvent{
			UserInitiated: boolean(d, "user_initiated"),
			Source:        str(d, "source"),
			Speech:        speech,
			CreatedAt:     i64(d, "created_at"),
		}
	case EngineError:
		return &telemetry.ErrorEvent{
			Message:     telemetry.Clip(str(d, "message")),
			Recoverable: boolean(d, "recoverable"),
			Source:      str(d, "source"),
			Detail:      telemetry.Clip(str(d, "error_detail")),
		}
	case EngineClose:
		return &telemetry.CloseEvent{
			Reason:    str(d, "reason"),
			Error:     str(d, "error"),
			CreatedAt: i64(d, "created_at"),
		}
	default:
		return nil
	}
}

func toolCalls(v any) []telemetry.ToolCall {
	raw, ok := v.([]map[string]any)
	if !ok {
		return nil
	}
	out := make([]telemetry.ToolCall, 0, len(raw))
	for _, m := range raw {
		out = append(out, telemetry.ToolCall{
			Name:      str(m, "name"),
			CallID:    str(m, "call_id"),
			Arguments: telemetry.Clip(str(m, "arguments")),
			CreatedAt: i64(m, "created_at"),
		})
	}
	return out
}

func toolOutputs(v any) []telemetry.ToolOutput {
	raw, ok := v.([]map[string]any)
	if !ok {
		return nil
	}
	out := make([]telemetry.ToolOutput, 0, len(raw))
	for _, m := range raw {
		out = append(out, telemetry.ToolOutput{
			Name:      str(m, "name"),
			CallID:    str(m, "call_id"),
			IsError:   boolean(m, "is_error"),
			Output:    telemetry.Clip(str(m, "output")),
			CreatedAt: i64(m, "created_at"),
		})
	}
	return out
}

func str(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func boolean(m map[string]any, key string) bool {
	b, _ := m[key].(bool)
	return b
}

func i64(m map[string]any, key string) int64 {
	switch v := m[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}
