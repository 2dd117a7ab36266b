package settings

import (
	"encoding/json"
	"strings"
)

// MetadataKey is the room-metadata key the settings object is stored under.
const MetadataKey = "owui_voice"

type metadataEnvelope struct {
	OWUIVoice Settings `json:"owui_voice"`
}

// EncodeMetadata serializes settings for storage as room metadata. An empty
// settings object encodes to the empty string ("use defaults"). Encoding is
// deterministic: field order is fixed, so repeated encodes of equal input
// are byte-identical. The reconciler relies on that for its equality check.
func EncodeMetadata(s Settings) string {
	if s.IsZero() {
		return ""
	}
	// Marshal of a struct cannot fail for these field types.
	raw, _ := json.Marshal(metadataEnvelope{OWUIVoice: s})
	return string(raw)
}

// DecodeMetadata parses room metadata back into Settings. It is lenient by
// contract: missing, malformed or wrongly-shaped metadata yields the zero
// Settings, because the agent must still start with defaults when the room
// carries garbage.
func DecodeMetadata(raw string) Settings {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Settings{}
	}

	var parsed map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return Settings{}
	}
	inner, ok := parsed[MetadataKey]
	if !ok {
		return Settings{}
	}

	var fields map[string]any
	if err := json.Unmarshal(inner, &fields); err != nil {
		return Settings{}
	}

	var s Settings
	if v, ok := CoerceBool(fields["allow_interruptions"]); ok {
		s.AllowInterruptions = &v
	}
	if raw, ok := fields["llm_model"].(string); ok {
		if canonical, ok := CanonicalLLMModel(raw); ok {
			s.LLMModel = canonical
		}
	}
	if v, ok := CoerceFloat(fields["max_endpointing_delay"]); ok {
		s.MaxEndpointingDelay = &v
	}
	if v, ok := CoerceFloat(fields["min_endpointing_delay"]); ok {
		s.MinEndpointingDelay = &v
	}
	if v, ok := CoerceFloat(fields["min_interruption_duration"]); ok {
		s.MinInterruptionDuration = &v
	}
	if v, ok := CoerceInt(fields["min_interruption_words"]); ok {
		s.MinInterruptionWords = &v
	}
	if raw, ok := fields["tts_voice"].(string); ok {
		s.TTSVoice = strings.TrimSpace(raw)
	}
	if raw, ok := fields["turn_detection"].(string); ok {
		if canonical, ok := CanonicalTurnDetection(raw); ok {
			s.TurnDetection = canonical
		}
	}
	return s
}
