// Package settings validates and (de)serializes per-room voice settings.
// It is pure: no I/O, no logging. The gateway uses it to build room metadata
// and the agent uses it to seed a live session from that metadata.
package settings

import (
	"fmt"
	"strings"
)

const (
	// MaxTTSVoiceLen bounds the tts_voice identifier accepted at the boundary.
	MaxTTSVoiceLen = 256

	TurnDetectionML  = "ml"
	TurnDetectionSTT = "stt"

	LLMModelGLM46 = "zai-glm-4.6"
	LLMModelGLM47 = "zai-glm-4.7"
)

// Settings is the flat per-room voice settings object. Every field is
// optional; an absent field means "use the provider default". Fields are
// declared in metadata key order so encoded output is byte-stable.
type Settings struct {
	AllowInterruptions      *bool    `json:"allow_interruptions,omitempty"`
	LLMModel                string   `json:"llm_model,omitempty"`
	MaxEndpointingDelay     *float64 `json:"max_endpointing_delay,omitempty"`
	MinEndpointingDelay     *float64 `json:"min_endpointing_delay,omitempty"`
	MinInterruptionDuration *float64 `json:"min_interruption_duration,omitempty"`
	MinInterruptionWords    *int     `json:"min_interruption_words,omitempty"`
	TTSVoice                string   `json:"tts_voice,omitempty"`
	TurnDetection           string   `json:"turn_detection,omitempty"`
}

// IsZero reports whether no setting is present.
func (s Settings) IsZero() bool {
	return s.AllowInterruptions == nil &&
		s.LLMModel == "" &&
		s.MaxEndpointingDelay == nil &&
		s.MinEndpointingDelay == nil &&
		s.MinInterruptionDuration == nil &&
		s.MinInterruptionWords == nil &&
		s.TTSVoice == "" &&
		s.TurnDetection == ""
}

// InvalidSettingsError rejects a raw settings value at the boundary.
type InvalidSettingsError struct {
	Param   string
	Message string
}

func (e *InvalidSettingsError) Error() string {
	if e == nil {
		return ""
	}
	if e.Param == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Param)
}

func invalid(message, param string) *InvalidSettingsError {
	return &InvalidSettingsError{Param: param, Message: message}
}

// Params is the raw, caller-supplied settings input. Numeric range gating
// ([0,10] seconds, [0,50] words) happens at the HTTP boundary before Build;
// Build only performs normalization, canonicalization and the cross-field
// min/max endpointing check.
type Params struct {
	LLMModel                string
	TurnDetection           string
	AllowInterruptions      *bool
	MinEndpointingDelay     *float64
	MaxEndpointingDelay     *float64
	MinInterruptionDuration *float64
	MinInterruptionWords    *int
	TTSVoice                string
}

// Build validates raw params into canonical Settings. Checks run in a fixed
// order and the first failure wins; an inverted endpointing-delay pair is
// rejected here, never swapped.
func Build(p Params) (Settings, error) {
	var out Settings

	if model := strings.TrimSpace(p.LLMModel); model != "" {
		canonical, ok := CanonicalLLMModel(model)
		if !ok {
			return Settings{}, invalid("invalid llm_model (allowed: glm-4.6, glm-4.7)", "llm_model")
		}
		out.LLMModel = canonical
	}

	if mode := strings.TrimSpace(p.TurnDetection); mode != "" {
		canonical, ok := CanonicalTurnDetection(mode)
		if !ok {
			return Settings{}, invalid("invalid turn_detection (allowed: stt, ml)", "turn_detection")
		}
		out.TurnDetection = canonical
	}

	if voice := strings.TrimSpace(p.TTSVoice); voice != "" {
		if len(voice) > MaxTTSVoiceLen {
			return Settings{}, invalid("tts_voice is too long", "tts_voice")
		}
		out.TTSVoice = voice
	}

	out.AllowInterruptions = p.AllowInterruptions
	out.MinEndpointingDelay = p.MinEndpointingDelay
	out.MaxEndpointingDelay = p.MaxEndpointingDelay
	out.MinInterruptionDuration = p.MinInterruptionDuration
	out.MinInterruptionWords = p.MinInterruptionWords

	if out.MinEndpointingDelay != nil && out.MaxEndpointingDelay != nil &&
		*out.MinEndpointingDelay > *out.MaxEndpointingDelay {
		return Settings{}, invalid(
			"invalid endpointing delays (min_endpointing_delay > max_endpointing_delay)",
			"min_endpointing_delay",
		)
	}

	return out, nil
}

// CanonicalLLMModel maps the accepted llm_model spellings to their canonical
// identifier. Only the two GLM releases are served.
func CanonicalLLMModel(raw string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "4.6", "glm4.6", "glm-4.6", LLMModelGLM46:
		return LLMModelGLM46, true
	case "4.7", "glm4.7", "glm-4.7", LLMModelGLM47:
		return LLMModelGLM47, true
	default:
		return "", false
	}
}

// CanonicalTurnDetection maps the accepted turn_detection spellings to the
// canonical mode.
func CanonicalTurnDetection(raw string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case TurnDetectionML, "multilingual":
		return TurnDetectionML, true
	case TurnDetectionSTT:
		return TurnDetectionSTT, true
	default:
		return "", false
	}
}
