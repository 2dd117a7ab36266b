package handlers

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/owui-labs/voicegate/pkg/core/settings"
)

const (
	maxDelaySeconds        = 10.0
	maxInterruptionWordsIn = 50
)

// settingsParams pulls the voice settings out of the request query. Range
// checks on the numeric knobs happen here, at the boundary that accepted
// them; shape and enum validation is the codec's job.
func settingsParams(q url.Values) (settings.Params, error) {
	p := settings.Params{
		LLMModel:      strings.TrimSpace(q.Get("llm_model")),
		TurnDetection: strings.TrimSpace(q.Get("turn_detection")),
		TTSVoice:      strings.TrimSpace(q.Get("tts_voice")),
	}

	if raw := strings.TrimSpace(q.Get("allow_interruptions")); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return settings.Params{}, &settings.InvalidSettingsError{Param: "allow_interruptions", Message: "must be a boolean"}
		}
		p.AllowInterruptions = &v
	}

	for _, f := range []struct {
		name string
		dst  **float64
	}{
		{"min_endpointing_delay", &p.MinEndpointingDelay},
		{"max_endpointing_delay", &p.MaxEndpointingDelay},
		{"min_interruption_duration", &p.MinInterruptionDuration},
	} {
		raw := strings.TrimSpace(q.Get(f.name))
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return settings.Params{}, &settings.InvalidSettingsError{Param: f.name, Message: "must be a number"}
		}
		if v < 0 || v > maxDelaySeconds {
			return settings.Params{}, &settings.InvalidSettingsError{Param: f.name, Message: "must be between 0 and 10"}
		}
		*f.dst = &v
	}

	if raw := strings.TrimSpace(q.Get("min_interruption_words")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return settings.Params{}, &settings.InvalidSettingsError{Param: "min_interruption_words", Message: "must be an integer"}
		}
		if v < 0 || v > maxInterruptionWordsIn {
			return settings.Params{}, &settings.InvalidSettingsError{Param: "min_interruption_words", Message: "must be between 0 and 50"}
		}
		p.MinInterruptionWords = &v
	}

	return p, nil
}
