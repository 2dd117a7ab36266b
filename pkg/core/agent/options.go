// Package agent runs the in-room voice session: it seeds session behavior
// from room metadata, wires the control channel and context ledger to the
// room's data channel, and streams lifecycle telemetry outward. The speech
// and language providers behind the session are consumed as opaque
// capability interfaces.
package agent

import (
	"github.com/owui-labs/voicegate/pkg/core/settings"
)

// Defaults supplies the process-level fallbacks used when room metadata
// does not override a knob.
type Defaults struct {
	TurnDetection string
	TTSVoice      string
	LLMModel      string
	STTModel      string
	TTSModel      string
}

// SessionOptions is the resolved per-session behavior, metadata overrides
// layered over process defaults.
type SessionOptions struct {
	TurnDetection           string
	AllowInterruptions      *bool
	MinEndpointingDelay     *float64
	MaxEndpointingDelay     *float64
	MinInterruptionDuration *float64
	MinInterruptionWords    *int
	TTSVoice                string
	LLMModel                string
}

const (
	maxDelaySeconds      = 10.0
	maxInterruptionWords = 50
)

// OptionsFromMetadata seeds session options from the room metadata written
// by the portal. Metadata is read once, at session start. Decoding is
// lenient: out-of-range numbers are dropped rather than failing the
// session, and an inverted endpointing-delay pair is swapped here because
// these values were already accepted upstream.
func OptionsFromMetadata(metadata string, defaults Defaults) SessionOptions {
	s := settings.DecodeMetadata(metadata)

	opts := SessionOptions{
		TurnDetection: defaults.TurnDetection,
		TTSVoice:      defaults.TTSVoice,
		LLMModel:      defaults.LLMModel,
	}
	if s.TurnDetection != "" {
		opts.TurnDetection = s.TurnDetection
	}
	if s.TTSVoice != "" {
		opts.TTSVoice = s.TTSVoice
	}
	if s.LLMModel != "" {
		opts.LLMModel = s.LLMModel
	}
	opts.AllowInterruptions = s.AllowInterruptions
	opts.MinEndpointingDelay = gateDelay(s.MinEndpointingDelay)
	opts.MaxEndpointingDelay = gateDelay(s.MaxEndpointingDelay)
	opts.MinInterruptionDuration = gateDelay(s.MinInterruptionDuration)
	if s.MinInterruptionWords != nil {
		if v := *s.MinInterruptionWords; v >= 0 && v <= maxInterruptionWords {
			opts.MinInterruptionWords = &v
		}
	}

	if opts.MinEndpointingDelay != nil && opts.MaxEndpointingDelay != nil &&
		*opts.MinEndpointingDelay > *opts.MaxEndpointingDelay {
		opts.MinEndpointingDelay, opts.MaxEndpointingDelay = opts.MaxEndpointingDelay, opts.MinEndpointingDelay
	}
	return opts
}

func gateDelay(v *float64) *float64 {
	if v == nil {
		return nil
	}
	if *v < 0 || *v > maxDelaySeconds {
		return nil
	}
	out := *v
	return &out
}
