package domain

// StreamID identifies one running encoder process instance. It is
// generated per start, independent of the session id, so a session can
// be restarted under a fresh process id while keeping its history.
type StreamID string

// Default encoding parameters applied when a start request omits them.
const (
	DefaultVideoBitrate    = "2500k"
	DefaultVideoMaxBitrate = "2500k"
	DefaultVideoBufferSize = "5000k"
	DefaultVideoFPS        = 30
	DefaultVideoResolution = "1280x720"
	DefaultAudioBitrate    = "128k"
)

// VideoParams is the video side of an encoder launch.
type VideoParams struct {
	Bitrate    string `json:"bitrate"`
	MaxBitrate string `json:"max_bitrate"`
	BufferSize string `json:"buffer_size"`
	FPS        int    `json:"fps"`
	Resolution string `json:"resolution"`
}

// WithDefaults fills every zero field with the documented default.
func (p VideoParams) WithDefaults() VideoParams {
	if p.Bitrate == "" {
		p.Bitrate = DefaultVideoBitrate
	}
	if p.MaxBitrate == "" {
		p.MaxBitrate = DefaultVideoMaxBitrate
	}
	if p.BufferSize == "" {
		p.BufferSize = DefaultVideoBufferSize
	}
	if p.FPS == 0 {
		p.FPS = DefaultVideoFPS
	}
	if p.Resolution == "" {
		p.Resolution = DefaultVideoResolution
	}
	return p
}

// AudioParams is the audio side of an encoder launch request.
type AudioParams struct {
	Bitrate string `json:"bitrate"`
	// MixMultipleInputs configures the encoder to accept two microphone
	// inputs and mix them with independent gain.
	MixMultipleInputs bool   `json:"mix_multiple_inputs"`
	PrimaryInput      string `json:"primary_input,omitempty"`
	SecondaryInput    string `json:"secondary_input,omitempty"`
}

// AudioSettings is the resolved, mutable per-stream audio state. It
// exists exactly as long as a live encoder handle exists.
type AudioSettings struct {
	Bitrate           string  `json:"bitrate"`
	MixMultipleInputs bool    `json:"mix_multiple_inputs"`
	PrimaryInput      string  `json:"primary_input,omitempty"`
	SecondaryInput    string  `json:"secondary_input,omitempty"`
	PrimaryGain       float64 `json:"primary_gain"`
	SecondaryGain     float64 `json:"secondary_gain"`
	PrimaryMuted      bool    `json:"primary_muted"`
	SecondaryMuted    bool    `json:"secondary_muted"`
}

// ResolveAudio builds the initial settings record for a launch,
// applying bitrate and gain defaults.
func ResolveAudio(p AudioParams) AudioSettings {
	if p.Bitrate == "" {
		p.Bitrate = DefaultAudioBitrate
	}
	return AudioSettings{
		Bitrate:           p.Bitrate,
		MixMultipleInputs: p.MixMultipleInputs,
		PrimaryInput:      p.PrimaryInput,
		SecondaryInput:    p.SecondaryInput,
		PrimaryGain:       1.0,
		SecondaryGain:     1.0,
	}
}

// AudioPatch is a partial update to AudioSettings. Nil fields are left
// untouched by Apply.
type AudioPatch struct {
	PrimaryGain    *float64 `json:"primary_gain"`
	SecondaryGain  *float64 `json:"secondary_gain"`
	PrimaryMuted   *bool    `json:"primary_muted"`
	SecondaryMuted *bool    `json:"secondary_muted"`
}

// Empty reports whether the patch carries no fields at all.
func (p AudioPatch) Empty() bool {
	return p.PrimaryGain == nil && p.SecondaryGain == nil &&
		p.PrimaryMuted == nil && p.SecondaryMuted == nil
}

// Apply merges the provided fields into s, preserving the rest exactly.
func (p AudioPatch) Apply(s AudioSettings) AudioSettings {
	if p.PrimaryGain != nil {
		s.PrimaryGain = *p.PrimaryGain
	}
	if p.SecondaryGain != nil {
		s.SecondaryGain = *p.SecondaryGain
	}
	if p.PrimaryMuted != nil {
		s.PrimaryMuted = *p.PrimaryMuted
	}
	if p.SecondaryMuted != nil {
		s.SecondaryMuted = *p.SecondaryMuted
	}
	return s
}
