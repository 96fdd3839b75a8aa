package config

import (
	"time"

	"github.com/RenatoCabral2022/WhatsWebService/fpstreamer/internal/audio"
)

// NoProgram leaves program selection to the decoder.
const NoProgram = -1

// ChannelConfig is the immutable settings of one channel pipeline.
type ChannelConfig struct {
	URL          string
	ACRID        string
	StreamID     string
	ProgramID    int
	Server       ServerConfig
	RecordServer ServerConfig
	Timeshift    int
	RecordUpload bool

	Slice             time.Duration
	FingerprintWindow time.Duration
	MaxWindow         time.Duration
	UploadTimeout     time.Duration
	DownloadTimeout   time.Duration
	RecordInterval    time.Duration
	RecordMaxWindow   time.Duration
	DecoderDebug      bool

	// FingerprintTimeout bounds one fingerprint generation; zero means no limit.
	FingerprintTimeout time.Duration
}

// RecordEnabled reports whether the channel also uploads record windows.
func (c ChannelConfig) RecordEnabled() bool {
	return c.RecordUpload || c.Timeshift != 0
}

// PreRoll is the audio kept after a successful live upload.
func (c ChannelConfig) PreRoll() time.Duration {
	return c.FingerprintWindow - c.Slice
}

// PreRollBytes is PreRoll in PCM bytes.
func (c ChannelConfig) PreRollBytes() int {
	return audio.BytesFor(c.PreRoll())
}

// FingerprintWindowBytes is the live window length that triggers a
// fingerprint.
func (c ChannelConfig) FingerprintWindowBytes() int {
	return audio.BytesFor(c.FingerprintWindow)
}

// RecordIntervalBytes is the record window length that triggers a record
// upload.
func (c ChannelConfig) RecordIntervalBytes() int {
	return audio.BytesFor(c.RecordInterval)
}

// Channels builds one ChannelConfig per stream entry.
func (c *Config) Channels() []ChannelConfig {
	out := make([]ChannelConfig, 0, len(c.Streams))
	for _, s := range c.Streams {
		program := NoProgram
		if s.ProgramID != nil {
			program = *s.ProgramID
		}
		out = append(out, ChannelConfig{
			URL:               s.URL,
			ACRID:             s.ACRID,
			StreamID:          s.ID,
			ProgramID:         program,
			Server:            c.liveServer(s),
			RecordServer:      c.recordServer(s),
			Timeshift:         s.Timeshift,
			RecordUpload:      c.recordEnabled(s),
			Slice:             c.Timing.Slice,
			FingerprintWindow: c.Timing.FingerprintWindow,
			MaxWindow:         c.Timing.MaxWindow,
			UploadTimeout:     c.Timing.UploadTimeout,
			DownloadTimeout:   c.Timing.DownloadTimeout,
			RecordInterval:    c.Timing.RecordInterval,
			RecordMaxWindow:   c.Timing.RecordMaxWindow,
			DecoderDebug:      c.Decoder.Debug,

			FingerprintTimeout: c.Fingerprinter.Timeout,
		})
	}
	return out
}

func (c *Config) recordEnabled(s StreamEntry) bool {
	return c.RecordUpload || s.RecordUpload || s.Timeshift != 0
}

func (c *Config) liveServer(s StreamEntry) ServerConfig {
	if s.Host != "" || s.Port != 0 {
		return override(c.Server, s.Host, s.Port)
	}
	return c.Server
}

func (c *Config) recordServer(s StreamEntry) ServerConfig {
	base := c.RecordServer
	if base.empty() {
		base = c.liveServer(s)
	}
	if s.RecordHost != "" || s.RecordPort != 0 {
		return override(base, s.RecordHost, s.RecordPort)
	}
	return base
}

func override(base ServerConfig, host string, port int) ServerConfig {
	if host != "" {
		base.Host = host
	}
	if port != 0 {
		base.Port = port
	}
	return base
}
