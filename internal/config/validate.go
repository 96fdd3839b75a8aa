package config

import (
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"

	"github.com/RenatoCabral2022/WhatsWebService/fpstreamer/internal/audio"
)

// MaxACRIDLength is the width of the signature field on the wire.
const MaxACRIDLength = 32

var (
	ErrNoChannels       = errors.New("no streams configured")
	ErrInvalidSchedule  = errors.New("invalid restart schedule")
	ErrMissingServer    = errors.New("fingerprint server not configured")
	ErrInvalidTiming    = errors.New("invalid timing")
	ErrInvalidStream    = errors.New("invalid stream")
	ErrIncompleteRemote = errors.New("incomplete remote settings")
)

var (
	validLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validFormats = map[string]bool{"json": true, "console": true}
)

// Validate reports every problem in c at once. Streams are not required
// when the remote listing is enabled since they arrive later.
func (c *Config) Validate() error {
	var errs error

	if !validLevels[c.Logging.Level] {
		errs = multierr.Append(errs, fmt.Errorf("logging.level must be one of: debug, info, warn, error"))
	}
	if !validFormats[c.Logging.Format] {
		errs = multierr.Append(errs, fmt.Errorf("logging.format must be one of: json, console"))
	}

	if c.Supervisor.PollInterval <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("supervisor.poll_interval must be positive"))
	}
	if c.Supervisor.MaxAge < 0 {
		errs = multierr.Append(errs, fmt.Errorf("supervisor.max_age must not be negative"))
	}
	if c.Supervisor.RestartSchedule != "" {
		if _, err := cron.ParseStandard(c.Supervisor.RestartSchedule); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%w %q: %v", ErrInvalidSchedule, c.Supervisor.RestartSchedule, err))
		}
	}

	errs = multierr.Append(errs, c.Timing.validate())

	if c.Fingerprinter.Command == "" {
		errs = multierr.Append(errs, fmt.Errorf("fingerprinter.command is required"))
	}
	if c.Fingerprinter.Timeout <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("fingerprinter.timeout must be positive"))
	}

	if c.Remote.Enabled {
		if c.Remote.Endpoint == "" || c.Remote.Bucket == "" || c.Remote.AccessKey == "" || c.Remote.AccessSecret == "" {
			errs = multierr.Append(errs, fmt.Errorf("%w: endpoint, bucket, access_key and access_secret are required", ErrIncompleteRemote))
		}
		if len(c.Streams) > 0 {
			errs = multierr.Append(errs, c.ValidateStreams())
		}
	} else {
		errs = multierr.Append(errs, c.ValidateStreams())
	}
	return errs
}

// ValidateStreams checks the stream list against the server settings.
func (c *Config) ValidateStreams() error {
	if len(c.Streams) == 0 {
		return ErrNoChannels
	}
	var errs error
	for i, s := range c.Streams {
		name := fmt.Sprintf("streams[%d]", i)
		if s.URL == "" {
			errs = multierr.Append(errs, fmt.Errorf("%w: %s.url is required", ErrInvalidStream, name))
		}
		if s.ACRID == "" {
			errs = multierr.Append(errs, fmt.Errorf("%w: %s.acr_id is required", ErrInvalidStream, name))
		} else if len(s.ACRID) > MaxACRIDLength {
			errs = multierr.Append(errs, fmt.Errorf("%w: %s.acr_id longer than %d bytes", ErrInvalidStream, name, MaxACRIDLength))
		}
		if err := checkServer(c.liveServer(s)); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s server: %w", name, err))
		}
		if c.recordEnabled(s) {
			if s.ID == "" {
				errs = multierr.Append(errs, fmt.Errorf("%w: %s.id is required for record uploads", ErrInvalidStream, name))
			}
			if err := checkServer(c.recordServer(s)); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("%s record server: %w", name, err))
			}
		}
	}
	return errs
}

func checkServer(s ServerConfig) error {
	if s.Host == "" {
		return fmt.Errorf("%w: host is empty", ErrMissingServer)
	}
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrMissingServer, s.Port)
	}
	return nil
}

func (t TimingConfig) validate() error {
	var errs error
	if audio.BytesFor(t.Slice) == 0 {
		errs = multierr.Append(errs, fmt.Errorf("%w: timing.slice must hold at least one sample", ErrInvalidTiming))
	}
	if t.FingerprintWindow <= t.Slice {
		errs = multierr.Append(errs, fmt.Errorf("%w: timing.fingerprint_window must exceed timing.slice", ErrInvalidTiming))
	}
	if t.MaxWindow < t.FingerprintWindow {
		errs = multierr.Append(errs, fmt.Errorf("%w: timing.max_window must be at least timing.fingerprint_window", ErrInvalidTiming))
	}
	if t.UploadTimeout <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("%w: timing.upload_timeout must be positive", ErrInvalidTiming))
	}
	if t.DownloadTimeout < 0 {
		errs = multierr.Append(errs, fmt.Errorf("%w: timing.download_timeout must not be negative", ErrInvalidTiming))
	}
	if t.RecordInterval <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("%w: timing.record_interval must be positive", ErrInvalidTiming))
	}
	if t.RecordMaxWindow < t.RecordInterval {
		errs = multierr.Append(errs, fmt.Errorf("%w: timing.record_max_window must be at least timing.record_interval", ErrInvalidTiming))
	}
	return errs
}
