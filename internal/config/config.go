// Package config loads the streamer configuration from YAML, environment
// variables and an optional .env file, and turns it into per-channel
// settings.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultSlice              = 2 * time.Second
	defaultFingerprintWindow  = 6 * time.Second
	defaultMaxWindow          = 12 * time.Second
	defaultUploadTimeout      = 10 * time.Second
	defaultDownloadTimeout    = 10 * time.Second
	defaultRecordInterval     = 60 * time.Second
	defaultRecordMaxWindow    = 120 * time.Second
	defaultPollInterval       = time.Second
	defaultStopGrace          = 5 * time.Second
	defaultFetchTimeout       = 10 * time.Second
	defaultFingerprintTimeout = 10 * time.Second
)

// Config is the full streamer configuration.
type Config struct {
	Logging       LoggingConfig     `mapstructure:"logging"`
	Admin         AdminConfig       `mapstructure:"admin"`
	Supervisor    SupervisorConfig  `mapstructure:"supervisor"`
	Timing        TimingConfig      `mapstructure:"timing"`
	RecordUpload  bool              `mapstructure:"record_upload"`
	Server        ServerConfig      `mapstructure:"server"`
	RecordServer  ServerConfig      `mapstructure:"record_server"`
	Decoder       DecoderConfig     `mapstructure:"decoder"`
	Fingerprinter FingerprintConfig `mapstructure:"fingerprinter"`
	Resolver      ResolverConfig    `mapstructure:"resolver"`
	Remote        RemoteConfig      `mapstructure:"remote"`
	Streams       []StreamEntry     `mapstructure:"streams"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`

	// OutputPaths are zap sink URLs or file paths; defaults to stderr.
	OutputPaths []string `mapstructure:"output_paths"`
}

// AdminConfig holds listen addresses for the admin surfaces. Empty disables.
type AdminConfig struct {
	HTTPAddr       string   `mapstructure:"http_addr"`
	GRPCAddr       string   `mapstructure:"grpc_addr"`
	WorkerHTTPAddr string   `mapstructure:"worker_http_addr"`
	CORSOrigins    []string `mapstructure:"cors_origins"`
}

// SupervisorConfig controls the watchdog. MaxAge and RestartSchedule are
// both optional; either one forces a restart of a healthy group.
type SupervisorConfig struct {
	Watchdog        bool          `mapstructure:"watchdog"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	MaxAge          time.Duration `mapstructure:"max_age"`
	RestartSchedule string        `mapstructure:"restart_schedule"`
	StopGrace       time.Duration `mapstructure:"stop_grace"`
}

type TimingConfig struct {
	Slice             time.Duration `mapstructure:"slice"`
	FingerprintWindow time.Duration `mapstructure:"fingerprint_window"`
	MaxWindow         time.Duration `mapstructure:"max_window"`
	UploadTimeout     time.Duration `mapstructure:"upload_timeout"`
	DownloadTimeout   time.Duration `mapstructure:"download_timeout"`
	RecordInterval    time.Duration `mapstructure:"record_interval"`
	RecordMaxWindow   time.Duration `mapstructure:"record_max_window"`
}

// ServerConfig is a fingerprint backend address.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

func (s ServerConfig) empty() bool {
	return s.Host == "" && s.Port == 0
}

type DecoderConfig struct {
	FFmpegPath string `mapstructure:"ffmpeg_path"`
	Debug      bool   `mapstructure:"debug"`
}

// FingerprintConfig names the external program that turns PCM into a
// fingerprint.
type FingerprintConfig struct {
	Command string        `mapstructure:"command"`
	Args    []string      `mapstructure:"args"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type ResolverConfig struct {
	FetchTimeout        time.Duration `mapstructure:"fetch_timeout"`
	BlockPrivateTargets bool          `mapstructure:"block_private_targets"`
}

// RemoteConfig enables fetching the stream list from the signed channel
// listing API instead of the streams section.
type RemoteConfig struct {
	Enabled          bool   `mapstructure:"enabled"`
	Endpoint         string `mapstructure:"endpoint"`
	Bucket           string `mapstructure:"bucket"`
	AccessKey        string `mapstructure:"access_key"`
	AccessSecret     string `mapstructure:"access_secret"`
	SignatureVersion string `mapstructure:"signature_version"`
}

// StreamEntry is one configured source. Host and port fields override the
// global servers when set.
type StreamEntry struct {
	URL          string `mapstructure:"url" json:"url"`
	ACRID        string `mapstructure:"acr_id" json:"acr_id"`
	ID           string `mapstructure:"id" json:"id"`
	ProgramID    *int   `mapstructure:"program_id" json:"program_id,omitempty"`
	Timeshift    int    `mapstructure:"timeshift" json:"timeshift"`
	RecordUpload bool   `mapstructure:"record_upload" json:"record_upload"`
	Host         string `mapstructure:"host" json:"host,omitempty"`
	Port         int    `mapstructure:"port" json:"port,omitempty"`
	RecordHost   string `mapstructure:"record_host" json:"record_host,omitempty"`
	RecordPort   int    `mapstructure:"record_port" json:"record_port,omitempty"`
}

// Load reads the configuration at path, or searches the default locations
// when path is empty, applies FPSTREAMER_* environment overrides and
// validates the result. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("fpstreamer")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/fpstreamer")
	}

	v.SetEnvPrefix("FPSTREAMER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.UnmarshalExact(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

// SetDefaults registers every key with its default so environment
// overrides resolve and UnmarshalExact knows the schema.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output_paths", []string{"stderr"})

	v.SetDefault("admin.http_addr", "")
	v.SetDefault("admin.grpc_addr", "")
	v.SetDefault("admin.worker_http_addr", "")
	v.SetDefault("admin.cors_origins", []string{})

	v.SetDefault("supervisor.watchdog", false)
	v.SetDefault("supervisor.poll_interval", defaultPollInterval)
	v.SetDefault("supervisor.max_age", time.Duration(0))
	v.SetDefault("supervisor.restart_schedule", "")
	v.SetDefault("supervisor.stop_grace", defaultStopGrace)

	v.SetDefault("timing.slice", defaultSlice)
	v.SetDefault("timing.fingerprint_window", defaultFingerprintWindow)
	v.SetDefault("timing.max_window", defaultMaxWindow)
	v.SetDefault("timing.upload_timeout", defaultUploadTimeout)
	v.SetDefault("timing.download_timeout", defaultDownloadTimeout)
	v.SetDefault("timing.record_interval", defaultRecordInterval)
	v.SetDefault("timing.record_max_window", defaultRecordMaxWindow)

	v.SetDefault("record_upload", false)
	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 0)
	v.SetDefault("record_server.host", "")
	v.SetDefault("record_server.port", 0)

	v.SetDefault("decoder.ffmpeg_path", "ffmpeg")
	v.SetDefault("decoder.debug", false)

	v.SetDefault("fingerprinter.command", "")
	v.SetDefault("fingerprinter.args", []string{})
	v.SetDefault("fingerprinter.timeout", defaultFingerprintTimeout)

	v.SetDefault("resolver.fetch_timeout", defaultFetchTimeout)
	v.SetDefault("resolver.block_private_targets", false)

	v.SetDefault("remote.enabled", false)
	v.SetDefault("remote.endpoint", "https://api.acrcloud.com")
	v.SetDefault("remote.bucket", "")
	v.SetDefault("remote.access_key", "")
	v.SetDefault("remote.access_secret", "")
	v.SetDefault("remote.signature_version", "1")
}

// WithStreams returns a copy of c using streams as its stream list, for
// lists fetched from the remote channel API.
func (c Config) WithStreams(streams []StreamEntry) *Config {
	c.Streams = append([]StreamEntry(nil), streams...)
	return &c
}
