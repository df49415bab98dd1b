package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/lexiqai/vad-gateway/internal/vad"
)

// Recognizer backends
const (
	BackendStub     = "stub"
	BackendDeepgram = "deepgram"
)

// Config holds all configuration for the VAD gateway service
type Config struct {
	// Server configuration
	Port     string `envconfig:"PORT" default:"8080"`
	GRPCPort string `envconfig:"GRPC_PORT" default:"9090"`

	// Detector configuration
	VADSampleRate            int     `envconfig:"VAD_SAMPLE_RATE" default:"16000"`            // Canonical detector rate in Hz
	VADFrameLength           int     `envconfig:"VAD_FRAME_LENGTH" default:"512"`             // Samples per frame
	VADEnergyThreshold       float64 `envconfig:"VAD_ENERGY_THRESHOLD" default:"0.001"`       // Mean squared amplitude
	VADZeroCrossingThreshold float64 `envconfig:"VAD_ZERO_CROSSING_THRESHOLD" default:"0.1"`  // Stored, not used by the decision
	VADSmoothingFactor       float64 `envconfig:"VAD_SMOOTHING_FACTOR" default:"0.8"`         // Stored, not used by the decision
	VADNoiseHistory          int     `envconfig:"VAD_NOISE_HISTORY" default:"10"`             // Noise-floor window in frames
	VADAdaptiveThreshold     bool    `envconfig:"VAD_ADAPTIVE_THRESHOLD" default:"false"`     // Use noise floor x3 as threshold
	VADVoiceFrames           int     `envconfig:"VAD_VOICE_FRAMES" default:"3"`               // Frames to confirm VOICE
	VADSilenceFrames         int     `envconfig:"VAD_SILENCE_FRAMES" default:"5"`             // Frames to confirm SILENCE
	VADConditionFrames       bool    `envconfig:"VAD_CONDITION_FRAMES" default:"false"`       // Normalize + high-pass each frame
	VADProfileFile           string  `envconfig:"VAD_PROFILE_FILE" default:""`                // Optional YAML overrides

	// Segmentation configuration
	SegmentEndSilenceFrames int `envconfig:"SEGMENT_END_SILENCE_FRAMES" default:"10"` // Non-voice decisions closing a segment
	SegmentMaxSamples       int `envconfig:"SEGMENT_MAX_SAMPLES" default:"480000"`    // 30s at 16kHz
	AudioBufferSize         int `envconfig:"AUDIO_BUFFER_SIZE" default:"8192"`        // Framer capacity in samples

	// Recognizer configuration
	RecognizerBackend string `envconfig:"RECOGNIZER_BACKEND" default:"stub"` // stub or deepgram
	DeepgramAPIKey    string `envconfig:"DEEPGRAM_API_KEY" default:""`
	DeepgramModel     string `envconfig:"DEEPGRAM_MODEL" default:"nova-2"` // nova-2, enhanced, base
	DeepgramLanguage  string `envconfig:"DEEPGRAM_LANGUAGE" default:"en"`  // Language code (en, es, fr, etc.)

	// Resilience configuration
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`   // Failures before opening circuit
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // Seconds before attempting recovery
	RetryMaxAttempts           int `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`             // Maximum retry attempts
	RetryInitialBackoff        int `envconfig:"RETRY_INITIAL_BACKOFF" default:"100"`        // Initial backoff in milliseconds
	ReconnectMaxAttempts       int `envconfig:"RECONNECT_MAX_ATTEMPTS" default:"5"`         // Maximum reconnection attempts
	ReconnectBackoff           int `envconfig:"RECONNECT_BACKOFF" default:"1000"`           // Reconnection backoff in milliseconds

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

// Profile is the YAML tuning document referenced by VAD_PROFILE_FILE.
// Absent fields keep their environment values.
type Profile struct {
	VAD struct {
		SampleRate            *int     `yaml:"sample_rate"`
		FrameLength           *int     `yaml:"frame_length"`
		EnergyThreshold       *float64 `yaml:"energy_threshold"`
		ZeroCrossingThreshold *float64 `yaml:"zero_crossing_threshold"`
		SmoothingFactor       *float64 `yaml:"smoothing_factor"`
		NoiseHistory          *int     `yaml:"noise_history"`
		AdaptiveThreshold     *bool    `yaml:"adaptive_threshold"`
		VoiceFrames           *int     `yaml:"voice_frames"`
		SilenceFrames         *int     `yaml:"silence_frames"`
		ConditionFrames       *bool    `yaml:"condition_frames"`
	} `yaml:"vad"`
	Segment struct {
		EndSilenceFrames *int `yaml:"end_silence_frames"`
		MaxSamples       *int `yaml:"max_samples"`
	} `yaml:"segment"`
}

// Load reads configuration from environment variables
// It first attempts to load the env file (ENV_FILE, default .env) if it exists,
// then from environment. Variables already set take precedence over the file.
func Load() (*Config, error) {
	// Try to load the env file (ignore error if it doesn't exist)
	_ = godotenv.Load(GetEnv("ENV_FILE", ".env"))

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.VADProfileFile != "" {
		if err := cfg.ApplyProfileFile(cfg.VADProfileFile); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ApplyProfileFile overlays the YAML profile at path onto the configuration
func (c *Config) ApplyProfileFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read VAD profile: %w", err)
	}
	return c.ApplyProfile(data)
}

// ApplyProfile overlays a YAML profile document onto the configuration
func (c *Config) ApplyProfile(data []byte) error {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("failed to parse VAD profile: %w", err)
	}

	setInt(&c.VADSampleRate, p.VAD.SampleRate)
	setInt(&c.VADFrameLength, p.VAD.FrameLength)
	setFloat(&c.VADEnergyThreshold, p.VAD.EnergyThreshold)
	setFloat(&c.VADZeroCrossingThreshold, p.VAD.ZeroCrossingThreshold)
	setFloat(&c.VADSmoothingFactor, p.VAD.SmoothingFactor)
	setInt(&c.VADNoiseHistory, p.VAD.NoiseHistory)
	setBool(&c.VADAdaptiveThreshold, p.VAD.AdaptiveThreshold)
	setInt(&c.VADVoiceFrames, p.VAD.VoiceFrames)
	setInt(&c.VADSilenceFrames, p.VAD.SilenceFrames)
	setBool(&c.VADConditionFrames, p.VAD.ConditionFrames)
	setInt(&c.SegmentEndSilenceFrames, p.Segment.EndSilenceFrames)
	setInt(&c.SegmentMaxSamples, p.Segment.MaxSamples)

	return nil
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

// Validate rejects configurations the service cannot run with
func (c *Config) Validate() error {
	if err := c.DetectorConfig().Validate(); err != nil {
		return fmt.Errorf("invalid VAD configuration: %w", err)
	}
	if c.SegmentEndSilenceFrames < 1 {
		return fmt.Errorf("SEGMENT_END_SILENCE_FRAMES must be at least 1, got %d", c.SegmentEndSilenceFrames)
	}
	if c.SegmentMaxSamples < 0 {
		return fmt.Errorf("SEGMENT_MAX_SAMPLES must not be negative, got %d", c.SegmentMaxSamples)
	}
	if c.AudioBufferSize <= 0 {
		return fmt.Errorf("AUDIO_BUFFER_SIZE must be positive, got %d", c.AudioBufferSize)
	}

	switch c.RecognizerBackend {
	case BackendStub:
	case BackendDeepgram:
		if c.DeepgramAPIKey == "" {
			return fmt.Errorf("DEEPGRAM_API_KEY is required for the %s backend", BackendDeepgram)
		}
	default:
		return fmt.Errorf("unknown RECOGNIZER_BACKEND %q (want %s or %s)", c.RecognizerBackend, BackendStub, BackendDeepgram)
	}

	return nil
}

// DetectorConfig maps the VAD fields onto a detector configuration
func (c *Config) DetectorConfig() vad.Config {
	return vad.Config{
		SampleRate:            c.VADSampleRate,
		FrameLength:           c.VADFrameLength,
		EnergyThreshold:       c.VADEnergyThreshold,
		ZeroCrossingThreshold: c.VADZeroCrossingThreshold,
		SmoothingFactor:       c.VADSmoothingFactor,
		NoiseHistorySize:      c.VADNoiseHistory,
		AdaptiveThreshold:     c.VADAdaptiveThreshold,
		VoiceConfirmFrames:    c.VADVoiceFrames,
		SilenceConfirmFrames:  c.VADSilenceFrames,
		ConditionFrames:       c.VADConditionFrames,
	}
}

// CircuitBreakerResetDuration returns the breaker reset timeout
func (c *Config) CircuitBreakerResetDuration() time.Duration {
	return time.Duration(c.CircuitBreakerResetTimeout) * time.Second
}

// RetryInitialBackoffDuration returns the first retry wait
func (c *Config) RetryInitialBackoffDuration() time.Duration {
	return time.Duration(c.RetryInitialBackoff) * time.Millisecond
}

// ReconnectBackoffDuration returns the first reconnect wait
func (c *Config) ReconnectBackoffDuration() time.Duration {
	return time.Duration(c.ReconnectBackoff) * time.Millisecond
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
