package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the transcription gateway service
type Config struct {
	// Server configuration
	Port string `envconfig:"PORT" default:"8080"`

	// Remote recognition service configuration
	RecognitionURL    string `envconfig:"RECOGNITION_URL" default:"wss://eu2.rt.speechmatics.com/v2"`
	RecognitionAPIKey string `envconfig:"RECOGNITION_API_KEY" required:"true"`
	Language          string `envconfig:"RECOGNITION_LANGUAGE" default:"en"`
	SampleRate        int    `envconfig:"RECOGNITION_SAMPLE_RATE" default:"16000"` // Hz, raw pcm_s16le
	MaxDelay          int    `envconfig:"RECOGNITION_MAX_DELAY" default:"3"`       // seconds before a final is forced

	// Audio ingestion configuration
	FrameHeaderLen  int `envconfig:"AUDIO_FRAME_HEADER_LEN" default:"5"`     // opaque transport header, stripped
	AudioChanSize   int `envconfig:"AUDIO_CHANNEL_SIZE" default:"256"`       // bounded per-session audio channel
	SubmitTimeoutMs int `envconfig:"AUDIO_SUBMIT_TIMEOUT_MS" default:"2000"` // backpressure bound on a full channel

	// Storage configuration
	DatabasePath string `envconfig:"DATABASE_PATH" default:"data/meetings.db"`

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`   // debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"` // pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"`
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.RecognitionAPIKey == "" {
		return nil, fmt.Errorf("RECOGNITION_API_KEY is required")
	}
	if cfg.FrameHeaderLen < 0 {
		return nil, fmt.Errorf("AUDIO_FRAME_HEADER_LEN must not be negative")
	}
	if cfg.AudioChanSize <= 0 {
		return nil, fmt.Errorf("AUDIO_CHANNEL_SIZE must be positive")
	}

	return &cfg, nil
}
