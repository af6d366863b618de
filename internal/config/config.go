package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the voice client
type Config struct {
	// Realtime session configuration
	RealtimeURL string `envconfig:"REALTIME_URL" default:"wss://api.voiceai.example/v1/realtime"`
	APIKey      string `envconfig:"REALTIME_API_KEY" required:"true"`
	Model       string `envconfig:"REALTIME_MODEL" default:"conversational-v2"`
	Voice       string `envconfig:"REALTIME_VOICE" default:"aria"`

	// Audio format configuration. Outbound audio is PCM16 mono at
	// InputSampleRate; the service replies with PCM16 mono at
	// OutputSampleRate.
	InputSampleRate  int `envconfig:"INPUT_SAMPLE_RATE" default:"16000"`
	OutputSampleRate int `envconfig:"OUTPUT_SAMPLE_RATE" default:"24000"`

	// Capture configuration
	CaptureBatchMs     int     `envconfig:"CAPTURE_BATCH_MS" default:"100"`       // Batch duration per outbound chunk
	VADEnergyThreshold float64 `envconfig:"VAD_ENERGY_THRESHOLD" default:"0.015"` // RMS threshold on normalized samples
	VADSilenceFrames   int     `envconfig:"VAD_SILENCE_FRAMES" default:"15"`      // Frames of silence to mark speech end
	VADFrameMs         int     `envconfig:"VAD_FRAME_MS" default:"20"`            // VAD frame duration in milliseconds

	// Playback configuration
	PlaybackBufferMs int `envconfig:"PLAYBACK_BUFFER_MS" default:"50"` // Device-side buffer ahead of the playback clock

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
	MetricsPort    string `envconfig:"METRICS_PORT" default:"9090"`    // Port for the metrics/health HTTP server
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("REALTIME_API_KEY is required")
	}
	if c.InputSampleRate <= 0 {
		return fmt.Errorf("INPUT_SAMPLE_RATE must be positive, got %d", c.InputSampleRate)
	}
	if c.OutputSampleRate <= 0 {
		return fmt.Errorf("OUTPUT_SAMPLE_RATE must be positive, got %d", c.OutputSampleRate)
	}
	if c.CaptureBatchMs <= 0 {
		return fmt.Errorf("CAPTURE_BATCH_MS must be positive, got %d", c.CaptureBatchMs)
	}
	return nil
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
