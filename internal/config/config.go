package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Prediction service configuration.
	PredictBaseURL   string
	PredictTimeout   time.Duration
	PredictWorkers   int
	PredictQueueSize int

	// Hover sampling.
	SampleMinInterval time.Duration
	SampleCacheSize   int

	// Default drawable extents for new sessions, in pixels.
	SkewTWidth  float64
	SkewTHeight float64

	// Edit publishing configuration.
	KafkaEnabled   bool
	KafkaBrokers   []string
	KafkaEditTopic string
}

// Load reads configuration from environment variables, applying defaults
// where unset. A .env file in the working directory is loaded first when
// present; variables already set in the environment win.
func Load() (*Config, error) {
	_ = godotenv.Load() // ignore missing file

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	predictTimeout, err := parseDuration("PREDICT_TIMEOUT", "10s", false)
	if err != nil {
		return nil, err
	}
	sampleInterval, err := parseDuration("SAMPLE_MIN_INTERVAL", "100ms", true)
	if err != nil {
		return nil, err
	}

	workers, err := parsePositiveInt("PREDICT_WORKERS", 4)
	if err != nil {
		return nil, err
	}
	queueSize, err := parsePositiveInt("PREDICT_QUEUE_SIZE", 64)
	if err != nil {
		return nil, err
	}
	width, err := parsePositiveInt("SKEWT_WIDTH", 650)
	if err != nil {
		return nil, err
	}
	height, err := parsePositiveInt("SKEWT_HEIGHT", 500)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		PredictBaseURL:   sharedcfg.EnvOrDefault("PREDICT_BASE_URL", "http://localhost:5000"),
		PredictTimeout:   predictTimeout,
		PredictWorkers:   workers,
		PredictQueueSize: queueSize,

		SampleMinInterval: sampleInterval,
		SampleCacheSize:   parseSampleCacheSize(),

		SkewTWidth:  float64(width),
		SkewTHeight: float64(height),

		KafkaEnabled:   os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:   sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaEditTopic: sharedcfg.EnvOrDefault("KAFKA_EDIT_TOPIC", "sounding-edits"),
	}

	if u, err := url.Parse(cfg.PredictBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.New("invalid PREDICT_BASE_URL")
	}
	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
		}
		if cfg.KafkaEditTopic == "" {
			return nil, errors.New("KAFKA_EDIT_TOPIC is required")
		}
	}

	return cfg, nil
}

func parseDuration(key, def string, allowZero bool) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d < 0 || (d == 0 && !allowZero) {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", key)
	}
	return n, nil
}

func parseSampleCacheSize() int {
	if s := os.Getenv("SAMPLE_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}
