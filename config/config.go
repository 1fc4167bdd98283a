package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the face analyze pipeline service
type Config struct {
	// Server configuration
	Port string

	// Remote endpoints
	IntakeURL  string
	AnalyzeURL string

	// Submission configuration
	RequestTimeout time.Duration
	MinImageBytes  int

	// Camera configuration
	CameraFacing   string
	CameraWarmup   time.Duration
	CaptureWidth   int
	CaptureHeight  int
	HighResCapture bool
	FrameSources   []string

	// Image preparation
	MaxImageDimension int
	JPEGQuality       int

	// Session fallback persistence
	SessionFallbackPath string

	// RabbitMQ (optional; empty URL disables publishing)
	AMQPURL        string
	AMQPExchange   string
	AMQPRoutingKey string

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables
func Load() *Config {
	config := &Config{
		// Server defaults
		Port: getEnv("PORT", "8080"),

		// Endpoint defaults
		IntakeURL:  getEnv("INTAKE_URL", "https://us-central1-api-skinstric-ai.cloudfunctions.net/skinstricPhaseOne"),
		AnalyzeURL: getEnv("ANALYZE_URL", "https://us-central1-api-skinstric-ai.cloudfunctions.net/skinstricPhaseTwo"),

		// Submission defaults
		RequestTimeout: getDurationEnv("REQUEST_TIMEOUT", 10*time.Second),
		MinImageBytes:  getIntEnv("MIN_IMAGE_BYTES", 512),

		// Camera defaults
		CameraFacing:   getEnv("CAMERA_FACING", "front"),
		CameraWarmup:   getDurationEnv("CAMERA_WARMUP", 500*time.Millisecond),
		CaptureWidth:   getIntEnv("CAPTURE_WIDTH", 1280),
		CaptureHeight:  getIntEnv("CAPTURE_HEIGHT", 720),
		HighResCapture: getBoolEnv("HIGH_RES_CAPTURE", false),
		FrameSources:   getStringSliceEnv("FRAME_SOURCES", ""),

		// Image preparation defaults
		MaxImageDimension: getIntEnv("MAX_IMAGE_DIMENSION", 1024),
		JPEGQuality:       getIntEnv("JPEG_QUALITY", 90),

		// Session fallback defaults
		SessionFallbackPath: getEnv("SESSION_FALLBACK_PATH", filepath.Join(os.TempDir(), "face-analyze-session.json")),

		// RabbitMQ defaults (disabled unless URL is set)
		AMQPURL:        getEnv("AMQP_URL", ""),
		AMQPExchange:   getEnv("AMQP_EXCHANGE", "face-analyze"),
		AMQPRoutingKey: getEnv("AMQP_ROUTING_KEY", "analysis.completed"),

		// Logging defaults
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	// High resolution capture mirrors the mobile-device envelope.
	if config.HighResCapture {
		if os.Getenv("CAPTURE_WIDTH") == "" {
			config.CaptureWidth = 1920
		}
		if os.Getenv("CAPTURE_HEIGHT") == "" {
			config.CaptureHeight = 1080
		}
	}

	return config
}

// getStringSliceEnv gets a comma-separated string environment variable and returns it as a string slice
func getStringSliceEnv(key, defaultValue string) []string {
	value := getEnv(key, defaultValue)
	if value == "" {
		return []string{}
	}

	parts := strings.Split(value, ",")
	var result []string
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDurationEnv gets a duration environment variable or returns a default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getIntEnv gets an integer environment variable or returns a default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getBoolEnv gets a boolean environment variable or returns a default value
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
