package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        int
	CamerasPort int
	Password    string
	CameraNames map[string]string // IP kamery -> nazwa

	ModelPath     string // SSD MobileNet (standard detector)
	ConfigPath    string
	ModelCacheDir string // pobrane modele custom

	DefaultModelType    string // "standard" albo "custom"
	CustomModelURL      string
	CustomInputSize     int
	CustomClassLabels   string
	CustomConfidence    float64
	CustomDecoding      string
	StandardThreshold   float64
	DetectionFPS        int
	DetectionAutostart  bool
	StreamReconnectWait time.Duration

	ImageDirectory           string
	ImageBufferLimit         int
	ImageBufferFlushInterval int
	DatabasePath             string

	AlertInterval   time.Duration
	AlertConfidence float64

	LogDirectory string
}

// Load reads an optional .env file and builds the configuration from the environment.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:        getEnvAsInt("PORT", 8080),
		CamerasPort: getEnvAsInt("CAMERAS_PORT", 8081),
		Password:    getEnv("PASSWORD", "sienkiewicza2"),
		CameraNames: getEnvAsMap("CAMERA_NAMES"),

		ModelPath:     getEnv("MODEL_PATH", filepath.Join(".", "models", "frozen_inference_graph.pb")),
		ConfigPath:    getEnv("CONFIG_PATH", filepath.Join(".", "models", "ssd_mobilenet_v1_coco_2017_11_17.pbtxt")),
		ModelCacheDir: getEnv("MODEL_CACHE_DIR", filepath.Join(".", "models", "cache")),

		DefaultModelType:    getEnv("MODEL_TYPE", "standard"),
		CustomModelURL:      getEnv("CUSTOM_MODEL_URL", ""),
		CustomInputSize:     getEnvAsInt("CUSTOM_INPUT_SIZE", 416), // typowe dla YOLO
		CustomClassLabels:   getEnv("CUSTOM_CLASS_LABELS", ""),
		CustomConfidence:    getEnvAsFloat("CUSTOM_CONFIDENCE", 0.5),
		CustomDecoding:      getEnv("CUSTOM_DECODING", ""),
		StandardThreshold:   getEnvAsFloat("STANDARD_THRESHOLD", 0.5),
		DetectionFPS:        getEnvAsInt("DETECTION_FPS", 10),
		DetectionAutostart:  getEnvAsBool("DETECTION_AUTOSTART", true),
		StreamReconnectWait: getEnvAsDuration("STREAM_RECONNECT_WAIT", 5*time.Second),

		ImageDirectory:           getEnv("IMAGE_DIR", filepath.Join(".", "images")),
		ImageBufferLimit:         getEnvAsInt("BUFFER_LIMIT", 7),
		ImageBufferFlushInterval: getEnvAsInt("FLUSH_INTERVAL", 30),
		DatabasePath:             getEnv("DATABASE_PATH", filepath.Join(".", "data", "citymonitor.db")),

		AlertInterval:   getEnvAsDuration("ALERT_INTERVAL", 10*time.Second),
		AlertConfidence: getEnvAsFloat("ALERT_CONFIDENCE", 0.5),

		LogDirectory: getEnv("LOG_DIR", filepath.Join(".", "logs")),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvAsMap parses "ip=name,ip=name" pairs. Malformed pairs are skipped.
func getEnvAsMap(key string) map[string]string {
	result := make(map[string]string)
	for _, pair := range strings.Split(os.Getenv(key), ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || k == "" || v == "" {
			continue
		}
		result[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return result
}
