package config

import (
	"os"
	"strconv"
	"time"

	"LettuceClassifier/pkg/detector"
	"LettuceClassifier/pkg/imagecodec"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	HistoryBackendMemory = "memory"
	HistoryBackendRedis  = "redis"
)

// AppConfig is read once from the environment at startup.
type AppConfig struct {
	Port             string
	Env              string
	ModelPath        string
	Detector         detector.Config
	InferenceTimeout time.Duration
	MaxImagePixels   int64
	HistoryBackend   string
	RedisAddress     string
	RedisPassword    string
	RedisDB          int
	HistoryTTL       time.Duration
	SessionSecret    string
	RequestRate      float64
	RequestBurst     int
}

func LoadAppConfig(logger *logrus.Logger) *AppConfig {
	cfg := &AppConfig{
		Port:             getEnv("PORT", "5000"),
		Env:              getEnv("APP_ENV", "development"),
		ModelPath:        getEnv("MODEL_PATH", "weights/best.pt"),
		InferenceTimeout: getDuration(logger, "INFERENCE_TIMEOUT", 30*time.Second),
		MaxImagePixels:   int64(getInt(logger, "MAX_IMAGE_PIXELS", imagecodec.DefaultMaxPixels)),
		HistoryBackend:   getEnv("HISTORY_BACKEND", HistoryBackendMemory),
		RedisAddress:     getEnv("REDIS_ADDRESS", "localhost:6379"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		RedisDB:          getInt(logger, "REDIS_DB", 0),
		HistoryTTL:       getDuration(logger, "HISTORY_TTL", 24*time.Hour),
		SessionSecret:    os.Getenv("SESSION_TOKEN_SECRET"),
		RequestRate:      float64(getInt(logger, "RATE_LIMIT_RPS", 10)),
		RequestBurst:     getInt(logger, "RATE_LIMIT_BURST", 20),
	}

	cfg.Detector = detector.Config{
		Backend:     getEnv("DETECTOR_BACKEND", detector.BackendWebSocket),
		ModelPath:   cfg.ModelPath,
		URL:         getEnv("DETECTOR_URL", "ws://localhost:8765/detect"),
		MaxImageDim: getInt(logger, "MAX_IMAGE_DIM", 1024),
	}
	switch cfg.Detector.Backend {
	case detector.BackendOllama:
		cfg.Detector.URL = getEnv("OLLAMA_URL", "http://localhost:11434")
		cfg.Detector.Model = getEnv("OLLAMA_MODEL", "llava")
	case detector.BackendGemini:
		cfg.Detector.APIKey = os.Getenv("GEMINI_API_KEY")
		cfg.Detector.Model = os.Getenv("GEMINI_MODEL_NAME")
	}

	if cfg.SessionSecret == "" {
		cfg.SessionSecret = uuid.NewString()
		logger.Warn("SESSION_TOKEN_SECRET is not set, using a random secret; sessions will not survive a restart")
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(logger *logrus.Logger, key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		logger.Warnf("Invalid %s=%q, using %d", key, raw, fallback)
		return fallback
	}
	return v
}

func getDuration(logger *logrus.Logger, key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		logger.Warnf("Invalid %s=%q, using %s", key, raw, fallback)
		return fallback
	}
	return v
}
