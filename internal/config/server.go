package config

import (
	"fmt"
	"strings"

	classificationHandler "LettuceClassifier/internal/api/classification/handler"
	classificationRepository "LettuceClassifier/internal/api/classification/repository"
	classificationService "LettuceClassifier/internal/api/classification/service"
	"LettuceClassifier/internal/middleware"
	"LettuceClassifier/pkg/detector"
	"LettuceClassifier/pkg/metrics"
	"LettuceClassifier/pkg/redis"
	"LettuceClassifier/pkg/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

type ServerOption func(*Server) error

type Server struct {
	engine         *fiber.App
	log            *logrus.Logger
	cfg            *AppConfig
	middleware     middleware.Middleware
	validator      *validator.Validate
	utils          utils.IUtils
	detector       detector.Detector
	redisServer    redis.IRedis
	history        classificationRepository.HistoryRepository
	classification classificationService.IClassificationService
	handlers       []handler
}

type handler interface {
	Start(srv fiber.Router)
}

func NewServer(options ...ServerOption) (*Server, error) {
	server := &Server{}

	for _, option := range options {
		if err := option(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.engine == nil {
		return nil, fmt.Errorf("fiber app is required")
	}
	if server.log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if server.cfg == nil {
		return nil, fmt.Errorf("app config is required")
	}

	return server, nil
}

func WithFiber(fiberApp *fiber.App) ServerOption {
	return func(s *Server) error {
		s.engine = fiberApp
		return nil
	}
}

func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) error {
		s.log = logger
		return nil
	}
}

func WithValidator(validator *validator.Validate) ServerOption {
	return func(s *Server) error {
		s.validator = validator
		return nil
	}
}

func WithAppConfig(cfg *AppConfig) ServerOption {
	return func(s *Server) error {
		s.cfg = cfg
		return nil
	}
}

// WithDetector never fails the server: a detector that cannot be created
// leaves the service in degraded mode.
func WithDetector() ServerOption {
	return func(s *Server) error {
		if s.log == nil || s.cfg == nil {
			return fmt.Errorf("logger and app config must be initialized before detector")
		}

		det, err := detector.New(s.cfg.Detector, s.log)
		if err != nil {
			s.log.Errorf("Failed to initialize %s detector, running degraded: %v", s.cfg.Detector.Backend, err)
			return nil
		}

		s.detector = det
		return nil
	}
}

func WithHistoryRepository() ServerOption {
	return func(s *Server) error {
		if s.log == nil || s.cfg == nil {
			return fmt.Errorf("logger and app config must be initialized before history repository")
		}

		switch strings.ToLower(s.cfg.HistoryBackend) {
		case "", HistoryBackendMemory:
			s.history = classificationRepository.NewMemory(s.cfg.HistoryTTL, s.log)
		case HistoryBackendRedis:
			s.redisServer = redis.New(redis.Options{
				Address:  s.cfg.RedisAddress,
				Password: s.cfg.RedisPassword,
				DB:       s.cfg.RedisDB,
			})
			s.history = classificationRepository.NewRedis(s.redisServer, s.cfg.HistoryTTL, s.log)
		default:
			return fmt.Errorf("unknown history backend %q", s.cfg.HistoryBackend)
		}
		return nil
	}
}

func WithMiddleware() ServerOption {
	return func(s *Server) error {
		if s.log == nil || s.cfg == nil {
			return fmt.Errorf("logger and app config must be initialized before middleware")
		}
		s.middleware = middleware.New(s.log, middleware.Options{
			SessionSecret: s.cfg.SessionSecret,
			RequestRate:   s.cfg.RequestRate,
			RequestBurst:  s.cfg.RequestBurst,
		})
		return nil
	}
}

func WithUtils() ServerOption {
	return func(s *Server) error {
		s.utils = utils.New()
		return nil
	}
}

func (s *Server) RegisterHandler() {
	if s.history == nil {
		s.history = classificationRepository.NewMemory(s.cfg.HistoryTTL, s.log)
	}

	// Classification Domain
	s.classification = classificationService.NewClassificationService(s.log, s.detector, s.history, classificationService.Options{
		InferenceTimeout: s.cfg.InferenceTimeout,
		SessionTTL:       s.cfg.HistoryTTL,
		ModelPath:        s.cfg.ModelPath,
		MaxImagePixels:   s.cfg.MaxImagePixels,
	})
	classificationHandlers := classificationHandler.New(s.log, s.validator, s.middleware, s.classification, s.utils, s.cfg.SessionSecret)

	s.handlers = append(s.handlers, classificationHandlers)
}

func (s *Server) Run() error {
	s.engine.Use(s.middleware.NewRequestIDMiddleware())
	s.engine.Use(s.middleware.NewLoggingMiddleware())

	s.setupHealthCheck()
	s.setupMetrics()

	for _, h := range s.handlers {
		h.Start(s.engine)
	}

	port := s.cfg.Port
	if port == "" {
		port = "5000"
	}

	return s.engine.Listen(fmt.Sprintf(":%s", port))
}

func (s *Server) Shutdown() error {
	err := s.engine.Shutdown()

	if s.detector != nil {
		if cerr := s.detector.Close(); cerr != nil {
			s.log.Errorf("Error closing detector: %v", cerr)
		}
	}
	if s.redisServer != nil {
		if cerr := s.redisServer.Close(); cerr != nil {
			s.log.Errorf("Error closing Redis client: %v", cerr)
		}
	}

	return err
}

func (s *Server) setupHealthCheck() {
	s.engine.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.JSON(fiber.Map{
			"message": "Lettuce Classification API",
			"status":  "running",
		})
	})
}

func (s *Server) setupMetrics() {
	promHandler := adaptor.HTTPHandler(promhttp.Handler())

	s.engine.Get("/metrics", func(ctx *fiber.Ctx) error {
		if s.classification != nil && s.classification.ModelStatus().Loaded {
			metrics.ModelLoaded.Set(1)
		} else {
			metrics.ModelLoaded.Set(0)
		}
		return promHandler(ctx)
	})
}
