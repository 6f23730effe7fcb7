package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type Middleware interface {
	NewRateLimiter(ctx *fiber.Ctx) error
	NewSessionMiddleware(ctx *fiber.Ctx) error
	NewRequestIDMiddleware() fiber.Handler
	NewLoggingMiddleware() fiber.Handler
	GetRequestID(ctx *fiber.Ctx) string
	GetSessionID(ctx *fiber.Ctx) string
}

type middleware struct {
	session             *sessionMiddleware
	rateLimitter        *rateLimiter
	requestIDMiddleware fiber.Handler
	log                 *logrus.Logger
}

type Options struct {
	SessionSecret string
	RequestRate   float64
	RequestBurst  int
}

func New(logger *logrus.Logger, opts Options) Middleware {
	if opts.RequestRate <= 0 {
		opts.RequestRate = 10
	}
	if opts.RequestBurst <= 0 {
		opts.RequestBurst = 20
	}

	return &middleware{
		session:             newSessionMiddleware(opts.SessionSecret),
		rateLimitter:        newRateLimiter(opts.RequestRate, opts.RequestBurst),
		requestIDMiddleware: NewRequestIDMiddleware(),
		log:                 logger,
	}
}

func (m *middleware) GetRequestID(ctx *fiber.Ctx) string {
	requestID, ok := ctx.Locals(RequestIDKey).(string)
	if !ok || requestID == "" {
		return "unknown"
	}
	return requestID
}

func (m *middleware) NewRequestIDMiddleware() fiber.Handler {
	return m.requestIDMiddleware
}

func (m *middleware) NewLoggingMiddleware() fiber.Handler {
	return LoggerConfig()
}
