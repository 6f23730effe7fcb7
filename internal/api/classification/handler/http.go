package classificationHandler

import (
	classificationService "LettuceClassifier/internal/api/classification/service"
	"LettuceClassifier/internal/middleware"
	"LettuceClassifier/pkg/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

type ClassificationHandler struct {
	log                   *logrus.Logger
	validator             *validator.Validate
	middleware            middleware.Middleware
	classificationService classificationService.IClassificationService
	utils                 utils.IUtils
	sessionSecret         string
}

func New(
	log *logrus.Logger,
	validator *validator.Validate,
	middleware middleware.Middleware,
	cs classificationService.IClassificationService,
	utils utils.IUtils,
	sessionSecret string,
) *ClassificationHandler {
	return &ClassificationHandler{
		classificationService: cs,
		log:                   log,
		validator:             validator,
		middleware:            middleware,
		utils:                 utils,
		sessionSecret:         sessionSecret,
	}
}

func (h *ClassificationHandler) Start(srv fiber.Router) {
	wsMiddleware := func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}

	srv.Get("/health", h.Health)
	srv.Post("/classify", h.middleware.NewRateLimiter, h.Classify)
	srv.Use("/classify/ws", wsMiddleware)
	srv.Get("/classify/ws", websocket.New(h.handleClassifyWebSocket))

	api := srv.Group("/api/v1")
	api.Post("/sessions", h.middleware.NewRateLimiter, h.CreateSession)

	api.Post("/classify", h.middleware.NewRateLimiter, h.middleware.NewSessionMiddleware, h.ClassifyForSession)
	api.Get("/history", h.middleware.NewSessionMiddleware, h.GetHistory)
	api.Get("/history/export", h.middleware.NewSessionMiddleware, h.ExportHistory)
	api.Delete("/history", h.middleware.NewSessionMiddleware, h.ResetHistory)

	ui := srv.Group("/ui")
	ui.Get("", h.RenderPage)
	ui.Post("/classify", h.middleware.NewRateLimiter, h.ClassifyFromPage)
	ui.Get("/export", h.ExportFromPage)
	ui.Post("/reset", h.ResetFromPage)
}
