package classificationHandler

import (
	"bytes"
	"time"

	"LettuceClassifier/internal/api/classification"
	"LettuceClassifier/internal/entity"
	contextPkg "LettuceClassifier/pkg/context"
	"LettuceClassifier/pkg/handlerUtil"
	jwtPkg "LettuceClassifier/pkg/jwt"
	"LettuceClassifier/pkg/log"
	"github.com/gofiber/fiber/v2"
)

const exportFileName = "classification_history.csv"

func (h *ClassificationHandler) CreateSession(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c := contextPkg.FromFiberCtx(ctx)
	errHandler := handlerUtil.New(h.log)

	session, token, err := h.startSession(ctx)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "create_session")
	}

	log.WithRequestID(c).WithField("session_id", session.ID).Debug("Issued session token")

	return errHandler.HandleSuccess(ctx, fiber.StatusCreated, classification.SessionResponse{
		SessionID: session.ID,
		Token:     token,
		ExpiresAt: session.ExpiresAt,
	})
}

func (h *ClassificationHandler) startSession(ctx *fiber.Ctx) (*entity.Session, string, error) {
	session, err := h.classificationService.StartSession(contextPkg.FromFiberCtx(ctx))
	if err != nil {
		return nil, "", err
	}

	expiresAt := session.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = session.CreatedAt.Add(24 * time.Hour)
	}

	token, err := jwtPkg.SignSession(session.ID, session.CreatedAt, expiresAt, h.sessionSecret)
	if err != nil {
		return nil, "", err
	}

	return session, token, nil
}

func (h *ClassificationHandler) GetHistory(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	sessionID := h.middleware.GetSessionID(ctx)
	errHandler := handlerUtil.New(h.log)

	entries, err := h.classificationService.History(contextPkg.FromFiberCtx(ctx), sessionID)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "get_history")
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, classification.NewHistoryResponse(sessionID, entries))
}

func (h *ClassificationHandler) ExportHistory(ctx *fiber.Ctx) error {
	return h.exportHistory(ctx, h.middleware.GetSessionID(ctx))
}

func (h *ClassificationHandler) exportHistory(ctx *fiber.Ctx, sessionID string) error {
	requestID := h.middleware.GetRequestID(ctx)
	errHandler := handlerUtil.New(h.log)

	var buf bytes.Buffer
	if err := h.classificationService.ExportHistory(contextPkg.FromFiberCtx(ctx), sessionID, &buf); err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "export_history")
	}

	ctx.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	ctx.Attachment(exportFileName)
	return ctx.Status(fiber.StatusOK).Send(buf.Bytes())
}

func (h *ClassificationHandler) ResetHistory(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	sessionID := h.middleware.GetSessionID(ctx)
	errHandler := handlerUtil.New(h.log)

	if err := h.classificationService.ResetHistory(contextPkg.FromFiberCtx(ctx), sessionID); err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "reset_history")
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, fiber.Map{
		"message": "History cleared",
	})
}
