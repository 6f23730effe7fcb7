package classificationHandler

import (
	"bytes"
	"embed"
	"html/template"

	"LettuceClassifier/internal/api/classification"
	"LettuceClassifier/internal/entity"
	"LettuceClassifier/internal/middleware"
	contextPkg "LettuceClassifier/pkg/context"
	"LettuceClassifier/pkg/export"
	jwtPkg "LettuceClassifier/pkg/jwt"
	"LettuceClassifier/pkg/log"
	"github.com/gofiber/fiber/v2"
)

//go:embed templates/index.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

type pageData struct {
	ModelLoaded bool
	Detector    string
	ImageName   string
	Result      *classification.ClassifyResponse
	Confidence  string
	History     []classification.HistoryEntryResponse
	Message     string
}

func (h *ClassificationHandler) RenderPage(ctx *fiber.Ctx) error {
	sessionID, err := h.pageSession(ctx)
	if err != nil {
		return h.renderPageError(ctx, err)
	}
	return h.renderPage(ctx, sessionID, pageData{})
}

func (h *ClassificationHandler) ClassifyFromPage(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)

	sessionID, err := h.pageSession(ctx)
	if err != nil {
		return h.renderPageError(ctx, err)
	}

	file, err := ctx.FormFile("image")
	if err != nil {
		return h.renderPage(ctx, sessionID, pageData{Message: "Choose an image to classify."})
	}

	data, err := h.utils.ReadImageFile(file)
	if err != nil {
		return h.renderPage(ctx, sessionID, pageData{Message: err.Error()})
	}

	page := pageData{ImageName: file.Filename}
	c := contextPkg.WithSessionID(contextPkg.FromFiberCtx(ctx), sessionID)
	result, err := h.classificationService.ClassifyForSession(c, sessionID, entity.ImageInput{Data: data, Filename: file.Filename})
	if err != nil {
		h.log.WithFields(log.Fields{
			"request_id": requestID,
			"session_id": sessionID,
			"error":      err.Error(),
		}).Warn("Page classification failed")
		failure := classification.NewFailureResponse(err)
		page.Result = &failure
	} else {
		success := classification.NewClassifyResponse(result)
		page.Result = &success
		page.Confidence = export.FormatConfidence(result.Confidence)
	}

	return h.renderPage(ctx, sessionID, page)
}

func (h *ClassificationHandler) ExportFromPage(ctx *fiber.Ctx) error {
	sessionID, err := h.pageSession(ctx)
	if err != nil {
		return h.renderPageError(ctx, err)
	}
	return h.exportHistory(ctx, sessionID)
}

func (h *ClassificationHandler) ResetFromPage(ctx *fiber.Ctx) error {
	sessionID, err := h.pageSession(ctx)
	if err != nil {
		return h.renderPageError(ctx, err)
	}

	if err := h.classificationService.ResetHistory(contextPkg.FromFiberCtx(ctx), sessionID); err != nil {
		return h.renderPageError(ctx, err)
	}

	return h.renderPage(ctx, sessionID, pageData{Message: "History cleared."})
}

// pageSession returns the session behind the page cookie, issuing a fresh one
// when the cookie is missing, expired or forged.
func (h *ClassificationHandler) pageSession(ctx *fiber.Ctx) (string, error) {
	if sessionID, err := jwtPkg.VerifySession(ctx.Cookies(middleware.SessionCookie), h.sessionSecret); err == nil {
		return sessionID, nil
	}

	session, token, err := h.startSession(ctx)
	if err != nil {
		return "", err
	}

	cookie := &fiber.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Path:     "/",
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	}
	if !session.ExpiresAt.IsZero() {
		cookie.Expires = session.ExpiresAt
	}
	ctx.Cookie(cookie)

	log.Debug(log.Fields{
		"request_id": h.middleware.GetRequestID(ctx),
		"session_id": session.ID,
	}, "Issued page session cookie")

	return session.ID, nil
}

func (h *ClassificationHandler) renderPage(ctx *fiber.Ctx, sessionID string, page pageData) error {
	entries, err := h.classificationService.History(contextPkg.FromFiberCtx(ctx), sessionID)
	if err != nil {
		return h.renderPageError(ctx, err)
	}

	status := h.classificationService.ModelStatus()
	page.ModelLoaded = status.Loaded
	page.Detector = status.Backend
	page.History = classification.NewHistoryResponse(sessionID, entries).Entries

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, page); err != nil {
		return h.renderPageError(ctx, err)
	}

	ctx.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return ctx.Status(fiber.StatusOK).Send(buf.Bytes())
}

func (h *ClassificationHandler) renderPageError(ctx *fiber.Ctx, err error) error {
	traceID := log.ErrorWithTraceID(log.Fields{
		"request_id": h.middleware.GetRequestID(ctx),
		"path":       ctx.Path(),
		"error":      err.Error(),
	}, "Failed to render page")

	return ctx.Status(fiber.StatusInternalServerError).SendString("Something went wrong. Trace ID: " + traceID)
}
