package classificationHandler

import (
	"LettuceClassifier/internal/api/classification"
	"LettuceClassifier/internal/entity"
	contextPkg "LettuceClassifier/pkg/context"
	"LettuceClassifier/pkg/handlerUtil"
	"LettuceClassifier/pkg/log"
	"github.com/gofiber/fiber/v2"
)

func (h *ClassificationHandler) Health(ctx *fiber.Ctx) error {
	historyErr := h.classificationService.HistoryStatus(contextPkg.FromFiberCtx(ctx))
	return ctx.Status(fiber.StatusOK).JSON(classification.NewHealthResponse(h.classificationService.ModelStatus(), historyErr))
}

func (h *ClassificationHandler) Classify(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c := contextPkg.FromFiberCtx(ctx)
	errHandler := handlerUtil.New(h.log)

	input, err := h.readImageInput(ctx, requestID)
	if err != nil {
		return h.handleInputError(ctx, errHandler, requestID, err)
	}

	result, err := h.classificationService.Classify(c, input)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "classify")
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, classification.NewClassifyResponse(result))
}

func (h *ClassificationHandler) ClassifyForSession(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	sessionID := h.middleware.GetSessionID(ctx)
	c := contextPkg.FromFiberCtx(ctx)
	errHandler := handlerUtil.New(h.log)

	input, err := h.readImageInput(ctx, requestID)
	if err != nil {
		return h.handleInputError(ctx, errHandler, requestID, err)
	}

	result, err := h.classificationService.ClassifyForSession(c, sessionID, input)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "classify_for_session")
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, classification.NewClassifyResponse(result))
}

// readImageInput takes a multipart "image" file when present, otherwise a JSON
// body with a base64 "image" field.
func (h *ClassificationHandler) readImageInput(ctx *fiber.Ctx, requestID string) (entity.ImageInput, error) {
	file, err := ctx.FormFile("image")
	if err == nil {
		h.log.WithFields(log.Fields{
			"request_id": requestID,
			"path":       ctx.Path(),
			"file_name":  file.Filename,
			"file_size":  file.Size,
		}).Debug("Processing file upload")

		data, err := h.utils.ReadImageFile(file)
		if err != nil {
			return entity.ImageInput{}, err
		}
		return entity.ImageInput{Data: data, Filename: file.Filename}, nil
	}

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"path":       ctx.Path(),
	}).Debug("Processing JSON request")

	var req classification.ClassifyRequest
	if err := ctx.BodyParser(&req); err != nil {
		return entity.ImageInput{}, classification.ErrBadRequest
	}

	if err := h.validator.Struct(req); err != nil {
		return entity.ImageInput{}, errValidation{err}
	}

	return entity.ImageInput{Base64: req.Image, Filename: ctx.Get("X-Image-Name")}, nil
}

type errValidation struct {
	error
}

func (h *ClassificationHandler) handleInputError(ctx *fiber.Ctx, errHandler *handlerUtil.ErrorHandler, requestID string, err error) error {
	if v, ok := err.(errValidation); ok {
		return errHandler.HandleValidationError(ctx, requestID, v.error, ctx.Path())
	}
	return errHandler.Handle(ctx, requestID, err, ctx.Path(), "read_image_input")
}
