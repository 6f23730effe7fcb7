package classificationHandler

import (
	"context"
	"time"

	"LettuceClassifier/internal/api/classification"
	"LettuceClassifier/internal/entity"
	contextPkg "LettuceClassifier/pkg/context"
	"github.com/gofiber/websocket/v2"
)

// handleClassifyWebSocket classifies each binary frame (raw image bytes) or
// text frame (base64 / data URI) and answers with one result per frame.
func (h *ClassificationHandler) handleClassifyWebSocket(c *websocket.Conn) {
	requestID, _ := c.Locals("X-Request-ID").(string)
	h.log.WithField("request_id", requestID).Info("Classification WebSocket client connected")
	defer h.log.WithField("request_id", requestID).Info("Classification WebSocket client disconnected")

	c.SetPingHandler(func(data string) error {
		if err := c.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second)); err != nil {
			h.log.Errorf("Error sending pong: %v", err)
		}
		return nil
	})

	maxReadTimeout := 60 * time.Second
	ctx := contextPkg.WithRequestID(context.Background(), requestID)

	for {
		if err := c.SetReadDeadline(time.Now().Add(maxReadTimeout)); err != nil {
			h.log.Errorf("Error setting read deadline: %v", err)
			break
		}

		messageType, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Errorf("Classification WebSocket error: %v", err)
			}
			break
		}

		var input entity.ImageInput
		switch messageType {
		case websocket.BinaryMessage:
			input.Data = message
		case websocket.TextMessage:
			input.Base64 = string(message)
		default:
			h.log.Warnf("Received unexpected message type: %d", messageType)
			continue
		}

		var reply classification.ClassifyResponse
		result, err := h.classificationService.Classify(ctx, input)
		if err != nil {
			h.log.WithField("request_id", requestID).Warnf("Error classifying frame: %v", err)
			reply = classification.NewFailureResponse(err)
		} else {
			reply = classification.NewClassifyResponse(result)
		}

		if err := c.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
			h.log.Errorf("Error setting write deadline: %v", err)
			break
		}

		if err := c.WriteJSON(reply); err != nil {
			h.log.Errorf("Error writing JSON response: %v", err)
			break
		}
	}
}
