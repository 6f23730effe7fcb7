package classificationHandler

import (
	"net"
	"net/http/httptest"
	"testing"
	"time"

	"LettuceClassifier/internal/api/classification"
	"LettuceClassifier/internal/entity"
	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"
)

func TestClassifyWebSocket(t *testing.T) {
	app := newTestApp(&stubDetector{detections: []entity.Detection{{Label: "healthy", Confidence: 0.77}}})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go app.Listener(ln)
	defer app.Shutdown()

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/classify/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	tests := []struct {
		name        string
		messageType int
		payload     []byte
		detected    bool
		code        string
	}{
		{"binary png", websocket.BinaryMessage, onePixelPNG(t), true, ""},
		{"data uri text", websocket.TextMessage, []byte(dataURI(t)), true, ""},
		{"garbage text", websocket.TextMessage, []byte("data:image/png;base64,@@@"), false, classification.CodeDecodeError},
		{"garbage binary", websocket.BinaryMessage, []byte{0x00, 0x01, 0x02}, false, classification.CodeDecodeError},
	}

	for _, tt := range tests {
		conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
		if err := conn.WriteMessage(tt.messageType, tt.payload); err != nil {
			t.Fatalf("%s: write: %v", tt.name, err)
		}

		var got classification.ClassifyResponse
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		if err := conn.ReadJSON(&got); err != nil {
			t.Fatalf("%s: read: %v", tt.name, err)
		}

		if got.Detected != tt.detected || got.Code != tt.code {
			t.Errorf("%s: unexpected reply %+v", tt.name, got)
		}
		if tt.detected && (got.Classification == nil || *got.Classification != "healthy" || got.Confidence == nil || *got.Confidence != 0.77) {
			t.Errorf("%s: expected the healthy detection, got %+v", tt.name, got)
		}
		if !tt.detected && (got.Classification != nil || got.Error == "") {
			t.Errorf("%s: failure must carry an error and no classification, got %+v", tt.name, got)
		}
	}
}

func TestClassifyWebSocketRequiresUpgrade(t *testing.T) {
	app := newTestApp(&stubDetector{})

	resp, _ := do(t, app, httptest.NewRequest(fiber.MethodGet, "/classify/ws", nil))
	if resp.StatusCode != fiber.StatusUpgradeRequired {
		t.Errorf("expected 426 Upgrade Required, got %d", resp.StatusCode)
	}
}
