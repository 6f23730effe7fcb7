package detector

import (
	"context"
	"encoding/base64"
	"errors"
	"image"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"LettuceClassifier/internal/entity"
	"LettuceClassifier/pkg/imagecodec"
	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestFilterByConfidencePreservesOrder(t *testing.T) {
	in := []entity.Detection{
		{Label: "fungal", Confidence: 0.61},
		{Label: "healthy", Confidence: 0.97},
		{Label: "weed", Confidence: 0.49},
		{Label: "bacterial", Confidence: 0.5},
	}

	got := FilterByConfidence(in, 0.5)

	want := []string{"fungal", "healthy", "bacterial"}
	if len(got) != len(want) {
		t.Fatalf("expected %d detections, got %d", len(want), len(got))
	}
	for i, label := range want {
		if got[i].Label != label {
			t.Errorf("position %d: expected %s, got %s", i, label, got[i].Label)
		}
	}
}

func TestParseModelText(t *testing.T) {
	text := "Sure, here it is:\n```json\n{\"detections\":[{\"class\":\"healthy\",\"confidence\":0.8,\"box\":[0.1,0.2,0.3,0.4]}]}\n```"

	r, err := parseModelText(text)
	if err != nil {
		t.Fatalf("parseModelText returned error: %v", err)
	}

	dets := r.toDetections()
	if len(dets) != 1 {
		t.Fatalf("expected 1 detection, got %d", len(dets))
	}
	if dets[0].Label != "healthy" {
		t.Errorf("expected class to fill label, got %q", dets[0].Label)
	}
	if dets[0].Box != (entity.BoundingBox{X1: 0.1, Y1: 0.2, X2: 0.3, Y2: 0.4}) {
		t.Errorf("unexpected box %+v", dets[0].Box)
	}

	if _, err := parseModelText("no json here"); !errors.Is(err, errNoJSON) {
		t.Errorf("expected errNoJSON, got %v", err)
	}
	if _, err := parseModelText(`{"error":"model crashed"}`); err == nil {
		t.Error("expected sidecar error to surface")
	}
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	_, err := New(Config{Backend: "tensorflow"}, quietLogger())
	if !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("expected ErrUnknownBackend, got %v", err)
	}
}

// fakeSidecar answers every frame with the given reply after checking it decodes.
func fakeSidecar(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Model-Path") != "weights/best.pt" {
			http.Error(w, "missing model path", http.StatusBadRequest)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}

			var req frameRequest
			if err := jsoniter.Unmarshal(msg, &req); err != nil {
				conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"bad request"}`))
				continue
			}
			raw, err := base64.StdEncoding.DecodeString(req.Image)
			if err != nil {
				conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"bad base64"}`))
				continue
			}
			if _, _, err := imagecodec.Decode(raw); err != nil {
				conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"bad image"}`))
				continue
			}
			if req.Confidence != 0.5 {
				conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"unexpected threshold"}`))
				continue
			}

			conn.WriteMessage(websocket.TextMessage, []byte(reply))
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWebSocketDetectorDetect(t *testing.T) {
	srv := fakeSidecar(t, `{"detections":[
		{"label":"bacterial","confidence":0.72,"box":[1,2,3,4]},
		{"label":"healthy","confidence":0.91,"box":[5,6,7,8]},
		{"label":"weed","confidence":0.2,"box":[0,0,1,1]}
	]}`)
	defer srv.Close()

	d, err := NewWebSocketDetector(wsURL(srv), "weights/best.pt", quietLogger())
	if err != nil {
		t.Fatalf("NewWebSocketDetector returned error: %v", err)
	}
	defer d.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	dets, err := d.Detect(ctx, image.NewRGBA(image.Rect(0, 0, 4, 4)), 0.5)
	if err != nil {
		t.Fatalf("Detect returned error: %v", err)
	}

	if len(dets) != 2 {
		t.Fatalf("expected 2 detections above threshold, got %d", len(dets))
	}
	if dets[0].Label != "bacterial" || dets[0].Confidence != 0.72 {
		t.Errorf("expected first returned box to stay first, got %+v", dets[0])
	}
	if !d.Ready() {
		t.Error("expected detector to report ready after a successful exchange")
	}
}

func TestWebSocketDetectorSurfacesSidecarError(t *testing.T) {
	srv := fakeSidecar(t, `{"error":"CUDA out of memory"}`)
	defer srv.Close()

	d, _ := NewWebSocketDetector(wsURL(srv), "weights/best.pt", quietLogger())
	defer d.Close()

	_, err := d.Detect(context.Background(), image.NewRGBA(image.Rect(0, 0, 2, 2)), 0.5)
	if err == nil || !strings.Contains(err.Error(), "CUDA out of memory") {
		t.Errorf("expected sidecar error, got %v", err)
	}
}

func TestWebSocketDetectorUnreachable(t *testing.T) {
	d, err := NewWebSocketDetector("ws://127.0.0.1:1/detect", "", quietLogger())
	if err != nil {
		t.Fatalf("construction should not dial synchronously: %v", err)
	}
	defer d.Close()

	_, err = d.Detect(context.Background(), image.NewRGBA(image.Rect(0, 0, 2, 2)), 0.5)
	if !errors.Is(err, ErrNotReady) {
		t.Errorf("expected ErrNotReady, got %v", err)
	}
}

func TestNewWebSocketDetectorRequiresURL(t *testing.T) {
	if _, err := NewWebSocketDetector("", "", quietLogger()); err == nil {
		t.Error("expected error for empty URL")
	}
}

// silentListener accepts TCP connections and never answers the upgrade.
func silentListener(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	var mu sync.Mutex
	var conns []net.Conn
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, c)
			mu.Unlock()
		}
	}()

	t.Cleanup(func() {
		ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			c.Close()
		}
	})

	return "ws://" + ln.Addr().String() + "/detect"
}

func TestWebSocketDetectorDialHonoursDeadline(t *testing.T) {
	d, err := NewWebSocketDetector(silentListener(t), "", quietLogger())
	if err != nil {
		t.Fatalf("NewWebSocketDetector returned error: %v", err)
	}
	defer d.Close()

	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		start := time.Now()
		_, err := d.Detect(ctx, image.NewRGBA(image.Rect(0, 0, 2, 2)), 0.5)
		elapsed := time.Since(start)
		cancel()

		if err == nil {
			t.Fatalf("attempt %d: expected an error from a silent sidecar", i)
		}
		if elapsed > 2*time.Second {
			t.Fatalf("attempt %d: Detect took %v with a 200ms deadline", i, elapsed)
		}
	}
}

func TestWebSocketDetectorQueuedFrameHonoursDeadline(t *testing.T) {
	upgrader := websocket.Upgrader{}
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		// Swallow frames without replying.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
			<-release
		}
	}))
	defer srv.Close()
	defer close(release)

	d, _ := NewWebSocketDetector(wsURL(srv), "", quietLogger())
	defer d.Close()

	first := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_, err := d.Detect(ctx, image.NewRGBA(image.Rect(0, 0, 2, 2)), 0.5)
		first <- err
	}()

	// Let the first frame take the connection.
	time.Sleep(300 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := d.Detect(ctx, image.NewRGBA(image.Rect(0, 0, 2, 2)), 0.5)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded while queued, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("queued Detect took %v with a 100ms deadline", elapsed)
	}

	if err := <-first; err == nil {
		t.Error("expected the unanswered frame to fail")
	}
}
