package detector

import (
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"LettuceClassifier/internal/entity"
	"LettuceClassifier/pkg/imagecodec"
	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

// frameRequest is what the inference sidecar expects per frame.
type frameRequest struct {
	Image      string  `json:"image"`
	Confidence float64 `json:"conf"`
}

// webSocketDetector talks to a model-serving sidecar that owns the weights
// file. One frame is in flight per connection at a time; sem guards conn and
// is acquired with the caller's context so queued frames honour their deadline.
type webSocketDetector struct {
	url              string
	modelPath        string
	conn             *websocket.Conn
	connected        atomic.Bool
	sem              chan struct{}
	pingInterval     time.Duration
	readTimeout      time.Duration
	writeTimeout     time.Duration
	handshakeTimeout time.Duration
	stop             chan struct{}
	closeOnce        sync.Once
	log              *logrus.Logger
}

func NewWebSocketDetector(url, modelPath string, log *logrus.Logger) (Detector, error) {
	if url == "" {
		return nil, fmt.Errorf("detector URL not configured")
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	d := &webSocketDetector{
		url:              url,
		modelPath:        modelPath,
		sem:              make(chan struct{}, 1),
		pingInterval:     30 * time.Second,
		readTimeout:      30 * time.Second,
		writeTimeout:     5 * time.Second,
		handshakeTimeout: 10 * time.Second,
		stop:             make(chan struct{}),
		log:              log,
	}

	go d.connectInBackground()

	return d, nil
}

func (d *webSocketDetector) Name() string {
	return BackendWebSocket
}

// Ready must not take sem; a frame may hold it for the full read timeout.
func (d *webSocketDetector) Ready() bool {
	return d.connected.Load()
}

func (d *webSocketDetector) acquire(ctx context.Context) error {
	select {
	case d.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-d.stop:
		return ErrNotReady
	}
}

func (d *webSocketDetector) release() {
	<-d.sem
}

// connectInBackground dials without holding sem, so early frames are free to
// dial on their own deadline instead of waiting behind the startup attempt.
func (d *webSocketDetector) connectInBackground() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-d.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	conn, err := d.dial(ctx)
	if err != nil {
		d.log.WithFields(logrus.Fields{
			"url":   d.url,
			"error": err.Error(),
		}).Warn("Initial connection to inference sidecar failed, will retry on demand")
		return
	}

	if err := d.acquire(ctx); err != nil {
		conn.Close()
		return
	}
	defer d.release()

	if d.conn != nil {
		// A frame connected first.
		conn.Close()
		return
	}
	d.installLocked(conn)
	d.log.WithField("url", d.url).Info("Connected to inference sidecar")
}

func (d *webSocketDetector) dial(ctx context.Context) (*websocket.Conn, error) {
	select {
	case <-d.stop:
		return nil, ErrNotReady
	default:
	}

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = d.handshakeTimeout

	header := http.Header{}
	if d.modelPath != "" {
		header.Set("X-Model-Path", d.modelPath)
	}

	conn, _, err := dialer.DialContext(ctx, d.url, header)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", d.url, err)
	}

	conn.SetPingHandler(func(appData string) error {
		if err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(d.writeTimeout)); err != nil {
			d.log.WithField("error", err.Error()).Debug("Error sending pong to inference sidecar")
		}
		return nil
	})

	return conn, nil
}

func (d *webSocketDetector) installLocked(conn *websocket.Conn) {
	d.conn = conn
	d.connected.Store(true)
	go d.keepAlive(conn)
}

func (d *webSocketDetector) keepAlive(conn *websocket.Conn) {
	ticker := time.NewTicker(d.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stop:
			return
		case <-ticker.C:
		}

		select {
		case d.sem <- struct{}{}:
		case <-d.stop:
			return
		}
		if d.conn != conn {
			d.release()
			return
		}

		if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(d.writeTimeout)); err != nil {
			d.log.WithField("error", err.Error()).Warn("Ping to inference sidecar failed, marking connection as dead")
			d.dropLocked(conn)
			d.release()
			return
		}
		d.release()
	}
}

func (d *webSocketDetector) Detect(ctx context.Context, img image.Image, threshold float64) ([]entity.Detection, error) {
	frame, err := imagecodec.EncodePNG(img)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}

	payload, err := jsoniter.Marshal(frameRequest{
		Image:      base64.StdEncoding.EncodeToString(frame),
		Confidence: threshold,
	})
	if err != nil {
		return nil, err
	}

	if err := d.acquire(ctx); err != nil {
		return nil, fmt.Errorf("waiting for inference sidecar: %w", err)
	}
	defer d.release()

	if d.conn == nil {
		conn, err := d.dial(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNotReady, err)
		}
		d.installLocked(conn)
	}
	conn := d.conn

	writeDeadline := deadline(ctx, d.writeTimeout)
	conn.SetWriteDeadline(writeDeadline)
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		d.dropLocked(conn)
		return nil, fmt.Errorf("error sending frame: %w", err)
	}

	// Unblock the read if the caller gives up before the deadline.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.SetReadDeadline(time.Now())
		case <-done:
		}
	}()

	conn.SetReadDeadline(deadline(ctx, d.readTimeout))
	_, message, err := conn.ReadMessage()
	if err != nil {
		d.dropLocked(conn)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("error reading detection reply: %w", err)
	}

	conn.SetReadDeadline(time.Time{})
	conn.SetWriteDeadline(time.Time{})

	r, err := parseReply(message)
	if err != nil {
		return nil, fmt.Errorf("error parsing detection reply: %w", err)
	}

	return FilterByConfidence(r.toDetections(), threshold), nil
}

func (d *webSocketDetector) dropLocked(conn *websocket.Conn) {
	if d.conn == conn {
		d.conn = nil
		d.connected.Store(false)
	}
	conn.Close()
}

func (d *webSocketDetector) Close() error {
	d.closeOnce.Do(func() { close(d.stop) })

	d.sem <- struct{}{}
	defer d.release()

	if d.conn != nil {
		err := d.conn.Close()
		d.conn = nil
		d.connected.Store(false)
		return err
	}
	return nil
}

// deadline picks the sooner of the context deadline and now+timeout.
func deadline(ctx context.Context, timeout time.Duration) time.Time {
	t := time.Now().Add(timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(t) {
		return ctxDeadline
	}
	return t
}
