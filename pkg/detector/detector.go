// Package detector adapts external object-detection backends to a single
// contract: one image in, an ordered list of labelled boxes out.
package detector

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"

	"LettuceClassifier/internal/entity"
	"github.com/sirupsen/logrus"
)

const (
	BackendWebSocket = "websocket"
	BackendOllama    = "ollama"
	BackendGemini    = "gemini"
)

var (
	ErrNotReady       = errors.New("detector not ready")
	ErrUnknownBackend = errors.New("unknown detector backend")
)

// Detector returns detections at or above threshold in the order the model
// produced them. An empty slice with a nil error means nothing was found.
type Detector interface {
	Detect(ctx context.Context, img image.Image, threshold float64) ([]entity.Detection, error)
	Name() string
	Ready() bool
	Close() error
}

type Config struct {
	Backend     string
	ModelPath   string
	URL         string
	Model       string
	APIKey      string
	MaxImageDim int
}

func New(cfg Config, log *logrus.Logger) (Detector, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", BackendWebSocket:
		return NewWebSocketDetector(cfg.URL, cfg.ModelPath, log)
	case BackendOllama:
		return NewOllamaDetector(context.Background(), cfg.URL, cfg.Model, cfg.MaxImageDim, log)
	case BackendGemini:
		return NewGeminiDetector(context.Background(), cfg.APIKey, cfg.Model, cfg.MaxImageDim)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, cfg.Backend)
	}
}

// FilterByConfidence keeps detections whose confidence reaches threshold,
// preserving their original order.
func FilterByConfidence(detections []entity.Detection, threshold float64) []entity.Detection {
	filtered := make([]entity.Detection, 0, len(detections))
	for _, d := range detections {
		if d.Confidence >= threshold {
			filtered = append(filtered, d)
		}
	}
	return filtered
}
