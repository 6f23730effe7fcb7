package detector

import (
	"context"
	"fmt"
	"image"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"LettuceClassifier/internal/entity"
	"LettuceClassifier/pkg/imagecodec"
	"github.com/ollama/ollama/api"
	"github.com/sirupsen/logrus"
)

type ollamaDetector struct {
	client *api.Client
	model  string
	maxDim int
	ready  atomic.Bool
}

func NewOllamaDetector(ctx context.Context, ollamaURL, model string, maxDim int, log *logrus.Logger) (Detector, error) {
	if model == "" {
		return nil, fmt.Errorf("ollama model name is required")
	}

	parsedURL, err := url.Parse(ollamaURL)
	if err != nil || parsedURL.Host == "" {
		return nil, fmt.Errorf("invalid ollama URL %q", ollamaURL)
	}

	baseURL := &url.URL{
		Scheme: parsedURL.Scheme,
		Host:   parsedURL.Host,
	}

	d := &ollamaDetector{
		client: api.NewClient(baseURL, http.DefaultClient),
		model:  model,
		maxDim: maxDim,
	}

	hbCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := d.client.Heartbeat(hbCtx); err != nil {
		if log != nil {
			log.WithFields(logrus.Fields{
				"url":   baseURL.String(),
				"error": err.Error(),
			}).Warn("Ollama heartbeat failed, detector starts not ready")
		}
	} else {
		d.ready.Store(true)
	}

	return d, nil
}

func (d *ollamaDetector) Name() string {
	return BackendOllama
}

func (d *ollamaDetector) Ready() bool {
	return d.ready.Load()
}

func (d *ollamaDetector) Detect(ctx context.Context, img image.Image, threshold float64) ([]entity.Detection, error) {
	imgBytes, err := imagecodec.PrepareForModel(img, d.maxDim, 85)
	if err != nil {
		return nil, fmt.Errorf("prepare image: %w", err)
	}

	streamFalse := false
	req := &api.ChatRequest{
		Model: d.model,
		Messages: []api.Message{
			{
				Role:    "user",
				Content: buildPrompt(threshold),
				Images:  []api.ImageData{api.ImageData(imgBytes)},
			},
		},
		Stream:  &streamFalse,
		Options: map[string]any{"temperature": 0},
	}

	var content string
	err = d.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		content += resp.Message.Content
		return nil
	})
	if err != nil {
		d.ready.Store(false)
		return nil, fmt.Errorf("ollama chat error: %w", err)
	}
	d.ready.Store(true)

	if content == "" {
		return nil, fmt.Errorf("empty response from ollama")
	}

	r, err := parseModelText(content)
	if err != nil {
		return nil, err
	}

	return FilterByConfidence(r.toDetections(), threshold), nil
}

func (d *ollamaDetector) Close() error {
	return nil
}
