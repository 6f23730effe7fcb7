package detector

import (
	"context"
	"errors"
	"fmt"
	"image"

	"LettuceClassifier/internal/entity"
	"LettuceClassifier/pkg/imagecodec"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

type geminiDetector struct {
	modelName string
	maxDim    int
	client    *genai.Client
}

func NewGeminiDetector(ctx context.Context, apiKey, modelName string, maxDim int) (Detector, error) {
	if apiKey == "" {
		return nil, errors.New("gemini API key is required")
	}

	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}

	return &geminiDetector{
		modelName: modelName,
		maxDim:    maxDim,
		client:    client,
	}, nil
}

func (g *geminiDetector) Name() string {
	return BackendGemini
}

func (g *geminiDetector) Ready() bool {
	return g.client != nil
}

func (g *geminiDetector) Detect(ctx context.Context, img image.Image, threshold float64) ([]entity.Detection, error) {
	imgData, err := imagecodec.PrepareForModel(img, g.maxDim, 85)
	if err != nil {
		return nil, fmt.Errorf("prepare image: %w", err)
	}

	model := g.client.GenerativeModel(g.modelName)
	model.SetTemperature(0)
	model.ResponseMIMEType = "application/json"

	res, err := model.GenerateContent(ctx, genai.Text(buildPrompt(threshold)), genai.ImageData("jpeg", imgData))
	if err != nil {
		return nil, err
	}

	if len(res.Candidates) == 0 || res.Candidates[0].Content == nil || len(res.Candidates[0].Content.Parts) == 0 {
		return nil, errors.New("no response from Gemini API")
	}

	text, ok := res.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return nil, errors.New("unexpected response format from Gemini API")
	}

	r, err := parseModelText(string(text))
	if err != nil {
		return nil, err
	}

	return FilterByConfidence(r.toDetections(), threshold), nil
}

func (g *geminiDetector) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}
