package classificationService

import (
	"context"
	"fmt"
	"image"
	"time"

	"LettuceClassifier/internal/api/classification"
	"LettuceClassifier/internal/entity"
	contextPkg "LettuceClassifier/pkg/context"
	"LettuceClassifier/pkg/imagecodec"
	"LettuceClassifier/pkg/log"
	"LettuceClassifier/pkg/metrics"
)

func (s *classificationService) Classify(ctx context.Context, input entity.ImageInput) (*entity.ClassificationResult, error) {
	requestID := contextPkg.GetRequestID(ctx)

	img, err := decodeInput(input, s.opts.MaxImagePixels)
	if err != nil {
		metrics.Classifications.WithLabelValues(metrics.OutcomeDecodeError).Inc()
		s.log.WithFields(log.Fields{
			"request_id": requestID,
			"image_name": input.Filename,
			"error":      err.Error(),
		}).Warn("Failed to decode image")
		return nil, &classification.DecodeError{Err: err}
	}

	if s.detector == nil {
		metrics.Classifications.WithLabelValues(metrics.OutcomeInferenceError).Inc()
		return nil, &classification.InferenceError{Err: classification.ErrModelNotLoaded}
	}

	detectCtx := ctx
	if s.opts.InferenceTimeout > 0 {
		var cancel context.CancelFunc
		detectCtx, cancel = context.WithTimeout(ctx, s.opts.InferenceTimeout)
		defer cancel()
	}

	start := time.Now()
	detections, err := s.detector.Detect(detectCtx, img, ConfidenceFloor)
	metrics.DetectorLatency.WithLabelValues(s.detector.Name()).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.Classifications.WithLabelValues(metrics.OutcomeInferenceError).Inc()
		s.log.WithFields(log.Fields{
			"request_id": requestID,
			"detector":   s.detector.Name(),
			"error":      err.Error(),
		}).Error("Detector call failed")
		return nil, &classification.InferenceError{Err: fmt.Errorf("inference failed: %w", err)}
	}

	if len(detections) == 0 {
		metrics.Classifications.WithLabelValues(metrics.OutcomeNotDetected).Inc()
		s.log.WithFields(log.Fields{
			"request_id": requestID,
		}).Debug("No detection above confidence floor")
		return &entity.ClassificationResult{Detected: false}, nil
	}

	// The detector's own ordering decides; no re-ranking by confidence.
	first := detections[0]
	metrics.Classifications.WithLabelValues(metrics.OutcomeDetected).Inc()
	s.log.WithFields(log.Fields{
		"request_id":     requestID,
		"classification": first.Label,
		"confidence":     first.Confidence,
		"candidates":     len(detections),
	}).Info("Image classified")

	return &entity.ClassificationResult{
		Detected:       true,
		Classification: first.Label,
		Confidence:     first.Confidence,
	}, nil
}

func decodeInput(input entity.ImageInput, maxPixels int64) (image.Image, error) {
	data := input.Data
	if len(data) == 0 {
		decoded, err := imagecodec.DecodeBase64(input.Base64)
		if err != nil {
			return nil, err
		}
		data = decoded
	}

	img, _, err := imagecodec.DecodeWithLimit(data, maxPixels)
	return img, err
}
