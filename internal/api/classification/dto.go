package classification

import (
	"errors"
	"time"

	"LettuceClassifier/internal/entity"
	"LettuceClassifier/pkg/export"
)

type ClassifyRequest struct {
	Image string `json:"image" validate:"required"`
}

// ClassifyResponse mirrors the public contract: classification and confidence
// only when detected, error and code only on failure.
type ClassifyResponse struct {
	Detected       bool     `json:"detected"`
	Classification *string  `json:"classification,omitempty"`
	Confidence     *float64 `json:"confidence,omitempty"`
	Error          string   `json:"error,omitempty"`
	Code           string   `json:"code,omitempty"`
}

type HealthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
	Detector    string `json:"detector,omitempty"`
	History     string `json:"history"`
}

type SessionResponse struct {
	SessionID string    `json:"session_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type HistoryEntryResponse struct {
	Timestamp      string `json:"timestamp"`
	ImageName      string `json:"image_name"`
	Detected       bool   `json:"detected"`
	Classification string `json:"classification"`
	Confidence     string `json:"confidence"`
}

type HistoryResponse struct {
	SessionID string                 `json:"session_id"`
	Count     int                    `json:"count"`
	Entries   []HistoryEntryResponse `json:"entries"`
}

const (
	HealthStatusHealthy  = "healthy"
	HealthStatusDegraded = "degraded"

	HistoryStatusOK          = "ok"
	HistoryStatusUnavailable = "unavailable"

	NoDetectionLabel = "No detection"
)

func NewClassifyResponse(result *entity.ClassificationResult) ClassifyResponse {
	if result == nil || !result.Detected {
		return ClassifyResponse{Detected: false}
	}

	label := result.Classification
	confidence := result.Confidence
	return ClassifyResponse{
		Detected:       true,
		Classification: &label,
		Confidence:     &confidence,
	}
}

func NewFailureResponse(err error) ClassifyResponse {
	resp := ClassifyResponse{
		Detected: false,
		Error:    ErrorPrefix + err.Error(),
	}

	var decodeErr *DecodeError
	var inferenceErr *InferenceError
	switch {
	case errors.As(err, &decodeErr):
		resp.Code = CodeDecodeError
	case errors.As(err, &inferenceErr):
		resp.Code = CodeInferenceError
	}

	return resp
}

// NewHealthResponse reports degraded when the model is not loaded or the
// history store cannot be reached.
func NewHealthResponse(status entity.ModelStatus, historyErr error) HealthResponse {
	health := HealthResponse{
		Status:      HealthStatusHealthy,
		ModelLoaded: status.Loaded,
		Detector:    status.Backend,
		History:     HistoryStatusOK,
	}
	if historyErr != nil {
		health.History = HistoryStatusUnavailable
	}
	if !status.Loaded || historyErr != nil {
		health.Status = HealthStatusDegraded
	}
	return health
}

func NewHistoryEntryResponse(entry entity.HistoryEntry) HistoryEntryResponse {
	return HistoryEntryResponse{
		Timestamp:      entry.Timestamp.Format(export.TimestampLayout),
		ImageName:      entry.ImageName,
		Detected:       entry.Detected,
		Classification: entry.Classification,
		Confidence:     export.FormatConfidence(entry.Confidence),
	}
}

func NewHistoryResponse(sessionID string, entries []entity.HistoryEntry) HistoryResponse {
	resp := HistoryResponse{
		SessionID: sessionID,
		Count:     len(entries),
		Entries:   make([]HistoryEntryResponse, 0, len(entries)),
	}
	for _, entry := range entries {
		resp.Entries = append(resp.Entries, NewHistoryEntryResponse(entry))
	}
	return resp
}
