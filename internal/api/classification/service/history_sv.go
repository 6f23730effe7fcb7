package classificationService

import (
	"context"
	"io"

	"LettuceClassifier/internal/api/classification"
	"LettuceClassifier/internal/entity"
	contextPkg "LettuceClassifier/pkg/context"
	"LettuceClassifier/pkg/export"
	"LettuceClassifier/pkg/log"
	"LettuceClassifier/pkg/metrics"
	"github.com/google/uuid"
)

const defaultImageName = "upload"

// ClassifyForSession classifies and, on success, records the outcome in the
// session's history. Failed classifications are not recorded.
func (s *classificationService) ClassifyForSession(ctx context.Context, sessionID string, input entity.ImageInput) (*entity.ClassificationResult, error) {
	result, err := s.Classify(ctx, input)
	if err != nil {
		return nil, err
	}

	name := input.Filename
	if name == "" {
		name = defaultImageName
	}

	entry := entity.HistoryEntry{
		Timestamp:      s.now(),
		ImageName:      name,
		Detected:       result.Detected,
		Classification: classification.NoDetectionLabel,
	}
	if result.Detected {
		entry.Classification = result.Classification
		entry.Confidence = result.Confidence
	}

	if err := s.history.Append(ctx, sessionID, entry); err != nil {
		s.log.WithFields(log.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"session_id": sessionID,
			"error":      err.Error(),
		}).Warn("Failed to record classification in history")
		return result, nil
	}
	metrics.HistoryAppends.Inc()

	return result, nil
}

func (s *classificationService) StartSession(ctx context.Context) (*entity.Session, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, err
	}

	now := s.now()
	session := &entity.Session{
		ID:        id.String(),
		CreatedAt: now,
	}
	if s.opts.SessionTTL > 0 {
		session.ExpiresAt = now.Add(s.opts.SessionTTL)
	}

	s.log.WithFields(log.Fields{
		"request_id": contextPkg.GetRequestID(ctx),
		"session_id": session.ID,
	}).Info("Session started")

	return session, nil
}

func (s *classificationService) History(ctx context.Context, sessionID string) ([]entity.HistoryEntry, error) {
	return s.history.List(ctx, sessionID)
}

func (s *classificationService) ExportHistory(ctx context.Context, sessionID string, w io.Writer) error {
	entries, err := s.history.List(ctx, sessionID)
	if err != nil {
		return err
	}
	return export.WriteHistoryCSV(w, entries)
}

func (s *classificationService) ResetHistory(ctx context.Context, sessionID string) error {
	if err := s.history.Clear(ctx, sessionID); err != nil {
		return err
	}

	s.log.WithFields(log.Fields{
		"request_id": contextPkg.GetRequestID(ctx),
		"session_id": sessionID,
	}).Info("Session history reset")

	return nil
}
