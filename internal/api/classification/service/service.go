package classificationService

import (
	"context"
	"io"
	"time"

	classificationRepository "LettuceClassifier/internal/api/classification/repository"
	"LettuceClassifier/internal/entity"
	contextPkg "LettuceClassifier/pkg/context"
	"LettuceClassifier/pkg/detector"
	"LettuceClassifier/pkg/log"
	"github.com/sirupsen/logrus"
)

// ConfidenceFloor is handed to the detector on every call; boxes below it are
// discarded before the first one is picked.
const ConfidenceFloor = 0.5

type IClassificationService interface {
	Classify(ctx context.Context, input entity.ImageInput) (*entity.ClassificationResult, error)
	ClassifyForSession(ctx context.Context, sessionID string, input entity.ImageInput) (*entity.ClassificationResult, error)
	StartSession(ctx context.Context) (*entity.Session, error)
	History(ctx context.Context, sessionID string) ([]entity.HistoryEntry, error)
	ExportHistory(ctx context.Context, sessionID string, w io.Writer) error
	ResetHistory(ctx context.Context, sessionID string) error
	ModelStatus() entity.ModelStatus
	HistoryStatus(ctx context.Context) error
}

type Options struct {
	// InferenceTimeout bounds a single detector call. Zero disables the bound.
	InferenceTimeout time.Duration
	SessionTTL       time.Duration
	ModelPath        string
	// MaxImagePixels caps the declared width*height of an upload. Zero means
	// imagecodec.DefaultMaxPixels.
	MaxImagePixels int64
}

type classificationService struct {
	log      *logrus.Logger
	detector detector.Detector
	history  classificationRepository.HistoryRepository
	opts     Options
	now      func() time.Time
}

// NewClassificationService accepts a nil detector; the service then runs in
// degraded mode and every classification fails with an inference error.
func NewClassificationService(
	log *logrus.Logger,
	det detector.Detector,
	history classificationRepository.HistoryRepository,
	opts Options,
) IClassificationService {
	return &classificationService{
		log:      log,
		detector: det,
		history:  history,
		opts:     opts,
		now:      time.Now,
	}
}

func (s *classificationService) ModelStatus() entity.ModelStatus {
	status := entity.ModelStatus{ModelPath: s.opts.ModelPath}
	if s.detector == nil {
		return status
	}
	status.Backend = s.detector.Name()
	status.Loaded = s.detector.Ready()
	return status
}

func (s *classificationService) HistoryStatus(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := s.history.Ping(ctx); err != nil {
		s.log.WithFields(log.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"error":      err.Error(),
		}).Warn("History store unreachable")
		return err
	}
	return nil
}
