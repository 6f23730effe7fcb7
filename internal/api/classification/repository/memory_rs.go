package classificationRepository

import (
	"context"
	"sync"
	"time"

	"LettuceClassifier/internal/entity"
	contextPkg "LettuceClassifier/pkg/context"
	"github.com/sirupsen/logrus"
)

type memorySession struct {
	entries   []entity.HistoryEntry
	expiresAt time.Time
}

type memoryRepository struct {
	mu       sync.Mutex
	sessions map[string]*memorySession
	ttl      time.Duration
	now      func() time.Time
	log      *logrus.Logger
}

func NewMemory(ttl time.Duration, log *logrus.Logger) HistoryRepository {
	return newMemory(ttl, log, time.Now)
}

func newMemory(ttl time.Duration, log *logrus.Logger, now func() time.Time) *memoryRepository {
	return &memoryRepository{
		sessions: make(map[string]*memorySession),
		ttl:      ttl,
		now:      now,
		log:      log,
	}
}

func (r *memoryRepository) Append(ctx context.Context, sessionID string, entry entity.HistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sweepLocked()

	s, ok := r.sessions[sessionID]
	if !ok {
		s = &memorySession{}
		r.sessions[sessionID] = s
	}
	s.entries = append(s.entries, entry)
	if r.ttl > 0 {
		s.expiresAt = r.now().Add(r.ttl)
	}

	r.log.WithFields(logrus.Fields{
		"request_id": contextPkg.GetRequestID(ctx),
		"session_id": sessionID,
		"entries":    len(s.entries),
	}).Debug("Appended history entry")

	return nil
}

func (r *memoryRepository) List(ctx context.Context, sessionID string) ([]entity.HistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sweepLocked()

	s, ok := r.sessions[sessionID]
	if !ok {
		return []entity.HistoryEntry{}, nil
	}

	out := make([]entity.HistoryEntry, len(s.entries))
	copy(out, s.entries)
	return out, nil
}

func (r *memoryRepository) Clear(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, sessionID)

	r.log.WithFields(logrus.Fields{
		"request_id": contextPkg.GetRequestID(ctx),
		"session_id": sessionID,
	}).Debug("Cleared session history")

	return nil
}

func (r *memoryRepository) sweepLocked() {
	if r.ttl <= 0 {
		return
	}
	now := r.now()
	for id, s := range r.sessions {
		if now.After(s.expiresAt) {
			delete(r.sessions, id)
		}
	}
}

func (r *memoryRepository) Ping(context.Context) error {
	return nil
}
