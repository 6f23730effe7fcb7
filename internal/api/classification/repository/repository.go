package classificationRepository

import (
	"context"

	"LettuceClassifier/internal/entity"
)

// HistoryRepository keeps per-session classification history. Implementations
// are ephemeral: entries expire with the session and are never written to a
// durable store.
type HistoryRepository interface {
	Append(ctx context.Context, sessionID string, entry entity.HistoryEntry) error
	List(ctx context.Context, sessionID string) ([]entity.HistoryEntry, error)
	Clear(ctx context.Context, sessionID string) error
	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error
}
