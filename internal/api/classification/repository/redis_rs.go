package classificationRepository

import (
	"context"
	"fmt"
	"time"

	"LettuceClassifier/internal/entity"
	contextPkg "LettuceClassifier/pkg/context"
	"LettuceClassifier/pkg/redis"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

const historyKeyPrefix = "lc:history:"

type redisRepository struct {
	client redis.IRedis
	ttl    time.Duration
	log    *logrus.Logger
}

func NewRedis(client redis.IRedis, ttl time.Duration, log *logrus.Logger) HistoryRepository {
	return &redisRepository{
		client: client,
		ttl:    ttl,
		log:    log,
	}
}

func historyKey(sessionID string) string {
	return historyKeyPrefix + sessionID
}

func (r *redisRepository) Append(ctx context.Context, sessionID string, entry entity.HistoryEntry) error {
	requestID := contextPkg.GetRequestID(ctx)

	payload, err := jsoniter.MarshalToString(entry)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to marshal history entry")
		return err
	}

	if err := r.client.AppendList(ctx, historyKey(sessionID), payload, r.ttl); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"session_id": sessionID,
			"error":      err.Error(),
		}).Error("Redis error when appending history entry")
		return err
	}

	return nil
}

func (r *redisRepository) List(ctx context.Context, sessionID string) ([]entity.HistoryEntry, error) {
	requestID := contextPkg.GetRequestID(ctx)

	raw, err := r.client.GetList(ctx, historyKey(sessionID))
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"session_id": sessionID,
			"error":      err.Error(),
		}).Error("Redis error when reading history")
		return nil, err
	}

	entries := make([]entity.HistoryEntry, 0, len(raw))
	for i, item := range raw {
		var entry entity.HistoryEntry
		if err := jsoniter.UnmarshalFromString(item, &entry); err != nil {
			return nil, fmt.Errorf("corrupt history entry %d: %w", i, err)
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

func (r *redisRepository) Clear(ctx context.Context, sessionID string) error {
	if err := r.client.Delete(ctx, historyKey(sessionID)); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"session_id": sessionID,
			"error":      err.Error(),
		}).Error("Redis error when clearing history")
		return err
	}
	return nil
}

func (r *redisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx)
}
