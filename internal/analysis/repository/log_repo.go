package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/asterolab/lightcurve-backend/internal/analysis/domain"
)

const (
	logKeyPrefix  = "lc:log:" // List of log entries: lc:log:{session_id}
	logMaxEntries = 500       // keep the newest entries, trim the rest
	logTTL        = 7 * 24 * time.Hour
)

// LogRepository handles Redis operations for session action logs
type LogRepository struct {
	client *redis.Client
	ctx    context.Context
}

// NewLogRepository creates a new LogRepository
func NewLogRepository(client *redis.Client) *LogRepository {
	return &LogRepository{
		client: client,
		ctx:    context.Background(),
	}
}

// Append adds an entry to a session's log, trimming to the cap
func (r *LogRepository) Append(sessionID string, entry domain.LogEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	if entry.Level == "" {
		entry.Level = "info"
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal log entry: %w", err)
	}

	key := r.logKey(sessionID)

	pipe := r.client.Pipeline()
	pipe.RPush(r.ctx, key, data)
	pipe.LTrim(r.ctx, key, -logMaxEntries, -1)
	pipe.Expire(r.ctx, key, logTTL)

	if _, err := pipe.Exec(r.ctx); err != nil {
		return fmt.Errorf("failed to append log entry: %w", err)
	}
	return nil
}

// List returns a session's log entries, oldest first. A non-positive
// limit returns everything kept.
func (r *LogRepository) List(sessionID string, limit int) ([]domain.LogEntry, error) {
	key := r.logKey(sessionID)

	start := int64(0)
	if limit > 0 {
		start = int64(-limit)
	}

	items, err := r.client.LRange(r.ctx, key, start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read log entries: %w", err)
	}

	entries := make([]domain.LogEntry, 0, len(items))
	for _, item := range items {
		var entry domain.LogEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Delete removes a session's log
func (r *LogRepository) Delete(sessionID string) error {
	if err := r.client.Del(r.ctx, r.logKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete log: %w", err)
	}
	return nil
}

func (r *LogRepository) logKey(sessionID string) string {
	return fmt.Sprintf("%s%s", logKeyPrefix, sessionID)
}
