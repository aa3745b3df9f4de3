package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/asterolab/lightcurve-backend/internal/analysis/domain"
)

const (
	sessionKeyPrefix      = "lc:session:"       // Key for session data: lc:session:{session_id}
	userSessionSetPrefix  = "lc:user:"          // Set of session IDs for a user: lc:user:{user_id}:sessions
	sessionEventChPrefix  = "lc:events:"        // Pub/Sub channel for session events: lc:events:{session_id}
	sessionTTL            = 7 * 24 * time.Hour  // TTL for session data (7 days)
)

// SessionRepository handles Redis operations for analysis sessions
type SessionRepository struct {
	client *redis.Client
	ctx    context.Context
}

// NewSessionRepository creates a new SessionRepository
func NewSessionRepository(client *redis.Client) *SessionRepository {
	return &SessionRepository{
		client: client,
		ctx:    context.Background(),
	}
}

// Create creates a new analysis session
func (r *SessionRepository) Create(session *domain.Session) error {
	if session.SessionID == "" {
		session.SessionID = uuid.New().String()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	if session.UpdatedAt.IsZero() {
		session.UpdatedAt = time.Now()
	}

	sessionKey := r.sessionKey(session.SessionID)
	userSetKey := r.userSessionSetKey(session.UserID)

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session data: %w", err)
	}

	// Use pipeline for atomic operations
	pipe := r.client.Pipeline()
	pipe.Set(r.ctx, sessionKey, data, sessionTTL)
	pipe.SAdd(r.ctx, userSetKey, session.SessionID)
	pipe.Expire(r.ctx, userSetKey, sessionTTL)

	if _, err := pipe.Exec(r.ctx); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetBySessionID retrieves a session by its ID
func (r *SessionRepository) GetBySessionID(sessionID string) (*domain.Session, error) {
	sessionKey := r.sessionKey(sessionID)

	data, err := r.client.Get(r.ctx, sessionKey).Result()
	if err == redis.Nil {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var session domain.Session
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session data: %w", err)
	}
	return &session, nil
}

// Update updates an existing session and publishes an update event
func (r *SessionRepository) Update(session *domain.Session) error {
	session.UpdatedAt = time.Now()

	sessionKey := r.sessionKey(session.SessionID)

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session data: %w", err)
	}

	if err := r.client.Set(r.ctx, sessionKey, data, sessionTTL).Err(); err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	// Publish update event so listeners can refresh their views
	if session.SessionID != "" && session.Status != "" {
		r.client.Publish(r.ctx, r.sessionEventChannel(session.SessionID), data)
	}
	return nil
}

// ListByUserID retrieves all session IDs for a user
func (r *SessionRepository) ListByUserID(userID string) ([]string, error) {
	userSetKey := r.userSessionSetKey(userID)

	sessionIDs, err := r.client.SMembers(r.ctx, userSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions for user: %w", err)
	}
	return sessionIDs, nil
}

// Delete deletes a session
func (r *SessionRepository) Delete(sessionID string) error {
	session, err := r.GetBySessionID(sessionID)
	if err != nil {
		return err
	}

	pipe := r.client.Pipeline()
	pipe.Del(r.ctx, r.sessionKey(sessionID))
	pipe.SRem(r.ctx, r.userSessionSetKey(session.UserID), sessionID)

	if _, err := pipe.Exec(r.ctx); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Helper methods for key generation
func (r *SessionRepository) sessionKey(sessionID string) string {
	return fmt.Sprintf("%s%s", sessionKeyPrefix, sessionID)
}

func (r *SessionRepository) userSessionSetKey(userID string) string {
	return fmt.Sprintf("%s%s:sessions", userSessionSetPrefix, userID)
}

func (r *SessionRepository) sessionEventChannel(sessionID string) string {
	return fmt.Sprintf("%s%s", sessionEventChPrefix, sessionID)
}
