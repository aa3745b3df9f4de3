package unit

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asterolab/lightcurve-backend/internal/analysis/domain"
	"github.com/asterolab/lightcurve-backend/internal/analysis/repository"
	"github.com/asterolab/lightcurve-backend/internal/signalfit"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

func TestSessionRepository_CRUD(t *testing.T) {
	mr, client := setupRedis(t)
	repo := repository.NewSessionRepository(client)

	session := &domain.Session{
		UserID:   "user-1",
		Target:   "HD 12345",
		Mission:  "TESS",
		Sector:   27,
		Status:   domain.StatusPending,
		AmpUnit:  domain.UnitPPT,
		Solution: &signalfit.Solution{},
	}

	t.Run("create assigns ID and stores data with TTL", func(t *testing.T) {
		require.NoError(t, repo.Create(session))
		assert.NotEmpty(t, session.SessionID)
		assert.False(t, session.CreatedAt.IsZero())

		assert.True(t, mr.Exists("lc:session:"+session.SessionID))
		assert.Greater(t, mr.TTL("lc:session:"+session.SessionID).Hours(), 1.0)
	})

	t.Run("get round-trips the session", func(t *testing.T) {
		got, err := repo.GetBySessionID(session.SessionID)
		require.NoError(t, err)
		assert.Equal(t, "HD 12345", got.Target)
		assert.Equal(t, domain.StatusPending, got.Status)
		require.NotNil(t, got.Solution)
	})

	t.Run("update persists solution changes", func(t *testing.T) {
		_, err := session.Solution.Add("", 3.1, 0.01, 0.5)
		require.NoError(t, err)
		session.Status = domain.StatusReady

		require.NoError(t, repo.Update(session))

		got, err := repo.GetBySessionID(session.SessionID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusReady, got.Status)
		require.Len(t, got.Solution.Signals, 1)
		assert.Equal(t, "f0", got.Solution.Signals[0].Label)
	})

	t.Run("list by user contains the session", func(t *testing.T) {
		ids, err := repo.ListByUserID("user-1")
		require.NoError(t, err)
		assert.Contains(t, ids, session.SessionID)
	})

	t.Run("delete removes data and user set entry", func(t *testing.T) {
		require.NoError(t, repo.Delete(session.SessionID))

		_, err := repo.GetBySessionID(session.SessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)

		ids, err := repo.ListByUserID("user-1")
		require.NoError(t, err)
		assert.NotContains(t, ids, session.SessionID)
	})

	t.Run("get unknown session returns not found", func(t *testing.T) {
		_, err := repo.GetBySessionID("nope")
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})
}

func TestLogRepository_AppendAndTrim(t *testing.T) {
	_, client := setupRedis(t)
	repo := repository.NewLogRepository(client)

	for i := 0; i < 510; i++ {
		require.NoError(t, repo.Append("sess-1", domain.LogEntry{Message: "entry"}))
	}

	entries, err := repo.List("sess-1", 0)
	require.NoError(t, err)
	assert.Len(t, entries, 500) // capped

	tail, err := repo.List("sess-1", 10)
	require.NoError(t, err)
	assert.Len(t, tail, 10)
	assert.Equal(t, "info", tail[0].Level)
	assert.False(t, tail[0].Timestamp.IsZero())

	require.NoError(t, repo.Delete("sess-1"))
	entries, err = repo.List("sess-1", 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
