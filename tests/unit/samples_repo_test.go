package unit

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asterolab/lightcurve-backend/internal/analysis/domain"
	"github.com/asterolab/lightcurve-backend/internal/analysis/repository"
)

func setupSamplesRepo(t *testing.T) (*repository.SamplesRepository, sqlmock.Sqlmock, *sql.DB) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	repo := repository.NewSamplesRepository(db)
	return repo, mock, db
}

func TestSamplesRepository_InsertBatch(t *testing.T) {
	repo, mock, db := setupSamplesRepo(t)
	defer db.Close()

	t.Run("inserts batch of samples successfully", func(t *testing.T) {
		fluxErr := 0.001
		samples := []domain.Sample{
			{SessionID: "sess-123", Time: 0.0, Flux: 1.001, FluxErr: &fluxErr},
			{SessionID: "sess-123", Time: 0.02, Flux: 0.999},
		}

		mock.ExpectBegin()
		prep := mock.ExpectPrepare(`INSERT INTO lightcurve_samples`)
		prep.ExpectExec().
			WithArgs("sess-123", 0.0, 1.001, sql.NullFloat64{Float64: 0.001, Valid: true}).
			WillReturnResult(sqlmock.NewResult(1, 1))
		prep.ExpectExec().
			WithArgs("sess-123", 0.02, 0.999, sql.NullFloat64{}).
			WillReturnResult(sqlmock.NewResult(2, 1))
		mock.ExpectCommit()

		err := repo.InsertBatch(context.Background(), samples)
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("handles empty batch", func(t *testing.T) {
		err := repo.InsertBatch(context.Background(), nil)
		require.NoError(t, err)
	})

	t.Run("rolls back on insert failure", func(t *testing.T) {
		samples := []domain.Sample{{SessionID: "sess-123", Time: 0, Flux: 1}}

		mock.ExpectBegin()
		prep := mock.ExpectPrepare(`INSERT INTO lightcurve_samples`)
		prep.ExpectExec().WillReturnError(sql.ErrConnDone)
		mock.ExpectRollback()

		err := repo.InsertBatch(context.Background(), samples)
		assert.Error(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSamplesRepository_GetBySessionID(t *testing.T) {
	repo, mock, db := setupSamplesRepo(t)
	defer db.Close()

	t.Run("returns samples ordered by time", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"id", "session_id", "time", "flux", "flux_err"}).
			AddRow(1, "sess-123", 0.0, 1.001, 0.001).
			AddRow(2, "sess-123", 0.02, 0.999, nil)

		mock.ExpectQuery(`SELECT id, session_id, time, flux, flux_err`).
			WithArgs("sess-123").
			WillReturnRows(rows)

		samples, err := repo.GetBySessionID(context.Background(), "sess-123")
		require.NoError(t, err)
		require.Len(t, samples, 2)
		assert.Equal(t, 0.02, samples[1].Time)
		require.NotNil(t, samples[0].FluxErr)
		assert.Equal(t, 0.001, *samples[0].FluxErr)
		assert.Nil(t, samples[1].FluxErr)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("applies time range filters", func(t *testing.T) {
		from, to := 0.5, 1.5
		mock.ExpectQuery(`SELECT id, session_id, time, flux, flux_err`).
			WithArgs("sess-123", from, to).
			WillReturnRows(sqlmock.NewRows([]string{"id", "session_id", "time", "flux", "flux_err"}))

		samples, err := repo.GetBySessionIDAndTimeRange(context.Background(), "sess-123", &from, &to)
		require.NoError(t, err)
		assert.Empty(t, samples)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSamplesRepository_CountAndDelete(t *testing.T) {
	repo, mock, db := setupSamplesRepo(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM lightcurve_samples`).
		WithArgs("sess-123").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4200))

	count, err := repo.CountBySessionID(context.Background(), "sess-123")
	require.NoError(t, err)
	assert.Equal(t, int64(4200), count)

	mock.ExpectExec(`DELETE FROM lightcurve_samples`).
		WithArgs("sess-123").
		WillReturnResult(sqlmock.NewResult(0, 4200))

	require.NoError(t, repo.DeleteBySessionID(context.Background(), "sess-123"))
	require.NoError(t, mock.ExpectationsWereMet())
}
