package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/asterolab/lightcurve-backend/internal/analysis/domain"
)

// SamplesRepository handles PostgreSQL operations for light-curve samples
type SamplesRepository struct {
	db *sql.DB
}

// NewSamplesRepository creates a new SamplesRepository
func NewSamplesRepository(db *sql.DB) *SamplesRepository {
	return &SamplesRepository{db: db}
}

// InsertBatch inserts a session's samples in a single transaction.
// Sessions hold tens of thousands of points, so one statement per point
// inside one transaction beats autocommit inserts by a wide margin.
func (r *SamplesRepository) InsertBatch(ctx context.Context, samples []domain.Sample) error {
	if len(samples) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO lightcurve_samples (session_id, time, flux, flux_err)
		VALUES ($1, $2, $3, $4)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, s := range samples {
		var fluxErr sql.NullFloat64
		if s.FluxErr != nil {
			fluxErr = sql.NullFloat64{Float64: *s.FluxErr, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, s.SessionID, s.Time, s.Flux, fluxErr); err != nil {
			return fmt.Errorf("failed to insert sample: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetBySessionID retrieves all samples for a session ordered by time
func (r *SamplesRepository) GetBySessionID(ctx context.Context, sessionID string) ([]domain.Sample, error) {
	return r.GetBySessionIDAndTimeRange(ctx, sessionID, nil, nil)
}

// GetBySessionIDAndTimeRange retrieves a session's samples within a time
// range; nil bounds are open.
func (r *SamplesRepository) GetBySessionIDAndTimeRange(
	ctx context.Context,
	sessionID string,
	fromTime *float64,
	toTime *float64,
) ([]domain.Sample, error) {
	query := `
		SELECT id, session_id, time, flux, flux_err
		FROM lightcurve_samples
		WHERE session_id = $1
	`
	args := []interface{}{sessionID}
	argIndex := 2

	if fromTime != nil {
		query += fmt.Sprintf(" AND time >= $%d", argIndex)
		args = append(args, *fromTime)
		argIndex++
	}
	if toTime != nil {
		query += fmt.Sprintf(" AND time <= $%d", argIndex)
		args = append(args, *toTime)
		argIndex++
	}

	query += " ORDER BY time ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	var samples []domain.Sample
	for rows.Next() {
		var s domain.Sample
		var fluxErr sql.NullFloat64

		if err := rows.Scan(&s.ID, &s.SessionID, &s.Time, &s.Flux, &fluxErr); err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		if fluxErr.Valid {
			s.FluxErr = &fluxErr.Float64
		}
		samples = append(samples, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating samples: %w", err)
	}
	return samples, nil
}

// CountBySessionID returns the number of samples for a session
func (r *SamplesRepository) CountBySessionID(ctx context.Context, sessionID string) (int64, error) {
	query := `SELECT COUNT(*) FROM lightcurve_samples WHERE session_id = $1`

	var count int64
	if err := r.db.QueryRowContext(ctx, query, sessionID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count samples: %w", err)
	}
	return count, nil
}

// DeleteBySessionID removes a session's samples when the session is deleted
func (r *SamplesRepository) DeleteBySessionID(ctx context.Context, sessionID string) error {
	query := `DELETE FROM lightcurve_samples WHERE session_id = $1`

	if _, err := r.db.ExecContext(ctx, query, sessionID); err != nil {
		return fmt.Errorf("failed to delete samples: %w", err)
	}
	return nil
}
