package archive

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CatalogRepository persists the per-mission sector catalog in postgres.
// The nightly refresh upserts the archive's catalog; the API reads it to
// validate sector numbers without an archive round trip.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// UpsertSectors writes a mission's sector catalog in a single transaction.
func (r *CatalogRepository) UpsertSectors(ctx context.Context, mission string, sectors []Sector) error {
	if len(sectors) == 0 {
		return nil
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	const query = `
		INSERT INTO sector_catalog (mission, sector, start_time, end_time)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (mission, sector)
		DO UPDATE SET start_time = EXCLUDED.start_time, end_time = EXCLUDED.end_time`

	for _, s := range sectors {
		if _, err := tx.Exec(ctx, query, mission, s.Sector, s.Start, s.End); err != nil {
			return fmt.Errorf("failed to upsert sector %d: %w", s.Sector, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListSectors returns a mission's cataloged sectors ordered by number.
func (r *CatalogRepository) ListSectors(ctx context.Context, mission string) ([]Sector, error) {
	const query = `
		SELECT mission, sector, start_time, end_time
		FROM sector_catalog
		WHERE mission = $1
		ORDER BY sector`

	rows, err := r.pool.Query(ctx, query, mission)
	if err != nil {
		return nil, fmt.Errorf("failed to query sector catalog: %w", err)
	}
	defer rows.Close()

	var sectors []Sector
	for rows.Next() {
		var s Sector
		if err := rows.Scan(&s.Mission, &s.Sector, &s.Start, &s.End); err != nil {
			return nil, fmt.Errorf("failed to scan sector row: %w", err)
		}
		sectors = append(sectors, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sector rows: %w", err)
	}
	return sectors, nil
}

// HasSector reports whether a mission sector exists in the catalog.
func (r *CatalogRepository) HasSector(ctx context.Context, mission string, sector int) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM sector_catalog WHERE mission = $1 AND sector = $2)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, mission, sector).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check sector: %w", err)
	}
	return exists, nil
}
