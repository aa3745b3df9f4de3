package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/asterolab/lightcurve-backend/config"
	"github.com/asterolab/lightcurve-backend/internal/lightcurve"
)

const (
	sectorCacheKeyPrefix = "archive:sectors:"
	sectorCacheTTL       = 24 * time.Hour
	emptyResultTTL       = 10 * time.Minute
)

// Service fetches light curves from the archive and prepares them for
// frequency analysis. Sector searches are served from a redis cache so
// repeated lookups for the same target skip the archive round trip.
type Service struct {
	client *Client
	cache  *redis.Client
	cfg    *config.Config
}

func NewService(client *Client, cache *redis.Client, cfg *config.Config) *Service {
	return &Service{client: client, cache: cache, cfg: cfg}
}

// GetLightCurve downloads a target's light curve and preprocesses it:
// normalize to relative flux, flatten slow trends with a running median,
// and iteratively clip outliers.
func (s *Service) GetLightCurve(ctx context.Context, target, mission string, sector int) (*lightcurve.LightCurve, error) {
	raw, err := s.client.FetchLightCurve(ctx, target, mission, sector)
	if err != nil {
		return nil, err
	}

	lc, err := lightcurve.New(raw.Time, raw.Flux, raw.FluxErr)
	if err != nil {
		return nil, fmt.Errorf("archive: bad light curve for %s sector %d: %w", target, sector, err)
	}

	lc = lc.Normalize()
	if s.cfg.Analysis.FlattenWindowDays > 0 {
		lc = lc.Flatten(s.cfg.Analysis.FlattenWindowDays)
	}
	if s.cfg.Analysis.ClipSigma > 0 {
		lc = lc.ClipOutliers(s.cfg.Analysis.ClipSigma)
	}
	return lc, nil
}

// SearchSectors returns the sectors observing a target, cached for a day.
func (s *Service) SearchSectors(ctx context.Context, target, mission string) ([]Sector, error) {
	key := sectorCacheKey(mission, target)

	if s.cache != nil {
		data, err := s.cache.Get(ctx, key).Result()
		if err == nil {
			var sectors []Sector
			if err := json.Unmarshal([]byte(data), &sectors); err == nil {
				return sectors, nil
			}
		}
	}

	sectors, err := s.client.SearchSectors(ctx, target, mission)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		// Empty results expire quickly so newly released sectors show up.
		ttl := sectorCacheTTL
		if len(sectors) == 0 {
			ttl = emptyResultTTL
		}
		if data, err := json.Marshal(sectors); err == nil {
			s.cache.Set(ctx, key, data, ttl)
		}
	}
	return sectors, nil
}

func sectorCacheKey(mission, target string) string {
	return sectorCacheKeyPrefix + mission + ":" + target
}
