package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

var (
	ErrTargetNotFound     = errors.New("archive: target not found")
	ErrArchiveUnavailable = errors.New("archive: service unavailable")
)

// RawLightCurve is the sample set returned by the archive for one target
// and sector, before any preprocessing.
type RawLightCurve struct {
	Target  string    `json:"target"`
	Mission string    `json:"mission"`
	Sector  int       `json:"sector"`
	Time    []float64 `json:"time"`
	Flux    []float64 `json:"flux"`
	FluxErr []float64 `json:"flux_err,omitempty"`
}

// Sector is one catalog entry of a mission's observing campaign.
type Sector struct {
	Mission string    `json:"mission"`
	Sector  int       `json:"sector"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
}

// Client talks to the light-curve archive HTTP API. Requests are rate
// limited so catalog sweeps do not hammer the archive.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates an archive client. rps/burst bound the request rate;
// non-positive values fall back to 5 req/s with a burst of 10.
func NewClient(baseURL, apiKey string, rps float64, burst int) *Client {
	if rps <= 0 {
		rps = 5
	}
	if burst <= 0 {
		burst = 10
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// FetchLightCurve downloads one target's light curve for a mission sector.
func (c *Client) FetchLightCurve(ctx context.Context, target, mission string, sector int) (*RawLightCurve, error) {
	q := url.Values{}
	q.Set("target", target)
	q.Set("mission", mission)
	q.Set("sector", fmt.Sprintf("%d", sector))

	var lc RawLightCurve
	if err := c.getJSON(ctx, "/v1/lightcurves?"+q.Encode(), &lc); err != nil {
		return nil, err
	}
	return &lc, nil
}

// SearchSectors returns the sectors in which the archive observed a target.
func (c *Client) SearchSectors(ctx context.Context, target, mission string) ([]Sector, error) {
	q := url.Values{}
	q.Set("target", target)
	q.Set("mission", mission)

	var resp struct {
		Sectors []Sector `json:"sectors"`
	}
	if err := c.getJSON(ctx, "/v1/sectors?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	return resp.Sectors, nil
}

// ListMissionSectors returns the full sector catalog for a mission. The
// nightly catalog refresh walks this per configured mission.
func (c *Client) ListMissionSectors(ctx context.Context, mission string) ([]Sector, error) {
	var resp struct {
		Sectors []Sector `json:"sectors"`
	}
	path := fmt.Sprintf("/v1/missions/%s/sectors", url.PathEscape(mission))
	if err := c.getJSON(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp.Sectors, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("archive: rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("archive: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrArchiveUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("archive: failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrTargetNotFound
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("archive returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("archive: failed to unmarshal response: %w", err)
	}
	return nil
}
