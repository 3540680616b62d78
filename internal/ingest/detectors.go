package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DetectorCount is one observation from an administrative traffic-count API.
type DetectorCount struct {
	DetectorID string    `json:"detector_id"`
	Timestamp  time.Time `json:"timestamp"`
	Count      float64   `json:"count"`
}

type countsPayload struct {
	Results []struct {
		Timestamp time.Time `json:"timestamp"`
		Count     float64   `json:"count"`
	} `json:"results"`
}

// DetectorClient pulls detector counts for calibration windows from an
// administrative API and caches the responses on disk.
type DetectorClient struct {
	baseURL  string
	apiKey   string
	cacheDir string
	client   *http.Client
	logger   *zap.Logger
}

func NewDetectorClient(baseURL, apiKey, cacheDir string, logger *zap.Logger) *DetectorClient {
	return &DetectorClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		cacheDir: cacheDir,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger,
	}
}

// FetchCounts downloads detector counts for an ISO-8601 window. The
// endpoint may carry a {detector_id} placeholder.
func (c *DetectorClient) FetchCounts(ctx context.Context, detectorID string, start, end time.Time, endpoint string) ([]DetectorCount, error) {
	if endpoint == "" {
		endpoint = "traffic/counts"
	}
	resource := strings.ReplaceAll(endpoint, "{detector_id}", detectorID)

	u, err := url.Parse(c.baseURL + "/" + strings.TrimLeft(resource, "/"))
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("detector_id", detectorID)
	q.Set("start", start.Format(time.RFC3339))
	q.Set("end", end.Format(time.RFC3339))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	c.logger.Info("fetching detector counts", zap.String("detector", detectorID))
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("counts request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("counts API returned %s", resp.Status)
	}

	var payload countsPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding counts: %w", err)
	}

	counts := make([]DetectorCount, 0, len(payload.Results))
	for _, r := range payload.Results {
		counts = append(counts, DetectorCount{
			DetectorID: detectorID,
			Timestamp:  r.Timestamp,
			Count:      r.Count,
		})
	}
	return counts, nil
}

// SaveCounts persists fetched counts to the cache directory as JSON, one
// file per calibration window.
func (c *DetectorClient) SaveCounts(counts map[string][]DetectorCount, start, end time.Time) (string, error) {
	if err := os.MkdirAll(c.cacheDir, 0o755); err != nil {
		return "", err
	}
	name := fmt.Sprintf("counts_%s_%s.json", start.Format("2006-01-02"), end.Format("2006-01-02"))
	path := filepath.Join(c.cacheDir, name)

	data, err := json.MarshalIndent(counts, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
