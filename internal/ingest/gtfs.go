package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// GTFSFetcher downloads transit schedule feeds for punctuality analysis.
// Feeds are cached: an existing zip is reused rather than re-downloaded.
type GTFSFetcher struct {
	baseURL  string
	cacheDir string
	client   *http.Client
	logger   *zap.Logger
}

func NewGTFSFetcher(baseURL, cacheDir string, logger *zap.Logger) *GTFSFetcher {
	return &GTFSFetcher{
		baseURL:  strings.TrimRight(baseURL, "/"),
		cacheDir: cacheDir,
		client:   &http.Client{Timeout: 60 * time.Second},
		logger:   logger,
	}
}

func (f *GTFSFetcher) Fetch(ctx context.Context, feedName string) (string, error) {
	if err := os.MkdirAll(f.cacheDir, 0o755); err != nil {
		return "", err
	}
	target := filepath.Join(f.cacheDir, feedName+".zip")
	if _, err := os.Stat(target); err == nil {
		f.logger.Info("GTFS feed cached", zap.String("feed", feedName))
		return target, nil
	}

	url := fmt.Sprintf("%s/gtfs/%s", f.baseURL, feedName)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	f.logger.Info("downloading GTFS feed", zap.String("feed", feedName))
	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("gtfs request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gtfs server returned %s", resp.Status)
	}

	out, err := os.Create(target)
	if err != nil {
		return "", err
	}
	defer out.Close()
	if _, err := io.Copy(out, resp.Body); err != nil {
		os.Remove(target)
		return "", fmt.Errorf("writing feed: %w", err)
	}
	return target, nil
}
