package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/urbantwin/hybridsim/internal/hybrid"
	"go.uber.org/zap"
)

type statusResponse struct {
	Status string `json:"status"`
	RunID  string `json:"run_id,omitempty"`
	Path   string `json:"path,omitempty"`
}

// maxUploadBytes caps upload bodies; an OSM extract or GTFS feed for a
// city-scale study area fits well under this.
const maxUploadBytes int64 = 512 << 20

// UploadOSMHandler stores an uploaded OSM extract under the data directory
// where the network builder picks it up.
func UploadOSMHandler(dataDir string, logger *zap.Logger) http.HandlerFunc {
	return uploadHandler(dataDir, "network.osm", maxUploadBytes, logger)
}

// UploadGTFSHandler stores an uploaded GTFS feed under its original name.
func UploadGTFSHandler(dataDir string, logger *zap.Logger) http.HandlerFunc {
	return uploadHandler(dataDir, "", maxUploadBytes, logger)
}

func uploadHandler(dataDir, fixedName string, maxBytes int64, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > maxBytes {
			httpError(w, "upload too large", http.StatusRequestEntityTooLarge, logger)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

		file, header, err := r.FormFile("file")
		if err != nil {
			if isTooLarge(err) {
				httpError(w, "upload too large", http.StatusRequestEntityTooLarge, logger)
				return
			}
			logger.Error("reading multipart upload failed", zap.Error(err))
			httpError(w, "expected multipart field \"file\"", http.StatusBadRequest, logger)
			return
		}
		defer file.Close()

		name := fixedName
		if name == "" {
			name = filepath.Base(header.Filename)
		}
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			httpError(w, "internal server error", http.StatusInternalServerError, logger)
			return
		}
		dest := filepath.Join(dataDir, name)
		out, err := os.Create(dest)
		if err != nil {
			logger.Error("creating upload destination failed", zap.String("path", dest), zap.Error(err))
			httpError(w, "internal server error", http.StatusInternalServerError, logger)
			return
		}
		defer out.Close()

		if _, err := io.Copy(out, file); err != nil {
			os.Remove(dest)
			if isTooLarge(err) {
				httpError(w, "upload too large", http.StatusRequestEntityTooLarge, logger)
				return
			}
			logger.Error("writing upload failed", zap.String("path", dest), zap.Error(err))
			httpError(w, "internal server error", http.StatusInternalServerError, logger)
			return
		}
		logger.Info("upload stored", zap.String("path", dest), zap.Int64("size", header.Size))
		writeJSON(w, http.StatusOK, statusResponse{Status: "ok", Path: dest}, logger)
	}
}

// RunHandler starts a pipeline run in the background and returns its id
// immediately. A second start while a run is active yields 409.
func RunHandler(manager *hybrid.Manager, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runID, err := manager.Start()
		if err != nil {
			if errors.Is(err, hybrid.ErrRunActive) {
				httpError(w, err.Error(), http.StatusConflict, logger)
				return
			}
			logger.Error("starting pipeline run failed", zap.Error(err))
			httpError(w, "internal server error", http.StatusInternalServerError, logger)
			return
		}
		writeJSON(w, http.StatusAccepted, statusResponse{Status: "started", RunID: runID}, logger)
	}
}

// ResultsHandler serves the final results once they exist, 202 before that.
func ResultsHandler(manager *hybrid.Manager, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := os.ReadFile(manager.ResultsPath())
		if err != nil {
			if os.IsNotExist(err) {
				writeJSON(w, http.StatusAccepted, statusResponse{Status: "not ready"}, logger)
				return
			}
			logger.Error("reading results failed", zap.Error(err))
			httpError(w, "internal server error", http.StatusInternalServerError, logger)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(data); err != nil {
			logger.Error("writing results response failed", zap.Error(err))
		}
	}
}

// StatusHandler exposes the run manager's state, including per-hotspot
// failures and the last error, so clients are not limited to polling for
// the results file.
func StatusHandler(manager *hybrid.Manager, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, manager.Status(), logger)
	}
}

func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

func writeJSON(w http.ResponseWriter, code int, body any, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("encoding response failed", zap.Error(err))
	}
}

func httpError(w http.ResponseWriter, message string, code int, logger *zap.Logger) {
	logger.Warn("request failed", zap.Int("code", code), zap.String("message", message))
	writeJSON(w, code, map[string]string{"error": message}, logger)
}
