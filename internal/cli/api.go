package cli

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/briangreenhill/hrmerge/internal/store"
)

var contentTypes = map[string]string{
	"tcx":     "application/vnd.garmin.tcx+xml",
	"gpx":     "application/gpx+xml",
	"fit":     "application/vnd.ant.fit",
	"parquet": "application/vnd.apache.parquet",
}

func NewAPI(logger *slog.Logger, mergeService *store.Service) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("GET /merges", handleListMerges(logger, mergeService))
	mux.Handle("GET /merges/{id}", handleGetMergeOutput(logger, mergeService))
	mux.Handle("GET /merges/{id}/detail", handleGetMergeDetail(logger, mergeService))

	return mux
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Error encoding response", slog.Any("error", err))
	}
}

func lookupMerge(w http.ResponseWriter, r *http.Request, logger *slog.Logger, mergeService *store.Service) (store.Merge, bool) {
	id := r.PathValue("id")
	m, err := mergeService.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "merge not found", http.StatusNotFound)
		return store.Merge{}, false
	}
	if err != nil {
		logger.Error("Error getting merge", slog.String("id", id), slog.Any("error", err))
		w.WriteHeader(http.StatusInternalServerError)
		return store.Merge{}, false
	}
	return m, true
}

func handleListMerges(logger *slog.Logger, mergeService *store.Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		merges, err := mergeService.List(r.Context())
		if err != nil {
			logger.Error("Error listing merges", slog.Any("error", err))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writeJSON(w, logger, merges)
	})
}

func handleGetMergeDetail(logger *slog.Logger, mergeService *store.Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m, ok := lookupMerge(w, r, logger, mergeService)
		if !ok {
			return
		}
		writeJSON(w, logger, m)
	})
}

func handleGetMergeOutput(logger *slog.Logger, mergeService *store.Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m, ok := lookupMerge(w, r, logger, mergeService)
		if !ok {
			return
		}

		contentType, ok := contentTypes[m.Format]
		if !ok {
			contentType = "application/octet-stream"
		}
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(m.Output); err != nil {
			logger.Error("Error writing merge output", slog.String("id", m.ID), slog.Any("error", err))
		}
	})
}
