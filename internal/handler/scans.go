package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"qrscanner/internal/logger"
	"qrscanner/internal/model"
	"qrscanner/internal/repository"
	"qrscanner/internal/repository/sqlite"
)

// ScansData is the response of the scan history endpoint.
type ScansData struct {
	Scans []model.Scan `json:"scans"`
	Total int          `json:"total"`
	Limit int          `json:"limit"`
}

// GetScansHandler returns recent scans, or the scans of one session when the
// "session" query parameter is set. Total counts all scans, or the session's.
func GetScansHandler(scanRepo repository.ScanRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if scanRepo == nil {
			http.Error(w, "Scan history disabled", http.StatusNotFound)
			return
		}

		q := r.URL.Query()
		limit := atoiDefault(q.Get("limit"), 50)

		var (
			scans []model.Scan
			total int
			err   error
		)
		if session := q.Get("session"); session != "" {
			// Total is the size of the session; the page holds at most limit scans.
			scans, err = scanRepo.GetBySession(session)
			total = len(scans)
			if len(scans) > limit {
				scans = scans[:limit]
			}
		} else {
			scans, err = scanRepo.GetRecent(limit)
			if err == nil {
				total, err = scanRepo.Count()
				if err != nil {
					logger.Error("Error counting scans: %v", err)
					total, err = len(scans), nil
				}
			}
		}
		if err != nil {
			logger.Error("Error querying scans from database: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		if scans == nil {
			scans = []model.Scan{}
		}
		writeJSON(w, logger, ScansData{Scans: scans, Total: total, Limit: limit})
	}
}

// GetScanHandler returns one scan by id.
func GetScanHandler(scanRepo repository.ScanRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if scanRepo == nil {
			http.Error(w, "Scan history disabled", http.StatusNotFound)
			return
		}

		scan, err := scanRepo.GetByID(mux.Vars(r)["id"])
		if errors.Is(err, sqlite.ErrScanNotFound) {
			http.Error(w, "Scan not found", http.StatusNotFound)
			return
		}
		if err != nil {
			logger.Error("Error querying scan: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, logger, scan)
	}
}

// ClearScansHandler deletes the whole scan history.
func ClearScansHandler(scanRepo repository.ScanRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if scanRepo == nil {
			http.Error(w, "Scan history disabled", http.StatusNotFound)
			return
		}
		if err := scanRepo.DeleteAll(); err != nil {
			logger.Error("Error clearing scan history: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		logger.Info("Scan history cleared")
		w.WriteHeader(http.StatusNoContent)
	}
}

func writeJSON(w http.ResponseWriter, logger *logger.Logger, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}

// atoiDefault converts string to int or returns a default when conversion fails or value <= 0.
func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}
