package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"

	"qrscanner/internal/logger"
	"qrscanner/internal/repository"
	"qrscanner/internal/service/display"
	"qrscanner/internal/service/scanner"
)

// StatsSource reports scanner counters; *scanner.Screen satisfies it.
type StatsSource interface {
	Stats() scanner.Stats
}

// StatusData is the response of the status endpoint.
type StatusData struct {
	Scanner   scanner.Stats `json:"scanner"`
	Display   display.State `json:"display"`
	Scans     int           `json:"scans"`
	Started   string        `json:"started"`
	Captured  string        `json:"captured"`
	Dropped   string        `json:"dropped"`
	LastScan  string        `json:"lastScan"`
	StartedAt time.Time     `json:"startedAt"`
}

// StatusHandler reports scanner, display and history state with humanized
// counters for the viewer page.
func StatusHandler(stats StatsSource, surface *display.Surface, scanRepo repository.ScanRepository,
	startedAt time.Time, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := stats.Stats()

		data := StatusData{
			Scanner:   st,
			Started:   humanize.Time(startedAt),
			Captured:  humanize.Comma(int64(st.Captured)),
			Dropped:   humanize.Comma(int64(st.Dropped)),
			LastScan:  "never",
			StartedAt: startedAt,
		}
		if !st.LastAccepted.IsZero() {
			data.LastScan = humanize.Time(st.LastAccepted)
		}

		ctx, cancel := context.WithTimeout(r.Context(), time.Second)
		defer cancel()
		if state, err := surface.Snapshot(ctx); err == nil {
			data.Display = state
		} else {
			logger.Warning("Display snapshot unavailable: %v", err)
		}

		if scanRepo != nil {
			count, err := scanRepo.Count()
			if err != nil {
				logger.Error("Error counting scans: %v", err)
			}
			data.Scans = count
		}

		writeJSON(w, logger, data)
	}
}
