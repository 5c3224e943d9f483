package system

import (
	"encoding/json"
	"math"
	"net/http"
	"time"
)

func (s *System) StatusHandler(w http.ResponseWriter, r *http.Request) {
	stats := s.Stats // copied
	if !stats.t1.IsZero() {
		d := time.Since(s.Stats.t1)
		stats.Uptime = d.Truncate(time.Second).Seconds()
		if stats.Uptime > 0 {
			stats.Average = math.Round(float64(stats.Hits)/stats.Uptime*100) / 100
		}
	}
	stats.Version = s.config.Meta.Version
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}
