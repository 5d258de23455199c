package api

import (
	"net/http"
)

// StatsProvider reports engine counters: rebuilds, clips scored, pool and
// queue occupancy, and the fingerprint shape. The sound service satisfies it.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// StatsHandler serves GET /stats. Counters change on every rebuild and
// check, so responses are marked uncacheable.
type StatsHandler struct {
	statsProvider StatsProvider
}

func NewStatsHandler(statsProvider StatsProvider) *StatsHandler {
	return &StatsHandler{statsProvider: statsProvider}
}

func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		fail(w, NewKind("api.stats", ErrMethod))
		return
	}
	if h.statsProvider == nil {
		fail(w, NewKind("api.stats", ErrUnavailable))
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, h.statsProvider.GetStats())
}
