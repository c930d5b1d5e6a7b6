// Package statsweb exposes an Environment's StatsRepository over HTTP:
// a JSON snapshot endpoint routed with go-chi/chi/v5, and a Prometheus
// collector for /metrics.
package statsweb

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/so5go/so5"
)

// NewRouter builds a chi.Router exposing repo's current snapshot as JSON at
// GET /stats.
func NewRouter(repo *so5.StatsRepository) chi.Router {
	r := chi.NewRouter()
	r.Get("/stats", statsHandler(repo))
	return r
}

func statsHandler(repo *so5.StatsRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		snapshot := repo.Snapshot()
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(snapshot); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}
