package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// SetupRoutes configures all API routes
func SetupRoutes(handler *Handler) *mux.Router {
	r := mux.NewRouter()
	r.Use(handler.logRequests)

	// Health check
	r.HandleFunc("/health", handler.HealthCheck).Methods("GET")
	if handler.metrics != nil {
		r.Handle("/metrics", handler.metrics).Methods("GET")
	}

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/symbols", handler.GetSymbols).Methods("GET")
	api.HandleFunc("/snapshots/latest", handler.GetLatestSnapshots).Methods("GET")
	api.HandleFunc("/snapshots/{symbol}", handler.GetSymbolSnapshots).Methods("GET")
	api.HandleFunc("/summary/daily", handler.GetDailySummary).Methods("GET")
	api.HandleFunc("/summary/{symbol}/history", handler.GetSummaryHistory).Methods("GET")
	api.HandleFunc("/alerts/latest", handler.GetLatestAlerts).Methods("GET")
	api.HandleFunc("/cycles", handler.TriggerCycle).Methods("POST")

	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		h.log.WithFields(map[string]interface{}{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start).String(),
		}).Debug("Handled request")
	})
}
