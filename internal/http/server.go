// Package http exposes the meal billing service as a JSON API.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"ateria/internal/services"
)

type Server struct {
	http.Server
	svc *services.MealService
}

func NewServer(addr string, svc *services.MealService) *Server {
	s := &Server{svc: svc}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/users", s.handleListUsers)
	mux.HandleFunc("POST /api/users", s.handleAddUser)
	mux.HandleFunc("GET /api/users/{id}", s.handleGetUser)
	mux.HandleFunc("POST /api/users/{id}/allergies", s.handleAddAllergy)

	mux.HandleFunc("GET /api/prices/{year}", s.handleGetPrices)
	mux.HandleFunc("POST /api/prices", s.handleAddPrice)

	mux.HandleFunc("GET /api/users/{id}/months/{year}/{month}", s.handleUserMonth)
	mux.HandleFunc("PUT /api/users/{id}/days/{year}/{month}/{day}", s.handleSaveDay)
	mux.HandleFunc("GET /api/kitchen/{year}/{month}/{day}", s.handleKitchenDay)

	mux.HandleFunc("GET /api/users/{id}/payments/{year}", s.handleGetPayments)
	mux.HandleFunc("POST /api/payments", s.handleSavePayment)

	mux.HandleFunc("GET /healthz", s.handleHealth)

	s.Server = http.Server{
		Addr:    addr,
		Handler: requestLogger(mux),
	}
	return s
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// requestLogger logs one line per request with timing.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.InfoContext(r.Context(), "Request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"status_code", rec.status,
			"duration_ms", time.Since(start).Milliseconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
