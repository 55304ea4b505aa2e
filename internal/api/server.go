package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"
)

// NewServer creates an HTTP server with all routes configured. metrics may be nil.
func NewServer(port string, handler *Handler, metrics http.Handler, adminAPIKey string) *http.Server {
	mux := http.NewServeMux()

	protect := func(h http.HandlerFunc) http.Handler {
		if adminAPIKey != "" {
			return requireAuth(adminAPIKey, h)
		}
		return h
	}

	mux.Handle("GET /api/v1/overview", protect(handler.GetOverview))
	mux.Handle("GET /api/v1/overview.xlsx", protect(handler.GetOverviewXLSX))
	mux.Handle("POST /api/v1/sync", protect(handler.TriggerSync))
	mux.HandleFunc("GET /healthz", handler.Healthz)
	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}

	return &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func requireAuth(apiKey string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		token := strings.TrimPrefix(auth, "Bearer ")
		if !strings.HasPrefix(auth, "Bearer ") || subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}
