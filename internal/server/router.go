package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kiesman99/satstitch/internal/api"
)

// BasePath is where the API routes are mounted.
const BasePath = "/api/v1"

// NewRouter wires the server into a chi router with the standard middleware
// stack. timeout bounds every request, including tile downloads; the
// handlers write the 504 themselves.
func NewRouter(s *Server, timeout time.Duration) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if timeout > 0 {
		r.Use(deadline(timeout))
	}
	r.Use(cors)

	api.HandlerWithOptions(s, api.ChiServerOptions{
		BaseURL:          BasePath,
		BaseRouter:       r,
		ErrorHandlerFunc: s.ParamErrorHandler,
	})

	// Legacy health endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, BasePath+"/health", http.StatusMovedPermanently)
	})

	return r
}

// deadline cancels the request context after d. Unlike middleware.Timeout
// it writes nothing, leaving the status to the handler.
func deadline(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// cors allows browser clients from any origin
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
		w.Header().Set("Access-Control-Expose-Headers",
			"X-Request-ID, X-Tiles-Total, X-Tiles-Failed, X-Raster-Size, X-World-File")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
