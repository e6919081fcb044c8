// Package api serves the analysis and Q&A core over a local HTTP API.
//
// Routes:
//
//	GET  /healthz
//	POST /api/datasets                     upload a file (multipart "file")
//	GET  /api/datasets/{id}                full report
//	GET  /api/datasets/{id}/summary        headline figures
//	GET  /api/datasets/{id}/insights       heuristic insights
//	GET  /api/datasets/{id}/products?n=    top products by units and revenue
//	GET  /api/datasets/{id}/states         sales by state
//	GET  /api/datasets/{id}/trend          daily totals
//	GET  /api/datasets/{id}/weekday        totals by weekday
//	POST /api/datasets/{id}/ask            {"question": "..."}
//	GET  /api/usage                        quota counters
//
// There is no authentication; bind to localhost.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/usage", h.GetUsage)
		r.Route("/datasets", func(r chi.Router) {
			r.Post("/", h.UploadDataset)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetReport)
				r.Get("/summary", h.GetSummary)
				r.Get("/insights", h.GetInsights)
				r.Get("/products", h.GetProducts)
				r.Get("/states", h.GetStates)
				r.Get("/trend", h.GetTrend)
				r.Get("/weekday", h.GetWeekday)
				r.Post("/ask", h.Ask)
			})
		})
	})
	return r
}

// requestLogger logs one line per request through zap.
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("took", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}
