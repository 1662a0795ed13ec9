// Package api exposes offers, lead uploads, batch scoring and results over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/spigell/leadscore/internal/metrics"
	"github.com/spigell/leadscore/internal/scoring"
	"github.com/spigell/leadscore/internal/store"
)

const serviceName = "leadscore"

var now = func() time.Time { return time.Now().UTC() }

type Handler struct {
	store   *store.Memory
	runner  *scoring.Runner
	logger  *zap.Logger
	version string
}

func NewHandler(memory *store.Memory, runner *scoring.Runner, version string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: memory, runner: runner, logger: logger, version: version}
}

func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(h.recoverer)
	r.Use(h.requestLogger)

	r.Get("/", h.health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/offer", func(r chi.Router) {
		r.Post("/", h.createOffer)
		r.Get("/", h.getOffer)
	})

	r.Route("/leads", func(r chi.Router) {
		r.Post("/upload", h.uploadLeads)
		r.Get("/", h.listLeads)
	})

	r.Route("/score", func(r chi.Router) {
		r.Post("/", h.startScoring)
		r.Get("/status", h.scoringStatus)
	})

	r.Route("/results", func(r chi.Router) {
		r.Get("/", h.listResults)
		r.Get("/summary", h.resultsSummary)
		r.Get("/export", h.exportCSV)
		r.Get("/export/json", h.exportJSON)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, newAPIError(http.StatusNotFound, CodeNotFound, "Route not found", nil))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, newAPIError(http.StatusMethodNotAllowed, CodeMethodNotAllowed, "Method not allowed", nil))
	})

	return r
}

func (h *Handler) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				h.logger.Error("panic recovered",
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Any("panic", rec),
				)
				writeError(w, newAPIError(http.StatusInternalServerError, CodeInternal, "An unexpected error occurred", nil))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		fields := []zap.Field{
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
		}

		switch {
		case status >= http.StatusInternalServerError:
			h.logger.Error("http request completed", fields...)
		case status >= http.StatusBadRequest:
			h.logger.Warn("http request completed", fields...)
		default:
			h.logger.Debug("http request completed", fields...)
		}
	})
}
