package services

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"smartsensors/models"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Dashboard serves the polled views and the diagnostic log over HTTP
type Dashboard struct {
	handles map[string]*PollHandle
	views   *ViewBuilder
	diag    *DiagnosticLogger
	logger  *zap.Logger
}

// NewDashboard creates a dashboard over the running poll handles, keyed by view
func NewDashboard(handles map[string]*PollHandle, views *ViewBuilder, diag *DiagnosticLogger, logger *zap.Logger) *Dashboard {
	return &Dashboard{
		handles: handles,
		views:   views,
		diag:    diag,
		logger:  logger,
	}
}

// Router builds the chi router
func (d *Dashboard) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(d.requestLogger)
	r.Use(d.recoverer)

	r.Get("/healthz", d.handleHealth)
	r.Get("/api/views", d.handleListViews)
	r.Get("/api/views/{view}", d.handleView)
	r.Get("/api/logs", d.handleGetLogs)
	r.Delete("/api/logs", d.handleClearLogs)
	r.Get("/api/logs/export", d.handleExportLogs)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

func (d *Dashboard) handleHealth(w http.ResponseWriter, r *http.Request) {
	views := make(map[string]models.PollState, len(d.handles))
	for name, h := range d.handles {
		views[name] = h.Status().State
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"views":  views,
	})
}

func (d *Dashboard) handleListViews(w http.ResponseWriter, r *http.Request) {
	out := make([]map[string]any, 0, len(d.handles))
	for name, h := range d.handles {
		out = append(out, map[string]any{
			"view":      name,
			"component": h.Component(),
			"interval":  h.Interval().String(),
			"status":    h.Status(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (d *Dashboard) handleView(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "view")
	spec, err := LookupView(name)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	handle, ok := d.handles[name]
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("view %q is not polled", name))
		return
	}
	writeJSON(w, http.StatusOK, d.views.Build(spec, handle))
}

func (d *Dashboard) handleGetLogs(w http.ResponseWriter, r *http.Request) {
	level := models.LogLevel(r.URL.Query().Get("level"))
	switch level {
	case "", models.LevelInfo, models.LevelWarning, models.LevelError:
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown level %q", level))
		return
	}
	writeJSON(w, http.StatusOK, d.diag.GetLogs(level))
}

func (d *Dashboard) handleClearLogs(w http.ResponseWriter, r *http.Request) {
	d.diag.ClearLogs()
	d.diag.Action("Dashboard", "clear_logs", map[string]any{"remote_addr": r.RemoteAddr})
	w.WriteHeader(http.StatusNoContent)
}

func (d *Dashboard) handleExportLogs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", d.diag.ExportFileName()))
	if err := d.diag.ExportLogs(w); err != nil {
		d.logger.Error("Failed to export logs", zap.Error(err))
	}
}

// requestLogger logs every request through zap
func (d *Dashboard) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		d.logger.Debug("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

// recoverer reports handler panics to the diagnostic logger
func (d *Dashboard) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				d.diag.Error("Dashboard", "Unhandled panic in "+r.URL.Path, panicError(rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
