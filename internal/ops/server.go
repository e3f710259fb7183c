// Package ops exposes a small read-only HTTP API over the attempt ledger and
// the pipeline coverage report, for dashboards and manual inspection. It
// never mutates anything; the CLI binaries remain the only writers.
package ops

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"postline/internal/types"
)

// APIResponse is the envelope for successful responses.
type APIResponse struct {
	Data any `json:"data,omitempty"`
}

// APIErrorResponse is the envelope for error responses.
type APIErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError maps an error chain to the envelope. AppError codes pass
// through; wrapped internals are never exposed.
func writeError(w http.ResponseWriter, err error) {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		writeJSON(w, httpStatus(appErr.Code), APIErrorResponse{
			Error: ErrorDetail{Code: string(appErr.Code), Message: appErr.Message},
		})
		return
	}
	writeJSON(w, http.StatusInternalServerError, APIErrorResponse{
		Error: ErrorDetail{
			Code:    string(types.ErrCodeInternalUnexpected),
			Message: "internal error",
		},
	})
}

func httpStatus(code types.ErrorCode) int {
	switch code {
	case types.ErrCodeLedgerRead, types.ErrCodeMirrorDB:
		return http.StatusServiceUnavailable
	case types.ErrCodeProfileMissing:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// NewRouter builds the ops router with request logging and panic recovery.
func NewRouter(h *Handler, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/api", func(r chi.Router) {
		r.Get("/posting-log", h.GetPostingLog)
		r.Get("/pipeline-health", h.GetPipelineHealth)
	})
	return r
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.InfoContext(r.Context(), "request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
			)
		})
	}
}
