package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"log/slog"

	"github.com/ShibagniBhattacharjee06/lifelinex/internal/domain"
	"github.com/ShibagniBhattacharjee06/lifelinex/pkg/e"

	chimw "github.com/go-chi/chi/v5/middleware"
)

//go:generate mockgen -source=handlers.go -destination=mocks/mock.go
type AnalyticsHandler interface {
	Heatmap(ctx context.Context) ([]domain.HeatPoint, error)
	Stats(ctx context.Context) (*domain.AdminStats, error)
}

type Handler struct {
	logger    *slog.Logger
	Analytics AnalyticsHandler
}

func NewHandler(logger *slog.Logger, analytics AnalyticsHandler) *Handler {
	return &Handler{logger: logger, Analytics: analytics}
}

func (h *Handler) log(r *http.Request) *slog.Logger {
	reqID := chimw.GetReqID(r.Context())
	if reqID == "" {
		return h.logger
	}
	return h.logger.With(slog.String("request_id", reqID))
}

func (h *Handler) Heatmap(w http.ResponseWriter, r *http.Request) {
	points, err := h.Analytics.Heatmap(r.Context())
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	if points == nil {
		points = []domain.HeatPoint{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"points": points})
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Analytics.Stats(r.Context())
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	h.log(r).Error("handler error",
		slog.String("path", r.URL.Path),
		slog.Any("error", err),
	)

	switch {
	case errors.Is(err, e.ErrNotFound):
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	default:
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
