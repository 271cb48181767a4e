package sos

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"log/slog"

	"github.com/ShibagniBhattacharjee06/lifelinex/internal/domain"
	"github.com/ShibagniBhattacharjee06/lifelinex/internal/middleware"
	"github.com/ShibagniBhattacharjee06/lifelinex/internal/report"
	"github.com/ShibagniBhattacharjee06/lifelinex/pkg/validator"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

//go:generate mockgen -source=handlers.go -destination=mocks/mock.go
type Dispatcher interface {
	CreateIncident(ctx context.Context, userID uuid.UUID, req domain.CreateIncidentRequest) (*domain.Incident, error)
	ListActive(ctx context.Context) ([]*domain.Incident, error)
	Respond(ctx context.Context, incidentID, userID uuid.UUID) (*domain.Incident, error)
	Resolve(ctx context.Context, incidentID, userID uuid.UUID) (*domain.Incident, error)
	Cancel(ctx context.Context, incidentID, userID uuid.UUID, req domain.CancelIncidentRequest) (*domain.Incident, error)
	FindResponders(ctx context.Context, req domain.NearbyRespondersRequest) ([]domain.ResponderCandidate, error)
}

type ReportRenderer interface {
	Render(ctx context.Context, id uuid.UUID) ([]byte, error)
}

type Handler struct {
	logger   *slog.Logger
	Dispatch Dispatcher
	Reports  ReportRenderer
}

func NewHandler(logger *slog.Logger, dispatch Dispatcher, reports ReportRenderer) *Handler {
	return &Handler{
		logger:   logger,
		Dispatch: dispatch,
		Reports:  reports,
	}
}

func (h *Handler) log(r *http.Request) *slog.Logger {
	reqID := chimw.GetReqID(r.Context())
	if reqID == "" {
		return h.logger
	}
	return h.logger.With(slog.String("request_id", reqID))
}

func (h *Handler) SOSCreate(w http.ResponseWriter, r *http.Request) {
	l := h.log(r)
	l.Debug("SOSCreate", slog.String("remote", r.RemoteAddr))

	var req domain.CreateIncidentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		l.Warn("invalid JSON", slog.String("error", err.Error()))
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if err := validator.ValidateStruct(&req); err != nil {
		l.Warn("validation failed", slog.String("error", err.Error()))
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	l.Info("raising SOS",
		slog.String("type", string(req.Type)),
		slog.Float64("lat", req.Lat),
		slog.Float64("lng", req.Lng),
	)

	inc, err := h.Dispatch.CreateIncident(r.Context(), middleware.UserID(r.Context()), req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	l.Info("SOS raised", slog.String("id", inc.ID.String()), slog.Int("priority", inc.PriorityScore))
	h.writeJSON(w, http.StatusCreated, inc)
}

func (h *Handler) SOSActive(w http.ResponseWriter, r *http.Request) {
	incidents, err := h.Dispatch.ListActive(r.Context())
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"incidents": incidents,
		"count":     len(incidents),
	})
}

func (h *Handler) SOSRespond(w http.ResponseWriter, r *http.Request) {
	id, ok := h.incidentID(w, r)
	if !ok {
		return
	}

	inc, err := h.Dispatch.Respond(r.Context(), id, middleware.UserID(r.Context()))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, inc)
}

func (h *Handler) SOSResolve(w http.ResponseWriter, r *http.Request) {
	id, ok := h.incidentID(w, r)
	if !ok {
		return
	}

	inc, err := h.Dispatch.Resolve(r.Context(), id, middleware.UserID(r.Context()))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, inc)
}

func (h *Handler) SOSCancel(w http.ResponseWriter, r *http.Request) {
	l := h.log(r)

	id, ok := h.incidentID(w, r)
	if !ok {
		return
	}

	// Body is optional; an empty body is a plain cancel.
	var req domain.CancelIncidentRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			l.Warn("invalid JSON", slog.String("error", err.Error()))
			h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
			return
		}
	}

	inc, err := h.Dispatch.Cancel(r.Context(), id, middleware.UserID(r.Context()), req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, inc)
}

func (h *Handler) SOSReport(w http.ResponseWriter, r *http.Request) {
	l := h.log(r)

	id, ok := h.incidentID(w, r)
	if !ok {
		return
	}

	pdf, err := h.Reports.Render(r.Context(), id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	l.Info("report generated", slog.String("incident_id", id.String()), slog.Int("bytes", len(pdf)))

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+report.Filename(id)+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(pdf)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func (h *Handler) ResourceResponders(w http.ResponseWriter, r *http.Request) {
	l := h.log(r)
	l.Debug("ResourceResponders", slog.String("query", r.URL.RawQuery))

	q := r.URL.Query()
	// Zero is a valid coordinate, so absence is detected on the raw
	// params rather than the parsed values.
	if q.Get("lat") == "" || q.Get("lng") == "" {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "lat and lng are required"})
		return
	}
	req := domain.NearbyRespondersRequest{
		Lat:        parseFloat(q.Get("lat"), 0),
		Lng:        parseFloat(q.Get("lng"), 0),
		RadiusKM:   parseFloat(q.Get("radius_km"), 0),
		BloodGroup: q.Get("blood_group"),
	}
	if err := validator.ValidateStruct(&req); err != nil {
		l.Warn("validation failed", slog.String("error", err.Error()))
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	candidates, err := h.Dispatch.FindResponders(r.Context(), req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"responders": candidates,
		"count":      len(candidates),
	})
}

func (h *Handler) incidentID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		h.log(r).Warn("invalid id", slog.String("id", idStr))
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return uuid.Nil, false
	}
	return id, true
}
