package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"rinkside/internal/booking"
	"rinkside/internal/series"
	"rinkside/pkg/config"
	apperrors "rinkside/pkg/errors"
	httputil "rinkside/pkg/http"
	"rinkside/pkg/logger"
	"rinkside/pkg/model"

	"github.com/julienschmidt/httprouter"
)

// EventHandler adapts the booking coordinator to HTTP. It owns request
// decoding and parameter parsing; all domain decisions live behind the
// coordinator.
type EventHandler struct {
	coordinator booking.Coordinator
	logger      *logger.Logger
}

func NewEventHandler(coordinator booking.Coordinator, log *logger.Logger) *EventHandler {
	return &EventHandler{
		coordinator: coordinator,
		logger:      log,
	}
}

func (h *EventHandler) RegisterRoutes(router *httprouter.Router) {
	router.HandlerFunc(http.MethodPost, "/api/v1/events", h.Create)
	router.HandlerFunc(http.MethodGet, "/api/v1/events", h.List)
	router.Handle(http.MethodGet, "/api/v1/events/id/:id", h.Get)
	router.Handle(http.MethodPatch, "/api/v1/events/id/:id", h.Update)
	router.Handle(http.MethodDelete, "/api/v1/events/id/:id", h.Cancel)
	router.Handle(http.MethodGet, "/api/v1/events/id/:id/occurrences", h.Occurrences)
	router.Handle(http.MethodPost, "/api/v1/events/id/:id/series", h.EditSeries)
	router.Handle(http.MethodDelete, "/api/v1/events/id/:id/series", h.DeleteSeries)
	router.HandlerFunc(http.MethodPost, "/api/v1/conflicts/check", h.CheckConflicts)
}

// SeriesEditRequest selects the edit reach and carries the overrides.
type SeriesEditRequest struct {
	Mode    string         `json:"mode"`
	Date    time.Time      `json:"date"`
	Changes series.Changes `json:"changes"`
}

func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req booking.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErr(w, apperrors.InvalidInput("Invalid JSON payload"))
		return
	}

	event, err := h.coordinator.Create(r.Context(), &req)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	_ = httputil.WriteCreated(w, event)
}

func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	event, err := h.coordinator.Get(r.Context(), params.ByName("id"))
	if err != nil {
		h.writeErr(w, err)
		return
	}
	_ = httputil.WriteSuccess(w, event)
}

func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	orgID := query.Get("organization_id")
	if orgID == "" {
		h.writeErr(w, apperrors.InvalidInput("organization_id query parameter is required"))
		return
	}

	window, err := parseOptionalWindow(query.Get("start"), query.Get("end"))
	if err != nil {
		h.writeErr(w, err)
		return
	}

	limit, _ := strconv.Atoi(query.Get("limit"))
	limit = config.NormalizePaginationLimit(limit)
	offset, _ := strconv.ParseInt(query.Get("offset"), 10, 64)
	offset = config.NormalizeOffset(offset)

	events, total, err := h.coordinator.List(r.Context(), orgID, window, limit, offset)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	_ = httputil.WritePaginated(w, events, total, limit, offset)
}

func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	var updates model.EventUpdate
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		h.writeErr(w, apperrors.InvalidInput("Invalid JSON payload"))
		return
	}

	event, err := h.coordinator.Update(r.Context(), params.ByName("id"), &updates)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	_ = httputil.WriteSuccess(w, event)
}

func (h *EventHandler) Cancel(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	if err := h.coordinator.Cancel(r.Context(), params.ByName("id")); err != nil {
		h.writeErr(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (h *EventHandler) Occurrences(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	query := r.URL.Query()

	start, err := parseTime(query.Get("start"), "start")
	if err != nil {
		h.writeErr(w, err)
		return
	}
	end, err := parseTime(query.Get("end"), "end")
	if err != nil {
		h.writeErr(w, err)
		return
	}

	occurrences, err := h.coordinator.Occurrences(r.Context(), params.ByName("id"), model.TimeWindow{Start: start, End: end})
	if err != nil {
		h.writeErr(w, err)
		return
	}
	_ = httputil.WriteSuccess(w, occurrences)
}

func (h *EventHandler) EditSeries(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	var req SeriesEditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErr(w, apperrors.InvalidInput("Invalid JSON payload"))
		return
	}

	result, err := h.coordinator.EditSeries(r.Context(), params.ByName("id"), req.Date, req.Changes, series.Mode(req.Mode))
	if err != nil {
		h.writeErr(w, err)
		return
	}
	_ = httputil.WriteSuccess(w, result)
}

func (h *EventHandler) DeleteSeries(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	query := r.URL.Query()

	date, err := parseTime(query.Get("date"), "date")
	if err != nil {
		h.writeErr(w, err)
		return
	}

	result, err := h.coordinator.DeleteSeries(r.Context(), params.ByName("id"), date, series.Mode(query.Get("mode")))
	if err != nil {
		h.writeErr(w, err)
		return
	}
	_ = httputil.WriteSuccess(w, result)
}

func (h *EventHandler) CheckConflicts(w http.ResponseWriter, r *http.Request) {
	var candidate model.Candidate
	if err := json.NewDecoder(r.Body).Decode(&candidate); err != nil {
		h.writeErr(w, apperrors.InvalidInput("Invalid JSON payload"))
		return
	}

	entries, err := h.coordinator.CheckConflicts(r.Context(), candidate)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	_ = httputil.WriteSuccess(w, map[string]any{
		"has_conflicts": len(entries) > 0,
		"conflicts":     entries,
	})
}

func (h *EventHandler) writeErr(w http.ResponseWriter, err error) {
	appErr := apperrors.AsAppError(err)
	if appErr.HTTPStatus >= http.StatusInternalServerError {
		h.logger.Error("Request failed", "code", appErr.Code, "error", appErr.Error())
	}
	_ = httputil.WriteError(w, appErr)
}

func parseTime(value, name string) (time.Time, error) {
	if value == "" {
		return time.Time{}, apperrors.InvalidInput(name + " query parameter is required (RFC 3339)")
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, apperrors.InvalidInput(name + " must be an RFC 3339 timestamp")
	}
	return t, nil
}

func parseOptionalWindow(start, end string) (*model.TimeWindow, error) {
	if start == "" && end == "" {
		return nil, nil
	}
	if start == "" || end == "" {
		return nil, apperrors.InvalidInput("start and end must be provided together")
	}

	from, err := parseTime(start, "start")
	if err != nil {
		return nil, err
	}
	to, err := parseTime(end, "end")
	if err != nil {
		return nil, err
	}
	if !to.After(from) {
		return nil, apperrors.InvalidInput("end must be after start")
	}
	return &model.TimeWindow{Start: from, End: to}, nil
}
