package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nortadzhiev-rustam/edu-sis-paragon-sub009/internal/calendar"
	"github.com/nortadzhiev-rustam/edu-sis-paragon-sub009/internal/ical"
)

var requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "calendard_requests_total",
	Help: "HTTP requests served, by route.",
}, []string{"route"})

type apiHandler struct {
	service *calendar.Service
}

// events serves GET /events?start=...&end=...&refresh=true with RFC 3339
// bounds. Omitted bounds default to the current calendar month.
func (h *apiHandler) events(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	opts := calendar.NewFetchOptions(start, end)
	opts.ForceRefresh = r.URL.Query().Get("refresh") == "true"

	events, report, err := h.service.AllEventsDetailed(r.Context(), opts)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, map[string]any{
		"success": true,
		"data": map[string]any{
			"events":     events,
			"requested":  report.Requested,
			"included":   report.Included,
			"from_cache": report.FromCache,
		},
	})
}

// upcoming serves GET /events/upcoming?days=N (default 7).
func (h *apiHandler) upcoming(w http.ResponseWriter, r *http.Request) {
	days := 7
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		days = n
	}

	events, err := h.service.UpcomingEvents(r.Context(), days)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, map[string]any{"success": true, "data": map[string]any{"events": events}})
}

// monthly serves GET /events/month/{year}/{month}.
func (h *apiHandler) monthly(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	year, err := strconv.Atoi(vars["year"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	month, err := strconv.Atoi(vars["month"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	events, err := h.service.MonthlyEvents(r.Context(), year, month)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, map[string]any{"success": true, "data": map[string]any{"events": events}})
}

// icsFeed serves the merged events for the requested range as iCalendar.
func (h *apiHandler) icsFeed(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	events, err := h.service.AllEvents(r.Context(), calendar.NewFetchOptions(start, end))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	data, err := ical.Encode(events)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	_, _ = w.Write(data)
}

func (h *apiHandler) stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"success": true, "data": h.service.Stats()})
}

func parseRange(r *http.Request) (time.Time, time.Time, error) {
	now := time.Now()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.Local)
	end := start.AddDate(0, 1, 0)

	if v := r.URL.Query().Get("start"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		start = t
	}
	if v := r.URL.Query().Get("end"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		end = t
	}
	return start, end, nil
}

func writeJSON(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, code int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": err.Error()})
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, calendar.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, calendar.ErrNotInitialized):
		writeError(w, http.StatusServiceUnavailable, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

// routeLabel returns the matched mux route template, so parameterized paths
// like /events/month/{year}/{month} stay one metric series.
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return r.URL.Path
}

// requestLogger logs each request with a generated request ID.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestsTotal.WithLabelValues(routeLabel(r)).Inc()
		started := time.Now()
		id := uuid.NewString()
		next.ServeHTTP(w, r)
		slog.Info("request", "id", id, "method", r.Method, "path", r.URL.Path,
			"duration", time.Since(started))
	})
}

// recovery turns panics into 500s instead of killing the server.
func recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("panic in handler", "panic", rec, "stack", string(debug.Stack()))
				writeError(w, http.StatusInternalServerError, errors.New("internal server error"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
