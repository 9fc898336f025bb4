package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/pulse/pkg/observability"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func pathUserID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["userID"], 10, 64)
	return id, err == nil && id > 0
}

// parseTimeRange accepts only the four supported ranges.
func parseTimeRange(raw string) (TimeRange, bool) {
	switch TimeRange(raw) {
	case RangeDay, RangeWeek, RangeMonth, RangeQuarter:
		return TimeRange(raw), true
	default:
		return "", false
	}
}

// parseDate accepts RFC3339 or a bare date.
func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Catalog())
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.users.ListUsers(r.Context())
	if err != nil {
		s.serverError(w, r, err, "failed to list users")
		return
	}
	if users == nil {
		users = []*User{}
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}
	user, err := s.users.EnsureUser(r.Context(), body.Email)
	if err != nil {
		s.serverError(w, r, err, "failed to create user")
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) handleReadings(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	dataType := mux.Vars(r)["dataType"]

	// Default window: trailing week.
	start, end := RangeWeek.Window(time.Now())
	if raw := r.URL.Query().Get("start"); raw != "" {
		t, err := parseDate(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid start date")
			return
		}
		start = t
	}
	if raw := r.URL.Query().Get("end"); raw != "" {
		t, err := parseDate(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid end date")
			return
		}
		end = t
	}
	if !end.After(start) {
		writeError(w, http.StatusBadRequest, "end must be after start")
		return
	}

	readings, err := s.service.Readings(r.Context(), userID, dataType, start, end)
	if err != nil {
		s.serverError(w, r, err, "failed to read raw data")
		return
	}
	if readings == nil {
		readings = []Reading{}
	}
	writeJSON(w, http.StatusOK, readings)
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	analyticsType := r.URL.Query().Get("analytics_type")
	var timeRange TimeRange
	if raw := r.URL.Query().Get("time_range"); raw != "" {
		parsed, ok := parseTimeRange(raw)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid time range")
			return
		}
		timeRange = parsed
	}

	results, err := s.service.Results(r.Context(), userID, analyticsType, timeRange)
	if err != nil {
		s.serverError(w, r, err, "failed to list results")
		return
	}
	if results == nil {
		results = []*AnalyticsResult{}
	}
	writeJSON(w, http.StatusOK, results)
}

// handleStatus reports the current window's result state for one
// analytics type, so a dashboard can tell "no device data" apart from
// "still computing" and "computation failed".
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	vars := mux.Vars(r)
	timeRange, ok := parseTimeRange(vars["timeRange"])
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid time range")
		return
	}

	start, end := timeRange.Window(time.Now())
	report, err := s.service.Status(r.Context(), ResultKey{
		UserID:        userID,
		AnalyticsType: vars["analyticsType"],
		Range:         timeRange,
		StartDate:     start,
		EndDate:       end,
	})
	if err != nil {
		s.serverError(w, r, err, "failed to load status")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleCreateTrigger(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	var body struct {
		DaysBack int `json:"days_back"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.DaysBack < 1 {
		body.DaysBack = 1
	}

	trigger, err := s.triggers.Insert(r.Context(), userID, body.DaysBack)
	if err != nil {
		s.serverError(w, r, err, "failed to create trigger")
		return
	}
	writeJSON(w, http.StatusAccepted, trigger)
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	var body struct {
		AnalyticsType string `json:"analytics_type"`
		TimeRange     string `json:"time_range"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.AnalyticsType == "" {
		writeError(w, http.StatusBadRequest, "analytics_type is required")
		return
	}
	timeRange, ok := parseTimeRange(body.TimeRange)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid time range")
		return
	}

	start, end := timeRange.Window(time.Now())
	job, err := s.jobs.Enqueue(r.Context(), userID, body.AnalyticsType, timeRange, start, end)
	if err != nil {
		s.serverError(w, r, err, "failed to enqueue job")
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) serverError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	observability.FromContext(r.Context()).WithError(err).Error(msg)
	writeError(w, http.StatusInternalServerError, msg)
}
