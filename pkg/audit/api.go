package audit

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/vantagecrm/gatekeeper/pkg/api"
	"github.com/vantagecrm/gatekeeper/pkg/auth"
)

// API exposes the audit read endpoints. Both are tenant-scoped to the
// caller's own tenant; the pipeline restricts them to admin and owner
// roles and marks them audit-exempt so reading the log never writes to it.
type API struct {
	recorder *Recorder
}

// NewAPI creates the audit read API backed by the given recorder.
func NewAPI(recorder *Recorder) *API {
	return &API{recorder: recorder}
}

// ListHandler returns the handler for listing audit entries with filters.
//
// Query parameters: startDate, endDate (RFC 3339 or YYYY-MM-DD), action,
// resource, userId, status, limit (default 100), offset (default 0).
func (a *API) ListHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ac := auth.FromContext(r.Context())
		if ac == nil {
			api.WriteError(w, api.NewUnauthenticatedError("authentication required"))
			return
		}

		filter, err := parseFilter(r)
		if err != nil {
			api.WriteError(w, api.NewInvalidRequestError(err.Error()))
			return
		}

		page, listErr := a.recorder.List(r.Context(), ac.TenantID, filter)
		if listErr != nil {
			api.WriteError(w, api.NewServerError("listing audit entries failed"))
			return
		}

		api.WriteJSON(w, http.StatusOK, page)
	})
}

// StatsHandler returns the handler for aggregate audit statistics over a
// trailing window. Query parameter: days (default 30).
func (a *API) StatsHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ac := auth.FromContext(r.Context())
		if ac == nil {
			api.WriteError(w, api.NewUnauthenticatedError("authentication required"))
			return
		}

		days := DefaultStatsDays
		if v := r.URL.Query().Get("days"); v != "" {
			parsed, err := strconv.Atoi(v)
			if err != nil || parsed <= 0 {
				api.WriteError(w, api.NewInvalidRequestError("days must be a positive integer"))
				return
			}
			days = parsed
		}

		stats, err := a.recorder.Stats(r.Context(), ac.TenantID, days)
		if err != nil {
			api.WriteError(w, api.NewServerError("computing audit stats failed"))
			return
		}

		api.WriteJSON(w, http.StatusOK, stats)
	})
}

// parseFilter reads list query parameters into a Filter.
func parseFilter(r *http.Request) (Filter, error) {
	q := r.URL.Query()

	filter := Filter{
		Action:   Action(q.Get("action")),
		Resource: q.Get("resource"),
		UserID:   q.Get("userId"),
		Status:   Status(q.Get("status")),
	}

	var err error
	if filter.Start, err = parseDate(q.Get("startDate")); err != nil {
		return Filter{}, err
	}
	if filter.End, err = parseDate(q.Get("endDate")); err != nil {
		return Filter{}, err
	}

	if v := q.Get("limit"); v != "" {
		limit, convErr := strconv.Atoi(v)
		if convErr != nil || limit <= 0 {
			return Filter{}, fmt.Errorf("limit must be a positive integer")
		}
		filter.Limit = limit
	}
	if v := q.Get("offset"); v != "" {
		offset, convErr := strconv.Atoi(v)
		if convErr != nil || offset < 0 {
			return Filter{}, fmt.Errorf("offset must be a non-negative integer")
		}
		filter.Offset = offset
	}

	return filter, nil
}

// parseDate accepts RFC 3339 timestamps or bare dates.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("dates must be RFC 3339 or YYYY-MM-DD")
}
