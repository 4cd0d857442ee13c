package audit

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/vantagecrm/gatekeeper/pkg/observability"
)

// Action categorizes what a mutating request did.
type Action string

const (
	ActionCreate      Action = "CREATE"
	ActionUpdate      Action = "UPDATE"
	ActionDelete      Action = "DELETE"
	ActionLogin       Action = "LOGIN"
	ActionLogout      Action = "LOGOUT"
	ActionRateLimited Action = "RATE_LIMITED"
)

// ActionForMethod maps a mutating HTTP method to its action.
// Returns empty string for read-only methods.
func ActionForMethod(method string) Action {
	switch method {
	case http.MethodPost:
		return ActionCreate
	case http.MethodPut, http.MethodPatch:
		return ActionUpdate
	case http.MethodDelete:
		return ActionDelete
	default:
		return ""
	}
}

// Status is the recorded outcome of the audited operation.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// maxUserAgentLen caps the stored User-Agent header.
const maxUserAgentLen = 500

// Entry is an immutable record of one mutating operation. Entries are
// created once, after the operation settles, and are never updated or
// deleted by the pipeline.
type Entry struct {
	ID           string         `json:"id"`
	TenantID     string         `json:"tenantId"`
	UserID       string         `json:"userId"`
	Action       Action         `json:"action"`
	Resource     string         `json:"resource"`
	ResourceID   string         `json:"resourceId,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
	IPAddress    string         `json:"ipAddress,omitempty"`
	UserAgent    string         `json:"userAgent,omitempty"`
	Status       Status         `json:"status"`
	ErrorMessage string         `json:"errorMessage,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// Filter selects entries for List. Zero values mean "no constraint".
type Filter struct {
	Start    time.Time
	End      time.Time
	Action   Action
	Resource string
	UserID   string
	Status   Status
	Limit    int
	Offset   int
}

// DefaultLimit is the page size applied when the filter does not set one.
const DefaultLimit = 100

// normalize applies pagination defaults.
func (f *Filter) normalize() {
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}

// Page is one page of audit entries, ordered by creation time descending.
type Page struct {
	Entries []*Entry `json:"entries"`
	Total   int      `json:"total"`
	Limit   int      `json:"limit"`
	Offset  int      `json:"offset"`
	HasMore bool     `json:"hasMore"`
}

// Stats aggregates entries over a trailing window.
type Stats struct {
	Total       int            `json:"total"`
	ByAction    map[string]int `json:"byAction"`
	ByResource  map[string]int `json:"byResource"`
	FailureRate string         `json:"failureRate"`
}

// DefaultStatsDays is the trailing window applied when none is given.
const DefaultStatsDays = 30

// FailureRate formats a failure percentage rounded to two decimals.
// Returns "0" when total is zero to avoid division by zero.
func FailureRate(failures, total int) string {
	if total == 0 {
		return "0"
	}
	return fmt.Sprintf("%.2f", float64(failures)/float64(total)*100)
}

// Store is the append-only audit persistence backend. Writes are
// independent, uncorrelated appends with no cross-entry ordering
// requirement; display ordering is by timestamp at read time.
type Store interface {
	Insert(ctx context.Context, entry *Entry) error
	List(ctx context.Context, tenantID string, filter Filter) (*Page, error)
	Stats(ctx context.Context, tenantID string, days int) (*Stats, error)
	HealthCheck(ctx context.Context) error
	Close() error
}

// Recorder writes audit entries without ever surfacing a failure to the
// caller. It is the only component of the pipeline that retains shared
// state across requests (the store handle).
type Recorder struct {
	store   Store
	logger  *slog.Logger
	timeout time.Duration
}

// NewRecorder creates a Recorder backed by the given store.
func NewRecorder(store Store, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		store:   store,
		logger:  logger,
		timeout: 5 * time.Second,
	}
}

// Record persists one entry, best-effort. It redacts details, truncates
// the user agent, fills in ID and timestamp, and catches every store
// failure. It never raises to the caller, never retries, and runs under
// its own deadline detached from the triggering request's cancellation,
// so an aborted request still gets one recording attempt.
func (r *Recorder) Record(ctx context.Context, entry Entry) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("audit record panicked", "panic", rec)
		}
	}()

	if entry.ID == "" {
		entry.ID = newEntryID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.Status == "" {
		entry.Status = StatusSuccess
	}
	if len(entry.UserAgent) > maxUserAgentLen {
		entry.UserAgent = entry.UserAgent[:maxUserAgentLen]
	}
	entry.Details = RedactMap(entry.Details)

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	if err := r.store.Insert(writeCtx, &entry); err != nil {
		observability.AuditWriteFailuresTotal.Inc()
		r.logger.Error("audit write failed",
			"tenant_id", entry.TenantID,
			"action", entry.Action,
			"resource", entry.Resource,
			"error", err,
		)
		return
	}

	observability.AuditRecordsTotal.WithLabelValues(string(entry.Status)).Inc()
}

// List returns a page of entries for one tenant, newest first.
func (r *Recorder) List(ctx context.Context, tenantID string, filter Filter) (*Page, error) {
	filter.normalize()
	return r.store.List(ctx, tenantID, filter)
}

// Stats aggregates one tenant's entries over a trailing window of days.
func (r *Recorder) Stats(ctx context.Context, tenantID string, days int) (*Stats, error) {
	if days <= 0 {
		days = DefaultStatsDays
	}
	return r.store.Stats(ctx, tenantID, days)
}

// newEntryID creates a unique entry id as a hex string.
func newEntryID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}
