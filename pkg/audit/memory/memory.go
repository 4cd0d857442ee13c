// Package memory provides an in-memory implementation of audit.Store for
// testing and lightweight deployments. Entries are stored in memory and
// lost when the process restarts.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vantagecrm/gatekeeper/pkg/audit"
)

// Store is an in-memory append-only audit store.
type Store struct {
	mu      sync.RWMutex
	entries []*audit.Entry
	maxSize int // 0 = unlimited
}

// Ensure Store implements audit.Store at compile time.
var _ audit.Store = (*Store)(nil)

// New creates a new in-memory store. If maxSize is 0, the store grows
// without limit. If maxSize > 0, the oldest entries are dropped when the
// limit is reached.
func New(maxSize int) *Store {
	return &Store{maxSize: maxSize}
}

// Insert appends one entry. Entries are copied so later mutation by the
// caller cannot alter the stored record.
func (s *Store) Insert(_ context.Context, entry *audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *entry
	if entry.Details != nil {
		details := make(map[string]any, len(entry.Details))
		for k, v := range entry.Details {
			details[k] = v
		}
		stored.Details = details
	}

	s.entries = append(s.entries, &stored)

	if s.maxSize > 0 && len(s.entries) > s.maxSize {
		s.entries = s.entries[len(s.entries)-s.maxSize:]
	}

	return nil
}

// List returns a page of one tenant's entries, newest first.
func (s *Store) List(_ context.Context, tenantID string, filter audit.Filter) (*audit.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []*audit.Entry
	for _, e := range s.entries {
		if e.TenantID != tenantID {
			continue
		}
		if !matchesFilter(e, filter) {
			continue
		}
		matches = append(matches, e)
	}

	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
			return matches[i].CreatedAt.After(matches[j].CreatedAt)
		}
		return matches[i].ID > matches[j].ID
	})

	total := len(matches)

	if filter.Offset >= total {
		matches = nil
	} else {
		matches = matches[filter.Offset:]
	}
	if len(matches) > filter.Limit {
		matches = matches[:filter.Limit]
	}

	page := &audit.Page{
		Entries: matches,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
		HasMore: filter.Offset+len(matches) < total,
	}
	if page.Entries == nil {
		page.Entries = []*audit.Entry{}
	}

	return page, nil
}

// Stats aggregates one tenant's entries over a trailing window of days.
func (s *Store) Stats(_ context.Context, tenantID string, days int) (*audit.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	stats := &audit.Stats{
		ByAction:   make(map[string]int),
		ByResource: make(map[string]int),
	}

	failures := 0
	for _, e := range s.entries {
		if e.TenantID != tenantID || e.CreatedAt.Before(cutoff) {
			continue
		}
		stats.Total++
		stats.ByAction[string(e.Action)]++
		if e.Resource != "" {
			stats.ByResource[e.Resource]++
		}
		if e.Status == audit.StatusFailure {
			failures++
		}
	}

	stats.FailureRate = audit.FailureRate(failures, stats.Total)
	return stats, nil
}

// HealthCheck always returns nil for the in-memory store.
func (s *Store) HealthCheck(_ context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}

// matchesFilter applies the non-tenant filter fields.
func matchesFilter(e *audit.Entry, f audit.Filter) bool {
	if !f.Start.IsZero() && e.CreatedAt.Before(f.Start) {
		return false
	}
	if !f.End.IsZero() && e.CreatedAt.After(f.End) {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.Resource != "" && e.Resource != f.Resource {
		return false
	}
	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	return true
}
