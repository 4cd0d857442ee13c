// Package postgres provides a PostgreSQL implementation of audit.Store.
// It uses pgx/v5 for connection pooling and JSONB for the redacted
// details payload.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vantagecrm/gatekeeper/pkg/audit"
)

// Store is a PostgreSQL-backed audit store.
type Store struct {
	pool *pgxpool.Pool
}

// Ensure Store implements audit.Store at compile time.
var _ audit.Store = (*Store)(nil)

// New creates a new PostgreSQL store with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Verify connectivity.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

// Insert appends one audit entry.
func (s *Store) Insert(ctx context.Context, entry *audit.Entry) error {
	var detailsJSON []byte
	if entry.Details != nil {
		var err error
		detailsJSON, err = json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("marshaling details: %w", err)
		}
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_entries (
			id, tenant_id, user_id, action, resource, resource_id,
			details, ip_address, user_agent, status, error_message, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		entry.ID, entry.TenantID, entry.UserID, string(entry.Action),
		entry.Resource, nullString(entry.ResourceID),
		nullJSON(detailsJSON), nullString(entry.IPAddress), nullString(entry.UserAgent),
		string(entry.Status), nullString(entry.ErrorMessage), entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}

	return nil
}

// List returns a page of one tenant's entries, newest first.
func (s *Store) List(ctx context.Context, tenantID string, filter audit.Filter) (*audit.Page, error) {
	where, args := buildWhere(tenantID, filter)

	var total int
	countQuery := "SELECT count(*) FROM audit_entries WHERE " + where
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting audit entries: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT id, tenant_id, user_id, action, resource, resource_id,
		       details, ip_address, user_agent, status, error_message, created_at
		FROM audit_entries
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d
	`, where, len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit entries: %w", err)
	}
	defer rows.Close()

	entries := []*audit.Entry{}
	for rows.Next() {
		var e audit.Entry
		var action, status string
		var resourceID, ipAddress, userAgent, errorMessage *string
		var detailsJSON *[]byte

		if err := rows.Scan(
			&e.ID, &e.TenantID, &e.UserID, &action, &e.Resource, &resourceID,
			&detailsJSON, &ipAddress, &userAgent, &status, &errorMessage, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}

		e.Action = audit.Action(action)
		e.Status = audit.Status(status)
		e.ResourceID = deref(resourceID)
		e.IPAddress = deref(ipAddress)
		e.UserAgent = deref(userAgent)
		e.ErrorMessage = deref(errorMessage)

		if detailsJSON != nil {
			if err := json.Unmarshal(*detailsJSON, &e.Details); err != nil {
				return nil, fmt.Errorf("unmarshaling details: %w", err)
			}
		}

		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading audit entries: %w", err)
	}

	return &audit.Page{
		Entries: entries,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
		HasMore: filter.Offset+len(entries) < total,
	}, nil
}

// Stats aggregates one tenant's entries over a trailing window of days.
func (s *Store) Stats(ctx context.Context, tenantID string, days int) (*audit.Stats, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	stats := &audit.Stats{
		ByAction:   make(map[string]int),
		ByResource: make(map[string]int),
	}

	rows, err := s.pool.Query(ctx, `
		SELECT action, resource, status, count(*)
		FROM audit_entries
		WHERE tenant_id = $1 AND created_at >= $2
		GROUP BY action, resource, status
	`, tenantID, cutoff)
	if err != nil {
		return nil, fmt.Errorf("querying audit stats: %w", err)
	}
	defer rows.Close()

	failures := 0
	for rows.Next() {
		var action, resource, status string
		var count int
		if err := rows.Scan(&action, &resource, &status, &count); err != nil {
			return nil, fmt.Errorf("scanning audit stats: %w", err)
		}

		stats.Total += count
		stats.ByAction[action] += count
		if resource != "" {
			stats.ByResource[resource] += count
		}
		if status == string(audit.StatusFailure) {
			failures += count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading audit stats: %w", err)
	}

	stats.FailureRate = audit.FailureRate(failures, stats.Total)
	return stats, nil
}

// HealthCheck verifies the database connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// buildWhere assembles the WHERE clause for List from the tenant id and
// filter fields, returning the clause and its positional arguments.
func buildWhere(tenantID string, filter audit.Filter) (string, []any) {
	conds := []string{"tenant_id = $1"}
	args := []any{tenantID}

	add := func(cond string, val any) {
		args = append(args, val)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if !filter.Start.IsZero() {
		add("created_at >= $%d", filter.Start)
	}
	if !filter.End.IsZero() {
		add("created_at <= $%d", filter.End)
	}
	if filter.Action != "" {
		add("action = $%d", string(filter.Action))
	}
	if filter.Resource != "" {
		add("resource = $%d", filter.Resource)
	}
	if filter.UserID != "" {
		add("user_id = $%d", filter.UserID)
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}

	return strings.Join(conds, " AND "), args
}

// nullString converts an empty string to nil for nullable TEXT columns.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nullJSON converts nil/empty byte slices to nil for nullable JSONB columns.
func nullJSON(b []byte) *[]byte {
	if len(b) == 0 {
		return nil
	}
	return &b
}

// deref returns the pointed-to string or "".
func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
