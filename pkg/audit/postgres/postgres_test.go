package postgres

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	pgmodule "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/vantagecrm/gatekeeper/pkg/audit"
)

func init() {
	// Configure testcontainers to use podman.
	// Detect the podman socket from `podman machine inspect`.
	if os.Getenv("DOCKER_HOST") == "" {
		out, err := exec.Command("podman", "machine", "inspect", "--format", "{{.ConnectionInfo.PodmanSocket.Path}}").Output()
		if err == nil {
			sock := strings.TrimSpace(string(out))
			if sock != "" {
				os.Setenv("DOCKER_HOST", "unix://"+sock)
			}
		}
	}
	// Ryuk needs privileged mode with podman.
	if os.Getenv("TESTCONTAINERS_RYUK_CONTAINER_PRIVILEGED") == "" {
		os.Setenv("TESTCONTAINERS_RYUK_CONTAINER_PRIVILEGED", "true")
	}
}

// setupTestDB starts a PostgreSQL container and returns a connected Store.
// Tests are skipped if Docker is not available.
func setupTestDB(t *testing.T) *Store {
	t.Helper()

	if os.Getenv("SKIP_INTEGRATION") == "true" {
		t.Skip("SKIP_INTEGRATION=true, skipping PostgreSQL integration tests")
	}

	// Verify podman is running.
	if _, err := exec.LookPath("podman"); err != nil {
		t.Skip("podman not found, skipping integration tests")
	}

	ctx := context.Background()

	container, err := pgmodule.Run(ctx,
		"postgres:16-alpine",
		pgmodule.WithDatabase("gatekeeper_test"),
		pgmodule.WithUsername("test"),
		pgmodule.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Skipf("skipping: could not start PostgreSQL container (is podman running?): %v", err)
	}

	t.Cleanup(func() {
		container.Terminate(context.Background())
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("getting connection string: %v", err)
	}

	store, err := New(ctx, Config{
		DSN:            connStr,
		MaxConns:       5,
		MinConns:       1,
		MigrateOnStart: true,
	})
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

func makeTestEntry(id, tenantID string, action audit.Action) *audit.Entry {
	return &audit.Entry{
		ID:         id,
		TenantID:   tenantID,
		UserID:     "u1",
		Action:     action,
		Resource:   "contacts",
		ResourceID: "c-1",
		Details:    map[string]any{"body": map[string]any{"firstName": "Ann"}},
		IPAddress:  "203.0.113.7",
		UserAgent:  "test-agent/1.0",
		Status:     audit.StatusSuccess,
		CreatedAt:  time.Now().UTC().Truncate(time.Microsecond),
	}
}

func TestPostgres_InsertAndList(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	entry := makeTestEntry(fmt.Sprintf("pg_%d", time.Now().UnixNano()), "t1", audit.ActionCreate)
	if err := store.Insert(ctx, entry); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	page, err := store.List(ctx, "t1", audit.Filter{Limit: 10})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}

	if page.Total != 1 || len(page.Entries) != 1 {
		t.Fatalf("page = %d entries / total %d, want 1/1", len(page.Entries), page.Total)
	}

	got := page.Entries[0]
	if got.ID != entry.ID {
		t.Errorf("ID = %q, want %q", got.ID, entry.ID)
	}
	if got.Action != audit.ActionCreate || got.Status != audit.StatusSuccess {
		t.Errorf("Action/Status = %q/%q", got.Action, got.Status)
	}
	if got.ResourceID != "c-1" || got.IPAddress != "203.0.113.7" {
		t.Errorf("ResourceID/IPAddress = %q/%q", got.ResourceID, got.IPAddress)
	}
	body, ok := got.Details["body"].(map[string]any)
	if !ok || body["firstName"] != "Ann" {
		t.Errorf("Details = %+v", got.Details)
	}
	if !got.CreatedAt.Equal(entry.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, entry.CreatedAt)
	}
}

func TestPostgres_NullableFields(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	entry := &audit.Entry{
		ID:        fmt.Sprintf("pg_null_%d", time.Now().UnixNano()),
		TenantID:  "t-null",
		UserID:    "u1",
		Action:    audit.ActionDelete,
		Resource:  "deals",
		Status:    audit.StatusSuccess,
		CreatedAt: time.Now().UTC(),
	}
	if err := store.Insert(ctx, entry); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	page, err := store.List(ctx, "t-null", audit.Filter{Limit: 10})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}

	got := page.Entries[0]
	if got.ResourceID != "" || got.IPAddress != "" || got.UserAgent != "" || got.ErrorMessage != "" {
		t.Errorf("nullable fields not round-tripped as empty: %+v", got)
	}
	if got.Details != nil {
		t.Errorf("Details = %+v, want nil", got.Details)
	}
}

func TestPostgres_TenantIsolation(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	ts := time.Now().UnixNano()
	store.Insert(ctx, makeTestEntry(fmt.Sprintf("pg_a_%d", ts), "tenant-a", audit.ActionCreate))
	store.Insert(ctx, makeTestEntry(fmt.Sprintf("pg_b_%d", ts), "tenant-b", audit.ActionCreate))

	page, err := store.List(ctx, "tenant-a", audit.Filter{Limit: 10})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}

	if page.Total != 1 {
		t.Fatalf("Total = %d, want 1", page.Total)
	}
	if page.Entries[0].TenantID != "tenant-a" {
		t.Errorf("entry from tenant %q leaked", page.Entries[0].TenantID)
	}
}

func TestPostgres_ListFiltersAndPagination(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Microsecond)
	for i := 0; i < 5; i++ {
		e := makeTestEntry(fmt.Sprintf("pg_f_%d", i), "t-filter", audit.ActionCreate)
		e.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if i%2 == 1 {
			e.Action = audit.ActionDelete
			e.Status = audit.StatusFailure
			e.UserID = "u2"
		}
		if err := store.Insert(ctx, e); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	// Filter by action.
	page, err := store.List(ctx, "t-filter", audit.Filter{Action: audit.ActionDelete, Limit: 10})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if page.Total != 2 {
		t.Errorf("action filter: Total = %d, want 2", page.Total)
	}

	// Filter by status and user.
	page, err = store.List(ctx, "t-filter", audit.Filter{Status: audit.StatusFailure, UserID: "u2", Limit: 10})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if page.Total != 2 {
		t.Errorf("status+user filter: Total = %d, want 2", page.Total)
	}

	// Time range covering only the last two entries.
	page, err = store.List(ctx, "t-filter", audit.Filter{Start: base.Add(3 * time.Minute), Limit: 10})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if page.Total != 2 {
		t.Errorf("start filter: Total = %d, want 2", page.Total)
	}

	// Pagination, newest first.
	page, err = store.List(ctx, "t-filter", audit.Filter{Limit: 2, Offset: 0})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(page.Entries) != 2 || page.Total != 5 || !page.HasMore {
		t.Errorf("page 1 = %d entries, total %d, hasMore %v", len(page.Entries), page.Total, page.HasMore)
	}
	if page.Entries[0].ID != "pg_f_4" {
		t.Errorf("newest entry = %q, want pg_f_4", page.Entries[0].ID)
	}

	page, err = store.List(ctx, "t-filter", audit.Filter{Limit: 2, Offset: 4})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(page.Entries) != 1 || page.HasMore {
		t.Errorf("last page = %d entries, hasMore %v, want 1/false", len(page.Entries), page.HasMore)
	}
}

func TestPostgres_Stats(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	now := time.Now().UTC()
	for i := 0; i < 8; i++ {
		e := makeTestEntry(fmt.Sprintf("pg_s_%d", i), "t-stats", audit.ActionCreate)
		e.CreatedAt = now
		store.Insert(ctx, e)
	}
	for i := 0; i < 2; i++ {
		e := makeTestEntry(fmt.Sprintf("pg_sf_%d", i), "t-stats", audit.ActionDelete)
		e.Resource = "deals"
		e.Status = audit.StatusFailure
		e.CreatedAt = now
		store.Insert(ctx, e)
	}
	// Outside the trailing window.
	old := makeTestEntry("pg_s_old", "t-stats", audit.ActionCreate)
	old.CreatedAt = now.AddDate(0, 0, -60)
	store.Insert(ctx, old)

	stats, err := store.Stats(ctx, "t-stats", 30)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}

	if stats.Total != 10 {
		t.Errorf("Total = %d, want 10", stats.Total)
	}
	if stats.FailureRate != "20.00" {
		t.Errorf("FailureRate = %q, want %q", stats.FailureRate, "20.00")
	}
	if stats.ByAction["CREATE"] != 8 || stats.ByAction["DELETE"] != 2 {
		t.Errorf("ByAction = %v", stats.ByAction)
	}
	if stats.ByResource["contacts"] != 8 || stats.ByResource["deals"] != 2 {
		t.Errorf("ByResource = %v", stats.ByResource)
	}
}

func TestPostgres_HealthCheck(t *testing.T) {
	store := setupTestDB(t)
	if err := store.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck failed: %v", err)
	}
}

func TestPostgres_MigrationsIdempotent(t *testing.T) {
	store := setupTestDB(t)

	// Running migrations a second time must be a no-op.
	if err := store.migrate(context.Background()); err != nil {
		t.Errorf("second migrate failed: %v", err)
	}
}
