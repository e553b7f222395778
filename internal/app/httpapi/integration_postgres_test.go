//go:build integration && postgres

package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"testing"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	app "github.com/plaza-social/plaza/internal/app"
	"github.com/plaza-social/plaza/internal/app/storage/postgres"
	"github.com/plaza-social/plaza/internal/platform/migrations"
)

// Integration test against Postgres to ensure migrations + core flows work
// with persistence.
func TestIntegrationPostgres(t *testing.T) {
	_ = godotenv.Load() // allow .env for local runs
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping Postgres integration")
	}

	ctx := context.Background()
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if err := migrations.Apply(ctx, db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	application, err := app.New(app.Stores{Gateway: postgres.New(db)}, nil)
	if err != nil {
		t.Fatalf("new application: %v", err)
	}
	if err := application.Start(ctx); err != nil {
		t.Fatalf("start application: %v", err)
	}
	t.Cleanup(func() { _ = application.Stop(ctx) })

	store := postgres.New(db)
	t.Cleanup(func() {
		if acct, err := store.FindByCredentials(ctx, "pg-integration", "letmein4"); err == nil {
			_, _ = store.DeleteAccount(ctx, acct.ID)
		}
	})

	handler := NewHandler(application, nil)

	resp := do(handler, http.MethodPost, "/register", marshal(t, map[string]any{
		"username": "pg-integration", "password": "letmein4",
	}))
	if resp.Code != http.StatusOK {
		t.Fatalf("register status: %d body: %s", resp.Code, resp.Body)
	}

	resp = do(handler, http.MethodPost, "/login", marshal(t, map[string]any{
		"username": "pg-integration", "password": "letmein4",
	}))
	if resp.Code != http.StatusOK {
		t.Fatalf("login status: %d", resp.Code)
	}

	resp = do(handler, http.MethodGet, "/healthz", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("healthz status: %d", resp.Code)
	}
}
