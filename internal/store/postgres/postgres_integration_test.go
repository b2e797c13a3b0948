//go:build integration

package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/coachloop/coachloop/server/internal/store"
	"github.com/coachloop/coachloop/server/internal/store/storetest"
)

// startPostgres spins up a disposable postgres container and returns a DSN.
func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "coach",
			"POSTGRES_PASSWORD": "coach",
			"POSTGRES_DB":       "coach",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("container port: %v", err)
	}
	return fmt.Sprintf("postgres://coach:coach@%s:%s/coach?sslmode=disable", host, port.Port())
}

func applySchema(t *testing.T, db *sql.DB) {
	t.Helper()
	for _, stmt := range DDLStatements() {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("apply DDL: %v\n%s", err, stmt)
		}
	}
}

func makePGStore(t *testing.T) store.Store {
	t.Helper()
	dsn := startPostgres(t)
	db, err := Open(dsn)
	if err != nil {
		t.Fatalf("postgres open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	applySchema(t, db)
	return NewWithDB(db)
}

func TestPostgresStore_Compliance(t *testing.T) {
	storetest.Run(t, makePGStore)
}
