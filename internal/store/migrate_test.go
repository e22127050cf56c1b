package store

import (
	"io"
	"strings"
	"testing"

	"github.com/golang-migrate/migrate/v4/source/iofs"
)

func TestEmbeddedMigrations(t *testing.T) {
	source, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		t.Fatalf("open embedded migrations: %v", err)
	}
	defer source.Close()

	version, err := source.First()
	if err != nil {
		t.Fatalf("first migration: %v", err)
	}
	if version != 1 {
		t.Fatalf("expected first version 1, got %d", version)
	}

	up, _, err := source.ReadUp(version)
	if err != nil {
		t.Fatalf("read up migration: %v", err)
	}
	defer up.Close()
	body, err := io.ReadAll(up)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	for _, table := range []string{"departamentos", "usuarios", "gastos_mensuales", "gastos_extraordinarios", "pagos"} {
		if !strings.Contains(string(body), "CREATE TABLE IF NOT EXISTS "+table) {
			t.Errorf("expected schema for %s", table)
		}
	}

	down, _, err := source.ReadDown(version)
	if err != nil {
		t.Fatalf("read down migration: %v", err)
	}
	down.Close()
}
