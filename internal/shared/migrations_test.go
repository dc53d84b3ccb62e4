package shared

import (
	"path/filepath"
	"slices"
	"testing"
)

func TestMigrationRunner(t *testing.T) {
	t.Run("loadMigrations", func(t *testing.T) {
		migrations, err := loadMigrations()
		if err != nil {
			t.Fatalf("failed to load migrations: %v", err)
		}
		if len(migrations) == 0 {
			t.Fatal("expected at least one migration")
		}

		for i := 1; i < len(migrations); i++ {
			if migrations[i].Version <= migrations[i-1].Version {
				t.Errorf("migrations not sorted: version %d comes after %d", migrations[i].Version, migrations[i-1].Version)
			}
		}
		for _, m := range migrations {
			if m.Name == "" || m.Up == "" || m.Down == "" {
				t.Errorf("migration %d is incomplete: %+v", m.Version, m)
			}
		}
		if migrations[0].Name != "create_cache" {
			t.Errorf("expected first migration to be create_cache, got %q", migrations[0].Name)
		}
	})

	t.Run("RunMigrations and Rollback", func(t *testing.T) {
		db, err := NewDatabase(":memory:")
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()

		if v, err := SchemaVersion(db); err != nil || v != -1 {
			t.Fatalf("expected version -1 before migrating, got %d (%v)", v, err)
		}

		if err := RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}

		migrations, _ := loadMigrations()
		latest := migrations[len(migrations)-1].Version
		if v, _ := SchemaVersion(db); v != latest {
			t.Errorf("expected version %d, got %d", latest, v)
		}

		for _, table := range []string{"tokens", "cache_entries", "export_runs"} {
			if _, err := db.Exec("SELECT 1 FROM " + table + " LIMIT 1"); err != nil {
				t.Errorf("%s table should exist after migrations: %v", table, err)
			}
		}

		if err := RollbackMigration(db); err != nil {
			t.Fatalf("failed to rollback migration: %v", err)
		}
		if v, _ := SchemaVersion(db); v != latest-1 {
			t.Errorf("expected version %d after rollback, got %d", latest-1, v)
		}
		if _, err := db.Exec("SELECT 1 FROM export_runs LIMIT 1"); err == nil {
			t.Error("expected export_runs to be dropped by rollback")
		}

		if err := RunMigrations(db); err != nil {
			t.Fatalf("failed to reapply migrations: %v", err)
		}
		if v, _ := SchemaVersion(db); v != latest {
			t.Errorf("expected version %d after reapplying, got %d", latest, v)
		}
	})

	t.Run("Rollback with nothing applied", func(t *testing.T) {
		db, err := NewDatabase(":memory:")
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()

		if err := RollbackMigration(db); err == nil {
			t.Error("expected error when nothing is applied")
		}
	})

	t.Run("Idempotent Migrations", func(t *testing.T) {
		db, err := NewDatabase(filepath.Join(t.TempDir(), "nested", "test.db"))
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()

		for i := range 2 {
			if err := RunMigrations(db); err != nil {
				t.Fatalf("run %d failed: %v", i+1, err)
			}
		}

		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
			t.Fatalf("failed to query schema_migrations: %v", err)
		}
		migrations, _ := loadMigrations()
		if count != len(migrations) {
			t.Errorf("expected %d migrations to be applied, got %d", len(migrations), count)
		}
	})
}

func TestSplitStatements(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   []string
	}{
		{"empty", "", nil},
		{"comments only", "-- nothing\n\n-- here", nil},
		{
			"two statements with comments",
			"-- first\nCREATE TABLE a (id TEXT); -- trailing\n\nCREATE INDEX i ON a(id);\n",
			[]string{"CREATE TABLE a (id TEXT)", "CREATE INDEX i ON a(id)"},
		},
		{"multi-line statement", "CREATE TABLE b (\n    id TEXT\n)", []string{"CREATE TABLE b (\nid TEXT\n)"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := splitStatements(tt.script); !slices.Equal(got, tt.want) {
				t.Errorf("splitStatements() = %q, want %q", got, tt.want)
			}
		})
	}
}
