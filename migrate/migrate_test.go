package migrate

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func runOn(t *testing.T, dsn, command string) {
	t.Helper()
	if err := Run(Options{Driver: "sqlite", DSN: dsn, Command: command}); err != nil {
		t.Fatalf("migrate %s: %v", command, err)
	}
}

func TestMigrationsUpAndDown(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "scheduler.db")
	runOn(t, dsn, "up")

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	for _, table := range []string{"shifts", "signups"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		if err != nil {
			t.Fatalf("table %s missing after up: %v", table, err)
		}
	}

	// Schema accepts the rows the stores write.
	_, err = db.Exec(`INSERT INTO shifts(id, date, start_time, end_time, max_volunteers, notes, created_at, updated_at)
		VALUES('s1', '2026-09-05', '09:00', '12:00', 5, '', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`)
	if err != nil {
		t.Fatalf("insert shift: %v", err)
	}
	_, err = db.Exec(`INSERT INTO signups(id, shift_id, name, email, phone, created_at, updated_at)
		VALUES('su1', 's1', 'Pat', 'pat@example.com', '', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`)
	if err != nil {
		t.Fatalf("insert signup: %v", err)
	}

	db.Close()
	runOn(t, dsn, "reset")

	db2, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("reopen db: %v", err)
	}
	defer db2.Close()
	var count int
	if err := db2.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name IN ('shifts','signups')`).Scan(&count); err != nil {
		t.Fatalf("count tables: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected tables dropped after reset, %d remain", count)
	}
}

func TestRunIsNoOpWithoutConfig(t *testing.T) {
	if err := Run(Options{}); err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
	if err := Run(Options{Driver: "sqlite"}); err != nil {
		t.Fatalf("expected no-op without DSN, got %v", err)
	}
}

func TestRunRejectsUnknownCommand(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "scheduler.db")
	if err := Run(Options{Driver: "sqlite", DSN: dsn, Command: "sideways"}); err == nil {
		t.Fatal("expected error for unknown command")
	}
}
