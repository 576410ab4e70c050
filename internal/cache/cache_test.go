package cache

import (
	"database/sql"
	"testing"
	"time"

	"github.com/desertthunder/ledgersync/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

type sample struct {
	Name   string    `json:"name"`
	Amount float64   `json:"amount"`
	When   time.Time `json:"when"`
}

func TestSQLiteStore(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()
		store := NewSQLiteStore(db)

		in := sample{Name: "rent", Amount: 1200.50, When: time.Now().UTC().Truncate(time.Second)}
		if err := store.Set("budget", in); err != nil {
			t.Fatalf("set failed: %v", err)
		}

		var out sample
		found, err := store.Get("budget", &out)
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if !found {
			t.Fatal("key should exist")
		}
		if out.Name != in.Name || out.Amount != in.Amount || !out.When.Equal(in.When) {
			t.Errorf("got %+v, want %+v", out, in)
		}
	})

	t.Run("MissingKeyReportsAbsence", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()
		store := NewSQLiteStore(db)

		var out sample
		found, err := store.Get("nothing", &out)
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if found {
			t.Error("missing key should report absence, not a zero value")
		}
	})

	t.Run("SetReplacesValue", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()
		store := NewSQLiteStore(db)

		if err := store.Set("k", []int{1, 2, 3}); err != nil {
			t.Fatalf("set failed: %v", err)
		}
		if err := store.Set("k", []int{9}); err != nil {
			t.Fatalf("second set failed: %v", err)
		}

		var out []int
		if _, err := store.Get("k", &out); err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if len(out) != 1 || out[0] != 9 {
			t.Errorf("got %v, want [9]", out)
		}
	})

	t.Run("RemoveIsIdempotent", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()
		store := NewSQLiteStore(db)

		if err := store.Set("k", "v"); err != nil {
			t.Fatalf("set failed: %v", err)
		}
		if err := store.Remove("k"); err != nil {
			t.Fatalf("remove failed: %v", err)
		}
		if err := store.Remove("k"); err != nil {
			t.Errorf("removing a missing key should not error: %v", err)
		}

		var out string
		found, _ := store.Get("k", &out)
		if found {
			t.Error("key should be gone after remove")
		}
	})

	t.Run("ClearAndKeys", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()
		store := NewSQLiteStore(db)

		for _, key := range []string{"b", "a", "c"} {
			if err := store.Set(key, key); err != nil {
				t.Fatalf("set failed: %v", err)
			}
		}

		keys, err := store.Keys()
		if err != nil {
			t.Fatalf("keys failed: %v", err)
		}
		if len(keys) != 3 || keys[0] != "a" || keys[2] != "c" {
			t.Errorf("keys = %v, want [a b c]", keys)
		}

		if err := store.Clear(); err != nil {
			t.Fatalf("clear failed: %v", err)
		}
		keys, err = store.Keys()
		if err != nil {
			t.Fatalf("keys failed: %v", err)
		}
		if len(keys) != 0 {
			t.Errorf("keys after clear = %v, want none", keys)
		}
	})
}

func TestMigrationKey(t *testing.T) {
	if got := MigrationKey("user-42"); got != "migration_completed_user-42" {
		t.Errorf("MigrationKey = %q", got)
	}
}
