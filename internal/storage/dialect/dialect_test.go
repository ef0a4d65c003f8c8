package dialect

import (
	"strings"
	"testing"
)

func TestFromDriverName(t *testing.T) {
	tests := []struct {
		driver  string
		want    string
		wantErr bool
	}{
		{"sqlite", "sqlite", false},
		{"sqlite3", "sqlite", false},
		{"postgres", "postgres", false},
		{"POSTGRES", "postgres", false},
		{"mysql", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			d, err := FromDriverName(tt.driver)
			if tt.wantErr {
				if err == nil {
					t.Errorf("FromDriverName(%q) expected error", tt.driver)
				}
				return
			}
			if err != nil {
				t.Fatalf("FromDriverName(%q) error = %v", tt.driver, err)
			}
			if d.Name() != tt.want {
				t.Errorf("Name() = %q, want %q", d.Name(), tt.want)
			}
		})
	}
}

func TestPostgresRebind(t *testing.T) {
	d, _ := FromDriverName("postgres")

	got := d.Rebind("INSERT INTO t (a, b, c) VALUES (?, ?, ?)")
	want := "INSERT INTO t (a, b, c) VALUES ($1, $2, $3)"
	if got != want {
		t.Errorf("Rebind() = %q, want %q", got, want)
	}
}

func TestSQLiteRebindIsIdentity(t *testing.T) {
	d, _ := FromDriverName("sqlite")

	q := "SELECT * FROM t WHERE a = ? AND b = ?"
	if got := d.Rebind(q); got != q {
		t.Errorf("Rebind() = %q, want unchanged", got)
	}
}

func TestUpsertClause(t *testing.T) {
	for _, driver := range []string{"sqlite", "postgres"} {
		d, _ := FromDriverName(driver)

		got := d.UpsertClause("email", []string{"password_hash", "active"})
		if !strings.Contains(got, "ON CONFLICT") {
			t.Errorf("%s: UpsertClause() = %q", driver, got)
		}
		if !strings.Contains(got, "password_hash=excluded.password_hash") {
			t.Errorf("%s: missing update column: %q", driver, got)
		}

		if got := d.UpsertClause("email", nil); !strings.Contains(got, "DO NOTHING") {
			t.Errorf("%s: empty update columns: %q", driver, got)
		}
	}
}
