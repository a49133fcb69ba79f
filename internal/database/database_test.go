package database

import (
	"context"
	"errors"
	"testing"

	"github.com/surrealdb/surrealdb.go/pkg/models"
)

func TestRows_UnwrapsStatementResult(t *testing.T) {
	t.Parallel()

	results := []interface{}{
		map[string]interface{}{
			"status": "OK",
			"result": []interface{}{
				map[string]interface{}{"id": "users:a"},
				"not a record",
				map[string]interface{}{"id": "users:b"},
			},
		},
	}

	rows := Rows(results)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
}

func TestRows_SingleObjectAndEmpty(t *testing.T) {
	t.Parallel()

	one := Rows([]interface{}{map[string]interface{}{"status": "OK", "result": map[string]interface{}{"x": 1}}})
	if len(one) != 1 {
		t.Errorf("expected single object as one row, got %d", len(one))
	}
	if rows := Rows(nil); rows != nil {
		t.Errorf("expected nil rows, got %v", rows)
	}
}

func TestRecordKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   interface{}
		want string
	}{
		{"record id", models.RecordID{Table: "users", ID: "u1"}, "u1"},
		{"record id pointer", &models.RecordID{Table: "users", ID: "u2"}, "u2"},
		{"string with table", "users:u3", "u3"},
		{"bracketed", "users:⟨a-b⟩", "a-b"},
		{"bare string", "u4", "u4"},
		{"map form", map[string]interface{}{"tb": "users", "id": "u5"}, "u5"},
		{"numeric key", models.RecordID{Table: "users", ID: uint64(7)}, "7"},
		{"unknown", 3.5, ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := RecordKey(tt.in); got != tt.want {
				t.Errorf("RecordKey(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestStatement_BindsPositionally(t *testing.T) {
	t.Parallel()

	s := NewStatement().Var("tb", "users")
	s.Assign("xp", s.Bind(10))
	s.Assign("bio", s.Bind("hi"))

	if got := s.Set(); got != "SET xp = $p0, bio = $p1" {
		t.Errorf("unexpected SET clause %q", got)
	}
	vars := s.Vars()
	if vars["tb"] != "users" || vars["p0"] != 10 || vars["p1"] != "hi" {
		t.Errorf("unexpected vars %v", vars)
	}
}

func TestFieldPath(t *testing.T) {
	t.Parallel()

	if _, err := FieldPath("settings.darkMode"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	for _, bad := range []string{"", "a.", "a-b", "x; DELETE y"} {
		if _, err := FieldPath(bad); !errors.Is(err, ErrQuery) {
			t.Errorf("expected ErrQuery for %q, got %v", bad, err)
		}
	}
}

func TestKeyPath_Escapes(t *testing.T) {
	t.Parallel()

	got, err := KeyPath("savedResources", `a⟩b\c`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := `savedResources.⟨a\⟩b\\c⟩`; got != want {
		t.Errorf("got %q want %q", got, want)
	}
	if _, err := KeyPath("savedResources", ""); err == nil {
		t.Error("expected error for empty key")
	}
}

func TestLiveQuery_KillOnce(t *testing.T) {
	t.Parallel()

	calls := 0
	q := NewLiveQuery("id", make(chan LiveEvent), func(context.Context) error {
		calls++
		return nil
	})
	_ = q.Kill(context.Background())
	_ = q.Kill(context.Background())
	if calls != 1 {
		t.Errorf("expected kill once, got %d", calls)
	}
}

func TestSurrealDB_NotConnected(t *testing.T) {
	t.Parallel()

	db := NewSurrealDB(Config{})
	if _, err := db.Query(context.Background(), "RETURN 1", nil); !errors.Is(err, ErrConnection) {
		t.Errorf("expected ErrConnection, got %v", err)
	}
	if err := db.Authenticate(context.Background(), "tok"); !errors.Is(err, ErrConnection) {
		t.Errorf("expected ErrConnection, got %v", err)
	}
	if _, err := db.Live(context.Background(), "users"); !errors.Is(err, ErrConnection) {
		t.Errorf("expected ErrConnection, got %v", err)
	}
}
