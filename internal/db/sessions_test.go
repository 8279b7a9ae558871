package db

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/tern/internal/session"
	"github.com/hpungsan/tern/internal/utm"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSessionMedium_GetSetDelete(t *testing.T) {
	db := openTestDB(t)
	m := NewSessionMedium(db, NewSessionID())

	if _, ok, err := m.Get("utm_parameters"); err != nil || ok {
		t.Fatalf("Get() on empty = ok %v, err %v", ok, err)
	}

	if err := m.Set("utm_parameters", `{"utm_source":"a"}`); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := m.Set("utm_parameters", `{"utm_source":"b"}`); err != nil {
		t.Fatalf("Set() overwrite error = %v", err)
	}

	got, ok, err := m.Get("utm_parameters")
	if err != nil || !ok {
		t.Fatalf("Get() = ok %v, err %v", ok, err)
	}
	if got != `{"utm_source":"b"}` {
		t.Errorf("Get() = %q", got)
	}

	if err := m.Delete("utm_parameters"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := m.Delete("utm_parameters"); err != nil {
		t.Fatalf("Delete() missing slot error = %v", err)
	}
	if _, ok, _ := m.Get("utm_parameters"); ok {
		t.Error("slot still present after Delete")
	}
}

func TestSessionMedium_Isolation(t *testing.T) {
	db := openTestDB(t)
	a := session.NewStore(NewSessionMedium(db, NewSessionID()), zap.NewNop())
	b := session.NewStore(NewSessionMedium(db, NewSessionID()), zap.NewNop())

	if !a.Put(utm.Params{"utm_source": "news"}, session.PutOptions{}) {
		t.Fatal("Put() = false")
	}
	if b.Exists("") {
		t.Error("session b sees session a's parameters")
	}
	got, ok := a.Get(session.GetOptions{})
	if !ok || got["utm_source"] != "news" {
		t.Errorf("Get() = %v, %v", got, ok)
	}
	if !a.IsAvailable() {
		t.Error("IsAvailable() = false")
	}
}

func TestSessionID(t *testing.T) {
	id := NewSessionID()
	if !IsSessionID(id) {
		t.Errorf("IsSessionID(%q) = false", id)
	}
	for _, bad := range []string{"", "abc", "../../etc/passwd", id + "x"} {
		if IsSessionID(bad) {
			t.Errorf("IsSessionID(%q) = true", bad)
		}
	}
}

func TestListSessions(t *testing.T) {
	db := openTestDB(t)

	first := NewSessionMedium(db, "01J00000000000000000000001")
	second := NewSessionMedium(db, "01J00000000000000000000002")
	insertAt(t, db, first.SessionID(), "utm_parameters", 100)
	insertAt(t, db, first.SessionID(), "other", 150)
	insertAt(t, db, second.SessionID(), "utm_parameters", 200)

	got, err := ListSessions(context.Background(), db, 0)
	if err != nil {
		t.Fatalf("ListSessions() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListSessions() len = %d, want 2", len(got))
	}
	if got[0].SessionID != second.SessionID() {
		t.Errorf("first result = %s, want most recent", got[0].SessionID)
	}
	if got[1].UpdatedAt != 150 || len(got[1].Slots) != 2 {
		t.Errorf("second result = %+v", got[1])
	}
}

func TestPurgeSessions(t *testing.T) {
	db := openTestDB(t)

	old := time.Now().Add(-48 * time.Hour).Unix()
	recent := time.Now().Unix()

	insertAt(t, db, "stale", "utm_parameters", old)
	insertAt(t, db, "stale", "other", old)
	insertAt(t, db, "mixed", "utm_parameters", old)
	insertAt(t, db, "mixed", "other", recent)
	insertAt(t, db, "fresh", "utm_parameters", recent)

	n, err := PurgeSessions(context.Background(), db, 24*time.Hour)
	if err != nil {
		t.Fatalf("PurgeSessions() error = %v", err)
	}
	if n != 1 {
		t.Errorf("PurgeSessions() = %d, want 1", n)
	}

	var remaining int
	if err := db.QueryRow(`SELECT COUNT(*) FROM session_slots`).Scan(&remaining); err != nil {
		t.Fatalf("count: %v", err)
	}
	if remaining != 3 {
		t.Errorf("remaining rows = %d, want 3", remaining)
	}
}

func insertAt(t *testing.T, db *sql.DB, sessionID, slot string, updatedAt int64) {
	t.Helper()
	_, err := db.Exec(
		`INSERT INTO session_slots (session_id, slot, value, updated_at) VALUES (?, ?, '{}', ?)`,
		sessionID, slot, updatedAt,
	)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
}

func TestSessionQueries_CancelledContext(t *testing.T) {
	db := openTestDB(t)
	insertAt(t, db, "stale", "utm_parameters", time.Now().Add(-48*time.Hour).Unix())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := ListSessions(ctx, db, 0); err == nil {
		t.Error("ListSessions() with cancelled context should fail")
	}
	if _, err := PurgeSessions(ctx, db, 24*time.Hour); err == nil {
		t.Error("PurgeSessions() with cancelled context should fail")
	}

	var remaining int
	if err := db.QueryRow(`SELECT COUNT(*) FROM session_slots`).Scan(&remaining); err != nil {
		t.Fatalf("count: %v", err)
	}
	if remaining != 1 {
		t.Errorf("remaining rows = %d, want 1", remaining)
	}
}
