package db

import (
	"context"
	"crypto/rand"
	"database/sql"
	stderrors "errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/tern/internal/errors"
	"github.com/hpungsan/tern/internal/session"
)

var _ session.Medium = (*SessionMedium)(nil)

// NewSessionID returns a fresh ULID session identifier.
func NewSessionID() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// IsSessionID reports whether id is a well-formed ULID.
func IsSessionID(id string) bool {
	_, err := ulid.ParseStrict(id)
	return err == nil
}

// SessionMedium is a session.Medium backed by the session_slots table,
// scoped to one session ID.
type SessionMedium struct {
	db        *sql.DB
	sessionID string
}

// NewSessionMedium returns a medium for sessionID.
func NewSessionMedium(db *sql.DB, sessionID string) *SessionMedium {
	return &SessionMedium{db: db, sessionID: sessionID}
}

// SessionID returns the session the medium is scoped to.
func (m *SessionMedium) SessionID() string {
	return m.sessionID
}

// Get returns the value stored in slot.
func (m *SessionMedium) Get(slot string) (string, bool, error) {
	var value string
	err := m.db.QueryRow(
		`SELECT value FROM session_slots WHERE session_id = ? AND slot = ?`,
		m.sessionID, slot,
	).Scan(&value)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, errors.NewInternal(err)
	}
	return value, true, nil
}

// Set writes value to slot, replacing any previous value.
func (m *SessionMedium) Set(slot, value string) error {
	_, err := m.db.Exec(`
		INSERT INTO session_slots (session_id, slot, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (session_id, slot)
		DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, m.sessionID, slot, value, time.Now().Unix())
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// Delete removes slot. Deleting a missing slot is not an error.
func (m *SessionMedium) Delete(slot string) error {
	_, err := m.db.Exec(
		`DELETE FROM session_slots WHERE session_id = ? AND slot = ?`,
		m.sessionID, slot,
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// SessionSummary describes one stored session.
type SessionSummary struct {
	SessionID string   `json:"session_id"`
	Slots     []string `json:"slots"`
	UpdatedAt int64    `json:"updated_at"`
}

// ListSessions returns stored sessions, most recently updated first.
func ListSessions(ctx context.Context, db *sql.DB, limit int) ([]SessionSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.QueryContext(ctx, `
		SELECT session_id, group_concat(slot, ','), MAX(updated_at) AS last
		FROM session_slots
		GROUP BY session_id
		ORDER BY last DESC, session_id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var s SessionSummary
		var slots string
		if err := rows.Scan(&s.SessionID, &slots, &s.UpdatedAt); err != nil {
			return nil, errors.NewInternal(err)
		}
		s.Slots = strings.Split(slots, ",")
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

// PurgeSessions deletes every slot not updated within olderThan.
// Returns the number of sessions removed.
func PurgeSessions(ctx context.Context, db *sql.DB, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan).Unix()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	defer func() { _ = tx.Rollback() }()

	var sessions int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM (
			SELECT session_id FROM session_slots
			GROUP BY session_id
			HAVING MAX(updated_at) < ?
		)
	`, cutoff).Scan(&sessions)
	if err != nil {
		return 0, errors.NewInternal(err)
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM session_slots WHERE session_id IN (
			SELECT session_id FROM session_slots
			GROUP BY session_id
			HAVING MAX(updated_at) < ?
		)
	`, cutoff)
	if err != nil {
		return 0, errors.NewInternal(err)
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.NewInternal(err)
	}
	return sessions, nil
}
