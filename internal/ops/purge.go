package ops

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hpungsan/tern/internal/config"
	"github.com/hpungsan/tern/internal/db"
	"github.com/hpungsan/tern/internal/errors"
)

// PurgeInput contains parameters for the Purge operation.
type PurgeInput struct {
	OlderThan time.Duration // optional; session_ttl_hours when zero
}

// PurgeOutput contains the result of the Purge operation.
type PurgeOutput struct {
	Purged  int    `json:"purged"`
	Message string `json:"message"`
}

// Purge deletes sessions idle for longer than the given age.
func Purge(ctx context.Context, database *sql.DB, cfg *config.Config, input PurgeInput) (*PurgeOutput, error) {
	age := input.OlderThan
	if age == 0 {
		age = time.Duration(cfg.SessionTTLHours) * time.Hour
	}
	if age <= 0 {
		return nil, errors.NewInvalidRequest("older_than must be positive (session expiry is disabled)")
	}

	count, err := db.PurgeSessions(ctx, database, age)
	if err != nil {
		return nil, err
	}

	return &PurgeOutput{
		Purged:  count,
		Message: formatPurgeMessage(count, age),
	}, nil
}

func formatPurgeMessage(count int, age time.Duration) string {
	if count == 0 {
		return "No expired sessions to purge"
	}

	word := "session"
	if count > 1 {
		word = "sessions"
	}
	return fmt.Sprintf("Purged %d %s idle for more than %s", count, word, age)
}

// SessionsOutput contains the result of the Sessions operation.
type SessionsOutput struct {
	Sessions []db.SessionSummary `json:"sessions"`
}

// Sessions lists stored sessions, most recent first.
func Sessions(ctx context.Context, database *sql.DB, limit int) (*SessionsOutput, error) {
	items, err := db.ListSessions(ctx, database, limit)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []db.SessionSummary{}
	}
	return &SessionsOutput{Sessions: items}, nil
}
