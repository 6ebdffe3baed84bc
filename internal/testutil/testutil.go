package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vytor/flashstudy/internal/db"
	"github.com/vytor/flashstudy/internal/logger"
)

// NewTestDB opens an in-memory SQLite database with all embedded migrations
// applied. The pool is limited to one connection so every query sees the
// same in-memory database.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()
	logger.SetDefault(logger.Nop())

	database, err := db.Open(":memory:")
	require.NoError(t, err)
	return database.DB
}

// MustClose closes a resource and fails the test on error.
func MustClose(t *testing.T, closer interface{ Close() error }) {
	require.NoError(t, closer.Close())
}

// CreateUser inserts a user and returns its id.
func CreateUser(t *testing.T, sqlDB *sql.DB, username string) int64 {
	t.Helper()
	var id int64
	err := sqlDB.QueryRowContext(context.Background(),
		`INSERT INTO users (username) VALUES (?) RETURNING id`, username).Scan(&id)
	require.NoError(t, err)
	return id
}

// CreateFlashcards inserts n manual never-reviewed cards created one minute
// apart starting at start, returning their ids in insertion order.
func CreateFlashcards(t *testing.T, sqlDB *sql.DB, userID int64, n int, start time.Time) []int64 {
	t.Helper()
	ids := make([]int64, 0, n)
	for i := 0; i < n; i++ {
		created := start.Add(time.Duration(i) * time.Minute).UTC()
		res, err := sqlDB.ExecContext(context.Background(), `
INSERT INTO flashcards (user_id, front, back, source, created_at, updated_at)
VALUES (?, ?, ?, 'manual', ?, ?)
`, userID, fmt.Sprintf("front %d", i), fmt.Sprintf("back %d", i), created, created)
		require.NoError(t, err)
		id, err := res.LastInsertId()
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}
