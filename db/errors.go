package db

import (
	"strings"

	"github.com/SnehaChouksey/Acadlyst/errors"
)

// ErrDatabaseClosed is returned when operations are attempted on a closed database.
// This typically occurs during graceful shutdown when the database connection
// is closed before all workers have finished their jobs.
var ErrDatabaseClosed = errors.New("database is closed")

// IsDatabaseClosed checks if an error indicates the database connection is closed.
// This handles both wrapped ErrDatabaseClosed errors from this package and raw
// SQLite/sql driver errors that contain "database is closed" in their message.
func IsDatabaseClosed(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrDatabaseClosed) {
		return true
	}

	// Fallback: the underlying sql driver returns its own error types that
	// cannot be wrapped at the source.
	errMsg := err.Error()
	return strings.Contains(errMsg, "database is closed") ||
		strings.Contains(errMsg, "sql: database is closed")
}
