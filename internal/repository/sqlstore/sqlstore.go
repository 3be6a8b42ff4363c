// Package sqlstore implements the repository interfaces on database/sql.
// Queries are written with $N placeholders and rebound for SQLite.
package sqlstore

import (
	"database/sql"
	"errors"
	"time"

	"protonmc/internal/database"
)

type base struct {
	db     *sql.DB
	driver string
}

func (b base) q(query string) string {
	return database.Rebind(b.driver, query)
}

// IsNoRowsError reports whether err means the lookup matched nothing.
func IsNoRowsError(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}
