// Package service holds the panel's use cases. Handlers call services;
// services coordinate repositories, storage and the process manager.
package service

import (
	"database/sql"
	"errors"
)

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
