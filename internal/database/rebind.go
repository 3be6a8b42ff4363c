package database

import "regexp"

var dollarParam = regexp.MustCompile(`\$(\d+)`)

// Rebind rewrites PostgreSQL-style $N placeholders into the form the driver expects.
// Queries are written once with $N and SQLite receives ?N, which it binds by ordinal.
func Rebind(driver, query string) string {
	if driver != DriverSQLite && driver != "" {
		return query
	}
	return dollarParam.ReplaceAllString(query, "?$1")
}
