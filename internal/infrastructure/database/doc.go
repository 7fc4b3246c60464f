// Package database manages the SQLite store backing the treatment center:
// areas, stations, devices, device groups, coordination commands, and users.
//
// It provides connection lifecycle management (WAL mode, busy timeout,
// single-writer pool), embedded schema migrations, and health checks.
// Repositories in the domain packages operate on the wrapped *sql.DB.
package database
