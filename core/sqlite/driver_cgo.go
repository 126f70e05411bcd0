//go:build cgo_sqlite

// Build with: go build -tags cgo_sqlite
// Requires: CGO_ENABLED=1
package sqlite

import (
	_ "github.com/mattn/go-sqlite3" // registers "sqlite3"
)

const (
	driverName       = "sqlite3"
	driverPackage    = "github.com/mattn/go-sqlite3"
	driverCGO        = true
	busyTimeoutParam = "?_busy_timeout=5000"
)
