//go:build !cgo_sqlite

package sqlite

import (
	_ "modernc.org/sqlite" // registers "sqlite"
)

const (
	driverName       = "sqlite"
	driverPackage    = "modernc.org/sqlite"
	driverCGO        = false
	busyTimeoutParam = "?_pragma=busy_timeout(5000)"
)
