//go:build purego || !sqlite_cgo

package storage

// Default build: pure Go SQLite, no C toolchain needed.
//
//	CGO_ENABLED=0 go build ./...

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the database/sql driver registered for SQLite
	DriverName = "sqlite"

	// BuildMode is reported by docindex --version
	BuildMode = "purego"
)
