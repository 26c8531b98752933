//go:build sqlite_cgo && !purego

package storage

// Built with the mattn driver, which links the system SQLite through cgo:
//
//	CGO_ENABLED=1 go build -tags sqlite_cgo ./...

import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the database/sql driver registered for SQLite
	DriverName = "sqlite3"

	// BuildMode is reported by docindex --version
	BuildMode = "cgo"
)
