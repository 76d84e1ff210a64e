//go:build cgo && sqlite3_cgo

package db

import _ "github.com/mattn/go-sqlite3"

// Opt-in cgo driver for builds that can link the C sqlite library.
const (
	driverID   = "mattn/go-sqlite3"
	driverName = "sqlite3"
)
