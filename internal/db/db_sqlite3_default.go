//go:build !sqlite3_cgo

package db

import (
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Default pure-Go driver (sqlite compiled to wasm), so plain builds and
// cross-compiles need no cgo toolchain.
const (
	driverID   = "ncruces/go-sqlite3"
	driverName = "sqlite3"
)
