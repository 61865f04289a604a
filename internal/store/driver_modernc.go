//go:build !(sqlite_vec && cgo)

package store

import (
	_ "modernc.org/sqlite"
)

// The pure-Go driver is the default; it needs no C toolchain and works
// everywhere the server runs.
const (
	driverName   = "sqlite"
	vecExtension = false
)
