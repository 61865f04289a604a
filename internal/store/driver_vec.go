//go:build sqlite_vec && cgo

package store

import (
	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

// The cgo build carries the sqlite-vec extension for in-database
// vector functions; vec.Auto() registers it as auto-loadable with the
// mattn driver.
const (
	driverName   = "sqlite3"
	vecExtension = true
)

func init() {
	vec.Auto()
}
