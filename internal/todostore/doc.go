// Package todostore implements the TODO Store: a single embedded
// relational file per workspace at {workspace}/.agent/todo.db, backed by
// modernc.org/sqlite (pure Go, no cgo — see DESIGN.md for why
// golang-migrate is not wired despite being present in the pack: the
// store's schema is recreated fresh on every session start, so there is
// no cross-version schema for a migration tool to manage).
package todostore
