// Package store is the optional persistent class index: a SQLite
// database mapping dex content hashes to their class tables, so
// repeated CLI runs over the same archives can enumerate classes
// without re-parsing them.
//
// The in-process resolution cache is separate (internal/cache) and
// deliberately memory-only; this store only accelerates cold starts of
// the command-line tool.
package store
