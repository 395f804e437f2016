// Package store persists alarm records.
//
// Two drivers are available:
//   - file: one JSON document, atomic tmp+rename writes
//   - sqlite: a SQLite database (WAL mode)
//
// The registry owns all coordination; stores only need to be individually
// consistent.
package store
