// Package store persists the footage library: imported files keyed by
// content hash, camera definitions and learned signatures, wedding projects,
// resumable import sessions, and the background job queue. Everything lives
// in one SQLite database opened in WAL mode.
package store
