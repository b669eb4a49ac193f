// Package recorder persists displayed poses: a JSON-lines log for ad hoc
// inspection and a SQLite store grouped by connection session. Deltas
// compares consecutive frames joint by joint.
package recorder
