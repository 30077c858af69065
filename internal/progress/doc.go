// Package progress tracks the per-provider synchronization watermark.
//
// The Tracker is the source of truth during a run. Reads observe an
// immutable snapshot swapped atomically on each commit, so status queries
// never see a half-written state. A Store, when configured, is loaded once
// at startup and written on every commit.
package progress
