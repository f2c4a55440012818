// Package syncer implements the offline-first write/read coordinator between
// the local store and the remote document store.
//
// # Write path
//
// Every write lands in the local store first; that step is synchronous and
// never fails because of network state. The coordinator then attempts the
// corresponding remote write. On success the entity's sync marker is flipped
// to synced; on any remote failure (including an unreachable remote) the
// marker is left pending with the captured error and the caller still gets a
// successful result. Remote failures are never surfaced out of Write.
//
// # Read path
//
// Reads try the remote store first and fall back to the local copy on any
// remote error, so a fully offline process still sees every entity it wrote.
// A successful remote read refreshes the local copy.
//
// # Replay
//
// ReplayPending scans the pending markers, re-attempts the remote operation
// for each corresponding local value, and flips markers to synced as the
// writes land. Failures stay pending for the next replay, so the call is
// idempotent and safe to run on every reconnect or on a timer.
//
// The coordinator is the ONLY path by which local writes reach the remote
// store. Repositories query the remote directly for reads, but never write
// around the coordinator.
package syncer
