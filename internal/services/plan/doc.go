// Package plan is the stateful shell around the pure planner engine.
//
// It owns the in-memory snapshot (courses, scheduled blocks, weekly
// availability), serializes every mutation behind one mutex so a
// scheduling run always sees consistent data, and persists the snapshot
// through the storage layer after each change.
package plan
