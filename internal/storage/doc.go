// Package storage persists the planner state (courses, scheduled blocks,
// weekly availability) across restarts.
//
// The engine itself never touches storage; the plan service saves a full
// snapshot after each mutation and loads it once at startup.
package storage
