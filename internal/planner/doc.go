// Package planner turns approved course work into concrete study sessions.
//
// It is a pure engine: given an in-memory snapshot of courses, existing
// scheduled blocks, weekly availability and an anchor date, Schedule()
// produces a full replacement list of scheduled blocks. No I/O, no clocks,
// no ambient randomness (policy "B" takes an injected *rand.Rand).
package planner
