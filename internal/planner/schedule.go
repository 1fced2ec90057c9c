package planner

import (
	"math/rand"
	"time"
)

// Input is the immutable snapshot a scheduling run operates on. The caller
// guarantees exclusive access for the duration of the run; the engine
// replaces the whole slot set in one pass rather than patching it.
type Input struct {
	Courses  []Course
	Existing []ScheduledTime
	Weekly   WeeklySchedule

	// Anchor is "today": the first day of the placement horizon and the
	// boundary below which stale incomplete slots are dropped.
	Anchor time.Time

	Policy          Policy
	ForceReschedule bool

	// HorizonDays defaults to DefaultHorizonDays when <= 0.
	HorizonDays int

	// Rand drives PolicySpread day selection. Nil falls back to a
	// time-seeded source; tests inject a fixed seed for replayable runs.
	Rand *rand.Rand
}

// Schedule produces the complete new slot list: preserved blocks first,
// then newly placed work. It always terminates and always returns a valid
// (possibly incomplete) schedule; unplaceable subtasks are simply absent.
func Schedule(in Input) []ScheduledTime {
	cal := BuildFreeCalendar(in.Weekly, in.Anchor, in.HorizonDays)

	l := buildLookup(in.Courses)
	kept, processed := preserveExisting(in.Existing, l, DayString(in.Anchor), in.ForceReschedule, cal)

	items := buildWorkList(in.Courses, processed)

	rng := in.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	placed := placeAll(items, cal, in.Policy, rng)

	out := make([]ScheduledTime, 0, len(kept)+len(placed))
	out = append(out, kept...)
	out = append(out, placed...)
	return out
}
