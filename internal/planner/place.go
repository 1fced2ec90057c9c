package planner

import "math/rand"

// placeAll assigns each work item a contiguous block of free time,
// consuming the calendar as it goes. Items that fit nowhere are skipped;
// a missing slot in the output is the signal that a subtask is
// unscheduled, never an error.
func placeAll(items []workItem, cal []DayFreeSlots, policy Policy, rng *rand.Rand) []ScheduledTime {
	var placed []ScheduledTime
	for _, item := range items {
		need := item.Subtask.RemainingMinutes()
		if need <= 0 {
			continue
		}
		// One-day safety margin: work should finish before the deadline,
		// not on it.
		dueDay := DayString(item.Due.AddDate(0, 0, -1))

		var (
			st ScheduledTime
			ok bool
		)
		switch policy {
		case PolicySpread:
			st, ok = placeSpread(item, cal, need, dueDay, rng)
		default:
			st, ok = placeEarliest(item, cal, need, dueDay)
		}
		if ok {
			placed = append(placed, st)
		}
	}
	return placed
}

// placeEarliest implements policy "A": scan due-date-respecting days from
// the boundary backward (prefer late-but-in-time), then fall back to a
// forward first-fit over every day so an overdue or over-constrained task
// still lands somewhere.
func placeEarliest(item workItem, cal []DayFreeSlots, need int, dueDay string) (ScheduledTime, bool) {
	last := -1
	for i := range cal {
		if cal[i].Day <= dueDay {
			last = i
		}
	}
	for i := last; i >= 0; i-- {
		if st, ok := takeFromDay(&cal[i], item, need); ok {
			return st, true
		}
	}
	for i := range cal {
		if st, ok := takeFromDay(&cal[i], item, need); ok {
			return st, true
		}
	}
	return ScheduledTime{}, false
}

// placeSpread implements policy "B": rotate through the due-date-respecting
// days from a random offset, first-fit within each day. No fallback past
// the due date; an item that cannot be placed in time stays unscheduled.
func placeSpread(item workItem, cal []DayFreeSlots, need int, dueDay string, rng *rand.Rand) (ScheduledTime, bool) {
	var candidates []int
	for i := range cal {
		if cal[i].Day <= dueDay {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return ScheduledTime{}, false
	}
	off := rng.Intn(len(candidates))
	for k := range candidates {
		i := candidates[(off+k)%len(candidates)]
		if st, ok := takeFromDay(&cal[i], item, need); ok {
			return st, true
		}
	}
	return ScheduledTime{}, false
}

// takeFromDay claims need minutes from the first fitting slot of a day.
// The chosen slot shrinks from its start; a remainder shorter than
// minSlotMinutes is removed from further consideration.
func takeFromDay(d *DayFreeSlots, item workItem, need int) (ScheduledTime, bool) {
	for i := range d.Slots {
		s := d.Slots[i]
		if s.Minutes() < need {
			continue
		}
		st := ScheduledTime{
			ID:        SlotID(item.Subtask.ID, d.Day),
			Day:       d.Day,
			StartTime: s.Start,
			EndTime:   s.Start + need,
			SubtaskID: item.Subtask.ID,
			CourseID:  item.CourseID,
			TaskID:    item.TaskID,
		}
		s.Start += need
		if s.Minutes() < minSlotMinutes {
			d.Slots = append(d.Slots[:i], d.Slots[i+1:]...)
		} else {
			d.Slots[i] = s
		}
		return st, true
	}
	return ScheduledTime{}, false
}
