package planner

import (
	"sort"
	"time"
)

// DayFreeSlots holds the still-unclaimed availability for one calendar day.
// Days without any availability are absent from the calendar entirely.
type DayFreeSlots struct {
	Day   string
	Slots []TimeBlock
}

// BuildFreeCalendar expands the weekly template into concrete days
// [anchor, anchor+horizonDays). Blocks are validated, sorted and merged;
// touching or overlapping blocks become one contiguous window.
func BuildFreeCalendar(weekly WeeklySchedule, anchor time.Time, horizonDays int) []DayFreeSlots {
	if horizonDays <= 0 {
		horizonDays = DefaultHorizonDays
	}
	cal := make([]DayFreeSlots, 0, horizonDays)
	for i := 0; i < horizonDays; i++ {
		day := anchor.AddDate(0, 0, i)
		blocks := mergeBlocks(weekly[int(day.Weekday())])
		if len(blocks) == 0 {
			continue
		}
		cal = append(cal, DayFreeSlots{Day: DayString(day), Slots: blocks})
	}
	return cal
}

// mergeBlocks sorts and coalesces availability blocks. User-entered blocks
// (UI hour toggles) are not guaranteed disjoint, so the merge is mandatory:
// next.Start <= cur.End means the blocks form one window. Invalid blocks
// are dropped.
func mergeBlocks(blocks []TimeBlock) []TimeBlock {
	clean := make([]TimeBlock, 0, len(blocks))
	for _, b := range blocks {
		if b.valid() {
			clean = append(clean, b)
		}
	}
	if len(clean) == 0 {
		return nil
	}
	sort.Slice(clean, func(i, j int) bool { return clean[i].Start < clean[j].Start })

	merged := clean[:1]
	for _, b := range clean[1:] {
		last := &merged[len(merged)-1]
		if b.Start <= last.End {
			if b.End > last.End {
				last.End = b.End
			}
			continue
		}
		merged = append(merged, b)
	}
	return merged
}

// carve removes [start,end) from a day's free slots. Overlapped slots are
// split, shrunk or deleted; fragments shorter than minSlotMinutes are
// discarded as unusably small. Days outside the calendar are a no-op.
func carve(cal []DayFreeSlots, day string, start, end int) {
	for i := range cal {
		if cal[i].Day != day {
			continue
		}
		// A split grows the slice by one, so filtering in place via
		// Slots[:0] would overwrite slots not yet read.
		out := make([]TimeBlock, 0, len(cal[i].Slots)+1)
		for _, s := range cal[i].Slots {
			if s.End <= start || s.Start >= end {
				out = append(out, s)
				continue
			}
			if left := (TimeBlock{Start: s.Start, End: start}); left.Minutes() >= minSlotMinutes {
				out = append(out, left)
			}
			if right := (TimeBlock{Start: end, End: s.End}); right.Minutes() >= minSlotMinutes {
				out = append(out, right)
			}
		}
		cal[i].Slots = out
		return
	}
}
