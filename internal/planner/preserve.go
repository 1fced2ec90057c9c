package planner

// lookup resolves the Course→Task→Subtask chain for existing slots.
type lookup struct {
	courses map[string]*Course
}

func buildLookup(courses []Course) lookup {
	m := make(map[string]*Course, len(courses))
	for i := range courses {
		m[courses[i].ID] = &courses[i]
	}
	return lookup{courses: m}
}

func (l lookup) resolve(st ScheduledTime) (*Task, *Subtask, bool) {
	c, ok := l.courses[st.CourseID]
	if !ok {
		return nil, nil, false
	}
	for ti := range c.Tasks {
		t := &c.Tasks[ti]
		if t.ID != st.TaskID {
			continue
		}
		for si := range t.Subtasks {
			if t.Subtasks[si].ID == st.SubtaskID {
				return t, &t.Subtasks[si], true
			}
		}
		return nil, nil, false
	}
	return nil, nil, false
}

// preserveExisting decides which already-scheduled blocks survive a run.
//
// Per slot:
//   - broken Course→Task→Subtask chain: drop (data-consistency cleanup)
//   - subtask fully complete: drop, finished work needs no block
//   - day strictly before the anchor and subtask incomplete: drop, stale
//     past work is re-planned forward instead of lingering in the past
//   - keep when user-set (unless force) or when the subtask is in progress
//     (0 < pct < 100); in-progress work is never silently moved
//
// Every kept slot is carved out of the free calendar and its subtask id is
// marked processed so the work-list pass does not schedule it again.
func preserveExisting(existing []ScheduledTime, l lookup, anchorDay string, force bool, cal []DayFreeSlots) (kept []ScheduledTime, processed map[string]struct{}) {
	processed = make(map[string]struct{})
	for _, st := range existing {
		_, sub, ok := l.resolve(st)
		if !ok {
			continue
		}
		if sub.Done() {
			continue
		}
		if st.Day < anchorDay {
			continue
		}
		inProgress := sub.CurrentPercentageCompleted > 0 && sub.CurrentPercentageCompleted < 100
		if (st.UserSet && !force) || inProgress {
			kept = append(kept, st)
			processed[st.SubtaskID] = struct{}{}
			carve(cal, st.Day, st.StartTime, st.EndTime)
		}
	}
	return kept, processed
}
