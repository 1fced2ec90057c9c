package planner

import (
	"sort"
	"time"
)

// workItem is one subtask awaiting placement, with enough context to rank
// it and to emit a slot carrying the foreign keys the UI joins on.
type workItem struct {
	Subtask   Subtask
	CourseID  string
	TaskID    string
	Due       time.Time
	TaskIndex int // position in the per-course due-date sort
}

// buildWorkList collects every incomplete, not-yet-satisfied subtask of
// every approved task, ranked by due date with ties broken by the task's
// position in its course's due-date order. Tasks without a parseable due
// date never enter the list.
func buildWorkList(courses []Course, processed map[string]struct{}) []workItem {
	var items []workItem
	for ci := range courses {
		c := &courses[ci]

		type dueTask struct {
			task *Task
			due  time.Time
		}
		eligible := make([]dueTask, 0, len(c.Tasks))
		for ti := range c.Tasks {
			t := &c.Tasks[ti]
			if !t.ApprovedByUser {
				continue
			}
			due, ok := t.Due()
			if !ok {
				continue
			}
			eligible = append(eligible, dueTask{task: t, due: due})
		}
		sort.SliceStable(eligible, func(i, j int) bool {
			return eligible[i].due.Before(eligible[j].due)
		})

		for idx, dt := range eligible {
			for _, sub := range dt.task.Subtasks {
				if sub.Done() {
					continue
				}
				if _, done := processed[sub.ID]; done {
					continue
				}
				items = append(items, workItem{
					Subtask:   sub,
					CourseID:  c.ID,
					TaskID:    dt.task.ID,
					Due:       dt.due,
					TaskIndex: idx,
				})
			}
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].Due.Equal(items[j].Due) {
			return items[i].Due.Before(items[j].Due)
		}
		return items[i].TaskIndex < items[j].TaskIndex
	})
	return items
}
