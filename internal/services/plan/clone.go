package plan

import "studyplan/internal/planner"

// Accessors hand out deep copies so callers can never mutate live state
// behind the service's back.

func cloneCourses(in []planner.Course) []planner.Course {
	out := make([]planner.Course, len(in))
	for i, c := range in {
		cc := c
		cc.Tasks = make([]planner.Task, len(c.Tasks))
		for j, t := range c.Tasks {
			tt := t
			tt.Subtasks = append([]planner.Subtask(nil), t.Subtasks...)
			tt.DocumentIDs = append([]string(nil), t.DocumentIDs...)
			cc.Tasks[j] = tt
		}
		if c.Documents != nil {
			cc.Documents = make(map[string]planner.Document, len(c.Documents))
			for k, v := range c.Documents {
				cc.Documents[k] = v
			}
		}
		out[i] = cc
	}
	return out
}

func cloneWeekly(in planner.WeeklySchedule) planner.WeeklySchedule {
	out := make(planner.WeeklySchedule, len(in))
	for dow, blocks := range in {
		out[dow] = append([]planner.TimeBlock(nil), blocks...)
	}
	return out
}
