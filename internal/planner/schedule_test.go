package planner

import (
	"math/rand"
	"testing"
	"time"
)

// Saturday. The next Monday in the horizon is 2025-01-06.
var saturday = time.Date(2025, 1, 4, 0, 0, 0, 0, time.UTC)

func mondayMornings() WeeklySchedule {
	return WeeklySchedule{1: {{Start: 480, End: 600}}} // Mon 8:00-10:00
}

func oneTaskInput(due string, pct float64) Input {
	return Input{
		Courses: []Course{{
			ID:   "c1",
			Name: "Algorithms",
			Tasks: []Task{{
				ID:             "t1",
				Type:           TaskAssignment,
				DueDate:        due,
				ApprovedByUser: true,
				Subtasks: []Subtask{{
					ID:                         "s1",
					Description:                "read chapter",
					ExpectedTime:               1,
					CurrentPercentageCompleted: pct,
				}},
			}},
		}},
		Weekly: mondayMornings(),
		Anchor: saturday,
		Policy: PolicyEarliest,
	}
}

func TestScheduleSingleSubtaskBeforeDueDate(t *testing.T) {
	t.Parallel()
	got := Schedule(oneTaskInput("2025-01-07", 0))
	if len(got) != 1 {
		t.Fatalf("expected one slot, got %v", got)
	}
	st := got[0]
	if st.Day != "2025-01-06" || st.StartTime != 480 || st.EndTime != 540 {
		t.Fatalf("unexpected placement: %+v", st)
	}
	if st.UserSet {
		t.Fatal("engine-placed slot must not be user_set")
	}
	if st.ID != "s1-2025-01-06" || st.CourseID != "c1" || st.TaskID != "t1" || st.SubtaskID != "s1" {
		t.Fatalf("slot keys wrong: %+v", st)
	}
}

func TestScheduleRespectsUserSetSlot(t *testing.T) {
	t.Parallel()
	in := oneTaskInput("2025-01-07", 0)
	manual := ScheduledTime{
		ID: SlotID("s1", "2025-01-07"), Day: "2025-01-07",
		StartTime: 600, EndTime: 660,
		SubtaskID: "s1", CourseID: "c1", TaskID: "t1", UserSet: true,
	}
	in.Existing = []ScheduledTime{manual}

	got := Schedule(in)
	if len(got) != 1 {
		t.Fatalf("expected only the manual slot, got %v", got)
	}
	if got[0] != manual {
		t.Fatalf("manual slot changed: %+v", got[0])
	}
}

func TestSchedulePrefersLateDaysBeforeDue(t *testing.T) {
	t.Parallel()
	in := oneTaskInput("2025-01-15", 0)
	got := Schedule(in)
	if len(got) != 1 || got[0].Day != "2025-01-13" {
		t.Fatalf("policy A should prefer the latest in-time Monday, got %v", got)
	}
}

func TestScheduleOverdueFallsBackForward(t *testing.T) {
	t.Parallel()
	in := oneTaskInput("2025-01-01", 0) // already overdue at the anchor
	got := Schedule(in)
	if len(got) != 1 || got[0].Day != "2025-01-06" {
		t.Fatalf("policy A fallback should still place overdue work, got %v", got)
	}
}

func TestScheduleSpreadSkipsOverdue(t *testing.T) {
	t.Parallel()
	in := oneTaskInput("2025-01-01", 0)
	in.Policy = PolicySpread
	in.Rand = rand.New(rand.NewSource(1))
	if got := Schedule(in); len(got) != 0 {
		t.Fatalf("policy B has no fallback past the due date, got %v", got)
	}
}

func TestScheduleSpreadIsSeededAndInTime(t *testing.T) {
	t.Parallel()
	weekly := WeeklySchedule{}
	for d := 0; d < 7; d++ {
		weekly[d] = []TimeBlock{{Start: 480, End: 1200}}
	}
	var tasks []Task
	for _, id := range []string{"t1", "t2", "t3", "t4"} {
		tasks = append(tasks, Task{
			ID: id, DueDate: "2025-01-12", ApprovedByUser: true,
			Subtasks: []Subtask{{ID: "sub-" + id, ExpectedTime: 2}},
		})
	}
	base := Input{
		Courses: []Course{{ID: "c1", Tasks: tasks}},
		Weekly:  weekly,
		Anchor:  saturday,
		Policy:  PolicySpread,
	}

	run := func(seed int64) []ScheduledTime {
		in := base
		in.Rand = rand.New(rand.NewSource(seed))
		return Schedule(in)
	}

	a, b := run(42), run(42)
	if len(a) != 4 || len(b) != 4 {
		t.Fatalf("expected 4 placements, got %d and %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same seed must replay identically: %+v vs %+v", a[i], b[i])
		}
	}
	for _, st := range a {
		if st.Day > "2025-01-11" {
			t.Fatalf("spread placement after due-date boundary: %+v", st)
		}
	}
}

func TestScheduleNoDoubleBookingWithinRun(t *testing.T) {
	t.Parallel()
	weekly := WeeklySchedule{1: {{Start: 480, End: 720}}} // one 4h Monday window
	var subs []Subtask
	for _, id := range []string{"a", "b", "c", "d"} {
		subs = append(subs, Subtask{ID: id, ExpectedTime: 1})
	}
	in := Input{
		Courses: []Course{{ID: "c1", Tasks: []Task{{
			ID: "t1", DueDate: "2025-01-07", ApprovedByUser: true, Subtasks: subs,
		}}}},
		Weekly: weekly,
		Anchor: saturday,
		Policy: PolicyEarliest,
	}

	got := Schedule(in)
	if len(got) != 4 {
		t.Fatalf("expected all four hours placed, got %v", got)
	}
	byDay := map[string][]ScheduledTime{}
	for _, st := range got {
		byDay[st.Day] = append(byDay[st.Day], st)
	}
	for day, slots := range byDay {
		for i := range slots {
			for j := i + 1; j < len(slots); j++ {
				if slots[i].StartTime < slots[j].EndTime && slots[j].StartTime < slots[i].EndTime {
					t.Fatalf("overlap on %s: %+v vs %+v", day, slots[i], slots[j])
				}
			}
		}
	}
}

func TestScheduleNoDoubleBookingAroundPreservedSlot(t *testing.T) {
	t.Parallel()
	// A preserved in-progress slot sits mid-window, so carving splits the
	// first Monday block; the second block must survive the split intact.
	in := Input{
		Courses: []Course{{
			ID: "c1",
			Tasks: []Task{{
				ID: "t1", DueDate: "2025-01-07", ApprovedByUser: true,
				Subtasks: []Subtask{
					{ID: "started", ExpectedTime: 1, CurrentPercentageCompleted: 50},
					{ID: "f1", ExpectedTime: 2},
					{ID: "f2", ExpectedTime: 1.5},
				},
			}},
		}},
		Weekly: WeeklySchedule{1: {{Start: 480, End: 720}, {Start: 800, End: 900}}},
		Anchor: saturday,
		Policy: PolicyEarliest,
		Existing: []ScheduledTime{{
			ID: SlotID("started", "2025-01-06"), Day: "2025-01-06",
			StartTime: 540, EndTime: 600,
			SubtaskID: "started", CourseID: "c1", TaskID: "t1",
		}},
	}

	got := Schedule(in)
	if len(got) != 3 {
		t.Fatalf("expected preserved slot plus two placements, got %v", got)
	}
	byID := map[string]ScheduledTime{}
	for _, st := range got {
		byID[st.SubtaskID] = st
	}
	if st := byID["started"]; st.StartTime != 540 || st.EndTime != 600 {
		t.Fatalf("preserved slot moved: %+v", st)
	}
	if st := byID["f1"]; st.StartTime != 600 || st.EndTime != 720 {
		t.Fatalf("expected f1 in the right fragment, got %+v", st)
	}
	if st := byID["f2"]; st.StartTime != 800 || st.EndTime != 890 {
		t.Fatalf("expected f2 in the later window, got %+v", st)
	}
	for i := range got {
		for j := i + 1; j < len(got); j++ {
			a, b := got[i], got[j]
			if a.Day == b.Day && a.StartTime < b.EndTime && b.StartTime < a.EndTime {
				t.Fatalf("overlap: %+v vs %+v", a, b)
			}
		}
	}
}

func TestScheduleCompletionExclusion(t *testing.T) {
	t.Parallel()
	for _, force := range []bool{false, true} {
		in := oneTaskInput("2025-01-07", 100)
		in.ForceReschedule = force
		in.Existing = []ScheduledTime{{
			ID: SlotID("s1", "2025-01-06"), Day: "2025-01-06",
			StartTime: 480, EndTime: 540,
			SubtaskID: "s1", CourseID: "c1", TaskID: "t1", UserSet: true,
		}}
		if got := Schedule(in); len(got) != 0 {
			t.Fatalf("completed subtask must never appear (force=%v): %v", force, got)
		}
	}
}

func TestScheduleForceClearsSystemButKeepsProgress(t *testing.T) {
	t.Parallel()
	in := Input{
		Courses: []Course{{
			ID: "c1",
			Tasks: []Task{{
				ID: "t1", DueDate: "2025-01-07", ApprovedByUser: true,
				Subtasks: []Subtask{
					{ID: "fresh", ExpectedTime: 1},
					{ID: "started", ExpectedTime: 1, CurrentPercentageCompleted: 30},
				},
			}},
		}},
		Weekly:          mondayMornings(),
		Anchor:          saturday,
		Policy:          PolicyEarliest,
		ForceReschedule: true,
		Existing: []ScheduledTime{
			{ID: SlotID("fresh", "2025-01-06"), Day: "2025-01-06", StartTime: 480, EndTime: 540, SubtaskID: "fresh", CourseID: "c1", TaskID: "t1", UserSet: true},
			{ID: SlotID("started", "2025-01-06"), Day: "2025-01-06", StartTime: 540, EndTime: 582, SubtaskID: "started", CourseID: "c1", TaskID: "t1"},
		},
	}

	got := Schedule(in)
	var keptStarted, placedFresh bool
	for _, st := range got {
		if st.SubtaskID == "started" && st.StartTime == 540 && st.EndTime == 582 {
			keptStarted = true
		}
		if st.SubtaskID == "fresh" && !st.UserSet {
			placedFresh = true
		}
	}
	if !keptStarted {
		t.Fatalf("in-progress slot must survive force reschedule: %v", got)
	}
	if !placedFresh {
		t.Fatalf("force must re-place previously user-set unstarted work: %v", got)
	}
}

func TestSchedulePreservationIdempotence(t *testing.T) {
	t.Parallel()
	in := Input{
		Courses: []Course{{
			ID: "c1",
			Tasks: []Task{{
				ID: "t1", DueDate: "2025-01-07", ApprovedByUser: true,
				Subtasks: []Subtask{
					{ID: "manual", ExpectedTime: 1},
					{ID: "started", ExpectedTime: 1, CurrentPercentageCompleted: 50},
				},
			}},
		}},
		Weekly: mondayMornings(),
		Anchor: saturday,
		Policy: PolicyEarliest,
		Existing: []ScheduledTime{
			{ID: SlotID("manual", "2025-01-07"), Day: "2025-01-07", StartTime: 600, EndTime: 660, SubtaskID: "manual", CourseID: "c1", TaskID: "t1", UserSet: true},
			{ID: SlotID("started", "2025-01-06"), Day: "2025-01-06", StartTime: 480, EndTime: 510, SubtaskID: "started", CourseID: "c1", TaskID: "t1"},
		},
	}

	first := Schedule(in)
	in.Existing = first
	second := Schedule(in)

	find := func(out []ScheduledTime, id string) (ScheduledTime, bool) {
		for _, st := range out {
			if st.SubtaskID == id {
				return st, true
			}
		}
		return ScheduledTime{}, false
	}
	for _, id := range []string{"manual", "started"} {
		a, okA := find(first, id)
		b, okB := find(second, id)
		if !okA || !okB || a != b {
			t.Fatalf("protected slot %q changed across runs: %+v vs %+v", id, a, b)
		}
	}
}

func TestScheduleUnplaceableIsSilentlyOmitted(t *testing.T) {
	t.Parallel()
	in := oneTaskInput("2025-01-07", 0)
	in.Courses[0].Tasks[0].Subtasks[0].ExpectedTime = 40 // needs 2400 minutes
	if got := Schedule(in); len(got) != 0 {
		t.Fatalf("oversized subtask should be omitted, got %v", got)
	}
}

func TestScheduleEmptyAvailability(t *testing.T) {
	t.Parallel()
	in := oneTaskInput("2025-01-07", 0)
	in.Weekly = WeeklySchedule{}
	if got := Schedule(in); len(got) != 0 {
		t.Fatalf("no availability must yield no placements, got %v", got)
	}
}
