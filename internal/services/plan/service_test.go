package plan

import (
	"context"
	"errors"
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	"studyplan/internal/planner"
	"studyplan/internal/storage"
	logx "studyplan/pkg/logx"
)

var testAnchor = time.Date(2025, 1, 4, 9, 0, 0, 0, time.UTC) // Saturday

func newTestService(t *testing.T, store storage.Store) *Service {
	t.Helper()
	s := New(Config{SchedulingType: "A"}, store, logx.Nop())
	s.SetClock(func() time.Time { return testAnchor })
	s.SetRand(rand.New(rand.NewSource(7)))
	return s
}

func seedCourse(t *testing.T, s *Service) (courseID, taskID, subtaskID string) {
	t.Helper()
	ctx := context.Background()
	c, err := s.AddCourse(ctx, "Algorithms")
	if err != nil {
		t.Fatal(err)
	}
	task, err := s.AddTask(ctx, c.ID, planner.Task{
		Type:           planner.TaskAssignment,
		DueDate:        "2025-01-07",
		Description:    "problem set 1",
		ApprovedByUser: true,
		Subtasks:       []planner.Subtask{{Description: "read chapter", ExpectedTime: 1}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SetWeeklySchedule(ctx, planner.WeeklySchedule{1: {{Start: 480, End: 600}}}); err != nil {
		t.Fatal(err)
	}
	return c.ID, task.ID, task.Subtasks[0].ID
}

func TestAutoScheduleEndToEnd(t *testing.T) {
	t.Parallel()
	s := newTestService(t, nil)
	_, _, subID := seedCourse(t, s)

	if err := s.AutoSchedule(context.Background(), false); err != nil {
		t.Fatalf("AutoSchedule() error: %v", err)
	}
	got := s.ScheduledTimes("")
	if len(got) != 1 {
		t.Fatalf("expected one slot, got %v", got)
	}
	st := got[0]
	if st.SubtaskID != subID || st.Day != "2025-01-06" || st.StartTime != 480 || st.EndTime != 540 {
		t.Fatalf("unexpected placement: %+v", st)
	}
}

func TestManualScheduleExclusivity(t *testing.T) {
	t.Parallel()
	s := newTestService(t, nil)
	courseID, taskID, subID := seedCourse(t, s)
	ctx := context.Background()

	if err := s.AutoSchedule(ctx, false); err != nil {
		t.Fatal(err)
	}
	if err := s.ManualSchedule(ctx, subID, courseID, taskID, "2025-01-07", 600, 660); err != nil {
		t.Fatalf("ManualSchedule() error: %v", err)
	}

	got := s.ScheduledTimes("")
	if len(got) != 1 {
		t.Fatalf("manual placement must replace previous slots, got %v", got)
	}
	if !got[0].UserSet || got[0].Day != "2025-01-07" || got[0].StartTime != 600 {
		t.Fatalf("unexpected manual slot: %+v", got[0])
	}

	// A subsequent non-forced run leaves it untouched.
	if err := s.AutoSchedule(ctx, false); err != nil {
		t.Fatal(err)
	}
	after := s.ScheduledTimes("")
	if len(after) != 1 || after[0] != got[0] {
		t.Fatalf("non-forced reschedule moved a user-set slot: %v", after)
	}
}

func TestManualScheduleValidation(t *testing.T) {
	t.Parallel()
	s := newTestService(t, nil)
	courseID, taskID, subID := seedCourse(t, s)
	ctx := context.Background()

	tests := []struct {
		name             string
		sub, day         string
		start, end       int
	}{
		{name: "end before start", sub: subID, day: "2025-01-07", start: 600, end: 540},
		{name: "negative start", sub: subID, day: "2025-01-07", start: -10, end: 60},
		{name: "past midnight", sub: subID, day: "2025-01-07", start: 1400, end: 1500},
		{name: "bad day", sub: subID, day: "someday", start: 480, end: 540},
	}
	for _, tt := range tests {
		if err := s.ManualSchedule(ctx, tt.sub, courseID, taskID, tt.day, tt.start, tt.end); !errors.Is(err, ErrInvalidSlot) {
			t.Fatalf("%s: expected ErrInvalidSlot, got %v", tt.name, err)
		}
	}
	if err := s.ManualSchedule(ctx, "ghost", courseID, taskID, "2025-01-07", 480, 540); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown subtask: expected ErrNotFound, got %v", err)
	}
}

func TestApprovalLifecycle(t *testing.T) {
	t.Parallel()
	s := newTestService(t, nil)
	ctx := context.Background()

	c, _ := s.AddCourse(ctx, "History")
	t1, _ := s.AddTask(ctx, c.ID, planner.Task{DueDate: "2025-01-10"})
	t2, _ := s.AddTask(ctx, c.ID, planner.Task{DueDate: "2025-01-12"})

	if s.AreAllTasksApproved() {
		t.Fatal("fresh tasks must start unapproved")
	}
	if err := s.ToggleTaskApproval(ctx, c.ID, t1.ID); err != nil {
		t.Fatal(err)
	}
	if s.AreAllTasksApproved() {
		t.Fatal("one task still unapproved")
	}
	if err := s.ApproveAllTasks(ctx); err != nil {
		t.Fatal(err)
	}
	if !s.AreAllTasksApproved() {
		t.Fatal("bulk approve missed a task")
	}
	// Toggle back out.
	if err := s.ToggleTaskApproval(ctx, c.ID, t2.ID); err != nil {
		t.Fatal(err)
	}
	if s.AreAllTasksApproved() {
		t.Fatal("toggle back must be reversible")
	}
	if err := s.ToggleTaskApproval(ctx, c.ID, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRemoveSubtaskCascades(t *testing.T) {
	t.Parallel()
	s := newTestService(t, nil)
	courseID, taskID, subID := seedCourse(t, s)
	ctx := context.Background()

	if err := s.AutoSchedule(ctx, false); err != nil {
		t.Fatal(err)
	}
	if err := s.RemoveSubtask(ctx, courseID, taskID, subID); err != nil {
		t.Fatal(err)
	}
	if got := s.ScheduledTimes(""); len(got) != 0 {
		t.Fatalf("slots of a removed subtask must be dropped: %v", got)
	}
}

func TestRemoveTaskCascades(t *testing.T) {
	t.Parallel()
	s := newTestService(t, nil)
	courseID, taskID, _ := seedCourse(t, s)
	ctx := context.Background()

	if err := s.AutoSchedule(ctx, false); err != nil {
		t.Fatal(err)
	}
	if err := s.RemoveTask(ctx, courseID, taskID); err != nil {
		t.Fatal(err)
	}
	if got := s.ScheduledTimes(""); len(got) != 0 {
		t.Fatalf("slots of a removed task must be dropped: %v", got)
	}
	if len(s.Courses()[0].Tasks) != 0 {
		t.Fatal("task not removed from course")
	}
}

func TestProgressUpdateProtectsSlotFromForce(t *testing.T) {
	t.Parallel()
	s := newTestService(t, nil)
	courseID, taskID, subID := seedCourse(t, s)
	ctx := context.Background()

	if err := s.AutoSchedule(ctx, false); err != nil {
		t.Fatal(err)
	}
	before := s.ScheduledTimes("")[0]

	pct := 40.0
	if err := s.UpdateSubtask(ctx, courseID, taskID, subID, SubtaskPatch{CurrentPercentageCompleted: &pct}); err != nil {
		t.Fatal(err)
	}
	if err := s.AutoSchedule(ctx, true); err != nil {
		t.Fatal(err)
	}
	after := s.ScheduledTimes("")
	if len(after) != 1 || after[0] != before {
		t.Fatalf("in-progress slot must survive a forced run: %v", after)
	}
}

func TestStatePersistsAcrossRestart(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "state.json")
	store, err := storage.Open(storage.Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	s1 := newTestService(t, store)
	_, _, subID := seedCourse(t, s1)
	if err := s1.AutoSchedule(ctx, false); err != nil {
		t.Fatal(err)
	}

	s2 := newTestService(t, store)
	if err := s2.Load(ctx); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	got := s2.ScheduledTimes("")
	if len(got) != 1 || got[0].SubtaskID != subID {
		t.Fatalf("schedule not restored: %v", got)
	}
	if len(s2.Courses()) != 1 || len(s2.WeeklySchedule()[1]) != 1 {
		t.Fatal("courses/weekly schedule not restored")
	}
}

func TestAccessorsReturnCopies(t *testing.T) {
	t.Parallel()
	s := newTestService(t, nil)
	courseID, _, _ := seedCourse(t, s)

	cs := s.Courses()
	cs[0].Tasks[0].ApprovedByUser = false
	cs[0].Name = "mutated"

	fresh := s.Courses()
	if fresh[0].Name != "Algorithms" || !fresh[0].Tasks[0].ApprovedByUser {
		t.Fatalf("accessor leaked internal state for course %s", courseID)
	}

	w := s.WeeklySchedule()
	w[1][0].Start = 0
	if s.WeeklySchedule()[1][0].Start != 480 {
		t.Fatal("weekly accessor leaked internal state")
	}
}
