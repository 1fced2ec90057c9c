package plan

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"studyplan/internal/planner"
	"studyplan/internal/storage"
	logx "studyplan/pkg/logx"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrInvalidSlot = errors.New("invalid time slot")
)

// Config carries the scheduling preferences the engine consumes read-only.
type Config struct {
	SchedulingType string // "A" (default) or "B"
	HorizonDays    int

	// Display-only day bounds for UI clients; placement ignores them.
	DayStartHour int
	DayEndHour   int
}

// Service holds the live plan state and exposes the operations the UI and
// the reminder job call. All methods are safe for concurrent use; a
// scheduling run holds the lock for its whole pass, so callers never
// observe a half-replaced slot set.
type Service struct {
	mu sync.Mutex

	log   logx.Logger
	store storage.Store
	cfg   Config

	rng *rand.Rand
	now func() time.Time

	courses   []planner.Course
	scheduled []planner.ScheduledTime
	weekly    planner.WeeklySchedule

	onChange func()
}

func New(cfg Config, store storage.Store, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		log:    log,
		store:  store,
		cfg:    cfg,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		now:    time.Now,
		weekly: planner.WeeklySchedule{},
	}
}

// SetClock overrides the anchor-date source. Tests pin it to a fixed day.
func (s *Service) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// SetRand overrides the randomness used by the spread policy.
func (s *Service) SetRand(rng *rand.Rand) {
	s.mu.Lock()
	s.rng = rng
	s.mu.Unlock()
}

// SetOnChange installs a hook fired after every committed mutation
// (the HTTP layer uses it to flush its response cache).
func (s *Service) SetOnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Apply updates the scheduling preferences at runtime (config reload).
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

func (s *Service) Preferences() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Load restores the last persisted snapshot, if any.
func (s *Service) Load(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	st, ok, err := s.store.LoadState(ctx)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	if !ok {
		return nil
	}
	s.mu.Lock()
	s.courses = st.Courses
	s.scheduled = st.Scheduled
	if st.Weekly != nil {
		s.weekly = st.Weekly
	}
	s.mu.Unlock()
	s.log.Info("plan state restored",
		logx.Int("courses", len(st.Courses)),
		logx.Int("slots", len(st.Scheduled)),
		logx.Time("saved_at", st.SavedAt))
	return nil
}

// AutoSchedule runs the engine over the current snapshot and replaces the
// scheduled-slot set. force clears system-set and unstarted user-set
// slots; in-progress work is preserved either way.
func (s *Service) AutoSchedule(ctx context.Context, force bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	anchor := s.now()
	out := planner.Schedule(planner.Input{
		Courses:         s.courses,
		Existing:        s.scheduled,
		Weekly:          s.weekly,
		Anchor:          anchor,
		Policy:          planner.ParsePolicy(s.cfg.SchedulingType),
		ForceReschedule: force,
		HorizonDays:     s.cfg.HorizonDays,
		Rand:            s.rng,
	})
	s.scheduled = out
	s.log.Info("auto-schedule complete",
		logx.Bool("force", force),
		logx.String("anchor", planner.DayString(anchor)),
		logx.Int("slots", len(out)))
	return s.commitLocked(ctx)
}

// ManualSchedule pins a subtask to an exact day and interval. Any previous
// slot for the subtask is removed first; overlap with other subtasks is
// deliberately not checked, conflicts are the user's call.
func (s *Service) ManualSchedule(ctx context.Context, subtaskID, courseID, taskID, day string, startTime, endTime int) error {
	if startTime < 0 || endTime > 24*60 || endTime <= startTime {
		return fmt.Errorf("%w: start=%d end=%d", ErrInvalidSlot, startTime, endTime)
	}
	if _, err := time.Parse("2006-01-02", day); err != nil {
		return fmt.Errorf("%w: bad day %q", ErrInvalidSlot, day)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, _, sub := s.findSubtaskLocked(courseID, taskID, subtaskID); sub == nil {
		return fmt.Errorf("%w: subtask %s", ErrNotFound, subtaskID)
	}

	kept := s.scheduled[:0]
	for _, st := range s.scheduled {
		if st.SubtaskID != subtaskID {
			kept = append(kept, st)
		}
	}
	s.scheduled = append(kept, planner.ScheduledTime{
		ID:        planner.SlotID(subtaskID, day),
		Day:       day,
		StartTime: startTime,
		EndTime:   endTime,
		SubtaskID: subtaskID,
		CourseID:  courseID,
		TaskID:    taskID,
		UserSet:   true,
	})
	return s.commitLocked(ctx)
}

// ToggleTaskApproval flips a task in or out of the schedulable set. It
// never triggers a reschedule by itself.
func (s *Service) ToggleTaskApproval(ctx context.Context, courseID, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, task := s.findTaskLocked(courseID, taskID)
	if task == nil {
		return fmt.Errorf("%w: task %s", ErrNotFound, taskID)
	}
	task.ApprovedByUser = !task.ApprovedByUser
	task.UpdatedAt = s.now()
	return s.commitLocked(ctx)
}

func (s *Service) ApproveAllTasks(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for ci := range s.courses {
		for ti := range s.courses[ci].Tasks {
			t := &s.courses[ci].Tasks[ti]
			if !t.ApprovedByUser {
				t.ApprovedByUser = true
				t.UpdatedAt = now
			}
		}
	}
	return s.commitLocked(ctx)
}

func (s *Service) AreAllTasksApproved() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ci := range s.courses {
		for ti := range s.courses[ci].Tasks {
			if !s.courses[ci].Tasks[ti].ApprovedByUser {
				return false
			}
		}
	}
	return true
}

// ScheduledTimes returns a copy of the current slot set, optionally
// filtered to one day.
func (s *Service) ScheduledTimes(day string) []planner.ScheduledTime {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]planner.ScheduledTime, 0, len(s.scheduled))
	for _, st := range s.scheduled {
		if day == "" || st.Day == day {
			out = append(out, st)
		}
	}
	return out
}

func (s *Service) Courses() []planner.Course {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneCourses(s.courses)
}

func (s *Service) WeeklySchedule() planner.WeeklySchedule {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneWeekly(s.weekly)
}

func (s *Service) SetWeeklySchedule(ctx context.Context, ws planner.WeeklySchedule) error {
	for dow, blocks := range ws {
		if dow < 0 || dow > 6 {
			return fmt.Errorf("%w: day of week %d", ErrInvalidSlot, dow)
		}
		for _, b := range blocks {
			if b.Start < 0 || b.End > 24*60 || b.End <= b.Start {
				return fmt.Errorf("%w: block %d-%d on day %d", ErrInvalidSlot, b.Start, b.End, dow)
			}
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.weekly = cloneWeekly(ws)
	return s.commitLocked(ctx)
}

// commitLocked persists the snapshot and fires the change hook. Callers
// hold s.mu.
func (s *Service) commitLocked(ctx context.Context) error {
	if s.onChange != nil {
		defer s.onChange()
	}
	if s.store == nil {
		return nil
	}
	err := s.store.SaveState(ctx, storage.State{
		Courses:   s.courses,
		Scheduled: s.scheduled,
		Weekly:    s.weekly,
	})
	if err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

func (s *Service) findCourseLocked(courseID string) *planner.Course {
	for i := range s.courses {
		if s.courses[i].ID == courseID {
			return &s.courses[i]
		}
	}
	return nil
}

func (s *Service) findTaskLocked(courseID, taskID string) (*planner.Course, *planner.Task) {
	c := s.findCourseLocked(courseID)
	if c == nil {
		return nil, nil
	}
	for i := range c.Tasks {
		if c.Tasks[i].ID == taskID {
			return c, &c.Tasks[i]
		}
	}
	return c, nil
}

func (s *Service) findSubtaskLocked(courseID, taskID, subtaskID string) (*planner.Course, *planner.Task, *planner.Subtask) {
	c, t := s.findTaskLocked(courseID, taskID)
	if t == nil {
		return c, nil, nil
	}
	for i := range t.Subtasks {
		if t.Subtasks[i].ID == subtaskID {
			return c, t, &t.Subtasks[i]
		}
	}
	return c, t, nil
}
