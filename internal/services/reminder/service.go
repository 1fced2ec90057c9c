// Package reminder runs the daily cron jobs: a morning digest of today's
// study sessions and an optional nightly auto-reschedule that rolls stale
// work forward.
package reminder

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"studyplan/internal/config"
	"studyplan/internal/notifier"
	"studyplan/internal/planner"
	"studyplan/internal/services/plan"
	logx "studyplan/pkg/logx"
)

type Config struct {
	Enabled      bool
	DailyAt      string // "HH:MM"
	RescheduleAt string // "HH:MM", empty disables
	Timezone     string // IANA TZ; empty means local
}

type Service struct {
	log    logx.Logger
	cfg    Config
	plans  *plan.Service
	sender notifier.Sender

	c   *cron.Cron
	now func() time.Time
}

func New(cfg Config, plans *plan.Service, sender notifier.Sender, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{log: log, cfg: cfg, plans: plans, sender: sender, now: time.Now}
}

func (s *Service) Start(ctx context.Context) error {
	if !s.cfg.Enabled {
		return nil
	}
	loc := time.Local
	if tz := strings.TrimSpace(s.cfg.Timezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			s.log.Warn("invalid timezone, falling back to Local", logx.String("tz", tz), logx.Err(err))
		} else {
			loc = l
		}
	}
	s.c = cron.New(cron.WithLocation(loc))

	if s.cfg.DailyAt != "" {
		spec, err := hhmmToCron(s.cfg.DailyAt)
		if err != nil {
			return fmt.Errorf("reminder.daily_at: %w", err)
		}
		if _, err := s.c.AddFunc(spec, func() { s.sendDigest() }); err != nil {
			return err
		}
	}
	if s.cfg.RescheduleAt != "" {
		spec, err := hhmmToCron(s.cfg.RescheduleAt)
		if err != nil {
			return fmt.Errorf("reminder.reschedule_at: %w", err)
		}
		if _, err := s.c.AddFunc(spec, func() {
			if err := s.plans.AutoSchedule(context.Background(), false); err != nil {
				s.log.Warn("nightly reschedule failed", logx.Err(err))
			}
		}); err != nil {
			return err
		}
	}

	s.c.Start()
	s.log.Info("reminder service started",
		logx.String("daily_at", s.cfg.DailyAt),
		logx.String("reschedule_at", s.cfg.RescheduleAt),
		logx.String("tz", loc.String()))
	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

func (s *Service) Stop() {
	if s.c != nil {
		<-s.c.Stop().Done()
		s.c = nil
	}
}

func (s *Service) sendDigest() {
	msg := s.buildDigest(s.now())
	if msg == "" {
		return
	}
	if err := s.sender.Send(msg); err != nil {
		s.log.Warn("digest not delivered", logx.Err(err))
	}
}

// buildDigest renders today's sessions, earliest first, joined back to
// course and task names. Returns "" when nothing is planned.
func (s *Service) buildDigest(now time.Time) string {
	day := planner.DayString(now)
	slots := s.plans.ScheduledTimes(day)
	if len(slots) == 0 {
		return ""
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].StartTime < slots[j].StartTime })

	names := newNameIndex(s.plans.Courses())

	var b strings.Builder
	fmt.Fprintf(&b, "<b>Study plan for %s</b>\n", day)
	for _, st := range slots {
		course, task, subtask := names.resolve(st)
		fmt.Fprintf(&b, "%s-%s  %s", clock(st.StartTime), clock(st.EndTime), course)
		if task != "" {
			fmt.Fprintf(&b, ": %s", task)
		}
		if subtask != "" {
			fmt.Fprintf(&b, " (%s)", subtask)
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

type nameIndex struct {
	courses map[string]planner.Course
}

func newNameIndex(courses []planner.Course) nameIndex {
	m := make(map[string]planner.Course, len(courses))
	for _, c := range courses {
		m[c.ID] = c
	}
	return nameIndex{courses: m}
}

func (n nameIndex) resolve(st planner.ScheduledTime) (course, task, subtask string) {
	c, ok := n.courses[st.CourseID]
	if !ok {
		return "(deleted course)", "", ""
	}
	course = c.Name
	for _, t := range c.Tasks {
		if t.ID != st.TaskID {
			continue
		}
		task = t.Description
		for _, sub := range t.Subtasks {
			if sub.ID == st.SubtaskID {
				subtask = sub.Description
				break
			}
		}
		break
	}
	return course, task, subtask
}

func clock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

func hhmmToCron(at string) (string, error) {
	h, m, err := config.ParseHHMM(at)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d %d * * *", m, h), nil
}
