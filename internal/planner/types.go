package planner

import (
	"math"
	"time"
)

// Task types as delivered by the LMS import.
const (
	TaskAssignment = "assignment"
	TaskTest       = "test"
)

// Policy selects how the placement pass distributes work across free days.
type Policy byte

const (
	// PolicyEarliest ("A") packs work as late as possible before the due
	// date, falling back to any day at all when nothing fits in time.
	PolicyEarliest Policy = 'A'
	// PolicySpread ("B") picks a random starting day among the days that
	// still respect the due date, so repeated runs spread work out instead
	// of always front- or back-loading. No fallback past the due date.
	PolicySpread Policy = 'B'
)

// ParsePolicy maps a config/API string to a Policy, defaulting to "A".
func ParsePolicy(s string) Policy {
	if len(s) > 0 && (s[0] == 'B' || s[0] == 'b') {
		return PolicySpread
	}
	return PolicyEarliest
}

// Document is a file attached to a course (lecture notes, assignment PDFs).
// The planner itself never reads documents; they ride along for the UI and
// the docstore service.
type Document struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	ObjectKey   string    `json:"object_key,omitempty"`
	ContentType string    `json:"content_type,omitempty"`
	Size        int64     `json:"size,omitempty"`
	UploadedAt  time.Time `json:"uploaded_at,omitempty"`
}

// Subtask is the smallest schedulable unit: an hour estimate plus progress.
type Subtask struct {
	ID                         string  `json:"id"`
	Description                string  `json:"description"`
	ExpectedTime               float64 `json:"expected_time"`
	CurrentPercentageCompleted float64 `json:"current_percentage_completed"`
}

// Done reports whether no further work needs scheduling.
func (s Subtask) Done() bool {
	return s.CurrentPercentageCompleted >= 100
}

// RemainingMinutes converts the hour estimate and progress into whole
// minutes of work left. Malformed inputs (NaN, negative estimates,
// percentages outside 0..100) yield 0 so the caller simply skips the
// subtask instead of failing.
func (s Subtask) RemainingMinutes() int {
	if s.Done() {
		return 0
	}
	pct := s.CurrentPercentageCompleted
	if math.IsNaN(pct) || pct < 0 {
		pct = 0
	}
	m := s.ExpectedTime * 60 * (1 - pct/100)
	if math.IsNaN(m) || math.IsInf(m, 0) || m <= 0 {
		return 0
	}
	return int(math.Ceil(m))
}

// Task is a due-dated assignment or test. Only tasks the user approved and
// whose due date parses take part in scheduling.
type Task struct {
	ID             string    `json:"id"`
	Type           string    `json:"type"`
	DueDate        string    `json:"due_date"`
	Description    string    `json:"description"`
	ApprovedByUser bool      `json:"approved_by_user"`
	Subtasks       []Subtask `json:"subtasks"`
	DocumentIDs    []string  `json:"document_ids,omitempty"`
	UpdatedAt      time.Time `json:"updated_at,omitempty"`
}

// Due returns the parsed due date. ok is false when the date is missing or
// unparseable, which excludes the task from scheduling entirely.
func (t Task) Due() (time.Time, bool) {
	return parseDueDate(t.DueDate)
}

// Course owns its tasks and the documents they reference.
type Course struct {
	ID        string              `json:"id"`
	Name      string              `json:"name"`
	Tasks     []Task              `json:"tasks"`
	Documents map[string]Document `json:"documents,omitempty"`
}

// TimeBlock is a half-open interval of minutes since midnight, 0..1439,
// End > Start.
type TimeBlock struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Minutes returns the block length.
func (b TimeBlock) Minutes() int { return b.End - b.Start }

func (b TimeBlock) valid() bool {
	return b.Start >= 0 && b.End <= minutesPerDay && b.End > b.Start
}

// WeeklySchedule maps a day of week (0=Sunday..6=Saturday) to recurring
// availability blocks. Input blocks may overlap or arrive unsorted; the
// free-slot builder merges them before use.
type WeeklySchedule map[int][]TimeBlock

// ScheduledTime is one contiguous work block for one subtask on one day.
// The id is a composite natural key derived from subtask and day; the
// engine emits at most one slot per subtask per run.
type ScheduledTime struct {
	ID        string `json:"id"`
	Day       string `json:"day"` // "2006-01-02"
	StartTime int    `json:"start_time"`
	EndTime   int    `json:"end_time"`
	SubtaskID string `json:"subtask_id"`
	CourseID  string `json:"course_id"`
	TaskID    string `json:"task_id"`
	UserSet   bool   `json:"user_set"`
}

// SlotID derives the composite natural key for a subtask placed on a day.
func SlotID(subtaskID, day string) string { return subtaskID + "-" + day }

const (
	minutesPerDay = 24 * 60

	// minSlotMinutes is the smallest free-slot fragment worth keeping.
	// Anything shorter is discarded rather than offered as a placement
	// target.
	minSlotMinutes = 15

	// DefaultHorizonDays is the rolling window considered for placement.
	DefaultHorizonDays = 14

	dayLayout = "2006-01-02"
)

// DayString formats a calendar day the way slots and availability store it.
func DayString(t time.Time) string { return t.Format(dayLayout) }

// parseDueDate accepts the date shapes the LMS import produces: RFC 3339
// timestamps with or without zone, or a bare calendar date.
func parseDueDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", dayLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
