package storage

import (
	"errors"
	"time"

	"studyplan/internal/planner"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": JSON snapshot file
//   - "sqlite": SQLite database file (build tag "sqlite")
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// State is the full persisted snapshot. Keep it schema-stable; external
// sync layers ship this shape around as-is.
type State struct {
	SavedAt   time.Time               `json:"saved_at"`
	Courses   []planner.Course        `json:"courses"`
	Scheduled []planner.ScheduledTime `json:"scheduled_times"`
	Weekly    planner.WeeklySchedule  `json:"weekly_schedule,omitempty"`
}
