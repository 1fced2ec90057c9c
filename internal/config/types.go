package config

import (
	"fmt"
	"strings"
)

// Config is the full daemon configuration.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "5m").
// Files may be JSON or YAML; YAML is coerced to JSON before strict
// decoding so unknown keys are rejected in both formats.
type Config struct {
	Logging  LoggingConfig   `json:"logging"`
	HTTP     HTTPConfig      `json:"http"`
	Storage  *StorageConfig  `json:"storage,omitempty"`
	Planner  PlannerConfig   `json:"planner"`
	Telegram *TelegramConfig `json:"telegram,omitempty"`
	Reminder *ReminderConfig `json:"reminder,omitempty"`
	Docstore *DocstoreConfig `json:"docstore,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type HTTPConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default ":8080"
	// CacheTTL bounds how long day-view responses are served from cache.
	CacheTTL string `json:"cache_ttl,omitempty"`
}

// StorageConfig controls the optional persistence layer.
//
// Driver values:
//   - "file": JSON snapshot file
//   - "sqlite": SQLite database file (build tag "sqlite")
//
// If the section is omitted or Driver is ""/"none", state lives only in
// memory.
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

// PlannerConfig carries the scheduling preferences the engine consumes
// read-only.
type PlannerConfig struct {
	// SchedulingType selects the placement policy: "A" packs work right
	// before due dates, "B" spreads it across the eligible days.
	SchedulingType string `json:"scheduling_type,omitempty"`
	HorizonDays    int    `json:"horizon_days,omitempty"`

	// Display-only bounds for the UI day view; availability blocks stay
	// authoritative for placement.
	DayStartHour int `json:"day_start_hour,omitempty"`
	DayEndHour   int `json:"day_end_hour,omitempty"`
}

// TelegramConfig configures the send-only reminder bot.
type TelegramConfig struct {
	Enabled    bool   `json:"enabled"`
	Token      string `json:"token"`
	ChatID     int64  `json:"chat_id"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

// ReminderConfig schedules the daily digest and the optional nightly
// reschedule. Times are "HH:MM" in the configured timezone.
type ReminderConfig struct {
	Enabled      bool   `json:"enabled"`
	DailyAt      string `json:"daily_at,omitempty"`
	RescheduleAt string `json:"reschedule_at,omitempty"`
	Timezone     string `json:"timezone,omitempty"` // IANA TZ, e.g. "Europe/Berlin"
}

// DocstoreConfig configures MinIO-backed course document storage.
type DocstoreConfig struct {
	Enabled   bool   `json:"enabled"`
	Endpoint  string `json:"endpoint"`
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key"`
	Bucket    string `json:"bucket"`
	UseSSL    bool   `json:"use_ssl,omitempty"`
	URLTTL    string `json:"url_ttl,omitempty"` // presigned URL lifetime
}

// Validate checks cross-field constraints that strict decoding cannot.
func (c *Config) Validate() error {
	if _, err := ParseDurationField("http.cache_ttl", c.HTTP.CacheTTL); err != nil {
		return err
	}
	if c.Storage != nil {
		if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
			return err
		}
	}
	if st := strings.TrimSpace(c.Planner.SchedulingType); st != "" && st != "A" && st != "B" {
		return fmt.Errorf("planner.scheduling_type: must be \"A\" or \"B\", got %q", st)
	}
	if c.Planner.HorizonDays < 0 {
		return fmt.Errorf("planner.horizon_days: must be >= 0")
	}
	if h := c.Planner.DayStartHour; h < 0 || h > 23 {
		return fmt.Errorf("planner.day_start_hour: must be in 0..23")
	}
	if h := c.Planner.DayEndHour; h < 0 || h > 24 {
		return fmt.Errorf("planner.day_end_hour: must be in 0..24")
	}
	if c.Telegram != nil && c.Telegram.Enabled && strings.TrimSpace(c.Telegram.Token) == "" {
		return fmt.Errorf("telegram.token: required when telegram is enabled")
	}
	if c.Reminder != nil && c.Reminder.Enabled {
		if c.Reminder.DailyAt == "" && c.Reminder.RescheduleAt == "" {
			return fmt.Errorf("reminder: enabled but neither daily_at nor reschedule_at is set")
		}
		for _, f := range []struct{ path, raw string }{
			{"reminder.daily_at", c.Reminder.DailyAt},
			{"reminder.reschedule_at", c.Reminder.RescheduleAt},
		} {
			if f.raw == "" {
				continue
			}
			if _, _, err := ParseHHMM(f.raw); err != nil {
				return fmt.Errorf("%s: %w", f.path, err)
			}
		}
	}
	if c.Docstore != nil && c.Docstore.Enabled {
		if strings.TrimSpace(c.Docstore.Endpoint) == "" {
			return fmt.Errorf("docstore.endpoint: required when docstore is enabled")
		}
		if strings.TrimSpace(c.Docstore.Bucket) == "" {
			return fmt.Errorf("docstore.bucket: required when docstore is enabled")
		}
		if _, err := ParseDurationField("docstore.url_ttl", c.Docstore.URLTTL); err != nil {
			return err
		}
	}
	return nil
}
