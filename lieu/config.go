/*
Package lieu implements the lieu balance ledger engine.

PURPOSE:
  Turns a user's raw timesheet entries into a per-week accounting of hours
  worked, overtime accrued, and a running lieu-time balance, and watches
  ledger transitions and raw entries for conditions the user must be
  alerted to.

COMPONENTS:
  config.go:       Settings loaded from the config store with defaults
  engine.go:       Full-rebuild ledger recomputation, serialized per user
  detector.go:     Edge-triggered and periodic notification checks
  notification.go: Typed notification metadata with dedup keys
  service.go:      Orchestration entry points consumed by the API layer

SEE ALSO:
  - timesheet: Domain model and storage contracts
*/
package lieu

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/lieu-ledger/timesheet"
)

// =============================================================================
// CONFIG KEYS AND DEFAULTS
// =============================================================================

const (
	KeyWeeklyThresholdHours = "weekly_threshold_hours"
	KeyReminderDay          = "notifications_weekly_reminder_day"
	KeyReminderHour         = "notifications_weekly_reminder_hour"

	DefaultThresholdHours = 40
	DefaultReminderDay    = 5 // Friday
	DefaultReminderHour   = 16
)

// Settings is the explicit configuration threaded into the engine and the
// detector at call time. Nothing in the hot path reads config ad hoc, so
// tests stay deterministic.
type Settings struct {
	// ThresholdHours is the weekly hours threshold beyond which overtime
	// accrues 1:1 as lieu time.
	ThresholdHours decimal.Decimal

	// ReminderDay is the UTC weekday (0=Sunday) of the weekly reminder.
	ReminderDay time.Weekday

	// ReminderHour is the UTC hour from which the reminder may fire.
	ReminderHour int
}

// DefaultSettings returns the documented fallback configuration:
// 40-hour threshold, reminder Friday 16:00 UTC.
func DefaultSettings() Settings {
	return Settings{
		ThresholdHours: decimal.NewFromInt(DefaultThresholdHours),
		ReminderDay:    time.Weekday(DefaultReminderDay),
		ReminderHour:   DefaultReminderHour,
	}
}

// LoadSettings reads configuration from the store. Missing keys fall back
// to defaults; this is a deliberate availability-over-strictness choice,
// so the only errors surfaced are real storage failures.
func LoadSettings(ctx context.Context, store timesheet.ConfigStore) (Settings, error) {
	s := DefaultSettings()

	threshold, err := store.GetInt(ctx, KeyWeeklyThresholdHours)
	switch {
	case err == nil:
		s.ThresholdHours = decimal.NewFromInt(int64(threshold))
	case !errors.Is(err, timesheet.ErrConfigMissing):
		return s, err
	}

	day, err := store.GetInt(ctx, KeyReminderDay)
	switch {
	case err == nil && day >= 0 && day <= 6:
		s.ReminderDay = time.Weekday(day)
	case err != nil && !errors.Is(err, timesheet.ErrConfigMissing):
		return s, err
	}

	hour, err := store.GetInt(ctx, KeyReminderHour)
	switch {
	case err == nil && hour >= 0 && hour <= 23:
		s.ReminderHour = hour
	case err != nil && !errors.Is(err, timesheet.ErrConfigMissing):
		return s, err
	}

	return s, nil
}
