/*
service.go - Orchestration entry points

PURPOSE:
  The library-level contract consumed by HTTP handlers and import
  pipelines. Every entry-affecting write flows through here: the state
  machine validates the mutation, the store persists it, the engine
  rebuilds the ledger, and the detector fires edge notifications.

OPERATIONS:
  UpsertEntry            Create/update an entry; zero hours deletes it
  DeleteRow              Remove a whole grid row (all-Draft guard)
  ReassignRow            Move a row to a different grouping key
  SubmitWeek             Bulk Draft -> Submitted for one week
  Recalculate            Force a ledger rebuild (admin edits, imports)
  GenerateNotifications  Run the periodic/anomaly checks

FAILURE SEMANTICS:
  A rejected mutation (locked entry, invalid hours) is a no-op: nothing
  is written and the ledger is untouched. Recompute failures propagate;
  nothing here retries automatically.
*/
package lieu

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/lieu-ledger/timesheet"
)

// Service wires the state machine, engine, and detector together.
type Service struct {
	Entries  timesheet.EntryStore
	Config   timesheet.ConfigStore
	Engine   *Engine
	Detector *Detector
}

func NewService(entries timesheet.EntryStore, ledger timesheet.LedgerStore, users timesheet.UserStore,
	notifications timesheet.NotificationStore, config timesheet.ConfigStore) *Service {
	return &Service{
		Entries:  entries,
		Config:   config,
		Engine:   NewEngine(entries, ledger, users),
		Detector: NewDetector(entries, notifications),
	}
}

// =============================================================================
// ENTRY WRITES
// =============================================================================

// EntryInput is one cell write in the weekly grid.
type EntryInput struct {
	UserID    string
	Date      timesheet.Date
	Hours     decimal.Decimal
	ProjectID string
	TaskID    string
	RoleID    string
	EntryType timesheet.EntryType
}

func (in EntryInput) key() timesheet.GroupKey {
	entryType := in.EntryType
	if entryType == "" {
		entryType = timesheet.TypeWork
	}
	return timesheet.GroupKey{
		ProjectID: in.ProjectID,
		TaskID:    in.TaskID,
		RoleID:    in.RoleID,
		EntryType: entryType,
	}
}

// UpsertResult reports what a write did.
type UpsertResult struct {
	EntryID string
	Deleted bool
}

// UpsertEntry creates or updates the entry for (user, date, grouping
// key). Writing zero hours removes the entry; locked entries reject the
// write before anything is touched.
func (s *Service) UpsertEntry(ctx context.Context, in EntryInput, now time.Time) (UpsertResult, error) {
	if err := timesheet.ValidateHours(in.Hours); err != nil {
		return UpsertResult{}, err
	}
	if !in.key().EntryType.Valid() {
		return UpsertResult{}, &timesheet.ValidationError{Field: "entryType", Value: string(in.EntryType), Reason: "must be Work or Admin"}
	}

	date := timesheet.DayStart(in.Date.Time)
	existing, err := s.Entries.FindByKey(ctx, in.UserID, date, in.key())
	if err != nil {
		return UpsertResult{}, err
	}

	// Zero hours means removal.
	if in.Hours.IsZero() {
		if existing == nil {
			return UpsertResult{Deleted: true}, nil
		}
		if err := timesheet.CheckMutate(*existing); err != nil {
			return UpsertResult{}, err
		}
		if err := s.Entries.Delete(ctx, existing.ID); err != nil {
			return UpsertResult{}, err
		}
		if err := s.afterMutation(ctx, in.UserID, now); err != nil {
			return UpsertResult{}, err
		}
		return UpsertResult{Deleted: true}, nil
	}

	if existing != nil {
		if err := timesheet.CheckMutate(*existing); err != nil {
			return UpsertResult{}, err
		}
		updated := *existing
		updated.Hours = in.Hours
		if err := s.Entries.Update(ctx, updated); err != nil {
			return UpsertResult{}, err
		}
		if err := s.afterMutation(ctx, in.UserID, now); err != nil {
			return UpsertResult{}, err
		}
		return UpsertResult{EntryID: existing.ID}, nil
	}

	entry := timesheet.Entry{
		ID:        uuid.NewString(),
		UserID:    in.UserID,
		Date:      date,
		Hours:     in.Hours,
		ProjectID: in.ProjectID,
		TaskID:    in.TaskID,
		RoleID:    in.RoleID,
		EntryType: in.key().EntryType,
		Status:    timesheet.StatusDraft,
	}
	if err := s.Entries.Insert(ctx, entry); err != nil {
		return UpsertResult{}, err
	}
	if err := s.afterMutation(ctx, in.UserID, now); err != nil {
		return UpsertResult{}, err
	}
	return UpsertResult{EntryID: entry.ID}, nil
}

// =============================================================================
// ROW OPERATIONS
// =============================================================================

// DeleteRow removes every entry in a grid row for one week. The whole row
// must be Draft; a partially submitted row is immutable as a whole.
func (s *Service) DeleteRow(ctx context.Context, userID string, weekStart timesheet.Date, key timesheet.GroupKey, now time.Time) error {
	start, end := timesheet.WeekRange(timesheet.WeekOf(weekStart))

	rowEntries, err := s.rowEntries(ctx, userID, key, start, end)
	if err != nil {
		return err
	}
	if len(rowEntries) == 0 {
		return nil
	}
	if err := timesheet.CheckMutateRow(rowEntries); err != nil {
		return err
	}

	if err := s.Entries.DeleteRow(ctx, userID, key, start, end); err != nil {
		return err
	}
	return s.afterMutation(ctx, userID, now)
}

// ReassignRow moves a week's row to a different grouping key. Same
// all-Draft guard as deletion: reassigning under a submitted entry would
// orphan its hours beneath a stale key.
func (s *Service) ReassignRow(ctx context.Context, userID string, weekStart timesheet.Date, prev, next timesheet.GroupKey) error {
	if !next.EntryType.Valid() {
		return &timesheet.ValidationError{Field: "entryType", Value: string(next.EntryType), Reason: "must be Work or Admin"}
	}
	start, end := timesheet.WeekRange(timesheet.WeekOf(weekStart))

	rowEntries, err := s.rowEntries(ctx, userID, prev, start, end)
	if err != nil {
		return err
	}
	if len(rowEntries) == 0 {
		return nil
	}
	if err := timesheet.CheckMutateRow(rowEntries); err != nil {
		return err
	}

	// Reassignment moves hours between keys, not between weeks, so the
	// ledger is unchanged and no recompute is needed.
	return s.Entries.ReassignRow(ctx, userID, prev, next, start, end)
}

func (s *Service) rowEntries(ctx context.Context, userID string, key timesheet.GroupKey, start, end timesheet.Date) ([]timesheet.Entry, error) {
	entries, err := s.Entries.ListByUserRange(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}
	var row []timesheet.Entry
	for _, e := range entries {
		if timesheet.KeyOf(e) == key {
			row = append(row, e)
		}
	}
	return row, nil
}

// =============================================================================
// WEEK SUBMISSION
// =============================================================================

// SubmitWeek transitions all Draft entries in the week to Submitted.
// Idempotent: entries already past Draft are untouched, and resubmitting
// an already-submitted week changes nothing. Other users and other weeks
// are unaffected.
func (s *Service) SubmitWeek(ctx context.Context, userID string, weekStart timesheet.Date) (int, error) {
	start, end := timesheet.WeekRange(timesheet.WeekOf(weekStart))
	return s.Entries.UpdateStatusRange(ctx, userID, start, end, timesheet.StatusDraft, timesheet.StatusSubmitted)
}

// =============================================================================
// RECOMPUTE AND NOTIFICATIONS
// =============================================================================

// Recalculate rebuilds the user's ledger against current config and fires
// edge-triggered notifications for any newly crossed conditions. Invoked
// after any entry-affecting write and after admin edits to the threshold
// or a user's initial balance.
func (s *Service) Recalculate(ctx context.Context, userID string, now time.Time) error {
	return s.afterMutation(ctx, userID, now)
}

// GenerateNotifications runs the periodic/anomaly checks for one user.
// Invoked on page load or from the scheduler; reruns are no-ops thanks to
// key dedup.
func (s *Service) GenerateNotifications(ctx context.Context, userID string, now time.Time) (int, error) {
	settings, err := LoadSettings(ctx, s.Config)
	if err != nil {
		return 0, err
	}
	return s.Detector.RunChecks(ctx, userID, now, settings)
}

func (s *Service) afterMutation(ctx context.Context, userID string, now time.Time) error {
	settings, err := LoadSettings(ctx, s.Config)
	if err != nil {
		return err
	}

	result, err := s.Engine.Recompute(ctx, userID, settings)
	if err != nil {
		return err
	}

	if _, err := s.Detector.CheckLedgerTransitions(ctx, userID, result, now); err != nil {
		return fmt.Errorf("ledger notifications for %s: %w", userID, err)
	}
	return nil
}
