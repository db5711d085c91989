package lieu_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/lieu-ledger/lieu"
	"github.com/warp/lieu-ledger/timesheet"
	"github.com/warp/lieu-ledger/timesheet/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newServiceFixture(t *testing.T) (*store.Memory, *lieu.Service) {
	t.Helper()
	mem := store.NewMemory()
	svc := lieu.NewService(mem, mem, mem, mem.Notifications(), mem)
	return mem, svc
}

// serviceNow is a Monday morning, outside every reminder window.
var serviceNow = time.Date(2026, time.January, 12, 9, 0, 0, 0, time.UTC)

func workInput(userID string, date timesheet.Date, hours string) lieu.EntryInput {
	return lieu.EntryInput{
		UserID:    userID,
		Date:      date,
		Hours:     dec(hours),
		ProjectID: "proj-1",
		EntryType: timesheet.TypeWork,
	}
}

// =============================================================================
// UPSERT TESTS
// =============================================================================

func TestUpsertEntry_CreateThenUpdateSameCell(t *testing.T) {
	// GIVEN: An empty timesheet
	mem, svc := newServiceFixture(t)
	ctx := context.Background()

	// WHEN: Writing 8 hours, then 6 hours to the same cell
	first, err := svc.UpsertEntry(ctx, workInput("u1", week1, "8"), serviceNow)
	require.NoError(t, err)
	require.NotEmpty(t, first.EntryID)

	second, err := svc.UpsertEntry(ctx, workInput("u1", week1, "6"), serviceNow)
	require.NoError(t, err)

	// THEN: The same entry is updated in place, not duplicated
	assert.Equal(t, first.EntryID, second.EntryID)

	entries, err := mem.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Hours.Equal(dec("6")))
	assert.Equal(t, timesheet.StatusDraft, entries[0].Status)
}

func TestUpsertEntry_DifferentKeysAreDifferentCells(t *testing.T) {
	// Same user/day under two projects yields two entries.
	mem, svc := newServiceFixture(t)
	ctx := context.Background()

	_, err := svc.UpsertEntry(ctx, workInput("u1", week1, "4"), serviceNow)
	require.NoError(t, err)

	other := workInput("u1", week1, "5")
	other.ProjectID = "proj-2"
	_, err = svc.UpsertEntry(ctx, other, serviceNow)
	require.NoError(t, err)

	entries, err := mem.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestUpsertEntry_ZeroHoursDeletes(t *testing.T) {
	// GIVEN: An existing 8h entry
	mem, svc := newServiceFixture(t)
	ctx := context.Background()
	_, err := svc.UpsertEntry(ctx, workInput("u1", week1, "8"), serviceNow)
	require.NoError(t, err)

	// WHEN: Writing zero hours to the same cell
	result, err := svc.UpsertEntry(ctx, workInput("u1", week1, "0"), serviceNow)
	require.NoError(t, err)

	// THEN: The entry is gone
	assert.True(t, result.Deleted)
	entries, err := mem.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUpsertEntry_ZeroHoursOnEmptyCellIsNoop(t *testing.T) {
	mem, svc := newServiceFixture(t)
	ctx := context.Background()

	result, err := svc.UpsertEntry(ctx, workInput("u1", week1, "0"), serviceNow)
	require.NoError(t, err)
	assert.True(t, result.Deleted)

	entries, err := mem.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUpsertEntry_InvalidHoursRejected(t *testing.T) {
	_, svc := newServiceFixture(t)
	ctx := context.Background()

	_, err := svc.UpsertEntry(ctx, workInput("u1", week1, "-2"), serviceNow)
	assert.True(t, errors.Is(err, timesheet.ErrInvalidHours))

	_, err = svc.UpsertEntry(ctx, workInput("u1", week1, "25"), serviceNow)
	assert.True(t, errors.Is(err, timesheet.ErrInvalidHours))
}

func TestUpsertEntry_RebuildsLedger(t *testing.T) {
	// Every write recomputes: two 10h days yield a 20h week row.
	mem, svc := newServiceFixture(t)
	ctx := context.Background()

	_, err := svc.UpsertEntry(ctx, workInput("u1", week1, "10"), serviceNow)
	require.NoError(t, err)
	_, err = svc.UpsertEntry(ctx, workInput("u1", week1.AddDays(1), "10"), serviceNow)
	require.NoError(t, err)

	rows, err := mem.RowsByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].TotalHours.Equal(dec("20")))
}

// =============================================================================
// LOCKED ENTRY TESTS
// =============================================================================

func TestUpsertEntry_SubmittedEntryRejectsEdit(t *testing.T) {
	// GIVEN: An entry submitted for approval
	mem, svc := newServiceFixture(t)
	ctx := context.Background()
	_, err := svc.UpsertEntry(ctx, workInput("u1", week1, "8"), serviceNow)
	require.NoError(t, err)
	_, err = svc.SubmitWeek(ctx, "u1", week1)
	require.NoError(t, err)

	rowsBefore, err := mem.RowsByUser(ctx, "u1")
	require.NoError(t, err)

	// WHEN: Trying to change or zero the locked cell
	_, editErr := svc.UpsertEntry(ctx, workInput("u1", week1, "9"), serviceNow)
	_, zeroErr := svc.UpsertEntry(ctx, workInput("u1", week1, "0"), serviceNow)

	// THEN: Both writes fail, and neither hours nor ledger changed
	assert.True(t, errors.Is(editErr, timesheet.ErrEntryLocked))
	assert.True(t, errors.Is(zeroErr, timesheet.ErrEntryLocked))

	entries, err := mem.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Hours.Equal(dec("8")))

	rowsAfter, err := mem.RowsByUser(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, len(rowsBefore), len(rowsAfter))
	for i := range rowsBefore {
		assert.True(t, rowsBefore[i].RunningBalance.Equal(rowsAfter[i].RunningBalance))
	}
}

func TestDeleteRow_PartiallySubmittedRowIsLocked(t *testing.T) {
	// GIVEN: A row whose Monday is submitted but Tuesday is Draft
	mem, svc := newServiceFixture(t)
	ctx := context.Background()

	monday := entry("u1", week1.AddDays(1), "8")
	monday.Status = timesheet.StatusSubmitted
	require.NoError(t, mem.Insert(ctx, monday))
	require.NoError(t, mem.Insert(ctx, entry("u1", week1.AddDays(2), "8")))

	// WHEN: Deleting the whole row
	err := svc.DeleteRow(ctx, "u1", week1, timesheet.KeyOf(monday), serviceNow)

	// THEN: The whole row is refused and nothing was deleted
	require.Error(t, err)
	assert.True(t, errors.Is(err, timesheet.ErrEntryLocked))

	entries, listErr := mem.ListByUser(ctx, "u1")
	require.NoError(t, listErr)
	assert.Len(t, entries, 2)
}

func TestDeleteRow_DraftRowRemovedAndRecomputed(t *testing.T) {
	// GIVEN: A Draft row plus an unrelated row in the same week
	mem, svc := newServiceFixture(t)
	ctx := context.Background()
	_, err := svc.UpsertEntry(ctx, workInput("u1", week1, "8"), serviceNow)
	require.NoError(t, err)

	other := workInput("u1", week1, "4")
	other.ProjectID = "proj-2"
	_, err = svc.UpsertEntry(ctx, other, serviceNow)
	require.NoError(t, err)

	// WHEN: Deleting the proj-1 row
	key := timesheet.GroupKey{ProjectID: "proj-1", EntryType: timesheet.TypeWork}
	require.NoError(t, svc.DeleteRow(ctx, "u1", week1, key, serviceNow))

	// THEN: Only proj-2 remains and the ledger reflects 4 hours
	entries, err := mem.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "proj-2", entries[0].ProjectID)

	rows, err := mem.RowsByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].TotalHours.Equal(dec("4")))
}

// =============================================================================
// REASSIGNMENT TESTS
// =============================================================================

func TestReassignRow_MovesEntriesBetweenKeys(t *testing.T) {
	// GIVEN: Two Draft days under proj-1
	mem, svc := newServiceFixture(t)
	ctx := context.Background()
	_, err := svc.UpsertEntry(ctx, workInput("u1", week1, "8"), serviceNow)
	require.NoError(t, err)
	_, err = svc.UpsertEntry(ctx, workInput("u1", week1.AddDays(1), "8"), serviceNow)
	require.NoError(t, err)

	prev := timesheet.GroupKey{ProjectID: "proj-1", EntryType: timesheet.TypeWork}
	next := timesheet.GroupKey{ProjectID: "proj-9", TaskID: "task-1", EntryType: timesheet.TypeWork}

	// WHEN: Reassigning the row
	require.NoError(t, svc.ReassignRow(ctx, "u1", week1, prev, next))

	// THEN: Entries carry the new key; hours and ledger are untouched
	entries, err := mem.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, next, timesheet.KeyOf(e))
		assert.True(t, e.Hours.Equal(dec("8")))
	}

	rows, err := mem.RowsByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].TotalHours.Equal(dec("16")))
}

func TestReassignRow_LockedRowRefused(t *testing.T) {
	mem, svc := newServiceFixture(t)
	ctx := context.Background()
	locked := entry("u1", week1, "8")
	locked.Status = timesheet.StatusApproved
	require.NoError(t, mem.Insert(ctx, locked))

	next := timesheet.GroupKey{ProjectID: "proj-9", EntryType: timesheet.TypeWork}
	err := svc.ReassignRow(ctx, "u1", week1, timesheet.KeyOf(locked), next)
	assert.True(t, errors.Is(err, timesheet.ErrEntryLocked))
}

// =============================================================================
// WEEK SUBMISSION TESTS
// =============================================================================

func TestSubmitWeek_SubmitsOnlyThatWeeksDrafts(t *testing.T) {
	// GIVEN: Draft entries in two weeks and for two users
	mem, svc := newServiceFixture(t)
	ctx := context.Background()
	_, err := svc.UpsertEntry(ctx, workInput("u1", week1, "8"), serviceNow)
	require.NoError(t, err)
	_, err = svc.UpsertEntry(ctx, workInput("u1", week2, "8"), serviceNow)
	require.NoError(t, err)
	_, err = svc.UpsertEntry(ctx, workInput("u2", week1, "8"), serviceNow)
	require.NoError(t, err)

	// WHEN: Submitting u1's first week
	n, err := svc.SubmitWeek(ctx, "u1", week1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// THEN: Other weeks and other users stay Draft
	u1, err := mem.ListByUser(ctx, "u1")
	require.NoError(t, err)
	for _, e := range u1 {
		if timesheet.InWeek(e.Date, week1) {
			assert.Equal(t, timesheet.StatusSubmitted, e.Status)
		} else {
			assert.Equal(t, timesheet.StatusDraft, e.Status)
		}
	}

	u2, err := mem.ListByUser(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, timesheet.StatusDraft, u2[0].Status)
}

func TestSubmitWeek_Idempotent(t *testing.T) {
	mem, svc := newServiceFixture(t)
	ctx := context.Background()
	_, err := svc.UpsertEntry(ctx, workInput("u1", week1, "8"), serviceNow)
	require.NoError(t, err)

	first, err := svc.SubmitWeek(ctx, "u1", week1)
	require.NoError(t, err)
	assert.Equal(t, 1, first)

	second, err := svc.SubmitWeek(ctx, "u1", week1)
	require.NoError(t, err)
	assert.Equal(t, 0, second)

	entries, err := mem.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, timesheet.StatusSubmitted, entries[0].Status)
}

// =============================================================================
// RECALCULATE / CONFIG TESTS
// =============================================================================

func TestRecalculate_PicksUpConfigChanges(t *testing.T) {
	// GIVEN: A ledger built against the default threshold
	mem, svc := newServiceFixture(t)
	ctx := context.Background()
	for _, e := range spreadWeek("u1", week1, "45") {
		require.NoError(t, mem.Insert(ctx, e))
	}
	require.NoError(t, svc.Recalculate(ctx, "u1", serviceNow))

	rows, err := mem.RowsByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.True(t, rows[0].OvertimeHours.Equal(dec("5")))

	// WHEN: The admin lowers the weekly threshold and recalculates
	require.NoError(t, mem.SetInt(ctx, lieu.KeyWeeklyThresholdHours, 38))
	require.NoError(t, svc.Recalculate(ctx, "u1", serviceNow))

	// THEN: The same hours now earn more lieu
	rows, err = mem.RowsByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].OvertimeHours.Equal(dec("7")))
}

func TestLoadSettings_MissingKeysFallBackToDefaults(t *testing.T) {
	mem, _ := newServiceFixture(t)
	ctx := context.Background()

	settings, err := lieu.LoadSettings(ctx, mem)
	require.NoError(t, err)
	assert.True(t, settings.ThresholdHours.Equal(decimal.NewFromInt(40)))
	assert.Equal(t, time.Friday, settings.ReminderDay)
	assert.Equal(t, 16, settings.ReminderHour)
}

func TestLoadSettings_StoredValuesWin(t *testing.T) {
	mem, _ := newServiceFixture(t)
	ctx := context.Background()
	require.NoError(t, mem.SetInt(ctx, lieu.KeyWeeklyThresholdHours, 37))
	require.NoError(t, mem.SetInt(ctx, lieu.KeyReminderDay, int(time.Thursday)))
	require.NoError(t, mem.SetInt(ctx, lieu.KeyReminderHour, 12))

	settings, err := lieu.LoadSettings(ctx, mem)
	require.NoError(t, err)
	assert.True(t, settings.ThresholdHours.Equal(decimal.NewFromInt(37)))
	assert.Equal(t, time.Thursday, settings.ReminderDay)
	assert.Equal(t, 12, settings.ReminderHour)
}
