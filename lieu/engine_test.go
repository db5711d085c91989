package lieu_test

import (
	"context"
	"errors"
	"fmt"
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
// TEST HELPERS
// =============================================================================

var entrySeq int

func entry(userID string, date timesheet.Date, hours string) timesheet.Entry {
	entrySeq++
	return timesheet.Entry{
		ID:        fmt.Sprintf("entry-%d", entrySeq),
		UserID:    userID,
		Date:      date,
		Hours:     dec(hours),
		ProjectID: "proj-1",
		EntryType: timesheet.TypeWork,
		Status:    timesheet.StatusDraft,
	}
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// week1 starts Sunday 2026-01-04; week2 and week3 follow it.
var (
	week1 = timesheet.NewDate(2026, time.January, 4)
	week2 = week1.AddDays(7)
	week3 = week1.AddDays(14)
)

// spreadWeek fills a week with one entry per day until hours run out,
// capping each day at 10 so no anomaly-sized day sneaks in.
func spreadWeek(userID string, weekStart timesheet.Date, total string) []timesheet.Entry {
	remaining := dec(total)
	dayCap := decimal.NewFromInt(10)

	var entries []timesheet.Entry
	for i := 0; i < 7 && remaining.IsPositive(); i++ {
		hours := decimal.Min(remaining, dayCap)
		entries = append(entries, entry(userID, weekStart.AddDays(i), hours.String()))
		remaining = remaining.Sub(hours)
	}
	return entries
}

func defaultSettings() lieu.Settings { return lieu.DefaultSettings() }

// =============================================================================
// PURE LEDGER CONSTRUCTION
// =============================================================================

func TestBuildLedger_OvertimeWeek(t *testing.T) {
	// GIVEN: 45 hours in one week against a 40h threshold
	entries := spreadWeek("u1", week1, "45")

	// WHEN: Building the ledger
	rows := lieu.BuildLedger("u1", entries, decimal.Zero, dec("40"))

	// THEN: One row, 5 hours overtime earned one-for-one as lieu
	require.Len(t, rows, 1)
	row := rows[0]
	assert.True(t, row.TotalHours.Equal(dec("45")), "total %s", row.TotalHours)
	assert.True(t, row.OvertimeHours.Equal(dec("5")))
	assert.True(t, row.LieuEarned.Equal(dec("5")))
	assert.True(t, row.RunningBalance.Equal(dec("5")))
	assert.True(t, row.WeekStart.Equal(week1))
	assert.True(t, row.WeekEnd.Equal(week1.AddDays(6)))
}

func TestBuildLedger_UnderThresholdWeekEarnsNothing(t *testing.T) {
	// GIVEN: 38 hours in one week
	entries := spreadWeek("u1", week1, "38")

	// WHEN: Building the ledger
	rows := lieu.BuildLedger("u1", entries, decimal.Zero, dec("40"))

	// THEN: The row exists (hours were worked) but earns zero lieu
	require.Len(t, rows, 1)
	assert.True(t, rows[0].OvertimeHours.IsZero())
	assert.True(t, rows[0].LieuEarned.IsZero())
	assert.True(t, rows[0].RunningBalance.IsZero())
}

func TestBuildLedger_BalanceCarriesAcrossEmptyWeeks(t *testing.T) {
	// GIVEN: Overtime in week 1, nothing in week 2, more hours in week 3
	entries := append(spreadWeek("u1", week1, "45"), spreadWeek("u1", week3, "42")...)

	// WHEN: Building the ledger
	rows := lieu.BuildLedger("u1", entries, decimal.Zero, dec("40"))

	// THEN: No row for the empty week; the balance carries across the gap
	require.Len(t, rows, 2)
	assert.True(t, rows[0].WeekStart.Equal(week1))
	assert.True(t, rows[1].WeekStart.Equal(week3))
	assert.True(t, rows[1].RunningBalance.Equal(dec("7")), "balance %s", rows[1].RunningBalance)
}

func TestBuildLedger_RowsSortedByWeekRegardlessOfEntryOrder(t *testing.T) {
	// GIVEN: Entries arriving newest-first
	entries := append(spreadWeek("u1", week2, "40"), spreadWeek("u1", week1, "41")...)

	rows := lieu.BuildLedger("u1", entries, decimal.Zero, dec("40"))

	require.Len(t, rows, 2)
	assert.True(t, rows[0].WeekStart.Equal(week1))
	assert.True(t, rows[1].WeekStart.Equal(week2))
}

func TestBuildLedger_InitialBalanceSeedsRunning(t *testing.T) {
	// GIVEN: A user starting with 10 banked hours
	entries := spreadWeek("u1", week1, "43")

	rows := lieu.BuildLedger("u1", entries, dec("10"), dec("40"))

	require.Len(t, rows, 1)
	assert.True(t, rows[0].RunningBalance.Equal(dec("13")))
}

func TestBuildLedger_RoundsEveryStep(t *testing.T) {
	// GIVEN: Fractional hours that sum past the threshold
	entries := []timesheet.Entry{
		entry("u1", week1, "8.33"),
		entry("u1", week1.AddDays(1), "8.33"),
		entry("u1", week1.AddDays(2), "8.33"),
		entry("u1", week1.AddDays(3), "8.33"),
		entry("u1", week1.AddDays(4), "8.33"),
	}

	rows := lieu.BuildLedger("u1", entries, decimal.Zero, dec("40"))

	require.Len(t, rows, 1)
	assert.True(t, rows[0].TotalHours.Equal(dec("41.65")))
	assert.True(t, rows[0].OvertimeHours.Equal(dec("1.65")))
	assert.True(t, rows[0].RunningBalance.Equal(dec("1.65")))
}

func TestBuildLedger_LieuNeverNegative(t *testing.T) {
	// An under-threshold week earns zero, never a negative grant.
	entries := spreadWeek("u1", week1, "10")
	rows := lieu.BuildLedger("u1", entries, decimal.Zero, dec("40"))

	require.Len(t, rows, 1)
	assert.False(t, rows[0].LieuEarned.IsNegative())
	assert.True(t, rows[0].LieuEarned.IsZero())
}

func TestBuildLedger_EmptyEntriesProduceNoRows(t *testing.T) {
	rows := lieu.BuildLedger("u1", nil, dec("10"), dec("40"))
	assert.Empty(t, rows)
	assert.True(t, lieu.CurrentBalance(rows, dec("10")).Equal(dec("10")))
}

// =============================================================================
// RECOMPUTE TESTS
// =============================================================================

func TestRecompute_PersistsRows(t *testing.T) {
	// GIVEN: Stored entries with overtime
	mem := store.NewMemory()
	ctx := context.Background()
	for _, e := range spreadWeek("u1", week1, "45") {
		require.NoError(t, mem.Insert(ctx, e))
	}

	engine := lieu.NewEngine(mem, mem, mem)

	// WHEN: Recomputing
	result, err := engine.Recompute(ctx, "u1", defaultSettings())
	require.NoError(t, err)

	// THEN: The stored ledger matches the result
	assert.Empty(t, result.Old)
	require.Len(t, result.New, 1)

	stored, err := mem.RowsByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.True(t, stored[0].LieuEarned.Equal(dec("5")))
}

func TestRecompute_Deterministic(t *testing.T) {
	// Recomputing twice over unchanged entries yields identical rows.
	mem := store.NewMemory()
	ctx := context.Background()
	for _, e := range spreadWeek("u1", week1, "45") {
		require.NoError(t, mem.Insert(ctx, e))
	}
	engine := lieu.NewEngine(mem, mem, mem)

	first, err := engine.Recompute(ctx, "u1", defaultSettings())
	require.NoError(t, err)
	second, err := engine.Recompute(ctx, "u1", defaultSettings())
	require.NoError(t, err)

	require.Equal(t, len(first.New), len(second.New))
	for i := range first.New {
		assert.Equal(t, first.New[i].ID, second.New[i].ID)
		assert.True(t, first.New[i].RunningBalance.Equal(second.New[i].RunningBalance))
	}
}

func TestRecompute_ThresholdChangeIsRetroactive(t *testing.T) {
	// GIVEN: A ledger built against the default 40h threshold
	mem := store.NewMemory()
	ctx := context.Background()
	for _, e := range spreadWeek("u1", week1, "45") {
		require.NoError(t, mem.Insert(ctx, e))
	}
	engine := lieu.NewEngine(mem, mem, mem)

	_, err := engine.Recompute(ctx, "u1", defaultSettings())
	require.NoError(t, err)

	// WHEN: The threshold drops to 37.5 and the ledger is rebuilt
	settings := defaultSettings()
	settings.ThresholdHours = dec("37.5")
	result, err := engine.Recompute(ctx, "u1", settings)
	require.NoError(t, err)

	// THEN: Historical weeks are re-judged against the new threshold
	require.Len(t, result.New, 1)
	assert.True(t, result.New[0].OvertimeHours.Equal(dec("7.5")))
}

func TestRecompute_EntryMoveRebuildsBothWeeks(t *testing.T) {
	// GIVEN: Overtime concentrated in week 1
	mem := store.NewMemory()
	ctx := context.Background()
	entries := spreadWeek("u1", week1, "45")
	for _, e := range entries {
		require.NoError(t, mem.Insert(ctx, e))
	}
	engine := lieu.NewEngine(mem, mem, mem)
	_, err := engine.Recompute(ctx, "u1", defaultSettings())
	require.NoError(t, err)

	// WHEN: One 10h day is deleted and logged in week 2 instead
	require.NoError(t, mem.Delete(ctx, entries[0].ID))
	require.NoError(t, mem.Insert(ctx, entry("u1", week2, entries[0].Hours.String())))
	result, err := engine.Recompute(ctx, "u1", defaultSettings())
	require.NoError(t, err)

	// THEN: Week 1 falls under threshold; week 2 stays under too
	require.Len(t, result.New, 2)
	assert.True(t, result.New[0].TotalHours.Equal(dec("35")))
	assert.True(t, result.New[0].OvertimeHours.IsZero())
	assert.True(t, result.New[1].TotalHours.Equal(dec("10")))
	assert.True(t, result.New[1].RunningBalance.IsZero())
}

func TestRecompute_UnknownUserComputesFromZero(t *testing.T) {
	// Entries are the source of truth; a missing user record is not fatal.
	mem := store.NewMemory()
	ctx := context.Background()
	for _, e := range spreadWeek("ghost", week1, "45") {
		require.NoError(t, mem.Insert(ctx, e))
	}
	engine := lieu.NewEngine(mem, mem, mem)

	result, err := engine.Recompute(ctx, "ghost", defaultSettings())
	require.NoError(t, err)
	assert.True(t, result.InitialBalance.IsZero())
	require.Len(t, result.New, 1)
	assert.True(t, result.New[0].RunningBalance.Equal(dec("5")))
}

func TestRecompute_ReplaceFailureKeepsOldRows(t *testing.T) {
	// GIVEN: A previously persisted ledger
	mem := store.NewMemory()
	ctx := context.Background()
	for _, e := range spreadWeek("u1", week1, "45") {
		require.NoError(t, mem.Insert(ctx, e))
	}
	engine := lieu.NewEngine(mem, mem, mem)
	_, err := engine.Recompute(ctx, "u1", defaultSettings())
	require.NoError(t, err)

	// WHEN: The next replace fails mid-flight
	mem.FailReplace = true
	_, err = engine.Recompute(ctx, "u1", defaultSettings())

	// THEN: The error is tagged, and the old rows still stand
	require.Error(t, err)
	assert.True(t, errors.Is(err, timesheet.ErrReplaceLedger))

	stored, storeErr := mem.RowsByUser(ctx, "u1")
	require.NoError(t, storeErr)
	require.Len(t, stored, 1)
	assert.True(t, stored[0].LieuEarned.Equal(dec("5")))
}
