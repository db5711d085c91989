package timesheet_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/lieu-ledger/timesheet"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func draftEntry(id string, status timesheet.EntryStatus) timesheet.Entry {
	return timesheet.Entry{
		ID:        id,
		UserID:    "user-1",
		Date:      timesheet.NewDate(2026, time.January, 5),
		Hours:     decimal.NewFromInt(8),
		ProjectID: "proj-1",
		EntryType: timesheet.TypeWork,
		Status:    status,
	}
}

// =============================================================================
// STATUS TRANSITION TESTS
// =============================================================================

func TestCanTransition_AllowedPaths(t *testing.T) {
	// Draft -> Submitted -> Approved is the happy path;
	// Submitted -> Recalled reopens for correction.
	assert.True(t, timesheet.CanTransition(timesheet.StatusDraft, timesheet.StatusSubmitted))
	assert.True(t, timesheet.CanTransition(timesheet.StatusSubmitted, timesheet.StatusApproved))
	assert.True(t, timesheet.CanTransition(timesheet.StatusSubmitted, timesheet.StatusRecalled))
}

func TestCanTransition_ForbiddenPaths(t *testing.T) {
	// No skipping ahead, no undoing an approval.
	assert.False(t, timesheet.CanTransition(timesheet.StatusDraft, timesheet.StatusApproved))
	assert.False(t, timesheet.CanTransition(timesheet.StatusApproved, timesheet.StatusDraft))
	assert.False(t, timesheet.CanTransition(timesheet.StatusApproved, timesheet.StatusSubmitted))
	assert.False(t, timesheet.CanTransition(timesheet.StatusSubmitted, timesheet.StatusDraft))
}

func TestCanTransition_SameStatusIsIdempotent(t *testing.T) {
	// Resubmitting a submitted week must not error.
	assert.True(t, timesheet.CanTransition(timesheet.StatusSubmitted, timesheet.StatusSubmitted))
	assert.True(t, timesheet.CanTransition(timesheet.StatusDraft, timesheet.StatusDraft))
}

func TestCheckTransition_ReturnsTransitionError(t *testing.T) {
	err := timesheet.CheckTransition(timesheet.StatusApproved, timesheet.StatusDraft)
	require.Error(t, err)

	var te *timesheet.TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, timesheet.StatusApproved, te.From)
	assert.Equal(t, timesheet.StatusDraft, te.To)
	assert.True(t, errors.Is(err, timesheet.ErrInvalidTransition))
}

// =============================================================================
// MUTABILITY GUARD TESTS
// =============================================================================

func TestCanMutate_OnlyDraft(t *testing.T) {
	assert.True(t, timesheet.CanMutate(draftEntry("e1", timesheet.StatusDraft)))
	assert.False(t, timesheet.CanMutate(draftEntry("e2", timesheet.StatusSubmitted)))
	assert.False(t, timesheet.CanMutate(draftEntry("e3", timesheet.StatusApproved)))
	assert.False(t, timesheet.CanMutate(draftEntry("e4", timesheet.StatusRecalled)))
}

func TestCheckMutateRow_OneLockedEntryLocksTheRow(t *testing.T) {
	// GIVEN: A row where one entry has been submitted
	// WHEN: Checking row mutability
	// THEN: The whole row is locked, naming the offending entry

	row := []timesheet.Entry{
		draftEntry("e1", timesheet.StatusDraft),
		draftEntry("e2", timesheet.StatusSubmitted),
		draftEntry("e3", timesheet.StatusDraft),
	}

	err := timesheet.CheckMutateRow(row)
	require.Error(t, err)
	assert.True(t, errors.Is(err, timesheet.ErrEntryLocked))

	var le *timesheet.LockedEntryError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "e2", le.EntryID)
	assert.Equal(t, timesheet.StatusSubmitted, le.Status)
}

func TestCheckMutateRow_AllDraftIsFine(t *testing.T) {
	row := []timesheet.Entry{
		draftEntry("e1", timesheet.StatusDraft),
		draftEntry("e2", timesheet.StatusDraft),
	}
	assert.NoError(t, timesheet.CheckMutateRow(row))
	assert.NoError(t, timesheet.CheckMutateRow(nil))
}

// =============================================================================
// HOURS VALIDATION TESTS
// =============================================================================

func TestValidateHours(t *testing.T) {
	cases := []struct {
		name  string
		hours string
		ok    bool
	}{
		{"typical day", "8", true},
		{"zero means removal", "0", true},
		{"quarter hours", "7.25", true},
		{"full day", "24", true},
		{"negative", "-1", false},
		{"over a day", "24.5", false},
		{"three decimals", "1.505", false},
		{"trailing zeros are harmless", "8.50", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			hours, err := decimal.NewFromString(tc.hours)
			require.NoError(t, err)

			err = timesheet.ValidateHours(hours)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.True(t, errors.Is(err, timesheet.ErrInvalidHours))
			}
		})
	}
}

// =============================================================================
// ROW GROUPING TESTS
// =============================================================================

func TestGroupRows_SplitsByKey(t *testing.T) {
	// GIVEN: Entries spread across two projects and an admin bucket
	e1 := draftEntry("e1", timesheet.StatusDraft)
	e2 := draftEntry("e2", timesheet.StatusDraft)
	e2.Date = e2.Date.AddDays(1)
	e3 := draftEntry("e3", timesheet.StatusDraft)
	e3.ProjectID = "proj-2"
	e4 := draftEntry("e4", timesheet.StatusDraft)
	e4.ProjectID = ""
	e4.EntryType = timesheet.TypeAdmin

	// WHEN: Grouping into rows
	rows := timesheet.GroupRows([]timesheet.Entry{e1, e2, e3, e4})

	// THEN: Three distinct keys, with same-key entries sharing a row
	require.Len(t, rows, 3)
	assert.Len(t, rows[timesheet.KeyOf(e1)], 2)
	assert.Len(t, rows[timesheet.KeyOf(e3)], 1)
	assert.Len(t, rows[timesheet.KeyOf(e4)], 1)
}
