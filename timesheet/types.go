/*
Package timesheet provides the core timesheet domain model.

PURPOSE:
  This package contains the raw material of the lieu-time system: timesheet
  entries, their workflow states, the grouping key that forms rows in the
  weekly grid, and the derived weekly ledger row. It also defines the
  storage contracts the engine consumes.

KEY CONCEPTS IN THIS FILE (types.go):
  - Entry: One unit of worked time on a calendar day
  - EntryStatus: The workflow state controlling mutability
  - GroupKey: The (project, task, role, type) tuple identifying a grid row
  - LedgerRow: A recomputed weekly snapshot of hours/overtime/balance
  - User: Identity plus the admin-settable initial lieu balance

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point drift
  2. Value keys: GroupKey is a comparable value type, never a live join
  3. Derived data: LedgerRow is owned by the recompute engine, never hand-edited

SEE ALSO:
  - workflow.go: Which mutations are legal in each status
  - time.go: Week boundary arithmetic
  - store.go: Persistence contracts
*/
package timesheet

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// ENTRY STATUS - Workflow state of a single entry
// =============================================================================

type EntryStatus string

const (
	StatusDraft     EntryStatus = "Draft"
	StatusSubmitted EntryStatus = "Submitted"
	StatusApproved  EntryStatus = "Approved"
	StatusRecalled  EntryStatus = "Recalled"
)

// Valid reports whether s is one of the four known statuses.
func (s EntryStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusSubmitted, StatusApproved, StatusRecalled:
		return true
	}
	return false
}

// =============================================================================
// ENTRY TYPE
// =============================================================================

type EntryType string

const (
	TypeWork  EntryType = "Work"
	TypeAdmin EntryType = "Admin"
)

func (t EntryType) Valid() bool { return t == TypeWork || t == TypeAdmin }

// =============================================================================
// GROUP KEY - Identity of a row in the weekly grid
// =============================================================================

// GroupKey identifies one row of the weekly entry grid. Reference IDs are
// plain strings with "" meaning Unassigned, so the key is trivially
// comparable and hashable without any null-join semantics.
type GroupKey struct {
	ProjectID string
	TaskID    string
	RoleID    string
	EntryType EntryType
}

// KeyOf returns the grouping key for an entry.
func KeyOf(e Entry) GroupKey {
	return GroupKey{
		ProjectID: e.ProjectID,
		TaskID:    e.TaskID,
		RoleID:    e.RoleID,
		EntryType: e.EntryType,
	}
}

// =============================================================================
// ENTRY - One unit of worked time
// =============================================================================

// Entry is a single timesheet entry: hours worked by a user on one UTC
// calendar day, attributed to an optional project/task/role.
//
// Date is always a UTC day boundary (see DayStart). Hours is positive,
// at most 24, with at most two decimal places.
type Entry struct {
	ID        string
	UserID    string
	Date      Date
	Hours     decimal.Decimal
	ProjectID string // "" = Unassigned
	TaskID    string // "" = Unassigned
	RoleID    string // "" = Unassigned
	EntryType EntryType
	Status    EntryStatus
}

// =============================================================================
// LEDGER ROW - Derived weekly snapshot, owned by the recompute engine
// =============================================================================

// LedgerRow is one week of the lieu ledger. Rows exist only for weeks with
// logged hours; the running balance simply carries across the gaps.
//
// Invariant: rows sorted by WeekStart satisfy
//
//	RunningBalance[i] == round2(RunningBalance[i-1] + LieuEarned[i])
//
// with RunningBalance[-1] = the user's initial lieu balance.
type LedgerRow struct {
	ID             string
	UserID         string
	WeekStart      Date // UTC Sunday
	WeekEnd        Date // WeekStart + 6 days
	TotalHours     decimal.Decimal
	OvertimeHours  decimal.Decimal
	LieuEarned     decimal.Decimal
	RunningBalance decimal.Decimal
}

// =============================================================================
// USER
// =============================================================================

// User owns entries and exactly one ledger. InitialLieuBalance seeds the
// running balance and is admin-settable; editing it requires a recompute.
type User struct {
	ID                 string
	Name               string
	Email              string
	InitialLieuBalance decimal.Decimal
}

// =============================================================================
// HOURS VALIDATION
// =============================================================================

var (
	maxHours = decimal.NewFromInt(24)
)

// ValidateHours checks an hours value for an entry write.
// Zero is allowed: writing zero hours means removing the entry.
func ValidateHours(hours decimal.Decimal) error {
	if hours.IsNegative() {
		return &ValidationError{Field: "hours", Value: hours.String(), Reason: "must not be negative"}
	}
	if hours.GreaterThan(maxHours) {
		return &ValidationError{Field: "hours", Value: hours.String(), Reason: "must not exceed 24"}
	}
	if hours.Exponent() < -2 {
		// decimal keeps the literal exponent, so "1.505" has exponent -3
		// even though it could not round-trip through a 2dp column.
		if !hours.Equal(hours.Round(2)) {
			return &ValidationError{Field: "hours", Value: hours.String(), Reason: "at most 2 decimal places"}
		}
	}
	return nil
}

// Round2 rounds a stored quantity to two decimal places. Every arithmetic
// step in the ledger rounds through this so drift cannot compound.
func Round2(d decimal.Decimal) decimal.Decimal { return d.Round(2) }
