/*
workflow.go - Entry state machine

PURPOSE:
  Defines the legal entry statuses and which mutations each permits.
  Every component that writes entries goes through these guards; there is
  no path that mutates a locked entry.

STATES:
  Draft -> Submitted -> Approved
           Submitted -> Recalled

  Draft is the ONLY state in which hours may change, the row may be
  reassigned to a different project/task/role, or the row deleted. Any
  other state is read-only for those fields.

ROW GUARDS:
  Row-level operations (delete, reassign) require EVERY entry sharing the
  row's grouping key to be Draft. A partially submitted row is immutable
  as a whole, otherwise submitted hours would be orphaned under a stale
  grouping key.

SEE ALSO:
  - types.go: EntryStatus, GroupKey
  - errors.go: LockedEntryError, TransitionError
*/
package timesheet

// =============================================================================
// MUTATION GUARDS
// =============================================================================

// CanMutate reports whether an entry's hours, grouping, or existence may
// change. True iff the entry is still Draft.
func CanMutate(e Entry) bool { return e.Status == StatusDraft }

// CanMutateRow reports whether a whole grid row may be deleted or
// reassigned: every entry in the row must be Draft.
func CanMutateRow(entries []Entry) bool {
	for _, e := range entries {
		if !CanMutate(e) {
			return false
		}
	}
	return true
}

// CheckMutate returns the locked-entry error for a non-Draft entry, nil
// otherwise.
func CheckMutate(e Entry) error {
	if !CanMutate(e) {
		return &LockedEntryError{EntryID: e.ID, Status: e.Status}
	}
	return nil
}

// CheckMutateRow returns the locked-entry error naming the first locked
// entry in the row, nil if the whole row is Draft.
func CheckMutateRow(entries []Entry) error {
	for _, e := range entries {
		if err := CheckMutate(e); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// TRANSITIONS
// =============================================================================

var transitions = map[EntryStatus][]EntryStatus{
	StatusDraft:     {StatusSubmitted},
	StatusSubmitted: {StatusApproved, StatusRecalled},
}

// CanTransition reports whether the workflow permits moving an entry from
// one status to another. Same-status "transitions" are allowed so bulk
// operations stay idempotent.
func CanTransition(from, to EntryStatus) bool {
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CheckTransition returns a TransitionError for an illegal move.
func CheckTransition(from, to EntryStatus) error {
	if !CanTransition(from, to) {
		return &TransitionError{From: from, To: to}
	}
	return nil
}

// =============================================================================
// ROW GROUPING
// =============================================================================

// GroupRows buckets entries by their grouping key, preserving no
// particular order inside a bucket. This is the shape the weekly grid and
// the row guards operate on.
func GroupRows(entries []Entry) map[GroupKey][]Entry {
	rows := make(map[GroupKey][]Entry)
	for _, e := range entries {
		k := KeyOf(e)
		rows[k] = append(rows[k], e)
	}
	return rows
}
