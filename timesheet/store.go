/*
store.go - Persistence contracts for the lieu-time engine

PURPOSE:
  Defines the interface between the domain logic and the database. The
  engine is written entirely against these contracts; implementations can
  use SQLite, PostgreSQL, or in-memory storage.

KEY INTERFACES:
  EntryStore:        Timesheet entry reads/writes
  LedgerStore:       Weekly ledger rows, replaced wholesale per user
  UserStore:         Users and the admin-settable initial balance
  NotificationStore: Notification records with key-based dedup lookup
  ConfigStore:       Integer key/value configuration

LEDGER REPLACEMENT CONTRACT:
  ReplaceRows MUST perform the delete+insert of a user's ledger inside a
  single transaction. A partially replaced ledger must never be
  observable: on failure the previous rows remain authoritative.

SEE ALSO:
  - store/sqlite: Production implementation
  - timesheet/store: In-memory implementation for testing
*/
package timesheet

import (
	"context"
	"time"
)

// =============================================================================
// ENTRY STORE
// =============================================================================

// EntryStore persists timesheet entries. All write paths are expected to
// have passed the workflow guards first; the store does not re-check.
type EntryStore interface {
	// ListByUser returns ALL entries for a user regardless of status,
	// in no guaranteed order. Locked entries still count toward hours.
	ListByUser(ctx context.Context, userID string) ([]Entry, error)

	// ListByUserRange returns entries with from <= Date < to.
	ListByUserRange(ctx context.Context, userID string, from, to Date) ([]Entry, error)

	// FindByKey locates the entry for (user, date, grouping key), nil if
	// absent. The weekly grid has at most one entry per cell.
	FindByKey(ctx context.Context, userID string, date Date, key GroupKey) (*Entry, error)

	// Insert adds a new entry.
	Insert(ctx context.Context, e Entry) error

	// Update rewrites an existing entry's hours and status.
	Update(ctx context.Context, e Entry) error

	// Delete removes an entry by ID.
	Delete(ctx context.Context, id string) error

	// DeleteRow removes every entry matching the grouping key within
	// [from, to).
	DeleteRow(ctx context.Context, userID string, key GroupKey, from, to Date) error

	// ReassignRow rewrites the grouping key of every matching entry
	// within [from, to).
	ReassignRow(ctx context.Context, userID string, prev, next GroupKey, from, to Date) error

	// UpdateStatusRange transitions every entry of a user in [from, to)
	// currently in fromStatus to toStatus. Returns the number changed.
	UpdateStatusRange(ctx context.Context, userID string, from, to Date, fromStatus, toStatus EntryStatus) (int, error)
}

// =============================================================================
// LEDGER STORE
// =============================================================================

// LedgerStore persists the derived weekly ledger. The recompute engine is
// the only writer.
type LedgerStore interface {
	// RowsByUser returns the user's ledger sorted by WeekStart ascending.
	RowsByUser(ctx context.Context, userID string) ([]LedgerRow, error)

	// ReplaceRows atomically deletes the user's existing rows and inserts
	// the freshly computed set. Transactional: all or nothing.
	ReplaceRows(ctx context.Context, userID string, rows []LedgerRow) error
}

// =============================================================================
// USER STORE
// =============================================================================

type UserStore interface {
	// GetUser returns nil if the user does not exist.
	GetUser(ctx context.Context, id string) (*User, error)

	ListUsers(ctx context.Context) ([]User, error)

	SaveUser(ctx context.Context, u User) error

	// SetInitialBalance updates the admin-settable seed balance. A
	// recompute must follow any call, since every subsequent running
	// balance shifts with it.
	SetInitialBalance(ctx context.Context, id string, balance string) error
}

// =============================================================================
// NOTIFICATION STORE
// =============================================================================

// NotificationRecord is the persisted shape of a notification. The
// metadata JSON always carries a "key" field used for deduplication.
type NotificationRecord struct {
	ID           string
	UserID       string
	Type         string
	Title        string
	Message      string
	IsRead       bool
	MetadataJSON string
	CreatedAt    time.Time
}

type NotificationStore interface {
	// ExistsByKey reports whether a notification of this type with this
	// dedup key already exists for the user.
	ExistsByKey(ctx context.Context, userID, typ, key string) (bool, error)

	Insert(ctx context.Context, n NotificationRecord) error

	ListByUser(ctx context.Context, userID string) ([]NotificationRecord, error)

	ListUnread(ctx context.Context, userID string) ([]NotificationRecord, error)

	MarkRead(ctx context.Context, id string) error

	MarkAllRead(ctx context.Context, userID string) error

	Delete(ctx context.Context, id string) error
}

// =============================================================================
// CONFIG STORE
// =============================================================================

// ConfigStore is the external key/value configuration table. GetInt
// returns ErrConfigMissing for an absent key; callers fall back to
// documented defaults rather than failing.
type ConfigStore interface {
	GetInt(ctx context.Context, key string) (int, error)
	SetInt(ctx context.Context, key string, value int) error
}
