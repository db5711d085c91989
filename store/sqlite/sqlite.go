/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements every persistence interface the engine consumes
  (EntryStore, LedgerStore, UserStore, NotificationStore, ConfigStore)
  using SQLite. In production, the same patterns apply to PostgreSQL -
  only minor SQL dialect differences.

KEY TABLES:
  users:             Identity plus the admin-settable initial lieu balance
  timesheet_entries: Raw worked time, one row per user/day/grouping key
  lieu_ledger:       Derived weekly rows, replaced wholesale per user
  notifications:     Alert records with a dedup key inside metadata JSON
  config:            Integer key/value configuration

LEDGER REPLACEMENT:
  ReplaceRows performs the delete+insert inside one database transaction.
  If the transaction fails the previous rows remain authoritative; a
  partially replaced ledger is never visible.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety within the process. Serializing
  recomputes per user is the engine's job, not the store's.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/lieu.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - timesheet/store.go: Interface definitions
  - timesheet/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/lieu-ledger/timesheet"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		initial_lieu_balance TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS timesheet_entries (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		date TEXT NOT NULL,
		hours TEXT NOT NULL,
		project_id TEXT NOT NULL DEFAULT '',
		task_id TEXT NOT NULL DEFAULT '',
		role_id TEXT NOT NULL DEFAULT '',
		entry_type TEXT NOT NULL DEFAULT 'Work',
		status TEXT NOT NULL DEFAULT 'Draft'
	);

	CREATE INDEX IF NOT EXISTS idx_entries_user_date
		ON timesheet_entries(user_id, date);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_entries_cell
		ON timesheet_entries(user_id, date, project_id, task_id, role_id, entry_type);

	CREATE TABLE IF NOT EXISTS lieu_ledger (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		week_start TEXT NOT NULL,
		week_end TEXT NOT NULL,
		total_hours TEXT NOT NULL,
		overtime_hours TEXT NOT NULL,
		lieu_earned TEXT NOT NULL,
		running_balance TEXT NOT NULL,
		UNIQUE(user_id, week_start)
	);

	CREATE INDEX IF NOT EXISTS idx_ledger_user_week
		ON lieu_ledger(user_id, week_start);

	CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		type TEXT NOT NULL,
		title TEXT NOT NULL,
		message TEXT NOT NULL,
		is_read BOOLEAN NOT NULL DEFAULT FALSE,
		metadata_json TEXT NOT NULL DEFAULT '{}',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_notifications_user_type
		ON notifications(user_id, type);

	CREATE TABLE IF NOT EXISTS config (
		key TEXT PRIMARY KEY,
		value INTEGER NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// ENTRY STORE (timesheet.EntryStore interface)
// =============================================================================

const entryColumns = "id, user_id, date, hours, project_id, task_id, role_id, entry_type, status"

func (s *Store) ListByUser(ctx context.Context, userID string) ([]timesheet.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT ` + entryColumns + `
		FROM timesheet_entries
		WHERE user_id = ?
		ORDER BY date ASC
	`
	return s.queryEntries(ctx, query, userID)
}

func (s *Store) ListByUserRange(ctx context.Context, userID string, from, to timesheet.Date) ([]timesheet.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT ` + entryColumns + `
		FROM timesheet_entries
		WHERE user_id = ? AND date >= ? AND date < ?
		ORDER BY date ASC
	`
	return s.queryEntries(ctx, query, userID, from.String(), to.String())
}

func (s *Store) FindByKey(ctx context.Context, userID string, date timesheet.Date, key timesheet.GroupKey) (*timesheet.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT ` + entryColumns + `
		FROM timesheet_entries
		WHERE user_id = ? AND date = ?
		  AND project_id = ? AND task_id = ? AND role_id = ? AND entry_type = ?
		LIMIT 1
	`
	entries, err := s.queryEntries(ctx, query, userID, date.String(),
		key.ProjectID, key.TaskID, key.RoleID, string(key.EntryType))
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

func (s *Store) Insert(ctx context.Context, e timesheet.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO timesheet_entries (` + entryColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		e.ID, e.UserID, e.Date.String(), e.Hours.String(),
		e.ProjectID, e.TaskID, e.RoleID, string(e.EntryType), string(e.Status),
	)
	if err != nil {
		return fmt.Errorf("failed to insert entry: %w", err)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, e timesheet.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx,
		"UPDATE timesheet_entries SET hours = ?, status = ? WHERE id = ?",
		e.Hours.String(), string(e.Status), e.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update entry: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return timesheet.ErrEntryNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM timesheet_entries WHERE id = ?", id)
	return err
}

func (s *Store) DeleteRow(ctx context.Context, userID string, key timesheet.GroupKey, from, to timesheet.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		DELETE FROM timesheet_entries
		WHERE user_id = ? AND date >= ? AND date < ?
		  AND project_id = ? AND task_id = ? AND role_id = ? AND entry_type = ?
	`
	_, err := s.db.ExecContext(ctx, query, userID, from.String(), to.String(),
		key.ProjectID, key.TaskID, key.RoleID, string(key.EntryType))
	return err
}

func (s *Store) ReassignRow(ctx context.Context, userID string, prev, next timesheet.GroupKey, from, to timesheet.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		UPDATE timesheet_entries
		SET project_id = ?, task_id = ?, role_id = ?, entry_type = ?
		WHERE user_id = ? AND date >= ? AND date < ?
		  AND project_id = ? AND task_id = ? AND role_id = ? AND entry_type = ?
	`
	_, err := s.db.ExecContext(ctx, query,
		next.ProjectID, next.TaskID, next.RoleID, string(next.EntryType),
		userID, from.String(), to.String(),
		prev.ProjectID, prev.TaskID, prev.RoleID, string(prev.EntryType))
	return err
}

func (s *Store) UpdateStatusRange(ctx context.Context, userID string, from, to timesheet.Date, fromStatus, toStatus timesheet.EntryStatus) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		UPDATE timesheet_entries
		SET status = ?
		WHERE user_id = ? AND date >= ? AND date < ? AND status = ?
	`
	result, err := s.db.ExecContext(ctx, query,
		string(toStatus), userID, from.String(), to.String(), string(fromStatus))
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	return int(n), err
}

func (s *Store) queryEntries(ctx context.Context, query string, args ...any) ([]timesheet.Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []timesheet.Entry
	for rows.Next() {
		var (
			e                              timesheet.Entry
			date, hours, entryType, status string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &date, &hours,
			&e.ProjectID, &e.TaskID, &e.RoleID, &entryType, &status); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		if e.Date, err = timesheet.ParseDate(date); err != nil {
			return nil, fmt.Errorf("bad entry date %q: %w", date, err)
		}
		if e.Hours, err = decimal.NewFromString(hours); err != nil {
			return nil, fmt.Errorf("bad entry hours %q: %w", hours, err)
		}
		e.EntryType = timesheet.EntryType(entryType)
		e.Status = timesheet.EntryStatus(status)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// LEDGER STORE (timesheet.LedgerStore interface)
// =============================================================================

func (s *Store) RowsByUser(ctx context.Context, userID string) ([]timesheet.LedgerRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, user_id, week_start, week_end, total_hours, overtime_hours, lieu_earned, running_balance
		FROM lieu_ledger
		WHERE user_id = ?
		ORDER BY week_start ASC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger: %w", err)
	}
	defer rows.Close()

	var out []timesheet.LedgerRow
	for rows.Next() {
		row, err := scanLedgerRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// ReplaceRows deletes the user's ledger and inserts the fresh set inside
// one transaction. All or nothing.
func (s *Store) ReplaceRows(ctx context.Context, userID string, rows []timesheet.LedgerRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM lieu_ledger WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("failed to delete ledger rows: %w", err)
	}

	query := `
		INSERT INTO lieu_ledger (id, user_id, week_start, week_end, total_hours, overtime_hours, lieu_earned, running_balance)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, row := range rows {
		_, err := tx.ExecContext(ctx, query,
			row.ID, row.UserID, row.WeekStart.String(), row.WeekEnd.String(),
			row.TotalHours.String(), row.OvertimeHours.String(),
			row.LieuEarned.String(), row.RunningBalance.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert ledger row: %w", err)
		}
	}

	return tx.Commit()
}

func scanLedgerRow(rows *sql.Rows) (timesheet.LedgerRow, error) {
	var (
		row                                         timesheet.LedgerRow
		weekStart, weekEnd                          string
		total, overtime, lieuEarned, runningBalance string
	)
	if err := rows.Scan(&row.ID, &row.UserID, &weekStart, &weekEnd,
		&total, &overtime, &lieuEarned, &runningBalance); err != nil {
		return row, fmt.Errorf("failed to scan ledger row: %w", err)
	}

	var err error
	if row.WeekStart, err = timesheet.ParseDate(weekStart); err != nil {
		return row, err
	}
	if row.WeekEnd, err = timesheet.ParseDate(weekEnd); err != nil {
		return row, err
	}
	if row.TotalHours, err = decimal.NewFromString(total); err != nil {
		return row, err
	}
	if row.OvertimeHours, err = decimal.NewFromString(overtime); err != nil {
		return row, err
	}
	if row.LieuEarned, err = decimal.NewFromString(lieuEarned); err != nil {
		return row, err
	}
	if row.RunningBalance, err = decimal.NewFromString(runningBalance); err != nil {
		return row, err
	}
	return row, nil
}

// =============================================================================
// USER STORE (timesheet.UserStore interface)
// =============================================================================

func (s *Store) GetUser(ctx context.Context, id string) (*timesheet.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		u       timesheet.User
		email   sql.NullString
		balance string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, email, initial_lieu_balance FROM users WHERE id = ?", id,
	).Scan(&u.ID, &u.Name, &email, &balance)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	u.Email = email.String
	if u.InitialLieuBalance, err = decimal.NewFromString(balance); err != nil {
		return nil, fmt.Errorf("bad initial balance %q: %w", balance, err)
	}
	return &u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]timesheet.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, email, initial_lieu_balance FROM users ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []timesheet.User
	for rows.Next() {
		var (
			u       timesheet.User
			email   sql.NullString
			balance string
		)
		if err := rows.Scan(&u.ID, &u.Name, &email, &balance); err != nil {
			return nil, err
		}
		u.Email = email.String
		if u.InitialLieuBalance, err = decimal.NewFromString(balance); err != nil {
			return nil, fmt.Errorf("bad initial balance %q: %w", balance, err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *Store) SaveUser(ctx context.Context, u timesheet.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO users (id, name, email, initial_lieu_balance, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			initial_lieu_balance = excluded.initial_lieu_balance
	`
	_, err := s.db.ExecContext(ctx, query,
		u.ID, u.Name, u.Email, u.InitialLieuBalance.String(),
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

func (s *Store) SetInitialBalance(ctx context.Context, id string, balance string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := decimal.NewFromString(balance); err != nil {
		return fmt.Errorf("bad initial balance %q: %w", balance, err)
	}

	result, err := s.db.ExecContext(ctx,
		"UPDATE users SET initial_lieu_balance = ? WHERE id = ?", balance, id)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return timesheet.ErrUserNotFound
	}
	return nil
}

// =============================================================================
// NOTIFICATION STORE (timesheet.NotificationStore interface)
// =============================================================================

// Notifications returns the notification store view. Insert and Delete on
// Store itself belong to the entry store, so notifications carry their own
// method set.
func (s *Store) Notifications() timesheet.NotificationStore {
	return notificationStore{s}
}

type notificationStore struct{ s *Store }

func (ns notificationStore) ExistsByKey(ctx context.Context, userID, typ, key string) (bool, error) {
	ns.s.mu.RLock()
	defer ns.s.mu.RUnlock()

	rows, err := ns.s.db.QueryContext(ctx,
		"SELECT metadata_json FROM notifications WHERE user_id = ? AND type = ?",
		userID, typ)
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var metadataJSON string
		if err := rows.Scan(&metadataJSON); err != nil {
			return false, err
		}
		var meta map[string]any
		if err := json.Unmarshal([]byte(metadataJSON), &meta); err != nil {
			continue
		}
		if meta["key"] == key {
			return true, nil
		}
	}
	return false, rows.Err()
}

// createdAtFormat is RFC 3339 with fixed-width nanoseconds so the TEXT
// column sorts chronologically under ORDER BY.
const createdAtFormat = "2006-01-02T15:04:05.000000000Z07:00"

func (ns notificationStore) Insert(ctx context.Context, n timesheet.NotificationRecord) error {
	ns.s.mu.Lock()
	defer ns.s.mu.Unlock()

	query := `
		INSERT INTO notifications (id, user_id, type, title, message, is_read, metadata_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := ns.s.db.ExecContext(ctx, query,
		n.ID, n.UserID, n.Type, n.Title, n.Message, n.IsRead,
		n.MetadataJSON, n.CreatedAt.UTC().Format(createdAtFormat))
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

func (ns notificationStore) ListByUser(ctx context.Context, userID string) ([]timesheet.NotificationRecord, error) {
	return ns.query(ctx,
		"SELECT id, user_id, type, title, message, is_read, metadata_json, created_at FROM notifications WHERE user_id = ? ORDER BY created_at DESC, id",
		userID)
}

func (ns notificationStore) ListUnread(ctx context.Context, userID string) ([]timesheet.NotificationRecord, error) {
	return ns.query(ctx,
		"SELECT id, user_id, type, title, message, is_read, metadata_json, created_at FROM notifications WHERE user_id = ? AND is_read = FALSE ORDER BY created_at DESC, id",
		userID)
}

func (ns notificationStore) MarkRead(ctx context.Context, id string) error {
	ns.s.mu.Lock()
	defer ns.s.mu.Unlock()

	_, err := ns.s.db.ExecContext(ctx,
		"UPDATE notifications SET is_read = TRUE WHERE id = ?", id)
	return err
}

func (ns notificationStore) MarkAllRead(ctx context.Context, userID string) error {
	ns.s.mu.Lock()
	defer ns.s.mu.Unlock()

	_, err := ns.s.db.ExecContext(ctx,
		"UPDATE notifications SET is_read = TRUE WHERE user_id = ?", userID)
	return err
}

func (ns notificationStore) Delete(ctx context.Context, id string) error {
	ns.s.mu.Lock()
	defer ns.s.mu.Unlock()

	_, err := ns.s.db.ExecContext(ctx,
		"DELETE FROM notifications WHERE id = ?", id)
	return err
}

func (ns notificationStore) query(ctx context.Context, query string, args ...any) ([]timesheet.NotificationRecord, error) {
	ns.s.mu.RLock()
	defer ns.s.mu.RUnlock()

	rows, err := ns.s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []timesheet.NotificationRecord
	for rows.Next() {
		var (
			n         timesheet.NotificationRecord
			createdAt string
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message,
			&n.IsRead, &n.MetadataJSON, &createdAt); err != nil {
			return nil, err
		}
		if n.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// =============================================================================
// CONFIG STORE (timesheet.ConfigStore interface)
// =============================================================================

func (s *Store) GetInt(ctx context.Context, key string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value int
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return 0, timesheet.ErrConfigMissing
	}
	return value, err
}

func (s *Store) SetInt(ctx context.Context, key string, value int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`
	_, err := s.db.ExecContext(ctx, query, key, value)
	return err
}
