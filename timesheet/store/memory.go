// Package store provides in-memory implementations of the timesheet
// storage contracts, for testing and development.
package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/warp/lieu-ledger/timesheet"
)

// =============================================================================
// MEMORY STORE - implements every timesheet storage interface
// =============================================================================

type Memory struct {
	mu            sync.RWMutex
	entries       map[string]timesheet.Entry // by entry ID
	ledger        map[string][]timesheet.LedgerRow
	users         map[string]timesheet.User
	notifications []timesheet.NotificationRecord
	config        map[string]int

	// FailReplace simulates a storage fault inside the ledger
	// transaction, for rollback tests.
	FailReplace bool
}

func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]timesheet.Entry),
		ledger:  make(map[string][]timesheet.LedgerRow),
		users:   make(map[string]timesheet.User),
		config:  make(map[string]int),
	}
}

// =============================================================================
// ENTRY STORE
// =============================================================================

func (m *Memory) ListByUser(_ context.Context, userID string) ([]timesheet.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []timesheet.Entry
	for _, e := range m.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (m *Memory) ListByUserRange(_ context.Context, userID string, from, to timesheet.Date) ([]timesheet.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []timesheet.Entry
	for _, e := range m.entries {
		if e.UserID == userID && !e.Date.Before(from) && e.Date.Before(to) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (m *Memory) FindByKey(_ context.Context, userID string, date timesheet.Date, key timesheet.GroupKey) (*timesheet.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, e := range m.entries {
		if e.UserID == userID && e.Date.Equal(date) && timesheet.KeyOf(e) == key {
			found := e
			return &found, nil
		}
	}
	return nil, nil
}

func (m *Memory) Insert(_ context.Context, e timesheet.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[e.ID] = e
	return nil
}

func (m *Memory) Update(_ context.Context, e timesheet.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[e.ID]; !ok {
		return timesheet.ErrEntryNotFound
	}
	m.entries[e.ID] = e
	return nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, id)
	return nil
}

func (m *Memory) DeleteRow(_ context.Context, userID string, key timesheet.GroupKey, from, to timesheet.Date) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, e := range m.entries {
		if e.UserID == userID && timesheet.KeyOf(e) == key && !e.Date.Before(from) && e.Date.Before(to) {
			delete(m.entries, id)
		}
	}
	return nil
}

func (m *Memory) ReassignRow(_ context.Context, userID string, prev, next timesheet.GroupKey, from, to timesheet.Date) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, e := range m.entries {
		if e.UserID == userID && timesheet.KeyOf(e) == prev && !e.Date.Before(from) && e.Date.Before(to) {
			e.ProjectID = next.ProjectID
			e.TaskID = next.TaskID
			e.RoleID = next.RoleID
			e.EntryType = next.EntryType
			m.entries[id] = e
		}
	}
	return nil
}

func (m *Memory) UpdateStatusRange(_ context.Context, userID string, from, to timesheet.Date, fromStatus, toStatus timesheet.EntryStatus) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	changed := 0
	for id, e := range m.entries {
		if e.UserID == userID && e.Status == fromStatus && !e.Date.Before(from) && e.Date.Before(to) {
			e.Status = toStatus
			m.entries[id] = e
			changed++
		}
	}
	return changed, nil
}

// =============================================================================
// LEDGER STORE
// =============================================================================

func (m *Memory) RowsByUser(_ context.Context, userID string) ([]timesheet.LedgerRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows := make([]timesheet.LedgerRow, len(m.ledger[userID]))
	copy(rows, m.ledger[userID])
	return rows, nil
}

func (m *Memory) ReplaceRows(_ context.Context, userID string, rows []timesheet.LedgerRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailReplace {
		// Simulated transaction failure: previous rows stand.
		return timesheet.ErrReplaceLedger
	}

	replaced := make([]timesheet.LedgerRow, len(rows))
	copy(replaced, rows)
	sort.Slice(replaced, func(i, j int) bool { return replaced[i].WeekStart.Before(replaced[j].WeekStart) })
	m.ledger[userID] = replaced
	return nil
}

// =============================================================================
// USER STORE
// =============================================================================

func (m *Memory) GetUser(_ context.Context, id string) (*timesheet.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (m *Memory) ListUsers(_ context.Context) ([]timesheet.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]timesheet.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) SaveUser(_ context.Context, u timesheet.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	return nil
}

func (m *Memory) SetInitialBalance(_ context.Context, id string, balance string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return timesheet.ErrUserNotFound
	}
	parsed, err := decimal.NewFromString(balance)
	if err != nil {
		return err
	}
	u.InitialLieuBalance = parsed
	m.users[id] = u
	return nil
}

// =============================================================================
// NOTIFICATION STORE
// =============================================================================

func (m *Memory) ExistsByKey(_ context.Context, userID, typ, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, n := range m.notifications {
		if n.UserID != userID || n.Type != typ {
			continue
		}
		var meta map[string]any
		if err := json.Unmarshal([]byte(n.MetadataJSON), &meta); err != nil {
			continue
		}
		if meta["key"] == key {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) insertNotification(n timesheet.NotificationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications = append(m.notifications, n)
	return nil
}

func (m *Memory) ListNotificationsByUser(_ context.Context, userID string) ([]timesheet.NotificationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []timesheet.NotificationRecord
	for _, n := range m.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *Memory) ListUnreadNotifications(_ context.Context, userID string) ([]timesheet.NotificationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []timesheet.NotificationRecord
	for _, n := range m.notifications {
		if n.UserID == userID && !n.IsRead {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *Memory) MarkNotificationRead(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.notifications {
		if m.notifications[i].ID == id {
			m.notifications[i].IsRead = true
			return nil
		}
	}
	return nil
}

func (m *Memory) MarkAllNotificationsRead(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.notifications {
		if m.notifications[i].UserID == userID {
			m.notifications[i].IsRead = true
		}
	}
	return nil
}

func (m *Memory) DeleteNotification(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.notifications {
		if m.notifications[i].ID == id {
			m.notifications = append(m.notifications[:i], m.notifications[i+1:]...)
			return nil
		}
	}
	return nil
}

// Notifications returns a view of the memory store satisfying
// timesheet.NotificationStore. Needed because Insert and Delete collide
// with the entry-store method set on Memory itself.
func (m *Memory) Notifications() timesheet.NotificationStore {
	return notificationView{m}
}

type notificationView struct{ m *Memory }

func (v notificationView) ExistsByKey(ctx context.Context, userID, typ, key string) (bool, error) {
	return v.m.ExistsByKey(ctx, userID, typ, key)
}

func (v notificationView) Insert(ctx context.Context, n timesheet.NotificationRecord) error {
	return v.m.insertNotification(n)
}

func (v notificationView) ListByUser(ctx context.Context, userID string) ([]timesheet.NotificationRecord, error) {
	return v.m.ListNotificationsByUser(ctx, userID)
}

func (v notificationView) ListUnread(ctx context.Context, userID string) ([]timesheet.NotificationRecord, error) {
	return v.m.ListUnreadNotifications(ctx, userID)
}

func (v notificationView) MarkRead(ctx context.Context, id string) error {
	return v.m.MarkNotificationRead(ctx, id)
}

func (v notificationView) MarkAllRead(ctx context.Context, userID string) error {
	return v.m.MarkAllNotificationsRead(ctx, userID)
}

func (v notificationView) Delete(ctx context.Context, id string) error {
	return v.m.DeleteNotification(ctx, id)
}

// =============================================================================
// CONFIG STORE
// =============================================================================

func (m *Memory) GetInt(_ context.Context, key string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.config[key]
	if !ok {
		return 0, timesheet.ErrConfigMissing
	}
	return v, nil
}

func (m *Memory) SetInt(_ context.Context, key string, value int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config[key] = value
	return nil
}
