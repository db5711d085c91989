/*
engine.go - Ledger recomputation

PURPOSE:
  Rebuilds a user's entire weekly lieu ledger from scratch: group entry
  hours by week, derive overtime against the configured threshold, and
  carry a running balance seeded with the user's initial lieu balance.

WHY FULL REBUILD?
  Entries can be added, edited, deleted, bulk-imported, or moved between
  weeks at any time. Incremental diffing under arbitrary out-of-order
  mutation is error-prone; deleting and reinserting the whole per-user
  row set is cheap at typical entry volumes and trivially idempotent.
  O(all entries) per recompute is the documented baseline.

CONSISTENCY:
  The delete+insert runs inside one storage transaction. If it fails, the
  previous ledger remains authoritative; a partial ledger is never
  observable. Recomputation is serialized per user with a keyed mutex;
  different users recompute in parallel.

RETROACTIVITY:
  The ledger is a materialized view against CURRENT config. A threshold
  change re-derives overtime for all historical weeks on the next
  recompute, and an initial-balance edit shifts every running balance.
  Both are deliberate.

SEE ALSO:
  - detector.go: Consumes the old/new row sets for edge detection
  - timesheet/store.go: ReplaceRows contract
*/
package lieu

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/warp/lieu-ledger/timesheet"
)

// =============================================================================
// ENGINE
// =============================================================================

// Engine rebuilds weekly ledgers. Safe for concurrent use; recomputes for
// the same user are serialized internally.
type Engine struct {
	Entries timesheet.EntryStore
	Ledger  timesheet.LedgerStore
	Users   timesheet.UserStore

	mu    sync.Mutex
	users map[string]*sync.Mutex
}

func NewEngine(entries timesheet.EntryStore, ledger timesheet.LedgerStore, users timesheet.UserStore) *Engine {
	return &Engine{
		Entries: entries,
		Ledger:  ledger,
		Users:   users,
		users:   make(map[string]*sync.Mutex),
	}
}

// userLock returns the per-user mutex, creating it on first use.
func (e *Engine) userLock(userID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	lock, ok := e.users[userID]
	if !ok {
		lock = &sync.Mutex{}
		e.users[userID] = lock
	}
	return lock
}

// RecomputeResult carries the previous and freshly persisted row sets so
// the detector can fire on true transitions rather than recomputation.
type RecomputeResult struct {
	InitialBalance decimal.Decimal
	Old            []timesheet.LedgerRow
	New            []timesheet.LedgerRow
}

// Recompute rebuilds the full ledger for one user and atomically replaces
// the stored rows. Deterministic: the same entries, threshold, and
// initial balance always produce the same rows.
func (e *Engine) Recompute(ctx context.Context, userID string, settings Settings) (RecomputeResult, error) {
	lock := e.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	initial, err := e.initialBalance(ctx, userID)
	if err != nil {
		return RecomputeResult{}, err
	}

	entries, err := e.Entries.ListByUser(ctx, userID)
	if err != nil {
		return RecomputeResult{}, fmt.Errorf("loading entries for %s: %w", userID, err)
	}

	old, err := e.Ledger.RowsByUser(ctx, userID)
	if err != nil {
		return RecomputeResult{}, fmt.Errorf("loading ledger for %s: %w", userID, err)
	}

	rows := BuildLedger(userID, entries, initial, settings.ThresholdHours)

	if err := e.Ledger.ReplaceRows(ctx, userID, rows); err != nil {
		// The store guarantees the old rows still stand.
		return RecomputeResult{}, fmt.Errorf("%w for %s: %v", timesheet.ErrReplaceLedger, userID, err)
	}

	return RecomputeResult{InitialBalance: initial, Old: old, New: rows}, nil
}

func (e *Engine) initialBalance(ctx context.Context, userID string) (decimal.Decimal, error) {
	user, err := e.Users.GetUser(ctx, userID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("loading user %s: %w", userID, err)
	}
	if user == nil {
		// Unknown users compute from zero rather than failing; the
		// entries themselves are the source of truth.
		return decimal.Zero, nil
	}
	return user.InitialLieuBalance, nil
}

// =============================================================================
// PURE LEDGER CONSTRUCTION
// =============================================================================

// BuildLedger derives the full weekly row set from entries. Pure: no I/O,
// no clock. Exposed for the detector's synthesized-week lookups and for
// tests.
//
// Entries of every status count toward hours worked. Entries reaching
// this function always have positive hours; zero-hour writes delete the
// entry upstream. Only weeks with TotalHours > 0 produce a row, so weeks
// without hours are implicit gaps across which the balance carries.
func BuildLedger(userID string, entries []timesheet.Entry, initialBalance, threshold decimal.Decimal) []timesheet.LedgerRow {
	totals := make(map[timesheet.Date]decimal.Decimal)
	var weeks []timesheet.Date
	for _, entry := range entries {
		week := timesheet.WeekOf(entry.Date)
		if _, seen := totals[week]; !seen {
			weeks = append(weeks, week)
		}
		totals[week] = totals[week].Add(entry.Hours)
	}

	sort.Slice(weeks, func(i, j int) bool { return weeks[i].Before(weeks[j]) })

	running := timesheet.Round2(initialBalance)
	rows := make([]timesheet.LedgerRow, 0, len(weeks))
	for _, week := range weeks {
		total := timesheet.Round2(totals[week])
		if !total.IsPositive() {
			continue
		}

		overtime := timesheet.Round2(decimal.Max(decimal.Zero, total.Sub(threshold)))
		lieuEarned := overtime // 1 overtime hour = 1 lieu hour
		running = timesheet.Round2(running.Add(lieuEarned))

		rows = append(rows, timesheet.LedgerRow{
			ID:             fmt.Sprintf("%s-%d", userID, week.Unix()),
			UserID:         userID,
			WeekStart:      week,
			WeekEnd:        timesheet.WeekEnd(week),
			TotalHours:     total,
			OvertimeHours:  overtime,
			LieuEarned:     lieuEarned,
			RunningBalance: running,
		})
	}
	return rows
}

// CurrentBalance returns the running balance after the last ledger row,
// or the initial balance for an empty ledger.
func CurrentBalance(rows []timesheet.LedgerRow, initialBalance decimal.Decimal) decimal.Decimal {
	if len(rows) == 0 {
		return timesheet.Round2(initialBalance)
	}
	return rows[len(rows)-1].RunningBalance
}
