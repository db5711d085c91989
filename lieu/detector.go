/*
detector.go - Notification and anomaly detection

PURPOSE:
  Decides which notifications are newly warranted by comparing a freshly
  computed ledger against the previously persisted one, and by running
  periodic checks over recent raw entries. Fires on true state
  transitions, never on mere recomputation.

EDGE TRIGGERS (after every recompute):
  - balance crosses negative        -> hours_discrepancy
  - balance swings by 5+ hours      -> lieu_update
  - a week's overtime increases     -> lieu_update
  - balance crosses the 40h mark    -> lieu_milestone

  The "old" value for a week is the previously persisted row for that
  week; for a week with no prior row it is the running balance carried
  into it by the old ledger. Symmetrically, a week present in the old
  ledger but absent from the new one is checked against the balance the
  new ledger carries into it (weeks without hours are implicit gaps, so
  the zero-overtime week is synthesized rather than assumed stored).

PERIODIC CHECKS (scheduled, independent of recompute):
  - weekly reminder inside the configured day/hour window
  - any single day over 12 hours in the trailing 14 days
  - zero hours in the immediately preceding week

DEDUP:
  Every insert first checks (user, type, key) existence. Re-running the
  detector arbitrarily often produces no duplicate spam; a skip is an
  expected outcome, not an error.

SEE ALSO:
  - notification.go: Metadata variants and their keys
  - engine.go: Produces the old/new row sets
*/
package lieu

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/lieu-ledger/timesheet"
)

var (
	swingThreshold    = decimal.NewFromInt(5)
	milestoneBalance  = decimal.NewFromInt(40)
	highDayHours      = decimal.NewFromInt(12)
	anomalyWindowDays = 14
)

// Detector inspects ledgers and entries and persists warranted
// notifications.
type Detector struct {
	Entries       timesheet.EntryStore
	Notifications timesheet.NotificationStore
}

func NewDetector(entries timesheet.EntryStore, notifications timesheet.NotificationStore) *Detector {
	return &Detector{Entries: entries, Notifications: notifications}
}

// =============================================================================
// EDGE-TRIGGERED LEDGER NOTIFICATIONS
// =============================================================================

// CheckLedgerTransitions compares a recompute result week by week and
// emits notifications for newly crossed conditions. Returns how many were
// inserted (dedup skips excluded).
func (d *Detector) CheckLedgerTransitions(ctx context.Context, userID string, result RecomputeResult, now time.Time) (int, error) {
	oldByWeek := make(map[timesheet.Date]timesheet.LedgerRow, len(result.Old))
	for _, row := range result.Old {
		oldByWeek[row.WeekStart] = row
	}
	newByWeek := make(map[timesheet.Date]timesheet.LedgerRow, len(result.New))
	for _, row := range result.New {
		newByWeek[row.WeekStart] = row
	}

	inserted := 0
	for _, row := range result.New {
		oldBalance := priorBalance(result.Old, oldByWeek, row.WeekStart, result.InitialBalance)
		oldOvertime := decimal.Zero
		if old, ok := oldByWeek[row.WeekStart]; ok {
			oldOvertime = old.OvertimeHours
		}

		for _, n := range weekTransitions(userID, row, oldBalance, oldOvertime) {
			ok, err := d.insert(ctx, n, now)
			if err != nil {
				return inserted, err
			}
			if ok {
				inserted++
			}
		}
	}

	// A week whose row vanished (all its entries deleted or zeroed) still
	// carries a balance change. Weeks without hours are implicit gaps, so
	// the zero-overtime week is synthesized here: its new balance is
	// whatever the new ledger carries into it.
	for _, old := range result.Old {
		if _, kept := newByWeek[old.WeekStart]; kept {
			continue
		}
		synthesized := timesheet.LedgerRow{
			UserID:         userID,
			WeekStart:      old.WeekStart,
			WeekEnd:        old.WeekEnd,
			RunningBalance: priorBalance(result.New, newByWeek, old.WeekStart, result.InitialBalance),
		}
		for _, n := range weekTransitions(userID, synthesized, old.RunningBalance, old.OvertimeHours) {
			ok, err := d.insert(ctx, n, now)
			if err != nil {
				return inserted, err
			}
			if ok {
				inserted++
			}
		}
	}
	return inserted, nil
}

// priorBalance resolves the "old" balance for a week: the persisted row
// for that week if one existed, otherwise the balance the old ledger
// carried into it.
func priorBalance(old []timesheet.LedgerRow, byWeek map[timesheet.Date]timesheet.LedgerRow, week timesheet.Date, initial decimal.Decimal) decimal.Decimal {
	if row, ok := byWeek[week]; ok {
		return row.RunningBalance
	}
	balance := timesheet.Round2(initial)
	for _, row := range old { // sorted ascending per LedgerStore contract
		if !row.WeekStart.Before(week) {
			break
		}
		balance = row.RunningBalance
	}
	return balance
}

// weekTransitions applies the four edge rules to one recomputed week.
func weekTransitions(userID string, row timesheet.LedgerRow, oldBalance, oldOvertime decimal.Decimal) []Notification {
	var out []Notification
	newBalance := row.RunningBalance

	if newBalance.IsNegative() && !oldBalance.IsNegative() {
		out = append(out, Notification{
			UserID: userID,
			Title:  "Negative Lieu Balance",
			Message: fmt.Sprintf("Your lieu balance is now %s hours. You have worked fewer than standard hours recently.",
				newBalance.StringFixed(1)),
			Metadata: NegativeBalanceMeta{WeekStart: row.WeekStart, Balance: newBalance},
		})
	}

	change := newBalance.Sub(oldBalance)
	if change.Abs().GreaterThanOrEqual(swingThreshold) {
		sign := ""
		if change.IsPositive() {
			sign = "+"
		}
		out = append(out, Notification{
			UserID: userID,
			Title:  "Lieu Balance Updated",
			Message: fmt.Sprintf("Your lieu balance changed by %s%s hours this week. Current balance: %s hours.",
				sign, change.StringFixed(1), newBalance.StringFixed(1)),
			Metadata: BalanceSwingMeta{WeekStart: row.WeekStart, Change: change, NewBalance: newBalance},
		})
	}

	if row.OvertimeHours.GreaterThan(oldOvertime) && row.OvertimeHours.IsPositive() {
		earned := row.OvertimeHours.Sub(oldOvertime)
		out = append(out, Notification{
			UserID: userID,
			Title:  "Overtime Earned",
			Message: fmt.Sprintf("You earned %s hours of lieu time this week. New balance: %s hours.",
				earned.StringFixed(1), newBalance.StringFixed(1)),
			Metadata: OvertimeEarnedMeta{WeekStart: row.WeekStart, Overtime: earned, Balance: newBalance},
		})
	}

	if newBalance.GreaterThanOrEqual(milestoneBalance) && oldBalance.LessThan(milestoneBalance) {
		out = append(out, Notification{
			UserID: userID,
			Title:  "Lieu Milestone Reached",
			Message: fmt.Sprintf("Congratulations! You've accumulated %s hours of lieu time - equivalent to a full week off!",
				newBalance.StringFixed(1)),
			Metadata: MilestoneMeta{WeekStart: row.WeekStart, Balance: newBalance},
		})
	}

	return out
}

// =============================================================================
// PERIODIC / ANOMALY CHECKS
// =============================================================================

// RunChecks performs the scheduled checks for one user at the given
// instant. Safe to invoke on every page load: dedup keys make reruns
// no-ops. Returns how many notifications were inserted.
func (d *Detector) RunChecks(ctx context.Context, userID string, now time.Time, settings Settings) (int, error) {
	inserted := 0

	n, err := d.weeklyReminder(ctx, userID, now, settings)
	if err != nil {
		return inserted, err
	}
	inserted += n

	n, err = d.highDays(ctx, userID, now)
	if err != nil {
		return inserted, err
	}
	inserted += n

	n, err = d.zeroPreviousWeek(ctx, userID, now)
	if err != nil {
		return inserted, err
	}
	return inserted + n, nil
}

func (d *Detector) weeklyReminder(ctx context.Context, userID string, now time.Time, settings Settings) (int, error) {
	if now.UTC().Weekday() != settings.ReminderDay || now.UTC().Hour() < settings.ReminderHour {
		return 0, nil
	}

	week := timesheet.StartOfWeek(now)
	start, end := timesheet.WeekRange(week)
	entries, err := d.Entries.ListByUserRange(ctx, userID, start, end)
	if err != nil {
		return 0, err
	}

	hasDraft := false
	for _, e := range entries {
		if e.Status == timesheet.StatusDraft {
			hasDraft = true
			break
		}
	}
	if len(entries) > 0 && !hasDraft {
		return 0, nil
	}

	message := "You have Draft entries that need submission."
	if len(entries) == 0 {
		message = "You have not logged any hours this week."
	}

	ok, err := d.insert(ctx, Notification{
		UserID:   userID,
		Title:    "Weekly timesheet reminder",
		Message:  message,
		Metadata: WeeklyReminderMeta{WeekStart: week},
	}, now)
	if err != nil || !ok {
		return 0, err
	}
	return 1, nil
}

func (d *Detector) highDays(ctx context.Context, userID string, now time.Time) (int, error) {
	// Trailing 14 calendar days, today included.
	today := timesheet.DayStart(now)
	from := today.AddDays(-(anomalyWindowDays - 1))
	entries, err := d.Entries.ListByUserRange(ctx, userID, from, today.AddDays(1))
	if err != nil {
		return 0, err
	}

	totals := make(map[timesheet.Date]decimal.Decimal)
	for _, e := range entries {
		totals[e.Date] = totals[e.Date].Add(e.Hours)
	}

	inserted := 0
	for day, total := range totals {
		if !total.GreaterThan(highDayHours) {
			continue
		}
		ok, err := d.insert(ctx, Notification{
			UserID: userID,
			Title:  "Unusually long day logged",
			Message: fmt.Sprintf("You logged %s hours on %s.",
				total.StringFixed(2), day),
			Metadata: HighDayMeta{Day: day, Hours: total},
		}, now)
		if err != nil {
			return inserted, err
		}
		if ok {
			inserted++
		}
	}
	return inserted, nil
}

func (d *Detector) zeroPreviousWeek(ctx context.Context, userID string, now time.Time) (int, error) {
	previousWeek := timesheet.StartOfWeek(now).AddDays(-7)
	start, end := timesheet.WeekRange(previousWeek)
	entries, err := d.Entries.ListByUserRange(ctx, userID, start, end)
	if err != nil {
		return 0, err
	}

	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.Hours)
	}
	if total.IsPositive() {
		return 0, nil
	}

	ok, err := d.insert(ctx, Notification{
		UserID:   userID,
		Title:    "No hours logged last week",
		Message:  "You logged zero hours in the previous week.",
		Metadata: ZeroWeekMeta{WeekStart: previousWeek},
	}, now)
	if err != nil || !ok {
		return 0, err
	}
	return 1, nil
}

// =============================================================================
// DEDUPLICATED INSERT
// =============================================================================

// insert persists a notification unless one with the same (user, type,
// key) already exists. Returns whether an insert happened.
func (d *Detector) insert(ctx context.Context, n Notification, createdAt time.Time) (bool, error) {
	typ := string(n.Metadata.NotificationType())
	exists, err := d.Notifications.ExistsByKey(ctx, n.UserID, typ, n.Metadata.Key())
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	record, err := n.record(createdAt)
	if err != nil {
		return false, err
	}
	return true, d.Notifications.Insert(ctx, record)
}
