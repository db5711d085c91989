package lieu

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/lieu-ledger/timesheet"
)

// =============================================================================
// NOTIFICATION TYPES
// =============================================================================

type NotificationType string

const (
	TypeHoursDiscrepancy NotificationType = "hours_discrepancy"
	TypeLieuUpdate       NotificationType = "lieu_update"
	TypeLieuMilestone    NotificationType = "lieu_milestone"
	TypeWeeklyReminder   NotificationType = "weekly-reminder"
	TypeAnomaly          NotificationType = "anomaly"
)

// =============================================================================
// METADATA - Tagged variants, one per notification kind
// =============================================================================

// Metadata is the per-type payload stored with a notification. Each
// variant computes its own deduplication key, so the required key fields
// are checked at compile time instead of by runtime string matching.
type Metadata interface {
	// Key is the deduplication key: at most one notification with the
	// same (user, type, key) ever exists.
	Key() string

	// NotificationType tags which variant this is.
	NotificationType() NotificationType
}

// NegativeBalanceMeta fires when the running balance first crosses below
// zero for a week.
type NegativeBalanceMeta struct {
	WeekStart timesheet.Date  `json:"weekStartDate"`
	Balance   decimal.Decimal `json:"lieuBalance"`
}

func (m NegativeBalanceMeta) Key() string {
	return fmt.Sprintf("negative-balance-%d", m.WeekStart.Unix())
}
func (m NegativeBalanceMeta) NotificationType() NotificationType { return TypeHoursDiscrepancy }

// BalanceSwingMeta fires for an absolute balance change of 5+ hours.
type BalanceSwingMeta struct {
	WeekStart  timesheet.Date  `json:"weekStartDate"`
	Change     decimal.Decimal `json:"balanceChange"`
	NewBalance decimal.Decimal `json:"newBalance"`
}

// The signed change is part of the key: a week can legitimately swing
// more than once (e.g. hours added, then all deleted), and each distinct
// swing is a real transition. An unchanged recompute has change = 0 and
// never reaches this point.
func (m BalanceSwingMeta) Key() string {
	return fmt.Sprintf("balance-swing-%d-%s", m.WeekStart.Unix(), m.Change.String())
}
func (m BalanceSwingMeta) NotificationType() NotificationType { return TypeLieuUpdate }

// OvertimeEarnedMeta fires when a week's overtime increases above its
// previously recorded value.
type OvertimeEarnedMeta struct {
	WeekStart timesheet.Date  `json:"weekStartDate"`
	Overtime  decimal.Decimal `json:"overtimeHours"`
	Balance   decimal.Decimal `json:"lieuBalance"`
}

func (m OvertimeEarnedMeta) Key() string {
	return fmt.Sprintf("overtime-%d", m.WeekStart.Unix())
}
func (m OvertimeEarnedMeta) NotificationType() NotificationType { return TypeLieuUpdate }

// MilestoneMeta fires when the balance crosses 40 hours from below.
type MilestoneMeta struct {
	WeekStart timesheet.Date  `json:"weekStartDate"`
	Balance   decimal.Decimal `json:"lieuBalance"`
}

func (m MilestoneMeta) Key() string {
	return fmt.Sprintf("lieu-milestone-%d", m.WeekStart.Unix())
}
func (m MilestoneMeta) NotificationType() NotificationType { return TypeLieuMilestone }

// WeeklyReminderMeta fires inside the reminder window when the current
// week is empty or still has Draft entries. At most once per week.
type WeeklyReminderMeta struct {
	WeekStart timesheet.Date `json:"weekStartDate"`
}

func (m WeeklyReminderMeta) Key() string {
	return fmt.Sprintf("weekly-reminder-%d", m.WeekStart.Unix())
}
func (m WeeklyReminderMeta) NotificationType() NotificationType { return TypeWeeklyReminder }

// HighDayMeta fires for a single day exceeding 12 logged hours. At most
// once per day.
type HighDayMeta struct {
	Day   timesheet.Date  `json:"dayStart"`
	Hours decimal.Decimal `json:"hours"`
}

func (m HighDayMeta) Key() string {
	return fmt.Sprintf("anomaly-day-%d", m.Day.Unix())
}
func (m HighDayMeta) NotificationType() NotificationType { return TypeAnomaly }

// ZeroWeekMeta fires when the week immediately preceding the current one
// has zero total hours. At most once per week.
type ZeroWeekMeta struct {
	WeekStart timesheet.Date `json:"weekStartDate"`
}

func (m ZeroWeekMeta) Key() string {
	return fmt.Sprintf("zero-week-%d", m.WeekStart.Unix())
}
func (m ZeroWeekMeta) NotificationType() NotificationType { return TypeAnomaly }

// =============================================================================
// NOTIFICATION - What the detector persists
// =============================================================================

// Notification is an alert destined for a single user. The detector is
// its only producer; users mark it read or delete it afterwards.
type Notification struct {
	UserID   string
	Title    string
	Message  string
	Metadata Metadata
}

// record serializes a Notification for storage. The metadata JSON always
// carries the dedup key under "key" alongside the variant's own fields.
func (n Notification) record(createdAt time.Time) (timesheet.NotificationRecord, error) {
	fields, err := json.Marshal(n.Metadata)
	if err != nil {
		return timesheet.NotificationRecord{}, err
	}

	var payload map[string]any
	if err := json.Unmarshal(fields, &payload); err != nil {
		return timesheet.NotificationRecord{}, err
	}
	payload["key"] = n.Metadata.Key()

	metadataJSON, err := json.Marshal(payload)
	if err != nil {
		return timesheet.NotificationRecord{}, err
	}

	return timesheet.NotificationRecord{
		ID:           uuid.NewString(),
		UserID:       n.UserID,
		Type:         string(n.Metadata.NotificationType()),
		Title:        n.Title,
		Message:      n.Message,
		IsRead:       false,
		MetadataJSON: string(metadataJSON),
		CreatedAt:    createdAt.UTC(),
	}, nil
}
