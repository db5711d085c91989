/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Users:
    UserDTO, CreateUserRequest, SetBalanceRequest

  Timesheet:
    WeekGridDTO, WeekRowDTO, DayCellDTO, UpsertEntryRequest,
    RowKeyDTO, DeleteRowRequest, ReassignRowRequest

  Ledger:
    LedgerRowDTO, BalanceDTO

  Notifications:
    NotificationDTO, RunNotificationsResponse

  Config:
    ConfigDTO, SetConfigRequest

DECIMAL ENCODING:
  Hour and balance amounts travel as JSON strings ("42.50"), never
  floats. Clients parse with their own decimal library.

VALIDATION:
  Validation is done in handlers and in the lieu service, not in DTOs.
  DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - lieu/service.go: Domain operations behind the handlers
*/
package api

// =============================================================================
// USER TYPES
// =============================================================================

// UserDTO represents a user in API responses.
type UserDTO struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Email              string `json:"email"`
	InitialLieuBalance string `json:"initial_lieu_balance"`
}

// CreateUserRequest is the request to create or update a user.
type CreateUserRequest struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Email              string `json:"email"`
	InitialLieuBalance string `json:"initial_lieu_balance,omitempty"`
}

// SetBalanceRequest sets a user's initial lieu balance.
type SetBalanceRequest struct {
	InitialLieuBalance string `json:"initial_lieu_balance"`
}

// =============================================================================
// TIMESHEET TYPES
// =============================================================================

// RowKeyDTO identifies a row in the weekly grid. Empty strings mean
// the Unassigned bucket for that dimension.
type RowKeyDTO struct {
	ProjectID string `json:"project_id"`
	TaskID    string `json:"task_id"`
	RoleID    string `json:"role_id"`
	EntryType string `json:"entry_type"`
}

// DayCellDTO is one day's hours within a grid row.
type DayCellDTO struct {
	Date    string `json:"date"`
	Hours   string `json:"hours"`
	EntryID string `json:"entry_id,omitempty"`
	Status  string `json:"status,omitempty"`
}

// WeekRowDTO is one grouping-key row of the weekly grid.
type WeekRowDTO struct {
	Key       RowKeyDTO    `json:"key"`
	Days      []DayCellDTO `json:"days"`
	RowTotal  string       `json:"row_total"`
	RowStatus string       `json:"row_status"`
	Editable  bool         `json:"editable"`
}

// WeekGridDTO is the full weekly grid for one user.
type WeekGridDTO struct {
	UserID    string       `json:"user_id"`
	WeekStart string       `json:"week_start"`
	WeekEnd   string       `json:"week_end"`
	Rows      []WeekRowDTO `json:"rows"`
	WeekTotal string       `json:"week_total"`
}

// UpsertEntryRequest sets the hours for one grid cell. Zero hours
// removes the cell.
type UpsertEntryRequest struct {
	Date      string `json:"date"`
	Hours     string `json:"hours"`
	ProjectID string `json:"project_id,omitempty"`
	TaskID    string `json:"task_id,omitempty"`
	RoleID    string `json:"role_id,omitempty"`
	EntryType string `json:"entry_type,omitempty"`
}

// UpsertEntryResponse reports the outcome of a cell write.
type UpsertEntryResponse struct {
	EntryID string `json:"entry_id,omitempty"`
	Deleted bool   `json:"deleted"`
}

// DeleteRowRequest removes a whole grid row for one week.
type DeleteRowRequest struct {
	WeekStart string    `json:"week_start"`
	Key       RowKeyDTO `json:"key"`
}

// ReassignRowRequest moves a grid row to a different grouping key.
type ReassignRowRequest struct {
	WeekStart string    `json:"week_start"`
	From      RowKeyDTO `json:"from"`
	To        RowKeyDTO `json:"to"`
}

// SubmitWeekRequest submits all Draft entries in a week.
type SubmitWeekRequest struct {
	WeekStart string `json:"week_start"`
}

// SubmitWeekResponse reports how many entries changed status.
type SubmitWeekResponse struct {
	Submitted int `json:"submitted"`
}

// =============================================================================
// LEDGER TYPES
// =============================================================================

// LedgerRowDTO is one weekly ledger row in API responses.
type LedgerRowDTO struct {
	ID             string `json:"id"`
	WeekStart      string `json:"week_start"`
	WeekEnd        string `json:"week_end"`
	TotalHours     string `json:"total_hours"`
	OvertimeHours  string `json:"overtime_hours"`
	LieuEarned     string `json:"lieu_earned"`
	RunningBalance string `json:"running_balance"`
}

// BalanceDTO is the user's current lieu position.
type BalanceDTO struct {
	UserID         string         `json:"user_id"`
	InitialBalance string         `json:"initial_balance"`
	CurrentBalance string         `json:"current_balance"`
	Rows           []LedgerRowDTO `json:"rows"`
}

// =============================================================================
// NOTIFICATION TYPES
// =============================================================================

// NotificationDTO represents a notification in API responses.
type NotificationDTO struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Type      string `json:"type"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	IsRead    bool   `json:"is_read"`
	Metadata  string `json:"metadata"`
	CreatedAt string `json:"created_at"`
}

// RunNotificationsResponse reports the outcome of a notification sweep.
type RunNotificationsResponse struct {
	UsersChecked int `json:"users_checked"`
	Created      int `json:"created"`
}

// =============================================================================
// CONFIG TYPES
// =============================================================================

// ConfigDTO is the effective engine configuration.
type ConfigDTO struct {
	WeeklyThresholdHours int `json:"weekly_threshold_hours"`
	ReminderDay          int `json:"reminder_day"`
	ReminderHour         int `json:"reminder_hour"`
}

// SetConfigRequest updates one configuration key.
type SetConfigRequest struct {
	Key   string `json:"key"`
	Value int    `json:"value"`
}

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
