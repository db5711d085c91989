/*
handlers.go - HTTP API handlers for the lieu balance ledger

PURPOSE:
  Exposes the timesheet and lieu ledger engine via REST API. Handles
  HTTP request/response, JSON serialization, and delegates to domain
  logic in the lieu service.

ENDPOINTS:
  Users:
    GET    /api/users                       List all users
    POST   /api/users                       Create/update user
    GET    /api/users/{id}                  Get user details

  Timesheet:
    GET    /api/users/{id}/week?start=DATE  Weekly grid read model
    POST   /api/users/{id}/entries          Upsert one grid cell
    POST   /api/users/{id}/rows/delete      Delete a whole grid row
    POST   /api/users/{id}/rows/reassign    Move a row to a new key
    POST   /api/users/{id}/submit           Submit a week's Draft entries

  Ledger:
    GET    /api/users/{id}/ledger           Weekly ledger rows
    GET    /api/users/{id}/balance          Current lieu position
    POST   /api/users/{id}/recalculate      Force ledger rebuild

  Notifications:
    GET    /api/users/{id}/notifications    List (?unread=true filters)
    POST   /api/users/{id}/notifications/read-all
    POST   /api/notifications/{id}/read
    DELETE /api/notifications/{id}
    POST   /api/notifications/run           Sweep all users

  Admin:
    GET    /api/admin/config                Effective configuration
    PUT    /api/admin/config                Set one config key
    PUT    /api/admin/users/{id}/balance    Set initial lieu balance

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Call domain logic (lieu service, ledger engine)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Locked entries (non-Draft rows)
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - lieu/service.go: Domain operations
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/warp/lieu-ledger/lieu"
	"github.com/warp/lieu-ledger/timesheet"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service       *lieu.Service
	Entries       timesheet.EntryStore
	Ledger        timesheet.LedgerStore
	Users         timesheet.UserStore
	Notifications timesheet.NotificationStore
	Config        timesheet.ConfigStore

	// Clock hook for tests
	Now func() time.Time
}

// NewHandler creates a new handler over the given stores.
func NewHandler(entries timesheet.EntryStore, ledger timesheet.LedgerStore,
	users timesheet.UserStore, notifications timesheet.NotificationStore,
	config timesheet.ConfigStore) *Handler {
	return &Handler{
		Service:       lieu.NewService(entries, ledger, users, notifications, config),
		Entries:       entries,
		Ledger:        ledger,
		Users:         users,
		Notifications: notifications,
		Config:        config,
		Now:           time.Now,
	}
}

// =============================================================================
// USER HANDLERS
// =============================================================================

// ListUsers returns all users.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Users.ListUsers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list users", err)
		return
	}

	dtos := make([]UserDTO, len(users))
	for i, u := range users {
		dtos[i] = toUserDTO(u)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetUser returns a single user.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	u, err := h.Users.GetUser(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get user", err)
		return
	}
	if u == nil {
		writeError(w, http.StatusNotFound, "User not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(*u))
}

// CreateUser creates or updates a user. A changed initial balance shifts
// every running balance, so the ledger is rebuilt before responding.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "ID and name are required", nil)
		return
	}

	balance := decimal.Zero
	if req.InitialLieuBalance != "" {
		var err error
		if balance, err = decimal.NewFromString(req.InitialLieuBalance); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid initial_lieu_balance", err)
			return
		}
	}

	existing, err := h.Users.GetUser(ctx, req.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get user", err)
		return
	}

	u := timesheet.User{
		ID:                 req.ID,
		Name:               req.Name,
		Email:              req.Email,
		InitialLieuBalance: balance,
	}
	if err := h.Users.SaveUser(ctx, u); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save user", err)
		return
	}

	prior := decimal.Zero
	if existing != nil {
		prior = existing.InitialLieuBalance
	}
	if !balance.Equal(prior) {
		if err := h.Service.Recalculate(ctx, req.ID, h.Now()); err != nil {
			writeDomainError(w, "Failed to recalculate", err)
			return
		}
	}
	writeJSON(w, http.StatusCreated, toUserDTO(u))
}

// =============================================================================
// TIMESHEET HANDLERS
// =============================================================================

// GetWeekGrid returns the weekly grid for a user.
// GET /api/users/{id}/week?start=YYYY-MM-DD
func (h *Handler) GetWeekGrid(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	anchor := timesheet.DayStart(h.Now())
	if s := r.URL.Query().Get("start"); s != "" {
		parsed, err := timesheet.ParseDate(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid start date (use YYYY-MM-DD)", err)
			return
		}
		anchor = parsed
	}
	weekStart := timesheet.WeekOf(anchor)
	start, end := timesheet.WeekRange(weekStart)

	entries, err := h.Entries.ListByUserRange(r.Context(), userID, start, end)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load entries", err)
		return
	}

	writeJSON(w, http.StatusOK, buildWeekGrid(userID, weekStart, entries))
}

// UpsertEntry sets the hours for one grid cell. Zero hours removes it.
// POST /api/users/{id}/entries
func (h *Handler) UpsertEntry(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	var req UpsertEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	date, err := timesheet.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return
	}
	hours, err := decimal.NewFromString(req.Hours)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid hours", err)
		return
	}

	result, err := h.Service.UpsertEntry(r.Context(), lieu.EntryInput{
		UserID:    userID,
		Date:      date,
		Hours:     hours,
		ProjectID: req.ProjectID,
		TaskID:    req.TaskID,
		RoleID:    req.RoleID,
		EntryType: timesheet.EntryType(req.EntryType),
	}, h.Now())
	if err != nil {
		writeDomainError(w, "Failed to save entry", err)
		return
	}

	writeJSON(w, http.StatusOK, UpsertEntryResponse{
		EntryID: result.EntryID,
		Deleted: result.Deleted,
	})
}

// DeleteRow removes a whole grid row for one week.
// POST /api/users/{id}/rows/delete
func (h *Handler) DeleteRow(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	var req DeleteRowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	weekStart, err := parseWeekStart(req.WeekStart)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid week_start (use YYYY-MM-DD)", err)
		return
	}

	err = h.Service.DeleteRow(r.Context(), userID, weekStart, toGroupKey(req.Key), h.Now())
	if err != nil {
		writeDomainError(w, "Failed to delete row", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReassignRow moves a grid row to a different grouping key.
// POST /api/users/{id}/rows/reassign
func (h *Handler) ReassignRow(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	var req ReassignRowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	weekStart, err := parseWeekStart(req.WeekStart)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid week_start (use YYYY-MM-DD)", err)
		return
	}

	err = h.Service.ReassignRow(r.Context(), userID, weekStart, toGroupKey(req.From), toGroupKey(req.To))
	if err != nil {
		writeDomainError(w, "Failed to reassign row", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SubmitWeek submits all Draft entries in a week.
// POST /api/users/{id}/submit
func (h *Handler) SubmitWeek(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	var req SubmitWeekRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	weekStart, err := parseWeekStart(req.WeekStart)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid week_start (use YYYY-MM-DD)", err)
		return
	}

	n, err := h.Service.SubmitWeek(r.Context(), userID, weekStart)
	if err != nil {
		writeDomainError(w, "Failed to submit week", err)
		return
	}
	writeJSON(w, http.StatusOK, SubmitWeekResponse{Submitted: n})
}

// =============================================================================
// LEDGER HANDLERS
// =============================================================================

// GetLedger returns the user's weekly ledger rows.
// GET /api/users/{id}/ledger
func (h *Handler) GetLedger(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	rows, err := h.Ledger.RowsByUser(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load ledger", err)
		return
	}

	dtos := make([]LedgerRowDTO, len(rows))
	for i, row := range rows {
		dtos[i] = toLedgerRowDTO(row)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetBalance returns the user's current lieu position.
// GET /api/users/{id}/balance
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	ctx := r.Context()

	u, err := h.Users.GetUser(ctx, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get user", err)
		return
	}
	if u == nil {
		writeError(w, http.StatusNotFound, "User not found", nil)
		return
	}

	rows, err := h.Ledger.RowsByUser(ctx, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load ledger", err)
		return
	}

	dtos := make([]LedgerRowDTO, len(rows))
	for i, row := range rows {
		dtos[i] = toLedgerRowDTO(row)
	}
	writeJSON(w, http.StatusOK, BalanceDTO{
		UserID:         userID,
		InitialBalance: u.InitialLieuBalance.String(),
		CurrentBalance: lieu.CurrentBalance(rows, u.InitialLieuBalance).String(),
		Rows:           dtos,
	})
}

// Recalculate forces a full ledger rebuild for a user.
// POST /api/users/{id}/recalculate
func (h *Handler) Recalculate(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	if err := h.Service.Recalculate(r.Context(), userID, h.Now()); err != nil {
		writeDomainError(w, "Failed to recalculate", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// NOTIFICATION HANDLERS
// =============================================================================

// ListNotifications returns a user's notifications, newest first.
// GET /api/users/{id}/notifications?unread=true
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	ctx := r.Context()

	var (
		records []timesheet.NotificationRecord
		err     error
	)
	if r.URL.Query().Get("unread") == "true" {
		records, err = h.Notifications.ListUnread(ctx, userID)
	} else {
		records, err = h.Notifications.ListByUser(ctx, userID)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list notifications", err)
		return
	}

	dtos := make([]NotificationDTO, len(records))
	for i, n := range records {
		dtos[i] = NotificationDTO{
			ID:        n.ID,
			UserID:    n.UserID,
			Type:      n.Type,
			Title:     n.Title,
			Message:   n.Message,
			IsRead:    n.IsRead,
			Metadata:  n.MetadataJSON,
			CreatedAt: n.CreatedAt.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// MarkNotificationRead marks one notification as read.
// POST /api/notifications/{id}/read
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.Notifications.MarkRead(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to mark notification read", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MarkAllNotificationsRead marks all of a user's notifications as read.
// POST /api/users/{id}/notifications/read-all
func (h *Handler) MarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	if err := h.Notifications.MarkAllRead(r.Context(), userID); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to mark notifications read", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteNotification removes one notification.
// DELETE /api/notifications/{id}
func (h *Handler) DeleteNotification(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.Notifications.Delete(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete notification", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RunNotifications sweeps all users for periodic notification checks.
// POST /api/notifications/run
func (h *Handler) RunNotifications(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	users, err := h.Users.ListUsers(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list users", err)
		return
	}

	now := h.Now()
	created := 0
	for _, u := range users {
		n, err := h.Service.GenerateNotifications(ctx, u.ID, now)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to run notification checks", err)
			return
		}
		created += n
	}

	writeJSON(w, http.StatusOK, RunNotificationsResponse{
		UsersChecked: len(users),
		Created:      created,
	})
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// GetConfig returns the effective engine configuration.
// GET /api/admin/config
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	settings, err := lieu.LoadSettings(r.Context(), h.Config)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load configuration", err)
		return
	}

	writeJSON(w, http.StatusOK, ConfigDTO{
		WeeklyThresholdHours: int(settings.ThresholdHours.IntPart()),
		ReminderDay:          int(settings.ReminderDay),
		ReminderHour:         settings.ReminderHour,
	})
}

// SetConfig updates one configuration key.
// PUT /api/admin/config
func (h *Handler) SetConfig(w http.ResponseWriter, r *http.Request) {
	var req SetConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	switch req.Key {
	case lieu.KeyWeeklyThresholdHours, lieu.KeyReminderDay, lieu.KeyReminderHour:
	default:
		writeError(w, http.StatusBadRequest, "Unknown config key: "+req.Key, nil)
		return
	}
	if req.Value < 0 {
		writeError(w, http.StatusBadRequest, "Value must be non-negative", nil)
		return
	}

	if err := h.Config.SetInt(r.Context(), req.Key, req.Value); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to set configuration", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetInitialBalance sets a user's initial lieu balance and rebuilds
// their ledger so running balances reflect the new seed.
// PUT /api/admin/users/{id}/balance
func (h *Handler) SetInitialBalance(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	ctx := r.Context()

	var req SetBalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if _, err := decimal.NewFromString(req.InitialLieuBalance); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid initial_lieu_balance", err)
		return
	}

	if err := h.Users.SetInitialBalance(ctx, userID, req.InitialLieuBalance); err != nil {
		if errors.Is(err, timesheet.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "User not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to set balance", err)
		return
	}

	if err := h.Service.Recalculate(ctx, userID, h.Now()); err != nil {
		writeDomainError(w, "Failed to recalculate", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// GRID CONSTRUCTION
// =============================================================================

// buildWeekGrid groups a week's entries by key and lays them out as
// seven-day rows.
func buildWeekGrid(userID string, weekStart timesheet.Date, entries []timesheet.Entry) WeekGridDTO {
	grouped := timesheet.GroupRows(entries)

	keys := make([]timesheet.GroupKey, 0, len(grouped))
	for k := range grouped {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.ProjectID != b.ProjectID {
			return a.ProjectID < b.ProjectID
		}
		if a.TaskID != b.TaskID {
			return a.TaskID < b.TaskID
		}
		if a.RoleID != b.RoleID {
			return a.RoleID < b.RoleID
		}
		return a.EntryType < b.EntryType
	})

	weekTotal := decimal.Zero
	rows := make([]WeekRowDTO, 0, len(keys))
	for _, k := range keys {
		rowEntries := grouped[k]
		byDate := make(map[timesheet.Date]timesheet.Entry, len(rowEntries))
		for _, e := range rowEntries {
			byDate[e.Date] = e
		}

		days := make([]DayCellDTO, 7)
		rowTotal := decimal.Zero
		for i := 0; i < 7; i++ {
			day := weekStart.AddDays(i)
			cell := DayCellDTO{Date: day.String(), Hours: "0"}
			if e, ok := byDate[day]; ok {
				cell.Hours = e.Hours.String()
				cell.EntryID = e.ID
				cell.Status = string(e.Status)
				rowTotal = rowTotal.Add(e.Hours)
			}
			days[i] = cell
		}
		weekTotal = weekTotal.Add(rowTotal)

		rows = append(rows, WeekRowDTO{
			Key: RowKeyDTO{
				ProjectID: k.ProjectID,
				TaskID:    k.TaskID,
				RoleID:    k.RoleID,
				EntryType: string(k.EntryType),
			},
			Days:      days,
			RowTotal:  timesheet.Round2(rowTotal).String(),
			RowStatus: rowStatus(rowEntries),
			Editable:  timesheet.CanMutateRow(rowEntries),
		})
	}

	return WeekGridDTO{
		UserID:    userID,
		WeekStart: weekStart.String(),
		WeekEnd:   timesheet.WeekEnd(weekStart).String(),
		Rows:      rows,
		WeekTotal: timesheet.Round2(weekTotal).String(),
	}
}

// rowStatus summarizes a row's entry statuses. A row whose entries
// disagree reports "Mixed".
func rowStatus(entries []timesheet.Entry) string {
	if len(entries) == 0 {
		return string(timesheet.StatusDraft)
	}
	first := entries[0].Status
	for _, e := range entries[1:] {
		if e.Status != first {
			return "Mixed"
		}
	}
	return string(first)
}

// =============================================================================
// HELPERS
// =============================================================================

func toUserDTO(u timesheet.User) UserDTO {
	return UserDTO{
		ID:                 u.ID,
		Name:               u.Name,
		Email:              u.Email,
		InitialLieuBalance: u.InitialLieuBalance.String(),
	}
}

func toLedgerRowDTO(row timesheet.LedgerRow) LedgerRowDTO {
	return LedgerRowDTO{
		ID:             row.ID,
		WeekStart:      row.WeekStart.String(),
		WeekEnd:        row.WeekEnd.String(),
		TotalHours:     row.TotalHours.String(),
		OvertimeHours:  row.OvertimeHours.String(),
		LieuEarned:     row.LieuEarned.String(),
		RunningBalance: row.RunningBalance.String(),
	}
}

// toGroupKey converts a wire key to the domain key. An empty entry
// type falls back to Work.
func toGroupKey(k RowKeyDTO) timesheet.GroupKey {
	entryType := timesheet.EntryType(k.EntryType)
	if entryType == "" {
		entryType = timesheet.TypeWork
	}
	return timesheet.GroupKey{
		ProjectID: k.ProjectID,
		TaskID:    k.TaskID,
		RoleID:    k.RoleID,
		EntryType: entryType,
	}
}

// parseWeekStart parses a date and normalizes it onto its containing
// week's Sunday.
func parseWeekStart(s string) (timesheet.Date, error) {
	d, err := timesheet.ParseDate(s)
	if err != nil {
		return timesheet.Date{}, err
	}
	return timesheet.WeekOf(d), nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps domain errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case errors.Is(err, timesheet.ErrEntryLocked):
		writeError(w, http.StatusConflict, message, err)
	case timesheet.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case timesheet.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
