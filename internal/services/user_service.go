package services

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/cadooga/admin-backend/internal/audit"
	"github.com/cadooga/admin-backend/internal/middleware"
	"github.com/cadooga/admin-backend/internal/models"
)

const (
	// Requests with limit above maxPageLimit disable pagination and fetch
	// up to exportFetchCap rows in one page; the response then reports
	// page=1 and limit=total. Export-sized fetches depend on this.
	maxPageLimit   = 500
	exportFetchCap = 10000
)

const userColumns = `id, COALESCE(email, ''), COALESCE(username, ''),
       COALESCE(legal_first_name, ''), COALESCE(legal_last_name, ''), COALESCE(nickname, ''),
       COALESCE(birth_day, 0), COALESCE(birth_month, ''), COALESCE(birth_year, 0),
       COALESCE(role, 2), COALESCE(is_email_verified, 0), COALESCE(is_verified, 0),
       COALESCE(is_subscription, 0), COALESCE(theliveapp_status, 1),
       created_at, updated_at, deleted_at`

type UserService struct {
	db        *sql.DB
	audit     *audit.Recorder
	validator *ValidationHelper
	now       func() time.Time
}

func NewUserService(db *sql.DB, recorder *audit.Recorder) *UserService {
	return &UserService{
		db:        db,
		audit:     recorder,
		validator: NewValidationHelper(),
		now:       time.Now,
	}
}

// buildUserWhere translates a filter into a WHERE clause with $n
// placeholders. searchTerm overrides the per-field name/email filters;
// the status filter applies the derivation precedence as predicates so
// closed rows never match "banned".
func buildUserWhere(f models.UserFilter, startIndex int) (string, []interface{}) {
	conditions := []string{}
	args := []interface{}{}
	argIndex := startIndex

	placeholder := func() string {
		p := fmt.Sprintf("$%d", argIndex)
		argIndex++
		return p
	}

	if f.SearchTerm != "" {
		pattern := "%" + f.SearchTerm + "%"
		cond := fmt.Sprintf("(email ILIKE %s OR legal_first_name ILIKE %s OR legal_last_name ILIKE %s OR username ILIKE %s OR nickname ILIKE %s)",
			placeholder(), placeholder(), placeholder(), placeholder(), placeholder())
		conditions = append(conditions, cond)
		args = append(args, pattern, pattern, pattern, pattern, pattern)
	} else {
		if f.LegalName != "" {
			pattern := "%" + f.LegalName + "%"
			cond := fmt.Sprintf("(legal_first_name ILIKE %s OR legal_last_name ILIKE %s)", placeholder(), placeholder())
			conditions = append(conditions, cond)
			args = append(args, pattern, pattern)
		}
		if f.Pseudonym != "" {
			pattern := "%" + f.Pseudonym + "%"
			cond := fmt.Sprintf("(nickname ILIKE %s OR username ILIKE %s)", placeholder(), placeholder())
			conditions = append(conditions, cond)
			args = append(args, pattern, pattern)
		}
		if f.Email != "" {
			conditions = append(conditions, fmt.Sprintf("email ILIKE %s", placeholder()))
			args = append(args, "%"+f.Email+"%")
		}
	}

	if flag, ok := f.WantsSubscribed(); ok {
		conditions = append(conditions, fmt.Sprintf("is_subscription = %s", placeholder()))
		args = append(args, flag)
	}

	switch f.AccountStatus {
	case models.StatusActive:
		conditions = append(conditions, "deleted_at IS NULL AND theliveapp_status <> 0")
	case models.StatusBanned:
		conditions = append(conditions, "deleted_at IS NULL AND theliveapp_status = 0")
	case models.StatusClosed:
		conditions = append(conditions, "deleted_at IS NOT NULL")
	}

	if len(f.UserIDs) > 0 {
		placeholders := make([]string, len(f.UserIDs))
		for i, id := range f.UserIDs {
			placeholders[i] = placeholder()
			args = append(args, id)
		}
		conditions = append(conditions, fmt.Sprintf("id IN (%s)", strings.Join(placeholders, ",")))
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func scanUser(rows interface {
	Scan(dest ...interface{}) error
}) (models.User, error) {
	var u models.User
	err := rows.Scan(
		&u.ID, &u.Email, &u.Username,
		&u.LegalFirstName, &u.LegalLastName, &u.Nickname,
		&u.BirthDay, &u.BirthMonth, &u.BirthYear,
		&u.Role, &u.IsEmailVerified, &u.IsVerified,
		&u.IsSubscription, &u.LiveAppStatus,
		&u.CreatedAt, &u.UpdatedAt, &u.DeletedAt,
	)
	return u, err
}

// queryUsers runs the count and page queries for one filter and returns
// derived views plus the pagination summary. The two queries share a
// predicate but not a snapshot; a concurrent write can skew total vs
// rows, which is acceptable for the console.
func (s *UserService) queryUsers(f models.UserFilter, page models.Page) ([]models.UserView, models.Pagination, error) {
	where, args := buildUserWhere(f, 1)

	var total int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM users"+where, args...).Scan(&total); err != nil {
		return nil, models.Pagination{}, err
	}

	usePagination := page.Limit <= maxPageLimit
	effectiveLimit := page.Limit
	offset := (page.Number - 1) * page.Limit
	if !usePagination {
		effectiveLimit = exportFetchCap
		offset = 0
	}

	// LIMIT/OFFSET are inlined after validation; some drivers reject them
	// as bound parameters and both values are already vetted integers.
	query := fmt.Sprintf(
		"SELECT %s FROM users%s ORDER BY created_at DESC, id DESC LIMIT %d OFFSET %d",
		userColumns, where, effectiveLimit, offset,
	)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, models.Pagination{}, err
	}
	defer rows.Close()

	now := s.now()
	views := []models.UserView{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, models.Pagination{}, err
		}
		views = append(views, u.View(now))
	}
	if err := rows.Err(); err != nil {
		return nil, models.Pagination{}, err
	}

	pagination := models.Pagination{Total: total}
	if usePagination {
		pagination.Page = page.Number
		pagination.Limit = page.Limit
		pagination.Pages = (total + page.Limit - 1) / page.Limit
	} else {
		pagination.Page = 1
		pagination.Limit = total
		pagination.Pages = 1
	}
	return views, pagination, nil
}

// ListUsers handles GET /users with filtering and pagination.
func (s *UserService) ListUsers(w http.ResponseWriter, r *http.Request) {
	filter := models.ParseUserFilter(r.URL.Query())
	if err := s.validator.ValidateStruct(&filter); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}
	page := models.ParsePage(r.URL.Query())

	log.Printf("[USERS] Listing users page=%d limit=%d searchTerm=%q", page.Number, page.Limit, filter.SearchTerm)

	views, pagination, err := s.queryUsers(filter, page)
	if err != nil {
		log.Printf("[USERS] Failed to list users: %v", err)
		SendErrorResponse(w, "Server error", http.StatusInternalServerError, err)
		return
	}

	SendSuccess(w, map[string]interface{}{
		"users":      views,
		"pagination": pagination,
	}, "Users retrieved successfully")
}

// GetUser handles GET /users/{id}, including the device binding view of
// face_token.
func (s *UserService) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		SendErrorResponse(w, "Invalid user ID", http.StatusBadRequest, nil)
		return
	}

	query := fmt.Sprintf("SELECT %s, COALESCE(face_token, '') FROM users WHERE id = $1", userColumns)
	row := s.db.QueryRow(query, id)

	var u models.User
	err = row.Scan(
		&u.ID, &u.Email, &u.Username,
		&u.LegalFirstName, &u.LegalLastName, &u.Nickname,
		&u.BirthDay, &u.BirthMonth, &u.BirthYear,
		&u.Role, &u.IsEmailVerified, &u.IsVerified,
		&u.IsSubscription, &u.LiveAppStatus,
		&u.CreatedAt, &u.UpdatedAt, &u.DeletedAt,
		&u.FaceToken,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			SendErrorResponse(w, "User not found", http.StatusNotFound, nil)
			return
		}
		log.Printf("[USERS] Failed to fetch user %d: %v", id, err)
		SendErrorResponse(w, "Server error", http.StatusInternalServerError, err)
		return
	}

	view := u.View(s.now())
	deviceID := "No device ID"
	if u.FaceToken != "" {
		deviceID = u.FaceToken
	}

	SendSuccess(w, map[string]interface{}{
		"user":      view,
		"device_id": deviceID,
	}, "User retrieved successfully")
}

// updateRequest fields accepted by UpdateUser. firstName/lastName are
// console aliases for the legal name columns.
type updateRequest struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Nickname  *string `json:"nickname"`
	Username  *string `json:"username"`
	Email     *string `json:"email" validate:"omitempty,email"`
}

// UpdateUser handles PUT/PATCH /users/{id} for profile fields.
func (s *UserService) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		SendErrorResponse(w, "Invalid user ID", http.StatusBadRequest, nil)
		return
	}

	var req updateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	setParts := []string{"updated_at = NOW()"}
	args := []interface{}{}
	argIndex := 1
	add := func(column string, value interface{}) {
		setParts = append(setParts, fmt.Sprintf("%s = $%d", column, argIndex))
		args = append(args, value)
		argIndex++
	}

	if req.FirstName != nil {
		add("legal_first_name", *req.FirstName)
	}
	if req.LastName != nil {
		add("legal_last_name", *req.LastName)
	}
	if req.Nickname != nil {
		add("nickname", *req.Nickname)
	}
	if req.Username != nil {
		add("username", *req.Username)
	}
	if req.Email != nil {
		add("email", *req.Email)
	}

	if len(args) == 0 {
		SendErrorResponse(w, "No updatable fields provided", http.StatusBadRequest, nil)
		return
	}

	query := fmt.Sprintf("UPDATE users SET %s WHERE id = $%d", strings.Join(setParts, ", "), argIndex)
	args = append(args, id)

	if !s.execUserUpdate(w, r, query, args, audit.ActionUpdateProfile, id, "") {
		return
	}
	SendSuccess(w, nil, "User updated successfully")
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

// BanUser handles PATCH/POST /users/{id}/ban. Banning an already-banned
// user succeeds.
func (s *UserService) BanUser(w http.ResponseWriter, r *http.Request) {
	s.setAccountStatus(w, r, models.StatusBanned)
}

// UnbanUser handles PATCH/POST /users/{id}/unban.
func (s *UserService) UnbanUser(w http.ResponseWriter, r *http.Request) {
	s.setAccountStatus(w, r, models.StatusActive)
}

// UpdateAccountStatus handles PATCH /users/{id}/status with an explicit
// target status.
func (s *UserService) UpdateAccountStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Status == "" {
		SendErrorResponse(w, "Account status is required", http.StatusBadRequest, nil)
		return
	}
	switch req.Status {
	case models.StatusActive, models.StatusBanned, models.StatusClosed:
	default:
		SendErrorResponse(w, "Invalid status. Status must be one of: active, banned, closed", http.StatusBadRequest, nil)
		return
	}
	s.applyAccountStatus(w, r, req.Status, req.Reason)
}

func (s *UserService) setAccountStatus(w http.ResponseWriter, r *http.Request, status string) {
	var req reasonRequest
	decodeOptionalBody(r, &req)
	s.applyAccountStatus(w, r, status, req.Reason)
}

func (s *UserService) applyAccountStatus(w http.ResponseWriter, r *http.Request, status, reason string) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		SendErrorResponse(w, "Invalid user ID", http.StatusBadRequest, nil)
		return
	}

	var query string
	var action string
	switch status {
	case models.StatusBanned:
		query = "UPDATE users SET theliveapp_status = 0, updated_at = NOW() WHERE id = $1"
		action = audit.ActionBan
	case models.StatusActive:
		query = "UPDATE users SET theliveapp_status = 1, deleted_at = NULL, updated_at = NOW() WHERE id = $1"
		action = audit.ActionUnban
	case models.StatusClosed:
		query = "UPDATE users SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1"
		action = audit.ActionClose
	}

	if !s.execUserUpdate(w, r, query, []interface{}{id}, action, id, reason) {
		return
	}

	message := "User account status updated successfully"
	switch status {
	case models.StatusBanned:
		message = "User banned successfully"
	case models.StatusActive:
		message = "User account restored successfully"
	}
	SendSuccess(w, nil, message)
}

// VerifyUser handles PATCH/POST /users/{id}/verify. Only
// is_email_verified is mutated; the legacy is_verified column is
// surfaced read-only.
func (s *UserService) VerifyUser(w http.ResponseWriter, r *http.Request) {
	s.setEmailVerified(w, r, 1, audit.ActionVerify, "User verified successfully")
}

// RemoveVerification handles PATCH/POST /users/{id}/remove-verification.
func (s *UserService) RemoveVerification(w http.ResponseWriter, r *http.Request) {
	s.setEmailVerified(w, r, 0, audit.ActionRemoveVerification, "User verification removed successfully")
}

func (s *UserService) setEmailVerified(w http.ResponseWriter, r *http.Request, value int, action, message string) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		SendErrorResponse(w, "Invalid user ID", http.StatusBadRequest, nil)
		return
	}

	var req reasonRequest
	decodeOptionalBody(r, &req)

	query := "UPDATE users SET is_email_verified = $1, updated_at = NOW() WHERE id = $2"
	if !s.execUserUpdate(w, r, query, []interface{}{value, id}, action, id, req.Reason) {
		return
	}
	SendSuccess(w, nil, message)
}

// ResetPassword handles PATCH/POST /users/{id}/reset-password.
func (s *UserService) ResetPassword(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		SendErrorResponse(w, "Invalid user ID", http.StatusBadRequest, nil)
		return
	}

	var req struct {
		NewPassword string `json:"newPassword" validate:"required,min=8"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Password must be at least 8 characters long", http.StatusBadRequest, err)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("[USERS] Password hashing failed for user %d: %v", id, err)
		SendErrorResponse(w, "Server error", http.StatusInternalServerError, nil)
		return
	}

	query := "UPDATE users SET password = $1, updated_at = NOW() WHERE id = $2"
	if !s.execUserUpdate(w, r, query, []interface{}{string(hash), id}, audit.ActionResetPassword, id, "") {
		return
	}
	SendSuccess(w, nil, "Password reset successfully")
}

// ClearDevice handles PATCH/POST /users/{id}/clear-device, nulling
// face_token.
func (s *UserService) ClearDevice(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		SendErrorResponse(w, "Invalid user ID", http.StatusBadRequest, nil)
		return
	}

	query := "UPDATE users SET face_token = NULL, updated_at = NOW() WHERE id = $1"
	if !s.execUserUpdate(w, r, query, []interface{}{id}, audit.ActionClearDevice, id, "") {
		return
	}
	SendSuccess(w, nil, "Device ID cleared successfully")
}

// UpdateSubscription handles PATCH /users/{id}/subscription. Premium and
// Paid map onto the raw flag; anything else clears it.
func (s *UserService) UpdateSubscription(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		SendErrorResponse(w, "Invalid user ID", http.StatusBadRequest, nil)
		return
	}

	var req struct {
		SubscriptionType string `json:"subscriptionType"`
		IsTrialPeriod    bool   `json:"isTrialPeriod"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.SubscriptionType == "" {
		SendErrorResponse(w, "Subscription type is required", http.StatusBadRequest, nil)
		return
	}

	flag := 0
	if req.SubscriptionType == "Premium" || req.SubscriptionType == "Paid" {
		flag = 1
	}

	query := "UPDATE users SET is_subscription = $1, updated_at = NOW() WHERE id = $2"
	if !s.execUserUpdate(w, r, query, []interface{}{flag, id}, audit.ActionSubscription, id, req.SubscriptionType) {
		return
	}

	message := fmt.Sprintf("Subscription updated to %s", req.SubscriptionType)
	if req.IsTrialPeriod {
		message += " (trial)"
	}
	SendSuccess(w, nil, message)
}

// execUserUpdate runs one conditional update and maps a zero affected
// row count to 404. There is no separate existence check; the update
// itself is the check, which closes the check-then-update race.
func (s *UserService) execUserUpdate(w http.ResponseWriter, r *http.Request, query string, args []interface{}, action string, targetID int, reason string) bool {
	result, err := s.db.Exec(query, args...)
	if err != nil {
		log.Printf("[USERS] Update failed for user %d: %v", targetID, err)
		SendErrorResponse(w, "Server error", http.StatusInternalServerError, err)
		return false
	}

	affected, err := result.RowsAffected()
	if err != nil {
		log.Printf("[USERS] RowsAffected failed for user %d: %v", targetID, err)
		SendErrorResponse(w, "Server error", http.StatusInternalServerError, err)
		return false
	}
	if affected == 0 {
		SendErrorResponse(w, "User not found", http.StatusNotFound, nil)
		return false
	}

	actorID := 0
	if admin := middleware.CurrentAdmin(r); admin != nil {
		actorID = admin.ID
	}
	s.audit.Record(actorID, targetID, action, reason)
	return true
}

// decodeBody decodes a required JSON body with the shared size cap,
// writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return false
	}
	return true
}

// decodeOptionalBody decodes a body that may legitimately be absent
// (ban/verify reasons are optional).
func decodeOptionalBody(r *http.Request, dst interface{}) {
	if r.Body == nil {
		return
	}
	_ = json.NewDecoder(r.Body).Decode(dst)
}
