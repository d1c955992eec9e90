package services

import (
	"database/sql"
	"fmt"
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

type AdminService struct {
	db        *sql.DB
	audit     *audit.Recorder
	validator *ValidationHelper
}

// AdminAccount is an admin row with the derived display name.
type AdminAccount struct {
	ID              int       `json:"id"`
	Email           string    `json:"email"`
	LegalFirstName  string    `json:"legal_first_name"`
	LegalLastName   string    `json:"legal_last_name"`
	Role            int       `json:"role"`
	IsEmailVerified int       `json:"is_email_verified"`
	FullName        string    `json:"fullName"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func NewAdminService(db *sql.DB, recorder *audit.Recorder) *AdminService {
	return &AdminService{
		db:        db,
		audit:     recorder,
		validator: NewValidationHelper(),
	}
}

const adminColumns = `id, email, COALESCE(legal_first_name, ''), COALESCE(legal_last_name, ''),
       COALESCE(role, 1), COALESCE(is_email_verified, 0), created_at, updated_at`

func scanAdmin(row interface {
	Scan(dest ...interface{}) error
}) (AdminAccount, error) {
	var a AdminAccount
	err := row.Scan(
		&a.ID, &a.Email, &a.LegalFirstName, &a.LegalLastName,
		&a.Role, &a.IsEmailVerified, &a.CreatedAt, &a.UpdatedAt,
	)
	if err == nil {
		a.FullName = models.DeriveLegalName(a.LegalFirstName, a.LegalLastName)
		if a.FullName == "" {
			a.FullName = "Unnamed Admin"
		}
	}
	return a, err
}

// ListAdmins handles GET /admin/admins.
func (s *AdminService) ListAdmins(w http.ResponseWriter, r *http.Request) {
	log.Printf("[ADMIN] Fetching admin users")

	rows, err := s.db.Query(fmt.Sprintf(`
        SELECT %s FROM users
        WHERE (role = 0 OR role = 1) AND deleted_at IS NULL
        ORDER BY created_at DESC
    `, adminColumns))
	if err != nil {
		log.Printf("[ADMIN] Failed to list admins: %v", err)
		SendErrorResponse(w, "Failed to retrieve admin users", http.StatusInternalServerError, err)
		return
	}
	defer rows.Close()

	admins := []AdminAccount{}
	for rows.Next() {
		a, err := scanAdmin(rows)
		if err != nil {
			SendErrorResponse(w, "Failed to retrieve admin users", http.StatusInternalServerError, err)
			return
		}
		admins = append(admins, a)
	}
	if err := rows.Err(); err != nil {
		SendErrorResponse(w, "Failed to retrieve admin users", http.StatusInternalServerError, err)
		return
	}

	log.Printf("[ADMIN] Found %d admin users", len(admins))
	SendSuccess(w, admins, "Admin users retrieved successfully")
}

// GetAdmin handles GET /admin/admins/{id}.
func (s *AdminService) GetAdmin(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		SendErrorResponse(w, "Invalid admin ID", http.StatusBadRequest, nil)
		return
	}

	row := s.db.QueryRow(fmt.Sprintf(`
        SELECT %s FROM users
        WHERE id = $1 AND (role = 0 OR role = 1) AND deleted_at IS NULL
    `, adminColumns), id)

	admin, err := scanAdmin(row)
	if err != nil {
		if err == sql.ErrNoRows {
			SendErrorResponse(w, "Admin user not found", http.StatusNotFound, nil)
			return
		}
		SendErrorResponse(w, "Failed to retrieve admin user", http.StatusInternalServerError, err)
		return
	}

	SendSuccess(w, admin, "Admin user retrieved successfully")
}

type createAdminRequest struct {
	Email          string `json:"email" validate:"required,email"`
	Password       string `json:"password" validate:"required,min=8"`
	LegalFirstName string `json:"legal_first_name"`
	LegalLastName  string `json:"legal_last_name"`
	// aliases accepted by the bootstrap endpoint
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      *int   `json:"role" validate:"omitempty,oneof=0 1"`
}

// CreateAdmin handles POST /admin/admins.
func (s *AdminService) CreateAdmin(w http.ResponseWriter, r *http.Request) {
	s.createAdmin(w, r, false)
}

// BootstrapAdmin handles POST /create-admin outside the authenticated
// API, mirroring the standalone bootstrap route of the console.
func (s *AdminService) BootstrapAdmin(w http.ResponseWriter, r *http.Request) {
	s.createAdmin(w, r, true)
}

func (s *AdminService) createAdmin(w http.ResponseWriter, r *http.Request, bootstrap bool) {
	var req createAdminRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		SendErrorResponse(w, "Email and password are required", http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	firstName := req.LegalFirstName
	if firstName == "" {
		firstName = req.FirstName
	}
	lastName := req.LegalLastName
	if lastName == "" {
		lastName = req.LastName
	}
	role := 1
	if bootstrap && req.Role != nil {
		role = *req.Role
	}

	var existingID int
	err := s.db.QueryRow(
		"SELECT id FROM users WHERE email = $1 AND deleted_at IS NULL", req.Email,
	).Scan(&existingID)
	if err == nil {
		SendErrorResponse(w, "Email already in use", http.StatusBadRequest, nil)
		return
	}
	if err != sql.ErrNoRows {
		log.Printf("[ADMIN] Email lookup failed: %v", err)
		SendErrorResponse(w, "Failed to create admin user", http.StatusInternalServerError, err)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("[ADMIN] Password hashing failed: %v", err)
		SendErrorResponse(w, "Failed to create admin user", http.StatusInternalServerError, nil)
		return
	}

	var newID int
	err = s.db.QueryRow(`
        INSERT INTO users (email, password, legal_first_name, legal_last_name, role, is_email_verified, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, 1, NOW(), NOW())
        RETURNING id
    `, req.Email, string(hash), nullable(firstName), nullable(lastName), role).Scan(&newID)
	if err != nil {
		log.Printf("[ADMIN] Admin creation failed for %s: %v", req.Email, err)
		SendErrorResponse(w, "Failed to create admin user", http.StatusInternalServerError, err)
		return
	}

	log.Printf("[ADMIN] Admin created with ID: %d", newID)
	SendSuccessStatus(w, http.StatusCreated, map[string]interface{}{
		"id":    newID,
		"email": req.Email,
	}, "Admin user created successfully")
}

// UpdateAdmin handles PUT /admin/admins/{id} for names and email.
func (s *AdminService) UpdateAdmin(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		SendErrorResponse(w, "Invalid admin ID", http.StatusBadRequest, nil)
		return
	}

	var req struct {
		LegalFirstName *string `json:"legal_first_name"`
		LegalLastName  *string `json:"legal_last_name"`
		Email          *string `json:"email" validate:"omitempty,email"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	if !s.adminExists(w, id) {
		return
	}

	if req.Email != nil {
		var otherID int
		err := s.db.QueryRow(
			"SELECT id FROM users WHERE email = $1 AND id <> $2 AND deleted_at IS NULL",
			*req.Email, id,
		).Scan(&otherID)
		if err == nil {
			SendErrorResponse(w, "Email already in use", http.StatusBadRequest, nil)
			return
		}
		if err != sql.ErrNoRows {
			SendErrorResponse(w, "Failed to update admin user", http.StatusInternalServerError, err)
			return
		}
	}

	setParts := []string{"updated_at = NOW()"}
	args := []interface{}{}
	argIndex := 1
	add := func(column string, value interface{}) {
		setParts = append(setParts, fmt.Sprintf("%s = $%d", column, argIndex))
		args = append(args, value)
		argIndex++
	}
	if req.LegalFirstName != nil {
		add("legal_first_name", nullable(*req.LegalFirstName))
	}
	if req.LegalLastName != nil {
		add("legal_last_name", nullable(*req.LegalLastName))
	}
	if req.Email != nil {
		add("email", *req.Email)
	}

	if len(args) > 0 {
		query := fmt.Sprintf("UPDATE users SET %s WHERE id = $%d", strings.Join(setParts, ", "), argIndex)
		args = append(args, id)
		if _, err := s.db.Exec(query, args...); err != nil {
			log.Printf("[ADMIN] Failed to update admin %d: %v", id, err)
			SendErrorResponse(w, "Failed to update admin user", http.StatusInternalServerError, err)
			return
		}
	}

	SendSuccess(w, nil, "Admin user updated successfully")
}

// DeleteAdmin handles DELETE /admin/admins/{id} as a soft delete.
// Admins cannot delete their own account.
func (s *AdminService) DeleteAdmin(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		SendErrorResponse(w, "Invalid admin ID", http.StatusBadRequest, nil)
		return
	}

	if !s.adminExists(w, id) {
		return
	}

	actor := middleware.CurrentAdmin(r)
	if actor != nil && actor.ID == id {
		SendErrorResponse(w, "You cannot delete your own account", http.StatusBadRequest, nil)
		return
	}

	if _, err := s.db.Exec(
		"UPDATE users SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1", id,
	); err != nil {
		log.Printf("[ADMIN] Failed to delete admin %d: %v", id, err)
		SendErrorResponse(w, "Failed to delete admin user", http.StatusInternalServerError, err)
		return
	}

	actorID := 0
	if actor != nil {
		actorID = actor.ID
	}
	s.audit.Record(actorID, id, audit.ActionClose, "admin account deleted")

	SendSuccess(w, nil, "Admin user deleted successfully")
}

// ResetAdminPassword handles PATCH /admin/admins/{id}/reset-password.
func (s *AdminService) ResetAdminPassword(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		SendErrorResponse(w, "Invalid admin ID", http.StatusBadRequest, nil)
		return
	}

	var req struct {
		NewPassword string `json:"newPassword" validate:"required,min=8"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "New password must be at least 8 characters long", http.StatusBadRequest, err)
		return
	}

	if !s.adminExists(w, id) {
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		SendErrorResponse(w, "Failed to reset admin user password", http.StatusInternalServerError, nil)
		return
	}

	if _, err := s.db.Exec(
		"UPDATE users SET password = $1, updated_at = NOW() WHERE id = $2", string(hash), id,
	); err != nil {
		log.Printf("[ADMIN] Failed to reset password for admin %d: %v", id, err)
		SendErrorResponse(w, "Failed to reset admin user password", http.StatusInternalServerError, err)
		return
	}

	actorID := 0
	if actor := middleware.CurrentAdmin(r); actor != nil {
		actorID = actor.ID
	}
	s.audit.Record(actorID, id, audit.ActionResetPassword, "")

	SendSuccess(w, nil, "Admin user password reset successfully")
}

// ListAuditLog handles GET /admin/audit-log.
func (s *AdminService) ListAuditLog(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	targetID, _ := strconv.Atoi(q.Get("userId"))
	page := models.ParsePage(q)

	entries, total, err := s.audit.List(targetID, page.Number, page.Limit)
	if err != nil {
		log.Printf("[ADMIN] Failed to list audit log: %v", err)
		SendErrorResponse(w, "Failed to retrieve audit log", http.StatusInternalServerError, err)
		return
	}

	SendSuccess(w, map[string]interface{}{
		"entries": entries,
		"pagination": models.Pagination{
			Total: total,
			Page:  page.Number,
			Limit: page.Limit,
			Pages: (total + page.Limit - 1) / page.Limit,
		},
	}, "Audit log retrieved successfully")
}

func (s *AdminService) adminExists(w http.ResponseWriter, id int) bool {
	var existingID int
	err := s.db.QueryRow(
		"SELECT id FROM users WHERE id = $1 AND (role = 0 OR role = 1) AND deleted_at IS NULL", id,
	).Scan(&existingID)
	if err == sql.ErrNoRows {
		SendErrorResponse(w, "Admin user not found", http.StatusNotFound, nil)
		return false
	}
	if err != nil {
		SendErrorResponse(w, "Server error", http.StatusInternalServerError, err)
		return false
	}
	return true
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
