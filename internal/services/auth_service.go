package services

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/cadooga/admin-backend/internal/middleware"
)

type AuthService struct {
	db        *sql.DB
	redis     *redis.Client
	validator *ValidationHelper
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthUser is the sanitized user payload returned with a token.
type AuthUser struct {
	ID              int       `json:"id"`
	Email           string    `json:"email"`
	LegalFirstName  string    `json:"legal_first_name"`
	LegalLastName   string    `json:"legal_last_name"`
	Role            int       `json:"role"`
	IsEmailVerified int       `json:"is_email_verified"`
	CreatedAt       time.Time `json:"created_at"`
}

func NewAuthService(db *sql.DB, redisClient *redis.Client) *AuthService {
	return &AuthService{
		db:        db,
		redis:     redisClient,
		validator: NewValidationHelper(),
	}
}

// Login handles POST /auth/login for any live user account.
func (s *AuthService) Login(w http.ResponseWriter, r *http.Request) {
	s.login(w, r, false)
}

// AdminLogin handles POST /admin/login; only role 0/1 accounts match.
func (s *AuthService) AdminLogin(w http.ResponseWriter, r *http.Request) {
	s.login(w, r, true)
}

func (s *AuthService) login(w http.ResponseWriter, r *http.Request, adminOnly bool) {
	log.Printf("[AUTH] Login attempt from IP: %s", r.RemoteAddr)

	var req LoginRequest
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

	query := `
        SELECT id, email, COALESCE(password, ''), COALESCE(legal_first_name, ''), COALESCE(legal_last_name, ''),
               COALESCE(role, 2), COALESCE(is_email_verified, 0), created_at
        FROM users
        WHERE email = $1 AND deleted_at IS NULL`
	if adminOnly {
		query += " AND (role = 0 OR role = 1)"
	}

	var user AuthUser
	var hash string
	err := s.db.QueryRow(query, req.Email).Scan(
		&user.ID, &user.Email, &hash,
		&user.LegalFirstName, &user.LegalLastName,
		&user.Role, &user.IsEmailVerified, &user.CreatedAt,
	)
	if err != nil {
		log.Printf("[AUTH] User not found: %s", req.Email)
		SendErrorResponse(w, "Invalid credentials", http.StatusUnauthorized, nil)
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)) != nil {
		log.Printf("[AUTH] Invalid password for user: %s", req.Email)
		SendErrorResponse(w, "Invalid credentials", http.StatusUnauthorized, nil)
		return
	}

	token, err := generateJWT(user.ID, user.Email, user.Role)
	if err != nil {
		log.Printf("[AUTH] JWT generation failed for user %d: %v", user.ID, err)
		SendErrorResponse(w, "Failed to generate token", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[AUTH] Login successful for user %d", user.ID)
	SendSuccess(w, map[string]interface{}{
		"token": token,
		"user":  user,
	}, "Login successful")
}

// Profile handles GET /auth/profile for the authenticated admin.
func (s *AuthService) Profile(w http.ResponseWriter, r *http.Request) {
	admin := middleware.CurrentAdmin(r)
	if admin == nil {
		SendErrorResponse(w, "Authentication required", http.StatusUnauthorized, nil)
		return
	}

	var user AuthUser
	err := s.db.QueryRow(`
        SELECT id, email, COALESCE(legal_first_name, ''), COALESCE(legal_last_name, ''),
               COALESCE(role, 2), COALESCE(is_email_verified, 0), created_at
        FROM users
        WHERE id = $1 AND deleted_at IS NULL
    `, admin.ID).Scan(
		&user.ID, &user.Email,
		&user.LegalFirstName, &user.LegalLastName,
		&user.Role, &user.IsEmailVerified, &user.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			SendErrorResponse(w, "User not found", http.StatusNotFound, nil)
			return
		}
		log.Printf("[AUTH] Profile fetch failed for user %d: %v", admin.ID, err)
		SendErrorResponse(w, "Failed to fetch profile", http.StatusInternalServerError, err)
		return
	}

	SendSuccess(w, user, "Profile retrieved successfully")
}

// Logout handles POST /auth/logout, blacklisting the presented token for
// its remaining usefulness window when Redis is configured.
func (s *AuthService) Logout(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("Authorization")
	if len(token) > 7 && token[:7] == "Bearer " {
		token = token[7:]

		if s.redis != nil {
			ctx := context.Background()
			expiry := time.Duration(viper.GetInt("jwt.expiry_hours")) * time.Hour
			if err := s.redis.Set(ctx, "blacklist:"+token, "1", expiry).Err(); err != nil {
				log.Printf("[AUTH] Failed to blacklist token: %v", err)
			}
		}
	}

	SendSuccess(w, nil, "Logged out successfully")
}

func generateJWT(userID int, email string, role int) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":    userID,
		"email": email,
		"role":  role,
		"exp":   time.Now().Add(time.Duration(viper.GetInt("jwt.expiry_hours")) * time.Hour).Unix(),
	})

	return token.SignedString([]byte(viper.GetString("jwt.secret_key")))
}
