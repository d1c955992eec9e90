package middleware

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/viper"
)

type contextKey string

const adminContextKey contextKey = "adminUser"

// AdminUser is the authenticated admin attached to the request context.
type AdminUser struct {
	ID           int
	Email        string
	Role         int
	IsSuperAdmin bool
}

var (
	authDB    *sql.DB
	authRedis *redis.Client
)

// InitAuthMiddleware wires the database (role re-check) and optional
// Redis client (logout blacklist) used by AuthMiddleware.
func InitAuthMiddleware(db *sql.DB, redisClient *redis.Client) {
	authDB = db
	authRedis = redisClient
}

// AuthMiddleware requires a bearer JWT whose subject still exists as a
// live admin (role 0 or 1). The role embedded in the token is never
// trusted: every request re-checks the users table, so a downgraded or
// deleted admin loses access immediately.
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeAuthError(w, http.StatusUnauthorized, "Authentication required")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			writeAuthError(w, http.StatusUnauthorized, "Invalid token format")
			return
		}
		tokenString := parts[1]

		if authRedis != nil {
			blacklisted, err := authRedis.Exists(r.Context(), "blacklist:"+tokenString).Result()
			if err == nil && blacklisted > 0 {
				writeAuthError(w, http.StatusUnauthorized, "Invalid authentication token")
				return
			}
		}

		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(viper.GetString("jwt.secret_key")), nil
		})
		if err != nil || !token.Valid {
			if errors.Is(err, jwt.ErrTokenExpired) {
				log.Printf("[AUTH] Token expired")
				writeAuthError(w, http.StatusUnauthorized, "Session expired, please login again")
				return
			}
			log.Printf("[AUTH] Token verification failed: %v", err)
			writeAuthError(w, http.StatusUnauthorized, "Invalid authentication token")
			return
		}

		userID, ok := claims["id"].(float64)
		if !ok {
			writeAuthError(w, http.StatusUnauthorized, "Invalid authentication token")
			return
		}

		// Re-validate against the store on every request; the token's
		// embedded role may be stale.
		var admin AdminUser
		err = authDB.QueryRow(`
            SELECT id, email, role FROM users
            WHERE id = $1 AND (role = 0 OR role = 1) AND deleted_at IS NULL
        `, int(userID)).Scan(&admin.ID, &admin.Email, &admin.Role)
		if err != nil {
			if err == sql.ErrNoRows {
				log.Printf("[AUTH] User ID %d no longer exists or is not an admin", int(userID))
				writeAuthError(w, http.StatusForbidden, "Access denied")
				return
			}
			log.Printf("[AUTH] Admin lookup failed for ID %d: %v", int(userID), err)
			writeAuthError(w, http.StatusInternalServerError, "Authentication error")
			return
		}
		admin.IsSuperAdmin = admin.Role == 0

		next.ServeHTTP(w, r.WithContext(WithAdmin(r.Context(), &admin)))
	})
}

// WithAdmin attaches an admin to a context. Handlers under test use it
// to simulate an authenticated request.
func WithAdmin(ctx context.Context, admin *AdminUser) context.Context {
	return context.WithValue(ctx, adminContextKey, admin)
}

// CurrentAdmin returns the authenticated admin, or nil outside the
// middleware.
func CurrentAdmin(r *http.Request) *AdminUser {
	admin, _ := r.Context().Value(adminContextKey).(*AdminUser)
	return admin
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"success":false,"message":"` + message + `"}`))
}
