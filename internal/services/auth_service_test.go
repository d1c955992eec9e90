package services

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"
)

var authColumns = []string{
	"id", "email", "password", "legal_first_name", "legal_last_name",
	"role", "is_email_verified", "created_at",
}

func TestAuthService_Login(t *testing.T) {
	viper.Set("jwt.secret_key", "test-secret")
	viper.Set("jwt.expiry_hours", 24)

	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	redisClient, _ := redismock.NewClientMock()
	service := NewAuthService(db, redisClient)

	hash, err := bcrypt.GenerateFromPassword([]byte("correct-password"), bcrypt.MinCost)
	assert.NoError(t, err)

	t.Run("successful admin login returns token", func(t *testing.T) {
		mock.ExpectQuery("FROM users WHERE email = \\$1 AND deleted_at IS NULL AND \\(role = 0 OR role = 1\\)").
			WithArgs("admin@example.com").
			WillReturnRows(sqlmock.NewRows(authColumns).
				AddRow(1, "admin@example.com", string(hash), "Ada", "Admin", 1, 1, time.Now()))

		body := bytes.NewBufferString(`{"email":"admin@example.com","password":"correct-password"}`)
		req := httptest.NewRequest("POST", "/admin/login", body)
		w := httptest.NewRecorder()
		service.AdminLogin(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var response map[string]interface{}
		json.Unmarshal(w.Body.Bytes(), &response)
		assert.Equal(t, true, response["success"])

		data := response["data"].(map[string]interface{})
		tokenString := data["token"].(string)
		assert.NotEmpty(t, tokenString)

		claims := jwt.MapClaims{}
		_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			return []byte("test-secret"), nil
		})
		assert.NoError(t, err)
		assert.Equal(t, float64(1), claims["id"])
		assert.Equal(t, "admin@example.com", claims["email"])

		user := data["user"].(map[string]interface{})
		assert.Equal(t, "admin@example.com", user["email"])
		assert.NotContains(t, user, "password")
	})

	t.Run("wrong password", func(t *testing.T) {
		mock.ExpectQuery("FROM users WHERE email = \\$1 AND deleted_at IS NULL").
			WithArgs("admin@example.com").
			WillReturnRows(sqlmock.NewRows(authColumns).
				AddRow(1, "admin@example.com", string(hash), "Ada", "Admin", 1, 1, time.Now()))

		body := bytes.NewBufferString(`{"email":"admin@example.com","password":"wrong"}`)
		req := httptest.NewRequest("POST", "/users/login", body)
		w := httptest.NewRecorder()
		service.Login(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		var response map[string]interface{}
		json.Unmarshal(w.Body.Bytes(), &response)
		assert.Equal(t, "Invalid credentials", response["message"])
	})

	t.Run("unknown email", func(t *testing.T) {
		mock.ExpectQuery("FROM users WHERE email = \\$1 AND deleted_at IS NULL").
			WithArgs("nobody@example.com").
			WillReturnRows(sqlmock.NewRows(authColumns))

		body := bytes.NewBufferString(`{"email":"nobody@example.com","password":"whatever"}`)
		req := httptest.NewRequest("POST", "/users/login", body)
		w := httptest.NewRecorder()
		service.Login(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("missing credentials", func(t *testing.T) {
		body := bytes.NewBufferString(`{"email":"admin@example.com"}`)
		req := httptest.NewRequest("POST", "/users/login", body)
		w := httptest.NewRecorder()
		service.Login(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var response map[string]interface{}
		json.Unmarshal(w.Body.Bytes(), &response)
		assert.Equal(t, "Email and password are required", response["message"])
	})

	t.Run("invalid request body", func(t *testing.T) {
		body := bytes.NewBufferString(`not-json`)
		req := httptest.NewRequest("POST", "/users/login", body)
		w := httptest.NewRecorder()
		service.Login(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAuthService_Logout(t *testing.T) {
	viper.Set("jwt.expiry_hours", 24)

	db, _, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	t.Run("token blacklisted in redis", func(t *testing.T) {
		redisClient, redisMock := redismock.NewClientMock()
		service := NewAuthService(db, redisClient)

		redisMock.ExpectSet("blacklist:some-token", "1", 24*time.Hour).SetVal("OK")

		req := httptest.NewRequest("POST", "/auth/logout", nil)
		req.Header.Set("Authorization", "Bearer some-token")
		w := httptest.NewRecorder()
		service.Logout(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})

	t.Run("logout without redis still succeeds", func(t *testing.T) {
		service := NewAuthService(db, nil)

		req := httptest.NewRequest("POST", "/auth/logout", nil)
		req.Header.Set("Authorization", "Bearer some-token")
		w := httptest.NewRecorder()
		service.Logout(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("logout without token still succeeds", func(t *testing.T) {
		service := NewAuthService(db, nil)

		req := httptest.NewRequest("POST", "/auth/logout", nil)
		w := httptest.NewRecorder()
		service.Logout(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}
