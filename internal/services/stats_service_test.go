package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
)

func TestStatsService_GetStats(t *testing.T) {
	t.Run("counts computed and cached", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		redisClient, redisMock := redismock.NewClientMock()
		service := NewStatsService(db, redisClient)

		redisMock.ExpectGet(statsCacheKey).RedisNil()

		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM users WHERE deleted_at IS NULL$").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(120))
		mock.ExpectQuery("is_subscription = 1").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(34))
		mock.ExpectQuery("deleted_at IS NOT NULL").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(8))
		mock.ExpectQuery("updated_at >=").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(19))

		expected, _ := json.Marshal(DashboardStats{
			TotalUsers:          120,
			ActiveSubscriptions: 34,
			ClosedAccounts:      8,
			RecentLogins:        19,
		})
		redisMock.ExpectSet(statsCacheKey, expected, statsCacheTTL).SetVal("OK")

		req := httptest.NewRequest("GET", "/users/stats", nil)
		w := httptest.NewRecorder()
		service.GetStats(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var response map[string]interface{}
		json.Unmarshal(w.Body.Bytes(), &response)
		data := response["data"].(map[string]interface{})
		assert.Equal(t, float64(120), data["totalUsers"])
		assert.Equal(t, float64(34), data["activeSubscriptions"])
		assert.Equal(t, float64(8), data["closedAccounts"])
		assert.Equal(t, float64(19), data["recentLogins"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("cache hit skips the database", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		redisClient, redisMock := redismock.NewClientMock()
		service := NewStatsService(db, redisClient)

		cached, _ := json.Marshal(DashboardStats{TotalUsers: 99})
		redisMock.ExpectGet(statsCacheKey).SetVal(string(cached))

		req := httptest.NewRequest("GET", "/users/stats", nil)
		w := httptest.NewRecorder()
		service.GetStats(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var response map[string]interface{}
		json.Unmarshal(w.Body.Bytes(), &response)
		data := response["data"].(map[string]interface{})
		assert.Equal(t, float64(99), data["totalUsers"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("works without redis", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		service := NewStatsService(db, nil)

		for _, count := range []int{10, 2, 1, 5} {
			mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM users").
				WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(count))
		}

		req := httptest.NewRequest("GET", "/users/stats", nil)
		w := httptest.NewRecorder()
		service.GetStats(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}
