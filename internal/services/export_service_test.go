package services

import (
	"encoding/csv"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

func TestExportService_ExportUsers(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewExportService(db)
	service.now = func() time.Time {
		return time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC)
	}

	t.Run("exports selected user ids with fixed header", func(t *testing.T) {
		created := time.Date(2023, time.January, 2, 3, 4, 5, 0, time.UTC)
		updated := time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC)

		rows := sqlmock.NewRows(userTestColumns).
			AddRow(3, "a@example.com", "usera", "Ann", "Ames", "", 1, "January", 2000, 2, 1, 0, 1, 1, created, updated, nil).
			AddRow(7, "b@example.com", "userb", "", "", "bee", 0, "", 0, 2, 0, 0, 0, 0, created, updated, nil)

		mock.ExpectQuery("FROM users WHERE id IN \\(\\$1,\\$2\\) ORDER BY created_at DESC, id DESC").
			WithArgs(3, 7).
			WillReturnRows(rows)

		req := httptest.NewRequest("GET", "/users/export?userIds=3,7,junk", nil)
		w := httptest.NewRecorder()
		service.ExportUsers(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
		assert.Equal(t, "attachment; filename=users.csv", w.Header().Get("Content-Disposition"))

		records, err := csv.NewReader(strings.NewReader(w.Body.String())).ReadAll()
		assert.NoError(t, err)
		assert.Len(t, records, 3)

		assert.Equal(t, []string{
			"ID", "Email", "Legal Name", "Pseudonym", "Age", "Subscription Type",
			"Last Login", "Account Status", "Created At", "Last Subscribed At",
		}, records[0])

		assert.Equal(t, []string{
			"3", "a@example.com", "Ann Ames", "usera", "24", "PAID",
			"2024-05-01T00:00:00Z", "active", "2023-01-02T03:04:05Z", "2023-01-02T03:04:05Z",
		}, records[1])

		// free user with missing birth data: blank age, FREE, banned, no
		// last subscribed timestamp
		assert.Equal(t, []string{
			"7", "b@example.com", "", "bee", "", "FREE",
			"2024-05-01T00:00:00Z", "banned", "2023-01-02T03:04:05Z", "",
		}, records[2])

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no LIMIT clause on export queries", func(t *testing.T) {
		mock.ExpectQuery("FROM users ORDER BY created_at DESC, id DESC$").
			WillReturnRows(sqlmock.NewRows(userTestColumns))

		req := httptest.NewRequest("GET", "/users/export", nil)
		w := httptest.NewRecorder()
		service.ExportUsers(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("banned filter uses the listing predicates", func(t *testing.T) {
		mock.ExpectQuery("FROM users WHERE deleted_at IS NULL AND theliveapp_status = 0 ORDER BY created_at DESC, id DESC$").
			WillReturnRows(sqlmock.NewRows(userTestColumns))

		req := httptest.NewRequest("GET", "/users/export?account_status=banned", nil)
		w := httptest.NewRecorder()
		service.ExportUsers(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("invalid status filter rejected", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/users/export?account_status=frozen", nil)
		w := httptest.NewRecorder()
		service.ExportUsers(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
