package services

import (
	"database/sql"
	"encoding/csv"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/cadooga/admin-backend/internal/models"
)

type ExportService struct {
	db        *sql.DB
	validator *ValidationHelper
	now       func() time.Time
}

func NewExportService(db *sql.DB) *ExportService {
	return &ExportService{
		db:        db,
		validator: NewValidationHelper(),
		now:       time.Now,
	}
}

var exportHeader = []string{
	"ID", "Email", "Legal Name", "Pseudonym", "Age", "Subscription Type",
	"Last Login", "Account Status", "Created At", "Last Subscribed At",
}

// ExportUsers handles GET /users/export: same filter semantics as the
// listing, pagination always disabled, fixed column projection with
// ISO-8601 timestamps. last_subscribed_at is approximated as created_at
// for subscribers; there is no subscription history table.
func (s *ExportService) ExportUsers(w http.ResponseWriter, r *http.Request) {
	filter := models.ParseUserFilter(r.URL.Query())
	if err := s.validator.ValidateStruct(&filter); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	log.Printf("[EXPORT] Exporting users searchTerm=%q userIds=%v status=%q",
		filter.SearchTerm, filter.UserIDs, filter.AccountStatus)

	where, args := buildUserWhere(filter, 1)
	query := fmt.Sprintf(
		"SELECT %s FROM users%s ORDER BY created_at DESC, id DESC",
		userColumns, where,
	)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		log.Printf("[EXPORT] Query failed: %v", err)
		SendErrorResponse(w, "Server error", http.StatusInternalServerError, err)
		return
	}
	defer rows.Close()

	now := s.now()
	records := [][]string{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			log.Printf("[EXPORT] Scan failed: %v", err)
			SendErrorResponse(w, "Server error", http.StatusInternalServerError, err)
			return
		}
		records = append(records, exportRecord(u, now))
	}
	if err := rows.Err(); err != nil {
		log.Printf("[EXPORT] Row iteration failed: %v", err)
		SendErrorResponse(w, "Server error", http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=users.csv")

	cw := csv.NewWriter(w)
	cw.Write(exportHeader)
	for _, record := range records {
		cw.Write(record)
	}
	cw.Flush()

	log.Printf("[EXPORT] Exported %d users", len(records))
}

// exportRecord projects one row onto the fixed CSV column set. The
// export uses PAID/FREE subscription labels, unlike the listing.
func exportRecord(u models.User, now time.Time) []string {
	view := u.View(now)

	age := ""
	if view.Age != nil {
		age = strconv.Itoa(*view.Age)
	}

	subscription := "FREE"
	lastSubscribedAt := ""
	if u.IsSubscription == 1 {
		subscription = "PAID"
		lastSubscribedAt = u.CreatedAt.UTC().Format(time.RFC3339)
	}

	return []string{
		strconv.Itoa(u.ID),
		u.Email,
		view.LegalName,
		view.Pseudonym,
		age,
		subscription,
		u.UpdatedAt.UTC().Format(time.RFC3339),
		view.AccountStatus,
		u.CreatedAt.UTC().Format(time.RFC3339),
		lastSubscribedAt,
	}
}
