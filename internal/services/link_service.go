package services

import (
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cadooga/admin-backend/internal/models"
)

type LinkService struct {
	db        *sql.DB
	validator *ValidationHelper
}

func NewLinkService(db *sql.DB) *LinkService {
	return &LinkService{db: db, validator: NewValidationHelper()}
}

// linkColumns selects 'Link' notifications joined with both parties.
// Names fall back through legal name, then username, per the console's
// display rules.
const linkColumns = `
    n.id, COALESCE(n.link_id, 0), COALESCE(n.status, 0),
    n.sender_id, n.receiver_id,
    COALESCE(NULLIF(TRIM(CONCAT(COALESCE(s.legal_first_name, ''), ' ', COALESCE(s.legal_last_name, ''))), ''), COALESCE(s.username, '')),
    COALESCE(NULLIF(TRIM(CONCAT(COALESCE(rc.legal_first_name, ''), ' ', COALESCE(rc.legal_last_name, ''))), ''), COALESCE(rc.username, '')),
    n.created_at, n.updated_at`

const linkJoins = `
    FROM notifications n
    JOIN users s ON s.id = n.sender_id
    JOIN users rc ON rc.id = n.receiver_id
    WHERE n.notification_type = 'Link'`

// ListLinks handles GET /links with optional userId and pagination.
func (s *LinkService) ListLinks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := models.ParsePage(q)

	where := linkJoins
	args := []interface{}{}
	if userID, err := strconv.Atoi(q.Get("userId")); err == nil && userID > 0 {
		where += " AND (n.sender_id = $1 OR n.receiver_id = $1)"
		args = append(args, userID)
	}

	var total int
	countQuery := "SELECT COUNT(*)" + where
	if err := s.db.QueryRow(countQuery, args...).Scan(&total); err != nil {
		log.Printf("[LINKS] Count failed: %v", err)
		SendErrorResponse(w, "Failed to retrieve links", http.StatusInternalServerError, err)
		return
	}

	offset := (page.Number - 1) * page.Limit
	query := fmt.Sprintf(
		"SELECT %s%s ORDER BY n.created_at DESC, n.id DESC LIMIT %d OFFSET %d",
		linkColumns, where, page.Limit, offset,
	)
	rows, err := s.db.Query(query, args...)
	if err != nil {
		log.Printf("[LINKS] Query failed: %v", err)
		SendErrorResponse(w, "Failed to retrieve links", http.StatusInternalServerError, err)
		return
	}
	defer rows.Close()

	links := []models.Link{}
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			SendErrorResponse(w, "Failed to retrieve links", http.StatusInternalServerError, err)
			return
		}
		links = append(links, l)
	}
	if err := rows.Err(); err != nil {
		SendErrorResponse(w, "Failed to retrieve links", http.StatusInternalServerError, err)
		return
	}

	SendSuccess(w, map[string]interface{}{
		"links": links,
		"pagination": models.Pagination{
			Total: total,
			Page:  page.Number,
			Limit: page.Limit,
			Pages: (total + page.Limit - 1) / page.Limit,
		},
	}, "Links retrieved successfully")
}

// GetLink handles GET /links/{id}, enriching the notification with the
// matching profile_links or posts row when one exists.
func (s *LinkService) GetLink(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		SendErrorResponse(w, "Invalid link ID", http.StatusBadRequest, nil)
		return
	}

	row := s.db.QueryRow(
		"SELECT "+linkColumns+linkJoins+" AND n.id = $1", id,
	)
	link, err := scanLink(row)
	if err != nil {
		if err == sql.ErrNoRows {
			SendErrorResponse(w, "Link not found", http.StatusNotFound, nil)
			return
		}
		SendErrorResponse(w, "Failed to retrieve link", http.StatusInternalServerError, err)
		return
	}

	s.enrichLink(&link)

	SendSuccess(w, link, "Link retrieved successfully")
}

// UpdateLinkStatus handles PATCH /links/{id}/status.
func (s *LinkService) UpdateLinkStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		SendErrorResponse(w, "Invalid link ID", http.StatusBadRequest, nil)
		return
	}

	var req struct {
		Status *int `json:"status" validate:"required,min=0,max=3"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Status == nil || *req.Status < 0 || *req.Status > 3 {
		SendErrorResponse(w, "Status must be between 0 and 3", http.StatusBadRequest, nil)
		return
	}

	result, err := s.db.Exec(`
        UPDATE notifications SET status = $1, updated_at = NOW()
        WHERE id = $2 AND notification_type = 'Link'
    `, *req.Status, id)
	if err != nil {
		log.Printf("[LINKS] Status update failed for %d: %v", id, err)
		SendErrorResponse(w, "Failed to update link status", http.StatusInternalServerError, err)
		return
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		SendErrorResponse(w, "Link not found", http.StatusNotFound, nil)
		return
	}

	SendSuccess(w, nil, "Link status updated successfully")
}

func scanLink(row interface {
	Scan(dest ...interface{}) error
}) (models.Link, error) {
	var l models.Link
	err := row.Scan(
		&l.NotificationID, &l.ID, &l.Status,
		&l.SenderID, &l.ReceiverID,
		&l.SenderName, &l.ReceiverName,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err == nil {
		l.UserID = l.SenderID
	}
	return l, err
}

// enrichLink fills Title/Description/URL from whichever source table the
// notification's link_id points to. Lookup misses are not errors.
func (s *LinkService) enrichLink(l *models.Link) {
	if l.ID == 0 {
		return
	}

	var title, url string
	err := s.db.QueryRow(
		"SELECT COALESCE(title, ''), COALESCE(url, '') FROM profile_links WHERE id = $1", l.ID,
	).Scan(&title, &url)
	if err == nil {
		l.Title = title
		if url != "" {
			l.URL = &url
		}
		l.Source = "profile_link"
		return
	}
	if err != sql.ErrNoRows {
		log.Printf("[LINKS] profile_links lookup failed for %d: %v", l.ID, err)
		return
	}

	var content string
	err = s.db.QueryRow(
		"SELECT COALESCE(content, '') FROM posts WHERE id = $1", l.ID,
	).Scan(&content)
	if err == nil {
		l.Description = content
		l.Source = "post"
		return
	}
	if err != sql.ErrNoRows {
		log.Printf("[LINKS] posts lookup failed for %d: %v", l.ID, err)
	}
}
